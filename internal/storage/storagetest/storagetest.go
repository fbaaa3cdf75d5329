// Package storagetest is a behavioural test suite shared by every storage backend.
package storagetest

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"ledger-bot/internal/domain"
	"ledger-bot/internal/storage"
)

// Factory returns a fresh, empty store. Cleanup is the factory's job (t.Cleanup).
type Factory func(t *testing.T) storage.Store

// Run executes the suite against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("group config", func(t *testing.T) { testGroupConfig(t, newStore(t)) })
	t.Run("members", func(t *testing.T) { testMembers(t, newStore(t)) })
	t.Run("latest transaction", func(t *testing.T) { testLatest(t, newStore(t)) })
	t.Run("ranges and recent", func(t *testing.T) { testRanges(t, newStore(t)) })
	t.Run("user activity", func(t *testing.T) { testActivity(t, newStore(t)) })
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

func mustCreate(t *testing.T, s storage.Store, tx domain.Transaction) domain.Transaction {
	t.Helper()
	if err := s.CreateTransaction(context.Background(), &tx); err != nil {
		t.Fatalf("CreateTransaction failed: %v", err)
	}
	return tx
}

func testGroupConfig(t *testing.T, s storage.Store) {
	ctx := context.Background()

	cfg, err := s.GetGroupConfig(ctx, "g1")
	if err != nil {
		t.Fatalf("GetGroupConfig failed: %v", err)
	}
	if cfg != nil {
		t.Fatalf("expected no config for unknown group, got %+v", cfg)
	}

	cfg, err = s.GetOrCreateGroupConfig(ctx, "g1")
	if err != nil {
		t.Fatalf("GetOrCreateGroupConfig failed: %v", err)
	}
	if !reflect.DeepEqual(cfg.Categories, domain.DefaultCategories) {
		t.Errorf("categories: expected defaults, got %v", cfg.Categories)
	}
	if cfg.DisplayName() != domain.UnnamedGroup {
		t.Errorf("display name: expected %q, got %q", domain.UnnamedGroup, cfg.DisplayName())
	}

	if _, err := s.SetGroupName(ctx, "g1", "Flatmates"); err != nil {
		t.Fatalf("SetGroupName failed: %v", err)
	}
	cfg, err = s.GetGroupConfig(ctx, "g1")
	if err != nil || cfg == nil {
		t.Fatalf("GetGroupConfig after rename: cfg=%v err=%v", cfg, err)
	}
	if cfg.Name != "Flatmates" {
		t.Errorf("name: expected 'Flatmates', got %q", cfg.Name)
	}

	// rename of a group without config creates it
	if _, err := s.SetGroupName(ctx, "g2", "Trip"); err != nil {
		t.Fatalf("SetGroupName on new group failed: %v", err)
	}

	cfg, err = s.SetCategories(ctx, "g1", []string{"Rent", " Food ", "Rent"})
	if err != nil {
		t.Fatalf("SetCategories failed: %v", err)
	}
	if want := []string{"Rent", "Food"}; !reflect.DeepEqual(cfg.Categories, want) {
		t.Errorf("categories: expected %v, got %v", want, cfg.Categories)
	}
	if _, err := s.SetCategories(ctx, "g1", nil); !errors.Is(err, storage.ErrEmptyCategories) {
		t.Errorf("expected ErrEmptyCategories, got %v", err)
	}
	cfg, _ = s.GetGroupConfig(ctx, "g1")
	if cfg.Name != "Flatmates" || len(cfg.Categories) != 2 {
		t.Errorf("config changed by rejected update: %+v", cfg)
	}

	configs, err := s.ListGroupConfigs(ctx, []string{"g1", "g2", "missing"})
	if err != nil {
		t.Fatalf("ListGroupConfigs failed: %v", err)
	}
	if len(configs) != 2 {
		t.Errorf("ListGroupConfigs: expected 2, got %d", len(configs))
	}
}

func testMembers(t *testing.T, s storage.Store) {
	ctx := context.Background()

	m, err := s.FindMember(ctx, "g1", "u1")
	if err != nil {
		t.Fatalf("FindMember failed: %v", err)
	}
	if m != nil {
		t.Fatalf("expected no member, got %+v", m)
	}

	first, err := s.UpsertNickname(ctx, "g1", "u1", "Ken")
	if err != nil {
		t.Fatalf("UpsertNickname failed: %v", err)
	}
	second, err := s.UpsertNickname(ctx, "g1", "u1", "Kenny")
	if err != nil {
		t.Fatalf("second UpsertNickname failed: %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("expected the member to be updated in place, ids %s != %s", first.ID, second.ID)
	}

	m, err = s.FindMember(ctx, "g1", "u1")
	if err != nil || m == nil {
		t.Fatalf("FindMember after upsert: m=%v err=%v", m, err)
	}
	if m.Nickname != "Kenny" {
		t.Errorf("nickname: expected 'Kenny', got %q", m.Nickname)
	}

	if _, err := s.UpsertNickname(ctx, "g1", "u2", "Mao"); err != nil {
		t.Fatalf("UpsertNickname u2 failed: %v", err)
	}
	if _, err := s.UpsertNickname(ctx, "g2", "u1", "K"); err != nil {
		t.Fatalf("UpsertNickname g2 failed: %v", err)
	}

	members, err := s.ListGroupMembers(ctx, "g1")
	if err != nil {
		t.Fatalf("ListGroupMembers failed: %v", err)
	}
	if len(members) != 2 {
		t.Errorf("ListGroupMembers: expected 2, got %d", len(members))
	}

	memberships, err := s.ListUserMemberships(ctx, "u1")
	if err != nil {
		t.Fatalf("ListUserMemberships failed: %v", err)
	}
	if len(memberships) != 2 {
		t.Errorf("ListUserMemberships: expected 2, got %d", len(memberships))
	}
}

func testLatest(t *testing.T, s storage.Store) {
	ctx := context.Background()

	deleted, err := s.DeleteLatestTransaction(ctx, "g1")
	if err != nil {
		t.Fatalf("DeleteLatestTransaction on empty group failed: %v", err)
	}
	if deleted != nil {
		t.Fatalf("expected nothing to delete, got %+v", deleted)
	}
	updated, err := s.UpdateLatestPayer(ctx, "g1", "Mao")
	if err != nil || updated != nil {
		t.Fatalf("UpdateLatestPayer on empty group: tx=%v err=%v", updated, err)
	}

	// T2 is created later but carries an earlier logical date.
	t1 := mustCreate(t, s, domain.Transaction{
		GroupID: "g1", UserID: "u1", PayerName: "Ken", Amount: decimal.NewFromInt(100),
		Item: "dinner", ParentCategory: "Food", Kind: domain.KindExpense, TransactionDate: day(2024, 11, 5),
	})
	if t1.ID == "" || t1.CreatedAt.IsZero() {
		t.Fatalf("expected ID and CreatedAt to be set, got %+v", t1)
	}
	t2 := mustCreate(t, s, domain.Transaction{
		GroupID: "g1", UserID: "u1", PayerName: "Ken", Amount: decimal.RequireFromString("12.5"),
		Item: "coffee", ParentCategory: "Food", Kind: domain.KindExpense, TransactionDate: day(2024, 11, 1),
	})
	mustCreate(t, s, domain.Transaction{
		GroupID: "other", UserID: "u1", PayerName: "Ken", Amount: decimal.NewFromInt(1),
		Item: "gum", ParentCategory: "Food", Kind: domain.KindExpense, TransactionDate: day(2024, 11, 1),
	})

	updated, err = s.UpdateLatestPayer(ctx, "g1", "Mao")
	if err != nil {
		t.Fatalf("UpdateLatestPayer failed: %v", err)
	}
	if updated == nil || updated.ID != t2.ID || updated.PayerName != "Mao" {
		t.Fatalf("UpdateLatestPayer: expected %s paid by Mao, got %+v", t2.ID, updated)
	}

	deleted, err = s.DeleteLatestTransaction(ctx, "g1")
	if err != nil {
		t.Fatalf("DeleteLatestTransaction failed: %v", err)
	}
	if deleted == nil || deleted.ID != t2.ID {
		t.Fatalf("expected %s deleted first, got %+v", t2.ID, deleted)
	}
	if deleted.PayerName != "Mao" || !deleted.Amount.Equal(decimal.RequireFromString("12.50")) {
		t.Errorf("deleted record mismatch: %+v", deleted)
	}

	deleted, err = s.DeleteLatestTransaction(ctx, "g1")
	if err != nil || deleted == nil || deleted.ID != t1.ID {
		t.Fatalf("expected %s deleted second, got %+v (err %v)", t1.ID, deleted, err)
	}

	deleted, err = s.DeleteLatestTransaction(ctx, "g1")
	if err != nil || deleted != nil {
		t.Fatalf("expected empty group after two deletes, got %+v (err %v)", deleted, err)
	}

	recent, err := s.ListRecentTransactions(ctx, "other", 10)
	if err != nil || len(recent) != 1 {
		t.Fatalf("other group must be untouched: %v (err %v)", recent, err)
	}
}

func testRanges(t *testing.T, s storage.Store) {
	ctx := context.Background()

	dates := []time.Time{day(2024, 10, 31), day(2024, 11, 1), day(2024, 11, 15), day(2024, 11, 30), day(2024, 12, 1)}
	for i, d := range dates {
		mustCreate(t, s, domain.Transaction{
			GroupID: "g1", UserID: "u1", PayerName: "Ken", Amount: decimal.NewFromInt(int64(i + 1)),
			Item: "item", ParentCategory: "Food", Kind: domain.KindExpense, TransactionDate: d,
		})
	}

	from := time.Date(2024, 11, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)
	inRange, err := s.ListTransactionsBetween(ctx, "g1", from, to)
	if err != nil {
		t.Fatalf("ListTransactionsBetween failed: %v", err)
	}
	if len(inRange) != 3 {
		t.Fatalf("ListTransactionsBetween: expected 3, got %d", len(inRange))
	}
	for _, tx := range inRange {
		if tx.TransactionDate.Before(from) || !tx.TransactionDate.Before(to) {
			t.Errorf("transaction dated %v outside [%v, %v)", tx.TransactionDate, from, to)
		}
	}

	recent, err := s.ListRecentTransactions(ctx, "g1", 2)
	if err != nil {
		t.Fatalf("ListRecentTransactions failed: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("ListRecentTransactions: expected 2, got %d", len(recent))
	}
	if !recent[0].TransactionDate.Equal(day(2024, 12, 1)) || !recent[1].TransactionDate.Equal(day(2024, 11, 30)) {
		t.Errorf("ListRecentTransactions: unexpected order %v, %v", recent[0].TransactionDate, recent[1].TransactionDate)
	}
}

func testActivity(t *testing.T, s storage.Store) {
	ctx := context.Background()

	mustCreate(t, s, domain.Transaction{
		GroupID: "g1", UserID: "u1", PayerName: "Ken", Amount: decimal.NewFromInt(5),
		Item: "a", ParentCategory: "Food", Kind: domain.KindExpense, TransactionDate: day(2024, 11, 3),
	})
	mustCreate(t, s, domain.Transaction{
		GroupID: "g1", UserID: "u1", PayerName: "Ken", Amount: decimal.NewFromInt(5),
		Item: "b", ParentCategory: "Food", Kind: domain.KindExpense, TransactionDate: day(2024, 11, 9),
	})
	mustCreate(t, s, domain.Transaction{
		GroupID: "g2", UserID: "u2", PayerName: "Mao", Amount: decimal.NewFromInt(5),
		Item: "c", ParentCategory: "Food", Kind: domain.KindIncome, TransactionDate: day(2024, 11, 20),
	})

	activity, err := s.ListUserGroupActivity(ctx, "u1")
	if err != nil {
		t.Fatalf("ListUserGroupActivity failed: %v", err)
	}
	if len(activity) != 1 || activity[0].GroupID != "g1" {
		t.Fatalf("ListUserGroupActivity: expected only g1, got %+v", activity)
	}
	if !activity[0].LastTransaction.Equal(day(2024, 11, 9)) {
		t.Errorf("last transaction: expected %v, got %v", day(2024, 11, 9), activity[0].LastTransaction)
	}

	has, err := s.HasUserTransactions(ctx, "g1", "u1")
	if err != nil || !has {
		t.Errorf("HasUserTransactions(g1, u1) = %v, %v; want true", has, err)
	}
	has, err = s.HasUserTransactions(ctx, "g2", "u1")
	if err != nil || has {
		t.Errorf("HasUserTransactions(g2, u1) = %v, %v; want false", has, err)
	}
}
