package ledger

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"ledger-bot/internal/domain"
	"ledger-bot/internal/storage/memory"
)

var taipei = time.FixedZone("UTC+8", 8*60*60)

func newTestService() *Service {
	return NewService(memory.New(), time.UTC)
}

func entry(item, amount, category, payer, kind, date string) domain.Entry {
	return domain.Entry{
		Item:           item,
		Amount:         decimal.RequireFromString(amount),
		ParentCategory: category,
		Payer:          payer,
		Kind:           kind,
		Date:           date,
	}
}

func TestNickname(t *testing.T) {
	ctx := context.Background()
	s := newTestService()

	got, err := s.Nickname(ctx, "g1", "u1")
	if err != nil {
		t.Fatalf("Nickname failed: %v", err)
	}
	if got != domain.FallbackNickname {
		t.Errorf("expected fallback %q, got %q", domain.FallbackNickname, got)
	}

	for _, nick := range []string{"Ken", "Kenny"} {
		if _, err := s.SetNickname(ctx, "g1", "u1", nick); err != nil {
			t.Fatalf("SetNickname(%q) failed: %v", nick, err)
		}
		if got, _ := s.Nickname(ctx, "g1", "u1"); got != nick {
			t.Errorf("expected %q, got %q", nick, got)
		}
	}

	names, err := s.KnownNicknames(ctx, "g1")
	if err != nil {
		t.Fatalf("KnownNicknames failed: %v", err)
	}
	if !reflect.DeepEqual(names, []string{"Kenny"}) {
		t.Errorf("expected a single member record, got %v", names)
	}
}

func TestResolvePayer(t *testing.T) {
	ctx := context.Background()
	s := newTestService()
	if _, err := s.SetNickname(ctx, "g1", "u1", "Ken"); err != nil {
		t.Fatalf("SetNickname failed: %v", err)
	}

	tests := []struct {
		name   string
		userID string
		token  string
		want   string
	}{
		{"self resolves to nickname", "u1", "self", "Ken"},
		{"empty resolves to nickname", "u1", "", "Ken"},
		{"other name verbatim", "u1", "Mao", "Mao"},
		{"unknown author falls back", "u2", "self", domain.FallbackNickname},
		{"no fuzzy matching", "u1", "ken", "ken"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ResolvePayer(ctx, "g1", tt.userID, tt.token)
			if err != nil {
				t.Fatalf("ResolvePayer failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("ResolvePayer(%q) = %q, want %q", tt.token, got, tt.want)
			}
		})
	}
}

func TestRecordEntries(t *testing.T) {
	ctx := context.Background()
	s := newTestService()
	if _, err := s.SetNickname(ctx, "g1", "u1", "Ken"); err != nil {
		t.Fatalf("SetNickname failed: %v", err)
	}
	now := time.Date(2024, 11, 15, 23, 30, 0, 0, taipei)

	saved, err := s.RecordEntries(ctx, "g1", "u1", []domain.Entry{
		entry("lunch", "120", "Food", "self", "expense", "2024-11-15"),
		entry("taxi", "35.5", "Transport", "Mao", "expense", "2024-11-14"),
		entry("salary", "1000", "Finance", "", "income", "2024-11-01"),
		entry("odd", "3", "Food", "self", "refund", "2024-11-15"),
	}, now)
	if err != nil {
		t.Fatalf("RecordEntries failed: %v", err)
	}
	if len(saved) != 4 {
		t.Fatalf("expected 4 transactions, got %d", len(saved))
	}

	wantPayers := []string{"Ken", "Mao", "Ken", "Ken"}
	wantKinds := []domain.Kind{domain.KindExpense, domain.KindExpense, domain.KindIncome, domain.KindExpense}
	for i, tx := range saved {
		if tx.PayerName != wantPayers[i] {
			t.Errorf("tx %d payer: expected %q, got %q", i, wantPayers[i], tx.PayerName)
		}
		if tx.Kind != wantKinds[i] {
			t.Errorf("tx %d kind: expected %q, got %q", i, wantKinds[i], tx.Kind)
		}
		if tx.UserID != "u1" || tx.ID == "" {
			t.Errorf("tx %d: unexpected author or id: %+v", i, tx)
		}
	}

	wantDate := time.Date(2024, 11, 14, 12, 0, 0, 0, taipei)
	if !saved[1].TransactionDate.Equal(wantDate) {
		t.Errorf("logical date: expected %v, got %v", wantDate, saved[1].TransactionDate)
	}
}

func TestRecordEntries_BadDateSavesNothing(t *testing.T) {
	ctx := context.Background()
	s := newTestService()
	now := time.Date(2024, 11, 15, 10, 0, 0, 0, time.UTC)

	_, err := s.RecordEntries(ctx, "g1", "u1", []domain.Entry{
		entry("lunch", "10", "Food", "self", "expense", "2024-11-15"),
		entry("dinner", "10", "Food", "self", "expense", "tomorrow"),
	}, now)
	if err == nil {
		t.Fatal("expected an error for an unparsable date")
	}

	recent, _ := s.RecentTransactions(ctx, "g1", 10)
	if len(recent) != 0 {
		t.Errorf("expected nothing saved, got %d", len(recent))
	}
}

func TestUndoLast(t *testing.T) {
	ctx := context.Background()
	s := newTestService()
	now := time.Date(2024, 11, 15, 10, 0, 0, 0, time.UTC)

	first, err := s.RecordEntries(ctx, "g1", "u1", []domain.Entry{entry("t1", "10", "Food", "self", "expense", "2024-11-15")}, now)
	if err != nil {
		t.Fatalf("RecordEntries T1 failed: %v", err)
	}
	second, err := s.RecordEntries(ctx, "g1", "u1", []domain.Entry{entry("t2", "20", "Food", "self", "expense", "2024-11-01")}, now)
	if err != nil {
		t.Fatalf("RecordEntries T2 failed: %v", err)
	}

	for i, wantID := range []string{second[0].ID, first[0].ID} {
		deleted, err := s.UndoLast(ctx, "g1")
		if err != nil {
			t.Fatalf("undo %d failed: %v", i+1, err)
		}
		if deleted == nil || deleted.ID != wantID {
			t.Fatalf("undo %d: expected %s, got %+v", i+1, wantID, deleted)
		}
	}

	deleted, err := s.UndoLast(ctx, "g1")
	if err != nil {
		t.Fatalf("undo on empty group failed: %v", err)
	}
	if deleted != nil {
		t.Errorf("expected nothing to delete, got %+v", deleted)
	}
}

func TestReassignLastPayer(t *testing.T) {
	ctx := context.Background()
	s := newTestService()
	now := time.Date(2024, 11, 15, 10, 0, 0, 0, time.UTC)

	tx, err := s.ReassignLastPayer(ctx, "g1", "Mao")
	if err != nil || tx != nil {
		t.Fatalf("expected nothing to reassign, got %+v (err %v)", tx, err)
	}

	saved, err := s.RecordEntries(ctx, "g1", "u1", []domain.Entry{
		entry("a", "10", "Food", "self", "expense", "2024-11-15"),
		entry("b", "20", "Food", "self", "expense", "2024-11-15"),
	}, now)
	if err != nil {
		t.Fatalf("RecordEntries failed: %v", err)
	}

	tx, err = s.ReassignLastPayer(ctx, "g1", "Mao")
	if err != nil {
		t.Fatalf("ReassignLastPayer failed: %v", err)
	}
	if tx == nil || tx.ID != saved[1].ID || tx.PayerName != "Mao" {
		t.Errorf("expected %s paid by Mao, got %+v", saved[1].ID, tx)
	}
}

func TestGroupSettings(t *testing.T) {
	ctx := context.Background()
	s := newTestService()

	name, err := s.GroupName(ctx, "g1")
	if err != nil {
		t.Fatalf("GroupName failed: %v", err)
	}
	if name != domain.UnnamedGroup {
		t.Errorf("expected %q, got %q", domain.UnnamedGroup, name)
	}
	if _, err := s.SetGroupName(ctx, "g1", "Flatmates"); err != nil {
		t.Fatalf("SetGroupName failed: %v", err)
	}
	if name, _ := s.GroupName(ctx, "g1"); name != "Flatmates" {
		t.Errorf("expected Flatmates, got %q", name)
	}

	cats, err := s.Categories(ctx, "g2")
	if err != nil {
		t.Fatalf("Categories failed: %v", err)
	}
	if !reflect.DeepEqual(cats, domain.DefaultCategories) {
		t.Errorf("expected default categories, got %v", cats)
	}
	if _, err := s.SetCategories(ctx, "g2", []string{" "}); err == nil {
		t.Error("expected blank-only categories to be rejected")
	}
}
