// Package ledger applies extracted entries to a group's ledger and answers
// the aggregate questions asked by the bot and the API.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"ledger-bot/internal/domain"
	"ledger-bot/internal/metrics"
	"ledger-bot/internal/storage"
	"ledger-bot/internal/validator"
)

// neutralHour keeps logical dates clear of day boundaries in any nearby zone.
const neutralHour = 12

type Service struct {
	store storage.Store
	loc   *time.Location
}

// NewService reads ledger rows back in loc, the calendar entries are recorded
// in. A nil loc means time.Local.
func NewService(store storage.Store, loc *time.Location) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{store: store, loc: loc}
}

// localize puts stored dates back on the ledger's calendar. Stores return
// them in UTC or the server zone, which can show the previous day.
func (s *Service) localize(tx *domain.Transaction) {
	if tx == nil {
		return
	}
	tx.TransactionDate = tx.TransactionDate.In(s.loc)
	tx.CreatedAt = tx.CreatedAt.In(s.loc)
}

func (s *Service) localizeAll(txs []domain.Transaction) {
	for i := range txs {
		s.localize(&txs[i])
	}
}

// === nicknames and group settings ===

func (s *Service) SetNickname(ctx context.Context, groupID, userID, nickname string) (*domain.GroupMember, error) {
	m, err := s.store.UpsertNickname(ctx, groupID, userID, nickname)
	if err != nil {
		return nil, fmt.Errorf("set nickname: %w", err)
	}
	slog.Info("Nickname set", "group_id", groupID, "user_id", userID, "nickname", nickname)
	return m, nil
}

// Nickname returns the member's nickname in the group or domain.FallbackNickname.
func (s *Service) Nickname(ctx context.Context, groupID, userID string) (string, error) {
	m, err := s.store.FindMember(ctx, groupID, userID)
	if err != nil {
		return "", fmt.Errorf("get nickname: %w", err)
	}
	if m == nil || m.Nickname == "" {
		return domain.FallbackNickname, nil
	}
	return m.Nickname, nil
}

// KnownNicknames lists the nicknames registered in the group.
func (s *Service) KnownNicknames(ctx context.Context, groupID string) ([]string, error) {
	members, err := s.store.ListGroupMembers(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("list nicknames: %w", err)
	}
	names := make([]string, 0, len(members))
	for _, m := range members {
		if m.Nickname != "" {
			names = append(names, m.Nickname)
		}
	}
	return names, nil
}

func (s *Service) SetGroupName(ctx context.Context, groupID, name string) (*domain.GroupConfig, error) {
	cfg, err := s.store.SetGroupName(ctx, groupID, name)
	if err != nil {
		return nil, fmt.Errorf("set group name: %w", err)
	}
	slog.Info("Group renamed", "group_id", groupID, "name", name)
	return cfg, nil
}

func (s *Service) GroupName(ctx context.Context, groupID string) (string, error) {
	cfg, err := s.store.GetGroupConfig(ctx, groupID)
	if err != nil {
		return "", fmt.Errorf("get group name: %w", err)
	}
	return cfg.DisplayName(), nil
}

// Categories returns the group's vocabulary, creating the default config on first use.
func (s *Service) Categories(ctx context.Context, groupID string) ([]string, error) {
	cfg, err := s.store.GetOrCreateGroupConfig(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("get categories: %w", err)
	}
	return cfg.Categories, nil
}

func (s *Service) SetCategories(ctx context.Context, groupID string, categories []string) (*domain.GroupConfig, error) {
	cfg, err := s.store.SetCategories(ctx, groupID, categories)
	if err != nil {
		return nil, fmt.Errorf("set categories: %w", err)
	}
	slog.Info("Categories updated", "group_id", groupID, "count", len(cfg.Categories))
	return cfg, nil
}

// === mutations ===

// RecordEntries persists entries authored by userID in input order.
// Categories are trusted as validated by extraction.
func (s *Service) RecordEntries(ctx context.Context, groupID, userID string, entries []domain.Entry, now time.Time) ([]domain.Transaction, error) {
	if len(entries) == 0 {
		return nil, nil
	}

	dates := make([]time.Time, len(entries))
	for i, e := range entries {
		d, err := logicalDate(e.Date, now.Location())
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		dates[i] = d
	}

	resolver := s.payerResolver(groupID, userID)
	saved := make([]domain.Transaction, 0, len(entries))
	for i, e := range entries {
		payer, err := resolver(ctx, e.Payer)
		if err != nil {
			return saved, err
		}

		tx := domain.Transaction{
			GroupID:         groupID,
			UserID:          userID,
			PayerName:       payer,
			Amount:          e.Amount.Abs(),
			Item:            e.Item,
			ParentCategory:  e.ParentCategory,
			SubCategory:     e.SubCategory,
			Kind:            domain.ParseKind(e.Kind),
			TransactionDate: dates[i],
		}
		if err := s.store.CreateTransaction(ctx, &tx); err != nil {
			return saved, fmt.Errorf("record entry %d: %w", i, err)
		}
		metrics.TransactionsRecorded.WithLabelValues(string(tx.Kind)).Inc()
		saved = append(saved, tx)
	}

	slog.Info("💾 Transactions recorded", "group_id", groupID, "user_id", userID, "count", len(saved))
	return saved, nil
}

func logicalDate(day string, loc *time.Location) (time.Time, error) {
	d, err := time.ParseInLocation(validator.ISODate, day, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", day, err)
	}
	return time.Date(d.Year(), d.Month(), d.Day(), neutralHour, 0, 0, 0, loc), nil
}

// UndoLast deletes the group's most recently created transaction.
// A nil result means there was nothing to delete.
func (s *Service) UndoLast(ctx context.Context, groupID string) (*domain.Transaction, error) {
	tx, err := s.store.DeleteLatestTransaction(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("undo last: %w", err)
	}
	s.localize(tx)
	if tx != nil {
		slog.Info("🗑️ Transaction deleted", "group_id", groupID, "id", tx.ID, "item", tx.Item)
	}
	return tx, nil
}

// ReassignLastPayer changes who paid for the group's most recently created transaction.
// A nil result means there was nothing to reassign.
func (s *Service) ReassignLastPayer(ctx context.Context, groupID, payerName string) (*domain.Transaction, error) {
	tx, err := s.store.UpdateLatestPayer(ctx, groupID, payerName)
	if err != nil {
		return nil, fmt.Errorf("reassign last payer: %w", err)
	}
	s.localize(tx)
	if tx != nil {
		slog.Info("Payer reassigned", "group_id", groupID, "id", tx.ID, "payer", payerName)
	}
	return tx, nil
}
