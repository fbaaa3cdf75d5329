package ledger

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"ledger-bot/internal/domain"
	"ledger-bot/internal/render"
	"ledger-bot/internal/storage/sqlite"
	"ledger-bot/internal/validator"
)

// UTC+13 puts midday of the logical date on the previous UTC day.
func TestStoredDatesKeepTheirDay(t *testing.T) {
	ctx := context.Background()
	zone := time.FixedZone("UTC+13", 13*60*60)

	store, err := sqlite.New(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer store.Close()
	s := NewService(store, zone)

	now := time.Date(2025, 1, 15, 9, 0, 0, 0, zone)
	saved, err := s.RecordEntries(ctx, "g1", "u1", []domain.Entry{entry("x", "5", "Food", "", "expense", "2025-01-15")}, now)
	if err != nil {
		t.Fatalf("RecordEntries failed: %v", err)
	}
	if got := saved[0].TransactionDate.Format(validator.ISODate); got != "2025-01-15" {
		t.Fatalf("saved day = %s", got)
	}

	recent, err := s.RecentTransactions(ctx, "g1", 5)
	if err != nil {
		t.Fatalf("RecentTransactions failed: %v", err)
	}
	if got := recent[0].TransactionDate.Format(validator.ISODate); got != "2025-01-15" {
		t.Errorf("reloaded day = %s, want 2025-01-15", got)
	}

	d, err := s.Dashboard(ctx, "g1", now, ChatRecentLimit)
	if err != nil {
		t.Fatalf("Dashboard failed: %v", err)
	}
	if card := render.Dashboard(d, ""); !strings.Contains(card, "2025-01-15") || strings.Contains(card, "2025-01-14") {
		t.Errorf("dashboard shows the wrong day:\n%s", card)
	}

	undone, err := s.UndoLast(ctx, "g1")
	if err != nil || undone == nil {
		t.Fatalf("UndoLast = %v, %v", undone, err)
	}
	if receipt := render.Undone(undone); !strings.Contains(receipt, "(2025-01-15)") {
		t.Errorf("undo receipt = %q", receipt)
	}
}
