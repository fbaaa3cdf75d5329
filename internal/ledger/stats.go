package ledger

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"ledger-bot/internal/domain"
)

const (
	// ChatRecentLimit is how many transactions the chat dashboard lists.
	ChatRecentLimit = 5
	// DefaultRecentLimit applies to API callers that give no limit.
	DefaultRecentLimit = 20
	MaxRecentLimit     = 100
)

// MonthWindow returns [first day of now's month, first day of the next month)
// in now's location.
func MonthWindow(now time.Time) (from, to time.Time) {
	from = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	return from, from.AddDate(0, 1, 0)
}

func (s *Service) monthTransactions(ctx context.Context, groupID string, now time.Time) ([]domain.Transaction, error) {
	from, to := MonthWindow(now)
	txs, err := s.store.ListTransactionsBetween(ctx, groupID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list month transactions: %w", err)
	}
	s.localizeAll(txs)
	return txs, nil
}

// MonthlyStats sums income and expense of the calendar month containing now.
func (s *Service) MonthlyStats(ctx context.Context, groupID string, now time.Time) (domain.MonthlyStats, error) {
	txs, err := s.monthTransactions(ctx, groupID, now)
	if err != nil {
		return domain.MonthlyStats{}, err
	}

	income, expense := decimal.Zero, decimal.Zero
	for _, tx := range txs {
		if tx.Kind == domain.KindIncome {
			income = income.Add(tx.Amount)
		} else {
			expense = expense.Add(tx.Amount)
		}
	}
	return domain.MonthlyStats{
		Income:  income,
		Expense: expense,
		Balance: income.Sub(expense),
	}, nil
}

// MemberMonthlyStats totals the month's expenses per payer, largest first.
func (s *Service) MemberMonthlyStats(ctx context.Context, groupID string, now time.Time) ([]domain.MemberStat, error) {
	txs, err := s.monthTransactions(ctx, groupID, now)
	if err != nil {
		return nil, err
	}

	index := make(map[string]int)
	stats := []domain.MemberStat{}
	for _, tx := range txs {
		if tx.Kind != domain.KindExpense {
			continue
		}
		i, ok := index[tx.PayerName]
		if !ok {
			i = len(stats)
			index[tx.PayerName] = i
			stats = append(stats, domain.MemberStat{PayerName: tx.PayerName, Total: decimal.Zero})
		}
		stats[i].Total = stats[i].Total.Add(tx.Amount)
	}

	slices.SortStableFunc(stats, func(a, b domain.MemberStat) int {
		return b.Total.Cmp(a.Total)
	})
	return stats, nil
}

// RecentTransactions lists up to limit transactions by logical date, newest first.
// limit is clamped to [1, MaxRecentLimit].
func (s *Service) RecentTransactions(ctx context.Context, groupID string, limit int) ([]domain.Transaction, error) {
	limit = min(max(limit, 1), MaxRecentLimit)
	txs, err := s.store.ListRecentTransactions(ctx, groupID, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent transactions: %w", err)
	}
	if txs == nil {
		txs = []domain.Transaction{}
	}
	s.localizeAll(txs)
	return txs, nil
}

// Dashboard gathers everything the group overview shows. recentLimit <= 0
// leaves the recent list out.
func (s *Service) Dashboard(ctx context.Context, groupID string, now time.Time, recentLimit int) (*domain.Dashboard, error) {
	d := &domain.Dashboard{GroupID: groupID}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		name, err := s.GroupName(ctx, groupID)
		d.GroupName = name
		return err
	})
	g.Go(func() error {
		overview, err := s.MonthlyStats(ctx, groupID, now)
		d.Overview = overview
		return err
	})
	g.Go(func() error {
		members, err := s.MemberMonthlyStats(ctx, groupID, now)
		d.Members = members
		return err
	})
	if recentLimit > 0 {
		g.Go(func() error {
			recent, err := s.RecentTransactions(ctx, groupID, recentLimit)
			d.Recent = recent
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("build dashboard: %w", err)
	}
	return d, nil
}

// UserGroups lists every group the user wrote in or holds a nickname in,
// most recently active first; groups without transactions come last.
func (s *Service) UserGroups(ctx context.Context, userID string) ([]domain.GroupSummary, error) {
	activity, err := s.store.ListUserGroupActivity(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list group activity: %w", err)
	}
	memberships, err := s.store.ListUserMemberships(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}

	byGroup := make(map[string]*domain.GroupSummary)
	var ids []string
	summary := func(groupID string) *domain.GroupSummary {
		gs, ok := byGroup[groupID]
		if !ok {
			gs = &domain.GroupSummary{GroupID: groupID, GroupName: domain.UnnamedGroup, Nickname: domain.FallbackNickname}
			byGroup[groupID] = gs
			ids = append(ids, groupID)
		}
		return gs
	}

	for _, a := range activity {
		last := a.LastTransaction.In(s.loc)
		summary(a.GroupID).LastTransactionDate = &last
	}
	for _, m := range memberships {
		if m.Nickname != "" {
			summary(m.GroupID).Nickname = m.Nickname
		}
	}

	configs, err := s.store.ListGroupConfigs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("list group configs: %w", err)
	}
	for _, cfg := range configs {
		if gs, ok := byGroup[cfg.GroupID]; ok {
			gs.GroupName = cfg.DisplayName()
		}
	}

	groups := make([]domain.GroupSummary, 0, len(ids))
	for _, id := range ids {
		groups = append(groups, *byGroup[id])
	}
	slices.SortStableFunc(groups, func(a, b domain.GroupSummary) int {
		switch {
		case a.LastTransactionDate == nil && b.LastTransactionDate == nil:
			return cmp.Compare(a.GroupID, b.GroupID)
		case a.LastTransactionDate == nil:
			return 1
		case b.LastTransactionDate == nil:
			return -1
		}
		if c := b.LastTransactionDate.Compare(*a.LastTransactionDate); c != 0 {
			return c
		}
		return cmp.Compare(a.GroupID, b.GroupID)
	})
	return groups, nil
}

// IsUserInGroup reports whether the user holds a nickname in the group or has
// written any of its transactions.
func (s *Service) IsUserInGroup(ctx context.Context, userID, groupID string) (bool, error) {
	m, err := s.store.FindMember(ctx, groupID, userID)
	if err != nil {
		return false, fmt.Errorf("find member: %w", err)
	}
	if m != nil {
		return true, nil
	}
	ok, err := s.store.HasUserTransactions(ctx, groupID, userID)
	if err != nil {
		return false, fmt.Errorf("check transactions: %w", err)
	}
	return ok, nil
}
