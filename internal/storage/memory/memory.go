// Package memory keeps the ledger in process memory. Used by tests and local runs.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"ledger-bot/internal/domain"
	"ledger-bot/internal/storage"
)

var _ storage.Store = (*Store)(nil)

type memberKey struct {
	groupID string
	userID  string
}

type txRecord struct {
	tx  domain.Transaction
	seq int64
}

type Store struct {
	mu      sync.RWMutex
	now     func() time.Time
	configs map[string]*domain.GroupConfig
	members map[memberKey]*domain.GroupMember
	txs     []*txRecord
	seq     int64
}

func New() *Store {
	return NewWithClock(time.Now)
}

// NewWithClock lets tests control creation timestamps.
func NewWithClock(now func() time.Time) *Store {
	return &Store{
		now:     now,
		configs: make(map[string]*domain.GroupConfig),
		members: make(map[memberKey]*domain.GroupMember),
	}
}

func (s *Store) Close() error { return nil }

// === GroupStorage ===

func (s *Store) GetOrCreateGroupConfig(ctx context.Context, groupID string) (*domain.GroupConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyConfig(s.configLocked(groupID)), nil
}

func (s *Store) GetGroupConfig(ctx context.Context, groupID string) (*domain.GroupConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, ok := s.configs[groupID]
	if !ok {
		return nil, nil
	}
	return copyConfig(cfg), nil
}

func (s *Store) SetGroupName(ctx context.Context, groupID, name string) (*domain.GroupConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg := s.configLocked(groupID)
	cfg.Name = name
	cfg.UpdatedAt = s.now()
	return copyConfig(cfg), nil
}

func (s *Store) SetCategories(ctx context.Context, groupID string, categories []string) (*domain.GroupConfig, error) {
	clean, err := storage.CleanCategories(categories)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg := s.configLocked(groupID)
	cfg.Categories = clean
	cfg.UpdatedAt = s.now()
	return copyConfig(cfg), nil
}

func (s *Store) ListGroupConfigs(ctx context.Context, groupIDs []string) ([]domain.GroupConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.GroupConfig
	for _, id := range groupIDs {
		if cfg, ok := s.configs[id]; ok {
			out = append(out, *copyConfig(cfg))
		}
	}
	return out, nil
}

func (s *Store) configLocked(groupID string) *domain.GroupConfig {
	cfg, ok := s.configs[groupID]
	if !ok {
		now := s.now()
		cfg = &domain.GroupConfig{
			GroupID:    groupID,
			Categories: append([]string(nil), domain.DefaultCategories...),
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		s.configs[groupID] = cfg
	}
	return cfg
}

func copyConfig(cfg *domain.GroupConfig) *domain.GroupConfig {
	c := *cfg
	c.Categories = append([]string(nil), cfg.Categories...)
	return &c
}

// === MemberStorage ===

func (s *Store) UpsertNickname(ctx context.Context, groupID, userID, nickname string) (*domain.GroupMember, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := memberKey{groupID, userID}
	now := s.now()
	m, ok := s.members[key]
	if !ok {
		m = &domain.GroupMember{
			ID:        uuid.NewString(),
			GroupID:   groupID,
			UserID:    userID,
			CreatedAt: now,
		}
		s.members[key] = m
	}
	m.Nickname = nickname
	m.UpdatedAt = now
	out := *m
	return &out, nil
}

func (s *Store) FindMember(ctx context.Context, groupID, userID string) (*domain.GroupMember, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.members[memberKey{groupID, userID}]
	if !ok {
		return nil, nil
	}
	out := *m
	return &out, nil
}

func (s *Store) ListGroupMembers(ctx context.Context, groupID string) ([]domain.GroupMember, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.GroupMember
	for _, m := range s.members {
		if m.GroupID == groupID {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) ListUserMemberships(ctx context.Context, userID string) ([]domain.GroupMember, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.GroupMember
	for _, m := range s.members {
		if m.UserID == userID {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GroupID < out[j].GroupID })
	return out, nil
}

// === TransactionStorage ===

func (s *Store) CreateTransaction(ctx context.Context, tx *domain.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.PayerName == "" {
		tx.PayerName = domain.UnknownPayer
	}
	tx.Amount = tx.Amount.Round(2)
	tx.CreatedAt = s.now()
	s.seq++
	s.txs = append(s.txs, &txRecord{tx: *tx, seq: s.seq})
	return nil
}

func (s *Store) DeleteLatestTransaction(ctx context.Context, groupID string) (*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.latestLocked(groupID)
	if idx < 0 {
		return nil, nil
	}
	deleted := s.txs[idx].tx
	s.txs = append(s.txs[:idx], s.txs[idx+1:]...)
	return &deleted, nil
}

func (s *Store) UpdateLatestPayer(ctx context.Context, groupID, payerName string) (*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.latestLocked(groupID)
	if idx < 0 {
		return nil, nil
	}
	s.txs[idx].tx.PayerName = payerName
	updated := s.txs[idx].tx
	return &updated, nil
}

func (s *Store) latestLocked(groupID string) int {
	idx := -1
	for i, r := range s.txs {
		if r.tx.GroupID != groupID {
			continue
		}
		if idx < 0 || newer(r, s.txs[idx]) {
			idx = i
		}
	}
	return idx
}

func newer(a, b *txRecord) bool {
	if !a.tx.CreatedAt.Equal(b.tx.CreatedAt) {
		return a.tx.CreatedAt.After(b.tx.CreatedAt)
	}
	return a.seq > b.seq
}

func (s *Store) ListTransactionsBetween(ctx context.Context, groupID string, from, to time.Time) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Transaction
	for _, r := range s.txs {
		d := r.tx.TransactionDate
		if r.tx.GroupID == groupID && !d.Before(from) && d.Before(to) {
			out = append(out, r.tx)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].TransactionDate.Before(out[j].TransactionDate) })
	return out, nil
}

func (s *Store) ListRecentTransactions(ctx context.Context, groupID string, limit int) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var recs []*txRecord
	for _, r := range s.txs {
		if r.tx.GroupID == groupID {
			recs = append(recs, r)
		}
	}
	sort.Slice(recs, func(i, j int) bool {
		a, b := recs[i], recs[j]
		if !a.tx.TransactionDate.Equal(b.tx.TransactionDate) {
			return a.tx.TransactionDate.After(b.tx.TransactionDate)
		}
		return a.seq > b.seq
	})
	if limit > 0 && len(recs) > limit {
		recs = recs[:limit]
	}
	out := make([]domain.Transaction, len(recs))
	for i, r := range recs {
		out[i] = r.tx
	}
	return out, nil
}

func (s *Store) ListUserGroupActivity(ctx context.Context, userID string) ([]domain.GroupActivity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	latest := make(map[string]time.Time)
	for _, r := range s.txs {
		if r.tx.UserID != userID {
			continue
		}
		if cur, ok := latest[r.tx.GroupID]; !ok || r.tx.TransactionDate.After(cur) {
			latest[r.tx.GroupID] = r.tx.TransactionDate
		}
	}
	out := make([]domain.GroupActivity, 0, len(latest))
	for g, d := range latest {
		out = append(out, domain.GroupActivity{GroupID: g, LastTransaction: d})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GroupID < out[j].GroupID })
	return out, nil
}

func (s *Store) HasUserTransactions(ctx context.Context, groupID, userID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.txs {
		if r.tx.GroupID == groupID && r.tx.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}
