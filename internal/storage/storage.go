package storage

import (
	"context"
	"errors"
	"time"

	"ledger-bot/internal/domain"
)

// ErrEmptyCategories is returned when a group's vocabulary would become empty.
var ErrEmptyCategories = errors.New("category list must not be empty")

// Lookups that find nothing return nil and no error.

type GroupStorage interface {
	GetOrCreateGroupConfig(ctx context.Context, groupID string) (*domain.GroupConfig, error)
	GetGroupConfig(ctx context.Context, groupID string) (*domain.GroupConfig, error)
	SetGroupName(ctx context.Context, groupID, name string) (*domain.GroupConfig, error)
	SetCategories(ctx context.Context, groupID string, categories []string) (*domain.GroupConfig, error)
	ListGroupConfigs(ctx context.Context, groupIDs []string) ([]domain.GroupConfig, error)
}

type MemberStorage interface {
	UpsertNickname(ctx context.Context, groupID, userID, nickname string) (*domain.GroupMember, error)
	FindMember(ctx context.Context, groupID, userID string) (*domain.GroupMember, error)
	ListGroupMembers(ctx context.Context, groupID string) ([]domain.GroupMember, error)
	ListUserMemberships(ctx context.Context, userID string) ([]domain.GroupMember, error)
}

type TransactionStorage interface {
	// CreateTransaction fills in tx.ID and tx.CreatedAt.
	CreateTransaction(ctx context.Context, tx *domain.Transaction) error
	// DeleteLatestTransaction removes the most recently created transaction of the group.
	DeleteLatestTransaction(ctx context.Context, groupID string) (*domain.Transaction, error)
	// UpdateLatestPayer rewrites the payer of the most recently created transaction of the group.
	UpdateLatestPayer(ctx context.Context, groupID, payerName string) (*domain.Transaction, error)
	// ListTransactionsBetween returns transactions with from <= TransactionDate < to.
	ListTransactionsBetween(ctx context.Context, groupID string, from, to time.Time) ([]domain.Transaction, error)
	// ListRecentTransactions orders by TransactionDate, newest first.
	ListRecentTransactions(ctx context.Context, groupID string, limit int) ([]domain.Transaction, error)
	ListUserGroupActivity(ctx context.Context, userID string) ([]domain.GroupActivity, error)
	HasUserTransactions(ctx context.Context, groupID, userID string) (bool, error)
}

// Store is everything the ledger needs from a backend.
type Store interface {
	GroupStorage
	MemberStorage
	TransactionStorage
	Close() error
}

// CleanCategories trims labels and drops blanks and duplicates, keeping order.
func CleanCategories(categories []string) ([]string, error) {
	seen := make(map[string]bool, len(categories))
	out := make([]string, 0, len(categories))
	for _, c := range categories {
		c = SanitizeString(c)
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	if len(out) == 0 {
		return nil, ErrEmptyCategories
	}
	return out, nil
}
