package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"ledger-bot/internal/domain"
	"ledger-bot/internal/storage"
)

var _ storage.Store = (*Storage)(nil)

type Storage struct {
	db *pgxpool.Pool
}

func NewStorage(db *pgxpool.Pool) *Storage {
	return &Storage{db: db}
}

func (s *Storage) Close() error {
	s.db.Close()
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

// === GroupStorage ===

const configColumns = `group_id, COALESCE(name, ''), categories, created_at, updated_at`

func scanConfig(row scanner) (*domain.GroupConfig, error) {
	var cfg domain.GroupConfig
	if err := row.Scan(&cfg.GroupID, &cfg.Name, &cfg.Categories, &cfg.CreatedAt, &cfg.UpdatedAt); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (s *Storage) GetOrCreateGroupConfig(ctx context.Context, groupID string) (*domain.GroupConfig, error) {
	cfg, err := scanConfig(s.db.QueryRow(ctx, `
		INSERT INTO group_configs (group_id, categories)
		VALUES ($1, $2)
		ON CONFLICT (group_id) DO UPDATE SET group_id = EXCLUDED.group_id
		RETURNING `+configColumns,
		groupID, domain.DefaultCategories))
	if err != nil {
		return nil, fmt.Errorf("create or get group config: %w", err)
	}
	return cfg, nil
}

func (s *Storage) GetGroupConfig(ctx context.Context, groupID string) (*domain.GroupConfig, error) {
	cfg, err := scanConfig(s.db.QueryRow(ctx,
		`SELECT `+configColumns+` FROM group_configs WHERE group_id = $1`, groupID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find group config: %w", err)
	}
	return cfg, nil
}

func (s *Storage) SetGroupName(ctx context.Context, groupID, name string) (*domain.GroupConfig, error) {
	cfg, err := scanConfig(s.db.QueryRow(ctx, `
		INSERT INTO group_configs (group_id, name, categories)
		VALUES ($1, $2, $3)
		ON CONFLICT (group_id) DO UPDATE SET name = EXCLUDED.name, updated_at = now()
		RETURNING `+configColumns,
		groupID, name, domain.DefaultCategories))
	if err != nil {
		return nil, fmt.Errorf("set group name: %w", err)
	}
	slog.Debug("Group renamed", "group_id", groupID, "name", name)
	return cfg, nil
}

func (s *Storage) SetCategories(ctx context.Context, groupID string, categories []string) (*domain.GroupConfig, error) {
	clean, err := storage.CleanCategories(categories)
	if err != nil {
		return nil, err
	}
	cfg, err := scanConfig(s.db.QueryRow(ctx, `
		INSERT INTO group_configs (group_id, categories)
		VALUES ($1, $2)
		ON CONFLICT (group_id) DO UPDATE SET categories = EXCLUDED.categories, updated_at = now()
		RETURNING `+configColumns,
		groupID, clean))
	if err != nil {
		return nil, fmt.Errorf("set categories: %w", err)
	}
	return cfg, nil
}

func (s *Storage) ListGroupConfigs(ctx context.Context, groupIDs []string) ([]domain.GroupConfig, error) {
	if len(groupIDs) == 0 {
		return nil, nil
	}
	rows, err := s.db.Query(ctx,
		`SELECT `+configColumns+` FROM group_configs WHERE group_id = ANY($1) ORDER BY group_id`, groupIDs)
	if err != nil {
		return nil, fmt.Errorf("list group configs: %w", err)
	}
	defer rows.Close()

	var configs []domain.GroupConfig
	for rows.Next() {
		cfg, err := scanConfig(rows)
		if err != nil {
			return nil, fmt.Errorf("scan group config: %w", err)
		}
		configs = append(configs, *cfg)
	}
	return configs, rows.Err()
}

// === MemberStorage ===

const memberColumns = `id::text, group_id, user_id, nickname, created_at, updated_at`

func scanMember(row scanner) (*domain.GroupMember, error) {
	var m domain.GroupMember
	if err := row.Scan(&m.ID, &m.GroupID, &m.UserID, &m.Nickname, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *Storage) UpsertNickname(ctx context.Context, groupID, userID, nickname string) (*domain.GroupMember, error) {
	m, err := scanMember(s.db.QueryRow(ctx, `
		INSERT INTO group_members (id, group_id, user_id, nickname)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (group_id, user_id) DO UPDATE SET nickname = EXCLUDED.nickname, updated_at = now()
		RETURNING `+memberColumns,
		uuid.NewString(), groupID, userID, nickname))
	if err != nil {
		return nil, fmt.Errorf("upsert nickname: %w", err)
	}
	return m, nil
}

func (s *Storage) FindMember(ctx context.Context, groupID, userID string) (*domain.GroupMember, error) {
	m, err := scanMember(s.db.QueryRow(ctx,
		`SELECT `+memberColumns+` FROM group_members WHERE group_id = $1 AND user_id = $2`, groupID, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find member: %w", err)
	}
	return m, nil
}

func (s *Storage) ListGroupMembers(ctx context.Context, groupID string) ([]domain.GroupMember, error) {
	return s.queryMembers(ctx,
		`SELECT `+memberColumns+` FROM group_members WHERE group_id = $1 ORDER BY created_at`, groupID)
}

func (s *Storage) ListUserMemberships(ctx context.Context, userID string) ([]domain.GroupMember, error) {
	return s.queryMembers(ctx,
		`SELECT `+memberColumns+` FROM group_members WHERE user_id = $1 ORDER BY group_id`, userID)
}

func (s *Storage) queryMembers(ctx context.Context, query string, arg string) ([]domain.GroupMember, error) {
	rows, err := s.db.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("query members: %w", err)
	}
	defer rows.Close()

	var members []domain.GroupMember
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, *m)
	}
	return members, rows.Err()
}

// === TransactionStorage ===

const txColumns = `id::text, group_id, user_id, payer_name, amount::text, item, parent_category,
	sub_category, kind, transaction_date, created_at`

// latestTxID picks the most recently created row of group $1.
const latestTxID = `(
		SELECT id FROM transactions
		WHERE group_id = $1
		ORDER BY created_at DESC, seq DESC
		LIMIT 1
	)`

func scanTransaction(row scanner) (*domain.Transaction, error) {
	var tx domain.Transaction
	var amount, kind string
	err := row.Scan(&tx.ID, &tx.GroupID, &tx.UserID, &tx.PayerName, &amount, &tx.Item,
		&tx.ParentCategory, &tx.SubCategory, &kind, &tx.TransactionDate, &tx.CreatedAt)
	if err != nil {
		return nil, err
	}
	tx.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	tx.Kind = domain.ParseKind(kind)
	return &tx, nil
}

func (s *Storage) CreateTransaction(ctx context.Context, tx *domain.Transaction) error {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.PayerName == "" {
		tx.PayerName = domain.UnknownPayer
	}
	tx.Amount = tx.Amount.Round(2)

	err := s.db.QueryRow(ctx, `
		INSERT INTO transactions
			(id, group_id, user_id, payer_name, amount, item, parent_category, sub_category, kind, transaction_date)
		VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, $8, $9, $10)
		RETURNING created_at
	`, tx.ID, tx.GroupID, tx.UserID, tx.PayerName, tx.Amount.StringFixed(2), tx.Item,
		tx.ParentCategory, tx.SubCategory, string(tx.Kind), tx.TransactionDate).Scan(&tx.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func (s *Storage) DeleteLatestTransaction(ctx context.Context, groupID string) (*domain.Transaction, error) {
	tx, err := scanTransaction(s.db.QueryRow(ctx, `
		DELETE FROM transactions
		WHERE id = `+latestTxID+`
		RETURNING `+txColumns, groupID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("delete latest transaction: %w", err)
	}
	return tx, nil
}

func (s *Storage) UpdateLatestPayer(ctx context.Context, groupID, payerName string) (*domain.Transaction, error) {
	tx, err := scanTransaction(s.db.QueryRow(ctx, `
		UPDATE transactions SET payer_name = $2
		WHERE id = `+latestTxID+`
		RETURNING `+txColumns, groupID, payerName))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("update latest payer: %w", err)
	}
	return tx, nil
}

func (s *Storage) ListTransactionsBetween(ctx context.Context, groupID string, from, to time.Time) ([]domain.Transaction, error) {
	return s.queryTransactions(ctx, `
		SELECT `+txColumns+`
		FROM transactions
		WHERE group_id = $1 AND transaction_date >= $2 AND transaction_date < $3
		ORDER BY transaction_date, seq
	`, groupID, from, to)
}

func (s *Storage) ListRecentTransactions(ctx context.Context, groupID string, limit int) ([]domain.Transaction, error) {
	return s.queryTransactions(ctx, `
		SELECT `+txColumns+`
		FROM transactions
		WHERE group_id = $1
		ORDER BY transaction_date DESC, seq DESC
		LIMIT $2
	`, groupID, limit)
}

func (s *Storage) queryTransactions(ctx context.Context, query string, args ...any) ([]domain.Transaction, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var txs []domain.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txs = append(txs, *tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return txs, nil
}

func (s *Storage) ListUserGroupActivity(ctx context.Context, userID string) ([]domain.GroupActivity, error) {
	rows, err := s.db.Query(ctx, `
		SELECT group_id, MAX(transaction_date)
		FROM transactions
		WHERE user_id = $1
		GROUP BY group_id
		ORDER BY group_id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query group activity: %w", err)
	}
	defer rows.Close()

	var activity []domain.GroupActivity
	for rows.Next() {
		var a domain.GroupActivity
		if err := rows.Scan(&a.GroupID, &a.LastTransaction); err != nil {
			return nil, fmt.Errorf("scan group activity: %w", err)
		}
		activity = append(activity, a)
	}
	return activity, rows.Err()
}

func (s *Storage) HasUserTransactions(ctx context.Context, groupID, userID string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM transactions WHERE group_id = $1 AND user_id = $2)
	`, groupID, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check user transactions: %w", err)
	}
	return exists, nil
}
