// Package sqlite is a single-file storage backend for small deployments.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"ledger-bot/internal/domain"
	"ledger-bot/internal/storage"
)

var _ storage.Store = (*Store)(nil)

type Store struct {
	db  *sql.DB
	now func() time.Time
}

// New opens (or creates) the database at dbPath and applies the schema.
func New(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One writer at a time; SQLite would answer concurrent writers with SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

// === groups ===

const configColumns = `group_id, name, categories, created_at, updated_at`

func scanConfig(row scanner) (*domain.GroupConfig, error) {
	var cfg domain.GroupConfig
	var cats string
	var created, updated int64
	if err := row.Scan(&cfg.GroupID, &cfg.Name, &cats, &created, &updated); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(cats), &cfg.Categories); err != nil {
		return nil, fmt.Errorf("decode categories: %w", err)
	}
	cfg.CreatedAt = fromNanos(created)
	cfg.UpdatedAt = fromNanos(updated)
	return &cfg, nil
}

func encodeCategories(categories []string) (string, error) {
	b, err := json.Marshal(categories)
	if err != nil {
		return "", fmt.Errorf("encode categories: %w", err)
	}
	return string(b), nil
}

func (s *Store) GetOrCreateGroupConfig(ctx context.Context, groupID string) (*domain.GroupConfig, error) {
	cats, err := encodeCategories(domain.DefaultCategories)
	if err != nil {
		return nil, err
	}
	now := s.now().UnixNano()
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO group_configs (group_id, name, categories, created_at, updated_at)
		 VALUES (?, '', ?, ?, ?) ON CONFLICT (group_id) DO NOTHING`,
		groupID, cats, now, now,
	); err != nil {
		return nil, fmt.Errorf("create group config: %w", err)
	}
	return s.GetGroupConfig(ctx, groupID)
}

func (s *Store) GetGroupConfig(ctx context.Context, groupID string) (*domain.GroupConfig, error) {
	cfg, err := scanConfig(s.db.QueryRowContext(ctx,
		`SELECT `+configColumns+` FROM group_configs WHERE group_id = ?`, groupID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get group config: %w", err)
	}
	return cfg, nil
}

func (s *Store) SetGroupName(ctx context.Context, groupID, name string) (*domain.GroupConfig, error) {
	cats, err := encodeCategories(domain.DefaultCategories)
	if err != nil {
		return nil, err
	}
	now := s.now().UnixNano()
	cfg, err := scanConfig(s.db.QueryRowContext(ctx,
		`INSERT INTO group_configs (group_id, name, categories, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (group_id) DO UPDATE SET name = excluded.name, updated_at = excluded.updated_at
		 RETURNING `+configColumns,
		groupID, name, cats, now, now))
	if err != nil {
		return nil, fmt.Errorf("set group name: %w", err)
	}
	return cfg, nil
}

func (s *Store) SetCategories(ctx context.Context, groupID string, categories []string) (*domain.GroupConfig, error) {
	clean, err := storage.CleanCategories(categories)
	if err != nil {
		return nil, err
	}
	cats, err := encodeCategories(clean)
	if err != nil {
		return nil, err
	}
	now := s.now().UnixNano()
	cfg, err := scanConfig(s.db.QueryRowContext(ctx,
		`INSERT INTO group_configs (group_id, name, categories, created_at, updated_at)
		 VALUES (?, '', ?, ?, ?)
		 ON CONFLICT (group_id) DO UPDATE SET categories = excluded.categories, updated_at = excluded.updated_at
		 RETURNING `+configColumns,
		groupID, cats, now, now))
	if err != nil {
		return nil, fmt.Errorf("set categories: %w", err)
	}
	return cfg, nil
}

func (s *Store) ListGroupConfigs(ctx context.Context, groupIDs []string) ([]domain.GroupConfig, error) {
	if len(groupIDs) == 0 {
		return nil, nil
	}
	args := make([]any, len(groupIDs))
	for i, id := range groupIDs {
		args[i] = id
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(groupIDs)), ",")

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+configColumns+` FROM group_configs WHERE group_id IN (`+placeholders+`) ORDER BY group_id`, args...)
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

// === members ===

const memberColumns = `id, group_id, user_id, nickname, created_at, updated_at`

func scanMember(row scanner) (*domain.GroupMember, error) {
	var m domain.GroupMember
	var created, updated int64
	if err := row.Scan(&m.ID, &m.GroupID, &m.UserID, &m.Nickname, &created, &updated); err != nil {
		return nil, err
	}
	m.CreatedAt = fromNanos(created)
	m.UpdatedAt = fromNanos(updated)
	return &m, nil
}

func (s *Store) UpsertNickname(ctx context.Context, groupID, userID, nickname string) (*domain.GroupMember, error) {
	now := s.now().UnixNano()
	m, err := scanMember(s.db.QueryRowContext(ctx,
		`INSERT INTO group_members (id, group_id, user_id, nickname, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (group_id, user_id) DO UPDATE SET nickname = excluded.nickname, updated_at = excluded.updated_at
		 RETURNING `+memberColumns,
		uuid.NewString(), groupID, userID, nickname, now, now))
	if err != nil {
		return nil, fmt.Errorf("upsert nickname: %w", err)
	}
	return m, nil
}

func (s *Store) FindMember(ctx context.Context, groupID, userID string) (*domain.GroupMember, error) {
	m, err := scanMember(s.db.QueryRowContext(ctx,
		`SELECT `+memberColumns+` FROM group_members WHERE group_id = ? AND user_id = ?`, groupID, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find member: %w", err)
	}
	return m, nil
}

func (s *Store) ListGroupMembers(ctx context.Context, groupID string) ([]domain.GroupMember, error) {
	return s.queryMembers(ctx,
		`SELECT `+memberColumns+` FROM group_members WHERE group_id = ? ORDER BY created_at, id`, groupID)
}

func (s *Store) ListUserMemberships(ctx context.Context, userID string) ([]domain.GroupMember, error) {
	return s.queryMembers(ctx,
		`SELECT `+memberColumns+` FROM group_members WHERE user_id = ? ORDER BY group_id`, userID)
}

func (s *Store) queryMembers(ctx context.Context, query, arg string) ([]domain.GroupMember, error) {
	rows, err := s.db.QueryContext(ctx, query, arg)
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

// === transactions ===

const txColumns = `id, group_id, user_id, payer_name, amount, item, parent_category,
	sub_category, kind, transaction_date, created_at`

const latestTxSeq = `(
		SELECT seq FROM transactions
		WHERE group_id = ?
		ORDER BY created_at DESC, seq DESC
		LIMIT 1
	)`

func scanTransaction(row scanner) (*domain.Transaction, error) {
	var tx domain.Transaction
	var amount, kind string
	var date, created int64
	err := row.Scan(&tx.ID, &tx.GroupID, &tx.UserID, &tx.PayerName, &amount, &tx.Item,
		&tx.ParentCategory, &tx.SubCategory, &kind, &date, &created)
	if err != nil {
		return nil, err
	}
	tx.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	tx.Kind = domain.ParseKind(kind)
	tx.TransactionDate = fromNanos(date)
	tx.CreatedAt = fromNanos(created)
	return &tx, nil
}

func (s *Store) CreateTransaction(ctx context.Context, tx *domain.Transaction) error {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.PayerName == "" {
		tx.PayerName = domain.UnknownPayer
	}
	tx.Amount = tx.Amount.Round(2)
	tx.CreatedAt = s.now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO transactions
			(id, group_id, user_id, payer_name, amount, item, parent_category, sub_category, kind, transaction_date, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID, tx.GroupID, tx.UserID, tx.PayerName, tx.Amount.StringFixed(2), tx.Item,
		tx.ParentCategory, tx.SubCategory, string(tx.Kind), tx.TransactionDate.UnixNano(), tx.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func (s *Store) DeleteLatestTransaction(ctx context.Context, groupID string) (*domain.Transaction, error) {
	tx, err := scanTransaction(s.db.QueryRowContext(ctx,
		`DELETE FROM transactions WHERE seq = `+latestTxSeq+` RETURNING `+txColumns, groupID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("delete latest transaction: %w", err)
	}
	return tx, nil
}

func (s *Store) UpdateLatestPayer(ctx context.Context, groupID, payerName string) (*domain.Transaction, error) {
	tx, err := scanTransaction(s.db.QueryRowContext(ctx,
		`UPDATE transactions SET payer_name = ? WHERE seq = `+latestTxSeq+` RETURNING `+txColumns,
		payerName, groupID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("update latest payer: %w", err)
	}
	return tx, nil
}

func (s *Store) ListTransactionsBetween(ctx context.Context, groupID string, from, to time.Time) ([]domain.Transaction, error) {
	return s.queryTransactions(ctx,
		`SELECT `+txColumns+` FROM transactions
		 WHERE group_id = ? AND transaction_date >= ? AND transaction_date < ?
		 ORDER BY transaction_date, seq`,
		groupID, from.UnixNano(), to.UnixNano())
}

func (s *Store) ListRecentTransactions(ctx context.Context, groupID string, limit int) ([]domain.Transaction, error) {
	return s.queryTransactions(ctx,
		`SELECT `+txColumns+` FROM transactions
		 WHERE group_id = ?
		 ORDER BY transaction_date DESC, seq DESC
		 LIMIT ?`,
		groupID, limit)
}

func (s *Store) queryTransactions(ctx context.Context, query string, args ...any) ([]domain.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
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
	return txs, rows.Err()
}

func (s *Store) ListUserGroupActivity(ctx context.Context, userID string) ([]domain.GroupActivity, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT group_id, MAX(transaction_date) FROM transactions
		 WHERE user_id = ?
		 GROUP BY group_id
		 ORDER BY group_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("query group activity: %w", err)
	}
	defer rows.Close()

	var activity []domain.GroupActivity
	for rows.Next() {
		var a domain.GroupActivity
		var last int64
		if err := rows.Scan(&a.GroupID, &last); err != nil {
			return nil, fmt.Errorf("scan group activity: %w", err)
		}
		a.LastTransaction = fromNanos(last)
		activity = append(activity, a)
	}
	return activity, rows.Err()
}

func (s *Store) HasUserTransactions(ctx context.Context, groupID, userID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM transactions WHERE group_id = ? AND user_id = ?)`,
		groupID, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check user transactions: %w", err)
	}
	return exists, nil
}
