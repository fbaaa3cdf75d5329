package sqlite

import "database/sql"

// Timestamps are unix nanoseconds; amounts are decimal strings.
const schema = `
CREATE TABLE IF NOT EXISTS group_configs (
    group_id   TEXT PRIMARY KEY,
    name       TEXT NOT NULL DEFAULT '',
    categories TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS group_members (
    id         TEXT PRIMARY KEY,
    group_id   TEXT NOT NULL,
    user_id    TEXT NOT NULL,
    nickname   TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL,
    UNIQUE (group_id, user_id)
);

CREATE TABLE IF NOT EXISTS transactions (
    seq              INTEGER PRIMARY KEY AUTOINCREMENT,
    id               TEXT NOT NULL UNIQUE,
    group_id         TEXT NOT NULL,
    user_id          TEXT NOT NULL,
    payer_name       TEXT NOT NULL,
    amount           TEXT NOT NULL,
    item             TEXT NOT NULL,
    parent_category  TEXT NOT NULL,
    sub_category     TEXT NOT NULL DEFAULT '',
    kind             TEXT NOT NULL CHECK (kind IN ('expense', 'income')),
    transaction_date INTEGER NOT NULL,
    created_at       INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_group_members_user_id ON group_members(user_id);
CREATE INDEX IF NOT EXISTS idx_transactions_group_created ON transactions(group_id, created_at);
CREATE INDEX IF NOT EXISTS idx_transactions_group_date ON transactions(group_id, transaction_date);
CREATE INDEX IF NOT EXISTS idx_transactions_user_group ON transactions(user_id, group_id);
`

func runMigrations(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
