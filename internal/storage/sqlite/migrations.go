package sqlite

import "database/sql"

// schema contains the SQL statements to set up the database schema.
// These run on startup to ensure tables exist.
// Money columns are TEXT holding decimal strings; timestamps are Unix milliseconds.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    email TEXT NOT NULL UNIQUE,
    phone TEXT NOT NULL DEFAULT '',
    display_name TEXT NOT NULL,
    password_hash TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS groups (
    id TEXT PRIMARY KEY,
    owner_id TEXT NOT NULL,
    name TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    contribution_amount TEXT NOT NULL,
    contribution_frequency TEXT NOT NULL,
    max_members INTEGER NOT NULL CHECK (max_members >= 2),
    payout_method TEXT NOT NULL,
    status TEXT NOT NULL,
    is_private INTEGER NOT NULL DEFAULT 0,
    requires_approval INTEGER NOT NULL DEFAULT 0,
    current_members INTEGER NOT NULL,
    current_cycle INTEGER NOT NULL,
    total_pool TEXT NOT NULL,
    rotation INTEGER NOT NULL,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL,
    CHECK (current_members <= max_members)
);

CREATE TABLE IF NOT EXISTS group_members (
    group_id TEXT NOT NULL,
    user_id TEXT NOT NULL,
    role TEXT NOT NULL,
    status TEXT NOT NULL,
    paid INTEGER NOT NULL DEFAULT 0,
    position INTEGER,
    is_winner INTEGER NOT NULL DEFAULT 0,
    total_contributed TEXT NOT NULL,
    current_balance TEXT NOT NULL,
    joined_at INTEGER NOT NULL,
    PRIMARY KEY (group_id, user_id),
    FOREIGN KEY (group_id) REFERENCES groups(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS cycles (
    group_id TEXT NOT NULL,
    cycle_number INTEGER NOT NULL,
    winner_user_id TEXT NOT NULL,
    prize_amount TEXT NOT NULL,
    draw_date INTEGER NOT NULL,
    payout_tx_id TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (group_id, cycle_number),
    FOREIGN KEY (group_id) REFERENCES groups(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS cycle_participants (
    group_id TEXT NOT NULL,
    cycle_number INTEGER NOT NULL,
    ordinal INTEGER NOT NULL,
    user_id TEXT NOT NULL,
    PRIMARY KEY (group_id, cycle_number, ordinal),
    FOREIGN KEY (group_id, cycle_number) REFERENCES cycles(group_id, cycle_number) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS wallets (
    user_id TEXT PRIMARY KEY,
    balance TEXT NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS ledger_transactions (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    kind TEXT NOT NULL,
    amount TEXT NOT NULL,
    created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_group_members_user_id ON group_members(user_id);
CREATE INDEX IF NOT EXISTS idx_groups_created_at ON groups(created_at);
CREATE INDEX IF NOT EXISTS idx_ledger_transactions_user_id ON ledger_transactions(user_id);
`

// runMigrations executes the schema setup.
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
