package sqlite

import (
	"context"
	"fmt"
)

// schemaStatements bootstraps the database. Statements are idempotent so
// the service can run them on every start.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE COLLATE NOCASE,
		display_name TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS groups (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		theme TEXT NOT NULL DEFAULT '',
		creator_id TEXT NOT NULL REFERENCES users(id),
		scheduled_time TEXT,
		duration_minutes INTEGER NOT NULL DEFAULT 60 CHECK (duration_minutes > 0),
		is_recurring INTEGER NOT NULL DEFAULT 0,
		pattern TEXT,
		interval INTEGER,
		days_of_week TEXT,
		recurrence_end TEXT,
		recurrence_rule TEXT,
		next_occurrence TEXT,
		timezone TEXT NOT NULL DEFAULT 'UTC',
		meet_link TEXT,
		meet_id TEXT,
		requires_approval INTEGER NOT NULL DEFAULT 0,
		max_participants INTEGER NOT NULL DEFAULT 0,
		is_active INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS group_instances (
		id TEXT PRIMARY KEY,
		group_id TEXT NOT NULL REFERENCES groups(id) ON DELETE CASCADE,
		meeting_date TEXT NOT NULL,
		created_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_group_instances_group_date
		ON group_instances(group_id, meeting_date)`,
	`CREATE TABLE IF NOT EXISTS group_memberships (
		id TEXT PRIMARY KEY,
		group_id TEXT NOT NULL REFERENCES groups(id) ON DELETE CASCADE,
		user_id TEXT NOT NULL REFERENCES users(id),
		role TEXT NOT NULL DEFAULT 'member',
		is_active INTEGER NOT NULL DEFAULT 1,
		joined_at TEXT NOT NULL,
		UNIQUE (group_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS calendar_credentials (
		user_id TEXT PRIMARY KEY REFERENCES users(id),
		access_token TEXT NOT NULL,
		refresh_token TEXT NOT NULL,
		token_expiry TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
}

// Bootstrap creates the tables and indexes the repositories expect.
func (cp *ConnectionPool) Bootstrap(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := cp.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement: %w", err)
		}
	}
	return nil
}
