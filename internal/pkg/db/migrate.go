package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog/log"
)

// Execer is the subset of pgxpool.Pool needed to apply migrations.
type Execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

type migration struct {
	name string
	sql  string
}

var migrations = []migration{
	{
		name: "users table",
		sql: `
		CREATE TABLE IF NOT EXISTS users (
			user_id BIGINT PRIMARY KEY,
			username VARCHAR(255) NOT NULL DEFAULT '',
			full_name VARCHAR(255) NOT NULL DEFAULT '',
			balance BIGINT NOT NULL DEFAULT 0 CHECK (balance >= 0),
			blocked BOOLEAN NOT NULL DEFAULT FALSE,
			invited_by BIGINT REFERENCES users(user_id),
			last_checkin_date DATE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_users_blocked ON users(blocked) WHERE blocked;
		`,
	},
	{
		name: "transactions table",
		sql: `
		CREATE TABLE IF NOT EXISTS transactions (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
			amount BIGINT NOT NULL,
			type VARCHAR(50) NOT NULL,
			description TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_transactions_user_time ON transactions(user_id, created_at DESC);
		`,
	},
	{
		name: "card_keys table",
		sql: `
		CREATE TABLE IF NOT EXISTS card_keys (
			key_code VARCHAR(255) PRIMARY KEY,
			balance BIGINT NOT NULL CHECK (balance > 0),
			created_by BIGINT NOT NULL,
			max_uses INT NOT NULL CHECK (max_uses > 0),
			current_uses INT NOT NULL DEFAULT 0 CHECK (current_uses >= 0 AND current_uses <= max_uses),
			expire_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		`,
	},
	{
		name: "card_key_redemptions table",
		sql: `
		CREATE TABLE IF NOT EXISTS card_key_redemptions (
			key_code VARCHAR(255) NOT NULL REFERENCES card_keys(key_code),
			user_id BIGINT NOT NULL REFERENCES users(user_id),
			redeemed_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (key_code, user_id)
		);
		`,
	},
}

// Migrate creates the ledger schema. Every statement is idempotent so it
// is safe to run on each start-up.
func Migrate(ctx context.Context, conn Execer) error {
	log.Info().Msg("Running database migrations...")

	for i, m := range migrations {
		if _, err := conn.Exec(ctx, m.sql); err != nil {
			return fmt.Errorf("migration %d (%s) failed: %w", i+1, m.name, err)
		}
		log.Info().Int("step", i+1).Str("name", m.name).Msg("Migration applied")
	}

	log.Info().Msg("All migrations completed successfully")
	return nil
}
