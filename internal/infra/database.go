package infra

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NewPostgresPool configures and returns a PostgreSQL connection pool.
func NewPostgresPool(ctx context.Context, url string) (*pgxpool.Pool, error) {
	if url == "" {
		return nil, fmt.Errorf("database url is required")
	}

	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return pool, nil
}

// The constraint names are matched by the repositories to detect duplicates.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY,
		phone TEXT NOT NULL CONSTRAINT users_phone_key UNIQUE,
		name TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		is_phone_verified BOOLEAN NOT NULL DEFAULT FALSE,
		is_pan_verified BOOLEAN NOT NULL DEFAULT FALSE,
		otp_code TEXT,
		otp_expires_at TIMESTAMPTZ,
		country TEXT NOT NULL DEFAULT '',
		ip_address TEXT NOT NULL DEFAULT '',
		pan_number TEXT CONSTRAINT users_pan_number_key UNIQUE,
		pan_card_image TEXT NOT NULL DEFAULT '',
		last_login_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		CONSTRAINT users_otp_pair CHECK ((otp_code IS NULL) = (otp_expires_at IS NULL))
	)`,
	`CREATE TABLE IF NOT EXISTS bank_accounts (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL REFERENCES users (id) ON DELETE CASCADE,
		phone TEXT NOT NULL,
		account_holder_name TEXT NOT NULL,
		account_number TEXT NOT NULL CONSTRAINT bank_accounts_account_number_key UNIQUE,
		ifsc_code TEXT NOT NULL,
		bank_name TEXT NOT NULL,
		branch_name TEXT NOT NULL,
		account_type TEXT NOT NULL CHECK (account_type IN ('savings', 'current', 'salary')),
		is_verified BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS bank_accounts_user_id_idx ON bank_accounts (user_id, created_at DESC)`,
}

// EnsurePostgresSchema creates the tables used by the Postgres store driver.
func EnsurePostgresSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
