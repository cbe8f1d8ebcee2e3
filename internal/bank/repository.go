package bank

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists linked bank accounts.
type Repository interface {
	Create(ctx context.Context, account Account) error
	// ListByUser returns the accounts of userID, newest first.
	ListByUser(ctx context.Context, userID string) ([]Account, error)
}

// PostgresRepository stores bank accounts in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts an account record.
func (r *PostgresRepository) Create(ctx context.Context, a Account) error {
	id, err := uuid.Parse(a.ID)
	if err != nil {
		return err
	}
	userID, err := uuid.Parse(a.UserID)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO bank_accounts (id, user_id, phone, account_holder_name, account_number,
		ifsc_code, bank_name, branch_name, account_type, is_verified, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		id, userID, a.Phone, a.AccountHolderName, a.AccountNumber, a.IFSCCode, a.BankName, a.BranchName,
		a.AccountType, a.IsVerified, a.CreatedAt.UTC(), a.UpdatedAt.UTC())
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == "bank_accounts_account_number_key" {
		return ErrDuplicateAccount.Wrap(err)
	}
	return err
}

// ListByUser fetches every account owned by userID.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]Account, error) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.Query(ctx, `SELECT id, user_id, phone, account_holder_name, account_number, ifsc_code,
		bank_name, branch_name, account_type, is_verified, created_at, updated_at
		FROM bank_accounts WHERE user_id = $1 ORDER BY created_at DESC`, uid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []Account
	for rows.Next() {
		var (
			a         Account
			id, owner uuid.UUID
		)
		if err := rows.Scan(&id, &owner, &a.Phone, &a.AccountHolderName, &a.AccountNumber, &a.IFSCCode,
			&a.BankName, &a.BranchName, &a.AccountType, &a.IsVerified, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan bank account: %w", err)
		}
		a.ID = id.String()
		a.UserID = owner.String()
		a.CreatedAt = a.CreatedAt.UTC()
		a.UpdatedAt = a.UpdatedAt.UTC()
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}
