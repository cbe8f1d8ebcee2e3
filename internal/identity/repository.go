package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists users.
type Repository interface {
	Create(ctx context.Context, user User) error
	FindByID(ctx context.Context, id string) (User, error)
	FindByPhone(ctx context.Context, phone string) (User, error)
	FindByPAN(ctx context.Context, pan string) (User, error)
	// SetOTP replaces any outstanding code with otp.
	SetOTP(ctx context.Context, id string, otp OTPChallenge) error
	// ConfirmPhone marks the phone verified and clears the outstanding code in
	// one step, provided code is still the one on record.
	ConfirmPhone(ctx context.Context, id, code string, at time.Time) (User, error)
	RecordSignIn(ctx context.Context, id string, at time.Time, loc Location) error
	UpdatePAN(ctx context.Context, id string, update PANUpdate, at time.Time) (User, error)
}

const uniqueViolation = "23505"

const userColumns = `id, phone, name, password_hash, is_phone_verified, is_pan_verified,
	otp_code, otp_expires_at, country, ip_address, pan_number, pan_card_image,
	last_login_at, created_at, updated_at`

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed identity repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new user. A second insert for the same phone fails with
// ErrDuplicatePhone.
func (r *PostgresRepository) Create(ctx context.Context, user User) error {
	userID, err := uuid.Parse(user.ID)
	if err != nil {
		return err
	}
	var otpCode *string
	var otpExpires *time.Time
	if user.OTP != nil {
		code, exp := user.OTP.Code, user.OTP.ExpiresAt.UTC()
		otpCode, otpExpires = &code, &exp
	}
	_, err = r.db.Exec(ctx, `INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NULLIF($11, ''), $12, $13, $14, $15)`,
		userID, user.Phone, user.Name, user.PasswordHash, user.IsPhoneVerified, user.IsPanVerified,
		otpCode, otpExpires, user.Country, user.IPAddress, user.PANNumber, user.PANCardImage,
		user.LastLoginAt, user.CreatedAt.UTC(), user.UpdatedAt.UTC())
	if isUniqueViolation(err, "users_phone_key") {
		return ErrDuplicatePhone.Wrap(err)
	}
	return err
}

// FindByID fetches a user by identifier.
func (r *PostgresRepository) FindByID(ctx context.Context, id string) (User, error) {
	userID, err := uuid.Parse(id)
	if err != nil {
		return User{}, ErrNotFound
	}
	return scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID))
}

// FindByPhone fetches a user by phone number.
func (r *PostgresRepository) FindByPhone(ctx context.Context, phone string) (User, error) {
	return scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE phone = $1`, phone))
}

// FindByPAN fetches the user holding a PAN number.
func (r *PostgresRepository) FindByPAN(ctx context.Context, pan string) (User, error) {
	return scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE pan_number = $1`, pan))
}

// SetOTP stores a fresh code and expiry together.
func (r *PostgresRepository) SetOTP(ctx context.Context, id string, otp OTPChallenge) error {
	userID, err := uuid.Parse(id)
	if err != nil {
		return ErrNotFound
	}
	cmd, err := r.db.Exec(ctx, `UPDATE users SET otp_code = $1, otp_expires_at = $2, updated_at = now()
		WHERE id = $3`, otp.Code, otp.ExpiresAt.UTC(), userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ConfirmPhone flips the verified flag and clears both OTP columns in a single
// conditional update.
func (r *PostgresRepository) ConfirmPhone(ctx context.Context, id, code string, at time.Time) (User, error) {
	userID, err := uuid.Parse(id)
	if err != nil {
		return User{}, ErrNotFound
	}
	user, err := scanUser(r.db.QueryRow(ctx, `UPDATE users
		SET is_phone_verified = TRUE, otp_code = NULL, otp_expires_at = NULL, updated_at = $3
		WHERE id = $1 AND otp_code = $2
		RETURNING `+userColumns, userID, code, at.UTC()))
	if errors.Is(err, ErrNotFound) {
		return User{}, ErrStaleOTP
	}
	return user, err
}

// RecordSignIn stamps the last login time and origin.
func (r *PostgresRepository) RecordSignIn(ctx context.Context, id string, at time.Time, loc Location) error {
	userID, err := uuid.Parse(id)
	if err != nil {
		return ErrNotFound
	}
	cmd, err := r.db.Exec(ctx, `UPDATE users SET last_login_at = $1, country = $2, ip_address = $3, updated_at = $1
		WHERE id = $4`, at.UTC(), loc.Country, loc.IPAddress, userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdatePAN stores the PAN number, card image and verification outcome.
func (r *PostgresRepository) UpdatePAN(ctx context.Context, id string, update PANUpdate, at time.Time) (User, error) {
	userID, err := uuid.Parse(id)
	if err != nil {
		return User{}, ErrNotFound
	}
	user, err := scanUser(r.db.QueryRow(ctx, `UPDATE users
		SET pan_number = $1, pan_card_image = $2, is_pan_verified = $3, updated_at = $4
		WHERE id = $5
		RETURNING `+userColumns, update.Number, update.Image, update.Verified, at.UTC(), userID))
	if isUniqueViolation(err, "users_pan_number_key") {
		return User{}, ErrDuplicatePAN.Wrap(err)
	}
	return user, err
}

func scanUser(row pgx.Row) (User, error) {
	var (
		id         uuid.UUID
		user       User
		otpCode    *string
		otpExpires *time.Time
		pan        *string
	)
	err := row.Scan(&id, &user.Phone, &user.Name, &user.PasswordHash, &user.IsPhoneVerified, &user.IsPanVerified,
		&otpCode, &otpExpires, &user.Country, &user.IPAddress, &pan, &user.PANCardImage,
		&user.LastLoginAt, &user.CreatedAt, &user.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("scan user: %w", err)
	}
	user.ID = id.String()
	if otpCode != nil && otpExpires != nil {
		user.OTP = &OTPChallenge{Code: *otpCode, ExpiresAt: otpExpires.UTC()}
	}
	if pan != nil {
		user.PANNumber = *pan
	}
	if user.LastLoginAt != nil {
		t := user.LastLoginAt.UTC()
		user.LastLoginAt = &t
	}
	user.CreatedAt = user.CreatedAt.UTC()
	user.UpdatedAt = user.UpdatedAt.UTC()
	return user, nil
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == constraint
}
