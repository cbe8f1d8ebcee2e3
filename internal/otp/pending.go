package otp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kyc-flow/kyc_flow/internal/apperr"
)

const pendingPrefix = "signup:pending:v1:"

// PendingSignup is registration data staged until the phone is confirmed.
// Password is plaintext and must never reach the durable store.
type PendingSignup struct {
	Phone        string    `json:"phone"`
	Name         string    `json:"name"`
	Password     string    `json:"password"`
	OTPCode      string    `json:"otpCode"`
	OTPExpiresAt time.Time `json:"otpExpiresAt"`
	Country      string    `json:"country,omitempty"`
	IPAddress    string    `json:"ipAddress,omitempty"`
}

// PendingStore holds at most one PendingSignup per phone.
type PendingStore interface {
	// Put overwrites any entry for p.Phone. The entry is dropped by the store
	// after ttl.
	Put(ctx context.Context, p PendingSignup, ttl time.Duration) error
	// Get returns ErrNoSession when nothing is staged for phone.
	Get(ctx context.Context, phone string) (PendingSignup, error)
	// Delete is a no-op when nothing is staged.
	Delete(ctx context.Context, phone string) error
}

// RedisPendingStore keeps pending signups in Redis so every API instance sees
// the same entries and they survive restarts.
type RedisPendingStore struct {
	client redis.Cmdable
}

// NewRedisPendingStore builds a Redis-backed pending-signup store.
func NewRedisPendingStore(client redis.Cmdable) *RedisPendingStore {
	return &RedisPendingStore{client: client}
}

func (s *RedisPendingStore) Put(ctx context.Context, p PendingSignup, ttl time.Duration) error {
	payload, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode pending signup: %w", err)
	}
	if err := s.client.Set(ctx, pendingPrefix+p.Phone, payload, ttl).Err(); err != nil {
		return apperr.Unavailable(fmt.Errorf("store pending signup: %w", err))
	}
	return nil
}

func (s *RedisPendingStore) Get(ctx context.Context, phone string) (PendingSignup, error) {
	raw, err := s.client.Get(ctx, pendingPrefix+phone).Bytes()
	if errors.Is(err, redis.Nil) {
		return PendingSignup{}, ErrNoSession
	}
	if err != nil {
		return PendingSignup{}, apperr.Unavailable(fmt.Errorf("load pending signup: %w", err))
	}
	var p PendingSignup
	if err := json.Unmarshal(raw, &p); err != nil {
		return PendingSignup{}, fmt.Errorf("decode pending signup: %w", err)
	}
	return p, nil
}

func (s *RedisPendingStore) Delete(ctx context.Context, phone string) error {
	if err := s.client.Del(ctx, pendingPrefix+phone).Err(); err != nil {
		return apperr.Unavailable(fmt.Errorf("delete pending signup: %w", err))
	}
	return nil
}
