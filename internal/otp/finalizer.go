package otp

import (
	"context"
	"errors"
	"log/slog"

	"github.com/kyc-flow/kyc_flow/internal/apperr"
	"github.com/kyc-flow/kyc_flow/internal/identity"
	"github.com/kyc-flow/kyc_flow/internal/logging"
	"github.com/kyc-flow/kyc_flow/internal/validate"
)

// Finalizer promotes a confirmed pending signup into a durable identity.
type Finalizer struct {
	ids     Identities
	pending PendingStore
	hasher  identity.PasswordHasher
	logger  *slog.Logger
}

// NewFinalizer builds a Finalizer.
func NewFinalizer(ids Identities, pending PendingStore, hasher identity.PasswordHasher, logger *slog.Logger) *Finalizer {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Finalizer{ids: ids, pending: pending, hasher: hasher, logger: logger}
}

// Finalize hashes the staged password and creates a phone-verified identity.
//
// The pending entry is removed on success and when the phone turns out to be
// taken or the staged data is invalid, since neither can succeed on retry.
// Any other failure leaves it in place so the caller can verify again before
// the code expires.
func (f *Finalizer) Finalize(ctx context.Context, p PendingSignup) (identity.User, error) {
	staged := SignupRequest{Phone: p.Phone, Name: p.Name, Password: p.Password}
	if err := validate.Struct(staged); err != nil {
		f.discard(ctx, p.Phone)
		return identity.User{}, err
	}

	hash, err := f.hasher.Hash(p.Password)
	if err != nil {
		return identity.User{}, apperr.Internal(err)
	}

	user, err := f.ids.CreateVerified(ctx, identity.CreateVerifiedInput{
		Name:         p.Name,
		Phone:        p.Phone,
		PasswordHash: hash,
		Location:     identity.Location{Country: p.Country, IPAddress: p.IPAddress},
	})
	if errors.Is(err, identity.ErrDuplicatePhone) {
		f.discard(ctx, p.Phone)
		return identity.User{}, err
	}
	if err != nil {
		return identity.User{}, err
	}

	f.discard(ctx, p.Phone)
	f.logger.Info("signup finalized", "user_id", user.ID, "phone", logging.MaskPhone(p.Phone))
	return user, nil
}

func (f *Finalizer) discard(ctx context.Context, phone string) {
	if err := f.pending.Delete(ctx, phone); err != nil {
		f.logger.Warn("discard pending signup", "phone", logging.MaskPhone(phone), "error", err)
	}
}
