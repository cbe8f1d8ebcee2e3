package otp

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/kyc-flow/kyc_flow/internal/apperr"
	"github.com/kyc-flow/kyc_flow/internal/identity"
	"github.com/kyc-flow/kyc_flow/internal/logging"
)

// Verifier checks submitted codes and drives the resulting transition.
type Verifier struct {
	ids       Identities
	pending   PendingStore
	finalizer *Finalizer
	now       func() time.Time
	logger    *slog.Logger
}

// NewVerifier builds a Verifier. Only opts.Now is consulted.
func NewVerifier(ids Identities, pending PendingStore, finalizer *Finalizer, opts Options, logger *slog.Logger) *Verifier {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Verifier{ids: ids, pending: pending, finalizer: finalizer, now: opts.withDefaults().Now, logger: logger}
}

// VerifySignupOTP confirms a pending signup and creates the identity.
//
// A wrong code leaves the pending entry untouched so the user can retry until
// expiry. An expired entry is discarded.
func (v *Verifier) VerifySignupOTP(ctx context.Context, phone, code, name, password string) (identity.User, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" || code == "" || strings.TrimSpace(name) == "" || password == "" {
		return identity.User{}, apperr.Validation("Phone, OTP, name, and password are required")
	}

	entry, err := v.pending.Get(ctx, phone)
	if err != nil {
		return identity.User{}, err
	}
	if v.now().After(entry.OTPExpiresAt) {
		v.discard(ctx, phone)
		return identity.User{}, ErrSignupExpired
	}
	if code != entry.OTPCode {
		return identity.User{}, ErrInvalidCode
	}

	// Another request may have completed signup for this phone meanwhile.
	exists, err := v.ids.Exists(ctx, phone)
	if err != nil {
		return identity.User{}, err
	}
	if exists {
		v.discard(ctx, phone)
		return identity.User{}, ErrPhoneAlreadyRegistered
	}

	return v.finalizer.Finalize(ctx, entry)
}

// VerifyReverifyOTP confirms the code stored on an existing identity and marks
// its phone verified.
func (v *Verifier) VerifyReverifyOTP(ctx context.Context, phone, code string) (identity.User, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" || code == "" {
		return identity.User{}, apperr.Validation("Phone number and OTP are required")
	}

	user, err := v.ids.Lookup(ctx, phone)
	if err != nil {
		return identity.User{}, err
	}
	if user.OTP == nil {
		return identity.User{}, ErrNoOTPIssued
	}
	if user.OTP.Expired(v.now()) {
		return identity.User{}, ErrExpired
	}
	if code != user.OTP.Code {
		return identity.User{}, ErrInvalidCode
	}

	confirmed, err := v.ids.ConfirmPhone(ctx, user.ID, code)
	if errors.Is(err, identity.ErrStaleOTP) {
		// a newer code was issued between the read and the update
		return identity.User{}, ErrInvalidCode
	}
	if err != nil {
		return identity.User{}, err
	}
	v.logger.Info("phone reverified", "user_id", confirmed.ID, "phone", logging.MaskPhone(phone))
	return confirmed, nil
}

func (v *Verifier) discard(ctx context.Context, phone string) {
	if err := v.pending.Delete(ctx, phone); err != nil {
		v.logger.Warn("discard pending signup", "phone", logging.MaskPhone(phone), "error", err)
	}
}
