package otp

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/kyc-flow/kyc_flow/internal/apperr"
	"github.com/kyc-flow/kyc_flow/internal/identity"
	"github.com/kyc-flow/kyc_flow/internal/logging"
	"github.com/kyc-flow/kyc_flow/internal/notification"
	"github.com/kyc-flow/kyc_flow/internal/validate"
)

const (
	// DefaultTTL is how long an issued code stays valid.
	DefaultTTL = 10 * time.Minute
	// pendingRetention keeps an expired entry around long enough to be
	// reported as expired instead of missing.
	pendingRetention = 15 * time.Minute
)

// Identities is the view of the identity store the OTP flow needs.
type Identities interface {
	Exists(ctx context.Context, phone string) (bool, error)
	Lookup(ctx context.Context, phone string) (identity.User, error)
	SetOTP(ctx context.Context, id string, otp identity.OTPChallenge) error
	ConfirmPhone(ctx context.Context, id, code string) (identity.User, error)
	CreateVerified(ctx context.Context, in identity.CreateVerifiedInput) (identity.User, error)
}

// Options tunes code lifetime and generation. Zero values select defaults.
type Options struct {
	TTL     time.Duration
	NewCode CodeGenerator
	Now     func() time.Time
}

func (o Options) withDefaults() Options {
	if o.TTL <= 0 {
		o.TTL = DefaultTTL
	}
	if o.NewCode == nil {
		o.NewCode = RandomCode
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// SignupRequest is the payload of a signup OTP request.
type SignupRequest struct {
	Phone    string `json:"phone" validate:"required,phone"`
	Name     string `json:"name" validate:"required,max=100"`
	Password string `json:"password" validate:"required,min=6"`
}

// Issued describes a freshly issued code.
type Issued struct {
	Code      string
	ExpiresAt time.Time
}

// Issuer generates codes and binds them to a phone.
type Issuer struct {
	ids      Identities
	pending  PendingStore
	notifier notification.Notifier
	opts     Options
	logger   *slog.Logger
}

// NewIssuer builds an Issuer.
func NewIssuer(ids Identities, pending PendingStore, notifier notification.Notifier, opts Options, logger *slog.Logger) *Issuer {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Issuer{ids: ids, pending: pending, notifier: notifier, opts: opts.withDefaults(), logger: logger}
}

// IssueSignupOTP stages req for phone confirmation, replacing any earlier
// pending signup for the same phone.
func (i *Issuer) IssueSignupOTP(ctx context.Context, req SignupRequest, loc identity.Location) (Issued, error) {
	req.Phone = strings.TrimSpace(req.Phone)
	req.Name = strings.TrimSpace(req.Name)
	if req.Phone == "" || req.Name == "" || req.Password == "" {
		return Issued{}, apperr.Validation("Phone, name, and password are required")
	}
	if err := validate.Struct(req); err != nil {
		return Issued{}, err
	}

	exists, err := i.ids.Exists(ctx, req.Phone)
	if err != nil {
		return Issued{}, err
	}
	if exists {
		return Issued{}, ErrPhoneAlreadyRegistered
	}

	issued, err := i.newIssued()
	if err != nil {
		return Issued{}, err
	}
	entry := PendingSignup{
		Phone:        req.Phone,
		Name:         req.Name,
		Password:     req.Password,
		OTPCode:      issued.Code,
		OTPExpiresAt: issued.ExpiresAt,
		Country:      loc.Country,
		IPAddress:    loc.IPAddress,
	}
	if err := i.pending.Put(ctx, entry, i.opts.TTL+pendingRetention); err != nil {
		return Issued{}, err
	}

	i.dispatch(ctx, notification.KindSignupOTP, req.Phone, issued.Code)
	i.logger.Info("signup otp issued", "phone", logging.MaskPhone(req.Phone), "country", loc.Country)
	return issued, nil
}

// IssueReverifyOTP stores a fresh code on an existing identity.
func (i *Issuer) IssueReverifyOTP(ctx context.Context, phone string) (Issued, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return Issued{}, apperr.Validation("Phone number is required")
	}
	user, err := i.ids.Lookup(ctx, phone)
	if err != nil {
		return Issued{}, err
	}

	issued, err := i.newIssued()
	if err != nil {
		return Issued{}, err
	}
	if err := i.ids.SetOTP(ctx, user.ID, identity.OTPChallenge{Code: issued.Code, ExpiresAt: issued.ExpiresAt}); err != nil {
		return Issued{}, err
	}

	i.dispatch(ctx, notification.KindReverifyOTP, phone, issued.Code)
	i.logger.Info("reverify otp issued", "user_id", user.ID, "phone", logging.MaskPhone(phone))
	return issued, nil
}

func (i *Issuer) newIssued() (Issued, error) {
	code, err := i.opts.NewCode()
	if err != nil {
		return Issued{}, apperr.Internal(err)
	}
	return Issued{Code: code, ExpiresAt: i.opts.Now().UTC().Add(i.opts.TTL)}, nil
}

// dispatch hands the code to the notifier. Delivery failures never fail the
// issuance.
func (i *Issuer) dispatch(ctx context.Context, kind, phone, code string) {
	if i.notifier == nil {
		return
	}
	msg := notification.Message{Kind: kind, Destination: phone, Body: code}
	if err := i.notifier.Send(ctx, msg); err != nil {
		i.logger.Warn("otp dispatch failed", "kind", kind, "phone", logging.MaskPhone(phone), "error", err)
	}
}
