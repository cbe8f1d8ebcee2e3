package identity

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kyc-flow/kyc_flow/internal/apperr"
	"github.com/kyc-flow/kyc_flow/internal/logging"
	"github.com/kyc-flow/kyc_flow/internal/validate"
)

// RegisterInput is the payload for a direct, unverified registration.
type RegisterInput struct {
	Name     string `json:"name" validate:"required,max=100"`
	Phone    string `json:"phone" validate:"required,phone"`
	Password string `json:"password" validate:"required,min=6"`
}

// CreateVerifiedInput describes an identity whose phone ownership has already
// been proven.
type CreateVerifiedInput struct {
	Name         string
	Phone        string
	PasswordHash string
	Location     Location
}

// Service manages identity lifecycle.
type Service struct {
	repo   Repository
	hasher PasswordHasher
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a new identity service.
func NewService(repo Repository, hasher PasswordHasher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Service{repo: repo, hasher: hasher, logger: logger, now: time.Now}
}

// WithClock overrides the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Hasher exposes the password hasher used by the service.
func (s *Service) Hasher() PasswordHasher { return s.hasher }

// Register creates an identity whose phone is not yet verified. The owner has
// to complete the re-verification flow before signing in.
func (s *Service) Register(ctx context.Context, in RegisterInput, loc Location) (User, error) {
	if err := validate.Struct(in); err != nil {
		return User{}, err
	}
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return User{}, apperr.Internal(err)
	}
	now := s.now().UTC()
	user := User{
		ID:           uuid.New().String(),
		Phone:        in.Phone,
		Name:         in.Name,
		PasswordHash: hash,
		Country:      loc.Country,
		IPAddress:    loc.IPAddress,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return User{}, err
	}
	s.logger.Info("identity registered", "user_id", user.ID, "phone", logging.MaskPhone(user.Phone))
	return user, nil
}

// CreateVerified inserts an identity with its phone already verified.
func (s *Service) CreateVerified(ctx context.Context, in CreateVerifiedInput) (User, error) {
	now := s.now().UTC()
	user := User{
		ID:              uuid.New().String(),
		Phone:           in.Phone,
		Name:            in.Name,
		PasswordHash:    in.PasswordHash,
		IsPhoneVerified: true,
		Country:         in.Location.Country,
		IPAddress:       in.Location.IPAddress,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return User{}, err
	}
	return user, nil
}

// SignIn checks the password of a verified identity and records the login.
func (s *Service) SignIn(ctx context.Context, phone, password string, loc Location) (User, error) {
	user, err := s.repo.FindByPhone(ctx, phone)
	if errors.Is(err, ErrNotFound) {
		return User{}, ErrInvalidCredentials
	}
	if err != nil {
		return User{}, err
	}
	if !user.IsPhoneVerified {
		return User{}, ErrPhoneNotVerified
	}
	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		return User{}, ErrInvalidCredentials
	}

	at := s.now().UTC()
	if err := s.repo.RecordSignIn(ctx, user.ID, at, loc); err != nil {
		return User{}, err
	}
	user.LastLoginAt = &at
	user.Country = loc.Country
	user.IPAddress = loc.IPAddress
	user.UpdatedAt = at
	return user, nil
}

// Profile returns the identity with the given id.
func (s *Service) Profile(ctx context.Context, id string) (User, error) {
	return s.repo.FindByID(ctx, id)
}

// Exists reports whether an identity is registered for phone.
func (s *Service) Exists(ctx context.Context, phone string) (bool, error) {
	_, err := s.repo.FindByPhone(ctx, phone)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

// Lookup fetches an identity by phone.
func (s *Service) Lookup(ctx context.Context, phone string) (User, error) {
	return s.repo.FindByPhone(ctx, phone)
}

// SetOTP stores a re-verification code on an existing identity.
func (s *Service) SetOTP(ctx context.Context, id string, otp OTPChallenge) error {
	return s.repo.SetOTP(ctx, id, otp)
}

// ConfirmPhone marks the phone verified if code is still outstanding.
func (s *Service) ConfirmPhone(ctx context.Context, id, code string) (User, error) {
	return s.repo.ConfirmPhone(ctx, id, code, s.now().UTC())
}
