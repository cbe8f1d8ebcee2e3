package pan

import (
	"context"
	"encoding/base64"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/kyc-flow/kyc_flow/internal/apperr"
	"github.com/kyc-flow/kyc_flow/internal/identity"
	"github.com/kyc-flow/kyc_flow/internal/logging"
	"github.com/kyc-flow/kyc_flow/internal/validate"
)

// MaxImageSize bounds the uploaded card image.
const MaxImageSize = 5 << 20

var (
	ErrPhoneNotVerified = apperr.New(apperr.KindValidation, "PHONE_NOT_VERIFIED", "Phone number must be verified first")
	ErrInvalidNumber    = apperr.New(apperr.KindValidation, "INVALID_PAN", "Invalid PAN number format")
	ErrInvalidImage     = apperr.New(apperr.KindValidation, "INVALID_PAN_IMAGE", "PAN card image must be an image file")
	ErrImageTooLarge    = apperr.New(apperr.KindValidation, "PAN_IMAGE_TOO_LARGE", "PAN card image must be 5MB or smaller")
	ErrDeclined         = apperr.New(apperr.KindValidation, "PAN_DECLINED", "PAN verification failed. Please check your details and try again.")
)

// Store is the identity persistence PAN verification needs.
type Store interface {
	FindByID(ctx context.Context, id string) (identity.User, error)
	FindByPAN(ctx context.Context, pan string) (identity.User, error)
	UpdatePAN(ctx context.Context, id string, update identity.PANUpdate, at time.Time) (identity.User, error)
}

// Submission is a PAN number with its card image.
type Submission struct {
	Number      string
	Image       []byte
	ContentType string
}

// Service records PAN submissions and their verification outcome.
type Service struct {
	store   Store
	decider Decider
	logger  *slog.Logger
	now     func() time.Time
}

// NewService builds a PAN verification service.
func NewService(store Store, decider Decider, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Service{store: store, decider: decider, logger: logger, now: time.Now}
}

// Verify stores the submission on the user and reports the decision. A
// declined submission is still persisted, with IsPanVerified false, and
// ErrDeclined is returned.
func (s *Service) Verify(ctx context.Context, userID string, sub Submission) (identity.User, error) {
	number := strings.ToUpper(strings.TrimSpace(sub.Number))
	if !validate.PAN(number) {
		return identity.User{}, ErrInvalidNumber
	}
	if !strings.HasPrefix(sub.ContentType, "image/") {
		return identity.User{}, ErrInvalidImage
	}
	if len(sub.Image) == 0 {
		return identity.User{}, ErrInvalidImage
	}
	if len(sub.Image) > MaxImageSize {
		return identity.User{}, ErrImageTooLarge
	}

	user, err := s.store.FindByID(ctx, userID)
	if err != nil {
		return identity.User{}, err
	}
	if !user.IsPhoneVerified {
		return identity.User{}, ErrPhoneNotVerified
	}

	holder, err := s.store.FindByPAN(ctx, number)
	switch {
	case err == nil && holder.ID != user.ID:
		return identity.User{}, identity.ErrDuplicatePAN
	case err != nil && !errors.Is(err, identity.ErrNotFound):
		return identity.User{}, err
	}

	approved, err := s.decider.Decide(ctx, number)
	if err != nil {
		return identity.User{}, apperr.Unavailable(err)
	}

	updated, err := s.store.UpdatePAN(ctx, user.ID, identity.PANUpdate{
		Number:   number,
		Image:    dataURI(sub.ContentType, sub.Image),
		Verified: approved,
	}, s.now())
	if err != nil {
		return identity.User{}, err
	}

	s.logger.Info("pan submitted", "user_id", user.ID, "approved", approved)
	if !approved {
		return updated, ErrDeclined
	}
	return updated, nil
}

func dataURI(contentType string, data []byte) string {
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
