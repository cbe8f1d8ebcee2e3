package bank

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kyc-flow/kyc_flow/internal/identity"
	"github.com/kyc-flow/kyc_flow/internal/logging"
	"github.com/kyc-flow/kyc_flow/internal/validate"
)

// Users resolves the owner of an account.
type Users interface {
	FindByID(ctx context.Context, id string) (identity.User, error)
}

// AddInput captures a bank account to link.
type AddInput struct {
	AccountHolderName string `json:"accountHolderName" validate:"required,min=2,max=100"`
	AccountNumber     string `json:"accountNumber" validate:"required,numeric,min=9,max=18"`
	IFSCCode          string `json:"ifscCode" validate:"required,ifsc"`
	BankName          string `json:"bankName" validate:"required,max=100"`
	BranchName        string `json:"branchName" validate:"required,max=100"`
	AccountType       string `json:"accountType" validate:"required,oneof=savings current salary"`
}

func (in AddInput) normalized() AddInput {
	in.AccountHolderName = strings.TrimSpace(in.AccountHolderName)
	in.AccountNumber = strings.TrimSpace(in.AccountNumber)
	in.IFSCCode = strings.ToUpper(strings.TrimSpace(in.IFSCCode))
	in.BankName = strings.TrimSpace(in.BankName)
	in.BranchName = strings.TrimSpace(in.BranchName)
	in.AccountType = strings.ToLower(strings.TrimSpace(in.AccountType))
	return in
}

// Service links bank accounts to PAN-verified identities.
type Service struct {
	repo   Repository
	users  Users
	logger *slog.Logger
	now    func() time.Time
}

// NewService builds a bank account service.
func NewService(repo Repository, users Users, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Service{repo: repo, users: users, logger: logger, now: time.Now}
}

// WithClock overrides the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Add links a new account to userID. The account starts unverified.
func (s *Service) Add(ctx context.Context, userID string, in AddInput) (Account, error) {
	in = in.normalized()
	if err := validate.Struct(in); err != nil {
		return Account{}, err
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return Account{}, err
	}
	if !user.IsPanVerified {
		return Account{}, ErrPANNotVerified
	}

	now := s.now().UTC()
	account := Account{
		ID:                uuid.New().String(),
		UserID:            user.ID,
		Phone:             user.Phone,
		AccountHolderName: in.AccountHolderName,
		AccountNumber:     in.AccountNumber,
		IFSCCode:          in.IFSCCode,
		BankName:          in.BankName,
		BranchName:        in.BranchName,
		AccountType:       in.AccountType,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.repo.Create(ctx, account); err != nil {
		return Account{}, err
	}
	s.logger.Info("bank account linked", "user_id", user.ID, "account", Mask(account.AccountNumber))
	return account, nil
}

// List returns the accounts of userID, newest first.
func (s *Service) List(ctx context.Context, userID string) ([]Account, error) {
	if _, err := s.users.FindByID(ctx, userID); err != nil {
		return nil, err
	}
	return s.repo.ListByUser(ctx, userID)
}
