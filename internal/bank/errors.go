package bank

import "github.com/kyc-flow/kyc_flow/internal/apperr"

var (
	ErrDuplicateAccount = apperr.New(apperr.KindConflict, "DUPLICATE_ACCOUNT", "Bank account with this account number already exists")
	ErrPANNotVerified   = apperr.New(apperr.KindForbidden, "PAN_NOT_VERIFIED", "PAN verification required before adding bank account")
)
