package identity

import (
	"errors"

	"github.com/kyc-flow/kyc_flow/internal/apperr"
)

var (
	ErrNotFound       = apperr.New(apperr.KindNotFound, "PHONE_NOT_FOUND", "User not found")
	ErrDuplicatePhone = apperr.New(apperr.KindConflict, "DUPLICATE_PHONE", "User with this phone number already exists")
	ErrDuplicatePAN   = apperr.New(apperr.KindConflict, "DUPLICATE_PAN", "This PAN number is already registered with another account")

	ErrInvalidCredentials = apperr.New(apperr.KindUnauthorized, "INVALID_CREDENTIALS", "Invalid credentials")
	ErrPhoneNotVerified   = apperr.New(apperr.KindUnauthorized, "PHONE_NOT_VERIFIED", "Phone number not verified. Please complete signup process.")

	// ErrStaleOTP is returned by ConfirmPhone when the code it was asked to
	// confirm is no longer the outstanding one.
	ErrStaleOTP = errors.New("identity: otp no longer outstanding")
)
