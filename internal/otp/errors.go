package otp

import "github.com/kyc-flow/kyc_flow/internal/apperr"

var (
	ErrPhoneAlreadyRegistered = apperr.New(apperr.KindConflict, "PHONE_ALREADY_REGISTERED", "User with this phone number already exists")
	ErrNoSession              = apperr.New(apperr.KindOTP, "NO_SESSION", "No signup session found. Please start sign up again.")
	ErrExpired                = apperr.New(apperr.KindOTP, "OTP_EXPIRED", "OTP has expired. Please request a new OTP.")
	ErrSignupExpired          = ErrExpired.WithMessage("OTP has expired. Please start sign up again.")
	ErrInvalidCode            = apperr.New(apperr.KindOTP, "INVALID_CODE", "Invalid OTP")
	ErrNoOTPIssued            = apperr.New(apperr.KindOTP, "NO_OTP_ISSUED", "No OTP found. Please request a new OTP.")
)
