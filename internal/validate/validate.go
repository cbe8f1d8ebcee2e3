// Package validate wraps go-playground/validator with the field rules shared
// by every request type.
package validate

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/kyc-flow/kyc_flow/internal/apperr"
)

var (
	phonePattern = regexp.MustCompile(`^\+?[1-9]\d{0,15}$`)
	panPattern   = regexp.MustCompile(`^[A-Z]{5}[0-9]{4}[A-Z]$`)
	ifscPattern  = regexp.MustCompile(`^[A-Z]{4}0[A-Z0-9]{6}$`)
	otpPattern   = regexp.MustCompile(`^[0-9]{6}$`)
)

var v = newValidator()

func newValidator() *validator.Validate {
	val := validator.New()
	val.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	mustRegister(val, "phone", phonePattern)
	mustRegister(val, "pan", panPattern)
	mustRegister(val, "ifsc", ifscPattern)
	mustRegister(val, "otp", otpPattern)
	return val
}

func mustRegister(val *validator.Validate, tag string, re *regexp.Regexp) {
	err := val.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
		return re.MatchString(fl.Field().String())
	})
	if err != nil {
		panic(err)
	}
}

// Struct validates s and returns an apperr validation error naming the first
// failing field.
func Struct(s any) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return apperr.Validation("Invalid request")
	}
	return apperr.Validation(message(verrs[0]))
}

// Phone reports whether s is an acceptable phone number.
func Phone(s string) bool { return phonePattern.MatchString(s) }

// PAN reports whether s is a well-formed PAN number.
func PAN(s string) bool { return panPattern.MatchString(s) }

func message(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "phone":
		return "Please enter a valid phone number"
	case "pan":
		return "Invalid PAN number format"
	case "ifsc":
		return "Invalid IFSC code format"
	case "otp":
		return "OTP must be a 6-digit code"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s cannot exceed %s characters", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "numeric":
		return fmt.Sprintf("%s must contain only digits", field)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
