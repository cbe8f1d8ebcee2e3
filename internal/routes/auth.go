package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/kyc-flow/kyc_flow/internal/auth"
	"github.com/kyc-flow/kyc_flow/internal/identity"
	"github.com/kyc-flow/kyc_flow/internal/otp"
)

// AuthHandlers groups the handlers mounted under /auth.
type AuthHandlers struct {
	OTP      *otp.Handler
	SignIn   *auth.Handler
	Identity *identity.Handler
}

// AuthLimiters throttle the public auth endpoints. Any of them may be nil.
type AuthLimiters struct {
	IssueOTP  fiber.Handler
	VerifyOTP fiber.Handler
	SignIn    fiber.Handler
}

// RegisterAuthRoutes wires signup, verification and sign-in endpoints.
func RegisterAuthRoutes(r fiber.Router, h AuthHandlers, l AuthLimiters) {
	group := r.Group("/auth")
	group.Post("/send-signup-otp", limited(l.IssueOTP, h.OTP.SendSignupOTP)...)
	group.Post("/verify-signup-otp", limited(l.VerifyOTP, h.OTP.VerifySignupOTP)...)
	group.Post("/send-otp", limited(l.IssueOTP, h.OTP.SendOTP)...)
	group.Post("/verify-otp", limited(l.VerifyOTP, h.OTP.VerifyOTP)...)
	group.Post("/register", h.Identity.Register)
	group.Post("/signin", limited(l.SignIn, h.SignIn.SignIn)...)
}

func limited(limiter, handler fiber.Handler) []fiber.Handler {
	if limiter == nil {
		return []fiber.Handler{handler}
	}
	return []fiber.Handler{limiter, handler}
}
