package otp

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/kyc-flow/kyc_flow/internal/apperr"
	"github.com/kyc-flow/kyc_flow/internal/identity"
)

// Handler exposes the OTP endpoints.
type Handler struct {
	issuer    *Issuer
	verifier  *Verifier
	geo       identity.Geolocator
	exposeOTP bool
}

// NewHandler constructs an OTP HTTP handler. exposeOTP echoes generated codes
// in responses and must only be set outside production.
func NewHandler(issuer *Issuer, verifier *Verifier, geo identity.Geolocator, exposeOTP bool) *Handler {
	return &Handler{issuer: issuer, verifier: verifier, geo: geo, exposeOTP: exposeOTP}
}

type verifySignupRequest struct {
	Phone    string `json:"phone"`
	OTP      string `json:"otp"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type phoneRequest struct {
	Phone string `json:"phone"`
	OTP   string `json:"otp"`
}

// SendSignupOTP handles POST /auth/send-signup-otp.
func (h *Handler) SendSignupOTP(c *fiber.Ctx) error {
	var req SignupRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.Validation("Invalid request body")
	}
	var loc identity.Location
	if h.geo != nil {
		loc = h.geo.Locate(c)
	}
	issued, err := h.issuer.IssueSignupOTP(c.UserContext(), req, loc)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(h.sentBody(issued))
}

// VerifySignupOTP handles POST /auth/verify-signup-otp.
func (h *Handler) VerifySignupOTP(c *fiber.Ctx) error {
	var req verifySignupRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.Validation("Invalid request body")
	}
	user, err := h.verifier.VerifySignupOTP(c.UserContext(), req.Phone, req.OTP, req.Name, req.Password)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"message": "Account created successfully",
		"user":    user.ToView(),
	})
}

// SendOTP handles POST /auth/send-otp for already registered phones.
func (h *Handler) SendOTP(c *fiber.Ctx) error {
	var req phoneRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.Validation("Invalid request body")
	}
	issued, err := h.issuer.IssueReverifyOTP(c.UserContext(), req.Phone)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(h.sentBody(issued))
}

// VerifyOTP handles POST /auth/verify-otp.
func (h *Handler) VerifyOTP(c *fiber.Ctx) error {
	var req phoneRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.Validation("Invalid request body")
	}
	user, err := h.verifier.VerifyReverifyOTP(c.UserContext(), req.Phone, req.OTP)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"message": "OTP verified successfully",
		"user":    user.ToView(),
	})
}

func (h *Handler) sentBody(issued Issued) fiber.Map {
	body := fiber.Map{"message": "OTP sent successfully"}
	if h.exposeOTP {
		body["otp"] = issued.Code
	}
	return body
}
