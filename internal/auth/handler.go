package auth

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/kyc-flow/kyc_flow/internal/apperr"
	"github.com/kyc-flow/kyc_flow/internal/identity"
)

// Handler exposes the sign-in endpoint.
type Handler struct {
	ids    *identity.Service
	tokens *TokenIssuer
	geo    identity.Geolocator
}

// NewHandler constructs an auth handler.
func NewHandler(ids *identity.Service, tokens *TokenIssuer, geo identity.Geolocator) *Handler {
	return &Handler{ids: ids, tokens: tokens, geo: geo}
}

type signInRequest struct {
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

type signInResponse struct {
	Message     string        `json:"message"`
	User        identity.View `json:"user"`
	AccessToken string        `json:"accessToken"`
	ExpiresIn   int64         `json:"expiresIn"`
}

// SignIn validates credentials of a verified identity and returns an access
// token.
func (h *Handler) SignIn(c *fiber.Ctx) error {
	var req signInRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.Validation("Invalid request body")
	}
	if req.Phone == "" || req.Password == "" {
		return apperr.Validation("Phone and password are required")
	}
	var loc identity.Location
	if h.geo != nil {
		loc = h.geo.Locate(c)
	}
	user, err := h.ids.SignIn(c.UserContext(), req.Phone, req.Password, loc)
	if err != nil {
		return err
	}
	token, ttl, err := h.tokens.Issue(user.ID, user.Phone)
	if err != nil {
		return apperr.Internal(err)
	}
	return c.Status(http.StatusOK).JSON(signInResponse{
		Message:     "Sign in successful",
		User:        user.ToView(),
		AccessToken: token,
		ExpiresIn:   int64(ttl.Seconds()),
	})
}
