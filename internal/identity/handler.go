package identity

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/kyc-flow/kyc_flow/internal/apperr"
)

// LocalsUserID is the fiber locals key under which the authenticated user id
// is stored by the JWT middleware.
const LocalsUserID = "user_id"

// CurrentUserID returns the authenticated user id, or "" when the request is
// anonymous.
func CurrentUserID(c *fiber.Ctx) string {
	uid, _ := c.Locals(LocalsUserID).(string)
	return uid
}

// Geolocator resolves the origin of a request. Implementations never fail;
// unknown values are reported as such.
type Geolocator interface {
	Locate(c *fiber.Ctx) Location
}

// Handler exposes identity endpoints.
type Handler struct {
	service *Service
	geo     Geolocator
}

// NewHandler constructs an identity HTTP handler.
func NewHandler(service *Service, geo Geolocator) *Handler {
	return &Handler{service: service, geo: geo}
}

// Register handles direct, unverified onboarding.
func (h *Handler) Register(c *fiber.Ctx) error {
	var req RegisterInput
	if err := c.BodyParser(&req); err != nil {
		return apperr.Validation("Invalid request body")
	}
	if req.Phone == "" || req.Name == "" || req.Password == "" {
		return apperr.Validation("Phone, name, and password are required")
	}
	user, err := h.service.Register(c.UserContext(), req, h.geo.Locate(c))
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"message": "User registered successfully. Please verify your phone number.",
		"userId":  user.ID,
		"user":    user.ToView(),
	})
}

// Profile returns the authenticated user.
func (h *Handler) Profile(c *fiber.Ctx) error {
	uid := CurrentUserID(c)
	if uid == "" {
		return apperr.New(apperr.KindUnauthorized, "UNAUTHORIZED", "Unauthorized")
	}
	user, err := h.service.Profile(c.UserContext(), uid)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"user": user.ToView()})
}
