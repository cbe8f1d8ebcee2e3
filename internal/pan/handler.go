package pan

import (
	"io"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/kyc-flow/kyc_flow/internal/apperr"
	"github.com/kyc-flow/kyc_flow/internal/identity"
)

// Handler exposes PAN verification.
type Handler struct {
	service *Service
}

// NewHandler constructs a PAN handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Verify handles the multipart PAN upload of the authenticated user.
func (h *Handler) Verify(c *fiber.Ctx) error {
	number := c.FormValue("panNumber")
	file, err := c.FormFile("panCardImage")
	if number == "" || err != nil {
		return apperr.Validation("PAN number and PAN card image are required")
	}
	if file.Size > MaxImageSize {
		return ErrImageTooLarge
	}
	f, err := file.Open()
	if err != nil {
		return apperr.Validation("Could not read PAN card image")
	}
	defer f.Close()
	image, err := io.ReadAll(io.LimitReader(f, MaxImageSize+1))
	if err != nil {
		return apperr.Validation("Could not read PAN card image")
	}

	user, err := h.service.Verify(c.UserContext(), identity.CurrentUserID(c), Submission{
		Number:      number,
		Image:       image,
		ContentType: file.Header.Get(fiber.HeaderContentType),
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"message": "PAN verification successful",
		"user":    user.ToView(),
	})
}
