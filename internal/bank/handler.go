package bank

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/kyc-flow/kyc_flow/internal/apperr"
	"github.com/kyc-flow/kyc_flow/internal/identity"
)

// Handler exposes bank account HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a bank account HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Add links an account to the authenticated user.
func (h *Handler) Add(c *fiber.Ctx) error {
	var req AddInput
	if err := c.BodyParser(&req); err != nil {
		return apperr.Validation("Invalid request body")
	}
	if req.AccountHolderName == "" || req.AccountNumber == "" || req.IFSCCode == "" ||
		req.BankName == "" || req.BranchName == "" || req.AccountType == "" {
		return apperr.Validation("All fields are required")
	}
	account, err := h.service.Add(c.UserContext(), identity.CurrentUserID(c), req)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"message":     "Bank account added successfully",
		"bankAccount": account.ToView(),
	})
}

// List returns the authenticated user's accounts.
func (h *Handler) List(c *fiber.Ctx) error {
	accounts, err := h.service.List(c.UserContext(), identity.CurrentUserID(c))
	if err != nil {
		return err
	}
	views := make([]View, 0, len(accounts))
	for _, a := range accounts {
		views = append(views, a.ToView())
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"bankAccounts": views})
}
