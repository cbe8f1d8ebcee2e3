package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/kyc-flow/kyc_flow/internal/bank"
	"github.com/kyc-flow/kyc_flow/internal/identity"
	"github.com/kyc-flow/kyc_flow/internal/pan"
)

// RegisterAccountRoutes wires the endpoints that require a bearer token.
func RegisterAccountRoutes(r fiber.Router, jwt fiber.Handler, ids *identity.Handler, pans *pan.Handler,
	banks *bank.Handler, idempotency fiber.Handler) {
	r.Get("/user/profile", jwt, ids.Profile)
	r.Post("/pan/verify", jwt, pans.Verify)

	group := r.Group("/bank-account", jwt)
	group.Post("/add", idempotency, banks.Add)
	group.Get("", banks.List)
}
