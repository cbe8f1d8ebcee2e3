package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/kyc-flow/kyc_flow/internal/apperr"
	"github.com/kyc-flow/kyc_flow/internal/identity"
)

var errUnauthorized = apperr.New(apperr.KindUnauthorized, "UNAUTHORIZED", "Unauthorized")

// TokenVerifier resolves an access token to the user id it was issued to.
type TokenVerifier interface {
	Subject(token string) (string, error)
}

// UserFinder looks identities up by id.
type UserFinder interface {
	FindByID(ctx context.Context, id string) (identity.User, error)
}

// JWTAuth validates bearer access tokens and stores the caller's id under
// identity.LocalsUserID. Tokens of deleted users are rejected.
func JWTAuth(tokens TokenVerifier, users UserFinder) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authz := c.Get(fiber.HeaderAuthorization)
		if len(authz) < len("Bearer ") || !strings.EqualFold(authz[:len("Bearer ")], "bearer ") {
			return errUnauthorized.WithMessage("No token provided")
		}
		sub, err := tokens.Subject(strings.TrimSpace(authz[len("Bearer "):]))
		if err != nil {
			return errUnauthorized.WithMessage("Invalid token")
		}
		if _, err := users.FindByID(c.UserContext(), sub); err != nil {
			if errors.Is(err, identity.ErrNotFound) {
				return errUnauthorized.WithMessage("Invalid token")
			}
			return apperr.Unavailable(err)
		}
		c.Locals(identity.LocalsUserID, sub)
		return c.Next()
	}
}
