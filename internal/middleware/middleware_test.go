package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kyc-flow/kyc_flow/internal/apperr"
	"github.com/kyc-flow/kyc_flow/internal/identity"
)

func TestErrorHandlerMapsKinds(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(nil)})
	app.Get("/conflict", func(c *fiber.Ctx) error {
		return identity.ErrDuplicatePhone.Wrap(errors.New("E11000"))
	})
	app.Get("/boom", func(c *fiber.Ctx) error { return errors.New("dial tcp: refused") })
	app.Get("/fiber", func(c *fiber.Ctx) error { return fiber.NewError(http.StatusTooManyRequests, "slow down") })

	cases := map[string]struct {
		status int
		msg    string
	}{
		"/conflict": {http.StatusConflict, "User with this phone number already exists"},
		"/boom":     {http.StatusInternalServerError, "Internal server error"},
		"/fiber":    {http.StatusTooManyRequests, "slow down"},
	}
	for path, want := range cases {
		resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, path, nil))
		require.NoError(t, err)
		var body map[string]string
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, want.status, resp.StatusCode, path)
		assert.Equal(t, want.msg, body["error"], path)
	}
}

func TestRateLimitRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer cache.Close()

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(nil)})
	app.Post("/otp", RateLimit(cache, "otp", 2, nil), func(c *fiber.Ctx) error { return c.SendStatus(http.StatusOK) })

	send := func(phone string) int {
		req := httptest.NewRequest(fiber.MethodPost, "/otp", strings.NewReader(`{"phone":"`+phone+`"}`))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		resp, err := app.Test(req)
		require.NoError(t, err)
		return resp.StatusCode
	}

	assert.Equal(t, http.StatusOK, send("9876543210"))
	ttl := mr.TTL(rateLimitPrefix + "otp:9876543210")
	assert.True(t, ttl > 0 && ttl <= time.Minute, "window expiry set with the counter, got %s", ttl)
	assert.Equal(t, http.StatusOK, send("9876543210"))
	assert.Equal(t, http.StatusTooManyRequests, send("9876543210"))
	assert.Equal(t, http.StatusOK, send("9123456789"))

	mr.FastForward(61 * time.Second)
	assert.Equal(t, http.StatusOK, send("9876543210"))
}

func TestRateLimitFallsBackToLocal(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(nil)})
	app.Post("/signin", RateLimit(nil, "signin", 1, nil), func(c *fiber.Ctx) error { return c.SendStatus(http.StatusOK) })

	for i, want := range []int{http.StatusOK, http.StatusTooManyRequests} {
		req := httptest.NewRequest(fiber.MethodPost, "/signin", strings.NewReader(`{"phone":"9876543210"}`))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, want, resp.StatusCode, i)
	}
}

type stubTokens map[string]string

func (s stubTokens) Subject(token string) (string, error) {
	if sub, ok := s[token]; ok {
		return sub, nil
	}
	return "", errors.New("bad token")
}

type stubUsers map[string]identity.User

var errStoreDown = errors.New("dial tcp: connection refused")

func (s stubUsers) FindByID(_ context.Context, id string) (identity.User, error) {
	if id == "down" {
		return identity.User{}, errStoreDown
	}
	if u, ok := s[id]; ok {
		return u, nil
	}
	return identity.User{}, identity.ErrNotFound
}

func TestJWTAuth(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(nil)})
	tokens := stubTokens{"good": "u1", "orphan": "u2", "outage": "down"}
	users := stubUsers{"u1": {ID: "u1"}}
	app.Get("/me", JWTAuth(tokens, users), func(c *fiber.Ctx) error {
		return c.SendString(identity.CurrentUserID(c))
	})

	cases := []struct {
		header string
		status int
	}{
		{"", http.StatusUnauthorized},
		{"Basic abc", http.StatusUnauthorized},
		{"Bearer nope", http.StatusUnauthorized},
		{"Bearer orphan", http.StatusUnauthorized},
		{"Bearer outage", http.StatusServiceUnavailable},
		{"bearer good", http.StatusOK},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(fiber.MethodGet, "/me", nil)
		if tc.header != "" {
			req.Header.Set(fiber.HeaderAuthorization, tc.header)
		}
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, tc.status, resp.StatusCode, tc.header)
	}
}

func TestAuditLogsClassifiedStatus(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(nil)})
	app.Use(RequestID(), Audit(logger))
	app.Get("/missing", func(c *fiber.Ctx) error {
		return apperr.New(apperr.KindNotFound, "X", "User not found")
	})

	req := httptest.NewRequest(fiber.MethodGet, "/missing", nil)
	req.Header.Set(requestIDHeader, "req-42")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "req-42", resp.Header.Get(requestIDHeader))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.EqualValues(t, http.StatusNotFound, entry["status"])
	assert.Equal(t, "req-42", entry["request_id"])
}
