package otp

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kyc-flow/kyc_flow/internal/identity"
	"github.com/kyc-flow/kyc_flow/internal/middleware"
)

type staticGeo struct{ loc identity.Location }

func (g staticGeo) Locate(*fiber.Ctx) identity.Location { return g.loc }

func newTestApp(f *fixture, exposeOTP bool) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: middleware.ErrorHandler(nil)})
	h := NewHandler(f.issuer, f.verifier, staticGeo{identity.Location{Country: "India", IPAddress: "49.36.1.1"}}, exposeOTP)
	app.Post("/auth/send-signup-otp", h.SendSignupOTP)
	app.Post("/auth/verify-signup-otp", h.VerifySignupOTP)
	app.Post("/auth/send-otp", h.SendOTP)
	app.Post("/auth/verify-otp", h.VerifyOTP)
	return app
}

func postJSON(t *testing.T, app *fiber.App, path, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodPost, path, strings.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp.StatusCode, decoded
}

func TestHandlerSignupRoundTrip(t *testing.T) {
	f := newFixture(t, "482913")
	app := newTestApp(f, true)

	status, body := postJSON(t, app, "/auth/send-signup-otp", `{"phone":"9876543210","name":"Asha","password":"secret1"}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "OTP sent successfully", body["message"])
	assert.Equal(t, "482913", body["otp"])

	status, body = postJSON(t, app, "/auth/verify-signup-otp", `{"phone":"9876543210","otp":"482913","name":"Asha","password":"secret1"}`)
	require.Equal(t, http.StatusCreated, status)
	user, ok := body["user"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, user["isPhoneVerified"])
	assert.Equal(t, "India", user["country"])
	assert.NotContains(t, user, "passwordHash")
	assert.NotContains(t, user, "otpCode")

	status, body = postJSON(t, app, "/auth/send-signup-otp", `{"phone":"9876543210","name":"Asha","password":"secret1"}`)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "User with this phone number already exists", body["error"])
}

func TestHandlerHidesOTPWhenNotExposed(t *testing.T) {
	f := newFixture(t, "482913")
	app := newTestApp(f, false)

	status, body := postJSON(t, app, "/auth/send-signup-otp", `{"phone":"9876543210","name":"Asha","password":"secret1"}`)
	assert.Equal(t, http.StatusOK, status)
	assert.NotContains(t, body, "otp")
}

func TestHandlerErrorStatuses(t *testing.T) {
	f := newFixture(t)
	app := newTestApp(f, false)

	cases := []struct {
		path, body string
		status     int
		message    string
	}{
		{"/auth/send-signup-otp", `{"phone":"9876543210"}`, http.StatusBadRequest, "Phone, name, and password are required"},
		{"/auth/verify-signup-otp", `{"phone":"9876543210","otp":"482913","name":"Asha","password":"secret1"}`, http.StatusBadRequest, "No signup session found. Please start sign up again."},
		{"/auth/send-otp", `{}`, http.StatusBadRequest, "Phone number is required"},
		{"/auth/send-otp", `{"phone":"9000000000"}`, http.StatusNotFound, "User not found"},
		{"/auth/verify-otp", `{"phone":"9000000000"}`, http.StatusBadRequest, "Phone number and OTP are required"},
	}
	for _, tc := range cases {
		status, body := postJSON(t, app, tc.path, tc.body)
		assert.Equal(t, tc.status, status, tc.path)
		assert.Equal(t, tc.message, body["error"], tc.path)
	}
}
