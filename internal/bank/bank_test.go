package bank

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kyc-flow/kyc_flow/internal/identity"
	"github.com/kyc-flow/kyc_flow/internal/middleware"
)

type stubUsers map[string]identity.User

func (s stubUsers) FindByID(_ context.Context, id string) (identity.User, error) {
	if u, ok := s[id]; ok {
		return u, nil
	}
	return identity.User{}, identity.ErrNotFound
}

var testUsers = stubUsers{
	"u1": {ID: "u1", Phone: "9876543210", IsPhoneVerified: true, IsPanVerified: true},
	"u2": {ID: "u2", Phone: "9123456789", IsPhoneVerified: true},
}

func validInput() AddInput {
	return AddInput{
		AccountHolderName: "Asha Rao",
		AccountNumber:     "123456789012",
		IFSCCode:          "sbin0001234",
		BankName:          "State Bank of India",
		BranchName:        "Indiranagar",
		AccountType:       "Savings",
	}
}

func TestMask(t *testing.T) {
	assert.Equal(t, "********9012", Mask("123456789012"))
	assert.Equal(t, "123", Mask("123"))
}

func TestAddAndList(t *testing.T) {
	clock := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	svc := NewService(NewMemoryRepository(), testUsers, nil).WithClock(func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	})
	ctx := context.Background()

	first, err := svc.Add(ctx, "u1", validInput())
	require.NoError(t, err)
	assert.Equal(t, "SBIN0001234", first.IFSCCode)
	assert.Equal(t, TypeSavings, first.AccountType)
	assert.Equal(t, "9876543210", first.Phone)
	assert.False(t, first.IsVerified)

	in := validInput()
	in.AccountNumber = "998877665544"
	second, err := svc.Add(ctx, "u1", in)
	require.NoError(t, err)

	accounts, err := svc.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, second.ID, accounts[0].ID)
	assert.Equal(t, first.ID, accounts[1].ID)

	_, err = svc.Add(ctx, "u1", validInput())
	assert.ErrorIs(t, err, ErrDuplicateAccount)
}

func TestAddRejections(t *testing.T) {
	svc := NewService(NewMemoryRepository(), testUsers, nil)
	ctx := context.Background()

	_, err := svc.Add(ctx, "u2", validInput())
	assert.ErrorIs(t, err, ErrPANNotVerified)

	_, err = svc.Add(ctx, "ghost", validInput())
	assert.ErrorIs(t, err, identity.ErrNotFound)

	cases := map[string]func(*AddInput){
		"short number":  func(in *AddInput) { in.AccountNumber = "12345678" },
		"letters":       func(in *AddInput) { in.AccountNumber = "12345678X" },
		"bad ifsc":      func(in *AddInput) { in.IFSCCode = "SBIN1001234" },
		"bad type":      func(in *AddInput) { in.AccountType = "joint" },
		"long bankname": func(in *AddInput) { in.BankName = strings.Repeat("b", 101) },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			in := validInput()
			mutate(&in)
			_, err := svc.Add(ctx, "u1", in)
			require.Error(t, err)
			assert.Equal(t, http.StatusBadRequest, statusOf(t, err))
		})
	}
}

func statusOf(t *testing.T, err error) int {
	t.Helper()
	app := fiber.New(fiber.Config{ErrorHandler: middleware.ErrorHandler(nil)})
	app.Get("/", func(*fiber.Ctx) error { return err })
	resp, rerr := app.Test(httptest.NewRequest(fiber.MethodGet, "/", nil))
	require.NoError(t, rerr)
	return resp.StatusCode
}

func TestHandlerMasksAccountNumber(t *testing.T) {
	h := NewHandler(NewService(NewMemoryRepository(), testUsers, nil))
	app := fiber.New(fiber.Config{ErrorHandler: middleware.ErrorHandler(nil)})
	asUser := func(c *fiber.Ctx) error {
		c.Locals(identity.LocalsUserID, c.Get("X-Test-User"))
		return c.Next()
	}
	app.Post("/bank-account/add", asUser, h.Add)
	app.Get("/bank-account", asUser, h.List)

	do := func(method, path, user, body string) (int, string) {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		req.Header.Set("X-Test-User", user)
		resp, err := app.Test(req)
		require.NoError(t, err)
		var raw json.RawMessage
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&raw))
		return resp.StatusCode, string(raw)
	}

	payload := `{"accountHolderName":"Asha Rao","accountNumber":"123456789012","ifscCode":"SBIN0001234",
		"bankName":"SBI","branchName":"Indiranagar","accountType":"current"}`

	status, body := do(fiber.MethodPost, "/bank-account/add", "u1", `{"accountNumber":"123456789012"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body, "All fields are required")

	status, body = do(fiber.MethodPost, "/bank-account/add", "u2", payload)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Contains(t, body, "PAN verification required")

	status, body = do(fiber.MethodPost, "/bank-account/add", "u1", payload)
	require.Equal(t, http.StatusCreated, status)
	assert.Contains(t, body, `"maskedAccountNumber":"********9012"`)
	assert.NotContains(t, body, "123456789012")

	status, _ = do(fiber.MethodPost, "/bank-account/add", "u1", payload)
	assert.Equal(t, http.StatusConflict, status)

	status, body = do(fiber.MethodGet, "/bank-account", "u1", "")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "********9012")
	assert.NotContains(t, body, "123456789012")
}
