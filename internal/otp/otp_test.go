package otp

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kyc-flow/kyc_flow/internal/identity"
)

type fixture struct {
	mr        *miniredis.Miniredis
	ids       *identity.Service
	pending   *RedisPendingStore
	issuer    *Issuer
	verifier  *Verifier
	finalizer *Finalizer

	mu    sync.Mutex
	now   time.Time
	codes []string
}

func newFixture(t *testing.T, codes ...string) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	f := &fixture{
		mr:    mr,
		now:   time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
		codes: codes,
	}
	f.ids = identity.NewService(identity.NewMemoryRepository(), identity.NewBcryptHasher(4), nil).WithClock(f.clock)
	f.pending = NewRedisPendingStore(client)
	opts := Options{TTL: DefaultTTL, NewCode: f.nextCode, Now: f.clock}
	f.finalizer = NewFinalizer(f.ids, f.pending, f.ids.Hasher(), nil)
	f.issuer = NewIssuer(f.ids, f.pending, nil, opts, nil)
	f.verifier = NewVerifier(f.ids, f.pending, f.finalizer, opts, nil)
	return f
}

func (f *fixture) clock() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fixture) advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func (f *fixture) nextCode() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.codes) == 0 {
		return "123456", nil
	}
	code := f.codes[0]
	f.codes = f.codes[1:]
	return code, nil
}

var asha = SignupRequest{Phone: "9876543210", Name: "Asha", Password: "secret1"}

func TestSignupHappyPath(t *testing.T) {
	f := newFixture(t, "482913")
	ctx := context.Background()

	issued, err := f.issuer.IssueSignupOTP(ctx, asha, identity.Location{Country: "India", IPAddress: "49.36.1.1"})
	require.NoError(t, err)
	assert.Equal(t, "482913", issued.Code)
	assert.Equal(t, f.clock().Add(10*time.Minute), issued.ExpiresAt)
	assert.Equal(t, DefaultTTL+pendingRetention, f.mr.TTL(pendingPrefix+asha.Phone))

	f.advance(9 * time.Minute)
	user, err := f.verifier.VerifySignupOTP(ctx, asha.Phone, "482913", asha.Name, asha.Password)
	require.NoError(t, err)
	assert.True(t, user.IsPhoneVerified)
	assert.False(t, user.IsPanVerified)
	assert.Equal(t, "India", user.Country)
	assert.NotEqual(t, asha.Password, user.PasswordHash)
	assert.False(t, f.mr.Exists(pendingPrefix+asha.Phone))

	_, err = f.pending.Get(ctx, asha.Phone)
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestReissueInvalidatesPreviousCode(t *testing.T) {
	f := newFixture(t, "482913", "670215")
	ctx := context.Background()

	_, err := f.issuer.IssueSignupOTP(ctx, asha, identity.Location{})
	require.NoError(t, err)
	_, err = f.issuer.IssueSignupOTP(ctx, asha, identity.Location{})
	require.NoError(t, err)

	_, err = f.verifier.VerifySignupOTP(ctx, asha.Phone, "482913", asha.Name, asha.Password)
	assert.ErrorIs(t, err, ErrInvalidCode)

	user, err := f.verifier.VerifySignupOTP(ctx, asha.Phone, "670215", asha.Name, asha.Password)
	require.NoError(t, err)
	assert.True(t, user.IsPhoneVerified)
}

func TestWrongCodeKeepsSession(t *testing.T) {
	f := newFixture(t, "482913")
	ctx := context.Background()

	_, err := f.issuer.IssueSignupOTP(ctx, asha, identity.Location{})
	require.NoError(t, err)

	before, err := f.pending.Get(ctx, asha.Phone)
	require.NoError(t, err)

	_, err = f.verifier.VerifySignupOTP(ctx, asha.Phone, "000000", asha.Name, asha.Password)
	assert.ErrorIs(t, err, ErrInvalidCode)

	after, err := f.pending.Get(ctx, asha.Phone)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	_, err = f.verifier.VerifySignupOTP(ctx, asha.Phone, "482913", asha.Name, asha.Password)
	assert.NoError(t, err)
}

func TestExpiredSessionIsDiscarded(t *testing.T) {
	f := newFixture(t, "482913")
	ctx := context.Background()

	_, err := f.issuer.IssueSignupOTP(ctx, asha, identity.Location{})
	require.NoError(t, err)

	f.advance(10*time.Minute + time.Second)
	_, err = f.verifier.VerifySignupOTP(ctx, asha.Phone, "482913", asha.Name, asha.Password)
	assert.ErrorIs(t, err, ErrExpired)
	assert.Equal(t, "OTP has expired. Please start sign up again.", err.Error())

	_, err = f.verifier.VerifySignupOTP(ctx, asha.Phone, "482913", asha.Name, asha.Password)
	assert.ErrorIs(t, err, ErrNoSession)

	_, err = f.ids.Lookup(ctx, asha.Phone)
	assert.ErrorIs(t, err, identity.ErrNotFound)
}

func TestVerifyWithoutSession(t *testing.T) {
	f := newFixture(t)
	_, err := f.verifier.VerifySignupOTP(context.Background(), "9123456789", "482913", "Ravi", "secret1")
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestVerifyRequiresAllFields(t *testing.T) {
	f := newFixture(t)
	_, err := f.verifier.VerifySignupOTP(context.Background(), asha.Phone, "482913", "", asha.Password)
	require.Error(t, err)
	assert.Equal(t, "Phone, OTP, name, and password are required", err.Error())
}

func TestIssueForRegisteredPhoneWritesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ids.CreateVerified(ctx, identity.CreateVerifiedInput{Name: "Asha", Phone: asha.Phone, PasswordHash: "x"})
	require.NoError(t, err)

	_, err = f.issuer.IssueSignupOTP(ctx, asha, identity.Location{})
	assert.ErrorIs(t, err, ErrPhoneAlreadyRegistered)
	assert.False(t, f.mr.Exists(pendingPrefix+asha.Phone))
}

func TestIssueValidatesInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.issuer.IssueSignupOTP(ctx, SignupRequest{Phone: asha.Phone}, identity.Location{})
	require.Error(t, err)
	assert.Equal(t, "Phone, name, and password are required", err.Error())

	_, err = f.issuer.IssueSignupOTP(ctx, SignupRequest{Phone: asha.Phone, Name: "Asha", Password: "abc"}, identity.Location{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least 6")

	_, err = f.issuer.IssueSignupOTP(ctx, SignupRequest{Phone: asha.Phone, Name: "   ", Password: "secret1"}, identity.Location{})
	require.Error(t, err)
	assert.Equal(t, "Phone, name, and password are required", err.Error())
	assert.Empty(t, f.mr.Keys())
}

func TestIssueStagesTrimmedName(t *testing.T) {
	f := newFixture(t, "482913")
	ctx := context.Background()

	_, err := f.issuer.IssueSignupOTP(ctx, SignupRequest{Phone: asha.Phone, Name: "  Asha  ", Password: "secret1"}, identity.Location{})
	require.NoError(t, err)
	staged, err := f.pending.Get(ctx, asha.Phone)
	require.NoError(t, err)
	assert.Equal(t, "Asha", staged.Name)
}

func TestVerifyDetectsSignupCompletedElsewhere(t *testing.T) {
	f := newFixture(t, "482913")
	ctx := context.Background()

	_, err := f.issuer.IssueSignupOTP(ctx, asha, identity.Location{})
	require.NoError(t, err)
	_, err = f.ids.CreateVerified(ctx, identity.CreateVerifiedInput{Name: "Asha", Phone: asha.Phone, PasswordHash: "x"})
	require.NoError(t, err)

	_, err = f.verifier.VerifySignupOTP(ctx, asha.Phone, "482913", asha.Name, asha.Password)
	assert.ErrorIs(t, err, ErrPhoneAlreadyRegistered)
	assert.False(t, f.mr.Exists(pendingPrefix+asha.Phone))
}

func TestConcurrentFinalizeCreatesOneIdentity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	entry := PendingSignup{
		Phone:        asha.Phone,
		Name:         asha.Name,
		Password:     asha.Password,
		OTPCode:      "482913",
		OTPExpiresAt: f.clock().Add(DefaultTTL),
	}
	require.NoError(t, f.pending.Put(ctx, entry, time.Hour))

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.finalizer.Finalize(ctx, entry)
		}(i)
	}
	wg.Wait()

	var ok, dup int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, identity.ErrDuplicatePhone):
			dup++
		default:
			t.Fatalf("unexpected finalize error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, dup)
	assert.False(t, f.mr.Exists(pendingPrefix+asha.Phone))
}

type failingIdentities struct {
	*identity.Service
}

func (failingIdentities) CreateVerified(context.Context, identity.CreateVerifiedInput) (identity.User, error) {
	return identity.User{}, errors.New("connection reset")
}

func TestFinalizeFailurePreservesSession(t *testing.T) {
	f := newFixture(t, "482913")
	ctx := context.Background()

	finalizer := NewFinalizer(failingIdentities{f.ids}, f.pending, f.ids.Hasher(), nil)
	verifier := NewVerifier(failingIdentities{f.ids}, f.pending, finalizer, Options{Now: f.clock}, nil)

	_, err := f.issuer.IssueSignupOTP(ctx, asha, identity.Location{})
	require.NoError(t, err)

	_, err = verifier.VerifySignupOTP(ctx, asha.Phone, "482913", asha.Name, asha.Password)
	require.Error(t, err)
	assert.True(t, f.mr.Exists(pendingPrefix+asha.Phone))

	user, err := f.verifier.VerifySignupOTP(ctx, asha.Phone, "482913", asha.Name, asha.Password)
	require.NoError(t, err)
	assert.True(t, user.IsPhoneVerified)
}

func TestReverifyFlow(t *testing.T) {
	f := newFixture(t, "111111", "222222")
	ctx := context.Background()

	registered, err := f.ids.Register(ctx, identity.RegisterInput{Name: "Asha", Phone: asha.Phone, Password: asha.Password}, identity.Location{})
	require.NoError(t, err)

	_, err = f.verifier.VerifyReverifyOTP(ctx, asha.Phone, "111111")
	assert.ErrorIs(t, err, ErrNoOTPIssued)

	_, err = f.issuer.IssueReverifyOTP(ctx, asha.Phone)
	require.NoError(t, err)
	_, err = f.issuer.IssueReverifyOTP(ctx, asha.Phone)
	require.NoError(t, err)

	_, err = f.verifier.VerifyReverifyOTP(ctx, asha.Phone, "111111")
	assert.ErrorIs(t, err, ErrInvalidCode)

	user, err := f.verifier.VerifyReverifyOTP(ctx, asha.Phone, "222222")
	require.NoError(t, err)
	assert.Equal(t, registered.ID, user.ID)
	assert.True(t, user.IsPhoneVerified)
	assert.Nil(t, user.OTP)

	_, err = f.verifier.VerifyReverifyOTP(ctx, asha.Phone, "222222")
	assert.ErrorIs(t, err, ErrNoOTPIssued)
}

func TestReverifyExpiredAndUnknown(t *testing.T) {
	f := newFixture(t, "111111")
	ctx := context.Background()

	_, err := f.issuer.IssueReverifyOTP(ctx, asha.Phone)
	assert.ErrorIs(t, err, identity.ErrNotFound)

	_, err = f.ids.Register(ctx, identity.RegisterInput{Name: "Asha", Phone: asha.Phone, Password: asha.Password}, identity.Location{})
	require.NoError(t, err)
	_, err = f.issuer.IssueReverifyOTP(ctx, asha.Phone)
	require.NoError(t, err)

	f.advance(11 * time.Minute)
	_, err = f.verifier.VerifyReverifyOTP(ctx, asha.Phone, "111111")
	assert.ErrorIs(t, err, ErrExpired)
	assert.Equal(t, "OTP has expired. Please request a new OTP.", err.Error())
}

func TestRandomCodeRange(t *testing.T) {
	for i := 0; i < 500; i++ {
		code, err := RandomCode()
		require.NoError(t, err)
		require.Len(t, code, 6)
		assert.True(t, code >= "100000" && code <= "999999", code)
	}
}
