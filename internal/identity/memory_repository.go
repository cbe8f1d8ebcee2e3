package identity

import (
	"context"
	"sync"
	"time"
)

type memoryRepository struct {
	mu    sync.RWMutex
	users map[string]User
}

// NewMemoryRepository builds an in-memory user store for tests and local runs.
func NewMemoryRepository() Repository {
	return &memoryRepository{users: make(map[string]User)}
}

func (r *memoryRepository) Create(_ context.Context, user User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.users[user.Phone]; exists {
		return ErrDuplicatePhone
	}
	r.users[user.Phone] = clone(user)
	return nil
}

func (r *memoryRepository) FindByID(_ context.Context, id string) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, user, ok := r.byID(id)
	if !ok {
		return User{}, ErrNotFound
	}
	return clone(user), nil
}

func (r *memoryRepository) FindByPhone(_ context.Context, phone string) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.users[phone]
	if !ok {
		return User{}, ErrNotFound
	}
	return clone(user), nil
}

func (r *memoryRepository) FindByPAN(_ context.Context, pan string) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, user := range r.users {
		if user.PANNumber != "" && user.PANNumber == pan {
			return clone(user), nil
		}
	}
	return User{}, ErrNotFound
}

func (r *memoryRepository) SetOTP(_ context.Context, id string, otp OTPChallenge) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	phone, user, ok := r.byID(id)
	if !ok {
		return ErrNotFound
	}
	user.OTP = &otp
	r.users[phone] = user
	return nil
}

func (r *memoryRepository) ConfirmPhone(_ context.Context, id, code string, at time.Time) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	phone, user, ok := r.byID(id)
	if !ok {
		return User{}, ErrNotFound
	}
	if user.OTP == nil || user.OTP.Code != code {
		return User{}, ErrStaleOTP
	}
	user.IsPhoneVerified = true
	user.OTP = nil
	user.UpdatedAt = at.UTC()
	r.users[phone] = user
	return clone(user), nil
}

func (r *memoryRepository) RecordSignIn(_ context.Context, id string, at time.Time, loc Location) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	phone, user, ok := r.byID(id)
	if !ok {
		return ErrNotFound
	}
	at = at.UTC()
	user.LastLoginAt = &at
	user.Country = loc.Country
	user.IPAddress = loc.IPAddress
	user.UpdatedAt = at
	r.users[phone] = user
	return nil
}

func (r *memoryRepository) UpdatePAN(_ context.Context, id string, update PANUpdate, at time.Time) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	phone, user, ok := r.byID(id)
	if !ok {
		return User{}, ErrNotFound
	}
	for _, other := range r.users {
		if other.ID != id && other.PANNumber == update.Number {
			return User{}, ErrDuplicatePAN
		}
	}
	user.PANNumber = update.Number
	user.PANCardImage = update.Image
	user.IsPanVerified = update.Verified
	user.UpdatedAt = at.UTC()
	r.users[phone] = user
	return clone(user), nil
}

// byID must be called with r.mu held.
func (r *memoryRepository) byID(id string) (string, User, bool) {
	for phone, user := range r.users {
		if user.ID == id {
			return phone, user, true
		}
	}
	return "", User{}, false
}

func clone(u User) User {
	if u.OTP != nil {
		otp := *u.OTP
		u.OTP = &otp
	}
	if u.LastLoginAt != nil {
		at := *u.LastLoginAt
		u.LastLoginAt = &at
	}
	return u
}
