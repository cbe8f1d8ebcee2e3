package bank

import (
	"context"
	"sort"
	"sync"
)

type memoryRepository struct {
	mu       sync.RWMutex
	byNumber map[string]Account
}

// NewMemoryRepository constructs an in-memory repository for tests and the
// development store driver.
func NewMemoryRepository() Repository {
	return &memoryRepository{byNumber: make(map[string]Account)}
}

func (r *memoryRepository) Create(_ context.Context, a Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byNumber[a.AccountNumber]; exists {
		return ErrDuplicateAccount
	}
	r.byNumber[a.AccountNumber] = a
	return nil
}

func (r *memoryRepository) ListByUser(_ context.Context, userID string) ([]Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var accounts []Account
	for _, a := range r.byNumber {
		if a.UserID == userID {
			accounts = append(accounts, a)
		}
	}
	sort.Slice(accounts, func(i, j int) bool {
		return accounts[i].CreatedAt.After(accounts[j].CreatedAt)
	})
	return accounts, nil
}
