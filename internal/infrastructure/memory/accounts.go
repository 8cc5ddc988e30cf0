package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/patrol-auth/internal/domain"
)

// AccountStore is an in-process account partition for development and tests.
// Records are copied on the way in and out so callers never share memory
// with the store.
type AccountStore struct {
	partition domain.Partition

	mu   sync.RWMutex
	byID map[string]*domain.Account
}

func NewAccountStore(p domain.Partition) *AccountStore {
	return &AccountStore{partition: p, byID: make(map[string]*domain.Account)}
}

func (s *AccountStore) Partition() domain.Partition { return s.partition }

func (s *AccountStore) FindByContact(_ context.Context, contact string) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.byID {
		if a.MatchesContact(contact) {
			return clone(a), nil
		}
	}
	return nil, fmt.Errorf("account not found: %w", domain.ErrNotFound)
}

func (s *AccountStore) FindByID(_ context.Context, accountID string) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.byID[accountID]
	if !ok {
		return nil, fmt.Errorf("account not found: %w", domain.ErrNotFound)
	}
	return clone(a), nil
}

func (s *AccountStore) Put(_ context.Context, a *domain.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[a.AccountID]; ok {
		return fmt.Errorf("account %s exists: %w", a.AccountID, domain.ErrConflict)
	}
	s.byID[a.AccountID] = clone(a)
	return nil
}

// Update applies the fields the services write; unknown fields are rejected.
func (s *AccountStore) Update(_ context.Context, accountID string, updates map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.byID[accountID]
	if !ok {
		return fmt.Errorf("account not found: %w", domain.ErrNotFound)
	}
	next := clone(a)
	for k, v := range updates {
		if err := apply(next, k, v); err != nil {
			return err
		}
	}
	s.byID[accountID] = next
	return nil
}

func apply(a *domain.Account, field string, v interface{}) error {
	var ok bool
	switch field {
	case domain.FieldName:
		a.Name, ok = v.(string)
	case domain.FieldPasswordHash:
		a.PasswordHash, ok = v.(string)
	case domain.FieldIsActive:
		a.IsActive, ok = v.(bool)
	case domain.FieldPending:
		a.PendingVerification, ok = v.(bool)
	case domain.FieldUpdatedAt:
		a.UpdatedAt, ok = v.(time.Time)
	case domain.FieldLastLogin:
		var t time.Time
		if t, ok = v.(time.Time); ok {
			a.LastLogin = &t
		}
	default:
		return fmt.Errorf("unsupported field %q: %w", field, domain.ErrBadRequest)
	}
	if !ok {
		return fmt.Errorf("field %q has type %T: %w", field, v, domain.ErrBadRequest)
	}
	return nil
}

func clone(a *domain.Account) *domain.Account {
	c := *a
	if a.LastLogin != nil {
		t := *a.LastLogin
		c.LastLogin = &t
	}
	return &c
}
