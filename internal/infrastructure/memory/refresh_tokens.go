package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/patrol-auth/internal/domain"
	gocache "github.com/patrickmn/go-cache"
)

// RefreshStore keeps refresh token records in a go-cache that drops them once
// they expire, plus a per-account index for bulk revocation.
type RefreshStore struct {
	mu        sync.Mutex
	c         *gocache.Cache
	byAccount map[string]map[string]struct{}
	now       func() time.Time
}

func NewRefreshStore() *RefreshStore {
	return &RefreshStore{
		c:         gocache.New(gocache.NoExpiration, 5*time.Minute),
		byAccount: make(map[string]map[string]struct{}),
		now:       time.Now,
	}
}

func (s *RefreshStore) Put(_ context.Context, t *domain.RefreshToken) error {
	cp := *t
	ttl := positive(time.Unix(t.ExpiresAt, 0).Sub(s.now()))
	s.mu.Lock()
	defer s.mu.Unlock()
	s.c.Set(t.TokenHash, &cp, ttl)
	set, ok := s.byAccount[t.AccountID]
	if !ok {
		set = make(map[string]struct{})
		s.byAccount[t.AccountID] = set
	}
	set[t.TokenHash] = struct{}{}
	return nil
}

func (s *RefreshStore) Get(_ context.Context, tokenHash string) (*domain.RefreshToken, error) {
	v, ok := s.c.Get(tokenHash)
	if !ok {
		return nil, fmt.Errorf("refresh token not found: %w", domain.ErrNotFound)
	}
	t := *v.(*domain.RefreshToken)
	return &t, nil
}

func (s *RefreshStore) Revoke(_ context.Context, tokenHash string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revokeLocked(tokenHash, at)
}

func (s *RefreshStore) RevokeAllForAccount(_ context.Context, accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now().UTC()
	for h := range s.byAccount[accountID] {
		if err := s.revokeLocked(h, now); errors.Is(err, domain.ErrNotFound) {
			delete(s.byAccount[accountID], h)
		}
	}
	return nil
}

func (s *RefreshStore) revokeLocked(tokenHash string, at time.Time) error {
	v, exp, ok := s.c.GetWithExpiration(tokenHash)
	if !ok {
		return fmt.Errorf("refresh token not found: %w", domain.ErrNotFound)
	}
	cur := v.(*domain.RefreshToken)
	if cur.Revoked {
		return fmt.Errorf("refresh token already revoked: %w", domain.ErrConflict)
	}
	next := *cur
	next.Revoked = true
	next.RotatedAt = &at
	ttl := remaining(exp)
	s.c.Set(tokenHash, &next, ttl)
	return nil
}

// remaining converts a cache expiration back into a TTL for Set. A zero
// expiration means the item never expires.
func remaining(exp time.Time) time.Duration {
	if exp.IsZero() {
		return gocache.NoExpiration
	}
	return positive(time.Until(exp))
}

// positive clamps d so go-cache never reads it as NoExpiration.
func positive(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Millisecond
	}
	return d
}
