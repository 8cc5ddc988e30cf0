package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/patrol-auth/internal/domain"
	gocache "github.com/patrickmn/go-cache"
)

// expiryGrace keeps expired challenges around long enough for a late verify
// to be told the code expired rather than that none exists.
const expiryGrace = time.Hour

// ChallengeStore keeps OTP challenges in a go-cache keyed by contact and
// purpose. The mutex serializes read-modify-write on the attempt counter.
type ChallengeStore struct {
	mu  sync.Mutex
	c   *gocache.Cache
	now func() time.Time
}

func NewChallengeStore() *ChallengeStore {
	return &ChallengeStore{c: gocache.New(gocache.NoExpiration, time.Minute), now: time.Now}
}

func challengeKey(contact string, purpose domain.OTPPurpose) string {
	return string(purpose) + "|" + contact
}

func (s *ChallengeStore) Get(_ context.Context, contact string, purpose domain.OTPPurpose) (*domain.OTPChallenge, error) {
	v, ok := s.c.Get(challengeKey(contact, purpose))
	if !ok {
		return nil, fmt.Errorf("otp challenge not found: %w", domain.ErrNotFound)
	}
	c := *v.(*domain.OTPChallenge)
	return &c, nil
}

func (s *ChallengeStore) Put(_ context.Context, c *domain.OTPChallenge) error {
	cp := *c
	ttl := positive(time.Unix(c.ExpiresAt, 0).Sub(s.now()) + expiryGrace)
	s.mu.Lock()
	s.c.Set(challengeKey(c.Contact, c.Purpose), &cp, ttl)
	s.mu.Unlock()
	return nil
}

func (s *ChallengeStore) IncrementAttempts(_ context.Context, contact string, purpose domain.OTPPurpose) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := challengeKey(contact, purpose)
	v, exp, ok := s.c.GetWithExpiration(k)
	if !ok {
		return 0, fmt.Errorf("otp challenge not found: %w", domain.ErrNotFound)
	}
	next := *v.(*domain.OTPChallenge)
	next.Attempts++
	ttl := remaining(exp)
	s.c.Set(k, &next, ttl)
	return next.Attempts, nil
}

func (s *ChallengeStore) Delete(_ context.Context, contact string, purpose domain.OTPPurpose) error {
	s.mu.Lock()
	s.c.Delete(challengeKey(contact, purpose))
	s.mu.Unlock()
	return nil
}
