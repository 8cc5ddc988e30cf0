package otp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/patrol-auth/internal/domain"
	"github.com/patrol-auth/internal/metrics"
	"github.com/patrol-auth/internal/pkg/token"
)

// CodeLength is the number of decimal digits in an issued code.
const CodeLength = 6

// ChallengeStore persists at most one challenge per (contact, purpose).
type ChallengeStore interface {
	Get(ctx context.Context, contact string, purpose domain.OTPPurpose) (*domain.OTPChallenge, error)
	// Put replaces any existing challenge for the same key.
	Put(ctx context.Context, c *domain.OTPChallenge) error
	// IncrementAttempts atomically adds one to the attempt counter and returns
	// the new value.
	IncrementAttempts(ctx context.Context, contact string, purpose domain.OTPPurpose) (int, error)
	Delete(ctx context.Context, contact string, purpose domain.OTPPurpose) error
}

// Issued is a freshly created challenge. Code is the only copy of the
// plaintext and must go straight to delivery.
type Issued struct {
	Code      string
	ExpiresAt time.Time
}

type ManagerDeps struct {
	Store       ChallengeStore
	TTL         time.Duration
	MaxAttempts int
	RateLimit   time.Duration
	Now         func() time.Time
	NewCode     func() (string, error)
}

// Manager issues and verifies one-time codes.
type Manager struct {
	store       ChallengeStore
	ttl         time.Duration
	maxAttempts int
	rateLimit   time.Duration
	now         func() time.Time
	newCode     func() (string, error)
}

func NewManager(d ManagerDeps) *Manager {
	if d.TTL <= 0 {
		d.TTL = 10 * time.Minute
	}
	if d.MaxAttempts < 1 {
		d.MaxAttempts = 3
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.NewCode == nil {
		d.NewCode = func() (string, error) { return token.NumericCode(CodeLength) }
	}
	return &Manager{
		store:       d.Store,
		ttl:         d.TTL,
		maxAttempts: d.MaxAttempts,
		rateLimit:   d.RateLimit,
		now:         d.Now,
		newCode:     d.NewCode,
	}
}

// Issue creates a challenge for (contact, purpose), replacing any previous
// one. It is refused with ErrRateLimited while the current challenge is
// younger than the rate-limit window.
func (m *Manager) Issue(ctx context.Context, contact string, purpose domain.OTPPurpose) (*Issued, error) {
	now := m.now().UTC()
	if m.rateLimit > 0 {
		existing, err := m.store.Get(ctx, contact, purpose)
		switch {
		case err == nil:
			if now.Sub(existing.CreatedAt) < m.rateLimit {
				return nil, fmt.Errorf("otp requested too soon: %w", domain.ErrRateLimited)
			}
		case !errors.Is(err, domain.ErrNotFound):
			return nil, fmt.Errorf("load otp challenge: %w", err)
		}
	}

	code, err := m.newCode()
	if err != nil {
		return nil, err
	}
	expires := now.Add(m.ttl)
	c := &domain.OTPChallenge{
		Contact:   contact,
		Purpose:   purpose,
		CodeHash:  token.Hash(code),
		ExpiresAt: expires.Unix(),
		CreatedAt: now,
	}
	if err := m.store.Put(ctx, c); err != nil {
		return nil, fmt.Errorf("store otp challenge: %w", err)
	}
	metrics.OTPIssued.WithLabelValues(string(purpose)).Inc()
	return &Issued{Code: code, ExpiresAt: expires}, nil
}

// Verify checks code against the live challenge for (contact, purpose). A
// correct code consumes the challenge. Errors: domain.ErrNotFound,
// ErrOTPExpired, ErrOTPAttemptsExceeded, ErrOTPInvalid.
func (m *Manager) Verify(ctx context.Context, contact string, purpose domain.OTPPurpose, code string) error {
	err := m.verify(ctx, contact, purpose, code)
	metrics.OTPVerifications.WithLabelValues(string(purpose), resultLabel(err)).Inc()
	return err
}

func (m *Manager) verify(ctx context.Context, contact string, purpose domain.OTPPurpose, code string) error {
	c, err := m.store.Get(ctx, contact, purpose)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("no pending otp: %w", domain.ErrNotFound)
		}
		return fmt.Errorf("load otp challenge: %w", err)
	}

	if c.Expired(m.now()) {
		m.discard(ctx, contact, purpose)
		return domain.ErrOTPExpired
	}
	if c.Attempts >= m.maxAttempts {
		m.discard(ctx, contact, purpose)
		return domain.ErrOTPAttemptsExceeded
	}
	if token.Equal(c.CodeHash, token.Hash(code)) {
		if err := m.store.Delete(ctx, contact, purpose); err != nil {
			return fmt.Errorf("consume otp challenge: %w", err)
		}
		return nil
	}

	attempts, err := m.store.IncrementAttempts(ctx, contact, purpose)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// Consumed or replaced concurrently.
			return domain.ErrOTPInvalid
		}
		return fmt.Errorf("record otp attempt: %w", err)
	}
	if attempts >= m.maxAttempts {
		m.discard(ctx, contact, purpose)
		return domain.ErrOTPAttemptsExceeded
	}
	return domain.ErrOTPInvalid
}

func (m *Manager) discard(ctx context.Context, contact string, purpose domain.OTPPurpose) {
	if err := m.store.Delete(ctx, contact, purpose); err != nil && !errors.Is(err, domain.ErrNotFound) {
		slog.Warn("failed to delete otp challenge", "purpose", purpose, "err", err)
	}
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrOTPInvalid):
		return "invalid"
	case errors.Is(err, domain.ErrOTPExpired):
		return "expired"
	case errors.Is(err, domain.ErrOTPAttemptsExceeded):
		return "exceeded"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	}
	return "error"
}
