package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/patrol-auth/internal/domain"
	jwtinfra "github.com/patrol-auth/internal/infrastructure/jwt"
	"github.com/patrol-auth/internal/metrics"
	"github.com/patrol-auth/internal/pkg/token"
)

type LoginRequest struct {
	Identifier string `json:"identifier" validate:"required"`
	Password   string `json:"password" validate:"required"`
}

// TokenPair is the result of a login or a refresh.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    time.Duration
	Identity     domain.Identity
}

type Service interface {
	Login(ctx context.Context, req LoginRequest) (*TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*TokenPair, error)
	Logout(ctx context.Context, id domain.Identity) error
	// Authenticate validates an access token and re-resolves the live
	// identity behind it.
	Authenticate(ctx context.Context, accessToken string) (domain.Identity, error)
}

// RefreshStore persists issued refresh tokens by the hash of the token.
type RefreshStore interface {
	Put(ctx context.Context, t *domain.RefreshToken) error
	Get(ctx context.Context, tokenHash string) (*domain.RefreshToken, error)
	// Revoke marks one token revoked; domain.ErrConflict if it already was.
	Revoke(ctx context.Context, tokenHash string, at time.Time) error
	RevokeAllForAccount(ctx context.Context, accountID string) error
}

type identityResolver interface {
	FindByContact(ctx context.Context, contact string) (domain.Identity, error)
	FindByID(ctx context.Context, role domain.Role, accountID string) (domain.Identity, error)
	Update(ctx context.Context, id domain.Identity, updates map[string]interface{}) error
}

type passwordVerifier interface {
	Verify(ctx context.Context, password, hash string) bool
	DummyVerify(ctx context.Context, password string)
}

type tokenProvider interface {
	IssueAccess(userID, contact string, role domain.Role) (string, *jwtinfra.Claims, error)
	IssueRefresh(userID string, role domain.Role) (string, *jwtinfra.Claims, error)
	Validate(tokenStr string, expected jwtinfra.TokenType) (*jwtinfra.Claims, error)
	AccessTTL() time.Duration
}

type ServiceDeps struct {
	Resolver    identityResolver
	Hasher      passwordVerifier
	JWTProvider tokenProvider
	RefreshRepo RefreshStore
	Now         func() time.Time
}

type service struct {
	resolver    identityResolver
	hasher      passwordVerifier
	jwtProvider tokenProvider
	refreshRepo RefreshStore
	now         func() time.Time
}

func NewService(d ServiceDeps) Service {
	if d.Now == nil {
		d.Now = time.Now
	}
	return &service{
		resolver:    d.Resolver,
		hasher:      d.Hasher,
		jwtProvider: d.JWTProvider,
		refreshRepo: d.RefreshRepo,
		now:         d.Now,
	}
}

var errInvalidCredentials = fmt.Errorf("invalid credentials: %w", domain.ErrUnauthorized)

func (s *service) Login(ctx context.Context, req LoginRequest) (*TokenPair, error) {
	contact := domain.NormalizeContact(req.Identifier)
	id, err := s.resolver.FindByContact(ctx, contact)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.hasher.DummyVerify(ctx, req.Password)
			metrics.LoginAttempts.WithLabelValues("invalid").Inc()
			return nil, errInvalidCredentials
		}
		metrics.LoginAttempts.WithLabelValues("unavailable").Inc()
		return nil, err
	}

	acc := id.Record()
	if acc.PasswordHash == "" {
		slog.Error("account has no password hash", "partition", id.Partition(), "account_id", acc.AccountID)
		metrics.LoginAttempts.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("account %s: %w", acc.AccountID, domain.ErrCorrupted)
	}
	if !s.hasher.Verify(ctx, req.Password, acc.PasswordHash) {
		metrics.LoginAttempts.WithLabelValues("invalid").Inc()
		return nil, errInvalidCredentials
	}
	if !acc.IsActive {
		metrics.LoginAttempts.WithLabelValues("inactive").Inc()
		return nil, fmt.Errorf("account is not active: %w", domain.ErrUnauthorized)
	}

	pair, err := s.issuePair(ctx, id)
	if err != nil {
		metrics.LoginAttempts.WithLabelValues("error").Inc()
		return nil, err
	}

	now := s.now().UTC()
	if err := s.resolver.Update(ctx, id, map[string]interface{}{
		domain.FieldLastLogin: now,
		domain.FieldUpdatedAt: now,
	}); err != nil {
		slog.Warn("failed to record last login", "account_id", acc.AccountID, "err", err)
	} else {
		acc.LastLogin = &now
	}
	metrics.LoginAttempts.WithLabelValues("success").Inc()
	return pair, nil
}

func (s *service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.jwtProvider.Validate(refreshToken, jwtinfra.TypeRefresh)
	if err != nil {
		return nil, err
	}
	hash := token.Hash(refreshToken)
	rec, err := s.refreshRepo.Get(ctx, hash)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("unknown refresh token: %w", domain.ErrUnauthorized)
		}
		return nil, fmt.Errorf("%w: load refresh token: %v", domain.ErrUnavailable, err)
	}
	if rec.AccountID != claims.UserID {
		return nil, fmt.Errorf("refresh token subject mismatch: %w", domain.ErrUnauthorized)
	}
	if rec.Revoked {
		s.reuseDetected(ctx, rec.AccountID)
		return nil, fmt.Errorf("refresh token already used: %w", domain.ErrUnauthorized)
	}
	now := s.now()
	if now.Unix() > rec.ExpiresAt {
		return nil, fmt.Errorf("refresh token expired: %w", domain.ErrUnauthorized)
	}
	if err := s.refreshRepo.Revoke(ctx, hash, now.UTC()); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			s.reuseDetected(ctx, rec.AccountID)
			return nil, fmt.Errorf("refresh token already used: %w", domain.ErrUnauthorized)
		}
		return nil, fmt.Errorf("%w: rotate refresh token: %v", domain.ErrUnavailable, err)
	}

	id, err := s.liveIdentity(ctx, claims)
	if err != nil {
		return nil, err
	}
	return s.issuePair(ctx, id)
}

func (s *service) Logout(ctx context.Context, id domain.Identity) error {
	if err := s.refreshRepo.RevokeAllForAccount(ctx, id.Record().AccountID); err != nil {
		return fmt.Errorf("revoke refresh tokens: %w", err)
	}
	return nil
}

func (s *service) Authenticate(ctx context.Context, accessToken string) (domain.Identity, error) {
	claims, err := s.jwtProvider.Validate(accessToken, jwtinfra.TypeAccess)
	if err != nil {
		return nil, err
	}
	return s.liveIdentity(ctx, claims)
}

// liveIdentity re-reads the account named by claims. Deleted and deactivated
// accounts are rejected even while their tokens are unexpired.
func (s *service) liveIdentity(ctx context.Context, claims *jwtinfra.Claims) (domain.Identity, error) {
	id, err := s.resolver.FindByID(ctx, claims.Role, claims.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("account no longer exists: %w", domain.ErrUnauthorized)
		}
		return nil, err
	}
	if !id.Record().IsActive {
		return nil, fmt.Errorf("account is not active: %w", domain.ErrUnauthorized)
	}
	return id, nil
}

func (s *service) issuePair(ctx context.Context, id domain.Identity) (*TokenPair, error) {
	acc := id.Record()
	access, _, err := s.jwtProvider.IssueAccess(acc.AccountID, acc.Contact(), id.Role())
	if err != nil {
		return nil, err
	}
	refresh, rc, err := s.jwtProvider.IssueRefresh(acc.AccountID, id.Role())
	if err != nil {
		return nil, err
	}
	rec := &domain.RefreshToken{
		TokenHash: token.Hash(refresh),
		TokenID:   rc.ID,
		AccountID: acc.AccountID,
		Role:      id.Role(),
		ExpiresAt: rc.ExpiresAt.Unix(),
		CreatedAt: s.now().UTC(),
	}
	if err := s.refreshRepo.Put(ctx, rec); err != nil {
		return nil, fmt.Errorf("%w: store refresh token: %v", domain.ErrUnavailable, err)
	}
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    s.jwtProvider.AccessTTL(),
		Identity:     id,
	}, nil
}

func (s *service) reuseDetected(ctx context.Context, accountID string) {
	metrics.RefreshReuse.Inc()
	slog.Warn("refresh token reuse detected, revoking all sessions", "account_id", accountID)
	if err := s.refreshRepo.RevokeAllForAccount(ctx, accountID); err != nil {
		slog.Error("failed to revoke refresh tokens after reuse", "account_id", accountID, "err", err)
	}
}
