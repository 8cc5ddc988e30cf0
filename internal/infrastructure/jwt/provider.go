package jwtinfra

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/patrol-auth/internal/config"
	"github.com/patrol-auth/internal/domain"
	"github.com/patrol-auth/internal/metrics"
)

// TokenType separates access tokens from refresh tokens. A token of one type
// is never accepted where the other is expected.
type TokenType string

const (
	TypeAccess  TokenType = "access"
	TypeRefresh TokenType = "refresh"
)

// Claims holds the JWT payload fields. Contact is set on access tokens only.
type Claims struct {
	UserID  string      `json:"user_id"`
	Contact string      `json:"contact,omitempty"`
	Role    domain.Role `json:"role"`
	Type    TokenType   `json:"type"`
	jwt.RegisteredClaims
}

// Provider signs and verifies HS256 JWTs.
type Provider struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewProvider(cfg *config.Config) (*Provider, error) {
	if len(cfg.JWTSecret) == 0 {
		return nil, errors.New("jwt secret is empty")
	}
	return &Provider{
		secret:     []byte(cfg.JWTSecret),
		issuer:     cfg.JWTIssuer,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		now:        time.Now,
	}, nil
}

// AccessTTL is the lifetime of issued access tokens.
func (p *Provider) AccessTTL() time.Duration { return p.accessTTL }

// IssueAccess signs a short-lived access token.
func (p *Provider) IssueAccess(userID, contact string, role domain.Role) (string, *Claims, error) {
	return p.issue(Claims{UserID: userID, Contact: contact, Role: role, Type: TypeAccess}, p.accessTTL)
}

// IssueRefresh signs a long-lived refresh token.
func (p *Provider) IssueRefresh(userID string, role domain.Role) (string, *Claims, error) {
	return p.issue(Claims{UserID: userID, Role: role, Type: TypeRefresh}, p.refreshTTL)
}

func (p *Provider) issue(claims Claims, ttl time.Duration) (string, *Claims, error) {
	now := p.now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   claims.UserID,
		Issuer:    p.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(p.secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign %s token: %w", claims.Type, err)
	}
	metrics.TokensIssued.WithLabelValues(string(claims.Type)).Inc()
	return signed, &claims, nil
}

// Validate parses tokenStr and checks signature, algorithm, expiry, issuer
// and type. Every failure wraps domain.ErrInvalidToken.
func (p *Provider) Validate(tokenStr string, expected TokenType) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.now),
	}
	if p.issuer != "" {
		opts = append(opts, jwt.WithIssuer(p.issuer))
	}
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return p.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%w: invalid token claims", domain.ErrInvalidToken)
	}
	if claims.Type != expected {
		return nil, fmt.Errorf("%w: expected %s token", domain.ErrInvalidToken, expected)
	}
	if claims.UserID == "" {
		return nil, fmt.Errorf("%w: token has no subject", domain.ErrInvalidToken)
	}
	if _, ok := domain.ParseRole(string(claims.Role)); !ok {
		return nil, fmt.Errorf("%w: unknown role", domain.ErrInvalidToken)
	}
	return claims, nil
}
