package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrBadRequest   = errors.New("bad request")
	ErrRateLimited  = errors.New("rate limited")

	// ErrUnavailable marks a failed round trip to the account store.
	ErrUnavailable = errors.New("account store unavailable")
	// ErrCorrupted marks a stored record that is missing data it must have,
	// e.g. an account without a password hash.
	ErrCorrupted = errors.New("corrupted record")

	// ErrInvalidToken marks a bearer or refresh token that failed validation.
	// It is an ErrUnauthorized.
	ErrInvalidToken = fmt.Errorf("invalid or expired token: %w", ErrUnauthorized)

	ErrOTPInvalid          = errors.New("invalid otp")
	ErrOTPExpired          = errors.New("otp expired")
	ErrOTPAttemptsExceeded = errors.New("otp attempts exceeded")
)
