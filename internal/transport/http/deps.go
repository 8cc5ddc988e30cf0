package http

import (
	"github.com/patrol-auth/internal/application/account"
	"github.com/patrol-auth/internal/application/password"
	"github.com/patrol-auth/internal/application/session"
	"github.com/patrol-auth/internal/transport/http/middleware"
)

// Deps holds the application services the router exposes.
type Deps struct {
	Sessions  session.Service
	Passwords password.Service
	Accounts  account.Service
	// Limiter guards the sensitive public routes. Nil selects the in-process
	// per-IP token bucket.
	Limiter middleware.Limiter
}
