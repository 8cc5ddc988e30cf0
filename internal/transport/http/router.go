package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/patrol-auth/internal/application/authz"
	"github.com/patrol-auth/internal/config"
	"github.com/patrol-auth/internal/domain"
	"github.com/patrol-auth/internal/transport/http/handler"
	appmiddleware "github.com/patrol-auth/internal/transport/http/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

var (
	managers       = authz.Require(domain.RoleSuperAdmin, domain.RoleAdmin, domain.RoleSupervisor)
	superAdminOnly = authz.Require(domain.RoleSuperAdmin)
)

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	if cfg.TrustProxy {
		r.Use(chimiddleware.RealIP)
	}
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(appmiddleware.Metrics)
	if cfg.RequestTimeout > 0 {
		r.Use(chimiddleware.Timeout(cfg.RequestTimeout))
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	limiter := deps.Limiter
	if limiter == nil {
		perSecond := rate.Limit(float64(cfg.RateLimitPerMinute) / 60)
		if perSecond <= 0 {
			perSecond = rate.Limit(5)
		}
		limiter = appmiddleware.NewRateLimiter(perSecond, 10)
	}
	sensitive := appmiddleware.Limit(limiter)
	authMw := appmiddleware.Auth(deps.Sessions)

	healthH := handler.NewHealthHandler()
	sessionH := handler.NewSessionHandler(deps.Sessions)
	passwordH := handler.NewPasswordHandler(deps.Passwords)
	accountH := handler.NewAccountHandler(deps.Accounts)

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		// ── Public routes (no auth) ──────────────────────────────────────────
		r.Get("/health-check/{action}", healthH.Ping)
		r.With(sensitive).Post("/sessions/login", sessionH.Login)
		r.With(sensitive).Post("/sessions/refresh", sessionH.Refresh)
		r.With(sensitive).Post("/otp/request", passwordH.RequestOTP)
		r.With(sensitive).Post("/password-recovery/confirm", passwordH.Reset)
		r.With(sensitive).Post("/signup/verify", passwordH.VerifySignup)

		// ── Authenticated routes ─────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(authMw)
			r.Use(appmiddleware.Require(authz.AnyRole()))

			r.Get("/sessions", sessionH.GetCurrent)
			r.Post("/sessions/logout", sessionH.Logout)
			r.With(sensitive).Post("/password/change-otp", passwordH.RequestChangeOTP)
			r.Put("/password/change", passwordH.Change)

			r.Group(func(r chi.Router) {
				r.Use(appmiddleware.Require(managers))
				r.Post("/accounts", accountH.Provision)
				r.Put("/accounts/{role}/{id}/status", accountH.SetStatus)
			})

			r.With(appmiddleware.Require(superAdminOnly)).Put("/accounts/password", passwordH.SetPassword)
		})
	})

	return r
}
