package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Auth metrics. Defined in a standalone package so application services and
// the HTTP layer can both record without importing each other.
var (
	LoginAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_login_attempts_total",
		Help: "Login attempts by result",
	}, []string{"result"}) // result: success|invalid|inactive|unavailable|error

	TokensIssued = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_tokens_issued_total",
		Help: "Tokens issued by type",
	}, []string{"type"})

	RefreshReuse = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "auth_refresh_reuse_total",
		Help: "Rotated refresh tokens presented again",
	})

	OTPIssued = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_otp_issued_total",
		Help: "OTP challenges issued by purpose",
	}, []string{"purpose"})

	OTPVerifications = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_otp_verifications_total",
		Help: "OTP verifications by purpose and result",
	}, []string{"purpose", "result"}) // result: ok|invalid|expired|exceeded|not_found|error

	HashDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "auth_password_hash_duration_seconds",
		Help:    "Latency of password hash and verify operations",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 10),
	}, []string{"op"})

	HashFallbacks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_password_hash_fallbacks_total",
		Help: "Operations retried on the fallback hashing backend",
	}, []string{"op"})

	HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "HTTP requests processed",
	}, []string{"method", "path", "status"})

	HTTPDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	RateLimited = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_rate_limited_total",
		Help: "Requests rejected by the per-client rate limiter",
	}, []string{"path"})
)

func all() []prometheus.Collector {
	return []prometheus.Collector{
		LoginAttempts, TokensIssued, RefreshReuse,
		OTPIssued, OTPVerifications,
		HashDuration, HashFallbacks,
		HTTPRequests, HTTPDuration, RateLimited,
	}
}

// Register registers every collector on reg (or the default registerer when
// nil). Registering twice is not an error.
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range all() {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}
