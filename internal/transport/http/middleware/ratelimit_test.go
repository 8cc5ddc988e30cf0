package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func TestRealIP_RemoteAddr(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.1:54321"
	assert.Equal(t, "192.168.1.1", realIP(req))
}

func TestRealIP_IgnoresForwardingHeaders(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.1:54321"
	req.Header.Set("X-Forwarded-For", "1.2.3.4, 5.6.7.8")
	req.Header.Set("X-Real-Ip", "9.10.11.12")
	assert.Equal(t, "192.168.1.1", realIP(req))
}

func TestRealIP_RemoteAddrWithoutPort(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.7"
	assert.Equal(t, "10.0.0.7", realIP(req))
}

type stubLimiter struct {
	allowed bool
	retry   time.Duration
	err     error
	keys    []string
}

func (s *stubLimiter) Allow(_ context.Context, key string) (bool, time.Duration, error) {
	s.keys = append(s.keys, key)
	return s.allowed, s.retry, s.err
}

func TestLimit_RejectsWithRetryAfter(t *testing.T) {
	l := &stubLimiter{retry: 1500 * time.Millisecond}
	req := httptest.NewRequest(http.MethodPost, "/v1/sessions/login", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	rr := httptest.NewRecorder()
	Limit(l)(http.HandlerFunc(okHandler)).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "2", rr.Header().Get("Retry-After"))
	assert.Equal(t, []string{"10.0.0.1|/v1/sessions/login"}, l.keys)
}

func TestLimit_FailsOpenOnLimiterError(t *testing.T) {
	l := &stubLimiter{err: errors.New("redis down")}
	req := httptest.NewRequest(http.MethodPost, "/v1/otp/request", nil)
	rr := httptest.NewRecorder()
	Limit(l)(http.HandlerFunc(okHandler)).ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestLimit_SpoofedForwardedForSharesBucket(t *testing.T) {
	h := Limit(NewRateLimiter(rate.Limit(0.001), 1))(http.HandlerFunc(okHandler))

	allowed := 0
	for i := 0; i < 20; i++ {
		req := httptest.NewRequest(http.MethodPost, "/v1/sessions/login", nil)
		req.RemoteAddr = "203.0.113.9:4000"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("10.0.%d.%d", i/256, i%256))
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		if rr.Code == http.StatusOK {
			allowed++
		}
	}
	assert.Equal(t, 1, allowed)
}

func TestLimit_TrustedProxyUsesForwardedAddress(t *testing.T) {
	l := &stubLimiter{allowed: true}
	h := chimiddleware.RealIP(Limit(l)(http.HandlerFunc(okHandler)))

	req := httptest.NewRequest(http.MethodPost, "/v1/sessions/login", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	req.Header.Set("X-Forwarded-For", "198.51.100.4")
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, []string{"198.51.100.4|/v1/sessions/login"}, l.keys)
}

func TestRateLimiter_BurstThenReject(t *testing.T) {
	rl := NewRateLimiter(rate.Limit(1), 2)
	ctx := context.Background()

	ok, _, _ := rl.Allow(ctx, "k")
	assert.True(t, ok)
	ok, _, _ = rl.Allow(ctx, "k")
	assert.True(t, ok)
	ok, retry, err := rl.Allow(ctx, "k")
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, time.Second, retry)

	ok, _, _ = rl.Allow(ctx, "other")
	assert.True(t, ok)
}
