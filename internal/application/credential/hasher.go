package credential

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// MaxPasswordBytes is the bcrypt input limit. Longer passwords are truncated
// to this many bytes before hashing and before verifying.
const MaxPasswordBytes = 72

// DefaultCost is the adaptive cost used when none is configured.
const DefaultCost = 12

// Options configures a Hasher.
type Options struct {
	Cost           int
	MaxConcurrency int
	// OnFallback is called each time an operation is retried on the fallback
	// backend. op is "hash" or "verify".
	OnFallback func(op string)
	// Observe receives the duration of every hash and verify call.
	Observe func(op string, d time.Duration)
}

// Hasher hashes and verifies passwords with a primary backend and retries
// once on a fallback backend when the primary fails. It holds no mutable
// state besides the concurrency bound and is safe for concurrent use.
type Hasher struct {
	primary    Backend
	fallback   Backend
	degraded   bool // primary was replaced by the fallback at construction
	cost       int
	sem        *semaphore.Weighted
	onFallback func(op string)
	observe    func(op string, d time.Duration)

	dummyOnce sync.Once
	dummyHash string
}

// NewHasher builds a Hasher. A nil primary, or one that fails a self-test,
// is replaced by the fallback so logins keep working.
func NewHasher(primary, fallback Backend, opts Options) (*Hasher, error) {
	if fallback == nil {
		return nil, errors.New("credential: fallback backend is required")
	}
	if opts.Cost == 0 {
		opts.Cost = DefaultCost
	}
	if opts.Cost < minCost || opts.Cost > maxCost {
		return nil, fmt.Errorf("credential: cost %d out of range", opts.Cost)
	}
	if opts.MaxConcurrency < 1 {
		opts.MaxConcurrency = 2 * runtime.GOMAXPROCS(0)
	}
	degraded := false
	if primary == nil {
		slog.Warn("primary password backend missing, using fallback", "backend", fallback.Name())
		primary, degraded = fallback, true
	} else if err := selfTest(primary); err != nil {
		slog.Warn("primary password backend failed self-test, using fallback",
			"primary", primary.Name(), "fallback", fallback.Name(), "err", err)
		primary, degraded = fallback, true
	}
	onFallback := opts.OnFallback
	if onFallback == nil {
		onFallback = func(string) {}
	}
	observe := opts.Observe
	if observe == nil {
		observe = func(string, time.Duration) {}
	}
	return &Hasher{
		observe:    observe,
		primary:    primary,
		fallback:   fallback,
		degraded:   degraded,
		cost:       opts.Cost,
		sem:        semaphore.NewWeighted(int64(opts.MaxConcurrency)),
		onFallback: onFallback,
	}, nil
}

// NewDefaultHasher wires the x/crypto bcrypt backend with the Blowfish fallback.
func NewDefaultHasher(opts Options) (*Hasher, error) {
	return NewHasher(XCryptoBackend{}, BlowfishBackend{}, opts)
}

func (h *Hasher) timed(op string) func() {
	start := time.Now()
	return func() { h.observe(op, time.Since(start)) }
}

// Cost returns the adaptive cost applied to new hashes.
func (h *Hasher) Cost() int { return h.cost }

// Hash returns a salted bcrypt hash of password.
func (h *Hasher) Hash(ctx context.Context, password string) (string, error) {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer h.sem.Release(1)
	defer h.timed("hash")()

	pw := truncate(password)
	hash, err := safeHash(h.primary, pw, h.cost)
	if err == nil {
		return hash, nil
	}
	if h.degraded {
		return "", fmt.Errorf("hash password: %w", err)
	}
	slog.Warn("password hashing failed on primary backend, retrying on fallback",
		"primary", h.primary.Name(), "err", err)
	h.onFallback("hash")
	hash, ferr := safeHash(h.fallback, pw, h.cost)
	if ferr != nil {
		return "", fmt.Errorf("hash password: %w", errors.Join(err, ferr))
	}
	return hash, nil
}

// Verify reports whether password matches hash. It never fails: malformed
// hashes, backend failures and a cancelled context all yield false.
func (h *Hasher) Verify(ctx context.Context, password, hash string) bool {
	if hash == "" {
		return false
	}
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return false
	}
	defer h.sem.Release(1)
	defer h.timed("verify")()

	pw := truncate(password)
	err := safeCompare(h.primary, hash, pw)
	switch {
	case err == nil:
		return true
	case errors.Is(err, ErrMismatch):
		return false
	case h.degraded:
		return false
	}
	slog.Warn("password verification failed on primary backend, retrying on fallback",
		"primary", h.primary.Name(), "err", err)
	h.onFallback("verify")
	return safeCompare(h.fallback, hash, pw) == nil
}

// dummySaltAndDigest is the salt and digest of a well-formed bcrypt hash.
// Prefixed with the configured cost it still costs a full key expansion to
// compare against, and never matches.
const dummySaltAndDigest = "CCCCCCCCCCCCCCCCCCCCC.E5YPO9kmyuRGyh0XouQYb4YMJKvyOeW"

// DummyVerify spends the same work as a real verification against a hash of
// the configured cost. Callers use it when no account matched so response
// timing does not reveal whether an identifier exists.
func (h *Hasher) DummyVerify(ctx context.Context, password string) {
	h.dummyOnce.Do(func() {
		hash, err := h.Hash(context.Background(), "dummy-password-for-timing")
		if err != nil {
			slog.Warn("could not prepare dummy hash, using the built-in one", "err", err)
			hash = fmt.Sprintf("$2a$%02d$%s", h.cost, dummySaltAndDigest)
		}
		h.dummyHash = hash
	})
	_ = h.Verify(ctx, password, h.dummyHash)
}

func truncate(password string) []byte {
	b := []byte(password)
	if len(b) > MaxPasswordBytes {
		b = b[:MaxPasswordBytes]
	}
	return b
}

func selfTest(b Backend) error {
	sample := []byte("self-test")
	hash, err := safeHash(b, sample, minCost)
	if err != nil {
		return err
	}
	return safeCompare(b, hash, sample)
}

func safeHash(b Backend, pw []byte, cost int) (hash string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s panicked: %v", b.Name(), r)
		}
	}()
	return b.Hash(pw, cost)
}

func safeCompare(b Backend, hash string, pw []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s panicked: %v", b.Name(), r)
		}
	}()
	return b.Compare(hash, pw)
}
