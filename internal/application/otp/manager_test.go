package otp

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/patrol-auth/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- fakes ---

type challengeKey struct {
	contact string
	purpose domain.OTPPurpose
}

type fakeStore struct {
	mu    sync.Mutex
	items map[challengeKey]domain.OTPChallenge
}

func newFakeStore() *fakeStore {
	return &fakeStore{items: map[challengeKey]domain.OTPChallenge{}}
}

func (s *fakeStore) Get(_ context.Context, contact string, purpose domain.OTPPurpose) (*domain.OTPChallenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.items[challengeKey{contact, purpose}]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &c, nil
}

func (s *fakeStore) Put(_ context.Context, c *domain.OTPChallenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[challengeKey{c.Contact, c.Purpose}] = *c
	return nil
}

func (s *fakeStore) IncrementAttempts(_ context.Context, contact string, purpose domain.OTPPurpose) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := challengeKey{contact, purpose}
	c, ok := s.items[k]
	if !ok {
		return 0, domain.ErrNotFound
	}
	c.Attempts++
	s.items[k] = c
	return c.Attempts, nil
}

func (s *fakeStore) Delete(_ context.Context, contact string, purpose domain.OTPPurpose) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, challengeKey{contact, purpose})
	return nil
}

type mockStore struct{ mock.Mock }

func (m *mockStore) Get(ctx context.Context, contact string, purpose domain.OTPPurpose) (*domain.OTPChallenge, error) {
	args := m.Called(ctx, contact, purpose)
	if c, _ := args.Get(0).(*domain.OTPChallenge); c != nil {
		return c, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockStore) Put(ctx context.Context, c *domain.OTPChallenge) error {
	return m.Called(ctx, c).Error(0)
}
func (m *mockStore) IncrementAttempts(ctx context.Context, contact string, purpose domain.OTPPurpose) (int, error) {
	args := m.Called(ctx, contact, purpose)
	return args.Int(0), args.Error(1)
}
func (m *mockStore) Delete(ctx context.Context, contact string, purpose domain.OTPPurpose) error {
	return m.Called(ctx, contact, purpose).Error(0)
}

// --- helpers ---

type clock struct{ t time.Time }

func (c *clock) Now() time.Time          { return c.t }
func (c *clock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestManager(store ChallengeStore, clk *clock) *Manager {
	return NewManager(ManagerDeps{
		Store:       store,
		TTL:         10 * time.Minute,
		MaxAttempts: 3,
		RateLimit:   time.Minute,
		Now:         clk.Now,
	})
}

const contact = "guard@lh.io.in"

// --- tests ---

func TestIssue_CodeFormatAndHashedStorage(t *testing.T) {
	store := newFakeStore()
	clk := &clock{t: time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)}
	m := newTestManager(store, clk)

	issued, err := m.Issue(context.Background(), contact, domain.OTPPurposeReset)
	require.NoError(t, err)
	assert.Regexp(t, `^[0-9]{6}$`, issued.Code)
	assert.Equal(t, clk.t.Add(10*time.Minute), issued.ExpiresAt)

	stored, err := store.Get(context.Background(), contact, domain.OTPPurposeReset)
	require.NoError(t, err)
	assert.NotEqual(t, issued.Code, stored.CodeHash)
	assert.Len(t, stored.CodeHash, 64)
	assert.Zero(t, stored.Attempts)
}

func TestVerify_SingleUse(t *testing.T) {
	store := newFakeStore()
	m := newTestManager(store, &clock{t: time.Now()})
	ctx := context.Background()

	issued, err := m.Issue(ctx, contact, domain.OTPPurposeReset)
	require.NoError(t, err)

	require.NoError(t, m.Verify(ctx, contact, domain.OTPPurposeReset, issued.Code))
	err = m.Verify(ctx, contact, domain.OTPPurposeReset, issued.Code)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestVerify_PurposeIsolation(t *testing.T) {
	store := newFakeStore()
	m := newTestManager(store, &clock{t: time.Now()})
	ctx := context.Background()

	issued, err := m.Issue(ctx, contact, domain.OTPPurposeSignup)
	require.NoError(t, err)

	err = m.Verify(ctx, contact, domain.OTPPurposeReset, issued.Code)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.NoError(t, m.Verify(ctx, contact, domain.OTPPurposeSignup, issued.Code))
}

func TestVerify_Expired(t *testing.T) {
	store := newFakeStore()
	clk := &clock{t: time.Now()}
	m := newTestManager(store, clk)
	ctx := context.Background()

	issued, err := m.Issue(ctx, contact, domain.OTPPurposeReset)
	require.NoError(t, err)

	clk.Advance(11 * time.Minute)
	err = m.Verify(ctx, contact, domain.OTPPurposeReset, issued.Code)
	assert.ErrorIs(t, err, domain.ErrOTPExpired)

	_, err = store.Get(ctx, contact, domain.OTPPurposeReset)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestVerify_AttemptSequence(t *testing.T) {
	store := newFakeStore()
	m := NewManager(ManagerDeps{
		Store:       store,
		MaxAttempts: 3,
		NewCode:     func() (string, error) { return "123456", nil },
	})
	ctx := context.Background()

	_, err := m.Issue(ctx, contact, domain.OTPPurposeReset)
	require.NoError(t, err)

	assert.ErrorIs(t, m.Verify(ctx, contact, domain.OTPPurposeReset, "000000"), domain.ErrOTPInvalid)
	assert.ErrorIs(t, m.Verify(ctx, contact, domain.OTPPurposeReset, "000001"), domain.ErrOTPInvalid)
	assert.ErrorIs(t, m.Verify(ctx, contact, domain.OTPPurposeReset, "000002"), domain.ErrOTPAttemptsExceeded)
	// The correct code no longer helps once the challenge is gone.
	assert.ErrorIs(t, m.Verify(ctx, contact, domain.OTPPurposeReset, "123456"), domain.ErrNotFound)
}

func TestVerify_RecordAlreadyAtCap(t *testing.T) {
	store := newFakeStore()
	m := newTestManager(store, &clock{t: time.Now()})
	ctx := context.Background()

	issued, err := m.Issue(ctx, contact, domain.OTPPurposeReset)
	require.NoError(t, err)
	c, _ := store.Get(ctx, contact, domain.OTPPurposeReset)
	c.Attempts = 3
	require.NoError(t, store.Put(ctx, c))

	err = m.Verify(ctx, contact, domain.OTPPurposeReset, issued.Code)
	assert.ErrorIs(t, err, domain.ErrOTPAttemptsExceeded)
	_, err = store.Get(ctx, contact, domain.OTPPurposeReset)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestIssue_RateLimited(t *testing.T) {
	store := newFakeStore()
	clk := &clock{t: time.Now()}
	m := newTestManager(store, clk)
	ctx := context.Background()

	first, err := m.Issue(ctx, contact, domain.OTPPurposeReset)
	require.NoError(t, err)

	clk.Advance(30 * time.Second)
	_, err = m.Issue(ctx, contact, domain.OTPPurposeReset)
	assert.ErrorIs(t, err, domain.ErrRateLimited)

	// Other purposes are tracked separately.
	_, err = m.Issue(ctx, contact, domain.OTPPurposeSignup)
	assert.NoError(t, err)

	clk.Advance(31 * time.Second)
	second, err := m.Issue(ctx, contact, domain.OTPPurposeReset)
	require.NoError(t, err)

	// The replacement invalidates the earlier code.
	if first.Code != second.Code {
		assert.ErrorIs(t, m.Verify(ctx, contact, domain.OTPPurposeReset, first.Code), domain.ErrOTPInvalid)
	}
	assert.NoError(t, m.Verify(ctx, contact, domain.OTPPurposeReset, second.Code))
}

func TestIssue_StoreUnavailable(t *testing.T) {
	store := &mockStore{}
	store.On("Get", mock.Anything, contact, domain.OTPPurposeReset).Return(nil, errors.New("timeout"))
	m := newTestManager(store, &clock{t: time.Now()})

	_, err := m.Issue(context.Background(), contact, domain.OTPPurposeReset)
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrRateLimited)
	store.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
}

func TestVerify_ConcurrentConsumeReportsInvalid(t *testing.T) {
	store := &mockStore{}
	c := &domain.OTPChallenge{
		Contact:   contact,
		Purpose:   domain.OTPPurposeReset,
		CodeHash:  "deadbeef",
		ExpiresAt: time.Now().Add(time.Minute).Unix(),
	}
	store.On("Get", mock.Anything, contact, domain.OTPPurposeReset).Return(c, nil)
	store.On("IncrementAttempts", mock.Anything, contact, domain.OTPPurposeReset).Return(0, domain.ErrNotFound)
	m := newTestManager(store, &clock{t: time.Now()})

	err := m.Verify(context.Background(), contact, domain.OTPPurposeReset, "111111")
	assert.ErrorIs(t, err, domain.ErrOTPInvalid)
	store.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything, mock.Anything)
}
