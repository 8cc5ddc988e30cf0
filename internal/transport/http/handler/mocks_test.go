package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/patrol-auth/internal/application/password"
	"github.com/patrol-auth/internal/application/session"
	"github.com/patrol-auth/internal/domain"
	"github.com/patrol-auth/internal/transport/http/middleware"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockSessionSvc struct{ mock.Mock }

func (m *mockSessionSvc) Login(ctx context.Context, req session.LoginRequest) (*session.TokenPair, error) {
	args := m.Called(ctx, req)
	if p, _ := args.Get(0).(*session.TokenPair); p != nil {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockSessionSvc) Refresh(ctx context.Context, refreshToken string) (*session.TokenPair, error) {
	args := m.Called(ctx, refreshToken)
	if p, _ := args.Get(0).(*session.TokenPair); p != nil {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockSessionSvc) Logout(ctx context.Context, id domain.Identity) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockSessionSvc) Authenticate(ctx context.Context, accessToken string) (domain.Identity, error) {
	args := m.Called(ctx, accessToken)
	if id, _ := args.Get(0).(domain.Identity); id != nil {
		return id, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockPasswordSvc struct{ mock.Mock }

func (m *mockPasswordSvc) RequestOTP(ctx context.Context, req password.OTPRequest) error {
	return m.Called(ctx, req).Error(0)
}

func (m *mockPasswordSvc) ResetWithOTP(ctx context.Context, req password.ResetRequest) error {
	return m.Called(ctx, req).Error(0)
}

func (m *mockPasswordSvc) VerifySignup(ctx context.Context, req password.SignupVerifyRequest) (domain.Identity, error) {
	args := m.Called(ctx, req)
	if id, _ := args.Get(0).(domain.Identity); id != nil {
		return id, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockPasswordSvc) RequestChangeOTP(ctx context.Context, id domain.Identity) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockPasswordSvc) ChangeWithOTP(ctx context.Context, id domain.Identity, req password.ChangeRequest) error {
	return m.Called(ctx, id, req).Error(0)
}

func (m *mockPasswordSvc) SetPassword(ctx context.Context, actor domain.Identity, req password.SetPasswordRequest) error {
	return m.Called(ctx, actor, req).Error(0)
}

type mockAccountSvc struct{ mock.Mock }

func (m *mockAccountSvc) Provision(ctx context.Context, actor domain.Identity, req domain.ProvisionRequest) (domain.Identity, error) {
	args := m.Called(ctx, actor, req)
	if id, _ := args.Get(0).(domain.Identity); id != nil {
		return id, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAccountSvc) SetActive(ctx context.Context, actor domain.Identity, role domain.Role, accountID string, active bool) (domain.Identity, error) {
	args := m.Called(ctx, actor, role, accountID, active)
	if id, _ := args.Get(0).(domain.Identity); id != nil {
		return id, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAccountSvc) EnsureSuperAdmin(ctx context.Context, email, password, name string) error {
	return m.Called(ctx, email, password, name).Error(0)
}

// --- helpers ---

func adminIdentity() domain.Identity {
	return domain.AdminIdentity{Account: &domain.Account{
		AccountID: "a1", Name: "Admin", Email: "admin@lh.io.in", AdminRole: domain.RoleAdmin, State: "KA", IsActive: true,
	}}
}

func guardIdentity() domain.Identity {
	return domain.GuardIdentity{Account: &domain.Account{AccountID: "g1", Name: "Guard", Phone: "9876543210", IsActive: true}}
}

func jsonReq(t *testing.T, method, target string, body interface{}) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if s, ok := body.(string); ok {
		buf.WriteString(s)
	} else {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	return httptest.NewRequest(method, target, &buf)
}

// authed attaches id as the authenticated identity, as middleware.Auth would.
func authed(r *http.Request, id domain.Identity) *http.Request {
	return r.WithContext(middleware.WithIdentity(r.Context(), id))
}

// withURLParams injects chi URL params into the request context.
func withURLParams(r *http.Request, kv ...string) *http.Request {
	rctx := chi.NewRouteContext()
	for i := 0; i+1 < len(kv); i += 2 {
		rctx.URLParams.Add(kv[i], kv[i+1])
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rr.Body).Decode(dst))
}
