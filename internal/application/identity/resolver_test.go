package identity

import (
	"context"
	"errors"
	"testing"

	"github.com/patrol-auth/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockStore struct {
	mock.Mock
	partition domain.Partition
}

func (m *mockStore) Partition() domain.Partition { return m.partition }

func (m *mockStore) FindByContact(ctx context.Context, contact string) (*domain.Account, error) {
	args := m.Called(ctx, contact)
	if a, _ := args.Get(0).(*domain.Account); a != nil {
		return a, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockStore) FindByID(ctx context.Context, accountID string) (*domain.Account, error) {
	args := m.Called(ctx, accountID)
	if a, _ := args.Get(0).(*domain.Account); a != nil {
		return a, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockStore) Put(ctx context.Context, a *domain.Account) error {
	return m.Called(ctx, a).Error(0)
}

func (m *mockStore) Update(ctx context.Context, accountID string, updates map[string]interface{}) error {
	return m.Called(ctx, accountID, updates).Error(0)
}

// --- helpers ---

func newStores() (admins, supervisors, guards *mockStore) {
	return &mockStore{partition: domain.PartitionAdmins},
		&mockStore{partition: domain.PartitionSupervisors},
		&mockStore{partition: domain.PartitionGuards}
}

// --- tests ---

func TestFindByContact_PriorityOrder(t *testing.T) {
	admins, supervisors, guards := newStores()
	shared := "+919800000001"
	admins.On("FindByContact", mock.Anything, shared).Return(nil, domain.ErrNotFound)
	supervisors.On("FindByContact", mock.Anything, shared).Return(&domain.Account{AccountID: "sup-1", Phone: shared}, nil)
	r := NewResolver(admins, supervisors, guards)

	id, err := r.FindByContact(context.Background(), shared)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleSupervisor, id.Role())
	assert.Equal(t, "sup-1", id.Record().AccountID)
	_, isSup := id.(domain.SupervisorIdentity)
	assert.True(t, isSup)
	guards.AssertNotCalled(t, "FindByContact", mock.Anything, mock.Anything)
}

func TestFindByContact_AdminWinsTieBreak(t *testing.T) {
	admins, supervisors, guards := newStores()
	email := "dup@lh.io.in"
	admins.On("FindByContact", mock.Anything, email).Return(&domain.Account{AccountID: "adm-1", Email: email, AdminRole: domain.RoleAdmin}, nil)
	r := NewResolver(admins, supervisors, guards)

	id, err := r.FindByContact(context.Background(), email)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, id.Role())
	supervisors.AssertNotCalled(t, "FindByContact", mock.Anything, mock.Anything)
	guards.AssertNotCalled(t, "FindByContact", mock.Anything, mock.Anything)
}

func TestFindByContact_SuperAdminRoleFromRecord(t *testing.T) {
	admins, supervisors, guards := newStores()
	admins.On("FindByContact", mock.Anything, "root@lh.io.in").Return(&domain.Account{AccountID: "adm-0", AdminRole: domain.RoleSuperAdmin}, nil)
	r := NewResolver(admins, supervisors, guards)

	id, err := r.FindByContact(context.Background(), "root@lh.io.in")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleSuperAdmin, id.Role())
}

func TestFindByContact_NotFound(t *testing.T) {
	admins, supervisors, guards := newStores()
	for _, s := range []*mockStore{admins, supervisors, guards} {
		s.On("FindByContact", mock.Anything, "nobody@lh.io.in").Return(nil, domain.ErrNotFound)
	}
	r := NewResolver(admins, supervisors, guards)

	_, err := r.FindByContact(context.Background(), "nobody@lh.io.in")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = r.FindByContact(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestFindByContact_StoreFailureAborts(t *testing.T) {
	admins, supervisors, guards := newStores()
	admins.On("FindByContact", mock.Anything, "g@lh.io.in").Return(nil, errors.New("throttled"))
	r := NewResolver(admins, supervisors, guards)

	_, err := r.FindByContact(context.Background(), "g@lh.io.in")
	assert.ErrorIs(t, err, domain.ErrUnavailable)
	supervisors.AssertNotCalled(t, "FindByContact", mock.Anything, mock.Anything)
	guards.AssertNotCalled(t, "FindByContact", mock.Anything, mock.Anything)
}

func TestFindByContact_DoesNotFilterInactive(t *testing.T) {
	admins, supervisors, guards := newStores()
	admins.On("FindByContact", mock.Anything, "g@lh.io.in").Return(nil, domain.ErrNotFound)
	supervisors.On("FindByContact", mock.Anything, "g@lh.io.in").Return(nil, domain.ErrNotFound)
	guards.On("FindByContact", mock.Anything, "g@lh.io.in").Return(&domain.Account{AccountID: "g-1", IsActive: false}, nil)
	r := NewResolver(admins, supervisors, guards)

	id, err := r.FindByContact(context.Background(), "g@lh.io.in")
	require.NoError(t, err)
	assert.False(t, id.Record().IsActive)
	assert.Equal(t, domain.RoleGuard, id.Role())
}

func TestFindByID_RoutesByRole(t *testing.T) {
	admins, supervisors, guards := newStores()
	guards.On("FindByID", mock.Anything, "g-1").Return(&domain.Account{AccountID: "g-1"}, nil)
	admins.On("FindByID", mock.Anything, "adm-0").Return(&domain.Account{AccountID: "adm-0", AdminRole: domain.RoleSuperAdmin}, nil)
	r := NewResolver(admins, supervisors, guards)

	id, err := r.FindByID(context.Background(), domain.RoleGuard, "g-1")
	require.NoError(t, err)
	assert.Equal(t, domain.PartitionGuards, id.Partition())

	// Admins and super admins share a partition; the record decides.
	id, err = r.FindByID(context.Background(), domain.RoleAdmin, "adm-0")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleSuperAdmin, id.Role())

	supervisors.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
}

func TestFindByID_Errors(t *testing.T) {
	admins, supervisors, guards := newStores()
	supervisors.On("FindByID", mock.Anything, "missing").Return(nil, domain.ErrNotFound)
	supervisors.On("FindByID", mock.Anything, "boom").Return(nil, errors.New("network"))
	r := NewResolver(admins, supervisors, guards)

	_, err := r.FindByID(context.Background(), domain.RoleSupervisor, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = r.FindByID(context.Background(), domain.RoleSupervisor, "boom")
	assert.ErrorIs(t, err, domain.ErrUnavailable)
	_, err = r.FindByID(context.Background(), domain.Role("ROOT"), "x")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestFindInPartition(t *testing.T) {
	admins, supervisors, guards := newStores()
	guards.On("FindByContact", mock.Anything, "9876543210").Return(&domain.Account{AccountID: "g-1"}, nil)
	supervisors.On("FindByContact", mock.Anything, "9876543210").Return(nil, errors.New("down"))
	r := NewResolver(admins, supervisors, guards)

	a, err := r.FindInPartition(context.Background(), domain.PartitionGuards, "9876543210")
	require.NoError(t, err)
	assert.Equal(t, "g-1", a.AccountID)
	_, err = r.FindInPartition(context.Background(), domain.PartitionSupervisors, "9876543210")
	assert.ErrorIs(t, err, domain.ErrUnavailable)
	admins.AssertNotCalled(t, "FindByContact", mock.Anything, mock.Anything)
}

func TestCreateAndUpdate_RouteToPartition(t *testing.T) {
	admins, supervisors, guards := newStores()
	acc := &domain.Account{AccountID: "sup-9"}
	supervisors.On("Put", mock.Anything, acc).Return(nil)
	updates := map[string]interface{}{domain.FieldIsActive: false}
	supervisors.On("Update", mock.Anything, "sup-9", updates).Return(nil)
	r := NewResolver(admins, supervisors, guards)

	require.NoError(t, r.Create(context.Background(), domain.PartitionSupervisors, acc))
	require.NoError(t, r.Update(context.Background(), domain.SupervisorIdentity{Account: acc}, updates))
	supervisors.AssertExpectations(t)
	admins.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)

	err := r.Create(context.Background(), "vendors", acc)
	assert.ErrorIs(t, err, domain.ErrBadRequest)
}
