package memory

import (
	"context"
	"testing"
	"time"

	"github.com/patrol-auth/internal/application/identity"
	"github.com/patrol-auth/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ identity.AccountStore = (*AccountStore)(nil)

func TestAccountStore_PutFindByContact(t *testing.T) {
	s := NewAccountStore(domain.PartitionGuards)
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, &domain.Account{AccountID: "g1", Phone: "9876543210", IsActive: true}))

	a, err := s.FindByContact(ctx, "9876543210")
	require.NoError(t, err)
	assert.Equal(t, "g1", a.AccountID)

	_, err = s.FindByContact(ctx, "9999999999")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAccountStore_PutDuplicateID(t *testing.T) {
	s := NewAccountStore(domain.PartitionAdmins)
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, &domain.Account{AccountID: "a1"}))
	assert.ErrorIs(t, s.Put(ctx, &domain.Account{AccountID: "a1"}), domain.ErrConflict)
}

func TestAccountStore_ReturnsCopies(t *testing.T) {
	s := NewAccountStore(domain.PartitionAdmins)
	ctx := context.Background()
	in := &domain.Account{AccountID: "a1", Name: "Asha"}
	require.NoError(t, s.Put(ctx, in))
	in.Name = "mutated"

	a, err := s.FindByID(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "Asha", a.Name)
	a.Name = "again"

	b, _ := s.FindByID(ctx, "a1")
	assert.Equal(t, "Asha", b.Name)
}

func TestAccountStore_Update(t *testing.T) {
	s := NewAccountStore(domain.PartitionSupervisors)
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, &domain.Account{AccountID: "s1", IsActive: true}))

	now := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	require.NoError(t, s.Update(ctx, "s1", map[string]interface{}{
		domain.FieldIsActive:     false,
		domain.FieldPasswordHash: "new-hash",
		domain.FieldLastLogin:    now,
		domain.FieldUpdatedAt:    now,
	}))

	a, err := s.FindByID(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, a.IsActive)
	assert.Equal(t, "new-hash", a.PasswordHash)
	require.NotNil(t, a.LastLogin)
	assert.Equal(t, now, *a.LastLogin)
	assert.Equal(t, now, a.UpdatedAt)
}

func TestAccountStore_UpdateMissing(t *testing.T) {
	s := NewAccountStore(domain.PartitionGuards)
	err := s.Update(context.Background(), "ghost", map[string]interface{}{domain.FieldIsActive: true})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAccountStore_UpdateRejectsUnknownField(t *testing.T) {
	s := NewAccountStore(domain.PartitionGuards)
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, &domain.Account{AccountID: "g1", IsActive: true}))

	err := s.Update(ctx, "g1", map[string]interface{}{domain.FieldIsActive: false, "role": "ADMIN"})
	assert.ErrorIs(t, err, domain.ErrBadRequest)

	a, _ := s.FindByID(ctx, "g1")
	assert.True(t, a.IsActive, "a rejected update must not be partially applied")
}
