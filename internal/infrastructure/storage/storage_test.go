package storage

import (
	"context"
	"testing"

	"github.com/patrol-auth/internal/config"
	"github.com/patrol-auth/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_Memory(t *testing.T) {
	s, err := Open(context.Background(), &config.Config{StoreDriver: config.StoreDriverMemory}, true)
	require.NoError(t, err)

	assert.Equal(t, domain.PartitionAdmins, s.Admins.Partition())
	assert.Equal(t, domain.PartitionSupervisors, s.Supervisors.Partition())
	assert.Equal(t, domain.PartitionGuards, s.Guards.Partition())
	assert.NotNil(t, s.Challenges)
	assert.NotNil(t, s.Refresh)

	_, err = s.Resolver().FindByContact(context.Background(), "nobody@lh.io.in")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), &config.Config{StoreDriver: "sqlite"}, false)
	assert.Error(t, err)
}
