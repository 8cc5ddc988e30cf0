// Package storage opens the account, OTP and refresh token stores for the
// configured driver.
package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/patrol-auth/internal/application/identity"
	"github.com/patrol-auth/internal/application/otp"
	"github.com/patrol-auth/internal/application/session"
	"github.com/patrol-auth/internal/config"
	"github.com/patrol-auth/internal/domain"
	"github.com/patrol-auth/internal/infrastructure/dynamo"
	"github.com/patrol-auth/internal/infrastructure/memory"
)

// Stores groups every persistence dependency of the services.
type Stores struct {
	Admins      identity.AccountStore
	Supervisors identity.AccountStore
	Guards      identity.AccountStore
	Challenges  otp.ChallengeStore
	Refresh     session.RefreshStore
}

// Resolver builds the identity resolver over the three account partitions.
func (s *Stores) Resolver() *identity.Resolver {
	return identity.NewResolver(s.Admins, s.Supervisors, s.Guards)
}

// Open returns the stores for cfg.StoreDriver. With the dynamo driver and
// bootstrap set, missing tables are created first.
func Open(ctx context.Context, cfg *config.Config, bootstrap bool) (*Stores, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		slog.Warn("using in-memory stores, data is lost on restart")
		return &Stores{
			Admins:      memory.NewAccountStore(domain.PartitionAdmins),
			Supervisors: memory.NewAccountStore(domain.PartitionSupervisors),
			Guards:      memory.NewAccountStore(domain.PartitionGuards),
			Challenges:  memory.NewChallengeStore(),
			Refresh:     memory.NewRefreshStore(),
		}, nil
	case config.StoreDriverDynamo:
		client, err := dynamo.NewClient(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("dynamo client: %w", err)
		}
		if bootstrap {
			if err := dynamo.Bootstrap(ctx, client, cfg.DynamoTables); err != nil {
				return nil, fmt.Errorf("bootstrap tables: %w", err)
			}
		}
		t := cfg.DynamoTables
		return &Stores{
			Admins:      dynamo.NewAccountRepo(client, t.Admins, domain.PartitionAdmins),
			Supervisors: dynamo.NewAccountRepo(client, t.Supervisors, domain.PartitionSupervisors),
			Guards:      dynamo.NewAccountRepo(client, t.Guards, domain.PartitionGuards),
			Challenges:  dynamo.NewChallengeRepo(client, t.OTPChallenges),
			Refresh:     dynamo.NewRefreshTokenRepo(client, t.RefreshTokens),
		}, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
