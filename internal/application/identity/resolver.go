package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/patrol-auth/internal/domain"
)

// AccountStore is one account partition.
type AccountStore interface {
	Partition() domain.Partition
	// FindByContact returns the account whose email or phone equals contact,
	// or domain.ErrNotFound.
	FindByContact(ctx context.Context, contact string) (*domain.Account, error)
	FindByID(ctx context.Context, accountID string) (*domain.Account, error)
	// Put creates a new account; domain.ErrConflict if the ID exists.
	Put(ctx context.Context, a *domain.Account) error
	// Update applies a partial update; domain.ErrNotFound if absent.
	Update(ctx context.Context, accountID string, updates map[string]interface{}) error
}

// Resolver maps login identifiers and token subjects to identities across
// the account partitions. Partitions are searched in the order given to
// NewResolver and the first match wins.
type Resolver struct {
	stores []AccountStore
	byPart map[domain.Partition]AccountStore
}

// NewResolver builds a Resolver. Stores are searched in the given order;
// production wiring passes admins, supervisors, guards.
func NewResolver(stores ...AccountStore) *Resolver {
	byPart := make(map[domain.Partition]AccountStore, len(stores))
	for _, s := range stores {
		byPart[s.Partition()] = s
	}
	return &Resolver{stores: stores, byPart: byPart}
}

// FindByContact resolves contact against every partition in priority order.
// Active state is not checked. A store failure aborts the search with
// domain.ErrUnavailable instead of falling through to a lower partition.
func (r *Resolver) FindByContact(ctx context.Context, contact string) (domain.Identity, error) {
	if contact == "" {
		return nil, domain.ErrNotFound
	}
	for _, s := range r.stores {
		a, err := s.FindByContact(ctx, contact)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("%w: %s: %v", domain.ErrUnavailable, s.Partition(), err)
		}
		id, ok := domain.NewIdentity(s.Partition(), a)
		if !ok {
			return nil, fmt.Errorf("%w: unknown partition %s", domain.ErrCorrupted, s.Partition())
		}
		return id, nil
	}
	return nil, domain.ErrNotFound
}

// FindByID loads accountID from the partition that stores role. The returned
// identity carries the live role from the store, which for the admins
// partition may differ from role.
func (r *Resolver) FindByID(ctx context.Context, role domain.Role, accountID string) (domain.Identity, error) {
	p, ok := domain.PartitionOf(role)
	if !ok {
		return nil, domain.ErrNotFound
	}
	s, ok := r.byPart[p]
	if !ok {
		return nil, domain.ErrNotFound
	}
	a, err := s.FindByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrUnavailable, p, err)
	}
	id, _ := domain.NewIdentity(p, a)
	return id, nil
}

// FindInPartition resolves contact in partition p only. Provisioning uses it
// for the per-partition uniqueness check.
func (r *Resolver) FindInPartition(ctx context.Context, p domain.Partition, contact string) (*domain.Account, error) {
	s, ok := r.byPart[p]
	if !ok {
		return nil, domain.ErrNotFound
	}
	a, err := s.FindByContact(ctx, contact)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrUnavailable, p, err)
	}
	return a, err
}

// Create stores a new account in partition p.
func (r *Resolver) Create(ctx context.Context, p domain.Partition, a *domain.Account) error {
	s, ok := r.byPart[p]
	if !ok {
		return fmt.Errorf("unknown partition %s: %w", p, domain.ErrBadRequest)
	}
	return s.Put(ctx, a)
}

// Update applies updates to the stored record behind id.
func (r *Resolver) Update(ctx context.Context, id domain.Identity, updates map[string]interface{}) error {
	s, ok := r.byPart[id.Partition()]
	if !ok {
		return fmt.Errorf("unknown partition %s: %w", id.Partition(), domain.ErrBadRequest)
	}
	return s.Update(ctx, id.Record().AccountID, updates)
}
