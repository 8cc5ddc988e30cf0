package authz

import (
	"fmt"

	"github.com/patrol-auth/internal/domain"
)

// Policy is a closed set of roles allowed through a gate. There is no role
// hierarchy: SUPER_ADMIN passes a policy only when listed.
type Policy struct {
	allowed map[domain.Role]struct{}
}

// Require builds a policy admitting exactly roles.
func Require(roles ...domain.Role) Policy {
	allowed := make(map[domain.Role]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return Policy{allowed: allowed}
}

// AnyRole admits every known role.
func AnyRole() Policy { return Require(domain.Roles...) }

// Allows reports whether role is in the policy.
func (p Policy) Allows(role domain.Role) bool {
	_, ok := p.allowed[role]
	return ok
}

// Check returns domain.ErrUnauthorized without an identity and
// domain.ErrForbidden when the identity's role is outside the policy.
func (p Policy) Check(id domain.Identity) error {
	if id == nil {
		return domain.ErrUnauthorized
	}
	if !p.Allows(id.Role()) {
		return fmt.Errorf("role %s not permitted: %w", id.Role(), domain.ErrForbidden)
	}
	return nil
}

var manages = map[domain.Role][]domain.Role{
	domain.RoleSuperAdmin: {domain.RoleAdmin},
	domain.RoleAdmin:      {domain.RoleSupervisor, domain.RoleGuard},
	domain.RoleSupervisor: {domain.RoleGuard},
}

// CanManage reports whether actor may provision or toggle accounts of target.
func CanManage(actor, target domain.Role) bool {
	for _, r := range manages[actor] {
		if r == target {
			return true
		}
	}
	return false
}

// CheckManage is CanManage as an error.
func CheckManage(actor domain.Identity, target domain.Role) error {
	if actor == nil {
		return domain.ErrUnauthorized
	}
	if !CanManage(actor.Role(), target) {
		return fmt.Errorf("%s may not manage %s: %w", actor.Role(), target, domain.ErrForbidden)
	}
	return nil
}
