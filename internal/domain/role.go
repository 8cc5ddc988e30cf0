package domain

import "strings"

// Role is the authorization role carried by an identity and its tokens.
type Role string

const (
	RoleSuperAdmin Role = "SUPER_ADMIN"
	RoleAdmin      Role = "ADMIN"
	RoleSupervisor Role = "SUPERVISOR"
	RoleGuard      Role = "GUARD"
)

// Roles lists every known role.
var Roles = []Role{RoleSuperAdmin, RoleAdmin, RoleSupervisor, RoleGuard}

// ParseRole accepts a role name in any case.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	switch r {
	case RoleSuperAdmin, RoleAdmin, RoleSupervisor, RoleGuard:
		return r, true
	}
	return "", false
}

func (r Role) String() string { return string(r) }

// Partition is a physical account collection. The partition an account lives
// in is the source of truth for its role, except admins and super admins,
// which share one partition and are told apart by the stored role field.
type Partition string

const (
	PartitionAdmins      Partition = "admins"
	PartitionSupervisors Partition = "supervisors"
	PartitionGuards      Partition = "guards"
)

// PartitionOf returns the partition that stores accounts of role r.
func PartitionOf(r Role) (Partition, bool) {
	switch r {
	case RoleSuperAdmin, RoleAdmin:
		return PartitionAdmins, true
	case RoleSupervisor:
		return PartitionSupervisors, true
	case RoleGuard:
		return PartitionGuards, true
	}
	return "", false
}
