package models

import "strings"

// WorkspaceRole is the ordered trust level of a workspace membership.
type WorkspaceRole string

const (
	RoleMember WorkspaceRole = "MEMBER"
	RoleAdmin  WorkspaceRole = "ADMIN"
	RoleOwner  WorkspaceRole = "OWNER"
)

// WorkspaceRoles lists the roles in ascending order of trust.
var WorkspaceRoles = []WorkspaceRole{RoleMember, RoleAdmin, RoleOwner}

// Rank orders roles so that MEMBER < ADMIN < OWNER. Unknown roles rank 0.
func (r WorkspaceRole) Rank() int {
	switch r {
	case RoleMember:
		return 1
	case RoleAdmin:
		return 2
	case RoleOwner:
		return 3
	}
	return 0
}

// Valid reports whether r is one of the known roles.
func (r WorkspaceRole) Valid() bool { return r.Rank() > 0 }

// AtLeast reports whether r grants at least the trust of other.
func (r WorkspaceRole) AtLeast(other WorkspaceRole) bool {
	return r.Valid() && r.Rank() >= other.Rank()
}

func (r WorkspaceRole) String() string { return string(r) }

// ParseWorkspaceRole accepts role names case-insensitively.
func ParseWorkspaceRole(value string) (WorkspaceRole, bool) {
	role := WorkspaceRole(strings.ToUpper(strings.TrimSpace(value)))
	return role, role.Valid()
}
