package permissions

import (
	"net/http"

	"github.com/MarcosLauremiro/miKan-api/internal/models"
	apperrors "github.com/MarcosLauremiro/miKan-api/pkg/errors"
	"github.com/MarcosLauremiro/miKan-api/pkg/metrics"
)

// Member is a user's standing in one workspace. A zero Role means the user
// holds no membership.
type Member struct {
	UserID string
	Role   models.WorkspaceRole
}

// IsMember reports whether the user holds any membership.
func (m Member) IsMember() bool { return m.Role.Valid() }

// Membership rule violations. All carry distinct codes so handlers and tests
// can tell them apart while still rendering the right HTTP status.
var (
	ErrNotMember = apperrors.New("workspace.not_member",
		"You are not a member of this workspace", http.StatusForbidden)
	ErrInsufficientRole = apperrors.New("workspace.insufficient_role",
		"Your workspace role does not allow this action", http.StatusForbidden)
	ErrOwnerRequired = apperrors.New("workspace.owner_required",
		"Only an OWNER can grant the OWNER role", http.StatusForbidden)
	ErrSelfRoleChange = apperrors.New("workspace.self_role_change",
		"You cannot change your own role. Ask another administrator to do it", http.StatusForbidden)
	ErrSelfRemoval = apperrors.New("workspace.self_removal",
		"Use the leave endpoint to remove yourself from a workspace", http.StatusForbidden)
	ErrAdminRemovesOwner = apperrors.New("workspace.admin_removes_owner",
		"Administrators cannot remove owners", http.StatusForbidden)
	ErrLastOwner = apperrors.New("workspace.last_owner",
		"A workspace must keep at least one OWNER. Promote another member first or delete the workspace", http.StatusConflict)
)

// Require checks that requester holds at least the role registered for action.
func Require(action Action, requester Member) error {
	rule, ok := Get(action)
	if !ok {
		record(action, ErrUnknownAction)
		return ErrUnknownAction
	}

	var err error
	switch {
	case !requester.IsMember():
		err = ErrNotMember
	case !requester.Role.AtLeast(rule.MinRole):
		err = ErrInsufficientRole
	}
	record(action, err)
	return err
}

// CheckAddMember gates inviting or directly adding someone with role.
func CheckAddMember(requester Member, role models.WorkspaceRole) error {
	if err := Require(ActionMemberInvite, requester); err != nil {
		return err
	}
	if role == models.RoleOwner {
		return ownerGrant(requester)
	}
	return nil
}

// CheckRoleChange validates moving target to newRole once the requester has
// passed Require(ActionMemberRole). ownerCount is the current number of
// OWNER memberships in the workspace.
func CheckRoleChange(requester, target Member, newRole models.WorkspaceRole, ownerCount int64) error {
	if target.Role == models.RoleOwner && newRole != models.RoleOwner && ownerCount <= 1 {
		record(ActionMemberRole, ErrLastOwner)
		return ErrLastOwner
	}
	if newRole == models.RoleOwner {
		if err := ownerGrant(requester); err != nil {
			return err
		}
	}
	if target.UserID == requester.UserID {
		record(ActionMemberRole, ErrSelfRoleChange)
		return ErrSelfRoleChange
	}
	return nil
}

// CheckRemoval validates removing target once the requester has passed
// Require(ActionMemberRemove).
func CheckRemoval(requester, target Member, ownerCount int64) error {
	var err error
	switch {
	case target.Role == models.RoleOwner && ownerCount <= 1:
		err = ErrLastOwner
	case target.Role == models.RoleOwner && !requester.Role.AtLeast(models.RoleOwner):
		err = ErrAdminRemovesOwner
	case target.UserID == requester.UserID:
		err = ErrSelfRemoval
	}
	record(ActionMemberRemove, err)
	return err
}

// CheckLeave validates a member leaving on their own.
func CheckLeave(member Member, ownerCount int64) error {
	if !member.IsMember() {
		return ErrNotMember
	}
	if member.Role == models.RoleOwner && ownerCount <= 1 {
		return ErrLastOwner
	}
	return nil
}

func ownerGrant(requester Member) error {
	if err := Require(ActionPromoteOwner, requester); err != nil {
		return ErrOwnerRequired
	}
	return nil
}

func record(action Action, err error) {
	result := "allow"
	if err != nil {
		result = "deny"
	}
	metrics.PermissionChecks.WithLabelValues(string(action), result).Inc()
}
