package permissions

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MarcosLauremiro/miKan-api/internal/models"
)

var (
	owner  = Member{UserID: "owner", Role: models.RoleOwner}
	owner2 = Member{UserID: "owner-2", Role: models.RoleOwner}
	admin  = Member{UserID: "admin", Role: models.RoleAdmin}
	member = Member{UserID: "member", Role: models.RoleMember}
	nobody = Member{UserID: "stranger"}
)

func TestRequire(t *testing.T) {
	require.NoError(t, Require(ActionMemberInvite, owner))
	require.NoError(t, Require(ActionMemberInvite, admin))
	require.ErrorIs(t, Require(ActionMemberInvite, member), ErrInsufficientRole)
	require.ErrorIs(t, Require(ActionMemberInvite, nobody), ErrNotMember)
	require.NoError(t, Require(ActionWorkspaceView, member))
}

func TestCheckAddMember(t *testing.T) {
	require.NoError(t, CheckAddMember(admin, models.RoleAdmin))
	require.NoError(t, CheckAddMember(owner, models.RoleOwner))
	require.ErrorIs(t, CheckAddMember(admin, models.RoleOwner), ErrOwnerRequired)
	require.ErrorIs(t, CheckAddMember(member, models.RoleMember), ErrInsufficientRole)
}

func TestCheckRoleChange(t *testing.T) {
	cases := []struct {
		name      string
		requester Member
		target    Member
		newRole   models.WorkspaceRole
		owners    int64
		want      error
	}{
		{"admin promotes member to admin", admin, member, models.RoleAdmin, 1, nil},
		{"admin cannot promote to owner", admin, member, models.RoleOwner, 1, ErrOwnerRequired},
		{"owner promotes to owner", owner, member, models.RoleOwner, 1, nil},
		{"cannot demote last owner", admin, owner, models.RoleAdmin, 1, ErrLastOwner},
		{"last owner demoting self hits owner guard first", owner, owner, models.RoleMember, 1, ErrLastOwner},
		{"demote one of two owners", owner, owner2, models.RoleAdmin, 2, nil},
		{"admin may demote an owner when another remains", admin, owner2, models.RoleMember, 2, nil},
		{"cannot change own role", admin, Member{UserID: "admin", Role: models.RoleAdmin}, models.RoleMember, 1, ErrSelfRoleChange},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := CheckRoleChange(tc.requester, tc.target, tc.newRole, tc.owners)
			if tc.want == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestCheckRemoval(t *testing.T) {
	require.NoError(t, CheckRemoval(admin, member, 1))
	require.ErrorIs(t, CheckRemoval(owner2, owner, 1), ErrLastOwner)
	require.ErrorIs(t, CheckRemoval(admin, owner, 2), ErrAdminRemovesOwner)
	require.NoError(t, CheckRemoval(owner2, owner, 2))
	require.ErrorIs(t, CheckRemoval(admin, admin, 1), ErrSelfRemoval)
}

func TestCheckLeave(t *testing.T) {
	require.ErrorIs(t, CheckLeave(owner, 1), ErrLastOwner)
	require.NoError(t, CheckLeave(owner, 2))
	require.NoError(t, CheckLeave(member, 1))
	require.ErrorIs(t, CheckLeave(nobody, 1), ErrNotMember)
}

func TestErrorsRenderExpectedStatus(t *testing.T) {
	require.Equal(t, 409, ErrLastOwner.StatusCode)
	require.Equal(t, 403, ErrSelfRemoval.StatusCode)
	require.NotErrorIs(t, ErrSelfRemoval, ErrAdminRemovesOwner)
}
