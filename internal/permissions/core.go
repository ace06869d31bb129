package permissions

import "github.com/MarcosLauremiro/miKan-api/internal/models"

const (
	ActionWorkspaceView   Action = "workspace.view"
	ActionWorkspaceUpdate Action = "workspace.update"
	ActionMemberInvite    Action = "workspace.member.invite"
	ActionMemberRole      Action = "workspace.member.role"
	ActionMemberRemove    Action = "workspace.member.remove"
	ActionPromoteOwner    Action = "workspace.member.promote_owner"
	ActionProjectCreate   Action = "workspace.project.create"
	ActionListManage      Action = "workspace.list.manage"
)

func init() {
	rules := []Rule{
		{Action: ActionWorkspaceView, Module: "workspace", MinRole: models.RoleMember, Description: "Read workspace details and members"},
		{Action: ActionWorkspaceUpdate, Module: "workspace", MinRole: models.RoleAdmin, Description: "Rename or recolor a workspace"},
		{Action: ActionMemberInvite, Module: "workspace", MinRole: models.RoleAdmin, Description: "Invite or add members"},
		{Action: ActionMemberRole, Module: "workspace", MinRole: models.RoleAdmin, Description: "Change member roles"},
		{Action: ActionMemberRemove, Module: "workspace", MinRole: models.RoleAdmin, Description: "Remove members"},
		{Action: ActionPromoteOwner, Module: "workspace", MinRole: models.RoleOwner, Description: "Grant the OWNER role"},
		{Action: ActionProjectCreate, Module: "project", MinRole: models.RoleMember, Description: "Create projects inside the workspace"},
		{Action: ActionListManage, Module: "list", MinRole: models.RoleAdmin, Description: "Edit or delete lists of public projects owned by someone else"},
	}
	for _, rule := range rules {
		if err := Register(rule); err != nil {
			panic(err)
		}
	}
}
