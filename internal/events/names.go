package events

// Event names published by the services.
const (
	AuthRegistered = "auth.registered"

	WorkspaceInvite             = "workspace.invite"
	WorkspaceMemberAdded        = "workspace.member.added"
	WorkspaceMemberRoleUpdated  = "workspace.member.role.updated"
	WorkspaceMemberRemoved      = "workspace.member.removed"
	WorkspaceMemberLeft         = "workspace.member.left"
	WorkspaceInvitationAccepted = "workspace.invitation.accepted"
	WorkspaceInvitationDeclined = "workspace.invitation.declined"

	ProjectCreated = "project.created"

	ListCreated = "list.created"
	ListDeleted = "list.deleted"
)

// Membership delivery kinds carried by MemberInvited.
const (
	DeliveryInvite = "INVITE"
	DeliveryAdded  = "ADDED"
)

// UserRegistered is published when an account is created locally or on first OAuth login.
type UserRegistered struct {
	UserID   string `json:"user_id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Provider string `json:"provider"`
}

// MemberInvited is published for both invitation emails and direct additions.
type MemberInvited struct {
	WorkspaceID   string `json:"workspace_id"`
	WorkspaceName string `json:"workspace_name"`
	Email         string `json:"email"`
	Role          string `json:"role"`
	InvitedByID   string `json:"invited_by_id"`
	Type          string `json:"type"`
	Token         string `json:"token,omitempty"`
}

// MemberRoleUpdated is published after a role change commits.
type MemberRoleUpdated struct {
	WorkspaceID   string `json:"workspace_id"`
	WorkspaceName string `json:"workspace_name"`
	MemberEmail   string `json:"member_email"`
	MemberName    string `json:"member_name"`
	OldRole       string `json:"old_role"`
	NewRole       string `json:"new_role"`
	UpdatedByID   string `json:"updated_by_id"`
}

// MemberRemoved is published when a manager removes somebody.
type MemberRemoved struct {
	WorkspaceID   string `json:"workspace_id"`
	WorkspaceName string `json:"workspace_name"`
	MemberEmail   string `json:"member_email"`
	MemberName    string `json:"member_name"`
	RemovedByID   string `json:"removed_by_id"`
}

// MemberLeft is published when a member leaves on their own.
type MemberLeft struct {
	WorkspaceID   string `json:"workspace_id"`
	WorkspaceName string `json:"workspace_name"`
	MemberEmail   string `json:"member_email"`
	MemberName    string `json:"member_name"`
}

// InvitationAnswered is published on both accept and decline.
type InvitationAnswered struct {
	WorkspaceID   string `json:"workspace_id"`
	WorkspaceName string `json:"workspace_name"`
	MemberEmail   string `json:"member_email"`
	MemberName    string `json:"member_name"`
	InvitedByID   string `json:"invited_by_id"`
}

// ProjectCreatedPayload describes a freshly created project.
type ProjectCreatedPayload struct {
	ProjectID     string `json:"project_id"`
	ProjectName   string `json:"project_name"`
	UserID        string `json:"user_id"`
	UserName      string `json:"user_name"`
	WorkspaceID   string `json:"workspace_id,omitempty"`
	WorkspaceName string `json:"workspace_name,omitempty"`
	Private       bool   `json:"private"`
}

// ListChanged is published when a list is created or deleted.
type ListChanged struct {
	ListID      string `json:"list_id"`
	ListName    string `json:"list_name"`
	ProjectID   string `json:"project_id"`
	ProjectName string `json:"project_name"`
	UserID      string `json:"user_id"`
	WorkspaceID string `json:"workspace_id,omitempty"`
}
