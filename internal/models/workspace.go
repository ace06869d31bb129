package models

import "time"

// InvitationTTL is how long an invitation stays acceptable after creation.
const InvitationTTL = 7 * 24 * time.Hour

// Workspace is the top level tenant. OwnerID is the creator and is the only
// account allowed to delete the workspace.
type Workspace struct {
	BaseModel

	Name        string `gorm:"not null" json:"name"`
	Color       string `gorm:"type:varchar(32);not null" json:"color"`
	Description string `json:"description"`
	OwnerID     string `gorm:"type:varchar(36);not null;index" json:"owner_id"`
	Owner       *User  `gorm:"foreignKey:OwnerID" json:"-"`

	Members []WorkspaceMember `gorm:"foreignKey:WorkspaceID;constraint:OnDelete:CASCADE" json:"members,omitempty"`
}

// WorkspaceMember binds a user to a workspace with a role. A user holds at
// most one membership per workspace.
type WorkspaceMember struct {
	BaseModel

	WorkspaceID string        `gorm:"type:varchar(36);not null;uniqueIndex:idx_workspace_member,priority:1;index" json:"workspace_id"`
	UserID      string        `gorm:"type:varchar(36);not null;uniqueIndex:idx_workspace_member,priority:2;index" json:"user_id"`
	Role        WorkspaceRole `gorm:"type:varchar(16);not null;index" json:"role"`
	InviteByID  string        `gorm:"type:varchar(36)" json:"invite_by_id"`

	Workspace *Workspace `gorm:"foreignKey:WorkspaceID" json:"workspace,omitempty"`
	User      *User      `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"user,omitempty"`
}

// Invitation is a pending offer of membership addressed to an email without
// an account. Expiry is derived from CreatedAt and never stored.
type Invitation struct {
	BaseModel

	Email            string        `gorm:"not null;index" json:"email"`
	WorkspaceID      string        `gorm:"type:varchar(36);not null;index;uniqueIndex:idx_invitation_open,priority:1" json:"workspace_id"`
	Token            string        `gorm:"type:varchar(128);uniqueIndex;not null" json:"-"`
	Role             WorkspaceRole `gorm:"type:varchar(16)" json:"role"`
	InviteByID       string        `gorm:"type:varchar(36);not null;index" json:"invite_by_id"`
	AcceptedAt       *time.Time    `gorm:"index" json:"accepted_at"`
	AcceptedByUserID *string       `gorm:"type:varchar(36)" json:"accepted_by_user_id,omitempty"`
	// OpenEmail mirrors Email until the invitation is accepted, so the index
	// admits one open invitation per workspace and email.
	OpenEmail *string `gorm:"type:varchar(255);uniqueIndex:idx_invitation_open,priority:2" json:"-"`

	Workspace *Workspace `gorm:"foreignKey:WorkspaceID;constraint:OnDelete:CASCADE" json:"workspace,omitempty"`
	InviteBy  *User      `gorm:"foreignKey:InviteByID" json:"invite_by,omitempty"`
}

// ExpiresAt is the instant after which the invitation can no longer be accepted.
func (i Invitation) ExpiresAt() time.Time {
	return i.CreatedAt.Add(InvitationTTL)
}

// Expired reports whether the invitation is past its expiry at now.
func (i Invitation) Expired(now time.Time) bool {
	return now.After(i.ExpiresAt())
}

// Pending reports whether the invitation has not been accepted yet.
func (i Invitation) Pending() bool {
	return i.AcceptedAt == nil
}
