package models

import "gorm.io/datatypes"

// AuditType separates user driven audit records from system generated ones.
type AuditType string

const (
	AuditTypeAudit  AuditType = "audit"
	AuditTypeSystem AuditType = "system"
)

// AuditLog is an append-only record of a state change and who made it.
type AuditLog struct {
	BaseModel

	Type        AuditType      `gorm:"type:varchar(16);not null;index" json:"type"`
	Action      string         `gorm:"not null;index" json:"action"`
	Module      string         `gorm:"type:varchar(64);index" json:"module"`
	Entity      string         `gorm:"type:varchar(64)" json:"entity"`
	EntityID    string         `gorm:"type:varchar(36);index" json:"entity_id"`
	WorkspaceID *string        `gorm:"type:varchar(36);index" json:"workspace_id,omitempty"`
	ProjectID   *string        `gorm:"type:varchar(36);index" json:"project_id,omitempty"`
	ActorID     string         `gorm:"type:varchar(36);index" json:"actor_id"`
	ActorEmail  string         `json:"actor_email"`
	ActorRole   string         `gorm:"type:varchar(16)" json:"actor_role,omitempty"`
	Changes     datatypes.JSON `json:"changes,omitempty"`
	Metadata    datatypes.JSON `json:"metadata,omitempty"`
	IPAddress   string         `json:"ip_address,omitempty"`
	UserAgent   string         `json:"user_agent,omitempty"`
}

// AuditChanges is the before/after snapshot stored in AuditLog.Changes.
type AuditChanges struct {
	Before any `json:"before,omitempty"`
	After  any `json:"after,omitempty"`
}
