package models

import "time"

// Project groups lists and tasks. Personal projects have no workspace.
// Non-private workspace projects are visible to every workspace member.
type Project struct {
	BaseModel

	Name        string  `gorm:"not null" json:"name"`
	Description string  `json:"description"`
	OwnerID     string  `gorm:"type:varchar(36);not null;index" json:"owner_id"`
	WorkspaceID *string `gorm:"type:varchar(36);index" json:"workspace_id"`
	Private     bool    `gorm:"not null;default:false" json:"private"`

	Owner     *User           `gorm:"foreignKey:OwnerID" json:"-"`
	Workspace *Workspace      `gorm:"foreignKey:WorkspaceID;constraint:OnDelete:CASCADE" json:"-"`
	Lists     []List          `gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE" json:"lists,omitempty"`
	Statuses  []StatusProject `gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE" json:"statuses,omitempty"`
}

// StatusProject is one entry of a project's task status taxonomy.
type StatusProject struct {
	BaseModel

	ProjectID string `gorm:"type:varchar(36);not null;index" json:"project_id"`
	Name      string `gorm:"not null" json:"name"`
	Color     string `gorm:"type:varchar(32);not null" json:"color"`
	Position  int    `gorm:"not null;default:0" json:"position"`
}

// TableName keeps the historical table name.
func (StatusProject) TableName() string { return "status_projects" }

// List is an ordered column of tasks inside a project.
type List struct {
	BaseModel

	Name      string `gorm:"not null" json:"name"`
	ProjectID string `gorm:"type:varchar(36);not null;index" json:"project_id"`
	Position  int    `gorm:"not null;default:0" json:"position"`

	Tasks []Task `gorm:"foreignKey:ListID" json:"tasks,omitempty"`
}

// TaskPriority ranks task urgency.
type TaskPriority string

const (
	PriorityLow    TaskPriority = "LOW"
	PriorityMedium TaskPriority = "MEDIUM"
	PriorityHigh   TaskPriority = "HIGH"
	PriorityUrgent TaskPriority = "URGENT"
)

// Valid reports whether p is a known priority.
func (p TaskPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Task is a unit of work inside a list.
type Task struct {
	BaseModel

	Name          string       `gorm:"not null" json:"name"`
	Description   string       `json:"description"`
	ListID        *string      `gorm:"type:varchar(36);index" json:"list_id"`
	StatusID      string       `gorm:"type:varchar(36);not null;index" json:"status_id"`
	Priority      TaskPriority `gorm:"type:varchar(16);not null" json:"priority"`
	OwnerID       string       `gorm:"type:varchar(36);not null;index" json:"owner_id"`
	ResponsibleID *string      `gorm:"type:varchar(36);index" json:"responsible_id,omitempty"`
	ConclusionAt  *time.Time   `json:"conclusion_at,omitempty"`
}
