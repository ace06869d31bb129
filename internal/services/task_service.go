package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/MarcosLauremiro/miKan-api/internal/models"
	apperrors "github.com/MarcosLauremiro/miKan-api/pkg/errors"
)

// CreateTaskInput captures a task draft.
type CreateTaskInput struct {
	Name          string
	Description   string
	StatusID      string
	Priority      string
	ListID        *string
	ResponsibleID *string
	ConclusionAt  *time.Time
}

// TaskDraft is a validated task ready to be placed on a board.
type TaskDraft struct {
	Name          string              `json:"name"`
	Description   string              `json:"description"`
	StatusID      string              `json:"status_id"`
	ProjectID     string              `json:"project_id"`
	Priority      models.TaskPriority `json:"priority"`
	ListID        *string             `json:"list_id,omitempty"`
	OwnerID       string              `json:"owner_id"`
	ResponsibleID *string             `json:"responsible_id,omitempty"`
	ConclusionAt  *time.Time          `json:"conclusion_at,omitempty"`
}

// TaskService validates task creation requests.
type TaskService struct {
	db *gorm.DB
}

// NewTaskService constructs a TaskService.
func NewTaskService(db *gorm.DB) (*TaskService, error) {
	if db == nil {
		return nil, errors.New("task service: db is required")
	}
	return &TaskService{db: db}, nil
}

// Create validates input and returns the resulting draft. The status must
// exist and belong to a project visible to userID.
func (s *TaskService) Create(ctx context.Context, userID string, input CreateTaskInput) (*TaskDraft, error) {
	ctx = ensureContext(ctx)

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.NewBadRequest("task name is required")
	}
	statusID := strings.TrimSpace(input.StatusID)
	if statusID == "" {
		return nil, apperrors.NewBadRequest("status id is required")
	}
	priority := models.TaskPriority(strings.ToUpper(strings.TrimSpace(input.Priority)))
	if !priority.Valid() {
		return nil, apperrors.NewBadRequest("priority must be LOW, MEDIUM, HIGH or URGENT")
	}

	var status models.StatusProject
	err := s.db.WithContext(ctx).First(&status, "id = ?", statusID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrStatusNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("task service: load status: %w", err)
	}

	var visible int64
	if err := s.db.WithContext(ctx).
		Model(&models.Project{}).
		Scopes(visibleTo(s.db, userID)).
		Where("projects.id = ?", status.ProjectID).
		Count(&visible).Error; err != nil {
		return nil, fmt.Errorf("task service: check project: %w", err)
	}
	if visible == 0 {
		return nil, ErrStatusNotFound
	}

	return &TaskDraft{
		Name:          name,
		Description:   strings.TrimSpace(input.Description),
		StatusID:      status.ID,
		ProjectID:     status.ProjectID,
		Priority:      priority,
		ListID:        input.ListID,
		OwnerID:       userID,
		ResponsibleID: input.ResponsibleID,
		ConclusionAt:  input.ConclusionAt,
	}, nil
}
