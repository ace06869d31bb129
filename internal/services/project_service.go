package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/MarcosLauremiro/miKan-api/internal/events"
	"github.com/MarcosLauremiro/miKan-api/internal/models"
	"github.com/MarcosLauremiro/miKan-api/internal/permissions"
	apperrors "github.com/MarcosLauremiro/miKan-api/pkg/errors"
)

const defaultInitialListName = "To Do"

// DefaultStatuses seed every project created without a custom taxonomy.
var DefaultStatuses = []StatusInput{
	{Name: "A Fazer", Color: "#ef4444"},
	{Name: "Em Progresso", Color: "#3b82f6"},
	{Name: "Em Revisão", Color: "#f59e0b"},
	{Name: "Concluído", Color: "#10b981"},
}

// StatusInput describes one project status.
type StatusInput struct {
	Name  string
	Color string
}

// UpdateStatusInput describes mutable status fields.
type UpdateStatusInput struct {
	Name  *string
	Color *string
}

// CreateProjectInput captures a new project. Private is required.
type CreateProjectInput struct {
	WorkspaceID     *string
	Name            string
	Description     string
	Private         *bool
	InitialListName string
	Statuses        []StatusInput
}

// UpdateProjectInput describes mutable project fields.
type UpdateProjectInput struct {
	Name        *string
	Description *string
	Private     *bool
}

// ProjectService manages projects and their status taxonomy.
type ProjectService struct {
	db    *gorm.DB
	bus   events.Publisher
	audit *AuditService
}

// NewProjectService constructs a ProjectService.
func NewProjectService(db *gorm.DB, bus events.Publisher, audit *AuditService) (*ProjectService, error) {
	if db == nil {
		return nil, errors.New("project service: db is required")
	}
	return &ProjectService{db: db, bus: bus, audit: audit}, nil
}

// visibleTo restricts a projects query to what userID may read: projects
// they own, and public projects of workspaces they belong to.
func visibleTo(root *gorm.DB, userID string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		memberOf := root.Model(&models.WorkspaceMember{}).Select("workspace_id").Where("user_id = ?", userID)
		return db.Where("projects.owner_id = ? OR (projects.private = ? AND projects.workspace_id IN (?))", userID, false, memberOf)
	}
}

// Create stores a project with its initial list and statuses.
func (s *ProjectService) Create(ctx context.Context, userID string, input CreateProjectInput) (*models.Project, error) {
	ctx = ensureContext(ctx)

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.NewBadRequest("project name is required")
	}
	if input.Private == nil {
		return nil, apperrors.NewBadRequest("private flag is required")
	}

	var workspace *models.Workspace
	if input.WorkspaceID != nil && strings.TrimSpace(*input.WorkspaceID) != "" {
		id := strings.TrimSpace(*input.WorkspaceID)
		var ws models.Workspace
		err := s.db.WithContext(ctx).First(&ws, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWorkspaceNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("project service: load workspace: %w", err)
		}
		member, err := lookupMember(ctx, s.db, id, userID)
		if err != nil {
			return nil, fmt.Errorf("project service: %w", err)
		}
		if err := permissions.Require(permissions.ActionProjectCreate, member); err != nil {
			return nil, err
		}
		workspace = &ws
	}

	statuses := input.Statuses
	if len(statuses) == 0 {
		statuses = DefaultStatuses
	}
	listName := strings.TrimSpace(input.InitialListName)
	if listName == "" {
		listName = defaultInitialListName
	}

	project := &models.Project{
		Name:        name,
		Description: strings.TrimSpace(input.Description),
		OwnerID:     userID,
		Private:     *input.Private,
	}
	if workspace != nil {
		project.WorkspaceID = stringPtr(workspace.ID)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(project).Error; err != nil {
			return fmt.Errorf("create project: %w", err)
		}
		list := models.List{Name: listName, ProjectID: project.ID}
		if err := tx.Create(&list).Error; err != nil {
			return fmt.Errorf("create initial list: %w", err)
		}
		rows := make([]models.StatusProject, 0, len(statuses))
		for i, st := range statuses {
			stName := strings.TrimSpace(st.Name)
			if stName == "" {
				return apperrors.NewBadRequest("status name is required")
			}
			rows = append(rows, models.StatusProject{
				ProjectID: project.ID,
				Name:      stName,
				Color:     strings.TrimSpace(st.Color),
				Position:  i,
			})
		}
		if err := tx.Create(&rows).Error; err != nil {
			return fmt.Errorf("create statuses: %w", err)
		}
		project.Lists = []models.List{list}
		project.Statuses = rows
		return nil
	})
	if err != nil {
		return nil, wrapTxError("project service", err)
	}

	payload := events.ProjectCreatedPayload{
		ProjectID:   project.ID,
		ProjectName: project.Name,
		UserID:      userID,
		Private:     project.Private,
	}
	if user, err := findUser(ctx, s.db, "id = ?", userID); err == nil {
		payload.UserName = user.Name
	}
	if workspace != nil {
		payload.WorkspaceID = workspace.ID
		payload.WorkspaceName = workspace.Name
	}
	publishEvent(s.bus, ctx, events.ProjectCreated, payload)
	recordAudit(s.audit, ctx, AuditEntry{
		Action:      "project.create",
		Module:      "project",
		Entity:      "project",
		EntityID:    project.ID,
		WorkspaceID: project.WorkspaceID,
		ProjectID:   stringPtr(project.ID),
		ActorID:     userID,
		After:       projectSnapshot(project),
	})

	return project, nil
}

// List returns the projects visible to userID, optionally within one workspace.
func (s *ProjectService) List(ctx context.Context, userID, workspaceID string) ([]models.Project, error) {
	ctx = ensureContext(ctx)

	query := s.db.WithContext(ctx).Scopes(visibleTo(s.db, userID))
	if id := strings.TrimSpace(workspaceID); id != "" {
		query = query.Where("projects.workspace_id = ?", id)
	}

	var projects []models.Project
	if err := query.
		Preload("Statuses", orderByPosition).
		Preload("Lists", orderByPosition).
		Order("projects.created_at DESC").
		Find(&projects).Error; err != nil {
		return nil, fmt.Errorf("project service: list projects: %w", err)
	}
	return projects, nil
}

// Get loads a visible project with its lists and statuses.
func (s *ProjectService) Get(ctx context.Context, userID, id string) (*models.Project, error) {
	ctx = ensureContext(ctx)

	var project models.Project
	err := s.db.WithContext(ctx).
		Scopes(visibleTo(s.db, userID)).
		Preload("Statuses", orderByPosition).
		Preload("Lists", orderByPosition).
		Preload("Lists.Tasks").
		First(&project, "projects.id = ?", strings.TrimSpace(id)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("project service: load project: %w", err)
	}
	return &project, nil
}

// Update modifies a project. Owner only.
func (s *ProjectService) Update(ctx context.Context, userID, id string, input UpdateProjectInput) (*models.Project, error) {
	ctx = ensureContext(ctx)

	project, err := s.ownedProject(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	before := projectSnapshot(project)
	updates := map[string]any{}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, apperrors.NewBadRequest("project name cannot be empty")
		}
		updates["name"] = name
	}
	if input.Description != nil {
		updates["description"] = strings.TrimSpace(*input.Description)
	}
	if input.Private != nil {
		updates["private"] = *input.Private
	}
	if len(updates) == 0 {
		return project, nil
	}

	if err := s.db.WithContext(ctx).Model(&models.Project{}).Where("id = ?", project.ID).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("project service: update project: %w", err)
	}
	updated, err := s.Get(ctx, userID, project.ID)
	if err != nil {
		return nil, err
	}

	recordAudit(s.audit, ctx, AuditEntry{
		Action:      "project.update",
		Module:      "project",
		Entity:      "project",
		EntityID:    project.ID,
		WorkspaceID: project.WorkspaceID,
		ProjectID:   stringPtr(project.ID),
		ActorID:     userID,
		Before:      before,
		After:       projectSnapshot(updated),
	})
	return updated, nil
}

// Delete removes a project with its lists, tasks and statuses. Owner only.
func (s *ProjectService) Delete(ctx context.Context, userID, id string) error {
	ctx = ensureContext(ctx)

	project, err := s.ownedProject(ctx, userID, id)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		listIDs := tx.Model(&models.List{}).Select("id").Where("project_id = ?", project.ID)
		if err := tx.Where("list_id IN (?)", listIDs).Delete(&models.Task{}).Error; err != nil {
			return fmt.Errorf("delete tasks: %w", err)
		}
		if err := tx.Where("project_id = ?", project.ID).Delete(&models.List{}).Error; err != nil {
			return fmt.Errorf("delete lists: %w", err)
		}
		if err := tx.Where("project_id = ?", project.ID).Delete(&models.StatusProject{}).Error; err != nil {
			return fmt.Errorf("delete statuses: %w", err)
		}
		if err := tx.Delete(&models.Project{}, "id = ?", project.ID).Error; err != nil {
			return fmt.Errorf("delete project: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("project service: %w", err)
	}

	recordAudit(s.audit, ctx, AuditEntry{
		Action:      "project.delete",
		Module:      "project",
		Entity:      "project",
		EntityID:    project.ID,
		WorkspaceID: project.WorkspaceID,
		ProjectID:   stringPtr(project.ID),
		ActorID:     userID,
		Before:      projectSnapshot(project),
	})
	return nil
}

// AddStatus appends a status to the project's taxonomy. Owner only.
func (s *ProjectService) AddStatus(ctx context.Context, userID, projectID string, input StatusInput) (*models.StatusProject, error) {
	ctx = ensureContext(ctx)

	project, err := s.ownedProject(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.NewBadRequest("status name is required")
	}
	color := strings.TrimSpace(input.Color)
	if color == "" {
		return nil, apperrors.NewBadRequest("status color is required")
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.StatusProject{}).Where("project_id = ?", project.ID).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("project service: count statuses: %w", err)
	}

	status := &models.StatusProject{ProjectID: project.ID, Name: name, Color: color, Position: int(count)}
	if err := s.db.WithContext(ctx).Create(status).Error; err != nil {
		return nil, fmt.Errorf("project service: create status: %w", err)
	}

	recordAudit(s.audit, ctx, AuditEntry{
		Action:      "project.status.create",
		Module:      "project",
		Entity:      "status",
		EntityID:    status.ID,
		WorkspaceID: project.WorkspaceID,
		ProjectID:   stringPtr(project.ID),
		ActorID:     userID,
		After:       map[string]any{"name": name, "color": color},
	})
	return status, nil
}

// UpdateStatus renames or recolors a status. Owner only.
func (s *ProjectService) UpdateStatus(ctx context.Context, userID, statusID string, input UpdateStatusInput) (*models.StatusProject, error) {
	ctx = ensureContext(ctx)

	status, project, err := s.ownedStatus(ctx, userID, statusID)
	if err != nil {
		return nil, err
	}

	before := map[string]any{"name": status.Name, "color": status.Color}
	updates := map[string]any{}
	if input.Name != nil {
		if name := strings.TrimSpace(*input.Name); name != "" {
			updates["name"] = name
		}
	}
	if input.Color != nil {
		if color := strings.TrimSpace(*input.Color); color != "" {
			updates["color"] = color
		}
	}
	if len(updates) == 0 {
		return status, nil
	}
	if err := s.db.WithContext(ctx).Model(status).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("project service: update status: %w", err)
	}

	recordAudit(s.audit, ctx, AuditEntry{
		Action:      "project.status.update",
		Module:      "project",
		Entity:      "status",
		EntityID:    status.ID,
		WorkspaceID: project.WorkspaceID,
		ProjectID:   stringPtr(project.ID),
		ActorID:     userID,
		Before:      before,
		After:       map[string]any{"name": status.Name, "color": status.Color},
	})
	return status, nil
}

// DeleteStatus removes an unused status. Owner only.
func (s *ProjectService) DeleteStatus(ctx context.Context, userID, statusID string) error {
	ctx = ensureContext(ctx)

	status, project, err := s.ownedStatus(ctx, userID, statusID)
	if err != nil {
		return err
	}

	var used int64
	if err := s.db.WithContext(ctx).Model(&models.Task{}).Where("status_id = ?", status.ID).Count(&used).Error; err != nil {
		return fmt.Errorf("project service: count status tasks: %w", err)
	}
	if used > 0 {
		return ErrStatusInUse
	}
	if err := s.db.WithContext(ctx).Delete(&models.StatusProject{}, "id = ?", status.ID).Error; err != nil {
		return fmt.Errorf("project service: delete status: %w", err)
	}

	recordAudit(s.audit, ctx, AuditEntry{
		Action:      "project.status.delete",
		Module:      "project",
		Entity:      "status",
		EntityID:    status.ID,
		WorkspaceID: project.WorkspaceID,
		ProjectID:   stringPtr(project.ID),
		ActorID:     userID,
		Before:      map[string]any{"name": status.Name, "color": status.Color},
	})
	return nil
}

// ownedProject loads a visible project and requires userID to own it.
func (s *ProjectService) ownedProject(ctx context.Context, userID, id string) (*models.Project, error) {
	var project models.Project
	err := s.db.WithContext(ctx).
		Scopes(visibleTo(s.db, userID)).
		First(&project, "projects.id = ?", strings.TrimSpace(id)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("project service: load project: %w", err)
	}
	if project.OwnerID != userID {
		return nil, ErrProjectOwnerOnly
	}
	return &project, nil
}

func (s *ProjectService) ownedStatus(ctx context.Context, userID, statusID string) (*models.StatusProject, *models.Project, error) {
	var status models.StatusProject
	err := s.db.WithContext(ctx).First(&status, "id = ?", strings.TrimSpace(statusID)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, ErrStatusNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("project service: load status: %w", err)
	}
	project, err := s.ownedProject(ctx, userID, status.ProjectID)
	if errors.Is(err, ErrProjectNotFound) {
		return nil, nil, ErrStatusNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	return &status, project, nil
}

func orderByPosition(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC").Order("created_at ASC")
}

func projectSnapshot(p *models.Project) map[string]any {
	return map[string]any{
		"name":         p.Name,
		"description":  p.Description,
		"private":      p.Private,
		"workspace_id": p.WorkspaceID,
	}
}
