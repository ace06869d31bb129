package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/MarcosLauremiro/miKan-api/internal/events"
	"github.com/MarcosLauremiro/miKan-api/internal/models"
	"github.com/MarcosLauremiro/miKan-api/internal/permissions"
	apperrors "github.com/MarcosLauremiro/miKan-api/pkg/errors"
)

const defaultWorkspaceColor = "#6366f1"

// CreateWorkspaceInput captures new workspace metadata.
type CreateWorkspaceInput struct {
	Name        string
	Color       string
	Description string
}

// UpdateWorkspaceInput describes mutable workspace fields.
type UpdateWorkspaceInput struct {
	Name        *string
	Color       *string
	Description *string
}

// WorkspaceSummary is a workspace together with the caller's role in it.
type WorkspaceSummary struct {
	models.Workspace
	Role models.WorkspaceRole `json:"role"`
}

// WorkspaceService manages workspaces, their memberships and invitations.
type WorkspaceService struct {
	db         *gorm.DB
	bus        events.Publisher
	audit      *AuditService
	now        func() time.Time
	tokenBytes int
}

// WorkspaceOption customises WorkspaceService behaviour.
type WorkspaceOption func(*WorkspaceService)

// WithWorkspaceClock injects a custom clock primarily for testing.
func WithWorkspaceClock(clock func() time.Time) WorkspaceOption {
	return func(s *WorkspaceService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithInviteTokenSize adjusts the random invitation token length in bytes.
func WithInviteTokenSize(size int) WorkspaceOption {
	return func(s *WorkspaceService) {
		if size > 0 {
			s.tokenBytes = size
		}
	}
}

// NewWorkspaceService constructs a WorkspaceService.
func NewWorkspaceService(db *gorm.DB, bus events.Publisher, audit *AuditService, opts ...WorkspaceOption) (*WorkspaceService, error) {
	if db == nil {
		return nil, errors.New("workspace service: db is required")
	}
	svc := &WorkspaceService{
		db:         db,
		bus:        bus,
		audit:      audit,
		now:        time.Now,
		tokenBytes: 32,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Create registers a workspace with the caller as its sole OWNER.
func (s *WorkspaceService) Create(ctx context.Context, userID string, input CreateWorkspaceInput) (*models.Workspace, error) {
	ctx = ensureContext(ctx)

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.NewBadRequest("workspace name is required")
	}
	color := strings.TrimSpace(input.Color)
	if color == "" {
		color = defaultWorkspaceColor
	}

	workspace := &models.Workspace{
		Name:        name,
		Color:       color,
		Description: strings.TrimSpace(input.Description),
		OwnerID:     userID,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(workspace).Error; err != nil {
			return fmt.Errorf("create workspace: %w", err)
		}
		member := &models.WorkspaceMember{
			WorkspaceID: workspace.ID,
			UserID:      userID,
			Role:        models.RoleOwner,
			InviteByID:  userID,
		}
		if err := tx.Create(member).Error; err != nil {
			return fmt.Errorf("create owner membership: %w", err)
		}
		workspace.Members = []models.WorkspaceMember{*member}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("workspace service: %w", err)
	}

	recordAudit(s.audit, ctx, AuditEntry{
		Action:      "workspace.create",
		Module:      "workspace",
		Entity:      "workspace",
		EntityID:    workspace.ID,
		WorkspaceID: stringPtr(workspace.ID),
		ActorID:     userID,
		ActorRole:   models.RoleOwner,
		After:       workspaceSnapshot(workspace),
	})

	return workspace, nil
}

// List returns every workspace the caller belongs to, newest first.
func (s *WorkspaceService) List(ctx context.Context, userID string) ([]WorkspaceSummary, error) {
	ctx = ensureContext(ctx)

	var memberships []models.WorkspaceMember
	if err := s.db.WithContext(ctx).
		Preload("Workspace").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&memberships).Error; err != nil {
		return nil, fmt.Errorf("workspace service: list memberships: %w", err)
	}

	out := make([]WorkspaceSummary, 0, len(memberships))
	for _, m := range memberships {
		if m.Workspace == nil {
			continue
		}
		out = append(out, WorkspaceSummary{Workspace: *m.Workspace, Role: m.Role})
	}
	return out, nil
}

// Get loads a workspace with its members. Non-members get ErrWorkspaceNotFound.
func (s *WorkspaceService) Get(ctx context.Context, userID, id string) (*models.Workspace, error) {
	ctx = ensureContext(ctx)

	requester, err := s.member(ctx, s.db, id, userID)
	if err != nil {
		return nil, err
	}
	if !requester.IsMember() {
		return nil, ErrWorkspaceNotFound
	}

	var workspace models.Workspace
	err = s.db.WithContext(ctx).
		Preload("Members", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Preload("Members.User").
		First(&workspace, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrWorkspaceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("workspace service: load workspace: %w", err)
	}
	return &workspace, nil
}

// Update modifies workspace metadata. Requires OWNER or ADMIN.
func (s *WorkspaceService) Update(ctx context.Context, userID, id string, input UpdateWorkspaceInput) (*models.Workspace, error) {
	ctx = ensureContext(ctx)

	workspace, err := s.loadWorkspace(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	requester, err := s.member(ctx, s.db, id, userID)
	if err != nil {
		return nil, err
	}
	if err := permissions.Require(permissions.ActionWorkspaceUpdate, requester); err != nil {
		return nil, err
	}

	before := workspaceSnapshot(workspace)
	updates := map[string]any{}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, apperrors.NewBadRequest("workspace name cannot be empty")
		}
		if name != workspace.Name {
			updates["name"] = name
		}
	}
	if input.Color != nil {
		if color := strings.TrimSpace(*input.Color); color != "" && color != workspace.Color {
			updates["color"] = color
		}
	}
	if input.Description != nil {
		updates["description"] = strings.TrimSpace(*input.Description)
	}
	if len(updates) == 0 {
		return workspace, nil
	}

	if err := s.db.WithContext(ctx).Model(workspace).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("workspace service: update workspace: %w", err)
	}
	if workspace, err = s.loadWorkspace(ctx, s.db, id); err != nil {
		return nil, err
	}

	recordAudit(s.audit, ctx, AuditEntry{
		Action:      "workspace.update",
		Module:      "workspace",
		Entity:      "workspace",
		EntityID:    workspace.ID,
		WorkspaceID: stringPtr(workspace.ID),
		ActorID:     userID,
		ActorRole:   requester.Role,
		Before:      before,
		After:       workspaceSnapshot(workspace),
	})
	return workspace, nil
}

// Delete removes the workspace with its members, invitations and projects.
// Only the creator recorded as OwnerID may delete it.
func (s *WorkspaceService) Delete(ctx context.Context, userID, id string) error {
	ctx = ensureContext(ctx)

	workspace, err := s.loadWorkspace(ctx, s.db, id)
	if err != nil {
		return err
	}
	if workspace.OwnerID != userID {
		return ErrWorkspaceOwnerOnly
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		projectIDs := tx.Model(&models.Project{}).Select("id").Where("workspace_id = ?", id)
		listIDs := tx.Model(&models.List{}).Select("id").Where("project_id IN (?)", projectIDs)

		steps := []struct {
			name  string
			query *gorm.DB
			model any
		}{
			{"tasks", tx.Where("list_id IN (?)", listIDs), &models.Task{}},
			{"lists", tx.Where("project_id IN (?)", projectIDs), &models.List{}},
			{"statuses", tx.Where("project_id IN (?)", projectIDs), &models.StatusProject{}},
			{"projects", tx.Where("workspace_id = ?", id), &models.Project{}},
			{"invitations", tx.Where("workspace_id = ?", id), &models.Invitation{}},
			{"members", tx.Where("workspace_id = ?", id), &models.WorkspaceMember{}},
		}
		for _, step := range steps {
			if err := step.query.Delete(step.model).Error; err != nil {
				return fmt.Errorf("delete %s: %w", step.name, err)
			}
		}
		if err := tx.Delete(&models.Workspace{}, "id = ?", id).Error; err != nil {
			return fmt.Errorf("delete workspace: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("workspace service: %w", err)
	}

	recordAudit(s.audit, ctx, AuditEntry{
		Action:      "workspace.delete",
		Module:      "workspace",
		Entity:      "workspace",
		EntityID:    id,
		WorkspaceID: stringPtr(id),
		ActorID:     userID,
		ActorRole:   models.RoleOwner,
		Before:      workspaceSnapshot(workspace),
	})
	return nil
}

// RoleOf returns the caller's membership in workspaceID; a zero Role means none.
func (s *WorkspaceService) RoleOf(ctx context.Context, workspaceID, userID string) (permissions.Member, error) {
	return s.member(ensureContext(ctx), s.db, workspaceID, userID)
}

func (s *WorkspaceService) loadWorkspace(ctx context.Context, db *gorm.DB, id string) (*models.Workspace, error) {
	var workspace models.Workspace
	err := db.WithContext(ctx).First(&workspace, "id = ?", strings.TrimSpace(id)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrWorkspaceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("workspace service: load workspace: %w", err)
	}
	return &workspace, nil
}

func (s *WorkspaceService) member(ctx context.Context, db *gorm.DB, workspaceID, userID string) (permissions.Member, error) {
	return lookupMember(ctx, db, workspaceID, userID)
}

func lookupMember(ctx context.Context, db *gorm.DB, workspaceID, userID string) (permissions.Member, error) {
	out := permissions.Member{UserID: userID}
	var membership models.WorkspaceMember
	err := db.WithContext(ctx).
		Where("workspace_id = ? AND user_id = ?", workspaceID, userID).
		First(&membership).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return out, nil
	}
	if err != nil {
		return out, fmt.Errorf("load membership: %w", err)
	}
	out.Role = membership.Role
	return out, nil
}

func ownerCount(tx *gorm.DB, workspaceID string) (int64, error) {
	var count int64
	err := tx.Model(&models.WorkspaceMember{}).
		Where("workspace_id = ? AND role = ?", workspaceID, models.RoleOwner).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("count owners: %w", err)
	}
	return count, nil
}

// reassignCreator moves Workspace.OwnerID to the longest standing remaining
// OWNER when the recorded creator stops being an OWNER.
func reassignCreator(tx *gorm.DB, workspace *models.Workspace, departingUserID string) error {
	if workspace.OwnerID != departingUserID {
		return nil
	}
	var successor models.WorkspaceMember
	err := tx.Where("workspace_id = ? AND role = ? AND user_id <> ?", workspace.ID, models.RoleOwner, departingUserID).
		Order("created_at ASC").
		First(&successor).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("find successor owner: %w", err)
	}
	if err := tx.Model(&models.Workspace{}).Where("id = ?", workspace.ID).
		Update("owner_id", successor.UserID).Error; err != nil {
		return fmt.Errorf("reassign workspace owner: %w", err)
	}
	workspace.OwnerID = successor.UserID
	return nil
}

func workspaceSnapshot(w *models.Workspace) map[string]any {
	return map[string]any{
		"name":        w.Name,
		"color":       w.Color,
		"description": w.Description,
		"owner_id":    w.OwnerID,
	}
}
