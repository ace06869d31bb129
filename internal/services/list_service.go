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

const duplicateSuffix = " (Cópia)"

// ListService manages the lists of a project.
type ListService struct {
	db    *gorm.DB
	bus   events.Publisher
	audit *AuditService
}

// NewListService constructs a ListService.
func NewListService(db *gorm.DB, bus events.Publisher, audit *AuditService) (*ListService, error) {
	if db == nil {
		return nil, errors.New("list service: db is required")
	}
	return &ListService{db: db, bus: bus, audit: audit}, nil
}

// Create appends a list to a visible project.
func (s *ListService) Create(ctx context.Context, userID, projectID, name string) (*models.List, error) {
	ctx = ensureContext(ctx)

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.NewBadRequest("list name is required")
	}
	project, err := s.visibleProject(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}

	list := &models.List{Name: name, ProjectID: project.ID}
	if list.Position, err = s.nextPosition(ctx, project.ID); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Create(list).Error; err != nil {
		return nil, fmt.Errorf("list service: create list: %w", err)
	}

	s.announce(ctx, events.ListCreated, "list.create", userID, project, list)
	return list, nil
}

// ListByProject returns the lists of a visible project in board order.
func (s *ListService) ListByProject(ctx context.Context, userID, projectID string) ([]models.List, error) {
	ctx = ensureContext(ctx)

	project, err := s.visibleProject(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}

	var lists []models.List
	if err := s.db.WithContext(ctx).
		Scopes(orderByPosition).
		Preload("Tasks").
		Where("project_id = ?", project.ID).
		Find(&lists).Error; err != nil {
		return nil, fmt.Errorf("list service: list lists: %w", err)
	}
	return lists, nil
}

// Get loads a list whose project is visible to userID.
func (s *ListService) Get(ctx context.Context, userID, id string) (*models.List, error) {
	ctx = ensureContext(ctx)

	list, _, err := s.visibleList(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(list).Association("Tasks").Find(&list.Tasks); err != nil {
		return nil, fmt.Errorf("list service: load tasks: %w", err)
	}
	return list, nil
}

// Update renames a list.
func (s *ListService) Update(ctx context.Context, userID, id, name string) (*models.List, error) {
	ctx = ensureContext(ctx)

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.NewBadRequest("list name is required")
	}
	list, project, err := s.managedList(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	before := list.Name
	if err := s.db.WithContext(ctx).Model(list).Update("name", name).Error; err != nil {
		return nil, fmt.Errorf("list service: update list: %w", err)
	}

	recordAudit(s.audit, ctx, AuditEntry{
		Action:      "list.update",
		Module:      "list",
		Entity:      "list",
		EntityID:    list.ID,
		WorkspaceID: project.WorkspaceID,
		ProjectID:   stringPtr(project.ID),
		ActorID:     userID,
		Before:      map[string]any{"name": before},
		After:       map[string]any{"name": name},
	})
	return list, nil
}

// Delete removes an empty list.
func (s *ListService) Delete(ctx context.Context, userID, id string) error {
	ctx = ensureContext(ctx)

	list, project, err := s.managedList(ctx, userID, id)
	if err != nil {
		return err
	}

	var tasks int64
	if err := s.db.WithContext(ctx).Model(&models.Task{}).Where("list_id = ?", list.ID).Count(&tasks).Error; err != nil {
		return fmt.Errorf("list service: count tasks: %w", err)
	}
	if tasks > 0 {
		return ErrListHasTasks
	}

	if err := s.db.WithContext(ctx).Delete(&models.List{}, "id = ?", list.ID).Error; err != nil {
		return fmt.Errorf("list service: delete list: %w", err)
	}

	s.announce(ctx, events.ListDeleted, "list.delete", userID, project, list)
	return nil
}

// ForceDelete removes a list together with its tasks. Project owner only.
func (s *ListService) ForceDelete(ctx context.Context, userID, id string) (int64, error) {
	ctx = ensureContext(ctx)

	list, project, err := s.visibleList(ctx, userID, id)
	if err != nil {
		return 0, err
	}
	if project.OwnerID != userID {
		return 0, ErrProjectOwnerOnly
	}

	var removed int64
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("list_id = ?", list.ID).Delete(&models.Task{})
		if result.Error != nil {
			return fmt.Errorf("delete tasks: %w", result.Error)
		}
		removed = result.RowsAffected
		if err := tx.Delete(&models.List{}, "id = ?", list.ID).Error; err != nil {
			return fmt.Errorf("delete list: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("list service: %w", err)
	}

	s.announce(ctx, events.ListDeleted, "list.force_delete", userID, project, list)
	return removed, nil
}

// Duplicate copies a list's name into a new empty list at the end of the board.
func (s *ListService) Duplicate(ctx context.Context, userID, id string) (*models.List, error) {
	ctx = ensureContext(ctx)

	source, project, err := s.visibleList(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	copyList := &models.List{Name: source.Name + duplicateSuffix, ProjectID: project.ID}
	if copyList.Position, err = s.nextPosition(ctx, project.ID); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Create(copyList).Error; err != nil {
		return nil, fmt.Errorf("list service: duplicate list: %w", err)
	}

	s.announce(ctx, events.ListCreated, "list.duplicate", userID, project, copyList)
	return copyList, nil
}

// Reorder assigns positions following the order of listIDs. Every id must
// belong to the project.
func (s *ListService) Reorder(ctx context.Context, userID, projectID string, listIDs []string) ([]models.List, error) {
	ctx = ensureContext(ctx)

	ids := normaliseIDs(listIDs)
	if len(ids) == 0 {
		return nil, apperrors.NewBadRequest("list ids are required")
	}
	project, err := s.visibleProject(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeManage(ctx, userID, project); err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var owned int64
		if err := tx.Model(&models.List{}).Where("project_id = ? AND id IN ?", project.ID, ids).Count(&owned).Error; err != nil {
			return fmt.Errorf("check lists: %w", err)
		}
		if owned != int64(len(ids)) {
			return apperrors.NewBadRequest("every list must belong to the project")
		}
		for position, id := range ids {
			if err := tx.Model(&models.List{}).Where("id = ?", id).Update("position", position).Error; err != nil {
				return fmt.Errorf("update position: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, wrapTxError("list service", err)
	}

	recordAudit(s.audit, ctx, AuditEntry{
		Action:      "list.reorder",
		Module:      "list",
		Entity:      "project",
		EntityID:    project.ID,
		WorkspaceID: project.WorkspaceID,
		ProjectID:   stringPtr(project.ID),
		ActorID:     userID,
		After:       map[string]any{"order": ids},
	})

	var lists []models.List
	if err := s.db.WithContext(ctx).Scopes(orderByPosition).Where("project_id = ?", project.ID).Find(&lists).Error; err != nil {
		return nil, fmt.Errorf("list service: reload lists: %w", err)
	}
	return lists, nil
}

func (s *ListService) visibleProject(ctx context.Context, userID, projectID string) (*models.Project, error) {
	var project models.Project
	err := s.db.WithContext(ctx).
		Scopes(visibleTo(s.db, userID)).
		First(&project, "projects.id = ?", strings.TrimSpace(projectID)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("list service: load project: %w", err)
	}
	return &project, nil
}

func (s *ListService) visibleList(ctx context.Context, userID, id string) (*models.List, *models.Project, error) {
	var list models.List
	err := s.db.WithContext(ctx).First(&list, "id = ?", strings.TrimSpace(id)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, ErrListNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("list service: load list: %w", err)
	}
	project, err := s.visibleProject(ctx, userID, list.ProjectID)
	if errors.Is(err, ErrProjectNotFound) {
		return nil, nil, ErrListNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	return &list, project, nil
}

// managedList loads a list the caller may edit: the project owner, or an
// OWNER/ADMIN of the workspace when the project is public.
func (s *ListService) managedList(ctx context.Context, userID, id string) (*models.List, *models.Project, error) {
	list, project, err := s.visibleList(ctx, userID, id)
	if err != nil {
		return nil, nil, err
	}
	if err := s.authorizeManage(ctx, userID, project); err != nil {
		return nil, nil, err
	}
	return list, project, nil
}

func (s *ListService) authorizeManage(ctx context.Context, userID string, project *models.Project) error {
	if project.OwnerID == userID {
		return nil
	}
	if project.Private || project.WorkspaceID == nil {
		return ErrListForbidden
	}
	member, err := lookupMember(ctx, s.db, *project.WorkspaceID, userID)
	if err != nil {
		return fmt.Errorf("list service: %w", err)
	}
	if err := permissions.Require(permissions.ActionListManage, member); err != nil {
		return ErrListForbidden
	}
	return nil
}

func (s *ListService) nextPosition(ctx context.Context, projectID string) (int, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.List{}).Where("project_id = ?", projectID).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("list service: count lists: %w", err)
	}
	return int(count), nil
}

func (s *ListService) announce(ctx context.Context, event, action, userID string, project *models.Project, list *models.List) {
	payload := events.ListChanged{
		ListID:      list.ID,
		ListName:    list.Name,
		ProjectID:   project.ID,
		ProjectName: project.Name,
		UserID:      userID,
	}
	if project.WorkspaceID != nil {
		payload.WorkspaceID = *project.WorkspaceID
	}
	publishEvent(s.bus, ctx, event, payload)

	entry := AuditEntry{
		Action:      action,
		Module:      "list",
		Entity:      "list",
		EntityID:    list.ID,
		WorkspaceID: project.WorkspaceID,
		ProjectID:   stringPtr(project.ID),
		ActorID:     userID,
	}
	snapshot := map[string]any{"name": list.Name, "position": list.Position}
	if event == events.ListDeleted {
		entry.Before = snapshot
	} else {
		entry.After = snapshot
	}
	recordAudit(s.audit, ctx, entry)
}
