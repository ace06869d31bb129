package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/MarcosLauremiro/miKan-api/internal/auditctx"
	"github.com/MarcosLauremiro/miKan-api/internal/models"
)

// AuditEntry captures a single audit event to persist. Actor fields left
// empty are filled from the request context.
type AuditEntry struct {
	Type        models.AuditType
	Action      string
	Module      string
	Entity      string
	EntityID    string
	WorkspaceID *string
	ProjectID   *string
	ActorID     string
	ActorEmail  string
	ActorRole   models.WorkspaceRole
	Before      any
	After       any
	Metadata    map[string]any
}

// AuditListOptions controls pagination for audit queries.
type AuditListOptions struct {
	Page     int
	PageSize int
}

// AuditService persists and retrieves audit log entries.
type AuditService struct {
	db  *gorm.DB
	now func() time.Time
}

// AuditOption customises AuditService behaviour.
type AuditOption func(*AuditService)

// WithAuditClock injects a custom clock primarily for testing.
func WithAuditClock(clock func() time.Time) AuditOption {
	return func(s *AuditService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// NewAuditService constructs an AuditService using the provided database handle.
func NewAuditService(db *gorm.DB, opts ...AuditOption) (*AuditService, error) {
	if db == nil {
		return nil, errors.New("audit service: db is required")
	}
	svc := &AuditService{db: db, now: time.Now}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Record stores an audit entry, marshalling changes and metadata into JSON columns.
func (s *AuditService) Record(ctx context.Context, entry AuditEntry) error {
	ctx = ensureContext(ctx)

	if strings.TrimSpace(entry.Action) == "" {
		return errors.New("audit service: action is required")
	}

	log := models.AuditLog{
		Type:        entry.Type,
		Action:      strings.TrimSpace(entry.Action),
		Module:      strings.TrimSpace(entry.Module),
		Entity:      strings.TrimSpace(entry.Entity),
		EntityID:    strings.TrimSpace(entry.EntityID),
		WorkspaceID: entry.WorkspaceID,
		ProjectID:   entry.ProjectID,
		ActorID:     entry.ActorID,
		ActorEmail:  entry.ActorEmail,
		ActorRole:   entry.ActorRole.String(),
	}
	if log.Type == "" {
		log.Type = models.AuditTypeAudit
	}

	if actor, ok := auditctx.FromContext(ctx); ok {
		if log.ActorID == "" {
			log.ActorID = actor.UserID
		}
		if log.ActorEmail == "" {
			log.ActorEmail = actor.Email
		}
		log.IPAddress = actor.IPAddress
		log.UserAgent = actor.UserAgent
	}

	if entry.Before != nil || entry.After != nil {
		encoded, err := json.Marshal(models.AuditChanges{Before: entry.Before, After: entry.After})
		if err != nil {
			return fmt.Errorf("audit service: marshal changes: %w", err)
		}
		log.Changes = datatypes.JSON(encoded)
	}
	if len(entry.Metadata) > 0 {
		encoded, err := json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("audit service: marshal metadata: %w", err)
		}
		log.Metadata = datatypes.JSON(encoded)
	}

	if err := s.db.WithContext(ctx).Create(&log).Error; err != nil {
		return fmt.Errorf("audit service: create log: %w", err)
	}
	return nil
}

// ListByActor returns the logs produced by actorID, newest first.
func (s *AuditService) ListByActor(ctx context.Context, actorID string, opts AuditListOptions) ([]models.AuditLog, int64, error) {
	ctx = ensureContext(ctx)

	page, perPage := pagination(opts.Page, opts.PageSize, 200, 50)

	var (
		results []models.AuditLog
		total   int64
	)

	query := s.db.WithContext(ctx).Model(&models.AuditLog{}).Where("actor_id = ?", actorID)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("audit service: count logs: %w", err)
	}

	if err := query.
		Order("created_at DESC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&results).Error; err != nil {
		return nil, 0, fmt.Errorf("audit service: list logs: %w", err)
	}

	return results, total, nil
}

// CleanupOlderThan removes audit logs older than the supplied retention window (in days).
func (s *AuditService) CleanupOlderThan(ctx context.Context, retentionDays int) (int64, error) {
	ctx = ensureContext(ctx)

	if retentionDays <= 0 {
		return 0, errors.New("audit service: retentionDays must be positive")
	}

	cutoff := s.now().UTC().AddDate(0, 0, -retentionDays)

	result := s.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&models.AuditLog{})
	if result.Error != nil {
		return 0, fmt.Errorf("audit service: cleanup logs: %w", result.Error)
	}

	return result.RowsAffected, nil
}
