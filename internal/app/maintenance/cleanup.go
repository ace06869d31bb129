// Package maintenance runs the scheduled cleanup jobs.
package maintenance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/MarcosLauremiro/miKan-api/internal/models"
	"github.com/MarcosLauremiro/miKan-api/pkg/logger"
	"github.com/MarcosLauremiro/miKan-api/pkg/metrics"
)

const (
	defaultAuditRetentionDays = 90
	defaultTokenSpec          = "@hourly"
	defaultAuditSpec          = "@daily"
	defaultInvitationSpec     = "@daily"

	// Expired invitations stay around for a while so accepting one reports
	// "expired" instead of "not found".
	invitationGrace = 30 * 24 * time.Hour

	jobRefreshTokens = "refresh_tokens"
	jobAuditLogs     = "audit_logs"
	jobInvitations   = "invitations"
)

// TokenPruner removes expired refresh tokens.
type TokenPruner interface {
	PruneExpired(ctx context.Context) (int64, error)
}

// AuditPruner enforces the audit log retention window.
type AuditPruner interface {
	CleanupOlderThan(ctx context.Context, retentionDays int) (int64, error)
}

// Cleaner coordinates background maintenance: pruning expired refresh tokens,
// enforcing audit retention and purging long-expired invitations.
type Cleaner struct {
	db        *gorm.DB
	tokens    TokenPruner
	audit     AuditPruner
	cron      *cron.Cron
	now       func() time.Time
	log       *zap.Logger
	retention int

	tokenSchedule      string
	auditSchedule      string
	invitationSchedule string
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithNow overrides the clock used for cleanup comparisons.
func WithNow(now func() time.Time) Option {
	return func(cleaner *Cleaner) {
		if now != nil {
			cleaner.now = now
		}
	}
}

// WithAuditRetentionDays adjusts how long audit logs are retained before cleanup.
func WithAuditRetentionDays(days int) Option {
	return func(cleaner *Cleaner) {
		if days > 0 {
			cleaner.retention = days
		}
	}
}

// WithTokenSchedule overrides the cron specification for refresh token pruning.
func WithTokenSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.tokenSchedule = spec
		}
	}
}

// WithAuditSchedule overrides the cron specification for audit retention enforcement.
func WithAuditSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.auditSchedule = spec
		}
	}
}

// NewCleaner constructs a Cleaner. Any nil dependency skips the matching job.
func NewCleaner(db *gorm.DB, tokens TokenPruner, audit AuditPruner, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		db:                 db,
		tokens:             tokens,
		audit:              audit,
		now:                time.Now,
		retention:          defaultAuditRetentionDays,
		tokenSchedule:      defaultTokenSpec,
		auditSchedule:      defaultAuditSpec,
		invitationSchedule: defaultInvitationSpec,
		log:                logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}
	return cleaner
}

type job struct {
	name     string
	schedule string
	run      func(ctx context.Context) (int64, error)
}

func (c *Cleaner) jobs() []job {
	var jobs []job
	if c.tokens != nil {
		jobs = append(jobs, job{jobRefreshTokens, c.tokenSchedule, c.tokens.PruneExpired})
	}
	if c.audit != nil && c.retention > 0 {
		jobs = append(jobs, job{jobAuditLogs, c.auditSchedule, func(ctx context.Context) (int64, error) {
			return c.audit.CleanupOlderThan(ctx, c.retention)
		}})
	}
	if c.db != nil {
		jobs = append(jobs, job{jobInvitations, c.invitationSchedule, func(ctx context.Context) (int64, error) {
			return CleanupInvitations(ctx, c.db, c.now())
		}})
	}
	return jobs
}

// Start registers cleanup jobs with the cron scheduler and launches it.
func (c *Cleaner) Start() error {
	jobs := c.jobs()
	if len(jobs) == 0 {
		return nil
	}

	for _, j := range jobs {
		j := j
		if _, err := c.cron.AddFunc(j.schedule, func() {
			_ = c.execute(context.Background(), j)
		}); err != nil {
			return fmt.Errorf("maintenance: schedule %s: %w", j.name, err)
		}
	}

	c.cron.Start()
	return nil
}

// Stop halts the underlying scheduler. The returned context is done once
// running jobs complete.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes every configured job sequentially and aggregates failures.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error
	for _, j := range c.jobs() {
		errs = multierr.Append(errs, c.execute(ctx, j))
	}
	return errs
}

func (c *Cleaner) execute(ctx context.Context, j job) error {
	start := time.Now()
	removed, err := j.run(ctx)
	metrics.MaintenanceRuns.WithLabelValues(j.name, metrics.Result(err)).Inc()
	if err != nil {
		c.log.Warn("maintenance job failed", zap.String("job", j.name), zap.Error(err))
		return fmt.Errorf("%s: %w", j.name, err)
	}
	c.log.Debug("maintenance job finished",
		zap.String("job", j.name),
		zap.Int64("removed", removed),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}

// CleanupInvitations deletes unanswered invitations that expired more than
// the grace period ago.
func CleanupInvitations(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	if db == nil {
		return 0, errors.New("cleanup invitations: db is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	cutoff := now.UTC().Add(-models.InvitationTTL - invitationGrace)
	result := db.WithContext(ctx).
		Where("accepted_at IS NULL AND created_at < ?", cutoff).
		Delete(&models.Invitation{})
	if result.Error != nil {
		return 0, fmt.Errorf("cleanup invitations: %w", result.Error)
	}
	return result.RowsAffected, nil
}
