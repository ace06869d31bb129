package services

import (
	"context"

	"go.uber.org/zap"

	"github.com/MarcosLauremiro/miKan-api/internal/events"
	"github.com/MarcosLauremiro/miKan-api/pkg/logger"
)

// recordAudit logs the supplied entry while tolerating audit failures.
func recordAudit(audit *AuditService, ctx context.Context, entry AuditEntry) {
	if audit == nil {
		return
	}
	if err := audit.Record(ctx, entry); err != nil {
		logger.WithModule("audit").Warn("failed to record audit entry",
			zap.String("action", entry.Action),
			zap.String("entity_id", entry.EntityID),
			zap.Error(err))
	}
}

// publishEvent hands payload to the bus and only logs failures.
func publishEvent(bus events.Publisher, ctx context.Context, name string, payload any) {
	if bus == nil {
		return
	}
	if err := bus.Publish(ctx, name, payload); err != nil {
		logger.WithModule("events").Warn("failed to publish event",
			zap.String("event", name),
			zap.Error(err))
	}
}
