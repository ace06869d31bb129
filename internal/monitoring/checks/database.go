// Package checks holds the dependency probes registered with the health manager.
package checks

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/MarcosLauremiro/miKan-api/internal/monitoring"
)

// Database returns a critical probe that pings the connection pool.
func Database(db *gorm.DB) monitoring.Check {
	return monitoring.Check{
		Name:     "database",
		Critical: true,
		Probe: func(ctx context.Context) error {
			if db == nil {
				return errors.New("database not configured")
			}
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
}
