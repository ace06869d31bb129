package database

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/MarcosLauremiro/miKan-api/internal/models"
)

// Models lists every persistent model in dependency order.
func Models() []interface{} {
	return []interface{}{
		&models.User{},
		&models.RefreshToken{},
		&models.Workspace{},
		&models.WorkspaceMember{},
		&models.Invitation{},
		&models.Project{},
		&models.StatusProject{},
		&models.List{},
		&models.Task{},
		&models.AuditLog{},
	}
}

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	if db == nil {
		return errors.New("nil database handle")
	}
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
