package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/MarcosLauremiro/miKan-api/internal/models"
	apperrors "github.com/MarcosLauremiro/miKan-api/pkg/errors"
)

// UserService exposes read access to accounts.
type UserService struct {
	db *gorm.DB
}

// NewUserService constructs a UserService.
func NewUserService(db *gorm.DB) (*UserService, error) {
	if db == nil {
		return nil, errors.New("user service: db is required")
	}
	return &UserService{db: db}, nil
}

// GetByID loads an account by id.
func (s *UserService) GetByID(ctx context.Context, id string) (*models.User, error) {
	return findUser(ensureContext(ctx), s.db, "id = ?", strings.TrimSpace(id))
}

// LookupByEmail reports whether an account exists for email. A missing
// account is not an error.
func (s *UserService) LookupByEmail(ctx context.Context, email string) (*models.User, bool, error) {
	email = models.NormalizeEmail(email)
	if email == "" {
		return nil, false, apperrors.NewBadRequest("email is required")
	}

	user, err := findUser(ensureContext(ctx), s.db, "email = ?", email)
	if errors.Is(err, ErrUserNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return user, true, nil
}

func findUser(ctx context.Context, db *gorm.DB, query string, args ...any) (*models.User, error) {
	var user models.User
	err := db.WithContext(ctx).Where(query, args...).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("user service: load user: %w", err)
	}
	return &user, nil
}
