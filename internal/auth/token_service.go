package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/MarcosLauremiro/miKan-api/internal/models"
)

// TokenPair represents an access token and refresh token pair.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

var (
	// ErrRefreshTokenInvalid is returned when the token is malformed or its signature does not verify.
	ErrRefreshTokenInvalid = errors.New("refresh token: invalid")
	// ErrRefreshTokenNotFound indicates that the token is not in the store.
	ErrRefreshTokenNotFound = errors.New("refresh token: not found")
	// ErrRefreshTokenRevoked marks a token revoked by logout or expiry detection.
	ErrRefreshTokenRevoked = errors.New("refresh token: revoked")
	// ErrRefreshTokenExpired signals that the stored expiry has passed.
	ErrRefreshTokenExpired = errors.New("refresh token: expired")
)

// TokenService persists refresh tokens and rotates access tokens against them.
type TokenService struct {
	db  *gorm.DB
	jwt *JWTService
	now func() time.Time
}

// NewTokenService constructs a token store backed by the provided database and JWT service.
func NewTokenService(db *gorm.DB, jwtService *JWTService, clock func() time.Time) (*TokenService, error) {
	if db == nil {
		return nil, errors.New("token service: db is required")
	}
	if jwtService == nil {
		return nil, errors.New("token service: jwt service is required")
	}
	if clock == nil {
		clock = time.Now
	}
	return &TokenService{db: db, jwt: jwtService, now: clock}, nil
}

// JWT exposes the underlying signer for middleware wiring.
func (s *TokenService) JWT() *JWTService { return s.jwt }

// Issue mints a new pair for userID, stores the refresh token and prunes the
// user's expired refresh tokens.
func (s *TokenService) Issue(ctx context.Context, userID string) (TokenPair, error) {
	if strings.TrimSpace(userID) == "" {
		return TokenPair{}, errors.New("token service: user id is required")
	}

	access, err := s.jwt.GenerateAccessToken(userID)
	if err != nil {
		return TokenPair{}, fmt.Errorf("token service: generate access token: %w", err)
	}
	refresh, expiresAt, err := s.jwt.GenerateRefreshToken(userID)
	if err != nil {
		return TokenPair{}, fmt.Errorf("token service: generate refresh token: %w", err)
	}

	db := s.db.WithContext(ctx)
	if err := db.Where("user_id = ? AND expires_at <= ?", userID, s.now().UTC()).
		Delete(&models.RefreshToken{}).Error; err != nil {
		return TokenPair{}, fmt.Errorf("token service: prune expired tokens: %w", err)
	}

	record := &models.RefreshToken{
		Token:     refresh,
		UserID:    userID,
		ExpiresAt: expiresAt,
	}
	if err := db.Create(record).Error; err != nil {
		return TokenPair{}, fmt.Errorf("token service: store refresh token: %w", err)
	}

	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// Refresh validates refreshToken against the store and returns a new access
// token. A token found past its stored expiry is revoked before failing.
func (s *TokenService) Refresh(ctx context.Context, refreshToken string) (string, string, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return "", "", ErrRefreshTokenInvalid
	}

	// The stored row decides expiry so that an expired token is still
	// found and revoked.
	claims, err := s.jwt.ParseRefreshToken(refreshToken)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrRefreshTokenInvalid, err)
	}

	db := s.db.WithContext(ctx)
	var stored models.RefreshToken
	if err := db.Where("token = ?", refreshToken).First(&stored).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", "", ErrRefreshTokenNotFound
		}
		return "", "", fmt.Errorf("token service: load refresh token: %w", err)
	}
	if stored.Revoked {
		return "", "", ErrRefreshTokenRevoked
	}
	if stored.Expired(s.now()) {
		if err := db.Model(&stored).Update("revoked", true).Error; err != nil {
			return "", "", fmt.Errorf("token service: revoke expired token: %w", err)
		}
		return "", "", ErrRefreshTokenExpired
	}
	if stored.UserID != claims.UserID {
		return "", "", ErrRefreshTokenInvalid
	}

	access, err := s.jwt.GenerateAccessToken(stored.UserID)
	if err != nil {
		return "", "", fmt.Errorf("token service: generate access token: %w", err)
	}
	return access, stored.UserID, nil
}

// Revoke marks every stored row matching refreshToken as revoked. Unknown
// tokens are ignored.
func (s *TokenService) Revoke(ctx context.Context, refreshToken string) error {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return nil
	}
	err := s.db.WithContext(ctx).
		Model(&models.RefreshToken{}).
		Where("token = ?", refreshToken).
		Update("revoked", true).Error
	if err != nil {
		return fmt.Errorf("token service: revoke: %w", err)
	}
	return nil
}

// PruneExpired deletes every refresh token whose expiry has passed and
// returns the number of rows removed.
func (s *TokenService) PruneExpired(ctx context.Context) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("expires_at <= ?", s.now().UTC()).
		Delete(&models.RefreshToken{})
	if result.Error != nil {
		return 0, fmt.Errorf("token service: prune expired: %w", result.Error)
	}
	return result.RowsAffected, nil
}
