package models

import "strings"

// AuthProvider identifies how an account authenticates.
type AuthProvider string

const (
	ProviderLocal  AuthProvider = "LOCAL"
	ProviderGoogle AuthProvider = "GOOGLE"
	ProviderGitHub AuthProvider = "GITHUB"
)

// Valid reports whether p is a known provider.
func (p AuthProvider) Valid() bool {
	switch p {
	case ProviderLocal, ProviderGoogle, ProviderGitHub:
		return true
	}
	return false
}

// User is a platform account. Password is nil for accounts created through
// an OAuth provider. ProviderID is unique per provider.
type User struct {
	BaseModel

	Name       string       `gorm:"not null" json:"name"`
	Email      string       `gorm:"uniqueIndex;not null" json:"email"`
	Password   *string      `json:"-"`
	Provider   AuthProvider `gorm:"type:varchar(16);not null;uniqueIndex:idx_users_provider_identity,priority:1" json:"provider"`
	ProviderID *string      `gorm:"type:varchar(191);uniqueIndex:idx_users_provider_identity,priority:2" json:"provider_id,omitempty"`
	AvatarURL  *string      `json:"avatar_url,omitempty"`
}

// HasPassword reports whether the account can sign in with local credentials.
func (u *User) HasPassword() bool {
	return u != nil && u.Password != nil && *u.Password != ""
}

// UserSummary is the public projection of a user embedded in other payloads.
type UserSummary struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Email     string  `json:"email"`
	AvatarURL *string `json:"avatar_url,omitempty"`
}

// Summary returns the public projection of u.
func (u User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Name: u.Name, Email: u.Email, AvatarURL: u.AvatarURL}
}

// NormalizeEmail lowercases and trims an email address for storage and lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
