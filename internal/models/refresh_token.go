package models

import "time"

// RefreshToken is the server side record of an issued refresh token.
type RefreshToken struct {
	BaseModel

	Token     string    `gorm:"type:varchar(512);uniqueIndex;not null" json:"-"`
	UserID    string    `gorm:"type:varchar(36);not null;index" json:"user_id"`
	User      *User     `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	ExpiresAt time.Time `gorm:"index" json:"expires_at"`
	Revoked   bool      `gorm:"not null;default:false;index" json:"revoked"`
}

// Expired reports whether the token is past its stored expiry at now.
func (t RefreshToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
