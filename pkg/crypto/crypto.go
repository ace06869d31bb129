package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// DefaultPasswordCost mirrors the cost factor historically used for stored hashes.
const DefaultPasswordCost = 10

// InviteTokenBytes is the entropy used for workspace invitation tokens.
const InviteTokenBytes = 32

// HashPassword returns a bcrypt hash using DefaultPasswordCost.
func HashPassword(password string) (string, error) {
	return HashPasswordWithCost(password, DefaultPasswordCost)
}

// HashPasswordWithCost returns a bcrypt hash of password. Costs outside bcrypt's
// accepted range fall back to DefaultPasswordCost.
func HashPasswordWithCost(password string, cost int) (string, error) {
	if password == "" {
		return "", errors.New("crypto: empty password")
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultPasswordCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword compares the hashed password with the plaintext candidate.
func VerifyPassword(hashedPassword, password string) bool {
	if hashedPassword == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password)) == nil
}

// GenerateToken returns a random URL-safe token built from length random bytes.
func GenerateToken(length int) (string, error) {
	if length <= 0 {
		return "", errors.New("crypto: token length must be positive")
	}
	buffer := make([]byte, length)
	if _, err := rand.Read(buffer); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buffer), nil
}
