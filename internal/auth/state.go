package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	errStateExpired = errors.New("oauth state: expired")
	errStateInvalid = errors.New("oauth state: invalid")
)

// DefaultStateTTL bounds how long a user may take on the provider consent screen.
const DefaultStateTTL = 10 * time.Minute

// StateCodec signs the opaque state parameter carried through OAuth redirects.
type StateCodec struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

type stateClaims struct {
	Provider string `json:"p"`
	jwt.RegisteredClaims
}

// NewStateCodec constructs a StateCodec using the provided signing key and lifetime.
func NewStateCodec(key []byte, ttl time.Duration, now func() time.Time) (*StateCodec, error) {
	if len(key) < 16 {
		return nil, fmt.Errorf("oauth state: key must be at least 16 bytes, got %d", len(key))
	}
	if ttl <= 0 {
		ttl = DefaultStateTTL
	}
	if now == nil {
		now = time.Now
	}
	return &StateCodec{key: key, ttl: ttl, now: now}, nil
}

// Encode returns a signed state bound to provider.
func (c *StateCodec) Encode(provider string) (string, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider == "" {
		return "", errors.New("oauth state: provider is required")
	}

	now := c.now().UTC()
	claims := stateClaims{
		Provider: provider,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.key)
	if err != nil {
		return "", fmt.Errorf("oauth state: sign: %w", err)
	}
	return signed, nil
}

// Verify checks that token was issued by this codec for provider and is still fresh.
func (c *StateCodec) Verify(token, provider string) error {
	if strings.TrimSpace(token) == "" {
		return errStateInvalid
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.now),
	)
	var claims stateClaims
	_, err := parser.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return c.key, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return errStateExpired
		}
		return errStateInvalid
	}
	if claims.Provider != strings.ToLower(strings.TrimSpace(provider)) {
		return errStateInvalid
	}
	return nil
}
