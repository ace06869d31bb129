package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultAccessTokenTTL defines the fallback validity period for access tokens.
const DefaultAccessTokenTTL = 15 * time.Minute

// DefaultRefreshTokenTTL defines the fallback validity period for refresh tokens.
const DefaultRefreshTokenTTL = 7 * 24 * time.Hour

// JWTConfig bundles the configuration required to build a JWTService.
type JWTConfig struct {
	AccessSecret    string
	RefreshSecret   string
	Issuer          string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	Clock           func() time.Time
}

// Claims represents the custom claims embedded in issued JWTs.
type Claims struct {
	UserID string `json:"uid"`
	jwt.RegisteredClaims
}

// JWTService issues and validates access and refresh tokens. The two token
// kinds are signed with different secrets so one can never stand in for the other.
type JWTService struct {
	accessSecret  []byte
	refreshSecret []byte
	issuer        string
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

// NewJWTService constructs a JWTService instance when provided with the required configuration.
func NewJWTService(cfg JWTConfig) (*JWTService, error) {
	if cfg.AccessSecret == "" {
		return nil, errors.New("jwt: access secret must be provided")
	}
	if cfg.RefreshSecret == "" {
		return nil, errors.New("jwt: refresh secret must be provided")
	}
	if cfg.AccessSecret == cfg.RefreshSecret {
		return nil, errors.New("jwt: access and refresh secrets must differ")
	}

	accessTTL := cfg.AccessTokenTTL
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTokenTTL
	}
	refreshTTL := cfg.RefreshTokenTTL
	if refreshTTL <= 0 {
		refreshTTL = DefaultRefreshTokenTTL
	}

	now := time.Now
	if cfg.Clock != nil {
		now = cfg.Clock
	}

	return &JWTService{
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
		issuer:        cfg.Issuer,
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		now:           now,
	}, nil
}

// AccessTTL reports the configured access token lifetime.
func (s *JWTService) AccessTTL() time.Duration { return s.accessTTL }

// RefreshTTL reports the configured refresh token lifetime.
func (s *JWTService) RefreshTTL() time.Duration { return s.refreshTTL }

// GenerateAccessToken issues a short lived token for userID.
func (s *JWTService) GenerateAccessToken(userID string) (string, error) {
	token, _, err := s.sign(userID, s.accessSecret, s.accessTTL)
	return token, err
}

// GenerateRefreshToken issues a long lived token for userID and returns its expiry.
func (s *JWTService) GenerateRefreshToken(userID string) (string, time.Time, error) {
	return s.sign(userID, s.refreshSecret, s.refreshTTL)
}

// ValidateAccessToken parses and validates an access token.
func (s *JWTService) ValidateAccessToken(tokenString string) (*Claims, error) {
	return s.parse(tokenString, s.accessSecret)
}

// ValidateRefreshToken parses and validates a refresh token signature and expiry.
func (s *JWTService) ValidateRefreshToken(tokenString string) (*Claims, error) {
	return s.parse(tokenString, s.refreshSecret)
}

// ParseRefreshToken verifies only the signature of a refresh token. Time
// based claims are left to the caller, which holds the stored expiry.
func (s *JWTService) ParseRefreshToken(tokenString string) (*Claims, error) {
	return s.parse(tokenString, s.refreshSecret, jwt.WithoutClaimsValidation())
}

func (s *JWTService) sign(userID string, secret []byte, ttl time.Duration) (string, time.Time, error) {
	if userID == "" {
		return "", time.Time{}, errors.New("jwt: user id is required")
	}

	now := s.now().UTC()
	expiresAt := now.Add(ttl)

	claims := &Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			// Two tokens minted in the same second must still differ.
			ID:        uuid.NewString(),
			Subject:   userID,
			Issuer:    s.issuer,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("jwt: sign token: %w", err)
	}
	return signed, expiresAt, nil
}

func (s *JWTService) parse(tokenString string, secret []byte, extra ...jwt.ParserOption) (*Claims, error) {
	if tokenString == "" {
		return nil, errors.New("jwt: token string is empty")
	}

	opts := append([]jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	}, extra...)
	parser := jwt.NewParser(opts...)

	var claims Claims
	_, err := parser.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		return secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("jwt: parse token: %w", err)
	}

	if s.issuer != "" && claims.Issuer != s.issuer {
		return nil, errors.New("jwt: invalid issuer")
	}

	if claims.UserID == "" {
		return nil, errors.New("jwt: missing user id claim")
	}

	return &claims, nil
}
