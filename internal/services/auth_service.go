package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/MarcosLauremiro/miKan-api/internal/auth"
	"github.com/MarcosLauremiro/miKan-api/internal/auth/providers"
	"github.com/MarcosLauremiro/miKan-api/internal/events"
	"github.com/MarcosLauremiro/miKan-api/internal/models"
	"github.com/MarcosLauremiro/miKan-api/pkg/crypto"
	apperrors "github.com/MarcosLauremiro/miKan-api/pkg/errors"
	"github.com/MarcosLauremiro/miKan-api/pkg/logger"
	"github.com/MarcosLauremiro/miKan-api/pkg/metrics"
)

// GoogleVerifier validates Google Sign-In credentials.
type GoogleVerifier interface {
	VerifyIDToken(ctx context.Context, rawIDToken string) (*providers.Identity, error)
}

// RegisterInput captures a local sign-up.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// AuthResult is returned by every successful login or registration.
type AuthResult struct {
	User         models.User `json:"user"`
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	IsNewUser    bool        `json:"is_new_user,omitempty"`
}

// AuthService implements local and social authentication on top of the
// refresh token store.
type AuthService struct {
	db           *gorm.DB
	tokens       *auth.TokenService
	bus          events.Publisher
	audit        *AuditService
	google       GoogleVerifier
	oauth        *providers.Registry
	state        *auth.StateCodec
	passwordCost int
}

// AuthOption customises AuthService behaviour.
type AuthOption func(*AuthService)

// WithAuthEvents sets the bus receiving auth.registered.
func WithAuthEvents(bus events.Publisher) AuthOption {
	return func(s *AuthService) { s.bus = bus }
}

// WithAuthAudit records logins and registrations.
func WithAuthAudit(audit *AuditService) AuthOption {
	return func(s *AuthService) { s.audit = audit }
}

// WithGoogleVerifier enables VerifyGoogleToken.
func WithGoogleVerifier(v GoogleVerifier) AuthOption {
	return func(s *AuthService) { s.google = v }
}

// WithOAuthProviders enables the redirect based OAuth flow.
func WithOAuthProviders(reg *providers.Registry, state *auth.StateCodec) AuthOption {
	return func(s *AuthService) {
		s.oauth = reg
		s.state = state
	}
}

// WithPasswordCost overrides the bcrypt cost.
func WithPasswordCost(cost int) AuthOption {
	return func(s *AuthService) {
		if cost > 0 {
			s.passwordCost = cost
		}
	}
}

// NewAuthService constructs an AuthService.
func NewAuthService(db *gorm.DB, tokens *auth.TokenService, opts ...AuthOption) (*AuthService, error) {
	if db == nil {
		return nil, errors.New("auth service: db is required")
	}
	if tokens == nil {
		return nil, errors.New("auth service: token service is required")
	}
	svc := &AuthService{
		db:           db,
		tokens:       tokens,
		passwordCost: crypto.DefaultPasswordCost,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Login authenticates with email and password.
func (s *AuthService) Login(ctx context.Context, email, password string) (result *AuthResult, err error) {
	ctx = ensureContext(ctx)
	defer func() { recordAuthAttempt("local", err) }()

	email = models.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, apperrors.NewBadRequest("email and password are required")
	}

	user, err := findUser(ctx, s.db, "email = ?", email)
	if errors.Is(err, ErrUserNotFound) {
		return nil, apperrors.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !user.HasPassword() {
		return nil, ErrOAuthOnlyAccount
	}
	if !crypto.VerifyPassword(*user.Password, password) {
		return nil, apperrors.ErrInvalidCredentials
	}

	result, err = s.issue(ctx, user, false)
	if err != nil {
		return nil, err
	}

	recordAudit(s.audit, ctx, AuditEntry{
		Action:     "auth.login",
		Module:     "auth",
		Entity:     "user",
		EntityID:   user.ID,
		ActorID:    user.ID,
		ActorEmail: user.Email,
		Metadata:   map[string]any{"provider": string(models.ProviderLocal)},
	})
	return result, nil
}

// Register creates a local account and signs it in.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	ctx = ensureContext(ctx)

	name := strings.TrimSpace(input.Name)
	email := models.NormalizeEmail(input.Email)
	if name == "" || email == "" || input.Password == "" {
		return nil, apperrors.NewBadRequest("name, email and password are required")
	}

	var existing int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", email).Count(&existing).Error; err != nil {
		return nil, fmt.Errorf("auth service: check email: %w", err)
	}
	if existing > 0 {
		return nil, ErrEmailTaken
	}

	hashed, err := crypto.HashPasswordWithCost(input.Password, s.passwordCost)
	if err != nil {
		return nil, fmt.Errorf("auth service: hash password: %w", err)
	}

	user := &models.User{
		Name:     name,
		Email:    email,
		Password: &hashed,
		Provider: models.ProviderLocal,
	}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("auth service: create user: %w", err)
	}

	s.announceRegistration(ctx, user)
	return s.issue(ctx, user, true)
}

// VerifyGoogleToken signs in with a Google Sign-In credential.
func (s *AuthService) VerifyGoogleToken(ctx context.Context, credential string) (result *AuthResult, err error) {
	ctx = ensureContext(ctx)
	defer func() { recordAuthAttempt("google", err) }()

	if s.google == nil {
		return nil, apperrors.NewBadRequest("google login is not configured")
	}
	if strings.TrimSpace(credential) == "" {
		return nil, apperrors.NewBadRequest("credential is required")
	}

	identity, err := s.google.VerifyIDToken(ctx, credential)
	if err != nil {
		return nil, oauthError(err)
	}
	return s.ValidateOAuthLogin(ctx, *identity)
}

// OAuthRedirectURL starts the authorization code flow for provider.
func (s *AuthService) OAuthRedirectURL(provider string) (string, error) {
	p, err := s.oauthProvider(provider)
	if err != nil {
		return "", err
	}
	state, err := s.state.Encode(p.Name())
	if err != nil {
		return "", apperrors.Wrap(err, "failed to start login")
	}
	return p.AuthCodeURL(state), nil
}

// ExchangeOAuthCode completes the authorization code flow. state must be
// the value handed out by OAuthRedirectURL.
func (s *AuthService) ExchangeOAuthCode(ctx context.Context, provider, state, code string) (result *AuthResult, err error) {
	ctx = ensureContext(ctx)
	defer func() { recordAuthAttempt(strings.ToLower(provider), err) }()

	p, err := s.oauthProvider(provider)
	if err != nil {
		return nil, err
	}
	if err := s.state.Verify(state, p.Name()); err != nil {
		return nil, apperrors.NewUnauthorized("invalid or expired login state").WithInternal(err)
	}

	identity, err := p.Exchange(ctx, code)
	if err != nil {
		return nil, oauthError(err)
	}
	return s.ValidateOAuthLogin(ctx, *identity)
}

// ValidateOAuthLogin finds or creates the account behind identity and signs
// it in. Profile fields that changed at the provider are copied over.
func (s *AuthService) ValidateOAuthLogin(ctx context.Context, identity providers.Identity) (*AuthResult, error) {
	ctx = ensureContext(ctx)

	email := models.NormalizeEmail(identity.Email)
	if email == "" {
		return nil, apperrors.NewBadRequest("provider did not return an email")
	}
	if !identity.Provider.Valid() || identity.Provider == models.ProviderLocal {
		return nil, apperrors.NewBadRequest("unsupported provider")
	}
	name := strings.TrimSpace(identity.Name)
	if name == "" {
		name = strings.SplitN(email, "@", 2)[0]
	}

	user, err := s.findOAuthUser(ctx, email, identity)
	isNew := false
	switch {
	case errors.Is(err, ErrUserNotFound):
		user, isNew, err = s.createOAuthUser(ctx, email, name, identity)
		if err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	}

	if !isNew {
		if err := s.syncOAuthProfile(ctx, user, name, identity); err != nil {
			return nil, err
		}
	}

	result, err := s.issue(ctx, user, isNew)
	if err != nil {
		return nil, err
	}

	recordAudit(s.audit, ctx, AuditEntry{
		Action:     "auth.login",
		Module:     "auth",
		Entity:     "user",
		EntityID:   user.ID,
		ActorID:    user.ID,
		ActorEmail: user.Email,
		Metadata:   map[string]any{"provider": string(identity.Provider), "new_user": isNew},
	})
	return result, nil
}

// Refresh exchanges a refresh token for a new access token.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (access string, err error) {
	ctx = ensureContext(ctx)
	defer func() { recordAuthAttempt("refresh", err) }()

	if strings.TrimSpace(refreshToken) == "" {
		return "", apperrors.NewUnauthorized("refresh token is required")
	}

	access, _, err = s.tokens.Refresh(ctx, refreshToken)
	switch {
	case err == nil:
		return access, nil
	case errors.Is(err, auth.ErrRefreshTokenExpired):
		return "", apperrors.NewUnauthorized("refresh token expired").WithInternal(err)
	case errors.Is(err, auth.ErrRefreshTokenInvalid),
		errors.Is(err, auth.ErrRefreshTokenNotFound),
		errors.Is(err, auth.ErrRefreshTokenRevoked):
		return "", apperrors.NewUnauthorized("invalid refresh token").WithInternal(err)
	default:
		return "", err
	}
}

// Logout revokes refreshToken. Unknown tokens are ignored.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	return s.tokens.Revoke(ensureContext(ctx), refreshToken)
}

// Me returns the account behind userID.
func (s *AuthService) Me(ctx context.Context, userID string) (*models.User, error) {
	return findUser(ensureContext(ctx), s.db, "id = ?", userID)
}

func (s *AuthService) issue(ctx context.Context, user *models.User, isNew bool) (*AuthResult, error) {
	pair, err := s.tokens.Issue(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return &AuthResult{
		User:         *user,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		IsNewUser:    isNew,
	}, nil
}

func (s *AuthService) findOAuthUser(ctx context.Context, email string, identity providers.Identity) (*models.User, error) {
	if identity.ProviderID == "" {
		return findUser(ctx, s.db, "email = ?", email)
	}
	return findUser(ctx, s.db, "email = ? OR (provider = ? AND provider_id = ?)",
		email, identity.Provider, identity.ProviderID)
}

// createOAuthUser inserts the account. When a concurrent first login wins the
// unique index the winner's row is returned instead.
func (s *AuthService) createOAuthUser(ctx context.Context, email, name string, identity providers.Identity) (*models.User, bool, error) {
	user := &models.User{
		Name:     name,
		Email:    email,
		Provider: identity.Provider,
	}
	if identity.ProviderID != "" {
		user.ProviderID = stringPtr(identity.ProviderID)
	}
	if identity.AvatarURL != "" {
		user.AvatarURL = stringPtr(identity.AvatarURL)
	}

	err := s.db.WithContext(ctx).Create(user).Error
	if err == nil {
		s.announceRegistration(ctx, user)
		return user, true, nil
	}
	if !isUniqueConstraintError(err) {
		return nil, false, fmt.Errorf("auth service: create oauth user: %w", err)
	}

	winner, findErr := s.findOAuthUser(ctx, email, identity)
	if findErr != nil {
		return nil, false, fmt.Errorf("auth service: reload oauth user: %w", findErr)
	}
	return winner, false, nil
}

func (s *AuthService) syncOAuthProfile(ctx context.Context, user *models.User, name string, identity providers.Identity) error {
	updates := map[string]any{}
	if user.Provider != identity.Provider {
		updates["provider"] = identity.Provider
		user.Provider = identity.Provider
	}
	if identity.ProviderID != "" && (user.ProviderID == nil || *user.ProviderID != identity.ProviderID) {
		updates["provider_id"] = identity.ProviderID
		user.ProviderID = stringPtr(identity.ProviderID)
	}
	if identity.AvatarURL != "" && (user.AvatarURL == nil || *user.AvatarURL != identity.AvatarURL) {
		updates["avatar_url"] = identity.AvatarURL
		user.AvatarURL = stringPtr(identity.AvatarURL)
	}
	if strings.TrimSpace(identity.Name) != "" && user.Name != name {
		updates["name"] = name
		user.Name = name
	}
	if len(updates) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", user.ID).Updates(updates).Error; err != nil {
		return fmt.Errorf("auth service: update oauth profile: %w", err)
	}
	return nil
}

func (s *AuthService) announceRegistration(ctx context.Context, user *models.User) {
	publishEvent(s.bus, ctx, events.AuthRegistered, events.UserRegistered{
		UserID:   user.ID,
		Name:     user.Name,
		Email:    user.Email,
		Provider: string(user.Provider),
	})
	recordAudit(s.audit, ctx, AuditEntry{
		Action:     "auth.register",
		Module:     "auth",
		Entity:     "user",
		EntityID:   user.ID,
		ActorID:    user.ID,
		ActorEmail: user.Email,
		After:      user.Summary(),
		Metadata:   map[string]any{"provider": string(user.Provider)},
	})
}

func (s *AuthService) oauthProvider(name string) (providers.Provider, error) {
	if s.oauth == nil || s.state == nil {
		return nil, apperrors.NewBadRequest("social login is not configured")
	}
	p, err := s.oauth.Get(name)
	if err != nil {
		return nil, apperrors.NewNotFound("unknown login provider")
	}
	return p, nil
}

func oauthError(err error) error {
	if errors.Is(err, providers.ErrInvalidCredential) {
		return apperrors.NewUnauthorized("social login failed").WithInternal(err)
	}
	logger.WithModule("auth").Error("oauth provider failure", zap.Error(err))
	return apperrors.Wrap(err, "social login is temporarily unavailable")
}

func recordAuthAttempt(method string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	metrics.AuthAttempts.WithLabelValues(method, result).Inc()
}
