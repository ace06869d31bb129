package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/MarcosLauremiro/miKan-api/internal/auth"
	"github.com/MarcosLauremiro/miKan-api/internal/auth/providers"
	"github.com/MarcosLauremiro/miKan-api/internal/events"
	"github.com/MarcosLauremiro/miKan-api/internal/models"
	apperrors "github.com/MarcosLauremiro/miKan-api/pkg/errors"
)

type fakeGoogle struct {
	identity *providers.Identity
	err      error
}

func (f *fakeGoogle) VerifyIDToken(context.Context, string) (*providers.Identity, error) {
	return f.identity, f.err
}

type authFixture struct {
	db     *gorm.DB
	svc    *AuthService
	bus    *recordingBus
	clock  *fakeClock
	tokens *auth.TokenService
}

func newAuthFixture(t *testing.T, opts ...AuthOption) *authFixture {
	t.Helper()
	fx := &authFixture{db: openServiceTestDB(t), bus: &recordingBus{}, clock: newFakeClock()}

	jwtSvc, err := auth.NewJWTService(auth.JWTConfig{
		AccessSecret:  "access-secret",
		RefreshSecret: "refresh-secret",
		Clock:         fx.clock.Now,
	})
	require.NoError(t, err)
	fx.tokens, err = auth.NewTokenService(fx.db, jwtSvc, fx.clock.Now)
	require.NoError(t, err)

	audit, err := NewAuditService(fx.db)
	require.NoError(t, err)

	opts = append([]AuthOption{WithAuthEvents(fx.bus), WithAuthAudit(audit), WithPasswordCost(4)}, opts...)
	fx.svc, err = NewAuthService(fx.db, fx.tokens, opts...)
	require.NoError(t, err)
	return fx
}

func TestAuthServiceRegisterAndLogin(t *testing.T) {
	fx := newAuthFixture(t)
	ctx := context.Background()

	result, err := fx.svc.Register(ctx, RegisterInput{Name: "Ana", Email: " Ana@Example.com ", Password: "s3cret!"})
	require.NoError(t, err)
	require.True(t, result.IsNewUser)
	require.Equal(t, "ana@example.com", result.User.Email)
	require.Equal(t, models.ProviderLocal, result.User.Provider)
	require.NotEmpty(t, result.AccessToken)
	require.NotEmpty(t, result.RefreshToken)
	require.Equal(t, []string{events.AuthRegistered}, fx.bus.names())

	_, err = fx.svc.Register(ctx, RegisterInput{Name: "Ana 2", Email: "ana@example.com", Password: "x"})
	require.ErrorIs(t, err, ErrEmailTaken)

	_, err = fx.svc.Register(ctx, RegisterInput{Email: "b@example.com", Password: "x"})
	require.ErrorIs(t, err, apperrors.ErrBadRequest)

	login, err := fx.svc.Login(ctx, "ana@example.com", "s3cret!")
	require.NoError(t, err)
	require.Equal(t, result.User.ID, login.User.ID)
	require.False(t, login.IsNewUser)

	_, err = fx.svc.Login(ctx, "ana@example.com", "wrong")
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

	_, err = fx.svc.Login(ctx, "nobody@example.com", "s3cret!")
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
}

func TestAuthServiceLoginOnOAuthOnlyAccount(t *testing.T) {
	fx := newAuthFixture(t)
	ctx := context.Background()

	_, err := fx.svc.ValidateOAuthLogin(ctx, providers.Identity{
		Provider:   models.ProviderGoogle,
		ProviderID: "g-1",
		Email:      "bia@example.com",
		Name:       "Bia",
	})
	require.NoError(t, err)

	_, err = fx.svc.Login(ctx, "bia@example.com", "anything")
	require.ErrorIs(t, err, ErrOAuthOnlyAccount)

	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, 401, appErr.StatusCode)
	require.Contains(t, appErr.Message, "social login")
}

func TestAuthServiceValidateOAuthLoginCreatesThenUpdates(t *testing.T) {
	fx := newAuthFixture(t)
	ctx := context.Background()

	first, err := fx.svc.ValidateOAuthLogin(ctx, providers.Identity{
		Provider:   models.ProviderGitHub,
		ProviderID: "42",
		Email:      "dev@example.com",
		Name:       "Dev",
		AvatarURL:  "https://img/1",
	})
	require.NoError(t, err)
	require.True(t, first.IsNewUser)
	require.Equal(t, []string{events.AuthRegistered}, fx.bus.names())

	second, err := fx.svc.ValidateOAuthLogin(ctx, providers.Identity{
		Provider:   models.ProviderGitHub,
		ProviderID: "42",
		Email:      "dev@example.com",
		Name:       "Dev Renamed",
		AvatarURL:  "https://img/2",
	})
	require.NoError(t, err)
	require.False(t, second.IsNewUser)
	require.Equal(t, first.User.ID, second.User.ID)
	require.Len(t, fx.bus.names(), 1)

	var stored models.User
	require.NoError(t, fx.db.First(&stored, "id = ?", first.User.ID).Error)
	require.Equal(t, "Dev Renamed", stored.Name)
	require.Equal(t, "https://img/2", *stored.AvatarURL)

	var count int64
	require.NoError(t, fx.db.Model(&models.User{}).Count(&count).Error)
	require.Equal(t, int64(1), count)
}

func TestAuthServiceOAuthLinksExistingLocalAccount(t *testing.T) {
	fx := newAuthFixture(t)
	ctx := context.Background()

	local, err := fx.svc.Register(ctx, RegisterInput{Name: "Caio", Email: "caio@example.com", Password: "pw"})
	require.NoError(t, err)

	linked, err := fx.svc.ValidateOAuthLogin(ctx, providers.Identity{
		Provider:   models.ProviderGoogle,
		ProviderID: "g-caio",
		Email:      "caio@example.com",
	})
	require.NoError(t, err)
	require.Equal(t, local.User.ID, linked.User.ID)
	require.Equal(t, models.ProviderGoogle, linked.User.Provider)
	require.Equal(t, "g-caio", *linked.User.ProviderID)
}

func TestAuthServiceConcurrentFirstLoginReusesWinner(t *testing.T) {
	fx := newAuthFixture(t)
	ctx := context.Background()

	identity := providers.Identity{Provider: models.ProviderGoogle, ProviderID: "g-race", Email: "race@example.com"}

	winner := &models.User{Name: "race", Email: "race@example.com", Provider: models.ProviderGoogle, ProviderID: stringPtr("g-race")}
	require.NoError(t, fx.db.Create(winner).Error)

	// The insert loses against the row created above and must fall back to it.
	user, isNew, err := fx.svc.createOAuthUser(ctx, "race@example.com", "race", identity)
	require.NoError(t, err)
	require.False(t, isNew)
	require.Equal(t, winner.ID, user.ID)
	require.Empty(t, fx.bus.names())
}

func TestAuthServiceVerifyGoogleToken(t *testing.T) {
	google := &fakeGoogle{identity: &providers.Identity{
		Provider:   models.ProviderGoogle,
		ProviderID: "g-9",
		Email:      "g@example.com",
		Name:       "G",
	}}
	fx := newAuthFixture(t, WithGoogleVerifier(google))
	ctx := context.Background()

	result, err := fx.svc.VerifyGoogleToken(ctx, "credential")
	require.NoError(t, err)
	require.Equal(t, "g@example.com", result.User.Email)

	google.err = providers.ErrInvalidCredential
	_, err = fx.svc.VerifyGoogleToken(ctx, "credential")
	require.ErrorIs(t, err, apperrors.ErrUnauthorized)

	google.err = errors.New("network down")
	_, err = fx.svc.VerifyGoogleToken(ctx, "credential")
	require.ErrorIs(t, err, apperrors.ErrInternalServer)

	_, err = fx.svc.VerifyGoogleToken(ctx, "")
	require.ErrorIs(t, err, apperrors.ErrBadRequest)
}

func TestAuthServiceRefreshAndLogout(t *testing.T) {
	fx := newAuthFixture(t)
	ctx := context.Background()

	result, err := fx.svc.Register(ctx, RegisterInput{Name: "Ana", Email: "ana@example.com", Password: "pw"})
	require.NoError(t, err)

	access, err := fx.svc.Refresh(ctx, result.RefreshToken)
	require.NoError(t, err)
	require.NotEmpty(t, access)

	require.NoError(t, fx.svc.Logout(ctx, result.RefreshToken))
	require.NoError(t, fx.svc.Logout(ctx, result.RefreshToken))

	_, err = fx.svc.Refresh(ctx, result.RefreshToken)
	require.ErrorIs(t, err, apperrors.ErrUnauthorized)

	_, err = fx.svc.Refresh(ctx, "")
	require.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestAuthServiceRefreshAfterStoredExpiry(t *testing.T) {
	fx := newAuthFixture(t)
	ctx := context.Background()

	result, err := fx.svc.Register(ctx, RegisterInput{Name: "Ana", Email: "ana@example.com", Password: "pw"})
	require.NoError(t, err)

	require.NoError(t, fx.db.Model(&models.RefreshToken{}).
		Where("token = ?", result.RefreshToken).
		Update("expires_at", fx.clock.Now().Add(-time.Second)).Error)

	_, err = fx.svc.Refresh(ctx, result.RefreshToken)
	require.ErrorIs(t, err, apperrors.ErrUnauthorized)

	var stored models.RefreshToken
	require.NoError(t, fx.db.Where("token = ?", result.RefreshToken).First(&stored).Error)
	require.True(t, stored.Revoked)

	_, err = fx.svc.Refresh(ctx, result.RefreshToken)
	require.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestAuthServiceRefreshAfterTTLElapses(t *testing.T) {
	fx := newAuthFixture(t)
	ctx := context.Background()

	result, err := fx.svc.Register(ctx, RegisterInput{Name: "Ana", Email: "ana@example.com", Password: "pw"})
	require.NoError(t, err)

	fx.clock.Advance(auth.DefaultRefreshTokenTTL)

	_, err = fx.svc.Refresh(ctx, result.RefreshToken)
	require.ErrorIs(t, err, apperrors.ErrUnauthorized)

	var stored models.RefreshToken
	require.NoError(t, fx.db.Where("token = ?", result.RefreshToken).First(&stored).Error)
	require.True(t, stored.Revoked)
}

func TestAuthServiceMe(t *testing.T) {
	fx := newAuthFixture(t)
	ctx := context.Background()

	result, err := fx.svc.Register(ctx, RegisterInput{Name: "Ana", Email: "ana@example.com", Password: "pw"})
	require.NoError(t, err)

	me, err := fx.svc.Me(ctx, result.User.ID)
	require.NoError(t, err)
	require.Equal(t, "Ana", me.Name)

	_, err = fx.svc.Me(ctx, "missing")
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestAuthServiceOAuthFlowRequiresConfiguration(t *testing.T) {
	fx := newAuthFixture(t)

	_, err := fx.svc.OAuthRedirectURL("github")
	require.ErrorIs(t, err, apperrors.ErrBadRequest)

	codec, err := auth.NewStateCodec([]byte("0123456789abcdef"), time.Minute, fx.clock.Now)
	require.NoError(t, err)
	gh, err := providers.NewGitHub(providers.ClientConfig{ClientID: "id", ClientSecret: "secret"}, providers.GitHubOptions{})
	require.NoError(t, err)

	configured := newAuthFixture(t, WithOAuthProviders(providers.NewRegistry(gh), codec))
	url, err := configured.svc.OAuthRedirectURL("github")
	require.NoError(t, err)
	require.Contains(t, url, "client_id=id")

	_, err = configured.svc.OAuthRedirectURL("gitlab")
	require.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = configured.svc.ExchangeOAuthCode(context.Background(), "github", "forged", "code")
	require.ErrorIs(t, err, apperrors.ErrUnauthorized)
}
