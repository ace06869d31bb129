package handlers_test

import (
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MarcosLauremiro/miKan-api/internal/events"
	"github.com/MarcosLauremiro/miKan-api/internal/handlers/testutil"
)

func TestAuthRegisterSetsRefreshCookie(t *testing.T) {
	env := testutil.NewEnv(t)

	w := env.Request(http.MethodPost, "/api/auth/register", map[string]string{
		"name":     "Ana",
		"email":    "Ana@Example.com",
		"password": testutil.Password,
	}, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var result testutil.AuthResult
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &result)
	require.Equal(t, "ana@example.com", result.User.Email)
	require.NotEmpty(t, result.AccessToken)

	cookie := testutil.Cookie(w, "refresh_token")
	require.NotNil(t, cookie)
	require.True(t, cookie.HttpOnly)
	require.Equal(t, "/api/auth", cookie.Path)
	require.Equal(t, result.RefreshToken, cookie.Value)

	payload, ok := env.Bus.Last(events.AuthRegistered)
	require.True(t, ok)
	require.Equal(t, "ana@example.com", payload.(events.UserRegistered).Email)
}

func TestAuthRegisterRejectsDuplicateEmail(t *testing.T) {
	env := testutil.NewEnv(t)
	env.RegisterAs("Ana", "ana@example.com")

	w := env.Request(http.MethodPost, "/api/auth/register", map[string]string{
		"name":     "Other",
		"email":    "ana@example.com",
		"password": testutil.Password,
	}, "")
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	resp := testutil.DecodeResponse(t, w)
	require.False(t, resp.Success)
	require.Equal(t, "auth.email_taken", resp.Error.Code)
}

func TestAuthRegisterValidatesPayload(t *testing.T) {
	env := testutil.NewEnv(t)

	w := env.Request(http.MethodPost, "/api/auth/register", map[string]string{
		"name":     "   ",
		"email":    "not-an-email",
		"password": "123",
	}, "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "BAD_REQUEST", testutil.DecodeResponse(t, w).Error.Code)
}

func TestAuthLoginAndMe(t *testing.T) {
	env := testutil.NewEnv(t)
	env.RegisterAs("Bruno", "bruno@example.com")

	session := env.Login("bruno@example.com", testutil.Password)

	w := env.Request(http.MethodGet, "/api/auth/me", nil, session.AccessToken)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var me testutil.UserPayload
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &me)
	require.Equal(t, session.User.ID, me.ID)
	require.Equal(t, "Bruno", me.Name)
}

func TestAuthLoginWrongPassword(t *testing.T) {
	env := testutil.NewEnv(t)
	env.RegisterAs("Bruno", "bruno@example.com")

	w := env.Request(http.MethodPost, "/api/auth/login", map[string]string{
		"email":    "bruno@example.com",
		"password": "wrong-password",
	}, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMeRequiresToken(t *testing.T) {
	env := testutil.NewEnv(t)

	w := env.Request(http.MethodGet, "/api/auth/me", nil, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.Request(http.MethodGet, "/api/auth/me", nil, "not-a-jwt")
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthRefreshFromCookieAndBody(t *testing.T) {
	env := testutil.NewEnv(t)
	session := env.Register("Carla")

	cookie := &http.Cookie{Name: "refresh_token", Value: session.RefreshToken}
	w := env.Request(http.MethodPost, "/api/auth/refresh", nil, "", cookie)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var refreshed struct {
		AccessToken string `json:"access_token"`
	}
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &refreshed)
	require.NotEmpty(t, refreshed.AccessToken)

	claims, err := env.JWT.ValidateAccessToken(refreshed.AccessToken)
	require.NoError(t, err)
	require.Equal(t, session.User.ID, claims.UserID)

	w = env.Request(http.MethodPost, "/api/auth/refresh", map[string]string{"refresh_token": session.RefreshToken}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestAuthRefreshRejectsAccessToken(t *testing.T) {
	env := testutil.NewEnv(t)
	session := env.Register("Carla")

	w := env.Request(http.MethodPost, "/api/auth/refresh", map[string]string{"refresh_token": session.AccessToken}, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.Request(http.MethodPost, "/api/auth/refresh", nil, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthLogoutRevokesRefreshToken(t *testing.T) {
	env := testutil.NewEnv(t)
	session := env.Register("Davi")
	cookie := &http.Cookie{Name: "refresh_token", Value: session.RefreshToken}

	w := env.Request(http.MethodPost, "/api/auth/logout", nil, "", cookie)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	cleared := testutil.Cookie(w, "refresh_token")
	require.NotNil(t, cleared)
	require.Empty(t, cleared.Value)
	require.Less(t, cleared.MaxAge, 0)

	w = env.Request(http.MethodPost, "/api/auth/refresh", nil, "", cookie)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestOAuthRoutesWithoutProviders(t *testing.T) {
	env := testutil.NewEnv(t)

	w := env.Request(http.MethodGet, "/api/auth/github", nil, "")
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = env.Request(http.MethodGet, "/api/auth/google/callback?state=x&code=y", nil, "")
	require.Equal(t, http.StatusFound, w.Code)

	location, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(location.String(), testutil.FrontendURL+"/auth/callback"))
	require.Equal(t, "BAD_REQUEST", location.Query().Get("error"))
	require.Nil(t, testutil.Cookie(w, "refresh_token"))
}

func TestOAuthCallbackForwardsProviderError(t *testing.T) {
	env := testutil.NewEnv(t)

	w := env.Request(http.MethodGet, "/api/auth/github/callback?error=access_denied", nil, "")
	require.Equal(t, http.StatusFound, w.Code)
	location, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	require.Equal(t, "access_denied", location.Query().Get("error"))
}
