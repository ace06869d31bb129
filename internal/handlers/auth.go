package handlers

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MarcosLauremiro/miKan-api/internal/services"
	"github.com/MarcosLauremiro/miKan-api/pkg/errors"
	"github.com/MarcosLauremiro/miKan-api/pkg/logger"
	"github.com/MarcosLauremiro/miKan-api/pkg/response"
)

const refreshCookieName = "refresh_token"

// CookieConfig controls the HttpOnly refresh token cookie.
type CookieConfig struct {
	Domain string
	Secure bool
	MaxAge time.Duration
}

// AuthHandler manages authentication flows (register/login/refresh/logout/me)
// and the social login redirects.
type AuthHandler struct {
	svc         *services.AuthService
	cookie      CookieConfig
	frontendURL string
}

func NewAuthHandler(svc *services.AuthService, cookie CookieConfig, frontendURL string) *AuthHandler {
	if cookie.MaxAge <= 0 {
		cookie.MaxAge = 7 * 24 * time.Hour
	}
	return &AuthHandler{svc: svc, cookie: cookie, frontendURL: strings.TrimRight(frontendURL, "/")}
}

type registerRequest struct {
	Name     string `json:"name" validate:"required,notblank,max=128"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=128"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type googleRequest struct {
	Credential string `json:"credential" validate:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// POST /api/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if !bindAndValidate(c, &req) {
		return
	}

	result, err := h.svc.Register(requestContext(c), services.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	h.setRefreshCookie(c, result.RefreshToken)
	response.Success(c, http.StatusCreated, result)
}

// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindAndValidate(c, &req) {
		return
	}

	result, err := h.svc.Login(requestContext(c), req.Email, req.Password)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.setRefreshCookie(c, result.RefreshToken)
	response.Success(c, http.StatusOK, result)
}

// POST /api/auth/google
func (h *AuthHandler) Google(c *gin.Context) {
	var req googleRequest
	if !bindAndValidate(c, &req) {
		return
	}

	result, err := h.svc.VerifyGoogleToken(requestContext(c), req.Credential)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.setRefreshCookie(c, result.RefreshToken)
	response.Success(c, http.StatusOK, result)
}

// POST /api/auth/refresh
func (h *AuthHandler) Refresh(c *gin.Context) {
	token, ok := h.refreshToken(c)
	if !ok {
		return
	}

	access, err := h.svc.Refresh(requestContext(c), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"access_token": access})
}

// POST /api/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	token, ok := h.refreshToken(c)
	if !ok {
		return
	}

	if token != "" {
		if err := h.svc.Logout(requestContext(c), token); err != nil {
			response.Error(c, err)
			return
		}
	}

	h.clearRefreshCookie(c)
	response.SuccessWithMessage(c, http.StatusOK, "logged out", nil)
}

// GET /api/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	user, err := h.svc.Me(requestContext(c), currentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, user)
}

// OAuthRedirect sends the browser to provider's consent screen.
// GET /api/auth/{google,github}
func (h *AuthHandler) OAuthRedirect(provider string) gin.HandlerFunc {
	return func(c *gin.Context) {
		target, err := h.svc.OAuthRedirectURL(provider)
		if err != nil {
			response.Error(c, err)
			return
		}
		c.Redirect(http.StatusFound, target)
	}
}

// OAuthCallback completes the provider flow and hands the session to the
// frontend. The refresh token travels in the cookie only; the access token is
// put in the URL fragment so it never reaches a server log.
// GET /api/auth/{google,github}/callback
func (h *AuthHandler) OAuthCallback(provider string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if denied := strings.TrimSpace(c.Query("error")); denied != "" {
			h.redirectToFrontend(c, url.Values{"error": {denied}}, nil)
			return
		}

		result, err := h.svc.ExchangeOAuthCode(requestContext(c), provider, c.Query("state"), c.Query("code"))
		if err != nil {
			appErr := errors.FromError(err)
			logger.WithModule("auth").Warn("oauth callback failed",
				zap.String("provider", provider),
				zap.String("code", appErr.Code),
				zap.Error(err),
			)
			h.redirectToFrontend(c, url.Values{"error": {appErr.Code}}, nil)
			return
		}

		h.setRefreshCookie(c, result.RefreshToken)
		fragment := url.Values{"access_token": {result.AccessToken}}
		if result.IsNewUser {
			fragment.Set("new_user", "true")
		}
		h.redirectToFrontend(c, nil, fragment)
	}
}

func (h *AuthHandler) redirectToFrontend(c *gin.Context, query, fragment url.Values) {
	target := h.frontendURL + "/auth/callback"
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	if len(fragment) > 0 {
		target += "#" + fragment.Encode()
	}
	c.Redirect(http.StatusFound, target)
}

// refreshToken reads the token from the cookie, falling back to the JSON body.
func (h *AuthHandler) refreshToken(c *gin.Context) (string, bool) {
	if cookie, err := c.Cookie(refreshCookieName); err == nil && strings.TrimSpace(cookie) != "" {
		return strings.TrimSpace(cookie), true
	}
	var req refreshRequest
	if !bindOptional(c, &req) {
		return "", false
	}
	return strings.TrimSpace(req.RefreshToken), true
}

func (h *AuthHandler) setRefreshCookie(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(refreshCookieName, token, int(h.cookie.MaxAge.Seconds()), "/api/auth", h.cookie.Domain, h.cookie.Secure, true)
}

func (h *AuthHandler) clearRefreshCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(refreshCookieName, "", -1, "/api/auth", h.cookie.Domain, h.cookie.Secure, true)
}
