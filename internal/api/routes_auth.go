package api

import (
	"github.com/gin-gonic/gin"

	"github.com/MarcosLauremiro/miKan-api/internal/auth/providers"
	"github.com/MarcosLauremiro/miKan-api/internal/handlers"
)

func registerAuthRoutes(engine *gin.Engine, api *gin.RouterGroup, h *handlers.AuthHandler) {
	auth := engine.Group("/api/auth")
	{
		auth.POST("/register", h.Register)
		auth.POST("/login", h.Login)
		auth.POST("/google", h.Google)
		auth.POST("/refresh", h.Refresh)
		auth.POST("/logout", h.Logout)

		for _, provider := range []string{providers.GoogleName, providers.GitHubName} {
			auth.GET("/"+provider, h.OAuthRedirect(provider))
			auth.GET("/"+provider+"/callback", h.OAuthCallback(provider))
		}
	}

	api.GET("/auth/me", h.Me)
}
