package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/MarcosLauremiro/miKan-api/internal/app"
	"github.com/MarcosLauremiro/miKan-api/internal/handlers"
	"github.com/MarcosLauremiro/miKan-api/internal/monitoring"
)

func registerHealthRoutes(r *gin.Engine, cfg *app.Config, manager *monitoring.HealthManager) {
	if !cfg.Monitoring.Health.Enabled {
		r.GET("/health", disabledHealthHandler)
		return
	}
	r.GET("/health", handlers.Health(manager))
}

func disabledHealthHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{
		"success": false,
		"status":  "disabled",
	})
}
