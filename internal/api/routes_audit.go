package api

import (
	"github.com/gin-gonic/gin"

	"github.com/MarcosLauremiro/miKan-api/internal/handlers"
)

func registerAuditRoutes(api *gin.RouterGroup, h *handlers.AuditHandler) {
	api.GET("/logs", h.List)
}
