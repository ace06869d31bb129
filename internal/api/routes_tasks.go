package api

import (
	"github.com/gin-gonic/gin"

	"github.com/MarcosLauremiro/miKan-api/internal/handlers"
)

func registerTaskRoutes(api *gin.RouterGroup, h *handlers.TaskHandler) {
	api.POST("/tasks", h.Create)
}
