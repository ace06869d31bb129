package api

import (
	"github.com/gin-gonic/gin"

	"github.com/MarcosLauremiro/miKan-api/internal/handlers"
)

func registerListRoutes(api *gin.RouterGroup, h *handlers.ListHandler) {
	lists := api.Group("/lists")
	{
		lists.POST("/project/:projectId", h.Create)
		lists.GET("/project/:projectId", h.ListByProject)
		lists.PUT("/project/:projectId/reorder", h.Reorder)
		lists.GET("/:id", h.Get)
		lists.PUT("/:id", h.Update)
		lists.DELETE("/:id", h.Delete)
		lists.DELETE("/:id/force", h.ForceDelete)
		lists.POST("/:id/duplicate", h.Duplicate)
	}
}
