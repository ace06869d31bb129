package api

import (
	"github.com/gin-gonic/gin"

	"github.com/MarcosLauremiro/miKan-api/internal/handlers"
)

func registerProjectRoutes(api *gin.RouterGroup, h *handlers.ProjectHandler) {
	projects := api.Group("/projects")
	{
		projects.POST("", h.Create)
		projects.GET("", h.List)
		projects.PUT("/statuses/:statusId", h.UpdateStatus)
		projects.DELETE("/statuses/:statusId", h.DeleteStatus)
		projects.GET("/:id", h.Get)
		projects.PUT("/:id", h.Update)
		projects.DELETE("/:id", h.Delete)
		projects.POST("/:id/statuses", h.AddStatus)
	}
}
