package api

import (
	"github.com/gin-gonic/gin"

	"github.com/MarcosLauremiro/miKan-api/internal/handlers"
)

func registerWorkspaceRoutes(api *gin.RouterGroup, h *handlers.WorkspaceHandler) {
	workspaces := api.Group("/workspaces")
	{
		workspaces.POST("", h.Create)
		workspaces.GET("", h.List)

		workspaces.POST("/invitations/accept", h.AcceptInvitation)
		workspaces.POST("/invitations/decline", h.DeclineInvitation)
		workspaces.GET("/invitations/pending", h.PendingInvitations)
		workspaces.GET("/invitations/received", h.ReceivedInvitations)

		workspaces.GET("/:id", h.Get)
		workspaces.PUT("/:id", h.Update)
		workspaces.DELETE("/:id", h.Delete)
		workspaces.POST("/:id/leave", h.Leave)
		workspaces.POST("/:id/members", h.AddMember)
		workspaces.PUT("/:id/members/:memberId", h.UpdateMemberRole)
		workspaces.DELETE("/:id/members/:memberId", h.RemoveMember)
	}
}
