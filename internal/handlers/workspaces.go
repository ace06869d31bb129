package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/MarcosLauremiro/miKan-api/internal/services"
	"github.com/MarcosLauremiro/miKan-api/pkg/response"
)

type WorkspaceHandler struct {
	svc *services.WorkspaceService
}

func NewWorkspaceHandler(svc *services.WorkspaceService) *WorkspaceHandler {
	return &WorkspaceHandler{svc: svc}
}

type createWorkspaceRequest struct {
	Name        string `json:"name" validate:"required,notblank,max=128"`
	Color       string `json:"color" validate:"omitempty,hexcolor"`
	Description string `json:"description" validate:"omitempty,max=1024"`
}

type updateWorkspaceRequest struct {
	Name        *string `json:"name" validate:"omitempty,notblank,max=128"`
	Color       *string `json:"color" validate:"omitempty,hexcolor"`
	Description *string `json:"description" validate:"omitempty,max=1024"`
}

type addMemberRequest struct {
	Email string `json:"email" validate:"required,email"`
	Role  string `json:"role" validate:"omitempty,oneof=OWNER ADMIN MEMBER"`
}

type updateMemberRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=OWNER ADMIN MEMBER"`
}

type invitationTokenRequest struct {
	Token string `json:"token" validate:"required,notblank"`
}

// POST /api/workspaces
func (h *WorkspaceHandler) Create(c *gin.Context) {
	var req createWorkspaceRequest
	if !bindAndValidate(c, &req) {
		return
	}

	workspace, err := h.svc.Create(requestContext(c), currentUserID(c), services.CreateWorkspaceInput{
		Name:        req.Name,
		Color:       req.Color,
		Description: req.Description,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, workspace)
}

// GET /api/workspaces
func (h *WorkspaceHandler) List(c *gin.Context) {
	workspaces, err := h.svc.List(requestContext(c), currentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, workspaces)
}

// GET /api/workspaces/:id
func (h *WorkspaceHandler) Get(c *gin.Context) {
	workspace, err := h.svc.Get(requestContext(c), currentUserID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, workspace)
}

// PUT /api/workspaces/:id
func (h *WorkspaceHandler) Update(c *gin.Context) {
	var req updateWorkspaceRequest
	if !bindAndValidate(c, &req) {
		return
	}

	workspace, err := h.svc.Update(requestContext(c), currentUserID(c), c.Param("id"), services.UpdateWorkspaceInput{
		Name:        req.Name,
		Color:       req.Color,
		Description: req.Description,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, workspace)
}

// DELETE /api/workspaces/:id
func (h *WorkspaceHandler) Delete(c *gin.Context) {
	if err := h.svc.Delete(requestContext(c), currentUserID(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMessage(c, http.StatusOK, "workspace deleted", nil)
}

// POST /api/workspaces/:id/members
func (h *WorkspaceHandler) AddMember(c *gin.Context) {
	var req addMemberRequest
	if !bindAndValidate(c, &req) {
		return
	}

	result, err := h.svc.AddMember(requestContext(c), currentUserID(c), c.Param("id"), services.AddMemberInput{
		Email: req.Email,
		Role:  req.Role,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	message := "member added to workspace"
	if result.Invited {
		message = "invitation sent"
	}
	response.SuccessWithMessage(c, http.StatusCreated, message, result)
}

// PUT /api/workspaces/:id/members/:memberId
func (h *WorkspaceHandler) UpdateMemberRole(c *gin.Context) {
	var req updateMemberRoleRequest
	if !bindAndValidate(c, &req) {
		return
	}

	member, err := h.svc.UpdateMemberRole(requestContext(c), currentUserID(c), c.Param("id"), c.Param("memberId"), req.Role)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, member)
}

// DELETE /api/workspaces/:id/members/:memberId
func (h *WorkspaceHandler) RemoveMember(c *gin.Context) {
	if err := h.svc.RemoveMember(requestContext(c), currentUserID(c), c.Param("id"), c.Param("memberId")); err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMessage(c, http.StatusOK, "member removed", nil)
}

// POST /api/workspaces/:id/leave
func (h *WorkspaceHandler) Leave(c *gin.Context) {
	if err := h.svc.Leave(requestContext(c), currentUserID(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMessage(c, http.StatusOK, "you left the workspace", nil)
}

// POST /api/workspaces/invitations/accept
func (h *WorkspaceHandler) AcceptInvitation(c *gin.Context) {
	var req invitationTokenRequest
	if !bindAndValidate(c, &req) {
		return
	}

	member, err := h.svc.AcceptInvitation(requestContext(c), currentUserID(c), req.Token)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMessage(c, http.StatusOK, "invitation accepted", member)
}

// POST /api/workspaces/invitations/decline
func (h *WorkspaceHandler) DeclineInvitation(c *gin.Context) {
	var req invitationTokenRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if err := h.svc.DeclineInvitation(requestContext(c), currentUserID(c), req.Token); err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMessage(c, http.StatusOK, "invitation declined", nil)
}

// GET /api/workspaces/invitations/pending
func (h *WorkspaceHandler) PendingInvitations(c *gin.Context) {
	invitations, err := h.svc.PendingInvitations(requestContext(c), currentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, invitations)
}

// GET /api/workspaces/invitations/received
func (h *WorkspaceHandler) ReceivedInvitations(c *gin.Context) {
	invitations, err := h.svc.ReceivedInvitations(requestContext(c), currentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, invitations)
}
