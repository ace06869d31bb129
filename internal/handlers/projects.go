package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/MarcosLauremiro/miKan-api/internal/services"
	"github.com/MarcosLauremiro/miKan-api/pkg/response"
)

type ProjectHandler struct {
	svc *services.ProjectService
}

func NewProjectHandler(svc *services.ProjectService) *ProjectHandler {
	return &ProjectHandler{svc: svc}
}

type statusRequest struct {
	Name  string `json:"name" validate:"required,notblank,max=64"`
	Color string `json:"color" validate:"omitempty,hexcolor"`
}

type createProjectRequest struct {
	WorkspaceID     *string         `json:"workspace_id" validate:"omitempty,uuid"`
	Name            string          `json:"name" validate:"required,notblank,max=128"`
	Description     string          `json:"description" validate:"omitempty,max=2048"`
	Private         *bool           `json:"private" validate:"required"`
	InitialListName string          `json:"initial_list_name" validate:"omitempty,max=128"`
	Statuses        []statusRequest `json:"statuses" validate:"omitempty,dive"`
}

type updateProjectRequest struct {
	Name        *string `json:"name" validate:"omitempty,notblank,max=128"`
	Description *string `json:"description" validate:"omitempty,max=2048"`
	Private     *bool   `json:"private"`
}

type updateStatusRequest struct {
	Name  *string `json:"name" validate:"omitempty,notblank,max=64"`
	Color *string `json:"color" validate:"omitempty,hexcolor"`
}

// POST /api/projects
func (h *ProjectHandler) Create(c *gin.Context) {
	var req createProjectRequest
	if !bindAndValidate(c, &req) {
		return
	}

	statuses := make([]services.StatusInput, 0, len(req.Statuses))
	for _, status := range req.Statuses {
		statuses = append(statuses, services.StatusInput{Name: status.Name, Color: status.Color})
	}

	project, err := h.svc.Create(requestContext(c), currentUserID(c), services.CreateProjectInput{
		WorkspaceID:     req.WorkspaceID,
		Name:            req.Name,
		Description:     req.Description,
		Private:         req.Private,
		InitialListName: req.InitialListName,
		Statuses:        statuses,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, project)
}

// GET /api/projects?workspace_id=
func (h *ProjectHandler) List(c *gin.Context) {
	projects, err := h.svc.List(requestContext(c), currentUserID(c), strings.TrimSpace(c.Query("workspace_id")))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, projects)
}

// GET /api/projects/:id
func (h *ProjectHandler) Get(c *gin.Context) {
	project, err := h.svc.Get(requestContext(c), currentUserID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, project)
}

// PUT /api/projects/:id
func (h *ProjectHandler) Update(c *gin.Context) {
	var req updateProjectRequest
	if !bindAndValidate(c, &req) {
		return
	}

	project, err := h.svc.Update(requestContext(c), currentUserID(c), c.Param("id"), services.UpdateProjectInput{
		Name:        req.Name,
		Description: req.Description,
		Private:     req.Private,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, project)
}

// DELETE /api/projects/:id
func (h *ProjectHandler) Delete(c *gin.Context) {
	if err := h.svc.Delete(requestContext(c), currentUserID(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMessage(c, http.StatusOK, "project deleted", nil)
}

// POST /api/projects/:id/statuses
func (h *ProjectHandler) AddStatus(c *gin.Context) {
	var req statusRequest
	if !bindAndValidate(c, &req) {
		return
	}

	status, err := h.svc.AddStatus(requestContext(c), currentUserID(c), c.Param("id"), services.StatusInput{
		Name:  req.Name,
		Color: req.Color,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, status)
}

// PUT /api/projects/statuses/:statusId
func (h *ProjectHandler) UpdateStatus(c *gin.Context) {
	var req updateStatusRequest
	if !bindAndValidate(c, &req) {
		return
	}

	status, err := h.svc.UpdateStatus(requestContext(c), currentUserID(c), c.Param("statusId"), services.UpdateStatusInput{
		Name:  req.Name,
		Color: req.Color,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, status)
}

// DELETE /api/projects/statuses/:statusId
func (h *ProjectHandler) DeleteStatus(c *gin.Context) {
	if err := h.svc.DeleteStatus(requestContext(c), currentUserID(c), c.Param("statusId")); err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMessage(c, http.StatusOK, "status deleted", nil)
}
