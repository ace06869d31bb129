package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/MarcosLauremiro/miKan-api/internal/services"
	"github.com/MarcosLauremiro/miKan-api/pkg/response"
)

type ListHandler struct {
	svc *services.ListService
}

func NewListHandler(svc *services.ListService) *ListHandler {
	return &ListHandler{svc: svc}
}

type listNameRequest struct {
	Name string `json:"name" validate:"required,notblank,max=128"`
}

type reorderListsRequest struct {
	ListIDs []string `json:"list_ids" validate:"required,min=1,dive,required"`
}

// POST /api/lists/project/:projectId
func (h *ListHandler) Create(c *gin.Context) {
	var req listNameRequest
	if !bindAndValidate(c, &req) {
		return
	}

	list, err := h.svc.Create(requestContext(c), currentUserID(c), c.Param("projectId"), req.Name)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, list)
}

// GET /api/lists/project/:projectId
func (h *ListHandler) ListByProject(c *gin.Context) {
	lists, err := h.svc.ListByProject(requestContext(c), currentUserID(c), c.Param("projectId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, lists)
}

// GET /api/lists/:id
func (h *ListHandler) Get(c *gin.Context) {
	list, err := h.svc.Get(requestContext(c), currentUserID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, list)
}

// PUT /api/lists/:id
func (h *ListHandler) Update(c *gin.Context) {
	var req listNameRequest
	if !bindAndValidate(c, &req) {
		return
	}

	list, err := h.svc.Update(requestContext(c), currentUserID(c), c.Param("id"), req.Name)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, list)
}

// DELETE /api/lists/:id
func (h *ListHandler) Delete(c *gin.Context) {
	if err := h.svc.Delete(requestContext(c), currentUserID(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMessage(c, http.StatusOK, "list deleted", nil)
}

// DELETE /api/lists/:id/force
func (h *ListHandler) ForceDelete(c *gin.Context) {
	removed, err := h.svc.ForceDelete(requestContext(c), currentUserID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMessage(c, http.StatusOK, "list and its tasks deleted", gin.H{"tasks_deleted": removed})
}

// POST /api/lists/:id/duplicate
func (h *ListHandler) Duplicate(c *gin.Context) {
	list, err := h.svc.Duplicate(requestContext(c), currentUserID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, list)
}

// PUT /api/lists/project/:projectId/reorder
func (h *ListHandler) Reorder(c *gin.Context) {
	var req reorderListsRequest
	if !bindAndValidate(c, &req) {
		return
	}

	lists, err := h.svc.Reorder(requestContext(c), currentUserID(c), c.Param("projectId"), req.ListIDs)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, lists)
}
