package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/MarcosLauremiro/miKan-api/internal/services"
	"github.com/MarcosLauremiro/miKan-api/pkg/response"
)

type TaskHandler struct {
	svc *services.TaskService
}

func NewTaskHandler(svc *services.TaskService) *TaskHandler {
	return &TaskHandler{svc: svc}
}

type createTaskRequest struct {
	Name          string     `json:"name" validate:"required,notblank,max=256"`
	Description   string     `json:"description" validate:"omitempty,max=4096"`
	StatusID      string     `json:"status_id" validate:"required,notblank"`
	Priority      string     `json:"priority" validate:"required,oneof=LOW MEDIUM HIGH URGENT low medium high urgent"`
	ListID        *string    `json:"list_id" validate:"omitempty,notblank"`
	ResponsibleID *string    `json:"responsible_id" validate:"omitempty,notblank"`
	ConclusionAt  *time.Time `json:"conclusion_at"`
}

// Create validates a task against its project and returns the resolved
// draft. Tasks are not persisted yet.
// POST /api/tasks
func (h *TaskHandler) Create(c *gin.Context) {
	var req createTaskRequest
	if !bindAndValidate(c, &req) {
		return
	}

	draft, err := h.svc.Create(requestContext(c), currentUserID(c), services.CreateTaskInput{
		Name:          req.Name,
		Description:   req.Description,
		StatusID:      req.StatusID,
		Priority:      req.Priority,
		ListID:        req.ListID,
		ResponsibleID: req.ResponsibleID,
		ConclusionAt:  req.ConclusionAt,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, draft)
}
