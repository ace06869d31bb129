package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/MarcosLauremiro/miKan-api/internal/services"
	"github.com/MarcosLauremiro/miKan-api/pkg/response"
)

type AuditHandler struct {
	svc *services.AuditService
}

func NewAuditHandler(svc *services.AuditService) *AuditHandler {
	return &AuditHandler{svc: svc}
}

// GET /api/logs?page=&per_page=
func (h *AuditHandler) List(c *gin.Context) {
	page := parseIntQuery(c, "page", 1)
	perPage := parseIntQuery(c, "per_page", 20)
	if perPage > 100 {
		perPage = 100
	}

	logs, total, err := h.svc.ListByActor(requestContext(c), currentUserID(c), services.AuditListOptions{
		Page:     page,
		PageSize: perPage,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, logs, response.NewMeta(page, perPage, total))
}
