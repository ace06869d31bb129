package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/MarcosLauremiro/miKan-api/internal/services"
	"github.com/MarcosLauremiro/miKan-api/pkg/response"
)

type UserHandler struct {
	svc *services.UserService
}

func NewUserHandler(svc *services.UserService) *UserHandler {
	return &UserHandler{svc: svc}
}

// Lookup reports whether an account exists for the email, so clients can
// choose between adding a member and sending an invitation.
// GET /api/users/:email
func (h *UserHandler) Lookup(c *gin.Context) {
	user, found, err := h.svc.LookupByEmail(requestContext(c), c.Param("email"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"exists": found,
		"user":   user,
	})
}
