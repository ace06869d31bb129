package handlers

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/MarcosLauremiro/miKan-api/internal/middleware"
)

// requestContext safely returns the request context with a background fallback for tests.
func requestContext(c *gin.Context) context.Context {
	if c == nil {
		return context.Background()
	}
	if req := c.Request; req != nil {
		return req.Context()
	}
	return context.Background()
}

// currentUserID returns the authenticated caller set by middleware.Auth.
func currentUserID(c *gin.Context) string {
	return strings.TrimSpace(c.GetString(middleware.CtxUserIDKey))
}
