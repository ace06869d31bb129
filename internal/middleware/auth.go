package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/MarcosLauremiro/miKan-api/internal/auditctx"
	iauth "github.com/MarcosLauremiro/miKan-api/internal/auth"
	"github.com/MarcosLauremiro/miKan-api/pkg/errors"
	"github.com/MarcosLauremiro/miKan-api/pkg/response"
)

const (
	CtxClaimsKey = "authClaims"
	CtxUserIDKey = "userID"
)

// Auth enforces JWT authentication using the supplied JWT service.
func Auth(jwt *iauth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authz := c.GetHeader("Authorization")
		if len(authz) < 8 || !strings.EqualFold(authz[:7], "Bearer ") {
			c.Header("WWW-Authenticate", "Bearer")
			response.Error(c, errors.NewUnauthorized("missing bearer token"))
			c.Abort()
			return
		}

		claims, err := jwt.ValidateAccessToken(strings.TrimSpace(authz[7:]))
		if err != nil {
			// Normalise all validation failures to 401
			c.Header("WWW-Authenticate", "Bearer")
			response.Error(c, errors.NewUnauthorized("invalid or expired token"))
			c.Abort()
			return
		}

		c.Set(CtxClaimsKey, claims)
		c.Set(CtxUserIDKey, claims.UserID)

		ctx := c.Request.Context()
		actor, _ := auditctx.FromContext(ctx)
		actor.UserID = claims.UserID
		if actor.IPAddress == "" {
			actor.IPAddress = c.ClientIP()
			actor.UserAgent = c.Request.UserAgent()
		}
		c.Request = c.Request.WithContext(auditctx.WithActor(ctx, actor))

		c.Next()
	}
}

// AuditContext stamps the caller's address and user agent on the request
// context for audit records written by unauthenticated endpoints.
func AuditContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := auditctx.Actor{IPAddress: c.ClientIP(), UserAgent: c.Request.UserAgent()}
		c.Request = c.Request.WithContext(auditctx.WithActor(c.Request.Context(), actor))
		c.Next()
	}
}
