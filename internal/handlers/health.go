package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/MarcosLauremiro/miKan-api/internal/monitoring"
	"github.com/MarcosLauremiro/miKan-api/pkg/response"
)

// Health evaluates the registered probes. A report whose status is down is
// served with 503 so load balancers stop routing to the instance.
// GET /health
func Health(manager *monitoring.HealthManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		if manager == nil {
			response.Success(c, http.StatusOK, gin.H{"status": "up"})
			return
		}

		report := manager.Evaluate(requestContext(c))
		status := http.StatusOK
		if !report.Healthy() {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, response.Response{Success: report.Healthy(), Data: report})
	}
}
