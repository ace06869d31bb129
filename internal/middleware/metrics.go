package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/MarcosLauremiro/miKan-api/pkg/metrics"
)

// Metrics records request latency for each HTTP request, labelled by the
// matched route template so path parameters do not explode cardinality.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		status := strconv.Itoa(c.Writer.Status())
		metrics.APILatency.WithLabelValues(c.Request.Method, path, status).Observe(time.Since(start).Seconds())
	}
}
