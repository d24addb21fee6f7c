package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pulsefeed/pulsefeed-backend/internal/platform/logger"
)

// RequestLogger logs one structured line per request.
func RequestLogger(baseLog *logger.Logger) gin.HandlerFunc {
	log := baseLog.With("service", "HTTP")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}
