package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"anon-relay-bot/internal/common/logger"
)

// Logger writes one line per request. Probe endpoints are logged at debug level.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery
		if raw != "" {
			path = path + "?" + raw
		}

		c.Next()

		event := logger.Info()
		if strings.HasPrefix(c.Request.URL.Path, "/health") || strings.HasPrefix(c.Request.URL.Path, "/ready") {
			event = logger.Debug()
		}

		event = event.
			Str("request_id", getRequestID(c)).
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Str("user_agent", c.Request.UserAgent()).
			Int("body_size", c.Writer.Size())
		if userID := getUserID(c); userID != 0 {
			event = event.Int64("user_id", userID)
		}
		event.Msg("Request processed")
	}
}
