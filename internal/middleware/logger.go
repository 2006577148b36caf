package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/jwalitptl/claims-api/pkg/logger"
)

// Logger logs one line per request. Bodies are never logged since they carry
// patient data.
func Logger(l *logger.Logger) gin.HandlerFunc {
	zl := l.Zerolog()
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if raw := c.Request.URL.RawQuery; raw != "" {
			path = path + "?" + raw
		}

		c.Next()

		status := c.Writer.Status()
		var event *zerolog.Event
		switch {
		case status >= 500:
			event = zl.Error()
		case status >= 400:
			event = zl.Warn()
		default:
			event = zl.Info()
		}
		if err := c.Errors.Last(); err != nil {
			event = event.Err(err.Err)
		}

		event.
			Str("request_id", c.GetString(ContextRequestID)).
			Str("operator", c.GetString(ContextOperator)).
			Str("method", c.Request.Method).
			Str("path", path).
			Str("client_ip", c.ClientIP()).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("user_agent", c.Request.UserAgent()).
			Msg("request processed")
	}
}
