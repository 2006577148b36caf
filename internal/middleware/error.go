package middleware

import (
	"github.com/gin-gonic/gin"

	apperrors "github.com/jwalitptl/claims-api/pkg/errors"
	"github.com/jwalitptl/claims-api/pkg/httputil"
	"github.com/jwalitptl/claims-api/pkg/logger"
)

// ErrorHandler logs errors attached to the context with their cause, and
// writes an error body when a handler attached one without responding.
func ErrorHandler(l *logger.Logger) gin.HandlerFunc {
	zl := l.Zerolog()
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		for _, e := range c.Errors {
			// client errors are already visible in the request log
			if appErr, ok := apperrors.As(e.Err); ok && appErr.StatusCode() < 500 {
				continue
			}
			zl.Error().
				Err(e.Err).
				Str("request_id", c.GetString(ContextRequestID)).
				Str("method", c.Request.Method).
				Str("path", c.Request.URL.Path).
				Msg("request error")
		}

		if !c.Writer.Written() {
			httputil.RespondWithError(c, c.Errors.Last().Err)
		}
	}
}
