package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	apperrors "github.com/jwalitptl/claims-api/pkg/errors"
	"github.com/jwalitptl/claims-api/pkg/httputil"
	"github.com/jwalitptl/claims-api/pkg/logger"
)

// Recovery turns a panic into a 500 and logs the stack.
func Recovery(l *logger.Logger) gin.HandlerFunc {
	zl := l.Zerolog()
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				zl.Error().
					Interface("panic", rec).
					Str("stack", string(debug.Stack())).
					Str("method", c.Request.Method).
					Str("path", c.Request.URL.Path).
					Str("request_id", c.GetString(ContextRequestID)).
					Msg("request panic recovered")

				httputil.RespondWithError(c, apperrors.Internal(fmt.Errorf("panic: %v", rec)))
			}
		}()
		c.Next()
	}
}
