package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/claims-api/pkg/httputil"
)

// SizeLimit rejects declared bodies over maxBytes and caps the rest.
func SizeLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, httputil.Response{
				Error: &httputil.Error{
					Code:    http.StatusRequestEntityTooLarge,
					Message: fmt.Sprintf("body exceeds %d bytes", maxBytes),
				},
			})
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
