// Package handler holds the gin handlers of the claims API, one subpackage
// per resource, plus the helpers they share.
package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/claims-api/internal/middleware"
	apperrors "github.com/jwalitptl/claims-api/pkg/errors"
	"github.com/jwalitptl/claims-api/pkg/httputil"
)

// BindJSON decodes and validates the body into dst. On failure it writes a
// 400 and returns false.
func BindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest(middleware.DescribeValidation(err), err))
		return false
	}
	return true
}

// BindQuery is BindJSON for query strings.
func BindQuery(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindQuery(dst); err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest(middleware.DescribeValidation(err), err))
		return false
	}
	return true
}
