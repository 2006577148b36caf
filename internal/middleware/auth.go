package middleware

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/claims-api/internal/model"
	"github.com/jwalitptl/claims-api/internal/service/audit"
	apperrors "github.com/jwalitptl/claims-api/pkg/errors"
	"github.com/jwalitptl/claims-api/pkg/httputil"
)

const (
	ContextOperator = "operator"
	ContextRole     = "role"
)

var (
	errMissingAuthHeader = errors.New("missing authorization header")
	errBadAuthHeader     = errors.New("invalid authorization format")
)

type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*model.TokenClaims, error)
}

type AuthMiddleware struct {
	authService TokenValidator
}

func NewAuthMiddleware(authService TokenValidator) *AuthMiddleware {
	return &AuthMiddleware{authService: authService}
}

// Authenticate verifies the bearer token and records the operator on the
// gin context and on the request context.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			httputil.RespondWithError(c, apperrors.Unauthorized(errMissingAuthHeader))
			return
		}

		scheme, token, ok := strings.Cut(authHeader, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
			httputil.RespondWithError(c, apperrors.Unauthorized(errBadAuthHeader))
			return
		}

		claims, err := m.authService.ValidateToken(c.Request.Context(), token)
		if err != nil {
			httputil.RespondWithError(c, err)
			return
		}

		c.Set(ContextOperator, claims.Username)
		c.Set(ContextRole, claims.Role)
		c.Request = c.Request.WithContext(audit.WithActor(c.Request.Context(), claims.Username))
		c.Next()
	}
}

// RequireRole lets through operators holding one of roles.
func (m *AuthMiddleware) RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetString(ContextRole)
		for _, r := range roles {
			if r == role {
				c.Next()
				return
			}
		}
		httputil.RespondWithError(c, apperrors.Forbidden(fmt.Errorf("role %q may not %s %s", role, c.Request.Method, c.FullPath())))
	}
}
