package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/claims-api/internal/model"
	"github.com/jwalitptl/claims-api/internal/service/audit"
)

type AuditMiddleware struct {
	auditSvc *audit.Service
}

func NewAuditMiddleware(auditSvc *audit.Service) *AuditMiddleware {
	return &AuditMiddleware{auditSvc: auditSvc}
}

// AuditRead records who read the entity named by the param route parameter.
// Reads of patient data are audited even when they fail.
func (m *AuditMiddleware) AuditRead(entityType, param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		outcome := audit.OutcomeSuccess
		switch status := c.Writer.Status(); {
		case status == http.StatusUnauthorized || status == http.StatusForbidden:
			outcome = audit.OutcomeDenied
		case status >= 400:
			outcome = audit.OutcomeFailure
		}

		m.auditSvc.Log(c.Request.Context(), model.AuditActionRead, entityType, c.Param(param), outcome, map[string]interface{}{
			"path":   c.FullPath(),
			"status": c.Writer.Status(),
		})
	}
}
