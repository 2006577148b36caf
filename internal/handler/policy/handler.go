package policy

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/claims-api/internal/handler"
	"github.com/jwalitptl/claims-api/internal/model"
	policyService "github.com/jwalitptl/claims-api/internal/service/policy"
	"github.com/jwalitptl/claims-api/pkg/httputil"
)

type Handler struct {
	service policyService.PolicyServicer
}

func NewHandler(service policyService.PolicyServicer) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts the policy routes. The patient route is registered
// by the router so reads can be audited per patient.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	policies := r.Group("/policies")
	{
		policies.POST("/verify", h.VerifyPolicy)
		policies.GET("/:number", h.GetPolicy)
	}
}

func (h *Handler) GetPolicy(c *gin.Context) {
	view, err := h.service.GetPolicy(c.Request.Context(), c.Param("number"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, view)
}

func (h *Handler) ListPatientPolicies(c *gin.Context) {
	views, err := h.service.ListPatientPolicies(c.Request.Context(), c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, views)
}

// VerifyPolicy always answers 200 with the verification outcome; a failed
// check is a result, not an error.
func (h *Handler) VerifyPolicy(c *gin.Context) {
	var req model.VerifyPolicyRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	result, err := h.service.Verify(c.Request.Context(), req.PolicyNumber, req.Amount)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, result)
}
