package integration

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/claims-api/internal/handler"
	"github.com/jwalitptl/claims-api/internal/model"
	integrationService "github.com/jwalitptl/claims-api/internal/service/integration"
	"github.com/jwalitptl/claims-api/pkg/httputil"
)

type Handler struct {
	service integrationService.IntegrationServicer
}

func NewHandler(service integrationService.IntegrationServicer) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts the integration routes; saving settings is guarded
// when guards are provided.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup, saveGuards ...gin.HandlerFunc) {
	integrations := r.Group("/integrations")
	{
		integrations.GET("", h.ListSettings)
		integrations.GET("/:provider", h.GetSetting)
		integrations.PUT("/:provider", append(saveGuards, h.SaveSetting)...)
		integrations.POST("/:provider/eligibility", h.VerifyEligibility)
		integrations.POST("/:provider/claims", h.SubmitClaim)
		integrations.GET("/:provider/claims/:reference", h.CheckClaimStatus)
	}
}

func (h *Handler) ListSettings(c *gin.Context) {
	settings, err := h.service.ListSettings(c.Request.Context())
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, settings)
}

func (h *Handler) GetSetting(c *gin.Context) {
	setting, err := h.service.GetSetting(c.Request.Context(), c.Param("provider"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, setting)
}

func (h *Handler) SaveSetting(c *gin.Context) {
	var req model.SaveIntegrationRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	setting, err := h.service.SaveSetting(c.Request.Context(), c.Param("provider"), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, setting)
}

func (h *Handler) VerifyEligibility(c *gin.Context) {
	var req model.EligibilityRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	resp, err := h.service.VerifyEligibility(c.Request.Context(), c.Param("provider"), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, resp)
}

func (h *Handler) SubmitClaim(c *gin.Context) {
	var req model.ExternalClaimRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	resp, err := h.service.SubmitExternalClaim(c.Request.Context(), c.Param("provider"), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, resp)
}

func (h *Handler) CheckClaimStatus(c *gin.Context) {
	resp, err := h.service.CheckExternalClaimStatus(c.Request.Context(), c.Param("provider"), c.Param("reference"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, resp)
}
