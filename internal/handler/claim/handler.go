package claim

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/claims-api/internal/handler"
	"github.com/jwalitptl/claims-api/internal/model"
	claimService "github.com/jwalitptl/claims-api/internal/service/claim"
	apperrors "github.com/jwalitptl/claims-api/pkg/errors"
	"github.com/jwalitptl/claims-api/pkg/httputil"
)

type Handler struct {
	service claimService.ClaimServicer
}

func NewHandler(service claimService.ClaimServicer) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts the claim routes; decide is guarded when provided.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup, decideGuards ...gin.HandlerFunc) {
	claims := r.Group("/claims")
	{
		claims.POST("", h.SubmitClaim)
		claims.GET("", h.ListClaims)
		claims.GET("/summary", h.GetSummary)
		claims.GET("/:id", h.GetClaim)
		claims.PUT("/:id/decision", append(decideGuards, h.DecideClaim)...)
	}
}

func (h *Handler) SubmitClaim(c *gin.Context) {
	var req model.SubmitClaimRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	claim, err := h.service.SubmitClaim(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	c.Header("Location", c.FullPath()+"/"+claim.ID.String())
	httputil.RespondWithStatus(c, http.StatusCreated, claim)
}

func (h *Handler) ListClaims(c *gin.Context) {
	var filters model.ClaimFilters
	if !handler.BindQuery(c, &filters) {
		return
	}

	claims, total, err := h.service.ListClaims(c.Request.Context(), &filters)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithPagination(c, claims, filters.Page, filters.PageSize, total)
}

func (h *Handler) GetClaim(c *gin.Context) {
	id, ok := claimID(c)
	if !ok {
		return
	}

	claim, err := h.service.GetClaim(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, claim)
}

func (h *Handler) DecideClaim(c *gin.Context) {
	id, ok := claimID(c)
	if !ok {
		return
	}
	var req model.DecideClaimRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	claim, err := h.service.DecideClaim(c.Request.Context(), id, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, claim)
}

func (h *Handler) GetSummary(c *gin.Context) {
	summary, err := h.service.GetClaimsFinancialSummary(c.Request.Context())
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, summary)
}

func claimID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid claim ID", err))
		return uuid.Nil, false
	}
	return id, true
}
