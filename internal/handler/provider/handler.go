package provider

import (
	"github.com/gin-gonic/gin"

	providerService "github.com/jwalitptl/claims-api/internal/service/provider"
	"github.com/jwalitptl/claims-api/pkg/httputil"
)

type Handler struct {
	service providerService.ProviderServicer
}

func NewHandler(service providerService.ProviderServicer) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	providers := r.Group("/providers")
	{
		providers.GET("", h.ListProviders)
		providers.GET("/:id", h.GetProvider)
	}
}

// ListProviders filters by the optional ?country= code.
func (h *Handler) ListProviders(c *gin.Context) {
	providers, err := h.service.ListProviders(c.Request.Context(), c.Query("country"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, providers)
}

func (h *Handler) GetProvider(c *gin.Context) {
	p, err := h.service.GetProvider(c.Request.Context(), c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, p)
}
