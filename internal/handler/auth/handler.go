package auth

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/claims-api/internal/handler"
	"github.com/jwalitptl/claims-api/internal/model"
	"github.com/jwalitptl/claims-api/pkg/httputil"
)

type LoginService interface {
	Login(ctx context.Context, req *model.LoginRequest) (*model.TokenResponse, error)
}

type Handler struct {
	service LoginService
}

func NewHandler(service LoginService) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/auth/login", h.Login)
}

func (h *Handler) Login(c *gin.Context) {
	var req model.LoginRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	tokens, err := h.service.Login(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, tokens)
}
