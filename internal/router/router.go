package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/claims-api/internal/handler/auth"
	"github.com/jwalitptl/claims-api/internal/handler/claim"
	"github.com/jwalitptl/claims-api/internal/handler/health"
	"github.com/jwalitptl/claims-api/internal/handler/integration"
	"github.com/jwalitptl/claims-api/internal/handler/policy"
	"github.com/jwalitptl/claims-api/internal/handler/provider"
	"github.com/jwalitptl/claims-api/internal/middleware"
	"github.com/jwalitptl/claims-api/internal/model"
	"github.com/jwalitptl/claims-api/pkg/logger"
	"github.com/jwalitptl/claims-api/pkg/metrics"
)

type Handlers struct {
	Auth        *auth.Handler
	Health      *health.Handler
	Provider    *provider.Handler
	Policy      *policy.Handler
	Claim       *claim.Handler
	Integration *integration.Handler
}

type RouterConfig struct {
	RateLimitEnabled bool
	RateLimit        rate.Limit
	RateBurst        int
	AllowedOrigins   []string
	RequestTimeout   time.Duration
	MaxBodyBytes     int64
}

type Router struct {
	engine   *gin.Engine
	auth     *middleware.AuthMiddleware
	auditMW  *middleware.AuditMiddleware
	handlers Handlers
	metrics  *metrics.Metrics
}

func NewRouter(
	auth *middleware.AuthMiddleware,
	auditMW *middleware.AuditMiddleware,
	handlers Handlers,
	m *metrics.Metrics,
	log *logger.Logger,
	config RouterConfig,
) (*Router, error) {
	if err := middleware.RegisterValidators(); err != nil {
		return nil, err
	}

	engine := gin.New()
	engine.HandleMethodNotAllowed = true

	engine.Use(
		middleware.RequestID(),
		middleware.Recovery(log),
		middleware.Logger(log),
		middleware.ErrorHandler(log),
		middleware.Metrics(m),
		middleware.SecurityHeaders(middleware.DefaultSecurityConfig()),
		middleware.CORS(middleware.DefaultCORSConfig(config.AllowedOrigins)),
		middleware.Timeout(middleware.TimeoutConfig{Duration: config.RequestTimeout}),
	)
	if config.MaxBodyBytes > 0 {
		engine.Use(middleware.SizeLimit(config.MaxBodyBytes))
	}
	if config.RateLimitEnabled {
		engine.Use(middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:  config.RateLimit,
			Burst: config.RateBurst,
		}).RateLimit())
	}

	return &Router{
		engine:   engine,
		auth:     auth,
		auditMW:  auditMW,
		handlers: handlers,
		metrics:  m,
	}, nil
}

func (r *Router) Setup() {
	api := r.engine.Group("/api/v1")

	// Public routes
	r.handlers.Health.RegisterRoutes(api)
	api.GET("/metrics", gin.WrapH(r.metrics.Handler()))
	r.handlers.Auth.RegisterRoutes(api)

	// Protected routes
	protected := api.Group("")
	protected.Use(r.auth.Authenticate())

	r.handlers.Provider.RegisterRoutes(protected)
	r.handlers.Policy.RegisterRoutes(protected)
	protected.GET("/patients/:id/policies",
		r.auditMW.AuditRead(model.AuditEntityPatient, "id"),
		r.handlers.Policy.ListPatientPolicies,
	)
	r.handlers.Claim.RegisterRoutes(protected, r.auth.RequireRole(model.RoleSupervisor, model.RoleAdmin))
	r.handlers.Integration.RegisterRoutes(protected, r.auth.RequireRole(model.RoleAdmin))
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
