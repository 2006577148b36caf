// Package app wires configuration into the running claims stack. Both the
// API server and claimsctl build on it.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/claims-api/internal/config"
	"github.com/jwalitptl/claims-api/internal/email"
	authHandler "github.com/jwalitptl/claims-api/internal/handler/auth"
	claimHandler "github.com/jwalitptl/claims-api/internal/handler/claim"
	"github.com/jwalitptl/claims-api/internal/handler/health"
	integrationHandler "github.com/jwalitptl/claims-api/internal/handler/integration"
	policyHandler "github.com/jwalitptl/claims-api/internal/handler/policy"
	providerHandler "github.com/jwalitptl/claims-api/internal/handler/provider"
	"github.com/jwalitptl/claims-api/internal/insurer"
	"github.com/jwalitptl/claims-api/internal/middleware"
	"github.com/jwalitptl/claims-api/internal/model"
	"github.com/jwalitptl/claims-api/internal/repository"
	"github.com/jwalitptl/claims-api/internal/repository/memory"
	"github.com/jwalitptl/claims-api/internal/repository/postgres"
	"github.com/jwalitptl/claims-api/internal/router"
	"github.com/jwalitptl/claims-api/internal/service/audit"
	authService "github.com/jwalitptl/claims-api/internal/service/auth"
	claimService "github.com/jwalitptl/claims-api/internal/service/claim"
	integrationService "github.com/jwalitptl/claims-api/internal/service/integration"
	policyService "github.com/jwalitptl/claims-api/internal/service/policy"
	providerService "github.com/jwalitptl/claims-api/internal/service/provider"
	"github.com/jwalitptl/claims-api/pkg/auth"
	"github.com/jwalitptl/claims-api/pkg/logger"
	"github.com/jwalitptl/claims-api/pkg/messaging"
	"github.com/jwalitptl/claims-api/pkg/messaging/redis"
	"github.com/jwalitptl/claims-api/pkg/metrics"
	"github.com/jwalitptl/claims-api/pkg/security"
	"github.com/jwalitptl/claims-api/pkg/worker"
)

type Repositories struct {
	Providers    repository.ProviderRepository
	Policies     repository.PolicyRepository
	Claims       repository.ClaimRepository
	Integrations repository.IntegrationRepository
	Outbox       repository.OutboxRepository
}

type App struct {
	Config  *config.Config
	Log     *logger.Logger
	DB      *sqlx.DB
	Repos   Repositories
	Broker  messaging.Broker
	Metrics *metrics.Metrics
	Audit   *audit.Service
	Sandbox *insurer.Sandbox

	Providers    *providerService.Service
	Policies     *policyService.Service
	Claims       *claimService.Service
	Integrations *integrationService.Service
	Auth         *authService.Service

	Outbox        *worker.OutboxProcessor
	OutboxCleanup *worker.OutboxCleanupWorker
	Router        *router.Router

	closers []func() error
}

type options struct {
	auditLogger *zap.Logger
	mailer      email.Service
}

type Option func(*options)

// WithAuditLogger replaces the audit sink built from config.
func WithAuditLogger(l *zap.Logger) Option {
	return func(o *options) { o.auditLogger = l }
}

// WithMailer replaces the mailer built from config.
func WithMailer(m email.Service) Option {
	return func(o *options) { o.mailer = m }
}

// New builds every component from cfg. The caller owns Close.
func New(cfg *config.Config, log *logger.Logger, opts ...Option) (*App, error) {
	a := &App{Config: cfg, Log: log, Metrics: metrics.New("claims")}
	if err := a.build(opts); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(opts []Option) error {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	cfg := a.Config

	if err := a.openRepositories(); err != nil {
		return err
	}
	if err := a.openBroker(); err != nil {
		return err
	}

	auditLogger := o.auditLogger
	if auditLogger == nil {
		var err error
		if auditLogger, err = audit.NewLogger(cfg.Audit.Path); err != nil {
			return err
		}
	}
	a.Audit = audit.NewService(auditLogger)
	a.closers = append(a.closers, func() error {
		_ = a.Audit.Sync()
		return nil
	})

	mailer := o.mailer
	if mailer == nil {
		mailer = newMailer(cfg.Mail)
	}

	if err := a.buildServices(mailer); err != nil {
		return err
	}

	processor, err := worker.NewOutboxProcessor(a.Repos.Outbox, a.Broker, worker.OutboxProcessorConfig{
		BatchSize:     cfg.Outbox.BatchSize,
		PollInterval:  cfg.Outbox.PollInterval,
		RetryAttempts: cfg.Outbox.RetryAttempts,
		RetryDelay:    cfg.Outbox.RetryDelay,
	}, a.Log.WithFields(map[string]interface{}{"component": "outbox"}), a.Metrics)
	if err != nil {
		return fmt.Errorf("failed to create outbox processor: %w", err)
	}
	a.Outbox = processor
	if cfg.Outbox.RetentionDays > 0 && cfg.Outbox.CleanupInterval > 0 {
		cleanupLog := a.Log.WithFields(map[string]interface{}{"component": "outbox_cleanup"})
		a.OutboxCleanup = worker.NewOutboxCleanupWorker(a.Repos.Outbox, cfg.Outbox.RetentionDays, cfg.Outbox.CleanupInterval, cleanupLog)
	}

	return a.buildRouter()
}

func (a *App) openRepositories() error {
	repos, db, err := OpenRepositories(a.Config.Database)
	if err != nil {
		return err
	}
	a.Repos, a.DB = repos, db
	if db != nil {
		a.closers = append(a.closers, db.Close)
	}
	return nil
}

// OpenRepositories returns seeded in-memory stores, or postgres stores and
// their connection. db is nil for the memory driver.
func OpenRepositories(cfg config.DatabaseConfig) (Repositories, *sqlx.DB, error) {
	if cfg.Driver == "memory" {
		return Repositories{
			Providers:    memory.NewProviderRepository(memory.SeedProviders()),
			Policies:     memory.NewPolicyRepository(memory.SeedPolicies()),
			Claims:       memory.NewClaimRepository(),
			Integrations: memory.NewIntegrationRepository(),
			Outbox:       memory.NewOutboxRepository(),
		}, nil, nil
	}

	db, err := postgres.NewDB(cfg)
	if err != nil {
		return Repositories{}, nil, err
	}
	if cfg.AutoMigrate {
		if err := postgres.Migrate(db); err != nil {
			db.Close()
			return Repositories{}, nil, err
		}
	}

	base := postgres.NewBaseRepository(db)
	return Repositories{
		Providers:    postgres.NewProviderRepository(base),
		Policies:     postgres.NewPolicyRepository(base),
		Claims:       postgres.NewClaimRepository(base),
		Integrations: postgres.NewIntegrationRepository(base),
		Outbox:       postgres.NewOutboxRepository(base),
	}, db, nil
}

// NewLogger builds the application logger from config.
func NewLogger(cfg config.LogConfig) *logger.Logger {
	return logger.NewLogger(&logger.Config{
		Level:      logger.ParseLevel(cfg.Level),
		TimeFormat: time.RFC3339,
		Output:     os.Stdout,
		Console:    cfg.Console,
	})
}

// openBroker falls back to logging events when Redis is disabled.
func (a *App) openBroker() error {
	broker, err := OpenBroker(a.Config.Redis, a.Log)
	if err != nil {
		return err
	}
	a.Broker = broker
	a.closers = append(a.closers, broker.Close)
	return nil
}

// OpenBroker connects to Redis, or returns a logging broker when Redis is disabled.
func OpenBroker(cfg config.RedisConfig, log *logger.Logger) (messaging.Broker, error) {
	if !cfg.Enabled {
		return messaging.NewLogBroker(log), nil
	}
	broker, err := redis.NewRedisBroker(redis.Config{
		URL:          cfg.URL,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	}, log.Zerolog())
	if err != nil {
		return nil, err
	}
	return broker, nil
}

func newMailer(cfg config.MailConfig) email.Service {
	if !cfg.Enabled {
		return email.NewNoopService()
	}
	return email.NewSMTPService(email.Config{
		Host:          cfg.Host,
		Port:          cfg.Port,
		Username:      cfg.Username,
		Password:      cfg.Password,
		From:          cfg.From,
		BillingOffice: cfg.To,
	})
}

func (a *App) buildServices(mailer email.Service) error {
	cfg := a.Config

	key, err := cfg.Security.Key()
	if err != nil {
		return err
	}
	encryptor, err := security.NewAESEncryptor(key)
	if err != nil {
		return err
	}

	a.Providers = providerService.NewService(a.Repos.Providers, cfg.Cache.TTL, cfg.Cache.CleanupInterval)
	a.Policies = policyService.NewService(a.Repos.Policies, a.Providers, a.Audit, a.Metrics)
	a.Claims = claimService.NewService(a.Repos.Claims, a.Repos.Outbox, mailer, a.Audit, a.Metrics, a.Log)

	a.Sandbox = insurer.NewSandbox(cfg.Insurer.SandboxLatency, sandboxFallback(cfg.Insurer, time.Now()))
	gateway := insurer.NewGateway(a.Sandbox, insurer.HTTPConfig{
		Timeout:         cfg.Insurer.Timeout,
		MaxRetries:      cfg.Insurer.MaxRetries,
		BreakerFailures: cfg.Insurer.BreakerFailures,
		BreakerTimeout:  cfg.Insurer.BreakerTimeout,
	})
	a.Integrations = integrationService.NewService(a.Repos.Integrations, a.Providers, gateway, encryptor, a.Audit, a.Metrics)

	operators := make([]authService.Operator, 0, len(cfg.Auth.Operators))
	for _, op := range cfg.Auth.Operators {
		if err := security.CheckHash(op.PasswordHash); err != nil {
			return fmt.Errorf("operator %q: %w", op.Username, err)
		}
		operators = append(operators, authService.Operator{
			Username:     op.Username,
			PasswordHash: op.PasswordHash,
			Role:         op.Role,
		})
	}
	jwtSvc := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Issuer, time.Duration(cfg.JWT.ExpiryHours)*time.Hour)
	a.Auth = authService.NewService(operators, security.NewBcryptHasher(cfg.Security.BcryptCost), jwtSvc, a.Audit)
	return nil
}

// sandboxFallback is the outcome for sandbox members nobody scripted.
func sandboxFallback(cfg config.InsurerConfig, now time.Time) insurer.Outcome {
	fallback := insurer.Outcome{Eligible: cfg.SandboxEligible}
	if cfg.SandboxEligible {
		fallback.Message = "Sandbox member"
		fallback.CoverageLimit = cfg.SandboxCoverage
		fallback.Remaining = cfg.SandboxCoverage
		fallback.ExpiryDate = now.AddDate(1, 0, 0).UTC()
	} else {
		fallback.Message = "Member not eligible in sandbox"
	}
	if cfg.SandboxApprovals {
		fallback.ClaimStatus = model.ClaimStatusApproved
	}
	return fallback
}

func (a *App) buildRouter() error {
	deps := map[string]health.Pinger{"broker": a.Broker}
	if a.DB != nil {
		deps["database"] = health.PingFunc(a.DB.PingContext)
	}

	r, err := router.NewRouter(
		middleware.NewAuthMiddleware(a.Auth),
		middleware.NewAuditMiddleware(a.Audit),
		router.Handlers{
			Auth:        authHandler.NewHandler(a.Auth),
			Health:      health.NewHandler(deps),
			Provider:    providerHandler.NewHandler(a.Providers),
			Policy:      policyHandler.NewHandler(a.Policies),
			Claim:       claimHandler.NewHandler(a.Claims),
			Integration: integrationHandler.NewHandler(a.Integrations),
		},
		a.Metrics,
		a.Log,
		router.RouterConfig{
			RateLimitEnabled: a.Config.RateLimit.Enabled,
			RateLimit:        rate.Limit(a.Config.RateLimit.RequestsPerSecond),
			RateBurst:        a.Config.RateLimit.Burst,
			AllowedOrigins:   a.Config.Server.AllowedOrigins,
			RequestTimeout:   a.Config.Server.RequestTimeout,
			MaxBodyBytes:     a.Config.Server.MaxBodyBytes,
		},
	)
	if err != nil {
		return err
	}
	r.Setup()
	a.Router = r
	return nil
}

// RunWorker drains the outbox until ctx ends, pruning old events alongside.
func (a *App) RunWorker(ctx context.Context) {
	if a.OutboxCleanup != nil {
		go a.OutboxCleanup.Start(ctx)
	}
	a.Outbox.Start(ctx)
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
