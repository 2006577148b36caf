// Command claimsctl runs operational tasks against the claims store.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/jwalitptl/claims-api/internal/app"
	"github.com/jwalitptl/claims-api/internal/config"
	"github.com/jwalitptl/claims-api/internal/model"
	"github.com/jwalitptl/claims-api/internal/repository/memory"
	"github.com/jwalitptl/claims-api/internal/repository/postgres"
	"github.com/jwalitptl/claims-api/internal/service/audit"
	policyService "github.com/jwalitptl/claims-api/internal/service/policy"
	providerService "github.com/jwalitptl/claims-api/internal/service/provider"
	"github.com/jwalitptl/claims-api/pkg/messaging"
	"github.com/jwalitptl/claims-api/pkg/metrics"
	"github.com/jwalitptl/claims-api/pkg/security"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "claimsctl",
		Short:         "Operations tool for the claims API",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("CLAIMS_CONFIG"), "path to config.yml")

	load := func() (*config.Config, error) {
		_ = godotenv.Load()
		return config.LoadConfig(configPath)
	}

	root.AddCommand(migrateCmd(load), seedCmd(load), verifyCmd(load), workerCmd(load), watchCmd(load), hashPasswordCmd(load))
	return root
}

type loader func() (*config.Config, error)

func postgresOnly(cfg *config.Config) error {
	if cfg.Database.Driver != "postgres" {
		return fmt.Errorf("database.driver is %q; this command needs postgres", cfg.Database.Driver)
	}
	return nil
}

func migrateCmd(load loader) *cobra.Command {
	var down int

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if err := postgresOnly(cfg); err != nil {
				return err
			}

			db, err := postgres.NewDB(cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			if down > 0 {
				if err := postgres.MigrateDown(db, down); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "rolled back %d migration(s)\n", down)
				return nil
			}
			if err := postgres.Migrate(db); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
	cmd.Flags().IntVar(&down, "down", 0, "roll back this many migrations instead of applying")
	return cmd
}

func seedCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load reference providers and policies",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if err := postgresOnly(cfg); err != nil {
				return err
			}

			db, err := postgres.NewDB(cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			providers, policies := memory.SeedProviders(), memory.SeedPolicies()
			base := postgres.NewBaseRepository(db)
			if err := base.SeedReferenceData(cmd.Context(), providers, policies); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d providers and %d policies\n", len(providers), len(policies))
			return nil
		},
	}
}

func verifyCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <policy-number> <amount>",
		Short: "Verify a policy can cover an amount",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("amount must be a number: %w", err)
			}

			cfg, err := load()
			if err != nil {
				return err
			}
			repos, db, err := app.OpenRepositories(cfg.Database)
			if err != nil {
				return err
			}
			if db != nil {
				defer db.Close()
			}

			auditLogger, err := audit.NewLogger(cfg.Audit.Path)
			if err != nil {
				return err
			}
			auditor := audit.NewService(auditLogger)
			defer auditor.Sync()

			providers := providerService.NewService(repos.Providers, cfg.Cache.TTL, cfg.Cache.CleanupInterval)
			svc := policyService.NewService(repos.Policies, providers, auditor, metrics.New("claimsctl"))

			ctx := audit.WithActor(cmd.Context(), "claimsctl")
			result, err := svc.Verify(ctx, args[0], amount)
			if err != nil {
				return err
			}

			status := "VALID"
			if !result.Valid {
				status = "INVALID"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", status, result.Message)
			if !result.Valid {
				cmd.SilenceErrors = true
				return errors.New(result.Message)
			}
			return nil
		},
	}
}

func workerCmd(load loader) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run the outbox worker without the API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if err := postgresOnly(cfg); err != nil {
				return err
			}

			logger := app.NewLogger(cfg.Log)
			a, err := app.New(cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			mux := http.NewServeMux()
			mux.Handle("/metrics", a.Metrics.Handler())
			mux.HandleFunc("/health/live", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			})
			srv := &http.Server{Addr: addr, Handler: mux}
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error(err, "worker metrics server stopped")
				}
			}()
			defer srv.Shutdown(context.Background())

			logger.Info("outbox worker started", "metrics_addr", addr)
			a.RunWorker(ctx)
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "metrics-addr", ":8081", "address for /metrics and /health/live")
	return cmd
}

func watchCmd(load loader) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print claim events as the outbox publishes them",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if !cfg.Redis.Enabled {
				return errors.New("redis.enabled is false; events are only logged")
			}

			broker, err := app.OpenBroker(cfg.Redis, app.NewLogger(cfg.Log))
			if err != nil {
				return err
			}
			defer broker.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			ctx, cancel := context.WithCancel(ctx)
			defer cancel()

			events := make(chan []byte)
			for _, channel := range []string{model.EventClaimSubmitted, model.EventClaimDecided} {
				msgs, err := broker.Subscribe(ctx, channel)
				if err != nil {
					return err
				}
				go func() {
					for raw := range msgs {
						select {
						case events <- raw:
						case <-ctx.Done():
							return
						}
					}
				}()
			}

			seen := 0
			for {
				select {
				case <-ctx.Done():
					return nil
				case raw := <-events:
					var msg messaging.Message
					if err := json.Unmarshal(raw, &msg); err != nil {
						fmt.Fprintf(cmd.ErrOrStderr(), "skipping malformed event: %v\n", err)
						continue
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s %s\n", msg.OccurredAt.Format(time.RFC3339), msg.Type, msg.ID, msg.Payload)
					seen++
					if limit > 0 && seen >= limit {
						return nil
					}
				}
			}
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "exit after this many events; 0 watches until interrupted")
	return cmd
}

func hashPasswordCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password <password>",
		Short: "Print a bcrypt hash for an operator entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cost := 0
			if cfg, err := load(); err == nil {
				cost = cfg.Security.BcryptCost
			}
			hash, err := security.NewBcryptHasher(cost).Hash(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}
