package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/claims-api/internal/app"
	"github.com/jwalitptl/claims-api/internal/config"
)

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig(os.Getenv("CLAIMS_CONFIG"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger := app.NewLogger(cfg.Log)
	gin.SetMode(gin.ReleaseMode)

	a, err := app.New(cfg, logger)
	if err != nil {
		logger.Fatal(err, "failed to initialise application")
	}
	defer a.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      a.Router.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.RunWorker(ctx)
	}()

	go func() {
		logger.Info("starting server", "port", cfg.Server.Port, "driver", cfg.Database.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(err, "server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error(err, "server forced to shutdown")
	}
	wg.Wait()

	logger.Info("server exited properly")
}
