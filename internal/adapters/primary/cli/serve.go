package cli

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"iris-model-pipeline/internal/adapters/primary/http/handlers"
	"iris-model-pipeline/internal/adapters/primary/http/middleware"
	"iris-model-pipeline/internal/core/domain"
	"iris-model-pipeline/internal/core/services"
)

func (a *app) serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve predictions from the Production model over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd.Context())
		},
	}
}

func newRouter(h *handlers.Handler) *gin.Engine {
	router := gin.New()
	router.Use(middleware.RequestID(), middleware.Logging(), gin.Recovery())

	h.RegisterRoutes(router.Group("/api/v1"))
	router.GET("/healthz", h.Healthz)
	return router
}

func (a *app) serve(ctx context.Context) error {
	predictionSvc := services.NewPredictionService(a.registryService(), domain.StageProduction)
	if _, err := predictionSvc.Reload(ctx); err != nil {
		log.WithError(err).Warn("no Production model loaded at startup; POST /api/v1/reload once one is promoted")
	}

	if a.cfg.Logger.Level != "debug" && !a.verbose {
		gin.SetMode(gin.ReleaseMode)
	}
	router := newRouter(handlers.New(predictionSvc))

	addr := fmt.Sprintf("%s:%d", a.cfg.Server.Host, a.cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("starting server on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced shutdown: %w", err)
	}

	log.Info("server stopped")
	return nil
}
