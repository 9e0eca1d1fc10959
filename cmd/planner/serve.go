package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"travelmap/internal/api"
	"travelmap/internal/config"
	"travelmap/internal/metrics"
	"travelmap/internal/publisher"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the trip API and re-run trips on edit notifications",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return serve(cfg)
		},
	}
}

func serve(cfg *config.Config) error {
	// Root context with cancellation on SIGINT/SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sqlDB, store, err := openStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	// Metrics setup
	var mcol *metrics.Collector
	if cfg.MetricsAddr != "" {
		mcol = metrics.NewCollector(cfg.RefreshInterval)
		srv := mcol.Serve(cfg.MetricsAddr)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	var pub *publisher.NATSPublisher
	if cfg.NATSURL != "" {
		pub, err = publisher.NewNATSPublisher(cfg.NATSURL, cfg.NATSSubjectPrefix, cfg.LogNATSSubjects, wrapPublisherMetrics(mcol))
		if err != nil {
			return err
		}
		defer pub.Close()
	} else {
		log.Printf("NATS_URL not set, timelines are not published")
	}

	mgr := newManager(store, newRunner(cfg, false, mcol), pub, cfg, mcol)
	if pub != nil {
		if err := mgr.StartListener(ctx, pub); err != nil {
			return err
		}
	}
	// Re-run every trip periodically so failed route lookups are retried
	mgr.StartRefresher(ctx)

	gin.SetMode(gin.ReleaseMode)
	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: api.SetupRouter(mgr)}
	errCh := make(chan error, 1)
	go func() {
		log.Printf("api listening on %s", cfg.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Block until cancelled or the server fails
	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			log.Printf("api server error: %v", err)
		}
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	_ = httpSrv.Shutdown(shutdownCtx)
	// Allow in-flight runs to persist
	mgr.Stop()
	log.Println("shutdown complete")
	return nil
}
