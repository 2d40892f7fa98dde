package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/evreg/internal/catalog"
	"github.com/alfredjeanlab/evreg/internal/config"
	"github.com/alfredjeanlab/evreg/internal/events"
	"github.com/alfredjeanlab/evreg/internal/reconcile"
	"github.com/alfredjeanlab/evreg/internal/registration"
	"github.com/alfredjeanlab/evreg/internal/server"
)

var serveCmd = &cobra.Command{
	Use:               "serve",
	Short:             "Start the evreg HTTP and gRPC servers",
	GroupID:           "system",
	Args:              cobra.NoArgs,
	PersistentPreRunE: noClient,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		logger := cfg.NewLogger(os.Stderr)
		slog.SetDefault(logger)

		ctx := context.Background()

		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		logger.Info("store opened", "backend", cfg.Store)

		cat := catalog.New(st, catalog.Options{OverfetchFactor: cfg.ListOverfetch, Logger: logger})
		if cfg.SeedFile != "" {
			created, skipped, err := seedEvents(ctx, cat, cfg.SeedFile)
			if err != nil {
				st.Close()
				return err
			}
			logger.Info("seed loaded", "file", cfg.SeedFile, "created", created, "skipped", skipped)
		}

		// Registrations fan out to stream clients and, when configured, NATS.
		hub := server.NewHub()
		publisher := events.MultiPublisher{hub}
		if cfg.NATSURL != "" {
			pub, err := events.NewNATSPublisher(cfg.NATSURL)
			if err != nil {
				st.Close()
				return err
			}
			publisher = append(publisher, pub)
			logger.Info("nats events enabled", "nats_url", cfg.NATSURL)
		} else {
			logger.Info("nats events disabled (" + config.EnvPrefix + "NATS_URL not set)")
		}

		engine := registration.New(st, registration.Options{
			CaseInsensitiveEmail: !cfg.EmailCaseSensitive,
			MaxCASAttempts:       cfg.CASAttempts,
			Publisher:            publisher,
			Logger:               logger,
		})
		srv := server.New(cat, engine, server.Options{
			Hub:            hub,
			Logger:         logger,
			RequestTimeout: cfg.RequestTimeout,
		})
		grpcServer := srv.NewGRPCServer()

		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			publisher.Close()
			st.Close()
			return err
		}
		go func() {
			logger.Info("gRPC server listening", "addr", cfg.GRPCAddr)
			if err := grpcServer.Serve(lis); err != nil {
				logger.Error("gRPC server error", "err", err)
			}
		}()

		httpServer := &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           srv.NewHTTPHandler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("HTTP server error", "err", err)
			}
		}()

		var scheduler *reconcile.Scheduler
		if cfg.ReconcileInterval > 0 {
			sweeper := reconcile.NewSweeper(cat, publisher, logger)
			scheduler = reconcile.NewScheduler(sweeper, reportDestinations(ctx, cfg, logger), cfg.ReconcileInterval, logger)
			scheduler.Start()
			logger.Info("reconcile scheduler started", "interval", cfg.ReconcileInterval)
		}

		logger.Info("evreg server started",
			"grpc_addr", cfg.GRPCAddr,
			"http_addr", cfg.HTTPAddr,
		)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig)

		if scheduler != nil {
			scheduler.Stop()
			logger.Info("reconcile scheduler stopped")
		}

		// Closing the hub ends open streams so the HTTP shutdown can drain.
		hub.Close()

		grpcServer.GracefulStop()
		logger.Info("gRPC server stopped")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", "err", err)
		}
		logger.Info("HTTP server stopped")

		if err := publisher.Close(); err != nil {
			logger.Error("error closing publisher", "err", err)
		}
		if err := st.Close(); err != nil {
			logger.Error("error closing store", "err", err)
		}

		logger.Info("shutdown complete")
		return nil
	},
}

// reportDestinations builds the configured report targets. A destination
// that fails to initialize is logged and left out.
func reportDestinations(ctx context.Context, cfg *config.Config, logger *slog.Logger) []reconcile.Destination {
	var dests []reconcile.Destination
	if cfg.ReportS3Bucket != "" {
		d, err := reconcile.NewS3Destination(ctx, cfg.ReportS3Bucket, cfg.ReportS3Key, cfg.ReportS3Region, cfg.ReportS3Endpoint)
		if err != nil {
			logger.Error("failed to create S3 report destination", "err", err)
		} else {
			dests = append(dests, d)
			logger.Info("report S3 destination enabled", "bucket", cfg.ReportS3Bucket, "key", cfg.ReportS3Key)
		}
	}
	if cfg.ReportFile != "" {
		dests = append(dests, reconcile.NewFileDestination(cfg.ReportFile))
		logger.Info("report file destination enabled", "path", cfg.ReportFile)
	}
	return dests
}
