package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"budgetbuddy/internal/cli"
	apphttp "budgetbuddy/internal/http"
	"budgetbuddy/internal/log"
	"budgetbuddy/internal/metrics"
)

const shutdownTimeout = 30 * time.Second

func serveCmd(g *globals) *cobra.Command {
	opts := apphttp.DefaultOptions()
	var origins []string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the connectivity monitor",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(origins) > 0 {
				opts.AllowOrigins = origins
			}
			return runServe(cmd.Context(), g, opts)
		},
	}
	cmd.Flags().StringSliceVar(&origins, "allow-origin", nil, "CORS allowed origin (repeatable, default *)")
	cmd.Flags().IntVar(&opts.RequestsPerMinute, "rate-limit", opts.RequestsPerMinute, "Requests per minute per client on /api")
	return cmd
}

func runServe(parent context.Context, g *globals, opts apphttp.Options) error {
	if parent == nil {
		parent = context.Background()
	}
	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}
	logger := cli.SetupLogger(cfg)

	ctx, cancel := cli.SignalContext(parent, logger)
	defer cancel()

	a, err := cli.Build(ctx, cfg, logger, metrics.New())
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error("Backend cleanup failed", log.FieldError, err)
		}
	}()

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Dashboard:  a.Dashboard,
		Mutations:  a.Mutations,
		Reconciler: a.Reconciler,
		Queue:      a.Queue,
		Session:    a.Session,
		Events:     a.Events,
		Pinger:     a.Records,
		Metrics:    a.Metrics,
		Logger:     logger.WithComponent(log.ComponentHTTP),
	}, opts)

	if err := a.Monitor.Start(ctx); err != nil {
		return err
	}

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("Starting budgetbuddy server",
			"port", cfg.Port,
			"records", cfg.RecordBackend,
			"cache", cfg.CacheBackend,
			"notify", cfg.NotifyBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-gctx.Done()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()

		var errs []error
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
			errs = append(errs, err)
		}
		if err := a.Monitor.Stop(shutdownCtx); err != nil {
			logger.Error("Monitor shutdown error", log.FieldError, err)
			errs = append(errs, err)
		}
		return errors.Join(errs...)
	})

	if err := group.Wait(); err != nil {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		return err
	}
	logger.Info("Server stopped gracefully")
	return nil
}
