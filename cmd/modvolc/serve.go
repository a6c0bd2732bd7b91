package main

import (
	"context"
	"errors"
	"net/http"

	"github.com/spf13/cobra"

	httpadapter "github.com/couchcryptid/modvolc-etl/internal/adapter/http"
	"github.com/couchcryptid/modvolc-etl/internal/pipeline"
)

func serveCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Render the report, serve it over HTTP and refresh it on a schedule",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd.Context())
		},
	}
	cmd.Flags().String("addr", "", "listen address (overrides HTTP_ADDR)")
	cmd.Flags().String("refresh", "", "cron schedule for refreshing the report (overrides REFRESH_SCHEDULE)")
	cmd.PreRun = func(cmd *cobra.Command, _ []string) {
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			a.cfg.HTTPAddr = addr
		}
		if schedule, _ := cmd.Flags().GetString("refresh"); schedule != "" {
			a.cfg.RefreshSchedule = schedule
		}
	}
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	cfg, logger := a.cfg, a.logger

	p, cleanup := a.newPipeline(pipeline.OptionsFromConfig(cfg))
	defer cleanup()

	var sched *pipeline.Scheduler
	if cfg.RefreshSchedule != "" {
		s, err := pipeline.NewScheduler(ctx, cfg.RefreshSchedule, p, logger)
		if err != nil {
			return err
		}
		sched = s
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, cfg.OutputRoot, p, a.metrics.Registry, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// First report; /readyz turns ready once it succeeds.
	go func() {
		if _, err := p.Run(ctx); err != nil {
			logger.Error("initial report failed, waiting for next refresh", "error", err)
		}
	}()

	if sched != nil {
		sched.Start()
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if sched != nil {
		sched.Stop(shutdownCtx)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}
