package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/emissions-import/internal/core"
	"github.com/JonMunkholm/emissions-import/internal/db"
	"github.com/JonMunkholm/emissions-import/internal/web"
)

func newServeCmd(a *app) *cobra.Command {
	var runOnStart bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and run scheduled imports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), a, runOnStart)
		},
	}

	cmd.Flags().BoolVar(&runOnStart, "run-on-start", false, "run one scheduled import immediately")
	return cmd
}

func serve(ctx context.Context, a *app, runOnStart bool) error {
	cfg := a.cfg
	if err := cfg.RequireDatabase(); err != nil {
		return withCode(exitGeneral, err)
	}

	svc, err := a.service()
	if err != nil {
		return err
	}

	pool, err := db.Connect(ctx, cfg.Database)
	if err != nil {
		return withCode(exitConnectionLost, err)
	}
	defer pool.Close()

	slog.Info("entities registered", "count", core.EntityCount(), "keys", core.Keys())

	server := web.NewServer(svc, pool, pool, cfg.Server)

	jobCtx, cancelJobs := context.WithCancel(context.Background())
	defer cancelJobs()
	schedDone := make(chan struct{})
	if cfg.Import.Schedule != "" {
		go func() {
			defer close(schedDone)
			err := svc.StartImportScheduler(jobCtx, pool, core.ScheduleConfig{
				Spec:       cfg.Import.Schedule,
				Scope:      cfg.Import.Scope,
				KeepGoing:  cfg.Import.KeepGoing,
				RunOnStart: runOnStart,
			})
			if err != nil {
				slog.Error("scheduler failed", "error", err)
			}
		}()
	} else {
		close(schedDone)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			cancelJobs()
			return withCode(exitGeneral, err)
		}
	case <-ctx.Done():
	}

	slog.Info("shutting down...")
	cancelJobs()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}

	if status := svc.Running(); status.Active {
		slog.Info("waiting for import to complete", "run_id", status.RunID)
		if err := svc.Wait(shutdownCtx); err != nil {
			slog.Warn("import did not complete in time", "error", err)
		} else {
			slog.Info("import completed")
		}
	}

	select {
	case <-schedDone:
	case <-shutdownCtx.Done():
	}
	return nil
}
