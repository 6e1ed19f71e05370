package core

// scheduler.go runs imports on a cron schedule.
//
// The scheduler is long-running and context-aware for graceful shutdown.
// A failed run is logged and the schedule continues; a trigger that fires
// while an import is still running is skipped.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// ScheduleConfig holds configuration for scheduled imports.
type ScheduleConfig struct {
	Spec       string // Standard 5-field cron expression or descriptor ("@daily")
	Scope      string // Defaults to ScopeAll
	KeepGoing  bool
	RunOnStart bool
}

// ParseSchedule validates a cron expression.
func ParseSchedule(spec string) (cron.Schedule, error) {
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return sched, nil
}

// StartImportScheduler runs imports on cfg.Spec until ctx is cancelled.
// It blocks; run it in its own goroutine.
func (s *Service) StartImportScheduler(ctx context.Context, conn Connector, cfg ScheduleConfig) error {
	sched, err := ParseSchedule(cfg.Spec)
	if err != nil {
		return err
	}

	cronLog := cron.PrintfLogger(slog.NewLogLogger(slog.Default().Handler(), slog.LevelDebug))
	c := cron.New(cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)))
	c.Schedule(sched, cron.FuncJob(func() { s.runScheduledImport(ctx, conn, cfg) }))

	slog.Info("import scheduler started",
		"schedule", cfg.Spec,
		"scope", scopeName(cfg.Scope),
		"next_run", sched.Next(time.Now()),
	)

	if cfg.RunOnStart {
		s.runScheduledImport(ctx, conn, cfg)
	}

	c.Start()
	<-ctx.Done()

	// Stop waits for a job already in flight.
	<-c.Stop().Done()
	slog.Info("import scheduler stopped")
	return nil
}

// runScheduledImport performs one scheduled run.
func (s *Service) runScheduledImport(ctx context.Context, conn Connector, cfg ScheduleConfig) {
	if ctx.Err() != nil {
		return
	}
	start := time.Now()
	slog.Debug("scheduled import triggered", "scope", scopeName(cfg.Scope))

	result, err := s.Execute(ctx, conn, RunRequest{Scope: cfg.Scope, KeepGoing: cfg.KeepGoing})
	switch {
	case errors.Is(err, ErrImportInProgress):
		slog.Info("scheduled import skipped", "reason", err.Error())
	case err != nil:
		slog.Error("scheduled import failed", "error", err, "duration_ms", time.Since(start).Milliseconds())
	default:
		inserted, failedRows, failedChunks := result.Totals()
		slog.Info("scheduled import completed",
			"run_id", result.RunID,
			"rows_inserted", inserted,
			"failed_rows", failedRows,
			"failed_chunks", failedChunks,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}
