package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/emissions-import/internal/config"
	"github.com/JonMunkholm/emissions-import/internal/core"
	_ "github.com/JonMunkholm/emissions-import/internal/core/tables" // Register all entities
	"github.com/JonMunkholm/emissions-import/internal/logging"
)

// app carries state shared by subcommands after the root pre-run.
type app struct {
	envFiles []string
	logLevel string
	dataDir  string
	planFile string

	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:           "emissions-import",
		Short:         "Load the emissions CSV dataset into PostgreSQL",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}

	cmd.PersistentFlags().StringSliceVar(&a.envFiles, "env-file", []string{".env"}, "dotenv files to load (real env wins)")
	cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override LOG_LEVEL (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&a.dataDir, "data-dir", "", "override IMPORT_DATA_DIR")
	cmd.PersistentFlags().StringVar(&a.planFile, "plan", "", "override IMPORT_PLAN_FILE")

	cmd.AddCommand(newRunCmd(a))
	cmd.AddCommand(newCheckCmd(a))
	cmd.AddCommand(newPlanCmd(a))
	cmd.AddCommand(newServeCmd(a))
	return cmd
}

func (a *app) setup() error {
	if _, err := config.LoadDotEnv(a.envFiles...); err != nil {
		return withCode(exitGeneral, err)
	}

	cfg, err := config.Load()
	if err != nil {
		return withCode(exitGeneral, err)
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	if a.dataDir != "" {
		cfg.Import.DataDir = a.dataDir
	}
	if a.planFile != "" {
		cfg.Import.PlanFile = a.planFile
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Debug("configuration loaded", "config", cfg.String())

	a.cfg = cfg
	return nil
}

// service builds the import service from the loaded configuration.
func (a *app) service() (*core.Service, error) {
	plan, err := config.LoadPlan(a.cfg.Import.PlanFile)
	if err != nil {
		return nil, withCode(exitGeneral, err)
	}
	return core.NewService(core.ServiceOptions{
		DataDir:       a.cfg.Import.DataDir,
		ReadChunks:    a.cfg.Import.ReadChunks,
		Overrides:     plan.Overrides(),
		FailedRowsDir: a.cfg.Import.FailedRowsDir,
	}), nil
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		code := exitCode(err)
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(code)
	}
}
