package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/emissions-import/internal/core"
	"github.com/JonMunkholm/emissions-import/internal/db"
)

type runOptions struct {
	scope         string
	keepGoing     bool
	failedRowsDir string
	json          bool
}

func newRunCmd(a *app) *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Replace the tables in scope with the contents of their CSV sources",
		Long: `Validates every source header, clears the tables in reverse dependency
order and loads each entity in dependency order.

Rows that fail to normalize and chunks rejected by the database are reported
and skipped. Header failures exit 2, a lost connection exits 3.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("failed-rows-dir") {
				a.cfg.Import.FailedRowsDir = opts.failedRowsDir
			}
			if !cmd.Flags().Changed("scope") {
				opts.scope = a.cfg.Import.Scope
			}
			if !cmd.Flags().Changed("keep-going") {
				opts.keepGoing = a.cfg.Import.KeepGoing
			}
			return runImport(cmd, a, opts)
		},
	}

	cmd.Flags().StringVar(&opts.scope, "scope", core.ScopeAll, "entity key to load (with its dependents) or \"all\"")
	cmd.Flags().BoolVar(&opts.keepGoing, "keep-going", false, "load entities whose headers validated even when others failed")
	cmd.Flags().StringVar(&opts.failedRowsDir, "failed-rows-dir", "", "write rejected rows as CSV under this directory")
	cmd.Flags().BoolVar(&opts.json, "json", false, "print the run result as JSON")
	return cmd
}

func runImport(cmd *cobra.Command, a *app, opts runOptions) error {
	ctx := cmd.Context()

	svc, err := a.service()
	if err != nil {
		return err
	}
	// Resolve the plan before connecting so scope typos fail fast.
	if _, err := svc.Plan(opts.scope); err != nil {
		return withCode(exitGeneral, err)
	}
	if err := a.cfg.RequireDatabase(); err != nil {
		return withCode(exitGeneral, err)
	}

	pool, err := db.Connect(ctx, a.cfg.Database)
	if err != nil {
		return withCode(exitConnectionLost, err)
	}
	defer pool.Close()

	result, runErr := svc.Execute(ctx, pool, core.RunRequest{Scope: opts.scope, KeepGoing: opts.keepGoing})
	if result != nil {
		if opts.json {
			if err := writeJSON(cmd.OutOrStdout(), result); err != nil {
				return withCode(exitGeneral, err)
			}
		} else {
			printResult(cmd.OutOrStdout(), result)
		}
	}
	if runErr != nil {
		return runError(fmt.Errorf("import %s: %w", opts.scope, runErr))
	}
	return nil
}
