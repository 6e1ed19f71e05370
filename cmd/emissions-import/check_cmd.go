package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/emissions-import/internal/core"
)

func newCheckCmd(a *app) *cobra.Command {
	var (
		scope   string
		jsonOut bool
	)

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate source headers without touching the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service()
			if err != nil {
				return err
			}
			failures, err := svc.Check(cmd.Context(), scope)
			if err != nil {
				return withCode(exitGeneral, err)
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				if err := writeJSON(out, failures); err != nil {
					return withCode(exitGeneral, err)
				}
			} else if len(failures) == 0 {
				fmt.Fprintln(out, "all headers valid")
			} else {
				for _, f := range failures {
					fmt.Fprintf(out, "FAIL %s (%s): %v\n", f.Entity, f.Source, f)
				}
			}

			if len(failures) > 0 {
				return withCode(exitHeaderValidation,
					fmt.Errorf("%w: %d source(s) failed", core.ErrHeaderValidation, len(failures)))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&scope, "scope", core.ScopeAll, "entity key to check (with its dependents) or \"all\"")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print failures as JSON")
	return cmd
}
