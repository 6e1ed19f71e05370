package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/emissions-import/internal/core"
)

type planEntry struct {
	Order     int      `json:"order"`
	Entity    string   `json:"entity"`
	Table     string   `json:"table"`
	Source    string   `json:"source"`
	BatchSize int      `json:"batch_size"`
	DependsOn []string `json:"depends_on,omitempty"`
}

func newPlanCmd(a *app) *cobra.Command {
	var (
		scope   string
		jsonOut bool
	)

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Print the resolved import plan in load order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service()
			if err != nil {
				return err
			}
			steps, err := svc.Plan(scope)
			if err != nil {
				return withCode(exitGeneral, err)
			}

			entries := make([]planEntry, len(steps))
			for i, st := range steps {
				entries[i] = planEntry{
					Order:     i + 1,
					Entity:    st.Schema.Key,
					Table:     st.Schema.Table,
					Source:    st.Source,
					BatchSize: st.BatchSize,
					DependsOn: st.Schema.DependsOn,
				}
			}

			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), entries)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "#\tENTITY\tTABLE\tSOURCE\tBATCH\tDEPENDS ON")
			for _, e := range entries {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%s\n",
					e.Order, e.Entity, e.Table, e.Source, e.BatchSize, strings.Join(e.DependsOn, ","))
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&scope, "scope", core.ScopeAll, "entity key (with its dependents) or \"all\"")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print the plan as JSON")
	return cmd
}
