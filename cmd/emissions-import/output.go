package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/JonMunkholm/emissions-import/internal/core"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("json encode: %w", err)
	}
	return nil
}

// printResult writes a per-entity summary followed by the recovered errors.
func printResult(w io.Writer, r *core.RunResult) {
	fmt.Fprintf(w, "run %s (%s): %s in %s\n",
		r.RunID, r.Scope, r.Phase, r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ENTITY\tREAD\tFILTERED\tINSERTED\tFAILED ROWS\tFAILED CHUNKS\tNOTE")
	for _, e := range r.Entities {
		note := ""
		if e.Skipped {
			note = "skipped: " + e.SkipReason
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\t%s\n",
			e.Key, e.RowsRead, e.RowsFiltered, e.RowsInserted, len(e.FailedRows), len(e.ChunkFailures), note)
	}
	tw.Flush()

	for _, f := range r.HeaderFailures {
		fmt.Fprintf(w, "header: %v\n", f)
	}
	for _, e := range r.Entities {
		for _, fr := range e.FailedRows {
			fmt.Fprintf(w, "%s %s:%d: %s\n", e.Key, fr.FileName, fr.LineNumber, fr.Reason)
		}
		for _, cf := range e.ChunkFailures {
			fmt.Fprintf(w, "%s chunk %d (lines %d-%d, %d rows): [%s] %s\n",
				e.Key, cf.Index, cf.FirstLine, cf.LastLine, cf.Rows, cf.Code, cf.Message)
		}
	}
	if r.Error != "" {
		fmt.Fprintf(w, "error: %s\n", r.Error)
	}
}
