package core

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/JonMunkholm/emissions-import/internal/logging"
)

// WriteFailedRows writes one CSV per entity with rejected rows into dir:
// <entity>_failed_rows.csv with line, reason and the original columns.
// Returns the paths written.
func WriteFailedRows(dir string, result *RunResult) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create failed rows dir: %w", err)
	}

	var written []string
	for _, er := range result.Entities {
		if len(er.FailedRows) == 0 {
			continue
		}
		path := filepath.Join(dir, er.Key+"_failed_rows.csv")
		if err := writeFailedRowsFile(path, er.FailedRows); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}

func writeFailedRowsFile(path string, rows []FailedRow) error {
	// Union of original columns, sorted for a stable header.
	seen := make(map[string]bool)
	var columns []string
	for _, r := range rows {
		for k := range r.Data {
			if !seen[k] {
				seen[k] = true
				columns = append(columns, k)
			}
		}
	}
	sort.Strings(columns)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(append([]string{"line", "reason"}, columns...)); err != nil {
		return err
	}
	for _, r := range rows {
		rec := make([]string, 0, len(columns)+2)
		rec = append(rec, fmt.Sprint(r.LineNumber), r.Reason)
		for _, c := range columns {
			rec = append(rec, r.Data[c])
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func (s *Service) exportFailedRows(ctx context.Context, result *RunResult) {
	if s.failedRowsDir == "" {
		return
	}
	if _, failed, _ := result.Totals(); failed == 0 {
		return
	}

	dir := filepath.Join(s.failedRowsDir, result.RunID)
	paths, err := WriteFailedRows(dir, result)
	log := logging.FromContext(ctx)
	if err != nil {
		log.Error("export failed rows", "dir", dir, "error", err)
		return
	}
	log.Info("exported failed rows", "files", paths)
}
