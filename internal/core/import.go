package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/JonMunkholm/emissions-import/internal/logging"
)

// contextCheckInterval is how often (in rows) the loader checks for cancellation.
const contextCheckInterval = 100

// run walks the state machine idle -> deleting -> loading -> done, with
// fatal reachable on connection loss.
func (s *Service) run(ctx context.Context, sess Session, req RunRequest, runID string) (*RunResult, error) {
	scope := scopeName(req.Scope)
	ctx = logging.WithFields(ctx, "run_id", runID, "scope", scope)
	log := logging.FromContext(ctx)

	result := &RunResult{
		RunID:     runID,
		Scope:     scope,
		Phase:     PhaseIdle,
		StartedAt: time.Now(),
	}
	s.updateProgress(func(p *RunProgress) {
		*p = RunProgress{RunID: runID, Phase: PhaseIdle}
	})
	defer func() {
		result.FinishedAt = time.Now()
		s.exportFailedRows(ctx, result)
		s.finish(result)
	}()

	abort := func(err error) (*RunResult, error) {
		result.Phase = PhaseFatal
		result.Error = err.Error()
		log.Error("import aborted", "phase", s.Progress().Phase, "error", err)
		return result, err
	}

	steps, err := s.Plan(req.Scope)
	if err != nil {
		return abort(err)
	}
	log.Info("import started", "entities", len(steps), "keep_going", req.KeepGoing)

	failures := s.preflight(ctx, steps)
	result.HeaderFailures = failures
	if len(failures) > 0 && !req.KeepGoing {
		return abort(joinSchemaErrors(failures))
	}
	rejected := make(map[string]bool, len(failures))
	for _, f := range failures {
		rejected[f.Entity] = true
	}

	// Dependents first.
	result.Phase = PhaseDeleting
	s.updateProgress(func(p *RunProgress) { p.Phase = PhaseDeleting })
	for i := len(steps) - 1; i >= 0; i-- {
		table := steps[i].Schema.Table
		tag, err := sess.Exec(ctx, DeleteAllSQL(table))
		if err != nil {
			if ctx.Err() != nil {
				return abort(ctx.Err())
			}
			if IsConnectionLost(err) || sess.IsClosed() {
				return abort(fmt.Errorf("%w: %w", ErrConnectionLost, err))
			}
			return abort(fmt.Errorf("%w: %s: %s", ErrDeleteFailed, table, DescribeError(err)))
		}
		log.Info("cleared table", "entity", steps[i].Schema.Key, "table", table, "rows", tag.RowsAffected())
	}

	result.Phase = PhaseLoading
	for _, step := range steps {
		if rejected[step.Schema.Key] {
			result.Entities = append(result.Entities, &EntityResult{
				Key:        step.Schema.Key,
				Table:      step.Schema.Table,
				Source:     step.Source,
				Skipped:    true,
				SkipReason: "header validation failed",
			})
			log.Warn("skipping entity", "entity", step.Schema.Key, "reason", "header validation failed")
			continue
		}

		er, err := s.loadEntity(ctx, sess, step)
		result.Entities = append(result.Entities, er)
		// The table is already cleared, so a source that went bad after
		// preflight still fails the run.
		var schemaErr *SchemaError
		if errors.As(err, &schemaErr) {
			result.HeaderFailures = append(result.HeaderFailures, schemaErr)
			continue
		}
		if err != nil {
			return abort(err)
		}
	}

	result.Phase = PhaseDone
	inserted, failedRows, failedChunks := result.Totals()
	log.Info("import finished",
		"rows_inserted", inserted,
		"failed_rows", failedRows,
		"failed_chunks", failedChunks,
		"duration_ms", time.Since(result.StartedAt).Milliseconds(),
	)
	if len(result.HeaderFailures) == 0 {
		return result, nil
	}
	headerErr := joinSchemaErrors(result.HeaderFailures)
	result.Error = headerErr.Error()
	return result, headerErr
}

func joinSchemaErrors(failures []*SchemaError) error {
	errs := make([]error, len(failures))
	for i, f := range failures {
		errs[i] = f
	}
	return errors.Join(errs...)
}

// preflight validates every source header before anything is deleted.
func (s *Service) preflight(ctx context.Context, steps []Step) []*SchemaError {
	var failures []*SchemaError
	for _, st := range steps {
		src, err := OpenSource(st.Source)
		if err != nil {
			failures = append(failures, &SchemaError{Entity: st.Schema.Key, Source: st.Source, Err: err})
			continue
		}
		missing := ValidateHeaders(src.Header().Names(), st.Schema)
		src.Close()
		if len(missing) > 0 {
			failures = append(failures, &SchemaError{Entity: st.Schema.Key, Source: st.Source, Missing: missing})
		}
	}

	log := logging.FromContext(ctx)
	for _, f := range failures {
		log.Error("header validation failed", "entity", f.Entity, "source", f.Source, "error", f.Error())
	}
	return failures
}

// loadEntity streams one source into its table. Row and chunk errors are
// recorded and skipped. A source that can no longer be opened or whose
// header lost a required field is returned as a *SchemaError; connection
// loss, cancellation and builder errors are returned as is.
func (s *Service) loadEntity(ctx context.Context, sess Session, step Step) (*EntityResult, error) {
	start := time.Now()
	schema := step.Schema
	ctx = logging.WithFields(ctx, "entity", schema.Key)
	log := logging.FromContext(ctx)

	er := &EntityResult{Key: schema.Key, Table: schema.Table, Source: step.Source}
	defer func() { er.Duration = time.Since(start) }()

	skip := func(reason string) (*EntityResult, error) {
		er.Skipped = true
		er.SkipReason = reason
		log.Warn("skipping entity", "reason", reason)
		return er, nil
	}

	// The file may have changed since preflight.
	rejectSource := func(schemaErr *SchemaError) (*EntityResult, error) {
		er.Skipped = true
		er.SkipReason = schemaErr.Error()
		log.Error("source changed since header validation", "source", step.Source, "error", schemaErr)
		return er, schemaErr
	}

	src, err := OpenSource(step.Source)
	if err != nil {
		return rejectSource(&SchemaError{Entity: schema.Key, Source: step.Source, Err: err})
	}
	defer src.Close()

	if missing := ValidateHeaders(src.Header().Names(), schema); len(missing) > 0 {
		return rejectSource(&SchemaError{Entity: schema.Key, Source: step.Source, Missing: missing})
	}

	s.updateProgress(func(p *RunProgress) {
		p.Phase = PhaseLoading
		p.Entity = schema.Key
		p.RowsRead = 0
		p.RowsInserted = 0
		p.BytesRead = 0
		p.BytesTotal = src.Size
	})
	log.Info("loading entity", "table", schema.Table, "source", step.Source, "batch_size", step.BatchSize)

	fileName := filepath.Base(step.Source)
	buf := make([]Record, 0, step.BatchSize*s.readChunks)
	chunkIndex := 0

	flush := func() error {
		if len(buf) == 0 {
			return nil
		}
		stmts, err := BuildBatches(schema.Table, buf, step.BatchSize)
		if err != nil {
			return fmt.Errorf("%s: %w", schema.Key, err)
		}
		buf = buf[:0]

		for _, st := range stmts {
			idx := chunkIndex
			chunkIndex++
			er.ChunksAttempted++

			_, err := sess.Exec(ctx, st.SQL, st.Args...)
			if err == nil {
				er.RowsInserted += st.Rows
				s.updateProgress(func(p *RunProgress) { p.RowsInserted = er.RowsInserted })
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}

			cls := ClassifyError(err)
			if cls.Kind == KindConnection || sess.IsClosed() {
				log.Error("connection lost during insert", "chunk", idx, "first_line", st.FirstLine, "error", err)
				return fmt.Errorf("%w: %s chunk %d: %w", ErrConnectionLost, schema.Key, idx, err)
			}

			er.ChunkFailures = append(er.ChunkFailures, ChunkFailure{
				Index:     idx,
				Rows:      st.Rows,
				FirstLine: st.FirstLine,
				LastLine:  st.LastLine,
				Code:      cls.Code,
				Message:   cls.Message,
			})
			log.Error("chunk insert failed",
				"chunk", idx,
				"rows", st.Rows,
				"first_line", st.FirstLine,
				"last_line", st.LastLine,
				"code", cls.Code,
				"error", cls.Message,
			)
		}
		return nil
	}

	for {
		if er.RowsRead%contextCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return er, err
			}
		}

		row, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// The reader cannot resynchronize after a malformed record.
			er.FailedRows = append(er.FailedRows, FailedRow{FileName: fileName, Reason: err.Error()})
			log.Error("stopped reading source", "error", err)
			break
		}
		er.RowsRead++

		if !schema.Filter.Accepts(row) {
			er.RowsFiltered++
			continue
		}

		rec, err := Normalize(row, schema)
		if err != nil {
			er.FailedRows = append(er.FailedRows, FailedRow{
				FileName:   fileName,
				LineNumber: row.Line,
				Reason:     err.Error(),
				Data:       row.Map(),
			})
			log.Warn("skipping row", "line", row.Line, "error", err)
			continue
		}
		er.RowsNormalized++
		buf = append(buf, rec)

		if len(buf) == cap(buf) {
			if err := flush(); err != nil {
				return er, err
			}
			s.updateProgress(func(p *RunProgress) {
				p.RowsRead = er.RowsRead
				p.BytesRead = src.BytesRead()
			})
		}
	}

	if err := flush(); err != nil {
		return er, err
	}
	s.updateProgress(func(p *RunProgress) {
		p.RowsRead = er.RowsRead
		p.BytesRead = src.BytesRead()
	})

	if er.RowsNormalized == 0 {
		return skip("no rows to insert")
	}

	log.Info("entity loaded",
		"rows_read", er.RowsRead,
		"rows_filtered", er.RowsFiltered,
		"rows_inserted", er.RowsInserted,
		"failed_rows", len(er.FailedRows),
		"failed_chunks", len(er.ChunkFailures),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return er, nil
}
