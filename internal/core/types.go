package core

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// Session is the single database connection a run uses exclusively.
// Satisfied by *pgx.Conn.
type Session interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	IsClosed() bool
}

// Connector hands out an exclusive Session for the duration of fn.
type Connector interface {
	WithSession(ctx context.Context, fn func(Session) error) error
}

// FieldType represents the expected data type for a source field.
type FieldType int

const (
	FieldString FieldType = iota
	FieldInteger
	FieldFloat
	FieldDate
	FieldBoolean
)

func (t FieldType) String() string {
	switch t {
	case FieldInteger:
		return "integer"
	case FieldFloat:
		return "float"
	case FieldDate:
		return "date"
	case FieldBoolean:
		return "boolean"
	default:
		return "string"
	}
}

// FieldSpec declares one column of an entity.
type FieldSpec struct {
	Name     string    // Canonical (snake_case) name, also the database column
	Type     FieldType // Defaults to FieldString
	Required bool      // Header must be present in the source
}

// PostgreSQL caps bind parameters per statement at 65535.
const MaxBindParameters = 65535

// EntitySchema describes one target table and where its rows come from.
type EntitySchema struct {
	Key           string      // Unique identifier: "company"
	Label         string      // Display name: "Companies"
	Table         string      // Target table, optionally schema-qualified
	Source        string      // File name relative to the data directory
	Fields        []FieldSpec // Ordered, unique by name
	Filter        Predicate   // Optional row predicate over raw values
	Discriminator string      // Raw column the filter splits a shared source on
	BatchSize     int         // Max rows per insert statement
	DependsOn     []string    // Keys of entities this one references
}

// Columns returns the field names in declaration order.
func (s *EntitySchema) Columns() []string {
	cols := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		cols[i] = f.Name
	}
	return cols
}

// RequiredFields returns the names of fields whose header must be present.
// A discriminator column is required too: without it the filter rejects
// every row.
func (s *EntitySchema) RequiredFields() []string {
	var req []string
	for _, f := range s.Fields {
		if f.Required {
			req = append(req, f.Name)
		}
	}
	if s.Discriminator != "" {
		if name := CanonicalName(s.Discriminator); !slices.Contains(req, name) {
			req = append(req, name)
		}
	}
	return req
}

// Validate checks the schema is usable for loading.
func (s *EntitySchema) Validate() error {
	var errs []error
	if s.Key == "" {
		errs = append(errs, errors.New("key is required"))
	}
	if s.Table == "" {
		errs = append(errs, errors.New("table is required"))
	}
	if s.Source == "" {
		errs = append(errs, errors.New("source is required"))
	}
	if len(s.Fields) == 0 {
		errs = append(errs, errors.New("at least one field is required"))
	}

	seen := make(map[string]bool, len(s.Fields))
	for _, f := range s.Fields {
		switch {
		case f.Name == "":
			errs = append(errs, errors.New("field name is required"))
		case CanonicalName(f.Name) != f.Name:
			errs = append(errs, fmt.Errorf("field %q is not canonical (want %q)", f.Name, CanonicalName(f.Name)))
		case seen[f.Name]:
			errs = append(errs, fmt.Errorf("duplicate field %q", f.Name))
		}
		seen[f.Name] = true
	}

	if s.BatchSize < 1 {
		errs = append(errs, fmt.Errorf("batch size must be positive, got %d", s.BatchSize))
	} else if len(s.Fields)*s.BatchSize > MaxBindParameters {
		errs = append(errs, fmt.Errorf("batch size %d binds %d parameters, limit is %d",
			s.BatchSize, len(s.Fields)*s.BatchSize, MaxBindParameters))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("entity %q: %w", s.Key, err)
	}
	return nil
}

// Record is a normalized row bound to its schema. Values holds exactly one
// entry per schema field, in field order; nil is SQL NULL.
type Record struct {
	Schema *EntitySchema
	Line   int
	Values []any
}

// Get returns the value of a named field.
func (r Record) Get(name string) (any, bool) {
	for i, f := range r.Schema.Fields {
		if f.Name == name {
			return r.Values[i], true
		}
	}
	return nil, false
}

// RunPhase is a state of the import state machine.
type RunPhase string

const (
	PhaseIdle     RunPhase = "idle"
	PhaseDeleting RunPhase = "deleting"
	PhaseLoading  RunPhase = "loading"
	PhaseDone     RunPhase = "done"
	PhaseFatal    RunPhase = "fatal"
)

// ScopeAll selects every registered entity.
const ScopeAll = "all"

// RunRequest selects what a run loads.
type RunRequest struct {
	Scope     string // ScopeAll or an entity key
	KeepGoing bool   // Load entities whose headers validated even if others failed
}

// RunProgress is a snapshot of an in-flight run.
type RunProgress struct {
	RunID        string    `json:"run_id,omitempty"`
	Phase        RunPhase  `json:"phase"`
	Entity       string    `json:"entity,omitempty"`
	RowsRead     int       `json:"rows_read"`
	RowsInserted int       `json:"rows_inserted"`
	BytesRead    int64     `json:"bytes_read"`
	BytesTotal   int64     `json:"bytes_total"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// FailedRow records a source row that could not be loaded.
type FailedRow struct {
	FileName   string            `json:"file_name"`
	LineNumber int               `json:"line_number"`
	Reason     string            `json:"reason"`
	Data       map[string]string `json:"data,omitempty"`
}

// ChunkFailure records an insert statement the database rejected.
type ChunkFailure struct {
	Index     int    `json:"index"`
	Rows      int    `json:"rows"`
	FirstLine int    `json:"first_line"`
	LastLine  int    `json:"last_line"`
	Code      string `json:"code,omitempty"`
	Message   string `json:"message"`
}

// EntityResult aggregates the outcome of loading one entity.
type EntityResult struct {
	Key             string         `json:"key"`
	Table           string         `json:"table"`
	Source          string         `json:"source"`
	RowsRead        int            `json:"rows_read"`
	RowsFiltered    int            `json:"rows_filtered"`
	RowsNormalized  int            `json:"rows_normalized"`
	RowsInserted    int            `json:"rows_inserted"`
	ChunksAttempted int            `json:"chunks_attempted"`
	Skipped         bool           `json:"skipped"`
	SkipReason      string         `json:"skip_reason,omitempty"`
	FailedRows      []FailedRow    `json:"failed_rows,omitempty"`
	ChunkFailures   []ChunkFailure `json:"chunk_failures,omitempty"`
	Duration        time.Duration  `json:"duration"`
}

// HasErrors reports whether any row or chunk of the entity failed.
func (e *EntityResult) HasErrors() bool {
	return len(e.FailedRows) > 0 || len(e.ChunkFailures) > 0
}

// RunResult is the outcome of one import run.
type RunResult struct {
	RunID          string          `json:"run_id"`
	Scope          string          `json:"scope"`
	Phase          RunPhase        `json:"phase"`
	StartedAt      time.Time       `json:"started_at"`
	FinishedAt     time.Time       `json:"finished_at"`
	Entities       []*EntityResult `json:"entities"`
	HeaderFailures []*SchemaError  `json:"header_failures,omitempty"`
	Error          string          `json:"error,omitempty"`
}

// Entity returns the result for key, or nil.
func (r *RunResult) Entity(key string) *EntityResult {
	for _, e := range r.Entities {
		if e.Key == key {
			return e
		}
	}
	return nil
}

// Totals sums inserted rows, failed rows and failed chunks across entities.
func (r *RunResult) Totals() (inserted, failedRows, failedChunks int) {
	for _, e := range r.Entities {
		inserted += e.RowsInserted
		failedRows += len(e.FailedRows)
		failedChunks += len(e.ChunkFailures)
	}
	return inserted, failedRows, failedChunks
}
