package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/emissions-import/internal/logging"
)

var (
	// ErrConnectionLost aborts a run: the session can no longer execute statements.
	ErrConnectionLost = errors.New("database connection lost")
	// ErrDeleteFailed aborts a run before loading, since loading over stale rows would duplicate them.
	ErrDeleteFailed = errors.New("clearing table failed")
	// ErrNoResult is reported when LastResult is asked for before any run finished.
	ErrNoResult = errors.New("no import has finished yet")
)

// DefaultReadChunks is how many insert chunks are buffered per flush.
const DefaultReadChunks = 10

// Override replaces an entity's source file or batch size for one deployment.
type Override struct {
	Source    string
	BatchSize int
}

// ServiceOptions configures a Service.
type ServiceOptions struct {
	DataDir       string              // Base directory for relative sources
	ReadChunks    int                 // Buffer size in chunks; 0 means DefaultReadChunks
	Overrides     map[string]Override // Keyed by entity key
	FailedRowsDir string              // When set, failed rows are exported after each run
}

// Step is one entity of a resolved import plan.
type Step struct {
	Schema    *EntitySchema
	Source    string // Resolved path
	BatchSize int
}

// Service drives import runs. Runs never overlap.
type Service struct {
	dataDir       string
	readChunks    int
	overrides     map[string]Override
	failedRowsDir string
	guard         *RunGuard

	mu       sync.RWMutex
	progress RunProgress
	last     *RunResult
}

// NewService creates a Service.
func NewService(opts ServiceOptions) *Service {
	if opts.ReadChunks < 1 {
		opts.ReadChunks = DefaultReadChunks
	}
	return &Service{
		dataDir:       opts.DataDir,
		readChunks:    opts.ReadChunks,
		overrides:     opts.Overrides,
		failedRowsDir: opts.FailedRowsDir,
		guard:         NewRunGuard(),
		progress:      RunProgress{Phase: PhaseIdle},
	}
}

// Plan resolves scope into ordered steps with sources and batch sizes.
func (s *Service) Plan(scope string) ([]Step, error) {
	for key := range s.overrides {
		if _, ok := Get(key); !ok {
			return nil, fmt.Errorf("plan override: %w: %q", ErrUnknownEntity, key)
		}
	}

	schemas, err := Scope(scope)
	if err != nil {
		return nil, err
	}

	steps := make([]Step, 0, len(schemas))
	for _, sc := range schemas {
		st := Step{Schema: sc, Source: sc.Source, BatchSize: sc.BatchSize}
		if o, ok := s.overrides[sc.Key]; ok {
			if o.Source != "" {
				st.Source = o.Source
			}
			if o.BatchSize > 0 {
				st.BatchSize = o.BatchSize
			}
		}
		if !filepath.IsAbs(st.Source) {
			st.Source = filepath.Join(s.dataDir, st.Source)
		}
		if st.BatchSize*len(sc.Fields) > MaxBindParameters {
			return nil, fmt.Errorf("%s: %w: batch size %d x %d columns",
				sc.Key, ErrTooManyParameters, st.BatchSize, len(sc.Fields))
		}
		steps = append(steps, st)
	}
	return steps, nil
}

// Check validates the headers of every source in scope without touching
// the database.
func (s *Service) Check(ctx context.Context, scope string) ([]*SchemaError, error) {
	steps, err := s.Plan(scope)
	if err != nil {
		return nil, err
	}
	return s.preflight(ctx, steps), nil
}

// Run executes one import on sess. It returns ErrImportInProgress if
// another run is active.
func (s *Service) Run(ctx context.Context, sess Session, req RunRequest) (*RunResult, error) {
	runID := uuid.NewString()
	if !s.guard.TryAcquire(runID) {
		return nil, ErrImportInProgress
	}
	defer s.guard.Release()

	return s.run(ctx, sess, req, runID)
}

// Execute acquires a session from conn and runs one import on it.
func (s *Service) Execute(ctx context.Context, conn Connector, req RunRequest) (*RunResult, error) {
	runID := uuid.NewString()
	if !s.guard.TryAcquire(runID) {
		return nil, ErrImportInProgress
	}
	defer s.guard.Release()

	return s.runWith(ctx, conn, req, runID)
}

// Start launches an import in the background and returns its run id.
// Scope errors and a busy guard are reported synchronously.
func (s *Service) Start(ctx context.Context, conn Connector, req RunRequest) (string, error) {
	if _, err := s.Plan(req.Scope); err != nil {
		return "", err
	}

	runID := uuid.NewString()
	if !s.guard.TryAcquire(runID) {
		return "", ErrImportInProgress
	}

	go func() {
		defer s.guard.Release()
		defer func() {
			if r := recover(); r != nil {
				slog.Error("panic in import run", "run_id", runID, "panic", r)
			}
		}()
		// Failures are already logged and stored as the last result.
		_, _ = s.runWith(ctx, conn, req, runID)
	}()

	return runID, nil
}

func (s *Service) runWith(ctx context.Context, conn Connector, req RunRequest, runID string) (*RunResult, error) {
	var result *RunResult
	err := conn.WithSession(ctx, func(sess Session) error {
		var runErr error
		result, runErr = s.run(ctx, sess, req, runID)
		return runErr
	})
	if result == nil && err != nil {
		logging.FromContext(ctx).Error("import could not start", "run_id", runID, "error", err)
		s.finish(&RunResult{
			RunID:      runID,
			Scope:      scopeName(req.Scope),
			Phase:      PhaseFatal,
			StartedAt:  time.Now(),
			FinishedAt: time.Now(),
			Error:      err.Error(),
		})
	}
	return result, err
}

// Wait blocks until the active run, if any, finishes.
func (s *Service) Wait(ctx context.Context) error {
	return s.guard.WaitForDrain(ctx)
}

// Running reports the guard state.
func (s *Service) Running() RunGuardStatus {
	return s.guard.Status()
}

// Progress returns a snapshot of the current or last run.
func (s *Service) Progress() RunProgress {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.progress
}

// LastResult returns the most recent finished run, or nil.
func (s *Service) LastResult() *RunResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

func (s *Service) updateProgress(fn func(p *RunProgress)) {
	s.mu.Lock()
	fn(&s.progress)
	s.progress.UpdatedAt = time.Now()
	s.mu.Unlock()
}

func (s *Service) finish(result *RunResult) {
	s.mu.Lock()
	s.last = result
	s.progress.RunID = result.RunID
	s.progress.Phase = result.Phase
	s.progress.UpdatedAt = time.Now()
	s.mu.Unlock()
}

func scopeName(scope string) string {
	if scope == "" {
		return ScopeAll
	}
	return scope
}
