package web

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/JonMunkholm/emissions-import/internal/core"
)

// EntityResponse describes one step of the import plan.
type EntityResponse struct {
	Key           string   `json:"key"`
	Label         string   `json:"label"`
	Table         string   `json:"table"`
	Source        string   `json:"source"`
	BatchSize     int      `json:"batch_size"`
	Required      []string `json:"required"`
	Columns       []string `json:"columns"`
	Discriminator string   `json:"discriminator,omitempty"`
	DependsOn     []string `json:"depends_on,omitempty"`
}

// CheckResponse is the outcome of a header preflight.
type CheckResponse struct {
	OK       bool                `json:"ok"`
	Failures []*core.SchemaError `json:"failures,omitempty"`
}

// ProgressResponse combines the run snapshot with the guard state.
type ProgressResponse struct {
	Progress core.RunProgress    `json:"progress"`
	Guard    core.RunGuardStatus `json:"guard"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health.Healthy(r.Context()); err != nil {
			writeJSON(w, r, http.StatusServiceUnavailable, map[string]string{
				"status": "unavailable",
				"error":  core.DescribeError(err),
			})
			return
		}
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListEntities(w http.ResponseWriter, r *http.Request) {
	steps, err := s.service.Plan(core.ScopeAll)
	if err != nil {
		respondError(w, r, err, http.StatusInternalServerError)
		return
	}

	resp := make([]EntityResponse, len(steps))
	for i, st := range steps {
		resp[i] = EntityResponse{
			Key:           st.Schema.Key,
			Label:         st.Schema.Label,
			Table:         st.Schema.Table,
			Source:        st.Source,
			BatchSize:     st.BatchSize,
			Required:      st.Schema.RequiredFields(),
			Columns:       st.Schema.Columns(),
			Discriminator: st.Schema.Discriminator,
			DependsOn:     st.Schema.DependsOn,
		}
	}
	writeJSON(w, r, http.StatusOK, resp)
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	failures, err := s.service.Check(r.Context(), scopeParam(r))
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, r, http.StatusOK, CheckResponse{OK: len(failures) == 0, Failures: failures})
}

func (s *Server) handleStartImport(w http.ResponseWriter, r *http.Request) {
	keepGoing := false
	if v := r.URL.Query().Get("keep_going"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			respondError(w, r, errors.New("keep_going must be a boolean"), http.StatusBadRequest)
			return
		}
		keepGoing = b
	}

	// The run outlives the request but keeps its logger values.
	ctx := context.WithoutCancel(r.Context())
	runID, err := s.service.Start(ctx, s.conn, core.RunRequest{Scope: scopeParam(r), KeepGoing: keepGoing})
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	w.Header().Set("Location", "/imports/progress")
	writeJSON(w, r, http.StatusAccepted, map[string]string{"run_id": runID})
}

func (s *Server) handleLastResult(w http.ResponseWriter, r *http.Request) {
	result := s.service.LastResult()
	if result == nil {
		msg := core.MapError(core.ErrNoResult)
		writeJSON(w, r, http.StatusNotFound, ErrorResponse{
			Error:   core.ErrNoResult.Error(),
			Message: msg.Message,
			Action:  msg.Action,
			Code:    msg.Code,
		})
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, ProgressResponse{
		Progress: s.service.Progress(),
		Guard:    s.service.Running(),
	})
}

func scopeParam(r *http.Request) string {
	if scope := r.URL.Query().Get("scope"); scope != "" {
		return scope
	}
	return core.ScopeAll
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrUnknownEntity):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrImportInProgress):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
