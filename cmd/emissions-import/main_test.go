package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/emissions-import/internal/config"
	"github.com/JonMunkholm/emissions-import/internal/core"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, exitOK},
		{"plain error", errors.New("boom"), exitGeneral},
		{"header validation", runError(fmt.Errorf("load: %w", core.ErrHeaderValidation)), exitHeaderValidation},
		{"connection lost", runError(fmt.Errorf("insert: %w", core.ErrConnectionLost)), exitConnectionLost},
		{"other run error", runError(errors.New("syntax")), exitGeneral},
		{"wrapped cli error", fmt.Errorf("outer: %w", withCode(exitConnectionLost, errors.New("dial"))), exitConnectionLost},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}

func TestWithCode_Nil(t *testing.T) {
	assert.NoError(t, withCode(exitGeneral, nil))
	assert.NoError(t, runError(nil))
}

// execute runs the root command against an isolated environment.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	for _, k := range []string{"DATABASE_URL", "DB_URL", "IMPORT_PLAN_FILE", "IMPORT_SCHEDULE", "IMPORT_FAILED_ROWS_DIR"} {
		t.Setenv(k, "")
	}

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	base := []string{"--env-file", filepath.Join(t.TempDir(), "missing.env"), "--log-level", "error"}
	cmd.SetArgs(append(args[:1:1], append(base, args[1:]...)...))
	err := cmd.Execute()
	return out.String(), err
}

func TestPlanCommand_JSON(t *testing.T) {
	dir := t.TempDir()
	out, err := execute(t, "plan", "--data-dir", dir, "--json")
	require.NoError(t, err)

	var entries []planEntry
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	require.Len(t, entries, 4)
	assert.Equal(t, "company", entries[0].Entity)
	assert.Equal(t, filepath.Join(dir, "companies.csv"), entries[0].Source)
	for i, e := range entries {
		assert.Equal(t, i+1, e.Order)
	}
}

func TestPlanCommand_UnknownScope(t *testing.T) {
	_, err := execute(t, "plan", "--data-dir", t.TempDir(), "--scope", "nope")
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrUnknownEntity)
	assert.Equal(t, exitGeneral, exitCode(err))
}

func TestCheckCommand_MissingSources(t *testing.T) {
	out, err := execute(t, "check", "--data-dir", t.TempDir())
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrHeaderValidation)
	assert.Equal(t, exitHeaderValidation, exitCode(err))
	assert.Contains(t, out, "FAIL company")
}

func TestRunCommand_RequiresDatabase(t *testing.T) {
	_, err := execute(t, "run", "--data-dir", t.TempDir())
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrNoDatabaseURL)
	assert.Equal(t, exitGeneral, exitCode(err))
}
