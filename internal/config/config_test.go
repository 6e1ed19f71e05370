package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/test")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Server.Host = %q, want %q", cfg.Server.Host, "0.0.0.0")
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 8080)
	}
	if cfg.Database.MaxConns != 4 {
		t.Errorf("Database.MaxConns = %d, want %d", cfg.Database.MaxConns, 4)
	}
	if cfg.Database.ConnectTimeout != 10*time.Second {
		t.Errorf("Database.ConnectTimeout = %v, want %v", cfg.Database.ConnectTimeout, 10*time.Second)
	}
	if cfg.Import.DataDir != "./data" {
		t.Errorf("Import.DataDir = %q, want %q", cfg.Import.DataDir, "./data")
	}
	if cfg.Import.ReadChunks != 10 {
		t.Errorf("Import.ReadChunks = %d, want %d", cfg.Import.ReadChunks, 10)
	}
	if cfg.Import.Scope != "all" {
		t.Errorf("Import.Scope = %q, want %q", cfg.Import.Scope, "all")
	}
	if cfg.Import.Schedule != "" {
		t.Errorf("Import.Schedule = %q, want empty", cfg.Import.Schedule)
	}
}

func TestLoadFrom_OverrideDefaults(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{
		"DATABASE_URL":           "postgres://localhost/test",
		"SERVER_PORT":            "9090",
		"IMPORT_READ_CHUNKS":     "3",
		"IMPORT_KEEP_GOING":      "true",
		"IMPORT_SCHEDULE":        "0 3 * * *",
		"LOG_LEVEL":              "debug",
		"SERVER_READ_TIMEOUT":    "45s",
		"SERVER_API_KEYS":        "k1,k2",
		"IMPORT_FAILED_ROWS_DIR": "/tmp/failed",
	})
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 9090)
	}
	if cfg.Import.ReadChunks != 3 {
		t.Errorf("Import.ReadChunks = %d, want %d", cfg.Import.ReadChunks, 3)
	}
	if !cfg.Import.KeepGoing {
		t.Error("Import.KeepGoing = false, want true")
	}
	if cfg.Import.Schedule != "0 3 * * *" {
		t.Errorf("Import.Schedule = %q", cfg.Import.Schedule)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
	if cfg.Server.ReadTimeout != 45*time.Second {
		t.Errorf("Server.ReadTimeout = %v, want %v", cfg.Server.ReadTimeout, 45*time.Second)
	}
	if len(cfg.Server.APIKeys) != 2 || cfg.Server.APIKeys[1] != "k2" {
		t.Errorf("Server.APIKeys = %v, want [k1 k2]", cfg.Server.APIKeys)
	}
	if cfg.Import.FailedRowsDir != "/tmp/failed" {
		t.Errorf("Import.FailedRowsDir = %q", cfg.Import.FailedRowsDir)
	}
}

func TestLoadFrom_FallbackURL(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{"DB_URL": "postgres://localhost/alttest"})
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	if cfg.Database.URL != "postgres://localhost/alttest" {
		t.Errorf("Database.URL = %q, want %q", cfg.Database.URL, "postgres://localhost/alttest")
	}

	cfg, err = LoadFrom(map[string]string{
		"DATABASE_URL": "postgres://localhost/primary",
		"DB_URL":       "postgres://localhost/alttest",
	})
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	if cfg.Database.URL != "postgres://localhost/primary" {
		t.Errorf("DATABASE_URL should win, got %q", cfg.Database.URL)
	}
}

func TestRequireDatabase(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{})
	if err != nil {
		t.Fatalf("LoadFrom() error = %v (a missing URL is only checked on demand)", err)
	}
	if err := cfg.RequireDatabase(); !errors.Is(err, ErrNoDatabaseURL) {
		t.Errorf("RequireDatabase() = %v, want ErrNoDatabaseURL", err)
	}

	cfg.Database.URL = "postgres://localhost/test"
	if err := cfg.RequireDatabase(); err != nil {
		t.Errorf("RequireDatabase() = %v, want nil", err)
	}
}

func TestLoadFrom_InvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		vars    map[string]string
		wantErr string
	}{
		{
			name:    "unparseable duration",
			vars:    map[string]string{"DB_CONNECT_TIMEOUT": "soon"},
			wantErr: "config load",
		},
		{
			name:    "bad port",
			vars:    map[string]string{"SERVER_PORT": "70000"},
			wantErr: "SERVER_PORT",
		},
		{
			name:    "bad schedule",
			vars:    map[string]string{"IMPORT_SCHEDULE": "every tuesday"},
			wantErr: "IMPORT_SCHEDULE",
		},
		{
			name:    "bad log level",
			vars:    map[string]string{"LOG_LEVEL": "verbose"},
			wantErr: "LOG_LEVEL",
		},
		{
			name:    "zero read chunks",
			vars:    map[string]string{"IMPORT_READ_CHUNKS": "0"},
			wantErr: "IMPORT_READ_CHUNKS",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFrom(tt.vars)
			if err == nil {
				t.Fatal("LoadFrom() expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_ReportsAllProblems(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{})
	if err != nil {
		t.Fatal(err)
	}
	cfg.Server.Port = 0
	cfg.Logging.Format = "xml"
	cfg.Import.DataDir = ""

	err = cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error")
	}
	for _, want := range []string{"SERVER_PORT", "LOG_FORMAT", "IMPORT_DATA_DIR"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error missing %s:\n%v", want, err)
		}
	}
}

func TestString_MasksURL(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{"DATABASE_URL": "postgres://admin:hunter2@db/prod"})
	if err != nil {
		t.Fatal(err)
	}
	s := cfg.String()
	if strings.Contains(s, "hunter2") || strings.Contains(s, "admin") {
		t.Errorf("String() leaks credentials: %s", s)
	}
	if !strings.Contains(s, "[MASKED]") {
		t.Errorf("String() = %s, want masked URL", s)
	}
}

func TestServerConfig_Addr(t *testing.T) {
	c := ServerConfig{Host: "127.0.0.1", Port: 8081}
	if got := c.Addr(); got != "127.0.0.1:8081" {
		t.Errorf("Addr() = %q", got)
	}
	c = ServerConfig{Host: "::1", Port: 80}
	if got := c.Addr(); got != "[::1]:80" {
		t.Errorf("Addr() = %q", got)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("EMISSIONS_TEST_A=from-file\nEMISSIONS_TEST_B=from-file\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("EMISSIONS_TEST_A", "from-env")
	t.Cleanup(func() { os.Unsetenv("EMISSIONS_TEST_B") })

	n, err := LoadDotEnv(path, filepath.Join(dir, "missing.env"))
	if err != nil {
		t.Fatalf("LoadDotEnv() error = %v", err)
	}
	if n != 1 {
		t.Errorf("loaded %d files, want 1", n)
	}
	if got := os.Getenv("EMISSIONS_TEST_A"); got != "from-env" {
		t.Errorf("real env should win, got %q", got)
	}
	if got := os.Getenv("EMISSIONS_TEST_B"); got != "from-file" {
		t.Errorf("EMISSIONS_TEST_B = %q, want from-file", got)
	}
}
