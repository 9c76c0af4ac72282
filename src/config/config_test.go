package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"RESULTS_SERVER", "RESULTDB_HOST", "BB_PATH", "LUCI_AUTH_PATH",
		"RESULTS_HTTP_TIMEOUT", "RESULTS_RETRIES", "REDPANDA_BROKERS", "RESULTS_DEBUG",
	} {
		t.Setenv(key, "")
	}
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yml"))
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if diff := cmp.Diff(defaults(), cfg); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_File(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, `
results_server: https://results.example.test
retries: 2
http_timeout: 10s
brokers: [localhost:9092]
watch:
  builders: [linux-rel, mac-rel]
  try_jobs: true
  interval: 1m
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}

	want := defaults()
	want.ResultsServer = "https://results.example.test"
	want.Retries = 2
	want.HTTPTimeout = 10 * time.Second
	want.Brokers = []string{"localhost:9092"}
	want.Watch.Builders = []string{"linux-rel", "mac-rel"}
	want.Watch.TryJobs = true
	want.Watch.Interval = time.Minute
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "results_server: https://file.example.test\nretries: 1\n")

	t.Setenv("RESULTS_SERVER", "https://env.example.test")
	t.Setenv("RESULTS_RETRIES", "5")
	t.Setenv("REDPANDA_BROKERS", "a:9092, b:9092,")
	t.Setenv("RESULTS_DEBUG", "true")
	t.Setenv("BB_PATH", "/opt/bb")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if cfg.ResultsServer != "https://env.example.test" {
		t.Errorf("ResultsServer = %q", cfg.ResultsServer)
	}
	if cfg.Retries != 5 {
		t.Errorf("Retries = %d, want 5", cfg.Retries)
	}
	if diff := cmp.Diff([]string{"a:9092", "b:9092"}, cfg.Brokers); diff != "" {
		t.Errorf("Brokers mismatch (-want +got):\n%s", diff)
	}
	if !cfg.Debug || cfg.BBPath != "/opt/bb" {
		t.Errorf("Debug = %v, BBPath = %q", cfg.Debug, cfg.BBPath)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		file string
		env  map[string]string
	}{
		{name: "malformed yaml", file: "retries: [1"},
		{name: "negative retries", file: "retries: -1"},
		{name: "empty server", file: `results_server: ""`},
		{name: "bad timeout env", env: map[string]string{"RESULTS_HTTP_TIMEOUT": "soon"}},
		{name: "bad retries env", env: map[string]string{"RESULTS_RETRIES": "many"}},
		{name: "bad debug env", env: map[string]string{"RESULTS_DEBUG": "verbose"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := writeFile(t, tt.file)

			if _, err := Load(path); err == nil {
				t.Error("Load() expected error, got nil")
			}
		})
	}
}

func TestLoadFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("RESULTDB_HOST", "resultdb.example.test")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() unexpected error: %v", err)
	}
	if cfg.ResultDBHost != "resultdb.example.test" {
		t.Errorf("ResultDBHost = %q", cfg.ResultDBHost)
	}
	if cfg.ResultsServer != DefaultResultsServer {
		t.Errorf("ResultsServer = %q, want default", cfg.ResultsServer)
	}
}
