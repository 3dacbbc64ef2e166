package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"adacta/internal/config"
)

func TestLoadDefaultsExpandPathsAndEnvToken(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("ADACTA_API_TOKEN", "secret-token")
	t.Chdir(tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantStorage := filepath.Join(tempHome, ".local", "share", "adacta", "storage")
	if cfg.Paths.StorageDir != wantStorage {
		t.Fatalf("unexpected storage dir: got %q want %q", cfg.Paths.StorageDir, wantStorage)
	}
	if cfg.Paths.PipelineDir != filepath.Join(tempHome, ".local", "share", "adacta", "pipeline") {
		t.Fatalf("unexpected pipeline dir: %q", cfg.Paths.PipelineDir)
	}
	if cfg.Paths.APIBind != "127.0.0.1:7590" {
		t.Fatalf("unexpected api bind: %q", cfg.Paths.APIBind)
	}
	if cfg.Paths.APIToken != "secret-token" {
		t.Fatalf("expected api token from env, got %q", cfg.Paths.APIToken)
	}
	if cfg.Tools.PdftotextBin != "pdftotext" {
		t.Fatalf("unexpected pdftotext binary: %q", cfg.Tools.PdftotextBin)
	}
	if cfg.Tools.ThumbnailHeight != 1024 {
		t.Fatalf("unexpected thumbnail height: %d", cfg.Tools.ThumbnailHeight)
	}
	if cfg.Workflow.QueuePollInterval != 5 {
		t.Fatalf("unexpected poll interval: %d", cfg.Workflow.QueuePollInterval)
	}
	if cfg.Workflow.MaxAttempts != 0 {
		t.Fatalf("expected unlimited retries by default, got %d", cfg.Workflow.MaxAttempts)
	}
	if cfg.Ingest.Enabled {
		t.Fatal("expected ingest disabled by default")
	}
	if cfg.Logging.Format != "console" || cfg.Logging.Level != "info" {
		t.Fatalf("unexpected logging defaults: %+v", cfg.Logging)
	}
}

func TestLoadParsesFileAndNormalizes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "adacta.toml")
	content := `
[paths]
storage_dir = "` + filepath.Join(dir, "storage") + `"
pipeline_dir = "` + filepath.Join(dir, "pipeline") + `"
log_dir = "` + filepath.Join(dir, "logs") + `"

[workflow]
max_attempts = 8
retry_backoff = 30

[ingest]
enabled = true
dir = "` + filepath.Join(dir, "drop") + `"
extensions = ["PDF", ".pdf", " .Png "]

[logging]
format = "JSON"
level = "DEBUG"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected resolved existing path %q, got %q (%v)", path, resolved, exists)
	}
	if cfg.Workflow.MaxAttempts != 8 || cfg.Workflow.RetryBackoff != 30 {
		t.Fatalf("unexpected workflow settings: %+v", cfg.Workflow)
	}
	if got := cfg.Ingest.Extensions; len(got) != 2 || got[0] != ".pdf" || got[1] != ".png" {
		t.Fatalf("extensions not normalized: %v", got)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "debug" {
		t.Fatalf("logging not normalized: %+v", cfg.Logging)
	}
}

func TestValidateRejectsSharedDirectories(t *testing.T) {
	cfg := config.Default()
	dir := t.TempDir()
	cfg.Paths.StorageDir = dir
	cfg.Paths.PipelineDir = dir
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "must differ") {
		t.Fatalf("expected shared-directory error, got %v", err)
	}
}

func TestWriteSampleReplacesExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("stale = true\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := config.WriteSample(path); err != nil {
		t.Fatalf("WriteSample: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "[paths]") {
		t.Fatalf("sample config missing [paths] section")
	}
	if strings.Contains(string(data), "stale") {
		t.Fatalf("stale content survived the rewrite: %q", data)
	}
}

func TestEnsureDirectories(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Paths.StorageDir = filepath.Join(dir, "storage")
	cfg.Paths.PipelineDir = filepath.Join(dir, "pipeline")
	cfg.Paths.LogDir = filepath.Join(dir, "logs")
	cfg.Paths.IndexPath = filepath.Join(dir, "index", "index.db")
	cfg.Ingest.Enabled = true
	cfg.Ingest.Dir = filepath.Join(dir, "drop")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	for _, want := range []string{cfg.Paths.StorageDir, cfg.Paths.PipelineDir, cfg.Paths.LogDir, filepath.Dir(cfg.Paths.IndexPath), cfg.Ingest.Dir} {
		if info, err := os.Stat(want); err != nil || !info.IsDir() {
			t.Fatalf("expected directory %q: %v", want, err)
		}
	}
}
