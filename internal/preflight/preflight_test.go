package preflight

import (
	"os"
	"path/filepath"
	"testing"

	"adacta/internal/config"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckDiskSpace(t *testing.T) {
	result := CheckDiskSpace("test", t.TempDir())
	if result.Detail == "" {
		t.Fatal("expected detail with free-space summary")
	}
}

func TestCheckSystemDepsReportsMissingBinaries(t *testing.T) {
	cfg := config.Default()
	cfg.Tools.PdftotextBin = "definitely-not-a-real-pdftotext"
	cfg.Tools.ConvertBin = "definitely-not-a-real-convert"

	statuses := CheckSystemDeps(&cfg)
	if len(statuses) != 2 {
		t.Fatalf("expected 2 statuses, got %d", len(statuses))
	}
	for _, status := range statuses {
		if status.Available {
			t.Fatalf("expected %s to be unavailable", status.Name)
		}
	}
}

func TestRunAllFailsOnMissingDirectories(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.StorageDir = filepath.Join(base, "missing-storage")
	cfg.Paths.PipelineDir = filepath.Join(base, "missing-pipeline")
	cfg.Paths.LogDir = filepath.Join(base, "missing-logs")
	cfg.Paths.IndexPath = filepath.Join(base, "missing-index", "index.db")

	results := RunAll(&cfg)
	if len(results) == 0 {
		t.Fatal("expected results")
	}
	if AllPassed(results) {
		t.Fatal("expected at least one failing check for missing directories")
	}
}
