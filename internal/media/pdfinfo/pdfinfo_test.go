package pdfinfo

import (
	"os"
	"path/filepath"
	"testing"
)

func TestInspectEmptyPath(t *testing.T) {
	if _, err := Inspect("  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestInspectRejectsNonPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.pdf")
	if err := os.WriteFile(path, []byte("plain text, not a pdf"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Inspect(path); err == nil {
		t.Fatal("expected error for non-PDF content")
	}
}

func TestLooksLikePDF(t *testing.T) {
	dir := t.TempDir()

	pdf := filepath.Join(dir, "real.pdf")
	if err := os.WriteFile(pdf, []byte("%PDF-1.7 rest of file"), 0o644); err != nil {
		t.Fatal(err)
	}
	if !LooksLikePDF(pdf) {
		t.Fatal("expected %PDF header to be recognized")
	}

	text := filepath.Join(dir, "fake.pdf")
	if err := os.WriteFile(text, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}
	if LooksLikePDF(text) {
		t.Fatal("expected plain text to be rejected")
	}
	if LooksLikePDF(filepath.Join(dir, "missing.pdf")) {
		t.Fatal("expected missing file to be rejected")
	}
}
