package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"adacta/internal/config"
	"adacta/internal/daemon"
	"adacta/internal/index"
	"adacta/internal/logging"
	"adacta/internal/pipeline"
	"adacta/internal/testsupport"
)

type cliTestEnv struct {
	cfg   *config.Config
	addr  string
	token string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t,
		testsupport.WithAPIToken("cli-secret"),
		testsupport.WithStubbedBinaries(),
	)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}

	store := testsupport.MustOpenStorage(t, cfg)
	ix, err := index.Open(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("index.Open: %v", err)
	}

	pipe, err := pipeline.New(cfg, store, logging.NewNop(),
		pipeline.NewTextTransform(cfg),
		pipeline.NewThumbnailTransform(cfg),
		pipeline.NewIndexTransform(ix),
	)
	if err != nil {
		t.Fatalf("pipeline.New: %v", err)
	}

	d, err := daemon.New(cfg, store, ix, pipe, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("daemon.Start: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	return &cliTestEnv{cfg: cfg, addr: d.APIAddr(), token: "cli-secret"}
}

func runCLI(t *testing.T, env *cliTestEnv, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{"--addr", env.addr, "--token", env.token}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func waitForCLI(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(25 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func uploadDocument(t *testing.T, env *cliTestEnv, name, content string, tags ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write document: %v", err)
	}
	args := []string{"upload", path}
	for _, tag := range tags {
		args = append(args, "--tag", tag)
	}
	out, _, err := runCLI(t, env, args...)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	requireContains(t, out, "Uploaded "+name+" as ")
	fields := strings.Fields(strings.TrimSpace(out))
	return fields[len(fields)-1]
}

func TestCLIUploadListShow(t *testing.T) {
	env := setupCLITestEnv(t)

	id := uploadDocument(t, env, "invoice.pdf", "%PDF-1.4 invoice body", "finance")

	out, _, err := runCLI(t, env, "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	requireContains(t, out, id)
	requireContains(t, out, "finance")

	out, _, err = runCLI(t, env, "show", id)
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	requireContains(t, out, "ID:        "+id)
	requireContains(t, out, "finance")
	requireContains(t, out, "source_filename = invoice.pdf")
}

func TestCLISearchAndInboxReviewFlow(t *testing.T) {
	env := setupCLITestEnv(t)

	id := uploadDocument(t, env, "receipt.pdf", "%PDF-1.4 receipt body", "Finance")

	waitForCLI(t, "document to reach the catalog", func() bool {
		out, _, err := runCLI(t, env, "search", "--tag", "finance")
		return err == nil && strings.Contains(out, id)
	})

	out, _, err := runCLI(t, env, "inbox")
	if err != nil {
		t.Fatalf("inbox: %v", err)
	}
	requireContains(t, out, id)

	out, _, err = runCLI(t, env, "review", id)
	if err != nil {
		t.Fatalf("review: %v", err)
	}
	requireContains(t, out, "Reviewed "+id)

	out, _, err = runCLI(t, env, "inbox")
	if err != nil {
		t.Fatalf("inbox after review: %v", err)
	}
	requireContains(t, out, "Inbox is empty")
}

func TestCLITagCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	id := uploadDocument(t, env, "contract.pdf", "%PDF-1.4 contract body")

	out, _, err := runCLI(t, env, "tag", id, "--add", "legal", "--set", "counterparty=Acme")
	if err != nil {
		t.Fatalf("tag: %v", err)
	}
	requireContains(t, out, "legal")
	requireContains(t, out, "counterparty = Acme")

	out, _, err = runCLI(t, env, "tag", id, "--remove", "legal")
	if err != nil {
		t.Fatalf("tag --remove: %v", err)
	}
	if strings.Contains(out, "Tags:") {
		t.Fatalf("expected no tags after removal, got %q", out)
	}

	if _, _, err := runCLI(t, env, "tag", id); err == nil {
		t.Fatal("expected error for tag with no changes")
	}
}

func TestCLIFetchAndRemove(t *testing.T) {
	env := setupCLITestEnv(t)

	id := uploadDocument(t, env, "report.pdf", "%PDF-1.4 report body")

	out, _, err := runCLI(t, env, "fetch", id, "document.pdf")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	requireContains(t, out, "%PDF-1.4 report body")

	target := filepath.Join(t.TempDir(), "copy.pdf")
	_, _, err = runCLI(t, env, "fetch", id, "document.pdf", "-o", target)
	if err != nil {
		t.Fatalf("fetch -o: %v", err)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read fetched copy: %v", err)
	}
	if string(data) != "%PDF-1.4 report body" {
		t.Fatalf("unexpected fetched content %q", data)
	}

	out, _, err = runCLI(t, env, "rm", id)
	if err != nil {
		t.Fatalf("rm: %v", err)
	}
	requireContains(t, out, "Deleted "+id)

	out, _, err = runCLI(t, env, "list")
	if err != nil {
		t.Fatalf("list after rm: %v", err)
	}
	requireContains(t, out, "Archive is empty")
}

func TestCLIRequeueAndStatus(t *testing.T) {
	env := setupCLITestEnv(t)

	id := uploadDocument(t, env, "memo.pdf", "%PDF-1.4 memo body")

	out, _, err := runCLI(t, env, "requeue", id)
	if err != nil {
		t.Fatalf("requeue: %v", err)
	}
	requireContains(t, out, "No dead-lettered stages")

	out, _, err = runCLI(t, env, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "== Daemon ==")
	requireContains(t, out, "text")
	requireContains(t, out, "thumbnail")
	requireContains(t, out, "index")
}

func TestCLIRejectsBadToken(t *testing.T) {
	env := setupCLITestEnv(t)
	env.token = "wrong"

	if _, _, err := runCLI(t, env, "list"); err == nil {
		t.Fatal("expected list with bad token to fail")
	}
}
