package pipeline_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"adacta/internal/logging"
	"adacta/internal/pipeline"
	"adacta/internal/storage"
	"adacta/internal/testsupport"
)

type stubTransform struct {
	name string

	mu       sync.Mutex
	calls    int
	failures int
	err      error
	hook     func(*storage.Bundle)
}

func newStubTransform(name string) *stubTransform {
	return &stubTransform{name: name}
}

func (s *stubTransform) Name() string { return s.name }

func (s *stubTransform) Process(_ context.Context, bundle *storage.Bundle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.failures > 0 {
		s.failures--
		return errors.New("stub failure")
	}
	if s.err != nil {
		return s.err
	}
	if s.hook != nil {
		s.hook(bundle)
	}
	return nil
}

func (s *stubTransform) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *stubTransform) setError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.After(30 * time.Second)
	for {
		if cond() {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %s", what)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func queueEmpty(t *testing.T, p *pipeline.Pipeline) func() bool {
	t.Helper()
	return func() bool {
		for _, stage := range p.Health() {
			if stage.Pending != 0 {
				return false
			}
		}
		return true
	}
}

func TestPipelineProcessesBundleThroughStages(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStorage(t, cfg)

	var mu sync.Mutex
	var order []string
	record := func(name string) *stubTransform {
		s := newStubTransform(name)
		s.hook = func(*storage.Bundle) {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
		}
		return s
	}
	alpha := record("alpha")
	beta := record("beta")
	gamma := record("gamma")

	p, err := pipeline.New(cfg, store, logging.NewNop(), alpha, beta, gamma)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(p.Stop)

	bundle := testsupport.NewBundle(t, store, "payload")
	if err := p.Put(bundle); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	waitFor(t, "all stages to run", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == 3
	})
	waitFor(t, "queues to drain", queueEmpty(t, p))

	mu.Lock()
	defer mu.Unlock()
	want := []string{"alpha", "beta", "gamma"}
	for i, name := range want {
		if order[i] != name {
			t.Fatalf("stage order = %v, want %v", order, want)
		}
	}
}

func TestPutIsIdempotent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStorage(t, cfg)

	p, err := pipeline.New(cfg, store, logging.NewNop(), newStubTransform("alpha"))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	bundle := testsupport.NewBundle(t, store, "payload")
	if err := p.Put(bundle); err != nil {
		t.Fatalf("first Put failed: %v", err)
	}
	if err := p.Put(bundle); err != nil {
		t.Fatalf("second Put failed: %v", err)
	}

	health := p.Health()
	if health[0].Pending != 1 {
		t.Fatalf("pending = %d, want 1 after duplicate Put", health[0].Pending)
	}
}

func TestPendingWorkSurvivesRestart(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStorage(t, cfg)

	first, err := pipeline.New(cfg, store, logging.NewNop(), newStubTransform("alpha"))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	bundle := testsupport.NewBundle(t, store, "payload")
	if err := first.Put(bundle); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	// Simulate a restart: a fresh pipeline over the same directories must
	// pick up the reference left behind by the first one.
	processed := newStubTransform("alpha")
	second, err := pipeline.New(cfg, store, logging.NewNop(), processed)
	if err != nil {
		t.Fatalf("New after restart failed: %v", err)
	}
	if err := second.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(second.Stop)

	waitFor(t, "recovered reference to process", func() bool {
		return processed.callCount() > 0
	})
	waitFor(t, "queues to drain", queueEmpty(t, second))
}

func TestFailureKeepsReferenceUntilSuccess(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStorage(t, cfg)

	transform := newStubTransform("alpha")
	transform.failures = 2

	p, err := pipeline.New(cfg, store, logging.NewNop(), transform)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(p.Stop)

	bundle := testsupport.NewBundle(t, store, "payload")
	if err := p.Put(bundle); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	waitFor(t, "queues to drain", queueEmpty(t, p))
	if got := transform.callCount(); got != 3 {
		t.Fatalf("call count = %d, want 3 (two failed attempts plus success)", got)
	}
}

func TestErrorRetryIntervalDrivesResweep(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	// With the idle poll an hour out, only the error-retry cadence can bring
	// the second attempt around.
	cfg.Workflow.QueuePollInterval = 3600
	cfg.Workflow.ErrorRetryInterval = 1
	store := testsupport.MustOpenStorage(t, cfg)

	transform := newStubTransform("alpha")
	transform.failures = 1

	p, err := pipeline.New(cfg, store, logging.NewNop(), transform)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(p.Stop)

	bundle := testsupport.NewBundle(t, store, "payload")
	if err := p.Put(bundle); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	waitFor(t, "failed reference to retry", func() bool {
		return transform.callCount() >= 2
	})
	waitFor(t, "queues to drain", queueEmpty(t, p))
}

func TestRetryBudgetDeadLettersAndRequeueRevives(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMaxAttempts(2))
	store := testsupport.MustOpenStorage(t, cfg)

	transform := newStubTransform("alpha")
	transform.setError(errors.New("persistent failure"))

	p, err := pipeline.New(cfg, store, logging.NewNop(), transform)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(p.Stop)

	bundle := testsupport.NewBundle(t, store, "payload")
	if err := p.Put(bundle); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	waitFor(t, "reference to dead-letter", func() bool {
		health := p.Health()
		return health[0].DeadLettered == 1 && health[0].Pending == 0
	})

	failedRef := filepath.Join(cfg.Paths.PipelineDir, "alpha", "failed", bundle.ID().String())
	if _, err := os.Lstat(failedRef); err != nil {
		t.Fatalf("expected dead-lettered reference at %s: %v", failedRef, err)
	}

	transform.setError(nil)
	if revived := p.Requeue(bundle.ID()); revived != 1 {
		t.Fatalf("Requeue revived %d stages, want 1", revived)
	}

	waitFor(t, "requeued reference to process", func() bool {
		health := p.Health()
		return health[0].DeadLettered == 0 && health[0].Pending == 0
	})
}

func TestDiscardDropsQueuedReferences(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStorage(t, cfg)

	p, err := pipeline.New(cfg, store, logging.NewNop(), newStubTransform("alpha"), newStubTransform("beta"))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	bundle := testsupport.NewBundle(t, store, "payload")
	if err := p.Put(bundle); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	p.Discard(bundle.ID())
	for _, stage := range p.Health() {
		if stage.Pending != 0 || stage.DeadLettered != 0 {
			t.Fatalf("stage %s still holds references after discard: %+v", stage.Name, stage)
		}
	}
}

func TestMissingBundleDeadLetters(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMaxAttempts(1))
	store := testsupport.MustOpenStorage(t, cfg)

	transform := newStubTransform("alpha")
	p, err := pipeline.New(cfg, store, logging.NewNop(), transform)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	bundle := testsupport.NewBundle(t, store, "payload")
	if err := p.Put(bundle); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	// Delete the bundle out from under the queued reference.
	if err := store.Delete(bundle.ID()); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(p.Stop)

	waitFor(t, "dangling reference to dead-letter", func() bool {
		health := p.Health()
		return health[0].DeadLettered == 1
	})
	if got := transform.callCount(); got != 0 {
		t.Fatalf("transform ran %d times for a deleted bundle, want 0", got)
	}
}
