package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"adacta/internal/logging"
	"adacta/internal/services"
	"adacta/internal/storage"
)

// Transform is one unit of bundle processing. Implementations mutate the
// bundle's fragments or perform a pure side effect such as indexing.
type Transform interface {
	Name() string
	Process(ctx context.Context, bundle *storage.Bundle) error
}

// deadLetterDir is the per-stage subdirectory holding references that
// exhausted their retry budget.
const deadLetterDir = "failed"

// Processor drains one stage's queue directory on a dedicated worker
// goroutine. It owns no state beyond the directory and an in-memory attempt
// ledger; the references themselves are the durable queue.
type Processor struct {
	name       string
	dir        string
	store      *storage.Storage
	transform  Transform
	downstream func(*storage.Bundle)
	logger     *slog.Logger

	pollInterval time.Duration
	errorRetry   time.Duration
	maxAttempts  int
	retryBackoff time.Duration

	wake chan struct{}

	mu       sync.Mutex
	attempts map[uuid.UUID]attemptState
}

// attemptState is process-local: a restart resets counters while the durable
// references survive, so a restarted daemon re-tries dead-lettered work only
// after an explicit requeue.
type attemptState struct {
	count       int
	lastFailure time.Time
}

func newProcessor(root string, store *storage.Storage, transform Transform, logger *slog.Logger, pollInterval, errorRetry time.Duration, maxAttempts int, retryBackoff time.Duration) (*Processor, error) {
	dir := filepath.Join(root, transform.Name())
	if err := os.MkdirAll(filepath.Join(dir, deadLetterDir), 0o755); err != nil {
		return nil, err
	}
	return &Processor{
		name:         transform.Name(),
		dir:          dir,
		store:        store,
		transform:    transform,
		logger:       logging.NewComponentLogger(logger, "processor").With(logging.String(logging.FieldStage, transform.Name())),
		pollInterval: pollInterval,
		errorRetry:   errorRetry,
		maxAttempts:  maxAttempts,
		retryBackoff: retryBackoff,
		wake:         make(chan struct{}, 1),
		attempts:     make(map[uuid.UUID]attemptState),
	}, nil
}

// Name returns the stage name.
func (p *Processor) Name() string {
	return p.name
}

// Put records the bundle as pending work for this stage and wakes the worker.
// Re-submitting an already queued bundle is a no-op.
func (p *Processor) Put(bundle *storage.Bundle) error {
	ref := filepath.Join(p.dir, bundle.ID().String())
	if err := os.Symlink(bundle.Path(), ref); err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil
		}
		return err
	}
	p.notify()
	return nil
}

// enqueue is the downstream-callback form of Put: failures are logged, never
// propagated, because the upstream stage already committed its own success.
func (p *Processor) enqueue(bundle *storage.Bundle) {
	if err := p.Put(bundle); err != nil {
		p.logger.Error("enqueue failed; bundle will not reach this stage until resubmitted",
			logging.String(logging.FieldBundleID, bundle.ID().String()),
			logging.Error(err),
		)
	}
}

func (p *Processor) notify() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// discard drops any reference to the bundle, queued or dead-lettered.
func (p *Processor) discard(id uuid.UUID) {
	_ = os.Remove(filepath.Join(p.dir, id.String()))
	_ = os.Remove(filepath.Join(p.dir, deadLetterDir, id.String()))
	p.mu.Lock()
	delete(p.attempts, id)
	p.mu.Unlock()
}

// requeue moves a dead-lettered reference back into the live queue. It
// reports whether a reference was moved.
func (p *Processor) requeue(id uuid.UUID) bool {
	src := filepath.Join(p.dir, deadLetterDir, id.String())
	dst := filepath.Join(p.dir, id.String())
	if err := os.Rename(src, dst); err != nil {
		return false
	}
	p.mu.Lock()
	delete(p.attempts, id)
	p.mu.Unlock()
	p.notify()
	return true
}

func (p *Processor) run(ctx context.Context) {
	p.logger.Debug("processor started")
	for {
		failed := p.sweep(ctx)
		wait := p.pollInterval
		if failed && p.errorRetry > 0 {
			wait = p.errorRetry
		}
		select {
		case <-ctx.Done():
			p.logger.Debug("processor stopped")
			return
		case <-p.wake:
		case <-time.After(wait):
		}
	}
}

type reference struct {
	id       uuid.UUID
	path     string
	enqueued time.Time
}

// pending snapshots the queue. Order is best-effort FIFO by the reference's
// own modification time; the filesystem guarantees nothing stronger.
func (p *Processor) pending() ([]reference, error) {
	entries, err := os.ReadDir(p.dir)
	if err != nil {
		return nil, err
	}
	refs := make([]reference, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		id, err := uuid.Parse(entry.Name())
		if err != nil {
			continue
		}
		ref := reference{id: id, path: filepath.Join(p.dir, entry.Name())}
		if info, err := entry.Info(); err == nil {
			ref.enqueued = info.ModTime()
		}
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].enqueued.Before(refs[j].enqueued) })
	return refs, nil
}

// sweep drains the queue snapshot once. It reports whether any reference
// failed or sat out the sweep in backoff, so the worker can re-sweep at the
// error-retry cadence instead of the idle poll interval.
func (p *Processor) sweep(ctx context.Context) bool {
	refs, err := p.pending()
	if err != nil {
		p.logger.Error("queue listing failed", logging.Error(err))
		return false
	}
	if len(refs) == 0 {
		return false
	}
	p.logger.Debug("sweep started", logging.Int("pending", len(refs)))

	failed := false
	for _, ref := range refs {
		if ctx.Err() != nil {
			return failed
		}
		if p.inBackoff(ref.id) {
			failed = true
			continue
		}
		if !p.processOne(ctx, ref) {
			failed = true
		}
	}
	return failed
}

func (p *Processor) processOne(ctx context.Context, ref reference) bool {
	stageCtx := services.WithStage(services.WithBundleID(ctx, ref.id.String()), p.name)
	logger := logging.WithContext(stageCtx, p.logger)

	bundle, err := p.store.Get(ref.id)
	if err != nil {
		p.fail(logger, ref, services.Wrap(services.ErrNotFound, p.name, "resolve bundle", "", err))
		return false
	}

	if err := p.transform.Process(stageCtx, bundle); err != nil {
		p.fail(logger, ref, err)
		return false
	}

	// Work item is done before the downstream hand-off: a crash in between
	// loses the hand-off rather than duplicating this stage's effect.
	if err := os.Remove(ref.path); err != nil && !os.IsNotExist(err) {
		logger.Error("reference removal failed; bundle will be re-processed", logging.Error(err))
		return false
	}
	p.mu.Lock()
	delete(p.attempts, ref.id)
	p.mu.Unlock()

	logger.Info("stage completed")
	if p.downstream != nil {
		p.downstream(bundle)
	}
	return true
}

func (p *Processor) inBackoff(id uuid.UUID) bool {
	if p.retryBackoff <= 0 {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	state, ok := p.attempts[id]
	return ok && time.Since(state.lastFailure) < p.retryBackoff
}

func (p *Processor) fail(logger *slog.Logger, ref reference, err error) {
	p.mu.Lock()
	state := p.attempts[ref.id]
	state.count++
	state.lastFailure = time.Now()
	p.attempts[ref.id] = state
	attempts := state.count
	p.mu.Unlock()

	logger.Error("stage failed",
		logging.Int("attempt", attempts),
		logging.Error(err),
	)

	if p.maxAttempts > 0 && attempts >= p.maxAttempts {
		dst := filepath.Join(p.dir, deadLetterDir, ref.id.String())
		if moveErr := os.Rename(ref.path, dst); moveErr != nil && !os.IsNotExist(moveErr) {
			logger.Error("dead-letter move failed; reference stays queued", logging.Error(moveErr))
			return
		}
		p.mu.Lock()
		delete(p.attempts, ref.id)
		p.mu.Unlock()
		logger.Warn("retry budget exhausted; reference moved to dead letter",
			logging.Int("attempts", attempts),
		)
	}
}

// counts reports queued and dead-lettered reference totals.
func (p *Processor) counts() (pending int, deadLettered int) {
	if refs, err := p.pending(); err == nil {
		pending = len(refs)
	}
	if entries, err := os.ReadDir(filepath.Join(p.dir, deadLetterDir)); err == nil {
		for _, entry := range entries {
			if _, err := uuid.Parse(entry.Name()); err == nil {
				deadLettered++
			}
		}
	}
	return pending, deadLettered
}
