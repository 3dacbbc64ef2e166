package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"adacta/internal/config"
	"adacta/internal/logging"
	"adacta/internal/storage"
)

// Pipeline wires the stage processors into an ordered chain and owns their
// worker goroutines. It holds no queue state of its own; everything durable
// lives in the per-stage queue directories.
type Pipeline struct {
	root   string
	stages []*Processor
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New builds the pipeline from the ordered transform list. Queue directories
// are created up front, before any worker starts. Each stage's success
// hand-off is the next stage's enqueue; the last stage has none.
func New(cfg *config.Config, store *storage.Storage, logger *slog.Logger, transforms ...Transform) (*Pipeline, error) {
	if len(transforms) == 0 {
		return nil, errors.New("pipeline requires at least one transform")
	}
	root := cfg.Paths.PipelineDir
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create pipeline root: %w", err)
	}

	pollInterval := time.Duration(cfg.Workflow.QueuePollInterval) * time.Second
	errorRetry := time.Duration(cfg.Workflow.ErrorRetryInterval) * time.Second
	retryBackoff := time.Duration(cfg.Workflow.RetryBackoff) * time.Second

	p := &Pipeline{
		root:   root,
		logger: logging.NewComponentLogger(logger, "pipeline"),
	}
	for _, transform := range transforms {
		proc, err := newProcessor(root, store, transform, logger, pollInterval, errorRetry, cfg.Workflow.MaxAttempts, retryBackoff)
		if err != nil {
			return nil, fmt.Errorf("create stage %q: %w", transform.Name(), err)
		}
		p.stages = append(p.stages, proc)
	}
	for i := 0; i < len(p.stages)-1; i++ {
		p.stages[i].downstream = p.stages[i+1].enqueue
	}
	return p, nil
}

// Start launches one worker goroutine per stage. Pending references left over
// from a previous run are picked up on the first sweep.
func (p *Pipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return errors.New("pipeline already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.running = true

	p.wg.Add(len(p.stages))
	for _, stage := range p.stages {
		go func(proc *Processor) {
			defer p.wg.Done()
			proc.run(runCtx)
		}(stage)
	}

	names := make([]string, len(p.stages))
	for i, stage := range p.stages {
		names[i] = stage.Name()
	}
	p.logger.Info("pipeline started", logging.Any("stages", names))
	return nil
}

// Stop cancels the workers and waits for in-flight sweeps to finish.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	cancel := p.cancel
	p.running = false
	p.cancel = nil
	p.mu.Unlock()

	cancel()
	p.wg.Wait()
	p.logger.Info("pipeline stopped")
}

// Put enqueues the bundle into the head stage. Fire-and-forget: processing
// happens asynchronously and failures never propagate back to the caller.
func (p *Pipeline) Put(bundle *storage.Bundle) error {
	return p.stages[0].Put(bundle)
}

// Discard removes the bundle's references from every stage queue, including
// dead letters. Used when a bundle is deleted.
func (p *Pipeline) Discard(id uuid.UUID) {
	for _, stage := range p.stages {
		stage.discard(id)
	}
}

// Requeue moves the bundle's dead-lettered references back into their stage
// queues and reports how many stages were revived.
func (p *Pipeline) Requeue(id uuid.UUID) int {
	revived := 0
	for _, stage := range p.stages {
		if stage.requeue(id) {
			revived++
		}
	}
	return revived
}

// StageHealth summarizes one stage's queue for operators.
type StageHealth struct {
	Name         string `json:"name"`
	Pending      int    `json:"pending"`
	DeadLettered int    `json:"dead_lettered"`
}

// Health reports per-stage queue depths in chain order.
func (p *Pipeline) Health() []StageHealth {
	health := make([]StageHealth, len(p.stages))
	for i, stage := range p.stages {
		pending, deadLettered := stage.counts()
		health[i] = StageHealth{Name: stage.Name(), Pending: pending, DeadLettered: deadLettered}
	}
	return health
}
