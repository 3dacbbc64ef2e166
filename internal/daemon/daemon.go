package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"adacta/internal/config"
	"adacta/internal/index"
	"adacta/internal/ingest"
	"adacta/internal/logging"
	"adacta/internal/media/pdfinfo"
	"adacta/internal/pipeline"
	"adacta/internal/preflight"
	"adacta/internal/storage"
)

// Daemon coordinates the background processing services and enforces
// single-instance execution.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *storage.Storage
	index   *index.Index
	pipe    *pipeline.Pipeline
	watcher *ingest.Watcher
	api     *apiServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
}

// New constructs a daemon with initialized dependencies. The ingest watcher
// may be nil when ingestion is disabled.
func New(cfg *config.Config, store *storage.Storage, ix *index.Index, pipe *pipeline.Pipeline, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || ix == nil || pipe == nil || logger == nil {
		return nil, errors.New("daemon requires config, storage, index, pipeline, and logger")
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "adactad.lock")
	d := &Daemon{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		index:    ix,
		pipe:     pipe,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	d.watcher = ingest.NewWatcher(cfg, store, pipe, logger)

	srv, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.api = srv
	return d, nil
}

// Start acquires the daemon lock, verifies preflight checks, and launches
// the pipeline, ingest watcher, and API server.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	if err := os.MkdirAll(d.cfg.Paths.LogDir, 0o755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another adacta daemon instance is already running")
	}

	if results := preflight.RunAll(d.cfg); !preflight.AllPassed(results) {
		_ = d.lock.Unlock()
		var failed []string
		for _, result := range results {
			if !result.Passed {
				failed = append(failed, fmt.Sprintf("%s: %s", result.Name, result.Detail))
			}
		}
		return fmt.Errorf("preflight checks failed: %s", strings.Join(failed, "; "))
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	if err := d.pipe.Start(runCtx); err != nil {
		d.releaseStart()
		return fmt.Errorf("start pipeline: %w", err)
	}
	if d.watcher != nil {
		if err := d.watcher.Start(runCtx); err != nil {
			d.pipe.Stop()
			d.releaseStart()
			return fmt.Errorf("start ingest watcher: %w", err)
		}
	}
	if d.api != nil {
		if err := d.api.start(runCtx); err != nil {
			d.watcher.Stop()
			d.pipe.Stop()
			d.releaseStart()
			return fmt.Errorf("start api server: %w", err)
		}
	}

	d.running.Store(true)
	d.logger.Info("adacta daemon started", logging.String("lock", d.lockPath))
	return nil
}

func (d *Daemon) releaseStart() {
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	_ = d.lock.Unlock()
}

// Stop halts background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.api.stop()
	d.watcher.Stop()
	d.pipe.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("adacta daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	return d.index.Close()
}

// APIAddr reports the bound API address, useful when the config requested
// an ephemeral port.
func (d *Daemon) APIAddr() string {
	if d.api == nil {
		return ""
	}
	return d.api.addr()
}

// Upload stores a document as a new bundle and enqueues it for processing.
func (d *Daemon) Upload(ctx context.Context, filename string, document io.Reader, tags []string) (*storage.Bundle, error) {
	properties := map[string]string{}
	if name := strings.TrimSpace(filename); name != "" {
		properties["source_filename"] = filepath.Base(name)
	}

	bundle, err := d.store.Create(map[string]io.Reader{
		storage.FragmentDocument: document,
	}, storage.WithTags(tags...), storage.WithProperties(properties))
	if err != nil {
		return nil, err
	}

	// Page count is best effort; a malformed PDF still gets processed.
	if path, err := bundle.FragmentPath(storage.FragmentDocument); err == nil && pdfinfo.LooksLikePDF(path) {
		if info, err := pdfinfo.Inspect(path); err == nil {
			if _, err := bundle.UpdateManifest(func(m *storage.Manifest) error {
				m.SetProperty("pages", strconv.Itoa(info.Pages))
				return nil
			}); err != nil {
				d.logger.Warn("page count update failed", logging.Error(err))
			}
		}
	}

	if err := d.pipe.Put(bundle); err != nil {
		return nil, fmt.Errorf("enqueue bundle %s: %w", bundle.ID(), err)
	}
	d.logger.Info("bundle uploaded",
		logging.String(logging.FieldBundleID, bundle.ID().String()),
	)
	return bundle, nil
}

// Delete removes the bundle from the pipeline, the catalog, and storage.
func (d *Daemon) Delete(ctx context.Context, id uuid.UUID) error {
	d.pipe.Discard(id)
	if err := d.index.Remove(ctx, id); err != nil {
		d.logger.Warn("catalog removal failed", logging.Error(err))
	}
	return d.store.Delete(id)
}

// Requeue revives the bundle's dead-lettered stage references and reports
// how many stages were affected.
func (d *Daemon) Requeue(id uuid.UUID) int {
	return d.pipe.Requeue(id)
}

// Status reports daemon runtime information.
func (d *Daemon) Status(ctx context.Context) DaemonStatus {
	documents, err := d.index.Count(ctx)
	if err != nil {
		d.logger.Warn("document count unavailable", logging.Error(err))
	}
	return DaemonStatus{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		StorageDir:   d.cfg.Paths.StorageDir,
		IndexPath:    d.cfg.Paths.IndexPath,
		LockFilePath: d.lockPath,
		Documents:    documents,
		Stages:       d.pipe.Health(),
		Checks:       preflight.RunAll(d.cfg),
	}
}

// DaemonStatus represents daemon runtime information.
type DaemonStatus struct {
	Running      bool
	PID          int
	StorageDir   string
	IndexPath    string
	LockFilePath string
	Documents    int
	Stages       []pipeline.StageHealth
	Checks       []preflight.Result
}
