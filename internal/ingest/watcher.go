package ingest

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
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"adacta/internal/config"
	"adacta/internal/logging"
	"adacta/internal/media/pdfinfo"
	"adacta/internal/storage"
)

// rescanInterval bounds how stale the hot folder can get when filesystem
// events are lost (NFS mounts, editors that write via rename).
const rescanInterval = 30 * time.Second

// Sink receives freshly created bundles for processing.
type Sink interface {
	Put(bundle *storage.Bundle) error
}

// Watcher ingests files dropped into the configured hot folder.
type Watcher struct {
	dir        string
	store      *storage.Storage
	sink       Sink
	logger     *slog.Logger
	settle     time.Duration
	extensions map[string]struct{}

	mu       sync.Mutex
	running  bool
	inflight map[string]struct{}
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewWatcher builds a watcher for the config's ingest directory. It returns
// nil when ingestion is disabled.
func NewWatcher(cfg *config.Config, store *storage.Storage, sink Sink, logger *slog.Logger) *Watcher {
	if cfg == nil || !cfg.Ingest.Enabled {
		return nil
	}

	extensions := make(map[string]struct{}, len(cfg.Ingest.Extensions))
	for _, ext := range cfg.Ingest.Extensions {
		extensions[strings.ToLower(ext)] = struct{}{}
	}

	return &Watcher{
		dir:        cfg.Ingest.Dir,
		store:      store,
		sink:       sink,
		logger:     logging.NewComponentLogger(logger, "ingest"),
		settle:     time.Duration(cfg.Ingest.SettleSeconds) * time.Second,
		extensions: extensions,
		inflight:   make(map[string]struct{}),
	}
}

// Start begins watching the hot folder. Files already present are picked up
// by the initial sweep.
func (w *Watcher) Start(ctx context.Context) error {
	if w == nil {
		return errors.New("ingest watcher unavailable")
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return errors.New("ingest watcher already running")
	}

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("create ingest directory: %w", err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := watcher.Add(w.dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.running = true

	w.wg.Add(1)
	go w.loop(runCtx, watcher)

	w.logger.Info("ingest watcher started", logging.String("dir", w.dir))
	return nil
}

// Stop halts the watcher and waits for in-flight ingestions to finish.
func (w *Watcher) Stop() {
	if w == nil {
		return
	}
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	cancel := w.cancel
	w.running = false
	w.cancel = nil
	w.mu.Unlock()

	cancel()
	w.wg.Wait()
	w.logger.Info("ingest watcher stopped")
}

func (w *Watcher) loop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer w.wg.Done()
	defer watcher.Close()

	w.sweep(ctx)

	ticker := time.NewTicker(rescanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.sweep(ctx)
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) || event.Has(fsnotify.Write) {
				w.schedule(ctx, event.Name)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("watch error", logging.Error(err))
		}
	}
}

// sweep picks up files that were already present or whose events were lost.
func (w *Watcher) sweep(ctx context.Context) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		w.logger.Error("ingest directory listing failed", logging.Error(err))
		return
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		w.schedule(ctx, filepath.Join(w.dir, entry.Name()))
	}
}

func (w *Watcher) schedule(ctx context.Context, path string) {
	if !w.accepts(path) {
		return
	}

	w.mu.Lock()
	if _, busy := w.inflight[path]; busy {
		w.mu.Unlock()
		return
	}
	w.inflight[path] = struct{}{}
	w.mu.Unlock()

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer func() {
			w.mu.Lock()
			delete(w.inflight, path)
			w.mu.Unlock()
		}()

		if w.settle > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(w.settle):
			}
		}
		if err := w.ingest(path); err != nil {
			w.logger.Error("ingest failed; file left in place",
				logging.String("path", path),
				logging.Error(err),
			)
		}
	}()
}

// accepts filters on the configured extension list. Hidden files are always
// skipped so editors' temp files do not get ingested.
func (w *Watcher) accepts(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return false
	}
	if len(w.extensions) == 0 {
		return true
	}
	_, ok := w.extensions[strings.ToLower(filepath.Ext(base))]
	return ok
}

func (w *Watcher) ingest(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	properties := map[string]string{
		"source_filename": filepath.Base(path),
	}
	if pdfinfo.LooksLikePDF(path) {
		if info, err := pdfinfo.Inspect(path); err == nil {
			properties["pages"] = strconv.Itoa(info.Pages)
		} else {
			w.logger.Warn("page count unavailable", logging.String("path", path), logging.Error(err))
		}
	}

	bundle, err := w.store.Create(map[string]io.Reader{
		storage.FragmentDocument: f,
	}, storage.WithProperties(properties))
	if err != nil {
		return fmt.Errorf("create bundle: %w", err)
	}

	if err := w.sink.Put(bundle); err != nil {
		return fmt.Errorf("enqueue bundle %s: %w", bundle.ID(), err)
	}

	if err := os.Remove(path); err != nil {
		w.logger.Warn("source file removal failed; it may be ingested twice",
			logging.String("path", path),
			logging.Error(err),
		)
	}

	w.logger.Info("file ingested",
		logging.String("path", path),
		logging.String(logging.FieldBundleID, bundle.ID().String()),
	)
	return nil
}
