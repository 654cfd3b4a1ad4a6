package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

const (
	doneDir   = "done"
	failedDir = "failed"
)

// Watcher processes job files dropped into a directory. A file is picked
// up once it has stopped changing for the settle delay, then moved to
// done/ or failed/ so it is never processed twice.
type Watcher struct {
	proc   *Processor
	dir    string
	settle time.Duration
	logger zerolog.Logger

	mu      sync.Mutex
	pending map[string]*time.Timer
}

func NewWatcher(proc *Processor, dir string, logger zerolog.Logger) *Watcher {
	return &Watcher{
		proc:    proc,
		dir:     dir,
		settle:  500 * time.Millisecond,
		logger:  logger.With().Str("component", "watcher").Str("dir", dir).Logger(),
		pending: make(map[string]*time.Timer),
	}
}

// Run blocks until ctx is cancelled. Job files already present when it
// starts are processed first.
func (w *Watcher) Run(ctx context.Context) error {
	for _, sub := range []string{doneDir, failedDir} {
		if err := os.MkdirAll(filepath.Join(w.dir, sub), 0o755); err != nil {
			return err
		}
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	defer func() {
		if err := fw.Close(); err != nil {
			w.logger.Warn().Err(err).Msg("failed to close watcher")
		}
	}()

	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}

	ready := make(chan string)
	existing, _ := filepath.Glob(filepath.Join(w.dir, "*.json"))
	for _, path := range existing {
		w.schedule(ctx, path, ready)
	}

	w.logger.Info().Int("existing", len(existing)).Msg("watching for job files")

	semaphore := make(chan struct{}, max(1, w.proc.cfg.MaxConcurrentJobs))
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			w.stopPending()
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if isJobFile(event.Name) && (event.Has(fsnotify.Create) || event.Has(fsnotify.Write)) {
				w.schedule(ctx, event.Name, ready)
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn().Err(err).Msg("watch error")

		case path := <-ready:
			wg.Add(1)
			go func() {
				defer wg.Done()
				semaphore <- struct{}{}
				defer func() { <-semaphore }()
				if err := w.Handle(ctx, path); err != nil {
					w.logger.Error().Err(err).Str("file", filepath.Base(path)).Msg("job file failed")
				}
			}()
		}
	}
}

// Handle processes one job file and files it under done/ or failed/.
func (w *Watcher) Handle(ctx context.Context, path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}

	_, jobErr := w.proc.ProcessFile(ctx, path)

	sub := doneDir
	if jobErr != nil {
		sub = failedDir
	}
	dest := filepath.Join(w.dir, sub, filepath.Base(path))
	if err := os.Rename(path, dest); err != nil {
		w.logger.Warn().Err(err).Str("file", path).Msg("failed to move job file")
	}
	return jobErr
}

func (w *Watcher) schedule(ctx context.Context, path string, ready chan<- string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.pending[path]; ok {
		t.Reset(w.settle)
		return
	}
	w.pending[path] = time.AfterFunc(w.settle, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()

		select {
		case ready <- path:
		case <-ctx.Done():
		}
	})
}

func (w *Watcher) stopPending() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
}

func isJobFile(path string) bool {
	base := filepath.Base(path)
	return filepath.Ext(base) == ".json" &&
		!strings.HasPrefix(base, ".") &&
		!strings.HasSuffix(base, ".script.json")
}
