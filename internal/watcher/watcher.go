// Package watcher polls the source files of a project and reports batches of
// changes after a quiet period.
package watcher

import (
	"context"
	"sync"
	"time"

	"cxref/internal/filemeta"
	"cxref/internal/logging"
)

// ListFunc returns the files that should currently be watched.
type ListFunc func() ([]string, error)

// ChangeHandler is called with each debounced batch. Calls never overlap.
type ChangeHandler func(ctx context.Context, changes []filemeta.Change)

// Config contains watcher configuration
type Config struct {
	PollInterval time.Duration
	Debounce     time.Duration
}

// DefaultConfig returns the default watcher configuration
func DefaultConfig() Config {
	return Config{
		PollInterval: 2 * time.Second,
		Debounce:     time.Second,
	}
}

// Watcher compares successive snapshots of the listed files
type Watcher struct {
	config  Config
	logger  *logging.Logger
	list    ListFunc
	handler ChangeHandler

	mu       sync.Mutex
	baseline []filemeta.Entry
	polls    int
	batches  int

	handlerMu sync.Mutex
	ctx       context.Context
}

// New creates a watcher. A nil logger discards output.
func New(config Config, logger *logging.Logger, list ListFunc, handler ChangeHandler) *Watcher {
	if logger == nil {
		logger = logging.Nop()
	}
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultConfig().PollInterval
	}
	return &Watcher{
		config:  config,
		logger:  logger,
		list:    list,
		handler: handler,
		ctx:     context.Background(),
	}
}

// Reset records the current state of the listed files as the baseline.
func (w *Watcher) Reset() error {
	files, err := w.list()
	if err != nil {
		return err
	}
	entries, err := filemeta.Collect(files)
	if err != nil {
		return err
	}
	w.mu.Lock()
	w.baseline = entries
	w.mu.Unlock()
	return nil
}

// Poll compares the listed files against the baseline, advances the
// baseline and returns what changed.
func (w *Watcher) Poll() ([]filemeta.Change, error) {
	files, err := w.list()
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.polls++

	changes, err := filemeta.Changed(w.baseline, files)
	if err != nil {
		return nil, err
	}
	if len(changes) == 0 {
		return nil, nil
	}
	entries, err := filemeta.Collect(files)
	if err != nil {
		return nil, err
	}
	w.baseline = entries
	return changes, nil
}

// Run takes a baseline and polls until ctx is done. Batches still waiting
// for their quiet period when ctx ends are dropped.
func (w *Watcher) Run(ctx context.Context) error {
	w.ctx = ctx
	if err := w.Reset(); err != nil {
		return err
	}
	batch := NewBatchDebouncer(w.config.Debounce, w.dispatch)
	defer batch.Cancel()

	w.logger.Info("Watching for changes", map[string]interface{}{
		"pollInterval": w.config.PollInterval.String(),
		"debounce":     w.config.Debounce.String(),
	})

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("File watcher stopped", nil)
			return nil
		case <-ticker.C:
			changes, err := w.Poll()
			if err != nil {
				w.logger.Warn("Poll failed", map[string]interface{}{"error": err})
				continue
			}
			if len(changes) > 0 {
				w.logger.Debug("Changes detected", map[string]interface{}{"count": len(changes)})
				batch.Add(changes...)
			}
		}
	}
}

func (w *Watcher) dispatch(changes []filemeta.Change) {
	w.handlerMu.Lock()
	defer w.handlerMu.Unlock()
	if w.ctx.Err() != nil {
		return
	}
	w.mu.Lock()
	w.batches++
	w.mu.Unlock()
	if w.handler != nil {
		w.handler(w.ctx, changes)
	}
}

// Stats returns watcher statistics
func (w *Watcher) Stats() map[string]interface{} {
	w.mu.Lock()
	defer w.mu.Unlock()

	return map[string]interface{}{
		"watchedFiles":   len(w.baseline),
		"polls":          w.polls,
		"batches":        w.batches,
		"pollIntervalMs": w.config.PollInterval.Milliseconds(),
		"debounceMs":     w.config.Debounce.Milliseconds(),
	}
}
