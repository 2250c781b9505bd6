package watcher

import (
	"sync"
	"time"

	"cxref/internal/filemeta"
)

// BatchDebouncer collects changes and emits them as one batch once no new
// change has arrived for the configured delay. A path changed more than once
// is reported once, with its latest change type.
type BatchDebouncer struct {
	delay   time.Duration
	timer   *time.Timer
	mu      sync.Mutex
	order   []string
	changes map[string]filemeta.Change
	emit    func([]filemeta.Change)
}

// NewBatchDebouncer creates a new batch debouncer
func NewBatchDebouncer(delay time.Duration, emit func([]filemeta.Change)) *BatchDebouncer {
	return &BatchDebouncer{
		delay:   delay,
		changes: make(map[string]filemeta.Change),
		emit:    emit,
	}
}

// Add adds changes to the pending batch and restarts the quiet period.
func (b *BatchDebouncer) Add(changes ...filemeta.Change) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, c := range changes {
		prev, seen := b.changes[c.Path]
		if !seen {
			b.order = append(b.order, c.Path)
		}
		// A file created and then edited within one batch is still new.
		if seen && prev.ChangeType == filemeta.ChangeAdded && c.ChangeType == filemeta.ChangeModified {
			continue
		}
		b.changes[c.Path] = c
	}

	if b.timer != nil {
		b.timer.Stop()
	}
	b.timer = time.AfterFunc(b.delay, b.flush)
}

func (b *BatchDebouncer) take() []filemeta.Change {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	out := make([]filemeta.Change, 0, len(b.order))
	for _, p := range b.order {
		out = append(out, b.changes[p])
	}
	b.order = nil
	b.changes = make(map[string]filemeta.Change)
	return out
}

func (b *BatchDebouncer) flush() {
	if changes := b.take(); len(changes) > 0 && b.emit != nil {
		b.emit(changes)
	}
}

// Cancel drops any pending batch.
func (b *BatchDebouncer) Cancel() {
	b.take()
}

// Flush immediately emits any pending changes
func (b *BatchDebouncer) Flush() {
	b.flush()
}

// Pending returns the number of distinct paths waiting to be emitted.
func (b *BatchDebouncer) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.order)
}
