// Package cleanup removes a deleted document's vectors from the ANN index
// outside the request path, retrying with exponential backoff. Orphaned
// vectors are a storage-hygiene concern, not a search-correctness one (a
// deleted document is already filtered out of every query), so tasks that
// exhaust their retries are recorded and abandoned rather than surfaced to
// any user-facing request.
package cleanup

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/anla-124/pdf-searcher/internal/metrics"
)

// VectorIndex is the slice of the ANN adapter the worker needs.
type VectorIndex interface {
	ListPointIDs(ctx context.Context, documentID string) ([]string, error)
	DeletePoints(ctx context.Context, ids []string) error
}

type RetryConfig struct {
	MaxAttempts int           `json:"max_attempts"`
	BaseDelay   time.Duration `json:"base_delay_ns"`
	MaxDelay    time.Duration `json:"max_delay_ns"`
	HistorySize int           `json:"history_size"`
}

// Task is one tracked cleanup unit. It is mutated in place across retries
// and removed from tracking on success or exhaustion.
type Task struct {
	DocumentID string    `json:"document_id"`
	Attempts   int       `json:"attempts"`
	EnqueuedAt time.Time `json:"enqueued_at"`
	LastError  string    `json:"last_error,omitempty"`
	VectorIDs  []string  `json:"-"`

	// hintGen increments whenever a repeat enqueue upgrades VectorIDs, so a
	// delete that completes with stale ids knows to run again.
	hintGen int
}

// Failure is the operator-visible record of an exhausted task.
type Failure struct {
	DocumentID string    `json:"document_id"`
	Attempts   int       `json:"attempts"`
	LastError  string    `json:"last_error"`
	FailedAt   time.Time `json:"failed_at"`
}

// Snapshot is a non-blocking read of the worker's state for the status
// endpoint.
type Snapshot struct {
	QueueDepth       int         `json:"queue_depth"`
	PendingDocuments int         `json:"pending_documents"`
	IsProcessing     bool        `json:"is_processing"`
	ActiveTask       *Task       `json:"active_task,omitempty"`
	RetryConfig      RetryConfig `json:"retry_config"`
	RecentFailures   []Failure   `json:"recent_failures"`
}

const deleteTimeout = 30 * time.Second

// Worker owns the queue and tracking map; only Enqueue and the single drain
// goroutine touch them, both under the mutex.
type Worker struct {
	index VectorIndex
	cfg   RetryConfig
	clock Clock
	prom  *metrics.Metrics

	mu       sync.Mutex
	queue    []string
	tasks    map[string]*Task
	activeID string
	failures []Failure

	wake chan struct{}
	stop chan struct{}
	done chan struct{}
}

func NewWorker(index VectorIndex, cfg RetryConfig, clock Clock, prom *metrics.Metrics) *Worker {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 2 * time.Second
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 5 * time.Minute
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = 50
	}
	if clock == nil {
		clock = NewRealClock()
	}
	return &Worker{
		index: index,
		cfg:   cfg,
		clock: clock,
		prom:  prom,
		tasks: make(map[string]*Task),
		wake:  make(chan struct{}, 1),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
}

func (w *Worker) Start() {
	go w.loop()
}

// Stop halts the drain loop after the in-flight delete, if any, finishes.
// Tracked tasks are not persisted; a restart relies on re-enqueue from the
// deletion event stream.
func (w *Worker) Stop() {
	close(w.stop)
	<-w.done
}

// Enqueue registers a document's vectors for deletion. It is safe for
// concurrent callers and idempotent per document while a task is tracked: a
// repeat enqueue refreshes the timestamp and upgrades the vector-id hint
// instead of creating a duplicate.
func (w *Worker) Enqueue(documentID string, vectorIDs []string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.tasks[documentID]; ok {
		t.EnqueuedAt = w.clock.Now()
		if len(vectorIDs) > 0 {
			t.VectorIDs = vectorIDs
			t.hintGen++
		}
		return
	}

	w.tasks[documentID] = &Task{
		DocumentID: documentID,
		EnqueuedAt: w.clock.Now(),
		VectorIDs:  vectorIDs,
	}
	w.queue = append(w.queue, documentID)
	w.observeQueueDepth()
	w.signal()
}

// Metrics snapshots the worker state without blocking the drain loop beyond
// the mutex hold.
func (w *Worker) Metrics() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()

	snap := Snapshot{
		QueueDepth:       len(w.queue),
		PendingDocuments: len(w.tasks),
		IsProcessing:     w.activeID != "",
		RetryConfig:      w.cfg,
		RecentFailures:   make([]Failure, len(w.failures)),
	}
	copy(snap.RecentFailures, w.failures)
	if w.activeID != "" {
		if t, ok := w.tasks[w.activeID]; ok {
			c := *t
			snap.ActiveTask = &c
		}
	}
	return snap
}

func (w *Worker) loop() {
	defer close(w.done)
	for {
		select {
		case <-w.stop:
			return
		default:
		}

		docID, ok := w.dequeue()
		if !ok {
			select {
			case <-w.wake:
				continue
			case <-w.stop:
				return
			}
		}
		w.process(docID)
	}
}

func (w *Worker) dequeue() (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.queue) == 0 {
		return "", false
	}
	docID := w.queue[0]
	w.queue = w.queue[1:]
	w.activeID = docID
	w.observeQueueDepth()
	return docID, true
}

func (w *Worker) process(docID string) {
	w.mu.Lock()
	task, ok := w.tasks[docID]
	if !ok {
		w.activeID = ""
		w.mu.Unlock()
		return
	}
	vectorIDs := task.VectorIDs
	gen := task.hintGen
	attempt := task.Attempts + 1
	w.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), deleteTimeout)
	err := w.deletePoints(ctx, docID, vectorIDs)
	cancel()

	w.mu.Lock()
	defer w.mu.Unlock()
	w.activeID = ""

	if err == nil {
		if task.hintGen != gen {
			// An upgraded vector-id hint landed while this delete ran; the
			// fresh ids still need a pass.
			slog.Info("vector cleanup re-queued for upgraded hint", "document_id", docID)
			w.queue = append(w.queue, docID)
			w.observeQueueDepth()
			w.signal()
			return
		}
		delete(w.tasks, docID)
		slog.Info("vector cleanup complete", "document_id", docID, "attempt", attempt)
		return
	}

	task.Attempts = attempt
	task.LastError = err.Error()

	if task.Attempts >= w.cfg.MaxAttempts {
		delete(w.tasks, docID)
		w.recordFailure(task)
		slog.Error("vector cleanup abandoned", "document_id", docID, "attempts", task.Attempts, "error", err)
		return
	}

	delay := w.backoff(task.Attempts)
	slog.Warn("vector cleanup failed, retry scheduled",
		"document_id", docID, "attempt", task.Attempts, "delay", delay, "error", err)
	if w.prom != nil {
		w.prom.CleanupRetriesTotal.Inc()
	}
	w.clock.AfterFunc(delay, func() { w.requeue(docID) })
}

func (w *Worker) deletePoints(ctx context.Context, docID string, vectorIDs []string) error {
	if len(vectorIDs) == 0 {
		ids, err := w.index.ListPointIDs(ctx, docID)
		if err != nil {
			return err
		}
		vectorIDs = ids
	}
	if len(vectorIDs) == 0 {
		// Nothing left in the index for this document.
		return nil
	}
	return w.index.DeletePoints(ctx, vectorIDs)
}

// backoff is base x 2^(attempt-1), capped at the configured maximum.
func (w *Worker) backoff(attempt int) time.Duration {
	d := w.cfg.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= w.cfg.MaxDelay {
			return w.cfg.MaxDelay
		}
	}
	if d > w.cfg.MaxDelay {
		return w.cfg.MaxDelay
	}
	return d
}

func (w *Worker) requeue(docID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.tasks[docID]; !ok {
		return
	}
	for _, queued := range w.queue {
		if queued == docID {
			return
		}
	}
	w.queue = append(w.queue, docID)
	w.observeQueueDepth()
	w.signal()
}

// recordFailure appends to the bounded most-recent-N failure history.
// Caller holds the mutex.
func (w *Worker) recordFailure(task *Task) {
	w.failures = append(w.failures, Failure{
		DocumentID: task.DocumentID,
		Attempts:   task.Attempts,
		LastError:  task.LastError,
		FailedAt:   w.clock.Now(),
	})
	if len(w.failures) > w.cfg.HistorySize {
		w.failures = w.failures[len(w.failures)-w.cfg.HistorySize:]
	}
	if w.prom != nil {
		w.prom.CleanupFailuresTotal.Inc()
	}
}

func (w *Worker) signal() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// observeQueueDepth mirrors the queue length into Prometheus. Caller holds
// the mutex.
func (w *Worker) observeQueueDepth() {
	if w.prom != nil {
		w.prom.CleanupQueueDepth.Set(float64(len(w.queue)))
	}
}
