package cleanup_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/anla-124/pdf-searcher/internal/cleanup"
)

type MockIndex struct{ mock.Mock }

func (m *MockIndex) ListPointIDs(ctx context.Context, documentID string) ([]string, error) {
	args := m.Called(ctx, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockIndex) DeletePoints(ctx context.Context, ids []string) error {
	args := m.Called(ctx, ids)
	return args.Error(0)
}

// fireClock records scheduled delays and runs the callback right away, so
// the retry machine advances without wall-clock sleeps.
type fireClock struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (c *fireClock) Now() time.Time { return time.Unix(1700000000, 0) }

func (c *fireClock) AfterFunc(d time.Duration, f func()) cleanup.Timer {
	c.mu.Lock()
	c.delays = append(c.delays, d)
	c.mu.Unlock()
	go f()
	return noopTimer{}
}

func (c *fireClock) Delays() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]time.Duration, len(c.delays))
	copy(out, c.delays)
	return out
}

type noopTimer struct{}

func (noopTimer) Stop() bool { return true }

func testConfig() cleanup.RetryConfig {
	return cleanup.RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   2 * time.Second,
		MaxDelay:    5 * time.Minute,
		HistorySize: 2,
	}
}

func TestWorker_EnqueueDedupesWhilePending(t *testing.T) {
	index := new(MockIndex)
	w := cleanup.NewWorker(index, testConfig(), &fireClock{}, nil)

	w.Enqueue("doc-1", nil)
	w.Enqueue("doc-1", []string{"v1", "v2"})

	snap := w.Metrics()
	assert.Equal(t, 1, snap.QueueDepth)
	assert.Equal(t, 1, snap.PendingDocuments)
	assert.False(t, snap.IsProcessing)
}

func TestWorker_SuccessRemovesTask(t *testing.T) {
	index := new(MockIndex)
	index.On("DeletePoints", mock.Anything, []string{"v1"}).Return(nil).Once()

	w := cleanup.NewWorker(index, testConfig(), &fireClock{}, nil)
	w.Enqueue("doc-1", []string{"v1"})
	w.Start()
	defer w.Stop()

	assert.Eventually(t, func() bool {
		s := w.Metrics()
		return s.PendingDocuments == 0 && s.QueueDepth == 0
	}, 2*time.Second, 5*time.Millisecond)
	index.AssertExpectations(t)
}

func TestWorker_ListsPointIDsWhenNoHint(t *testing.T) {
	index := new(MockIndex)
	index.On("ListPointIDs", mock.Anything, "doc-1").Return([]string{"a", "b"}, nil).Once()
	index.On("DeletePoints", mock.Anything, []string{"a", "b"}).Return(nil).Once()

	w := cleanup.NewWorker(index, testConfig(), &fireClock{}, nil)
	w.Enqueue("doc-1", nil)
	w.Start()
	defer w.Stop()

	assert.Eventually(t, func() bool {
		return w.Metrics().PendingDocuments == 0
	}, 2*time.Second, 5*time.Millisecond)
	index.AssertExpectations(t)
}

func TestWorker_NoPointsIsSuccess(t *testing.T) {
	index := new(MockIndex)
	index.On("ListPointIDs", mock.Anything, "doc-1").Return([]string{}, nil).Once()

	w := cleanup.NewWorker(index, testConfig(), &fireClock{}, nil)
	w.Enqueue("doc-1", nil)
	w.Start()
	defer w.Stop()

	assert.Eventually(t, func() bool {
		return w.Metrics().PendingDocuments == 0
	}, 2*time.Second, 5*time.Millisecond)
	index.AssertNotCalled(t, "DeletePoints", mock.Anything, mock.Anything)
}

func TestWorker_RetriesWithExponentialBackoff(t *testing.T) {
	index := new(MockIndex)
	index.On("DeletePoints", mock.Anything, []string{"v1"}).Return(errors.New("index down")).Twice()
	index.On("DeletePoints", mock.Anything, []string{"v1"}).Return(nil).Once()

	clock := &fireClock{}
	w := cleanup.NewWorker(index, testConfig(), clock, nil)
	w.Enqueue("doc-1", []string{"v1"})
	w.Start()
	defer w.Stop()

	assert.Eventually(t, func() bool {
		return w.Metrics().PendingDocuments == 0
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, clock.Delays())
	assert.Empty(t, w.Metrics().RecentFailures)
}

func TestWorker_ExhaustionRecordsFailure(t *testing.T) {
	index := new(MockIndex)
	index.On("DeletePoints", mock.Anything, []string{"v1"}).Return(errors.New("permanent"))

	w := cleanup.NewWorker(index, testConfig(), &fireClock{}, nil)
	w.Enqueue("doc-1", []string{"v1"})
	w.Start()
	defer w.Stop()

	assert.Eventually(t, func() bool {
		s := w.Metrics()
		return s.PendingDocuments == 0 && len(s.RecentFailures) == 1
	}, 2*time.Second, 5*time.Millisecond)

	f := w.Metrics().RecentFailures[0]
	assert.Equal(t, "doc-1", f.DocumentID)
	assert.Equal(t, 3, f.Attempts)
	assert.Equal(t, "permanent", f.LastError)
	index.AssertNumberOfCalls(t, "DeletePoints", 3)
}

func TestWorker_FailureHistoryIsBounded(t *testing.T) {
	index := new(MockIndex)
	index.On("DeletePoints", mock.Anything, mock.Anything).Return(errors.New("nope"))

	cfg := testConfig()
	cfg.MaxAttempts = 1
	w := cleanup.NewWorker(index, cfg, &fireClock{}, nil)
	w.Start()
	defer w.Stop()

	w.Enqueue("doc-1", []string{"v1"})
	w.Enqueue("doc-2", []string{"v2"})
	w.Enqueue("doc-3", []string{"v3"})

	assert.Eventually(t, func() bool {
		return w.Metrics().PendingDocuments == 0
	}, 2*time.Second, 5*time.Millisecond)

	failures := w.Metrics().RecentFailures
	assert.Len(t, failures, 2) // HistorySize 2: oldest dropped
	ids := []string{failures[0].DocumentID, failures[1].DocumentID}
	assert.NotContains(t, ids, "doc-1")
}

func TestWorker_EnqueueAfterSuccessStartsFreshTask(t *testing.T) {
	index := new(MockIndex)
	index.On("DeletePoints", mock.Anything, []string{"v1"}).Return(nil).Once()
	index.On("DeletePoints", mock.Anything, []string{"v2"}).Return(nil).Once()

	w := cleanup.NewWorker(index, testConfig(), &fireClock{}, nil)
	w.Start()
	defer w.Stop()

	w.Enqueue("doc-1", []string{"v1"})
	assert.Eventually(t, func() bool {
		return w.Metrics().PendingDocuments == 0
	}, 2*time.Second, 5*time.Millisecond)

	// A later enqueue may carry different vector ids; deletion runs again.
	w.Enqueue("doc-1", []string{"v2"})
	assert.Eventually(t, func() bool {
		return w.Metrics().PendingDocuments == 0
	}, 2*time.Second, 5*time.Millisecond)
	index.AssertExpectations(t)
}

func TestWorker_HintUpgradeDuringDeleteRunsAgain(t *testing.T) {
	index := new(MockIndex)
	w := cleanup.NewWorker(index, testConfig(), &fireClock{}, nil)

	// The upgraded hint lands while the first delete is still on the wire;
	// the stale delete's success must not swallow it.
	index.On("DeletePoints", mock.Anything, []string{"v1"}).Run(func(mock.Arguments) {
		w.Enqueue("doc-1", []string{"v2"})
	}).Return(nil).Once()
	index.On("DeletePoints", mock.Anything, []string{"v2"}).Return(nil).Once()

	w.Enqueue("doc-1", []string{"v1"})
	w.Start()
	defer w.Stop()

	assert.Eventually(t, func() bool {
		return w.Metrics().PendingDocuments == 0
	}, 2*time.Second, 5*time.Millisecond)
	index.AssertExpectations(t)
}

func TestWorker_ConcurrentEnqueue(t *testing.T) {
	index := new(MockIndex)
	index.On("DeletePoints", mock.Anything, mock.Anything).Return(nil)

	w := cleanup.NewWorker(index, testConfig(), &fireClock{}, nil)
	w.Start()
	defer w.Stop()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Enqueue("doc-1", []string{"v1"})
		}()
	}
	wg.Wait()

	assert.Eventually(t, func() bool {
		return w.Metrics().PendingDocuments == 0
	}, 2*time.Second, 5*time.Millisecond)
}
