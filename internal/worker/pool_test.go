package worker

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/songokas/hvents/internal/logger"
	"github.com/songokas/hvents/internal/queue"
	"github.com/songokas/hvents/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testInitLogger(t *testing.T) {
	t.Helper()
	settings := models.ApplicationSettings{LogLevel: "error", LogFormat: "text"}
	err := logger.Init(settings, io.Discard)
	require.NoError(t, err, "Failed to initialize logger for test")
}

type mockProcessor struct {
	processFunc  func(ctx context.Context, event models.Event) error
	callCount    atomic.Int32
	mu           sync.Mutex
	processedIDs map[string]bool
}

func newMockProcessor(processFunc func(ctx context.Context, event models.Event) error) *mockProcessor {
	if processFunc == nil {
		processFunc = func(ctx context.Context, event models.Event) error { return nil }
	}
	return &mockProcessor{
		processFunc:  processFunc,
		processedIDs: make(map[string]bool),
	}
}

func (m *mockProcessor) Process(ctx context.Context, event models.Event) error {
	m.callCount.Add(1)
	m.mu.Lock()
	m.processedIDs[event.ID] = true
	m.mu.Unlock()
	return m.processFunc(ctx, event)
}

func (m *mockProcessor) GetCallCount() int { return int(m.callCount.Load()) }

func TestNewPool(t *testing.T) {
	testInitLogger(t)
	cfg := models.ApplicationSettings{MaxConcurrency: 5}
	q := queue.New(10)
	proc := newMockProcessor(nil)

	pool := NewPool(cfg, q, proc)

	require.NotNil(t, pool)
	assert.Equal(t, cfg, pool.config)
	assert.Equal(t, q, pool.ready)
	assert.Equal(t, proc, pool.processor)
	assert.Nil(t, pool.cancelCtx)
}

func TestPoolStartStopBasic(t *testing.T) {
	testInitLogger(t)
	cfg := models.ApplicationSettings{MaxConcurrency: 2}
	q := queue.New(10)
	pool := NewPool(cfg, q, newMockProcessor(nil))

	pool.Start()
	require.NotNil(t, pool.cancelCtx)

	time.Sleep(50 * time.Millisecond)
	pool.Stop()
	pool.Stop() // idempotent
}

func TestPoolProcessEventsSuccess(t *testing.T) {
	testInitLogger(t)
	cfg := models.ApplicationSettings{MaxConcurrency: 2}
	q := queue.New(10)
	proc := newMockProcessor(nil)
	pool := NewPool(cfg, q, proc)

	pool.Start()
	defer pool.Stop()

	require.NoError(t, q.Enqueue(models.Event{Name: "act1"}))
	require.NoError(t, q.Enqueue(models.Event{Name: "act2"}))

	assert.Eventually(t, func() bool {
		return proc.GetCallCount() == 2
	}, 2*time.Second, 20*time.Millisecond)
}

func TestPoolProcessEventsProcessorError(t *testing.T) {
	testInitLogger(t)
	cfg := models.ApplicationSettings{MaxConcurrency: 1}
	q := queue.New(10)
	proc := newMockProcessor(func(ctx context.Context, event models.Event) error {
		return fmt.Errorf("processing failed for %s", event.ID)
	})
	pool := NewPool(cfg, q, proc)

	pool.Start()
	defer pool.Stop()

	require.NoError(t, q.Enqueue(models.Event{Name: "act1"}))

	assert.Eventually(t, func() bool {
		return proc.GetCallCount() == 1
	}, time.Second, 20*time.Millisecond)
}

func TestPoolStopCancelsContext(t *testing.T) {
	testInitLogger(t)
	cfg := models.ApplicationSettings{MaxConcurrency: 1}
	q := queue.New(10)
	blockChan := make(chan struct{})

	var processorCtx context.Context
	var processorCtxErr error
	proc := newMockProcessor(func(ctx context.Context, event models.Event) error {
		processorCtx = ctx
		<-blockChan
		processorCtxErr = ctx.Err()
		return nil
	})
	pool := NewPool(cfg, q, proc)
	pool.Start()

	require.NoError(t, q.Enqueue(models.Event{Name: "act1"}))

	require.Eventually(t, func() bool {
		return proc.GetCallCount() == 1
	}, time.Second, 10*time.Millisecond)

	stopDone := make(chan struct{})
	go func() {
		pool.Stop()
		close(stopDone)
	}()

	time.Sleep(50 * time.Millisecond)
	close(blockChan)

	select {
	case <-stopDone:
	case <-time.After(2 * time.Second):
		t.Fatal("pool Stop() timed out")
	}

	require.NotNil(t, processorCtx)
	assert.ErrorIs(t, processorCtxErr, context.Canceled)
}

func TestPoolDefaultConcurrency(t *testing.T) {
	testInitLogger(t)
	cfg := models.ApplicationSettings{MaxConcurrency: 0}
	q := queue.New(10)
	pool := NewPool(cfg, q, newMockProcessor(nil))

	pool.Start()
	defer pool.Stop()
	time.Sleep(50 * time.Millisecond)
}
