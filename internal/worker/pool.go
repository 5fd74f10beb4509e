package worker

import (
	"context"
	"sync"

	"github.com/songokas/hvents/internal/logger"
	"github.com/songokas/hvents/internal/queue"
	"github.com/songokas/hvents/pkg/models"
)

// Processor runs the effect a dequeued event names. Each worker goroutine
// runs one Processor call at a time, so an effect that blocks on I/O (an
// outbound HTTP call, a subprocess, a file write) holds only its own worker.
type Processor interface {
	Process(ctx context.Context, event models.Event) error
}

// Pool manages a pool of worker goroutines that drain a ready queue.
type Pool struct {
	config    models.ApplicationSettings
	ready     *queue.ReadyQueue
	processor Processor
	wg        sync.WaitGroup
	cancelCtx context.CancelFunc
}

// NewPool creates a new worker pool.
func NewPool(cfg models.ApplicationSettings, ready *queue.ReadyQueue, proc Processor) *Pool {
	return &Pool{
		config:    cfg,
		ready:     ready,
		processor: proc,
	}
}

// Start launches the worker goroutines.
func (p *Pool) Start() {
	concurrency := p.config.MaxConcurrency
	if concurrency <= 0 {
		concurrency = 1
		logger.L().Warn("max_concurrency not set or invalid, defaulting to 1", "configured_value", p.config.MaxConcurrency)
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.cancelCtx = cancel

	logger.L().Info("starting worker pool", "concurrency", concurrency)
	p.wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go p.worker(ctx, i)
	}
}

// Stop signals all workers to stop and waits for them to finish.
func (p *Pool) Stop() {
	logger.L().Info("stopping worker pool")
	if p.cancelCtx != nil {
		p.cancelCtx()
	}
	p.wg.Wait()
	logger.L().Info("worker pool stopped")
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		default:
			event, err := p.ready.Dequeue(ctx)
			if err != nil {
				if err != context.Canceled && err != context.DeadlineExceeded {
					logger.L().Debug("worker stopping", "worker_id", id, "error", err)
				}
				return
			}

			l := logger.L().With("worker_id", id, "event_id", event.ID, "name", event.Name)
			if processErr := p.processor.Process(ctx, event); processErr != nil {
				l.Error("worker failed to process event", "error", processErr)
			}

			select {
			case <-ctx.Done():
				return
			default:
			}
		}
	}
}
