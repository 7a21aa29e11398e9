package archive

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/Sjdjdiejdrirhdkjej/YouTube-video-summariser-sub000/internal/metrics"
)

// Pool fans archive jobs out to a fixed set of workers.
type Pool struct {
	queue   *Queue
	workers []*Worker
	logger  *zap.Logger
}

// NewPool creates a Pool.
func NewPool(queue *Queue, workers []*Worker, logger *zap.Logger) *Pool {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{
		queue:   queue,
		workers: workers,
		logger:  logger,
	}
}

// Run starts all workers and blocks until every worker returns, either
// because the context finished or the queue closed and drained.
func (p *Pool) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, w := range p.workers {
		wg.Add(1)
		go func(wk *Worker) {
			defer wg.Done()
			wk.Run(ctx)
		}(w)
	}
	wg.Wait()
}

// Offer enqueues the job without blocking. Archival is best effort: a full
// or closed queue sheds the job with a warning and Offer reports false.
func (p *Pool) Offer(job Job) bool {
	if p.queue.TryEnqueue(job) {
		return true
	}
	metrics.ObserveArchiveJob("dropped")
	p.logger.Warn("archive queue full, dropping job", zap.String("video_id", job.VideoID))
	return false
}

// Close stops intake. Jobs already queued still drain through Run.
func (p *Pool) Close() {
	p.queue.Close()
}
