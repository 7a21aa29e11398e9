// Package archive persists prompt and summary artifacts for finished
// sessions off the request path.
package archive

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrClosed is returned by Dequeue once the queue is closed and drained.
var ErrClosed = errors.New("archive queue closed")

// Job carries one finished summary to the archive workers.
type Job struct {
	SessionID [16]byte
	VideoID   string
	VideoURL  string
	Prompt    string
	Summary   string
	Model     string
	Sources   []string
}

// Queue is a bounded in-memory job queue. Intake never blocks the caller; a
// full queue sheds the job instead.
type Queue struct {
	ch      chan Job
	closeMu sync.Mutex
	closed  bool
}

// NewQueue constructs a queue with the provided capacity.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue{
		ch: make(chan Job, capacity),
	}
}

// TryEnqueue offers the job without blocking. It reports false when the
// queue is full or closed.
func (q *Queue) TryEnqueue(job Job) bool {
	q.closeMu.Lock()
	defer q.closeMu.Unlock()
	if q.closed {
		return false
	}
	select {
	case q.ch <- job:
		return true
	default:
		return false
	}
}

// Dequeue pops the next job, respecting context cancellation. Jobs buffered
// at close time are still delivered before ErrClosed.
func (q *Queue) Dequeue(ctx context.Context) (Job, error) {
	select {
	case <-ctx.Done():
		return Job{}, fmt.Errorf("dequeue canceled: %w", ctx.Err())
	case job, ok := <-q.ch:
		if !ok {
			return Job{}, ErrClosed
		}
		return job, nil
	}
}

// Close closes the underlying channel for shutdown.
func (q *Queue) Close() {
	q.closeMu.Lock()
	defer q.closeMu.Unlock()
	if q.closed {
		return
	}
	close(q.ch)
	q.closed = true
}
