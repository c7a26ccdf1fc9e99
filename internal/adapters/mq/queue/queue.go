// Package queue holds the bounded hand-off between catalog submission and
// the mask workers.
package queue

import (
	"context"
	"fmt"
	"sync"

	"github.com/lacunalabels/maskgen/internal/domain/model"
	"github.com/lacunalabels/maskgen/pkg/metrics"
)

const defaultQueueCapacity = 1024

// Task is one catalog record waiting to be rasterized. Index is its
// position in the submitted catalog.
type Task struct {
	Index      int
	Assignment model.Assignment
}

// Queue provides blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue blocks until the task is buffered, ctx is done or the queue
	// is closed.
	Enqueue(ctx context.Context, t Task) error

	// Dequeue returns a channel that yields tasks until the queue is
	// closed and drained.
	Dequeue() <-chan Task

	Len() int
	Close() error
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	tasks    chan Task
	capacity int

	closing   chan struct{}
	closeOnce sync.Once

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{
		capacity: defaultQueueCapacity,
		closing:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(q)
	}
	q.tasks = make(chan Task, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)

	return q
}

// Enqueue adds a task, waiting for room when the queue is full.
func (q *InMemoryQueue) Enqueue(ctx context.Context, t Task) error { //nolint:gocritic // hugeParam: Task travels by value through the channel
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordErrorByComponent("queue", "closed")
		return ErrClosed
	}

	select {
	case q.tasks <- t:
		metrics.RecordQueueEnqueue()
		metrics.UpdateQueueSize(len(q.tasks))
		return nil
	case <-ctx.Done():
		metrics.RecordErrorByComponent("queue", "context_cancelled")
		return fmt.Errorf("enqueue %s: %w", t.Assignment.Name, ctx.Err())
	case <-q.closing:
		metrics.RecordErrorByComponent("queue", "closed")
		return ErrClosed
	}
}

// Dequeue returns a channel of queued tasks. The channel is closed once
// the queue has been closed and every buffered task was handed out.
func (q *InMemoryQueue) Dequeue() <-chan Task {
	out := make(chan Task)
	go func() {
		defer close(out)
		for t := range q.tasks {
			out <- t
			metrics.RecordQueueDequeue()
			metrics.UpdateQueueSize(len(q.tasks))
		}
	}()
	return out
}

// Len returns the number of buffered tasks.
func (q *InMemoryQueue) Len() int {
	size := len(q.tasks)
	metrics.UpdateQueueSize(size)
	return size
}

// Close stops accepting tasks. Buffered tasks remain available to Dequeue.
func (q *InMemoryQueue) Close() error {
	q.closeOnce.Do(func() {
		// Wake blocked producers before taking the write lock they hold
		// in read mode.
		close(q.closing)

		q.mu.Lock()
		defer q.mu.Unlock()
		close(q.tasks)
		q.closed = true
	})
	return nil
}

// IsClosed reports whether Close was called.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
