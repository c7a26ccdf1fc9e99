// Package worker runs rasterization tasks on a bounded pool of workers.
package worker

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/lacunalabels/maskgen/internal/adapters/mq/queue"
	"github.com/lacunalabels/maskgen/internal/domain/dedupe"
	"github.com/lacunalabels/maskgen/internal/domain/model"
	"github.com/lacunalabels/maskgen/internal/domain/types"
	"github.com/lacunalabels/maskgen/pkg/logger"
	"github.com/lacunalabels/maskgen/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultTaskTimeout      = 10 * time.Minute
	defaultProgressInterval = 5 * time.Second
)

// Rasterizer turns one assignment into a mask. Implementations report every
// per-record problem through the returned result.
type Rasterizer interface {
	Rasterize(ctx context.Context, index int, a model.Assignment) model.MaskResult
}

// Queue defines how workers receive tasks.
type Queue interface {
	Dequeue() <-chan queue.Task
}

// InMemoryWorker processes tasks and emits exactly one result per task.
type InMemoryWorker struct {
	queue       Queue
	rasterizer  Rasterizer
	claims      dedupe.Deduper
	results     chan<- model.MaskResult
	name        string
	taskTimeout time.Duration
	tracker     *types.Tracker

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, r Rasterizer, claims dedupe.Deduper, results chan<- model.MaskResult, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:       q,
		rasterizer:  r,
		claims:      claims,
		results:     results,
		name:        "worker",
		taskTimeout: defaultTaskTimeout,
		tracker:     &types.Tracker{},
		logger:      logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run consumes tasks until the queue is closed and drained. Cancellation
// of ctx does not stop the loop; remaining tasks are reported as failed so
// every submitted record gets its result.
func (w *InMemoryWorker) Run(ctx context.Context) {
	ctx = dedupe.WithOwner(ctx, w.name)
	for t := range w.queue.Dequeue() {
		w.results <- w.process(ctx, t)
	}
}

func (w *InMemoryWorker) process(ctx context.Context, t queue.Task) model.MaskResult { //nolint:gocritic // hugeParam: Task arrives by value
	start := time.Now()
	metrics.WorkerBusy(1)
	defer metrics.WorkerBusy(-1)

	res := w.attempt(ctx, t)
	res.Index = t.Index
	res.Assignment = t.Assignment
	if res.Outcome == "" {
		res.Outcome = model.OutcomeFailed
		if res.Err == "" {
			res.Err = "rasterizer returned no outcome"
		}
	}
	if res.Duration == 0 {
		res.Duration = time.Since(start)
	}

	w.tracker.Record(res.Outcome)
	metrics.RecordMaskOutcome(string(res.Outcome))
	metrics.RecordRasterizeLatency(float64(res.Duration.Milliseconds()))

	if res.Outcome == model.OutcomeFailed {
		w.logger.Warn(ctx, "mask failed",
			logger.String("site", t.Assignment.Name),
			logger.String("assignment_id", t.Assignment.AssignmentID),
			logger.String("error", res.Err),
		)
	} else {
		w.logger.Debug(ctx, "mask done",
			logger.String("site", t.Assignment.Name),
			logger.String("outcome", string(res.Outcome)),
			logger.Duration("took", res.Duration),
		)
	}
	return res
}

func (w *InMemoryWorker) attempt(ctx context.Context, t queue.Task) model.MaskResult { //nolint:gocritic // hugeParam: Task arrives by value
	if err := ctx.Err(); err != nil {
		return model.Failed(t.Index, t.Assignment, err)
	}

	if w.claims.SeenAndRecord(ctx, t.Assignment.Name) {
		metrics.RecordErrorByComponent("worker", "duplicate_site")
		owner, _ := w.claims.Owner(t.Assignment.Name)
		return model.Failed(t.Index, t.Assignment,
			fmt.Errorf("%w: %s (held by %s)", ErrDuplicateSite, t.Assignment.Name, owner.Owner))
	}

	taskCtx, cancel := context.WithTimeout(ctx, w.taskTimeout)
	defer cancel()

	done := make(chan model.MaskResult, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				metrics.RecordWorkerPanic()
				metrics.RecordErrorByComponent("worker", "panic")
				done <- model.Failed(t.Index, t.Assignment, fmt.Errorf("%w: %v", ErrWorkerPanic, p))
			}
		}()
		done <- w.rasterizer.Rasterize(taskCtx, t.Index, t.Assignment)
	}()

	select {
	case res := <-done:
		return res
	case <-taskCtx.Done():
		if err := ctx.Err(); err != nil {
			return model.Failed(t.Index, t.Assignment, err)
		}
		metrics.RecordWorkerTimeout()
		metrics.RecordErrorByComponent("worker", "timeout")
		return model.Failed(t.Index, t.Assignment,
			fmt.Errorf("%w after %s", ErrTaskTimeout, w.taskTimeout))
	}
}

// Pool manages multiple workers sharing one queue.
type Pool struct {
	workers          []*InMemoryWorker
	tracker          *types.Tracker
	progressInterval time.Duration

	wg   sync.WaitGroup
	stop chan struct{}

	logger logger.Logger
}

// NewPool creates workerCount workers reading q.
func NewPool(workerCount int, q Queue, r Rasterizer, claims dedupe.Deduper, results chan<- model.MaskResult, opts ...Option) (*Pool, error) {
	if workerCount < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidConcurrency, workerCount)
	}

	pool := &Pool{
		workers:          make([]*InMemoryWorker, workerCount),
		tracker:          &types.Tracker{},
		progressInterval: defaultProgressInterval,
		stop:             make(chan struct{}),
		logger:           logger.Get().Named("worker-pool"),
	}
	for i := 0; i < workerCount; i++ {
		wopts := append([]Option{WithName("worker-" + strconv.Itoa(i)), WithTracker(pool.tracker)}, opts...)
		pool.workers[i] = NewInMemoryWorker(q, r, claims, results, wopts...)
	}
	// A caller-supplied tracker replaces the default on every worker.
	pool.tracker = pool.workers[0].tracker
	return pool, nil
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return len(p.workers)
}

// Start launches all workers and the progress reporter.
func (p *Pool) Start(ctx context.Context) {
	metrics.UpdateWorkerActiveCount(len(p.workers))
	for _, w := range p.workers {
		p.wg.Add(1)
		go func(w *InMemoryWorker) {
			defer p.wg.Done()
			w.Run(ctx)
		}(w)
	}
	go p.reportProgress(ctx)
}

// Wait blocks until every worker has drained the queue.
func (p *Pool) Wait() {
	p.wg.Wait()
	close(p.stop)
	metrics.UpdateWorkerActiveCount(0)
}

func (p *Pool) reportProgress(ctx context.Context) {
	ticker := time.NewTicker(p.progressInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			s := p.tracker.Snapshot()
			p.logger.Info(ctx, "progress",
				logger.Int64("processed", s.Processed),
				logger.Int64("remaining", s.Remaining()),
				logger.Int64("total", s.Total),
				logger.Int64("ok", s.OK),
				logger.Int64("skipped", s.Skipped),
				logger.Int64("failed", s.Failed),
			)
		}
	}
}
