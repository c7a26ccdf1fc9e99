package worker

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/lacunalabels/maskgen/internal/adapters/mq/queue"
	"github.com/lacunalabels/maskgen/internal/domain/dedupe"
	"github.com/lacunalabels/maskgen/internal/domain/model"
	"github.com/lacunalabels/maskgen/internal/domain/types"
	"github.com/lacunalabels/maskgen/pkg/logger"
)

const defaultQueueSize = 256

// Orchestrator fans a catalog out to a fixed number of workers and collects
// exactly one result per record.
type Orchestrator struct {
	concurrency      int
	queueSize        int
	taskTimeout      time.Duration
	progressInterval time.Duration
	runID            string
	tracker          *types.Tracker

	logger logger.Logger
}

// NewOrchestrator creates an orchestrator running concurrency workers.
func NewOrchestrator(concurrency int, opts ...OrchestratorOption) (*Orchestrator, error) {
	if concurrency < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidConcurrency, concurrency)
	}
	o := &Orchestrator{
		concurrency:      concurrency,
		queueSize:        defaultQueueSize,
		taskTimeout:      defaultTaskTimeout,
		progressInterval: defaultProgressInterval,
		tracker:          &types.Tracker{},
		logger:           logger.Get().Named("orchestrator"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Concurrency returns the number of workers a run uses.
func (o *Orchestrator) Concurrency() int {
	return o.concurrency
}

// Progress returns the tracker updated during Run.
func (o *Orchestrator) Progress() *types.Tracker {
	return o.tracker
}

// Run rasterizes every record of catalog with r. The returned slice holds
// one result per record, ordered by submission index. Per-record problems
// are reported in the results; an error is returned only when the run could
// not be attempted or the result count does not match.
func (o *Orchestrator) Run(ctx context.Context, catalog []model.Assignment, r Rasterizer) ([]model.MaskResult, error) {
	if len(catalog) == 0 {
		return nil, ErrEmptyCatalog
	}
	if r == nil {
		return nil, ErrNilRasterizer
	}

	start := time.Now()
	o.tracker.Begin(o.runID, len(catalog))
	o.logger.Info(ctx, "mask generation started",
		logger.Int("records", len(catalog)),
		logger.Int("workers", o.concurrency),
	)

	q := queue.NewInMemoryQueue(queue.WithCapacity(o.queueSize))
	results := make(chan model.MaskResult, len(catalog))
	claims := dedupe.NewInMemoryDeduper(dedupe.WithSizeHint(len(catalog)))

	pool, err := NewPool(o.concurrency, q, r, claims, results,
		WithTaskTimeout(o.taskTimeout),
		WithTracker(o.tracker),
	)
	if err != nil {
		return nil, err
	}
	pool.progressInterval = o.progressInterval
	pool.Start(ctx)

	for i := range catalog {
		if err := q.Enqueue(ctx, queue.Task{Index: i, Assignment: catalog[i]}); err != nil {
			// Never reached a worker; still owes a result.
			o.tracker.Record(model.OutcomeFailed)
			results <- model.Failed(i, catalog[i], err)
		}
	}
	_ = q.Close()
	pool.Wait()
	close(results)

	out := make([]model.MaskResult, 0, len(catalog))
	for res := range results {
		out = append(out, res)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })

	if err := checkCardinality(out, len(catalog)); err != nil {
		return out, err
	}

	s := o.tracker.Snapshot()
	o.logger.Info(ctx, "mask generation finished",
		logger.Int64("ok", s.OK),
		logger.Int64("skipped", s.Skipped),
		logger.Int64("failed", s.Failed),
		logger.Duration("took", time.Since(start)),
	)
	return out, nil
}

// checkCardinality verifies results are sorted and hold each index
// 0..n-1 exactly once.
func checkCardinality(results []model.MaskResult, n int) error {
	if len(results) != n {
		return fmt.Errorf("%w: submitted %d, got %d", ErrCardinality, n, len(results))
	}
	for i := range results {
		if results[i].Index != i {
			return fmt.Errorf("%w: index %d missing or repeated", ErrCardinality, i)
		}
	}
	return nil
}
