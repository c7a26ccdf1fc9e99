// Package types contains run-level types shared across layers.
package types

import (
	"sync/atomic"
	"time"

	"github.com/lacunalabels/maskgen/internal/domain/model"
)

// Progress is a point-in-time view of a mask generation run.
type Progress struct {
	RunID     string    `json:"run_id"`
	Stage     string    `json:"stage"`
	Total     int64     `json:"total"`
	Processed int64     `json:"processed"`
	OK        int64     `json:"ok"`
	Skipped   int64     `json:"skipped"`
	Failed    int64     `json:"failed"`
	StartedAt time.Time `json:"started_at"`
}

// Remaining returns how many records have not produced a result yet.
func (p Progress) Remaining() int64 {
	return p.Total - p.Processed
}

// Tracker counts outcomes concurrently. The zero value is ready to use.
type Tracker struct {
	runID     atomic.Value // string
	stage     atomic.Value // string
	total     atomic.Int64
	processed atomic.Int64
	ok        atomic.Int64
	skipped   atomic.Int64
	failed    atomic.Int64
	started   atomic.Int64 // unix nanos
}

// Begin resets the counters for a run of total records.
func (t *Tracker) Begin(runID string, total int) {
	t.runID.Store(runID)
	t.total.Store(int64(total))
	t.processed.Store(0)
	t.ok.Store(0)
	t.skipped.Store(0)
	t.failed.Store(0)
	t.started.Store(time.Now().UnixNano())
}

// SetStage records the pipeline stage for status reporting.
func (t *Tracker) SetStage(stage string) {
	t.stage.Store(stage)
}

// Record counts one result.
func (t *Tracker) Record(o model.Outcome) {
	switch o {
	case model.OutcomeOK:
		t.ok.Add(1)
	case model.OutcomeSkipped:
		t.skipped.Add(1)
	default:
		t.failed.Add(1)
	}
	t.processed.Add(1)
}

// Snapshot returns the current counters.
func (t *Tracker) Snapshot() Progress {
	p := Progress{
		Total:     t.total.Load(),
		Processed: t.processed.Load(),
		OK:        t.ok.Load(),
		Skipped:   t.skipped.Load(),
		Failed:    t.failed.Load(),
	}
	if id, ok := t.runID.Load().(string); ok {
		p.RunID = id
	}
	if s, ok := t.stage.Load().(string); ok {
		p.Stage = s
	}
	if ns := t.started.Load(); ns != 0 {
		p.StartedAt = time.Unix(0, ns)
	}
	return p
}

// RunSummary is what a completed run reports.
type RunSummary struct {
	RunID       string        `json:"run_id"`
	Selected    int           `json:"selected"`
	OK          int           `json:"ok"`
	Skipped     int           `json:"skipped"`
	Failed      int           `json:"failed"`
	ResultFile  string        `json:"result_file"`
	ResultDB    string        `json:"result_db,omitempty"`
	Duration    time.Duration `json:"duration"`
	RankMean    float64       `json:"rank_mean"`
	RankStdDev  float64       `json:"rank_stddev"`
	FailedSites []string      `json:"failed_sites,omitempty"`
}
