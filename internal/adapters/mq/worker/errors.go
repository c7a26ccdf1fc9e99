package worker

import "errors"

// Sentinel kinds for orchestration errors.
var (
	ErrEmptyCatalog       = errors.New("empty catalog")
	ErrInvalidConcurrency = errors.New("concurrency must be at least 1")
	ErrNilRasterizer      = errors.New("nil rasterizer")
	ErrCardinality        = errors.New("result count does not match submitted records")

	// Per-record failures; they end up in MaskResult.Err, never returned.
	ErrTaskTimeout   = errors.New("task timed out")
	ErrWorkerPanic   = errors.New("rasterizer panicked")
	ErrDuplicateSite = errors.New("site already claimed by another record")
)
