// Package repository reads catalog tables and persists mask results.
package repository

import (
	"context"

	"github.com/lacunalabels/maskgen/internal/domain/catalog"
	"github.com/lacunalabels/maskgen/internal/domain/model"
)

// Store persists the results of one run.
type Store interface {
	// SaveResults writes results, which are ordered by submission index.
	SaveResults(ctx context.Context, runID string, results []model.MaskResult) error
	Close() error
}

// Extra result columns appended to the provenance columns.
var resultColumns = []string{"label", "outcome", "error"}

// ResultHeader returns the column names of the result catalog.
func ResultHeader() []string {
	h := make([]string, 0, len(catalog.DefaultKeepColumns)+len(resultColumns))
	h = append(h, catalog.DefaultKeepColumns...)
	return append(h, resultColumns...)
}

func resultRow(r *model.MaskResult) []string {
	return append(catalog.Cells(&r.Assignment), r.MaskPath, string(r.Outcome), r.Err)
}
