package repository

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/lacunalabels/maskgen/internal/domain/catalog"
	"github.com/lacunalabels/maskgen/internal/domain/model"
)

// ReadTable loads a CSV file with a header row.
func ReadTable(path string) (*catalog.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: expected at %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	t, err := decodeTable(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

func decodeTable(r io.Reader) (*catalog.Table, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = false

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: empty file", ErrMalformed)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if len(header) > 0 {
		header[0] = trimBOM(header[0])
	}
	// Pandas writes an unnamed leading index column; drop it.
	skipFirst := len(header) > 0 && header[0] == ""
	if skipFirst {
		header = header[1:]
	}

	var rows [][]string
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
		}
		if skipFirst {
			rec = rec[1:]
		}
		rows = append(rows, rec)
	}

	t, err := catalog.NewTable(slices.Clone(header), rows)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return t, nil
}

func trimBOM(s string) string {
	return strings.TrimPrefix(s, "\ufeff")
}

// WriteResults writes the result catalog to path, replacing it atomically.
func WriteResults(path string, results []model.MaskResult) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteResult, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".results-*.csv")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWriteResult, err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	w := csv.NewWriter(tmp)
	if err := w.Write(ResultHeader()); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%w: %w", ErrWriteResult, err)
	}
	ordered := slices.Clone(results)
	slices.SortStableFunc(ordered, func(a, b model.MaskResult) int { return a.Index - b.Index })
	for i := range ordered {
		if err := w.Write(resultRow(&ordered[i])); err != nil {
			_ = tmp.Close()
			return fmt.Errorf("%w: %w", ErrWriteResult, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%w: %w", ErrWriteResult, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteResult, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteResult, err)
	}
	committed = true
	return nil
}

// CSVStore adapts WriteResults to Store.
type CSVStore struct {
	path string
}

// NewCSVStore writes results to path.
func NewCSVStore(path string) *CSVStore {
	return &CSVStore{path: path}
}

// Path returns the result file location.
func (s *CSVStore) Path() string {
	return s.path
}

// SaveResults writes the result catalog. The run id is not recorded in CSV.
func (s *CSVStore) SaveResults(_ context.Context, _ string, results []model.MaskResult) error {
	return WriteResults(s.path, results)
}

// Close is a no-op.
func (s *CSVStore) Close() error {
	return nil
}
