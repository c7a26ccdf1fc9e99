// Package catalog merges raw annotation tables into assignment records.
package catalog

import (
	"fmt"
	"slices"
)

// DefaultKeepColumns is the column set retained after merging.
var DefaultKeepColumns = []string{
	"name", "Class", "assignment_id", "Labeller", "status", "Score",
	"N", "Area", "Qscore", "Rscore", "x", "y", "farea", "nflds", "image", "chip",
}

// DefaultDropColumns are removed from the chip-index table before joining.
var DefaultDropColumns = []string{"image_date"}

// Table is a header plus rows of string cells, as read from a flat file.
type Table struct {
	Columns []string
	Rows    [][]string
}

// NewTable validates that every row has one cell per column.
func NewTable(columns []string, rows [][]string) (*Table, error) {
	seen := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		if _, dup := seen[c]; dup {
			return nil, fmt.Errorf("%w: duplicate column %q", ErrSchema, c)
		}
		seen[c] = struct{}{}
	}
	for i, r := range rows {
		if len(r) != len(columns) {
			return nil, fmt.Errorf("%w: row %d has %d cells, want %d", ErrSchema, i+1, len(r), len(columns))
		}
	}
	return &Table{Columns: columns, Rows: rows}, nil
}

// Index returns the position of column, or -1.
func (t *Table) Index(column string) int {
	return slices.Index(t.Columns, column)
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// Project returns a table restricted to columns, in that order.
func (t *Table) Project(columns []string) (*Table, error) {
	idx := make([]int, len(columns))
	var missing []string
	for i, c := range columns {
		idx[i] = t.Index(c)
		if idx[i] < 0 {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing columns %v", ErrSchema, missing)
	}

	rows := make([][]string, len(t.Rows))
	for r, row := range t.Rows {
		out := make([]string, len(idx))
		for i, j := range idx {
			out[i] = row[j]
		}
		rows[r] = out
	}
	return &Table{Columns: slices.Clone(columns), Rows: rows}, nil
}

// Drop returns a table without the named columns. Unknown names are ignored.
func (t *Table) Drop(columns []string) *Table {
	keep := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		if !slices.Contains(columns, c) {
			keep = append(keep, c)
		}
	}
	out, _ := t.Project(keep) // every kept column exists
	return out
}
