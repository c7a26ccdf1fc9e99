package catalog

import (
	"fmt"
	"strings"
)

// keySep joins key cells (ASCII unit separator).
const keySep = "\x1f"

// Merge inner-joins the annotation table with the chip-index table on every
// column they share after removing drop from the chip-index side, then
// projects the result onto keep. Left row order is preserved.
//
// The chip-index side must be unique on the join key; otherwise the merge
// would silently duplicate annotation rows and ErrJoin is returned.
func Merge(annotations, chips *Table, drop, keep []string) (*Table, error) {
	if annotations == nil || chips == nil {
		return nil, fmt.Errorf("%w: nil table", ErrJoin)
	}
	right := chips.Drop(drop)

	var keys []string
	for _, c := range annotations.Columns {
		if right.Index(c) >= 0 {
			keys = append(keys, c)
		}
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("%w: no common columns to join on", ErrJoin)
	}

	leftKey := columnIndexes(annotations, keys)
	rightKey := columnIndexes(right, keys)

	lookup := make(map[string]int, right.Len())
	for i, row := range right.Rows {
		k := joinKey(row, rightKey)
		if prev, dup := lookup[k]; dup {
			return nil, fmt.Errorf("%w: key %v is not unique in chip index (rows %d and %d)",
				ErrJoin, keyValues(row, rightKey), prev+1, i+1)
		}
		lookup[k] = i
	}

	// Output columns: all left columns, then right-only columns.
	var extra []int
	columns := append([]string(nil), annotations.Columns...)
	for i, c := range right.Columns {
		if annotations.Index(c) < 0 {
			columns = append(columns, c)
			extra = append(extra, i)
		}
	}

	rows := make([][]string, 0, annotations.Len())
	for _, row := range annotations.Rows {
		j, ok := lookup[joinKey(row, leftKey)]
		if !ok {
			continue
		}
		out := make([]string, 0, len(columns))
		out = append(out, row...)
		for _, e := range extra {
			out = append(out, right.Rows[j][e])
		}
		rows = append(rows, out)
	}

	joined := &Table{Columns: columns, Rows: rows}
	return joined.Project(keep)
}

func columnIndexes(t *Table, columns []string) []int {
	idx := make([]int, len(columns))
	for i, c := range columns {
		idx[i] = t.Index(c)
	}
	return idx
}

func joinKey(row []string, idx []int) string {
	return strings.Join(keyValues(row, idx), keySep)
}

func keyValues(row []string, idx []int) []string {
	vals := make([]string, len(idx))
	for i, j := range idx {
		vals[i] = strings.TrimSpace(row[j])
	}
	return vals
}
