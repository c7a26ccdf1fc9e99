package catalog

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/lacunalabels/maskgen/internal/domain/model"
)

// requiredColumns must be present to build an Assignment.
var requiredColumns = []string{"name", "assignment_id", "status"}

// ToAssignments converts a merged table into typed records. Missing
// optional columns and empty or NA numeric cells become zero values / NaN.
func ToAssignments(t *Table) ([]model.Assignment, error) {
	for _, c := range requiredColumns {
		if t.Index(c) < 0 {
			return nil, fmt.Errorf("%w: missing column %q", ErrSchema, c)
		}
	}

	str := func(row []string, col string) string {
		if i := t.Index(col); i >= 0 {
			return strings.TrimSpace(row[i])
		}
		return ""
	}

	out := make([]model.Assignment, 0, t.Len())
	for r, row := range t.Rows {
		num := func(col string) (float64, error) {
			return parseNumber(str(row, col))
		}

		a := model.Assignment{
			Name:         str(row, "name"),
			Class:        str(row, "Class"),
			AssignmentID: str(row, "assignment_id"),
			Labeller:     str(row, "Labeller"),
			Status:       str(row, "status"),
			Image:        str(row, "image"),
			Chip:         str(row, "chip"),
		}
		if a.Name == "" {
			return nil, fmt.Errorf("%w: row %d has an empty name", ErrSchema, r+1)
		}

		targets := []struct {
			col string
			dst *float64
		}{
			{"Score", &a.Score}, {"N", &a.N}, {"Area", &a.Area},
			{"Qscore", &a.Qscore}, {"Rscore", &a.Rscore},
			{"x", &a.X}, {"y", &a.Y}, {"farea", &a.FArea}, {"nflds", &a.NFlds},
		}
		for _, tg := range targets {
			v, err := num(tg.col)
			if err != nil {
				return nil, fmt.Errorf("%w: row %d column %q: %w", ErrSchema, r+1, tg.col, err)
			}
			*tg.dst = v
		}
		out = append(out, a)
	}
	return out, nil
}

func parseNumber(s string) (float64, error) {
	switch strings.ToLower(s) {
	case "", "na", "nan", "null", "none":
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}

// Cells renders a in DefaultKeepColumns order. NaN becomes an empty cell.
func Cells(a *model.Assignment) []string {
	return []string{
		a.Name, a.Class, a.AssignmentID, a.Labeller, a.Status,
		formatNumber(a.Score), formatNumber(a.N), formatNumber(a.Area),
		formatNumber(a.Qscore), formatNumber(a.Rscore),
		formatNumber(a.X), formatNumber(a.Y),
		formatNumber(a.FArea), formatNumber(a.NFlds),
		a.Image, a.Chip,
	}
}

func formatNumber(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
