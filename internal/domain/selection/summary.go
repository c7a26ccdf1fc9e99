package selection

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Summary describes the rank distribution of a catalog.
type Summary struct {
	Records   int
	RankField string
	Ranked    int // records with a non-NaN rank
	Mean      float64
	StdDev    float64
	Min       float64
	Max       float64
}

// Summarize computes rank statistics over the catalog. Statistics are NaN
// when fewer than one (mean, min, max) or two (stddev) ranks are known.
func Summarize(c *LabelCatalog, rankField string) Summary {
	s := Summary{
		Records:   c.Len(),
		RankField: rankField,
		Mean:      math.NaN(),
		StdDev:    math.NaN(),
		Min:       math.NaN(),
		Max:       math.NaN(),
	}

	values := make([]float64, 0, c.Len())
	for i := range c.records {
		v, ok := c.records[i].Field(rankField)
		if ok && !math.IsNaN(v) {
			values = append(values, v)
		}
	}
	s.Ranked = len(values)
	if len(values) == 0 {
		return s
	}

	s.Min, s.Max = values[0], values[0]
	for _, v := range values[1:] {
		s.Min = math.Min(s.Min, v)
		s.Max = math.Max(s.Max, v)
	}
	if len(values) == 1 {
		s.Mean = values[0]
		return s
	}
	s.Mean, s.StdDev = stat.MeanStdDev(values, nil)
	return s
}
