// Package selection reduces a multiply-annotated catalog to one trusted
// assignment per site.
//
// Records first lose every row whose status is excluded. Each group then
// keeps its rows either wholesale (PolicyWhole) or as the single
// highest-ranked row per site (PolicyBest). Group outputs are concatenated
// in declaration order and a final pass keeps only the first row per site.
package selection

import (
	"fmt"
	"math"
	"slices"

	"github.com/lacunalabels/maskgen/internal/domain/model"
)

// DefaultRankField ranks redundant assignments in best groups.
const DefaultRankField = "Rscore"

// DefaultStatusExclusions are dropped before grouping.
var DefaultStatusExclusions = []string{"Untrusted", "Rejected"}

// Option tunes Select.
type Option func(*options)

type options struct {
	allowOverlap bool
}

// WithAllowOverlap accepts assignment ids listed in several groups. The
// final per-site pass then keeps whichever group was declared first.
func WithAllowOverlap(allow bool) Option {
	return func(o *options) {
		o.allowOverlap = allow
	}
}

// Stats counts what happened to the input records.
type Stats struct {
	Input          int   // records offered
	Excluded       int   // dropped by status
	Ungrouped      int   // eligible but in no group
	Reduced        int   // dropped by best-policy reduction
	DuplicateSites int   // dropped by the final per-site pass
	Selected       int   // records in the catalog
	PerGroup       []int // rows retained by each group before the final pass
}

// LabelCatalog is the ordered, immutable result of Select: exactly one
// assignment per site.
type LabelCatalog struct {
	records []model.Assignment
	stats   Stats
}

// Records returns a copy of the selected assignments in catalog order.
func (c *LabelCatalog) Records() []model.Assignment {
	return slices.Clone(c.records)
}

// Len returns the number of selected assignments.
func (c *LabelCatalog) Len() int {
	return len(c.records)
}

// Stats returns the selection counters.
func (c *LabelCatalog) Stats() Stats {
	s := c.stats
	s.PerGroup = slices.Clone(c.stats.PerGroup)
	return s
}

// Select applies status exclusion, group policies and the final per-site
// pass. It is deterministic: the same inputs always give the same catalog.
func Select(records []model.Assignment, groups []Group, rankField string, exclusions []string, opts ...Option) (*LabelCatalog, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if rankField == "" || !model.HasNumericField(rankField) {
		return nil, fmt.Errorf("%w: %q", ErrMissingRankField, rankField)
	}
	if err := ValidateGroups(groups, o.allowOverlap); err != nil {
		return nil, err
	}

	stats := Stats{Input: len(records), PerGroup: make([]int, len(groups))}

	eligible := make([]model.Assignment, 0, len(records))
	for _, r := range records {
		if slices.Contains(exclusions, r.Status) {
			stats.Excluded++
			continue
		}
		eligible = append(eligible, r)
	}

	grouped := make(map[int]struct{}, len(eligible))
	var retained []model.Assignment
	for gi, g := range groups {
		var subset []model.Assignment
		for i, r := range eligible {
			if g.contains(r.AssignmentID) {
				subset = append(subset, r)
				grouped[i] = struct{}{}
			}
		}

		kept := subset
		if g.Policy == PolicyBest {
			kept = bestPerSite(subset, rankField)
			stats.Reduced += len(subset) - len(kept)
		}
		stats.PerGroup[gi] = len(kept)
		retained = append(retained, kept...)
	}
	stats.Ungrouped = len(eligible) - len(grouped)

	final := firstPerSite(retained)
	stats.DuplicateSites = len(retained) - len(final)
	stats.Selected = len(final)

	return &LabelCatalog{records: final, stats: stats}, nil
}

// bestPerSite keeps, for each site, the row with the highest rank. Ties go
// to the earlier row and NaN ranks lose to any number. Winners are ordered
// by each site's first appearance.
func bestPerSite(subset []model.Assignment, rankField string) []model.Assignment {
	pos := make(map[string]int)
	var winners []model.Assignment
	for _, r := range subset {
		i, seen := pos[r.Name]
		if !seen {
			pos[r.Name] = len(winners)
			winners = append(winners, r)
			continue
		}
		if outranks(r, winners[i], rankField) {
			winners[i] = r
		}
	}
	return winners
}

func outranks(candidate, current model.Assignment, rankField string) bool {
	c, _ := candidate.Field(rankField)
	k, _ := current.Field(rankField)
	if math.IsNaN(c) {
		return false
	}
	return math.IsNaN(k) || c > k
}

func firstPerSite(records []model.Assignment) []model.Assignment {
	seen := make(map[string]struct{}, len(records))
	out := make([]model.Assignment, 0, len(records))
	for _, r := range records {
		if _, dup := seen[r.Name]; dup {
			continue
		}
		seen[r.Name] = struct{}{}
		out = append(out, r)
	}
	return out
}
