package selection

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Policy decides how a group reduces its assignments.
type Policy string

const (
	// PolicyWhole keeps every assignment of the group.
	PolicyWhole Policy = "whole"
	// PolicyBest keeps, per site, the assignment with the highest rank.
	PolicyBest Policy = "best"
)

// Valid reports whether p is a known policy.
func (p Policy) Valid() bool {
	return p == PolicyWhole || p == PolicyBest
}

// Group is a named set of assignment ids sharing one policy.
type Group struct {
	Policy Policy
	IDs    []string
}

func (g Group) String() string {
	return fmt.Sprintf("%s%v", g.Policy, g.IDs)
}

func (g Group) contains(id string) bool {
	return slices.Contains(g.IDs, id)
}

// ParseGroups normalizes group definitions as they come out of a config
// file: a list of single-key maps from policy name to either one id or a
// list of ids. Ids may be strings or numbers ("2" and 2 are the same id).
//
//	- whole: ["1a", "2"]
//	- best: ["1b", "1d"]
//	- best: "4"
func ParseGroups(raw []map[string]any) ([]Group, error) {
	groups := make([]Group, 0, len(raw))
	for i, entry := range raw {
		if len(entry) != 1 {
			return nil, fmt.Errorf("%w: group %d must have exactly one policy key, got %d", ErrInvalidGroup, i, len(entry))
		}
		for key, value := range entry {
			policy := Policy(strings.ToLower(strings.TrimSpace(key)))
			if !policy.Valid() {
				return nil, fmt.Errorf("%w: %q in group %d", ErrUnknownGroupPolicy, key, i)
			}
			ids, err := normalizeIDs(value)
			if err != nil {
				return nil, fmt.Errorf("group %d: %w", i, err)
			}
			if len(ids) == 0 {
				return nil, fmt.Errorf("%w: group %d", ErrEmptyGroup, i)
			}
			groups = append(groups, Group{Policy: policy, IDs: ids})
		}
	}
	return groups, nil
}

func normalizeIDs(value any) ([]string, error) {
	switch v := value.(type) {
	case []any:
		ids := make([]string, 0, len(v))
		for _, item := range v {
			id, err := scalarID(item)
			if err != nil {
				return nil, err
			}
			if !slices.Contains(ids, id) {
				ids = append(ids, id)
			}
		}
		return ids, nil
	case []string:
		return normalizeIDs(toAnySlice(v))
	default:
		id, err := scalarID(v)
		if err != nil {
			return nil, err
		}
		return []string{id}, nil
	}
}

func toAnySlice(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}

func scalarID(v any) (string, error) {
	var id string
	switch x := v.(type) {
	case string:
		id = strings.TrimSpace(x)
	case int:
		id = strconv.Itoa(x)
	case int64:
		id = strconv.FormatInt(x, 10)
	case uint64:
		id = strconv.FormatUint(x, 10)
	case float64:
		id = strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return "", fmt.Errorf("%w: unsupported assignment id %v (%T)", ErrInvalidGroup, v, v)
	}
	if id == "" {
		return "", fmt.Errorf("%w: empty assignment id", ErrInvalidGroup)
	}
	return id, nil
}

// ValidateGroups checks policies and, unless allowOverlap is set, that no
// assignment id is claimed by two groups.
func ValidateGroups(groups []Group, allowOverlap bool) error {
	owner := make(map[string]int)
	for i, g := range groups {
		if !g.Policy.Valid() {
			return fmt.Errorf("%w: %q in group %d", ErrUnknownGroupPolicy, g.Policy, i)
		}
		if len(g.IDs) == 0 {
			return fmt.Errorf("%w: group %d", ErrEmptyGroup, i)
		}
		if allowOverlap {
			continue
		}
		for _, id := range g.IDs {
			if prev, ok := owner[id]; ok && prev != i {
				return fmt.Errorf("%w: %q in groups %d and %d", ErrGroupOverlap, id, prev, i)
			}
			owner[id] = i
		}
	}
	return nil
}
