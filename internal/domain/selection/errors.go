package selection

import "errors"

// Sentinel kinds for selection errors.
var (
	ErrUnknownGroupPolicy = errors.New("unknown group policy")
	ErrMissingRankField   = errors.New("missing rank field")
	ErrGroupOverlap       = errors.New("assignment id belongs to several groups")
	ErrEmptyGroup         = errors.New("group has no assignment ids")
	ErrInvalidGroup       = errors.New("invalid group definition")
)
