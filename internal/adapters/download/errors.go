package download

import "errors"

// Sentinel kinds for download errors.
var (
	ErrBadStatus     = errors.New("unexpected HTTP status")
	ErrInvalidSource = errors.New("invalid source")
)
