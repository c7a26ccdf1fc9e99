package catalog

import "errors"

// Sentinel kinds for catalog errors.
var (
	ErrSchema = errors.New("catalog schema error")
	ErrJoin   = errors.New("catalog join error")
)
