package service

import (
	"errors"
)

// Sentinel errors for the pipeline service.
var (
	ErrNilConfig = errors.New("nil config")
	ErrLayout    = errors.New("create data layout")
	ErrInput     = errors.New("input error")
	ErrResource  = errors.New("required dataset missing")
	ErrPolicy    = errors.New("selection policy error")
	ErrOutput    = errors.New("write results")
	ErrBusy      = errors.New("a run is already in progress")
)
