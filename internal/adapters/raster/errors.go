package raster

import "errors"

// Sentinel kinds for rasterization errors.
var (
	ErrFieldsNotFound          = errors.New("field geometries not found")
	ErrFieldsInvalid           = errors.New("invalid field geometries")
	ErrChipUnreadable          = errors.New("chip unreadable")
	ErrNoGeoreference          = errors.New("chip has no georeference")
	ErrUnsupportedGeoreference = errors.New("rotated georeference not supported")
	ErrNoFieldIntersection     = errors.New("no field geometry intersects the chip")
	ErrMaskWrite               = errors.New("mask write failed")
	ErrInvalidSourceColumn     = errors.New("source column must be image or chip")
)
