package repository

import "errors"

// Sentinel kinds for repository errors.
var (
	ErrNotFound    = errors.New("file not found")
	ErrMalformed   = errors.New("malformed table")
	ErrWriteResult = errors.New("result write failed")
	ErrStoreClosed = errors.New("store closed")
)
