package service

import "errors"

// Sentinel kinds for service errors.
var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrRecordNotFound     = errors.New("record not found")
	ErrNotStarted         = errors.New("service not started")
	ErrImportBackpressure = errors.New("import queue full")
	ErrDuplicateBatch     = errors.New("import batch already accepted")
)
