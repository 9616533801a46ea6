package repository

import "errors"

// Sentinel kinds for ledger errors.
var (
	ErrNotFound      = errors.New("record not found")
	ErrInvalidRecord = errors.New("invalid performance record")
)
