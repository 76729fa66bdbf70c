package database

import "errors"

// Sentinel errors returned by repositories.
var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrNotClaimable is returned when a queue entry cannot be claimed for
	// processing because it is not pending.
	ErrNotClaimable = errors.New("queue entry is not pending")
)
