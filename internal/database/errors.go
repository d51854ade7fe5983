package database

import "errors"

var (
	// ErrNotFound is returned when a request or schedule entry does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrStaleStatus is returned when a status transition touched zero rows
	// because a concurrent write changed the status first.
	ErrStaleStatus = errors.New("status changed by a concurrent transition")

	// ErrScheduleConflict is returned when an approval would create a
	// schedule entry overlapping a confirmed one for the same room and date.
	ErrScheduleConflict = errors.New("overlapping confirmed schedule entry")
)
