package dtm0log

import (
	"errors"

	"github.com/i-melnichenko/dtm0-lab/internal/be"
	"github.com/i-melnichenko/dtm0-lab/internal/dtx"
)

var (
	// ErrNotFound is returned by Prune when no record matches the target.
	ErrNotFound = errors.New("dtm0log: record not found")
	// ErrUnstable is returned by Prune when a record before the target has
	// a participant that has not persisted it yet.
	ErrUnstable = errors.New("dtm0log: unstable record before prune target")
	// ErrGroupMismatch is returned by Update when the incoming participant
	// group differs from the logged one.
	ErrGroupMismatch = errors.New("dtm0log: participant group mismatch")
	// ErrCorrupt is returned when a durable log object fails validation.
	ErrCorrupt = be.ErrCorrupt
	// ErrInvalidDescriptor is returned by Update for descriptors that fail
	// validation.
	ErrInvalidDescriptor = dtx.ErrInvalidDescriptor
)
