package api

import (
	"errors"
	"time"
)

// ErrRunNotFound is returned by GetRun when no record exists for a run
// number.
var ErrRunNotFound = errors.New("run not found")

// Status is the terminal state of a finalized run.
type Status string

const (
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
)

// RunRecord is the stored outcome of one finalized run.
type RunRecord struct {
	// Run is the run number assigned when the run was accepted.
	Run int64

	Status Status

	// ItemCount is the number of items captured by the end-of-run clear.
	ItemCount int

	// Items is the gob-encoded item snapshot. Decode it with
	// conveyor.DecodeItems using the engine's item type.
	Items []byte

	// ItemIndex and StageIndex locate the failure for failed runs.
	// Both are -1 for completed runs.
	ItemIndex  int
	StageIndex int

	// Error is the failure message for failed runs, empty otherwise.
	Error string

	StartedAt  time.Time
	FinishedAt time.Time
}

// RunListOptions controls how run records are listed.
// Zero values mean "no filter" for that field.
type RunListOptions struct {
	// Status, if non-empty, limits results to runs with the given status.
	Status Status

	// Limit, if positive, caps the number of records returned. The newest
	// records are kept when truncating.
	Limit int
}
