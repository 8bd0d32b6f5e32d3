// Package history stores records of finalized runs. Records are an audit of
// what each run drained, not a persistence layer for queued items: the
// backlog itself never survives a process restart.
package history

import (
	"github.com/petrijr/conveyor/pkg/api"
)

// ErrRunNotFound is returned when no record exists for a run number.
var ErrRunNotFound = api.ErrRunNotFound

// RunStore handles storage of finalized run records.
type RunStore interface {
	// SaveRun stores the record of a finalized run. Run numbers are unique;
	// saving the same run twice is an error.
	SaveRun(rec *api.RunRecord) error

	// GetRun returns the record for a run number.
	GetRun(run int64) (*api.RunRecord, error)

	// ListRuns returns records matching the filter, ordered by run number
	// ascending. A positive Limit keeps the newest records.
	ListRuns(opts api.RunListOptions) ([]*api.RunRecord, error)
}
