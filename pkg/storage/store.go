package storage

import (
	"errors"

	"github.com/cuemby/elementstates/pkg/types"
)

// ErrRunNotFound is returned when a run id is not in the journal
var ErrRunNotFound = errors.New("run not found")

// Store defines the interface for the run journal
type Store interface {
	// Runs
	CreateRun(report *types.Report) error
	GetRun(id string) (*types.Report, error)
	ListRuns() ([]*types.Report, error)
	DeleteRun(id string) error
	PruneRuns(keep int) (int, error)

	// Utility
	Close() error
}
