package coordinator

import "errors"

// Domain errors for the coordinator package.
var (
	// ErrNoDataSource is returned by New when no data source is supplied.
	ErrNoDataSource = errors.New("coordinator: data source is required")

	// ErrStopped is returned by Refresh when the coordinator has been
	// stopped before (or while) the refresh could run.
	ErrStopped = errors.New("coordinator: stopped")
)
