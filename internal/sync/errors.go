package sync

import "errors"

var (
	// ErrInput is returned when an input file cannot be read. No remote
	// call has been made when it is returned.
	ErrInput = errors.New("cannot read input")

	// ErrApplyFailed is returned after a run in which one or more items
	// could not be applied. The report lists the failures.
	ErrApplyFailed = errors.New("one or more items failed")

	// ErrAborted is returned when the confirmation hook declines the plan.
	ErrAborted = errors.New("run aborted")

	// ErrNoFiles is returned when a run is configured without input files.
	ErrNoFiles = errors.New("no input files")
)
