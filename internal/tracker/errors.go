package tracker

import "errors"

// Common errors returned by tracker operations.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, tracker.ErrNotAvailable) {
//	    // the tracker CLI is not installed
//	}
var (
	// ErrNotAvailable is returned when the tracker binary is not
	// installed or not in PATH.
	ErrNotAvailable = errors.New("tracker binary not available")

	// ErrCommandFailed is returned when a tracker command exits non-zero.
	ErrCommandFailed = errors.New("tracker command failed")

	// ErrInvalidOutput is returned when tracker output cannot be parsed.
	ErrInvalidOutput = errors.New("invalid tracker output")

	// ErrUnsupportedVersion is returned when the installed tracker binary
	// is older than the backend requires.
	ErrUnsupportedVersion = errors.New("unsupported tracker version")

	// ErrNotFound is returned when an issue number does not exist.
	ErrNotFound = errors.New("issue not found")

	// ErrUnknownType is returned when no backend is registered for a name.
	ErrUnknownType = errors.New("unknown tracker type")
)

// IsFatal returns true if the error means no tracker operation can
// succeed in this run (missing binary, wrong version, unknown backend).
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrNotAvailable) ||
		errors.Is(err, ErrUnsupportedVersion) ||
		errors.Is(err, ErrUnknownType)
}
