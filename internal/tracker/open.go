package tracker

import (
	"fmt"
	"strings"
)

// detectionOrder is the order in which auto-detection tries backends.
// Only backends that drive a real remote are tried.
var detectionOrder = []Type{TypeGH, TypeGHI}

// lookPath reports whether a binary is installed. Replaced in tests.
var lookPath = IsAvailable

// Open creates the backend named by name. "auto" or "" picks the first
// backend in detection order whose binary is installed.
//
// Returns ErrUnknownType for unregistered names and ErrNotAvailable when
// the backend binary is missing.
func Open(name string, opts Options) (Tracker, error) {
	t := Type(strings.ToLower(strings.TrimSpace(name)))
	if t == "" || t == TypeAuto {
		detected, err := Detect(opts)
		if err != nil {
			return nil, err
		}
		t = detected
	}

	reg, ok := lookup(t)
	if !ok {
		return nil, fmt.Errorf("%w: %s (registered: %v)", ErrUnknownType, t, RegisteredTypes())
	}

	binary := reg.binary
	if opts.Binary != "" {
		binary = opts.Binary
	}
	if opts.Runner == nil && !lookPath(binary) {
		return nil, fmt.Errorf("%w: %s (backend %s)", ErrNotAvailable, binary, t)
	}

	tr, err := reg.constructor(opts)
	if err != nil {
		return nil, fmt.Errorf("open %s tracker: %w", t, err)
	}
	opts.Trace.Trace("open", "tracker", t)
	return tr, nil
}

// Detect returns the first registered backend in detection order whose
// binary is installed. An explicit Binary in opts is ignored here.
func Detect(opts Options) (Type, error) {
	var tried []string
	for _, t := range detectionOrder {
		reg, ok := lookup(t)
		if !ok {
			continue
		}
		tried = append(tried, reg.binary)
		if opts.Runner != nil || lookPath(reg.binary) {
			opts.Trace.Trace("detect", "tracker", t)
			return t, nil
		}
	}
	if len(tried) == 0 {
		return "", fmt.Errorf("%w: no tracker backends registered", ErrUnknownType)
	}
	return "", fmt.Errorf("%w: none of %s found in PATH", ErrNotAvailable, strings.Join(tried, ", "))
}
