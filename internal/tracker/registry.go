package tracker

import (
	"fmt"
	"slices"
	"sync"
)

// Constructor creates a tracker backend from options.
// Implementations register themselves using Register().
type Constructor func(opts Options) (Tracker, error)

type registration struct {
	constructor Constructor
	binary      string
}

var (
	registry      = make(map[Type]registration)
	registryMutex sync.RWMutex
)

// Register registers a backend constructor and the binary it needs.
// An empty binary means the backend needs no executable.
// This is called from init() functions in backend packages.
//
// Example:
//
//	func init() {
//	    tracker.Register(tracker.TypeGH, "gh", New)
//	}
func Register(t Type, binary string, constructor Constructor) {
	registryMutex.Lock()
	defer registryMutex.Unlock()

	if constructor == nil {
		panic(fmt.Sprintf("tracker: Register constructor is nil for type %s", t))
	}
	if _, exists := registry[t]; exists {
		panic(fmt.Sprintf("tracker: Register called twice for type %s", t))
	}

	registry[t] = registration{constructor: constructor, binary: binary}
}

func lookup(t Type) (registration, bool) {
	registryMutex.RLock()
	defer registryMutex.RUnlock()
	r, ok := registry[t]
	return r, ok
}

// IsRegistered returns true if a constructor is registered for the given type.
func IsRegistered(t Type) bool {
	_, ok := lookup(t)
	return ok
}

// RegisteredTypes returns all registered backend types, sorted.
func RegisteredTypes() []Type {
	registryMutex.RLock()
	defer registryMutex.RUnlock()

	types := make([]Type, 0, len(registry))
	for t := range registry {
		types = append(types, t)
	}
	slices.Sort(types)
	return types
}

// unregister removes a backend. Tests only.
func unregister(t Type) {
	registryMutex.Lock()
	defer registryMutex.Unlock()
	delete(registry, t)
}
