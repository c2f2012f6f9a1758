// Package remote provides a lazily populated, read-only view of the remote
// issues for a single sync run.
package remote

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/steveyegge/edit-ghi/internal/debug"
	"github.com/steveyegge/edit-ghi/internal/tracker"
	"github.com/steveyegge/edit-ghi/internal/types"
)

// Lister fetches remote issues. tracker.Tracker satisfies it.
type Lister interface {
	List(ctx context.Context, filter tracker.StateFilter) ([]types.RemoteIssue, error)
}

// Store caches the remote issue list on first use. The cache is never
// refreshed; a new run builds a new Store.
type Store struct {
	lister Lister
	filter tracker.StateFilter
	trace  *debug.Logger

	mu      sync.Mutex
	issues  []types.RemoteIssue
	loaded  bool
	fetches int
}

// NewStore creates a store over lister. An empty filter means all states.
func NewStore(lister Lister, filter tracker.StateFilter, trace *debug.Logger) *Store {
	if filter == "" {
		filter = tracker.StateAll
	}
	return &Store{lister: lister, filter: filter, trace: trace}
}

// Issues returns every remote issue, fetching them on the first call.
// A failed fetch leaves the store unpopulated so a later call retries.
func (s *Store) Issues(ctx context.Context) ([]types.RemoteIssue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loaded {
		return s.issues, nil
	}

	s.fetches++
	issues, err := s.lister.List(ctx, s.filter)
	if err != nil {
		s.trace.Trace("fetch-failed", "state", s.filter, "error", err)
		return nil, fmt.Errorf("failed to fetch remote issues: %w", err)
	}
	s.issues = issues
	s.loaded = true
	s.trace.Trace("fetch", "state", s.filter, "count", len(issues))
	return s.issues, nil
}

// FindByTitleSubstring returns the first issue, in tracker order, whose
// title contains title. An empty title never matches.
func (s *Store) FindByTitleSubstring(ctx context.Context, title string) (types.RemoteIssue, bool, error) {
	if title == "" {
		return types.RemoteIssue{}, false, nil
	}
	issues, err := s.Issues(ctx)
	if err != nil {
		return types.RemoteIssue{}, false, err
	}
	for _, is := range issues {
		if strings.Contains(is.Title, title) {
			return is, true, nil
		}
	}
	return types.RemoteIssue{}, false, nil
}

// FindByNumber returns the issue with the given number.
func (s *Store) FindByNumber(ctx context.Context, number int) (types.RemoteIssue, bool, error) {
	issues, err := s.Issues(ctx)
	if err != nil {
		return types.RemoteIssue{}, false, err
	}
	for _, is := range issues {
		if is.Number == number {
			return is, true, nil
		}
	}
	return types.RemoteIssue{}, false, nil
}

// Fetches returns how many times the lister was called.
func (s *Store) Fetches() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetches
}

// Loaded reports whether the issue list has been fetched.
func (s *Store) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}
