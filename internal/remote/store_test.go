package remote

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/edit-ghi/internal/tracker"
	"github.com/steveyegge/edit-ghi/internal/tracker/trackertest"
	"github.com/steveyegge/edit-ghi/internal/types"
)

func sampleIssues() []types.RemoteIssue {
	return []types.RemoteIssue{
		{Number: 5, Title: "Fix login bug", State: types.StateOpen, Labels: []string{"bug"}},
		{Number: 8, Title: "Fix login bug on mobile", State: types.StateOpen},
		{Number: 3, Title: "Write docs", State: types.StateClosed},
	}
}

func TestStore_FetchesOnce(t *testing.T) {
	ctx := context.Background()
	fake := trackertest.NewFake(sampleIssues()...)
	s := NewStore(fake, "", nil)

	assert.False(t, s.Loaded())
	assert.Equal(t, 0, s.Fetches())

	for i := 0; i < 3; i++ {
		issues, err := s.Issues(ctx)
		require.NoError(t, err)
		assert.Len(t, issues, 3)
	}
	_, _, err := s.FindByNumber(ctx, 3)
	require.NoError(t, err)
	_, _, err = s.FindByTitleSubstring(ctx, "docs")
	require.NoError(t, err)

	assert.True(t, s.Loaded())
	assert.Equal(t, 1, s.Fetches())
	assert.Equal(t, 1, fake.ListCalls())
}

func TestStore_FailedFetchNotCached(t *testing.T) {
	ctx := context.Background()
	fake := trackertest.NewFake(sampleIssues()...)
	fake.ListErr = tracker.ErrCommandFailed
	s := NewStore(fake, tracker.StateAll, nil)

	_, err := s.Issues(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, tracker.ErrCommandFailed))
	assert.False(t, s.Loaded())

	fake.ListErr = nil
	issues, err := s.Issues(ctx)
	require.NoError(t, err)
	assert.Len(t, issues, 3)
	assert.Equal(t, 2, s.Fetches())
}

func TestStore_FindByTitleSubstring(t *testing.T) {
	ctx := context.Background()
	s := NewStore(trackertest.NewFake(sampleIssues()...), "", nil)

	tests := []struct {
		title   string
		want    int
		wantHit bool
	}{
		{"Fix login bug", 5, true},
		{"login bug on", 8, true},
		{"docs", 3, true},
		{"fix login", 0, false},
		{"Deploy", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, ok, err := s.FindByTitleSubstring(ctx, tt.title)
		require.NoError(t, err)
		assert.Equal(t, tt.wantHit, ok, "title %q", tt.title)
		if ok {
			assert.Equal(t, tt.want, got.Number, "title %q", tt.title)
		}
	}
}

func TestStore_FindByNumber(t *testing.T) {
	ctx := context.Background()
	s := NewStore(trackertest.NewFake(sampleIssues()...), "", nil)

	got, ok, err := s.FindByNumber(ctx, 8)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Fix login bug on mobile", got.Title)

	_, ok, err = s.FindByNumber(ctx, 99)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_Filter(t *testing.T) {
	s := NewStore(trackertest.NewFake(sampleIssues()...), tracker.StateClosed, nil)
	issues, err := s.Issues(context.Background())
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, 3, issues[0].Number)
}
