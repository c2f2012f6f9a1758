package ghi

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/steveyegge/edit-ghi/internal/tracker"
	"github.com/steveyegge/edit-ghi/internal/tracker/trackertest"
	"github.com/steveyegge/edit-ghi/internal/types"
)

func newTestTracker(t *testing.T, r *trackertest.Runner, repo string) *Tracker {
	t.Helper()
	tr, err := New(tracker.Options{Runner: r.Run, Repo: repo})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return tr.(*Tracker)
}

func TestParseRows(t *testing.T) {
	out := "5,open,\"bug,auth\",Fix login bug\n" +
		",,,\n" +
		"#6,,\"\",Split config, part 2\n" +
		"\n"

	got, err := ParseRows([]byte(out), types.StateOpen)
	if err != nil {
		t.Fatalf("ParseRows() error: %v", err)
	}
	want := []types.RemoteIssue{
		{Number: 5, Title: "Fix login bug", State: types.StateOpen, Labels: []string{"bug", "auth"}},
		{Number: 6, Title: "Split config, part 2", State: types.StateOpen},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ParseRows() mismatch (-want +got):\n%s", diff)
	}
}

func TestParseRows_Invalid(t *testing.T) {
	tests := map[string]string{
		"short row":  "5,open\n",
		"bad number": "five,open,\"\",Title\n",
		"bad state":  "5,merged,\"\",Title\n",
		"no title":   "5,open,\"\",\n",
	}
	for name, out := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseRows([]byte(out), types.StateOpen); !errors.Is(err, tracker.ErrInvalidOutput) {
				t.Errorf("ParseRows() error = %v, want ErrInvalidOutput", err)
			}
		})
	}
}

func TestList(t *testing.T) {
	r := trackertest.NewRunner().
		On("ghi list --state open", "5,open,\"bug\",Fix login bug\n").
		On("ghi list --state closed", "3,closed,\"\",Write docs\n")

	t.Run("all lists both states", func(t *testing.T) {
		g := newTestTracker(t, r, "")
		got, err := g.List(context.Background(), tracker.StateAll)
		if err != nil {
			t.Fatalf("List() error: %v", err)
		}
		want := []types.RemoteIssue{
			{Number: 5, Title: "Fix login bug", State: types.StateOpen, Labels: []string{"bug"}},
			{Number: 3, Title: "Write docs", State: types.StateClosed},
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("List() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("closed only", func(t *testing.T) {
		r := trackertest.NewRunner().On("ghi list --state closed", "3,closed,\"\",Write docs\n")
		g := newTestTracker(t, r, "acme/web")
		got, err := g.List(context.Background(), tracker.StateClosed)
		if err != nil {
			t.Fatalf("List() error: %v", err)
		}
		if len(got) != 1 || got[0].Number != 3 {
			t.Errorf("List() = %+v", got)
		}
		wantCalls := []string{"ghi list --state closed -- acme/web"}
		if diff := cmp.Diff(wantCalls, r.Calls()); diff != "" {
			t.Errorf("calls mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestCreate(t *testing.T) {
	r := trackertest.NewRunner().
		On("ghi open", "#14: Add dark mode\n").
		On("ghi close 14", "")
	g := newTestTracker(t, r, "")

	got, err := g.Create(context.Background(), tracker.CreateRequest{
		Title:  "Add dark mode",
		State:  types.StateClosed,
		Labels: []string{"ui", "theme"},
	})
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	want := types.RemoteIssue{Number: 14, Title: "Add dark mode", State: types.StateClosed, Labels: []string{"ui", "theme"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Create() mismatch (-want +got):\n%s", diff)
	}
	wantCalls := []string{
		"ghi open --message Add dark mode --label ui,theme",
		"ghi close 14",
	}
	if diff := cmp.Diff(wantCalls, r.Calls()); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}
}

func TestCreate_NoNumber(t *testing.T) {
	r := trackertest.NewRunner().On("ghi open", "done\n")
	g := newTestTracker(t, r, "")
	if _, err := g.Create(context.Background(), tracker.CreateRequest{Title: "x"}); !errors.Is(err, tracker.ErrInvalidOutput) {
		t.Errorf("Create() error = %v, want ErrInvalidOutput", err)
	}
}

func TestEdit(t *testing.T) {
	r := trackertest.NewRunner().
		On("ghi edit", "").
		On("ghi label", "").
		On("ghi open 5", "")
	g := newTestTracker(t, r, "")

	current := &types.RemoteIssue{Number: 5, Title: "Fix login", State: types.StateClosed, Labels: []string{"bug"}}
	got, err := g.Edit(context.Background(), tracker.EditRequest{
		Number:  5,
		Title:   "Fix login bug",
		State:   types.StateOpen,
		Labels:  []string{"bug", "auth"},
		Current: current,
	})
	if err != nil {
		t.Fatalf("Edit() error: %v", err)
	}
	want := types.RemoteIssue{Number: 5, Title: "Fix login bug", State: types.StateOpen, Labels: []string{"bug", "auth"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Edit() mismatch (-want +got):\n%s", diff)
	}
	wantCalls := []string{
		"ghi edit 5 --message Fix login bug",
		"ghi label 5 --force bug auth",
		"ghi open 5",
	}
	if diff := cmp.Diff(wantCalls, r.Calls()); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}
}

func TestEdit_NoChanges(t *testing.T) {
	r := trackertest.NewRunner()
	g := newTestTracker(t, r, "")

	current := &types.RemoteIssue{Number: 5, Title: "Fix login", State: types.StateOpen, Labels: []string{"a", "b"}}
	_, err := g.Edit(context.Background(), tracker.EditRequest{
		Number:  5,
		Title:   "Fix login",
		State:   types.StateOpen,
		Labels:  []string{"b", "a"},
		Current: current,
	})
	if err != nil {
		t.Fatalf("Edit() error: %v", err)
	}
	if calls := r.Calls(); len(calls) != 0 {
		t.Errorf("Edit() ran %q, want no commands", calls)
	}
}
