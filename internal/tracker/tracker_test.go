package tracker

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sync/atomic"
	"testing"

	"github.com/steveyegge/edit-ghi/internal/types"
)

// mockTracker is a mock Tracker implementation for testing
type mockTracker struct {
	name Type
	opts Options
}

func (m *mockTracker) Name() Type { return m.name }
func (m *mockTracker) Version(ctx context.Context) (string, error) { return "mock-1.0.0", nil }
func (m *mockTracker) List(ctx context.Context, filter StateFilter) ([]types.RemoteIssue, error) {
	return nil, nil
}
func (m *mockTracker) Create(ctx context.Context, req CreateRequest) (types.RemoteIssue, error) {
	return types.RemoteIssue{Number: 1, Title: req.Title, State: types.StateOpen}, nil
}
func (m *mockTracker) Edit(ctx context.Context, req EditRequest) (types.RemoteIssue, error) {
	return req.Result(), nil
}

func newMockTracker(name Type) Constructor {
	return func(opts Options) (Tracker, error) {
		return &mockTracker{name: name, opts: opts}, nil
	}
}

// testTypeCounter generates unique test type names
var testTypeCounter int64

func uniqueTestType(prefix string) Type {
	n := atomic.AddInt64(&testTypeCounter, 1)
	return Type(fmt.Sprintf("%s-%d", prefix, n))
}

// stubLookPath makes only the named binaries look installed.
func stubLookPath(t *testing.T, installed ...string) {
	t.Helper()
	orig := lookPath
	set := make(map[string]bool)
	for _, b := range installed {
		set[b] = true
	}
	lookPath = func(binary string) bool { return binary == "" || set[binary] }
	t.Cleanup(func() { lookPath = orig })
}

func TestRegister(t *testing.T) {
	typeName := uniqueTestType("register-test")
	Register(typeName, "mockbin", newMockTracker(typeName))
	t.Cleanup(func() { unregister(typeName) })

	if !IsRegistered(typeName) {
		t.Error("Expected type to be registered")
	}

	found := false
	for _, rt := range RegisteredTypes() {
		if rt == typeName {
			found = true
		}
	}
	if !found {
		t.Errorf("RegisteredTypes() missing %s", typeName)
	}
}

func TestRegister_DuplicatePanics(t *testing.T) {
	typeName := uniqueTestType("dup-test")
	Register(typeName, "", newMockTracker(typeName))
	t.Cleanup(func() { unregister(typeName) })

	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic on duplicate registration")
		}
	}()
	Register(typeName, "", newMockTracker(typeName))
}

func TestOpen(t *testing.T) {
	typeName := uniqueTestType("open-test")
	Register(typeName, "mockbin", newMockTracker(typeName))
	t.Cleanup(func() { unregister(typeName) })

	t.Run("installed", func(t *testing.T) {
		stubLookPath(t, "mockbin")
		tr, err := Open(string(typeName), Options{Repo: "acme/web"})
		if err != nil {
			t.Fatalf("Open() error: %v", err)
		}
		if tr.Name() != typeName {
			t.Errorf("Name() = %s, want %s", tr.Name(), typeName)
		}
		if got := tr.(*mockTracker).opts.Repo; got != "acme/web" {
			t.Errorf("Repo = %q, want acme/web", got)
		}
	})

	t.Run("missing binary", func(t *testing.T) {
		stubLookPath(t)
		_, err := Open(string(typeName), Options{})
		if !errors.Is(err, ErrNotAvailable) {
			t.Errorf("Open() error = %v, want ErrNotAvailable", err)
		}
		if !IsFatal(err) {
			t.Error("IsFatal() = false for missing binary")
		}
	})

	t.Run("runner skips lookup", func(t *testing.T) {
		stubLookPath(t)
		runner := func(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
			return nil, nil
		}
		if _, err := Open(string(typeName), Options{Runner: runner}); err != nil {
			t.Errorf("Open() with runner error: %v", err)
		}
	})

	t.Run("unknown type", func(t *testing.T) {
		_, err := Open("no-such-tracker", Options{})
		if !errors.Is(err, ErrUnknownType) {
			t.Errorf("Open() error = %v, want ErrUnknownType", err)
		}
	})
}

func TestDetect(t *testing.T) {
	first := uniqueTestType("detect-first")
	second := uniqueTestType("detect-second")
	Register(first, "firstbin", newMockTracker(first))
	Register(second, "secondbin", newMockTracker(second))
	t.Cleanup(func() {
		unregister(first)
		unregister(second)
	})

	orig := detectionOrder
	detectionOrder = []Type{first, second}
	t.Cleanup(func() { detectionOrder = orig })

	tests := []struct {
		name      string
		installed []string
		want      Type
		wantErr   error
	}{
		{"both installed picks first", []string{"firstbin", "secondbin"}, first, nil},
		{"only second", []string{"secondbin"}, second, nil},
		{"none", nil, "", ErrNotAvailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stubLookPath(t, tt.installed...)
			got, err := Detect(Options{})
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Detect() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Detect() error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Detect() = %s, want %s", got, tt.want)
			}

			tr, err := Open("auto", Options{})
			if err != nil {
				t.Fatalf("Open(auto) error: %v", err)
			}
			if tr.Name() != tt.want {
				t.Errorf("Open(auto).Name() = %s, want %s", tr.Name(), tt.want)
			}
		})
	}
}

func TestParseStateFilter(t *testing.T) {
	tests := []struct {
		in      string
		want    StateFilter
		wantErr bool
	}{
		{"", StateAll, false},
		{"all", StateAll, false},
		{"open", StateOpen, false},
		{"closed", StateClosed, false},
		{"merged", "", true},
	}
	for _, tt := range tests {
		got, err := ParseStateFilter(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseStateFilter(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseStateFilter(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	if !StateOpen.Includes(types.StateOpen) || StateOpen.Includes(types.StateClosed) {
		t.Error("StateOpen.Includes mismatch")
	}
	if !StateAll.Includes(types.StateClosed) {
		t.Error("StateAll should include closed issues")
	}
}

func TestEditRequest_Result(t *testing.T) {
	current := &types.RemoteIssue{Number: 5, Title: "Old", State: types.StateOpen, Labels: []string{"bug"}}

	got := EditRequest{Number: 5, State: types.StateClosed, Current: current}.Result()
	if got.Title != "Old" || got.State != types.StateClosed || len(got.Labels) != 1 {
		t.Errorf("Result() = %+v", got)
	}

	got = EditRequest{Number: 9, Title: "New", Labels: []string{}}.Result()
	if got.Number != 9 || got.Title != "New" || got.Labels == nil || len(got.Labels) != 0 {
		t.Errorf("Result() without current = %+v", got)
	}
}

func TestParseLines(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		expected []string
	}{
		{"empty input", []byte(""), nil},
		{"single line", []byte("line1"), []string{"line1"}},
		{"whitespace trimmed", []byte("  a  \n  b  "), []string{"a", "b"}},
		{"empty lines filtered", []byte("a\n\n\nb\n"), []string{"a", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ParseLines(tt.input)
			if len(result) != len(tt.expected) {
				t.Fatalf("Expected %d lines, got %d", len(tt.expected), len(result))
			}
			for i, line := range result {
				if line != tt.expected[i] {
					t.Errorf("line %d = %q, want %q", i, line, tt.expected[i])
				}
			}
		})
	}

	if got := FirstLine([]byte("\n gh version 2.40.1\nmore")); got != "gh version 2.40.1" {
		t.Errorf("FirstLine() = %q", got)
	}
}

func TestExecContext(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	ctx := context.Background()

	out, err := ExecContext(ctx, "", "sh", "-c", "echo hello")
	if err != nil {
		t.Fatalf("ExecContext() error: %v", err)
	}
	if string(out) != "hello\n" {
		t.Errorf("ExecContext() = %q", out)
	}

	_, err = ExecContext(ctx, "", "sh", "-c", "echo boom >&2; exit 3")
	if !errors.Is(err, ErrCommandFailed) {
		t.Fatalf("ExecContext() error = %v, want ErrCommandFailed", err)
	}
	if code := ExitCode(err); code != 3 {
		t.Errorf("ExitCode() = %d, want 3", code)
	}

	_, err = ExecContext(ctx, "", "edit-ghi-no-such-binary")
	if !errors.Is(err, ErrNotAvailable) {
		t.Errorf("ExecContext(missing) error = %v, want ErrNotAvailable", err)
	}
	if ExitCode(err) != -1 {
		t.Error("ExitCode() for missing binary should be -1")
	}
}
