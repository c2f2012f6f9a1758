package watch

import (
	"bytes"
	"context"
	"errors"
	"log"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// waitForEvent waits for an event on path, skipping others.
func waitForEvent(t *testing.T, fw *FileWatcher, path string) FileEvent {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev := <-fw.Events():
			if ev.Path == path {
				return ev
			}
		case err := <-fw.Errors():
			t.Fatalf("watcher error: %v", err)
		case <-timeout:
			t.Fatalf("timed out waiting for event on %s", path)
		}
	}
}

func TestEventOp_String(t *testing.T) {
	assert.Equal(t, "create", OpCreate.String())
	assert.Equal(t, "modify", OpModify.String())
	assert.Equal(t, "delete", OpDelete.String())
	assert.Equal(t, "unknown", EventOp(42).String())
}

func TestFileWatcher_StartStop(t *testing.T) {
	dir := t.TempDir()
	fw, err := NewFileWatcher()
	require.NoError(t, err)
	assert.False(t, fw.IsRunning())

	require.NoError(t, fw.Start([]string{filepath.Join(dir, "TODO.md")}))
	assert.True(t, fw.IsRunning())
	assert.Error(t, fw.Start([]string{filepath.Join(dir, "TODO.md")}), "second Start should fail")

	require.NoError(t, fw.Stop())
	assert.False(t, fw.IsRunning())
}

func TestFileWatcher_MissingDirectory(t *testing.T) {
	fw, err := NewFileWatcher()
	require.NoError(t, err)
	defer fw.Stop()

	err = fw.Start([]string{filepath.Join(t.TempDir(), "missing", "TODO.md")})
	assert.Error(t, err)
	assert.False(t, fw.IsRunning())
}

func TestFileWatcher_ModifyAndIgnoreOthers(t *testing.T) {
	dir := t.TempDir()
	todo, err := filepath.Abs(filepath.Join(dir, "TODO.md"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(todo, []byte("- [ ] one\n"), 0644))

	fw, err := NewFileWatcher()
	require.NoError(t, err)
	defer fw.Stop()
	require.NoError(t, fw.Start([]string{todo}))

	// Changes to other files in the same directory are not reported
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(todo, []byte("- [ ] two\n"), 0644))

	ev := waitForEvent(t, fw, todo)
	assert.Equal(t, todo, ev.Path)
	assert.Contains(t, []EventOp{OpCreate, OpModify}, ev.Op)
}

func TestFileWatcher_AtomicRename(t *testing.T) {
	dir := t.TempDir()
	todo, err := filepath.Abs(filepath.Join(dir, "TODO.md"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(todo, []byte("- [ ] one\n"), 0644))

	fw, err := NewFileWatcher()
	require.NoError(t, err)
	defer fw.Stop()
	require.NoError(t, fw.Start([]string{todo}))

	tmp := filepath.Join(dir, ".TODO.md.tmp")
	require.NoError(t, os.WriteFile(tmp, []byte("- [x] one\n"), 0644))
	require.NoError(t, os.Rename(tmp, todo))

	ev := waitForEvent(t, fw, todo)
	assert.Equal(t, OpCreate, ev.Op)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{Run: func(context.Context) ([]string, error) { return nil, nil }})
	assert.Error(t, err)

	_, err = New(Config{Files: []string{"TODO.md"}})
	assert.Error(t, err)
}

func TestLoop_RunsOnChange(t *testing.T) {
	dir := t.TempDir()
	todo := filepath.Join(dir, "TODO.md")
	require.NoError(t, os.WriteFile(todo, []byte("- [ ] one\n"), 0644))

	var runs atomic.Int32
	loop, err := New(Config{
		Files:    []string{todo},
		Debounce: 20 * time.Millisecond,
		Run: func(context.Context) ([]string, error) {
			runs.Add(1)
			return nil, nil
		},
		Logger: log.New(&bytes.Buffer{}, "", 0),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loop.Start(ctx) }()

	require.Eventually(t, func() bool { return runs.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return loop.watcher.IsRunning() }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(todo, []byte("- [x] one\n"), 0644))
	require.Eventually(t, func() bool { return runs.Load() == 2 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not stop")
	}
	assert.Equal(t, 2, loop.Runs())
}

func TestLoop_SkipsUnchangedContent(t *testing.T) {
	dir := t.TempDir()
	todo := filepath.Join(dir, "TODO.md")
	require.NoError(t, os.WriteFile(todo, []byte("- [ ] one\n"), 0644))

	loop, err := New(Config{
		Files:    []string{todo},
		Debounce: time.Hour,
		Run:      func(context.Context) ([]string, error) { return nil, nil },
		Logger:   log.New(&bytes.Buffer{}, "", 0),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = loop.watcher.Stop() })
	require.NoError(t, loop.runOnce(context.Background(), "initial"))

	now := time.Now()
	loop.queueChange(todo, now)
	assert.False(t, loop.settled(now), "changes inside the debounce window are not settled")
	assert.False(t, loop.settled(now.Add(2*time.Hour)), "same content does not trigger a run")

	require.NoError(t, os.WriteFile(todo, []byte("- [x] one\n"), 0644))
	loop.queueChange(todo, now)
	assert.True(t, loop.settled(now.Add(2*time.Hour)))
	assert.False(t, loop.settled(now.Add(3*time.Hour)), "pending set is cleared")
}

func TestLoop_OwnWritesAreBaseline(t *testing.T) {
	dir := t.TempDir()
	todo := filepath.Join(dir, "TODO.md")
	require.NoError(t, os.WriteFile(todo, []byte("- [ ] one\n"), 0644))

	loop, err := New(Config{
		Files:    []string{todo},
		Debounce: time.Hour,
		Run: func(context.Context) ([]string, error) {
			return []string{todo}, os.WriteFile(todo, []byte("- [x] one\n"), 0644)
		},
		Logger: log.New(&bytes.Buffer{}, "", 0),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = loop.watcher.Stop() })
	require.NoError(t, loop.runOnce(context.Background(), "initial"))

	now := time.Now()
	loop.queueChange(todo, now)
	assert.False(t, loop.settled(now.Add(2*time.Hour)), "a run's own rewrite does not trigger another run")
}

func TestLoop_EditDuringRunTriggersRun(t *testing.T) {
	dir := t.TempDir()
	todo := filepath.Join(dir, "TODO.md")
	require.NoError(t, os.WriteFile(todo, []byte("- [ ] one\n"), 0644))

	var runs atomic.Int32
	loop, err := New(Config{
		Files:    []string{todo},
		Debounce: 20 * time.Millisecond,
		Run: func(context.Context) ([]string, error) {
			if runs.Add(1) == 1 {
				// Saved by the user while the first run is in progress
				if err := os.WriteFile(todo, []byte("- [ ] one\n- [ ] two\n"), 0644); err != nil {
					return nil, err
				}
			}
			return nil, nil
		},
		Logger: log.New(&bytes.Buffer{}, "", 0),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loop.Start(ctx) }()

	require.Eventually(t, func() bool { return runs.Load() == 2 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not stop")
	}
}

func TestLoop_StopOn(t *testing.T) {
	todo := filepath.Join(t.TempDir(), "TODO.md")
	fatal := errors.New("tracker missing")

	loop, err := New(Config{
		Files:  []string{todo},
		Run:    func(context.Context) ([]string, error) { return nil, fatal },
		StopOn: func(err error) bool { return errors.Is(err, fatal) },
		Logger: log.New(&bytes.Buffer{}, "", 0),
	})
	require.NoError(t, err)

	err = loop.Start(context.Background())
	assert.ErrorIs(t, err, fatal)
}

func TestLoop_NonFatalErrorContinues(t *testing.T) {
	var logs bytes.Buffer
	loop, err := New(Config{
		Files:  []string{filepath.Join(t.TempDir(), "TODO.md")},
		Run:    func(context.Context) ([]string, error) { return nil, errors.New("one item failed") },
		Logger: log.New(&logs, "", 0),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = loop.watcher.Stop() })

	assert.NoError(t, loop.runOnce(context.Background(), "initial"))
	assert.Contains(t, logs.String(), "Run 1 failed: one item failed")
}
