package watch

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log"
	"maps"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/steveyegge/edit-ghi/internal/debug"
)

// RunFunc performs one complete reconciliation and returns the files it
// rewrote.
type RunFunc func(ctx context.Context) (written []string, err error)

// Config configures a Loop.
type Config struct {
	// Files are the checklist documents to watch
	Files []string

	// Run is called once at start and again after each settled change
	Run RunFunc

	// Debounce is how long the files must be quiet before a run
	// (default: 500ms)
	Debounce time.Duration

	// StopOn, when set, reports whether a run error ends the loop.
	// Other errors are logged and watching continues.
	StopOn func(error) bool

	// Logger for watch activity (default: stderr with [watch] prefix)
	Logger *log.Logger

	// Trace receives debug trace lines
	Trace *debug.Logger
}

// DefaultDebounce is used when Config.Debounce is zero.
const DefaultDebounce = 500 * time.Millisecond

// Loop runs a reconciliation at start and after every change to its files.
// Runs are sequential; changes that arrive during a run are picked up by
// the next one.
type Loop struct {
	cfg     Config
	logger  *log.Logger
	watcher *FileWatcher

	mu      sync.Mutex
	pending map[string]time.Time // path -> last event
	sums    map[string][sha256.Size]byte
	runs    int
}

// New creates a loop. Start begins watching.
func New(cfg Config) (*Loop, error) {
	if len(cfg.Files) == 0 {
		return nil, fmt.Errorf("no files to watch")
	}
	if cfg.Run == nil {
		return nil, fmt.Errorf("run function cannot be nil")
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[watch] ", log.LstdFlags)
	}

	watcher, err := NewFileWatcher()
	if err != nil {
		return nil, err
	}

	return &Loop{
		cfg:     cfg,
		logger:  logger,
		watcher: watcher,
		pending: make(map[string]time.Time),
	}, nil
}

// Start begins watching, performs the initial run and then re-runs on
// change. Edits saved while a run is in progress are queued and picked
// up afterwards.
//
// This blocks until ctx is cancelled, which returns nil, or until a run
// fails with an error accepted by Config.StopOn.
func (l *Loop) Start(ctx context.Context) error {
	l.logger.Println("Starting watch")
	defer l.watcher.Stop()

	if err := l.watcher.Start(l.cfg.Files); err != nil {
		return err
	}

	if err := l.runOnce(ctx, "initial"); err != nil {
		return err
	}

	l.logger.Printf("Watching: %s", strings.Join(l.cfg.Files, ", "))

	ticker := time.NewTicker(l.cfg.Debounce)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.logger.Println("Shutdown signal received")
			return nil

		case ev, ok := <-l.watcher.Events():
			if !ok {
				return nil
			}
			l.cfg.Trace.Trace("watch-event", "file", ev.Path, "op", ev.Op)
			l.queueChange(ev.Path, time.Now())

		case err, ok := <-l.watcher.Errors():
			if !ok {
				return nil
			}
			l.logger.Printf("Watcher error: %v", err)

		case now := <-ticker.C:
			if !l.settled(now) {
				continue
			}
			if err := l.runOnce(ctx, "change"); err != nil {
				return err
			}
		}
	}
}

// Runs returns the number of runs started so far.
func (l *Loop) Runs() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.runs
}

// queueChange records a change to path.
func (l *Loop) queueChange(path string, at time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.pending[path] = at
}

// settled reports whether changes are pending, all older than the debounce
// interval, and the file contents differ from what the last run left. The
// pending set is cleared when it returns true or when the contents turn
// out to be unchanged.
func (l *Loop) settled(now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.pending) == 0 {
		return false
	}
	for _, at := range l.pending {
		if now.Sub(at) < l.cfg.Debounce {
			return false
		}
	}
	clear(l.pending)

	if maps.Equal(l.sums, checksums(l.cfg.Files)) {
		l.cfg.Trace.Trace("watch-skip", "reason", "unchanged")
		return false
	}
	return true
}

// runOnce performs a run and records the baseline later changes are
// compared against: the contents the run left for files it rewrote, and
// the contents it started from for all others. The run's own writes then
// do not trigger another run, while edits made by someone else during the
// run still do.
func (l *Loop) runOnce(ctx context.Context, reason string) error {
	l.mu.Lock()
	l.runs++
	n := l.runs
	l.mu.Unlock()

	l.logger.Printf("Run %d (%s)", n, reason)
	before := checksums(l.cfg.Files)
	written, err := l.cfg.Run(ctx)
	after := checksums(l.cfg.Files)

	rewritten := make(map[string]bool, len(written))
	for _, w := range written {
		rewritten[absPath(w)] = true
	}
	sums := before
	for _, f := range l.cfg.Files {
		if !rewritten[absPath(f)] {
			continue
		}
		if sum, ok := after[f]; ok {
			sums[f] = sum
		} else {
			delete(sums, f)
		}
	}

	l.mu.Lock()
	l.sums = sums
	l.mu.Unlock()

	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return nil
	}
	if l.cfg.StopOn != nil && l.cfg.StopOn(err) {
		return err
	}
	l.logger.Printf("Run %d failed: %v", n, err)
	return nil
}

func absPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

// checksums hashes each file. Unreadable files are left out.
func checksums(files []string) map[string][sha256.Size]byte {
	sums := make(map[string][sha256.Size]byte, len(files))
	for _, f := range files {
		// #nosec G304 - paths come from the command line
		data, err := os.ReadFile(f)
		if err != nil {
			continue
		}
		sums[f] = sha256.Sum256(data)
	}
	return sums
}
