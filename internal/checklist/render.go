package checklist

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/steveyegge/edit-ghi/internal/types"
)

// FormatItem renders a checklist line from a state and a title.
func FormatItem(state types.State, title string) string {
	box := "[ ]"
	if state == types.StateClosed {
		box = "[x]"
	}
	return fmt.Sprintf("- %s %s", box, title)
}

// FormatRemote renders the checklist line for a remote issue, used both
// for appended issues and for items updated from the tracker. The title
// is the whole remainder of the line, so the line parses back to the
// issue's title and state.
func FormatRemote(issue types.RemoteIssue) string {
	return FormatItem(issue.State, issue.Title)
}

// Edit replaces a single 1-based line.
type Edit struct {
	Line int
	Text string
}

// Rewrite applies line edits and then appends lines to text. Edits that
// point outside the text are dropped. A trailing newline is preserved, and
// added whenever lines are appended.
func Rewrite(text string, edits []Edit, appends []string) string {
	lines := strings.Split(text, "\n")
	trailing := lines[len(lines)-1] == ""
	if trailing {
		lines = lines[:len(lines)-1]
	}

	for _, e := range edits {
		if e.Line < 1 || e.Line > len(lines) {
			continue
		}
		// keep a CRLF line ending if the file uses them
		if strings.HasSuffix(lines[e.Line-1], "\r") {
			lines[e.Line-1] = e.Text + "\r"
			continue
		}
		lines[e.Line-1] = e.Text
	}
	lines = append(lines, appends...)

	out := strings.Join(lines, "\n")
	if trailing || len(appends) > 0 {
		out += "\n"
	}
	return out
}

// WriteFileAtomic writes data to a temp file next to path and renames it
// over path, keeping the original file mode.
func WriteFileAtomic(path string, data []byte) error {
	mode := os.FileMode(0644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", path, err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close %s: %w", tmpPath, err)
	}
	if err := os.Chmod(tmpPath, mode); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to chmod %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename %s to %s: %w", tmpPath, path, err)
	}
	return nil
}
