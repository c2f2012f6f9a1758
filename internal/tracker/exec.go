package tracker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ===================
// Command Execution Utilities
// ===================

// Runner executes a command in dir and returns its stdout.
// Tests substitute a Runner to script tracker output.
type Runner func(ctx context.Context, dir, name string, args ...string) ([]byte, error)

// ExecContext executes a tracker command and captures its output.
// A missing binary yields ErrNotAvailable. A non-zero exit yields
// ErrCommandFailed with stderr folded into the message.
//
// Example:
//
//	output, err := ExecContext(ctx, "", "gh", "issue", "list", "--json", "number")
func ExecContext(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotAvailable, name)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		cmdline := strings.TrimSpace(name + " " + strings.Join(args, " "))
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%w: %s: %w: %s", ErrCommandFailed, cmdline, err, msg)
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrCommandFailed, cmdline, err)
	}

	return stdout.Bytes(), nil
}

// IsAvailable returns true if binary can be found in PATH.
func IsAvailable(binary string) bool {
	if binary == "" {
		return true
	}
	_, err := exec.LookPath(binary)
	return err == nil
}

// ExitCode extracts the process exit code from an error returned by
// ExecContext. It returns -1 when err carries no exit status.
func ExitCode(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

// ===================
// Output Parsing Utilities
// ===================

// ParseLines splits command output into non-empty, trimmed lines.
func ParseLines(output []byte) []string {
	if len(output) == 0 {
		return nil
	}

	lines := strings.Split(string(output), "\n")
	result := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			result = append(result, line)
		}
	}
	return result
}

// FirstLine returns the first non-empty line of output.
func FirstLine(output []byte) string {
	lines := ParseLines(output)
	if len(lines) == 0 {
		return ""
	}
	return lines[0]
}
