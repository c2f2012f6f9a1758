// Package repo locates the repository a checklist lives in and derives
// the owner/name slug of its GitHub remote.
//
// The slug fills in the tracker repository when none is configured, so
// runs started from a subdirectory or a jj workspace still address the
// right issues.
package repo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

var (
	// ErrNotInRepo is returned when no .git or .jj is found above a directory.
	ErrNotInRepo = errors.New("not in a git or jj repository")

	// ErrNoRemote is returned when the repository has no usable remote.
	ErrNoRemote = errors.New("no remote configured")

	// ErrNotGitHub is returned for remotes that are not GitHub URLs.
	ErrNotGitHub = errors.New("remote is not a GitHub repository")
)

// Kind is the version control system found.
type Kind string

const (
	KindGit       Kind = "git"
	KindJJ        Kind = "jj"
	KindColocated Kind = "colocated"
)

// DefaultRemote is the remote consulted for the slug.
const DefaultRemote = "origin"

// commandTimeout bounds each git or jj invocation.
const commandTimeout = 10 * time.Second

// Info describes a detected repository.
type Info struct {
	Kind Kind
	// Root is the directory holding .git or .jj
	Root string
	// Worktree is true when .git is a file (git worktree or submodule)
	Worktree bool
}

// Runner executes name with args in dir and returns stdout.
type Runner func(ctx context.Context, dir, name string, args ...string) ([]byte, error)

// Detect walks up from dir until it finds a .jj or .git entry.
func Detect(dir string) (*Info, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}

	for current := abs; ; {
		_, jjErr := os.Stat(filepath.Join(current, ".jj"))
		gitInfo, gitErr := os.Stat(filepath.Join(current, ".git"))
		hasJJ, hasGit := jjErr == nil, gitErr == nil

		if hasJJ || hasGit {
			info := &Info{Root: current}
			switch {
			case hasJJ && hasGit:
				info.Kind = KindColocated
			case hasJJ:
				info.Kind = KindJJ
			default:
				info.Kind = KindGit
			}
			info.Worktree = hasGit && gitInfo.Mode().IsRegular()
			return info, nil
		}

		parent := filepath.Dir(current)
		if parent == current {
			return nil, ErrNotInRepo
		}
		current = parent
	}
}

// RemoteURL returns the URL of remote (default DefaultRemote). Colocated
// repositories are read through git.
func (i *Info) RemoteURL(ctx context.Context, run Runner, remote string) (string, error) {
	if run == nil {
		run = Exec
	}
	if remote == "" {
		remote = DefaultRemote
	}

	if i.Kind == KindJJ {
		out, err := run(ctx, i.Root, "jj", "git", "remote", "list")
		if err != nil {
			return "", fmt.Errorf("jj git remote list: %w", err)
		}
		for _, line := range strings.Split(string(out), "\n") {
			name, url, ok := strings.Cut(strings.TrimSpace(line), " ")
			if ok && name == remote {
				return strings.TrimSpace(url), nil
			}
		}
		return "", fmt.Errorf("%w: %s", ErrNoRemote, remote)
	}

	out, err := run(ctx, i.Root, "git", "remote", "get-url", remote)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrNoRemote, remote, err)
	}
	url := strings.TrimSpace(string(out))
	if url == "" {
		return "", fmt.Errorf("%w: %s", ErrNoRemote, remote)
	}
	return url, nil
}

// Slug returns the owner/name of the repository containing dir, read from
// its origin remote.
func Slug(ctx context.Context, dir string, run Runner) (string, error) {
	info, err := Detect(dir)
	if err != nil {
		return "", err
	}
	url, err := info.RemoteURL(ctx, run, "")
	if err != nil {
		return "", err
	}
	return ParseSlug(url)
}

// ParseSlug extracts owner/name from a GitHub remote URL. Accepted forms:
//
//	git@github.com:owner/name.git
//	ssh://git@github.com/owner/name.git
//	https://github.com/owner/name
func ParseSlug(url string) (string, error) {
	rest := strings.TrimSpace(url)
	switch {
	case strings.HasPrefix(rest, "git@github.com:"):
		rest = strings.TrimPrefix(rest, "git@github.com:")
	default:
		i := strings.Index(rest, "github.com/")
		if i < 0 || !strings.Contains(rest[:i], "://") {
			return "", fmt.Errorf("%w: %s", ErrNotGitHub, url)
		}
		rest = rest[i+len("github.com/"):]
	}

	rest = strings.TrimSuffix(strings.TrimSuffix(rest, "/"), ".git")
	owner, name, ok := strings.Cut(rest, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return "", fmt.Errorf("%w: %s", ErrNotGitHub, url)
	}
	return owner + "/" + name, nil
}

// Exec runs a command with a timeout, folding stderr into the error.
func Exec(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if stderr.Len() > 0 {
			return nil, fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
		}
		return nil, err
	}
	return stdout.Bytes(), nil
}
