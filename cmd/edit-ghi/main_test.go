package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/edit-ghi/internal/cache"
	"github.com/steveyegge/edit-ghi/internal/config"
	"github.com/steveyegge/edit-ghi/internal/reconcile"
	"github.com/steveyegge/edit-ghi/internal/sync"
	"github.com/steveyegge/edit-ghi/internal/tracker/jsonl"
	"github.com/steveyegge/edit-ghi/internal/types"
)

// resetFlags restores every flag to its default between executions.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// execute runs the CLI and returns its stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out, _, err := executeStreams(t, args...)
	return out, err
}

// executeStreams runs the CLI with fresh flags and returns stdout and
// stderr.
func executeStreams(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	resetFlags(rootCmd)
	t.Cleanup(func() { resetFlags(rootCmd) })

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	if trace != nil {
		_ = trace.Close()
	}
	return out.String(), errOut.String(), err
}

func workspace(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg"))
	t.Setenv(config.DebugEnv, "")
	os.Unsetenv(config.DebugEnv)
	return dir
}

func writeIssues(t *testing.T, path string, issues ...types.RemoteIssue) {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jsonl.Encode(&buf, issues))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
}

func readIssues(t *testing.T, path string) []types.RemoteIssue {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	issues, err := jsonl.Decode(f)
	require.NoError(t, err)
	return issues
}

func TestSync_JSONL(t *testing.T) {
	workspace(t)
	require.NoError(t, os.WriteFile("TODO.md", []byte("# Work\n- [ ] Add dark mode\n- [x] Fix login\n"), 0644))
	writeIssues(t, "issues.jsonl", types.RemoteIssue{Number: 1, Title: "Fix login", State: types.StateOpen})

	out, err := execute(t, "--tracker", "jsonl", "--issues-file", "issues.jsonl",
		"--add-to-gh", "--fix-to-gh", "--format", "json", "TODO.md")
	require.NoError(t, err)

	var report sync.Report
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	c := report.Counts()
	assert.Equal(t, 1, c.CreateRemote)
	assert.Equal(t, 1, c.UpdateRemote)
	assert.Equal(t, 0, c.Failed)

	issues := readIssues(t, "issues.jsonl")
	require.Len(t, issues, 2)
	assert.Equal(t, types.StateClosed, issues[0].State)
	assert.Equal(t, "Add dark mode", issues[1].Title)
	assert.Equal(t, 2, issues[1].Number)

	_, err = os.Stat(cache.DefaultPath)
	assert.NoError(t, err, "run recorded in the cache")
}

func TestSync_DebugTraceKeepsJSONClean(t *testing.T) {
	workspace(t)
	require.NoError(t, os.WriteFile("TODO.md", []byte("- [ ] Add dark mode\n"), 0644))
	t.Setenv(config.DebugEnv, "1")

	out, errOut, err := executeStreams(t, "--tracker", "jsonl", "--issues-file", "issues.jsonl",
		"--no-cache", "--format", "json", "TODO.md")
	require.NoError(t, err)

	var report sync.Report
	require.NoError(t, json.Unmarshal([]byte(out), &report), "stdout holds only the report")
	assert.NotContains(t, out, "[debug]")
	assert.Contains(t, errOut, "[debug] op=")

	out, _, err = executeStreams(t, "--tracker", "jsonl", "--issues-file", "issues.jsonl",
		"--no-cache", "TODO.md")
	require.NoError(t, err)
	assert.Contains(t, out, "[debug] op=", "text output keeps traces on stdout")
}

func TestSync_ReportOnlyByDefault(t *testing.T) {
	workspace(t)
	require.NoError(t, os.WriteFile("TODO.md", []byte("- [ ] Add dark mode\n"), 0644))

	out, err := execute(t, "--tracker", "jsonl", "--issues-file", "issues.jsonl", "--no-cache", "TODO.md")
	require.NoError(t, err)
	assert.Contains(t, out, "Summary: 0 created")

	_, err = os.Stat("issues.jsonl")
	assert.ErrorIs(t, err, os.ErrNotExist)
	_, err = os.Stat(cache.DefaultPath)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestSync_DryRun(t *testing.T) {
	workspace(t)
	require.NoError(t, os.WriteFile("TODO.md", []byte("- [x] Fix login\n"), 0644))
	writeIssues(t, "issues.jsonl", types.RemoteIssue{Number: 1, Title: "Fix login", State: types.StateOpen})

	out, err := execute(t, "--tracker", "jsonl", "--issues-file", "issues.jsonl", "--no-cache",
		"--update-gh", "--dry-run", "TODO.md")
	require.NoError(t, err)
	assert.Contains(t, out, "Dry run")
	assert.Contains(t, out, string(reconcile.ActionUpdateRemote))
	assert.Equal(t, types.StateOpen, readIssues(t, "issues.jsonl")[0].State)
}

func TestSync_MissingFile(t *testing.T) {
	workspace(t)
	_, err := execute(t, "--tracker", "jsonl", "--no-cache", "missing.md")
	require.Error(t, err)
}

func TestSync_UnknownTracker(t *testing.T) {
	workspace(t)
	require.NoError(t, os.WriteFile("TODO.md", []byte("- [ ] a\n"), 0644))
	_, err := execute(t, "--tracker", "jira", "--no-cache", "TODO.md")
	require.Error(t, err)
}

func TestHistory(t *testing.T) {
	workspace(t)
	require.NoError(t, os.WriteFile("TODO.md", []byte("- [ ] Add dark mode\n"), 0644))

	_, err := execute(t, "history")
	require.Error(t, err, "no cache yet")

	_, err = execute(t, "--tracker", "jsonl", "--issues-file", "issues.jsonl", "--add-to-gh", "TODO.md")
	require.NoError(t, err)

	out, err := execute(t, "history", "--format", "json")
	require.NoError(t, err)
	var runs []cache.Run
	require.NoError(t, json.Unmarshal([]byte(out), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, "jsonl", runs[0].Tracker)
	assert.Equal(t, 1, runs[0].Counts.CreateRemote)

	out, err = execute(t, "history", runs[0].ID[:8])
	require.NoError(t, err)
	assert.Contains(t, out, "Add dark mode")

	out, err = execute(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Runs recorded: 1")
}

func TestConfigInitAndShow(t *testing.T) {
	workspace(t)

	out, err := execute(t, "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote .edit-ghi.toml")

	_, err = execute(t, "config", "init")
	assert.ErrorIs(t, err, config.ErrExists)

	_, err = execute(t, "config", "show", "--tracker", "jsonl")
	require.Error(t, err, "tracker is not a config show flag")

	t.Setenv("EDIT_GHI_TRACKER", "jsonl")
	out, err = execute(t, "config", "show")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "# from "))
	assert.Contains(t, out, `tracker = "jsonl"`)
}

func TestNormalizeFlag(t *testing.T) {
	assert.Equal(t, pflag.NormalizedName("update-gh"), normalizeFlag(nil, "fix-to-gh"))
	assert.Equal(t, pflag.NormalizedName("update-local"), normalizeFlag(nil, "fix-to-file"))
	assert.Equal(t, pflag.NormalizedName("dry-run"), normalizeFlag(nil, "dry-run"))
}
