package config

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/edit-ghi/internal/reconcile"
	"github.com/steveyegge/edit-ghi/internal/tracker"
)

// isolate runs the test in an empty directory with no user config.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg"))
	t.Setenv(DebugEnv, "")
	os.Unsetenv(DebugEnv)
	return dir
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load(New(), "")
	require.NoError(t, err)
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_LocalTOML(t *testing.T) {
	dir := isolate(t)
	writeFile(t, filepath.Join(dir, ".edit-ghi.toml"), `
tracker = "gh"
repo = "acme/web"
state = "open"

[sync]
add_to_gh = true
update_gh = true

[watch]
debounce = "2s"
port = 8080
`)

	cfg, err := Load(New(), "")
	require.NoError(t, err)
	assert.Equal(t, "gh", cfg.Tracker)
	assert.Equal(t, "acme/web", cfg.Repo)
	assert.Equal(t, tracker.StateOpen, cfg.StateFilter())
	assert.Equal(t, 2*time.Second, cfg.Watch.Debounce)
	assert.Equal(t, 8080, cfg.Watch.Port)
	assert.Equal(t, reconcile.Options{CreateRemote: true, UpdateRemote: true}, cfg.ReconcileOptions())
	assert.True(t, cfg.Cache.Enabled, "unset keys keep their defaults")
}

func TestLoad_GlobalYAML(t *testing.T) {
	dir := isolate(t)
	writeFile(t, filepath.Join(dir, "xdg", "edit-ghi", "config.yaml"), "tracker: ghi\nsync:\n  add_to_file: true\n")

	cfg, err := Load(New(), "")
	require.NoError(t, err)
	assert.Equal(t, "ghi", cfg.Tracker)
	assert.True(t, cfg.Sync.AddToFile)
}

func TestLoad_ExplicitPathMissing(t *testing.T) {
	dir := isolate(t)

	_, err := Load(New(), filepath.Join(dir, "nope.toml"))
	assert.Error(t, err)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := isolate(t)
	writeFile(t, filepath.Join(dir, ".edit-ghi.toml"), "tracker = \"gh\"\n")
	t.Setenv("EDIT_GHI_TRACKER", "jsonl")
	t.Setenv("EDIT_GHI_SYNC_UPDATE_LOCAL", "true")

	cfg, err := Load(New(), "")
	require.NoError(t, err)
	assert.Equal(t, "jsonl", cfg.Tracker)
	assert.True(t, cfg.Sync.UpdateLocal)
}

func TestLoad_DebugEnv(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"1", true},
		{"yes", true},
		{"on", true},
		{"false", false},
		{"off", false},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			isolate(t)
			t.Setenv(DebugEnv, tt.value)

			cfg, err := Load(New(), "")
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.Debug.Enabled)
		})
	}
}

func TestLoad_FlagsOverrideEnv(t *testing.T) {
	isolate(t)
	t.Setenv("EDIT_GHI_FORMAT", "yaml")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("format", "text", "")
	flags.Bool("add-to-gh", false, "")
	require.NoError(t, flags.Parse([]string{"--format", "json", "--add-to-gh"}))

	v := New()
	require.NoError(t, BindFlags(v, flags, map[string]string{
		"format":    "format",
		"add-to-gh": "sync.add_to_gh",
		"port":      "watch.port", // not defined on this set
	}))

	cfg, err := Load(v, "")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, cfg.Format)
	assert.True(t, cfg.Sync.AddToGH)
}

func TestLoad_Invalid(t *testing.T) {
	dir := isolate(t)
	writeFile(t, filepath.Join(dir, ".edit-ghi.toml"), "format = \"xml\"\n")

	_, err := Load(New(), "")
	assert.True(t, errors.Is(err, ErrInvalid), "err = %v", err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"bad format", func(c *Config) { c.Format = "xml" }, false},
		{"bad state", func(c *Config) { c.State = "merged" }, false},
		{"empty state", func(c *Config) { c.State = "" }, true},
		{"negative limit", func(c *Config) { c.Limit = -1 }, false},
		{"zero debounce", func(c *Config) { c.Watch.Debounce = 0 }, false},
		{"port too high", func(c *Config) { c.Watch.Port = 70000 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.modify(c)
			err := c.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalid)
			}
		})
	}
}

func TestFind_Order(t *testing.T) {
	dir := t.TempDir()
	home := filepath.Join(dir, "home")

	assert.Equal(t, "", Find(dir, home))

	writeFile(t, filepath.Join(home, "config.toml"), "")
	assert.Equal(t, filepath.Join(home, "config.toml"), Find(dir, home))

	writeFile(t, filepath.Join(dir, ".edit-ghi.yaml"), "")
	assert.Equal(t, filepath.Join(dir, ".edit-ghi.yaml"), Find(dir, home))

	writeFile(t, filepath.Join(dir, ".edit-ghi.toml"), "")
	assert.Equal(t, filepath.Join(dir, ".edit-ghi.toml"), Find(dir, home))
}

func TestWriteDefault_RoundTrip(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "conf", "config.toml")

	require.NoError(t, WriteDefault(path))

	cfg, err := Load(New(), path)
	require.NoError(t, err)
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteDefault_Exists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	writeFile(t, path, "tracker = \"gh\"\n")

	err := WriteDefault(path)
	assert.ErrorIs(t, err, ErrExists)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "tracker = \"gh\"\n", string(data))
}

func TestEncode(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, Default(), FormatYAML))
	assert.Contains(t, buf.String(), "tracker: auto")

	buf.Reset()
	require.NoError(t, Encode(&buf, Default(), "toml"))
	assert.Contains(t, buf.String(), `tracker = "auto"`)

	assert.Error(t, Encode(&buf, Default(), "ini"))
}
