// Package config loads edit-ghi settings from defaults, a config file, the
// environment and command-line flags, in increasing order of precedence.
//
// Config files are searched in this order (first match wins):
//
//	./.edit-ghi.toml, ./.edit-ghi.yaml, ./.edit-ghi.yml
//	$XDG_CONFIG_HOME/edit-ghi/config.{toml,yaml,yml}
//
// Environment variables use the EDIT_GHI_ prefix with dots replaced by
// underscores, e.g. EDIT_GHI_SYNC_ADD_TO_GH=true. EDIT_GHI_DEBUG accepts any
// truthy value.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/steveyegge/edit-ghi/internal/reconcile"
	"github.com/steveyegge/edit-ghi/internal/tracker"
)

// Config holds all settings.
type Config struct {
	// Tracker selects the backend: auto, gh, ghi or jsonl
	Tracker string `mapstructure:"tracker" toml:"tracker" yaml:"tracker"`

	// Repo is the owner/name repository (default: the tracker's own detection)
	Repo string `mapstructure:"repo" toml:"repo" yaml:"repo"`

	// Binary overrides the tracker executable
	Binary string `mapstructure:"binary" toml:"binary" yaml:"binary"`

	// IssuesFile is the jsonl tracker's file
	IssuesFile string `mapstructure:"issues_file" toml:"issues_file" yaml:"issues_file"`

	// State limits which remote issues are fetched: all, open or closed
	State string `mapstructure:"state" toml:"state" yaml:"state"`

	// Limit caps the number of issues listed (0: tracker default)
	Limit int `mapstructure:"limit" toml:"limit" yaml:"limit"`

	// Format is the report format: text, json or yaml
	Format string `mapstructure:"format" toml:"format" yaml:"format"`

	// LocalTarget receives create-local lines (default: first input file)
	LocalTarget string `mapstructure:"local_target" toml:"local_target" yaml:"local_target"`

	Sync  SyncConfig  `mapstructure:"sync" toml:"sync" yaml:"sync"`
	Cache CacheConfig `mapstructure:"cache" toml:"cache" yaml:"cache"`
	Watch WatchConfig `mapstructure:"watch" toml:"watch" yaml:"watch"`
	Debug DebugConfig `mapstructure:"debug" toml:"debug" yaml:"debug"`
}

// SyncConfig selects the reconciliation policy.
type SyncConfig struct {
	AddToGH     bool `mapstructure:"add_to_gh" toml:"add_to_gh" yaml:"add_to_gh"`
	AddToFile   bool `mapstructure:"add_to_file" toml:"add_to_file" yaml:"add_to_file"`
	UpdateGH    bool `mapstructure:"update_gh" toml:"update_gh" yaml:"update_gh"`
	UpdateLocal bool `mapstructure:"update_local" toml:"update_local" yaml:"update_local"`
	DryRun      bool `mapstructure:"dry_run" toml:"dry_run" yaml:"dry_run"`
	Confirm     bool `mapstructure:"confirm" toml:"confirm" yaml:"confirm"`
}

// CacheConfig configures the run history cache.
type CacheConfig struct {
	Enabled bool   `mapstructure:"enabled" toml:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" toml:"path" yaml:"path"`
}

// WatchConfig configures watch mode.
type WatchConfig struct {
	// Debounce is the quiet period after a change before a run starts
	Debounce time.Duration `mapstructure:"debounce" toml:"debounce" yaml:"debounce"`

	// Port serves the dashboard when non-zero
	Port int `mapstructure:"port" toml:"port" yaml:"port"`
}

// DebugConfig configures trace output.
type DebugConfig struct {
	Enabled bool   `mapstructure:"enabled" toml:"enabled" yaml:"enabled"`
	File    string `mapstructure:"file" toml:"file" yaml:"file"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Tracker: tracker.TypeAuto.String(),
		State:   "all",
		Format:  FormatText,
		Cache: CacheConfig{
			Enabled: true,
			Path:    ".edit-ghi/cache.db",
		},
		Watch: WatchConfig{
			Debounce: 500 * time.Millisecond,
		},
	}
}

// Report formats.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Validate checks values that cannot be checked by decoding alone.
func (c *Config) Validate() error {
	switch c.Format {
	case FormatText, FormatJSON, FormatYAML:
	default:
		return fmt.Errorf("%w: format %q (want text, json or yaml)", ErrInvalid, c.Format)
	}
	if _, err := tracker.ParseStateFilter(c.State); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if c.Limit < 0 {
		return fmt.Errorf("%w: limit %d is negative", ErrInvalid, c.Limit)
	}
	if c.Watch.Debounce <= 0 {
		return fmt.Errorf("%w: watch.debounce must be positive", ErrInvalid)
	}
	if c.Watch.Port < 0 || c.Watch.Port > 65535 {
		return fmt.Errorf("%w: watch.port %d out of range", ErrInvalid, c.Watch.Port)
	}
	return nil
}

// ReconcileOptions maps the sync flags onto the reconciliation policy.
func (c *Config) ReconcileOptions() reconcile.Options {
	return reconcile.Options{
		CreateRemote: c.Sync.AddToGH,
		UpdateRemote: c.Sync.UpdateGH,
		CreateLocal:  c.Sync.AddToFile,
		UpdateLocal:  c.Sync.UpdateLocal,
	}
}

// StateFilter returns the parsed State. Validate has already rejected
// unknown values.
func (c *Config) StateFilter() tracker.StateFilter {
	f, err := tracker.ParseStateFilter(c.State)
	if err != nil {
		return tracker.StateAll
	}
	return f
}
