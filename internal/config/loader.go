package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/steveyegge/edit-ghi/internal/debug"
)

const (
	// EnvPrefix prefixes every environment override.
	EnvPrefix = "EDIT_GHI"

	// DebugEnv enables tracing with any truthy value.
	DebugEnv = "EDIT_GHI_DEBUG"
)

// ErrExists is returned by WriteDefault when the file is already present.
var ErrExists = errors.New("config file already exists")

var (
	localNames  = []string{".edit-ghi.toml", ".edit-ghi.yaml", ".edit-ghi.yml"}
	globalNames = []string{"config.toml", "config.yaml", "config.yml"}
)

// New returns a viper instance carrying the defaults and environment
// bindings. Flags are bound with BindFlags before Load.
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v, Default())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("tracker", d.Tracker)
	v.SetDefault("repo", d.Repo)
	v.SetDefault("binary", d.Binary)
	v.SetDefault("issues_file", d.IssuesFile)
	v.SetDefault("state", d.State)
	v.SetDefault("limit", d.Limit)
	v.SetDefault("format", d.Format)
	v.SetDefault("local_target", d.LocalTarget)

	v.SetDefault("sync.add_to_gh", d.Sync.AddToGH)
	v.SetDefault("sync.add_to_file", d.Sync.AddToFile)
	v.SetDefault("sync.update_gh", d.Sync.UpdateGH)
	v.SetDefault("sync.update_local", d.Sync.UpdateLocal)
	v.SetDefault("sync.dry_run", d.Sync.DryRun)
	v.SetDefault("sync.confirm", d.Sync.Confirm)

	v.SetDefault("cache.enabled", d.Cache.Enabled)
	v.SetDefault("cache.path", d.Cache.Path)

	v.SetDefault("watch.debounce", d.Watch.Debounce)
	v.SetDefault("watch.port", d.Watch.Port)

	v.SetDefault("debug.enabled", d.Debug.Enabled)
	v.SetDefault("debug.file", d.Debug.File)
}

// BindFlags binds command-line flags to config keys. keys maps flag names
// to dotted keys. Flags that are not defined on the set are skipped so one
// table can serve several commands.
func BindFlags(v *viper.Viper, flags *pflag.FlagSet, keys map[string]string) error {
	for name, key := range keys {
		f := flags.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("failed to bind --%s: %w", name, err)
		}
	}
	return nil
}

// ConfigHome returns the per-user config directory.
func ConfigHome() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "edit-ghi")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "edit-ghi")
}

// Find returns the first config file in dir, then in configHome, or "".
func Find(dir, configHome string) string {
	var candidates []string
	for _, name := range localNames {
		candidates = append(candidates, filepath.Join(dir, name))
	}
	if configHome != "" {
		for _, name := range globalNames {
			candidates = append(candidates, filepath.Join(configHome, name))
		}
	}
	for _, p := range candidates {
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p
		}
	}
	return ""
}

// Load reads the config file into v and decodes the merged settings.
//
// An explicit path must exist. With an empty path the search order in the
// package documentation applies, and finding nothing is not an error.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path == "" {
		cwd, err := os.Getwd()
		if err == nil {
			path = Find(cwd, ConfigHome())
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if val, ok := os.LookupEnv(DebugEnv); ok {
		cfg.Debug.Enabled = debug.EnvEnabled(val)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// WriteDefault writes the default settings as TOML. An existing file is
// left untouched and ErrExists is returned.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%w: %s", ErrExists, path)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	// #nosec G304 - path comes from the command line
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return fmt.Errorf("failed to create config: %w", err)
	}
	defer f.Close()

	if _, err := io.WriteString(f, "# edit-ghi configuration\n# Flags and EDIT_GHI_* environment variables override these values.\n\n"); err != nil {
		return err
	}
	if err := toml.NewEncoder(f).Encode(Default()); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return f.Close()
}

// Encode writes cfg in the given format: toml (default) or yaml.
func Encode(w io.Writer, cfg *Config, format string) error {
	switch format {
	case "", "toml":
		return toml.NewEncoder(w).Encode(cfg)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported config format %q", format)
	}
}
