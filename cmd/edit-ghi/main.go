// Command edit-ghi reconciles markdown checklists with a remote issue tracker.
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/steveyegge/edit-ghi/internal/cache"
	"github.com/steveyegge/edit-ghi/internal/config"
	"github.com/steveyegge/edit-ghi/internal/debug"
	"github.com/steveyegge/edit-ghi/internal/repo"
	"github.com/steveyegge/edit-ghi/internal/tracker"
	_ "github.com/steveyegge/edit-ghi/internal/tracker/gh"
	_ "github.com/steveyegge/edit-ghi/internal/tracker/ghi"
	_ "github.com/steveyegge/edit-ghi/internal/tracker/jsonl"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

var (
	// vp and cfg hold the settings of the running command
	vp  *viper.Viper
	cfg *config.Config

	// trace is the debug trace logger (no-op unless debugging)
	trace *debug.Logger

	configPath string
	noCache    bool
	verbose    bool
)

// flagKeys maps flag names to config keys.
var flagKeys = map[string]string{
	"tracker":      "tracker",
	"repo":         "repo",
	"binary":       "binary",
	"issues-file":  "issues_file",
	"state":        "state",
	"limit":        "limit",
	"format":       "format",
	"local-target": "local_target",
	"add-to-gh":    "sync.add_to_gh",
	"add-to-file":  "sync.add_to_file",
	"update-gh":    "sync.update_gh",
	"update-local": "sync.update_local",
	"dry-run":      "sync.dry_run",
	"confirm":      "sync.confirm",
	"cache-path":   "cache.path",
	"debounce":     "watch.debounce",
	"port":         "watch.port",
	"debug-file":   "debug.file",
}

// flagAliases maps the alternative spellings onto one flag each.
var flagAliases = map[string]string{
	"fix-to-gh":   "update-gh",
	"fix-to-file": "update-local",
}

var rootCmd = &cobra.Command{
	Use:   "edit-ghi [flags] file...",
	Short: "Reconcile markdown checklists with issue tracker issues",
	Long: `edit-ghi reads checklist files and reconciles each item with the issues
of a remote tracker (GitHub through gh or ghi, or a local jsonl file).

Document format:
  ---           starts a new document
  # heading     sets the heading for following items
  - [ ] title   an open item
  - [x] title   a closed item

Item tokens: [a,b] labels, #12 and owner/repo#12 issue references, [#12]
the item's own issue number.

Without policy flags a run only reports. Each flag enables one action:
  --add-to-gh                 create remote issues for unmatched items
  --update-gh, --fix-to-gh    overwrite remote issues with local values
  --update-local, --fix-to-file
                              rewrite local lines from remote issues
  --add-to-file               append remote issues no item matches`,
	Version:           version,
	Args:              cobra.MinimumNArgs(1),
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
	RunE:              runSync,
}

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: "sync", Title: "Sync Commands:"},
		&cobra.Group{ID: "cache", Title: "Cache Commands:"},
		&cobra.Group{ID: "setup", Title: "Setup Commands:"},
	)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "config file (default: .edit-ghi.toml or $XDG_CONFIG_HOME/edit-ghi/config.toml)")
	pf.String("format", config.FormatText, "output format: text, json or yaml (debug traces move to stderr for json and yaml)")
	pf.String("cache-path", cache.DefaultPath, "run history cache location")
	pf.BoolVar(&noCache, "no-cache", false, "do not record runs in the cache")
	pf.String("debug-file", "", "also write debug trace lines to this file")
	pf.BoolVarP(&verbose, "verbose", "v", false, "list unchanged items and log progress")

	addSyncFlags(rootCmd.Flags())
	rootCmd.SetGlobalNormalizationFunc(normalizeFlag)
}

// addSyncFlags registers the flags shared by the sync and watch commands.
func addSyncFlags(fs *pflag.FlagSet) {
	fs.String("tracker", tracker.TypeAuto.String(), "tracker backend: "+trackerChoices())
	fs.String("repo", "", "repository as owner/name (default: inferred by the tracker)")
	fs.String("binary", "", "tracker executable to run instead of the default")
	fs.String("issues-file", "", "issue file for the jsonl tracker")
	fs.String("state", "all", "remote issues to consider: all, open or closed")
	fs.Int("limit", 0, "maximum number of remote issues to list (0: tracker default)")
	fs.String("local-target", "", "file that receives --add-to-file lines (default: first file)")
	fs.Bool("add-to-gh", false, "create remote issues for unmatched items")
	fs.Bool("add-to-file", false, "append remote issues that no item matches")
	fs.Bool("update-gh", false, "update remote issues from local items (alias --fix-to-gh)")
	fs.Bool("update-local", false, "update local items from remote issues (alias --fix-to-file)")
	fs.Bool("dry-run", false, "decide and report without changing anything")
	fs.Bool("confirm", false, "ask before applying changes")
}

func normalizeFlag(_ *pflag.FlagSet, name string) pflag.NormalizedName {
	if target, ok := flagAliases[name]; ok {
		name = target
	}
	return pflag.NormalizedName(name)
}

func trackerChoices() string {
	names := []string{tracker.TypeAuto.String()}
	for _, t := range tracker.RegisteredTypes() {
		names = append(names, t.String())
	}
	return strings.Join(names, ", ")
}

// loadConfig merges defaults, config file, environment and flags.
func loadConfig(cmd *cobra.Command, args []string) error {
	vp = config.New()
	if err := config.BindFlags(vp, cmd.Flags(), flagKeys); err != nil {
		return err
	}
	c, err := config.Load(vp, configPath)
	if err != nil {
		return err
	}
	if noCache {
		c.Cache.Enabled = false
	}
	cfg = c

	trace = debug.New(debug.Options{Enabled: cfg.Debug.Enabled, Out: traceOutput(cmd), File: cfg.Debug.File})
	trace.Trace("config", "file", vp.ConfigFileUsed(), "tracker", cfg.Tracker, "format", cfg.Format)
	return nil
}

// traceOutput is stdout for text output and stderr when stdout carries a
// json or yaml document.
func traceOutput(cmd *cobra.Command) io.Writer {
	if cfg.Format != config.FormatText {
		return cmd.ErrOrStderr()
	}
	return cmd.OutOrStdout()
}

// openTracker opens the configured tracker backend. Without a configured
// repository, the GitHub remote of the repository holding the first file
// is used.
func openTracker(ctx context.Context, files []string) (tracker.Tracker, error) {
	slug := cfg.Repo
	if slug == "" && len(files) > 0 {
		inferred, err := repo.Slug(ctx, filepath.Dir(files[0]), nil)
		if err != nil {
			trace.Trace("repo", "inferred", "", "error", err)
		} else {
			trace.Trace("repo", "inferred", inferred)
			slug = inferred
		}
	}
	return tracker.Open(cfg.Tracker, tracker.Options{
		Repo:   slug,
		Binary: cfg.Binary,
		Path:   cfg.IssuesFile,
		Limit:  cfg.Limit,
		Trace:  trace,
	})
}

// openCache opens the run history cache when enabled. A cache that cannot
// be opened is reported and skipped.
func openCache(stderr io.Writer) *cache.DB {
	if !cfg.Cache.Enabled {
		return nil
	}
	db, err := cache.Open(cfg.Cache.Path)
	if err != nil {
		fmt.Fprintf(stderr, "Warning: run history disabled: %v\n", err)
		return nil
	}
	return db
}

// logger returns the progress logger for component, silent unless verbose.
func logger(component string) *log.Logger {
	if !verbose {
		return log.New(io.Discard, "", 0)
	}
	return log.New(os.Stderr, "["+component+"] ", log.LstdFlags)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := rootCmd.ExecuteContext(ctx)
	cancel()
	if trace != nil {
		_ = trace.Close()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
