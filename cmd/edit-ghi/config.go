package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/steveyegge/edit-ghi/internal/config"
	"github.com/steveyegge/edit-ghi/internal/ui"
)

var configCmd = &cobra.Command{
	Use:     "config",
	GroupID: "setup",
	Short:   "Create or inspect configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a config file with the default settings",
	Long: `Write the default settings to path (default .edit-ghi.toml in the
current directory). An existing file is never overwritten.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := ".edit-ghi.toml"
		if len(args) == 1 {
			path = args[0]
		}
		if err := config.WriteDefault(path); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s Wrote %s\n", ui.RenderPass("✓"), path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long: `Print the settings after merging defaults, the config file, EDIT_GHI_*
environment variables and flags. Output is TOML unless --format is json
or yaml.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		out := cmd.OutOrStdout()
		switch cfg.Format {
		case config.FormatJSON:
			return ui.Encode(out, cfg, cfg.Format)
		case config.FormatYAML:
			return config.Encode(out, cfg, config.FormatYAML)
		}
		if used := vp.ConfigFileUsed(); used != "" {
			fmt.Fprintf(out, "# from %s\n", used)
		} else {
			fmt.Fprintln(out, "# no config file found, showing defaults")
		}
		return config.Encode(out, cfg, "toml")
	},
}

func init() {
	configCmd.AddCommand(configInitCmd, configShowCmd)
	rootCmd.AddCommand(configCmd)
}
