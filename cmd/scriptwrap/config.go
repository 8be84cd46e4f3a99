// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/invowk/scriptwrap/internal/config"
)

// newConfigCommand creates the `scriptwrap config` command tree.
func newConfigCommand(app *App) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage scriptwrap configuration",
		Long: `Manage scriptwrap configuration.

Configuration is stored in:
  - Linux: ~/.config/scriptwrap/config.cue
  - macOS: ~/Library/Application Support/scriptwrap/config.cue
  - Windows: %APPDATA%\scriptwrap\config.cue

Every value can be overridden with SCRIPTWRAP_<SECTION>_<KEY>, for example
SCRIPTWRAP_CHANNEL_STREAM=stdout.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showConfig(cmd.Context(), app)
		},
	})

	var force bool
	initCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Create default configuration file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			return initConfig(app, path, force)
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	cfgCmd.AddCommand(initCmd)

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.DefaultPath()
			if err != nil {
				return err
			}
			fmt.Fprintln(app.stdout, path)
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "dump",
		Short: "Output the effective configuration as CUE",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.Config.Load(cmd.Context(), config.LoadOptions{ConfigFilePath: app.cfgFile})
			if err != nil {
				return err
			}
			fmt.Fprint(app.stdout, config.GenerateCUE(cfg))
			return nil
		},
	})

	return cfgCmd
}

func showConfig(ctx context.Context, app *App) error {
	cfg, path, err := config.LoadWithPath(ctx, config.LoadOptions{ConfigFilePath: app.cfgFile})
	if err != nil {
		return err
	}

	keyStyle := CmdStyle
	valueStyle := SuccessStyle
	w := app.stdout

	fmt.Fprintln(w, TitleStyle.Render("Current Configuration"))
	fmt.Fprintln(w)
	if path != "" {
		fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("Config file"), path)
	} else {
		fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("Config file"), SubtitleStyle.Render("(using defaults)"))
	}

	section := func(name string, kv ...string) {
		fmt.Fprintf(w, "\n%s:\n", keyStyle.Render(name))
		for i := 0; i+1 < len(kv); i += 2 {
			fmt.Fprintf(w, "  %s: %s\n", kv[i], valueStyle.Render(kv[i+1]))
		}
	}
	section("channel", "stream", cfg.Channel.Stream.String())
	section("notes", "stream", cfg.Notes.Stream.String())
	section("interceptor", "signals", fmt.Sprint(cfg.Interceptor.Signals))
	section("shell",
		"env_inherit", string(cfg.Shell.EnvInherit),
		"env_allow", listOrNone(cfg.Shell.EnvAllow),
		"env_deny", listOrNone(cfg.Shell.EnvDeny),
		"coreutils", fmt.Sprint(cfg.Shell.Coreutils),
	)
	textfile := cfg.Metrics.Textfile
	if textfile == "" {
		textfile = "(disabled)"
	}
	section("metrics", "textfile", textfile)
	section("ui", "color_scheme", cfg.UI.ColorScheme.String(), "verbose", fmt.Sprint(cfg.UI.Verbose))
	return nil
}

func initConfig(app *App, path string, force bool) error {
	written, err := config.WriteDefault(path, force)
	if errors.Is(err, config.ErrConfigExists) {
		fmt.Fprintf(app.stdout, "%s Configuration already exists at %s (use --force to overwrite)\n", WarningStyle.Render("!"), written)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to create config: %w", err)
	}
	fmt.Fprintf(app.stdout, "%s Created default configuration at %s\n", SuccessStyle.Render("✓"), written)
	return nil
}

func listOrNone(items []string) string {
	if len(items) == 0 {
		return "(none)"
	}
	return strings.Join(items, ", ")
}
