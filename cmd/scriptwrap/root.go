// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/invowk/scriptwrap/internal/issue"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// NewRootCommand builds the command tree around app.
func NewRootCommand(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "scriptwrap",
		Short: "Run embedded shell scripts with guaranteed cleanup",
		Long: TitleStyle.Render("scriptwrap") + SubtitleStyle.Render(" - run embedded shell scripts with guaranteed cleanup") + `

scriptwrap runs the init, main and cleanup slots of a manifest in an embedded
shell. However main ends (returning, exit, os_exit, thread_exit or a signal),
cleanup runs exactly once and the data written with dm_set, together with the
declared outputs, is reported to the host on a line-oriented channel.

` + SubtitleStyle.Render("Examples:") + `
  scriptwrap run job.toml          Run a manifest and show its records
  scriptwrap exec job.toml         Run a manifest in-process (wrapper side)
  scriptwrap decode out.log        Extract records from a captured stream
  scriptwrap config show           Show current configuration`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().BoolVarP(&app.verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&app.cfgFile, "config", "", "config file (default is $XDG_CONFIG_HOME/scriptwrap/config.cue)")

	rootCmd.AddCommand(
		newExecCommand(app),
		newRunCommand(app),
		newDecodeCommand(app),
		newConfigCommand(app),
		newBuiltinsCommand(app),
		newExplainCommand(app),
	)
	return rootCmd
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute builds the command tree and runs it. It is called by main.main().
func Execute() {
	app := NewApp(Dependencies{})
	if err := fang.Execute(
		context.Background(),
		NewRootCommand(app),
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
		fang.WithErrorHandler(func(w io.Writer, styles fang.Styles, err error) {
			handleError(w, styles, err, app.verbose)
		}),
	); err != nil {
		os.Exit(exitCodeFor(err))
	}
}

// handleError prints err unless it only carries an exit code.
func handleError(w io.Writer, styles fang.Styles, err error, verbose bool) {
	var exitErr *ExitError
	if errors.As(err, &exitErr) && exitErr.Err == nil {
		return
	}
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		fmt.Fprintln(w, ErrorStyle.Render("Error: ")+ae.Format(verbose))
		return
	}
	fang.DefaultErrorHandler(w, styles, err)
}

func exitCodeFor(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return int(exitErr.Code)
	}
	return 1
}

// formatErrorForDisplay formats an error for user display.
// If the error is an ActionableError, it uses the Format method.
// In verbose mode, shows the full error chain.
func formatErrorForDisplay(err error, verboseMode bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verboseMode)
	}
	return err.Error()
}
