// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/invowk/scriptwrap/internal/host"
	"github.com/invowk/scriptwrap/internal/issue"
	"github.com/invowk/scriptwrap/internal/manifest"
	"github.com/invowk/scriptwrap/pkg/types"
)

type runOptions struct {
	keepWorkdir bool
	format      string
}

func newRunCommand(app *App) *cobra.Command {
	var opts runOptions
	cmd := &cobra.Command{
		Use:   "run <manifest>",
		Short: "Run a manifest in a wrapper process and show its records",
		Long: `Run a manifest in a wrapper process and show its records.

The manifest is copied into a temporary work directory and executed by
'scriptwrap exec'. The script's output is passed through; the records it
emitted are rendered once it has finished. The exit code is the script's.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHosted(cmd.Context(), app, args[0], opts)
		},
	}
	cmd.Flags().BoolVar(&opts.keepWorkdir, "keep-workdir", false, "keep the temporary work directory for debugging")
	cmd.Flags().StringVarP(&opts.format, "format", "f", string(formatTable), "records format: table, json or yaml")
	return cmd
}

func runHosted(ctx context.Context, app *App, path string, opts runOptions) error {
	format, err := parseFormat(opts.format)
	if err != nil {
		return err
	}
	// The wrapper process applies the configuration; here it only sets verbosity.
	app.loadConfig(ctx)

	m, err := manifest.Load(path)
	if err != nil {
		return &ExitError{Code: manifestErrorCode, Err: manifestError(path, err)}
	}

	var childArgs []string
	if app.cfgFile != "" {
		childArgs = append(childArgs, "--config", app.cfgFile)
	}
	if app.verbose {
		childArgs = append(childArgs, "--verbose")
	}
	exe := host.New(host.Config{
		Binary:      app.binary,
		Args:        childArgs,
		Env:         app.childEnv,
		Stdin:       app.stdin,
		Stdout:      app.stdout,
		Stderr:      app.stderr,
		KeepWorkdir: opts.keepWorkdir,
		Logger:      app.logger().WithPrefix("host"),
	})
	res, err := exe.Run(ctx, m)
	if err != nil {
		return err
	}

	view := newRecordsView(res.Collected)
	view.ExitCode = &res.ExitCode
	if err := renderRecords(app.stdout, view, format); err != nil {
		return err
	}

	if res.Err != nil {
		return &ExitError{Code: exitCodeOrFailure(res), Err: issue.NewErrorContext().
			WithOperation("collect records").
			WithResource(path).
			WithSuggestion("Re-run with --keep-workdir and inspect the wrapper output").
			WithIssue(issue.ChannelIncompleteID).
			Wrap(res.Err).
			BuildError()}
	}
	if !res.ExitCode.IsSuccess() {
		return &ExitError{Code: res.ExitCode}
	}
	return nil
}

func exitCodeOrFailure(res *host.Result) types.ExitCode {
	if res.ExitCode.IsSuccess() {
		return 1
	}
	return res.ExitCode
}
