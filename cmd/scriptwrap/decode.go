// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/invowk/scriptwrap/internal/channel"
	"github.com/invowk/scriptwrap/internal/issue"
)

type decodeOptions struct {
	format string
	quiet  bool
}

func newDecodeCommand(app *App) *cobra.Command {
	var opts decodeOptions
	cmd := &cobra.Command{
		Use:   "decode [file]",
		Short: "Extract records from a captured channel stream",
		Long: `Extract records from a captured channel stream.

Reads the file (or standard input when the file is omitted or "-"), passes
every non-record line through to stderr and renders the scalar and array
records it found.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "-"
			if len(args) == 1 {
				path = args[0]
			}
			return runDecode(app, path, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.format, "format", "f", string(formatTable), "records format: table, json or yaml")
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "drop non-record lines instead of passing them through")
	return cmd
}

func runDecode(app *App, path string, opts decodeOptions) error {
	format, err := parseFormat(opts.format)
	if err != nil {
		return err
	}

	var in io.Reader = app.stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open channel stream: %w", err)
		}
		defer f.Close()
		in = f
	}

	var passthrough io.Writer = app.stderr
	if opts.quiet {
		passthrough = io.Discard
	}
	demux := channel.NewDemux(passthrough, app.logger().WithPrefix("channel"))
	if err := demux.Consume(in); err != nil {
		return err
	}
	collected, incomplete := demux.Close()

	if err := renderRecords(app.stdout, newRecordsView(collected), format); err != nil {
		return err
	}
	if incomplete != nil {
		return &ExitError{Code: 1, Err: issue.NewErrorContext().
			WithOperation("decode channel stream").
			WithResource(path).
			WithSuggestion("Check whether the wrapper was killed before cleanup finished").
			WithIssue(issue.ChannelIncompleteID).
			Wrap(incomplete).
			BuildError()}
	}
	return nil
}
