// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"io/fs"

	"github.com/spf13/cobra"

	"github.com/invowk/scriptwrap/internal/app/execute"
	"github.com/invowk/scriptwrap/internal/exitguard"
	"github.com/invowk/scriptwrap/internal/issue"
	"github.com/invowk/scriptwrap/internal/manifest"
	"github.com/invowk/scriptwrap/pkg/types"
)

// manifestErrorCode is the exit code for manifests that cannot be loaded.
const manifestErrorCode types.ExitCode = 2

func newExecCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "exec <manifest>",
		Short: "Run a manifest in this process",
		Long: `Run a manifest in this process.

Records are written to the channel stream (stderr unless configured
otherwise) and interception notes to the notes stream. The process exits
with the code the script requested.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExec(cmd.Context(), app, args[0], nil)
		},
	}
}

// runExec runs the manifest at path. prims replaces the real termination
// primitives when non-nil.
func runExec(ctx context.Context, app *App, path string, prims *exitguard.Primitives) error {
	cfg := app.loadConfig(ctx)
	logger := app.logger()

	m, err := manifest.Load(path)
	if err != nil {
		return &ExitError{Code: manifestErrorCode, Err: manifestError(path, err)}
	}

	res, err := execute.Run(ctx, execute.Options{
		Config:     cfg,
		Manifest:   m,
		Stdin:      app.stdin,
		Stdout:     app.stdout,
		Stderr:     app.stderr,
		Logger:     logger,
		Primitives: prims,
	})
	if err != nil {
		return &ExitError{Code: manifestErrorCode, Err: manifestError(path, err)}
	}

	if res.Error != nil {
		logger.Error("script failed", "event", res.Event.Kind, "error", res.Error)
	}
	if res.ExitCode.IsSuccess() {
		return nil
	}
	return &ExitError{Code: res.ExitCode}
}

func manifestError(path string, err error) error {
	ctx := issue.NewErrorContext().
		WithOperation("load manifest").
		WithResource(path)
	switch {
	case errors.Is(err, manifest.ErrUnsupportedBinding):
		ctx = ctx.WithSuggestion("Bindings must be scalars or rectangular arrays; tables are not supported")
	case errors.Is(err, manifest.ErrInvalidManifest):
		ctx = ctx.WithSuggestion("Check the field named in the error against the manifest format")
	}
	id := issue.ManifestInvalidID
	if errors.Is(err, fs.ErrNotExist) {
		id = issue.ManifestNotFoundID
		ctx = ctx.WithSuggestion("Check the manifest path")
	}
	return ctx.
		WithSuggestion("Run 'scriptwrap explain " + id.String() + "' for details").
		WithIssue(id).
		Wrap(err).
		BuildError()
}
