// SPDX-License-Identifier: MPL-2.0

package execute

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"

	"github.com/invowk/scriptwrap/internal/config"
	"github.com/invowk/scriptwrap/internal/exitguard"
	"github.com/invowk/scriptwrap/internal/manifest"
	"github.com/invowk/scriptwrap/internal/metrics"
	"github.com/invowk/scriptwrap/internal/runtime"
)

// ErrInvalidOptions is the sentinel error wrapped by InvalidOptionsError.
var ErrInvalidOptions = errors.New("invalid execute options")

type (
	// Options configures one wrapped run.
	//
	// Config and Manifest are required. All other fields are optional.
	Options struct {
		Config   *config.Config
		Manifest *manifest.Manifest

		Stdin  io.Reader
		Stdout io.Writer
		Stderr io.Writer

		Logger *log.Logger
		// Primitives replaces exitguard.DefaultPrimitives. Signal watching is
		// still dropped when the config disables it.
		Primitives *exitguard.Primitives
		// Observer replaces the metrics recorder built from the config.
		Observer runtime.Observer
	}

	// InvalidOptionsError is returned when required Options are missing.
	InvalidOptionsError struct {
		FieldErrors []error
	}
)

// Error implements the error interface.
func (e *InvalidOptionsError) Error() string {
	return fmt.Sprintf("invalid execute options: %v", errors.Join(e.FieldErrors...))
}

// Unwrap returns ErrInvalidOptions for errors.Is() compatibility.
func (e *InvalidOptionsError) Unwrap() error { return ErrInvalidOptions }

// BuildRunnerConfig maps configuration and manifest onto a runtime.Config:
//   - channel and notes go to the configured standard streams
//   - the manifest environment is layered over the configured shell defaults
//   - the working directory is the manifest's
//   - a metrics recorder observes the run when a textfile is configured
func BuildRunnerConfig(opts Options) (runtime.Config, error) {
	var errs []error
	if opts.Config == nil {
		errs = append(errs, errors.New("Config must not be nil"))
	}
	if opts.Manifest == nil {
		errs = append(errs, errors.New("Manifest must not be nil"))
	}
	if len(errs) > 0 {
		return runtime.Config{}, &InvalidOptionsError{FieldErrors: errs}
	}

	cfg, m := opts.Config, opts.Manifest
	stdout, stderr := opts.Stdout, opts.Stderr
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.NewWithOptions(stderr, log.Options{Prefix: "scriptwrap"})
	}

	prims := exitguard.DefaultPrimitives()
	if opts.Primitives != nil {
		prims = *opts.Primitives
	}
	if !cfg.Interceptor.Signals {
		prims.Signals = nil
	}

	observer := opts.Observer
	if observer == nil && cfg.Metrics.Textfile != "" {
		observer = metrics.NewTextfile(cfg.Metrics.Textfile, m.Name, logger.WithPrefix("metrics"))
	}

	return runtime.Config{
		Stdin:      opts.Stdin,
		Stdout:     stdout,
		Stderr:     stderr,
		Channel:    pick(cfg.Channel.Stream, stdout, stderr),
		Notes:      pick(cfg.Notes.Stream, stdout, stderr),
		Dir:        m.WorkDir(),
		Env:        m.EnvConfig(cfg.EnvConfig()),
		Coreutils:  cfg.Shell.Coreutils,
		Primitives: &prims,
		Logger:     logger.WithPrefix("runtime"),
		Observer:   observer,
	}, nil
}

// Run executes the manifest. The error is reserved for runs that could not be
// set up; script failures are reported in the Result.
func Run(ctx context.Context, opts Options) (*runtime.Result, error) {
	rcfg, err := BuildRunnerConfig(opts)
	if err != nil {
		return nil, err
	}
	in, err := opts.Manifest.Inputs()
	if err != nil {
		return nil, err
	}
	return runtime.New(rcfg).Run(ctx, opts.Manifest.RuntimeTemplate(), in), nil
}

func pick(s config.Stream, stdout, stderr io.Writer) io.Writer {
	if s == config.StreamStdout {
		return stdout
	}
	return stderr
}
