// SPDX-License-Identifier: MPL-2.0

package host

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"github.com/charmbracelet/log"

	"github.com/invowk/scriptwrap/internal/channel"
	"github.com/invowk/scriptwrap/internal/issue"
	"github.com/invowk/scriptwrap/internal/manifest"
	"github.com/invowk/scriptwrap/pkg/types"
)

// waitDelay bounds how long the child's pipes may outlive a canceled run.
const waitDelay = 5 * time.Second

type (
	// Config configures an Executor.
	Config struct {
		// Binary is the scriptwrap executable. Defaults to os.Executable().
		Binary string
		// Args are inserted before the exec subcommand, e.g. --config.
		Args []string
		// Env is appended to the inherited environment of the child.
		Env []string
		// Stdin, Stdout and Stderr are the caller's streams. Stderr only
		// receives the non-record lines of the child's stderr.
		Stdin  io.Reader
		Stdout io.Writer
		Stderr io.Writer
		// KeepWorkdir leaves the temporary work directory in place.
		KeepWorkdir bool
		// Logger receives diagnostics.
		Logger *log.Logger
	}

	// Executor launches wrapped runs.
	Executor struct {
		cfg    Config
		logger *log.Logger
	}

	// Result is the outcome of a hosted run.
	Result struct {
		channel.Collected
		// ExitCode is the child's exit code.
		ExitCode types.ExitCode
		// Workdir is the temporary work directory. It only exists after Run
		// when KeepWorkdir was set.
		Workdir string
		// Err joins incomplete-array errors from reassembly; the collected
		// records are valid either way.
		Err error
	}
)

// New creates an Executor.
func New(cfg Config) *Executor {
	if cfg.Stdout == nil {
		cfg.Stdout = os.Stdout
	}
	if cfg.Stderr == nil {
		cfg.Stderr = os.Stderr
	}
	if cfg.Logger == nil {
		cfg.Logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "host"})
	}
	return &Executor{cfg: cfg, logger: cfg.Logger}
}

// Run executes m in a child process and waits for it. A non-zero exit code is
// not an error; the error is reserved for runs that could not be launched or
// whose output could not be read.
func (e *Executor) Run(ctx context.Context, m *manifest.Manifest) (*Result, error) {
	binary, err := e.binary()
	if err != nil {
		return nil, launchError("locate scriptwrap binary", "", err)
	}

	workdir, err := os.MkdirTemp("", "scriptwrap-")
	if err != nil {
		return nil, launchError("create work directory", "", err)
	}
	res := &Result{Workdir: workdir}
	defer e.cleanup(workdir)

	path := filepath.Join(workdir, manifest.FileName)
	if err := m.Resolved().WriteFile(path); err != nil {
		return nil, launchError("write manifest", path, err)
	}

	args := append(append([]string{}, e.cfg.Args...), "exec", path)
	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Dir = workdir
	cmd.Env = append(os.Environ(), e.cfg.Env...)
	// The child's config must not move the channel away from stderr.
	cmd.Env = append(cmd.Env, "SCRIPTWRAP_CHANNEL_STREAM=stderr", "SCRIPTWRAP_NOTES_STREAM=stdout")
	cmd.Stdin = e.cfg.Stdin
	cmd.Stdout = e.cfg.Stdout
	cmd.WaitDelay = waitDelay

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, launchError("connect to child stderr", binary, err)
	}

	e.logger.Debug("starting wrapper", "binary", binary, "manifest", path)
	if err := cmd.Start(); err != nil {
		return nil, launchError("start wrapper", binary, err)
	}

	demux := channel.NewDemux(e.cfg.Stderr, e.logger.WithPrefix("channel"))
	consumeErr := demux.Consume(stderr)
	waitErr := cmd.Wait()

	res.Collected, res.Err = demux.Close()
	if consumeErr != nil {
		return res, fmt.Errorf("reading wrapper output: %w", consumeErr)
	}

	code, err := exitCode(waitErr)
	if err != nil {
		return res, launchError("run wrapper", binary, err)
	}
	res.ExitCode = code
	e.logger.Debug("wrapper finished", "code", code, "scalars", len(res.Scalars), "arrays", len(res.Arrays))
	return res, nil
}

func (e *Executor) binary() (string, error) {
	if e.cfg.Binary != "" {
		return e.cfg.Binary, nil
	}
	return os.Executable()
}

func (e *Executor) cleanup(workdir string) {
	if e.cfg.KeepWorkdir {
		e.logger.Info("keeping work directory", "path", workdir)
		return
	}
	if err := os.RemoveAll(workdir); err != nil {
		e.logger.Warn("failed to remove work directory", "path", workdir, "error", err)
	}
}

// exitCode maps the error of cmd.Wait to the child's exit code. A child
// killed by a signal reports the shell convention 128+signal.
func exitCode(err error) (types.ExitCode, error) {
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return 1, err
	}
	if code := exitErr.ExitCode(); code >= 0 {
		c := types.ExitCode(code)
		if verr := c.Validate(); verr != nil {
			return 1, verr
		}
		return c, nil
	}
	return signalCode(exitErr), nil
}

func signalCode(exitErr *exec.ExitError) types.ExitCode {
	if ws, ok := exitErr.Sys().(interface{ Signal() syscall.Signal }); ok {
		return types.SignalExitCode(ws.Signal())
	}
	return 1
}

func launchError(op, resource string, err error) error {
	return issue.NewErrorContext().
		WithOperation(op).
		WithResource(resource).
		WithSuggestion("Check that the scriptwrap binary is installed and executable").
		WithSuggestion("Re-run with --verbose to see the wrapper's diagnostics").
		WithIssue(issue.WrapperLaunchFailedID).
		Wrap(err).
		BuildError()
}
