// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/invowk/scriptwrap/internal/channel"
	"github.com/invowk/scriptwrap/internal/exitguard"
	"github.com/invowk/scriptwrap/internal/marshal"
	"github.com/invowk/scriptwrap/internal/session"
	"github.com/invowk/scriptwrap/pkg/types"
)

type (
	// Observer is told about every finished run. It is called from the
	// interceptor's termination hook, so it also sees runs that end through
	// the process-exit primitive. code is the run's resolved exit code.
	Observer interface {
		ObserveRun(ev exitguard.Event, code types.ExitCode, elapsed time.Duration, records int)
	}

	// Config configures a Runner.
	Config struct {
		// Stdin, Stdout and Stderr are the script's streams.
		Stdin  io.Reader
		Stdout io.Writer
		Stderr io.Writer
		// Channel receives protocol records. Defaults to Stderr.
		Channel io.Writer
		// Notes receives interception notes. Defaults to Stdout.
		Notes io.Writer
		// Dir is the working directory. Defaults to the process directory.
		Dir string
		// Env configures the embedded shell's environment.
		Env EnvConfig
		// Coreutils serves the pure-Go utilities of package coreutils
		// before falling back to host executables.
		Coreutils bool
		// Primitives are the termination primitives to wrap. Nil means
		// exitguard.DefaultPrimitives.
		Primitives *exitguard.Primitives
		// Logger receives diagnostics.
		Logger *log.Logger
		// Observer, when set, is notified once per run.
		Observer Observer
	}

	// Runner executes Templates.
	Runner struct {
		cfg    Config
		logger *log.Logger
	}

	// execution is the per-run state handed to fragments.
	execution struct {
		sess      *session.Session
		env       EnvConfig
		coreutils bool
		logger    *log.Logger

		shellOnce sync.Once
		shell     *shellEngine
		shellErr  error
	}
)

// New creates a Runner.
func New(cfg Config) *Runner {
	if cfg.Stdin == nil {
		cfg.Stdin = os.Stdin
	}
	if cfg.Stdout == nil {
		cfg.Stdout = os.Stdout
	}
	if cfg.Stderr == nil {
		cfg.Stderr = os.Stderr
	}
	if cfg.Channel == nil {
		cfg.Channel = cfg.Stderr
	}
	if cfg.Notes == nil {
		cfg.Notes = cfg.Stdout
	}
	if cfg.Logger == nil {
		cfg.Logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "runtime"})
	}
	return &Runner{cfg: cfg, logger: cfg.Logger}
}

// Run executes tmpl with the given host inputs. It installs the interceptor,
// runs init, main and cleanup under exitguard.RunGuarded, and after cleanup
// emits the Data-Management entries and declared outputs on the channel.
//
// When the body calls the real process-exit primitive Run does not return:
// cleanup, emission and the Observer all complete before the process ends.
func (r *Runner) Run(ctx context.Context, tmpl Template, in session.Inputs) *Result {
	start := time.Now()
	tmpl = tmpl.WithDefaults()
	if err := tmpl.Validate(); err != nil {
		return NewErrorResult(2, err)
	}

	ic := exitguard.New(exitguard.Config{Notes: r.cfg.Notes, Logger: r.logger.WithPrefix("exitguard")})
	ic.Install(r.primitives())

	sess, err := session.New(in, session.IO{Stdin: r.cfg.Stdin, Stdout: r.cfg.Stdout, Stderr: r.cfg.Stderr}, r.cfg.Dir, ic)
	if err != nil {
		return NewErrorResult(2, err)
	}
	x := &execution{sess: sess, env: r.cfg.Env, coreutils: r.cfg.Coreutils, logger: r.logger}
	enc := channel.NewEncoder(r.cfg.Channel)

	var records int
	if r.cfg.Observer != nil {
		ic.OnTerminate(func(ev exitguard.Event) {
			r.cfg.Observer.ObserveRun(ev, newEventResult(ev).ExitCode, time.Since(start), records)
		})
	}

	ev := ic.RunGuarded(ctx,
		x.phase("init", tmpl.Init),
		x.phase("main", tmpl.Main),
		func(ctx context.Context) error {
			err := exitguard.Contain(ctx, "cleanup", func(ctx context.Context) error {
				return tmpl.Cleanup.execute(ctx, x)
			})
			if req, ok := exitguard.AsExitRequest(err); ok {
				r.logger.Debug("cleanup requested exit, finishing cleanup", "code", req.Code)
				err = nil
			}
			if errors.Is(err, exitguard.ErrThreadExited) {
				r.logger.Debug("cleanup ended its thread of control, finishing cleanup")
				err = nil
			}
			records = r.emit(enc, sess, tmpl)
			return err
		},
	)

	res := newEventResult(ev)
	res.Records = records
	res.Bindings = sess.Bindings.All()
	r.logger.Debug("run finished", "event", ev.Kind, "code", res.ExitCode, "records", records, "elapsed", time.Since(start))
	return res
}

func (r *Runner) primitives() exitguard.Primitives {
	if r.cfg.Primitives != nil {
		return *r.cfg.Primitives
	}
	return exitguard.DefaultPrimitives()
}

// emit writes the channel records due after cleanup. Channel failures are
// logged and skipped so that termination still completes.
func (r *Runner) emit(enc *channel.Encoder, sess *session.Session, tmpl Template) int {
	written := 0
	write := func(what, name string, err error) {
		if err != nil {
			r.logger.Error("failed to emit record", "kind", what, "name", name, "error", err)
			return
		}
		written++
	}

	entries, err := sess.Data.Drain()
	if errors.Is(err, session.ErrDrained) {
		return 0
	}
	for _, e := range entries {
		write("data", e.Key, enc.WriteScalar(e.Key, e.Value))
	}

	for _, name := range tmpl.Outputs {
		v, ok := sess.Bindings.Get(name)
		if !ok {
			r.logger.Debug("output is unset, skipping", "name", name)
			continue
		}
		if marshal.IsArray(v) {
			write("array", name, enc.WriteArray(name, v))
			continue
		}
		write("output", name, enc.WriteScalar(name, marshal.Format(v)))
	}

	for _, name := range tmpl.OutputArrays {
		v, ok := sess.Bindings.Get(name)
		if !ok {
			r.logger.Debug("output array is unset, skipping", "name", name)
			continue
		}
		write("array", name, enc.WriteArray(name, v))
	}
	return written
}

// phase adapts a fragment to an exitguard.Phase.
func (x *execution) phase(name string, f Fragment) exitguard.Phase {
	if f.Kind() == FragmentNoop {
		return nil
	}
	return func(ctx context.Context) error {
		x.logger.Debug("running fragment", "phase", name, "kind", f.Kind())
		return f.execute(ctx, x)
	}
}

// shellEngine creates the interpreter on first use.
func (x *execution) shellEngine() (*shellEngine, error) {
	x.shellOnce.Do(func() {
		env, err := x.env.Build(x.sess.Dir)
		if err != nil {
			x.shellErr = err
			return
		}
		x.shell, x.shellErr = newShellEngine(x.sess, env, x.coreutils, x.logger.WithPrefix("shell"))
	})
	return x.shell, x.shellErr
}
