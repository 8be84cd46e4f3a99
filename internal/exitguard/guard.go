// SPDX-License-Identifier: MPL-2.0

package exitguard

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/invowk/scriptwrap/pkg/types"
)

// ErrThreadExited reports a contained call whose goroutine ended through the
// thread-exit primitive.
var ErrThreadExited = errors.New("thread of control exited")

type (
	// Phase is one step of a guarded run.
	Phase func(ctx context.Context) error

	// outcome is how a phase goroutine ended.
	outcome struct {
		phase    string
		err      error
		panicked bool
		panicVal any
		stack    []byte
		goexit   bool
	}
)

// RunGuarded runs init, body and cleanup in sequence and returns the recorded
// Event. Nil phases are skipped.
//
// Each phase runs on its own goroutine, so a thread exit ends only that phase
// and a panic is contained. If init or body ends through an exit request or a
// thread exit, the note "Exiting from termination-signal" is written; a
// termination signal yields "Exiting from signal <name>". In every case
// cleanup runs exactly once, unless the wrapped ProcessExit already ran it,
// and RunGuarded returns instead of re-raising. Cleanup is not cancelled by
// the first termination signal.
func (ic *Interceptor) RunGuarded(ctx context.Context, init, body, cleanup Phase) Event {
	cleanupCtx := context.WithoutCancel(ctx)
	ic.setCleanup(func() error {
		if cleanup == nil {
			return nil
		}
		return cleanup(cleanupCtx)
	})

	runCtx, stop := ic.watchSignals(ctx)
	defer stop()

	ev := Event{Kind: NormalReturn}
	phases := []struct {
		name string
		fn   Phase
	}{{"init", init}, {"body", body}}

	for _, p := range phases {
		if p.fn == nil {
			continue
		}
		out := call(runCtx, p.name, p.fn)
		if ic.Fired() {
			// The process-exit path already ran cleanup.
			recorded, _ := ic.Event()
			return recorded
		}
		ev = ic.classify(out)
		if ev.Kind != NormalReturn {
			break
		}
	}
	if sig := ic.caughtSignal(); sig != nil && ev.Kind != ThreadExit {
		ev = Event{Kind: UncaughtTermination, Code: types.SignalExitCode(sig), Signal: sig}
	}

	switch {
	case ev.Signal != nil:
		ic.note("Exiting from signal " + ev.Signal.String())
	case ev.Intercepted():
		ic.note("Exiting from termination-signal")
	case ev.Kind == Failure:
		ic.logger.Debug("guarded phase failed", "error", ev.Err)
	}

	ic.record(ev)
	ic.fire()
	recorded, _ := ic.Event()
	return recorded
}

func (ic *Interceptor) classify(out outcome) Event {
	switch {
	case out.goexit:
		return Event{Kind: ThreadExit}
	case out.panicked:
		if req, ok := AsExitRequest(out.panicVal); ok {
			return Event{Kind: UncaughtTermination, Code: req.Code}
		}
		return Event{Kind: Failure, Code: 1, Err: out.failure()}
	case out.err != nil:
		if req, ok := AsExitRequest(out.err); ok {
			return Event{Kind: UncaughtTermination, Code: req.Code}
		}
		code := types.ExitCode(1)
		var coded interface{ ExitCode() int }
		if errors.As(out.err, &coded) {
			code = types.ExitCode(coded.ExitCode())
		}
		return Event{Kind: Failure, Code: code, Err: fmt.Errorf("%s phase: %w", out.phase, out.err)}
	default:
		return Event{Kind: NormalReturn}
	}
}

// Contain runs fn on its own goroutine and converts every way it can end into
// an error: a thread exit yields ErrThreadExited, an exit-request panic yields
// the *ExitRequest and any other panic a *PanicError.
func Contain(ctx context.Context, phase string, fn Phase) error {
	out := call(ctx, phase, fn)
	if out.panicked {
		if req, ok := AsExitRequest(out.panicVal); ok {
			return req
		}
	}
	return out.failure()
}

// call runs fn on a fresh goroutine and reports how it ended.
func call(ctx context.Context, phase string, fn Phase) outcome {
	out := outcome{phase: phase}
	done := make(chan struct{})
	go func() {
		returned := false
		defer func() {
			if !returned {
				if r := recover(); r != nil {
					out.panicked = true
					out.panicVal = r
					out.stack = debug.Stack()
				} else {
					out.goexit = true
				}
			}
			close(done)
		}()
		out.err = fn(ctx)
		returned = true
	}()
	<-done
	return out
}

// failure converts a non-normal outcome into an error.
func (o outcome) failure() error {
	switch {
	case o.panicked:
		return &PanicError{Phase: o.phase, Value: o.panicVal, Stack: o.stack}
	case o.goexit:
		return fmt.Errorf("%s phase: %w", o.phase, ErrThreadExited)
	default:
		return o.err
	}
}
