// SPDX-License-Identifier: MPL-2.0

package exitguard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"slices"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/charmbracelet/log"

	"github.com/invowk/scriptwrap/pkg/types"
)

type (
	// Primitives are the termination primitives an Interceptor wraps.
	// A nil primitive is treated as unavailable and left unwrapped.
	Primitives struct {
		// ProcessExit terminates the whole process.
		ProcessExit func(code int)
		// ThreadExit terminates the calling goroutine only.
		ThreadExit func()
		// Signals are the termination signals watched during RunGuarded.
		Signals []os.Signal
	}

	// Config holds the Interceptor's collaborators.
	Config struct {
		// Notes receives the interception notes. Defaults to os.Stdout.
		Notes io.Writer
		// Logger receives diagnostics. Defaults to a stderr logger.
		Logger *log.Logger
	}

	// Handler is called once, after cleanup, with the recorded Event.
	Handler func(Event)

	// Interceptor wraps termination primitives so that cleanup runs exactly once.
	Interceptor struct {
		notes  io.Writer
		logger *log.Logger

		// fired is the guard shared by every entry path.
		fired atomic.Bool

		mu            sync.Mutex
		processExit   func(code int)
		threadExit    func()
		signals       []os.Signal
		cleanup       func() error
		handlers      []Handler
		event         Event
		hasEvent      bool
		pendingSignal os.Signal
		done          chan struct{}
	}
)

// DefaultPrimitives returns the real process primitives.
func DefaultPrimitives() Primitives {
	return Primitives{
		ProcessExit: os.Exit,
		ThreadExit:  runtime.Goexit,
		Signals:     []os.Signal{os.Interrupt, syscall.SIGTERM},
	}
}

// New creates an Interceptor with nothing installed.
func New(cfg Config) *Interceptor {
	if cfg.Notes == nil {
		cfg.Notes = os.Stdout
	}
	if cfg.Logger == nil {
		cfg.Logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "exitguard"})
	}
	return &Interceptor{
		notes:  cfg.Notes,
		logger: cfg.Logger,
		done:   make(chan struct{}),
	}
}

// Install records the primitives to wrap. Nil primitives are skipped
// silently, which leaves the corresponding wrapper degraded (see ProcessExit
// and ThreadExit).
func (ic *Interceptor) Install(p Primitives) {
	ic.mu.Lock()
	defer ic.mu.Unlock()

	if p.ProcessExit != nil {
		ic.processExit = p.ProcessExit
	}
	if p.ThreadExit != nil {
		ic.threadExit = p.ThreadExit
	}
	ic.signals = slices.Clone(p.Signals)
	ic.logger.Debug("primitives installed",
		"processExit", p.ProcessExit != nil, "threadExit", p.ThreadExit != nil, "signals", len(p.Signals))
}

// OnTerminate registers a handler run once after cleanup, before the process
// actually terminates. Handlers run in registration order.
func (ic *Interceptor) OnTerminate(h Handler) {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	ic.handlers = append(ic.handlers, h)
}

// Fired reports whether cleanup has been triggered.
func (ic *Interceptor) Fired() bool { return ic.fired.Load() }

// Event returns the recorded event, if any.
func (ic *Interceptor) Event() (Event, bool) {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	return ic.event, ic.hasEvent
}

// Done is closed once cleanup and the OnTerminate handlers have completed.
func (ic *Interceptor) Done() <-chan struct{} { return ic.done }

// ProcessExit is the wrapped process-exit primitive. It notes the call, runs
// cleanup once, and delegates to the original primitive with the same code.
// When no process-exit primitive is installed it degrades to the generic
// exit request by panicking with an ExitRequest. A call made while cleanup is
// still running unwinds the same way without reaching the original.
func (ic *Interceptor) ProcessExit(code types.ExitCode) {
	ic.mu.Lock()
	original := ic.processExit
	ic.mu.Unlock()

	if original == nil {
		ic.logger.Debug("process exit unavailable, raising exit request", "code", code)
		panic(&ExitRequest{Code: code})
	}
	if ic.cleaningUp() {
		// Reached from inside cleanup: the first termination's code stands
		// and the remaining cleanup steps still run.
		ic.logger.Warn("process exit during cleanup ignored", "code", code)
		panic(&ExitRequest{Code: code})
	}

	ic.note(fmt.Sprintf("Exiting from os.Exit(%d)", code))
	ic.record(Event{Kind: ProcessExit, Code: code})
	ic.fire()
	original(int(code))
	// The original returned (a substitute primitive); still leave the caller.
	runtime.Goexit()
}

// ThreadExit is the wrapped thread-exit primitive. It notes the call and
// delegates to the original primitive without running cleanup: cleanup
// concerns process state and stays with the primary path. When no thread-exit
// primitive is installed the call returns after the note.
func (ic *Interceptor) ThreadExit() {
	ic.mu.Lock()
	original := ic.threadExit
	ic.mu.Unlock()

	ic.note("Exiting from thread exit")
	if original == nil {
		ic.logger.Debug("thread exit unavailable, continuing")
		return
	}
	original()
}

// Exit terminates through the original process-exit primitive without
// notes or cleanup. Callers use it once a guarded run has completed.
func (ic *Interceptor) Exit(code types.ExitCode) {
	ic.mu.Lock()
	original := ic.processExit
	ic.mu.Unlock()
	if original != nil {
		original(int(code))
	}
}

// cleaningUp reports whether fire has started but not yet completed.
func (ic *Interceptor) cleaningUp() bool {
	if !ic.fired.Load() {
		return false
	}
	select {
	case <-ic.done:
		return false
	default:
		return true
	}
}

func (ic *Interceptor) setCleanup(fn func() error) {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	ic.cleanup = fn
}

// record stores ev unless an event was already recorded.
func (ic *Interceptor) record(ev Event) {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	if ic.hasEvent {
		return
	}
	ic.event = ev
	ic.hasEvent = true
}

// fire runs cleanup and the handlers once. Later calls return immediately.
// Cleanup runs on its own goroutine so a thread exit or panic inside it
// cannot unwind the caller. An exit request or thread exit inside cleanup
// ends cleanup early but is not a cleanup failure.
func (ic *Interceptor) fire() {
	if !ic.fired.CompareAndSwap(false, true) {
		return
	}
	defer close(ic.done)

	ic.mu.Lock()
	cleanup := ic.cleanup
	handlers := slices.Clone(ic.handlers)
	ic.mu.Unlock()

	var cleanupErr error
	if cleanup != nil {
		cleanupErr = Contain(context.Background(), "cleanup", func(context.Context) error { return cleanup() })
		if req, ok := AsExitRequest(cleanupErr); ok {
			ic.logger.Debug("exit requested during cleanup", "code", req.Code)
			cleanupErr = nil
		}
		if errors.Is(cleanupErr, ErrThreadExited) {
			ic.logger.Debug("cleanup ended its thread of control")
			cleanupErr = nil
		}
		if cleanupErr != nil {
			ic.logger.Error("cleanup failed", "error", cleanupErr)
		}
	}

	ic.mu.Lock()
	ic.event.CleanupErr = cleanupErr
	ev := ic.event
	ic.mu.Unlock()

	for _, h := range handlers {
		h(ev)
	}
}

func (ic *Interceptor) note(text string) {
	if _, err := fmt.Fprintln(ic.notes, text); err != nil {
		ic.logger.Warn("could not write note", "note", text, "error", err)
	}
}
