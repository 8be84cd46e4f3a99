// SPDX-License-Identifier: MPL-2.0

package exitguard

import (
	"errors"
	"fmt"
	"os"

	"github.com/invowk/scriptwrap/pkg/types"
)

// Event kinds.
const (
	// NormalReturn means init and body returned without error.
	NormalReturn EventKind = iota
	// ProcessExit means the body called the wrapped process-exit primitive.
	ProcessExit
	// ThreadExit means the body's thread of control vanished, typically
	// through the wrapped thread-exit primitive.
	ThreadExit
	// UncaughtTermination means the body ended with the generic exit request
	// or was interrupted by a termination signal.
	UncaughtTermination
	// Failure means init or body returned an ordinary error or panicked.
	Failure
)

// ErrExitRequested is the sentinel error wrapped by ExitRequest.
var ErrExitRequested = errors.New("exit requested")

type (
	// EventKind tags the way a guarded run ended.
	EventKind uint8

	// Event describes how a guarded run ended. Exactly one Event is recorded
	// per Interceptor.
	Event struct {
		Kind EventKind
		// Code is the exit code requested by the body, or 128+signo for signals.
		Code types.ExitCode
		// Signal is set when a termination signal caused the event.
		Signal os.Signal
		// Err is the init or body failure for Failure events.
		Err error
		// CleanupErr is the error returned by the cleanup phase, if any.
		CleanupErr error
	}

	// ExitRequest is the generic "exit requested" condition. A body raises it
	// by returning it as an error or by panicking with it; RunGuarded then
	// notes the interception, runs cleanup and returns normally.
	ExitRequest struct {
		Code types.ExitCode
	}

	// PanicError carries a panic recovered from a guarded phase.
	PanicError struct {
		Phase string
		Value any
		Stack []byte
	}
)

// RequestExit returns the generic exit request for code.
func RequestExit(code types.ExitCode) error {
	return &ExitRequest{Code: code}
}

// Error implements the error interface.
func (e *ExitRequest) Error() string {
	return fmt.Sprintf("exit requested with code %d", e.Code)
}

// Unwrap returns ErrExitRequested so callers can use errors.Is for programmatic detection.
func (e *ExitRequest) Unwrap() error { return ErrExitRequested }

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("panic in %s phase: %v", e.Phase, e.Value)
}

// Unwrap exposes a panic value that was itself an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// String returns a short label for the kind.
func (k EventKind) String() string {
	switch k {
	case NormalReturn:
		return "normal-return"
	case ProcessExit:
		return "process-exit"
	case ThreadExit:
		return "thread-exit"
	case UncaughtTermination:
		return "uncaught-termination"
	case Failure:
		return "failure"
	default:
		return fmt.Sprintf("EventKind(%d)", uint8(k))
	}
}

// Intercepted reports whether the run ended through an intercepted
// termination rather than by returning or failing.
func (e Event) Intercepted() bool {
	return e.Kind == ProcessExit || e.Kind == ThreadExit || e.Kind == UncaughtTermination
}

// AsExitRequest extracts an ExitRequest from an error or a panic value.
func AsExitRequest(v any) (*ExitRequest, bool) {
	switch x := v.(type) {
	case *ExitRequest:
		return x, x != nil
	case error:
		var req *ExitRequest
		if errors.As(x, &req) {
			return req, true
		}
	}
	return nil, false
}
