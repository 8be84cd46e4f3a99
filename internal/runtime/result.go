// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"errors"

	"github.com/invowk/scriptwrap/internal/exitguard"
	"github.com/invowk/scriptwrap/internal/session"
	"github.com/invowk/scriptwrap/pkg/types"
)

// Result is the outcome of a wrapped run.
type Result struct {
	// ExitCode is the code the process should end with.
	ExitCode types.ExitCode
	// Event records how the run ended.
	Event exitguard.Event
	// Error joins setup, init/body and cleanup failures.
	Error error
	// Records is the number of channel records written after cleanup.
	Records int
	// Bindings is the final Binding Environment.
	Bindings []session.Binding
}

// NewErrorResult creates a Result for a run that could not start.
func NewErrorResult(code types.ExitCode, err error) *Result {
	return &Result{ExitCode: code, Event: exitguard.Event{Kind: exitguard.Failure, Code: code, Err: err}, Error: err}
}

// newEventResult maps a recorded event to a Result. Intercepted terminations
// forward the requested code; thread exit ends the run successfully.
func newEventResult(ev exitguard.Event) *Result {
	res := &Result{Event: ev, Error: errors.Join(ev.Err, ev.CleanupErr)}
	switch ev.Kind {
	case exitguard.ProcessExit, exitguard.UncaughtTermination, exitguard.Failure:
		res.ExitCode = ev.Code
	default:
		res.ExitCode = 0
	}
	if res.ExitCode == 0 && ev.CleanupErr != nil {
		res.ExitCode = 1
	}
	return res
}

// Success reports a zero exit code and no error.
func (r *Result) Success() bool {
	return r.ExitCode.IsSuccess() && r.Error == nil
}

// Binding returns the final value of name.
func (r *Result) Binding(name string) (any, bool) {
	for _, b := range r.Bindings {
		if b.Name == name {
			return b.Value, true
		}
	}
	return nil, false
}
