// SPDX-License-Identifier: MPL-2.0

package session

import (
	"io"
	"os"

	"github.com/invowk/scriptwrap/internal/exitguard"
	"github.com/invowk/scriptwrap/pkg/types"
)

type (
	// Terminator provides the wrapped termination primitives.
	// *exitguard.Interceptor implements it.
	Terminator interface {
		ProcessExit(code types.ExitCode)
		ThreadExit()
	}

	// Inputs are the host-supplied values a Session starts with.
	Inputs struct {
		// Bindings are bound before init, in order.
		Bindings []Binding
		// Data are readable through the Data-Management binding but are
		// never emitted back.
		Data []Entry
	}

	// IO holds the standard streams exposed to script code.
	IO struct {
		Stdin  io.Reader
		Stdout io.Writer
		Stderr io.Writer
	}

	// Session is the explicit context object shared by init, body and cleanup.
	Session struct {
		// Bindings is the Binding Environment.
		Bindings *Bindings
		// Data is the Data-Management Table.
		Data *DataTable
		// IO are the script's streams.
		IO IO
		// Dir is the working directory of the run.
		Dir string

		term Terminator
	}
)

// New builds a Session from inputs. The reserved InsideHost binding is set
// to true after the inputs are applied so it cannot be overridden by them.
func New(in Inputs, stdio IO, dir string, term Terminator) (*Session, error) {
	if stdio.Stdin == nil {
		stdio.Stdin = os.Stdin
	}
	if stdio.Stdout == nil {
		stdio.Stdout = os.Stdout
	}
	if stdio.Stderr == nil {
		stdio.Stderr = os.Stderr
	}

	bindings := NewBindings()
	for _, b := range in.Bindings {
		if err := bindings.Set(b.Name, b.Value); err != nil {
			return nil, err
		}
	}
	if err := bindings.Set(InsideHost, true); err != nil {
		return nil, err
	}

	data := NewDataTable(dir)
	for _, e := range in.Data {
		if err := data.SetInput(e); err != nil {
			return nil, err
		}
	}

	return &Session{Bindings: bindings, Data: data, IO: stdio, Dir: dir, term: term}, nil
}

// Exit terminates the process through the wrapped process-exit primitive.
// Cleanup runs before the process ends. Without a terminator it raises the
// generic exit request instead.
func (s *Session) Exit(code types.ExitCode) {
	if s.term == nil {
		panic(&exitguard.ExitRequest{Code: code})
	}
	s.term.ProcessExit(code)
}

// ThreadExit ends the calling goroutine through the wrapped thread-exit
// primitive. Cleanup is left to the primary path.
func (s *Session) ThreadExit() {
	if s.term == nil {
		return
	}
	s.term.ThreadExit()
}

// RequestExit returns the generic exit request. Fragments return it (or
// panic with it) to end the body; cleanup then runs and the run completes
// normally with code.
func (s *Session) RequestExit(code types.ExitCode) error {
	return exitguard.RequestExit(code)
}
