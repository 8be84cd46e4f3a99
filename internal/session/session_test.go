// SPDX-License-Identifier: MPL-2.0

package session

import (
	"errors"
	"testing"

	"github.com/invowk/scriptwrap/internal/exitguard"
	"github.com/invowk/scriptwrap/pkg/types"
)

type recordingTerminator struct {
	exitCode   types.ExitCode
	exited     bool
	threadExit bool
}

func (r *recordingTerminator) ProcessExit(code types.ExitCode) {
	r.exitCode = code
	r.exited = true
}

func (r *recordingTerminator) ThreadExit() { r.threadExit = true }

func TestNew(t *testing.T) {
	t.Parallel()

	in := Inputs{
		Bindings: []Binding{{"a", int64(1)}, {InsideHost, false}},
		Data:     []Entry{{Key: "input", Kind: EntryLiteral, Value: "v"}},
	}
	s, err := New(in, IO{}, t.TempDir(), nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if !s.Bindings.InsideHost() {
		t.Error("InsideHost() = false, want true regardless of inputs")
	}
	if v, _ := s.Bindings.Get("a"); v != int64(1) {
		t.Errorf("Get(a) = %v, want 1", v)
	}
	if _, ok := s.Data.Get("input"); !ok {
		t.Error("input entry not readable")
	}
	if s.IO.Stdout == nil || s.IO.Stderr == nil || s.IO.Stdin == nil {
		t.Error("IO defaults not applied")
	}

	if _, err := New(Inputs{Bindings: []Binding{{"", 1}}}, IO{}, "", nil); !errors.Is(err, ErrInvalidBindingName) {
		t.Errorf("New(empty name) error = %v, want ErrInvalidBindingName", err)
	}
}

func TestSession_Termination(t *testing.T) {
	t.Parallel()

	term := &recordingTerminator{}
	s, err := New(Inputs{}, IO{}, "", term)
	if err != nil {
		t.Fatal(err)
	}

	s.Exit(4)
	if !term.exited || term.exitCode != 4 {
		t.Errorf("Exit(4) forwarded %v/%d, want true/4", term.exited, term.exitCode)
	}
	s.ThreadExit()
	if !term.threadExit {
		t.Error("ThreadExit() not forwarded")
	}

	var req *exitguard.ExitRequest
	if err := s.RequestExit(2); !errors.As(err, &req) || req.Code != 2 {
		t.Errorf("RequestExit(2) = %v, want *ExitRequest{2}", err)
	}
}

func TestSession_ExitWithoutTerminator(t *testing.T) {
	t.Parallel()

	s, err := New(Inputs{}, IO{}, "", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		req, ok := exitguard.AsExitRequest(recover())
		if !ok || req.Code != 3 {
			t.Errorf("recovered %v, want exit request 3", req)
		}
	}()
	s.Exit(3)
}
