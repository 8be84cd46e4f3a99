// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"mvdan.cc/sh/v3/syntax"

	"github.com/invowk/scriptwrap/internal/session"
)

// Fragment kinds.
const (
	FragmentNoop FragmentKind = iota
	FragmentShell
	FragmentFunc
)

type (
	// FragmentKind identifies how a fragment executes.
	FragmentKind uint8

	// Fragment is one executable slot of a Template.
	Fragment interface {
		Kind() FragmentKind
		execute(ctx context.Context, x *execution) error
	}

	// ShellFragment is shell source run by the embedded interpreter.
	ShellFragment struct {
		// Name labels the fragment in errors and positions.
		Name string
		// Source is the shell program.
		Source string
	}

	// FuncFragment is Go code run against the Session.
	FuncFragment func(ctx context.Context, s *session.Session) error

	// Noop does nothing.
	Noop struct{}

	// Template holds the three slots of a wrapped run and the values the
	// host wants back after cleanup.
	Template struct {
		Init    Fragment
		Main    Fragment
		Cleanup Fragment
		// Outputs are binding names emitted as records after cleanup.
		// Array values are emitted as array records.
		Outputs []string
		// OutputArrays are binding names that must hold arrays.
		OutputArrays []string
	}

	// SyntaxError reports a shell fragment that does not parse.
	SyntaxError struct {
		Fragment string
		Err      error
	}
)

// Error implements the error interface.
func (e *SyntaxError) Error() string {
	return fmt.Sprintf("fragment %q: syntax error: %v", e.Fragment, e.Err)
}

// Unwrap returns the parser error.
func (e *SyntaxError) Unwrap() error { return e.Err }

// String returns the kind label.
func (k FragmentKind) String() string {
	switch k {
	case FragmentShell:
		return "shell"
	case FragmentFunc:
		return "func"
	default:
		return "noop"
	}
}

// Shell returns a ShellFragment, or Noop when source is blank.
func Shell(name, source string) Fragment {
	if strings.TrimSpace(source) == "" {
		return Noop{}
	}
	return ShellFragment{Name: name, Source: source}
}

// Kind implements Fragment.
func (ShellFragment) Kind() FragmentKind { return FragmentShell }

// Kind implements Fragment.
func (FuncFragment) Kind() FragmentKind { return FragmentFunc }

// Kind implements Fragment.
func (Noop) Kind() FragmentKind { return FragmentNoop }

// Parse parses the fragment source.
func (f ShellFragment) Parse() (*syntax.File, error) {
	prog, err := syntax.NewParser().Parse(strings.NewReader(f.Source), f.Name)
	if err != nil {
		return nil, &SyntaxError{Fragment: f.Name, Err: err}
	}
	return prog, nil
}

func (f ShellFragment) execute(ctx context.Context, x *execution) error {
	prog, err := f.Parse()
	if err != nil {
		return err
	}
	sh, err := x.shellEngine()
	if err != nil {
		return err
	}
	return sh.run(ctx, f.Name, prog)
}

func (f FuncFragment) execute(ctx context.Context, x *execution) error {
	if f == nil {
		return nil
	}
	return f(ctx, x.sess)
}

func (Noop) execute(context.Context, *execution) error { return nil }

// WithDefaults returns the template with absent slots replaced by Noop.
func (t Template) WithDefaults() Template {
	for _, slot := range []*Fragment{&t.Init, &t.Main, &t.Cleanup} {
		if *slot == nil {
			*slot = Noop{}
		}
	}
	return t
}

// Validate parses every shell fragment so syntax errors surface before
// anything runs.
func (t Template) Validate() error {
	var errs []error
	for _, f := range []Fragment{t.Init, t.Main, t.Cleanup} {
		if sf, ok := f.(ShellFragment); ok {
			if _, err := sf.Parse(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// UsesShell reports whether any slot is a shell fragment.
func (t Template) UsesShell() bool {
	for _, f := range []Fragment{t.Init, t.Main, t.Cleanup} {
		if f != nil && f.Kind() == FragmentShell {
			return true
		}
	}
	return false
}
