// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strings"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"

	"github.com/invowk/scriptwrap/internal/coreutils"
	"github.com/invowk/scriptwrap/internal/exitguard"
	"github.com/invowk/scriptwrap/internal/marshal"
	"github.com/invowk/scriptwrap/internal/session"
	"github.com/invowk/scriptwrap/pkg/types"
)

var shellName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// shellManaged are variables the interpreter maintains itself.
var shellManaged = []string{"HOME", "PWD", "OLDPWD", "IFS", "OPTIND", "UID", "EUID", "GID", "PPID", "RANDOM", "SECONDS"}

type (
	// shellEngine owns the interpreter shared by all shell fragments of a run.
	shellEngine struct {
		runner *interp.Runner
		sess   *session.Session
		logger *log.Logger
		// inherited names come from the process environment and are only
		// copied back into bindings when already bound.
		inherited map[string]struct{}
		// synced is the canonical form of each binding as last seen by the
		// shell, keyed by name.
		synced map[string]string
		busy   atomic.Bool
	}

	// StatusError is a shell fragment that finished with a non-zero status.
	StatusError struct {
		Fragment string
		Status   int
	}
)

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("fragment %q exited with status %d", e.Fragment, e.Status)
}

// ExitCode returns the shell status.
func (e *StatusError) ExitCode() int { return e.Status }

func newShellEngine(sess *session.Session, env map[string]string, utils bool, logger *log.Logger) (*shellEngine, error) {
	e := &shellEngine{
		sess:      sess,
		logger:    logger,
		inherited: make(map[string]struct{}, len(env)),
		synced:    make(map[string]string),
	}
	for name := range env {
		e.inherited[name] = struct{}{}
	}

	opts := []interp.RunnerOption{
		interp.Env(expand.ListEnviron(envList(env)...)),
		interp.StdIO(sess.IO.Stdin, sess.IO.Stdout, sess.IO.Stderr),
	}
	if utils {
		opts = append(opts, interp.ExecHandlers(e.execHandler, coreutils.Default.ExecHandler))
	} else {
		opts = append(opts, interp.ExecHandlers(e.execHandler))
	}
	if sess.Dir != "" {
		opts = append(opts, interp.Dir(sess.Dir))
	}
	runner, err := interp.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create interpreter: %w", err)
	}
	e.runner = runner
	return e, nil
}

// run executes prog with bindings mirrored in and out. When the interpreter
// is already busy (cleanup triggered from inside a builtin) a subshell
// sharing the current state is used instead.
func (e *shellEngine) run(ctx context.Context, name string, prog *syntax.File) error {
	r := e.runner
	if e.busy.CompareAndSwap(false, true) {
		defer e.busy.Store(false)
	} else {
		e.logger.Debug("interpreter busy, running fragment in a subshell", "fragment", name)
		r = e.runner.Subshell()
	}

	if err := e.push(ctx, r); err != nil {
		return err
	}
	err := r.Run(ctx, prog)
	exited := r.Exited()
	e.pull(r)
	return translate(name, err, exited)
}

// translate maps interpreter results onto the exitguard vocabulary.
func translate(name string, err error, exited bool) error {
	var req *exitguard.ExitRequest
	var status interp.ExitStatus
	switch {
	case errors.As(err, &req):
		return req
	case exited:
		code := types.ExitCode(0)
		if errors.As(err, &status) {
			code = types.ExitCode(status)
		}
		return exitguard.RequestExit(code)
	case err == nil:
		return nil
	case errors.As(err, &status):
		return &StatusError{Fragment: name, Status: int(status)}
	default:
		return fmt.Errorf("fragment %q: %w", name, err)
	}
}

// push assigns every binding whose value changed since the shell last saw it.
func (e *shellEngine) push(ctx context.Context, r *interp.Runner) error {
	var script strings.Builder
	current := make(map[string]struct{})

	for _, b := range e.sess.Bindings.All() {
		if !shellName.MatchString(b.Name) {
			continue
		}
		canon, ok := canonical(b.Value)
		if !ok {
			continue
		}
		current[b.Name] = struct{}{}
		if e.synced[b.Name] == canon {
			continue
		}
		if vr, ok := r.Vars[b.Name]; ok && vr.ReadOnly {
			e.logger.Debug("binding shadows a read-only shell variable", "name", b.Name)
			continue
		}
		assign, err := assignment(b.Name, b.Value)
		if err != nil {
			return err
		}
		script.WriteString(assign)
		script.WriteByte('\n')
		e.synced[b.Name] = canon
	}
	for _, name := range slices.Sorted(maps.Keys(e.synced)) {
		if _, ok := current[name]; !ok {
			script.WriteString("unset " + name + "\n")
			delete(e.synced, name)
		}
	}
	if script.Len() == 0 {
		return nil
	}

	prog, err := syntax.NewParser().Parse(strings.NewReader(script.String()), "bindings")
	if err != nil {
		return fmt.Errorf("failed to mirror bindings: %w", err)
	}
	if err := r.Run(ctx, prog); err != nil {
		return fmt.Errorf("failed to mirror bindings: %w", err)
	}
	return nil
}

// pull copies shell variables back into the bindings. Values whose text is
// unchanged keep their original Go type.
func (e *shellEngine) pull(r *interp.Runner) {
	for _, name := range slices.Sorted(maps.Keys(r.Vars)) {
		vr := r.Vars[name]
		current, bound := e.sess.Bindings.Get(name)
		if !bound && !e.ownedByScript(name, vr) {
			continue
		}
		if !vr.IsSet() {
			if bound {
				e.sess.Bindings.Delete(name)
				delete(e.synced, name)
			}
			continue
		}
		value, ok := fromShell(vr)
		if !ok {
			continue
		}
		canon, _ := canonical(value)
		if bound {
			if old, ok := canonical(current); ok && old == canon {
				e.synced[name] = canon
				continue
			}
		}
		if err := e.sess.Bindings.Set(name, value); err == nil {
			e.synced[name] = canon
		}
	}
}

// ownedByScript reports whether an unbound shell variable was created by
// script code rather than inherited or maintained by the interpreter.
func (e *shellEngine) ownedByScript(name string, vr expand.Variable) bool {
	if _, ok := e.inherited[name]; ok {
		return false
	}
	if slices.Contains(shellManaged, name) || vr.Local || vr.ReadOnly {
		return false
	}
	return shellName.MatchString(name)
}

func fromShell(vr expand.Variable) (any, bool) {
	switch vr.Kind {
	case expand.String:
		return vr.Str, true
	case expand.Indexed:
		out := make([]any, len(vr.List))
		for i, s := range vr.List {
			out[i] = s
		}
		return out, true
	default:
		return nil, false
	}
}

// canonical renders a value the way the shell sees it, for change detection.
// Only scalars and one-dimensional arrays are representable.
func canonical(v any) (string, bool) {
	if !marshal.IsArray(v) {
		return "s:" + marshal.Format(v), true
	}
	dims, leaves, err := marshal.Marshal(v)
	if err != nil || len(dims) != 1 {
		return "", false
	}
	parts := make([]string, len(leaves))
	for i, l := range leaves {
		parts[i] = l.Value
	}
	return "a:" + strings.Join(parts, "\x00"), true
}

func assignment(name string, v any) (string, error) {
	if !marshal.IsArray(v) {
		q, err := syntax.Quote(marshal.Format(v), syntax.LangBash)
		if err != nil {
			return "", fmt.Errorf("binding %q: %w", name, err)
		}
		return name + "=" + q, nil
	}
	_, leaves, err := marshal.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("binding %q: %w", name, err)
	}
	words := make([]string, len(leaves))
	for i, l := range leaves {
		q, err := syntax.Quote(l.Value, syntax.LangBash)
		if err != nil {
			return "", fmt.Errorf("binding %q: %w", name, err)
		}
		words[i] = q
	}
	return name + "=(" + strings.Join(words, " ") + ")", nil
}
