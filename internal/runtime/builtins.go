// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"cmp"
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strconv"
	"sync"

	"mvdan.cc/sh/v3/interp"

	"github.com/invowk/scriptwrap/internal/exitguard"
	"github.com/invowk/scriptwrap/internal/session"
	"github.com/invowk/scriptwrap/pkg/types"
)

// defaultBuiltins holds the builtins available to every shell fragment.
var defaultBuiltins = newBuiltinRegistry()

type (
	// Builtin describes a shell builtin provided by the wrapper.
	Builtin struct {
		Name  string
		Usage string
		Help  string
		run   func(ctx context.Context, hc interp.HandlerContext, sess *session.Session, args []string) error
	}

	builtinRegistry struct {
		mu       sync.RWMutex
		builtins map[string]Builtin
	}
)

func init() {
	for _, b := range []Builtin{
		{Name: "quit", Usage: "quit [n]", Help: "end the fragment like exit", run: runExitRequest},
		{Name: "raise_exit", Usage: "raise_exit [n]", Help: "raise the generic exit request", run: runExitRequest},
		{Name: "os_exit", Usage: "os_exit n", Help: "terminate the process after cleanup", run: runOSExit},
		{Name: "thread_exit", Usage: "thread_exit", Help: "end the current thread of control", run: runThreadExit},
		{Name: "dm_set", Usage: "dm_set KEY VALUE", Help: "record a literal data entry", run: runDMSet},
		{Name: "dm_file", Usage: "dm_file KEY PATH", Help: "record a file data entry", run: runDMFile},
		{Name: "dm_get", Usage: "dm_get KEY", Help: "print a data entry or host input", run: runDMGet},
	} {
		defaultBuiltins.register(b)
	}
}

// Builtins lists the wrapper's shell builtins sorted by name.
func Builtins() []Builtin {
	return defaultBuiltins.list()
}

func newBuiltinRegistry() *builtinRegistry {
	return &builtinRegistry{builtins: make(map[string]Builtin)}
}

// register panics on duplicates; registration happens at init time.
func (r *builtinRegistry) register(b Builtin) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.builtins[b.Name]; exists {
		panic(fmt.Sprintf("runtime: builtin %q already registered", b.Name))
	}
	r.builtins[b.Name] = b
}

func (r *builtinRegistry) lookup(name string) (Builtin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.builtins[name]
	return b, ok
}

func (r *builtinRegistry) list() []Builtin {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Builtin, 0, len(r.builtins))
	for _, b := range r.builtins {
		out = append(out, b)
	}
	slices.SortFunc(out, func(a, b Builtin) int { return cmp.Compare(a.Name, b.Name) })
	return out
}

// execHandler serves the wrapper builtins and falls back to the next handler
// (external commands) for everything else.
func (e *shellEngine) execHandler(next interp.ExecHandlerFunc) interp.ExecHandlerFunc {
	return func(ctx context.Context, args []string) error {
		if len(args) == 0 {
			return next(ctx, args)
		}
		b, ok := defaultBuiltins.lookup(args[0])
		if !ok {
			return next(ctx, args)
		}
		return b.run(ctx, interp.HandlerCtx(ctx), e.sess, args)
	}
}

// usageError prints usage to the fragment's stderr and yields status 2.
func usageError(hc interp.HandlerContext, args []string, msg string) error {
	b, _ := defaultBuiltins.lookup(args[0])
	fmt.Fprintf(hc.Stderr, "%s: %s\nusage: %s\n", args[0], msg, b.Usage)
	return interp.ExitStatus(2)
}

func parseCode(hc interp.HandlerContext, args []string, required bool) (types.ExitCode, error) {
	if len(args) < 2 {
		if required {
			return 0, usageError(hc, args, "missing exit code")
		}
		return 0, nil
	}
	if len(args) > 2 {
		return 0, usageError(hc, args, "too many arguments")
	}
	n, err := strconv.Atoi(args[1])
	if err != nil {
		return 0, usageError(hc, args, fmt.Sprintf("numeric argument required: %q", args[1]))
	}
	code := types.ExitCode(n)
	if err := code.Validate(); err != nil {
		return 0, usageError(hc, args, err.Error())
	}
	return code, nil
}

func runExitRequest(_ context.Context, hc interp.HandlerContext, _ *session.Session, args []string) error {
	code, err := parseCode(hc, args, false)
	if err != nil {
		return err
	}
	return exitguard.RequestExit(code)
}

func runOSExit(_ context.Context, hc interp.HandlerContext, sess *session.Session, args []string) error {
	code, err := parseCode(hc, args, true)
	if err != nil {
		return err
	}
	sess.Exit(code)
	return nil
}

func runThreadExit(_ context.Context, hc interp.HandlerContext, sess *session.Session, args []string) error {
	if len(args) != 1 {
		return usageError(hc, args, "no arguments expected")
	}
	sess.ThreadExit()
	return nil
}

func runDMSet(_ context.Context, hc interp.HandlerContext, sess *session.Session, args []string) error {
	if len(args) != 3 {
		return usageError(hc, args, "expected KEY and VALUE")
	}
	if err := sess.Data.Set(args[1], args[2]); err != nil {
		fmt.Fprintf(hc.Stderr, "dm_set: %v\n", err)
		return interp.ExitStatus(1)
	}
	return nil
}

func runDMFile(_ context.Context, hc interp.HandlerContext, sess *session.Session, args []string) error {
	if len(args) != 3 {
		return usageError(hc, args, "expected KEY and PATH")
	}
	path := args[2]
	if !filepath.IsAbs(path) && hc.Dir != "" {
		path = filepath.Join(hc.Dir, path)
	}
	if err := sess.Data.SetFile(args[1], path); err != nil {
		fmt.Fprintf(hc.Stderr, "dm_file: %v\n", err)
		return interp.ExitStatus(1)
	}
	return nil
}

func runDMGet(_ context.Context, hc interp.HandlerContext, sess *session.Session, args []string) error {
	if len(args) != 2 {
		return usageError(hc, args, "expected KEY")
	}
	entry, ok := sess.Data.Get(args[1])
	if !ok {
		return interp.ExitStatus(1)
	}
	fmt.Fprintln(hc.Stdout, entry.Value)
	return nil
}
