// SPDX-License-Identifier: MPL-2.0

package coreutils

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"mvdan.cc/sh/v3/interp"
)

// Default holds the commands registered at init time.
var Default = NewRegistry()

type (
	// Command is one utility. args[0] is the command name.
	Command struct {
		Name  string
		Usage string
		Run   func(ctx context.Context, hc interp.HandlerContext, args []string) error
	}

	// Registry maps command names to Commands. It is safe for concurrent use.
	Registry struct {
		mu       sync.RWMutex
		commands map[string]Command
	}
)

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{commands: make(map[string]Command)}
}

// Register adds cmd. It panics on an empty or duplicate name.
func (r *Registry) Register(cmd Command) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cmd.Name == "" {
		panic("coreutils: cannot register a command without a name")
	}
	if _, exists := r.commands[cmd.Name]; exists {
		panic(fmt.Sprintf("coreutils: command %q already registered", cmd.Name))
	}
	r.commands[cmd.Name] = cmd
}

// Lookup returns the command registered as name.
func (r *Registry) Lookup(name string) (Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, ok := r.commands[name]
	return cmd, ok
}

// Commands lists the registered commands sorted by name.
func (r *Registry) Commands() []Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Command, 0, len(r.commands))
	for _, c := range r.commands {
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b Command) int { return cmp.Compare(a.Name, b.Name) })
	return out
}

// ExecHandler is an interp exec middleware serving the registered commands
// and passing everything else to next.
func (r *Registry) ExecHandler(next interp.ExecHandlerFunc) interp.ExecHandlerFunc {
	return func(ctx context.Context, args []string) error {
		if len(args) == 0 {
			return next(ctx, args)
		}
		cmd, ok := r.Lookup(args[0])
		if !ok {
			return next(ctx, args)
		}
		return cmd.Run(ctx, interp.HandlerCtx(ctx), args)
	}
}

// fail reports err on the command's stderr and yields status 1. Errors that
// already carry a shell status pass through.
func fail(hc interp.HandlerContext, name string, err error) error {
	var status interp.ExitStatus
	if errors.As(err, &status) {
		return err
	}
	fmt.Fprintf(hc.Stderr, "%s: %v\n", name, err)
	return interp.ExitStatus(1)
}

// usage reports a misuse with status 2.
func usage(hc interp.HandlerContext, cmd Command, msg string) error {
	fmt.Fprintf(hc.Stderr, "%s: %s\nusage: %s\n", cmd.Name, msg, cmd.Usage)
	return interp.ExitStatus(2)
}
