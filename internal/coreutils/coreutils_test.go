// SPDX-License-Identifier: MPL-2.0

package coreutils

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mvdan.cc/sh/v3/interp"
)

type invocation struct {
	stdout bytes.Buffer
	stderr bytes.Buffer
	err    error
}

// invoke runs the named command from the Default registry in dir.
func invoke(t *testing.T, dir, stdin string, args ...string) *invocation {
	t.Helper()
	cmd, ok := Default.Lookup(args[0])
	if !ok {
		t.Fatalf("command %q not registered", args[0])
	}
	inv := &invocation{}
	hc := interp.HandlerContext{Dir: dir, Stdin: strings.NewReader(stdin), Stdout: &inv.stdout, Stderr: &inv.stderr}
	inv.err = cmd.Run(context.Background(), hc, args)
	return inv
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestCommands(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "one\ntwo\nthree\n")
	writeFile(t, dir, "b.txt", "four five\n")

	tests := []struct {
		name  string
		stdin string
		args  []string
		want  string
	}{
		{"cat stdin", "hello\n", []string{"cat"}, "hello\n"},
		{"cat files", "", []string{"cat", "a.txt", "b.txt"}, "one\ntwo\nthree\nfour five\n"},
		{"cat dash", "in\n", []string{"cat", "b.txt", "-"}, "four five\nin\n"},
		{"head default", "", []string{"head", "a.txt"}, "one\ntwo\nthree\n"},
		{"head n", "1\n2\n3\n", []string{"head", "-n", "2"}, "1\n2\n"},
		{"head several files", "", []string{"head", "-n", "1", "a.txt", "b.txt"}, "==> a.txt <==\none\n==> b.txt <==\nfour five\n"},
		{"tail n", "", []string{"tail", "-n", "2", "a.txt"}, "two\nthree\n"},
		{"tail zero", "1\n2\n", []string{"tail", "-n", "0"}, ""},
		{"tail more than input", "1\n2\n", []string{"tail", "-n", "5"}, "1\n2\n"},
		{"wc stdin", "a b\nc\n", []string{"wc"}, "2 3 6\n"},
		{"wc lines", "a\nb\nc\n", []string{"wc", "-l"}, "3\n"},
		{"wc files", "", []string{"wc", "-w", "a.txt", "b.txt"}, "3 a.txt\n2 b.txt\n5 total\n"},
		{"basename", "", []string{"basename", "/tmp/dir/file.tar.gz"}, "file.tar.gz\n"},
		{"basename suffix", "", []string{"basename", "/tmp/dir/file.txt", ".txt"}, "file\n"},
		{"basename suffix equals name", "", []string{"basename", ".txt", ".txt"}, ".txt\n"},
		{"dirname", "", []string{"dirname", "/tmp/dir/file", "rel"}, "/tmp/dir\n.\n"},
		{"seq last", "", []string{"seq", "3"}, "1\n2\n3\n"},
		{"seq range", "", []string{"seq", "4", "6"}, "4\n5\n6\n"},
		{"seq descending", "", []string{"seq", "5", "-2", "1"}, "5\n3\n1\n"},
		{"seq empty", "", []string{"seq", "3", "1"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			inv := invoke(t, dir, tt.stdin, tt.args...)
			if inv.err != nil {
				t.Fatalf("%v error = %v (stderr %q)", tt.args, inv.err, inv.stderr.String())
			}
			if got := inv.stdout.String(); got != tt.want {
				t.Errorf("%v stdout = %q, want %q", tt.args, got, tt.want)
			}
		})
	}
}

func TestCommands_Failures(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tests := []struct {
		name       string
		args       []string
		wantStatus interp.ExitStatus
		wantStderr string
	}{
		{"missing file", []string{"cat", "nope.txt"}, 1, "cat: open "},
		{"unknown flag", []string{"head", "-q"}, 2, "usage: head [-n N] [FILE]..."},
		{"negative tail", []string{"tail", "-n", "-1"}, 2, "invalid line count"},
		{"basename without operand", []string{"basename"}, 2, "usage: basename"},
		{"dirname without operand", []string{"dirname"}, 2, "missing operand"},
		{"seq not a number", []string{"seq", "x"}, 2, `invalid integer "x"`},
		{"seq zero increment", []string{"seq", "1", "0", "3"}, 2, "must not be zero"},
		{"tee into missing dir", []string{"tee", "missing/out.txt"}, 1, "tee: open "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			inv := invoke(t, dir, "", tt.args...)
			var status interp.ExitStatus
			if !errors.As(inv.err, &status) || status != tt.wantStatus {
				t.Errorf("%v error = %v, want exit status %d", tt.args, inv.err, tt.wantStatus)
			}
			if !strings.Contains(inv.stderr.String(), tt.wantStderr) {
				t.Errorf("%v stderr = %q, want it to contain %q", tt.args, inv.stderr.String(), tt.wantStderr)
			}
		})
	}
}

func TestTee(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "log.txt", "old\n")

	inv := invoke(t, dir, "new\n", "tee", "out.txt")
	if inv.err != nil || inv.stdout.String() != "new\n" {
		t.Fatalf("tee = %q, %v", inv.stdout.String(), inv.err)
	}
	if data, _ := os.ReadFile(filepath.Join(dir, "out.txt")); string(data) != "new\n" {
		t.Errorf("out.txt = %q, want new", data)
	}

	if inv := invoke(t, dir, "new\n", "tee", "-a", "log.txt"); inv.err != nil {
		t.Fatalf("tee -a error = %v", inv.err)
	}
	if data, _ := os.ReadFile(filepath.Join(dir, "log.txt")); string(data) != "old\nnew\n" {
		t.Errorf("log.txt = %q, want appended content", data)
	}
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.Register(Command{Name: "b"})
	r.Register(Command{Name: "a"})

	cmds := r.Commands()
	if len(cmds) != 2 || cmds[0].Name != "a" || cmds[1].Name != "b" {
		t.Errorf("Commands() = %v, want a then b", cmds)
	}
	if _, ok := r.Lookup("c"); ok {
		t.Error("Lookup(c) found an unregistered command")
	}

	for _, cmd := range []Command{{Name: "a"}, {}} {
		func() {
			defer func() {
				if recover() == nil {
					t.Errorf("Register(%q) did not panic", cmd.Name)
				}
			}()
			r.Register(cmd)
		}()
	}
}

func TestDefault_Commands(t *testing.T) {
	t.Parallel()

	var names []string
	for _, c := range Default.Commands() {
		names = append(names, c.Name)
		if c.Usage == "" || c.Run == nil {
			t.Errorf("command %q lacks usage or implementation", c.Name)
		}
	}
	want := "basename,cat,dirname,head,seq,tail,tee,wc"
	if got := strings.Join(names, ","); got != want {
		t.Errorf("Default commands = %s, want %s", got, want)
	}
}

func TestExecHandler_FallsThrough(t *testing.T) {
	t.Parallel()

	var nextArgs []string
	next := func(_ context.Context, args []string) error {
		nextArgs = args
		return nil
	}
	h := Default.ExecHandler(next)
	if err := h(context.Background(), []string{"git", "status"}); err != nil {
		t.Fatalf("handler error = %v", err)
	}
	if strings.Join(nextArgs, " ") != "git status" {
		t.Errorf("next saw %v, want git status", nextArgs)
	}
}
