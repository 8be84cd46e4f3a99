// SPDX-License-Identifier: MPL-2.0

package coreutils

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"mvdan.cc/sh/v3/interp"
)

func init() {
	for _, cmd := range []Command{
		{Name: "cat", Usage: "cat [FILE]...", Run: runCat},
		{Name: "head", Usage: "head [-n N] [FILE]...", Run: runHead},
		{Name: "tail", Usage: "tail [-n N] [FILE]...", Run: runTail},
		{Name: "wc", Usage: "wc [-l] [-w] [-c] [FILE]...", Run: runWc},
		{Name: "tee", Usage: "tee [-a] [FILE]...", Run: runTee},
	} {
		Default.Register(cmd)
	}
}

// parseFlags parses args[1:] into fs, reporting unknown flags as misuse.
func parseFlags(hc interp.HandlerContext, fs *flag.FlagSet, args []string) error {
	fs.SetOutput(io.Discard)
	if err := fs.Parse(args[1:]); err != nil {
		cmd, _ := Default.Lookup(args[0])
		return usage(hc, cmd, err.Error())
	}
	return nil
}

func runCat(_ context.Context, hc interp.HandlerContext, args []string) error {
	err := eachInput(hc, args[1:], func(r io.Reader, _ string) error {
		_, err := io.Copy(hc.Stdout, r)
		return err
	})
	if err != nil {
		return fail(hc, args[0], err)
	}
	return nil
}

func runHead(_ context.Context, hc interp.HandlerContext, args []string) error {
	fs := flag.NewFlagSet(args[0], flag.ContinueOnError)
	n := fs.Int("n", 10, "lines")
	if err := parseFlags(hc, fs, args); err != nil {
		return err
	}
	err := eachInput(hc, fs.Args(), func(r io.Reader, name string) error {
		header(hc, name, fs.NArg())
		sc := bufio.NewScanner(r)
		for i := 0; i < *n && sc.Scan(); i++ {
			fmt.Fprintln(hc.Stdout, sc.Text())
		}
		return sc.Err()
	})
	if err != nil {
		return fail(hc, args[0], err)
	}
	return nil
}

func runTail(_ context.Context, hc interp.HandlerContext, args []string) error {
	fs := flag.NewFlagSet(args[0], flag.ContinueOnError)
	n := fs.Int("n", 10, "lines")
	if err := parseFlags(hc, fs, args); err != nil {
		return err
	}
	if *n < 0 {
		cmd, _ := Default.Lookup(args[0])
		return usage(hc, cmd, fmt.Sprintf("invalid line count %d", *n))
	}
	err := eachInput(hc, fs.Args(), func(r io.Reader, name string) error {
		header(hc, name, fs.NArg())
		// ring holds the last n lines seen.
		ring := make([]string, 0, *n)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			if *n == 0 {
				continue
			}
			if len(ring) == *n {
				ring = ring[1:]
			}
			ring = append(ring, sc.Text())
		}
		for _, line := range ring {
			fmt.Fprintln(hc.Stdout, line)
		}
		return sc.Err()
	})
	if err != nil {
		return fail(hc, args[0], err)
	}
	return nil
}

// header prints the "==> name <==" separator used when several files are read.
func header(hc interp.HandlerContext, name string, files int) {
	if files < 2 {
		return
	}
	fmt.Fprintf(hc.Stdout, "==> %s <==\n", name)
}

type wcCounts struct {
	lines, words, bytes int64
}

func (c *wcCounts) add(o wcCounts) {
	c.lines += o.lines
	c.words += o.words
	c.bytes += o.bytes
}

func runWc(_ context.Context, hc interp.HandlerContext, args []string) error {
	fs := flag.NewFlagSet(args[0], flag.ContinueOnError)
	lines := fs.Bool("l", false, "lines")
	words := fs.Bool("w", false, "words")
	bytes := fs.Bool("c", false, "bytes")
	if err := parseFlags(hc, fs, args); err != nil {
		return err
	}
	if !*lines && !*words && !*bytes {
		*lines, *words, *bytes = true, true, true
	}

	report := func(c wcCounts, name string) {
		var parts []string
		if *lines {
			parts = append(parts, fmt.Sprint(c.lines))
		}
		if *words {
			parts = append(parts, fmt.Sprint(c.words))
		}
		if *bytes {
			parts = append(parts, fmt.Sprint(c.bytes))
		}
		if name != "-" {
			parts = append(parts, name)
		}
		fmt.Fprintln(hc.Stdout, strings.Join(parts, " "))
	}

	var total wcCounts
	err := eachInput(hc, fs.Args(), func(r io.Reader, name string) error {
		c, err := count(r)
		if err != nil {
			return err
		}
		total.add(c)
		report(c, name)
		return nil
	})
	if err != nil {
		return fail(hc, args[0], err)
	}
	if fs.NArg() > 1 {
		report(total, "total")
	}
	return nil
}

func count(r io.Reader) (wcCounts, error) {
	var c wcCounts
	br := bufio.NewReader(r)
	inWord := false
	for {
		ru, size, err := br.ReadRune()
		if errors.Is(err, io.EOF) {
			return c, nil
		}
		if err != nil {
			return c, err
		}
		c.bytes += int64(size)
		if ru == '\n' {
			c.lines++
		}
		switch {
		case unicode.IsSpace(ru):
			inWord = false
		case !inWord:
			inWord = true
			c.words++
		}
	}
}

func runTee(_ context.Context, hc interp.HandlerContext, args []string) (err error) {
	fs := flag.NewFlagSet(args[0], flag.ContinueOnError)
	appendMode := fs.Bool("a", false, "append")
	if err := parseFlags(hc, fs, args); err != nil {
		return err
	}

	mode := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if *appendMode {
		mode = os.O_WRONLY | os.O_CREATE | os.O_APPEND
	}
	writers := []io.Writer{hc.Stdout}
	for _, name := range fs.Args() {
		path := name
		if !filepath.IsAbs(path) {
			path = filepath.Join(hc.Dir, path)
		}
		f, openErr := os.OpenFile(path, mode, 0o644)
		if openErr != nil {
			return fail(hc, args[0], openErr)
		}
		defer func() {
			if closeErr := f.Close(); closeErr != nil && err == nil {
				err = fail(hc, args[0], closeErr)
			}
		}()
		writers = append(writers, f)
	}

	if _, copyErr := io.Copy(io.MultiWriter(writers...), hc.Stdin); copyErr != nil {
		return fail(hc, args[0], copyErr)
	}
	return nil
}
