// SPDX-License-Identifier: MPL-2.0

package coreutils

import (
	"context"
	"fmt"
	"path"
	"strconv"
	"strings"

	"mvdan.cc/sh/v3/interp"
)

func init() {
	for _, cmd := range []Command{
		{Name: "basename", Usage: "basename PATH [SUFFIX]", Run: runBasename},
		{Name: "dirname", Usage: "dirname PATH...", Run: runDirname},
		{Name: "seq", Usage: "seq [FIRST [INCREMENT]] LAST", Run: runSeq},
	} {
		Default.Register(cmd)
	}
}

func runBasename(_ context.Context, hc interp.HandlerContext, args []string) error {
	cmd, _ := Default.Lookup(args[0])
	if len(args) < 2 || len(args) > 3 {
		return usage(hc, cmd, "expected PATH and an optional SUFFIX")
	}
	base := path.Base(args[1])
	if len(args) == 3 && args[2] != base {
		base = strings.TrimSuffix(base, args[2])
	}
	fmt.Fprintln(hc.Stdout, base)
	return nil
}

func runDirname(_ context.Context, hc interp.HandlerContext, args []string) error {
	if len(args) < 2 {
		cmd, _ := Default.Lookup(args[0])
		return usage(hc, cmd, "missing operand")
	}
	for _, p := range args[1:] {
		fmt.Fprintln(hc.Stdout, path.Dir(p))
	}
	return nil
}

// runSeq prints an integer sequence. FIRST and INCREMENT default to 1.
func runSeq(_ context.Context, hc interp.HandlerContext, args []string) error {
	cmd, _ := Default.Lookup(args[0])
	operands := args[1:]
	if len(operands) == 0 || len(operands) > 3 {
		return usage(hc, cmd, "expected one to three operands")
	}
	nums := make([]int64, len(operands))
	for i, op := range operands {
		n, err := strconv.ParseInt(op, 10, 64)
		if err != nil {
			return usage(hc, cmd, fmt.Sprintf("invalid integer %q", op))
		}
		nums[i] = n
	}

	first, incr, last := int64(1), int64(1), nums[len(nums)-1]
	switch len(nums) {
	case 2:
		first = nums[0]
	case 3:
		first, incr = nums[0], nums[1]
	}
	if incr == 0 {
		return usage(hc, cmd, "increment must not be zero")
	}
	for n := first; (incr > 0 && n <= last) || (incr < 0 && n >= last); n += incr {
		fmt.Fprintln(hc.Stdout, n)
	}
	return nil
}
