// SPDX-License-Identifier: MPL-2.0

package coreutils

import (
	"io"
	"os"
	"path/filepath"

	"mvdan.cc/sh/v3/interp"
)

// eachInput calls fn for every named file, or once for stdin when names is
// empty or "-". Relative names resolve against dir.
func eachInput(hc interp.HandlerContext, names []string, fn func(r io.Reader, name string) error) error {
	if len(names) == 0 {
		return fn(hc.Stdin, "-")
	}
	for _, name := range names {
		if err := openInput(hc, name, fn); err != nil {
			return err
		}
	}
	return nil
}

func openInput(hc interp.HandlerContext, name string, fn func(r io.Reader, name string) error) (err error) {
	if name == "-" {
		return fn(hc.Stdin, name)
	}
	path := name
	if !filepath.IsAbs(path) {
		path = filepath.Join(hc.Dir, path)
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	return fn(f, name)
}
