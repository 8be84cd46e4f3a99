// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// Not parallel: mutates the process environment.
func TestMustSetenv_RestoresUnset(t *testing.T) {
	const key = "SCRIPTWRAP_TESTUTIL_PROBE"
	if _, ok := os.LookupEnv(key); ok {
		t.Skipf("%s is set in the environment", key)
	}

	cleanup := MustSetenv(t, key, "1")
	if got := os.Getenv(key); got != "1" {
		t.Errorf("%s = %q, want 1", key, got)
	}
	cleanup()
	if _, ok := os.LookupEnv(key); ok {
		t.Errorf("%s still set after cleanup", key)
	}
}

func TestMustWriteFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "a", "b", "file.txt")
	MustWriteFile(t, path, "content")

	data, err := os.ReadFile(path)
	if err != nil || string(data) != "content" {
		t.Errorf("ReadFile() = %q, %v", data, err)
	}

	MustRemoveAll(t, filepath.Dir(path))
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("Stat() after MustRemoveAll error = %v, want not exist", err)
	}
}
