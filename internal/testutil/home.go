// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"path/filepath"
	"runtime"
	"testing"
)

// SetHomeDir sets the appropriate HOME environment variable based on platform
// and returns a cleanup function to restore the original value.
//
// Platform handling:
//   - Windows: Sets USERPROFILE
//   - Linux/macOS: Sets HOME
func SetHomeDir(t testing.TB, dir string) func() {
	t.Helper()

	switch runtime.GOOS {
	case "windows":
		return MustSetenv(t, "USERPROFILE", dir)
	default:
		return MustSetenv(t, "HOME", dir)
	}
}

// SetConfigHome points the platform's user configuration directory at dir
// and returns the directory applications will create their folder in,
// along with a cleanup function.
//
// Platform handling:
//   - Windows: Sets APPDATA
//   - macOS: Sets HOME; the config root is dir/Library/Application Support
//   - Others: Sets XDG_CONFIG_HOME
func SetConfigHome(t testing.TB, dir string) (string, func()) {
	t.Helper()

	switch runtime.GOOS {
	case "windows":
		return dir, MustSetenv(t, "APPDATA", dir)
	case "darwin":
		return filepath.Join(dir, "Library", "Application Support"), SetHomeDir(t, dir)
	default:
		return dir, MustSetenv(t, "XDG_CONFIG_HOME", dir)
	}
}
