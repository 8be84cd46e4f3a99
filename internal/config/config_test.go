// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/invowk/scriptwrap/internal/issue"
	"github.com/invowk/scriptwrap/internal/runtime"
	"github.com/invowk/scriptwrap/internal/testutil"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, ConfigFileName+"."+ConfigFileExt)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Parallel()

	cfg, path, err := LoadWithPath(t.Context(), LoadOptions{ConfigDirPath: t.TempDir()})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if path != "" {
		t.Errorf("Load() path = %q, want none", path)
	}

	want := DefaultConfig()
	if cfg.Channel != want.Channel || cfg.Notes != want.Notes || cfg.Interceptor != want.Interceptor {
		t.Errorf("Load() = %+v, want %+v", cfg, want)
	}
	if cfg.Shell.EnvInherit != runtime.EnvInheritAll {
		t.Errorf("Shell.EnvInherit = %q, want all", cfg.Shell.EnvInherit)
	}
	if !cfg.Shell.Coreutils {
		t.Error("Shell.Coreutils = false, want the built-in utilities enabled by default")
	}
	if cfg.UI.ColorScheme != ColorSchemeAuto {
		t.Errorf("UI.ColorScheme = %q, want auto", cfg.UI.ColorScheme)
	}
}

func TestLoad_ConfigDir(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	want := writeConfig(t, dir, `
channel: stream: "stdout"
interceptor: signals: false
shell: {
	env_inherit: "allow"
	env_allow: ["PATH", "HOME"]
	coreutils: false
}
metrics: textfile: "/var/lib/node_exporter/scriptwrap.prom"
`)

	cfg, path, err := LoadWithPath(t.Context(), LoadOptions{ConfigDirPath: dir})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if path != want {
		t.Errorf("Load() path = %q, want %q", path, want)
	}
	if cfg.Channel.Stream != StreamStdout {
		t.Errorf("Channel.Stream = %q, want stdout", cfg.Channel.Stream)
	}
	if cfg.Notes.Stream != StreamStdout {
		t.Errorf("Notes.Stream = %q, want the stdout default", cfg.Notes.Stream)
	}
	if cfg.Interceptor.Signals {
		t.Error("Interceptor.Signals = true, want false")
	}
	if cfg.Shell.Coreutils {
		t.Error("Shell.Coreutils = true, want false from the file")
	}
	if !slices.Equal(cfg.Shell.EnvAllow, []string{"PATH", "HOME"}) {
		t.Errorf("Shell.EnvAllow = %v", cfg.Shell.EnvAllow)
	}
	if cfg.Metrics.Textfile != "/var/lib/node_exporter/scriptwrap.prom" {
		t.Errorf("Metrics.Textfile = %q", cfg.Metrics.Textfile)
	}

	env := cfg.EnvConfig()
	if env.Inherit != runtime.EnvInheritAllow || !slices.Equal(env.Allow, cfg.Shell.EnvAllow) {
		t.Errorf("EnvConfig() = %+v", env)
	}
}

func TestLoad_ConfigFilePath(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, t.TempDir(), `ui: verbose: true`)
	cfg, err := NewProvider().Load(t.Context(), LoadOptions{
		ConfigFilePath: path,
		ConfigDirPath:  t.TempDir(),
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !cfg.UI.Verbose {
		t.Error("UI.Verbose = false, want true")
	}
}

func TestLoad_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		errMsg  string
	}{
		{"syntax", "channel: {", "config.cue"},
		{"unknown field", `channel: buffer: 10`, "channel.buffer"},
		{"bad stream", `notes: stream: "stdlog"`, "notes.stream"},
		{"bad inherit", `shell: env_inherit: "some"`, "shell.env_inherit"},
		{"bad env name", `shell: env_deny: ["1BAD"]`, "shell.env_deny[0]"},
		{"wrong type", `interceptor: signals: "yes"`, "interceptor.signals"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			path := writeConfig(t, t.TempDir(), tt.content)
			_, err := NewProvider().Load(t.Context(), LoadOptions{ConfigFilePath: path})
			if err == nil {
				t.Fatal("Load() succeeded, want an error")
			}
			if !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("Load() error = %v, want it to mention %q", err, tt.errMsg)
			}
			var ae *issue.ActionableError
			if !errors.As(err, &ae) || ae.Issue != issue.ConfigLoadFailedID {
				t.Errorf("Load() error = %#v, want an actionable config error", err)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := NewProvider().Load(t.Context(), LoadOptions{ConfigFilePath: filepath.Join(t.TempDir(), "nope.cue")})
	if err == nil || !strings.Contains(err.Error(), "config file not found") {
		t.Errorf("Load() error = %v, want not found", err)
	}
}

func TestLoad_Canceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	if _, err := NewProvider().Load(ctx, LoadOptions{ConfigDirPath: t.TempDir()}); !errors.Is(err, context.Canceled) {
		t.Errorf("Load() error = %v, want context.Canceled", err)
	}
}

// Not parallel: t.Setenv.
func TestLoad_EnvOverrides(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `channel: stream: "stdout"`)
	t.Setenv("SCRIPTWRAP_CHANNEL_STREAM", "stderr")
	t.Setenv("SCRIPTWRAP_INTERCEPTOR_SIGNALS", "false")
	t.Setenv("SCRIPTWRAP_METRICS_TEXTFILE", "/tmp/run.prom")

	cfg, err := NewProvider().Load(t.Context(), LoadOptions{ConfigDirPath: dir})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Channel.Stream != StreamStderr {
		t.Errorf("Channel.Stream = %q, want the environment value", cfg.Channel.Stream)
	}
	if cfg.Interceptor.Signals {
		t.Error("Interceptor.Signals = true, want false from the environment")
	}
	if cfg.Metrics.Textfile != "/tmp/run.prom" {
		t.Errorf("Metrics.Textfile = %q", cfg.Metrics.Textfile)
	}
}

// Not parallel: t.Setenv.
func TestLoad_InvalidEnvOverride(t *testing.T) {
	t.Setenv("SCRIPTWRAP_NOTES_STREAM", "stdlog")

	_, err := NewProvider().Load(t.Context(), LoadOptions{ConfigDirPath: t.TempDir()})
	if !errors.Is(err, ErrInvalidStream) {
		t.Errorf("Load() error = %v, want ErrInvalidStream", err)
	}
}

// Not parallel: mutates the package-level directory override.
func TestConfigDir_Override(t *testing.T) {
	dir := t.TempDir()
	SetConfigDirOverride(dir)
	t.Cleanup(Reset)

	got, err := ConfigDir()
	if err != nil || got != dir {
		t.Errorf("ConfigDir() = %q, %v, want %q", got, err, dir)
	}
	path, err := DefaultPath()
	if err != nil || path != filepath.Join(dir, "config.cue") {
		t.Errorf("DefaultPath() = %q, %v", path, err)
	}
}

// Not parallel: points the platform config directory at a temp dir.
func TestLoad_PlatformConfigDir(t *testing.T) {
	root, cleanup := testutil.SetConfigHome(t, t.TempDir())
	defer cleanup()

	dir, err := ConfigDir()
	if err != nil {
		t.Fatalf("ConfigDir() error = %v", err)
	}
	if want := filepath.Join(root, AppName); dir != want {
		t.Errorf("ConfigDir() = %q, want %q", dir, want)
	}

	path, err := WriteDefault("", false)
	if err != nil {
		t.Fatalf("WriteDefault() error = %v", err)
	}
	if want := filepath.Join(dir, "config.cue"); path != want {
		t.Errorf("WriteDefault() path = %q, want %q", path, want)
	}
	_, loaded, err := LoadWithPath(t.Context(), LoadOptions{})
	if err != nil || loaded != path {
		t.Errorf("LoadWithPath() = %q, %v, want %q", loaded, err, path)
	}
}

func TestWriteDefault(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "config.cue")
	if _, err := WriteDefault(path, false); err != nil {
		t.Fatalf("WriteDefault() error = %v", err)
	}
	if _, err := WriteDefault(path, false); !errors.Is(err, ErrConfigExists) {
		t.Errorf("WriteDefault() error = %v, want ErrConfigExists", err)
	}
	if _, err := WriteDefault(path, true); err != nil {
		t.Errorf("WriteDefault(force) error = %v", err)
	}

	cfg, err := NewProvider().Load(t.Context(), LoadOptions{ConfigFilePath: path})
	if err != nil {
		t.Fatalf("Load() of the generated file error = %v", err)
	}
	if cfg.Channel != DefaultConfig().Channel {
		t.Errorf("generated config round-trip = %+v", cfg)
	}
}
