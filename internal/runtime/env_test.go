// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func TestEnvConfig_HostEnv(t *testing.T) {
	t.Parallel()

	environ := []string{
		"PATH=/usr/bin",
		"HOME=/home/u",
		"SCRIPTWRAP_CONFIG=/etc/x",
		"SECRET=hunter2",
		"=C:=C:\\",
		"EQUALS=a=b",
	}

	tests := []struct {
		name    string
		cfg     EnvConfig
		want    []string
		notWant []string
	}{
		{
			name:    "all drops internal and denied",
			cfg:     EnvConfig{Inherit: EnvInheritAll, Deny: []string{"SECRET"}},
			want:    []string{"PATH", "HOME", "EQUALS"},
			notWant: []string{"SCRIPTWRAP_CONFIG", "SECRET", ""},
		},
		{
			name:    "empty mode means all",
			cfg:     EnvConfig{},
			want:    []string{"PATH", "SECRET"},
			notWant: []string{"SCRIPTWRAP_CONFIG"},
		},
		{
			name:    "none",
			cfg:     EnvConfig{Inherit: EnvInheritNone},
			notWant: []string{"PATH", "HOME", "SECRET"},
		},
		{
			name:    "allow with deny",
			cfg:     EnvConfig{Inherit: EnvInheritAllow, Allow: []string{"PATH", "SECRET"}, Deny: []string{"SECRET"}},
			want:    []string{"PATH"},
			notWant: []string{"HOME", "SECRET"},
		},
		{
			name:    "allow cannot expose internal variables",
			cfg:     EnvConfig{Inherit: EnvInheritAllow, Allow: []string{"SCRIPTWRAP_CONFIG"}},
			notWant: []string{"SCRIPTWRAP_CONFIG"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			env := tt.cfg.hostEnv(environ)
			for _, name := range tt.want {
				if _, ok := env[name]; !ok {
					t.Errorf("hostEnv() missing %s", name)
				}
			}
			for _, name := range tt.notWant {
				if _, ok := env[name]; ok {
					t.Errorf("hostEnv() should not contain %q", name)
				}
			}
		})
	}

	env := EnvConfig{}.hostEnv(environ)
	if env["EQUALS"] != "a=b" {
		t.Errorf("hostEnv() EQUALS = %q, want a=b", env["EQUALS"])
	}
}

func TestEnvConfig_BuildPrecedence(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	for name, content := range map[string]string{
		"first.env":  "LEVEL=first\nFIRST=1",
		"second.env": "LEVEL=second\nSECOND=2",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	cfg := EnvConfig{
		Inherit: EnvInheritNone,
		Files:   []string{"first.env", "second.env", "optional.env?"},
		Vars:    map[string]string{"SECOND": "var"},
	}
	env, err := cfg.Build(dir)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	want := map[string]string{"LEVEL": "second", "FIRST": "1", "SECOND": "var"}
	for k, v := range want {
		if env[k] != v {
			t.Errorf("Build() %s = %q, want %q", k, env[k], v)
		}
	}
	if len(env) != len(want) {
		t.Errorf("Build() = %v, want exactly %v", env, want)
	}
}

func TestEnvConfig_BuildErrors(t *testing.T) {
	t.Parallel()

	if _, err := (EnvConfig{Inherit: "sometimes"}).Build(""); !errors.Is(err, ErrInvalidEnvInheritMode) {
		t.Errorf("Build() error = %v, want ErrInvalidEnvInheritMode", err)
	}
	var modeErr *InvalidEnvInheritModeError
	if err := EnvInheritMode("x").Validate(); !errors.As(err, &modeErr) || modeErr.Value != "x" {
		t.Errorf("Validate() error = %v, want InvalidEnvInheritModeError", err)
	}
	if _, err := (EnvConfig{Inherit: EnvInheritNone, Files: []string{"absent.env"}}).Build(t.TempDir()); err == nil {
		t.Error("Build() should fail for a missing required env file")
	}
}

func TestEnvList(t *testing.T) {
	t.Parallel()

	got := envList(map[string]string{"B": "2", "A": "1", "C": "x=y"})
	want := []string{"A=1", "B=2", "C=x=y"}
	if !slices.Equal(got, want) {
		t.Errorf("envList() = %v, want %v", got, want)
	}
}
