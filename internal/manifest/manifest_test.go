// SPDX-License-Identifier: MPL-2.0

package manifest

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/invowk/scriptwrap/internal/runtime"
	"github.com/invowk/scriptwrap/internal/session"
)

const sample = `
name = "sample"
outputs = ["total"]
output_arrays = ["grid"]

[template]
init = "a=1"
main = "dm_set result ok"

[env]
inherit = "allow"
allow = ["PATH"]
files = ["local.env?", "/etc/app.env"]
vars = { MODE = "test" }

[bindings]
count = 3
ratio = 0.5
flag = true
names = ["x", "y"]
grid = [[1, 2], [3, 4]]
day = 2024-05-01

[data]
region = "eu-west"

[data_files]
config = "conf/app.json"
`

func TestParse(t *testing.T) {
	t.Parallel()

	m, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if m.Name != "sample" {
		t.Errorf("Name = %q, want sample", m.Name)
	}
	tmpl := m.RuntimeTemplate()
	if tmpl.Init.Kind() != runtime.FragmentShell || tmpl.Main.Kind() != runtime.FragmentShell {
		t.Errorf("init/main kinds = %v/%v, want shell", tmpl.Init.Kind(), tmpl.Main.Kind())
	}
	if tmpl.Cleanup.Kind() != runtime.FragmentNoop {
		t.Errorf("cleanup kind = %v, want noop", tmpl.Cleanup.Kind())
	}
	if !slices.Equal(tmpl.Outputs, []string{"total"}) || !slices.Equal(tmpl.OutputArrays, []string{"grid"}) {
		t.Errorf("outputs = %v / %v", tmpl.Outputs, tmpl.OutputArrays)
	}

	in, err := m.Inputs()
	if err != nil {
		t.Fatalf("Inputs() error = %v", err)
	}
	var names []string
	values := make(map[string]any)
	for _, b := range in.Bindings {
		names = append(names, b.Name)
		values[b.Name] = b.Value
	}
	if got := strings.Join(names, ","); got != "count,day,flag,grid,names,ratio" {
		t.Errorf("binding order = %s", got)
	}
	if values["count"] != int64(3) || values["ratio"] != 0.5 || values["flag"] != true {
		t.Errorf("scalar bindings = %#v", values)
	}
	if values["day"] != "2024-05-01" {
		t.Errorf("day = %#v, want the date as text", values["day"])
	}
	grid, _ := values["grid"].([]any)
	if row, _ := grid[1].([]any); len(row) != 2 || row[0] != int64(3) {
		t.Errorf("grid = %#v", values["grid"])
	}

	if len(in.Data) != 2 {
		t.Fatalf("Data = %+v, want 2 entries", in.Data)
	}
	if in.Data[0] != (session.Entry{Key: "region", Kind: session.EntryLiteral, Value: "eu-west"}) {
		t.Errorf("Data[0] = %+v", in.Data[0])
	}
	if in.Data[1].Kind != session.EntryFile || in.Data[1].Value != filepath.FromSlash("conf/app.json") {
		t.Errorf("Data[1] = %+v", in.Data[1])
	}
}

func TestParse_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		check   func(error) bool
	}{
		{
			name:    "not toml",
			content: "[template\nmain = 1",
			check: func(err error) bool {
				var pe *ParseError
				return errors.As(err, &pe) && pe.Line > 0
			},
		},
		{
			name:    "unknown key",
			content: "[template]\nbody = \"x\"",
			check: func(err error) bool {
				var pe *ParseError
				return errors.As(err, &pe) && strings.Contains(err.Error(), "template.body")
			},
		},
		{
			name:    "bad inherit mode",
			content: "[env]\ninherit = \"some\"",
			check:   func(err error) bool { return errors.Is(err, ErrInvalidManifest) },
		},
		{
			name:    "reserved binding",
			content: "[bindings]\ninsideHost = false",
			check:   func(err error) bool { return errors.Is(err, ErrInvalidManifest) },
		},
		{
			name:    "table binding",
			content: "[bindings.cfg]\nk = 1",
			check:   func(err error) bool { return errors.Is(err, ErrUnsupportedBinding) },
		},
		{
			name:    "jagged binding",
			content: "[bindings]\nj = [[1, 2], [3]]",
			check:   func(err error) bool { return errors.Is(err, ErrUnsupportedBinding) },
		},
		{
			name:    "empty output name",
			content: "outputs = [\"\"]",
			check:   func(err error) bool { return errors.Is(err, ErrInvalidManifest) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := Parse([]byte(tt.content))
			if err == nil || !tt.check(err) {
				t.Errorf("Parse() error = %v", err)
			}
		})
	}
}

func TestLoad_ResolvesRelativePaths(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		t.Fatal(err)
	}
	m, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if m.BaseDir() != dir {
		t.Errorf("BaseDir() = %q, want %q", m.BaseDir(), dir)
	}
	if m.WorkDir() != dir {
		t.Errorf("WorkDir() = %q, want %q", m.WorkDir(), dir)
	}
	m.Dir = "work"
	if m.WorkDir() != filepath.Join(dir, "work") {
		t.Errorf("WorkDir() = %q, want work under %q", m.WorkDir(), dir)
	}

	in, err := m.Inputs()
	if err != nil {
		t.Fatal(err)
	}
	if got := in.Data[1].Value; got != filepath.Join(dir, "conf", "app.json") {
		t.Errorf("data file = %q, want it under %q", got, dir)
	}

	env := m.EnvConfig(runtime.EnvConfig{
		Inherit: runtime.EnvInheritAll,
		Deny:    []string{"SECRET"},
		Vars:    map[string]string{"MODE": "default", "KEEP": "1"},
	})
	if env.Inherit != runtime.EnvInheritAllow || !slices.Equal(env.Allow, []string{"PATH"}) {
		t.Errorf("EnvConfig() inherit = %v %v", env.Inherit, env.Allow)
	}
	wantFiles := []string{filepath.Join(dir, "local.env") + "?", filepath.FromSlash("/etc/app.env")}
	if !slices.Equal(env.Files, wantFiles) {
		t.Errorf("EnvConfig() files = %v, want %v", env.Files, wantFiles)
	}
	if env.Vars["MODE"] != "test" || env.Vars["KEEP"] != "1" {
		t.Errorf("EnvConfig() vars = %v", env.Vars)
	}
	if !slices.Equal(env.Deny, []string{"SECRET"}) {
		t.Errorf("EnvConfig() deny = %v", env.Deny)
	}
}

func TestLoad_Missing(t *testing.T) {
	t.Parallel()

	if _, err := Load(filepath.Join(t.TempDir(), "absent.toml")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Load() error = %v, want not exist", err)
	}
}

func TestManifest_EncodeParse(t *testing.T) {
	t.Parallel()

	m := &Manifest{
		Name:     "written",
		Dir:      "/srv/job",
		Template: Slots{Main: "echo \"hi\"\nexit 0", Cleanup: "dm_set k v"},
		Outputs:  []string{"out"},
		Bindings: map[string]any{"n": int64(1), "list": []any{"a", "b c"}},
		Data:     map[string]string{"key": "value"},
	}

	path := filepath.Join(t.TempDir(), FileName)
	if err := m.WriteFile(path); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if got.Template != m.Template || got.Dir != m.Dir || got.Name != m.Name {
		t.Errorf("Load() = %+v, want %+v", got, m)
	}
	if list, _ := got.Bindings["list"].([]any); len(list) != 2 || list[1] != "b c" {
		t.Errorf("list = %#v", got.Bindings["list"])
	}

	var buf bytes.Buffer
	if err := got.Encode(&buf); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if !strings.Contains(buf.String(), "[template]") {
		t.Errorf("Encode() = %q, want a template table", buf.String())
	}
}

func TestManifest_Resolved(t *testing.T) {
	t.Parallel()

	m, err := Parse([]byte(sample))
	if err != nil {
		t.Fatal(err)
	}
	if got := m.Resolved(); got.Dir != "" || got.DataFiles["config"] != "conf/app.json" {
		t.Errorf("Resolved() without a base dir = %+v, want paths untouched", got)
	}

	base := t.TempDir()
	m.SetBaseDir(base)
	r := m.Resolved()
	if r.Dir != base {
		t.Errorf("Resolved().Dir = %q, want %q", r.Dir, base)
	}
	if r.DataFiles["config"] != filepath.Join(base, "conf", "app.json") {
		t.Errorf("Resolved().DataFiles = %v", r.DataFiles)
	}
	if r.Env.Files[0] != filepath.Join(base, "local.env")+"?" {
		t.Errorf("Resolved().Env.Files = %v", r.Env.Files)
	}
	if m.DataFiles["config"] != "conf/app.json" {
		t.Error("Resolved() modified the original manifest")
	}

	// A resolved copy written elsewhere still points at the original files.
	other := filepath.Join(t.TempDir(), FileName)
	if err := r.WriteFile(other); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(other)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.WorkDir() != base {
		t.Errorf("WorkDir() of the copy = %q, want %q", loaded.WorkDir(), base)
	}
}
