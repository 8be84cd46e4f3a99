// SPDX-License-Identifier: MPL-2.0

package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/invowk/scriptwrap/internal/marshal"
	"github.com/invowk/scriptwrap/internal/runtime"
	"github.com/invowk/scriptwrap/internal/session"
)

// FileName is the manifest name the host writes into a work directory.
const FileName = "scriptwrap.toml"

var (
	// ErrInvalidManifest is the sentinel error wrapped by ValidationError.
	ErrInvalidManifest = errors.New("invalid manifest")

	// ErrUnsupportedBinding is returned for binding values that cannot be
	// represented in a Binding Environment.
	ErrUnsupportedBinding = errors.New("unsupported binding value")
)

type (
	// Manifest describes one wrapped run.
	Manifest struct {
		Name string `toml:"name,omitempty"`
		// Dir is the working directory. Relative paths are resolved against
		// the manifest's directory.
		Dir          string            `toml:"dir,omitempty"`
		Template     Slots             `toml:"template"`
		Outputs      []string          `toml:"outputs,omitempty"`
		OutputArrays []string          `toml:"output_arrays,omitempty"`
		Env          Env               `toml:"env,omitempty"`
		Bindings     map[string]any    `toml:"bindings,omitempty"`
		Data         map[string]string `toml:"data,omitempty"`
		DataFiles    map[string]string `toml:"data_files,omitempty"`

		// baseDir is the directory relative paths are resolved against.
		baseDir string
	}

	// Slots holds the shell source of the template slots.
	Slots struct {
		Init    string `toml:"init,omitempty"`
		Main    string `toml:"main,omitempty"`
		Cleanup string `toml:"cleanup,omitempty"`
	}

	// Env configures the shell environment. Empty fields defer to the
	// caller's defaults.
	Env struct {
		Inherit string            `toml:"inherit,omitempty"`
		Allow   []string          `toml:"allow,omitempty"`
		Deny    []string          `toml:"deny,omitempty"`
		Files   []string          `toml:"files,omitempty"`
		Vars    map[string]string `toml:"vars,omitempty"`
	}

	// ValidationError reports a manifest field with an invalid value.
	ValidationError struct {
		Field  string
		Reason string
	}

	// ParseError reports a manifest that is not valid TOML or has unknown keys.
	ParseError struct {
		Path   string
		Line   int
		Column int
		Err    error
	}

	// UnsupportedBindingError reports a binding whose value has no
	// Binding Environment representation.
	UnsupportedBindingError struct {
		Name   string
		Reason string
	}
)

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid manifest: %s: %s", e.Field, e.Reason)
}

// Unwrap returns ErrInvalidManifest so callers can use errors.Is for programmatic detection.
func (e *ValidationError) Unwrap() error { return ErrInvalidManifest }

// Error implements the error interface.
func (e *ParseError) Error() string {
	where := e.Path
	if where == "" {
		where = "manifest"
	}
	if e.Line > 0 {
		where = fmt.Sprintf("%s:%d:%d", where, e.Line, e.Column)
	}
	return fmt.Sprintf("%s: %v", where, e.Err)
}

// Unwrap returns the decoder error.
func (e *ParseError) Unwrap() error { return e.Err }

// Error implements the error interface.
func (e *UnsupportedBindingError) Error() string {
	return fmt.Sprintf("binding %q: %s", e.Name, e.Reason)
}

// Unwrap returns ErrUnsupportedBinding so callers can use errors.Is for programmatic detection.
func (e *UnsupportedBindingError) Unwrap() error { return ErrUnsupportedBinding }

// Load reads and validates the manifest at path.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	m, err := parse(data, path)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving manifest path: %w", err)
	}
	m.baseDir = filepath.Dir(abs)
	return m, nil
}

// Parse decodes and validates a manifest. Relative paths in it are resolved
// against the process working directory.
func Parse(data []byte) (*Manifest, error) {
	return parse(data, "")
}

func parse(data []byte, path string) (*Manifest, error) {
	var m Manifest
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&m); err != nil {
		return nil, parseError(path, err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func parseError(path string, err error) error {
	pe := &ParseError{Path: path, Err: err}
	var strict *toml.StrictMissingError
	if errors.As(err, &strict) && len(strict.Errors) > 0 {
		first := strict.Errors[0]
		pe.Line, pe.Column = first.Position()
		pe.Err = fmt.Errorf("unknown key %q", strings.Join(first.Key(), "."))
		return pe
	}
	var decErr *toml.DecodeError
	if errors.As(err, &decErr) {
		pe.Line, pe.Column = decErr.Position()
	}
	return pe
}

// Validate checks names and binding values.
func (m *Manifest) Validate() error {
	if err := runtime.EnvInheritMode(m.Env.Inherit).Validate(); err != nil {
		return &ValidationError{Field: "env.inherit", Reason: err.Error()}
	}
	for _, name := range slices.Concat(m.Outputs, m.OutputArrays) {
		if strings.TrimSpace(name) == "" {
			return &ValidationError{Field: "outputs", Reason: "empty binding name"}
		}
	}
	for key := range m.Data {
		if key == "" {
			return &ValidationError{Field: "data", Reason: "empty key"}
		}
	}
	for key, path := range m.DataFiles {
		if key == "" || path == "" {
			return &ValidationError{Field: "data_files", Reason: "empty key or path"}
		}
	}
	for _, name := range slices.Sorted(maps.Keys(m.Bindings)) {
		if name == session.InsideHost {
			return &ValidationError{Field: "bindings." + name, Reason: "name is reserved"}
		}
		if _, err := bindingValue(name, m.Bindings[name]); err != nil {
			return err
		}
	}
	return nil
}

// BaseDir returns the directory relative paths are resolved against.
func (m *Manifest) BaseDir() string { return m.baseDir }

// SetBaseDir overrides the directory relative paths are resolved against.
func (m *Manifest) SetBaseDir(dir string) { m.baseDir = dir }

// WorkDir returns the working directory of the run. Without an explicit dir
// it is the manifest's directory, or "" (the process working directory) for
// manifests that were not loaded from a file.
func (m *Manifest) WorkDir() string {
	if m.Dir == "" {
		return m.baseDir
	}
	return m.resolve(m.Dir)
}

// RuntimeTemplate converts the slots and outputs to a runtime.Template.
func (m *Manifest) RuntimeTemplate() runtime.Template {
	return runtime.Template{
		Init:         runtime.Shell("init", m.Template.Init),
		Main:         runtime.Shell("main", m.Template.Main),
		Cleanup:      runtime.Shell("cleanup", m.Template.Cleanup),
		Outputs:      slices.Clone(m.Outputs),
		OutputArrays: slices.Clone(m.OutputArrays),
	}
}

// Inputs converts bindings and data entries to session inputs. Bindings are
// ordered by name.
func (m *Manifest) Inputs() (session.Inputs, error) {
	var in session.Inputs
	for _, name := range slices.Sorted(maps.Keys(m.Bindings)) {
		v, err := bindingValue(name, m.Bindings[name])
		if err != nil {
			return session.Inputs{}, err
		}
		in.Bindings = append(in.Bindings, session.Binding{Name: name, Value: v})
	}
	for _, key := range slices.Sorted(maps.Keys(m.Data)) {
		in.Data = append(in.Data, session.Entry{Key: key, Kind: session.EntryLiteral, Value: m.Data[key]})
	}
	for _, key := range slices.Sorted(maps.Keys(m.DataFiles)) {
		in.Data = append(in.Data, session.Entry{Key: key, Kind: session.EntryFile, Value: m.resolve(m.DataFiles[key])})
	}
	return in, nil
}

// EnvConfig overlays the manifest environment on defaults. Relative dotenv
// files are resolved against the manifest's directory.
func (m *Manifest) EnvConfig(defaults runtime.EnvConfig) runtime.EnvConfig {
	cfg := defaults
	if m.Env.Inherit != "" {
		cfg.Inherit = runtime.EnvInheritMode(m.Env.Inherit)
	}
	if len(m.Env.Allow) > 0 {
		cfg.Allow = slices.Clone(m.Env.Allow)
	}
	cfg.Deny = slices.Concat(defaults.Deny, m.Env.Deny)
	cfg.Files = slices.Concat(defaults.Files, m.Resolved().Env.Files)
	cfg.Vars = maps.Clone(defaults.Vars)
	if cfg.Vars == nil {
		cfg.Vars = make(map[string]string, len(m.Env.Vars))
	}
	maps.Copy(cfg.Vars, m.Env.Vars)
	return cfg
}

// Resolved returns a copy whose relative paths (dir, env files and data
// files) are made absolute against the manifest's directory, so the copy can
// be written elsewhere without changing what it refers to.
func (m *Manifest) Resolved() *Manifest {
	out := *m
	if m.baseDir == "" {
		return &out
	}
	out.Dir = m.WorkDir()
	out.Env.Files = make([]string, 0, len(m.Env.Files))
	for _, f := range m.Env.Files {
		path, optional := strings.CutSuffix(f, "?")
		path = m.resolve(path)
		if optional {
			path += "?"
		}
		out.Env.Files = append(out.Env.Files, path)
	}
	out.DataFiles = make(map[string]string, len(m.DataFiles))
	for k, v := range m.DataFiles {
		out.DataFiles[k] = m.resolve(v)
	}
	return &out
}

// Encode writes the manifest as TOML.
func (m *Manifest) Encode(w io.Writer) error {
	enc := toml.NewEncoder(w)
	enc.SetIndentTables(true)
	if err := enc.Encode(m); err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	return nil
}

// WriteFile writes the manifest to path.
func (m *Manifest) WriteFile(path string) error {
	var buf bytes.Buffer
	if err := m.Encode(&buf); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}
	return nil
}

func (m *Manifest) resolve(path string) string {
	path = filepath.FromSlash(path)
	if filepath.IsAbs(path) || m.baseDir == "" {
		return path
	}
	return filepath.Join(m.baseDir, path)
}

// bindingValue normalizes a decoded TOML value. Dates become strings; tables
// are rejected and arrays must be rectangular.
func bindingValue(name string, v any) (any, error) {
	switch val := v.(type) {
	case map[string]any:
		return nil, &UnsupportedBindingError{Name: name, Reason: "tables cannot be bound"}
	case time.Time:
		return val.Format(time.RFC3339Nano), nil
	case toml.LocalDate, toml.LocalTime, toml.LocalDateTime:
		return fmt.Sprint(val), nil
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			norm, err := bindingValue(name, elem)
			if err != nil {
				return nil, err
			}
			out[i] = norm
		}
		if _, _, err := marshal.Marshal(out); err != nil {
			return nil, &UnsupportedBindingError{Name: name, Reason: err.Error()}
		}
		return out, nil
	default:
		return v, nil
	}
}
