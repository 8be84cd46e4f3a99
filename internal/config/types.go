// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/invowk/scriptwrap/internal/runtime"
)

const (
	// StreamStdout selects the process standard output.
	StreamStdout Stream = "stdout"
	// StreamStderr selects the process standard error.
	StreamStderr Stream = "stderr"

	// ColorSchemeAuto detects the terminal color scheme automatically.
	ColorSchemeAuto ColorScheme = "auto"
	// ColorSchemeDark forces dark color scheme.
	ColorSchemeDark ColorScheme = "dark"
	// ColorSchemeLight forces light color scheme.
	ColorSchemeLight ColorScheme = "light"
)

var (
	// ErrInvalidStream is returned when a Stream value is not recognized.
	ErrInvalidStream = errors.New("invalid stream")
	// ErrInvalidColorScheme is returned when a ColorScheme value is not recognized.
	ErrInvalidColorScheme = errors.New("invalid color scheme")
	// ErrInvalidMetricsPath is returned for a whitespace-only metrics path.
	ErrInvalidMetricsPath = errors.New("invalid metrics textfile path")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// Stream names a standard output stream.
	Stream string

	// InvalidStreamError is returned when a Stream value is not recognized.
	InvalidStreamError struct {
		Field string
		Value Stream
	}

	// ColorScheme specifies the terminal color scheme preference.
	ColorScheme string

	// InvalidColorSchemeError is returned when a ColorScheme value is not recognized.
	InvalidColorSchemeError struct {
		Value ColorScheme
	}

	// InvalidConfigError aggregates field errors.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config is the scriptwrap configuration.
	Config struct {
		// Channel is the stream carrying protocol records.
		Channel StreamConfig `json:"channel" mapstructure:"channel"`
		// Notes is the stream carrying interception notes.
		Notes StreamConfig `json:"notes" mapstructure:"notes"`
		// Interceptor configures termination handling.
		Interceptor InterceptorConfig `json:"interceptor" mapstructure:"interceptor"`
		// Shell configures the embedded shell's environment.
		Shell ShellConfig `json:"shell" mapstructure:"shell"`
		// Metrics configures run metrics.
		Metrics MetricsConfig `json:"metrics" mapstructure:"metrics"`
		// UI configures CLI output.
		UI UIConfig `json:"ui" mapstructure:"ui"`
	}

	// StreamConfig selects a stream.
	StreamConfig struct {
		Stream Stream `json:"stream" mapstructure:"stream"`
	}

	// InterceptorConfig configures termination handling.
	InterceptorConfig struct {
		// Signals turns SIGINT/SIGTERM into intercepted terminations.
		Signals bool `json:"signals" mapstructure:"signals"`
	}

	// ShellConfig configures host environment inheritance and the built-in
	// utilities.
	ShellConfig struct {
		EnvInherit runtime.EnvInheritMode `json:"env_inherit" mapstructure:"env_inherit"`
		EnvAllow   []string               `json:"env_allow" mapstructure:"env_allow"`
		EnvDeny    []string               `json:"env_deny" mapstructure:"env_deny"`
		// Coreutils serves cat, head, wc and friends without host binaries.
		Coreutils bool `json:"coreutils" mapstructure:"coreutils"`
	}

	// MetricsConfig configures the metrics textfile.
	MetricsConfig struct {
		// Textfile is written after every run when set.
		Textfile string `json:"textfile" mapstructure:"textfile"`
	}

	// UIConfig configures CLI output.
	UIConfig struct {
		ColorScheme ColorScheme `json:"color_scheme" mapstructure:"color_scheme"`
		Verbose     bool        `json:"verbose" mapstructure:"verbose"`
	}
)

// Error implements the error interface.
func (e *InvalidStreamError) Error() string {
	return fmt.Sprintf("%s: invalid stream %q (valid: stdout, stderr)", e.Field, e.Value)
}

// Unwrap returns ErrInvalidStream for errors.Is() compatibility.
func (e *InvalidStreamError) Unwrap() error { return ErrInvalidStream }

// Error implements the error interface.
func (e *InvalidColorSchemeError) Error() string {
	return fmt.Sprintf("invalid color scheme %q (valid: auto, dark, light)", e.Value)
}

// Unwrap returns ErrInvalidColorScheme for errors.Is() compatibility.
func (e *InvalidColorSchemeError) Unwrap() error { return ErrInvalidColorScheme }

// Error implements the error interface.
func (e *InvalidConfigError) Error() string {
	msgs := make([]string, len(e.FieldErrors))
	for i, err := range e.FieldErrors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("invalid config: %s", strings.Join(msgs, "; "))
}

// Unwrap returns ErrInvalidConfig and the field errors.
func (e *InvalidConfigError) Unwrap() []error {
	return append([]error{ErrInvalidConfig}, e.FieldErrors...)
}

// String returns the stream name.
func (s Stream) String() string { return string(s) }

// String returns the scheme name.
func (cs ColorScheme) String() string { return string(cs) }

// Validate returns an error if the ColorScheme is unknown.
func (cs ColorScheme) Validate() error {
	switch cs {
	case ColorSchemeAuto, ColorSchemeDark, ColorSchemeLight:
		return nil
	default:
		return &InvalidColorSchemeError{Value: cs}
	}
}

func validateStream(field string, s Stream) error {
	switch s {
	case StreamStdout, StreamStderr:
		return nil
	default:
		return &InvalidStreamError{Field: field, Value: s}
	}
}

// Validate checks every field. CUE validates files; this also covers values
// coming from environment overrides.
func (c Config) Validate() error {
	var errs []error
	if err := validateStream("channel.stream", c.Channel.Stream); err != nil {
		errs = append(errs, err)
	}
	if err := validateStream("notes.stream", c.Notes.Stream); err != nil {
		errs = append(errs, err)
	}
	if err := c.Shell.EnvInherit.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Metrics.Textfile != "" && strings.TrimSpace(c.Metrics.Textfile) == "" {
		errs = append(errs, ErrInvalidMetricsPath)
	}
	if err := c.UI.ColorScheme.Validate(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return &InvalidConfigError{FieldErrors: errs}
	}
	return nil
}

// EnvConfig returns the shell environment defaults.
func (c Config) EnvConfig() runtime.EnvConfig {
	return runtime.EnvConfig{
		Inherit: c.Shell.EnvInherit,
		Allow:   slices.Clone(c.Shell.EnvAllow),
		Deny:    slices.Clone(c.Shell.EnvDeny),
	}
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Channel:     StreamConfig{Stream: StreamStderr},
		Notes:       StreamConfig{Stream: StreamStdout},
		Interceptor: InterceptorConfig{Signals: true},
		Shell: ShellConfig{
			EnvInherit: runtime.EnvInheritAll,
			EnvAllow:   []string{},
			EnvDeny:    []string{},
			Coreutils:  true,
		},
		UI: UIConfig{ColorScheme: ColorSchemeAuto},
	}
}
