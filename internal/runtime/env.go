// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"
)

// Host environment inheritance modes.
const (
	// EnvInheritAll inherits every host variable except internal ones.
	EnvInheritAll EnvInheritMode = "all"
	// EnvInheritNone starts from an empty environment.
	EnvInheritNone EnvInheritMode = "none"
	// EnvInheritAllow inherits only allowlisted host variables.
	EnvInheritAllow EnvInheritMode = "allow"
)

// internalEnvPrefix marks variables used to configure scriptwrap itself;
// they never leak into wrapped scripts.
const internalEnvPrefix = "SCRIPTWRAP_"

// ErrInvalidEnvInheritMode is the sentinel error wrapped by InvalidEnvInheritModeError.
var ErrInvalidEnvInheritMode = errors.New("invalid env inherit mode")

type (
	// EnvInheritMode controls how the host environment is inherited.
	EnvInheritMode string

	// InvalidEnvInheritModeError is returned for an unknown mode.
	InvalidEnvInheritModeError struct {
		Value EnvInheritMode
	}

	// EnvConfig describes the environment of the embedded shell.
	// Precedence, lowest to highest: inherited host variables, Files in
	// order, Vars.
	EnvConfig struct {
		Inherit EnvInheritMode
		// Allow lists host variables inherited in allow mode.
		Allow []string
		// Deny lists host variables never inherited.
		Deny []string
		// Files are dotenv files; a trailing '?' marks a file optional.
		Files []string
		// Vars are explicit variables.
		Vars map[string]string
	}
)

// Error implements the error interface.
func (e *InvalidEnvInheritModeError) Error() string {
	return fmt.Sprintf("invalid env inherit mode %q (must be one of all, none, allow)", e.Value)
}

// Unwrap returns ErrInvalidEnvInheritMode so callers can use errors.Is for programmatic detection.
func (e *InvalidEnvInheritModeError) Unwrap() error { return ErrInvalidEnvInheritMode }

// Validate returns an error for an unknown mode. The empty mode means all.
func (m EnvInheritMode) Validate() error {
	switch m {
	case "", EnvInheritAll, EnvInheritNone, EnvInheritAllow:
		return nil
	default:
		return &InvalidEnvInheritModeError{Value: m}
	}
}

// Build resolves the environment. Relative dotenv paths are resolved against baseDir.
func (c EnvConfig) Build(baseDir string) (map[string]string, error) {
	if err := c.Inherit.Validate(); err != nil {
		return nil, err
	}
	env := c.hostEnv(os.Environ())
	for _, path := range c.Files {
		if err := loadEnvFile(env, path, baseDir); err != nil {
			return nil, err
		}
	}
	maps.Copy(env, c.Vars)
	return env, nil
}

func (c EnvConfig) hostEnv(environ []string) map[string]string {
	env := make(map[string]string)
	if c.Inherit == EnvInheritNone {
		return env
	}
	for _, entry := range environ {
		name, value, ok := strings.Cut(entry, "=")
		// Windows keeps per-drive cwd entries like "=C:=C:\\".
		if !ok || name == "" {
			continue
		}
		if strings.HasPrefix(name, internalEnvPrefix) || slices.Contains(c.Deny, name) {
			continue
		}
		if c.Inherit == EnvInheritAllow && !slices.Contains(c.Allow, name) {
			continue
		}
		env[name] = value
	}
	return env
}

// envList renders env as sorted NAME=value pairs.
func envList(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for _, name := range slices.Sorted(maps.Keys(env)) {
		out = append(out, name+"="+env[name])
	}
	return out
}
