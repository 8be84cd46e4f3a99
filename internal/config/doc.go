// SPDX-License-Identifier: MPL-2.0

// Package config loads scriptwrap configuration using Viper with CUE as the
// file format.
//
// The file lives at $XDG_CONFIG_HOME/scriptwrap/config.cue on Linux
// (~/Library/Application Support/scriptwrap on macOS, %APPDATA%\scriptwrap on
// Windows) and is validated against the embedded config_schema.cue before it
// is merged over the defaults. SCRIPTWRAP_* environment variables override
// file values, e.g. SCRIPTWRAP_CHANNEL_STREAM=stdout.
package config
