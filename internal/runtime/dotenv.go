// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// loadEnvFile merges a dotenv file into env. Relative paths are resolved
// against baseDir (the working directory when empty). A trailing '?' makes a
// missing file acceptable.
func loadEnvFile(env map[string]string, path, baseDir string) error {
	path, optional := strings.CutSuffix(path, "?")
	full := filepath.FromSlash(path)
	if !filepath.IsAbs(full) && baseDir != "" {
		full = filepath.Join(baseDir, full)
	}

	content, err := os.ReadFile(full)
	if err != nil {
		if optional && os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read env file '%s': %w", path, err)
	}
	return parseEnvFile(env, string(content), path)
}

// parseEnvFile merges dotenv content into env. It accepts comments, blank
// lines, an optional "export " prefix, unquoted values with " #" comments,
// single-quoted literals and double-quoted values with \n \r \t \\ \" \$ escapes.
func parseEnvFile(env map[string]string, content, filename string) error {
	for i, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(strings.TrimSuffix(line, "\r"))
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "export "))

		key, raw, found := strings.Cut(line, "=")
		if !found {
			return fmt.Errorf("%s:%d: invalid format (missing '=')", filename, i+1)
		}
		key = strings.TrimSpace(key)
		if key == "" {
			return fmt.Errorf("%s:%d: empty variable name", filename, i+1)
		}
		value, err := envValue(strings.TrimSpace(raw))
		if err != nil {
			return fmt.Errorf("%s:%d: %w", filename, i+1, err)
		}
		env[key] = value
	}
	return nil
}

func envValue(raw string) (string, error) {
	switch {
	case raw == "":
		return "", nil
	case raw[0] == '\'':
		if len(raw) < 2 || raw[len(raw)-1] != '\'' {
			return "", fmt.Errorf("unterminated single quote")
		}
		return raw[1 : len(raw)-1], nil
	case raw[0] == '"':
		if len(raw) < 2 || raw[len(raw)-1] != '"' {
			return "", fmt.Errorf("unterminated double quote")
		}
		return unescape(raw[1 : len(raw)-1]), nil
	default:
		if before, _, ok := strings.Cut(raw, " #"); ok {
			raw = strings.TrimSpace(before)
		}
		return raw, nil
	}
}

var escapes = map[byte]byte{'n': '\n', 'r': '\r', 't': '\t', '\\': '\\', '"': '"', '$': '$'}

func unescape(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			if c, ok := escapes[s[i+1]]; ok {
				b.WriteByte(c)
				i++
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
