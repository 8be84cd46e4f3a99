// SPDX-License-Identifier: MPL-2.0

// Package issue provides actionable errors and the Markdown issue catalog
// shown by the CLI when a wrapped run cannot be set up or completed.
package issue
