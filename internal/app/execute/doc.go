// SPDX-License-Identifier: MPL-2.0

// Package execute builds a runtime.Runner from configuration and a manifest
// and runs it. It decouples the CLI layer from stream selection, environment
// layering, interceptor primitives and metrics wiring.
package execute
