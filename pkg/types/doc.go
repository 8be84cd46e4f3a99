// SPDX-License-Identifier: MPL-2.0

// Package types defines cross-cutting value types shared by the wrapper, the
// channel codec and the host-side executor. These types carry validation but
// no domain-specific dependencies.
//
// This package is a leaf dependency: it imports only the standard library.
package types
