// SPDX-License-Identifier: MPL-2.0

// Package coreutils provides pure-Go versions of a few text and path
// utilities for the embedded shell, so fragments that pipe through head, wc
// or basename behave the same on hosts without those binaries.
//
// Only the flags listed in each command's usage are understood. Commands not
// registered here fall through to the host's executables.
package coreutils
