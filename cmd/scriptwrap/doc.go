// SPDX-License-Identifier: MPL-2.0

// Package cmd contains the scriptwrap CLI commands.
//
// `scriptwrap exec` is the wrapper itself: it runs a manifest in-process and
// writes records on the channel stream. `scriptwrap run` is the host side: it
// launches `exec` in a child process and renders what it collected.
package cmd
