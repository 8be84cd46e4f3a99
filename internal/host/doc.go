// SPDX-License-Identifier: MPL-2.0

// Package host runs a manifest in a child scriptwrap process and collects
// the records it emits.
//
// The executor writes the manifest into a temporary work directory, starts
// `scriptwrap exec` there with the channel pinned to the child's stderr, and
// demultiplexes that stream: protocol records are collected, every other
// line is passed through to the caller's stderr unchanged.
package host
