// SPDX-License-Identifier: MPL-2.0

// Package session holds the state a wrapped script shares with its host: the
// Binding Environment and the Data-Management Table, plus the termination
// entry points handed to script code.
//
// A Session is an explicit context object. Init, body and cleanup fragments
// receive the same *Session, so values written by one phase are visible to the
// next. Nothing in this package is global.
package session
