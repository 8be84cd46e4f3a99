// SPDX-License-Identifier: MPL-2.0

// Package runtime runs a Template's init, main and cleanup fragments under an
// exitguard.Interceptor against one shared session.Session.
//
// Fragments come in three kinds:
//   - ShellFragment: POSIX shell source executed by an embedded interpreter
//     (mvdan/sh). One interpreter serves every shell fragment of a run, so
//     functions and variables defined in init are visible to main and cleanup.
//   - FuncFragment: a Go closure receiving the Session.
//   - Noop: the placeholder for an absent slot.
//
// Bindings are mirrored into the shell as variables before each shell
// fragment and copied back afterwards. One-dimensional arrays map to indexed
// shell arrays; deeper arrays are only visible to Go fragments.
//
// Shell fragments additionally get these builtins:
//
//	exit [n]         end the fragment (built-in exit)
//	quit [n]         same as exit
//	raise_exit [n]   raise the generic exit request
//	os_exit n        terminate the process after cleanup
//	thread_exit      end the fragment's thread of control only
//	dm_set KEY VAL   record a literal Data-Management entry
//	dm_file KEY PATH record a file Data-Management entry
//	dm_get KEY       print an entry (including host inputs)
//
// After cleanup the Runner emits, on the channel stream, one scalar record
// per Data-Management entry in insertion order, followed by the Template's
// declared outputs.
package runtime
