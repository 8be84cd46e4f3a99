// SPDX-License-Identifier: MPL-2.0

// Package exitguard guarantees that a cleanup phase runs exactly once however a
// guarded body terminates.
//
// Go offers no way to patch os.Exit or runtime.Goexit globally, so termination
// primitives are wrapped by an Interceptor and handed to the body explicitly.
// The wrapped primitives, the signal watcher and the normal fall-through path
// of RunGuarded all funnel into one guard: whichever reaches it first runs the
// cleanup and the registered OnTerminate handlers, the others only note why
// they were invoked.
//
// Every interception path writes a one-line note to the notes writer:
//
//	Exiting from os.Exit(<n>)
//	Exiting from thread exit
//	Exiting from termination-signal
//	Exiting from signal <name>
package exitguard
