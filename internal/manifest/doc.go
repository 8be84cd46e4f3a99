// SPDX-License-Identifier: MPL-2.0

// Package manifest reads and writes job manifests: TOML documents that carry
// the three template slots of a wrapped run together with the host inputs
// (bindings, Data-Management entries, environment) and the outputs the host
// wants back.
//
// A manifest looks like:
//
//	name = "build"
//	outputs = ["total"]
//	output_arrays = ["grid"]
//
//	[template]
//	init = "a=1"
//	main = "dm_set result ok"
//	cleanup = "echo done"
//
//	[bindings]
//	count = 3
//	names = ["x", "y"]
//
//	[data]
//	region = "eu-west"
package manifest
