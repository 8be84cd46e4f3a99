// SPDX-License-Identifier: MPL-2.0

// Package marshal flattens nested array values into leaf records for the data
// channel and re-nests them on the receiving side.
//
// A value's shape is discovered, not declared: the marshaller walks the first
// element at every depth and records the length it finds there. Each scalar
// leaf is then tagged with its index tuple and one of the fixed categories
// (String, Integer, Real, Logic, Empty) and encoded as
//
//	base64("<i0,i1,...>_A_0_R_<category>_A_0_R_<value>")
//
// Leaves are produced in row-major order. Arrays whose later elements disagree
// with the shape of the first element are rejected with a JaggedArrayError.
package marshal
