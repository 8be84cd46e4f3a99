// SPDX-License-Identifier: MPL-2.0

// Package channel implements the line protocol that carries structured values
// from a wrapped script to its host over a stream shared with ordinary output.
//
// Three record shapes exist, one per physical line:
//
//	_D_0_M_<base64(key _D_0_M_ value)>          scalar
//	_A_0_R_<base64(name _A_0_R_ dims)>          array header
//	_A_0_R_<base64(index _A_0_R_ cat _A_0_R_ v)> array leaf (see package marshal)
//
// A line is a record only when it carries a sentinel prefix, its payload
// decodes, and the decoded text contains the sentinel again. Every other line
// is program output and is passed through by Demux unmodified.
package channel
