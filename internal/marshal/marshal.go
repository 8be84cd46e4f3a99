// SPDX-License-Identifier: MPL-2.0

package marshal

import (
	"errors"
	"fmt"
	"reflect"
)

var (
	// ErrNotArray is returned when a value handed to Marshal is not a sequence.
	ErrNotArray = errors.New("value is not an array")
	// ErrJaggedArray is the sentinel error wrapped by JaggedArrayError.
	ErrJaggedArray = errors.New("jagged array")
	// ErrIndexOutOfRange is the sentinel error wrapped by IndexOutOfRangeError.
	ErrIndexOutOfRange = errors.New("leaf index out of range")
	// ErrIncompleteArray is returned by Unmarshal when fewer leaves than the
	// announced shape holds were supplied. The partially filled value is still returned.
	ErrIncompleteArray = errors.New("array is not completely filled")
)

type (
	// JaggedArrayError reports the first position whose shape disagrees with
	// the shape inferred from the first element at each depth.
	JaggedArrayError struct {
		// Path is the index tuple of the offending sequence (or scalar).
		Path []int
		// Dims is the inferred shape.
		Dims []int
		// Reason describes the mismatch.
		Reason string
	}

	// IndexOutOfRangeError is returned when a leaf's index tuple does not fit the dims.
	IndexOutOfRangeError struct {
		Index []int
		Dims  []int
	}
)

// Error implements the error interface.
func (e *JaggedArrayError) Error() string {
	return fmt.Sprintf("jagged array at [%s] (shape %s): %s", JoinInts(e.Path), JoinInts(e.Dims), e.Reason)
}

// Unwrap returns ErrJaggedArray so callers can use errors.Is for programmatic detection.
func (e *JaggedArrayError) Unwrap() error { return ErrJaggedArray }

// Error implements the error interface.
func (e *IndexOutOfRangeError) Error() string {
	return fmt.Sprintf("leaf index [%s] outside shape [%s]", JoinInts(e.Index), JoinInts(e.Dims))
}

// Unwrap returns ErrIndexOutOfRange so callers can use errors.Is for programmatic detection.
func (e *IndexOutOfRangeError) Unwrap() error { return ErrIndexOutOfRange }

// IsArray reports whether v is a sequence the marshaller can flatten.
// Byte slices are strings, not sequences.
func IsArray(v any) bool {
	if v == nil {
		return false
	}
	return isSequence(reflect.ValueOf(v))
}

// Dims returns the shape of v by repeatedly unwrapping the first element until
// a non-sequence is found or a sequence proves empty. A non-sequence yields nil.
func Dims(v any) []int {
	if !IsArray(v) {
		return nil
	}
	var dims []int
	cur := reflect.ValueOf(v)
	for {
		dims = append(dims, cur.Len())
		if cur.Len() == 0 {
			return dims
		}
		next := elem(cur, 0)
		if !isSequence(next) {
			return dims
		}
		cur = next
	}
}

// Marshal flattens v into row-major leaves. The returned dims describe the
// shape the leaves index into.
func Marshal(v any) ([]int, []Leaf, error) {
	if !IsArray(v) {
		return nil, nil, fmt.Errorf("%w: %T", ErrNotArray, v)
	}
	dims := Dims(v)
	if err := checkRectangular(reflect.ValueOf(v), dims, nil); err != nil {
		return nil, nil, err
	}

	leaves := make([]Leaf, 0, size(dims))
	root := reflect.ValueOf(v)
	forEachIndex(dims, func(index []int) {
		cur := root
		for _, i := range index {
			cur = elem(cur, i)
		}
		var scalar any
		if cur.IsValid() {
			scalar = cur.Interface()
		}
		leaves = append(leaves, NewLeaf(index, scalar))
	})
	return dims, leaves, nil
}

// Encode is Marshal followed by Leaf.Encode for every leaf.
func Encode(v any) ([]int, []string, error) {
	dims, leaves, err := Marshal(v)
	if err != nil {
		return nil, nil, err
	}
	records := make([]string, len(leaves))
	for i, l := range leaves {
		records[i] = l.Encode()
	}
	return dims, records, nil
}

// Unmarshal re-nests leaves into []any values of the given shape. Leaves may
// arrive in any order; their index tuples place them and a repeated index
// overwrites the earlier leaf. When some position of the shape receives no
// leaf the partial value is returned together with ErrIncompleteArray.
func Unmarshal(dims []int, leaves []Leaf) (any, error) {
	if len(dims) == 0 {
		return nil, fmt.Errorf("%w: no dimensions", ErrNotArray)
	}
	root := build(dims)
	filled := make(map[int]struct{}, len(leaves))
	for _, l := range leaves {
		if !fits(l.Index, dims) {
			return nil, &IndexOutOfRangeError{Index: l.Index, Dims: dims}
		}
		scalar, err := l.Scalar()
		if err != nil {
			return nil, err
		}
		cur := root
		for _, i := range l.Index[:len(l.Index)-1] {
			cur = cur[i].([]any)
		}
		cur[l.Index[len(l.Index)-1]] = scalar
		filled[offset(l.Index, dims)] = struct{}{}
	}
	if len(filled) < size(dims) {
		return root, ErrIncompleteArray
	}
	return root, nil
}

// offset is the row-major position of idx within dims.
func offset(idx, dims []int) int {
	off := 0
	for i, n := range idx {
		off = off*dims[i] + n
	}
	return off
}

// Size returns the number of leaves an array of the given shape holds.
func Size(dims []int) int { return size(dims) }

func checkRectangular(v reflect.Value, dims, path []int) error {
	depth := len(path)
	if v.Len() != dims[depth] {
		return &JaggedArrayError{
			Path:   append([]int(nil), path...),
			Dims:   dims,
			Reason: fmt.Sprintf("length %d, expected %d", v.Len(), dims[depth]),
		}
	}
	last := depth == len(dims)-1
	for i := 0; i < v.Len(); i++ {
		child := elem(v, i)
		childPath := append(append([]int(nil), path...), i)
		switch {
		case last && isSequence(child):
			return &JaggedArrayError{Path: childPath, Dims: dims, Reason: "sequence where a scalar was expected"}
		case !last && !isSequence(child):
			return &JaggedArrayError{Path: childPath, Dims: dims, Reason: "scalar where a sequence was expected"}
		case !last:
			if err := checkRectangular(child, dims, childPath); err != nil {
				return err
			}
		}
	}
	return nil
}

func isSequence(v reflect.Value) bool {
	if !v.IsValid() {
		return false
	}
	switch v.Kind() {
	case reflect.Slice:
		return v.Type().Elem().Kind() != reflect.Uint8
	case reflect.Array:
		return true
	default:
		return false
	}
}

// elem returns the i-th element with interface wrappers removed.
func elem(v reflect.Value, i int) reflect.Value {
	e := v.Index(i)
	for e.Kind() == reflect.Interface {
		if e.IsNil() {
			return reflect.Value{}
		}
		e = e.Elem()
	}
	return e
}

func forEachIndex(dims []int, fn func(index []int)) {
	if size(dims) == 0 {
		return
	}
	index := make([]int, len(dims))
	for {
		fn(append([]int(nil), index...))
		axis := len(dims) - 1
		for axis >= 0 {
			index[axis]++
			if index[axis] < dims[axis] {
				break
			}
			index[axis] = 0
			axis--
		}
		if axis < 0 {
			return
		}
	}
}

func size(dims []int) int {
	if len(dims) == 0 {
		return 0
	}
	n := 1
	for _, d := range dims {
		n *= d
	}
	return n
}

func fits(index, dims []int) bool {
	if len(index) != len(dims) {
		return false
	}
	for i, n := range index {
		if n < 0 || n >= dims[i] {
			return false
		}
	}
	return true
}

func build(dims []int) []any {
	out := make([]any, dims[0])
	if len(dims) > 1 {
		for i := range out {
			out[i] = build(dims[1:])
		}
	}
	return out
}
