// SPDX-License-Identifier: MPL-2.0

package marshal

import (
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
)

// Sentinel separates the fields of an array record.
const Sentinel = "_A_0_R_"

// ErrMalformedLeaf is the sentinel error wrapped by MalformedLeafError.
var ErrMalformedLeaf = errors.New("malformed leaf record")

type (
	// Leaf is one scalar of a flattened array, tagged with its position and category.
	Leaf struct {
		// Index is the row-major index tuple of the scalar.
		Index []int
		// Category is the scalar kind.
		Category Category
		// Value is the scalar's string form. Empty leaves carry "".
		Value string
	}

	// MalformedLeafError is returned when a leaf record cannot be parsed.
	MalformedLeafError struct {
		Record string
		Reason string
	}
)

// Error implements the error interface.
func (e *MalformedLeafError) Error() string {
	return fmt.Sprintf("malformed leaf record %q: %s", e.Record, e.Reason)
}

// Unwrap returns ErrMalformedLeaf so callers can use errors.Is for programmatic detection.
func (e *MalformedLeafError) Unwrap() error { return ErrMalformedLeaf }

// NewLeaf builds the leaf for scalar v at index.
func NewLeaf(index []int, v any) Leaf {
	cat := Classify(v)
	return Leaf{Index: index, Category: cat, Value: formatScalar(cat, v)}
}

// IndexString returns the comma-joined index tuple.
func (l Leaf) IndexString() string {
	return JoinInts(l.Index)
}

// Text returns the unencoded record text.
func (l Leaf) Text() string {
	return l.IndexString() + Sentinel + l.Category.String() + Sentinel + l.Value
}

// Encode returns the base64 form of the record text.
func (l Leaf) Encode() string {
	return base64.StdEncoding.EncodeToString([]byte(l.Text()))
}

// Scalar converts the leaf back to a typed Go value: string, int64 (uint64 when
// it does not fit), float64, bool, or nil.
func (l Leaf) Scalar() (any, error) {
	switch l.Category {
	case CategoryEmpty:
		return nil, nil
	case CategoryString:
		return l.Value, nil
	case CategoryInteger:
		if n, err := strconv.ParseInt(l.Value, 10, 64); err == nil {
			return n, nil
		}
		n, err := strconv.ParseUint(l.Value, 10, 64)
		if err != nil {
			return nil, &MalformedLeafError{Record: l.Text(), Reason: "integer value does not parse"}
		}
		return n, nil
	case CategoryReal:
		f, err := strconv.ParseFloat(l.Value, 64)
		if err != nil {
			return nil, &MalformedLeafError{Record: l.Text(), Reason: "real value does not parse"}
		}
		return f, nil
	case CategoryLogic:
		b, err := strconv.ParseBool(l.Value)
		if err != nil {
			return nil, &MalformedLeafError{Record: l.Text(), Reason: "logic value does not parse"}
		}
		return b, nil
	default:
		return nil, &InvalidCategoryError{Value: l.Category.String()}
	}
}

// DecodeLeaf reverses Encode.
func DecodeLeaf(encoded string) (Leaf, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return Leaf{}, &MalformedLeafError{Record: encoded, Reason: "not base64"}
	}
	return ParseLeaf(string(raw))
}

// ParseLeaf parses the unencoded record text. The value field is the
// remainder after the second sentinel, so it may itself contain the sentinel.
func ParseLeaf(text string) (Leaf, error) {
	parts := strings.SplitN(text, Sentinel, 3)
	if len(parts) != 3 {
		return Leaf{}, &MalformedLeafError{Record: text, Reason: "expected index, category and value fields"}
	}
	index, err := SplitInts(parts[0])
	if err != nil {
		return Leaf{}, &MalformedLeafError{Record: text, Reason: err.Error()}
	}
	cat, err := ParseCategory(parts[1])
	if err != nil {
		return Leaf{}, &MalformedLeafError{Record: text, Reason: err.Error()}
	}
	return Leaf{Index: index, Category: cat, Value: parts[2]}, nil
}

// JoinInts renders ints as a comma-joined list ("1,0").
func JoinInts(ns []int) string {
	parts := make([]string, len(ns))
	for i, n := range ns {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ",")
}

// SplitInts parses a comma-joined list of non-negative ints.
func SplitInts(s string) ([]int, error) {
	if s == "" {
		return nil, errors.New("empty index list")
	}
	fields := strings.Split(s, ",")
	ns := make([]int, len(fields))
	for i, f := range fields {
		n, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil || n < 0 {
			return nil, fmt.Errorf("bad index component %q", f)
		}
		ns[i] = n
	}
	return ns, nil
}

func formatScalar(cat Category, v any) string {
	if v == nil {
		return ""
	}
	rv := reflect.ValueOf(v)
	switch cat {
	case CategoryString:
		if rv.Kind() == reflect.Slice {
			return string(rv.Bytes())
		}
		return rv.String()
	case CategoryInteger:
		if rv.CanInt() {
			return strconv.FormatInt(rv.Int(), 10)
		}
		return strconv.FormatUint(rv.Uint(), 10)
	case CategoryReal:
		f := rv.Float()
		if math.IsInf(f, 0) || math.IsNaN(f) {
			return strconv.FormatFloat(f, 'g', -1, 64)
		}
		bits := 64
		if rv.Kind() == reflect.Float32 {
			bits = 32
		}
		return strconv.FormatFloat(f, 'g', -1, bits)
	case CategoryLogic:
		return strconv.FormatBool(rv.Bool())
	default:
		return fmt.Sprint(v)
	}
}

// Format renders a scalar the way a leaf would carry it.
func Format(v any) string {
	return formatScalar(Classify(v), v)
}
