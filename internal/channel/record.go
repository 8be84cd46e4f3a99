// SPDX-License-Identifier: MPL-2.0

package channel

import (
	"encoding/base64"
	"strings"

	"github.com/invowk/scriptwrap/internal/marshal"
)

// Sentinels prefixing protocol lines.
const (
	ScalarSentinel = "_D_0_M_"
	ArraySentinel  = marshal.Sentinel
)

// Record kinds.
const (
	// KindText is a line that is not a protocol record.
	KindText Kind = iota
	// KindScalar is a key/value record.
	KindScalar
	// KindArrayHeader announces an array's name and shape.
	KindArrayHeader
	// KindArrayLeaf carries one scalar of the announced array.
	KindArrayLeaf
)

type (
	// Kind classifies a parsed line.
	Kind uint8

	// Record is the parsed form of one line.
	Record struct {
		Kind Kind
		// Raw is the line as received, without its line terminator.
		Raw string
		// Key and Value are set for KindScalar.
		Key   string
		Value string
		// Name and Dims are set for KindArrayHeader.
		Name string
		Dims []int
		// Leaf is set for KindArrayLeaf.
		Leaf marshal.Leaf
	}
)

// String returns a short label for the kind.
func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindArrayHeader:
		return "array-header"
	case KindArrayLeaf:
		return "array-leaf"
	default:
		return "text"
	}
}

// IsRecord reports whether the record is protocol data rather than text.
func (r Record) IsRecord() bool { return r.Kind != KindText }

// ParseLine classifies a single line. It never fails: anything that is not a
// well-formed record comes back as KindText.
func ParseLine(line string) Record {
	line = strings.TrimRight(line, "\r\n")
	text := Record{Kind: KindText, Raw: line}

	switch {
	case strings.HasPrefix(line, ScalarSentinel):
		payload, ok := decode(line[len(ScalarSentinel):])
		if !ok {
			return text
		}
		key, value, found := strings.Cut(payload, ScalarSentinel)
		if !found {
			return text
		}
		return Record{Kind: KindScalar, Raw: line, Key: key, Value: value}

	case strings.HasPrefix(line, ArraySentinel):
		payload, ok := decode(line[len(ArraySentinel):])
		if !ok || !strings.Contains(payload, ArraySentinel) {
			return text
		}
		// A header has two fields, a leaf three or more (the leaf value may
		// itself contain the sentinel).
		if strings.Count(payload, ArraySentinel) == 1 {
			name, rawDims, _ := strings.Cut(payload, ArraySentinel)
			dims, err := marshal.SplitInts(rawDims)
			if err != nil {
				return text
			}
			return Record{Kind: KindArrayHeader, Raw: line, Name: name, Dims: dims}
		}
		leaf, err := marshal.ParseLeaf(payload)
		if err != nil {
			return text
		}
		return Record{Kind: KindArrayLeaf, Raw: line, Leaf: leaf}
	}

	return text
}

// ScalarLine renders a scalar record line without its terminator.
func ScalarLine(key, value string) string {
	return ScalarSentinel + encode(key+ScalarSentinel+value)
}

// ArrayHeaderLine renders an array header line without its terminator.
func ArrayHeaderLine(name string, dims []int) string {
	return ArraySentinel + encode(name+ArraySentinel+marshal.JoinInts(dims))
}

// ArrayLeafLine renders one leaf line without its terminator.
func ArrayLeafLine(leaf marshal.Leaf) string {
	return ArraySentinel + leaf.Encode()
}

func encode(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}

func decode(s string) (string, bool) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return "", false
	}
	return string(raw), true
}
