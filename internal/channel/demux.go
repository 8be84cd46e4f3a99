// SPDX-License-Identifier: MPL-2.0

package channel

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/invowk/scriptwrap/internal/marshal"
)

// ErrIncompleteArray is the sentinel error wrapped by IncompleteArrayError.
var ErrIncompleteArray = marshal.ErrIncompleteArray

type (
	// Scalar is a collected key/value record.
	Scalar struct {
		Key   string
		Value string
	}

	// Array is a reassembled array record.
	Array struct {
		Name string
		Dims []int
		// Value is the re-nested array ([]any at every depth).
		Value any
		// Received counts distinct leaves that fit the announced shape.
		Received int
		// Complete reports whether every announced leaf arrived.
		Complete bool
	}

	// Collected holds everything a Demux extracted, in arrival order.
	Collected struct {
		Scalars []Scalar
		Arrays  []Array
	}

	// IncompleteArrayError reports an array that received fewer leaves than announced.
	IncompleteArrayError struct {
		Name string
		Want int
		Got  int
	}

	// Demux separates protocol records from ordinary output on a shared stream.
	// Non-record lines are written to the passthrough writer byte for byte.
	// A Demux is not safe for concurrent use.
	Demux struct {
		out       io.Writer
		logger    *log.Logger
		collected Collected
		pending   *pendingArray
		errs      []error
	}

	pendingArray struct {
		name   string
		dims   []int
		leaves map[string]marshal.Leaf
		order  []string
	}
)

// Error implements the error interface.
func (e *IncompleteArrayError) Error() string {
	return fmt.Sprintf("array %q is incomplete: received %d of %d leaves", e.Name, e.Got, e.Want)
}

// Unwrap returns ErrIncompleteArray so callers can use errors.Is for programmatic detection.
func (e *IncompleteArrayError) Unwrap() error { return ErrIncompleteArray }

// Lookup returns the last value recorded for key.
func (c Collected) Lookup(key string) (string, bool) {
	for i := len(c.Scalars) - 1; i >= 0; i-- {
		if c.Scalars[i].Key == key {
			return c.Scalars[i].Value, true
		}
	}
	return "", false
}

// Array returns the last array recorded under name.
func (c Collected) Array(name string) (Array, bool) {
	for i := len(c.Arrays) - 1; i >= 0; i-- {
		if c.Arrays[i].Name == name {
			return c.Arrays[i], true
		}
	}
	return Array{}, false
}

// NewDemux returns a Demux passing text lines to out. A nil out discards them;
// a nil logger discards diagnostics.
func NewDemux(out io.Writer, logger *log.Logger) *Demux {
	if out == nil {
		out = io.Discard
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Demux{out: out, logger: logger}
}

// Consume reads r to EOF, feeding every line (terminator included) to Feed.
// The final line does not need a terminator.
func (d *Demux) Consume(r io.Reader) error {
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		if line != "" {
			if ferr := d.Feed(line); ferr != nil {
				return ferr
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read channel stream: %w", err)
		}
	}
}

// Feed processes one line. The line may carry its terminator, which is
// preserved when the line is passed through.
func (d *Demux) Feed(line string) error {
	rec := ParseLine(line)
	switch rec.Kind {
	case KindScalar:
		d.collected.Scalars = append(d.collected.Scalars, Scalar{Key: rec.Key, Value: rec.Value})
	case KindArrayHeader:
		d.flush()
		d.pending = &pendingArray{name: rec.Name, dims: rec.Dims, leaves: map[string]marshal.Leaf{}}
	case KindArrayLeaf:
		d.addLeaf(rec.Leaf)
	default:
		if _, err := io.WriteString(d.out, line); err != nil {
			return fmt.Errorf("pass through output: %w", err)
		}
	}
	return nil
}

// Close finalizes any array still being collected and returns the collected
// records. The error joins one IncompleteArrayError per short array; the
// records are valid either way.
func (d *Demux) Close() (Collected, error) {
	d.flush()
	return d.collected, errors.Join(d.errs...)
}

func (d *Demux) addLeaf(leaf marshal.Leaf) {
	if d.pending == nil {
		d.logger.Warn("dropping array leaf without header", "index", leaf.IndexString())
		return
	}
	if !fits(leaf.Index, d.pending.dims) {
		d.logger.Warn("skipping array leaf outside announced shape",
			"array", d.pending.name, "index", leaf.IndexString(), "dims", marshal.JoinInts(d.pending.dims))
		return
	}
	key := leaf.IndexString()
	if _, seen := d.pending.leaves[key]; !seen {
		d.pending.order = append(d.pending.order, key)
	}
	d.pending.leaves[key] = leaf
}

func (d *Demux) flush() {
	p := d.pending
	if p == nil {
		return
	}
	d.pending = nil

	leaves := make([]marshal.Leaf, 0, len(p.order))
	for _, k := range p.order {
		leaves = append(leaves, p.leaves[k])
	}

	arr := Array{Name: p.name, Dims: p.dims, Received: len(leaves)}
	want := marshal.Size(p.dims)
	switch {
	case len(p.dims) == 0:
		d.logger.Error("array header without dimensions", "array", p.name)
		return
	case want == 0:
		arr.Value, _ = marshal.Unmarshal(p.dims, nil)
		arr.Complete = true
	default:
		value, err := marshal.Unmarshal(p.dims, leaves)
		switch {
		case errors.Is(err, marshal.ErrIncompleteArray):
			arr.Value = value
			d.logger.Error("array is incomplete", "array", p.name, "received", len(leaves), "expected", want)
			d.errs = append(d.errs, &IncompleteArrayError{Name: p.name, Want: want, Got: len(leaves)})
		case err != nil:
			d.logger.Error("array could not be reassembled", "array", p.name, "error", err)
			d.errs = append(d.errs, fmt.Errorf("array %q: %w", p.name, err))
			return
		default:
			arr.Value = value
			arr.Complete = true
		}
	}
	d.collected.Arrays = append(d.collected.Arrays, arr)
}

func fits(index, dims []int) bool {
	if len(index) != len(dims) {
		return false
	}
	for i, n := range index {
		if n >= dims[i] {
			return false
		}
	}
	return true
}

// Strip returns s with every protocol line removed. It is a convenience for
// tests and tools that only care about the human-readable output.
func Strip(s string) string {
	var b strings.Builder
	for line := range strings.Lines(s) {
		if !ParseLine(line).IsRecord() {
			b.WriteString(line)
		}
	}
	return b.String()
}
