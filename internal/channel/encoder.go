// SPDX-License-Identifier: MPL-2.0

package channel

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/invowk/scriptwrap/internal/marshal"
)

// ErrInvalidKey is the sentinel error wrapped by InvalidKeyError.
var ErrInvalidKey = errors.New("invalid record key")

type (
	// Encoder writes protocol records to a stream, one line per record.
	// It is safe for concurrent use; each record line is written atomically
	// with respect to other Encoder calls.
	Encoder struct {
		mu sync.Mutex
		w  io.Writer
	}

	// InvalidKeyError is returned when a scalar key or array name cannot be
	// carried by the protocol.
	InvalidKeyError struct {
		Key    string
		Reason string
	}

	// WriteError wraps an I/O failure on the underlying stream.
	WriteError struct {
		Line string
		Err  error
	}
)

// Error implements the error interface.
func (e *InvalidKeyError) Error() string {
	return fmt.Sprintf("invalid record key %q: %s", e.Key, e.Reason)
}

// Unwrap returns ErrInvalidKey so callers can use errors.Is for programmatic detection.
func (e *InvalidKeyError) Unwrap() error { return ErrInvalidKey }

// Error implements the error interface.
func (e *WriteError) Error() string {
	return fmt.Sprintf("write channel record: %v", e.Err)
}

// Unwrap returns the underlying I/O error.
func (e *WriteError) Unwrap() error { return e.Err }

// NewEncoder returns an Encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// WriteScalar emits one scalar record.
func (e *Encoder) WriteScalar(key, value string) error {
	if err := validateKey(key, ScalarSentinel); err != nil {
		return err
	}
	return e.writeLines(ScalarLine(key, value))
}

// WriteArray marshals v and emits its header line followed by one line per
// leaf in row-major order.
func (e *Encoder) WriteArray(name string, v any) error {
	if err := validateKey(name, ArraySentinel); err != nil {
		return err
	}
	dims, leaves, err := marshal.Marshal(v)
	if err != nil {
		return fmt.Errorf("array %q: %w", name, err)
	}
	lines := make([]string, 0, len(leaves)+1)
	lines = append(lines, ArrayHeaderLine(name, dims))
	for _, l := range leaves {
		lines = append(lines, ArrayLeafLine(l))
	}
	return e.writeLines(lines...)
}

func (e *Encoder) writeLines(lines ...string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, line := range lines {
		if _, err := io.WriteString(e.w, line+"\n"); err != nil {
			return &WriteError{Line: line, Err: err}
		}
	}
	return nil
}

func validateKey(key, sentinel string) error {
	switch {
	case key == "":
		return &InvalidKeyError{Key: key, Reason: "must not be empty"}
	case strings.Contains(key, sentinel):
		return &InvalidKeyError{Key: key, Reason: "must not contain " + sentinel}
	default:
		return nil
	}
}
