// SPDX-License-Identifier: MPL-2.0

package session

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/invowk/scriptwrap/pkg/types"
)

// Entry kinds.
const (
	// EntryLiteral is a plain string value.
	EntryLiteral EntryKind = iota
	// EntryFile is an absolute filesystem path.
	EntryFile
)

var (
	// ErrDrained is returned when the table is written or drained after it
	// has been drained.
	ErrDrained = errors.New("data table already drained")
	// ErrInvalidKey is the sentinel error wrapped by InvalidKeyError.
	ErrInvalidKey = errors.New("invalid data key")
)

type (
	// EntryKind tells a literal value from a file reference.
	EntryKind uint8

	// Entry is one Data-Management record.
	Entry struct {
		Key   string
		Kind  EntryKind
		Value string
	}

	// DataTable maps output keys to literal values or file paths. Entries are
	// written by fragments and drained exactly once at cleanup. Host inputs
	// sit in a separate read-only layer consulted by Get.
	// It is safe for concurrent use.
	DataTable struct {
		mu      sync.Mutex
		baseDir string
		order   []string
		entries map[string]Entry
		inputs  map[string]Entry
		drained bool
	}

	// InvalidKeyError is returned for an empty key.
	InvalidKeyError struct {
		Key string
	}
)

// Error implements the error interface.
func (e *InvalidKeyError) Error() string {
	return fmt.Sprintf("invalid data key %q", e.Key)
}

// Unwrap returns ErrInvalidKey so callers can use errors.Is for programmatic detection.
func (e *InvalidKeyError) Unwrap() error { return ErrInvalidKey }

// String returns "literal" or "file".
func (k EntryKind) String() string {
	if k == EntryFile {
		return "file"
	}
	return "literal"
}

// NewDataTable returns an empty table. Relative file paths are resolved
// against baseDir (the current directory when empty).
func NewDataTable(baseDir string) *DataTable {
	return &DataTable{
		baseDir: baseDir,
		entries: make(map[string]Entry),
		inputs:  make(map[string]Entry),
	}
}

// Set records a literal value for key.
func (t *DataTable) Set(key, value string) error {
	return t.put(Entry{Key: key, Kind: EntryLiteral, Value: value})
}

// SetFile records a file reference for key. The path is made absolute.
func (t *DataTable) SetFile(key, path string) error {
	abs, err := t.resolve(path)
	if err != nil {
		return err
	}
	return t.put(Entry{Key: key, Kind: EntryFile, Value: abs})
}

// SetInput adds a host-supplied entry to the read-only input layer.
func (t *DataTable) SetInput(e Entry) error {
	if e.Key == "" {
		return &InvalidKeyError{Key: e.Key}
	}
	if e.Kind == EntryFile {
		abs, err := t.resolve(e.Value)
		if err != nil {
			return err
		}
		e.Value = abs
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inputs[e.Key] = e
	return nil
}

// Get returns the entry for key, preferring fragment-written entries over
// host inputs.
func (t *DataTable) Get(key string) (Entry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.entries[key]; ok {
		return e, true
	}
	e, ok := t.inputs[key]
	return e, ok
}

// Entries returns the fragment-written entries in insertion order without
// draining them.
func (t *DataTable) Entries() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshot()
}

// Drain returns the fragment-written entries in insertion order and seals
// the table. A second Drain returns ErrDrained.
func (t *DataTable) Drain() ([]Entry, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.drained {
		return nil, ErrDrained
	}
	t.drained = true
	return t.snapshot(), nil
}

// Drained reports whether Drain has been called.
func (t *DataTable) Drained() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.drained
}

func (t *DataTable) put(e Entry) error {
	if e.Key == "" {
		return &InvalidKeyError{Key: e.Key}
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.drained {
		return fmt.Errorf("set %q: %w", e.Key, ErrDrained)
	}
	if _, ok := t.entries[e.Key]; !ok {
		t.order = append(t.order, e.Key)
	}
	t.entries[e.Key] = e
	return nil
}

func (t *DataTable) snapshot() []Entry {
	out := make([]Entry, 0, len(t.order))
	for _, k := range slices.Clone(t.order) {
		out = append(out, t.entries[k])
	}
	return out
}

func (t *DataTable) resolve(path string) (string, error) {
	p := types.FilesystemPath(path)
	if err := p.Validate(); err != nil {
		return "", err
	}
	abs, err := p.Resolve(t.baseDir)
	if err != nil {
		return "", err
	}
	return string(abs), nil
}
