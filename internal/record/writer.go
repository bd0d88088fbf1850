package record

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fxamacker/cbor/v2"
)

// ErrClosed is returned by Append after Close.
var ErrClosed = errors.New("record: writer closed")

// Writer appends records to a file. It is safe for concurrent use.
type Writer struct {
	mu      sync.Mutex
	path    string
	file    *os.File
	encoder *cbor.Encoder
	count   int
	closed  bool
}

// Create opens path for appending, creating the file and its directory
// when missing.
func Create(path string) (*Writer, error) {
	if path == "" {
		return nil, errors.New("record: path required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create record directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &Writer{path: path, file: f, encoder: NewEncoder(f)}, nil
}

// Append writes r to the file.
func (w *Writer) Append(r Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrClosed
	}
	if err := w.encoder.Encode(r); err != nil {
		return fmt.Errorf("record: encode: %w", err)
	}
	w.count++
	return nil
}

// Count returns how many records this writer appended.
func (w *Writer) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}

// Path returns the record file path.
func (w *Writer) Path() string {
	return w.path
}

// Close closes the file. It is safe to call Close more than once.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	return w.file.Close()
}
