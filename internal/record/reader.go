package record

import (
	"errors"
	"io"
	"os"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Filter selects records. Zero fields match everything.
type Filter struct {
	Peer string
	Kind string

	// Since matches records at or after this time.
	Since time.Time
	// Until matches records before this time.
	Until time.Time
}

func (f Filter) matches(r Record) bool {
	if f.Peer != "" && r.Peer != f.Peer {
		return false
	}
	if f.Kind != "" && r.Kind != f.Kind {
		return false
	}
	if !f.Since.IsZero() && r.Timestamp.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && !r.Timestamp.Before(f.Until) {
		return false
	}
	return true
}

// Reader streams records from a record file.
type Reader struct {
	closer  io.Closer
	decoder *cbor.Decoder
	filter  Filter
}

// Open opens a record file for reading.
func Open(path string, filter Filter) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	r := NewReader(f, filter)
	r.closer = f
	return r, nil
}

// NewReader reads records from src.
func NewReader(src io.Reader, filter Filter) *Reader {
	return &Reader{decoder: NewDecoder(src), filter: filter}
}

// Next returns the next matching record, or io.EOF at the end of the
// stream.
func (r *Reader) Next() (Record, error) {
	for {
		var rec Record
		if err := r.decoder.Decode(&rec); err != nil {
			if errors.Is(err, io.EOF) {
				return Record{}, io.EOF
			}
			return Record{}, err
		}
		if r.filter.matches(rec) {
			return rec, nil
		}
	}
}

// All drains the reader.
func (r *Reader) All() ([]Record, error) {
	var out []Record
	for {
		rec, err := r.Next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, rec)
	}
}

// Close closes the underlying file, if any.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}
