// Package record stores ranging outcomes in a compact CBOR record file and
// converts them to CSV.
//
// Each record is one CBOR map with integer keys, appended to the file
// back to back, so a file can be read as a stream while it is still being
// written.
package record

import (
	"fmt"
	"io"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/Jacky0719/Wifi-indoor-localization-with-rtt-and-csi/internal/ranging"
)

// Record is one ranging session as stored on disk.
type Record struct {
	Timestamp  time.Time `cbor:"1,keyasint"`
	SessionID  string    `cbor:"2,keyasint,omitempty"`
	Peer       string    `cbor:"3,keyasint,omitempty"`
	Kind       string    `cbor:"4,keyasint"`
	Status     string    `cbor:"5,keyasint,omitempty"`
	RTTNs      uint32    `cbor:"6,keyasint,omitempty"`
	RTTEstNs   uint32    `cbor:"7,keyasint,omitempty"`
	DistanceCm uint32    `cbor:"8,keyasint,omitempty"`
	Entries    int       `cbor:"9,keyasint,omitempty"`
	Channel    uint8     `cbor:"10,keyasint,omitempty"`
}

// FromOutcome converts a session outcome into a record stamped with the
// session finish time.
func FromOutcome(out ranging.Outcome) Record {
	r := Record{
		Timestamp: out.Finished.UTC(),
		SessionID: out.SessionID.String(),
		Peer:      out.Peer.String(),
		Kind:      out.Kind.String(),
		Channel:   out.Channel,
		Entries:   out.Entries,
	}
	if out.Kind != ranging.KindTimeout {
		r.Status = out.Status.String()
	}
	if out.Kind == ranging.KindSuccess {
		r.RTTNs = out.RTT
		r.RTTEstNs = out.RTTEst
		r.DistanceCm = out.Distance
	}
	return r
}

// Meters renders the distance with two decimals.
func (r Record) Meters() string {
	return fmt.Sprintf("%d.%02d", r.DistanceCm/100, r.DistanceCm%100)
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encOpts := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeRFC3339Nano,
	}
	encMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create record CBOR encoder mode: %v", err))
	}

	decOpts := cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyQuiet,
		IndefLength: cbor.IndefLengthAllowed,
	}
	decMode, err = decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create record CBOR decoder mode: %v", err))
	}
}

// Encode encodes a single record.
func Encode(r Record) ([]byte, error) {
	return encMode.Marshal(r)
}

// Decode decodes a single record.
func Decode(data []byte) (Record, error) {
	var r Record
	if err := decMode.Unmarshal(data, &r); err != nil {
		return Record{}, err
	}
	return r, nil
}

// NewEncoder returns a record encoder writing to w.
func NewEncoder(w io.Writer) *cbor.Encoder {
	return encMode.NewEncoder(w)
}

// NewDecoder returns a record decoder reading from r.
func NewDecoder(r io.Reader) *cbor.Decoder {
	return decMode.NewDecoder(r)
}
