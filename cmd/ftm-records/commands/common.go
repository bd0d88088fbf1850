// Package commands implements the ftm-records subcommands. Each Run
// function parses its own flags and returns the process exit code.
package commands

import (
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/Jacky0719/Wifi-indoor-localization-with-rtt-and-csi/internal/adapter"
	"github.com/Jacky0719/Wifi-indoor-localization-with-rtt-and-csi/internal/record"
)

const (
	exitSuccess      = 0
	exitCommandError = 1
	exitNoData       = 2
)

// DefaultRecordPath is the record file written by a node with the default
// configuration.
const DefaultRecordPath = "logs/ranging.cbor"

func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

type filterFlags struct {
	peer  string
	kind  string
	since string
	until string
}

func (f *filterFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.peer, "peer", "", "only records for this peer address")
	fs.StringVar(&f.kind, "kind", "", "only records of this kind (success, failure, timeout)")
	fs.StringVar(&f.since, "since", "", "only records at or after this RFC 3339 time")
	fs.StringVar(&f.until, "until", "", "only records before this RFC 3339 time")
}

func (f *filterFlags) filter() (record.Filter, error) {
	var out record.Filter
	if f.peer != "" {
		mac, err := adapter.ParseHardwareAddr(f.peer)
		if err != nil {
			return out, err
		}
		out.Peer = mac.String()
	}
	switch f.kind {
	case "", "success", "failure", "timeout":
		out.Kind = f.kind
	default:
		return out, fmt.Errorf("unknown kind %q", f.kind)
	}
	var err error
	if f.since != "" {
		if out.Since, err = time.Parse(time.RFC3339, f.since); err != nil {
			return out, fmt.Errorf("since: %w", err)
		}
	}
	if f.until != "" {
		if out.Until, err = time.Parse(time.RFC3339, f.until); err != nil {
			return out, fmt.Errorf("until: %w", err)
		}
	}
	return out, nil
}
