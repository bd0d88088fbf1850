package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/Jacky0719/Wifi-indoor-localization-with-rtt-and-csi/internal/record"
)

// RunShow runs the show command.
func RunShow(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("show", stderr)
	in := fs.String("in", DefaultRecordPath, "record file to read")
	format := fs.String("format", "text", "output format: text or json")
	limit := fs.Int("limit", 0, "show at most this many records (0 shows all)")
	var ff filterFlags
	ff.register(fs)
	if err := fs.Parse(args); err != nil {
		return exitCommandError
	}
	if *format != "text" && *format != "json" {
		fmt.Fprintf(stderr, "Error: unknown format %q\n", *format)
		return exitCommandError
	}
	filter, err := ff.filter()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitCommandError
	}

	src, err := record.Open(*in, filter)
	if err != nil {
		fmt.Fprintf(stderr, "Error opening records: %v\n", err)
		return exitCommandError
	}
	defer src.Close()

	var recs []record.Record
	for *limit <= 0 || len(recs) < *limit {
		rec, err := src.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			fmt.Fprintf(stderr, "Error reading records: %v\n", err)
			return exitCommandError
		}
		recs = append(recs, rec)
	}

	if *format == "json" {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(recs); err != nil {
			fmt.Fprintf(stderr, "Error writing output: %v\n", err)
			return exitCommandError
		}
	} else {
		tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "TIME\tPEER\tKIND\tSTATUS\tRTT (ns)\tDISTANCE (m)")
		for _, r := range recs {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
				r.Timestamp.Local().Format(time.RFC3339), r.Peer, r.Kind, r.Status, r.RTTNs, r.Meters())
		}
		tw.Flush()
	}

	if len(recs) == 0 {
		return exitNoData
	}
	return exitSuccess
}
