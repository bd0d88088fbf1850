package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/Jacky0719/Wifi-indoor-localization-with-rtt-and-csi/internal/record"
)

// RunExport runs the export command.
func RunExport(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("export", stderr)
	in := fs.String("in", DefaultRecordPath, "record file to read")
	out := fs.String("out", "", "CSV file to write (default stdout)")
	var ff filterFlags
	ff.register(fs)
	if err := fs.Parse(args); err != nil {
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

	dst := stdout
	if *out != "" && *out != "-" {
		f, err := os.Create(*out)
		if err != nil {
			fmt.Fprintf(stderr, "Error creating output: %v\n", err)
			return exitCommandError
		}
		defer f.Close()
		dst = f
	}

	rows, err := record.ExportCSV(dst, src)
	if err != nil {
		fmt.Fprintf(stderr, "Error exporting: %v\n", err)
		return exitCommandError
	}
	if *out != "" && *out != "-" {
		fmt.Fprintf(stdout, "Exported %d measurements %s -> %s\n", rows, *in, *out)
	}
	if rows == 0 {
		return exitNoData
	}
	return exitSuccess
}
