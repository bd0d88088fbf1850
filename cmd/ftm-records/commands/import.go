package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/Jacky0719/Wifi-indoor-localization-with-rtt-and-csi/internal/record"
)

// RunImport runs the import command. Log lines are read from -in, or from
// stdin when -in is empty.
func RunImport(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := newFlagSet("import", stderr)
	in := fs.String("in", "", "log file to read (default stdin)")
	out := fs.String("out", DefaultRecordPath, "record file to append to")
	if err := fs.Parse(args); err != nil {
		return exitCommandError
	}

	src := stdin
	if *in != "" && *in != "-" {
		f, err := os.Open(*in)
		if err != nil {
			fmt.Fprintf(stderr, "Error opening log: %v\n", err)
			return exitCommandError
		}
		defer f.Close()
		src = f
	}

	dst, err := record.Create(*out)
	if err != nil {
		fmt.Fprintf(stderr, "Error opening records: %v\n", err)
		return exitCommandError
	}
	n, err := record.ImportLog(src, dst, nil)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error importing: %v\n", err)
		return exitCommandError
	}

	fmt.Fprintf(stdout, "Imported %d measurements into %s\n", n, *out)
	if n == 0 {
		return exitNoData
	}
	return exitSuccess
}
