// ftm-records converts, imports and lists ranging records and finds nodes
// on the local network.
package main

import (
	"fmt"
	"os"

	"github.com/Jacky0719/Wifi-indoor-localization-with-rtt-and-csi/cmd/ftm-records/commands"
)

const (
	exitSuccess      = 0
	exitCommandError = 1
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(exitCommandError)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var exitCode int
	switch cmd {
	case "export":
		exitCode = commands.RunExport(args, os.Stdout, os.Stderr)
	case "import":
		exitCode = commands.RunImport(args, os.Stdin, os.Stdout, os.Stderr)
	case "show":
		exitCode = commands.RunShow(args, os.Stdout, os.Stderr)
	case "discover":
		exitCode = commands.RunDiscover(args, os.Stdout, os.Stderr)
	case "help", "-h", "--help":
		printUsage()
		exitCode = exitSuccess
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		exitCode = exitCommandError
	}

	os.Exit(exitCode)
}

func printUsage() {
	fmt.Println(`ftm-records - FTM ranging record tool

Usage:
  ftm-records <command> [options]

Commands:
  export     Write successful measurements as CSV
  import     Append measurements parsed from node log output
  show       List records
  discover   Browse the local network for FTM nodes

Examples:
  ftm-records export -in logs/ranging.cbor -out ftm_data.csv
  ftm-records import -out logs/ranging.cbor < initiator.log
  ftm-records show -kind timeout -format json
  ftm-records discover -timeout 5s`)
}
