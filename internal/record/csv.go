package record

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"time"

	"github.com/Jacky0719/Wifi-indoor-localization-with-rtt-and-csi/internal/ranging"
)

// CSVHeader is the first row written by ExportCSV.
var CSVHeader = []string{"Timestamp", "RTT_raw (nSec)", "RTT_est", "Distance (meters)"}

// CSVTimeLayout formats the Timestamp column.
const CSVTimeLayout = "2006-01-02 15:04:05"

// ExportCSV writes every successful record from src as one CSV row and
// returns the number of rows written, header excluded.
func ExportCSV(dst io.Writer, src *Reader) (int, error) {
	w := csv.NewWriter(dst)
	if err := w.Write(CSVHeader); err != nil {
		return 0, err
	}
	rows := 0
	for {
		rec, err := src.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			w.Flush()
			return rows, fmt.Errorf("record: read: %w", err)
		}
		if rec.Kind != ranging.KindSuccess.String() {
			continue
		}
		row := []string{
			rec.Timestamp.Local().Format(CSVTimeLayout),
			strconv.FormatUint(uint64(rec.RTTNs), 10),
			strconv.FormatUint(uint64(rec.RTTEstNs), 10),
			rec.Meters(),
		}
		if err := w.Write(row); err != nil {
			return rows, err
		}
		rows++
	}
	w.Flush()
	return rows, w.Error()
}

var logLinePattern = regexp.MustCompile(
	`FTM Data: Raw RTT = (\d+) nSec, Est RTT = (\d+) nSec, Distance = (\d+)\.(\d{2}) meters`)

// ParseLogLine extracts a successful record from a node log line. The
// record is stamped with at. ok is false when the line carries no
// measurement.
func ParseLogLine(line string, at time.Time) (rec Record, ok bool) {
	m := logLinePattern.FindStringSubmatch(line)
	if m == nil {
		return Record{}, false
	}
	raw, err1 := strconv.ParseUint(m[1], 10, 32)
	est, err2 := strconv.ParseUint(m[2], 10, 32)
	whole, err3 := strconv.ParseUint(m[3], 10, 32)
	frac, err4 := strconv.ParseUint(m[4], 10, 32)
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
		return Record{}, false
	}
	return Record{
		Timestamp:  at.UTC(),
		Kind:       ranging.KindSuccess.String(),
		Status:     "SUCCESS",
		RTTNs:      uint32(raw),
		RTTEstNs:   uint32(est),
		DistanceCm: uint32(whole*100 + frac),
	}, true
}

// ImportLog scans node log output and appends one record per measurement
// line. now stamps each record as it is read; nil means time.Now.
func ImportLog(src io.Reader, dst *Writer, now func() time.Time) (int, error) {
	if now == nil {
		now = time.Now
	}
	scanner := bufio.NewScanner(src)
	n := 0
	for scanner.Scan() {
		rec, ok := ParseLogLine(scanner.Text(), now())
		if !ok {
			continue
		}
		if err := dst.Append(rec); err != nil {
			return n, err
		}
		n++
	}
	return n, scanner.Err()
}
