package status

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Parse reads status log records from r. Fields are tab-separated:
// name, status, optional report path, optional failure reason. Further
// fields are ignored, as are blank lines. A name that appears twice keeps
// its first position and takes the later status.
func Parse(r io.Reader) ([]Record, error) {
	var recs []Record
	index := make(map[string]int)

	sc := bufio.NewScanner(r)
	n := 0
	for sc.Scan() {
		n++
		line := strings.TrimRight(sc.Text(), "\r\n")
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 2 {
			return nil, &LineError{Line: n, Err: errors.New("want at least name and status")}
		}
		name := strings.TrimSpace(fields[0])
		if name == "" {
			return nil, &LineError{Line: n, Err: errors.New("empty file name")}
		}
		st, err := ParseStatus(fields[1])
		if err != nil {
			return nil, &LineError{Line: n, Err: err}
		}
		rec := Record{Name: name, Status: st}
		if len(fields) > 2 {
			rec.ReportPath = strings.TrimSpace(fields[2])
		}
		if len(fields) > 3 {
			rec.Reason = strings.TrimSpace(fields[3])
		}
		if i, ok := index[name]; ok {
			recs[i] = rec
			continue
		}
		index[name] = len(recs)
		recs = append(recs, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read status log: %w", err)
	}
	return recs, nil
}

// Write encodes records in status log format.
func Write(w io.Writer, recs []Record) error {
	bw := bufio.NewWriter(w)
	for _, r := range recs {
		fields := []string{r.Name, r.Status.String()}
		if r.ReportPath != "" || r.Reason != "" {
			fields = append(fields, r.ReportPath)
		}
		if r.Reason != "" {
			fields = append(fields, sanitizeField(r.Reason))
		}
		if _, err := bw.WriteString(strings.Join(fields, "\t") + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// sanitizeField keeps a free-text value on one line and inside one field.
func sanitizeField(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
