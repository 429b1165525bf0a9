// Package status keeps the authoritative record of which RAW files have
// been processed. The record lives in a tab-separated status log that is
// rewritten atomically after every change, so a crash mid-run leaves an
// accurate record to resume from.
package status

import (
	"fmt"
	"strings"
	"time"
)

// Status is the processing state of one RAW file.
type Status int

const (
	New Status = iota
	Processing
	Completed
	Failed
)

var statusNames = [...]string{"new", "processing", "completed", "failed"}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return fmt.Sprintf("status(%d)", int(s))
	}
	return statusNames[s]
}

// ParseStatus converts a status log field to a Status.
func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "new":
		return New, nil
	case "processing":
		return Processing, nil
	case "completed":
		return Completed, nil
	case "failed":
		return Failed, nil
	}
	return 0, fmt.Errorf("unknown status %q", s)
}

// Pending reports whether a file in this state should be processed on the
// next run. Failed files are retried.
func (s Status) Pending() bool {
	return s == New || s == Failed
}

// allowed lists the legal transitions. Completed is terminal.
var allowed = map[Status][]Status{
	New:        {Processing},
	Processing: {Completed, Failed},
	Failed:     {Processing},
}

// CanTransition reports whether from -> to is a legal transition.
func CanTransition(from, to Status) bool {
	for _, s := range allowed[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Record is one line of the status log.
type Record struct {
	Name       string
	Status     Status
	ReportPath string
	Reason     string // set while Failed
	UpdatedAt  time.Time
}
