package tools

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// ExternalToolError reports a tool that could not be started, exited
// non-zero, timed out or was cancelled.
type ExternalToolError struct {
	Tool     string
	ExitCode int // -1 when the process did not exit normally.
	TimedOut bool
	Timeout  time.Duration
	Stderr   string // Tail of the captured stderr.
	Err      error
}

func (e *ExternalToolError) Error() string {
	var b strings.Builder
	switch {
	case e.TimedOut:
		fmt.Fprintf(&b, "%s timed out after %s", e.Tool, e.Timeout)
	case e.ExitCode >= 0:
		fmt.Fprintf(&b, "%s exited with status %d", e.Tool, e.ExitCode)
	default:
		fmt.Fprintf(&b, "%s failed: %v", e.Tool, e.Err)
	}
	if line := lastLine(e.Stderr); line != "" {
		b.WriteString(": ")
		b.WriteString(line)
	}
	return b.String()
}

func (e *ExternalToolError) Unwrap() error { return e.Err }

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimSpace(s)
}

// Pre-compiled regexes classifying stderr of a failed run as transient.
// Checked in order by [RetryState.Advance].
var (
	reFileLocked = regexp.MustCompile(
		`(?i)being used by another process|sharing violation|` +
			`file is locked|cannot open file .* for reading`)

	reResourceBusy = regexp.MustCompile(
		`(?i)resource temporarily unavailable|device or resource busy|too many open files`)
)

// MatchFileLocked reports whether stderr shows the input still held open,
// typically by the copier finishing a transfer.
func MatchFileLocked(stderr string) bool {
	return reFileLocked.MatchString(stderr)
}

// MatchResourceBusy reports whether stderr shows a transient OS resource shortage.
func MatchResourceBusy(stderr string) bool {
	return reResourceBusy.MatchString(stderr)
}
