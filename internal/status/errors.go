package status

import (
	"errors"
	"fmt"
)

// ErrUnknownFile is returned when a transition names a file the store does
// not hold.
var ErrUnknownFile = errors.New("file not in status log")

// MissingLogError is returned by [Load] when the status log does not exist.
type MissingLogError struct {
	Path string
	Err  error
}

func (e *MissingLogError) Error() string { return "status log not found: " + e.Path }
func (e *MissingLogError) Unwrap() error { return e.Err }

// InvalidTransitionError reports an out-of-order status change.
type InvalidTransitionError struct {
	Name string
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition for %s: %s -> %s", e.Name, e.From, e.To)
}

// LineError reports a malformed status log line.
type LineError struct {
	Line int
	Err  error
}

func (e *LineError) Error() string { return fmt.Sprintf("status log line %d: %v", e.Line, e.Err) }
func (e *LineError) Unwrap() error { return e.Err }
