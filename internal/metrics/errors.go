package metrics

import "fmt"

// ParseError reports a metric whose anchor was found but whose value could
// not be read. Line is the zero-based index of the consulted line, or -1
// when the offset ran past the end of the text or the search was not
// line-based.
type ParseError struct {
	Metric string
	Line   int
	Text   string
	Reason string
}

func (e *ParseError) Error() string {
	if e.Line < 0 {
		return fmt.Sprintf("metric %s: %s", e.Metric, e.Reason)
	}
	return fmt.Sprintf("metric %s: %s (line %d: %q)", e.Metric, e.Reason, e.Line+1, e.Text)
}

// FailedMetrics lists the metrics named by every *ParseError in err,
// including errors combined with errors.Join, in order.
func FailedMetrics(err error) []string {
	var names []string
	var walk func(error)
	walk = func(e error) {
		switch x := e.(type) {
		case nil:
		case *ParseError:
			names = append(names, x.Metric)
		case interface{ Unwrap() []error }:
			for _, inner := range x.Unwrap() {
				walk(inner)
			}
		case interface{ Unwrap() error }:
			walk(x.Unwrap())
		}
	}
	walk(err)
	return names
}
