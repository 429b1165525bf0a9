// Package copylog discovers newly transferred RAW files in a robocopy log.
//
// Robocopy writes one block per monitoring pass: a line containing
// "Started" opens the block, lines containing "New File" name each copied
// file (the file name is the last whitespace-delimited token) and a line
// containing "Monitor" closes it. Only complete blocks are trusted; a block
// without its closing line is still being written and is ignored.
package copylog

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
)

// Markers are the substrings that structure a copy log.
type Markers struct {
	Start     string
	End       string
	Discovery string
}

// DefaultMarkers match robocopy's monitor-mode output.
var DefaultMarkers = Markers{
	Start:     "Started",
	End:       "Monitor",
	Discovery: "New File",
}

// MissingLogError is returned when the copy log does not exist.
type MissingLogError struct {
	Path string
	Err  error
}

func (e *MissingLogError) Error() string { return "copy log not found: " + e.Path }
func (e *MissingLogError) Unwrap() error { return e.Err }

type state int

const (
	searching state = iota
	insideBlock
)

// Scanner is a line-at-a-time automaton over a copy log. Feed it lines
// with [Scanner.Line] and collect the names from committed blocks with
// [Scanner.Found].
type Scanner struct {
	markers Markers
	known   map[string]bool

	state   state
	pending []string
	seen    map[string]bool
	found   []string
}

// NewScanner returns a scanner that skips names present in known.
func NewScanner(m Markers, known map[string]bool) *Scanner {
	return &Scanner{
		markers: m,
		known:   known,
		seen:    make(map[string]bool),
	}
}

// Line advances the automaton by one line.
func (s *Scanner) Line(line string) {
	switch s.state {
	case searching:
		if !strings.Contains(line, s.markers.Start) {
			return
		}
		// A line carrying both markers opens and closes an empty block.
		if strings.Contains(line, s.markers.End) {
			return
		}
		s.state = insideBlock
		s.pending = s.pending[:0]
		s.collect(line)
	case insideBlock:
		if strings.Contains(line, s.markers.End) {
			s.commit()
			s.state = searching
			return
		}
		s.collect(line)
	}
}

func (s *Scanner) collect(line string) {
	if !strings.Contains(line, s.markers.Discovery) {
		return
	}
	if name := lastToken(line); name != "" {
		s.pending = append(s.pending, name)
	}
}

func (s *Scanner) commit() {
	for _, name := range s.pending {
		if s.known[name] || s.seen[name] {
			continue
		}
		s.seen[name] = true
		s.found = append(s.found, name)
	}
	s.pending = s.pending[:0]
}

// Found returns newly discovered names from closed blocks in document
// order. Candidates from an unterminated trailing block are not included.
func (s *Scanner) Found() []string {
	out := make([]string, len(s.found))
	copy(out, s.found)
	return out
}

func lastToken(line string) string {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return ""
	}
	return strings.TrimSpace(fields[len(fields)-1])
}

// Scan reads a copy log from r and returns names not present in known.
func Scan(r io.Reader, known map[string]bool) ([]string, error) {
	s := NewScanner(DefaultMarkers, known)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		s.Line(sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read copy log: %w", err)
	}
	return s.Found(), nil
}

// ScanText is [Scan] over an in-memory log.
func ScanText(text string, known map[string]bool) []string {
	found, _ := Scan(strings.NewReader(text), known)
	return found
}

// ScanFile opens path and scans it. A missing file yields *MissingLogError.
func ScanFile(path string, known map[string]bool) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &MissingLogError{Path: path, Err: err}
		}
		return nil, fmt.Errorf("open copy log: %w", err)
	}
	defer f.Close()
	return Scan(f, known)
}
