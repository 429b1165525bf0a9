package metrics

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
)

// Values holds resolved metrics by name. A missing key means unresolved.
type Values map[string]string

// Get returns the value for name and whether it was resolved.
func (v Values) Get(name string) (string, bool) {
	s, ok := v[name]
	return s, ok
}

// Or returns the value for name, or def when unresolved.
func (v Values) Or(name, def string) string {
	if s, ok := v[name]; ok {
		return s
	}
	return def
}

// ExtractFromReport applies every non-placeholder rule in table to lines.
// A rule whose locator matches no line stays unresolved without error. A
// rule whose anchor is found but whose offset line is missing or does not
// match yields a *ParseError; the remaining rules are still evaluated and
// all errors are joined.
func ExtractFromReport(lines []string, table Table) (Values, error) {
	out := make(Values, len(table))
	var errs []error
	for _, rule := range table {
		if rule.Placeholder() {
			continue
		}
		anchor := findAnchor(lines, rule.Locator)
		if anchor < 0 {
			continue
		}
		idx := anchor + rule.LineOffset
		if idx >= len(lines) {
			errs = append(errs, &ParseError{
				Metric: rule.Name,
				Line:   -1,
				Reason: fmt.Sprintf("anchor %q at line %d, offset %d runs past end of text", rule.Locator, anchor+1, rule.LineOffset),
			})
			continue
		}
		m := rule.Pattern.FindStringSubmatch(lines[idx])
		if m == nil {
			errs = append(errs, &ParseError{
				Metric: rule.Name,
				Line:   idx,
				Text:   lines[idx],
				Reason: fmt.Sprintf("pattern %q did not match", rule.Pattern.String()),
			})
			continue
		}
		out[rule.Name] = m[1]
	}
	return out, errors.Join(errs...)
}

func findAnchor(lines []string, locator string) int {
	for i, l := range lines {
		if strings.Contains(l, locator) {
			return i
		}
	}
	return -1
}

// Unresolved lists the non-placeholder rules in table that have no value.
func Unresolved(table Table, v Values) []string {
	var names []string
	for _, rule := range table {
		if rule.Placeholder() {
			continue
		}
		if _, ok := v[rule.Name]; !ok {
			names = append(names, rule.Name)
		}
	}
	return names
}

// SpectraCounts are the MS1/MS2 spectrum totals reported in the NIST log.
type SpectraCounts struct {
	MS1 string
	MS2 string
}

var (
	reMS1Spectra = regexp.MustCompile(`([0-9]+) ms1 spectra`)
	reMS2Spectra = regexp.MustCompile(`([0-9]+) ms2 spectra`)
)

// ExtractFromLog searches the whole NIST log text for the spectrum counts.
// Either count missing is a *ParseError.
func ExtractFromLog(text string) (SpectraCounts, error) {
	var sc SpectraCounts
	var errs []error
	if m := reMS1Spectra.FindStringSubmatch(text); m != nil {
		sc.MS1 = m[1]
	} else {
		errs = append(errs, &ParseError{Metric: MS1Spectra, Line: -1, Reason: "no \"<N> ms1 spectra\" in log"})
	}
	if m := reMS2Spectra.FindStringSubmatch(text); m != nil {
		sc.MS2 = m[1]
	} else {
		errs = append(errs, &ParseError{Metric: MS2Spectra, Line: -1, Reason: "no \"<N> ms2 spectra\" in log"})
	}
	return sc, errors.Join(errs...)
}

// DeriveFileSizeMiB formats a byte count as MiB with one decimal place.
func DeriveFileSizeMiB(size int64) string {
	return fmt.Sprintf("%.1f", float64(size)/(1024*1024))
}

// SplitLines splits text into lines, dropping a trailing empty line and
// any carriage returns left by Windows line endings.
func SplitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.TrimSuffix(text, "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

// ReadLines reads a report file and splits it with [SplitLines].
func ReadLines(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return SplitLines(string(b)), nil
}
