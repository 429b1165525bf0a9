package metrics

import (
	"fmt"
	"regexp"
)

// Rule describes how to locate one metric in report text.
type Rule struct {
	Name       string
	Locator    string
	LineOffset int
	Pattern    *regexp.Regexp
}

// Placeholder reports whether the rule is declared without a locator or
// pattern. Placeholders are never evaluated.
func (r Rule) Placeholder() bool {
	return r.Locator == "" && r.Pattern == nil
}

// NewRule validates and compiles a rule. A rule with an empty locator and
// an empty pattern is a placeholder. Otherwise both must be set and the
// pattern must contain exactly one capture group.
func NewRule(name, locator string, offset int, pattern string) (Rule, error) {
	if name == "" {
		return Rule{}, fmt.Errorf("metric rule: empty name")
	}
	if offset < 0 {
		return Rule{}, fmt.Errorf("metric rule %s: negative line offset %d", name, offset)
	}
	if locator == "" && pattern == "" {
		return Rule{Name: name}, nil
	}
	if locator == "" || pattern == "" {
		return Rule{}, fmt.Errorf("metric rule %s: locator and pattern must both be set", name)
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return Rule{}, fmt.Errorf("metric rule %s: %w", name, err)
	}
	if n := re.NumSubexp(); n != 1 {
		return Rule{}, fmt.Errorf("metric rule %s: pattern has %d capture groups, want 1", name, n)
	}
	return Rule{Name: name, Locator: locator, LineOffset: offset, Pattern: re}, nil
}

// MustRule is like [NewRule] but panics on error. Used for the static table.
func MustRule(name, locator string, offset int, pattern string) Rule {
	r, err := NewRule(name, locator, offset, pattern)
	if err != nil {
		panic(err)
	}
	return r
}

// Table is an ordered set of rules. Order only affects error ordering;
// extraction results are independent of it.
type Table []Rule

// Names returns the metric names in table order.
func (t Table) Names() []string {
	names := make([]string, len(t))
	for i, r := range t {
		names[i] = r.Name
	}
	return names
}

// Metric names produced by the default table and the log/file extractors.
const (
	MS1Scans            = "ms1_scans"
	MS2Scans            = "ms2_scans"
	FirstMS1RT          = "f_ms1_rt"
	LastMS1RT           = "l_ms1_rt"
	MedianPeakWidth     = "m_p_w"
	IonInjectionTimeMS1 = "i_i_t_ms1"
	IonInjectionTimeMS2 = "i_i_t_ms2"
	PeptideCountPep     = "p_c_pep"
	PeptideCountIon     = "p_c_ion"
	PeptideCountIDs     = "p_c_ids"

	MS1Spectra = "ms1_spectra"
	MS2Spectra = "ms2_spectra"
	FileSize   = "f_size"
)

// defaultTable mirrors the metric subset reported for every RAW file.
// Scan, peak-width and peptide counts have no extraction rule yet and stay
// unresolved.
var defaultTable = Table{
	MustRule(MS1Scans, "", 0, ""),
	MustRule(MS2Scans, "", 0, ""),
	MustRule(FirstMS1RT, "First and Last MS1 RT", 1, `First MS1\s+([0-9.]+)`),
	MustRule(LastMS1RT, "First and Last MS1 RT", 2, `Last MS1\s+([0-9.]+)`),
	MustRule(MedianPeakWidth, "", 0, ""),
	MustRule(IonInjectionTimeMS1, "Ion Injection Times for IDs", 1, `MS1 Median\s+([0-9.]+)`),
	MustRule(IonInjectionTimeMS2, "Ion Injection Times for IDs", 3, `MS2 Median\s+([0-9.]+)`),
	MustRule(PeptideCountPep, "", 0, ""),
	MustRule(PeptideCountIon, "", 0, ""),
	MustRule(PeptideCountIDs, "", 0, ""),
}

// DefaultTable returns a copy of the NIST MSQC rule table.
func DefaultTable() Table {
	t := make(Table, len(defaultTable))
	copy(t, defaultTable)
	return t
}
