// Package report renders the per-file HTML QC report from a template and
// writes the metrics.json consumed by the report viewer.
package report

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ctmm/msqc/internal/display"
	"github.com/ctmm/msqc/internal/metrics"
)

//go:embed templates/report.html
var defaultTemplate string

// NotAvailable is rendered for metrics that could not be resolved.
const NotAvailable = "N/A"

// MetricsFile is the machine-readable companion of every report.
const MetricsFile = "metrics.json"

// fieldMetrics maps template fields to metric names.
var fieldMetrics = []struct {
	field  string
	metric string
}{
	{"m_fs", metrics.FileSize},
	{"m_ms1_scans", metrics.MS1Spectra},
	{"m_ms2_scans", metrics.MS2Spectra},
	{"m_f_ms1_rt", metrics.FirstMS1RT},
	{"m_l_ms1_rt", metrics.LastMS1RT},
	{"m_m_p_w", metrics.MedianPeakWidth},
	{"m_i_i_t_ms1", metrics.IonInjectionTimeMS1},
	{"m_i_i_t_ms2", metrics.IonInjectionTimeMS2},
	{"m_p_c_pep", metrics.PeptideCountPep},
	{"m_p_c_ion", metrics.PeptideCountIon},
	{"m_p_c_ids", metrics.PeptideCountIDs},
}

// Fields are the template substitutions for one report.
type Fields map[string]string

// Input describes one finished QC run.
type Input struct {
	RawFile   string
	WebDir    string
	Base      string
	Metrics   metrics.Values
	Generated time.Time
	Runtime   time.Duration
}

// HTMLPath is where Write puts the report for base.
func HTMLPath(webDir, base string) string {
	return filepath.Join(webDir, base+"_report.html")
}

// BuildFields assembles the general, metric and figure fields. Values are
// HTML-escaped.
func BuildFields(in Input) Fields {
	f := Fields{
		"raw_file":    in.RawFile,
		"date":        in.Generated.Format("2006-01-02"),
		"time":        in.Generated.Format("15:04:05"),
		"runtime":     display.FormatDuration(in.Runtime),
		"heatmap_img": filepath.Join(in.WebDir, in.Base+"_heatmap.pdf"),
		"ions_img":    in.Base + "_ions.pdf",
	}
	for _, fm := range fieldMetrics {
		f[fm.field] = in.Metrics.Or(fm.metric, NotAvailable)
	}
	for k, v := range f {
		f[k] = html.EscapeString(v)
	}
	return f
}

// Render substitutes $name and ${name} placeholders in tmpl. Placeholders
// without a field are left as they are, and $$ yields a literal $.
func Render(tmpl string, f Fields) string {
	var b strings.Builder
	b.Grow(len(tmpl))
	for i := 0; i < len(tmpl); {
		c := tmpl[i]
		if c != '$' || i+1 == len(tmpl) {
			b.WriteByte(c)
			i++
			continue
		}
		next := tmpl[i+1]
		switch {
		case next == '$':
			b.WriteByte('$')
			i += 2
		case next == '{':
			end := strings.IndexByte(tmpl[i+2:], '}')
			if end < 0 {
				b.WriteByte(c)
				i++
				continue
			}
			name := tmpl[i+2 : i+2+end]
			if v, ok := f[name]; ok && isIdent(name) {
				b.WriteString(v)
			} else {
				b.WriteString(tmpl[i : i+3+end])
			}
			i += 3 + end
		case isIdentStart(next):
			j := i + 2
			for j < len(tmpl) && isIdentChar(tmpl[j]) {
				j++
			}
			name := tmpl[i+1 : j]
			if v, ok := f[name]; ok {
				b.WriteString(v)
			} else {
				b.WriteString(tmpl[i:j])
			}
			i = j
		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String()
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentChar(c byte) bool { return isIdentStart(c) || (c >= '0' && c <= '9') }

func isIdent(s string) bool {
	if s == "" || !isIdentStart(s[0]) {
		return false
	}
	for i := 1; i < len(s); i++ {
		if !isIdentChar(s[i]) {
			return false
		}
	}
	return true
}

// LoadTemplate reads the template at path, or returns the built-in one
// when path is empty.
func LoadTemplate(path string) (string, error) {
	if path == "" {
		return defaultTemplate, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read report template: %w", err)
	}
	return string(b), nil
}

// metricsDoc is the metrics.json layout.
type metricsDoc struct {
	RawFile    string            `json:"raw_file"`
	Generated  time.Time         `json:"generated"`
	RuntimeSec float64           `json:"runtime_seconds"`
	Metrics    map[string]string `json:"metrics"`
	Unresolved []string          `json:"unresolved"`
}

// Write renders tmpl for in and writes <base>_report.html and metrics.json
// into in.WebDir, which must exist. It returns the HTML path.
func Write(tmpl string, in Input, unresolved []string) (string, error) {
	htmlPath := HTMLPath(in.WebDir, in.Base)
	if err := os.WriteFile(htmlPath, []byte(Render(tmpl, BuildFields(in))), 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}

	doc := metricsDoc{
		RawFile:    in.RawFile,
		Generated:  in.Generated,
		RuntimeSec: in.Runtime.Seconds(),
		Metrics:    map[string]string(in.Metrics),
		Unresolved: append([]string{}, unresolved...),
	}
	if doc.Metrics == nil {
		doc.Metrics = map[string]string{}
	}
	sort.Strings(doc.Unresolved)
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode metrics: %w", err)
	}
	if err := os.WriteFile(filepath.Join(in.WebDir, MetricsFile), append(b, '\n'), 0o644); err != nil {
		return "", fmt.Errorf("write metrics: %w", err)
	}
	return htmlPath, nil
}
