// Package display renders the startup banner and the end-of-run summary box.
// Styling goes through lipgloss, whose color profile is set by term.Configure,
// so the same output degrades to plain text when colors are off.
package display

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	bannerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	taglineStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	boxStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("63"))

	labelStyle = lipgloss.NewStyle().Bold(true)
)

// PrintBanner writes the program banner and version to w.
func PrintBanner(w io.Writer, version string) {
	fmt.Fprintln(w, bannerStyle.Render("msqc "+version))
	fmt.Fprintln(w, taglineStyle.Render("mass-spectrometry QC pipeline"))
}

// Row is one label/value line of a summary box.
type Row struct {
	Label string
	Value string
}

// Summary renders rows as an aligned, bordered box under a title.
func Summary(title string, rows []Row) string {
	width := 0
	for _, r := range rows {
		if len(r.Label) > width {
			width = len(r.Label)
		}
	}
	var b strings.Builder
	b.WriteString(labelStyle.Render(title))
	for _, r := range rows {
		b.WriteString("\n")
		b.WriteString(labelStyle.Render(fmt.Sprintf("%-*s", width, r.Label)))
		b.WriteString("  ")
		b.WriteString(r.Value)
	}
	return boxStyle.Render(b.String())
}
