// Package term holds the process-wide color state and terminal detection.
//
// The ANSI sequences are package-level variables shared by logging and
// display. [Configure] sets them once during startup; when colors are off
// they are empty strings and concatenation is a no-op. The lipgloss color
// profile follows the same decision so styled output (banner, summary
// table) never emits escapes into a pipe or log file.
package term

import (
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/ctmm/msqc/internal/config"
)

// ANSI color codes. Empty when colors are disabled.
var (
	Red    = ""
	Green  = ""
	Yellow = ""
	Blue   = ""
	Cyan   = ""
	NC     = "" // Reset sequence.
)

// Configure resolves mode against the environment and sets the color
// variables and the lipgloss profile.
func Configure(mode config.ColorMode) {
	set(resolve(mode, os.Stdout, os.Getenv))
}

func set(on bool) {
	if on {
		Red = "\033[1;91m"
		Green = "\033[1;92m"
		Yellow = "\033[1;93m"
		Blue = "\033[1;94m"
		Cyan = "\033[1;96m"
		NC = "\033[0m"
		lipgloss.SetColorProfile(termenv.ANSI256)
		return
	}
	Red, Green, Yellow, Blue, Cyan, NC = "", "", "", "", "", ""
	lipgloss.SetColorProfile(termenv.Ascii)
}

// Enabled reports whether ANSI colors are currently active.
func Enabled() bool { return NC != "" }

// resolve decides whether colors should be on: the explicit mode wins,
// otherwise a TTY without NO_COLOR (https://no-color.org) or TERM=dumb.
func resolve(mode config.ColorMode, out *os.File, getenv func(string) string) bool {
	switch mode {
	case config.ColorAlways:
		return true
	case config.ColorNever:
		return false
	default:
		return IsTerminal(out) &&
			getenv("NO_COLOR") == "" &&
			strings.ToLower(getenv("TERM")) != "dumb"
	}
}

// IsTerminal reports whether f is attached to a TTY (character device).
func IsTerminal(f *os.File) bool {
	if f == nil {
		return false
	}
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}
