// Package config holds runtime configuration: defaults, environment and CLI
// flag parsing, and validation. Defaults follow the lab QC workstation
// layout the pipeline was first deployed on.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// ColorMode controls ANSI color output.
type ColorMode string

const (
	ColorAuto   ColorMode = "auto"   // Enable colors when stdout is a TTY (default).
	ColorAlways ColorMode = "always" // Force colors on.
	ColorNever  ColorMode = "never"  // Disable colors entirely.
)

// S3Config configures the optional object-store publisher. Publishing is
// enabled when Endpoint and Bucket are both set.
type S3Config struct {
	Endpoint  string
	Bucket    string
	Prefix    string // Key prefix inside the bucket. Default: "reports".
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool // Default: true.
}

// Enabled reports whether enough is configured to upload reports.
func (s S3Config) Enabled() bool { return s.Endpoint != "" && s.Bucket != "" }

// Config holds all runtime settings. It is populated by [DefaultConfig],
// then [LoadEnv], then [ParseFlags], and passed by pointer to the packages
// that need it.
type Config struct {
	// Positional arguments.
	InputDir  string // Folder the instrument RAW files are copied into.
	OutputDir string // Folder receiving one <base>_QC folder per file.
	CopyLog   string // Robocopy log of the transfer job.

	// State.
	StatusLog string // Default: "qc_status.log".
	WebDir    string // Root of the published report tree. Default: <OutputDir>/web.

	// External tools.
	NISTHome       string // NIST MSQC installation root.
	MSConvert      string // Default: <NISTHome>/bin/msconvert.
	Perl           string // Default: "perl".
	Rscript        string // Default: "Rscript".
	GraphicsScript string // Default: "r_ms_graphics.R".
	Library        string // Default: "human_2011_05_26_it".
	Instrument     string // Default: "LTQ".
	Template       string // Report HTML template; empty means built-in.
	ToolTimeout    time.Duration
	ToolRetries    int

	// Behavior.
	DryRun        bool
	StrictMetrics bool          // Default: true. Fail a file when a non-placeholder metric stays unresolved.
	Watch         time.Duration // Poll interval for the copy log; 0 = single pass.

	// Optional integrations.
	Serve       string // HTTP listen address for the status page.
	DatabaseURL string // PostgreSQL URL for the status mirror.
	S3          S3Config

	// Display and logging.
	Verbose   bool
	ColorMode ColorMode // Default: "auto".
	LogFile   string
	CheckOnly bool
}

// DefaultConfig returns a Config with every default set. Paths derived from
// other settings (MSConvert, WebDir) are filled in by [Config.Resolve].
func DefaultConfig() Config {
	return Config{
		StatusLog:      "qc_status.log",
		NISTHome:       "/opt/nistmsqc",
		Perl:           "perl",
		Rscript:        "Rscript",
		GraphicsScript: "r_ms_graphics.R",
		Library:        "human_2011_05_26_it",
		Instrument:     "LTQ",
		ToolTimeout:    2 * time.Hour,
		ToolRetries:    2,
		StrictMetrics:  true,
		S3: S3Config{
			Prefix: "reports",
			UseSSL: true,
		},
		ColorMode: ColorAuto,
	}
}

// NormalizeDirArg strips trailing slashes from a directory path.
// The filesystem root "/" is returned unchanged so we don't produce an empty string.
func NormalizeDirArg(path string) string {
	if path == "/" {
		return "/"
	}
	return strings.TrimRight(path, "/")
}

// Resolve fills derived defaults that depend on other fields.
func (c *Config) Resolve() {
	if c.MSConvert == "" && c.NISTHome != "" {
		c.MSConvert = filepath.Join(c.NISTHome, "bin", "msconvert")
	}
	if c.WebDir == "" && c.OutputDir != "" {
		c.WebDir = filepath.Join(c.OutputDir, "web")
	}
}

// NISTScript returns the path of the NIST MSQC pipeline entry script.
func (c *Config) NISTScript() string {
	return filepath.Join(c.NISTHome, "scripts", "run_NISTMSQC_pipeline.pl")
}

// Validate checks enum and numeric fields. When not in CheckOnly mode it
// also requires the three positional paths.
func (c *Config) Validate() error {
	switch c.ColorMode {
	case ColorAuto, ColorAlways, ColorNever:
		// valid
	default:
		return errors.New("invalid color mode (use 'auto', 'always' or 'never')")
	}
	if c.ToolTimeout <= 0 {
		return errors.New("tool timeout must be positive")
	}
	if c.ToolRetries < 0 {
		return fmt.Errorf("tool retries must not be negative (got %d)", c.ToolRetries)
	}
	if c.Watch < 0 {
		return errors.New("watch interval must not be negative")
	}
	if c.StatusLog == "" {
		return errors.New("status log path must not be empty")
	}
	if (c.S3.Endpoint == "") != (c.S3.Bucket == "") {
		return errors.New("--s3-endpoint and --s3-bucket must be given together")
	}

	if c.CheckOnly {
		return nil
	}
	if c.InputDir == "" || c.OutputDir == "" || c.CopyLog == "" {
		return errors.New("need exactly input_dir, output_dir and copy_log")
	}
	return nil
}

// ValidatePaths ensures the resolved output directory is not inside (or equal
// to) the resolved input directory, so QC output never lands in the folder
// the copier writes to. Both arguments must be absolute, symlink-resolved
// paths.
func (c *Config) ValidatePaths(inputAbs, outputAbs string) error {
	sep := string(filepath.Separator)
	if outputAbs == inputAbs || strings.HasPrefix(outputAbs+sep, inputAbs+sep) {
		return errors.New("output directory must not be inside input directory")
	}
	return nil
}
