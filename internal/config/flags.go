package config

// This file implements CLI flag parsing and help text.
// Flags are grouped into state, tools, behavior, integrations, display and utility.
// --color / --no-color are applied after Parse so env and defaults hold unless set.

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"
)

// ErrExitEarly is returned by ParseFlags after --help or --version has been
// printed. Callers should exit with status 0.
var ErrExitEarly = errors.New("exit requested")

// displayFlags holds booleans applied to cfg after Parse.
type displayFlags struct {
	forceColor  bool
	noColor     bool
	showVersion bool
	showHelp    bool
}

// ParseFlags parses args (without the program name) into cfg. Usage and
// version text go to stderr/stdout respectively; afterwards ErrExitEarly is
// returned. On any other error (unknown flag, wrong positional count) a
// non-nil error is returned.
func ParseFlags(cfg *Config, args []string, version string) error {
	return parseFlags(cfg, args, version, os.Stdout, os.Stderr)
}

func parseFlags(cfg *Config, args []string, version string, stdout, stderr io.Writer) error {
	fs := pflag.NewFlagSet("msqc", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.SortFlags = false

	var d displayFlags
	defineStateFlags(fs, cfg)
	defineToolFlags(fs, cfg)
	defineBehaviorFlags(fs, cfg)
	defineIntegrationFlags(fs, cfg)
	defineDisplayFlags(fs, cfg, &d)

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printUsage(stderr, version)
			return ErrExitEarly
		}
		return err
	}

	applyDisplayFlags(cfg, &d)

	if d.showHelp {
		printUsage(stderr, version)
		return ErrExitEarly
	}
	if d.showVersion {
		fmt.Fprintln(stdout, "msqc v"+version)
		return ErrExitEarly
	}

	return parsePositionalArgs(fs, cfg)
}

// defineStateFlags registers --status-log and --web-dir.
func defineStateFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.StringVarP(&cfg.StatusLog, "status-log", "s", cfg.StatusLog, "Status log path")
	fs.StringVarP(&cfg.WebDir, "web-dir", "w", cfg.WebDir, "Root of the published report tree")
}

// defineToolFlags registers external tool locations and limits.
func defineToolFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.StringVar(&cfg.NISTHome, "nist-home", cfg.NISTHome, "NIST MSQC installation root")
	fs.StringVar(&cfg.MSConvert, "msconvert", cfg.MSConvert, "msconvert executable")
	fs.StringVar(&cfg.Perl, "perl", cfg.Perl, "perl executable")
	fs.StringVar(&cfg.Rscript, "rscript", cfg.Rscript, "Rscript executable")
	fs.StringVar(&cfg.GraphicsScript, "graphics-script", cfg.GraphicsScript, "R graphics script")
	fs.StringVar(&cfg.Library, "library", cfg.Library, "NIST search library")
	fs.StringVar(&cfg.Instrument, "instrument", cfg.Instrument, "NIST instrument type")
	fs.StringVar(&cfg.Template, "template", cfg.Template, "Report HTML template")
	fs.DurationVar(&cfg.ToolTimeout, "tool-timeout", cfg.ToolTimeout, "Upper bound per external tool run")
	fs.IntVar(&cfg.ToolRetries, "tool-retries", cfg.ToolRetries, "Extra attempts on transient tool failures")
}

// defineBehaviorFlags registers dry-run, strict-metrics and watch.
func defineBehaviorFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.BoolVarP(&cfg.DryRun, "dry-run", "d", cfg.DryRun, "List pending files and commands only")
	fs.BoolVar(&cfg.StrictMetrics, "strict-metrics", cfg.StrictMetrics, "Fail files with unresolved metrics")
	fs.DurationVar(&cfg.Watch, "watch", cfg.Watch, "Poll the copy log at this interval (0 = single pass)")
}

// defineIntegrationFlags registers the status page, database mirror and S3 publisher.
func defineIntegrationFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.StringVar(&cfg.Serve, "serve", cfg.Serve, "Serve the status page on this address")
	fs.StringVar(&cfg.DatabaseURL, "database-url", cfg.DatabaseURL, "PostgreSQL URL for the status mirror")
	fs.StringVar(&cfg.S3.Endpoint, "s3-endpoint", cfg.S3.Endpoint, "S3/MinIO endpoint for report upload")
	fs.StringVar(&cfg.S3.Bucket, "s3-bucket", cfg.S3.Bucket, "Bucket for report upload")
	fs.StringVar(&cfg.S3.Prefix, "s3-prefix", cfg.S3.Prefix, "Key prefix inside the bucket")
	fs.StringVar(&cfg.S3.AccessKey, "s3-access-key", cfg.S3.AccessKey, "S3 access key")
	fs.StringVar(&cfg.S3.SecretKey, "s3-secret-key", cfg.S3.SecretKey, "S3 secret key")
	fs.StringVar(&cfg.S3.Region, "s3-region", cfg.S3.Region, "S3 region")
	fs.BoolVar(&cfg.S3.UseSSL, "s3-ssl", cfg.S3.UseSSL, "Use TLS for S3")
}

// defineDisplayFlags registers colors, verbose, check, log, version and help.
func defineDisplayFlags(fs *pflag.FlagSet, cfg *Config, d *displayFlags) {
	fs.BoolVar(&d.forceColor, "color", false, "Force colored logs")
	fs.BoolVar(&d.noColor, "no-color", false, "Disable colored logs")
	fs.BoolVarP(&cfg.Verbose, "verbose", "v", cfg.Verbose, "Verbose output")
	fs.BoolVarP(&cfg.CheckOnly, "check", "c", false, "Run dependency diagnostics and exit")
	fs.StringVarP(&cfg.LogFile, "log", "l", cfg.LogFile, "Append logs to file")
	fs.BoolVarP(&d.showVersion, "version", "V", false, "Print version and exit")
	fs.BoolVarP(&d.showHelp, "help", "h", false, "Show this help and exit")
}

func applyDisplayFlags(cfg *Config, d *displayFlags) {
	if d.noColor {
		cfg.ColorMode = ColorNever
	} else if d.forceColor {
		cfg.ColorMode = ColorAlways
	}
}

// parsePositionalArgs sets InputDir, OutputDir and CopyLog when not in CheckOnly mode.
func parsePositionalArgs(fs *pflag.FlagSet, cfg *Config) error {
	args := fs.Args()
	if cfg.CheckOnly {
		return nil
	}
	if len(args) != 3 {
		return fmt.Errorf("need exactly input_dir, output_dir and copy_log (got %d arguments)", len(args))
	}
	cfg.InputDir = NormalizeDirArg(args[0])
	cfg.OutputDir = NormalizeDirArg(args[1])
	cfg.CopyLog = args[2]
	return nil
}

// printUsage writes the help text. Column-aligned for readability.
func printUsage(w io.Writer, version string) {
	const col1 = 30
	lines := []struct {
		flags string
		desc  string
	}{
		{"", "msqc v" + version + " - unattended mass-spectrometry QC pipeline"},
		{"", ""},
		{"  msqc [OPTIONS] <input_dir> <output_dir> <copy_log>", ""},
		{"", ""},
		{"State", ""},
		{"  -s, --status-log <path>", "Status log (default: qc_status.log)"},
		{"  -w, --web-dir <dir>", "Report tree root (default: <output_dir>/web)"},
		{"", ""},
		{"Tools", ""},
		{"  --nist-home <dir>", "NIST MSQC installation root"},
		{"  --msconvert <path>", "msconvert (default: <nist-home>/bin/msconvert)"},
		{"  --perl <path>", "perl executable (default: perl)"},
		{"  --rscript <path>", "Rscript executable (default: Rscript)"},
		{"  --graphics-script <path>", "R graphics script (default: r_ms_graphics.R)"},
		{"  --library <name>", "NIST library (default: human_2011_05_26_it)"},
		{"  --instrument <type>", "NIST instrument type (default: LTQ)"},
		{"  --template <path>", "Report HTML template (default: built-in)"},
		{"  --tool-timeout <dur>", "Upper bound per tool run (default: 2h)"},
		{"  --tool-retries <n>", "Retries on transient failures (default: 2)"},
		{"", ""},
		{"Behavior", ""},
		{"  -d, --dry-run", "List pending files and commands only"},
		{"  --strict-metrics", "Fail files with unresolved metrics (default: on)"},
		{"  --watch <dur>", "Re-scan the copy log at this interval"},
		{"", ""},
		{"Integrations", ""},
		{"  --serve <addr>", "Status page address (e.g. :8080)"},
		{"  --database-url <url>", "PostgreSQL status mirror"},
		{"  --s3-endpoint <host>", "Upload reports to S3/MinIO"},
		{"  --s3-bucket <name>", "Upload bucket"},
		{"  --s3-prefix <prefix>", "Key prefix (default: reports)"},
		{"  --s3-access-key <key>", "Access key"},
		{"  --s3-secret-key <key>", "Secret key"},
		{"  --s3-region <region>", "Region"},
		{"  --s3-ssl", "Use TLS (default: on)"},
		{"", ""},
		{"Display", ""},
		{"  --color", "Force colored logs"},
		{"  --no-color", "Disable colored logs"},
		{"  -v, --verbose", "Verbose output"},
		{"", ""},
		{"Utility", ""},
		{"  -l, --log <path>", "Append logs to file"},
		{"  -c, --check", "Dependency diagnostics (perl, Rscript, msconvert, NIST)"},
		{"  -V, --version", "Print version and exit"},
		{"  -h, --help", "Show this help and exit"},
		{"", ""},
		{"", "Path, tool and integration options can also be set as MSQC_<NAME> in the environment or a .env file."},
	}

	for _, l := range lines {
		if l.flags == "" && l.desc == "" {
			fmt.Fprintln(w)
			continue
		}
		if l.desc == "" {
			fmt.Fprintln(w, l.flags)
			continue
		}
		if l.flags == "" {
			fmt.Fprintln(w, l.desc)
			continue
		}
		padding := col1 - len(l.flags)
		if padding < 1 {
			padding = 1
		}
		fmt.Fprintf(w, "%s%*s%s\n", l.flags, padding, "", l.desc)
	}
}
