package tools

import (
	"path/filepath"
	"strings"
)

// Command is one external program invocation.
type Command struct {
	Tool string // Short name used in logs and errors, e.g. "msconvert".
	Path string
	Args []string
	Dir  string
}

// String renders the command line for logs and dry runs.
func (c Command) String() string {
	parts := make([]string, 0, len(c.Args)+1)
	parts = append(parts, quote(c.Path))
	for _, a := range c.Args {
		parts = append(parts, quote(a))
	}
	return strings.Join(parts, " ")
}

func quote(s string) string {
	if s == "" || strings.ContainsAny(s, " \t\"") {
		return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
	}
	return s
}

// MSConvertMzXML converts raw into <outDir>/<base>.RAW.mzXML.
func MSConvertMzXML(msconvert, raw, outDir string) Command {
	return Command{
		Tool: "msconvert",
		Path: msconvert,
		Args: []string{raw, "-o", outDir, "--mzXML", "-e", ".RAW.mzXML"},
	}
}

// MSConvertMGF converts raw into <outDir>/<base>.RAW.MGF.
func MSConvertMGF(msconvert, raw, outDir string) Command {
	return Command{
		Tool: "msconvert",
		Path: msconvert,
		Args: []string{raw, "-o", outDir, "--mgf", "-e", ".RAW.MGF"},
	}
}

// NISTParams are the fixed NIST MSQC pipeline settings.
type NISTParams struct {
	Perl       string
	Script     string // run_NISTMSQC_pipeline.pl
	Library    string
	Instrument string
}

// NISTPipeline runs the NIST MSQC pipeline in lite mode over inDir,
// writing <base>_report.msqc and its .LOG into outDir.
func NISTPipeline(p NISTParams, inDir, outDir string) Command {
	return Command{
		Tool: "nist",
		Path: p.Perl,
		Args: []string{
			p.Script,
			"--in_dir", inDir,
			"--out_dir", outDir,
			"--library", p.Library,
			"--instrument_type", p.Instrument,
			"--overwrite_searches",
			"--pro_ms",
			"--log_file",
			"--mode", "lite",
		},
		Dir: filepath.Dir(filepath.Dir(p.Script)),
	}
}

// Graphics runs the R graphics script on input, producing
// <webDir>/<base>_heatmap.pdf and <webDir>/<base>_ions.pdf. The trailing
// argument selects MS level 1.
func Graphics(rscript, script, input, webDir, base string) Command {
	return Command{
		Tool: "graphics",
		Path: rscript,
		Args: []string{script, input, filepath.Join(webDir, base), "1"},
	}
}
