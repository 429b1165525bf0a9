// Package check provides dependency diagnostics (--check mode) and the
// pre-pipeline validation (CheckDeps) for perl, Rscript, msconvert, the
// NIST MSQC scripts, the graphics script and the report template.
package check

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/ctmm/msqc/internal/config"
)

// Sentinel errors returned by CheckDeps when a required dependency is missing.
var (
	ErrPerlNotFound       = errors.New("perl not found")
	ErrRscriptNotFound    = errors.New("Rscript not found")
	ErrMSConvertNotFound  = errors.New("msconvert not found")
	ErrNISTScriptNotFound = errors.New("NIST MSQC pipeline script not found")
	ErrGraphicsNotFound   = errors.New("graphics script not found")
	ErrTemplateNotFound   = errors.New("report template not found")
)

// Logger is the minimal logging interface needed by RunCheck.
type Logger interface {
	Info(string, ...interface{})
	Success(string, ...interface{})
	Warn(string, ...interface{})
	Error(string, ...interface{})
	Debug(bool, string, ...interface{})
}

// dependency is one thing CheckDeps requires.
type dependency struct {
	name       string
	path       string
	executable bool
	err        error
}

func dependencies(cfg *config.Config) []dependency {
	deps := []dependency{
		{"perl", cfg.Perl, true, ErrPerlNotFound},
		{"Rscript", cfg.Rscript, true, ErrRscriptNotFound},
		{"msconvert", cfg.MSConvert, true, ErrMSConvertNotFound},
		{"NIST pipeline", cfg.NISTScript(), false, ErrNISTScriptNotFound},
		{"graphics script", cfg.GraphicsScript, false, ErrGraphicsNotFound},
	}
	if cfg.Template != "" {
		deps = append(deps, dependency{"report template", cfg.Template, false, ErrTemplateNotFound})
	}
	return deps
}

// CheckDeps verifies every external dependency exists. Executables are
// resolved via PATH; scripts and the template must be regular files. It
// returns the first missing dependency's sentinel, wrapped with its path.
func CheckDeps(cfg *config.Config) error {
	for _, d := range dependencies(cfg) {
		if _, err := locate(d); err != nil {
			return fmt.Errorf("%w: %q", d.err, d.path)
		}
	}
	return nil
}

// RunCheck runs the interactive --check flow: reports every dependency and
// the version banner of perl and Rscript. It returns false when anything
// required is missing.
func RunCheck(cfg *config.Config, log Logger) bool {
	log.Info("=== Dependency Check ===")
	ok := true
	for _, d := range dependencies(cfg) {
		resolved, err := locate(d)
		if err != nil {
			log.Error("%s: not found (%s)", d.name, d.path)
			ok = false
			continue
		}
		log.Success("%s: %s", d.name, resolved)
	}
	if v := versionLine(cfg.Perl, "-v"); v != "" {
		log.Info("perl: %s", v)
	}
	if v := versionLine(cfg.Rscript, "--version"); v != "" {
		log.Info("Rscript: %s", v)
	}
	if cfg.Template == "" {
		log.Info("report template: built-in")
	}
	return ok
}

// locate resolves d to a usable path.
func locate(d dependency) (string, error) {
	if d.path == "" {
		return "", errors.New("not configured")
	}
	if d.executable {
		return exec.LookPath(d.path)
	}
	fi, err := os.Stat(d.path)
	if err != nil {
		return "", err
	}
	if fi.IsDir() {
		return "", fmt.Errorf("%s is a directory", d.path)
	}
	return d.path, nil
}

// versionLine returns the first non-empty line of `name flag` (stdout and
// stderr combined), or "" when the command cannot run.
func versionLine(name, flag string) string {
	if _, err := exec.LookPath(name); err != nil {
		return ""
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	out, err := exec.CommandContext(ctx, name, flag).CombinedOutput()
	if err != nil {
		return ""
	}
	for _, line := range strings.Split(string(out), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}
