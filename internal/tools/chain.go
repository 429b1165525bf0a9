package tools

import (
	"context"
	"path/filepath"

	"github.com/ctmm/msqc/internal/config"
)

// Runner executes a single command. *Executor is the production Runner.
type Runner interface {
	Run(ctx context.Context, c Command) error
}

// Toolchain is the set of external steps applied to one RAW file.
type Toolchain interface {
	// Convert writes <outDir>/<base>.RAW.mzXML and <outDir>/<base>.RAW.MGF.
	Convert(ctx context.Context, raw, outDir string) error
	// RunQC runs the NIST pipeline over outDir, leaving the report and
	// its log there.
	RunQC(ctx context.Context, outDir string) error
	// Graphics renders the heatmap and ion count figures into webDir.
	Graphics(ctx context.Context, outDir, webDir, base string) error
}

// Chain is the Toolchain backed by real executables.
type Chain struct {
	Runner         Runner
	MSConvert      string
	NIST           NISTParams
	Rscript        string
	GraphicsScript string
}

var _ Toolchain = (*Chain)(nil)

// NewChain wires executable locations from cfg to r.
func NewChain(cfg *config.Config, r Runner) *Chain {
	return &Chain{
		Runner:    r,
		MSConvert: cfg.MSConvert,
		NIST: NISTParams{
			Perl:       cfg.Perl,
			Script:     cfg.NISTScript(),
			Library:    cfg.Library,
			Instrument: cfg.Instrument,
		},
		Rscript:        cfg.Rscript,
		GraphicsScript: cfg.GraphicsScript,
	}
}

// NewExecutor builds the production Runner from cfg.
func NewExecutor(cfg *config.Config) *Executor {
	return &Executor{Timeout: cfg.ToolTimeout, Retries: cfg.ToolRetries}
}

// MzXMLPath is where Convert leaves the mzXML for a RAW file.
func MzXMLPath(outDir, base string) string {
	return filepath.Join(outDir, base+".RAW.mzXML")
}

// Convert runs msconvert twice, for mzXML then MGF.
func (c *Chain) Convert(ctx context.Context, raw, outDir string) error {
	for _, cmd := range []Command{
		MSConvertMzXML(c.MSConvert, raw, outDir),
		MSConvertMGF(c.MSConvert, raw, outDir),
	} {
		if err := c.Runner.Run(ctx, cmd); err != nil {
			return err
		}
	}
	return nil
}

// RunQC runs the NIST pipeline with outDir as both input and output, so
// runs for different files never share a directory.
func (c *Chain) RunQC(ctx context.Context, outDir string) error {
	return c.Runner.Run(ctx, NISTPipeline(c.NIST, outDir, outDir))
}

// Graphics runs the R script on the converted mzXML.
func (c *Chain) Graphics(ctx context.Context, outDir, webDir, base string) error {
	return c.Runner.Run(ctx, Graphics(c.Rscript, c.GraphicsScript, MzXMLPath(outDir, base), webDir, base))
}

// Plan lists the commands the chain would run for one file, in order.
func (c *Chain) Plan(raw, outDir, webDir, base string) []Command {
	return []Command{
		MSConvertMzXML(c.MSConvert, raw, outDir),
		MSConvertMGF(c.MSConvert, raw, outDir),
		NISTPipeline(c.NIST, outDir, outDir),
		Graphics(c.Rscript, c.GraphicsScript, MzXMLPath(outDir, base), webDir, base),
	}
}
