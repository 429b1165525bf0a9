package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ctmm/msqc/internal/config"
	"github.com/ctmm/msqc/internal/copylog"
	"github.com/ctmm/msqc/internal/display"
	"github.com/ctmm/msqc/internal/logging"
	"github.com/ctmm/msqc/internal/metrics"
	"github.com/ctmm/msqc/internal/publish"
	"github.com/ctmm/msqc/internal/report"
	"github.com/ctmm/msqc/internal/server"
	"github.com/ctmm/msqc/internal/status"
	"github.com/ctmm/msqc/internal/statusdb"
	"github.com/ctmm/msqc/internal/tools"
)

// ReasonInterrupted is the failure reason for a file cut short by
// cancellation.
const ReasonInterrupted = "interrupted"

// mirrorTimeout bounds each write to the status mirror.
const mirrorTimeout = 5 * time.Second

// StatusMirror receives runs and status transitions. *statusdb.Mirror is
// the production implementation.
type StatusMirror interface {
	StartRun(ctx context.Context, runID string) error
	FinishRun(ctx context.Context, runID string, t statusdb.RunTotals) error
	Record(ctx context.Context, runID string, rec status.Record) error
}

// planner is implemented by toolchains that can list their commands.
type planner interface {
	Plan(raw, outDir, webDir, base string) []tools.Command
}

// Runner processes the files named in the copy log. Cfg, Log, Store and
// Tools are required; the rest are optional.
type Runner struct {
	Cfg       *config.Config
	Log       *logging.Logger
	Store     *status.Store
	Tools     tools.Toolchain
	Publisher publish.Publisher
	Mirror    StatusMirror
	Metrics   *server.Metrics
	Table     metrics.Table
	Template  string
	Out       io.Writer // summary box, default os.Stdout
	Now       func() time.Time

	runID  string
	hooked bool
}

// Run makes one pass: recover interrupted records, merge the copy log and
// process every pending file. The error is non-nil only for failures that
// affect the whole pass (unreadable copy log, status log not writable);
// per-file failures are counted in the stats.
func (r *Runner) Run(ctx context.Context) (stats RunStats, err error) {
	r.defaults()
	start := r.Now()

	r.runID = uuid.NewString()
	r.Metrics.IncRuns()
	r.mirror(func(ctx context.Context, m StatusMirror) error { return m.StartRun(ctx, r.runID) })
	defer func() {
		stats.Elapsed = r.Now().Sub(start)
		r.mirror(func(ctx context.Context, m StatusMirror) error {
			return m.FinishRun(ctx, r.runID, statusdb.RunTotals{
				Discovered: stats.Discovered,
				Completed:  stats.Completed,
				Failed:     stats.Failed,
			})
		})
	}()

	if !r.Cfg.DryRun {
		recovered, err := r.Store.RecoverInterrupted()
		if err != nil {
			return stats, fmt.Errorf("recover interrupted files: %w", err)
		}
		for _, name := range recovered {
			r.Log.Warn("Previous run was interrupted while processing %s, will retry", name)
		}
	}

	found, err := copylog.ScanFile(r.Cfg.CopyLog, r.Store.Names())
	if err != nil {
		return stats, err
	}
	stats.Discovered = len(found)
	if len(found) > 0 {
		r.Log.Info("Copy log lists %d new file(s)", len(found))
	}

	if r.Cfg.DryRun {
		r.dryRun(append(r.Store.Pending(), found...), &stats)
		return stats, nil
	}

	if _, err := r.Store.Merge(found); err != nil {
		return stats, fmt.Errorf("merge discovered files: %w", err)
	}

	pending := r.Store.Pending()
	stats.Pending = len(pending)
	if len(pending) == 0 {
		r.Log.Info("Nothing to process")
		return stats, nil
	}
	r.Log.Info("Processing %d file(s)", len(pending))
	fmt.Fprintln(r.Out)

	for i, name := range pending {
		if ctx.Err() != nil {
			r.Log.Warn("Interrupted")
			break
		}
		r.Log.Info("[%d/%d] %s", i+1, len(pending), name)
		if err := r.Store.Start(name); err != nil {
			return stats, fmt.Errorf("mark %s processing: %w", name, err)
		}
		fileStart := r.Now()
		size, err := r.processFile(ctx, name)
		elapsed := r.Now().Sub(fileStart)

		if err == nil {
			stats.Completed++
			stats.RawBytes += size
			r.Metrics.ObserveFile(true, elapsed)
			r.Log.Success("Completed in %s", display.FormatDuration(elapsed))
			fmt.Fprintln(r.Out)
			continue
		}

		reason := failureReason(ctx, err)
		r.Log.Error("%s: %v", name, err)
		if ferr := r.Store.Fail(name, reason); ferr != nil {
			return stats, fmt.Errorf("record failure of %s: %w", name, ferr)
		}
		stats.Failed++
		r.Metrics.ObserveFile(false, elapsed)
		fmt.Fprintln(r.Out)
		if ctx.Err() != nil {
			r.Log.Warn("Interrupted")
			break
		}
	}

	r.printSummary(stats, r.Now().Sub(start))
	return stats, nil
}

func (r *Runner) defaults() {
	if r.Now == nil {
		r.Now = time.Now
	}
	if r.Out == nil {
		r.Out = os.Stdout
	}
	if r.Publisher == nil {
		r.Publisher = publish.Nop{}
	}
	if r.Table == nil {
		r.Table = metrics.DefaultTable()
	}
	if r.Template == "" {
		r.Template, _ = report.LoadTemplate("")
	}
	if r.Mirror != nil && !r.hooked {
		r.Store.OnChange(func(rec status.Record) {
			r.mirror(func(ctx context.Context, m StatusMirror) error { return m.Record(ctx, r.runID, rec) })
		})
		r.hooked = true
	}
}

// mirror runs fn against the status mirror, if any. Mirror errors are
// logged and otherwise ignored: the status log is authoritative.
func (r *Runner) mirror(fn func(context.Context, StatusMirror) error) {
	if r.Mirror == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
	defer cancel()
	if err := fn(ctx, r.Mirror); err != nil {
		r.Log.Warn("Status mirror: %v", err)
	}
}

// BaseName strips the extension from a RAW file name.
func BaseName(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// OutDir is the per-file working directory under the output folder.
func OutDir(outputDir, base string) string {
	return filepath.Join(outputDir, base+"_QC")
}

// processFile runs every step for a file already marked processing and
// marks it completed. It returns the RAW file size. On error the caller
// marks the file failed.
func (r *Runner) processFile(ctx context.Context, name string) (int64, error) {
	base := BaseName(name)
	raw := filepath.Join(r.Cfg.InputDir, name)
	fi, err := os.Stat(raw)
	if err != nil {
		return 0, fmt.Errorf("raw file: %w", err)
	}

	outDir := OutDir(r.Cfg.OutputDir, base)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return 0, fmt.Errorf("create output directory: %w", err)
	}
	day := r.Now()
	webDir, err := publish.PrepareWebDir(r.Cfg.WebDir, base, day)
	if err != nil {
		return 0, err
	}
	r.Log.Debug(r.Cfg.Verbose, "  Work: %s", outDir)
	r.Log.Debug(r.Cfg.Verbose, "  Web:  %s", webDir)

	start := r.Now()
	r.Log.Info("  Converting")
	if err := r.Tools.Convert(ctx, raw, outDir); err != nil {
		return 0, err
	}
	r.Log.Info("  Running NIST MSQC")
	if err := r.Tools.RunQC(ctx, outDir); err != nil {
		return 0, err
	}
	r.Log.Info("  Rendering graphics")
	if err := r.Tools.Graphics(ctx, outDir, webDir, base); err != nil {
		return 0, err
	}

	values, collectErr := metrics.Collect(outDir, base, fi.Size(), r.Table)
	if values == nil {
		return 0, collectErr
	}
	unresolved := metrics.Unresolved(r.Table, values)
	failErr := collectErr
	if failErr == nil && len(unresolved) > 0 {
		if r.Cfg.StrictMetrics {
			failErr = fmt.Errorf("unresolved metrics: %s", strings.Join(unresolved, ", "))
		} else {
			r.Log.Warn("  Unresolved metrics: %s", strings.Join(unresolved, ", "))
		}
	}
	unresolved = appendMissing(unresolved, metrics.FailedMetrics(collectErr))

	// A failing file still gets a report with whatever was extracted.
	htmlPath, err := report.Write(r.Template, report.Input{
		RawFile:   name,
		WebDir:    webDir,
		Base:      base,
		Metrics:   values,
		Generated: r.Now(),
		Runtime:   r.Now().Sub(start),
	}, unresolved)
	if failErr != nil {
		if err == nil {
			r.Log.Warn("  Partial report: %s", htmlPath)
		}
		return 0, failErr
	}
	if err != nil {
		return 0, err
	}

	if err := r.Publisher.Publish(ctx, webDir, publish.ObjectPrefix(r.Cfg.S3.Prefix, base, day)); err != nil {
		return 0, fmt.Errorf("publish report: %w", err)
	}

	if err := r.Store.Complete(name, htmlPath); err != nil {
		return 0, err
	}
	r.Log.Info("  Report: %s", htmlPath)
	return fi.Size(), nil
}

// appendMissing appends the names from extra not already in names.
func appendMissing(names, extra []string) []string {
	for _, n := range extra {
		if !slices.Contains(names, n) {
			names = append(names, n)
		}
	}
	return names
}

// failureReason is the short reason stored in the status log.
func failureReason(ctx context.Context, err error) string {
	if ctx.Err() != nil {
		return ReasonInterrupted
	}
	var te *tools.ExternalToolError
	if errors.As(err, &te) {
		switch {
		case te.TimedOut:
			return fmt.Sprintf("%s: timed out after %s", te.Tool, te.Timeout)
		case te.ExitCode >= 0:
			return fmt.Sprintf("%s: exit status %d", te.Tool, te.ExitCode)
		}
	}
	return err.Error()
}

func (r *Runner) dryRun(names []string, stats *RunStats) {
	stats.Pending = len(names)
	stats.Skipped = len(names)
	if len(names) == 0 {
		r.Log.Info("Nothing to process")
		return
	}
	p, _ := r.Tools.(planner)
	day := r.Now()
	for i, name := range names {
		base := BaseName(name)
		r.Log.Info("[%d/%d] %s", i+1, len(names), name)
		if p == nil {
			continue
		}
		raw := filepath.Join(r.Cfg.InputDir, name)
		webDir := publish.WebDir(r.Cfg.WebDir, base, day)
		for _, c := range p.Plan(raw, OutDir(r.Cfg.OutputDir, base), webDir, base) {
			r.Log.Success("[DRY] %s", c.String())
		}
	}
}

func (r *Runner) printSummary(stats RunStats, elapsed time.Duration) {
	rows := []display.Row{
		{Label: "Discovered", Value: fmt.Sprintf("%d", stats.Discovered)},
		{Label: "Processed", Value: fmt.Sprintf("%d", stats.Completed+stats.Failed)},
		{Label: "Completed", Value: fmt.Sprintf("%d", stats.Completed)},
		{Label: "Failed", Value: fmt.Sprintf("%d", stats.Failed)},
		{Label: "RAW data", Value: display.FormatBytes(stats.RawBytes)},
		{Label: "Elapsed", Value: display.FormatDuration(elapsed)},
	}
	fmt.Fprintln(r.Out, display.Summary("QC run", rows))
}
