// Command msqc is the CLI entrypoint for the mass-spectrometry QC pipeline.
//
// It loads configuration from defaults, the environment and flags, then
// either runs dependency diagnostics (--check) or processes the RAW files
// named in the copy log, once or repeatedly with --watch.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ctmm/msqc/internal/check"
	"github.com/ctmm/msqc/internal/config"
	"github.com/ctmm/msqc/internal/display"
	"github.com/ctmm/msqc/internal/logging"
	"github.com/ctmm/msqc/internal/pipeline"
	"github.com/ctmm/msqc/internal/publish"
	"github.com/ctmm/msqc/internal/report"
	"github.com/ctmm/msqc/internal/server"
	"github.com/ctmm/msqc/internal/status"
	"github.com/ctmm/msqc/internal/statusdb"
	"github.com/ctmm/msqc/internal/tools"
)

// version and commit are injected at build time via -ldflags.
var (
	version = "1.0.0"
	commit  = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Bootstrap: no logger yet, errors go straight to stderr.
	cfg := config.DefaultConfig()
	if err := config.LoadEnv(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "msqc: %v\n", err)
		return 1
	}
	if err := config.ParseFlags(&cfg, os.Args[1:], version); err != nil {
		if errors.Is(err, config.ErrExitEarly) {
			return 0
		}
		fmt.Fprintf(os.Stderr, "msqc: %v\n", err)
		return 1
	}
	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "msqc: %v\n", err)
		return 1
	}

	log, err := logging.NewLogger(&cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "msqc: %v\n", err)
		return 1
	}
	defer log.Close()

	display.PrintBanner(os.Stdout, version)

	if cfg.CheckOnly {
		if !check.RunCheck(&cfg, log) {
			return 1
		}
		return 0
	}

	inputAbs, err := absPath(cfg.InputDir)
	if err != nil {
		log.Error("Input not found: %s", cfg.InputDir)
		return 1
	}
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		log.Error("Cannot create output directory: %s", cfg.OutputDir)
		return 1
	}
	outputAbs, err := absPath(cfg.OutputDir)
	if err != nil {
		log.Error("Cannot resolve output path: %s", cfg.OutputDir)
		return 1
	}
	if err := cfg.ValidatePaths(inputAbs, outputAbs); err != nil {
		log.Error("%v", err)
		log.Error("Choose an output path outside: %s", cfg.InputDir)
		return 1
	}
	if _, err := os.Stat(cfg.CopyLog); err != nil {
		log.Error("Copy log not found: %s", cfg.CopyLog)
		return 1
	}

	log.Info("=== msqc v%s (%s) ===", version, commit)
	log.Info("In:     %s", cfg.InputDir)
	log.Info("Out:    %s", cfg.OutputDir)
	log.Info("Web:    %s", cfg.WebDir)
	log.Info("Copy:   %s", cfg.CopyLog)
	log.Info("Status: %s", cfg.StatusLog)
	if cfg.DryRun {
		log.Warn("DRY RUN: no tools are run and the status log is not written")
	}
	log.Info("")

	if err := check.CheckDeps(&cfg); err != nil {
		log.Error("%v", err)
		return 1
	}

	tmpl, err := report.LoadTemplate(cfg.Template)
	if err != nil {
		log.Error("%v", err)
		return 1
	}

	store, err := status.Load(cfg.StatusLog)
	if err != nil {
		log.Error("%v", err)
		return 1
	}

	// Cancel on SIGINT/SIGTERM. The file in flight is marked failed
	// ("interrupted") and retried on the next run.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Warn("Received interrupt, stopping current file...")
		cancel()
	}()

	executor := tools.NewExecutor(&cfg)
	if cfg.Verbose {
		executor.Echo = os.Stdout
	}
	executor.OnRetry = func(c tools.Command, attempt int, action tools.RetryAction, wait time.Duration) {
		log.Warn("  %s: retry %d (%s) in %s", c.Tool, attempt, action, wait)
	}

	runner := &pipeline.Runner{
		Cfg:       &cfg,
		Log:       log,
		Store:     store,
		Tools:     tools.NewChain(&cfg, executor),
		Publisher: publish.Nop{},
		Template:  tmpl,
	}

	if cfg.S3.Enabled() && !cfg.DryRun {
		s3, err := publish.NewS3(cfg.S3)
		if err != nil {
			log.Error("%v", err)
			return 1
		}
		runner.Publisher = s3
		log.Info("Publishing reports to s3://%s/%s", cfg.S3.Bucket, cfg.S3.Prefix)
	}

	if cfg.DatabaseURL != "" && !cfg.DryRun {
		db, err := statusdb.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Error("%v", err)
			return 1
		}
		defer db.Close()
		runner.Mirror = statusdb.NewMirror(db)
		log.Info("Mirroring status to PostgreSQL")
	}

	if cfg.Serve != "" {
		runner.Metrics = server.NewMetrics()
		srvDone := make(chan struct{})
		go func() {
			defer close(srvDone)
			if err := server.Serve(ctx, cfg.Serve, server.NewRouter(store, runner.Metrics), log); err != nil {
				log.Error("Status page: %v", err)
			}
		}()
		defer func() {
			cancel()
			<-srvDone
		}()
	}

	var stats pipeline.RunStats
	if cfg.Watch > 0 {
		stats, err = runner.Watch(ctx, cfg.Watch)
	} else {
		stats, err = runner.Run(ctx)
	}
	if err != nil {
		log.Error("%v", err)
		return 1
	}

	if stats.Failed > 0 {
		return 1
	}
	return 0
}

// absPath returns the absolute, symlink-resolved path for safe comparison
// of input vs output directory hierarchies.
func absPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}
