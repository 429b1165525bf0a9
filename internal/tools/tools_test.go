package tools

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ctmm/msqc/internal/config"
)

func TestBuilders(t *testing.T) {
	mz := MSConvertMzXML("msconvert", "/in/s1.RAW", "/out/s1_QC")
	assert.Equal(t, []string{"/in/s1.RAW", "-o", "/out/s1_QC", "--mzXML", "-e", ".RAW.mzXML"}, mz.Args)

	mgf := MSConvertMGF("msconvert", "/in/s1.RAW", "/out/s1_QC")
	assert.Equal(t, []string{"/in/s1.RAW", "-o", "/out/s1_QC", "--mgf", "-e", ".RAW.MGF"}, mgf.Args)

	nist := NISTPipeline(NISTParams{
		Perl:       "perl",
		Script:     "/opt/nist/scripts/run_NISTMSQC_pipeline.pl",
		Library:    "human_2011_05_26_it",
		Instrument: "LTQ",
	}, "/out/s1_QC", "/out/s1_QC")
	assert.Equal(t, "perl", nist.Path)
	assert.Equal(t, "/opt/nist", nist.Dir)
	assert.Equal(t, "perl /opt/nist/scripts/run_NISTMSQC_pipeline.pl --in_dir /out/s1_QC --out_dir /out/s1_QC "+
		"--library human_2011_05_26_it --instrument_type LTQ --overwrite_searches --pro_ms --log_file --mode lite",
		nist.String())

	g := Graphics("Rscript", "/opt/qc/graphics.R", "/out/s1_QC/s1.RAW.mzXML", "/web/2013/01/14/s1", "s1")
	assert.Equal(t, []string{"/opt/qc/graphics.R", "/out/s1_QC/s1.RAW.mzXML", "/web/2013/01/14/s1/s1", "1"}, g.Args)
}

func TestCommandStringQuotes(t *testing.T) {
	c := Command{Path: "/Program Files/msconvert", Args: []string{"a b", "", "c"}}
	assert.Equal(t, `"/Program Files/msconvert" "a b" "" c`, c.String())
}

func TestRetryState(t *testing.T) {
	rs := NewRetryState(2, time.Second)

	action, wait := rs.Advance("Error: The process cannot access the file because it is being used by another process.")
	assert.Equal(t, RetryFileLocked, action)
	assert.Equal(t, time.Second, wait)

	action, wait = rs.Advance("fork: Resource temporarily unavailable")
	assert.Equal(t, RetryResourceBusy, action)
	assert.Equal(t, 2*time.Second, wait)

	action, _ = rs.Advance("sharing violation")
	assert.Equal(t, RetryNone, action, "budget spent")
}

func TestRetryState_NotTransient(t *testing.T) {
	tests := []struct {
		name   string
		stderr string
	}{
		{"bad option", "Unknown option --bogus"},
		{"unwritable output", "open /qc/out/s1_QC/s1.RAW.mzXML: permission denied"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rs := NewRetryState(3, time.Second)
			action, _ := rs.Advance(tt.stderr)
			assert.Equal(t, RetryNone, action)
			assert.Equal(t, 0, rs.Attempt)
		})
	}
}

func TestExternalToolErrorMessage(t *testing.T) {
	e := &ExternalToolError{Tool: "nist", ExitCode: 2, Stderr: "warming up\nno spectra found\n"}
	assert.Equal(t, "nist exited with status 2: no spectra found", e.Error())

	e = &ExternalToolError{Tool: "nist", ExitCode: -1, TimedOut: true, Timeout: time.Hour}
	assert.Equal(t, "nist timed out after 1h0m0s", e.Error())
}

func TestTailBuffer(t *testing.T) {
	tb := &tailBuffer{max: 5}
	_, _ = tb.Write([]byte("abc"))
	_, _ = tb.Write([]byte("defg"))
	assert.Equal(t, "cdefg", tb.String())
}

func skipWithoutShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
}

func sh(script string) Command {
	return Command{Tool: "sh", Path: "/bin/sh", Args: []string{"-c", script}}
}

func TestExecutor_Success(t *testing.T) {
	skipWithoutShell(t)
	e := &Executor{Timeout: 10 * time.Second}
	require.NoError(t, e.Run(context.Background(), sh("exit 0")))
}

func TestExecutor_NonZeroExit(t *testing.T) {
	skipWithoutShell(t)
	e := &Executor{Timeout: 10 * time.Second}
	err := e.Run(context.Background(), sh("echo 'bad input' >&2; exit 3"))

	var te *ExternalToolError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, 3, te.ExitCode)
	assert.False(t, te.TimedOut)
	assert.Contains(t, te.Stderr, "bad input")
}

func TestExecutor_StartFailure(t *testing.T) {
	e := &Executor{Timeout: time.Second}
	err := e.Run(context.Background(), Command{Tool: "ghost", Path: filepath.Join(t.TempDir(), "missing")})

	var te *ExternalToolError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, -1, te.ExitCode)
}

func TestExecutor_TimeoutKillsProcessGroup(t *testing.T) {
	skipWithoutShell(t)
	dir := t.TempDir()
	marker := filepath.Join(dir, "survived")
	e := &Executor{Timeout: 300 * time.Millisecond, WaitDelay: time.Second, Retries: 3}

	start := time.Now()
	err := e.Run(context.Background(), sh("(sleep 2; touch "+marker+") & sleep 30"))
	elapsed := time.Since(start)

	var te *ExternalToolError
	require.True(t, errors.As(err, &te))
	assert.True(t, te.TimedOut)
	assert.Less(t, elapsed, 5*time.Second)

	time.Sleep(2500 * time.Millisecond)
	_, statErr := os.Stat(marker)
	assert.True(t, os.IsNotExist(statErr), "background child must be killed with the group")
}

func TestExecutor_Cancellation(t *testing.T) {
	skipWithoutShell(t)
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(200*time.Millisecond, cancel)

	e := &Executor{Timeout: time.Minute, WaitDelay: time.Second}
	err := e.Run(ctx, sh("sleep 30"))
	assert.ErrorIs(t, err, context.Canceled)

	var te *ExternalToolError
	require.True(t, errors.As(err, &te))
	assert.False(t, te.TimedOut)
}

func TestExecutor_RetriesTransientFailure(t *testing.T) {
	skipWithoutShell(t)
	dir := t.TempDir()
	script := `if [ -f seen ]; then exit 0; fi; touch seen; ` +
		`echo "The process cannot access the file because it is being used by another process" >&2; exit 1`

	var retries []RetryAction
	e := &Executor{
		Timeout: 10 * time.Second,
		Retries: 1,
		Backoff: 10 * time.Millisecond,
		OnRetry: func(_ Command, _ int, a RetryAction, _ time.Duration) { retries = append(retries, a) },
	}
	c := sh(script)
	c.Dir = dir
	require.NoError(t, e.Run(context.Background(), c))
	assert.Equal(t, []RetryAction{RetryFileLocked}, retries)
}

func TestExecutor_EchoesOutput(t *testing.T) {
	skipWithoutShell(t)
	var echo strings.Builder
	e := &Executor{Timeout: 10 * time.Second, Echo: &echo}
	require.NoError(t, e.Run(context.Background(), sh("echo out; echo err >&2")))
	assert.Contains(t, echo.String(), "out")
	assert.Contains(t, echo.String(), "err")
}

type recordingRunner struct {
	cmds   []Command
	failOn string
}

func (r *recordingRunner) Run(_ context.Context, c Command) error {
	r.cmds = append(r.cmds, c)
	if c.Tool == r.failOn {
		return &ExternalToolError{Tool: c.Tool, ExitCode: 1}
	}
	return nil
}

func TestChain(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.NISTHome = "/opt/nist"
	cfg.GraphicsScript = "/opt/qc/graphics.R"
	cfg.Resolve()

	r := &recordingRunner{}
	c := NewChain(&cfg, r)
	ctx := context.Background()

	require.NoError(t, c.Convert(ctx, "/in/s1.RAW", "/out/s1_QC"))
	require.NoError(t, c.RunQC(ctx, "/out/s1_QC"))
	require.NoError(t, c.Graphics(ctx, "/out/s1_QC", "/web/s1", "s1"))

	assert.Equal(t, c.Plan("/in/s1.RAW", "/out/s1_QC", "/web/s1", "s1"), r.cmds)
	assert.Equal(t, "/opt/nist/bin/msconvert", r.cmds[0].Path)
}

func TestChain_ConvertStopsOnFirstFailure(t *testing.T) {
	r := &recordingRunner{failOn: "msconvert"}
	c := &Chain{Runner: r, MSConvert: "msconvert"}
	err := c.Convert(context.Background(), "a.RAW", "out")

	var te *ExternalToolError
	require.True(t, errors.As(err, &te))
	assert.Len(t, r.cmds, 1)
}
