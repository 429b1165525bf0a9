package tools

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"time"
)

const (
	defaultWaitDelay = 10 * time.Second
	defaultBackoff   = 30 * time.Second
	stderrTailBytes  = 16 << 10
)

// Executor runs commands with a per-run timeout and transient-failure
// retries. The zero value is not usable; set at least Timeout.
type Executor struct {
	Timeout   time.Duration
	Retries   int
	Backoff   time.Duration // First retry wait. Default: 30s.
	WaitDelay time.Duration // Bound on pipe drain after kill. Default: 10s.

	// Echo receives the child's stdout and stderr live when non-nil
	// (verbose mode). stderr is captured for errors either way.
	Echo io.Writer

	// OnRetry is called before a retry is attempted.
	OnRetry func(c Command, attempt int, action RetryAction, wait time.Duration)
}

// Run executes c, retrying transient failures. Timeouts and cancellation
// are never retried.
func (e *Executor) Run(ctx context.Context, c Command) error {
	backoff := e.Backoff
	if backoff <= 0 {
		backoff = defaultBackoff
	}
	rs := NewRetryState(e.Retries, backoff)
	for {
		err := e.runOnce(ctx, c)
		if err == nil {
			return nil
		}
		var te *ExternalToolError
		if !errors.As(err, &te) || te.TimedOut || ctx.Err() != nil {
			return err
		}
		action, wait := rs.Advance(te.Stderr)
		if action == RetryNone {
			return err
		}
		if e.OnRetry != nil {
			e.OnRetry(c, rs.Attempt, action, wait)
		}
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return err
		case <-t.C:
		}
	}
}

// runOnce starts c in its own process group and waits at most e.Timeout.
// On every exit path the group is gone once runOnce returns.
func (e *Executor) runOnce(ctx context.Context, c Command) error {
	runCtx, cancel := context.WithTimeout(ctx, e.Timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, c.Path, c.Args...)
	cmd.Dir = c.Dir
	setProcessGroup(cmd)
	cmd.WaitDelay = e.WaitDelay
	if cmd.WaitDelay <= 0 {
		cmd.WaitDelay = defaultWaitDelay
	}

	stderr := &tailBuffer{max: stderrTailBytes}
	if e.Echo != nil {
		cmd.Stdout = e.Echo
		cmd.Stderr = io.MultiWriter(stderr, e.Echo)
	} else {
		cmd.Stderr = stderr
	}

	err := cmd.Run()
	killGroup(cmd)
	if err == nil {
		return nil
	}

	te := &ExternalToolError{
		Tool:     c.Tool,
		ExitCode: -1,
		Stderr:   stderr.String(),
		Err:      err,
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) && ee.Exited() {
		te.ExitCode = ee.ExitCode()
	}
	switch {
	case ctx.Err() != nil:
		te.Err = fmt.Errorf("%w: %w", ctx.Err(), err)
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		te.TimedOut = true
		te.Timeout = e.Timeout
		te.ExitCode = -1
	}
	return te
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	max int
	buf []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.max; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string { return string(t.buf) }
