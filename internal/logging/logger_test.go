package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ctmm/msqc/internal/config"
)

func TestNewLogger_WithFile(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.ColorMode = config.ColorNever
	cfg.LogFile = filepath.Join(t.TempDir(), "logs", "msqc.log")
	l, err := NewLogger(&cfg)
	require.NoError(t, err)
	l.out, l.errOut = &bytes.Buffer{}, &bytes.Buffer{}

	l.Info("to file")
	l.Debug(false, "hidden")
	require.NoError(t, l.Close())

	b, err := os.ReadFile(cfg.LogFile)
	require.NoError(t, err)
	assert.Contains(t, string(b), "[INFO] to file")
	assert.NotContains(t, string(b), "hidden")
}

func TestLevelsAndStreams(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.ColorMode = config.ColorNever
	_, err := NewLogger(&cfg)
	require.NoError(t, err)

	var out, errOut bytes.Buffer
	l := New(&out, &errOut)
	l.now = func() time.Time { return time.Date(2013, 1, 14, 9, 30, 0, 0, time.UTC) }

	l.Info("one %d", 1)
	l.Success("two")
	l.Warn("three")
	l.Debug(true, "four")
	l.Error("boom")

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	assert.Equal(t, []string{
		"2013-01-14 09:30:00 [INFO] one 1",
		"2013-01-14 09:30:00 [SUCCESS] two",
		"2013-01-14 09:30:00 [WARN] three",
		"2013-01-14 09:30:00 [DEBUG] four",
	}, lines)
	assert.Equal(t, "2013-01-14 09:30:00 [ERROR] boom\n", errOut.String())
}

func TestColoredOutputKeepsFilePlain(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.ColorMode = config.ColorAlways
	cfg.LogFile = filepath.Join(t.TempDir(), "msqc.log")
	l, err := NewLogger(&cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		off := config.DefaultConfig()
		off.ColorMode = config.ColorNever
		_, _ = NewLogger(&off)
	})

	var out bytes.Buffer
	l.out = &out
	l.Warn("careful")
	require.NoError(t, l.Close())

	assert.Contains(t, out.String(), "\033[")
	b, err := os.ReadFile(cfg.LogFile)
	require.NoError(t, err)
	assert.NotContains(t, string(b), "\033[")
}
