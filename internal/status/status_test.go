package status

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeLog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "qc_status.log")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func fixedClock() time.Time { return time.Date(2013, 1, 14, 9, 0, 0, 0, time.UTC) }

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "qc_status.log"))
	var mle *MissingLogError
	require.True(t, errors.As(err, &mle))
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestLoad_ParsesFields(t *testing.T) {
	path := writeLog(t, "a.raw\tcompleted\t/web/2013/1/14/a/a_report.html\n"+
		"b.raw\tnew\n"+
		"\n"+
		"c.raw\tfailed\t\tNIST timed out\textra\tfields\n")
	s, err := Load(path)
	require.NoError(t, err)

	recs := s.Snapshot()
	require.Len(t, recs, 3)
	assert.Equal(t, Record{Name: "a.raw", Status: Completed, ReportPath: "/web/2013/1/14/a/a_report.html"}, recs[0])
	assert.Equal(t, Record{Name: "b.raw", Status: New}, recs[1])
	assert.Equal(t, Failed, recs[2].Status)
	assert.Equal(t, "NIST timed out", recs[2].Reason)
}

func TestLoad_MalformedLine(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"single field", "a.raw\n"},
		{"unknown status", "a.raw\tdone\n"},
		{"empty name", "\tnew\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeLog(t, tt.content))
			var le *LineError
			require.True(t, errors.As(err, &le))
			assert.Equal(t, 1, le.Line)
		})
	}
}

func TestLoadThenEmptyMergeIsIdentity(t *testing.T) {
	contents := []string{
		"",
		"a.raw\tnew\n",
		"a.raw\tcompleted\t/r.html\nb.raw\tprocessing\nc.raw\tfailed\t\toops\n",
	}
	for _, c := range contents {
		path := writeLog(t, c)
		s, err := Load(path)
		require.NoError(t, err)
		before := s.Snapshot()

		added, err := s.Merge(nil)
		require.NoError(t, err)
		assert.Empty(t, added)
		assert.Equal(t, before, s.Snapshot())

		b, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, c, string(b), "empty merge must not rewrite the log")
	}
}

func TestMerge_AddsOnlyUnknown(t *testing.T) {
	path := writeLog(t, "a.raw\tcompleted\t/r.html\n")
	s, err := Load(path)
	require.NoError(t, err)
	s.SetClock(fixedClock)

	added, err := s.Merge([]string{"a.raw", "b.raw", "c.raw", "b.raw"})
	require.NoError(t, err)
	assert.Equal(t, []string{"b.raw", "c.raw"}, added)

	a, _ := s.Get("a.raw")
	assert.Equal(t, Completed, a.Status, "discovery never overwrites status")

	reloaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"b.raw", "c.raw"}, reloaded.Pending())
}

func TestTransition_HappyPath(t *testing.T) {
	path := writeLog(t, "x.raw\tnew\n")
	s, err := Load(path)
	require.NoError(t, err)

	require.NoError(t, s.Start("x.raw"))
	reloaded, err := Load(path)
	require.NoError(t, err)
	r, _ := reloaded.Get("x.raw")
	assert.Equal(t, Processing, r.Status, "transition is durable before returning")

	require.NoError(t, s.Complete("x.raw", "/web/x_report.html"))
	reloaded, err = Load(path)
	require.NoError(t, err)
	r, _ = reloaded.Get("x.raw")
	assert.Equal(t, Completed, r.Status)
	assert.Equal(t, "/web/x_report.html", r.ReportPath)
}

func TestTransition_RejectsCompletedToNew(t *testing.T) {
	s := NewMemory([]Record{{Name: "x", Status: Completed}})
	err := s.Transition("x", New, "", "")

	var ite *InvalidTransitionError
	require.True(t, errors.As(err, &ite))
	assert.Equal(t, Completed, ite.From)
	assert.Equal(t, New, ite.To)

	r, _ := s.Get("x")
	assert.Equal(t, Completed, r.Status)
}

func TestTransition_Matrix(t *testing.T) {
	all := []Status{New, Processing, Completed, Failed}
	legal := map[[2]Status]bool{
		{New, Processing}:       true,
		{Processing, Completed}: true,
		{Processing, Failed}:    true,
		{Failed, Processing}:    true,
	}
	for _, from := range all {
		for _, to := range all {
			s := NewMemory([]Record{{Name: "f", Status: from}})
			err := s.Transition("f", to, "", "")
			if legal[[2]Status{from, to}] {
				assert.NoError(t, err, "%s -> %s", from, to)
			} else {
				var ite *InvalidTransitionError
				assert.True(t, errors.As(err, &ite), "%s -> %s", from, to)
			}
		}
	}
}

func TestTransition_UnknownFile(t *testing.T) {
	s := NewMemory(nil)
	assert.ErrorIs(t, s.Start("nope"), ErrUnknownFile)
}

func TestFailThenRetry(t *testing.T) {
	s := NewMemory([]Record{{Name: "f", Status: New}})
	require.NoError(t, s.Start("f"))
	require.NoError(t, s.Fail("f", "msconvert exited 1"))

	r, _ := s.Get("f")
	assert.Equal(t, "msconvert exited 1", r.Reason)
	assert.Equal(t, []string{"f"}, s.Pending())

	require.NoError(t, s.Start("f"))
	r, _ = s.Get("f")
	assert.Empty(t, r.Reason)
}

func TestRecoverInterrupted(t *testing.T) {
	path := writeLog(t, "a.raw\tprocessing\nb.raw\tcompleted\t/b.html\n")
	s, err := Load(path)
	require.NoError(t, err)

	stale, err := s.RecoverInterrupted()
	require.NoError(t, err)
	assert.Equal(t, []string{"a.raw"}, stale)
	assert.Equal(t, []string{"a.raw"}, s.Pending())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), "a.raw\tfailed\t\tinterrupted\n")
}

func TestOnChange(t *testing.T) {
	s := NewMemory([]Record{{Name: "f", Status: New}})
	var seen []Status
	s.OnChange(func(r Record) { seen = append(seen, r.Status) })

	require.NoError(t, s.Start("f"))
	require.NoError(t, s.Complete("f", "r.html"))
	_, err := s.Merge([]string{"g"})
	require.NoError(t, err)

	assert.Equal(t, []Status{Processing, Completed, New}, seen)
}

func TestOnChange_ObserverReadsStore(t *testing.T) {
	s := NewMemory([]Record{{Name: "f", Status: New}})
	var counts []map[Status]int
	s.OnChange(func(r Record) {
		got, ok := s.Get(r.Name)
		assert.True(t, ok)
		assert.Equal(t, r.Status, got.Status)
		counts = append(counts, s.Counts())
	})

	done := make(chan error, 1)
	go func() {
		if err := s.Start("f"); err != nil {
			done <- err
			return
		}
		_, err := s.Merge([]string{"g"})
		done <- err
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("observer blocked on the store lock")
	}
	require.Len(t, counts, 2)
	assert.Equal(t, 1, counts[0][Processing])
	assert.Equal(t, 1, counts[1][New])
}

func TestSaveFailureRollsBack(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "missing-dir", "qc_status.log")
	s := newStore(path, []Record{{Name: "f", Status: New}})

	err := s.Start("f")
	require.Error(t, err)
	r, _ := s.Get("f")
	assert.Equal(t, New, r.Status)

	_, err = s.Merge([]string{"g"})
	require.Error(t, err)
	_, ok := s.Get("g")
	assert.False(t, ok)
}

func TestWrite_SanitizesReason(t *testing.T) {
	var sb strings.Builder
	require.NoError(t, Write(&sb, []Record{{Name: "f", Status: Failed, Reason: "line one\nline\ttwo"}}))
	assert.Equal(t, "f\tfailed\t\tline one line two\n", sb.String())
}

func TestParseStatus(t *testing.T) {
	for _, s := range []Status{New, Processing, Completed, Failed} {
		got, err := ParseStatus(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
	got, err := ParseStatus(" Completed\r")
	require.NoError(t, err)
	assert.Equal(t, Completed, got)
}
