package server

import (
	"bytes"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ctmm/msqc/internal/status"
)

// Metrics counts pipeline activity for the /metrics endpoint. All methods
// are safe on a nil receiver so callers need not check whether the status
// page is enabled.
type Metrics struct {
	runs      atomic.Uint64
	completed atomic.Uint64
	failed    atomic.Uint64
	duration  *histogram
}

// NewMetrics returns zeroed metrics with per-file duration buckets from
// one minute to four hours.
func NewMetrics() *Metrics {
	return &Metrics{
		duration: newHistogram([]float64{60, 300, 600, 1200, 1800, 3600, 7200, 14400}),
	}
}

// IncRuns counts one pass over the copy log.
func (m *Metrics) IncRuns() {
	if m != nil {
		m.runs.Add(1)
	}
}

// ObserveFile records the outcome and processing time of one file.
func (m *Metrics) ObserveFile(ok bool, d time.Duration) {
	if m == nil {
		return
	}
	if ok {
		m.completed.Add(1)
	} else {
		m.failed.Add(1)
	}
	m.duration.Observe(d.Seconds())
}

// Render writes the metrics and the per-status file gauge in Prometheus
// text format.
func (m *Metrics) Render(counts map[status.Status]int) string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "# HELP msqc_files Files in the status log by status\n")
	fmt.Fprintf(&buf, "# TYPE msqc_files gauge\n")
	for _, s := range []status.Status{status.New, status.Processing, status.Completed, status.Failed} {
		fmt.Fprintf(&buf, "msqc_files{status=%q} %d\n", s.String(), counts[s])
	}
	if m == nil {
		return buf.String()
	}
	writeCounter(&buf, "msqc_runs_total", "Passes over the copy log", m.runs.Load())
	writeCounter(&buf, "msqc_files_completed_total", "Files completed by this process", m.completed.Load())
	writeCounter(&buf, "msqc_files_failed_total", "Files failed by this process", m.failed.Load())
	writeHistogram(&buf, "msqc_file_duration_seconds", "Per-file processing time in seconds", m.duration.Snapshot())
	return buf.String()
}

type histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type histogramSnapshot struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *histogram {
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

// Observe adds value to the first bucket whose bound it does not exceed.
func (h *histogram) Observe(value float64) {
	if value < 0 {
		value = 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
			return
		}
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
}

func writeCounter(buf *bytes.Buffer, name, help string, value uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

func writeHistogram(buf *bytes.Buffer, name, help string, snap histogramSnapshot) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s histogram\n", name)
	var cumulative uint64
	for i, bound := range snap.buckets {
		cumulative += snap.counts[i]
		fmt.Fprintf(buf, "%s_bucket{le=\"%s\"} %d\n", name, formatFloat(bound), cumulative)
	}
	fmt.Fprintf(buf, "%s_bucket{le=\"+Inf\"} %d\n", name, snap.count)
	fmt.Fprintf(buf, "%s_sum %s\n", name, formatFloat(snap.sum))
	fmt.Fprintf(buf, "%s_count %d\n", name, snap.count)
}

func formatFloat(value float64) string {
	if value == float64(int64(value)) {
		return strconv.FormatInt(int64(value), 10)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}
