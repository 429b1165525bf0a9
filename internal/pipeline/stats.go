package pipeline

import "time"

// RunStats tracks counters across one or more passes.
type RunStats struct {
	Discovered int // names newly merged from the copy log
	Pending    int // files picked up for processing
	Completed  int
	Failed     int
	Skipped    int // listed but not processed (dry run)
	RawBytes   int64
	Elapsed    time.Duration
}

// Add folds o into s.
func (s *RunStats) Add(o RunStats) {
	s.Discovered += o.Discovered
	s.Pending += o.Pending
	s.Completed += o.Completed
	s.Failed += o.Failed
	s.Skipped += o.Skipped
	s.RawBytes += o.RawBytes
	s.Elapsed += o.Elapsed
}
