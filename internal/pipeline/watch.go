package pipeline

import (
	"context"
	"os"
	"time"
)

// logStamp identifies one version of the copy log.
type logStamp struct {
	size    int64
	modTime time.Time
}

func statLog(path string) (logStamp, bool) {
	fi, err := os.Stat(path)
	if err != nil {
		return logStamp{}, false
	}
	return logStamp{size: fi.Size(), modTime: fi.ModTime()}, true
}

// Watch runs a pass, then polls the copy log every interval and runs
// another pass whenever its size or modification time changes. It returns
// the combined stats when ctx is cancelled or a pass fails fatally.
func (r *Runner) Watch(ctx context.Context, interval time.Duration) (RunStats, error) {
	var total RunStats
	last, _ := statLog(r.Cfg.CopyLog)
	stats, err := r.Run(ctx)
	total.Add(stats)
	if err != nil {
		return total, err
	}

	r.Log.Info("Watching %s every %s", r.Cfg.CopyLog, interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return total, nil
		case <-ticker.C:
		}
		cur, ok := statLog(r.Cfg.CopyLog)
		if !ok {
			r.Log.Warn("Copy log not readable: %s", r.Cfg.CopyLog)
			continue
		}
		if cur.size == last.size && cur.modTime.Equal(last.modTime) {
			continue
		}
		last = cur
		r.Log.Debug(r.Cfg.Verbose, "Copy log changed (%d bytes)", cur.size)
		stats, err := r.Run(ctx)
		total.Add(stats)
		if err != nil {
			return total, err
		}
	}
}
