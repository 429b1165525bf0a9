// Package publish places finished reports where people look for them: the
// dated web tree on disk and, optionally, an S3-compatible bucket.
package publish

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"
)

// WebDir returns <root>/<yyyy>/<mm>/<dd>/<base> for day.
func WebDir(root, base string, day time.Time) string {
	return filepath.Join(root, datePath(day), base)
}

// ObjectPrefix returns the bucket key prefix for a report folder,
// <prefix>/<yyyy>/<mm>/<dd>/<base>.
func ObjectPrefix(prefix, base string, day time.Time) string {
	return path.Join(prefix, datePath(day), base)
}

func datePath(day time.Time) string {
	return day.Format("2006/01/02")
}

// PrepareWebDir creates the dated report folder for base and returns it.
func PrepareWebDir(root, base string, day time.Time) (string, error) {
	dir := WebDir(root, base, day)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create web dir: %w", err)
	}
	return dir, nil
}

// Publisher copies a finished report folder somewhere else. key is the
// destination prefix from [ObjectPrefix].
type Publisher interface {
	Publish(ctx context.Context, dir, key string) error
}

// Nop is the Publisher used when no remote target is configured.
type Nop struct{}

// Publish does nothing.
func (Nop) Publish(context.Context, string, string) error { return nil }
