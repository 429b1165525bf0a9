// Package server exposes the read-only status page: a JSON snapshot of the
// status log, Prometheus metrics and a health check.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ctmm/msqc/internal/status"
)

// Logger is the logging surface the server needs.
type Logger interface {
	Info(string, ...interface{})
	Error(string, ...interface{})
}

// fileView is the JSON form of one status record.
type fileView struct {
	Name       string     `json:"name"`
	Status     string     `json:"status"`
	ReportPath string     `json:"report_path,omitempty"`
	Reason     string     `json:"reason,omitempty"`
	UpdatedAt  *time.Time `json:"updated_at,omitempty"`
}

// newFileView converts rec. The status log does not persist timestamps, so
// records loaded from disk have no update time until they change.
func newFileView(rec status.Record) fileView {
	v := fileView{
		Name:       rec.Name,
		Status:     rec.Status.String(),
		ReportPath: rec.ReportPath,
		Reason:     rec.Reason,
	}
	if !rec.UpdatedAt.IsZero() {
		t := rec.UpdatedAt
		v.UpdatedAt = &t
	}
	return v
}

// NewRouter builds the gin engine serving store and m.
func NewRouter(store *status.Store, m *Metrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	r.GET("/status", func(c *gin.Context) {
		recs := store.Snapshot()
		filter := c.Query("status")
		files := make([]fileView, 0, len(recs))
		for _, rec := range recs {
			if filter != "" && rec.Status.String() != filter {
				continue
			}
			files = append(files, newFileView(rec))
		}
		counts := map[string]int{}
		for s, n := range store.Counts() {
			counts[s.String()] = n
		}
		c.JSON(http.StatusOK, gin.H{"counts": counts, "files": files})
	})

	r.GET("/status/:name", func(c *gin.Context) {
		rec, ok := store.Get(c.Param("name"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown file"})
			return
		}
		c.JSON(http.StatusOK, newFileView(rec))
	})

	r.GET("/metrics", func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4")
		c.String(http.StatusOK, m.Render(store.Counts()))
	})
	return r
}

// Serve runs handler on addr until ctx is cancelled, then shuts down
// gracefully.
func Serve(ctx context.Context, addr string, handler http.Handler, log Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info("Status page listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("Status page shutdown: %v", err)
			return err
		}
		return nil
	}
}
