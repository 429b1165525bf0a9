package status

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Store is the in-memory view of the status log. Every mutation is written
// back to disk before the mutating call returns. A single orchestrator
// mutates the store; the mutex only lets read-only observers (the status
// page) take snapshots concurrently.
type Store struct {
	mu        sync.Mutex
	path      string
	recs      []Record
	index     map[string]int
	observers []func(Record)
	now       func() time.Time
}

// Load reads the status log at path. A missing file yields
// *MissingLogError; malformed lines yield *LineError.
func Load(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &MissingLogError{Path: path, Err: err}
		}
		return nil, fmt.Errorf("open status log: %w", err)
	}
	defer f.Close()

	recs, err := Parse(f)
	if err != nil {
		return nil, err
	}
	return newStore(path, recs), nil
}

// NewMemory returns a store that is never written to disk. Used by dry
// runs and tests.
func NewMemory(recs []Record) *Store {
	return newStore("", recs)
}

func newStore(path string, recs []Record) *Store {
	s := &Store{
		path:  path,
		index: make(map[string]int, len(recs)),
		now:   time.Now,
	}
	for _, r := range recs {
		s.index[r.Name] = len(s.recs)
		s.recs = append(s.recs, r)
	}
	return s
}

// Path returns the backing status log path ("" for memory stores).
func (s *Store) Path() string { return s.path }

// SetClock overrides the time source used for UpdatedAt.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

// OnChange registers fn to be called with every record after it has been
// durably saved. Observers run synchronously on the mutating goroutine,
// after the store lock is released, and may read the store.
func (s *Store) OnChange(fn func(Record)) {
	s.mu.Lock()
	s.observers = append(s.observers, fn)
	s.mu.Unlock()
}

// Names returns the set of known file names.
func (s *Store) Names() map[string]bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make(map[string]bool, len(s.recs))
	for _, r := range s.recs {
		names[r.Name] = true
	}
	return names
}

// Get returns the record for name.
func (s *Store) Get(name string) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[name]
	if !ok {
		return Record{}, false
	}
	return s.recs[i], true
}

// Snapshot returns a copy of all records in log order.
func (s *Store) Snapshot() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, len(s.recs))
	copy(out, s.recs)
	return out
}

// Counts returns the number of records per status.
func (s *Store) Counts() map[Status]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := make(map[Status]int)
	for _, r := range s.recs {
		c[r.Status]++
	}
	return c
}

// Pending returns the names of files to process, in log order.
func (s *Store) Pending() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var names []string
	for _, r := range s.recs {
		if r.Status.Pending() {
			names = append(names, r.Name)
		}
	}
	return names
}

// Merge adds discovered names not yet in the store with status New.
// Existing records are never touched. It returns the names actually added
// and saves the log when anything changed.
func (s *Store) Merge(discovered []string) ([]string, error) {
	added, observers, err := s.mergeLocked(discovered)
	if err != nil {
		return nil, err
	}
	notify(observers, added...)
	names := make([]string, len(added))
	for i, r := range added {
		names[i] = r.Name
	}
	if len(names) == 0 {
		return nil, nil
	}
	return names, nil
}

func (s *Store) mergeLocked(discovered []string) ([]Record, []func(Record), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prevLen := len(s.recs)
	for _, name := range discovered {
		if _, ok := s.index[name]; ok || name == "" {
			continue
		}
		s.index[name] = len(s.recs)
		s.recs = append(s.recs, Record{Name: name, Status: New, UpdatedAt: s.now()})
	}
	if len(s.recs) == prevLen {
		return nil, nil, nil
	}
	if err := s.saveLocked(); err != nil {
		for _, r := range s.recs[prevLen:] {
			delete(s.index, r.Name)
		}
		s.recs = s.recs[:prevLen]
		return nil, nil, err
	}
	added := append([]Record(nil), s.recs[prevLen:]...)
	return added, s.observersLocked(), nil
}

// Transition moves name to the given status. Illegal transitions return
// *InvalidTransitionError and leave the store unchanged. reportPath and
// reason are recorded with the new status; the reason is cleared when the
// file leaves Failed.
func (s *Store) Transition(name string, to Status, reportPath, reason string) error {
	next, observers, err := s.transitionLocked(name, to, reportPath, reason)
	if err != nil {
		return err
	}
	notify(observers, next)
	return nil
}

func (s *Store) transitionLocked(name string, to Status, reportPath, reason string) (Record, []func(Record), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[name]
	if !ok {
		return Record{}, nil, fmt.Errorf("%s: %w", name, ErrUnknownFile)
	}
	prev := s.recs[i]
	if !CanTransition(prev.Status, to) {
		return Record{}, nil, &InvalidTransitionError{Name: name, From: prev.Status, To: to}
	}

	next := prev
	next.Status = to
	next.UpdatedAt = s.now()
	next.Reason = ""
	if to == Failed {
		next.Reason = reason
	}
	if reportPath != "" {
		next.ReportPath = reportPath
	}
	s.recs[i] = next

	if err := s.saveLocked(); err != nil {
		s.recs[i] = prev
		return Record{}, nil, err
	}
	return next, s.observersLocked(), nil
}

// Start marks name as Processing.
func (s *Store) Start(name string) error {
	return s.Transition(name, Processing, "", "")
}

// Complete marks name as Completed with the path of its report.
func (s *Store) Complete(name, reportPath string) error {
	return s.Transition(name, Completed, reportPath, "")
}

// Fail marks name as Failed with a reason.
func (s *Store) Fail(name, reason string) error {
	return s.Transition(name, Failed, "", reason)
}

// RecoverInterrupted fails every record left in Processing by a previous
// run that did not finish, so it is retried. It returns the affected names.
func (s *Store) RecoverInterrupted() ([]string, error) {
	var stale []string
	for _, r := range s.Snapshot() {
		if r.Status == Processing {
			stale = append(stale, r.Name)
		}
	}
	for _, name := range stale {
		if err := s.Fail(name, "interrupted"); err != nil {
			return nil, err
		}
	}
	return stale, nil
}

func (s *Store) observersLocked() []func(Record) {
	return append(([]func(Record))(nil), s.observers...)
}

// notify runs observers outside the store lock so a slow observer never
// blocks readers.
func notify(observers []func(Record), recs ...Record) {
	for _, r := range recs {
		for _, fn := range observers {
			fn(r)
		}
	}
}

// saveLocked rewrites the status log atomically: write a temp file in the
// same directory, sync it, rename it over the log and sync the directory.
func (s *Store) saveLocked() error {
	if s.path == "" {
		return nil
	}
	var buf bytes.Buffer
	if err := Write(&buf, s.recs); err != nil {
		return fmt.Errorf("encode status log: %w", err)
	}
	return writeFileAtomic(s.path, buf.Bytes())
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("save status log: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("save status log: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("save status log: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("save status log: %w", err)
	}
	if fi, err := os.Stat(path); err == nil {
		_ = os.Chmod(tmpName, fi.Mode().Perm())
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("save status log: %w", err)
	}
	syncDir(dir)
	return nil
}

// syncDir flushes the directory entry after a rename. Not every platform
// supports syncing a directory handle, so errors are ignored.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}
