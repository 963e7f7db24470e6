// Package session holds the import session: the ordered list of records assembled from
// parsed report files and manual entries, edited by the user until it is committed.
//
// A Store is safe for concurrent use. Parse and commit operations go through a
// single-flight gate, so at most one of them is outstanding per session; overlapping
// callers either queue (Do) or are turned away with ErrBusy (TryDo, or every call when
// the store was created WithRejectWhenBusy).
package session

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"adonel/internal/logger"
	"adonel/internal/resolver"
	"adonel/pkg/models"
	"adonel/pkg/services"
)

// File is a report selected for parsing. Open is called once, from a read worker.
type File struct {
	Name string
	Open func() (io.ReadCloser, error)
}

// FileFromPath opens a report from disk; the base name is what the backend sees.
func FileFromPath(path string) File {
	return File{
		Name: filepath.Base(path),
		Open: func() (io.ReadCloser, error) { return os.Open(path) },
	}
}

// FileFromBytes wraps an in-memory report (e.g. a multipart upload).
func FileFromBytes(name string, content []byte) File {
	return File{
		Name: name,
		Open: func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(content)), nil },
	}
}

// Progress tracks the in-flight parse batch. It is per batch, not per file: the backend
// answers a whole selection at once.
type Progress struct {
	Done  int `json:"done"`
	Total int `json:"total"`
}

// Store is one import session for a single record kind.
type Store struct {
	id        string
	kind      models.Kind
	svc       services.ImportService
	resolver  resolver.Resolver
	catalogue *resolver.Catalogue
	log       zerolog.Logger

	readWorkers    int
	rejectWhenBusy bool
	gate           *semaphore.Weighted

	mu       sync.RWMutex
	records  []models.Record
	progress Progress
	busy     bool
	closed   bool
	created  time.Time

	// revision increments on every change to records.
	revision uint64
}

// Option configures a Store.
type Option func(*Store)

// WithResolver sets the unit resolver applied to parsed records that arrive without a unit.
func WithResolver(r resolver.Resolver) Option {
	return func(s *Store) { s.resolver = r }
}

// WithCatalogue sets the unit catalogue used to fill unit name and code on unitId edits.
func WithCatalogue(c *resolver.Catalogue) Option {
	return func(s *Store) { s.catalogue = c }
}

// WithLogger overrides the session logger.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Store) { s.log = log }
}

// WithReadWorkers bounds how many files are read concurrently.
func WithReadWorkers(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.readWorkers = n
		}
	}
}

// WithRejectWhenBusy makes ParseFiles and Do fail with ErrBusy instead of queueing.
func WithRejectWhenBusy() Option {
	return func(s *Store) { s.rejectWhenBusy = true }
}

// New creates an empty session for kind backed by svc.
func New(kind models.Kind, svc services.ImportService, opts ...Option) *Store {
	id := uuid.NewString()
	catalogue := resolver.DefaultCatalogue()

	s := &Store{
		id:          id,
		kind:        kind,
		svc:         svc,
		catalogue:   catalogue,
		resolver:    resolver.NewFilenameResolver(catalogue),
		log:         logger.WithSession("session", id, string(kind)),
		readWorkers: 8,
		gate:        semaphore.NewWeighted(1),
		created:     time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.resolver == nil {
		s.resolver = resolver.Noop{}
	}

	s.log.Debug().Msg("Import session created")
	return s
}

// ID returns the session identifier.
func (s *Store) ID() string { return s.id }

// Kind returns the record kind of the session.
func (s *Store) Kind() models.Kind { return s.kind }

// CreatedAt returns when the session was opened.
func (s *Store) CreatedAt() time.Time { return s.created }

// Catalogue returns the unit catalogue used by the session.
func (s *Store) Catalogue() *resolver.Catalogue { return s.catalogue }

// Do runs fn while holding the session's single-flight gate. Concurrent callers queue
// until the gate is free or ctx is done, unless the store rejects when busy.
func (s *Store) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.rejectWhenBusy {
		return s.TryDo(ctx, fn)
	}
	if err := s.gate.Acquire(ctx, 1); err != nil {
		return err
	}
	return s.run(ctx, fn)
}

// TryDo is Do without queueing: it returns ErrBusy if another operation is in flight.
func (s *Store) TryDo(ctx context.Context, fn func(ctx context.Context) error) error {
	if !s.gate.TryAcquire(1) {
		return ErrBusy
	}
	return s.run(ctx, fn)
}

func (s *Store) run(ctx context.Context, fn func(ctx context.Context) error) error {
	defer s.gate.Release(1)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.busy = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.busy = false
		s.mu.Unlock()
	}()

	return fn(ctx)
}

// ParseFiles reads every file, sends the whole selection to the backend in one request and
// appends the returned records in backend order. On failure nothing is appended and
// records from earlier calls stay as they were.
func (s *Store) ParseFiles(ctx context.Context, files []File) ([]models.Record, error) {
	const op = "ParseFiles"

	if len(files) == 0 {
		return nil, &SessionError{Op: op, Err: ErrNoFiles, SessionID: s.id}
	}

	var parsed []models.Record
	err := s.Do(ctx, func(ctx context.Context) error {
		n := len(files)
		s.setProgress(Progress{Done: 0, Total: n})

		contents, err := s.readAll(ctx, files)
		if err != nil {
			s.setProgress(Progress{})
			return err
		}

		start := time.Now()
		result, err := s.svc.ParseFiles(ctx, s.kind, contents)
		if err != nil {
			s.setProgress(Progress{})
			return err
		}

		records := make([]models.Record, len(result.Records))
		for i, rec := range result.Records {
			rec.Kind = s.kind
			records[i] = s.detectUnit(rec)
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		if s.closed {
			s.log.Debug().Int("records", len(records)).Msg("Discarding parse results for closed session")
			return ErrClosed
		}
		s.records = append(s.records, records...)
		s.revision++
		s.progress = Progress{Done: n, Total: n}

		s.log.Info().
			Int("files", n).
			Int("records", len(records)).
			Int("backend_errors", result.Errors).
			Dur("duration", time.Since(start)).
			Msg("Files parsed")

		parsed = models.CloneAll(records)
		return nil
	})
	if err != nil {
		return nil, &SessionError{Op: op, Err: err, SessionID: s.id, Details: fmt.Sprintf("%d file(s)", len(files))}
	}
	return parsed, nil
}

func (s *Store) readAll(ctx context.Context, files []File) ([]services.FileContent, error) {
	contents := make([]services.FileContent, len(files))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.readWorkers)
	for i, f := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if f.Open == nil {
				return fmt.Errorf("file %q has no content", f.Name)
			}
			rc, err := f.Open()
			if err != nil {
				return fmt.Errorf("failed to open %s: %w", f.Name, err)
			}
			defer rc.Close()

			data, err := io.ReadAll(rc)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", f.Name, err)
			}
			contents[i] = services.FileContent{Name: f.Name, Content: string(data)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return contents, nil
}

// detectUnit runs the resolver on a usable record that arrived without a unit.
func (s *Store) detectUnit(rec models.Record) models.Record {
	if rec.Invalid || rec.UnitID != nil || rec.SourceName == nil {
		return rec
	}
	unit, ok := s.resolver.Resolve(*rec.SourceName)
	if !ok {
		return rec
	}
	rec.UnitID = models.IntPtr(unit.ID)
	rec.UnitName = unit.Name
	rec.UnitCode = unit.Code
	rec.Warnings = append(rec.Warnings, detectionWarning(unit.Name))

	s.log.Debug().
		Str("file", *rec.SourceName).
		Int("unit_id", unit.ID).
		Msg("Unit detected from file name")
	return rec
}

// AddManualRecord appends a user-authored record and returns its index.
// The record has no source file and counts as an operational day unless stated otherwise.
func (s *Store) AddManualRecord(rec models.Record) (int, error) {
	const op = "AddManualRecord"

	rec = rec.Clone()
	rec.Kind = s.kind
	rec.SourceName = nil
	if rec.IsOperationalDay == nil {
		rec.IsOperationalDay = models.BoolPtr(true)
	}
	if s.kind == models.KindSales && rec.Sales == nil {
		rec.Sales = &models.SalesBreakdown{}
	}
	if rec.UnitID != nil && rec.UnitName == "" {
		if unit, ok := s.catalogue.ByID(*rec.UnitID); ok {
			rec.UnitName = unit.Name
			rec.UnitCode = unit.Code
		}
	}
	if rec.Date != nil && !models.ValidDate(*rec.Date) {
		return -1, &SessionError{Op: op, Err: newFieldError(FieldDate, *rec.Date, "expected YYYY-MM-DD"), SessionID: s.id}
	}
	if err := checkManual(rec); err != nil {
		return -1, &SessionError{Op: op, Err: err, SessionID: s.id}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return -1, &SessionError{Op: op, Err: ErrClosed, SessionID: s.id}
	}
	s.records = append(s.records, rec)
	s.revision++
	index := len(s.records) - 1

	s.log.Info().Int("index", index).Msg("Manual record added")
	return index, nil
}

// UpdateField replaces one field of the record at index, leaving the others untouched.
func (s *Store) UpdateField(index int, field Field, value any) error {
	const op = "UpdateField"

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return &SessionError{Op: op, Err: ErrClosed, SessionID: s.id}
	}
	if index < 0 || index >= len(s.records) {
		return &SessionError{Op: op, Err: ErrIndexOutOfRange, SessionID: s.id, Details: fmt.Sprintf("index %d of %d", index, len(s.records))}
	}

	rec := s.records[index].Clone()
	if err := applyField(&rec, field, value, s.catalogue); err != nil {
		return &SessionError{Op: op, Err: err, SessionID: s.id, Details: fmt.Sprintf("index %d", index)}
	}
	s.records[index] = rec
	s.revision++

	s.log.Debug().Int("index", index).Str("field", string(field)).Msg("Record field updated")
	return nil
}

// RemoveRecord deletes the record at index; later records shift down by one.
func (s *Store) RemoveRecord(index int) error {
	const op = "RemoveRecord"

	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.records) {
		return &SessionError{Op: op, Err: ErrIndexOutOfRange, SessionID: s.id, Details: fmt.Sprintf("index %d of %d", index, len(s.records))}
	}
	s.records = append(s.records[:index:index], s.records[index+1:]...)
	s.revision++

	s.log.Debug().Int("index", index).Int("remaining", len(s.records)).Msg("Record removed")
	return nil
}

// Clear empties the session and resets progress. Calling it repeatedly is harmless.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearLocked()
}

// ClearIfUnchanged clears the session only if no record changed since revision was read.
func (s *Store) ClearIfUnchanged(revision uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.revision != revision {
		return false
	}
	s.clearLocked()
	return true
}

func (s *Store) clearLocked() {
	if len(s.records) > 0 {
		s.revision++
	}
	s.records = nil
	s.progress = Progress{}
	s.log.Debug().Msg("Import session cleared")
}

// Revision identifies the current state of the records.
func (s *Store) Revision() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revision
}

// Close ends the session. Results of operations still in flight are discarded.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	s.records = nil
	s.progress = Progress{}
	s.log.Debug().Msg("Import session closed")
}

// Closed reports whether Close has been called.
func (s *Store) Closed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// Records returns a deep copy of the current records.
func (s *Store) Records() []models.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return models.CloneAll(s.records)
}

// Snapshot returns a deep copy of the records together with their revision.
func (s *Store) Snapshot() ([]models.Record, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return models.CloneAll(s.records), s.revision
}

// Len returns the number of records in the session.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Progress returns the state of the latest parse batch.
func (s *Store) Progress() Progress {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.progress
}

// Busy reports whether a parse or commit is in flight.
func (s *Store) Busy() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.busy
}

// Summary classifies the current records.
func (s *Store) Summary() models.Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return models.Summarize(s.records)
}

func (s *Store) setProgress(p Progress) {
	s.mu.Lock()
	s.progress = p
	s.mu.Unlock()
}
