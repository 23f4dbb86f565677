// Package records persists plants and slots as one JSON file per entity,
// so a single damaged file never takes the rest of the farm down with it.
package records

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"farm_scheduler/farmerr"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// legacyAggregate is the whole-farm dump older deployments kept next to the
// per-entity files. It is never a record.
const legacyAggregate = "save.txt"

const (
	recordExt     = ".json"
	maxRecordSize = 1 << 20
)

// Store is a directory of per-entity records.
type Store struct {
	dir     string
	timeout time.Duration
	workers int
}

type Option func(*Store)

// WithRecordTimeout bounds the time spent on one record.
func WithRecordTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithWorkers bounds how many records are read or written at once.
func WithWorkers(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.workers = n
		}
	}
}

// New opens the store rooted at dir, creating the kind directories.
func New(dir string, opts ...Option) (*Store, error) {
	s := &Store{
		dir:     dir,
		timeout: 5 * time.Second,
		workers: 8,
	}
	for _, opt := range opts {
		opt(s)
	}
	for _, kind := range []Kind{KindPlant, KindSlot} {
		if err := os.MkdirAll(filepath.Join(dir, string(kind)), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create record directory: %w", err)
		}
	}
	return s, nil
}

// Dir returns the store root.
func (s *Store) Dir() string { return s.dir }

// Report summarizes a batch operation. Failed holds the keys (or file
// names, when the key is unknown) that could not be processed.
type Report struct {
	Kind      Kind
	Succeeded int
	Failed    []string
}

// OK reports whether every record was processed.
func (r Report) OK() bool { return len(r.Failed) == 0 }

// SaveAll writes one record per entity, replacing any record with the same
// key. Each write is attempted independently; failures are logged and
// listed in the report, never returned.
func SaveAll[R Record](ctx context.Context, s *Store, kind Kind, recs []R) Report {
	report := Report{Kind: kind}
	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(s.workers)

	for _, rec := range recs {
		g.Go(func() error {
			err := s.bounded(ctx, func() error { return s.write(kind, rec) })
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.Error().Err(err).Str("kind", string(kind)).Str("key", rec.Key()).Msg("Failed to save record")
				report.Failed = append(report.Failed, rec.Key())
				return nil
			}
			report.Succeeded++
			return nil
		})
	}
	_ = g.Wait()

	sort.Strings(report.Failed)
	log.Info().Str("kind", string(kind)).Int("saved", report.Succeeded).Int("failed", len(report.Failed)).Msg("Saved records")
	return report
}

// LoadAll reads every record of kind. Files that cannot be read, decoded
// or validated are logged and skipped; only complete records are returned,
// ordered by key.
func LoadAll[R Record](ctx context.Context, s *Store, kind Kind) ([]R, Report) {
	report := Report{Kind: kind}
	dir := filepath.Join(s.dir, string(kind))

	entries, err := os.ReadDir(dir)
	if err != nil {
		log.Error().Err(err).Str("kind", string(kind)).Msg("Failed to list records")
		report.Failed = append(report.Failed, dir)
		return nil, report
	}

	var (
		mu  sync.Mutex
		g   errgroup.Group
		out []R
	)
	g.SetLimit(s.workers)

	for _, entry := range entries {
		name := entry.Name()
		if !isRecordFile(entry) {
			if name == legacyAggregate {
				log.Debug().Str("kind", string(kind)).Msg("Ignoring legacy aggregate save file")
			}
			continue
		}
		g.Go(func() error {
			var rec R
			err := s.bounded(ctx, func() error {
				var err error
				rec, err = decode[R](kind, filepath.Join(dir, name))
				return err
			})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.Warn().Err(err).Str("kind", string(kind)).Str("file", name).Msg("Skipping unrecoverable record")
				report.Failed = append(report.Failed, name)
				return nil
			}
			out = append(out, rec)
			report.Succeeded++
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	sort.Strings(report.Failed)
	log.Info().Str("kind", string(kind)).Int("loaded", report.Succeeded).Int("skipped", len(report.Failed)).Msg("Loaded records")
	return out, report
}

// Delete removes the record for key. A missing record is not an error.
func (s *Store) Delete(ctx context.Context, kind Kind, key string) error {
	return s.bounded(ctx, func() error {
		err := os.Remove(s.path(kind, key))
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("delete %s record %q: %w", kind, key, err)
		}
		return nil
	})
}

// SavePlants and the other helpers below fix the kind for each record type.
func (s *Store) SavePlants(ctx context.Context, recs []PlantRecord) Report {
	return SaveAll(ctx, s, KindPlant, recs)
}

func (s *Store) SaveSlots(ctx context.Context, recs []SlotRecord) Report {
	return SaveAll(ctx, s, KindSlot, recs)
}

func (s *Store) LoadPlants(ctx context.Context) ([]PlantRecord, Report) {
	return LoadAll[PlantRecord](ctx, s, KindPlant)
}

func (s *Store) LoadSlots(ctx context.Context) ([]SlotRecord, Report) {
	return LoadAll[SlotRecord](ctx, s, KindSlot)
}

func (s *Store) path(kind Kind, key string) string {
	return filepath.Join(s.dir, string(kind), url.PathEscape(key)+recordExt)
}

// bounded runs fn with the per-record timeout. File IO cannot be
// interrupted, so a timed-out fn finishes in the background and its result
// is discarded.
func (s *Store) bounded(ctx context.Context, fn func() error) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- fn() }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Store) write(kind Kind, rec Record) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("refusing to save invalid record: %w", err)
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	return writeAtomic(s.path(kind, rec.Key()), data)
}

func writeAtomic(path string, data []byte) error {
	f, err := os.CreateTemp(filepath.Dir(path), ".record-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmp := f.Name()
	if err := writeAndClose(f, data); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write record file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace record file: %w", err)
	}
	return nil
}

func writeAndClose(f *os.File, data []byte) (err error) {
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err = f.Write(data); err != nil {
		return err
	}
	return f.Sync()
}

func decode[R Record](kind Kind, path string) (R, error) {
	var rec R
	key := strings.TrimSuffix(filepath.Base(path), recordExt)
	if unescaped, err := url.PathUnescape(key); err == nil {
		key = unescaped
	}

	data, err := readBounded(path)
	if err != nil {
		return rec, &farmerr.RecordCorruptError{Kind: string(kind), Key: key, Err: err}
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, &farmerr.RecordCorruptError{Kind: string(kind), Key: key, Err: err}
	}
	if err := rec.Validate(); err != nil {
		return rec, &farmerr.RecordCorruptError{Kind: string(kind), Key: key, Err: err}
	}
	if rec.Key() != key {
		return rec, &farmerr.RecordCorruptError{
			Kind: string(kind),
			Key:  key,
			Err:  fmt.Errorf("file holds record %q", rec.Key()),
		}
	}
	return rec, nil
}

func readBounded(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxRecordSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxRecordSize {
		return nil, fmt.Errorf("record larger than %d bytes", maxRecordSize)
	}
	return data, nil
}

func isRecordFile(entry os.DirEntry) bool {
	name := entry.Name()
	if entry.IsDir() || name == legacyAggregate || strings.HasPrefix(name, ".") {
		return false
	}
	return strings.HasSuffix(name, recordExt)
}
