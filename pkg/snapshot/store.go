package snapshot

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/cuemby/elementstates/pkg/log"
	"github.com/cuemby/elementstates/pkg/types"
	"github.com/rs/zerolog"
)

const (
	// DefaultRetention is the number of snapshots kept after every dump
	DefaultRetention = 14
)

// ErrNotFound is returned when a snapshot artifact does not exist
var ErrNotFound = errors.New("snapshot not found")

// Store keeps snapshot artifacts in one flat directory scoped to a cluster
type Store struct {
	dir       string
	retention int
	now       func() time.Time
	remove    func(string) error
	logger    zerolog.Logger
}

// Option configures a Store
type Option func(*Store)

// WithClock overrides the time source used for new identities
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithRetention overrides how many artifacts are kept
func WithRetention(n int) Option {
	return func(s *Store) { s.retention = n }
}

// NewStore opens the snapshot directory, creating it if needed
func NewStore(dir string, opts ...Option) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("snapshot directory is required")
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	s := &Store{
		dir:       dir,
		retention: DefaultRetention,
		now:       time.Now,
		remove:    os.Remove,
		logger:    log.WithComponent("snapshot"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.retention < 1 {
		return nil, fmt.Errorf("retention must be at least 1, got %d", s.retention)
	}
	return s, nil
}

// Dir returns the snapshot directory
func (s *Store) Dir() string {
	return s.dir
}

// Retention returns how many artifacts are kept
func (s *Store) Retention() int {
	return s.retention
}

// Path returns the artifact path for id
func (s *Store) Path(id types.SnapshotID) string {
	return filepath.Join(s.dir, id.FileName())
}

// Write appends one "Name;State" line per element to a new artifact named
// after the current time. The write is not atomic: an interrupted dump
// leaves a partial artifact behind.
func (s *Store) Write(elements []*types.Element) (types.SnapshotID, error) {
	id := types.NewSnapshotID(s.now())
	path := s.Path(id)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return id, fmt.Errorf("failed to open snapshot %s: %w", id, err)
	}

	w := bufio.NewWriter(f)
	for _, e := range elements {
		if _, err := w.WriteString(FormatRecord(e.Name, e.State.String()) + "\n"); err != nil {
			f.Close()
			return id, fmt.Errorf("failed to write snapshot %s: %w", id, err)
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return id, fmt.Errorf("failed to write snapshot %s: %w", id, err)
	}
	if err := f.Close(); err != nil {
		return id, fmt.Errorf("failed to close snapshot %s: %w", id, err)
	}

	s.logger.Info().
		Str("snapshot", id.Display()).
		Int("elements", len(elements)).
		Msg("Snapshot written")
	return id, nil
}

// Prune deletes the oldest artifacts until at most Retention remain. A
// failed delete is reported in errs and the sweep moves on to the next
// artifact. Failing to enumerate the directory is returned as err.
func (s *Store) Prune() (deleted []types.SnapshotID, errs []error, err error) {
	names, err := s.artifactNames()
	if err != nil {
		return nil, nil, err
	}

	for len(names) > s.retention {
		oldest := names[0]
		names = names[1:]

		id, _ := types.ParseSnapshotFileName(oldest)
		if err := s.remove(filepath.Join(s.dir, oldest)); err != nil {
			s.logger.Warn().Err(err).Str("file", oldest).Msg("Failed to delete old snapshot")
			errs = append(errs, fmt.Errorf("failed to delete %s: %w", oldest, err))
			continue
		}
		s.logger.Debug().Str("file", oldest).Msg("Old snapshot deleted")
		deleted = append(deleted, id)
	}
	return deleted, errs, nil
}

// List returns the snapshot identities, newest first. An empty directory
// yields an empty list and no error.
func (s *Store) List() ([]types.SnapshotID, error) {
	names, err := s.artifactNames()
	if err != nil {
		return nil, err
	}

	ids := make([]types.SnapshotID, 0, len(names))
	for i := len(names) - 1; i >= 0; i-- {
		id, err := types.ParseSnapshotFileName(names[i])
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Latest returns the newest snapshot
func (s *Store) Latest() (types.SnapshotID, error) {
	ids, err := s.List()
	if err != nil {
		return types.SnapshotID{}, err
	}
	if len(ids) == 0 {
		return types.SnapshotID{}, ErrNotFound
	}
	return ids[0], nil
}

// Load reads an artifact back as restore requests, in file order
func (s *Store) Load(id types.SnapshotID) ([]types.Request, error) {
	f, err := os.Open(s.Path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to open snapshot %s: %w", id, err)
	}
	defer f.Close()

	var requests []types.Request
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		requests = append(requests, ParseRecord(line))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read snapshot %s: %w", id, err)
	}
	return requests, nil
}

// Records loads an artifact as (name, state) pairs, skipping malformed lines
func (s *Store) Records(id types.SnapshotID) ([]types.StateRecord, error) {
	requests, err := s.Load(id)
	if err != nil {
		return nil, err
	}
	records := make([]types.StateRecord, 0, len(requests))
	for _, r := range requests {
		if r.Malformed() {
			continue
		}
		records = append(records, types.StateRecord{Name: r.Name, State: r.DesiredState})
	}
	return records, nil
}

// artifactNames returns the snapshot file names sorted ascending, which is
// chronological because the layout is zero-padded
func (s *Store) artifactNames() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if _, err := types.ParseSnapshotFileName(entry.Name()); err != nil {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

// FormatRecord renders one artifact line without the line terminator
func FormatRecord(name, state string) string {
	return name + types.SnapshotDelimiter + state
}

// ParseRecord splits a line on the first delimiter. A line without a
// delimiter becomes a malformed request that keeps the raw text.
func ParseRecord(line string) types.Request {
	name, state, ok := strings.Cut(line, types.SnapshotDelimiter)
	if !ok || name == "" {
		return types.Request{Source: line}
	}
	return types.Request{Name: name, DesiredState: state, Source: line}
}
