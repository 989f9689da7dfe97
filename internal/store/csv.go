package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"go.uber.org/zap"

	"leadhunt-engine/internal/domain"
)

const lockRetry = 25 * time.Millisecond

// CSVStore keeps leads in one CSV file. Every mutation is a full
// read-modify-write done under an exclusive advisory lock on <path>.lock,
// so separate processes sharing the file do not lose writes.
type CSVStore struct {
	path string
	log  *zap.Logger
	now  func() time.Time

	mu   sync.Mutex
	lock *flock.Flock
}

func NewCSVStore(path string, log *zap.Logger) (*CSVStore, error) {
	if path == "" {
		return nil, errors.New("csv store path is required")
	}
	if log == nil {
		log = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return &CSVStore{
		path: path,
		log:  log.Named("store.csv"),
		now:  time.Now,
		lock: flock.New(path + ".lock"),
	}, nil
}

func (s *CSVStore) Path() string { return s.path }

func (s *CSVStore) List(ctx context.Context) ([]domain.Lead, error) {
	var out []domain.Lead
	err := s.withRead(ctx, func(rows []row) error {
		out = leadsOf(rows)
		return nil
	})
	return out, err
}

func (s *CSVStore) Get(ctx context.Context, id string) (domain.Lead, error) {
	var out domain.Lead
	err := s.withRead(ctx, func(rows []row) error {
		i := findIndex(rows, id)
		if i < 0 {
			return ErrNotFound
		}
		out = *rows[i].lead
		return nil
	})
	return out, err
}

func (s *CSVStore) Exists(ctx context.Context, owner, project string) (bool, error) {
	var found bool
	err := s.withRead(ctx, func(rows []row) error {
		found = findPair(rows, owner, project) >= 0
		return nil
	})
	return found, err
}

func (s *CSVStore) Insert(ctx context.Context, c domain.Lead) (domain.Lead, bool, error) {
	l, err := prepare(c, s.now())
	if err != nil {
		return domain.Lead{}, false, err
	}

	var (
		out   domain.Lead
		added bool
	)
	err = s.withWrite(ctx, func(rows []row) ([]row, bool, error) {
		if i := findPair(rows, l.OwnerHandle, l.ProjectName); i >= 0 {
			if rows[i].lead == nil {
				s.log.Warn("pair held by malformed row",
					zap.String("owner", l.OwnerHandle), zap.String("project", l.ProjectName))
				return rows, false, heldByMalformed(l.OwnerHandle, l.ProjectName)
			}
			out = *rows[i].lead
			return rows, false, nil
		}
		out, added = l, true
		return append(rows, row{lead: &l}), true, nil
	})
	if err != nil {
		return domain.Lead{}, false, err
	}
	return out, added, nil
}

func (s *CSVStore) Update(ctx context.Context, id string, p domain.Patch) (domain.Lead, error) {
	if !validPatch(p) {
		return domain.Lead{}, ErrInvalidLead
	}
	var out domain.Lead
	err := s.withWrite(ctx, func(rows []row) ([]row, bool, error) {
		i := findIndex(rows, id)
		if i < 0 {
			return rows, false, ErrNotFound
		}
		updated := p.Apply(*rows[i].lead)
		rows[i] = row{lead: &updated}
		out = updated
		return rows, true, nil
	})
	return out, err
}

// Snapshot returns the file bytes as persisted, malformed rows included.
// A missing file snapshots as a bare header.
func (s *CSVStore) Snapshot(ctx context.Context) ([]byte, error) {
	var out []byte
	err := s.withRead(ctx, func([]row) error {
		data, err := os.ReadFile(s.path)
		if errors.Is(err, os.ErrNotExist) {
			out = []byte(EncodeHeader() + "\n")
			return nil
		}
		out = data
		return err
	})
	return out, err
}

func (s *CSVStore) withRead(ctx context.Context, fn func([]row) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ok, err := s.lock.TryRLockContext(ctx, lockRetry)
	if err != nil {
		return fmt.Errorf("lock %s: %w", s.path, err)
	}
	if !ok {
		return fmt.Errorf("lock %s: not acquired", s.path)
	}
	defer func() { _ = s.lock.Unlock() }()

	rows, err := s.load()
	if err != nil {
		return err
	}
	return fn(rows)
}

// withWrite runs fn over the current rows; when fn reports a change the
// new rows replace the file atomically.
func (s *CSVStore) withWrite(ctx context.Context, fn func([]row) ([]row, bool, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ok, err := s.lock.TryLockContext(ctx, lockRetry)
	if err != nil {
		return fmt.Errorf("lock %s: %w", s.path, err)
	}
	if !ok {
		return fmt.Errorf("lock %s: not acquired", s.path)
	}
	defer func() { _ = s.lock.Unlock() }()

	rows, err := s.load()
	if err != nil {
		return err
	}
	next, changed, err := fn(rows)
	if err != nil || !changed {
		return err
	}
	return s.save(next)
}

func (s *CSVStore) load() ([]row, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", s.path, err)
	}
	defer f.Close()

	rows, malformed, err := readRows(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	for _, m := range malformed {
		s.log.Warn("skipping malformed row",
			zap.String("path", s.path),
			zap.Int("line", m.Line),
			zap.String("column", m.Column),
			zap.String("reason", m.Reason),
		)
	}
	return rows, nil
}

func (s *CSVStore) save(rows []row) error {
	tmp := s.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if err := writeRows(f, rows); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, s.path)
}
