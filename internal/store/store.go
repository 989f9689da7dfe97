package store

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"leadhunt-engine/internal/domain"
)

// LeadStore is the authoritative collection of leads.
//
// Insert reports added == false (and returns the stored record) when the
// (owner, project) pair is already known; that is a normal outcome on
// re-scans, not an error. Update merges the patch over the stored record
// and returns ErrNotFound for unknown ids.
type LeadStore interface {
	List(ctx context.Context) ([]domain.Lead, error)
	Get(ctx context.Context, id string) (domain.Lead, error)
	Insert(ctx context.Context, candidate domain.Lead) (lead domain.Lead, added bool, err error)
	Update(ctx context.Context, id string, p domain.Patch) (domain.Lead, error)
	Exists(ctx context.Context, owner, project string) (bool, error)
}

// Filter is a pure view over List.
func Filter(ctx context.Context, s LeadStore, pred domain.Predicate) ([]domain.Lead, error) {
	leads, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return domain.Select(leads, pred), nil
}

// prepare validates a candidate and stamps identity fields.
func prepare(c domain.Lead, now time.Time) (domain.Lead, error) {
	c.OwnerHandle = strings.TrimSpace(c.OwnerHandle)
	c.ProjectName = strings.TrimSpace(c.ProjectName)
	if c.OwnerHandle == "" || c.ProjectName == "" {
		return domain.Lead{}, ErrInvalidLead
	}
	if c.Status == "" {
		c.Status = domain.StatusNew
	}
	if !c.Status.Valid() {
		return domain.Lead{}, ErrInvalidLead
	}
	if c.AIRecommendation != "" && !c.AIRecommendation.Valid() {
		return domain.Lead{}, ErrInvalidLead
	}
	c.ID = uuid.NewString()
	c.CreatedAt = now.UTC()
	if !c.LastActivity.IsZero() {
		c.LastActivity = c.LastActivity.UTC()
	}
	return c, nil
}

func validPatch(p domain.Patch) bool {
	if p.Status != nil && !p.Status.Valid() {
		return false
	}
	if p.AIRecommendation != nil && *p.AIRecommendation != "" && !p.AIRecommendation.Valid() {
		return false
	}
	return true
}

func findIndex(rows []row, id string) int {
	for i, r := range rows {
		if r.lead != nil && r.lead.ID == id {
			return i
		}
	}
	return -1
}

// findPair also matches kept malformed rows whose owner and project cells
// still read, so repairing such a row never yields a duplicate pair.
func findPair(rows []row, owner, project string) int {
	for i, r := range rows {
		if r.lead != nil {
			if r.lead.OwnerHandle == owner && r.lead.ProjectName == project {
				return i
			}
			continue
		}
		if o, p, ok := rawPair(r.raw); ok && o == owner && p == project {
			return i
		}
	}
	return -1
}

// heldByMalformed reports an Insert whose pair is taken by an undecodable row.
func heldByMalformed(owner, project string) error {
	return fmt.Errorf("%w: %s/%s is held by a malformed row", ErrAlreadyExists, owner, project)
}

// BackupSink receives a full serialized copy of the store after a write.
type BackupSink interface {
	Write(ctx context.Context, snapshot []byte) (string, error)
}

type backedStore struct {
	LeadStore
	sink BackupSink
	log  *zap.Logger
}

// WithBackup snapshots the whole store to sink after every successful
// mutation. Backup failures are logged and never change the outcome.
func WithBackup(inner LeadStore, sink BackupSink, log *zap.Logger) LeadStore {
	if sink == nil {
		return inner
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &backedStore{LeadStore: inner, sink: sink, log: log.Named("backup")}
}

func (b *backedStore) Insert(ctx context.Context, c domain.Lead) (domain.Lead, bool, error) {
	l, added, err := b.LeadStore.Insert(ctx, c)
	if err == nil && added {
		b.snapshot(ctx)
	}
	return l, added, err
}

func (b *backedStore) Update(ctx context.Context, id string, p domain.Patch) (domain.Lead, error) {
	l, err := b.LeadStore.Update(ctx, id, p)
	if err == nil {
		b.snapshot(ctx)
	}
	return l, err
}

// Snapshotter is implemented by stores that can copy their persisted form
// verbatim, malformed rows included.
type Snapshotter interface {
	Snapshot(ctx context.Context) ([]byte, error)
}

func (b *backedStore) snapshot(ctx context.Context) {
	data, err := b.encode(ctx)
	if err != nil {
		b.log.Error("snapshot read failed", zap.Error(err))
		return
	}
	path, err := b.sink.Write(ctx, data)
	if err != nil {
		b.log.Error("backup write failed", zap.Error(err))
		return
	}
	b.log.Debug("backup written", zap.String("path", path), zap.Int("bytes", len(data)))
}

func (b *backedStore) encode(ctx context.Context) ([]byte, error) {
	if s, ok := b.LeadStore.(Snapshotter); ok {
		return s.Snapshot(ctx)
	}
	leads, err := b.LeadStore.List(ctx)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := WriteLeads(&buf, leads); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
