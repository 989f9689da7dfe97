package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"leadhunt-engine/internal/domain"
)

func newSQLite(t *testing.T) *SQLStore {
	t.Helper()
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "leads.db"))
	require.NoError(t, err)
	s, err := NewSQLStore(context.Background(), db, DialectSQLite, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	s.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	return s
}

func TestSQLStore_InsertGetUpdate(t *testing.T) {
	ctx := context.Background()
	s := newSQLite(t)

	l, added, err := s.Insert(ctx, candidate("alice", "flows"))
	require.NoError(t, err)
	require.True(t, added)

	got, err := s.Get(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, l, got)

	sentAt := time.Date(2024, 5, 2, 8, 0, 0, 0, time.UTC)
	updated, err := s.Update(ctx, l.ID, domain.Patch{
		EmailSent:        domain.Ptr(true),
		EmailSentAt:      &sentAt,
		Status:           domain.Ptr(domain.StatusContacted),
		AIScore:          domain.Ptr(0.25),
		AIRecommendation: domain.Ptr(domain.RecommendReject),
	})
	require.NoError(t, err)

	got, err = s.Get(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, updated, got)
	assert.True(t, got.EmailSent)
	assert.Equal(t, sentAt, *got.EmailSentAt)
	assert.Equal(t, 0.25, *got.AIScore)
	assert.Equal(t, domain.StatusContacted, got.Status)
	assert.Equal(t, l.Email, got.Email)
}

func TestSQLStore_DuplicateInsert(t *testing.T) {
	ctx := context.Background()
	s := newSQLite(t)

	first, _, err := s.Insert(ctx, candidate("alice", "flows"))
	require.NoError(t, err)

	second, added, err := s.Insert(ctx, candidate("alice", "flows"))
	require.NoError(t, err)
	assert.False(t, added)
	assert.Equal(t, first, second)

	ok, err := s.Exists(ctx, "alice", "flows")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.Exists(ctx, "alice", "other")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLStore_ListKeepsInsertionOrder(t *testing.T) {
	ctx := context.Background()
	s := newSQLite(t)

	for _, owner := range []string{"zed", "amy", "kim"} {
		_, _, err := s.Insert(ctx, candidate(owner, "repo"))
		require.NoError(t, err)
	}

	leads, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, leads, 3)
	assert.Equal(t, "zed", leads[0].OwnerHandle)
	assert.Equal(t, "amy", leads[1].OwnerHandle)
	assert.Equal(t, "kim", leads[2].OwnerHandle)
}

func TestSQLStore_NotFound(t *testing.T) {
	ctx := context.Background()
	s := newSQLite(t)

	_, err := s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.Update(ctx, "missing", domain.Patch{EmailApproved: domain.Ptr(true)})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMigrate_Idempotent(t *testing.T) {
	ctx := context.Background()
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "leads.db"))
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, Migrate(ctx, db, DialectSQLite))
	require.NoError(t, Migrate(ctx, db, DialectSQLite))

	var v int
	require.NoError(t, db.QueryRow(`PRAGMA user_version;`).Scan(&v))
	assert.Equal(t, schemaVersion, v)
}

func TestDialect_Rebind(t *testing.T) {
	q := `SELECT 1 FROM leads WHERE a = ? AND b = ?;`
	assert.Equal(t, q, DialectSQLite.rebind(q))
	assert.Equal(t, `SELECT 1 FROM leads WHERE a = $1 AND b = $2;`, DialectPostgres.rebind(q))
}
