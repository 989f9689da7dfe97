package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"leadhunt-engine/internal/domain"
)

func newCSV(t *testing.T) (*CSVStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data", "leads.csv")
	s, err := NewCSVStore(path, zap.NewNop())
	require.NoError(t, err)
	s.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	return s, path
}

func candidate(owner, project string) domain.Lead {
	return domain.Lead{
		OwnerHandle: owner,
		ProjectName: project,
		ProjectURL:  "https://github.com/" + owner + "/" + project,
		Email:       owner + "@example.com",
	}
}

func TestCSVStore_MissingFileIsEmpty(t *testing.T) {
	s, path := newCSV(t)

	leads, err := s.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, leads)

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestCSVStore_InsertAssignsIdentity(t *testing.T) {
	ctx := context.Background()
	s, path := newCSV(t)

	l, added, err := s.Insert(ctx, candidate("alice", "flows"))
	require.NoError(t, err)
	assert.True(t, added)
	assert.NotEmpty(t, l.ID)
	assert.Equal(t, domain.StatusNew, l.Status)
	assert.Equal(t, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), l.CreatedAt)
	assert.False(t, l.EmailSent)
	assert.False(t, l.EmailApproved)
	assert.False(t, l.EmailPendingApproval)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, EncodeHeader(), lines[0])

	got, err := s.Get(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, l, got)
}

func TestCSVStore_DuplicateInsertIsNoop(t *testing.T) {
	ctx := context.Background()
	s, path := newCSV(t)

	first, added, err := s.Insert(ctx, candidate("alice", "flows"))
	require.NoError(t, err)
	require.True(t, added)
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	dup := candidate("alice", "flows")
	dup.Email = "other@example.com"
	second, added, err := s.Insert(ctx, dup)
	require.NoError(t, err)
	assert.False(t, added)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "alice@example.com", second.Email)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	leads, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, leads, 1)
}

func TestCSVStore_InsertRejectsEmptyIdentity(t *testing.T) {
	s, _ := newCSV(t)

	_, _, err := s.Insert(context.Background(), candidate("  ", "flows"))
	assert.ErrorIs(t, err, ErrInvalidLead)

	_, _, err = s.Insert(context.Background(), domain.Lead{OwnerHandle: "a", ProjectName: "b", Status: "archived"})
	assert.ErrorIs(t, err, ErrInvalidLead)
}

func TestCSVStore_UpdateMergesShallow(t *testing.T) {
	ctx := context.Background()
	s, _ := newCSV(t)

	l, _, err := s.Insert(ctx, candidate("alice", "flows"))
	require.NoError(t, err)

	updated, err := s.Update(ctx, l.ID, domain.Patch{
		EmailPendingApproval: domain.Ptr(true),
		AIScore:              domain.Ptr(0.7),
	})
	require.NoError(t, err)
	assert.True(t, updated.EmailPendingApproval)
	assert.Equal(t, 0.7, *updated.AIScore)
	assert.Equal(t, l.Email, updated.Email)
	assert.Equal(t, l.CreatedAt, updated.CreatedAt)
	assert.Equal(t, l.ProjectURL, updated.ProjectURL)

	got, err := s.Get(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, updated, got)
}

func TestCSVStore_UpdateUnknownID(t *testing.T) {
	ctx := context.Background()
	s, path := newCSV(t)

	_, _, err := s.Insert(ctx, candidate("alice", "flows"))
	require.NoError(t, err)
	before, _ := os.ReadFile(path)

	_, err = s.Update(ctx, "missing", domain.Patch{EmailApproved: domain.Ptr(true)})
	assert.ErrorIs(t, err, ErrNotFound)

	after, _ := os.ReadFile(path)
	assert.Equal(t, before, after)
}

func TestCSVStore_GetUnknownID(t *testing.T) {
	s, _ := newCSV(t)
	_, err := s.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCSVStore_ExistsAndFilter(t *testing.T) {
	ctx := context.Background()
	s, _ := newCSV(t)

	a, _, err := s.Insert(ctx, candidate("alice", "flows"))
	require.NoError(t, err)
	_, _, err = s.Insert(ctx, domain.Lead{OwnerHandle: "bob", ProjectName: "bots"})
	require.NoError(t, err)

	ok, err := s.Exists(ctx, "alice", "flows")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.Exists(ctx, "Alice", "flows")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.Update(ctx, a.ID, domain.Patch{EmailApproved: domain.Ptr(true)})
	require.NoError(t, err)

	ready, err := Filter(ctx, s, domain.ReadyForOutreach)
	require.NoError(t, err)
	require.Len(t, ready, 1)
	assert.Equal(t, "alice", ready[0].OwnerHandle)

	again, err := Filter(ctx, s, domain.ReadyForOutreach)
	require.NoError(t, err)
	assert.Equal(t, ready, again)

	all, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Equal(t, "alice", all[0].OwnerHandle)
	assert.Equal(t, "bob", all[1].OwnerHandle)
}

func TestCSVStore_PreservesMalformedRows(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "leads.csv")

	good := sampleLead()
	content := EncodeHeader() + "\n" + Encode(good) + "\n" + `"broken","row"` + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	core, logs := observer.New(zap.WarnLevel)
	s, err := NewCSVStore(path, zap.New(core))
	require.NoError(t, err)

	leads, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, leads, 1)
	assert.Equal(t, good, leads[0])
	assert.Equal(t, 1, logs.FilterMessage("skipping malformed row").Len())

	_, added, err := s.Insert(ctx, candidate("carol", "ops"))
	require.NoError(t, err)
	require.True(t, added)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, `"broken","row"`, lines[2])
	assert.Contains(t, lines[3], `"carol"`)
}

func TestCSVStore_SharedFileAcrossInstances(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "leads.csv")

	a, err := NewCSVStore(path, nil)
	require.NoError(t, err)
	b, err := NewCSVStore(path, nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i, s := range []*CSVStore{a, b} {
		wg.Add(1)
		go func(i int, s *CSVStore) {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				_, _, err := s.Insert(ctx, candidate(fmt.Sprintf("owner%d", i), fmt.Sprintf("repo%d", j)))
				assert.NoError(t, err)
			}
		}(i, s)
	}
	wg.Wait()

	leads, err := a.List(ctx)
	require.NoError(t, err)
	assert.Len(t, leads, 20)
}

func TestCSVStore_MalformedRowHoldsPair(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "leads.csv")
	kept := `"id9","zed","yard","","","","","","bogus"`
	require.NoError(t, os.WriteFile(path, []byte(EncodeHeader()+"\n"+kept+"\n"), 0o644))

	core, logs := observer.New(zap.WarnLevel)
	s, err := NewCSVStore(path, zap.New(core))
	require.NoError(t, err)

	ok, err := s.Exists(ctx, "zed", "yard")
	require.NoError(t, err)
	assert.True(t, ok)

	_, added, err := s.Insert(ctx, candidate("zed", "yard"))
	require.ErrorIs(t, err, ErrAlreadyExists)
	assert.False(t, added)
	assert.Equal(t, 1, logs.FilterMessage("pair held by malformed row").Len())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, EncodeHeader()+"\n"+kept+"\n", string(raw))
}

func TestCSVStore_Snapshot(t *testing.T) {
	ctx := context.Background()
	s, path := newCSV(t)

	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, EncodeHeader()+"\n", string(snap))

	_, _, err = s.Insert(ctx, candidate("alice", "flows"))
	require.NoError(t, err)
	snap, err = s.Snapshot(ctx)
	require.NoError(t, err)
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, raw, snap)
}
