package store

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"leadhunt-engine/internal/domain"
)

type recordingSink struct {
	snapshots [][]byte
	err       error
}

func (r *recordingSink) Write(_ context.Context, snapshot []byte) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	r.snapshots = append(r.snapshots, append([]byte(nil), snapshot...))
	return "mem://backup", nil
}

func TestWithBackup_SnapshotsAfterMutations(t *testing.T) {
	ctx := context.Background()
	inner, _ := newCSV(t)
	sink := &recordingSink{}
	s := WithBackup(inner, sink, zap.NewNop())

	l, added, err := s.Insert(ctx, candidate("alice", "flows"))
	require.NoError(t, err)
	require.True(t, added)
	require.Len(t, sink.snapshots, 1)

	_, added, err = s.Insert(ctx, candidate("alice", "flows"))
	require.NoError(t, err)
	require.False(t, added)
	assert.Len(t, sink.snapshots, 1, "duplicate insert persists nothing")

	_, err = s.Update(ctx, l.ID, domain.Patch{EmailApproved: domain.Ptr(true)})
	require.NoError(t, err)
	require.Len(t, sink.snapshots, 2)

	_, err = s.Update(ctx, "missing", domain.Patch{EmailApproved: domain.Ptr(true)})
	require.ErrorIs(t, err, ErrNotFound)
	assert.Len(t, sink.snapshots, 2)

	leads, malformed, err := ReadLeads(bytes.NewReader(sink.snapshots[1]))
	require.NoError(t, err)
	assert.Empty(t, malformed)
	require.Len(t, leads, 1)
	assert.True(t, leads[0].EmailApproved)
}

func TestWithBackup_KeepsMalformedRows(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "leads.csv")
	require.NoError(t, os.WriteFile(path, []byte(EncodeHeader()+"\n"+`"broken","row"`+"\n"), 0o644))
	inner, err := NewCSVStore(path, nil)
	require.NoError(t, err)
	sink := &recordingSink{}
	s := WithBackup(inner, sink, zap.NewNop())

	_, _, err = s.Insert(ctx, candidate("alice", "flows"))
	require.NoError(t, err)
	require.Len(t, sink.snapshots, 1)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, raw, sink.snapshots[0])
	assert.Contains(t, string(sink.snapshots[0]), `"broken","row"`)
}

func TestWithBackup_SinkFailureIsLoggedOnly(t *testing.T) {
	ctx := context.Background()
	inner, _ := newCSV(t)
	core, logs := observer.New(zap.ErrorLevel)
	s := WithBackup(inner, &recordingSink{err: errors.New("disk full")}, zap.New(core))

	l, added, err := s.Insert(ctx, candidate("alice", "flows"))
	require.NoError(t, err)
	assert.True(t, added)

	got, err := inner.Get(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, l, got)
	assert.Equal(t, 1, logs.FilterMessage("backup write failed").Len())
}

func TestWithBackup_NilSinkIsPassthrough(t *testing.T) {
	inner, _ := newCSV(t)
	assert.Same(t, inner, WithBackup(inner, nil, nil))
}
