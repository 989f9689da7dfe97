package replies

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadhunt-engine/internal/domain"
	"leadhunt-engine/internal/store"
	"leadhunt-engine/internal/workflow"
)

var now = time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)

func TestMatchReplies(t *testing.T) {
	sent := now.Add(-72 * time.Hour)
	leads := []domain.Lead{
		{ID: "1", Email: "Ann@Acme.io", Status: domain.StatusContacted, EmailSentAt: &sent},
		{ID: "2", Email: "ann@acme.io", Status: domain.StatusContacted},
		{ID: "3", Email: "bob@acme.io", Status: domain.StatusNew},
		{ID: "4", Email: "cat@acme.io", Status: domain.StatusContacted, EmailSentAt: &sent},
	}
	msgs := []Message{
		{UID: 10, From: "ann@acme.io", Date: now},
		{UID: 11, From: "ANN@acme.io", Date: now},
		{UID: 12, From: "bob@acme.io", Date: now},
		{UID: 13, From: "cat@acme.io", Date: sent.Add(-time.Hour)},
	}
	assert.Equal(t, []Match{{LeadID: "1", UID: 10}, {LeadID: "2", UID: 10}}, MatchReplies(leads, msgs))
	assert.Empty(t, MatchReplies(nil, msgs))
}

type fakeMailbox struct {
	msgs   []Message
	since  time.Time
	seen   []uint32
	closed bool
}

func (f *fakeMailbox) Unseen(_ context.Context, since time.Time, _ int) ([]Message, error) {
	f.since = since
	return f.msgs, nil
}

func (f *fakeMailbox) MarkSeen(_ context.Context, uids []uint32) error {
	f.seen = append(f.seen, uids...)
	return nil
}

func (f *fakeMailbox) Close() error {
	f.closed = true
	return nil
}

func TestPoller_RunOnce(t *testing.T) {
	ctx := context.Background()
	s, err := store.NewCSVStore(filepath.Join(t.TempDir(), "leads.csv"), nil)
	require.NoError(t, err)

	contacted, _, err := s.Insert(ctx, domain.Lead{OwnerHandle: "ann", ProjectName: "flows", Email: "ann@acme.io", Status: domain.StatusContacted})
	require.NoError(t, err)
	fresh, _, err := s.Insert(ctx, domain.Lead{OwnerHandle: "bob", ProjectName: "nodes", Email: "bob@acme.io"})
	require.NoError(t, err)

	mb := &fakeMailbox{msgs: []Message{
		{UID: 7, From: "ann@acme.io", Date: now},
		{UID: 8, From: "bob@acme.io", Date: now},
		{UID: 9, From: "stranger@else.io", Date: now},
	}}
	var responded []string
	p := &Poller{
		Store:       s,
		Workflow:    workflow.New(s),
		Open:        func(context.Context) (Mailbox, error) { return mb, nil },
		Lookback:    7 * 24 * time.Hour,
		Now:         func() time.Time { return now },
		OnResponded: func(l domain.Lead) { responded = append(responded, l.ID) },
	}

	sum, err := p.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, Summary{Fetched: 3, Matched: 1, Responded: 1}, sum)
	assert.Equal(t, []uint32{7}, mb.seen)
	assert.Equal(t, now.Add(-7*24*time.Hour), mb.since)
	assert.True(t, mb.closed)
	assert.Equal(t, []string{contacted.ID}, responded)

	got, err := s.Get(ctx, contacted.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusResponded, got.Status)
	got, err = s.Get(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusNew, got.Status)
}

func TestPoller_SkipsMailboxWithoutContactedLeads(t *testing.T) {
	s, err := store.NewCSVStore(filepath.Join(t.TempDir(), "leads.csv"), nil)
	require.NoError(t, err)

	opened := false
	p := &Poller{
		Store:    s,
		Workflow: workflow.New(s),
		Open: func(context.Context) (Mailbox, error) {
			opened = true
			return nil, errors.New("unreachable")
		},
	}
	sum, err := p.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sum)
	assert.False(t, opened)
}

func TestPoller_OpenFailure(t *testing.T) {
	ctx := context.Background()
	s, err := store.NewCSVStore(filepath.Join(t.TempDir(), "leads.csv"), nil)
	require.NoError(t, err)
	_, _, err = s.Insert(ctx, domain.Lead{OwnerHandle: "ann", ProjectName: "flows", Email: "ann@acme.io", Status: domain.StatusContacted})
	require.NoError(t, err)

	p := &Poller{
		Store:    s,
		Workflow: workflow.New(s),
		Open:     func(context.Context) (Mailbox, error) { return nil, errors.New("auth failed") },
	}
	_, err = p.RunOnce(ctx)
	var ce *domain.CollaboratorError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "imap", ce.Service)
}
