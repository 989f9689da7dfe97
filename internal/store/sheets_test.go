package store

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"leadhunt-engine/internal/domain"
)

// fakeSheet serves the three values endpoints the store uses and, like the
// real API, drops trailing empty cells on read. failGet and failPut, when
// set, are returned as the status of the matching calls.
type fakeSheet struct {
	mu      sync.Mutex
	values  [][]any
	updates int
	inputs  []string
	clears  []string
	failGet int
	failPut int
}

func (f *fakeSheet) set(fn func(*fakeSheet)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func (f *fakeSheet) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodGet && f.failGet != 0:
		http.Error(w, `{"error":{"code":503,"message":"backend unavailable"}}`, f.failGet)

	case r.Method == http.MethodPut && f.failPut != 0:
		http.Error(w, `{"error":{"code":429,"message":"quota exceeded"}}`, f.failPut)

	case r.Method == http.MethodGet:
		out := make([][]any, 0, len(f.values))
		for _, row := range f.values {
			end := len(row)
			for end > 0 && row[end-1] == "" {
				end--
			}
			out = append(out, row[:end])
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"range": "Leads", "majorDimension": "ROWS", "values": out})

	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, ":clear"):
		rng := strings.TrimSuffix(r.URL.Path[strings.Index(r.URL.Path, "/values/")+len("/values/"):], ":clear")
		f.clears = append(f.clears, rng)
		var from, to int
		if _, err := fmt.Sscanf(rng[strings.LastIndex(rng, "!")+1:], "%d:%d", &from, &to); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		for i := from - 1; i < to && i < len(f.values); i++ {
			f.values[i] = []any{}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"clearedRange": rng})

	case r.Method == http.MethodPut:
		var body struct {
			Values [][]any `json:"values"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		// an update from A1 overwrites the top rows and leaves the rest
		for i, v := range body.Values {
			if i < len(f.values) {
				f.values[i] = v
				continue
			}
			f.values = append(f.values, v)
		}
		f.updates++
		f.inputs = append(f.inputs, r.URL.Query().Get("valueInputOption"))
		_ = json.NewEncoder(w).Encode(map[string]any{"updatedRows": len(body.Values)})

	default:
		http.Error(w, "unexpected "+r.Method+" "+r.URL.Path, http.StatusNotFound)
	}
}

func newSheets(t *testing.T) (*SheetsStore, *fakeSheet) {
	t.Helper()
	fake := &fakeSheet{}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	s, err := NewSheetsStore(context.Background(), "sheet-123", "Leads", zap.NewNop(),
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
		option.WithoutAuthentication(),
	)
	require.NoError(t, err)
	return s, fake
}

func TestSheetsStore_EmptySheet(t *testing.T) {
	s, _ := newSheets(t)

	leads, err := s.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, leads)
}

func TestSheetsStore_InsertUpdate(t *testing.T) {
	ctx := context.Background()
	s, fake := newSheets(t)

	l, added, err := s.Insert(ctx, candidate("alice", "flows"))
	require.NoError(t, err)
	require.True(t, added)

	require.Len(t, fake.values, 2)
	assert.Equal(t, "id", fake.values[0][0])
	assert.Equal(t, []string{"RAW"}, fake.inputs)

	_, added, err = s.Insert(ctx, candidate("alice", "flows"))
	require.NoError(t, err)
	assert.False(t, added)
	assert.Equal(t, 1, fake.updates)

	updated, err := s.Update(ctx, l.ID, domain.Patch{EmailPendingApproval: domain.Ptr(true)})
	require.NoError(t, err)
	assert.True(t, updated.EmailPendingApproval)

	got, err := s.Get(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, updated, got)

	ok, err := s.Exists(ctx, "alice", "flows")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = s.Update(ctx, "missing", domain.Patch{EmailApproved: domain.Ptr(true)})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSheetsStore_KeepsMalformedRows(t *testing.T) {
	ctx := context.Background()
	s, fake := newSheets(t)
	fake.values = [][]any{toAny(Header), {"x", "y", "z", "", "", "", "", "", "bogus"}}

	leads, err := s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, leads)

	_, _, err = s.Insert(ctx, candidate("bob", "bots"))
	require.NoError(t, err)
	require.Len(t, fake.values, 3)
	assert.Equal(t, "bogus", fake.values[1][8])
}

func TestSheetsStore_FailedWriteKeepsRows(t *testing.T) {
	ctx := context.Background()
	s, fake := newSheets(t)

	alice, _, err := s.Insert(ctx, candidate("alice", "wf1"))
	require.NoError(t, err)
	_, _, err = s.Insert(ctx, candidate("bob", "wf2"))
	require.NoError(t, err)

	fake.set(func(f *fakeSheet) { f.failPut = http.StatusTooManyRequests })
	_, err = s.Update(ctx, alice.ID, domain.Patch{Status: domain.Ptr(domain.StatusContacted)})
	require.Error(t, err)
	_, added, err := s.Insert(ctx, candidate("carol", "wf3"))
	require.Error(t, err)
	assert.False(t, added)
	fake.set(func(f *fakeSheet) { f.failPut = 0 })

	leads, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, leads, 2)
	assert.Equal(t, domain.StatusNew, leads[0].Status)
	assert.Empty(t, fake.clears)
}

func TestSheetsStore_FailedReadAbortsInsert(t *testing.T) {
	ctx := context.Background()
	s, fake := newSheets(t)
	_, _, err := s.Insert(ctx, candidate("alice", "wf1"))
	require.NoError(t, err)

	fake.set(func(f *fakeSheet) { f.failGet = http.StatusServiceUnavailable })
	l, added, err := s.Insert(ctx, candidate("bob", "wf2"))
	require.Error(t, err)
	assert.False(t, added)
	assert.Zero(t, l)
	assert.Equal(t, 1, fake.updates)
}

func TestSheetsStore_CancelledContextLeavesRows(t *testing.T) {
	s, fake := newSheets(t)
	_, _, err := s.Insert(context.Background(), candidate("alice", "wf1"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, added, err := s.Insert(ctx, candidate("bob", "wf2"))
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, added)

	leads, err := s.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, leads, 1)
	assert.Equal(t, 1, fake.updates)
}

func TestSheetsStore_ClearsRowsLeftByCompaction(t *testing.T) {
	ctx := context.Background()
	s, fake := newSheets(t)
	a, b := sampleLead(), sampleLead()
	b.ID, b.OwnerHandle = "lead-2", "bob"
	fake.values = [][]any{toAny(Header), toAny(EncodeFields(a)), {}, {}, toAny(EncodeFields(b))}

	_, err := s.Update(ctx, b.ID, domain.Patch{EmailPendingApproval: domain.Ptr(true)})
	require.NoError(t, err)
	assert.Equal(t, []string{"'Leads'!4:5"}, fake.clears)

	leads, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, leads, 2)
	assert.True(t, leads[1].EmailPendingApproval)
}

func TestSheetsStore_MalformedRowHoldsPair(t *testing.T) {
	ctx := context.Background()
	s, fake := newSheets(t)
	fake.values = [][]any{toAny(Header), {"id9", "zed", "yard", "", "", "", "", "", "bogus"}}

	ok, err := s.Exists(ctx, "zed", "yard")
	require.NoError(t, err)
	assert.True(t, ok)

	_, added, err := s.Insert(ctx, candidate("zed", "yard"))
	require.ErrorIs(t, err, ErrAlreadyExists)
	assert.False(t, added)
	assert.Zero(t, fake.updates)
}
