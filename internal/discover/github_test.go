package discover

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type requestLog struct {
	mu   sync.Mutex
	reqs []*http.Request
}

func (l *requestLog) add(r *http.Request) {
	l.mu.Lock()
	l.reqs = append(l.reqs, r)
	l.mu.Unlock()
}

func (l *requestLog) at(i int) *http.Request {
	l.mu.Lock()
	defer l.mu.Unlock()
	if i < 0 {
		i += len(l.reqs)
	}
	return l.reqs[i]
}

func newGitHubServer(t *testing.T) (*httptest.Server, *requestLog) {
	t.Helper()
	seen := &requestLog{}

	mux := http.NewServeMux()
	mux.HandleFunc("/search/repositories", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"total_count":1,"items":[{
			"name":"flows","html_url":"https://github.com/octo/flows",
			"description":"workflow glue","pushed_at":"2024-04-30T10:00:00Z",
			"topics":["automation"],"owner":{"login":"octo","type":"User"}}]}`))
	})
	mux.HandleFunc("/users/octo", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"login":"octo","type":"User","name":"Octo Cat","email":null,"bio":"bots","followers":42}`))
	})
	mux.HandleFunc("/repos/octo/flows/commits", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[
			{"commit":{"author":{"name":"Octo Cat","email":"octo@acme.io"}},"author":{"login":"octo"}},
			{"commit":{"author":{"name":"Drive By","email":"d@b.io"}},"author":null}]`))
	})
	mux.HandleFunc("/repos/octo/flows/readme", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<p>hi</p>`))
	})
	mux.HandleFunc("/repos/octo/limited/readme", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-RateLimit-Remaining", "0")
		w.WriteHeader(http.StatusForbidden)
	})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen.add(r)
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, seen
}

func TestGitHub_Endpoints(t *testing.T) {
	srv, seen := newGitHubServer(t)
	gh := NewGitHub(srv.URL+"/", "tok", 10, NewHostLimiter(1000, 10))
	ctx := context.Background()

	repos, err := gh.SearchRepositories(ctx, "topic:automation", 2)
	require.NoError(t, err)
	require.Len(t, repos, 1)
	assert.Equal(t, Repo{
		Owner:       "octo",
		OwnerType:   "User",
		Name:        "flows",
		URL:         "https://github.com/octo/flows",
		Description: "workflow glue",
		PushedAt:    time.Date(2024, 4, 30, 10, 0, 0, 0, time.UTC),
		Topics:      []string{"automation"},
	}, repos[0])

	first := seen.at(0)
	assert.Equal(t, "Bearer tok", first.Header.Get("Authorization"))
	assert.Equal(t, "topic:automation", first.URL.Query().Get("q"))
	assert.Equal(t, "updated", first.URL.Query().Get("sort"))
	assert.Equal(t, "10", first.URL.Query().Get("per_page"))
	assert.Equal(t, "2", first.URL.Query().Get("page"))

	p, err := gh.User(ctx, "octo")
	require.NoError(t, err)
	assert.Equal(t, "Octo Cat", p.Name)
	assert.Equal(t, 42, p.Followers)
	assert.Empty(t, p.Email)

	authors, err := gh.CommitAuthors(ctx, "octo", "flows")
	require.NoError(t, err)
	assert.Equal(t, []CommitAuthor{
		{Login: "octo", Name: "Octo Cat", Email: "octo@acme.io"},
		{Name: "Drive By", Email: "d@b.io"},
	}, authors)

	html, err := gh.ReadmeHTML(ctx, "octo", "flows")
	require.NoError(t, err)
	assert.Equal(t, "<p>hi</p>", html)
	assert.Equal(t, "application/vnd.github.html+json", seen.at(-1).Header.Get("Accept"))
}

func TestGitHub_MissingResources(t *testing.T) {
	srv, _ := newGitHubServer(t)
	gh := NewGitHub(srv.URL, "", 0, nil)
	ctx := context.Background()

	html, err := gh.ReadmeHTML(ctx, "octo", "gone")
	require.NoError(t, err)
	assert.Empty(t, html)

	authors, err := gh.CommitAuthors(ctx, "octo", "gone")
	require.NoError(t, err)
	assert.Empty(t, authors)

	_, err = gh.User(ctx, "ghost")
	var ce *CollaboratorError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "user", ce.Op)
}

func TestGitHub_RateLimited(t *testing.T) {
	srv, _ := newGitHubServer(t)
	gh := NewGitHub(srv.URL, "", 0, nil)

	_, err := gh.ReadmeHTML(context.Background(), "octo", "limited")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
}

func TestEffectiveRate(t *testing.T) {
	assert.Equal(t, 2.0, EffectiveRate(0, 500))
	assert.Equal(t, 2.0, EffectiveRate(5, 500))
	assert.Equal(t, 1.0, EffectiveRate(1, 500))
	assert.Equal(t, 3.0, EffectiveRate(3, 0))
}

func TestHostLimiter_NilWaitsOnlyForContext(t *testing.T) {
	var hl *HostLimiter
	require.NoError(t, hl.WaitURL(context.Background(), "https://api.github.com/x"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, hl.WaitURL(ctx, "https://api.github.com/x"), context.Canceled)
}
