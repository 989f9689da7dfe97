package discover

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

var errNotFound = errors.New("not found")

// Repo is one repository descriptor from a search page.
type Repo struct {
	Owner       string
	OwnerType   string
	Name        string
	URL         string
	Description string
	PushedAt    time.Time
	Topics      []string
}

// Profile is the public part of a user or organization account.
type Profile struct {
	Login     string
	Type      string
	Name      string
	Email     string
	Bio       string
	Blog      string
	Followers int
}

type CommitAuthor struct {
	Login string
	Name  string
	Email string
}

// GitHub is a small REST client for the endpoints discovery needs.
type GitHub struct {
	BaseURL string
	Token   string
	PerPage int

	hc  *http.Client
	lim *HostLimiter
}

func NewGitHub(baseURL, token string, perPage int, lim *HostLimiter) *GitHub {
	if baseURL == "" {
		baseURL = "https://api.github.com"
	}
	if perPage <= 0 {
		perPage = 30
	}
	return &GitHub{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		PerPage: perPage,
		hc:      &http.Client{Timeout: 20 * time.Second},
		lim:     lim,
	}
}

type searchResponse struct {
	TotalCount int `json:"total_count"`
	Items      []struct {
		Name        string    `json:"name"`
		HTMLURL     string    `json:"html_url"`
		Description string    `json:"description"`
		PushedAt    time.Time `json:"pushed_at"`
		Topics      []string  `json:"topics"`
		Owner       struct {
			Login string `json:"login"`
			Type  string `json:"type"`
		} `json:"owner"`
	} `json:"items"`
}

// SearchRepositories returns one page of results, most recently updated first.
func (g *GitHub) SearchRepositories(ctx context.Context, query string, page int) ([]Repo, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("sort", "updated")
	q.Set("order", "desc")
	q.Set("per_page", strconv.Itoa(g.PerPage))
	q.Set("page", strconv.Itoa(page))

	var resp searchResponse
	if err := g.getJSON(ctx, "/search/repositories?"+q.Encode(), &resp); err != nil {
		return nil, collabErr("github", "search", err)
	}

	out := make([]Repo, 0, len(resp.Items))
	for _, it := range resp.Items {
		out = append(out, Repo{
			Owner:       it.Owner.Login,
			OwnerType:   it.Owner.Type,
			Name:        it.Name,
			URL:         it.HTMLURL,
			Description: it.Description,
			PushedAt:    it.PushedAt.UTC(),
			Topics:      it.Topics,
		})
	}
	return out, nil
}

func (g *GitHub) User(ctx context.Context, login string) (Profile, error) {
	var u struct {
		Login     string `json:"login"`
		Type      string `json:"type"`
		Name      string `json:"name"`
		Email     string `json:"email"`
		Bio       string `json:"bio"`
		Blog      string `json:"blog"`
		Followers int    `json:"followers"`
	}
	if err := g.getJSON(ctx, "/users/"+url.PathEscape(login), &u); err != nil {
		return Profile{}, collabErr("github", "user", err)
	}
	return Profile{
		Login:     u.Login,
		Type:      u.Type,
		Name:      u.Name,
		Email:     u.Email,
		Bio:       u.Bio,
		Blog:      u.Blog,
		Followers: u.Followers,
	}, nil
}

// CommitAuthors lists the authors of the latest commits on the default branch.
func (g *GitHub) CommitAuthors(ctx context.Context, owner, repo string) ([]CommitAuthor, error) {
	var commits []struct {
		Commit struct {
			Author struct {
				Name  string `json:"name"`
				Email string `json:"email"`
			} `json:"author"`
		} `json:"commit"`
		Author *struct {
			Login string `json:"login"`
		} `json:"author"`
	}
	path := fmt.Sprintf("/repos/%s/%s/commits?per_page=20", url.PathEscape(owner), url.PathEscape(repo))
	err := g.getJSON(ctx, path, &commits)
	if errors.Is(err, errNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, collabErr("github", "commits", err)
	}

	out := make([]CommitAuthor, 0, len(commits))
	for _, c := range commits {
		a := CommitAuthor{Name: c.Commit.Author.Name, Email: c.Commit.Author.Email}
		if c.Author != nil {
			a.Login = c.Author.Login
		}
		out = append(out, a)
	}
	return out, nil
}

// ReadmeHTML returns the rendered README, or "" when the repo has none.
func (g *GitHub) ReadmeHTML(ctx context.Context, owner, repo string) (string, error) {
	path := fmt.Sprintf("/repos/%s/%s/readme", url.PathEscape(owner), url.PathEscape(repo))
	body, err := g.get(ctx, path, "application/vnd.github.html+json")
	if errors.Is(err, errNotFound) {
		return "", nil
	}
	if err != nil {
		return "", collabErr("github", "readme", err)
	}
	return string(body), nil
}

func (g *GitHub) getJSON(ctx context.Context, path string, v any) error {
	body, err := g.get(ctx, path, "application/vnd.github+json")
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func (g *GitHub) get(ctx context.Context, path, accept string) ([]byte, error) {
	u := g.BaseURL + path
	if err := g.lim.WaitURL(ctx, u); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	req.Header.Set("User-Agent", "LeadHunt/1.0 (+local)")
	if g.Token != "" {
		req.Header.Set("Authorization", "Bearer "+g.Token)
	}

	res, err := g.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, 8<<20))
	if err != nil {
		return nil, err
	}
	switch {
	case res.StatusCode == http.StatusNotFound:
		return nil, errNotFound
	case res.StatusCode == http.StatusForbidden && res.Header.Get("X-RateLimit-Remaining") == "0",
		res.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("rate limited (reset=%s)", res.Header.Get("X-RateLimit-Reset"))
	case res.StatusCode >= 400:
		snippet := string(body)
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		return nil, fmt.Errorf("status %d: %s", res.StatusCode, snippet)
	}
	return body, nil
}
