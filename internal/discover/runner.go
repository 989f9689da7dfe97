package discover

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"leadhunt-engine/internal/domain"
	"leadhunt-engine/internal/store"
)

type Searcher interface {
	SearchRepositories(ctx context.Context, query string, page int) ([]Repo, error)
}

// Summary counts what one discovery pass did with every repository it saw.
type Summary struct {
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Queries    int            `json:"queries"`
	Seen       int            `json:"seen"`
	Known      int            `json:"known"`
	Skipped    int            `json:"skipped"`
	NoEmail    int            `json:"no_email"`
	Added      int            `json:"added"`
	Errors     int            `json:"errors"`
	Reasons    map[string]int `json:"skip_reasons"`
	Sources    map[string]int `json:"email_sources"`
}

type Runner struct {
	Store     store.LeadStore
	Search    Searcher
	Source    Source
	Qualifier Qualifier
	Log       *zap.Logger

	Queries         []string
	MaxPages        int
	Concurrency     int
	MaxInactiveDays int

	Now     func() time.Time
	OnAdded func(domain.Lead)

	mu      sync.Mutex
	running bool
	last    *Summary
}

var ErrAlreadyRunning = errors.New("discovery already running")

type page struct {
	query string
	n     int
	repos []Repo
	err   error
}

// RunOnce fetches every configured query page concurrently, then walks the
// repositories sequentially so store mutations happen in result order.
func (r *Runner) RunOnce(ctx context.Context) (Summary, error) {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return Summary{}, ErrAlreadyRunning
	}
	r.running = true
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	log := r.logger()
	now := r.now()
	sum := Summary{
		StartedAt: now,
		Queries:   len(r.Queries),
		Reasons:   map[string]int{},
		Sources:   map[string]int{},
	}

	pages := r.fetchPages(ctx)

	finder := &Finder{Src: r.Source}
	qualifier := r.Qualifier
	if qualifier == nil {
		qualifier = AcceptAll
	}
	seen := map[string]bool{}

	for _, pg := range pages {
		if pg.err != nil {
			sum.Errors++
			log.Warn("search failed", zap.String("query", pg.query), zap.Int("page", pg.n), zap.Error(pg.err))
			continue
		}
		for _, repo := range pg.repos {
			if err := ctx.Err(); err != nil {
				sum.FinishedAt = r.now()
				r.remember(sum)
				return sum, err
			}
			key := repo.Owner + "/" + repo.Name
			if seen[key] {
				continue
			}
			seen[key] = true
			sum.Seen++

			r.handle(ctx, log, finder, qualifier, repo, &sum)
		}
	}

	sum.FinishedAt = r.now()
	log.Info("discovery finished",
		zap.Int("seen", sum.Seen),
		zap.Int("known", sum.Known),
		zap.Int("skipped", sum.Skipped),
		zap.Int("no_email", sum.NoEmail),
		zap.Int("added", sum.Added),
		zap.Int("errors", sum.Errors),
	)
	r.remember(sum)
	return sum, nil
}

func (r *Runner) handle(ctx context.Context, log *zap.Logger, finder *Finder, q Qualifier, repo Repo, sum *Summary) {
	known, err := r.Store.Exists(ctx, repo.Owner, repo.Name)
	if err != nil {
		sum.Errors++
		log.Error("exists check failed", zap.String("repo", repo.URL), zap.Error(err))
		return
	}
	if known {
		sum.Known++
		return
	}
	if Inactive(repo, r.MaxInactiveDays, r.now()) {
		sum.Skipped++
		sum.Reasons["inactive"]++
		return
	}

	profile, err := r.Source.User(ctx, repo.Owner)
	if err != nil {
		sum.Errors++
		log.Warn("profile lookup failed", zap.String("owner", repo.Owner), zap.Error(err))
		return
	}
	if keep, reason := q.Qualify(repo, profile); !keep {
		sum.Skipped++
		sum.Reasons[reason]++
		log.Debug("owner skipped", zap.String("owner", repo.Owner), zap.String("reason", reason))
		return
	}

	found, err := finder.FindFor(ctx, profile, repo.Name)
	if !found.Found() {
		if err != nil {
			sum.Errors++
			log.Warn("email discovery failed", zap.String("owner", repo.Owner), zap.Error(err))
			return
		}
		sum.NoEmail++
		return
	}

	lead, added, err := r.Store.Insert(ctx, domain.Lead{
		OwnerHandle:        repo.Owner,
		ProjectName:        repo.Name,
		ProjectURL:         CanonicalURL(repo.URL),
		ProjectDescription: CleanText(repo.Description),
		Email:              found.Email,
		LastActivity:       repo.PushedAt,
	})
	if err != nil {
		sum.Errors++
		log.Error("insert failed", zap.String("repo", repo.URL), zap.Error(err))
		return
	}
	if !added {
		sum.Known++
		return
	}
	sum.Added++
	sum.Sources[found.Source]++
	log.Info("lead added", zap.String("lead", lead.Key()), zap.String("source", found.Source))
	if r.OnAdded != nil {
		r.OnAdded(lead)
	}
}

func (r *Runner) fetchPages(ctx context.Context) []page {
	maxPages := r.MaxPages
	if maxPages <= 0 {
		maxPages = 1
	}

	pages := make([]page, 0, len(r.Queries)*maxPages)
	for _, q := range r.Queries {
		for n := 1; n <= maxPages; n++ {
			pages = append(pages, page{query: q, n: n})
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	limit := r.Concurrency
	if limit <= 0 {
		limit = 1
	}
	g.SetLimit(limit)

	for i := range pages {
		i := i
		g.Go(func() error {
			pctx, cancel := context.WithTimeout(gctx, 2*time.Minute)
			defer cancel()
			pages[i].repos, pages[i].err = r.Search.SearchRepositories(pctx, pages[i].query, pages[i].n)
			return nil
		})
	}
	_ = g.Wait()
	return pages
}

// Last returns the most recent finished summary, if any.
func (r *Runner) Last() (Summary, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.last == nil {
		return Summary{}, false
	}
	return *r.last, true
}

func (r *Runner) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

func (r *Runner) remember(s Summary) {
	r.mu.Lock()
	r.last = &s
	r.mu.Unlock()
}

func (r *Runner) logger() *zap.Logger {
	if r.Log == nil {
		return zap.NewNop()
	}
	return r.Log.Named("discover")
}

func (r *Runner) now() time.Time {
	if r.Now == nil {
		return time.Now().UTC()
	}
	return r.Now().UTC()
}
