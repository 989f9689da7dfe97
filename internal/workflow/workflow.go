package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"leadhunt-engine/internal/domain"
	"leadhunt-engine/internal/store"
)

var (
	ErrInvalidStatus     = errors.New("invalid status")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Policy decides whether a lead may move from one status to another.
type Policy interface {
	Allow(from, to domain.Status) bool
}

type PolicyFunc func(from, to domain.Status) bool

func (f PolicyFunc) Allow(from, to domain.Status) bool { return f(from, to) }

// HappyPath only allows staying put or moving forward along
// new -> contacted -> responded -> converted.
var HappyPath Policy = PolicyFunc(func(from, to domain.Status) bool {
	return to.Rank() >= from.Rank()
})

// Score is what a scorer produced for one lead.
type Score struct {
	Score          float64
	Recommendation domain.Recommendation
	Analysis       string
}

// Service expresses the outreach rules as single-update mutations over a
// LeadStore. A nil Policy accepts any transition. Policy is checked against
// a prior Get, so it is advisory when other writers share the store: a
// status changed between the read and the update is not re-checked.
type Service struct {
	Store  store.LeadStore
	Now    func() time.Time
	Policy Policy
}

func New(s store.LeadStore) *Service {
	return &Service{Store: s, Now: time.Now}
}

func (w *Service) now() time.Time {
	if w.Now == nil {
		return time.Now().UTC()
	}
	return w.Now().UTC()
}

// MarkPendingApproval queues a lead for human review.
func (w *Service) MarkPendingApproval(ctx context.Context, id string) (domain.Lead, error) {
	return w.Store.Update(ctx, id, domain.Patch{
		EmailPendingApproval: domain.Ptr(true),
		EmailApproved:        domain.Ptr(false),
	})
}

func (w *Service) Approve(ctx context.Context, id string) (domain.Lead, error) {
	return w.Store.Update(ctx, id, domain.Patch{
		EmailApproved:        domain.Ptr(true),
		EmailPendingApproval: domain.Ptr(false),
	})
}

func (w *Service) Reject(ctx context.Context, id string) (domain.Lead, error) {
	return w.Store.Update(ctx, id, domain.Patch{
		EmailApproved:        domain.Ptr(false),
		EmailPendingApproval: domain.Ptr(false),
	})
}

// RecordEmailSent stamps the send and moves the lead to contacted.
func (w *Service) RecordEmailSent(ctx context.Context, id string) (domain.Lead, error) {
	if w.Policy != nil {
		cur, err := w.Store.Get(ctx, id)
		if err != nil {
			return domain.Lead{}, err
		}
		if !w.Policy.Allow(cur.Status, domain.StatusContacted) {
			return domain.Lead{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, cur.Status, domain.StatusContacted)
		}
	}
	now := w.now()
	return w.Store.Update(ctx, id, domain.Patch{
		EmailSent:   domain.Ptr(true),
		EmailSentAt: &now,
		Status:      domain.Ptr(domain.StatusContacted),
	})
}

func (w *Service) AdvanceStatus(ctx context.Context, id string, to domain.Status) (domain.Lead, error) {
	if !to.Valid() {
		return domain.Lead{}, fmt.Errorf("%w: %q", ErrInvalidStatus, to)
	}
	if w.Policy != nil {
		cur, err := w.Store.Get(ctx, id)
		if err != nil {
			return domain.Lead{}, err
		}
		if !w.Policy.Allow(cur.Status, to) {
			return domain.Lead{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, cur.Status, to)
		}
	}
	return w.Store.Update(ctx, id, domain.Patch{Status: &to})
}

func (w *Service) RecordScore(ctx context.Context, id string, s Score) (domain.Lead, error) {
	if s.Score < 0 || s.Score > 1 || !s.Recommendation.Valid() {
		return domain.Lead{}, fmt.Errorf("%w: score %.2f recommendation %q", store.ErrInvalidLead, s.Score, s.Recommendation)
	}
	return w.Store.Update(ctx, id, domain.Patch{
		AIScore:          domain.Ptr(s.Score),
		AIRecommendation: domain.Ptr(s.Recommendation),
		AIAnalysis:       domain.Ptr(s.Analysis),
	})
}
