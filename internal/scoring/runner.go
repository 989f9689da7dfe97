package scoring

import (
	"context"
	"time"

	"go.uber.org/zap"

	"leadhunt-engine/internal/domain"
	"leadhunt-engine/internal/store"
	"leadhunt-engine/internal/workflow"
)

type Summary struct {
	Considered int `json:"considered"`
	Scored     int `json:"scored"`
	Fallbacks  int `json:"fallbacks"`
	Pending    int `json:"marked_pending"`
	Errors     int `json:"errors"`
}

// Runner scores every lead that has no score yet.
type Runner struct {
	Store       store.LeadStore
	Workflow    *workflow.Service
	Scorer      Scorer
	Log         *zap.Logger
	Delay       time.Duration
	MarkPending bool

	OnScored func(domain.Lead)
}

// Run scores up to limit unscored leads in store order. limit <= 0 means all.
// Scorer failures fall back to Neutral; only store failures count as errors.
func (r *Runner) Run(ctx context.Context, limit int) (Summary, error) {
	log := zap.NewNop()
	if r.Log != nil {
		log = r.Log.Named("scoring")
	}

	leads, err := store.Filter(ctx, r.Store, domain.MissingScore)
	if err != nil {
		return Summary{}, err
	}
	if limit > 0 && len(leads) > limit {
		leads = leads[:limit]
	}

	var sum Summary
	for i, l := range leads {
		if i > 0 && r.Delay > 0 {
			if err := sleep(ctx, r.Delay); err != nil {
				return sum, err
			}
		}
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		sum.Considered++

		res, err := r.Scorer.Score(ctx, l)
		if err != nil {
			log.Warn("scorer failed, using neutral score", zap.String("lead", l.Key()), zap.Error(err))
			res = Neutral
			sum.Fallbacks++
		}

		updated, err := r.Workflow.RecordScore(ctx, l.ID, res.asScore())
		if err != nil {
			sum.Errors++
			log.Error("record score failed", zap.String("id", l.ID), zap.Error(err))
			continue
		}
		sum.Scored++

		if r.MarkPending && wantsReview(updated) {
			if updated, err = r.Workflow.MarkPendingApproval(ctx, l.ID); err != nil {
				sum.Errors++
				log.Error("mark pending failed", zap.String("id", l.ID), zap.Error(err))
				continue
			}
			sum.Pending++
		}
		if r.OnScored != nil {
			r.OnScored(updated)
		}
	}

	log.Info("scoring finished",
		zap.Int("scored", sum.Scored),
		zap.Int("fallbacks", sum.Fallbacks),
		zap.Int("pending", sum.Pending),
		zap.Int("errors", sum.Errors),
	)
	return sum, nil
}

func wantsReview(l domain.Lead) bool {
	return l.HasEmail() && !l.EmailSent && !l.EmailApproved && !l.EmailPendingApproval
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
