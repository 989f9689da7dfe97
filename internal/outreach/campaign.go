// Package outreach sends the first email to approved leads.
package outreach

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"leadhunt-engine/internal/domain"
	"leadhunt-engine/internal/store"
	"leadhunt-engine/internal/workflow"
)

const (
	SkipNotFound   = "not_found"
	SkipNotReady   = "not_ready"
	SkipDailyLimit = "daily_limit"
)

type Skip struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

type Preview struct {
	ID string `json:"id"`
	Message
}

// Report is the outcome of one Send call.
type Report struct {
	DryRun    bool      `json:"dry_run"`
	Selected  int       `json:"selected"`
	Sent      []string  `json:"sent"`
	Skipped   []Skip    `json:"skipped"`
	Failed    []Skip    `json:"failed"`
	Previews  []Preview `json:"previews,omitempty"`
	Remaining int       `json:"remaining_today"`
}

type Campaign struct {
	Store      store.LeadStore
	Workflow   *workflow.Service
	Sender     Sender
	Templates  *Templates
	DailyLimit int
	Delay      time.Duration
	Log        *zap.Logger
	Now        func() time.Time

	OnSent func(domain.Lead)
}

// Send mails the ready leads among ids, or every ready lead when ids is empty.
// A dry run renders the messages and changes nothing.
func (c *Campaign) Send(ctx context.Context, ids []string, dryRun bool) (Report, error) {
	log := zap.NewNop()
	if c.Log != nil {
		log = c.Log.Named("outreach")
	}
	if c.Templates == nil {
		return Report{}, errors.New("outreach templates not configured")
	}

	leads, err := c.Store.List(ctx)
	if err != nil {
		return Report{}, err
	}
	rep := Report{DryRun: dryRun}

	targets := c.selectTargets(leads, ids, &rep)
	rep.Selected = len(targets)

	remaining := -1
	if c.DailyLimit > 0 {
		remaining = c.DailyLimit - sentOn(leads, c.now())
		if remaining < 0 {
			remaining = 0
		}
	}

	first := true
	for _, l := range targets {
		if remaining == 0 {
			rep.Skipped = append(rep.Skipped, Skip{ID: l.ID, Reason: SkipDailyLimit})
			continue
		}
		msg, err := c.Templates.Render(l)
		if err != nil {
			rep.Failed = append(rep.Failed, Skip{ID: l.ID, Reason: err.Error()})
			continue
		}
		if dryRun {
			rep.Previews = append(rep.Previews, Preview{ID: l.ID, Message: msg})
			if remaining > 0 {
				remaining--
			}
			continue
		}

		if !first && c.Delay > 0 {
			if err := sleep(ctx, c.Delay); err != nil {
				return rep, err
			}
		}
		first = false

		if err := c.Sender.Send(ctx, msg); err != nil {
			log.Warn("send failed", zap.String("lead", l.Key()), zap.Error(err))
			rep.Failed = append(rep.Failed, Skip{ID: l.ID, Reason: err.Error()})
			continue
		}
		updated, err := c.Workflow.RecordEmailSent(ctx, l.ID)
		if err != nil {
			log.Error("email sent but not recorded", zap.String("id", l.ID), zap.Error(err))
			rep.Failed = append(rep.Failed, Skip{ID: l.ID, Reason: err.Error()})
			continue
		}
		rep.Sent = append(rep.Sent, l.ID)
		if remaining > 0 {
			remaining--
		}
		log.Info("email sent", zap.String("lead", l.Key()), zap.String("to", l.Email))
		if c.OnSent != nil {
			c.OnSent(updated)
		}
	}
	rep.Remaining = remaining

	log.Info("campaign finished",
		zap.Bool("dry_run", dryRun),
		zap.Int("selected", rep.Selected),
		zap.Int("sent", len(rep.Sent)),
		zap.Int("skipped", len(rep.Skipped)),
		zap.Int("failed", len(rep.Failed)),
	)
	return rep, nil
}

func (c *Campaign) selectTargets(leads []domain.Lead, ids []string, rep *Report) []domain.Lead {
	if len(ids) == 0 {
		return domain.Select(leads, domain.ReadyForOutreach)
	}
	byID := make(map[string]domain.Lead, len(leads))
	for _, l := range leads {
		byID[l.ID] = l
	}
	seen := map[string]bool{}
	var out []domain.Lead
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		l, ok := byID[id]
		switch {
		case !ok:
			rep.Skipped = append(rep.Skipped, Skip{ID: id, Reason: SkipNotFound})
		case !domain.ReadyForOutreach(l):
			rep.Skipped = append(rep.Skipped, Skip{ID: id, Reason: SkipNotReady})
		default:
			out = append(out, l)
		}
	}
	return out
}

// sentOn counts leads whose email went out on now's UTC day.
func sentOn(leads []domain.Lead, now time.Time) int {
	y, m, d := now.UTC().Date()
	n := 0
	for _, l := range leads {
		if l.EmailSentAt == nil {
			continue
		}
		ly, lm, ld := l.EmailSentAt.UTC().Date()
		if ly == y && lm == m && ld == d {
			n++
		}
	}
	return n
}

func (c *Campaign) now() time.Time {
	if c.Now == nil {
		return time.Now().UTC()
	}
	return c.Now().UTC()
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
