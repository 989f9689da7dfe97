// Package replies moves contacted leads to responded when their owner
// writes back.
package replies

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"leadhunt-engine/internal/domain"
	"leadhunt-engine/internal/store"
	"leadhunt-engine/internal/workflow"
)

type Message struct {
	UID     uint32
	From    string
	Subject string
	Date    time.Time
}

type Mailbox interface {
	Unseen(ctx context.Context, since time.Time, max int) ([]Message, error)
	MarkSeen(ctx context.Context, uids []uint32) error
	Close() error
}

type Match struct {
	LeadID string
	UID    uint32
}

// MatchReplies pairs each message with the contacted leads sharing its
// sender address. Messages dated before the lead's send time are ignored.
func MatchReplies(leads []domain.Lead, msgs []Message) []Match {
	byEmail := map[string][]domain.Lead{}
	for _, l := range leads {
		if l.Status != domain.StatusContacted || !l.HasEmail() {
			continue
		}
		k := strings.ToLower(strings.TrimSpace(l.Email))
		byEmail[k] = append(byEmail[k], l)
	}

	var out []Match
	matched := map[string]bool{}
	for _, m := range msgs {
		for _, l := range byEmail[strings.ToLower(strings.TrimSpace(m.From))] {
			if matched[l.ID] {
				continue
			}
			if l.EmailSentAt != nil && !m.Date.IsZero() && m.Date.Before(*l.EmailSentAt) {
				continue
			}
			matched[l.ID] = true
			out = append(out, Match{LeadID: l.ID, UID: m.UID})
		}
	}
	return out
}

type Summary struct {
	Fetched   int `json:"fetched"`
	Matched   int `json:"matched"`
	Responded int `json:"responded"`
	Errors    int `json:"errors"`
}

// Poller checks a mailbox for replies to outreach.
type Poller struct {
	Store    store.LeadStore
	Workflow *workflow.Service
	Open     func(ctx context.Context) (Mailbox, error)
	Lookback time.Duration
	Log      *zap.Logger
	Now      func() time.Time

	OnResponded func(domain.Lead)
}

func (p *Poller) RunOnce(ctx context.Context) (Summary, error) {
	log := zap.NewNop()
	if p.Log != nil {
		log = p.Log.Named("replies")
	}
	now := time.Now().UTC()
	if p.Now != nil {
		now = p.Now().UTC()
	}
	lookback := p.Lookback
	if lookback <= 0 {
		lookback = 30 * 24 * time.Hour
	}

	contacted, err := store.Filter(ctx, p.Store, domain.ByStatus(domain.StatusContacted))
	if err != nil {
		return Summary{}, err
	}
	if len(contacted) == 0 {
		return Summary{}, nil
	}

	mb, err := p.Open(ctx)
	if err != nil {
		return Summary{}, domain.Collab("imap", "open", err)
	}
	defer func() {
		if err := mb.Close(); err != nil {
			log.Debug("mailbox close", zap.Error(err))
		}
	}()

	msgs, err := mb.Unseen(ctx, now.Add(-lookback), 0)
	if err != nil {
		return Summary{}, domain.Collab("imap", "unseen", err)
	}
	sum := Summary{Fetched: len(msgs)}

	matches := MatchReplies(contacted, msgs)
	sum.Matched = len(matches)

	seen := map[uint32]bool{}
	var uids []uint32
	for _, m := range matches {
		updated, err := p.Workflow.AdvanceStatus(ctx, m.LeadID, domain.StatusResponded)
		if err != nil {
			sum.Errors++
			log.Error("advance to responded failed", zap.String("id", m.LeadID), zap.Error(err))
			continue
		}
		sum.Responded++
		log.Info("reply received", zap.String("lead", updated.Key()))
		if !seen[m.UID] {
			seen[m.UID] = true
			uids = append(uids, m.UID)
		}
		if p.OnResponded != nil {
			p.OnResponded(updated)
		}
	}

	if err := mb.MarkSeen(ctx, uids); err != nil {
		sum.Errors++
		log.Warn("mark seen failed", zap.Error(err))
	}
	return sum, nil
}
