package export

import (
	"time"

	"leadhunt-engine/internal/domain"
)

// NoRecommendation buckets leads that have not been scored.
const NoRecommendation = "none"

type Summary struct {
	GeneratedAt      time.Time      `json:"generated_at"`
	Total            int            `json:"total"`
	WithEmail        int            `json:"with_email"`
	EmailSent        int            `json:"email_sent"`
	EmailApproved    int            `json:"email_approved"`
	PendingApproval  int            `json:"pending_approval"`
	AIAnalyzed       int            `json:"ai_analyzed"`
	ByStatus         map[string]int `json:"by_status"`
	ByRecommendation map[string]int `json:"by_recommendation"`
}

// Analyze is pure aggregation. Every status and recommendation bucket is
// present even when zero, so sum(ByStatus) == Total.
func Analyze(leads []domain.Lead, now time.Time) Summary {
	s := Summary{
		GeneratedAt: now.UTC(),
		Total:       len(leads),
		ByStatus:    make(map[string]int, len(domain.Statuses)),
		ByRecommendation: map[string]int{
			string(domain.RecommendApprove): 0,
			string(domain.RecommendReject):  0,
			string(domain.RecommendReview):  0,
			NoRecommendation:                0,
		},
	}
	for _, st := range domain.Statuses {
		s.ByStatus[string(st)] = 0
	}

	for _, l := range leads {
		if l.HasEmail() {
			s.WithEmail++
		}
		if l.EmailSent {
			s.EmailSent++
		}
		if l.EmailApproved {
			s.EmailApproved++
		}
		if l.EmailPendingApproval {
			s.PendingApproval++
		}
		if l.AIScore != nil {
			s.AIAnalyzed++
		}

		st := l.Status
		if !st.Valid() {
			st = domain.StatusNew
		}
		s.ByStatus[string(st)]++

		rec := string(l.AIRecommendation)
		if !l.AIRecommendation.Valid() {
			rec = NoRecommendation
		}
		s.ByRecommendation[rec]++
	}
	return s
}
