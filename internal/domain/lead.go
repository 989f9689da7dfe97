package domain

import (
	"fmt"
	"strings"
	"time"
)

type Status string

const (
	StatusNew       Status = "new"
	StatusContacted Status = "contacted"
	StatusResponded Status = "responded"
	StatusConverted Status = "converted"
)

// Statuses lists every status in happy-path order.
var Statuses = []Status{StatusNew, StatusContacted, StatusResponded, StatusConverted}

func (s Status) Valid() bool {
	switch s {
	case StatusNew, StatusContacted, StatusResponded, StatusConverted:
		return true
	}
	return false
}

// Rank is the position of s along new -> contacted -> responded -> converted, or -1.
func (s Status) Rank() int {
	for i, st := range Statuses {
		if st == s {
			return i
		}
	}
	return -1
}

func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	if s == "" {
		return StatusNew, nil
	}
	if !s.Valid() {
		return "", fmt.Errorf("unknown status %q", raw)
	}
	return s, nil
}

type Recommendation string

const (
	RecommendApprove Recommendation = "approve"
	RecommendReject  Recommendation = "reject"
	RecommendReview  Recommendation = "review"
)

func (r Recommendation) Valid() bool {
	switch r {
	case RecommendApprove, RecommendReject, RecommendReview:
		return true
	}
	return false
}

// ParseRecommendation accepts the empty string as "not scored yet".
func ParseRecommendation(raw string) (Recommendation, error) {
	r := Recommendation(strings.ToLower(strings.TrimSpace(raw)))
	if r == "" || r.Valid() {
		return r, nil
	}
	return "", fmt.Errorf("unknown recommendation %q", raw)
}

// Lead is one prospective contact/repository pairing.
// (OwnerHandle, ProjectName) identifies a lead within a store.
type Lead struct {
	ID                   string         `json:"id"`
	OwnerHandle          string         `json:"owner_handle"`
	ProjectName          string         `json:"project_name"`
	ProjectURL           string         `json:"project_url"`
	ProjectDescription   string         `json:"project_description"`
	Email                string         `json:"email,omitempty"`
	LastActivity         time.Time      `json:"last_activity"`
	CreatedAt            time.Time      `json:"created_at"`
	Status               Status         `json:"status"`
	EmailSent            bool           `json:"email_sent"`
	EmailSentAt          *time.Time     `json:"email_sent_at,omitempty"`
	EmailApproved        bool           `json:"email_approved"`
	EmailPendingApproval bool           `json:"email_pending_approval"`
	AIScore              *float64       `json:"ai_score,omitempty"`
	AIRecommendation     Recommendation `json:"ai_recommendation,omitempty"`
	AIAnalysis           string         `json:"ai_analysis,omitempty"`
}

func (l Lead) Key() string {
	return l.OwnerHandle + "/" + l.ProjectName
}

func (l Lead) HasEmail() bool {
	return strings.TrimSpace(l.Email) != ""
}

// Patch is a shallow update: nil fields leave the lead untouched.
// ID, owner, project and created_at are immutable and have no patch field.
type Patch struct {
	ProjectURL           *string         `json:"project_url,omitempty"`
	ProjectDescription   *string         `json:"project_description,omitempty"`
	Email                *string         `json:"email,omitempty" validate:"omitempty,email"`
	LastActivity         *time.Time      `json:"last_activity,omitempty"`
	Status               *Status         `json:"status,omitempty" validate:"omitempty,oneof=new contacted responded converted"`
	EmailSent            *bool           `json:"email_sent,omitempty"`
	EmailSentAt          *time.Time      `json:"email_sent_at,omitempty"`
	EmailApproved        *bool           `json:"email_approved,omitempty"`
	EmailPendingApproval *bool           `json:"email_pending_approval,omitempty"`
	AIScore              *float64        `json:"ai_score,omitempty" validate:"omitempty,gte=0,lte=1"`
	AIRecommendation     *Recommendation `json:"ai_recommendation,omitempty" validate:"omitempty,oneof=approve reject review"`
	AIAnalysis           *string         `json:"ai_analysis,omitempty"`
}

func (p Patch) Empty() bool {
	return p == Patch{}
}

func (p Patch) Apply(l Lead) Lead {
	if p.ProjectURL != nil {
		l.ProjectURL = *p.ProjectURL
	}
	if p.ProjectDescription != nil {
		l.ProjectDescription = *p.ProjectDescription
	}
	if p.Email != nil {
		l.Email = *p.Email
	}
	if p.LastActivity != nil {
		l.LastActivity = p.LastActivity.UTC()
	}
	if p.Status != nil {
		l.Status = *p.Status
	}
	if p.EmailSent != nil {
		l.EmailSent = *p.EmailSent
	}
	if p.EmailSentAt != nil {
		t := p.EmailSentAt.UTC()
		l.EmailSentAt = &t
	}
	if p.EmailApproved != nil {
		l.EmailApproved = *p.EmailApproved
	}
	if p.EmailPendingApproval != nil {
		l.EmailPendingApproval = *p.EmailPendingApproval
	}
	if p.AIScore != nil {
		v := *p.AIScore
		l.AIScore = &v
	}
	if p.AIRecommendation != nil {
		l.AIRecommendation = *p.AIRecommendation
	}
	if p.AIAnalysis != nil {
		l.AIAnalysis = *p.AIAnalysis
	}
	return l
}

// Ptr is a small helper for building patches.
func Ptr[T any](v T) *T { return &v }
