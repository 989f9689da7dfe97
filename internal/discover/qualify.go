package discover

import (
	"strings"
	"time"

	"leadhunt-engine/internal/config"
)

// Qualifier decides whether a repository owner is worth a lead.
type Qualifier interface {
	Qualify(r Repo, p Profile) (keep bool, reason string)
}

type QualifierFunc func(r Repo, p Profile) (bool, string)

func (f QualifierFunc) Qualify(r Repo, p Profile) (bool, string) { return f(r, p) }

// AcceptAll keeps every owner.
var AcceptAll Qualifier = QualifierFunc(func(Repo, Profile) (bool, string) { return true, "" })

// RuleQualifier applies the discovery section of the config.
type RuleQualifier struct {
	Rules config.DiscoveryConfig
}

func (q RuleQualifier) Qualify(r Repo, p Profile) (keep bool, reason string) {
	if q.Rules.SkipOrganizations && (strings.EqualFold(p.Type, "Organization") || strings.EqualFold(r.OwnerType, "Organization")) {
		return false, "organization"
	}
	if p.Followers < q.Rules.MinFollowers {
		return false, "followers"
	}
	if q.Rules.RequireBio && strings.TrimSpace(p.Bio) == "" {
		return false, "no_bio"
	}
	if !q.matchesTopics(r) {
		return false, "no_topic_match"
	}
	if !q.matchesKeywords(r, p) {
		return false, "no_keyword_match"
	}
	return true, ""
}

func (q RuleQualifier) matchesTopics(r Repo) bool {
	if len(q.Rules.TopicsAny) == 0 {
		return true
	}
	for _, want := range q.Rules.TopicsAny {
		for _, t := range r.Topics {
			if strings.EqualFold(strings.TrimSpace(want), t) {
				return true
			}
		}
	}
	return false
}

func (q RuleQualifier) matchesKeywords(r Repo, p Profile) bool {
	if len(q.Rules.KeywordsAny) == 0 {
		return true
	}
	text := strings.ToLower(r.Name + " " + r.Description + " " + strings.Join(r.Topics, " ") + " " + p.Bio)
	for _, needle := range q.Rules.KeywordsAny {
		n := strings.ToLower(strings.TrimSpace(needle))
		if n != "" && strings.Contains(text, n) {
			return true
		}
	}
	return false
}

// Inactive reports whether r was last pushed more than maxDays ago.
// maxDays == 0 disables the check.
func Inactive(r Repo, maxDays int, now time.Time) bool {
	if maxDays <= 0 || r.PushedAt.IsZero() {
		return false
	}
	return now.Sub(r.PushedAt) > time.Duration(maxDays)*24*time.Hour
}
