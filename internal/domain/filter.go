package domain

type Predicate func(Lead) bool

func All(Lead) bool { return true }

func HasEmail(l Lead) bool { return l.HasEmail() }

func NewAndUnsent(l Lead) bool {
	return l.Status == StatusNew && !l.EmailSent
}

func AwaitingApproval(l Lead) bool {
	return l.EmailPendingApproval && !l.EmailApproved
}

func MissingScore(l Lead) bool {
	return l.AIScore == nil
}

// ReadyForOutreach: has email, not yet sent, approved and still new.
func ReadyForOutreach(l Lead) bool {
	return l.HasEmail() && !l.EmailSent && l.EmailApproved && l.Status == StatusNew
}

func ByStatus(s Status) Predicate {
	return func(l Lead) bool { return l.Status == s }
}

func And(preds ...Predicate) Predicate {
	return func(l Lead) bool {
		for _, p := range preds {
			if !p(l) {
				return false
			}
		}
		return true
	}
}

func Select(leads []Lead, pred Predicate) []Lead {
	out := make([]Lead, 0, len(leads))
	for _, l := range leads {
		if pred(l) {
			out = append(out, l)
		}
	}
	return out
}

// Views are the named filters exposed to the dashboard.
var Views = map[string]Predicate{
	"all":        All,
	"new_unsent": NewAndUnsent,
	"pending":    AwaitingApproval,
	"unscored":   MissingScore,
	"ready":      ReadyForOutreach,
	"with_email": HasEmail,
}
