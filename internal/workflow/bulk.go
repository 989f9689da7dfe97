package workflow

import (
	"context"
	"fmt"

	"go.uber.org/multierr"

	"leadhunt-engine/internal/domain"
)

type BulkFailure struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// BulkResult is best-effort: one failing id never stops the rest.
type BulkResult struct {
	Action    string        `json:"action"`
	Succeeded []string      `json:"succeeded"`
	Failed    []BulkFailure `json:"failed"`

	errs error
}

// Message is the operator-facing summary, e.g. "approved 3 of 4 leads".
func (r BulkResult) Message() string {
	total := len(r.Succeeded) + len(r.Failed)
	noun := "leads"
	if total == 1 {
		noun = "lead"
	}
	msg := fmt.Sprintf("%s %d of %d %s", r.Action, len(r.Succeeded), total, noun)
	if len(r.Failed) > 0 {
		msg += fmt.Sprintf(" (%d failed)", len(r.Failed))
	}
	return msg
}

// Err combines every per-id failure, nil when all succeeded.
func (r BulkResult) Err() error { return r.errs }

func (w *Service) BulkApprove(ctx context.Context, ids []string) BulkResult {
	return w.bulk(ctx, "approved", ids, w.Approve)
}

func (w *Service) BulkReject(ctx context.Context, ids []string) BulkResult {
	return w.bulk(ctx, "rejected", ids, w.Reject)
}

func (w *Service) BulkMarkPending(ctx context.Context, ids []string) BulkResult {
	return w.bulk(ctx, "queued", ids, w.MarkPendingApproval)
}

func (w *Service) bulk(ctx context.Context, action string, ids []string, op func(context.Context, string) (domain.Lead, error)) BulkResult {
	res := BulkResult{Action: action, Succeeded: []string{}, Failed: []BulkFailure{}}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			res.Failed = append(res.Failed, BulkFailure{ID: id, Reason: err.Error()})
			res.errs = multierr.Append(res.errs, fmt.Errorf("%s: %w", id, err))
			continue
		}
		if _, err := op(ctx, id); err != nil {
			res.Failed = append(res.Failed, BulkFailure{ID: id, Reason: err.Error()})
			res.errs = multierr.Append(res.errs, fmt.Errorf("%s: %w", id, err))
			continue
		}
		res.Succeeded = append(res.Succeeded, id)
	}
	return res
}
