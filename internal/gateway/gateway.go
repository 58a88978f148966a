package gateway

import (
	"context"
	"errors"
	"time"

	"fundpilot/internal/ledger"
	"fundpilot/internal/observ"
)

// Outcome is the typed result of applying a mutation. Conflicts that outlive
// the retry budget surface here, not as an error escaping the loop.
type Outcome int

const (
	OutcomeApplied Outcome = iota
	OutcomeNoOp
	OutcomeConflictExhausted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeApplied:
		return "applied"
	case OutcomeNoOp:
		return "no_op"
	case OutcomeConflictExhausted:
		return "conflict_exhausted"
	default:
		return "unknown"
	}
}

// RetryPolicy bounds the rebase-and-retry loop. Backoff doubles from Base
// per attempt and is capped at Max.
type RetryPolicy struct {
	MaxRetries  int
	BackoffBase time.Duration
	BackoffMax  time.Duration
}

// DefaultRetryPolicy matches the cadence of short scheduled jobs: a handful
// of quick retries, giving a racing writer room to finish.
var DefaultRetryPolicy = RetryPolicy{
	MaxRetries:  5,
	BackoffBase: 100 * time.Millisecond,
	BackoffMax:  2 * time.Second,
}

// Gateway serializes logical mutations over a conditionally-written store.
type Gateway struct {
	store  ledger.Store
	policy RetryPolicy

	// test seams
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func New(store ledger.Store, policy RetryPolicy) *Gateway {
	if policy.MaxRetries <= 0 {
		policy = DefaultRetryPolicy
	}
	return &Gateway{
		store:  store,
		policy: policy,
		now:    time.Now,
		sleep:  sleepCtx,
	}
}

// Apply runs one mutation to completion: read, idempotency check, apply in
// memory, conditional write; on version conflict re-read and re-apply the
// same logical change against the new base, up to the retry budget.
func (g *Gateway) Apply(ctx context.Context, op Operation) (Outcome, error) {
	for attempt := 0; attempt <= g.policy.MaxRetries; attempt++ {
		snap, version, err := g.store.Read(ctx)
		if err != nil {
			return OutcomeNoOp, err
		}

		work := snap.Clone()
		changed, err := op.Apply(&work, g.now().UTC())
		if err != nil {
			return OutcomeNoOp, err
		}
		if !changed {
			observ.Log("gateway_noop", map[string]any{"op": op.Describe(), "key": op.Key()})
			return OutcomeNoOp, nil
		}

		_, err = g.store.ConditionalWrite(ctx, work, version)
		if err == nil {
			observ.Log("gateway_applied", map[string]any{
				"op": op.Describe(), "key": op.Key(), "attempt": attempt,
			})
			return OutcomeApplied, nil
		}
		if !errors.Is(err, ledger.ErrVersionConflict) {
			return OutcomeNoOp, err
		}

		observ.IncCounter("gateway_conflict_retries_total", map[string]string{"op": op.Describe()})
		if attempt < g.policy.MaxRetries {
			if err := g.sleep(ctx, g.backoff(attempt)); err != nil {
				return OutcomeNoOp, err
			}
		}
	}

	observ.Log("gateway_conflict_exhausted", map[string]any{
		"op": op.Describe(), "key": op.Key(), "retries": g.policy.MaxRetries,
	})
	return OutcomeConflictExhausted, nil
}

func (g *Gateway) backoff(attempt int) time.Duration {
	d := g.policy.BackoffBase << uint(attempt)
	if d > g.policy.BackoffMax || d <= 0 {
		d = g.policy.BackoffMax
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
