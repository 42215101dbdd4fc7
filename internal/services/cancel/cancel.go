package cancel

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/BearBump/ClaimBox/internal/integrations/cargo"
	"github.com/BearBump/ClaimBox/internal/services/outcome"
	"github.com/BearBump/ClaimBox/internal/services/pool"
	"github.com/BearBump/ClaimBox/internal/services/resolver"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const (
	cancelVersion = 1
	// attemptsPerPolicy counts the first call and one retry after a dropped connection.
	attemptsPerPolicy = 2
)

// Policies are tried in this order until one of them yields a status.
var Policies = []cargo.CancelState{cargo.CancelFree, cargo.CancelPaid}

var ErrNoTokens = errors.New("no claims to cancel")

type API interface {
	CancelClaim(ctx context.Context, claimID string, state cargo.CancelState, version int) (cargo.Result, error)
}

type Resolver interface {
	Resolve(ctx context.Context, token string) (string, bool)
}

type Orchestrator struct {
	api      API
	resolver Resolver
	reporter outcome.Reporter
	pool     *pool.Pool
}

func New(api API, res Resolver, reporter outcome.Reporter) *Orchestrator {
	if reporter == nil {
		reporter = outcome.LogReporter{}
	}
	return &Orchestrator{api: api, resolver: res, reporter: reporter, pool: pool.New(10)}
}

func (o *Orchestrator) WithConcurrency(n int) *Orchestrator {
	o.pool.WithConcurrency(n)
	return o
}

func (o *Orchestrator) Stats() pool.Stats { return o.pool.Stats() }

// Cancel cancels every token, preferring the free policy. Outcomes follow
// input order; the error is only returned for an empty input.
func (o *Orchestrator) Cancel(ctx context.Context, tokens []string) ([]outcome.Outcome, error) {
	var clean []string
	for _, t := range tokens {
		if t = strings.TrimSpace(t); t != "" {
			clean = append(clean, t)
		}
	}
	if len(clean) == 0 {
		return nil, ErrNoTokens
	}
	runID := uuid.NewString()

	slots := make([]outcome.Outcome, len(clean))
	o.pool.Run(ctx, len(clean), func(ctx context.Context, i int) error {
		slots[i] = o.cancelOne(ctx, clean[i])
		return slots[i].Err()
	}, func(i int) {
		slots[i] = outcome.CancelledFailure(outcome.OpCancel, clean[i])
	})

	for i := range slots {
		slots[i].RunID = runID
		if err := o.reporter.Report(context.WithoutCancel(ctx), slots[i]); err != nil {
			slog.Error("report outcome", "run_id", runID, "token", slots[i].Token, "error", err.Error())
		}
	}
	return slots, nil
}

func (o *Orchestrator) resolve(ctx context.Context, token string) string {
	if resolver.IsCanonical(token) || o.resolver == nil {
		return token
	}
	if id, ok := o.resolver.Resolve(ctx, token); ok {
		return id
	}
	// Не нашли заявку по номеру заказа: пробуем отменить по исходной строке.
	slog.Debug("cancel: token not resolved, using as is", "token", token)
	return token
}

func (o *Orchestrator) cancelOne(ctx context.Context, token string) outcome.Outcome {
	claimID := o.resolve(ctx, token)

	var (
		attempts int
		lastErr  error
		lastRes  *cargo.Result
	)
	for _, state := range Policies {
		for try := 1; try <= attemptsPerPolicy; try++ {
			if err := ctx.Err(); err != nil {
				out := outcome.CancelledFailure(outcome.OpCancel, token)
				out.ClaimID, out.Attempts = claimID, attempts
				return out
			}
			attempts++
			res, err := o.api.CancelClaim(ctx, claimID, state, cancelVersion)
			if err != nil {
				lastErr, lastRes = err, nil
				if cargo.IsTransient(err) && try < attemptsPerPolicy {
					slog.Warn("cancel: connection dropped, retrying", "claim_id", claimID, "policy", string(state))
					continue
				}
				break
			}

			lastErr, lastRes = nil, &res
			if _, failed := res.APIError(); failed {
				slog.Debug("cancel: policy rejected", "claim_id", claimID, "policy", string(state), "response", string(res.Raw))
				break
			}
			status, ok := res.Status()
			if !ok {
				break
			}
			if res.ClaimID == "" {
				out := outcome.Failure(outcome.OpCancel, token, outcome.KindMissingCorrelation, outcome.ErrMissingCorrelation)
				out.ClaimID, out.Status, out.Attempts = "", string(status), attempts
				return out
			}
			return outcome.Outcome{
				Op:       outcome.OpCancel,
				Token:    token,
				ClaimID:  res.ClaimID,
				Status:   string(status),
				OK:       true,
				Attempts: attempts,
				At:       time.Now().UTC(),
			}
		}
	}

	var out outcome.Outcome
	switch {
	case lastErr != nil:
		out = outcome.TransportFailure(outcome.OpCancel, token, claimID, lastErr)
	case lastRes != nil:
		if apiErr, ok := lastRes.APIError(); ok {
			out = outcome.RemoteFailure(outcome.OpCancel, token, claimID, apiErr)
		} else {
			out = outcome.Failure(outcome.OpCancel, token, outcome.KindRemoteAPI, errors.Errorf("unexpected cancel response: %s", string(lastRes.Raw)))
			out.ClaimID = claimID
		}
	}
	out.Attempts = attempts
	return out
}
