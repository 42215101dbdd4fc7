package reorder

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/BearBump/ClaimBox/internal/integrations/cargo"
	"github.com/BearBump/ClaimBox/internal/models"
	"github.com/BearBump/ClaimBox/internal/services/outcome"
	"github.com/BearBump/ClaimBox/internal/services/pool"
	"github.com/BearBump/ClaimBox/internal/services/resolver"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const (
	DefaultAcceptDelay          = 3 * time.Second
	DefaultAcceptDelayThreshold = 50
	acceptVersion               = 1
)

var ErrNoTokens = errors.New("no claims to reorder")

type API interface {
	SearchClaims(ctx context.Context, req cargo.SearchRequest) (cargo.SearchPage, error)
	ClaimInfo(ctx context.Context, claimID string) (cargo.Result, error)
	DeliveryMethods(ctx context.Context, startPoint []float64) (cargo.DeliveryMethods, error)
	CreateClaim(ctx context.Context, req models.ReorderRequest, correlationID string) (cargo.Result, error)
	AcceptClaim(ctx context.Context, claimID string, version int) (cargo.Result, error)
}

// Created links a new claim to the claim it replaces.
type Created struct {
	Token    string `json:"token"`
	SourceID string `json:"source_id"`
	ClaimID  string `json:"claim_id"`
}

type Batch struct {
	RunID    string            `json:"run_id"`
	Created  []Created         `json:"created"`
	Outcomes []outcome.Outcome `json:"outcomes"`
}

// Orchestrator re-creates claims as copies scheduled into the nearest
// same-day interval and accepts the copies.
type Orchestrator struct {
	api      API
	reporter outcome.Reporter
	pool     *pool.Pool

	sameDay              bool
	acceptDelay          time.Duration
	acceptDelayThreshold int

	sleep  func(ctx context.Context, d time.Duration) error
	newKey func() string
}

func New(api API, reporter outcome.Reporter) *Orchestrator {
	if reporter == nil {
		reporter = outcome.LogReporter{}
	}
	return &Orchestrator{
		api:                  api,
		reporter:             reporter,
		pool:                 pool.New(10),
		sameDay:              true,
		acceptDelay:          DefaultAcceptDelay,
		acceptDelayThreshold: DefaultAcceptDelayThreshold,
		sleep:                sleepCtx,
		newKey:               NewIdempotencyKey,
	}
}

func (o *Orchestrator) WithConcurrency(n int) *Orchestrator {
	o.pool.WithConcurrency(n)
	return o
}

func (o *Orchestrator) WithSameDay(enabled bool) *Orchestrator {
	o.sameDay = enabled
	return o
}

// WithAcceptDelay sets the pause before accepting a small batch. A negative
// delay disables it.
func (o *Orchestrator) WithAcceptDelay(d time.Duration, threshold int) *Orchestrator {
	if d != 0 {
		o.acceptDelay = d
	}
	if threshold > 0 {
		o.acceptDelayThreshold = threshold
	}
	return o
}

func (o *Orchestrator) Stats() pool.Stats { return o.pool.Stats() }

// NewIdempotencyKey returns 16 random bytes as 32 hex chars.
func NewIdempotencyKey() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// run is the state of one Reorder call.
type run struct {
	id       string
	tokens   []string
	claims   []*models.Claim
	outcomes []outcome.Outcome

	intervalOnce sync.Once
	interval     models.Interval
}

// Reorder fetches every token, re-creates the claims and accepts the copies.
// Per-claim failures are reported as outcomes; the error is only returned for
// an empty input.
func (o *Orchestrator) Reorder(ctx context.Context, tokens []string) (Batch, error) {
	tokens = cleanTokens(tokens)
	if len(tokens) == 0 {
		return Batch{}, ErrNoTokens
	}
	r := &run{id: uuid.NewString(), tokens: tokens}
	slog.Info("reorder started", "run_id", r.id, "claims", len(tokens))

	o.fetchAll(ctx, r)

	created := o.createAll(ctx, r)

	if n := len(created); n > 0 && n < o.acceptDelayThreshold && o.acceptDelay > 0 {
		slog.Info("waiting before accept", "run_id", r.id, "created", n, "delay", o.acceptDelay.String())
		if err := o.sleep(ctx, o.acceptDelay); err != nil {
			slog.Warn("accept delay interrupted", "run_id", r.id, "error", err.Error())
		}
	}

	ids := make([]string, len(created))
	sources := make([]string, len(created))
	for i, c := range created {
		ids[i], sources[i] = c.ClaimID, c.SourceID
	}
	o.acceptAll(ctx, r, ids, sources)

	slog.Info("reorder finished", "run_id", r.id, "created", len(created), "outcomes", len(r.outcomes))
	return Batch{RunID: r.id, Created: created, Outcomes: r.outcomes}, nil
}

// Accept accepts existing claims, the standalone accept action.
func (o *Orchestrator) Accept(ctx context.Context, claimIDs []string) ([]outcome.Outcome, error) {
	claimIDs = cleanTokens(claimIDs)
	if len(claimIDs) == 0 {
		return nil, errors.New("no claims to accept")
	}
	r := &run{id: uuid.NewString(), tokens: claimIDs}
	o.acceptAll(ctx, r, claimIDs, make([]string, len(claimIDs)))
	return r.outcomes, nil
}

func (o *Orchestrator) fetchAll(ctx context.Context, r *run) {
	r.claims = make([]*models.Claim, len(r.tokens))
	slots := make([]*outcome.Outcome, len(r.tokens))
	o.pool.Run(ctx, len(r.tokens), func(ctx context.Context, i int) error {
		c, fail := o.fetch(ctx, r.tokens[i])
		if fail != nil {
			slots[i] = fail
			return fail.Err()
		}
		r.claims[i] = c
		return nil
	}, func(i int) {
		f := outcome.CancelledFailure(outcome.OpFetch, r.tokens[i])
		slots[i] = &f
	})
	o.report(ctx, r, slots)
}

func (o *Orchestrator) fetch(ctx context.Context, token string) (*models.Claim, *outcome.Outcome) {
	fail := func(err error) (*models.Claim, *outcome.Outcome) {
		f := outcome.Failure(outcome.OpFetch, token, outcome.KindResolution, err)
		return nil, &f
	}

	if !resolver.IsCanonical(token) {
		req := cargo.FirstPage(1)
		req.ExternalOrderID = token
		page, err := o.api.SearchClaims(ctx, req)
		if err != nil {
			return fail(errors.Wrap(err, "search claim"))
		}
		if len(page.Claims) != 1 {
			return fail(outcome.ErrResolution)
		}
		c := page.Claims[0]
		return &c, nil
	}

	res, err := o.api.ClaimInfo(ctx, token)
	if err != nil {
		return fail(errors.Wrap(err, "claim info"))
	}
	if apiErr, ok := res.APIError(); ok {
		return fail(apiErr)
	}
	var c models.Claim
	if err := res.Decode(&c); err != nil {
		return fail(err)
	}
	if c.ID == "" {
		return fail(outcome.ErrResolution)
	}
	return &c, nil
}

// discoverInterval picks the first offered interval for the pickup of the
// first fetched claim. It runs at most once per batch.
func (o *Orchestrator) discoverInterval(ctx context.Context, r *run) models.Interval {
	r.intervalOnce.Do(func() {
		if !o.sameDay {
			return
		}
		var first *models.Claim
		token := ""
		for i, c := range r.claims {
			if c != nil {
				first, token = c, r.tokens[i]
				break
			}
		}
		if first == nil {
			return
		}

		iv, err := o.lookupInterval(ctx, *first)
		if err != nil {
			slog.Warn("no same-day interval", "run_id", r.id, "claim_id", first.ID, "error", err.Error())
			f := outcome.Failure(outcome.OpInterval, token, outcome.KindNoAvailableInterval, outcome.ErrNoAvailableInterval)
			f.ClaimID = first.ID
			o.report(ctx, r, []*outcome.Outcome{&f})
			return
		}
		r.interval = iv
		slog.Info("same-day interval", "run_id", r.id, "from", iv.From, "to", iv.To)
	})
	return r.interval
}

func (o *Orchestrator) lookupInterval(ctx context.Context, c models.Claim) (models.Interval, error) {
	coords, ok := c.PickupCoordinates()
	if !ok {
		return models.Interval{}, errors.New("pickup has no coordinates")
	}
	dm, err := o.api.DeliveryMethods(ctx, coords)
	if err != nil {
		return models.Interval{}, errors.Wrap(err, "delivery methods")
	}
	iv, ok := dm.FirstInterval()
	if !ok {
		return models.Interval{}, outcome.ErrNoAvailableInterval
	}
	return iv, nil
}

func (o *Orchestrator) createAll(ctx context.Context, r *run) []Created {
	var idx []int
	for i, c := range r.claims {
		if c != nil {
			idx = append(idx, i)
		}
	}
	if len(idx) == 0 {
		return nil
	}
	interval := o.discoverInterval(ctx, r)

	slots := make([]*outcome.Outcome, len(idx))
	created := make([]*Created, len(idx))
	o.pool.Run(ctx, len(idx), func(ctx context.Context, k int) error {
		i := idx[k]
		res := o.create(ctx, r.tokens[i], *r.claims[i], interval)
		slots[k] = &res
		if !res.OK {
			return res.Err()
		}
		created[k] = &Created{Token: r.tokens[i], SourceID: r.claims[i].ID, ClaimID: res.NewClaimID}
		return nil
	}, func(k int) {
		f := outcome.CancelledFailure(outcome.OpCreate, r.tokens[idx[k]])
		f.ClaimID = r.claims[idx[k]].ID
		slots[k] = &f
	})
	o.report(ctx, r, slots)

	var out []Created
	for _, c := range created {
		if c != nil {
			out = append(out, *c)
		}
	}
	return out
}

func (o *Orchestrator) create(ctx context.Context, token string, c models.Claim, interval models.Interval) outcome.Outcome {
	req := c.ToReorderRequest(o.newKey(), interval, o.sameDay)
	res, err := o.api.CreateClaim(ctx, req, token)
	if err != nil {
		return outcome.TransportFailure(outcome.OpCreate, token, c.ID, err)
	}
	if apiErr, ok := res.APIError(); ok {
		return outcome.RemoteFailure(outcome.OpCreate, token, c.ID, apiErr)
	}
	id, ok := res.String("id")
	if !ok || id == "" {
		f := outcome.Failure(outcome.OpCreate, token, outcome.KindRemoteAPI, errors.Errorf("unexpected create response: %s", string(res.Raw)))
		f.ClaimID = c.ID
		return f
	}
	status, _ := res.Status()
	return outcome.Outcome{
		Op:         outcome.OpCreate,
		Token:      token,
		ClaimID:    c.ID,
		NewClaimID: id,
		Source:     c.ID,
		Status:     string(status),
		OK:         true,
		At:         time.Now().UTC(),
	}
}

func (o *Orchestrator) acceptAll(ctx context.Context, r *run, ids, sources []string) {
	if len(ids) == 0 {
		return
	}
	slots := make([]*outcome.Outcome, len(ids))
	o.pool.Run(ctx, len(ids), func(ctx context.Context, i int) error {
		res := o.accept(ctx, ids[i], sources[i])
		slots[i] = &res
		return res.Err()
	}, func(i int) {
		f := outcome.CancelledFailure(outcome.OpAccept, ids[i])
		f.Source = sources[i]
		slots[i] = &f
	})
	o.report(ctx, r, slots)
}

func (o *Orchestrator) accept(ctx context.Context, claimID, source string) outcome.Outcome {
	fail := func(f outcome.Outcome) outcome.Outcome {
		f.Source = source
		return f
	}
	res, err := o.api.AcceptClaim(ctx, claimID, acceptVersion)
	if err != nil {
		return fail(outcome.TransportFailure(outcome.OpAccept, claimID, claimID, err))
	}
	if apiErr, ok := res.APIError(); ok {
		return fail(outcome.RemoteFailure(outcome.OpAccept, claimID, claimID, apiErr))
	}
	status, ok := res.Status()
	if !ok {
		return fail(outcome.Failure(outcome.OpAccept, claimID, outcome.KindRemoteAPI, errors.Errorf("unexpected accept response: %s", string(res.Raw))))
	}
	return outcome.Outcome{
		Op:      outcome.OpAccept,
		Token:   claimID,
		ClaimID: claimID,
		Source:  source,
		Status:  string(status),
		OK:      true,
		At:      time.Now().UTC(),
	}
}

// report stamps and forwards outcomes in slot order.
func (o *Orchestrator) report(ctx context.Context, r *run, slots []*outcome.Outcome) {
	for _, s := range slots {
		if s == nil {
			continue
		}
		s.RunID = r.id
		if s.At.IsZero() {
			s.At = time.Now().UTC()
		}
		r.outcomes = append(r.outcomes, *s)
		if err := o.reporter.Report(context.WithoutCancel(ctx), *s); err != nil {
			slog.Error("report outcome", "run_id", r.id, "token", s.Token, "error", err.Error())
		}
	}
}

func cleanTokens(in []string) []string {
	out := make([]string, 0, len(in))
	for _, t := range in {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
