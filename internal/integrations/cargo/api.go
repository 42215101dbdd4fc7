package cargo

import (
	"context"
	"encoding/json"
	"net/url"

	"github.com/BearBump/ClaimBox/internal/models"
	"github.com/pkg/errors"
)

type Doer interface {
	Do(ctx context.Context, call Call) (Result, error)
}

// CancelState selects the cancellation policy.
type CancelState string

const (
	CancelFree CancelState = "free"
	CancelPaid CancelState = "paid"
)

// API wraps the endpoints the orchestrators need. It is not a general SDK.
type API struct {
	d Doer
}

func NewAPI(d Doer) *API {
	return &API{d: d}
}

type SearchRequest struct {
	Limit           int    `json:"limit,omitempty"`
	Offset          *int   `json:"offset,omitempty"`
	Status          string `json:"status,omitempty"`
	Cursor          string `json:"cursor,omitempty"`
	ExternalOrderID string `json:"external_order_id,omitempty"`
}

// FirstPage builds the request of the first search page.
func FirstPage(limit int) SearchRequest {
	zero := 0
	return SearchRequest{Limit: limit, Offset: &zero}
}

// SearchPage is one page of claims/search. HasClaims is false when the response
// has no claims field at all.
type SearchPage struct {
	Claims    []models.Claim
	HasClaims bool
	Cursor    string
}

type searchPageJSON struct {
	Claims *[]models.Claim `json:"claims"`
	Cursor string          `json:"cursor"`
}

func (a *API) SearchClaims(ctx context.Context, req SearchRequest) (SearchPage, error) {
	res, err := a.d.Do(ctx, Call{Endpoint: "claims/search", Payload: req})
	if err != nil {
		return SearchPage{}, err
	}
	if res.IsRaw() || !res.Has("claims") {
		return SearchPage{}, nil
	}
	var pj searchPageJSON
	if err := res.Decode(&pj); err != nil {
		return SearchPage{}, errors.Wrap(err, "decode search page")
	}
	page := SearchPage{Cursor: pj.Cursor}
	if pj.Claims != nil {
		page.HasClaims = true
		page.Claims = *pj.Claims
	}
	return page, nil
}

func (a *API) ClaimInfo(ctx context.Context, claimID string) (Result, error) {
	return a.d.Do(ctx, Call{
		Endpoint: "claims/info",
		Query:    url.Values{"claim_id": {claimID}},
		ClaimID:  claimID,
	})
}

type DeliveryMethods struct {
	SameDayDelivery *struct {
		AvailableIntervals []models.Interval `json:"available_intervals"`
	} `json:"same_day_delivery"`
}

// FirstInterval returns the earliest same-day interval offered.
func (m DeliveryMethods) FirstInterval() (models.Interval, bool) {
	if m.SameDayDelivery == nil || len(m.SameDayDelivery.AvailableIntervals) == 0 {
		return models.Interval{}, false
	}
	return m.SameDayDelivery.AvailableIntervals[0], true
}

func (a *API) DeliveryMethods(ctx context.Context, startPoint []float64) (DeliveryMethods, error) {
	res, err := a.d.Do(ctx, Call{
		Endpoint: "delivery-methods",
		Payload:  map[string]any{"start_point": startPoint},
	})
	if err != nil {
		return DeliveryMethods{}, err
	}
	if apiErr, ok := res.APIError(); ok {
		return DeliveryMethods{}, apiErr
	}
	var out DeliveryMethods
	if err := res.Decode(&out); err != nil {
		return DeliveryMethods{}, errors.Wrap(err, "decode delivery methods")
	}
	return out, nil
}

// CreateClaim submits req under its idempotency key. correlationID is copied
// into the result, usually the token the claim was fetched for.
func (a *API) CreateClaim(ctx context.Context, req models.ReorderRequest, correlationID string) (Result, error) {
	body, err := json.Marshal(req.Claim)
	if err != nil {
		return Result{ClaimID: correlationID}, errors.Wrap(err, "encode claim")
	}
	return a.d.Do(ctx, Call{
		Endpoint: "claims/create",
		Query:    url.Values{"request_id": {req.RequestID}},
		Payload:  json.RawMessage(body),
		ClaimID:  correlationID,
	})
}

func (a *API) AcceptClaim(ctx context.Context, claimID string, version int) (Result, error) {
	return a.d.Do(ctx, Call{
		Endpoint: "claims/accept",
		Query:    url.Values{"claim_id": {claimID}},
		Payload:  map[string]int{"version": version},
		ClaimID:  claimID,
	})
}

type cancelPayload struct {
	CancelState CancelState `json:"cancel_state"`
	Version     int         `json:"version"`
}

func (a *API) CancelClaim(ctx context.Context, claimID string, state CancelState, version int) (Result, error) {
	return a.d.Do(ctx, Call{
		Endpoint: "claims/cancel",
		Query:    url.Values{"claim_id": {claimID}},
		Payload:  cancelPayload{CancelState: state, Version: version},
		ClaimID:  claimID,
	})
}
