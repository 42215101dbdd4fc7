package models

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// CanonicalIDLen is the length of an internal claim identifier.
const CanonicalIDLen = 32

// IsCanonicalID reports whether token looks like an internal claim id
// rather than an external order number.
func IsCanonicalID(token string) bool {
	return len(token) == CanonicalIDLen
}

// Interval is a same-day delivery window as returned by the platform.
type Interval struct {
	From string `json:"from"`
	To   string `json:"to"`
}

func (i Interval) IsZero() bool { return i.From == "" && i.To == "" }

type SameDayData struct {
	DeliveryInterval Interval `json:"delivery_interval"`
}

// Address keeps the fields the core reads; the rest of the remote payload
// is carried in Extra and written back unchanged.
type Address struct {
	Fullname    string
	Coordinates []float64

	Extra map[string]json.RawMessage
}

type RoutePoint struct {
	ID              int64
	PointID         *int64
	ExternalOrderID *string
	Address         Address

	Extra map[string]json.RawMessage
}

// Claim is a transient copy of a remote claim body. Every field the core does
// not interpret survives a decode/encode round trip through Extra, so a claim
// fetched from claims/info can be submitted to claims/create as is.
type Claim struct {
	ID                 string
	Status             ClaimStatus
	Version            *int
	RoutePoints        []RoutePoint
	SameDayData        *SameDayData
	ClientRequirements json.RawMessage
	CreatedTS          *string
	UpdatedTS          *string
	RouteID            *string

	Extra map[string]json.RawMessage
}

type addressJSON struct {
	Fullname    string    `json:"fullname,omitempty"`
	Coordinates []float64 `json:"coordinates,omitempty"`
}

func (a *Address) UnmarshalJSON(data []byte) error {
	var aux addressJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return errors.Wrap(err, "decode address")
	}
	extra, err := splitFields(data, "fullname", "coordinates")
	if err != nil {
		return err
	}
	*a = Address{Fullname: aux.Fullname, Coordinates: aux.Coordinates, Extra: extra}
	return nil
}

func (a Address) MarshalJSON() ([]byte, error) {
	return mergeFields(a.Extra, addressJSON{Fullname: a.Fullname, Coordinates: a.Coordinates})
}

type routePointJSON struct {
	ID              int64   `json:"id,omitempty"`
	PointID         *int64  `json:"point_id,omitempty"`
	ExternalOrderID *string `json:"external_order_id,omitempty"`
	Address         Address `json:"address"`
}

func (p *RoutePoint) UnmarshalJSON(data []byte) error {
	var aux routePointJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return errors.Wrap(err, "decode route point")
	}
	extra, err := splitFields(data, "id", "point_id", "external_order_id", "address")
	if err != nil {
		return err
	}
	*p = RoutePoint{
		ID:              aux.ID,
		PointID:         aux.PointID,
		ExternalOrderID: aux.ExternalOrderID,
		Address:         aux.Address,
		Extra:           extra,
	}
	return nil
}

func (p RoutePoint) MarshalJSON() ([]byte, error) {
	return mergeFields(p.Extra, routePointJSON{
		ID:              p.ID,
		PointID:         p.PointID,
		ExternalOrderID: p.ExternalOrderID,
		Address:         p.Address,
	})
}

type claimJSON struct {
	ID                 string          `json:"id,omitempty"`
	Status             ClaimStatus     `json:"status,omitempty"`
	Version            *int            `json:"version,omitempty"`
	RoutePoints        []RoutePoint    `json:"route_points,omitempty"`
	SameDayData        *SameDayData    `json:"same_day_data,omitempty"`
	ClientRequirements json.RawMessage `json:"client_requirements,omitempty"`
	CreatedTS          *string         `json:"created_ts,omitempty"`
	UpdatedTS          *string         `json:"updated_ts,omitempty"`
	RouteID            *string         `json:"route_id,omitempty"`
}

var claimKnownFields = []string{
	"id", "status", "version", "route_points", "same_day_data",
	"client_requirements", "created_ts", "updated_ts", "route_id",
}

func (c *Claim) UnmarshalJSON(data []byte) error {
	var aux claimJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return errors.Wrap(err, "decode claim")
	}
	extra, err := splitFields(data, claimKnownFields...)
	if err != nil {
		return err
	}
	*c = Claim{
		ID:                 aux.ID,
		Status:             aux.Status,
		Version:            aux.Version,
		RoutePoints:        aux.RoutePoints,
		SameDayData:        aux.SameDayData,
		ClientRequirements: aux.ClientRequirements,
		CreatedTS:          aux.CreatedTS,
		UpdatedTS:          aux.UpdatedTS,
		RouteID:            aux.RouteID,
		Extra:              extra,
	}
	return nil
}

func (c Claim) MarshalJSON() ([]byte, error) {
	return mergeFields(c.Extra, claimJSON{
		ID:                 c.ID,
		Status:             c.Status,
		Version:            c.Version,
		RoutePoints:        c.RoutePoints,
		SameDayData:        c.SameDayData,
		ClientRequirements: c.ClientRequirements,
		CreatedTS:          c.CreatedTS,
		UpdatedTS:          c.UpdatedTS,
		RouteID:            c.RouteID,
	})
}

// PickupPoint returns the first route point.
func (c Claim) PickupPoint() (RoutePoint, bool) {
	if len(c.RoutePoints) == 0 {
		return RoutePoint{}, false
	}
	return c.RoutePoints[0], true
}

func (c Claim) PickupCoordinates() ([]float64, bool) {
	p, ok := c.PickupPoint()
	if !ok || len(p.Address.Coordinates) != 2 {
		return nil, false
	}
	return p.Address.Coordinates, true
}

func (c Claim) PickupExternalOrderID() (string, bool) {
	p, ok := c.PickupPoint()
	if !ok || p.ExternalOrderID == nil {
		return "", false
	}
	return *p.ExternalOrderID, true
}

// DeliveryIntervalFrom returns the start of the same-day interval, if any.
func (c Claim) DeliveryIntervalFrom() (string, bool) {
	if c.SameDayData == nil {
		return "", false
	}
	return c.SameDayData.DeliveryInterval.From, true
}

// CreatedDay returns the calendar day of created_ts as written by the platform.
func (c Claim) CreatedDay() (time.Time, bool) {
	if c.CreatedTS == nil {
		return time.Time{}, false
	}
	day, _, _ := strings.Cut(*c.CreatedTS, "T")
	t, err := time.Parse(time.DateOnly, day)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// UpdatedAt parses updated_ts. Timestamps without an offset are taken as UTC.
func (c Claim) UpdatedAt() (time.Time, bool) {
	if c.UpdatedTS == nil {
		return time.Time{}, false
	}
	return parseTS(*c.UpdatedTS)
}

func parseTS(s string) (time.Time, bool) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), true
	}
	if len(s) >= len("2006-01-02T15:04:05") {
		if t, err := time.Parse("2006-01-02T15:04:05", s[:19]); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// WithSameDay returns a copy of the claim scheduled into interval.
func (c Claim) WithSameDay(interval Interval) Claim {
	c.SameDayData = &SameDayData{DeliveryInterval: interval}
	return c
}

// WithoutSameDay drops the interval of the source claim, it is in the past
// for a copy.
func (c Claim) WithoutSameDay() Claim {
	c.SameDayData = nil
	return c
}

// WithoutClientRequirements drops requirements that the create endpoint rejects
// on a re-created claim.
func (c Claim) WithoutClientRequirements() Claim {
	c.ClientRequirements = nil
	return c
}

// WithPointReferences fills point_id of every route point from its id.
func (c Claim) WithPointReferences() Claim {
	points := make([]RoutePoint, len(c.RoutePoints))
	for i, p := range c.RoutePoints {
		id := p.ID
		p.PointID = &id
		points[i] = p
	}
	c.RoutePoints = points
	return c
}

// ToReorderRequest turns a fetched claim into a create payload. With sameDay
// the copy is scheduled into interval, or unscheduled when interval is zero;
// without it same-day data is sent as fetched.
func (c Claim) ToReorderRequest(requestID string, interval Interval, sameDay bool) ReorderRequest {
	body := c.WithoutClientRequirements().WithPointReferences()
	if sameDay {
		if interval.IsZero() {
			body = body.WithoutSameDay()
		} else {
			body = body.WithSameDay(interval)
		}
	}
	return ReorderRequest{RequestID: requestID, Claim: body}
}

// ReorderRequest is a create payload annotated with its idempotency key.
type ReorderRequest struct {
	RequestID string
	Claim     Claim
}

func splitFields(data []byte, known ...string) (map[string]json.RawMessage, error) {
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, errors.Wrap(err, "decode object")
	}
	for _, k := range known {
		delete(all, k)
	}
	if len(all) == 0 {
		return nil, nil
	}
	return all, nil
}

func mergeFields(extra map[string]json.RawMessage, known any) ([]byte, error) {
	b, err := json.Marshal(known)
	if err != nil {
		return nil, err
	}
	if len(extra) == 0 {
		return b, nil
	}
	var out map[string]json.RawMessage
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	for k, v := range extra {
		if _, ok := out[k]; !ok {
			out[k] = v
		}
	}
	return json.Marshal(out)
}
