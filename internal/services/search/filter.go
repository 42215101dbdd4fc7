package search

import (
	"time"

	"github.com/BearBump/ClaimBox/internal/models"
)

// Filter is a set of claim predicates combined with AND. Zero fields do not
// constrain the result.
type Filter struct {
	// IntervalFrom matches the start of the same-day delivery interval.
	IntervalFrom string
	// Pickup matches the full address of the first route point.
	Pickup string
	// CreatedFrom keeps claims created on this day or later.
	CreatedFrom *time.Time
	// Date keeps claims updated in the 24h window starting at UTC midnight
	// of this day shifted by TZOffsetHours.
	Date          *time.Time
	TZOffsetHours int

	Statuses []models.ClaimStatus
}

// Predicate reports whether a claim passes one filter condition.
type Predicate func(c models.Claim) bool

// Predicates returns one predicate per configured field.
func (f Filter) Predicates() []Predicate {
	var ps []Predicate
	if f.IntervalFrom != "" {
		want := f.IntervalFrom
		ps = append(ps, func(c models.Claim) bool {
			from, ok := c.DeliveryIntervalFrom()
			return ok && from == want
		})
	}
	if f.Pickup != "" {
		want := f.Pickup
		ps = append(ps, func(c models.Claim) bool {
			p, ok := c.PickupPoint()
			return ok && p.Address.Fullname == want
		})
	}
	if f.CreatedFrom != nil {
		y, m, d := f.CreatedFrom.Date()
		bound := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
		ps = append(ps, func(c models.Claim) bool {
			day, ok := c.CreatedDay()
			return ok && !day.Before(bound)
		})
	}
	if f.Date != nil {
		start, end := f.UpdateWindow()
		ps = append(ps, func(c models.Claim) bool {
			upd, ok := c.UpdatedAt()
			return ok && !upd.Before(start) && upd.Before(end)
		})
	}
	if len(f.Statuses) > 0 {
		set := make(map[models.ClaimStatus]struct{}, len(f.Statuses))
		for _, s := range f.Statuses {
			set[s] = struct{}{}
		}
		ps = append(ps, func(c models.Claim) bool {
			_, ok := set[c.Status]
			return ok
		})
	}
	return ps
}

// UpdateWindow returns [start, start+24h) of the update-date filter, where
// start is UTC midnight of Date plus TZOffsetHours.
func (f Filter) UpdateWindow() (time.Time, time.Time) {
	if f.Date == nil {
		return time.Time{}, time.Time{}
	}
	y, m, d := f.Date.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Add(time.Duration(f.TZOffsetHours) * time.Hour)
	return start, start.Add(24 * time.Hour)
}

// Match applies every predicate of f to c.
func (f Filter) Match(c models.Claim) bool {
	return matchAll(f.Predicates(), c)
}

func matchAll(ps []Predicate, c models.Claim) bool {
	for _, p := range ps {
		if !p(c) {
			return false
		}
	}
	return true
}

// DefaultReportStatuses are the statuses a daily report looks at.
var DefaultReportStatuses = []models.ClaimStatus{models.StatusDelivered, models.StatusReturning}

// ReportFilter selects claims that reached one of statuses during day.
func ReportFilter(statuses []models.ClaimStatus, day time.Time, tzOffsetHours int) Filter {
	if len(statuses) == 0 {
		statuses = DefaultReportStatuses
	}
	d := day
	return Filter{Statuses: statuses, Date: &d, TZOffsetHours: tzOffsetHours}
}

// SortingFilter selects routed claims and asks for the sorting table.
func SortingFilter() (Filter, Options) {
	return Filter{Statuses: models.RoutedStatuses()}, Options{CollectSorting: true}
}

// DuplicatesFilter finds parcels submitted more than once since day. A zero
// day searches the whole index.
func DuplicatesFilter(since time.Time) (Filter, Options) {
	f := Filter{}
	if !since.IsZero() {
		f.CreatedFrom = &since
	}
	return f, Options{CollectDuplicates: true}
}

// Today returns the current calendar day in the zone tzOffsetHours from UTC.
func Today(now time.Time, tzOffsetHours int) time.Time {
	local := now.In(time.FixedZone("", tzOffsetHours*3600))
	y, m, d := local.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
