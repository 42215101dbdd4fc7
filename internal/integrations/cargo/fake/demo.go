package fake

import (
	"fmt"
	"time"

	"github.com/BearBump/ClaimBox/internal/models"
)

// Demo returns a fake preloaded with a handful of claims in different
// statuses and two same-day intervals, for the emulator mode of the binaries.
func Demo(now time.Time) *Server {
	day := now.UTC().Format("2006-01-02")
	statuses := []models.ClaimStatus{
		models.StatusPerformerFound,
		models.StatusPickupArrived,
		models.StatusDelivered,
		models.StatusReturning,
		models.StatusDelivered,
		models.StatusPerformerLookup,
	}

	s := New()
	s.Intervals = []models.Interval{
		{From: day + "T12:00:00+00:00", To: day + "T16:00:00+00:00"},
		{From: day + "T16:00:00+00:00", To: day + "T20:00:00+00:00"},
	}
	ts := now.UTC().Format("2006-01-02T15:04:05.000000+00:00")
	for i, st := range statuses {
		ext := fmt.Sprintf("DEMO-%03d", i+1)
		if i == 4 {
			ext = "DEMO-003"
		}
		route := fmt.Sprintf("route-%d", i%2+1)
		created, updated := ts, ts
		c := models.Claim{
			ID:        fmt.Sprintf("%032x", i+1),
			Status:    st,
			CreatedTS: &created,
			UpdatedTS: &updated,
			RoutePoints: []models.RoutePoint{
				{ID: int64(100*i + 1), ExternalOrderID: &ext, Address: models.Address{Fullname: "Moscow, Lva Tolstogo, 16", Coordinates: []float64{37.588, 55.734}}},
				{ID: int64(100*i + 2), Address: models.Address{Fullname: fmt.Sprintf("Moscow, Tverskaya, %d", i+1)}},
			},
		}
		if st.IsRouted() {
			c.RouteID = &route
		}
		s.Add(c)
	}
	return s
}
