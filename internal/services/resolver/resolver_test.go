package resolver

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/BearBump/ClaimBox/internal/integrations/cargo"
	"github.com/BearBump/ClaimBox/internal/integrations/cargo/fake"
	"github.com/BearBump/ClaimBox/internal/models"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type searcherMock struct {
	mock.Mock
}

func (m *searcherMock) SearchClaims(ctx context.Context, req cargo.SearchRequest) (cargo.SearchPage, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(cargo.SearchPage), args.Error(1)
}

func withPoints(id string, n int) models.Claim {
	c := models.Claim{ID: id}
	for i := 0; i < n; i++ {
		c.RoutePoints = append(c.RoutePoints, models.RoutePoint{ID: int64(i + 1)})
	}
	return c
}

func TestResolve_CanonicalPassesThrough(t *testing.T) {
	m := &searcherMock{}
	id := "0123456789abcdef0123456789abcdef"

	got, ok := New(m).Resolve(context.Background(), id)
	require.True(t, ok)
	require.Equal(t, id, got)
	m.AssertNotCalled(t, "SearchClaims", mock.Anything, mock.Anything)
}

func TestResolve_LastSmallClaimWins(t *testing.T) {
	m := &searcherMock{}
	m.On("SearchClaims", mock.Anything, mock.MatchedBy(func(req cargo.SearchRequest) bool {
		return req.ExternalOrderID == "ABC123" && req.Limit == 5 && req.Offset != nil && *req.Offset == 0
	})).Return(cargo.SearchPage{HasClaims: true, Claims: []models.Claim{
		withPoints("first", 2),
		withPoints("second", 3),
		withPoints("multi", 4),
	}}, nil).Once()

	got, ok := New(m).Resolve(context.Background(), "ABC123")
	require.True(t, ok)
	require.Equal(t, "second", got)
	m.AssertExpectations(t)
}

func TestResolve_NoQualifyingClaim(t *testing.T) {
	m := &searcherMock{}
	m.On("SearchClaims", mock.Anything, mock.Anything).
		Return(cargo.SearchPage{HasClaims: true, Claims: []models.Claim{withPoints("multi", 5)}}, nil).Once()

	_, ok := New(m).Resolve(context.Background(), "ABC123")
	require.False(t, ok)
}

func TestResolve_ErrorIsNotFound(t *testing.T) {
	m := &searcherMock{}
	m.On("SearchClaims", mock.Anything, mock.Anything).
		Return(cargo.SearchPage{}, errors.New("do request: EOF")).Once()

	_, ok := New(m).Resolve(context.Background(), "ABC123")
	require.False(t, ok)
}

func TestResolve_AgainstFake(t *testing.T) {
	ext := "ORD-77"
	srv := fake.New(
		models.Claim{ID: "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", RoutePoints: []models.RoutePoint{{ID: 1, ExternalOrderID: &ext}, {ID: 2}}},
		models.Claim{ID: "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb", RoutePoints: []models.RoutePoint{{ID: 1}}},
	)
	hs := httptest.NewServer(srv)
	defer hs.Close()

	r := New(cargo.NewAPI(cargo.New(hs.URL, "", "t")))
	got, ok := r.Resolve(context.Background(), ext)
	require.True(t, ok)
	require.Equal(t, "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", got)

	_, ok = r.Resolve(context.Background(), "missing")
	require.False(t, ok)

	calls := srv.Calls("claims/search")
	require.Len(t, calls, 2)
	require.Equal(t, "ORD-77", calls[0].Body["external_order_id"])
}
