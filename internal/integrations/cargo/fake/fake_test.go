package fake

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/BearBump/ClaimBox/internal/models"
	"github.com/stretchr/testify/require"
)

func post(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestServer_CreateIsIdempotent(t *testing.T) {
	srv := New()
	hs := httptest.NewServer(srv)
	defer hs.Close()

	url := hs.URL + "/b2b/cargo/integration/v2/claims/create?request_id=k1"
	require.Equal(t, http.StatusOK, post(t, url, `{"route_points":[]}`).StatusCode)
	require.Equal(t, http.StatusOK, post(t, url, `{"route_points":[]}`).StatusCode)
	require.Equal(t, http.StatusBadRequest, post(t, hs.URL+"/b2b/cargo/integration/v2/claims/create", `{}`).StatusCode)

	calls := srv.Calls("claims/create")
	require.Len(t, calls, 3)
	require.Equal(t, "k1", calls[0].Query.Get("request_id"))

	srv.mu.Lock()
	n := len(srv.claims)
	srv.mu.Unlock()
	require.Equal(t, 1, n)
}

func TestServer_UnknownEndpoint(t *testing.T) {
	hs := httptest.NewServer(New())
	defer hs.Close()
	require.Equal(t, http.StatusNotFound, post(t, hs.URL+"/v2/other", `{}`).StatusCode)
}

func TestDemo(t *testing.T) {
	s := Demo(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))
	require.Len(t, s.Intervals, 2)

	c, ok := s.Claim("00000000000000000000000000000001")
	require.True(t, ok)
	require.Equal(t, models.StatusPerformerFound, c.Status)
	require.NotNil(t, c.RouteID)

	c, ok = s.Claim("00000000000000000000000000000003")
	require.True(t, ok)
	require.Nil(t, c.RouteID)
	day, ok := c.CreatedDay()
	require.True(t, ok)
	require.Equal(t, 1, day.Day())
}
