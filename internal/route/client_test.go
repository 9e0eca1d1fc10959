package route

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"travelmap/internal/itinerary"
)

var (
	sf  = itinerary.LatLng{Lat: 37.7749, Lon: -122.4194}
	sac = itinerary.LatLng{Lat: 38.5816, Lon: -121.4944}
)

func serve(t *testing.T, status int, body string) (*Client, *string) {
	t.Helper()
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", 2*time.Second), &gotPath
}

func TestRouteInfo(t *testing.T) {
	c, path := serve(t, http.StatusOK, `{"code":"Ok","routes":[{"distance":160934.4,"duration":5400,
		"geometry":{"coordinates":[[-122.4194,37.7749],[-121.4944,38.5816]]}}]}`)

	info, err := c.RouteInfo(context.Background(), sf, sac)

	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, "/route/v1/driving/-122.419400,37.774900;-121.494400,38.581600", *path)
	assert.InDelta(t, 100, info.DistanceMi, 0.001)
	assert.InDelta(t, 90, info.DurationMin, 0.001)
	assert.Len(t, info.Geometry, 2)
}

func TestRouteInfoFallsBackToGeometryLength(t *testing.T) {
	c, _ := serve(t, http.StatusOK, `{"code":"Ok","routes":[{"duration":600,
		"geometry":{"coordinates":[[-122.4194,37.7749],[-121.4944,38.5816]]}}]}`)

	info, err := c.RouteInfo(context.Background(), sf, sac)

	require.NoError(t, err)
	assert.InDelta(t, StraightLineMiles(sf, sac), info.DistanceMi, 0.01)
	assert.InDelta(t, 75, info.DistanceMi, 5)
}

func TestRouteInfoNoRoute(t *testing.T) {
	c, _ := serve(t, http.StatusBadRequest, `{"code":"NoRoute","message":"Impossible route"}`)

	info, err := c.RouteInfo(context.Background(), sf, sac)

	assert.NoError(t, err)
	assert.Nil(t, info)
}

func TestRouteInfoOkWithoutRoutes(t *testing.T) {
	c, _ := serve(t, http.StatusOK, `{"code":"Ok","routes":[]}`)

	info, err := c.RouteInfo(context.Background(), sf, sac)

	assert.NoError(t, err)
	assert.Nil(t, info)
}

func TestRouteInfoErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "server error", status: http.StatusInternalServerError, body: `oops`},
		{name: "invalid query", status: http.StatusBadRequest, body: `{"code":"InvalidQuery","message":"bad coords"}`},
		{name: "garbage", status: http.StatusOK, body: `<html>`},
		{name: "invalid query with 200", status: http.StatusOK, body: `{"code":"InvalidQuery","message":"bad coords"}`},
		{name: "unknown code without routes", status: http.StatusOK, body: `{"code":"TooBig","routes":[]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := serve(t, tt.status, tt.body)
			info, err := c.RouteInfo(context.Background(), sf, sac)
			assert.Error(t, err)
			assert.Nil(t, info)
		})
	}
}

func TestRouteInfoHonorsContext(t *testing.T) {
	c, _ := serve(t, http.StatusOK, `{"code":"Ok","routes":[]}`)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.RouteInfo(ctx, sf, sac)

	assert.ErrorIs(t, err, context.Canceled)
}

func TestPolylineMiles(t *testing.T) {
	assert.Zero(t, PolylineMiles(nil))
	assert.Zero(t, PolylineMiles([][2]float64{{1, 2}}))
	// one degree of longitude along the equator
	assert.InDelta(t, 69.09, PolylineMiles([][2]float64{{0, 0}, {1, 0}}), 0.05)
}
