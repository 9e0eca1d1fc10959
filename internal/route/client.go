package route

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang/geo/s2"

	"travelmap/internal/itinerary"
)

const (
	earthRadiusMiles = 3958.8
	metersPerMile    = 1609.344
)

// Client looks up driving routes from an OSRM compatible server.
type Client struct {
	baseURL    string
	profile    string
	httpClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		profile:    "driving",
		httpClient: &http.Client{Timeout: timeout},
	}
}

type osrmResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Routes  []struct {
		Distance float64 `json:"distance"` // meters
		Duration float64 `json:"duration"` // seconds
		Geometry struct {
			Coordinates [][2]float64 `json:"coordinates"`
		} `json:"geometry"`
	} `json:"routes"`
}

// RouteInfo returns nil without error when the server finds no route.
func (c *Client) RouteInfo(ctx context.Context, origin, destination itinerary.LatLng) (*itinerary.RouteInfo, error) {
	url := fmt.Sprintf("%s/route/v1/%s/%s;%s?overview=full&geometries=geojson",
		c.baseURL, c.profile, coord(origin), coord(destination))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("route request: %w", err)
	}
	defer resp.Body.Close()

	var body osrmResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("route request: HTTP %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("decode route: %w", err)
	}
	if body.Code == "NoRoute" {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK || body.Code != "Ok" {
		return nil, fmt.Errorf("route request: HTTP %d %s %s", resp.StatusCode, body.Code, body.Message)
	}
	if len(body.Routes) == 0 {
		return nil, nil
	}

	r := body.Routes[0]
	info := &itinerary.RouteInfo{
		Geometry:    r.Geometry.Coordinates,
		DistanceMi:  r.Distance / metersPerMile,
		DurationMin: r.Duration / 60,
	}
	if info.DistanceMi == 0 {
		info.DistanceMi = PolylineMiles(info.Geometry)
	}
	return info, nil
}

func coord(p itinerary.LatLng) string {
	return strconv.FormatFloat(p.Lon, 'f', 6, 64) + "," + strconv.FormatFloat(p.Lat, 'f', 6, 64)
}

// PolylineMiles is the great-circle length of a lon,lat polyline.
func PolylineMiles(coords [][2]float64) float64 {
	if len(coords) < 2 {
		return 0
	}
	pts := make([]s2.LatLng, len(coords))
	for i, c := range coords {
		pts[i] = s2.LatLngFromDegrees(c[1], c[0])
	}
	return s2.PolylineFromLatLngs(pts).Length().Radians() * earthRadiusMiles
}

// StraightLineMiles is the great-circle distance between two points.
func StraightLineMiles(a, b itinerary.LatLng) float64 {
	return s2.LatLngFromDegrees(a.Lat, a.Lon).Distance(s2.LatLngFromDegrees(b.Lat, b.Lon)).Radians() * earthRadiusMiles
}
