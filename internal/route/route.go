package route

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/example/ewaste-pickup/internal/models"
)

// ErrRouteUnavailable is returned when the optimizer fails or answers
// with a path too short to draw. Callers decide whether to re-request
// after the origin changes; the client never retries on its own.
var ErrRouteUnavailable = errors.New("route unavailable")

const earthRadiusKm = 6371.0

// HaversineKm returns the great-circle distance between two points in
// kilometers using the mean Earth radius. Pure and symmetric.
func HaversineKm(a, b models.GeoPoint) float64 {
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(a.Lat*math.Pi/180)*math.Cos(b.Lat*math.Pi/180)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadiusKm * c
}

// Optimizer requests ordered paths from the routing service.
type Optimizer interface {
	Optimize(ctx context.Context, origin models.GeoPoint, destinations []models.GeoPoint) ([]models.GeoPoint, error)
}

// Client talks to the backend's /api/route/optimize endpoint.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{BaseURL: baseURL, HTTP: &http.Client{Timeout: 10 * time.Second}}
}

// Optimize submits one origin and a non-empty destination set and
// returns the ordered path. A path needs at least two points to be
// drawable; anything less is reported as unavailable.
func (c *Client) Optimize(ctx context.Context, origin models.GeoPoint, destinations []models.GeoPoint) ([]models.GeoPoint, error) {
	if len(destinations) == 0 {
		return nil, fmt.Errorf("%w: no destinations", ErrRouteUnavailable)
	}

	body, err := json.Marshal(models.RouteQuery{Start: origin, Bins: destinations})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/route/optimize", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRouteUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d", ErrRouteUnavailable, resp.StatusCode)
	}

	var out models.RouteResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRouteUnavailable, err)
	}
	if len(out.Path) < 2 {
		return nil, fmt.Errorf("%w: empty path", ErrRouteUnavailable)
	}
	return out.Path, nil
}
