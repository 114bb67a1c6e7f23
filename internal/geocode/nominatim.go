package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/example/ewaste-pickup/internal/models"
)

// Resolver converts free-text addresses to coordinates and back. All
// methods degrade gracefully: provider or network failure yields an
// empty result plus an error the caller may log, never a panic.
type Resolver interface {
	// Search returns up to SearchLimit candidates ordered by provider
	// relevance. Queries shorter than MinQueryLen return an empty
	// slice without touching the network.
	Search(ctx context.Context, query string) ([]models.AddressCandidate, error)
	// Resolve forward-geocodes a finalized address to its single best
	// match. ok is false when the provider has no match.
	Resolve(ctx context.Context, query string) (models.GeoPoint, string, bool, error)
	// Describe reverse-geocodes a point to a display address. ok is
	// false on miss or failure; callers keep the raw coordinates.
	Describe(ctx context.Context, point models.GeoPoint) (string, bool)
}

// Client is a Nominatim-compatible geocoder client.
type Client struct {
	BaseURL     string
	HTTP        *http.Client
	SearchLimit int
	MinQueryLen int
	// UserAgent identifies the service; public Nominatim rejects
	// anonymous clients.
	UserAgent string
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL:     baseURL,
		HTTP:        &http.Client{Timeout: 8 * time.Second},
		SearchLimit: 5,
		MinQueryLen: 3,
		UserAgent:   "ewaste-pickup/1.0",
	}
}

// nominatimHit is the provider's forward-search row; coordinates come
// back as strings convertible to numbers.
type nominatimHit struct {
	DisplayName string `json:"display_name"`
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
}

func (c *Client) Search(ctx context.Context, query string) ([]models.AddressCandidate, error) {
	// Characters, not bytes; multibyte scripts must not slip past
	// the minimum-length gate.
	if utf8.RuneCountInString(query) < c.MinQueryLen {
		return nil, nil
	}
	hits, err := c.forward(ctx, query, c.SearchLimit)
	if err != nil {
		return nil, err
	}
	out := make([]models.AddressCandidate, 0, len(hits))
	for _, h := range hits {
		pt, ok := h.point()
		if !ok {
			continue
		}
		out = append(out, models.AddressCandidate{DisplayName: h.DisplayName, Point: pt})
	}
	if len(out) > c.SearchLimit {
		out = out[:c.SearchLimit]
	}
	return out, nil
}

func (c *Client) Resolve(ctx context.Context, query string) (models.GeoPoint, string, bool, error) {
	hits, err := c.forward(ctx, query, 1)
	if err != nil {
		return models.GeoPoint{}, "", false, err
	}
	for _, h := range hits {
		if pt, ok := h.point(); ok {
			return pt, h.DisplayName, true, nil
		}
	}
	return models.GeoPoint{}, "", false, nil
}

func (c *Client) Describe(ctx context.Context, point models.GeoPoint) (string, bool) {
	q := url.Values{}
	q.Set("format", "json")
	q.Set("lat", strconv.FormatFloat(point.Lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(point.Lng, 'f', -1, 64))

	var out struct {
		DisplayName string `json:"display_name"`
	}
	if err := c.getJSON(ctx, "/reverse", q, &out); err != nil {
		return "", false
	}
	if out.DisplayName == "" {
		return "", false
	}
	return out.DisplayName, true
}

func (c *Client) forward(ctx context.Context, query string, limit int) ([]nominatimHit, error) {
	q := url.Values{}
	q.Set("format", "json")
	q.Set("limit", strconv.Itoa(limit))
	q.Set("q", query)

	var hits []nominatimHit
	if err := c.getJSON(ctx, "/search", q, &hits); err != nil {
		return nil, err
	}
	return hits, nil
}

func (c *Client) getJSON(ctx context.Context, path string, q url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", c.UserAgent)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("geocoder status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (h nominatimHit) point() (models.GeoPoint, bool) {
	lat, err1 := strconv.ParseFloat(h.Lat, 64)
	lng, err2 := strconv.ParseFloat(h.Lon, 64)
	if err1 != nil || err2 != nil {
		return models.GeoPoint{}, false
	}
	pt := models.GeoPoint{Lat: lat, Lng: lng}
	return pt, pt.Valid()
}
