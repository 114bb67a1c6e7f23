package geocode

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/example/ewaste-pickup/internal/models"
)

func searchServer(t *testing.T, hits []nominatimHit, calls *int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*calls++
		switch r.URL.Path {
		case "/search":
			json.NewEncoder(w).Encode(hits)
		case "/reverse":
			json.NewEncoder(w).Encode(map[string]string{"display_name": "5 Main St, Springfield"})
		default:
			http.NotFound(w, r)
		}
	}))
}

func TestSearchShortQuerySkipsNetwork(t *testing.T) {
	calls := 0
	srv := searchServer(t, nil, &calls)
	defer srv.Close()

	c := NewClient(srv.URL)
	// "東京" is two characters even though it is six bytes; both
	// queries are below the three-character gate.
	for _, q := range []string{"ab", "東京"} {
		got, err := c.Search(context.Background(), q)
		if err != nil {
			t.Fatalf("Search(%q): %v", q, err)
		}
		if len(got) != 0 {
			t.Fatalf("Search(%q) = %d candidates, want 0", q, len(got))
		}
	}
	if calls != 0 {
		t.Fatalf("network calls = %d, want 0", calls)
	}
}

func TestSearchCapsCandidates(t *testing.T) {
	hits := make([]nominatimHit, 8)
	for i := range hits {
		hits[i] = nominatimHit{DisplayName: "somewhere", Lat: "12.5", Lon: "77.5"}
	}
	calls := 0
	srv := searchServer(t, hits, &calls)
	defer srv.Close()

	c := NewClient(srv.URL)
	got, err := c.Search(context.Background(), "5 Main St")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) > 5 {
		t.Fatalf("got %d candidates, want <= 5", len(got))
	}
	if calls != 1 {
		t.Fatalf("network calls = %d, want 1", calls)
	}
}

func TestSearchSkipsUnparsableCoordinates(t *testing.T) {
	hits := []nominatimHit{
		{DisplayName: "good", Lat: "10", Lon: "20"},
		{DisplayName: "bad", Lat: "not-a-number", Lon: "20"},
		{DisplayName: "out of range", Lat: "95", Lon: "20"},
	}
	calls := 0
	srv := searchServer(t, hits, &calls)
	defer srv.Close()

	got, err := NewClient(srv.URL).Search(context.Background(), "somewhere")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 1 || got[0].DisplayName != "good" {
		t.Fatalf("got %+v, want single good hit", got)
	}
}

func TestResolveBestMatch(t *testing.T) {
	hits := []nominatimHit{{DisplayName: "5 Main St", Lat: "12.5", Lon: "77.5"}}
	calls := 0
	srv := searchServer(t, hits, &calls)
	defer srv.Close()

	pt, name, ok, err := NewClient(srv.URL).Resolve(context.Background(), "5 Main St")
	if err != nil || !ok {
		t.Fatalf("Resolve: ok=%v err=%v", ok, err)
	}
	if pt != (models.GeoPoint{Lat: 12.5, Lng: 77.5}) || name != "5 Main St" {
		t.Fatalf("got %v %q", pt, name)
	}
}

func TestResolveMissIsNotAnError(t *testing.T) {
	calls := 0
	srv := searchServer(t, nil, &calls)
	defer srv.Close()

	_, _, ok, err := NewClient(srv.URL).Resolve(context.Background(), "nowhere at all")
	if err != nil {
		t.Fatalf("miss must not error: %v", err)
	}
	if ok {
		t.Fatal("ok = true on empty provider response")
	}
}

func TestDescribe(t *testing.T) {
	calls := 0
	srv := searchServer(t, nil, &calls)
	defer srv.Close()

	name, ok := NewClient(srv.URL).Describe(context.Background(), models.GeoPoint{Lat: 12.5, Lng: 77.5})
	if !ok || name == "" {
		t.Fatalf("Describe: %q %v", name, ok)
	}
}

func TestDescribeFailureIsNonFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	if _, ok := NewClient(srv.URL).Describe(context.Background(), models.GeoPoint{Lat: 1, Lng: 1}); ok {
		t.Fatal("ok = true on provider failure")
	}
}

func TestSearchProviderFailureDegrades(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	got, err := NewClient(srv.URL).Search(context.Background(), "5 Main St")
	if err == nil {
		t.Fatal("expected error for logging")
	}
	if len(got) != 0 {
		t.Fatalf("got %d candidates on failure, want 0", len(got))
	}
}
