package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/example/ewaste-pickup/internal/bins"
	"github.com/example/ewaste-pickup/internal/models"
	"github.com/example/ewaste-pickup/internal/notify"
	"github.com/example/ewaste-pickup/internal/requests"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// staticProfiles maps bearer tokens to profiles without a backend.
type staticProfiles struct {
	byToken map[string]*models.UserProfile
}

func (s staticProfiles) Resolve(_ context.Context, token string) (*models.UserProfile, error) {
	if p, ok := s.byToken[token]; ok {
		return p, nil
	}
	return nil, errors.New("unknown token")
}

type stubGeocoder struct {
	searchErr error
	hits      []models.AddressCandidate
}

func (s stubGeocoder) Search(context.Context, string) ([]models.AddressCandidate, error) {
	return s.hits, s.searchErr
}

func (s stubGeocoder) Resolve(context.Context, string) (models.GeoPoint, string, bool, error) {
	if len(s.hits) == 0 {
		return models.GeoPoint{}, "", false, s.searchErr
	}
	return s.hits[0].Point, s.hits[0].DisplayName, true, nil
}

func (s stubGeocoder) Describe(context.Context, models.GeoPoint) (string, bool) {
	if len(s.hits) == 0 {
		return "", false
	}
	return s.hits[0].DisplayName, true
}

type stubOptimizer struct {
	path []models.GeoPoint
	err  error
}

func (s stubOptimizer) Optimize(context.Context, models.GeoPoint, []models.GeoPoint) ([]models.GeoPoint, error) {
	return s.path, s.err
}

// chanNotifier hands decisions to the test over a channel because the
// gateway delivers them from a goroutine.
type chanNotifier struct{ ch chan notify.Decision }

func (n chanNotifier) DecisionMade(_ context.Context, d notify.Decision) { n.ch <- d }

func newFakeBackend(t *testing.T, list []models.PickupRequest) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/admin/pickup-requests", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(list)
	})
	mux.HandleFunc("/admin/pickup-requests/", func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, "/admin/pickup-requests/")
		id := strings.SplitN(rest, "/", 2)[0]
		for _, req := range list {
			if req.ID != id {
				continue
			}
			if r.Method == http.MethodPatch {
				w.WriteHeader(http.StatusOK)
				return
			}
			json.NewEncoder(w).Encode(req)
			return
		}
		http.NotFound(w, r)
	})
	mux.HandleFunc("/user/pickup-requests", func(w http.ResponseWriter, r *http.Request) {
		userID := r.URL.Query().Get("user_id")
		var mine []models.PickupRequest
		for _, req := range list {
			if req.UserID == userID {
				mine = append(mine, req)
			}
		}
		json.NewEncoder(w).Encode(mine)
	})
	mux.HandleFunc("/api/bins/", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"bins": []models.Bin{
			{ID: "b1", Name: "Campus bin", Location: models.GeoPoint{Lat: 25.3, Lng: 82.9}, Status: models.BinActive},
		}})
	})
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func ptrF(v float64) *float64 { return &v }

func sampleRequests() []models.PickupRequest {
	return []models.PickupRequest{
		{ID: "r1", UserID: "u1", EWasteType: "laptop", Status: models.StatusOpen,
			Latitude: ptrF(25.31), Longitude: ptrF(82.97)},
		{ID: "r2", UserID: "u1", EWasteType: "battery", Status: models.StatusAccepted},
		{ID: "r3", UserID: "u2", EWasteType: "monitor", Status: models.StatusRejected},
		{ID: "r4", UserID: "u2", EWasteType: "cables", Status: models.StatusCancelled},
	}
}

func newTestServer(t *testing.T, backend string, n notify.Notifier) *Server {
	t.Helper()
	return NewServer(Deps{
		Logger:   discard(),
		Geocoder: stubGeocoder{hits: []models.AddressCandidate{{DisplayName: "Varanasi", Point: models.GeoPoint{Lat: 25.31, Lng: 82.97}}}},
		Optimizer: stubOptimizer{path: []models.GeoPoint{
			{Lat: 25.31, Lng: 82.97}, {Lat: 25.43, Lng: 81.84},
		}},
		Store:          requests.NewStore(backend, discard()),
		Bins:           bins.NewClient(backend, discard()),
		Profiles:       staticProfiles{byToken: map[string]*models.UserProfile{
			"admin-token": {UID: "a1", Name: "Admin", Role: models.RoleAdmin},
			"user-token":  {UID: "u1", Name: "User", Role: models.RoleUser},
		}},
		Notifier:       n,
		BackendBaseURL: backend,
	})
}

func doRequest(t *testing.T, s *Server, method, target, token string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	s.ServeHTTP(rr, req)
	return rr
}

func TestAccessDecisions(t *testing.T) {
	backend := newFakeBackend(t, sampleRequests())
	s := newTestServer(t, backend.URL, nil)

	cases := []struct {
		name   string
		target string
		token  string
		want   int
	}{
		{"no token on protected route", "/api/requests", "", http.StatusUnauthorized},
		{"user token on admin route", "/api/requests", "user-token", http.StatusForbidden},
		{"unresolvable token", "/api/requests", "bogus", http.StatusServiceUnavailable},
		{"admin token allowed", "/api/requests", "admin-token", http.StatusOK},
		{"open route needs nothing", "/api/bins", "", http.StatusOK},
		{"unresolvable token on role-less route", "/api/profile", "bogus", http.StatusServiceUnavailable},
		{"resolved token on role-less route", "/api/profile", "user-token", http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := doRequest(t, s, http.MethodGet, tc.target, tc.token, nil)
			if rr.Code != tc.want {
				t.Fatalf("status = %d, want %d", rr.Code, tc.want)
			}
		})
	}
}

func TestListRequestsPartitions(t *testing.T) {
	backend := newFakeBackend(t, sampleRequests())
	s := newTestServer(t, backend.URL, nil)

	rr := doRequest(t, s, http.MethodGet, "/api/requests", "admin-token", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var out struct {
		Pending  []models.PickupRequest `json:"pending"`
		Accepted []models.PickupRequest `json:"accepted"`
		Rejected []models.PickupRequest `json:"rejected"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Pending) != 1 || out.Pending[0].ID != "r1" {
		t.Fatalf("pending = %+v", out.Pending)
	}
	if len(out.Accepted) != 1 || len(out.Rejected) != 1 {
		t.Fatalf("accepted/rejected = %d/%d", len(out.Accepted), len(out.Rejected))
	}
	// Cancelled records belong to no tab.
	total := len(out.Pending) + len(out.Accepted) + len(out.Rejected)
	if total != 3 {
		t.Fatalf("partitioned %d of 4 records, want 3", total)
	}
}

func TestMyRequestsScopedToSession(t *testing.T) {
	backend := newFakeBackend(t, sampleRequests())
	s := newTestServer(t, backend.URL, nil)

	rr := doRequest(t, s, http.MethodGet, "/api/requests/mine", "user-token", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var out struct {
		Requests []models.PickupRequest `json:"requests"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, r := range out.Requests {
		if r.UserID != "u1" {
			t.Fatalf("foreign request %s leaked into user view", r.ID)
		}
	}
	if len(out.Requests) != 2 {
		t.Fatalf("got %d requests, want 2", len(out.Requests))
	}
}

func TestAcceptNotifiesDecision(t *testing.T) {
	backend := newFakeBackend(t, sampleRequests())
	n := chanNotifier{ch: make(chan notify.Decision, 1)}
	s := newTestServer(t, backend.URL, n)

	body := bytes.NewReader([]byte(`{"points_awarded": 40}`))
	rr := doRequest(t, s, http.MethodPatch, "/api/requests/r1/accept", "admin-token", body)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}

	select {
	case d := <-n.ch:
		if d.RequestID != "r1" || d.Status != models.StatusAccepted || d.PointsAwarded != 40 || d.AdminID != "a1" {
			t.Fatalf("unexpected decision %+v", d)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no decision delivered")
	}
}

func TestAcceptRefusesSettledRequest(t *testing.T) {
	backend := newFakeBackend(t, sampleRequests())
	s := newTestServer(t, backend.URL, nil)

	body := bytes.NewReader([]byte(`{"points_awarded": 10}`))
	rr := doRequest(t, s, http.MethodPatch, "/api/requests/r2/accept", "admin-token", body)
	if rr.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rr.Code)
	}
}

func TestAcceptRejectsNonPositivePoints(t *testing.T) {
	backend := newFakeBackend(t, sampleRequests())
	s := newTestServer(t, backend.URL, nil)

	body := bytes.NewReader([]byte(`{"points_awarded": 0}`))
	rr := doRequest(t, s, http.MethodPatch, "/api/requests/r1/accept", "admin-token", body)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
	var out struct {
		Field string `json:"field"`
	}
	json.NewDecoder(rr.Body).Decode(&out)
	if out.Field != "points_awarded" {
		t.Fatalf("field = %q", out.Field)
	}
}

func TestRejectRequiresConfirmation(t *testing.T) {
	backend := newFakeBackend(t, sampleRequests())
	s := newTestServer(t, backend.URL, nil)

	rr := doRequest(t, s, http.MethodPatch, "/api/requests/r1/reject", "admin-token",
		bytes.NewReader([]byte(`{"confirmed": false}`)))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("unconfirmed reject status = %d, want 400", rr.Code)
	}

	rr = doRequest(t, s, http.MethodPatch, "/api/requests/r1/reject", "admin-token",
		bytes.NewReader([]byte(`{"confirmed": true}`)))
	if rr.Code != http.StatusOK {
		t.Fatalf("confirmed reject status = %d, body %s", rr.Code, rr.Body.String())
	}
}

func TestGeocodeSearchDegradesOnFailure(t *testing.T) {
	backend := newFakeBackend(t, nil)
	s := newTestServer(t, backend.URL, nil)
	s.geocoder = stubGeocoder{searchErr: errors.New("provider down")}

	rr := doRequest(t, s, http.MethodGet, "/api/geocode/search?q=varanasi", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, search must not surface provider errors", rr.Code)
	}
	var out struct {
		Candidates []models.AddressCandidate `json:"candidates"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Candidates == nil || len(out.Candidates) != 0 {
		t.Fatalf("candidates = %v, want empty list", out.Candidates)
	}
}

func TestRouteOptimizeReturnsPathDistance(t *testing.T) {
	backend := newFakeBackend(t, nil)
	s := newTestServer(t, backend.URL, nil)

	body := bytes.NewReader([]byte(`{"start":{"lat":25.31,"lng":82.97},"bins":[{"lat":25.43,"lng":81.84}]}`))
	rr := doRequest(t, s, http.MethodPost, "/api/route/optimize", "user-token", body)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	var out struct {
		Path       []models.GeoPoint `json:"path"`
		DistanceKm float64           `json:"distance_km"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Path) != 2 {
		t.Fatalf("path = %v", out.Path)
	}
	if out.DistanceKm <= 0 {
		t.Fatalf("distance_km = %f, want positive", out.DistanceKm)
	}
}
