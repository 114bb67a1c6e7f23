package bins

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/example/ewaste-pickup/internal/models"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(noWriter{}, nil))
}

type noWriter struct{}

func (noWriter) Write(p []byte) (int, error) { return len(p), nil }

func binFixtures() []models.Bin {
	fill, cap := 4.0, 10.0
	return []models.Bin{
		{ID: "b1", Name: "Campus North", Location: models.GeoPoint{Lat: 25.27, Lng: 82.99}, Status: models.BinActive, FillLevel: &fill, Capacity: &cap},
		{ID: "b2", Name: "Depot", Location: models.GeoPoint{Lat: 25.20, Lng: 82.90}, Status: models.BinMaintenance},
	}
}

func TestListUnwrapsEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/bins/" {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(map[string][]models.Bin{"bins": binFixtures()})
	}))
	defer srv.Close()

	got, err := NewClient(srv.URL, discard()).List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 2 || got[0].Name != "Campus North" {
		t.Fatalf("got %+v", got)
	}

	active := Active(got)
	if len(active) != 1 || active[0].ID != "b1" {
		t.Fatalf("Active = %+v", active)
	}
}

func TestListFailureDegradesToEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	got, err := NewClient(srv.URL, discard()).List(context.Background())
	if err == nil {
		t.Fatal("expected error for logging")
	}
	if len(got) != 0 {
		t.Fatalf("got %d bins on failure", len(got))
	}
}

func TestGetUpdateDelete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/bins/b1" {
			http.NotFound(w, r)
			return
		}
		switch r.Method {
		case http.MethodGet:
			json.NewEncoder(w).Encode(binFixtures()[0])
		case http.MethodPut:
			var b models.Bin
			if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
				t.Fatalf("decode PUT body: %v", err)
			}
			json.NewEncoder(w).Encode(b)
		case http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		default:
			http.Error(w, "method", http.StatusMethodNotAllowed)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, discard())
	ctx := context.Background()

	bin, err := c.Get(ctx, "b1")
	if err != nil || bin.ID != "b1" {
		t.Fatalf("Get: %+v %v", bin, err)
	}

	bin.Status = models.BinInactive
	updated, err := c.Update(ctx, bin)
	if err != nil || updated.Status != models.BinInactive {
		t.Fatalf("Update: %+v %v", updated, err)
	}

	if err := c.Delete(ctx, "b1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
}
