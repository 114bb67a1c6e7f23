package geocode

import (
	"context"
	"testing"
	"time"

	"github.com/example/ewaste-pickup/internal/models"
)

type countingResolver struct {
	resolves  int
	describes int
}

func (c *countingResolver) Search(context.Context, string) ([]models.AddressCandidate, error) {
	return nil, nil
}

func (c *countingResolver) Resolve(context.Context, string) (models.GeoPoint, string, bool, error) {
	c.resolves++
	return models.GeoPoint{Lat: 12.5, Lng: 77.5}, "5 Main St", true, nil
}

func (c *countingResolver) Describe(context.Context, models.GeoPoint) (string, bool) {
	c.describes++
	return "5 Main St", true
}

func TestCachedResolveHitsStoreSecondTime(t *testing.T) {
	inner := &countingResolver{}
	cached := NewCached(inner, NewMemoryStore(time.Minute))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		pt, name, ok, err := cached.Resolve(ctx, "5 Main St")
		if err != nil || !ok || name != "5 Main St" || pt.Lat != 12.5 {
			t.Fatalf("Resolve #%d: %v %q %v %v", i, pt, name, ok, err)
		}
	}
	if inner.resolves != 1 {
		t.Fatalf("inner resolves = %d, want 1", inner.resolves)
	}
}

func TestCachedDescribe(t *testing.T) {
	inner := &countingResolver{}
	cached := NewCached(inner, NewMemoryStore(time.Minute))
	ctx := context.Background()
	pt := models.GeoPoint{Lat: 12.5, Lng: 77.5}

	for i := 0; i < 2; i++ {
		if name, ok := cached.Describe(ctx, pt); !ok || name != "5 Main St" {
			t.Fatalf("Describe #%d: %q %v", i, name, ok)
		}
	}
	if inner.describes != 1 {
		t.Fatalf("inner describes = %d, want 1", inner.describes)
	}
}

func TestMemoryStoreExpiry(t *testing.T) {
	s := NewMemoryStore(10 * time.Millisecond)
	ctx := context.Background()
	s.Set(ctx, "k", "v")
	if v, ok := s.Get(ctx, "k"); !ok || v != "v" {
		t.Fatalf("fresh entry: %q %v", v, ok)
	}
	time.Sleep(20 * time.Millisecond)
	if _, ok := s.Get(ctx, "k"); ok {
		t.Fatal("expired entry still served")
	}
}
