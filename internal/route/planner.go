package route

import (
	"context"
	"errors"
	"sort"

	"github.com/example/ewaste-pickup/internal/models"
)

// Planner orders destinations locally with a greedy nearest-neighbor
// walk. It backs Optimize when the routing service cannot answer, so
// the collection view always has a drawable path. The ordering is
// straight-line, not road-aware.
type Planner struct{}

func (Planner) Optimize(_ context.Context, origin models.GeoPoint, destinations []models.GeoPoint) ([]models.GeoPoint, error) {
	if len(destinations) == 0 {
		return nil, errors.New("no destinations")
	}

	remaining := make([]models.GeoPoint, len(destinations))
	copy(remaining, destinations)

	path := make([]models.GeoPoint, 0, len(destinations)+1)
	path = append(path, origin)
	cur := origin
	for len(remaining) > 0 {
		sort.Slice(remaining, func(i, j int) bool {
			return HaversineKm(cur, remaining[i]) < HaversineKm(cur, remaining[j])
		})
		cur = remaining[0]
		path = append(path, cur)
		remaining = remaining[1:]
	}
	return path, nil
}

// PathKm sums the leg distances of an ordered path.
func PathKm(path []models.GeoPoint) float64 {
	var total float64
	for i := 1; i < len(path); i++ {
		total += HaversineKm(path[i-1], path[i])
	}
	return total
}

// Fallback tries the primary optimizer and falls back to the local
// planner when the service is unavailable. Other errors, bad input
// included, pass through untouched.
type Fallback struct {
	Primary Optimizer
	Local   Optimizer
}

func WithFallback(primary Optimizer) Fallback {
	return Fallback{Primary: primary, Local: Planner{}}
}

func (f Fallback) Optimize(ctx context.Context, origin models.GeoPoint, destinations []models.GeoPoint) ([]models.GeoPoint, error) {
	path, err := f.Primary.Optimize(ctx, origin, destinations)
	if err == nil {
		return path, nil
	}
	if len(destinations) == 0 || !errors.Is(err, ErrRouteUnavailable) {
		return nil, err
	}
	return f.Local.Optimize(ctx, origin, destinations)
}
