package geocode

import (
	"context"
	"errors"

	"github.com/example/ewaste-pickup/internal/models"
)

var (
	// ErrGeolocationUnavailable means no positioning capability exists
	// on this device or deployment.
	ErrGeolocationUnavailable = errors.New("geolocation unavailable")
	// ErrGeolocationDenied means the capability exists but the user or
	// platform refused the lookup (includes timeouts).
	ErrGeolocationDenied = errors.New("geolocation denied")
)

// PositionProvider resolves the current device position. Implementations
// wrap whatever positioning source the embedding platform offers.
type PositionProvider interface {
	CurrentPosition(ctx context.Context) (models.GeoPoint, error)
}

// ProviderFunc adapts a function to PositionProvider.
type ProviderFunc func(ctx context.Context) (models.GeoPoint, error)

func (f ProviderFunc) CurrentPosition(ctx context.Context) (models.GeoPoint, error) {
	return f(ctx)
}

// NoPosition is the provider for headless deployments: every lookup
// fails with ErrGeolocationUnavailable.
func NoPosition() PositionProvider {
	return ProviderFunc(func(context.Context) (models.GeoPoint, error) {
		return models.GeoPoint{}, ErrGeolocationUnavailable
	})
}

// StaticPosition pins the provider to a fixed point, useful for kiosks
// and tests.
func StaticPosition(pt models.GeoPoint) PositionProvider {
	return ProviderFunc(func(context.Context) (models.GeoPoint, error) {
		if !pt.Valid() {
			return models.GeoPoint{}, ErrGeolocationUnavailable
		}
		return pt, nil
	})
}
