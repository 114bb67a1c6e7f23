package models

import (
	"math"
	"time"
)

// GeoPoint is a latitude/longitude pair in degrees.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether both coordinates are finite and inside the
// WGS84 ranges.
func (p GeoPoint) Valid() bool {
	if math.IsNaN(p.Lat) || math.IsInf(p.Lat, 0) || math.IsNaN(p.Lng) || math.IsInf(p.Lng, 0) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// UserProfile is the identity record returned by /auth/me. Points are
// awarded backend-side and only ever reflected here by re-fetch.
type UserProfile struct {
	UID    string `json:"uid"`
	Name   string `json:"name"`
	Role   Role   `json:"role"`
	Points int    `json:"points"`
}

type RequestStatus string

const (
	StatusOpen      RequestStatus = "open"
	StatusAccepted  RequestStatus = "accepted"
	StatusRejected  RequestStatus = "rejected"
	StatusCancelled RequestStatus = "cancelled"
)

// PickupRequest mirrors the backend record. Timestamps stay as wire
// strings because the creation form submits datetime-local values
// without a zone; use PreferredTime to interpret them.
type PickupRequest struct {
	ID                string        `json:"id"`
	UserID            string        `json:"user_id"`
	EWasteType        string        `json:"e_waste_type"`
	ContactNumber     string        `json:"contact_number"`
	PreferredDatetime string        `json:"preferred_datetime"`
	ImageURL          string        `json:"image_url,omitempty"`
	Latitude          *float64      `json:"latitude,omitempty"`
	Longitude         *float64      `json:"longitude,omitempty"`
	AddressText       string        `json:"address_text,omitempty"`
	Status            RequestStatus `json:"status"`
	PointsAwarded     *int          `json:"points_awarded,omitempty"`
	CreatedAt         string        `json:"created_at,omitempty"`
}

// Location returns the resolved coordinate pair. Latitude and longitude
// are either both present or both absent; a half-set pair is treated as
// unresolved.
func (r PickupRequest) Location() (GeoPoint, bool) {
	if r.Latitude == nil || r.Longitude == nil {
		return GeoPoint{}, false
	}
	return GeoPoint{Lat: *r.Latitude, Lng: *r.Longitude}, true
}

// Actionable reports whether admin accept/reject actions apply. Only
// open requests may transition; this is advisory — the backend remains
// the authority when the cache is stale.
func (r PickupRequest) Actionable() bool {
	return r.Status == StatusOpen
}

// AwardConsistent checks the invariant that points_awarded is present
// and positive exactly when the request is accepted.
func (r PickupRequest) AwardConsistent() bool {
	if r.Status == StatusAccepted {
		return r.PointsAwarded != nil && *r.PointsAwarded > 0
	}
	return r.PointsAwarded == nil
}

var preferredLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

// PreferredTime parses the preferred pickup timestamp, accepting both
// RFC3339 and the zone-less datetime-local forms the web form submits.
func (r PickupRequest) PreferredTime() (time.Time, bool) {
	for _, layout := range preferredLayouts {
		if t, err := time.Parse(layout, r.PreferredDatetime); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

type BinStatus string

const (
	BinActive      BinStatus = "active"
	BinInactive    BinStatus = "inactive"
	BinMaintenance BinStatus = "maintenance"
)

// Bin is a fixed collection point with optional fill telemetry.
type Bin struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Location  GeoPoint  `json:"location"`
	Status    BinStatus `json:"status"`
	FillLevel *float64  `json:"fill_level,omitempty"`
	Capacity  *float64  `json:"capacity,omitempty"`
}

// TelemetryValid reports whether fill telemetry, when fully present,
// satisfies 0 <= fill_level <= capacity. Partial telemetry is fine.
func (b Bin) TelemetryValid() bool {
	if b.FillLevel == nil || b.Capacity == nil {
		return true
	}
	return *b.FillLevel >= 0 && *b.FillLevel <= *b.Capacity
}

// RouteQuery is the optimizer request body: one origin plus the
// destination set, named "bins" on the wire.
type RouteQuery struct {
	Start GeoPoint   `json:"start"`
	Bins  []GeoPoint `json:"bins"`
}

// RouteResult carries the ordered path. Ephemeral; recomputed per
// request and never persisted.
type RouteResult struct {
	Path []GeoPoint `json:"path"`
}

// AddressCandidate is one forward-geocoding hit, ordered by provider
// relevance.
type AddressCandidate struct {
	DisplayName string   `json:"display_name"`
	Point       GeoPoint `json:"point"`
}
