package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SearchesIssued = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ewaste", Name: "address_searches_issued_total",
		Help: "Address searches sent to the geocoder"})
	SearchesDiscarded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ewaste", Name: "address_searches_discarded_total",
		Help: "Search completions discarded because a newer query superseded them"})

	GeocodeLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ewaste", Name: "geocode_lookups_total",
			Help: "Forward and reverse geocode lookups by outcome"},
		[]string{"op", "outcome"},
	)

	RequestsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ewaste", Name: "pickup_requests_created_total",
		Help: "Pickup requests successfully submitted"})
	RequestActions = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ewaste", Name: "pickup_request_actions_total",
			Help: "Admin accept/reject actions by outcome"},
		[]string{"action", "outcome"},
	)

	RouteLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ewaste", Name: "route_lookups_total",
			Help: "Route optimizer lookups by outcome"},
		[]string{"outcome"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ewaste", Name: "http_requests_total",
			Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ewaste",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
