package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	gorillahandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/ewaste-pickup/internal/bins"
	"github.com/example/ewaste-pickup/internal/geocode"
	"github.com/example/ewaste-pickup/internal/models"
	"github.com/example/ewaste-pickup/internal/notify"
	"github.com/example/ewaste-pickup/internal/observability"
	"github.com/example/ewaste-pickup/internal/requests"
	"github.com/example/ewaste-pickup/internal/route"
)

// Deps are the collaborators the gateway fronts. Everything is an
// interface or a client so tests can swap in fakes.
type Deps struct {
	Logger         *slog.Logger
	Geocoder       geocode.Resolver
	Position       geocode.PositionProvider
	Optimizer      route.Optimizer
	Store          *requests.Store
	Bins           *bins.Client
	Profiles       ProfileResolver
	Notifier       notify.Notifier
	BackendBaseURL string
}

// Server is the HTTP surface the web UI talks to. It adapts the client
// core to a stateless API: sessions arrive as bearer tokens, access
// decisions come from the guard, and every mutation triggers a store
// re-fetch.
type Server struct {
	logger      *slog.Logger
	geocoder    geocode.Resolver
	position    geocode.PositionProvider
	optimizer   route.Optimizer
	store       *requests.Store
	bins        *bins.Client
	profiles    ProfileResolver
	notifier    notify.Notifier
	backendBase string
	mux         *mux.Router
}

func NewServer(d Deps) *Server {
	s := &Server{
		logger:      d.Logger,
		geocoder:    d.Geocoder,
		position:    d.Position,
		optimizer:   d.Optimizer,
		store:       d.Store,
		bins:        d.Bins,
		profiles:    d.Profiles,
		notifier:    d.Notifier,
		backendBase: d.BackendBaseURL,
		mux:         mux.NewRouter(),
	}
	if s.notifier == nil {
		s.notifier = notify.Nop{}
	}
	s.registerMiddleware()
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	s.mux.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	s.mux.HandleFunc("/api/profile", s.requireRole("", s.handleProfile)).Methods(http.MethodGet)

	s.mux.HandleFunc("/api/geocode/search", s.handleGeocodeSearch).Methods(http.MethodGet)
	s.mux.HandleFunc("/api/geocode/resolve", s.handleGeocodeResolve).Methods(http.MethodGet)
	s.mux.HandleFunc("/api/geocode/reverse", s.handleGeocodeReverse).Methods(http.MethodGet)
	s.mux.HandleFunc("/api/position", s.handlePosition).Methods(http.MethodGet)
	s.mux.HandleFunc("/api/route/optimize", s.requireRole("", s.handleRouteOptimize)).Methods(http.MethodPost)

	s.mux.HandleFunc("/api/requests", s.requireRole(models.RoleUser, s.handleCreateRequest)).Methods(http.MethodPost)
	s.mux.HandleFunc("/api/requests", s.requireRole(models.RoleAdmin, s.handleListRequests)).Methods(http.MethodGet)
	s.mux.HandleFunc("/api/requests/mine", s.requireRole(models.RoleUser, s.handleMyRequests)).Methods(http.MethodGet)
	s.mux.HandleFunc("/api/requests/{id}", s.requireRole(models.RoleAdmin, s.handleGetRequest)).Methods(http.MethodGet)
	s.mux.HandleFunc("/api/requests/{id}/accept", s.requireRole(models.RoleAdmin, s.handleAccept)).Methods(http.MethodPatch)
	s.mux.HandleFunc("/api/requests/{id}/reject", s.requireRole(models.RoleAdmin, s.handleReject)).Methods(http.MethodPatch)

	s.mux.HandleFunc("/api/bins", s.handleListBins).Methods(http.MethodGet)
	s.mux.HandleFunc("/api/bins/{id}", s.requireRole(models.RoleAdmin, s.handleGetBin)).Methods(http.MethodGet)
	s.mux.HandleFunc("/api/bins/{id}", s.requireRole(models.RoleAdmin, s.handleUpdateBin)).Methods(http.MethodPut)
	s.mux.HandleFunc("/api/bins/{id}", s.requireRole(models.RoleAdmin, s.handleDeleteBin)).Methods(http.MethodDelete)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

// Handler wraps the router with CORS for browser clients.
func (s *Server) Handler(allowedOrigins []string) http.Handler {
	return gorillahandlers.CORS(
		gorillahandlers.AllowedOrigins(allowedOrigins),
		gorillahandlers.AllowedMethods([]string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}),
		gorillahandlers.AllowedHeaders([]string{"Authorization", "Content-Type", "X-Request-ID"}),
	)(s.mux)
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, profileFromContext(r.Context()))
}

func (s *Server) handleGeocodeSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	candidates, err := s.geocoder.Search(r.Context(), q)
	if err != nil {
		// Degrade to an empty candidate list; search boxes must not
		// error out on provider hiccups.
		s.logger.Warn("address search failed", "query", q, "error", err)
		observability.GeocodeLookups.WithLabelValues("search", "error").Inc()
		writeJSON(w, http.StatusOK, map[string]any{"candidates": []models.AddressCandidate{}})
		return
	}
	observability.GeocodeLookups.WithLabelValues("search", "ok").Inc()
	if candidates == nil {
		candidates = []models.AddressCandidate{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"candidates": candidates})
}

func (s *Server) handleGeocodeResolve(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeError(w, http.StatusBadRequest, "q is required")
		return
	}
	pt, name, ok, err := s.geocoder.Resolve(r.Context(), q)
	if err != nil {
		observability.GeocodeLookups.WithLabelValues("resolve", "error").Inc()
		writeError(w, http.StatusBadGateway, "geocoder unavailable")
		return
	}
	if !ok {
		observability.GeocodeLookups.WithLabelValues("resolve", "miss").Inc()
		writeError(w, http.StatusNotFound, "no match")
		return
	}
	observability.GeocodeLookups.WithLabelValues("resolve", "ok").Inc()
	writeJSON(w, http.StatusOK, map[string]any{"display_name": name, "point": pt})
}

func (s *Server) handleGeocodeReverse(w http.ResponseWriter, r *http.Request) {
	lat, err1 := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lng, err2 := strconv.ParseFloat(r.URL.Query().Get("lng"), 64)
	pt := models.GeoPoint{Lat: lat, Lng: lng}
	if err1 != nil || err2 != nil || !pt.Valid() {
		writeError(w, http.StatusBadRequest, "valid lat and lng are required")
		return
	}
	name, ok := s.geocoder.Describe(r.Context(), pt)
	if !ok {
		observability.GeocodeLookups.WithLabelValues("reverse", "miss").Inc()
		writeError(w, http.StatusNotFound, "no description")
		return
	}
	observability.GeocodeLookups.WithLabelValues("reverse", "ok").Inc()
	writeJSON(w, http.StatusOK, map[string]string{"display_name": name})
}

func (s *Server) handlePosition(w http.ResponseWriter, r *http.Request) {
	pt, err := s.position.CurrentPosition(r.Context())
	switch {
	case errors.Is(err, geocode.ErrGeolocationUnavailable):
		writeError(w, http.StatusNotImplemented, "geolocation unavailable")
	case errors.Is(err, geocode.ErrGeolocationDenied):
		writeError(w, http.StatusForbidden, "geolocation denied")
	case err != nil:
		writeError(w, http.StatusBadGateway, "position lookup failed")
	default:
		writeJSON(w, http.StatusOK, pt)
	}
}

func (s *Server) handleRouteOptimize(w http.ResponseWriter, r *http.Request) {
	var q models.RouteQuery
	if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if !q.Start.Valid() || len(q.Bins) == 0 {
		writeError(w, http.StatusBadRequest, "start and at least one destination are required")
		return
	}

	path, err := s.optimizer.Optimize(r.Context(), q.Start, q.Bins)
	if err != nil {
		observability.RouteLookups.WithLabelValues("error").Inc()
		writeError(w, http.StatusBadGateway, "route unavailable")
		return
	}
	observability.RouteLookups.WithLabelValues("ok").Inc()
	writeJSON(w, http.StatusOK, map[string]any{
		"path":        path,
		"distance_km": route.PathKm(path),
	})
}

func (s *Server) handleListRequests(w http.ResponseWriter, r *http.Request) {
	if _, err := s.store.Refresh(r.Context()); err != nil {
		// Serve the previous cache; list views degrade, not crash.
		s.logger.Warn("serving cached request list", "error", err)
	}
	pending, accepted, rejected := s.store.Partition()
	writeJSON(w, http.StatusOK, map[string]any{
		"pending":  emptyIfNil(pending),
		"accepted": emptyIfNil(accepted),
		"rejected": emptyIfNil(rejected),
	})
}

func (s *Server) handleMyRequests(w http.ResponseWriter, r *http.Request) {
	profile := profileFromContext(r.Context())
	list, err := s.store.RefreshForUser(r.Context(), profile.UID)
	if err != nil {
		s.logger.Warn("serving cached user request list", "error", err)
	}
	writeJSON(w, http.StatusOK, map[string]any{"requests": emptyIfNil(list)})
}

func (s *Server) handleGetRequest(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	req, err := s.store.Get(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusBadGateway, "request unavailable")
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (s *Server) handleCreateRequest(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(16 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart payload")
		return
	}

	draft := requests.Draft{
		// The session, not the form, says who is submitting.
		UserID:            profileFromContext(r.Context()).UID,
		EWasteType:        r.FormValue("e_waste_type"),
		ContactNumber:     r.FormValue("contact_number"),
		PreferredDatetime: r.FormValue("preferred_datetime"),
		AddressText:       r.FormValue("address_text"),
	}
	if file, header, err := r.FormFile("image"); err == nil {
		defer file.Close()
		data, err := io.ReadAll(io.LimitReader(file, 16<<20))
		if err != nil {
			writeError(w, http.StatusBadRequest, "unreadable image")
			return
		}
		draft.Image = data
		draft.ImageName = header.Filename
	}
	lat, latErr := strconv.ParseFloat(r.FormValue("latitude"), 64)
	lng, lngErr := strconv.ParseFloat(r.FormValue("longitude"), 64)
	if latErr == nil && lngErr == nil {
		draft.Location = &models.GeoPoint{Lat: lat, Lng: lng}
	}

	if err := s.newController().Create(r.Context(), &draft); err != nil {
		s.writeLifecycleError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "created"})
}

func (s *Server) handleAccept(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var body struct {
		PointsAwarded int `json:"points_awarded"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	ctl := s.newController()
	if current, err := s.store.Get(r.Context(), id); err == nil {
		ctl.Review(current)
	}
	admin := profileFromContext(r.Context())
	if err := ctl.Accept(r.Context(), id, admin.UID, body.PointsAwarded); err != nil {
		s.writeLifecycleError(w, err)
		return
	}
	s.notifyDecision(notify.Decision{
		RequestID:     id,
		Status:        models.StatusAccepted,
		AdminID:       admin.UID,
		PointsAwarded: body.PointsAwarded,
	})
	writeJSON(w, http.StatusOK, map[string]string{"status": string(models.StatusAccepted)})
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var body struct {
		Confirmed bool `json:"confirmed"`
	}
	// A missing body means no confirmation was given.
	_ = json.NewDecoder(r.Body).Decode(&body)

	ctl := s.newController()
	if current, err := s.store.Get(r.Context(), id); err == nil {
		ctl.Review(current)
	}
	admin := profileFromContext(r.Context())
	if err := ctl.Reject(r.Context(), id, admin.UID, func() bool { return body.Confirmed }); err != nil {
		s.writeLifecycleError(w, err)
		return
	}
	s.notifyDecision(notify.Decision{RequestID: id, Status: models.StatusRejected, AdminID: admin.UID})
	writeJSON(w, http.StatusOK, map[string]string{"status": string(models.StatusRejected)})
}

func (s *Server) handleListBins(w http.ResponseWriter, r *http.Request) {
	list, err := s.bins.List(r.Context())
	if err != nil {
		s.logger.Warn("serving empty bin list", "error", err)
	}
	writeJSON(w, http.StatusOK, map[string]any{"bins": emptyIfNil(list)})
}

func (s *Server) handleGetBin(w http.ResponseWriter, r *http.Request) {
	bin, err := s.bins.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadGateway, "bin unavailable")
		return
	}
	writeJSON(w, http.StatusOK, bin)
}

func (s *Server) handleUpdateBin(w http.ResponseWriter, r *http.Request) {
	var bin models.Bin
	if err := json.NewDecoder(r.Body).Decode(&bin); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	bin.ID = mux.Vars(r)["id"]
	if !bin.Location.Valid() || !bin.TelemetryValid() {
		writeError(w, http.StatusBadRequest, "invalid bin record")
		return
	}
	updated, err := s.bins.Update(r.Context(), bin)
	if err != nil {
		writeError(w, http.StatusBadGateway, "bin update failed")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteBin(w http.ResponseWriter, r *http.Request) {
	if err := s.bins.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, http.StatusBadGateway, "bin delete failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// notifyDecision delivers in the background on a detached context so
// a client disconnect cannot cancel the webhook call.
func (s *Server) notifyDecision(d notify.Decision) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.notifier.DecisionMade(ctx, d)
	}()
}

// newController builds a per-request lifecycle controller whose
// mutations refresh the shared store.
func (s *Server) newController() *requests.Controller {
	ctl := requests.NewController(s.backendBase, s.logger)
	ctl.OnMutation = func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if _, err := s.store.Refresh(ctx); err != nil {
			s.logger.Warn("post-mutation refresh failed", "error", err)
		}
	}
	return ctl
}

func (s *Server) writeLifecycleError(w http.ResponseWriter, err error) {
	var verr *requests.ValidationError
	var serr *requests.SubmissionError
	var aerr *requests.ActionError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": verr.Error(), "field": verr.Field})
	case errors.Is(err, requests.ErrNotConfirmed):
		writeError(w, http.StatusBadRequest, "confirmation required")
	case errors.Is(err, requests.ErrNotActionable):
		writeError(w, http.StatusConflict, "request is not open")
	case errors.As(err, &serr):
		writeError(w, statusOr(serr.Status, http.StatusBadGateway), serr.Message)
	case errors.As(err, &aerr):
		writeError(w, statusOr(aerr.Status, http.StatusBadGateway), aerr.Message)
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func statusOr(status, fallback int) int {
	if status >= 400 {
		return status
	}
	return fallback
}

func emptyIfNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
