package requests

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/example/ewaste-pickup/internal/models"
)

// Store holds the client-side view of pickup requests. The backend
// owns the records; the cache here is refreshed on demand and after
// every mutation, never patched in place by the lifecycle controller,
// so server-computed fields (points_awarded) cannot diverge.
type Store struct {
	BaseURL string
	HTTP    *http.Client
	logger  *slog.Logger

	mu     sync.RWMutex
	cached []models.PickupRequest
}

func NewStore(baseURL string, logger *slog.Logger) *Store {
	return &Store{
		BaseURL: baseURL,
		HTTP:    &http.Client{Timeout: 10 * time.Second},
		logger:  logger,
	}
}

// Refresh fetches the full admin list. On failure the previous cache
// is kept and the error returned for logging; list views degrade
// rather than crash.
func (s *Store) Refresh(ctx context.Context) ([]models.PickupRequest, error) {
	return s.refresh(ctx, s.BaseURL+"/admin/pickup-requests")
}

// RefreshForUser fetches the requesting user's own list.
func (s *Store) RefreshForUser(ctx context.Context, userID string) ([]models.PickupRequest, error) {
	u := s.BaseURL + "/user/pickup-requests?user_id=" + url.QueryEscape(userID)
	return s.refresh(ctx, u)
}

func (s *Store) refresh(ctx context.Context, u string) ([]models.PickupRequest, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return s.Cached(), err
	}
	resp, err := s.HTTP.Do(req)
	if err != nil {
		s.logger.Error("request list fetch failed", "error", err)
		return s.Cached(), err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("request list status %d", resp.StatusCode)
		s.logger.Error("request list fetch failed", "error", err)
		return s.Cached(), err
	}

	var list []models.PickupRequest
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		s.logger.Error("request list decode failed", "error", err)
		return s.Cached(), err
	}

	s.mu.Lock()
	s.cached = list
	s.mu.Unlock()
	return s.Cached(), nil
}

// Get fetches one request by id and folds it into the cache.
func (s *Store) Get(ctx context.Context, id string) (models.PickupRequest, error) {
	u := s.BaseURL + "/admin/pickup-requests/" + url.PathEscape(id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return models.PickupRequest{}, err
	}
	resp, err := s.HTTP.Do(req)
	if err != nil {
		return models.PickupRequest{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return models.PickupRequest{}, fmt.Errorf("request %s status %d", id, resp.StatusCode)
	}

	var r models.PickupRequest
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return models.PickupRequest{}, err
	}

	s.mu.Lock()
	replaced := false
	for i := range s.cached {
		if s.cached[i].ID == r.ID {
			s.cached[i] = r
			replaced = true
			break
		}
	}
	if !replaced {
		s.cached = append(s.cached, r)
	}
	s.mu.Unlock()
	return r, nil
}

// Cached returns a copy of the current cache.
func (s *Store) Cached() []models.PickupRequest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.PickupRequest, len(s.cached))
	copy(out, s.cached)
	return out
}

// Partition splits the cache into the pending/accepted/rejected views
// the review screens present. Cancelled requests fall outside all
// three tabs, matching the admin UI.
func (s *Store) Partition() (pending, accepted, rejected []models.PickupRequest) {
	for _, r := range s.Cached() {
		switch r.Status {
		case models.StatusOpen:
			pending = append(pending, r)
		case models.StatusAccepted:
			accepted = append(accepted, r)
		case models.StatusRejected:
			rejected = append(rejected, r)
		}
	}
	return pending, accepted, rejected
}
