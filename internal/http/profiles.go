package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/example/ewaste-pickup/internal/models"
)

// ProfileResolver turns a bearer token into the role-qualified profile
// backing access decisions.
type ProfileResolver interface {
	Resolve(ctx context.Context, token string) (*models.UserProfile, error)
}

// BackendProfiles resolves profiles via GET /auth/me with a short TTL
// cache so role checks do not hit the backend on every request.
type BackendProfiles struct {
	BaseURL string
	HTTP    *http.Client
	TTL     time.Duration

	mu    sync.RWMutex
	cache map[string]profileEntry
}

type profileEntry struct {
	p  *models.UserProfile
	ts time.Time
}

func NewBackendProfiles(baseURL string) *BackendProfiles {
	return &BackendProfiles{
		BaseURL: baseURL,
		HTTP:    &http.Client{Timeout: 10 * time.Second},
		TTL:     time.Minute,
		cache:   make(map[string]profileEntry),
	}
}

func (b *BackendProfiles) Resolve(ctx context.Context, token string) (*models.UserProfile, error) {
	b.mu.RLock()
	e, ok := b.cache[token]
	b.mu.RUnlock()
	if ok && time.Since(e.ts) <= b.TTL {
		return e.p, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.BaseURL+"/auth/me", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := b.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("auth/me status %d", resp.StatusCode)
	}

	var profile models.UserProfile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, err
	}

	b.mu.Lock()
	b.cache[token] = profileEntry{p: &profile, ts: time.Now()}
	b.mu.Unlock()
	return &profile, nil
}
