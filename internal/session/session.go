package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/example/ewaste-pickup/internal/models"
)

// Snapshot is a consistent read of the session triple plus loading
// state. Dependents treat it as read-only; only the Context mutates
// the underlying state.
type Snapshot struct {
	User    *Identity
	Profile *models.UserProfile
	Token   string
	Loading bool
	// ProfileErr marks the profile-resolution-failed state: identity
	// present, /auth/me unreachable. Distinct from loading so the UI
	// can surface it and offer a retry.
	ProfileErr error
}

// Context owns the authenticated session. It holds the single
// subscription to the identity provider and resolves each identity
// into a role-qualified profile via GET /auth/me.
type Context struct {
	provider IdentityProvider
	baseURL  string
	httpc    *http.Client
	logger   *slog.Logger

	mu   sync.Mutex
	snap Snapshot

	disposeOnce sync.Once
	dispose     func()
}

// New subscribes to the provider and starts resolving state changes.
// Callers must Close the context to release the subscription.
func New(provider IdentityProvider, backendBaseURL string, logger *slog.Logger) *Context {
	c := &Context{
		provider: provider,
		baseURL:  backendBaseURL,
		httpc:    &http.Client{Timeout: 10 * time.Second},
		logger:   logger,
		snap:     Snapshot{Loading: true},
	}
	c.dispose = provider.OnStateChange(c.handleStateChange)
	return c
}

// Close tears down the provider subscription. Safe to call repeatedly;
// the disposer runs exactly once.
func (c *Context) Close() {
	c.disposeOnce.Do(c.dispose)
}

// Snapshot returns the current session state.
func (c *Context) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap
}

func (c *Context) handleStateChange(id *Identity) {
	if id == nil {
		c.mu.Lock()
		c.snap = Snapshot{Loading: false}
		c.mu.Unlock()
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	token, err := c.provider.IDToken(ctx)
	if err != nil {
		c.logger.Error("token fetch failed", "uid", id.UID, "error", err)
		c.mu.Lock()
		c.snap = Snapshot{User: id, Loading: false, ProfileErr: err}
		c.mu.Unlock()
		return
	}

	profile, err := c.fetchProfile(ctx, token)
	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.logger.Error("profile resolution failed", "uid", id.UID, "error", err)
		c.snap = Snapshot{User: id, Token: token, Loading: false, ProfileErr: err}
		return
	}
	c.snap = Snapshot{User: id, Profile: profile, Token: token, Loading: false}
}

// RefreshProfile re-resolves the profile for the current identity. It
// is how point awards land client-side, and the retry path out of the
// profile-resolution-failed state.
func (c *Context) RefreshProfile(ctx context.Context) error {
	c.mu.Lock()
	id := c.snap.User
	c.mu.Unlock()
	if id == nil {
		return ErrNotSignedIn
	}

	token, err := c.provider.IDToken(ctx)
	if err != nil {
		return err
	}
	profile, err := c.fetchProfile(ctx, token)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.snap.User == nil || c.snap.User.UID != id.UID {
		// Identity changed under us; discard.
		return nil
	}
	if err != nil {
		c.snap.ProfileErr = err
		return err
	}
	c.snap.Profile = profile
	c.snap.Token = token
	c.snap.ProfileErr = nil
	return nil
}

func (c *Context) fetchProfile(ctx context.Context, token string) (*models.UserProfile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/auth/me", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpc.Do(req)
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
	return &profile, nil
}

// Login delegates to the identity provider; provider failures
// propagate to the caller unchanged.
func (c *Context) Login(ctx context.Context, email, password string) error {
	return c.provider.SignIn(ctx, email, password)
}

func (c *Context) Signup(ctx context.Context, email, password string) error {
	return c.provider.SignUp(ctx, email, password)
}

func (c *Context) LoginWithGoogle(ctx context.Context, googleIDToken string) error {
	return c.provider.SignInWithGoogle(ctx, googleIDToken)
}

// Logout signs out at the provider and, only on provider success,
// clears user, profile and token in one step.
func (c *Context) Logout(ctx context.Context) error {
	if err := c.provider.SignOut(ctx); err != nil {
		return err
	}
	c.mu.Lock()
	c.snap = Snapshot{Loading: false}
	c.mu.Unlock()
	return nil
}
