package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	identityToolkitURL = "https://identitytoolkit.googleapis.com/v1"
	secureTokenURL     = "https://securetoken.googleapis.com/v1/token"
)

// ErrNotSignedIn is returned by IDToken when no identity is active.
var ErrNotSignedIn = errors.New("not signed in")

// FirebaseProvider implements IdentityProvider over the Firebase Auth
// REST surface (identitytoolkit sign-in/sign-up, securetoken refresh).
type FirebaseProvider struct {
	APIKey string
	HTTP   *http.Client
	// Overridable in tests.
	ToolkitURL string
	TokenURL   string

	mu           sync.Mutex
	identity     *Identity
	idToken      string
	refreshToken string
	expiresAt    time.Time
	listeners    map[int]func(*Identity)
	nextListener int
}

func NewFirebaseProvider(apiKey string) *FirebaseProvider {
	return &FirebaseProvider{
		APIKey:     apiKey,
		HTTP:       &http.Client{Timeout: 10 * time.Second},
		ToolkitURL: identityToolkitURL,
		TokenURL:   secureTokenURL,
		listeners:  make(map[int]func(*Identity)),
	}
}

func (p *FirebaseProvider) OnStateChange(fn func(*Identity)) func() {
	p.mu.Lock()
	id := p.nextListener
	p.nextListener++
	p.listeners[id] = fn
	current := p.identity
	p.mu.Unlock()

	// Fire immediately with the current state, mirroring the
	// subscribe-then-emit contract of the web SDK.
	fn(current)

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.listeners, id)
			p.mu.Unlock()
		})
	}
}

type tokenResponse struct {
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
	LocalID      string `json:"localId"`
	Email        string `json:"email"`
	ExpiresIn    string `json:"expiresIn"`
}

func (p *FirebaseProvider) SignIn(ctx context.Context, email, password string) error {
	return p.credentialCall(ctx, "accounts:signInWithPassword", map[string]any{
		"email": email, "password": password, "returnSecureToken": true,
	})
}

func (p *FirebaseProvider) SignUp(ctx context.Context, email, password string) error {
	return p.credentialCall(ctx, "accounts:signUp", map[string]any{
		"email": email, "password": password, "returnSecureToken": true,
	})
}

func (p *FirebaseProvider) SignInWithGoogle(ctx context.Context, googleIDToken string) error {
	return p.credentialCall(ctx, "accounts:signInWithIdp", map[string]any{
		"postBody":            "id_token=" + googleIDToken + "&providerId=google.com",
		"requestUri":          "http://localhost",
		"returnSecureToken":   true,
		"returnIdpCredential": true,
	})
}

func (p *FirebaseProvider) credentialCall(ctx context.Context, endpoint string, body map[string]any) error {
	var tok tokenResponse
	if err := p.postJSON(ctx, fmt.Sprintf("%s/%s?key=%s", p.ToolkitURL, endpoint, p.APIKey), body, &tok); err != nil {
		return &AuthError{Op: endpoint, Err: err}
	}
	p.setSession(tok)
	return nil
}

func (p *FirebaseProvider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	p.identity = nil
	p.idToken = ""
	p.refreshToken = ""
	p.expiresAt = time.Time{}
	fns := p.snapshotListenersLocked()
	p.mu.Unlock()

	for _, fn := range fns {
		fn(nil)
	}
	return nil
}

func (p *FirebaseProvider) IDToken(ctx context.Context) (string, error) {
	p.mu.Lock()
	if p.identity == nil {
		p.mu.Unlock()
		return "", &AuthError{Op: "token", Err: ErrNotSignedIn}
	}
	token, refresh := p.idToken, p.refreshToken
	fresh := time.Until(p.expiresAt) > 30*time.Second
	p.mu.Unlock()

	if fresh {
		return token, nil
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refresh)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.TokenURL+"?key="+p.APIKey, strings.NewReader(form.Encode()))
	if err != nil {
		return "", &AuthError{Op: "refresh", Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.HTTP.Do(req)
	if err != nil {
		return "", &AuthError{Op: "refresh", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", &AuthError{Op: "refresh", Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	var out struct {
		IDToken      string `json:"id_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    string `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", &AuthError{Op: "refresh", Err: err}
	}

	p.mu.Lock()
	p.idToken = out.IDToken
	if out.RefreshToken != "" {
		p.refreshToken = out.RefreshToken
	}
	p.expiresAt = time.Now().Add(parseExpiry(out.ExpiresIn))
	token = p.idToken
	p.mu.Unlock()
	return token, nil
}

func (p *FirebaseProvider) setSession(tok tokenResponse) {
	p.mu.Lock()
	p.identity = &Identity{UID: tok.LocalID, Email: tok.Email}
	p.idToken = tok.IDToken
	p.refreshToken = tok.RefreshToken
	p.expiresAt = time.Now().Add(parseExpiry(tok.ExpiresIn))
	current := p.identity
	fns := p.snapshotListenersLocked()
	p.mu.Unlock()

	for _, fn := range fns {
		fn(current)
	}
}

func (p *FirebaseProvider) snapshotListenersLocked() []func(*Identity) {
	fns := make([]func(*Identity), 0, len(p.listeners))
	for _, fn := range p.listeners {
		fns = append(fns, fn)
	}
	return fns
}

func (p *FirebaseProvider) postJSON(ctx context.Context, endpoint string, body, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(string(raw)))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("status %d: %s", resp.StatusCode, firebaseErrorMessage(msg))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func firebaseErrorMessage(raw []byte) string {
	var body struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && body.Error.Message != "" {
		return body.Error.Message
	}
	return strings.TrimSpace(string(raw))
}

func parseExpiry(s string) time.Duration {
	if secs, err := strconv.Atoi(s); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return time.Hour
}
