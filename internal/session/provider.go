package session

import (
	"context"
	"fmt"
)

// Identity is the provider-side account, before the backend has turned
// it into a role-qualified profile.
type Identity struct {
	UID   string
	Email string
}

// AuthError wraps identity-provider failures so callers can tell them
// apart from backend errors.
type AuthError struct {
	Op  string
	Err error
}

func (e *AuthError) Error() string { return fmt.Sprintf("auth %s: %v", e.Op, e.Err) }
func (e *AuthError) Unwrap() error { return e.Err }

// IdentityProvider abstracts the identity backend. OnStateChange fires
// the callback with the current identity (nil when signed out),
// immediately on subscribe and again on every change; the returned
// disposer tears the subscription down and is safe to call once.
type IdentityProvider interface {
	OnStateChange(fn func(*Identity)) (dispose func())
	SignIn(ctx context.Context, email, password string) error
	SignUp(ctx context.Context, email, password string) error
	// SignInWithGoogle exchanges a Google OAuth ID token obtained by
	// the embedding client.
	SignInWithGoogle(ctx context.Context, googleIDToken string) error
	SignOut(ctx context.Context) error
	// IDToken returns a short-lived access token for the current
	// identity, refreshing if necessary.
	IDToken(ctx context.Context) (string, error)
}
