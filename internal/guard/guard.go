package guard

import (
	"github.com/example/ewaste-pickup/internal/models"
	"github.com/example/ewaste-pickup/internal/session"
)

// Decision is the outcome of evaluating a protected view against the
// current session.
type Decision int

const (
	// ShowLoading keeps the placeholder up; no redirect may happen yet.
	ShowLoading Decision = iota
	// RedirectLogin sends an unauthenticated visitor to the login
	// entry point.
	RedirectLogin
	// RedirectUnauthorized sends an authenticated visitor with the
	// wrong role to the unauthorized destination.
	RedirectUnauthorized
	// Allow renders the protected content.
	Allow
)

func (d Decision) String() string {
	switch d {
	case ShowLoading:
		return "loading"
	case RedirectLogin:
		return "redirect-login"
	case RedirectUnauthorized:
		return "redirect-unauthorized"
	case Allow:
		return "allow"
	}
	return "unknown"
}

// Evaluate applies the access rules in order. The ordering is
// load-bearing: role is checked only after the profile has resolved,
// otherwise every admin view would flash an unauthorized redirect
// during the initial load window.
//
// requiredRole empty means any authenticated identity is enough.
func Evaluate(snap session.Snapshot, requiredRole models.Role) Decision {
	if snap.Loading {
		return ShowLoading
	}
	if snap.User == nil {
		return RedirectLogin
	}
	if requiredRole != "" && snap.Profile == nil {
		return ShowLoading
	}
	if requiredRole != "" && snap.Profile.Role != requiredRole {
		return RedirectUnauthorized
	}
	return Allow
}
