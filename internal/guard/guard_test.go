package guard

import (
	"errors"
	"testing"

	"github.com/example/ewaste-pickup/internal/models"
	"github.com/example/ewaste-pickup/internal/session"
)

func TestEvaluateDecisionTable(t *testing.T) {
	user := &session.Identity{UID: "u1"}
	userProfile := &models.UserProfile{UID: "u1", Role: models.RoleUser}
	adminProfile := &models.UserProfile{UID: "a1", Role: models.RoleAdmin}

	tests := []struct {
		name string
		snap session.Snapshot
		role models.Role
		want Decision
	}{
		{"loading always shows placeholder", session.Snapshot{Loading: true}, "", ShowLoading},
		{"loading wins even with user and role", session.Snapshot{Loading: true, User: user, Profile: adminProfile}, models.RoleAdmin, ShowLoading},
		{"no user redirects to login", session.Snapshot{}, "", RedirectLogin},
		{"no user redirects regardless of role", session.Snapshot{}, models.RoleAdmin, RedirectLogin},
		{"role required before profile resolves", session.Snapshot{User: user}, models.RoleAdmin, ShowLoading},
		{"wrong role redirects unauthorized", session.Snapshot{User: user, Profile: userProfile}, models.RoleAdmin, RedirectUnauthorized},
		{"admin profile on user view redirects", session.Snapshot{User: user, Profile: adminProfile}, models.RoleUser, RedirectUnauthorized},
		{"matching role allows", session.Snapshot{User: user, Profile: adminProfile}, models.RoleAdmin, Allow},
		{"no role requirement allows any identity", session.Snapshot{User: user}, "", Allow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Evaluate(tt.snap, tt.role); got != tt.want {
				t.Errorf("Evaluate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestProfileFailureStillGatesRoleViews(t *testing.T) {
	// Profile resolution failed: identity known, role unknown. A
	// role-gated view keeps its placeholder rather than guessing.
	snap := session.Snapshot{User: &session.Identity{UID: "u1"}, ProfileErr: errors.New("auth/me 500")}
	if got := Evaluate(snap, models.RoleAdmin); got != ShowLoading {
		t.Fatalf("Evaluate() = %v, want ShowLoading", got)
	}
	// Views without a role requirement still render for the identity.
	if got := Evaluate(snap, ""); got != Allow {
		t.Fatalf("Evaluate() = %v, want Allow", got)
	}
}
