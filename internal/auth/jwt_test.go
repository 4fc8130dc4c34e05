package auth

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/joao-fontenele/marketplace-api/internal/domain"
)

var testSecret = []byte("test-secret")

func issueTestToken(t *testing.T, user *domain.User, ttl time.Duration) string {
	t.Helper()
	token, err := IssueToken(testSecret, user, ttl)
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}
	return token
}

func TestIssueAndParseToken(t *testing.T) {
	t.Run("round trip preserves the actor", func(t *testing.T) {
		token := issueTestToken(t, &domain.User{ID: "user-1", Role: domain.RoleProvider}, time.Hour)

		actor, err := ParseToken(testSecret, token)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if actor.ID != "user-1" {
			t.Errorf("expected actor id user-1, got %s", actor.ID)
		}
		if actor.Role != domain.RoleProvider {
			t.Errorf("expected role PROVIDER, got %s", actor.Role)
		}
	})

	t.Run("rejects a token signed with another secret", func(t *testing.T) {
		token, err := IssueToken([]byte("other-secret"), &domain.User{ID: "user-1", Role: domain.RoleUser}, time.Hour)
		if err != nil {
			t.Fatalf("failed to issue token: %v", err)
		}

		if _, err := ParseToken(testSecret, token); err == nil {
			t.Fatal("expected an error for a foreign signature")
		}
	})

	t.Run("rejects an expired token", func(t *testing.T) {
		token := issueTestToken(t, &domain.User{ID: "user-1", Role: domain.RoleUser}, -time.Minute)

		if _, err := ParseToken(testSecret, token); err == nil {
			t.Fatal("expected an error for an expired token")
		}
	})
}

func TestMiddleware(t *testing.T) {
	mw := NewMiddleware(testSecret, slog.New(slog.NewTextHandler(io.Discard, nil)))

	echoActor := func(w http.ResponseWriter, r *http.Request) {
		actor, ok := ActorFromContext(r.Context())
		if !ok {
			t.Error("actor missing from context")
		}
		_, _ = w.Write([]byte(actor.ID + ":" + actor.Role))
	}

	t.Run("passes a valid bearer token through", func(t *testing.T) {
		token := issueTestToken(t, &domain.User{ID: "user-1", Role: domain.RoleUser}, time.Hour)

		req := httptest.NewRequest(http.MethodGet, "/orders", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()

		mw.Require(echoActor)(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rec.Code)
		}
		if rec.Body.String() != "user-1:USER" {
			t.Errorf("unexpected body: %s", rec.Body.String())
		}
	})

	t.Run("rejects a missing token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/orders", nil)
		rec := httptest.NewRecorder()

		mw.Require(echoActor)(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("expected status 401, got %d", rec.Code)
		}
	})

	t.Run("rejects a garbage token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/orders", nil)
		req.Header.Set("Authorization", "Bearer not-a-token")
		rec := httptest.NewRecorder()

		mw.Require(echoActor)(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("expected status 401, got %d", rec.Code)
		}
	})

	t.Run("role gate rejects the wrong role", func(t *testing.T) {
		token := issueTestToken(t, &domain.User{ID: "user-1", Role: domain.RoleUser}, time.Hour)

		req := httptest.NewRequest(http.MethodGet, "/providers", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()

		mw.RequireRole(echoActor, domain.RoleAdmin)(rec, req)

		if rec.Code != http.StatusForbidden {
			t.Errorf("expected status 403, got %d", rec.Code)
		}
	})

	t.Run("role gate accepts any of the listed roles", func(t *testing.T) {
		token := issueTestToken(t, &domain.User{ID: "admin-1", Role: domain.RoleAdmin}, time.Hour)

		req := httptest.NewRequest(http.MethodGet, "/movements", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()

		mw.RequireRole(echoActor, domain.RoleAdmin, domain.RoleProvider)(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", rec.Code)
		}
	})
}
