package auth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dalemusser/taskhub/internal/app/system/auth"
	"github.com/dalemusser/taskhub/internal/app/system/tokens"
	"go.uber.org/zap"
)

func newTestSessionManager(t *testing.T) (*auth.SessionManager, *tokens.Issuer) {
	t.Helper()
	issuer, err := tokens.NewIssuer(tokens.Config{Secret: "test-jwt-secret-that-is-long-enough-123"})
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	sm, err := auth.NewSessionManager(
		"test-session-key-must-be-32-chars-long",
		"test-session",
		"",
		24*time.Hour,
		false,
		issuer,
		zap.NewNop(),
	)
	if err != nil {
		t.Fatalf("failed to create session manager: %v", err)
	}
	return sm, issuer
}

// echoUser writes the current user's id, or "anon".
var echoUser = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	if u, ok := auth.CurrentUser(r); ok {
		w.Write([]byte(u.ID + "|" + u.Email + "|" + u.Name))
		return
	}
	w.Write([]byte("anon"))
})

type stubFetcher map[string]*auth.SessionUser

func (f stubFetcher) FetchUser(_ context.Context, id string) *auth.SessionUser { return f[id] }

func TestRequireSignedIn_NoUser_Returns401JSON(t *testing.T) {
	sm, _ := newTestSessionManager(t)

	handler := sm.RequireSignedIn(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/boards", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected status %d, got %d", http.StatusUnauthorized, rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"error":"unauthorized"`) {
		t.Errorf("unexpected body %q", rec.Body.String())
	}
}

func TestRequireSignedIn_WithUser_Proceeds(t *testing.T) {
	sm, _ := newTestSessionManager(t)

	called := false
	handler := sm.RequireSignedIn(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	req := auth.WithTestUser(httptest.NewRequest("GET", "/boards", nil), &auth.SessionUser{ID: "u1"})
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if !called {
		t.Error("expected handler to be called")
	}
}

func TestLoadSessionUser_BearerToken(t *testing.T) {
	sm, issuer := newTestSessionManager(t)
	tok, _, err := issuer.IssueSession("507f1f77bcf86cd799439011", "ada@example.com", "Ada")
	if err != nil {
		t.Fatalf("IssueSession: %v", err)
	}

	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"valid bearer", "Bearer " + tok, "507f1f77bcf86cd799439011|ada@example.com|Ada"},
		{"no header", "", "anon"},
		{"garbage token", "Bearer not-a-jwt", "anon"},
		{"wrong scheme", "Basic " + tok, "anon"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/auth/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			sm.LoadSessionUser(echoUser).ServeHTTP(rec, req)
			if got := rec.Body.String(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLoadSessionUser_ResetTokenIsNotASession(t *testing.T) {
	sm, issuer := newTestSessionManager(t)
	tok, err := issuer.IssuePasswordReset("ada@example.com")
	if err != nil {
		t.Fatalf("IssuePasswordReset: %v", err)
	}
	req := httptest.NewRequest("GET", "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	sm.LoadSessionUser(echoUser).ServeHTTP(rec, req)
	if rec.Body.String() != "anon" {
		t.Errorf("reset token must not authenticate, got %q", rec.Body.String())
	}
}

func TestLoadSessionUser_Cookie(t *testing.T) {
	sm, issuer := newTestSessionManager(t)
	tok, _, _ := issuer.IssueSession("507f1f77bcf86cd799439011", "ada@example.com", "Ada")

	// Start a session and capture the cookie.
	rec := httptest.NewRecorder()
	if err := sm.StartSession(rec, httptest.NewRequest("POST", "/auth/login", nil), tok); err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("expected a session cookie")
	}

	req := httptest.NewRequest("GET", "/auth/me", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec = httptest.NewRecorder()
	sm.LoadSessionUser(echoUser).ServeHTTP(rec, req)
	if !strings.HasPrefix(rec.Body.String(), "507f1f77bcf86cd799439011|") {
		t.Errorf("cookie session not loaded, got %q", rec.Body.String())
	}
}

func TestLoadSessionUser_FetcherRejectsDisabled(t *testing.T) {
	sm, issuer := newTestSessionManager(t)
	sm.SetUserFetcher(stubFetcher{
		"507f1f77bcf86cd799439011": {ID: "507f1f77bcf86cd799439011", Email: "ada@example.com", Name: "Ada L"},
	})

	active, _, _ := issuer.IssueSession("507f1f77bcf86cd799439011", "ada@example.com", "Ada")
	disabled, _, _ := issuer.IssueSession("507f1f77bcf86cd799439012", "bob@example.com", "Bob")

	req := httptest.NewRequest("GET", "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+active)
	rec := httptest.NewRecorder()
	sm.LoadSessionUser(echoUser).ServeHTTP(rec, req)
	if rec.Body.String() != "507f1f77bcf86cd799439011|ada@example.com|Ada L" {
		t.Errorf("fetched user not used, got %q", rec.Body.String())
	}

	req = httptest.NewRequest("GET", "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+disabled)
	rec = httptest.NewRecorder()
	sm.LoadSessionUser(echoUser).ServeHTTP(rec, req)
	if rec.Body.String() != "anon" {
		t.Errorf("disabled user should be anonymous, got %q", rec.Body.String())
	}
}

func TestEndSession_ExpiresCookie(t *testing.T) {
	sm, _ := newTestSessionManager(t)
	rec := httptest.NewRecorder()
	if err := sm.EndSession(rec, httptest.NewRequest("POST", "/auth/logout", nil)); err != nil {
		t.Fatalf("EndSession: %v", err)
	}
	for _, c := range rec.Result().Cookies() {
		if c.Name == "test-session" && c.MaxAge >= 0 {
			t.Errorf("expected expired cookie, MaxAge=%d", c.MaxAge)
		}
	}
}

func TestNewSessionManager_Validation(t *testing.T) {
	issuer, _ := tokens.NewIssuer(tokens.Config{Secret: "test-jwt-secret-that-is-long-enough-123"})
	if _, err := auth.NewSessionManager("", "s", "", time.Hour, false, issuer, zap.NewNop()); err == nil {
		t.Error("expected error for empty key")
	}
	if _, err := auth.NewSessionManager("test-session-key-must-be-32-chars-long", "s", "", time.Hour, false, nil, zap.NewNop()); err == nil {
		t.Error("expected error for nil issuer")
	}
}
