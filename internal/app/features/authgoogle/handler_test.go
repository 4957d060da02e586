package authgoogle_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/dalemusser/taskhub/internal/app/features/authgoogle"
	"github.com/dalemusser/taskhub/internal/app/services/accounts"
	"github.com/dalemusser/taskhub/internal/app/services/invitations"
	"github.com/dalemusser/taskhub/internal/app/store/oauthstate"
	"github.com/dalemusser/taskhub/internal/app/system/auth"
	"github.com/dalemusser/taskhub/internal/app/system/cache"
	"github.com/dalemusser/taskhub/internal/app/system/tokens"
	"github.com/dalemusser/taskhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

type env struct {
	h  *authgoogle.Handler
	db *mongo.Database
	fx *testutil.Fixtures
}

// newEnv wires the handler to a fake provider that reports email as the
// signed-in Google identity.
func newEnv(t *testing.T, clientID, email string, verified bool) *env {
	t.Helper()
	db := testutil.SetupTestDB(t)
	logger := zap.NewNop()

	issuer, err := tokens.NewIssuer(tokens.Config{Secret: "0123456789abcdef0123456789abcdef"})
	if err != nil {
		t.Fatal(err)
	}
	sm, err := auth.NewSessionManager("fedcba9876543210fedcba9876543210", "taskhub-session", "", time.Hour, false, issuer, logger)
	if err != nil {
		t.Fatal(err)
	}

	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/token":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"access_token": "access", "token_type": "Bearer", "expires_in": 3600,
			})
		case "/userinfo":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"id": "g-1", "email": email, "verified_email": verified,
				"given_name": "Grace", "family_name": "Hopper", "name": "Grace Hopper",
			})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(provider.Close)

	acct := accounts.New(db, issuer, nil, nil, logger, accounts.Config{})
	inv := invitations.New(db, issuer, cache.NewMemory(), nil, logger)
	h := authgoogle.NewHandler(acct, inv, sm, oauthstate.New(db), clientID, "secret", "http://localhost:8080", logger)
	h.Endpoint = oauth2.Endpoint{
		AuthURL:   "https://accounts.google.com/o/oauth2/auth",
		TokenURL:  provider.URL + "/token",
		AuthStyle: oauth2.AuthStyleInParams,
	}
	h.UserInfoURL = provider.URL + "/userinfo"
	return &env{h: h, db: db, fx: testutil.NewFixtures(t, db)}
}

// begin runs ServeLogin and returns the state Google would echo back.
func (e *env) begin(t *testing.T, target string) string {
	t.Helper()
	rec := httptest.NewRecorder()
	e.h.ServeLogin(rec, httptest.NewRequest("GET", target, nil))
	if rec.Code != http.StatusTemporaryRedirect {
		t.Fatalf("ServeLogin status = %d, body %s", rec.Code, rec.Body.String())
	}
	loc, err := url.Parse(rec.Header().Get("Location"))
	if err != nil {
		t.Fatal(err)
	}
	if loc.Host != "accounts.google.com" {
		t.Errorf("redirect host = %q", loc.Host)
	}
	return loc.Query().Get("state")
}

func (e *env) callback(state string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.h.ServeCallback(rec, httptest.NewRequest("GET", "/auth/google/callback?code=abc&state="+url.QueryEscape(state), nil))
	return rec
}

func TestServeLogin_NotConfigured(t *testing.T) {
	e := newEnv(t, "", "g@example.com", true)
	rec := httptest.NewRecorder()
	e.h.ServeLogin(rec, httptest.NewRequest("GET", "/auth/google", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestServeEnabled(t *testing.T) {
	tests := []struct {
		clientID string
		want     string
	}{
		{"", `{"enabled":false}`},
		{"client", `{"enabled":true}`},
	}
	for _, tt := range tests {
		e := newEnv(t, tt.clientID, "g@example.com", true)
		rec := httptest.NewRecorder()
		authgoogle.Routes(e.h).ServeHTTP(rec, httptest.NewRequest("GET", "/enabled", nil))
		if got := strings.TrimSpace(rec.Body.String()); got != tt.want {
			t.Errorf("clientID %q: body = %s, want %s", tt.clientID, got, tt.want)
		}
	}
}

func TestCallback_CreatesAccountAndSession(t *testing.T) {
	e := newEnv(t, "client", "grace@example.com", true)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	state := e.begin(t, "/auth/google?return=/boards")
	rec := e.callback(state)

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/boards" {
		t.Errorf("Location = %q, want /boards", loc)
	}
	if len(rec.Result().Cookies()) == 0 {
		t.Error("expected session cookie")
	}
	n, err := e.db.Collection("users").CountDocuments(ctx, bson.M{"email": "grace@example.com", "auth_method": "google"})
	if err != nil || n != 1 {
		t.Errorf("google users = %d, %v", n, err)
	}

	// A state is single-use.
	if loc := e.callback(state).Header().Get("Location"); !strings.Contains(loc, "invalid_state") {
		t.Errorf("replayed state: Location = %q", loc)
	}
}

func TestCallback_JoinsInvitedTeam(t *testing.T) {
	e := newEnv(t, "client", "grace@example.com", true)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	owner := e.fx.CreateUser(ctx, "Owner", "owner@example.com")
	team := e.fx.CreateTeam(ctx, "Eng", owner.ID)
	e.fx.CreateInvitation(ctx, team.ID, owner.ID, "grace@example.com", "invite-token", time.Hour)

	rec := e.callback(e.begin(t, "/auth/google?invite=invite-token"))
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d", rec.Code)
	}
	n, err := e.db.Collection("team_members").CountDocuments(ctx, bson.M{"team_id": team.ID})
	if err != nil || n != 2 {
		t.Errorf("team members = %d, %v; want 2", n, err)
	}
}

func TestCallback_Refusals(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		verified bool
		seed     bool
		want     string
	}{
		{"unverified email", "grace@example.com", false, false, "account_unavailable"},
		{"password account", "pw@example.com", true, true, "use_password"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t, "client", tt.email, tt.verified)
			if tt.seed {
				ctx, cancel := testutil.TestContext()
				defer cancel()
				e.fx.CreateUser(ctx, "Pw", tt.email)
			}
			rec := e.callback(e.begin(t, "/auth/google"))
			if loc := rec.Header().Get("Location"); !strings.Contains(loc, tt.want) {
				t.Errorf("Location = %q, want %q", loc, tt.want)
			}
		})
	}
}

func TestCallback_BadRequests(t *testing.T) {
	e := newEnv(t, "client", "g@example.com", true)

	tests := []struct {
		name  string
		query string
		want  string
	}{
		{"provider error", "?error=access_denied", "google_denied"},
		{"missing state", "?code=abc", "invalid_state"},
		{"unknown state", "?code=abc&state=nope", "invalid_state"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			e.h.ServeCallback(rec, httptest.NewRequest("GET", "/auth/google/callback"+tt.query, nil))
			if rec.Code != http.StatusSeeOther {
				t.Errorf("status = %d, want 303", rec.Code)
			}
			if loc := rec.Header().Get("Location"); !strings.Contains(loc, tt.want) {
				t.Errorf("Location = %q, want %q", loc, tt.want)
			}
		})
	}
}
