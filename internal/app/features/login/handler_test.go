package login_test

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/dalemusser/taskhub/internal/app/features/login"
	"github.com/dalemusser/taskhub/internal/app/services/accounts"
	"github.com/dalemusser/taskhub/internal/app/system/auth"
	"github.com/dalemusser/taskhub/internal/app/system/ratelimit"
	"github.com/dalemusser/taskhub/internal/app/system/tokens"
	"github.com/dalemusser/taskhub/internal/testutil"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type session struct {
	Token string `json:"token"`
	User  struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
}

func newRouter(t *testing.T, limiter *ratelimit.LoginLimiter) (http.Handler, *testutil.MailRecorder) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	issuer, err := tokens.NewIssuer(tokens.Config{Secret: "0123456789abcdef0123456789abcdef"})
	if err != nil {
		t.Fatal(err)
	}
	sm, err := auth.NewSessionManager("fedcba9876543210fedcba9876543210", "taskhub-session", "", time.Hour, false, issuer, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	mail := &testutil.MailRecorder{}
	svc := accounts.New(db, issuer, mail, nil, zap.NewNop(), accounts.Config{BaseURL: "https://taskhub.test"})
	h := login.NewHandler(svc, sm, limiter, nil, zap.NewNop())

	r := chi.NewRouter()
	r.Use(sm.LoadSessionUser)
	r.Mount("/auth", login.Routes(h))
	return r, mail
}

func do(h http.Handler, req *http.Request) *testutil.ResponseRecorder {
	rec := testutil.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRegisterLoginMe(t *testing.T) {
	h, _ := newRouter(t, nil)

	rec := do(h, testutil.NewJSONRequest(http.MethodPost, "/auth/register", map[string]string{
		"email": "ada@example.com", "password": "Passw0rd!", "firstName": "Ada", "lastName": "Lovelace",
	}))
	rec.AssertStatus(t, http.StatusCreated)
	var reg session
	rec.DecodeJSON(t, &reg)
	if reg.Token == "" || reg.User.Email != "ada@example.com" {
		t.Fatalf("register response = %+v", reg)
	}
	if len(rec.Result().Cookies()) == 0 {
		t.Error("expected session cookie")
	}

	rec = do(h, testutil.NewJSONRequest(http.MethodPost, "/auth/login", map[string]string{
		"email": "ADA@example.com", "password": "Passw0rd!",
	}))
	rec.AssertStatus(t, http.StatusOK)
	var in session
	rec.DecodeJSON(t, &in)

	req := testutil.NewRequest(http.MethodGet, "/auth/me")
	req.Header.Set("Authorization", "Bearer "+in.Token)
	rec = do(h, req)
	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, `"email":"ada@example.com"`)
	if body := rec.Body.String(); strings.Contains(body, "password_hash") {
		t.Errorf("me leaked password field: %s", body)
	}
}

func TestRegister_Errors(t *testing.T) {
	h, _ := newRouter(t, nil)
	ok := map[string]string{"email": "a@example.com", "password": "Passw0rd!"}
	do(h, testutil.NewJSONRequest(http.MethodPost, "/auth/register", ok)).AssertStatus(t, http.StatusCreated)

	tests := []struct {
		name   string
		body   any
		status int
	}{
		{"duplicate email", ok, http.StatusConflict},
		{"weak password", map[string]string{"email": "b@example.com", "password": "short"}, http.StatusUnprocessableEntity},
		{"missing email", map[string]string{"password": "Passw0rd!"}, http.StatusUnprocessableEntity},
		{"no body", nil, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			do(h, testutil.NewJSONRequest(http.MethodPost, "/auth/register", tt.body)).AssertStatus(t, tt.status)
		})
	}
}

func TestLogin_WrongPasswordAndRateLimit(t *testing.T) {
	h, _ := newRouter(t, ratelimit.NewLoginLimiterWithConfig(100, time.Minute, 2, time.Minute))
	do(h, testutil.NewJSONRequest(http.MethodPost, "/auth/register", map[string]string{
		"email": "a@example.com", "password": "Passw0rd!",
	})).AssertStatus(t, http.StatusCreated)

	bad := map[string]string{"email": "a@example.com", "password": "Wrong000"}
	rec := do(h, testutil.NewJSONRequest(http.MethodPost, "/auth/login", bad))
	rec.AssertStatus(t, http.StatusUnauthorized)
	rec.AssertContains(t, "invalid email or password")

	do(h, testutil.NewJSONRequest(http.MethodPost, "/auth/login", bad)).AssertStatus(t, http.StatusUnauthorized)
	rec = do(h, testutil.NewJSONRequest(http.MethodPost, "/auth/login", bad))
	rec.AssertStatus(t, http.StatusTooManyRequests)
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
}

func TestMe_RequiresSignIn(t *testing.T) {
	h, _ := newRouter(t, nil)
	rec := do(h, testutil.NewRequest(http.MethodGet, "/auth/me"))
	rec.AssertStatus(t, http.StatusUnauthorized)

	req := testutil.NewRequest(http.MethodGet, "/auth/me")
	req.Header.Set("Authorization", "Bearer not-a-token")
	do(h, req).AssertStatus(t, http.StatusUnauthorized)
}

func TestForgotPassword_SameAnswerForUnknownEmail(t *testing.T) {
	h, mail := newRouter(t, nil)
	do(h, testutil.NewJSONRequest(http.MethodPost, "/auth/register", map[string]string{
		"email": "a@example.com", "password": "Passw0rd!",
	})).AssertStatus(t, http.StatusCreated)

	known := do(h, testutil.NewJSONRequest(http.MethodPost, "/auth/forgot-password", map[string]string{"email": "a@example.com"}))
	unknown := do(h, testutil.NewJSONRequest(http.MethodPost, "/auth/forgot-password", map[string]string{"email": "nobody@example.com"}))
	known.AssertStatus(t, http.StatusOK)
	unknown.AssertStatus(t, http.StatusOK)
	if known.Body.String() != unknown.Body.String() {
		t.Errorf("responses differ:\n%s\n%s", known.Body.String(), unknown.Body.String())
	}
	if n := len(mail.Sent()); n != 1 {
		t.Errorf("sent %d emails, want 1", n)
	}
}

func TestResetPassword_BadToken(t *testing.T) {
	h, _ := newRouter(t, nil)
	rec := do(h, testutil.NewJSONRequest(http.MethodPost, "/auth/reset-password", map[string]string{
		"email": "a@example.com", "token": "garbage", "newPassword": "Passw0rd!",
	}))
	rec.AssertStatus(t, http.StatusUnprocessableEntity)
	rec.AssertContains(t, "reset link is invalid or has expired")
}

func TestLogout_ClearsCookie(t *testing.T) {
	h, _ := newRouter(t, nil)
	rec := do(h, testutil.WithUser(testutil.NewRequest(http.MethodPost, "/auth/logout"), testutil.NewTestUser("A", "a@example.com")))
	rec.AssertStatus(t, http.StatusNoContent)
	cookies := rec.Result().Cookies()
	if len(cookies) == 0 || cookies[0].MaxAge >= 0 {
		t.Errorf("expected expired cookie, got %+v", cookies)
	}
}
