package accounts_test

import (
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/dalemusser/taskhub/internal/app/services/accounts"
	"github.com/dalemusser/taskhub/internal/app/store/audit"
	"github.com/dalemusser/taskhub/internal/app/system/apperr"
	"github.com/dalemusser/taskhub/internal/app/system/auditlog"
	"github.com/dalemusser/taskhub/internal/app/system/tokens"
	"github.com/dalemusser/taskhub/internal/domain/models"
	"github.com/dalemusser/taskhub/internal/testutil"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type env struct {
	svc    *accounts.Service
	issuer *tokens.Issuer
	mail   *testutil.MailRecorder
	events *audit.Store
	fx     *testutil.Fixtures
	db     *mongo.Database
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := testutil.SetupTestDB(t)
	issuer, err := tokens.NewIssuer(tokens.Config{
		Secret: "0123456789abcdef0123456789abcdef",
		Issuer: "taskhub-test",
	})
	if err != nil {
		t.Fatal(err)
	}
	events := audit.New(db)
	al := auditlog.New(events, zap.NewNop(), auditlog.Config{Auth: "db", Team: "off"})
	mail := &testutil.MailRecorder{}
	return &env{
		svc:    accounts.New(db, issuer, mail, al, zap.NewNop(), accounts.Config{BaseURL: "https://taskhub.test"}),
		issuer: issuer,
		mail:   mail,
		events: events,
		fx:     testutil.NewFixtures(t, db),
		db:     db,
	}
}

func TestRegisterThenLogin(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	reg, err := e.svc.Register(ctx, " Ada@Example.com ", "Passw0rd!", "Ada", "Lovelace")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if reg.User.Email != "ada@example.com" || reg.Token == "" || reg.User.PasswordHash != "" {
		t.Errorf("register session = %+v", reg)
	}

	s, err := e.svc.Login(ctx, "ADA@example.com", "Passw0rd!")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	c, err := e.issuer.ParseSession(s.Token)
	if err != nil || c.Subject != reg.User.ID.Hex() {
		t.Errorf("session claims = %+v, %v", c, err)
	}

	if _, err := e.svc.Register(ctx, "ada@example.com", "Passw0rd!", "A", "L"); !apperr.Is(err, apperr.KindConflict) {
		t.Errorf("duplicate register err = %v, want Conflict", err)
	}
}

func TestRegister_Validation(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	tests := []struct {
		name, email, password string
	}{
		{"bad email", "nope", "Passw0rd!"},
		{"short password", "a@x.com", "Pw0!"},
		{"no digit", "a@x.com", "Password!"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.svc.Register(ctx, tt.email, tt.password, "A", "B")
			if !apperr.Is(err, apperr.KindInvalidOperation) {
				t.Errorf("err = %v, want InvalidOperation", err)
			}
		})
	}
}

func TestLogin_FailuresAreIndistinguishable(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	e.fx.CreateUser(ctx, "Ada", "a@x.com")
	e.fx.CreateDisabledUser(ctx, "Dee", "d@x.com")

	tests := []struct {
		name, email, password string
	}{
		{"unknown email", "nobody@x.com", testutil.DefaultPassword},
		{"wrong password", "a@x.com", "Wrong0ne!"},
		{"disabled", "d@x.com", testutil.DefaultPassword},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.svc.Login(ctx, tt.email, tt.password)
			if !apperr.Is(err, apperr.KindUnauthorized) {
				t.Fatalf("err = %v, want Unauthorized", err)
			}
			if apperr.Message(err) != "invalid email or password" {
				t.Errorf("message = %q", apperr.Message(err))
			}
		})
	}

	failed, err := e.events.GetFailedLogins(ctx, time.Now().Add(-time.Minute), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(failed) != 3 {
		t.Errorf("failed login events = %d, want 3", len(failed))
	}
}

func TestForgotAndResetPassword(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	e.fx.CreateUser(ctx, "Ada", "a@x.com")

	if err := e.svc.ForgotPassword(ctx, "nobody@x.com"); err != nil {
		t.Fatalf("unknown email should still succeed: %v", err)
	}
	if len(e.mail.Sent()) != 0 {
		t.Fatal("no email should go to an unknown address")
	}

	if err := e.svc.ForgotPassword(ctx, "A@x.com"); err != nil {
		t.Fatal(err)
	}
	sent := e.mail.Sent()
	if len(sent) != 1 || sent[0].To != "a@x.com" {
		t.Fatalf("sent = %+v", sent)
	}
	token := resetToken(t, sent[0].TextBody)

	if err := e.svc.ResetPassword(ctx, "other@x.com", token, "N3wPassword"); !apperr.Is(err, apperr.KindInvalidOperation) {
		t.Errorf("subject mismatch err = %v", err)
	}
	if err := e.svc.ResetPassword(ctx, "a@x.com", token, "weak"); !apperr.Is(err, apperr.KindInvalidOperation) {
		t.Errorf("weak password err = %v", err)
	}
	if err := e.svc.ResetPassword(ctx, "a@x.com", token, "N3wPassword"); err != nil {
		t.Fatalf("ResetPassword: %v", err)
	}
	if _, err := e.svc.Login(ctx, "a@x.com", "N3wPassword"); err != nil {
		t.Errorf("login with new password: %v", err)
	}
}

func TestResetPassword_RejectsSessionToken(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	u := e.fx.CreateUser(ctx, "Ada", "a@x.com")
	tok, _, err := e.issuer.IssueSession(u.ID.Hex(), u.Email, "Ada")
	if err != nil {
		t.Fatal(err)
	}
	if err := e.svc.ResetPassword(ctx, "a@x.com", tok, "N3wPassword"); !apperr.Is(err, apperr.KindInvalidOperation) {
		t.Errorf("err = %v, want InvalidOperation", err)
	}
}

func TestGoogleSignIn(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	e.fx.CreateUser(ctx, "Ada", "a@x.com")

	s, err := e.svc.GoogleSignIn(ctx, accounts.GoogleIdentity{Email: "g@x.com", EmailVerified: true, Name: "Gee Whiz"})
	if err != nil {
		t.Fatalf("first sign in: %v", err)
	}
	if s.User.AuthMethod != models.AuthMethodGoogle || !s.User.EmailConfirmed || s.User.FullName != "Gee Whiz" {
		t.Errorf("user = %+v", s.User)
	}
	again, err := e.svc.GoogleSignIn(ctx, accounts.GoogleIdentity{Email: "G@x.com", EmailVerified: true})
	if err != nil || again.User.ID != s.User.ID {
		t.Errorf("second sign in = %+v, %v", again.User, err)
	}

	if _, err := e.svc.GoogleSignIn(ctx, accounts.GoogleIdentity{Email: "a@x.com", EmailVerified: true}); !apperr.Is(err, apperr.KindConflict) {
		t.Errorf("password account err = %v, want Conflict", err)
	}
	if _, err := e.svc.GoogleSignIn(ctx, accounts.GoogleIdentity{Email: "u@x.com"}); !apperr.Is(err, apperr.KindUnauthorized) {
		t.Errorf("unverified err = %v, want Unauthorized", err)
	}
}

func resetToken(t *testing.T, body string) string {
	t.Helper()
	i := strings.Index(body, "https://taskhub.test/reset-password?")
	if i < 0 {
		t.Fatalf("no reset link in:\n%s", body)
	}
	link := strings.Fields(body[i:])[0]
	u, err := url.Parse(link)
	if err != nil {
		t.Fatal(err)
	}
	return u.Query().Get("token")
}
