package invitations_test

import (
	"testing"
	"time"

	"github.com/dalemusser/taskhub/internal/app/services/invitations"
	"github.com/dalemusser/taskhub/internal/app/services/teams"
	"github.com/dalemusser/taskhub/internal/app/system/apperr"
	"github.com/dalemusser/taskhub/internal/app/system/cache"
	"github.com/dalemusser/taskhub/internal/app/system/tokens"
	"github.com/dalemusser/taskhub/internal/domain/models"
	"github.com/dalemusser/taskhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

const week = 7 * 24 * time.Hour

type env struct {
	svc    *invitations.Service
	teams  *teams.Service
	issuer *tokens.Issuer
	fx     *testutil.Fixtures
	db     *mongo.Database
	cache  *cache.Memory
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := testutil.SetupTestDB(t)
	issuer, err := tokens.NewIssuer(tokens.Config{
		Secret: "0123456789abcdef0123456789abcdef",
		Issuer: "taskhub-test",
	})
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	c := cache.NewMemory()
	return &env{
		svc:    invitations.New(db, issuer, c, nil, zap.NewNop()),
		teams:  teams.New(db, c, &testutil.MailRecorder{}, nil, zap.NewNop(), teams.Config{BaseURL: "https://taskhub.test"}),
		issuer: issuer,
		fx:     testutil.NewFixtures(t, db),
		db:     db,
		cache:  c,
	}
}

func (e *env) invitation(t *testing.T, email string) models.TeamInvitation {
	t.Helper()
	ctx, cancel := testutil.TestContext()
	defer cancel()
	var inv models.TeamInvitation
	if err := e.db.Collection("team_invitations").FindOne(ctx, bson.M{"email": email}).Decode(&inv); err != nil {
		t.Fatalf("load invitation for %s: %v", email, err)
	}
	return inv
}

func TestInviteAndAccept_NewAccount(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	a := e.fx.CreateUser(ctx, "Ada", "a@x.com")
	team, err := e.teams.Create(ctx, a.ID, "Eng", "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.teams.Invite(ctx, a.ID, team.ID, "b@x.com"); err != nil {
		t.Fatal(err)
	}
	token := e.invitation(t, "b@x.com").Token

	ok, err := e.svc.ValidateToken(ctx, token)
	if err != nil || !ok {
		t.Fatalf("ValidateToken before accept = %v, %v; want true", ok, err)
	}

	res, err := e.svc.Accept(ctx, token, "Passw0rd!", "Bo", "Bee")
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if res.User.Email != "b@x.com" || !res.User.EmailConfirmed || res.User.FullName != "Bo Bee" {
		t.Errorf("user = %+v", res.User)
	}
	if res.User.PasswordHash != "" {
		t.Error("password hash leaked in result")
	}

	var m models.TeamMember
	if err := e.db.Collection("team_members").FindOne(ctx, bson.M{"team_id": team.ID, "user_id": res.User.ID}).Decode(&m); err != nil {
		t.Fatalf("membership row: %v", err)
	}
	if m.Role != models.RoleMember {
		t.Errorf("role = %v, want Member", m.Role)
	}

	inv := e.invitation(t, "b@x.com")
	if !inv.IsAccepted || inv.AcceptedAt == nil {
		t.Errorf("invitation not marked accepted: %+v", inv)
	}
	if ok, _ := e.svc.ValidateToken(ctx, token); ok {
		t.Error("ValidateToken after accept = true, want false")
	}

	claims, err := e.issuer.ParseSession(res.Token)
	if err != nil {
		t.Fatalf("session token: %v", err)
	}
	if claims.Subject != res.User.ID.Hex() {
		t.Errorf("session subject = %s", claims.Subject)
	}

	list, err := e.teams.List(ctx, res.User.ID)
	if err != nil || len(list) != 1 || list[0].ID != team.ID {
		t.Errorf("new member's teams = %+v, %v", list, err)
	}
}

func TestAccept_InvalidTokensShareOneMessage(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	a := e.fx.CreateUser(ctx, "Ada", "a@x.com")
	team := e.fx.CreateTeam(ctx, "Eng", a.ID)
	e.fx.CreateInvitation(ctx, team.ID, a.ID, "used@x.com", "tok-used", week)
	e.fx.CreateInvitation(ctx, team.ID, a.ID, "old@x.com", "tok-old", -time.Hour)

	if _, err := e.svc.Accept(ctx, "tok-used", "Passw0rd!", "U", "Sed"); err != nil {
		t.Fatalf("first accept: %v", err)
	}

	var msgs []string
	for _, tok := range []string{"tok-used", "tok-old", "no-such-token", ""} {
		_, err := e.svc.Accept(ctx, tok, "Passw0rd!", "X", "Y")
		if !apperr.Is(err, apperr.KindInvalidOperation) {
			t.Fatalf("Accept(%q) err = %v, want InvalidOperation", tok, err)
		}
		msgs = append(msgs, apperr.Message(err))
	}
	for _, m := range msgs[1:] {
		if m != msgs[0] {
			t.Errorf("messages differ: %q vs %q", m, msgs[0])
		}
	}
}

func TestValidateToken_Expiry(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	a := e.fx.CreateUser(ctx, "Ada", "a@x.com")
	team := e.fx.CreateTeam(ctx, "Eng", a.ID)
	e.fx.CreateInvitation(ctx, team.ID, a.ID, "b@x.com", "tok", week)

	if ok, _ := e.svc.ValidateToken(ctx, "tok"); !ok {
		t.Fatal("fresh invitation should be valid")
	}
	e.svc.SetClock(func() time.Time { return time.Now().UTC().Add(week + time.Hour) })
	if ok, _ := e.svc.ValidateToken(ctx, "tok"); ok {
		t.Error("invitation past expiry should be invalid")
	}
	if _, err := e.svc.Accept(ctx, "tok", "Passw0rd!", "B", "B"); !apperr.Is(err, apperr.KindInvalidOperation) {
		t.Errorf("Accept after expiry err = %v", err)
	}
}

func TestAccept_WeakPasswordWritesNothing(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	a := e.fx.CreateUser(ctx, "Ada", "a@x.com")
	team := e.fx.CreateTeam(ctx, "Eng", a.ID)
	e.fx.CreateInvitation(ctx, team.ID, a.ID, "b@x.com", "tok", week)

	_, err := e.svc.Accept(ctx, "tok", "short", "B", "B")
	if !apperr.Is(err, apperr.KindInvalidOperation) {
		t.Fatalf("err = %v, want InvalidOperation", err)
	}
	n, _ := e.db.Collection("users").CountDocuments(ctx, bson.M{"email": "b@x.com"})
	if n != 0 {
		t.Error("user created despite rejected password")
	}
	if ok, _ := e.svc.ValidateToken(ctx, "tok"); !ok {
		t.Error("invitation consumed by a failed accept")
	}
}

func TestAccept_ExistingAccountConflicts(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	a := e.fx.CreateUser(ctx, "Ada", "a@x.com")
	e.fx.CreateUser(ctx, "Bo", "b@x.com")
	team := e.fx.CreateTeam(ctx, "Eng", a.ID)
	e.fx.CreateInvitation(ctx, team.ID, a.ID, "b@x.com", "tok", week)

	_, err := e.svc.Accept(ctx, "tok", "Passw0rd!", "B", "B")
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("err = %v, want Conflict", err)
	}
	n, _ := e.db.Collection("team_members").CountDocuments(ctx, bson.M{"team_id": team.ID})
	if n != 1 {
		t.Errorf("team members = %d, want only the owner", n)
	}
	if ok, _ := e.svc.ValidateToken(ctx, "tok"); !ok {
		t.Error("invitation should still be pending")
	}
}

func TestAcceptForExistingUser(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	a := e.fx.CreateUser(ctx, "Ada", "a@x.com")
	b := e.fx.CreateUser(ctx, "Bo", "b@x.com")
	c := e.fx.CreateUser(ctx, "Cy", "c@x.com")
	team := e.fx.CreateTeam(ctx, "Eng", a.ID)
	e.fx.CreateInvitation(ctx, team.ID, a.ID, "b@x.com", "tok", week)

	if _, err := e.svc.AcceptForExistingUser(ctx, c.ID, "tok"); !apperr.Is(err, apperr.KindInvalidOperation) {
		t.Errorf("mismatched email err = %v, want InvalidOperation", err)
	}

	teamID, err := e.svc.AcceptForExistingUser(ctx, b.ID, "tok")
	if err != nil {
		t.Fatalf("AcceptForExistingUser: %v", err)
	}
	if teamID != team.ID {
		t.Errorf("team = %s", teamID.Hex())
	}
	n, _ := e.db.Collection("team_members").CountDocuments(ctx, bson.M{"team_id": team.ID, "user_id": b.ID})
	if n != 1 {
		t.Errorf("membership rows = %d, want 1", n)
	}
	if _, err := e.svc.AcceptForExistingUser(ctx, b.ID, "tok"); !apperr.Is(err, apperr.KindInvalidOperation) {
		t.Errorf("second accept err = %v, want InvalidOperation", err)
	}
}

func TestAcceptForExistingUser_AlreadyMember(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	a := e.fx.CreateUser(ctx, "Ada", "a@x.com")
	b := e.fx.CreateUser(ctx, "Bo", "b@x.com")
	team := e.fx.CreateTeam(ctx, "Eng", a.ID)
	e.fx.AddTeamMember(ctx, team.ID, b.ID, models.RoleAdmin)
	e.fx.CreateInvitation(ctx, team.ID, a.ID, "b@x.com", "old-link", week)

	teamID, err := e.svc.AcceptForExistingUser(ctx, b.ID, "old-link")
	if err != nil {
		t.Fatalf("AcceptForExistingUser: %v", err)
	}
	if teamID != team.ID {
		t.Errorf("team = %s", teamID.Hex())
	}

	var rows []models.TeamMember
	cur, err := e.db.Collection("team_members").Find(ctx, bson.M{"team_id": team.ID, "user_id": b.ID})
	if err != nil {
		t.Fatal(err)
	}
	if err := cur.All(ctx, &rows); err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].Role != models.RoleAdmin {
		t.Errorf("membership rows = %+v, want one Admin row", rows)
	}
	if inv := e.invitation(t, "b@x.com"); !inv.IsAccepted {
		t.Error("invitation was not marked accepted")
	}
}

func TestGetInvitation(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	a := e.fx.CreateUser(ctx, "Ada", "a@x.com")
	team := e.fx.CreateTeam(ctx, "Eng", a.ID)
	e.fx.CreateInvitation(ctx, team.ID, a.ID, "b@x.com", "tok", week)

	info, err := e.svc.GetInvitation(ctx, "tok")
	if err != nil {
		t.Fatal(err)
	}
	if !info.Valid || info.TeamName != "Eng" || info.Email != "b@x.com" {
		t.Errorf("info = %+v", info)
	}

	info, err = e.svc.GetInvitation(ctx, "nope")
	if err != nil || info.Valid {
		t.Errorf("unknown token info = %+v, %v", info, err)
	}
}
