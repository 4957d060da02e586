package teams_test

import (
	"net/http"
	"testing"

	"github.com/dalemusser/taskhub/internal/app/features/teams"
	teamsvc "github.com/dalemusser/taskhub/internal/app/services/teams"
	"github.com/dalemusser/taskhub/internal/app/store/audit"
	"github.com/dalemusser/taskhub/internal/app/system/auditlog"
	"github.com/dalemusser/taskhub/internal/app/system/cache"
	"github.com/dalemusser/taskhub/internal/domain/models"
	"github.com/dalemusser/taskhub/internal/testutil"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type env struct {
	router http.Handler
	fx     *testutil.Fixtures
	mail   *testutil.MailRecorder
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := testutil.SetupTestDB(t)
	mail := &testutil.MailRecorder{}
	al := auditlog.New(audit.New(db), zap.NewNop(), auditlog.Config{Auth: "off", Team: "db"})
	svc := teamsvc.New(db, cache.NewMemory(), mail, al, zap.NewNop(), teamsvc.Config{BaseURL: "https://taskhub.test"})

	r := chi.NewRouter()
	r.Mount("/teams", teams.Routes(teams.NewHandler(svc, zap.NewNop())))
	return &env{router: r, fx: testutil.NewFixtures(t, db), mail: mail}
}

func (e *env) do(req *http.Request) *testutil.ResponseRecorder {
	rec := testutil.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *env) as(u models.User, method, target string, body any) *testutil.ResponseRecorder {
	var req *http.Request
	if body != nil {
		req = testutil.NewJSONRequest(method, target, body)
	} else {
		req = testutil.NewRequest(method, target)
	}
	return e.do(testutil.WithUser(req, testutil.AsTestUser(u)))
}

func TestCreateAndList(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	ann := e.fx.CreateUser(ctx, "Ann", "ann@example.com")

	rec := e.as(ann, http.MethodPost, "/teams", map[string]string{"name": "  Platform  ", "description": "infra"})
	rec.AssertStatus(t, http.StatusCreated)

	rec = e.as(ann, http.MethodGet, "/teams", nil)
	rec.AssertStatus(t, http.StatusOK)
	var list []struct {
		Name        string `json:"name"`
		Role        string `json:"role"`
		MemberCount int    `json:"member_count"`
	}
	rec.DecodeJSON(t, &list)
	if len(list) != 1 || list[0].Name != "Platform" || list[0].Role != "owner" || list[0].MemberCount != 1 {
		t.Errorf("list = %+v", list)
	}

	e.as(ann, http.MethodPost, "/teams", map[string]string{"name": ""}).AssertStatus(t, http.StatusUnprocessableEntity)
	e.do(testutil.NewRequest(http.MethodGet, "/teams")).AssertStatus(t, http.StatusUnauthorized)
}

func TestDetailAndUpdate_Permissions(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	owner := e.fx.CreateUser(ctx, "Owner", "owner@example.com")
	member := e.fx.CreateUser(ctx, "Member", "member@example.com")
	outsider := e.fx.CreateUser(ctx, "Out", "out@example.com")
	team := e.fx.CreateTeam(ctx, "Eng", owner.ID)
	e.fx.AddTeamMember(ctx, team.ID, member.ID, models.RoleMember)
	path := "/teams/" + team.ID.Hex()

	e.as(member, http.MethodGet, path, nil).AssertStatus(t, http.StatusOK)
	e.as(outsider, http.MethodGet, path, nil).AssertStatus(t, http.StatusNotFound)
	e.as(owner, http.MethodGet, "/teams/not-an-id", nil).AssertStatus(t, http.StatusNotFound)

	e.as(member, http.MethodPatch, path, map[string]string{"name": "Hacked"}).AssertStatus(t, http.StatusForbidden)
	e.as(outsider, http.MethodPatch, path, map[string]string{"name": "Hacked"}).AssertStatus(t, http.StatusNotFound)

	rec := e.as(owner, http.MethodPatch, path, map[string]string{"description": "new text"})
	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, `"name":"Eng"`)
	rec.AssertContains(t, `"description":"new text"`)
}

func TestInviteRoleRemove(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	owner := e.fx.CreateUser(ctx, "Owner", "owner@example.com")
	bob := e.fx.CreateUser(ctx, "Bob", "bob@example.com")
	team := e.fx.CreateTeam(ctx, "Eng", owner.ID)
	path := "/teams/" + team.ID.Hex()

	rec := e.as(owner, http.MethodPost, path+"/invite", map[string]string{"email": "bob@example.com"})
	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, `"added":true`)

	rec = e.as(owner, http.MethodPost, path+"/invite", map[string]string{"email": "new@example.com"})
	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, `"invited":true`)
	if n := len(e.mail.Sent()); n != 2 {
		t.Errorf("sent %d emails, want 2", n)
	}

	member := path + "/members/" + bob.ID.Hex()
	e.as(owner, http.MethodPatch, member, map[string]string{"role": "boss"}).AssertStatus(t, http.StatusUnprocessableEntity)
	rec = e.as(owner, http.MethodPatch, member, map[string]string{"role": "admin"})
	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, `"role":"admin"`)

	e.as(owner, http.MethodDelete, member, nil).AssertStatus(t, http.StatusNoContent)
	e.as(bob, http.MethodGet, path, nil).AssertStatus(t, http.StatusNotFound)

	rec = e.as(owner, http.MethodGet, path+"/activity?limit=10", nil)
	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, audit.EventMemberRemoved)
}

func TestDelete(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	owner := e.fx.CreateUser(ctx, "Owner", "owner@example.com")
	team := e.fx.CreateTeam(ctx, "Eng", owner.ID)
	board := e.fx.CreateBoard(ctx, "Roadmap", owner.ID, &team.ID)
	list := e.fx.CreateList(ctx, board.ID, "Todo", 0)
	e.fx.CreateCard(ctx, list, "Card", 0, owner.ID)
	path := "/teams/" + team.ID.Hex()

	rec := e.as(owner, http.MethodDelete, path, nil)
	rec.AssertStatus(t, http.StatusOK)
	var got struct {
		Deleted map[string]int64 `json:"deleted"`
	}
	rec.DecodeJSON(t, &got)
	if got.Deleted["boards"] != 1 || got.Deleted["cards"] != 1 || got.Deleted["team"] != 1 {
		t.Errorf("deleted = %v", got.Deleted)
	}
	e.as(owner, http.MethodGet, path, nil).AssertStatus(t, http.StatusNotFound)
}
