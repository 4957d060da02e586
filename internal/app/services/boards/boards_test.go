package boards_test

import (
	"testing"

	"github.com/dalemusser/taskhub/internal/app/services/boards"
	boardstore "github.com/dalemusser/taskhub/internal/app/store/boards"
	"github.com/dalemusser/taskhub/internal/app/system/apperr"
	"github.com/dalemusser/taskhub/internal/app/system/cache"
	"github.com/dalemusser/taskhub/internal/domain/models"
	"github.com/dalemusser/taskhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type env struct {
	svc   *boards.Service
	fx    *testutil.Fixtures
	db    *mongo.Database
	cache *cache.Memory
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := testutil.SetupTestDB(t)
	c := cache.NewMemory()
	return &env{
		svc:   boards.New(db, c, nil, zap.NewNop(), 0),
		fx:    testutil.NewFixtures(t, db),
		db:    db,
		cache: c,
	}
}

func (e *env) boardRoles(t *testing.T, boardID primitive.ObjectID) map[primitive.ObjectID]models.Role {
	t.Helper()
	ctx, cancel := testutil.TestContext()
	defer cancel()
	cur, err := e.db.Collection("board_members").Find(ctx, bson.M{"board_id": boardID})
	if err != nil {
		t.Fatal(err)
	}
	var rows []models.BoardMember
	if err := cur.All(ctx, &rows); err != nil {
		t.Fatal(err)
	}
	out := make(map[primitive.ObjectID]models.Role, len(rows))
	for _, r := range rows {
		out[r.UserID] = r.Role
	}
	return out
}

func (e *env) count(t *testing.T, coll string, filter bson.M) int64 {
	t.Helper()
	ctx, cancel := testutil.TestContext()
	defer cancel()
	n, err := e.db.Collection(coll).CountDocuments(ctx, filter)
	if err != nil {
		t.Fatal(err)
	}
	return n
}

func ptr[T any](v T) *T { return &v }

func TestCreate_AddAllTeamMembers(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	a := e.fx.CreateUser(ctx, "Ada", "a@x.com")
	b := e.fx.CreateUser(ctx, "Bo", "b@x.com")
	c := e.fx.CreateUser(ctx, "Cy", "c@x.com")
	team := e.fx.CreateTeam(ctx, "Eng", a.ID)
	e.fx.AddTeamMember(ctx, team.ID, b.ID, models.RoleMember)
	e.fx.AddTeamMember(ctx, team.ID, c.ID, models.RoleAdmin)

	board, err := e.svc.Create(ctx, a.ID, boards.CreateInput{
		Title:             "Sprint 1",
		TeamID:            &team.ID,
		AddAllTeamMembers: true,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if board.Color != boards.DefaultColor {
		t.Errorf("color = %q, want default", board.Color)
	}

	got := e.boardRoles(t, board.ID)
	want := map[primitive.ObjectID]models.Role{a.ID: models.RoleOwner, b.ID: models.RoleMember, c.ID: models.RoleAdmin}
	if len(got) != len(want) {
		t.Fatalf("board roles = %v, want %v", got, want)
	}
	for id, r := range want {
		if got[id] != r {
			t.Errorf("role of %s = %v, want %v", id.Hex(), got[id], r)
		}
	}

	for _, u := range []models.User{a, b, c} {
		list, err := e.svc.List(ctx, u.ID)
		if err != nil {
			t.Fatal(err)
		}
		if len(list) != 1 || list[0].ID != board.ID || list[0].TeamName != "Eng" {
			t.Errorf("%s boards = %+v", u.Email, list)
		}
	}
}

func TestCreate_Validation(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	a := e.fx.CreateUser(ctx, "Ada", "a@x.com")
	out := e.fx.CreateUser(ctx, "Out", "o@x.com")
	team := e.fx.CreateTeam(ctx, "Eng", a.ID)

	tests := []struct {
		name  string
		actor primitive.ObjectID
		in    boards.CreateInput
		kind  apperr.Kind
	}{
		{"blank title", a.ID, boards.CreateInput{Title: "  "}, apperr.KindInvalidOperation},
		{"bad color", a.ID, boards.CreateInput{Title: "B", Color: "blue"}, apperr.KindInvalidOperation},
		{"not on team", out.ID, boards.CreateInput{Title: "B", TeamID: &team.ID}, apperr.KindNotFound},
		{"unknown team", a.ID, boards.CreateInput{Title: "B", TeamID: ptr(primitive.NewObjectID())}, apperr.KindNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.svc.Create(ctx, tt.actor, tt.in)
			if !apperr.Is(err, tt.kind) {
				t.Errorf("err = %v, want %v", err, tt.kind)
			}
		})
	}
	if n := e.count(t, "boards", bson.M{}); n != 0 {
		t.Errorf("boards created = %d, want 0", n)
	}
}

func TestCreate_InvalidatesTeamMembers(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	a := e.fx.CreateUser(ctx, "Ada", "a@x.com")
	b := e.fx.CreateUser(ctx, "Bo", "b@x.com")
	team := e.fx.CreateTeam(ctx, "Eng", a.ID)
	e.fx.AddTeamMember(ctx, team.ID, b.ID, models.RoleMember)

	if _, err := e.svc.List(ctx, a.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := e.svc.List(ctx, b.ID); err != nil {
		t.Fatal(err)
	}
	if e.cache.Len() != 2 {
		t.Fatalf("cache entries = %d, want 2", e.cache.Len())
	}

	if _, err := e.svc.Create(ctx, a.ID, boards.CreateInput{Title: "B", TeamID: &team.ID, AddAllTeamMembers: true}); err != nil {
		t.Fatal(err)
	}
	if e.cache.Len() != 0 {
		t.Errorf("cache entries after create = %d, want 0", e.cache.Len())
	}
	list, _ := e.svc.List(ctx, b.ID)
	if len(list) != 1 {
		t.Errorf("b sees %d boards, want 1", len(list))
	}
}

func TestGet_HiddenFromOutsiders(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	a := e.fx.CreateUser(ctx, "Ada", "a@x.com")
	out := e.fx.CreateUser(ctx, "Out", "o@x.com")
	board := e.fx.CreateBoard(ctx, "Mine", a.ID, nil)

	_, err := e.svc.Get(ctx, out.ID, board.ID)
	if !apperr.Is(err, apperr.KindNotFound) || apperr.Message(err) != apperr.MsgNotFoundOrDenied {
		t.Errorf("outsider err = %v", err)
	}
	_, err = e.svc.Get(ctx, a.ID, primitive.NewObjectID())
	if apperr.Message(err) != apperr.MsgNotFoundOrDenied {
		t.Errorf("missing board message = %q", apperr.Message(err))
	}

	d, err := e.svc.Get(ctx, a.ID, board.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !d.IsOwner || d.Role != models.RoleOwner || !d.CanManage || d.CanDeleteContent {
		t.Errorf("detail flags = %+v", d.BoardSummary)
	}
}

func TestGet_ListsAndCardsInCanonicalOrder(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	a := e.fx.CreateUser(ctx, "Ada", "a@x.com")
	board := e.fx.CreateBoard(ctx, "B", a.ID, nil)
	second := e.fx.CreateList(ctx, board.ID, "second", 1)
	first := e.fx.CreateList(ctx, board.ID, "first", 0)
	c1 := e.fx.CreateCard(ctx, first, "c1", 2, a.ID)
	c2 := e.fx.CreateCard(ctx, first, "c2", 2, a.ID)
	c0 := e.fx.CreateCard(ctx, first, "c0", 0, a.ID)

	d, err := e.svc.Get(ctx, a.ID, board.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(d.Lists) != 2 || d.Lists[0].ID != first.ID || d.Lists[1].ID != second.ID {
		t.Fatalf("lists out of order: %+v", d.Lists)
	}
	cards := d.Lists[0].Cards
	wantIDs := []primitive.ObjectID{c0.ID, c1.ID, c2.ID}
	if len(cards) != 3 {
		t.Fatalf("cards = %d, want 3", len(cards))
	}
	for i, id := range wantIDs {
		if cards[i].ID != id {
			t.Errorf("cards[%d] = %s, want %s", i, cards[i].Title, id.Hex())
		}
	}
	if d.Lists[1].Cards == nil {
		t.Error("empty list should carry an empty card slice")
	}
}

func TestUpdate_RequiresManagement(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	owner := e.fx.CreateUser(ctx, "Own", "own@x.com")
	admin := e.fx.CreateUser(ctx, "Adm", "adm@x.com")
	boardAdmin := e.fx.CreateUser(ctx, "BA", "ba@x.com")
	out := e.fx.CreateUser(ctx, "Out", "out@x.com")
	team := e.fx.CreateTeam(ctx, "Eng", owner.ID)
	e.fx.AddTeamMember(ctx, team.ID, admin.ID, models.RoleAdmin)
	board := e.fx.CreateBoard(ctx, "B", owner.ID, &team.ID)
	e.fx.AddBoardMember(ctx, board.ID, boardAdmin.ID, models.RoleAdmin)

	tests := []struct {
		name  string
		actor primitive.ObjectID
		kind  apperr.Kind
		ok    bool
	}{
		{"board owner", owner.ID, 0, true},
		{"team admin without board row", admin.ID, 0, true},
		{"board admin only", boardAdmin.ID, apperr.KindForbidden, false},
		{"outsider", out.ID, apperr.KindNotFound, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.svc.Update(ctx, tt.actor, board.ID, boardstore.Update{Title: ptr("Renamed")})
			if tt.ok {
				if err != nil {
					t.Errorf("err = %v, want nil", err)
				}
				return
			}
			if !apperr.Is(err, tt.kind) {
				t.Errorf("err = %v, want %v", err, tt.kind)
			}
		})
	}
}

func TestDelete_CascadesAndInvalidates(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	a := e.fx.CreateUser(ctx, "Ada", "a@x.com")
	b := e.fx.CreateUser(ctx, "Bo", "b@x.com")
	board := e.fx.CreateBoard(ctx, "B", a.ID, nil)
	e.fx.AddBoardMember(ctx, board.ID, b.ID, models.RoleMember)
	l := e.fx.CreateList(ctx, board.ID, "todo", 0)
	card := e.fx.CreateCard(ctx, l, "c", 0, a.ID)
	if _, err := e.svc.AddComment(ctx, b.ID, card.ID, "hello"); err != nil {
		t.Fatal(err)
	}

	if _, err := e.svc.List(ctx, b.ID); err != nil {
		t.Fatal(err)
	}
	rep, err := e.svc.Delete(ctx, a.ID, board.ID)
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if rep["cards"] != 1 || rep["comments"] != 1 || rep["boards"] != 1 {
		t.Errorf("report = %v", rep)
	}
	for _, coll := range []string{"boards", "lists", "cards", "card_comments", "board_members"} {
		if n := e.count(t, coll, bson.M{}); n != 0 {
			t.Errorf("%s left = %d", coll, n)
		}
	}
	if e.cache.Len() != 0 {
		t.Error("member's cached board list survived deletion")
	}
}

func TestMembers(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	a := e.fx.CreateUser(ctx, "Ada", "a@x.com")
	b := e.fx.CreateUser(ctx, "Bo", "b@x.com")
	c := e.fx.CreateUser(ctx, "Cy", "c@x.com")
	board := e.fx.CreateBoard(ctx, "B", a.ID, nil)

	if _, err := e.svc.AddMember(ctx, a.ID, board.ID, b.ID, models.RoleOwner); !apperr.Is(err, apperr.KindInvalidOperation) {
		t.Errorf("add as owner err = %v", err)
	}
	if _, err := e.svc.AddMember(ctx, a.ID, board.ID, b.ID, models.RoleMember); err != nil {
		t.Fatalf("AddMember: %v", err)
	}
	if _, err := e.svc.AddMember(ctx, a.ID, board.ID, b.ID, models.RoleMember); !apperr.Is(err, apperr.KindConflict) {
		t.Errorf("duplicate add err = %v", err)
	}
	if _, err := e.svc.AddMember(ctx, b.ID, board.ID, c.ID, models.RoleMember); !apperr.Is(err, apperr.KindForbidden) {
		t.Errorf("member adding err = %v, want Forbidden", err)
	}
	if _, err := e.svc.AddMember(ctx, a.ID, board.ID, primitive.NewObjectID(), models.RoleMember); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("unknown user err = %v", err)
	}

	if err := e.svc.ChangeMemberRole(ctx, a.ID, board.ID, b.ID, models.RoleAdmin); err != nil {
		t.Fatalf("ChangeMemberRole: %v", err)
	}
	if got := e.boardRoles(t, board.ID)[b.ID]; got != models.RoleAdmin {
		t.Errorf("b role = %v", got)
	}
	if err := e.svc.ChangeMemberRole(ctx, a.ID, board.ID, a.ID, models.RoleMember); !apperr.Is(err, apperr.KindInvalidOperation) {
		t.Errorf("owner demotion err = %v", err)
	}

	if err := e.svc.RemoveMember(ctx, b.ID, board.ID, a.ID); !apperr.Is(err, apperr.KindForbidden) {
		t.Errorf("board admin removing owner err = %v, want Forbidden", err)
	}
	if err := e.svc.RemoveMember(ctx, a.ID, board.ID, a.ID); !apperr.Is(err, apperr.KindInvalidOperation) {
		t.Errorf("owner self-removal err = %v", err)
	}
	if err := e.svc.RemoveMember(ctx, b.ID, board.ID, b.ID); err != nil {
		t.Fatalf("self leave: %v", err)
	}
	if _, err := e.svc.Get(ctx, b.ID, board.ID); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("removed member still sees board: %v", err)
	}
}
