package testutil

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/dalemusser/taskhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"
)

// DefaultPassword is the password set on users created by Fixtures.
const DefaultPassword = "Passw0rd!"

// WithChiURLParam adds a chi URL parameter to the request context.
// Use this in handler tests that need to access chi.URLParam values.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx, ok := r.Context().Value(chi.RouteCtxKey).(*chi.Context)
	if !ok || rctx == nil {
		rctx = chi.NewRouteContext()
	}
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

func (f *Fixtures) insert(ctx context.Context, coll string, doc any) {
	f.t.Helper()
	if _, err := f.db.Collection(coll).InsertOne(ctx, doc); err != nil {
		f.t.Fatalf("failed to insert into %s: %v", coll, err)
	}
}

// CreateUser creates an active password user whose password is DefaultPassword.
func (f *Fixtures) CreateUser(ctx context.Context, fullName, email string) models.User {
	f.t.Helper()
	return f.createUser(ctx, fullName, email, true)
}

// CreateDisabledUser creates a user that cannot sign in.
func (f *Fixtures) CreateDisabledUser(ctx context.Context, fullName, email string) models.User {
	f.t.Helper()
	return f.createUser(ctx, fullName, email, false)
}

func (f *Fixtures) createUser(ctx context.Context, fullName, email string, active bool) models.User {
	f.t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(DefaultPassword), bcrypt.MinCost)
	if err != nil {
		f.t.Fatalf("hash password: %v", err)
	}
	now := time.Now().UTC()
	u := models.User{
		ID:             primitive.NewObjectID(),
		Email:          text.Fold(email),
		FullName:       fullName,
		FullNameCI:     text.Fold(fullName),
		PasswordHash:   string(hash),
		AuthMethod:     models.AuthMethodPassword,
		EmailConfirmed: true,
		Active:         active,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	f.insert(ctx, "users", u)
	return u
}

// CreateTeam creates a team owned by owner together with the owner's
// team_members row.
func (f *Fixtures) CreateTeam(ctx context.Context, name string, owner primitive.ObjectID) models.Team {
	f.t.Helper()

	now := time.Now().UTC()
	team := models.Team{
		ID:        primitive.NewObjectID(),
		Name:      name,
		NameCI:    text.Fold(name),
		OwnerID:   owner,
		CreatedAt: now,
		UpdatedAt: now,
	}
	f.insert(ctx, "teams", team)
	f.AddTeamMember(ctx, team.ID, owner, models.RoleOwner)
	return team
}

// AddTeamMember inserts a team_members row.
func (f *Fixtures) AddTeamMember(ctx context.Context, teamID, userID primitive.ObjectID, role models.Role) models.TeamMember {
	f.t.Helper()

	m := models.TeamMember{
		ID:       primitive.NewObjectID(),
		TeamID:   teamID,
		UserID:   userID,
		Role:     role,
		Active:   true,
		JoinedAt: time.Now().UTC(),
	}
	f.insert(ctx, "team_members", m)
	return m
}

// CreateInvitation inserts a pending invitation expiring after ttl.
func (f *Fixtures) CreateInvitation(ctx context.Context, teamID, invitedBy primitive.ObjectID, email, token string, ttl time.Duration) models.TeamInvitation {
	f.t.Helper()

	now := time.Now().UTC()
	inv := models.TeamInvitation{
		ID:              primitive.NewObjectID(),
		Email:           text.Fold(email),
		TeamID:          teamID,
		InvitedByUserID: invitedBy,
		Token:           token,
		CreatedAt:       now,
		ExpiresAt:       now.Add(ttl),
	}
	f.insert(ctx, "team_invitations", inv)
	return inv
}

// CreateBoard creates a board owned by owner with the owner's board_members
// row. teamID may be nil for a standalone board.
func (f *Fixtures) CreateBoard(ctx context.Context, title string, owner primitive.ObjectID, teamID *primitive.ObjectID) models.Board {
	f.t.Helper()

	now := time.Now().UTC()
	b := models.Board{
		ID:        primitive.NewObjectID(),
		Title:     title,
		Color:     "#0079bf",
		OwnerID:   owner,
		TeamID:    teamID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	f.insert(ctx, "boards", b)
	f.AddBoardMember(ctx, b.ID, owner, models.RoleOwner)
	return b
}

// AddBoardMember inserts a board_members row.
func (f *Fixtures) AddBoardMember(ctx context.Context, boardID, userID primitive.ObjectID, role models.Role) models.BoardMember {
	f.t.Helper()

	m := models.BoardMember{
		ID:       primitive.NewObjectID(),
		BoardID:  boardID,
		UserID:   userID,
		Role:     role,
		Active:   true,
		JoinedAt: time.Now().UTC(),
	}
	f.insert(ctx, "board_members", m)
	return m
}

// CreateList inserts a list at position.
func (f *Fixtures) CreateList(ctx context.Context, boardID primitive.ObjectID, title string, position int) models.List {
	f.t.Helper()

	now := time.Now().UTC()
	l := models.List{
		ID:        primitive.NewObjectID(),
		BoardID:   boardID,
		Title:     title,
		Position:  position,
		CreatedAt: now,
		UpdatedAt: now,
	}
	f.insert(ctx, "lists", l)
	return l
}

// CreateCard inserts a card at position in list.
func (f *Fixtures) CreateCard(ctx context.Context, list models.List, title string, position int, createdBy primitive.ObjectID) models.Card {
	f.t.Helper()

	now := time.Now().UTC()
	c := models.Card{
		ID:          primitive.NewObjectID(),
		ListID:      list.ID,
		BoardID:     list.BoardID,
		Title:       title,
		Position:    position,
		Priority:    models.PriorityMedium,
		CreatedByID: createdBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	f.insert(ctx, "cards", c)
	return c
}
