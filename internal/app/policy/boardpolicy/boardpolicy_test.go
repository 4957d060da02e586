package boardpolicy_test

import (
	"testing"

	"github.com/dalemusser/taskhub/internal/app/policy/boardpolicy"
	"github.com/dalemusser/taskhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type users struct {
	teamOwner, teamAdmin, teamMember, boardOwner, boardAdmin, outsider primitive.ObjectID
}

func newUsers() users {
	return users{
		teamOwner:  primitive.NewObjectID(),
		teamAdmin:  primitive.NewObjectID(),
		teamMember: primitive.NewObjectID(),
		boardOwner: primitive.NewObjectID(),
		boardAdmin: primitive.NewObjectID(),
		outsider:   primitive.NewObjectID(),
	}
}

func teamBoard(u users) (models.Board, *models.Team, []models.TeamMember, []models.BoardMember) {
	team := &models.Team{ID: primitive.NewObjectID(), OwnerID: u.teamOwner}
	teamMembers := []models.TeamMember{
		{TeamID: team.ID, UserID: u.teamOwner, Role: models.RoleOwner},
		{TeamID: team.ID, UserID: u.teamAdmin, Role: models.RoleAdmin},
		{TeamID: team.ID, UserID: u.teamMember, Role: models.RoleMember},
		{TeamID: team.ID, UserID: u.boardOwner, Role: models.RoleMember},
	}
	board := models.Board{ID: primitive.NewObjectID(), OwnerID: u.boardOwner, TeamID: &team.ID}
	boardMembers := []models.BoardMember{
		{BoardID: board.ID, UserID: u.boardOwner, Role: models.RoleOwner},
		{BoardID: board.ID, UserID: u.boardAdmin, Role: models.RoleAdmin},
		{BoardID: board.ID, UserID: u.teamMember, Role: models.RoleMember},
	}
	return board, team, teamMembers, boardMembers
}

func TestHasBoardAccess(t *testing.T) {
	u := newUsers()
	board, _, _, boardMembers := teamBoard(u)

	tests := []struct {
		name string
		user primitive.ObjectID
		want bool
	}{
		{"board owner", u.boardOwner, true},
		{"board admin", u.boardAdmin, true},
		{"board member", u.teamMember, true},
		{"team owner without board row", u.teamOwner, false},
		{"team admin without board row", u.teamAdmin, false},
		{"outsider", u.outsider, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := boardpolicy.HasBoardAccess(board, boardMembers, tt.user); got != tt.want {
				t.Errorf("HasBoardAccess = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHasBoardAccess_OwnerWithoutMemberRow(t *testing.T) {
	u := newUsers()
	board, _, _, _ := teamBoard(u)
	if !boardpolicy.HasBoardAccess(board, nil, u.boardOwner) {
		t.Error("owner must keep access with no BoardMember rows")
	}
}

func TestCanManageBoard(t *testing.T) {
	u := newUsers()
	board, team, teamMembers, _ := teamBoard(u)

	tests := []struct {
		name string
		user primitive.ObjectID
		want bool
	}{
		{"board owner", u.boardOwner, true},
		{"team owner", u.teamOwner, true},
		{"team admin", u.teamAdmin, true},
		{"board admin role only", u.boardAdmin, false},
		{"team member", u.teamMember, false},
		{"outsider", u.outsider, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := boardpolicy.CanManageBoard(board, team, teamMembers, tt.user); got != tt.want {
				t.Errorf("CanManageBoard = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCanDeleteListOrCard(t *testing.T) {
	u := newUsers()
	board, team, teamMembers, _ := teamBoard(u)

	tests := []struct {
		name string
		user primitive.ObjectID
		want bool
	}{
		{"team owner", u.teamOwner, true},
		{"team admin", u.teamAdmin, true},
		{"board owner who is a plain team member", u.boardOwner, false},
		{"board admin", u.boardAdmin, false},
		{"outsider", u.outsider, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := boardpolicy.CanDeleteListOrCard(board, team, teamMembers, tt.user); got != tt.want {
				t.Errorf("CanDeleteListOrCard = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCanDeleteListOrCard_StandaloneBoard(t *testing.T) {
	owner := primitive.NewObjectID()
	board := models.Board{ID: primitive.NewObjectID(), OwnerID: owner}

	if boardpolicy.CanDeleteListOrCard(board, nil, nil, owner) {
		t.Error("standalone board owner cannot delete lists or cards")
	}
	if !boardpolicy.CanManageBoard(board, nil, nil, owner) {
		t.Error("standalone board owner can still manage the board")
	}
}

func TestTeamMismatchGrantsNothing(t *testing.T) {
	u := newUsers()
	board, _, _, _ := teamBoard(u)
	other := &models.Team{ID: primitive.NewObjectID(), OwnerID: u.outsider}

	if boardpolicy.CanManageBoard(board, other, nil, u.outsider) {
		t.Error("owner of an unrelated team must not manage the board")
	}
}
