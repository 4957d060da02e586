// Package boardpolicy provides authorization predicates for boards and the
// lists, cards, comments and attachments inside them.
//
// Board access and board management are deliberately different rules:
//   - Access (read, create/update/move cards and lists, comment): board owner
//     or any BoardMember row.
//   - Management (update/delete board, add/remove board members): board owner,
//     or the owner/Admin of the board's team. A BoardMember with the Admin
//     role gains nothing beyond access.
//   - Deleting lists and cards requires team owner/Admin standing, so it is
//     never available on a standalone board.
//
// All functions are pure. team and teamMembers may be nil/empty for a
// standalone board.
package boardpolicy

import (
	"github.com/dalemusser/taskhub/internal/app/policy/teampolicy"
	"github.com/dalemusser/taskhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// IsBoardOwner reports whether userID is the board's owner.
func IsBoardOwner(board models.Board, userID primitive.ObjectID) bool {
	return !userID.IsZero() && board.OwnerID == userID
}

// IsBoardMember reports whether userID has a member row on the board.
func IsBoardMember(members []models.BoardMember, userID primitive.ObjectID) bool {
	for _, m := range members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}

// HasBoardAccess is true for the owner even without a member row.
func HasBoardAccess(board models.Board, members []models.BoardMember, userID primitive.ObjectID) bool {
	return IsBoardOwner(board, userID) || IsBoardMember(members, userID)
}

// isTeamManager reports team owner/Admin standing for the board's team.
// A nil team, or a team that does not match board.TeamID, grants nothing.
func isTeamManager(board models.Board, team *models.Team, teamMembers []models.TeamMember, userID primitive.ObjectID) bool {
	if board.TeamID == nil || team == nil || team.ID != *board.TeamID {
		return false
	}
	return teampolicy.IsTeamOwner(*team, userID) || teampolicy.IsTeamAdmin(teamMembers, userID)
}

// CanManageBoard gates board updates, deletion and board membership changes.
func CanManageBoard(board models.Board, team *models.Team, teamMembers []models.TeamMember, userID primitive.ObjectID) bool {
	return IsBoardOwner(board, userID) || isTeamManager(board, team, teamMembers, userID)
}

// CanDeleteListOrCard requires the board to belong to a team and the caller
// to be that team's owner or an Admin.
func CanDeleteListOrCard(board models.Board, team *models.Team, teamMembers []models.TeamMember, userID primitive.ObjectID) bool {
	return isTeamManager(board, team, teamMembers, userID)
}
