// Package teampolicy provides authorization predicates for teams.
//
// Authorization rules:
//   - The team owner (Team.OwnerID) can manage the team
//   - Members holding the Admin role can manage the team
//   - Plain members can read the team but not manage it
//   - Self-removal is only available to Admins
//
// All functions are pure: callers load the team and its member rows first.
package teampolicy

import (
	"github.com/dalemusser/taskhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// IsTeamOwner reports whether userID is the team's owner.
func IsTeamOwner(team models.Team, userID primitive.ObjectID) bool {
	return !userID.IsZero() && team.OwnerID == userID
}

// FindMember returns the member row for userID, if any.
func FindMember(members []models.TeamMember, userID primitive.ObjectID) (models.TeamMember, bool) {
	for _, m := range members {
		if m.UserID == userID {
			return m, true
		}
	}
	return models.TeamMember{}, false
}

// IsTeamAdmin reports whether userID holds exactly the Admin role.
func IsTeamAdmin(members []models.TeamMember, userID primitive.ObjectID) bool {
	m, ok := FindMember(members, userID)
	return ok && m.Role == models.RoleAdmin
}

// IsTeamMember reports whether userID has any member row in the team.
func IsTeamMember(members []models.TeamMember, userID primitive.ObjectID) bool {
	_, ok := FindMember(members, userID)
	return ok
}

// CanManageTeam gates inviting, role changes, member removal, team updates
// and team deletion.
func CanManageTeam(team models.Team, members []models.TeamMember, userID primitive.ObjectID) bool {
	return IsTeamOwner(team, userID) || IsTeamAdmin(members, userID)
}

// CanViewTeam allows any member (or the owner) to read team details.
func CanViewTeam(team models.Team, members []models.TeamMember, userID primitive.ObjectID) bool {
	return IsTeamOwner(team, userID) || IsTeamMember(members, userID)
}

// CanSelfRemove reports whether a member may remove themselves from a team.
// Only Admins may; see DESIGN.md for the open question on plain members.
func CanSelfRemove(member models.TeamMember) bool {
	return member.Role == models.RoleAdmin
}
