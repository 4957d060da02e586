// internal/domain/models/team.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Team is the top-level tenant grouping users and boards.
//
// OwnerID is denormalized: the team_members row for the owner carries
// RoleOwner and must always agree with it.
type Team struct {
	ID          primitive.ObjectID `bson:"_id" json:"id"`
	Name        string             `bson:"name" json:"name"`
	NameCI      string             `bson:"name_ci" json:"-"`
	Description string             `bson:"description" json:"description"`
	OwnerID     primitive.ObjectID `bson:"owner_id" json:"owner_id"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// TeamMember is the join between a user and a team.
// Exactly one document per (team_id, user_id).
type TeamMember struct {
	ID       primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TeamID   primitive.ObjectID `bson:"team_id" json:"team_id"`
	UserID   primitive.ObjectID `bson:"user_id" json:"user_id"`
	Role     Role               `bson:"role" json:"role"`
	Active   bool               `bson:"active" json:"active"`
	JoinedAt time.Time          `bson:"joined_at" json:"joined_at"`
}

// InvitationTTL is how long a team invitation stays acceptable.
const InvitationTTL = 7 * 24 * time.Hour

// TeamInvitation is a pending, token-addressed offer for an email address
// without an account to join a team. One document per (email, team_id).
type TeamInvitation struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Email           string             `bson:"email" json:"email"`
	TeamID          primitive.ObjectID `bson:"team_id" json:"team_id"`
	InvitedByUserID primitive.ObjectID `bson:"invited_by_user_id" json:"invited_by_user_id"`
	Token           string             `bson:"token" json:"-"`
	IsAccepted      bool               `bson:"is_accepted" json:"is_accepted"`
	AcceptedAt      *time.Time         `bson:"accepted_at,omitempty" json:"accepted_at,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"`
}

// Valid reports whether the invitation can still be accepted at now.
func (inv TeamInvitation) Valid(now time.Time) bool {
	return !inv.IsAccepted && !now.After(inv.ExpiresAt)
}
