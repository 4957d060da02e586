// internal/domain/models/board.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Board holds ordered lists. TeamID is nil for a standalone board.
type Board struct {
	ID          primitive.ObjectID  `bson:"_id" json:"id"`
	Title       string              `bson:"title" json:"title"`
	Description string              `bson:"description" json:"description"`
	Color       string              `bson:"color" json:"color"`
	Archived    bool                `bson:"archived" json:"archived"`
	OwnerID     primitive.ObjectID  `bson:"owner_id" json:"owner_id"`
	TeamID      *primitive.ObjectID `bson:"team_id,omitempty" json:"team_id,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// BoardMember grants a user access to a board.
// Exactly one document per (board_id, user_id).
type BoardMember struct {
	ID       primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	BoardID  primitive.ObjectID `bson:"board_id" json:"board_id"`
	UserID   primitive.ObjectID `bson:"user_id" json:"user_id"`
	Role     Role               `bson:"role" json:"role"`
	Active   bool               `bson:"active" json:"active"`
	JoinedAt time.Time          `bson:"joined_at" json:"joined_at"`
}

// List is an ordered column of cards. Position orders lists within a board;
// ties are broken by CreatedAt then ID.
type List struct {
	ID       primitive.ObjectID `bson:"_id" json:"id"`
	BoardID  primitive.ObjectID `bson:"board_id" json:"board_id"`
	Title    string             `bson:"title" json:"title"`
	Position int                `bson:"position" json:"position"`
	Archived bool               `bson:"archived" json:"archived"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
