// internal/domain/models/user.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User is an account that can belong to teams and boards.
//
// NOTE:
//   - Email is stored folded (lowercase) and is unique.
//   - Team and board membership live in team_members / board_members.
type User struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Email          string             `bson:"email" json:"email"`
	FirstName      string             `bson:"first_name" json:"first_name"`
	LastName       string             `bson:"last_name" json:"last_name"`
	FullName       string             `bson:"full_name" json:"full_name"`
	FullNameCI     string             `bson:"full_name_ci" json:"-"` // lowercase, diacritics-stripped
	PasswordHash   string             `bson:"password_hash,omitempty" json:"-"`
	AuthMethod     string             `bson:"auth_method" json:"auth_method"`
	EmailConfirmed bool               `bson:"email_confirmed" json:"email_confirmed"`
	Active         bool               `bson:"active" json:"active"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// DisplayName prefers the full name and falls back to the email.
func (u User) DisplayName() string {
	if u.FullName != "" {
		return u.FullName
	}
	return u.Email
}
