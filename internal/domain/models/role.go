// internal/domain/models/role.go
package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Role is the ordered membership role shared by team and board members.
// Comparisons are numeric: Member < Admin < Owner.
type Role int

const (
	RoleMember Role = iota
	RoleAdmin
	RoleOwner
)

var roleNames = [...]string{"Member", "Admin", "Owner"}

// String returns the display name of the role.
func (r Role) String() string {
	if r < RoleMember || r > RoleOwner {
		return fmt.Sprintf("Role(%d)", int(r))
	}
	return roleNames[r]
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r >= RoleMember && r <= RoleOwner
}

// AtLeast reports whether r ranks at or above min.
func (r Role) AtLeast(min Role) bool {
	return r >= min
}

// ParseRole accepts the role name in any case.
func ParseRole(s string) (Role, error) {
	for i, name := range roleNames {
		if strings.EqualFold(strings.TrimSpace(s), name) {
			return Role(i), nil
		}
	}
	return RoleMember, fmt.Errorf("unknown role %q", s)
}

// MarshalJSON encodes the role by name. BSON keeps the integer so that
// range queries on role stay ordered.
func (r Role) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

func (r *Role) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		var n int
		if err2 := json.Unmarshal(b, &n); err2 != nil {
			return err
		}
		if !Role(n).Valid() {
			return fmt.Errorf("unknown role %d", n)
		}
		*r = Role(n)
		return nil
	}
	parsed, err := ParseRole(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
