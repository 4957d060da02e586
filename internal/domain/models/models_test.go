package models_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/dalemusser/taskhub/internal/domain/models"
)

func TestRole_Ordering(t *testing.T) {
	if !(models.RoleMember < models.RoleAdmin && models.RoleAdmin < models.RoleOwner) {
		t.Fatal("roles must be ordered Member < Admin < Owner")
	}
	tests := []struct {
		role, min models.Role
		want      bool
	}{
		{models.RoleMember, models.RoleAdmin, false},
		{models.RoleAdmin, models.RoleAdmin, true},
		{models.RoleOwner, models.RoleAdmin, true},
		{models.RoleMember, models.RoleMember, true},
	}
	for _, tt := range tests {
		if got := tt.role.AtLeast(tt.min); got != tt.want {
			t.Errorf("%v.AtLeast(%v) = %v, want %v", tt.role, tt.min, got, tt.want)
		}
	}
}

func TestParseRole(t *testing.T) {
	tests := []struct {
		in      string
		want    models.Role
		wantErr bool
	}{
		{"member", models.RoleMember, false},
		{"Admin", models.RoleAdmin, false},
		{" OWNER ", models.RoleOwner, false},
		{"guest", models.RoleMember, true},
	}
	for _, tt := range tests {
		got, err := models.ParseRole(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseRole(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ParseRole(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestRole_JSONUsesName(t *testing.T) {
	b, err := json.Marshal(models.TeamMember{Role: models.RoleAdmin})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var out struct {
		Role string `json:"role"`
	}
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if out.Role != "Admin" {
		t.Errorf("role = %q, want %q", out.Role, "Admin")
	}
}

func TestTeamInvitation_Valid(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	accepted := now.Add(-time.Hour)

	tests := []struct {
		name string
		inv  models.TeamInvitation
		want bool
	}{
		{"pending", models.TeamInvitation{ExpiresAt: now.Add(time.Hour)}, true},
		{"expires exactly now", models.TeamInvitation{ExpiresAt: now}, true},
		{"expired", models.TeamInvitation{ExpiresAt: now.Add(-time.Second)}, false},
		{"accepted", models.TeamInvitation{ExpiresAt: now.Add(time.Hour), IsAccepted: true, AcceptedAt: &accepted}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.inv.Valid(now); got != tt.want {
				t.Errorf("Valid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParsePriority(t *testing.T) {
	p, err := models.ParsePriority("critical")
	if err != nil || p != models.PriorityCritical {
		t.Errorf("ParsePriority(critical) = %v, %v", p, err)
	}
	if _, err := models.ParsePriority("urgent"); err == nil {
		t.Error("expected error for unknown priority")
	}
}
