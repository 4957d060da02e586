package inputval_test

import (
	"testing"

	"github.com/dalemusser/taskhub/internal/app/system/inputval"
)

type createCardInput struct {
	Title    string `validate:"required,max=20" label:"Title"`
	Priority string `validate:"omitempty,priority" label:"Priority"`
	Position int    `validate:"gte=0" label:"Position"`
}

type labelInput struct {
	Name  string `validate:"required" label:"Label name"`
	Color string `validate:"required,hexcolor" label:"Color"`
}

type inviteInput struct {
	Email string `validate:"required,email" label:"Email"`
	Role  string `validate:"omitempty,role" label:"Role"`
}

func TestValidate_Messages(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  string
	}{
		{"card ok", createCardInput{Title: "Ship it", Priority: "high"}, ""},
		{"card priority any case", createCardInput{Title: "Ship it", Priority: "CRITICAL"}, ""},
		{"card missing title", createCardInput{}, "Title is required."},
		{"card title too long", createCardInput{Title: "a title well over twenty"}, "Title must be at most 20 characters."},
		{"card unknown priority", createCardInput{Title: "x", Priority: "asap"}, "Priority is invalid."},
		{"card negative position", createCardInput{Title: "x", Position: -1}, "Position must be 0 or greater."},
		{"label ok", labelInput{Name: "bug", Color: "#1e40af"}, ""},
		{"label bad color", labelInput{Name: "bug", Color: "blue"}, "Color must be a hex color like #1e40af."},
		{"invite ok", inviteInput{Email: "bob@example.com", Role: "Admin"}, ""},
		{"invite bad email", inviteInput{Email: "bob"}, "A valid email address is required."},
		{"invite unknown role", inviteInput{Email: "bob@example.com", Role: "boss"}, "Role is invalid."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := inputval.Validate(tt.input)
			if got := res.First(); got != tt.want {
				t.Errorf("First() = %q, want %q", got, tt.want)
			}
			if res.HasErrors() != (tt.want != "") {
				t.Errorf("HasErrors() = %v", res.HasErrors())
			}
		})
	}
}

func TestValidate_FieldUsesLabel(t *testing.T) {
	res := inputval.Validate(labelInput{})
	if len(res.Errors) != 2 {
		t.Fatalf("errors = %+v, want 2", res.Errors)
	}
	if res.Errors[0].Field != "Label name" || res.Errors[1].Field != "Color" {
		t.Errorf("fields = %q, %q", res.Errors[0].Field, res.Errors[1].Field)
	}
	if want := "Label name is required.; Color is required."; res.All() != want {
		t.Errorf("All() = %q, want %q", res.All(), want)
	}
}

func TestValidate_CustomTags(t *testing.T) {
	type signIn struct {
		Method   string `validate:"required,authmethod"`
		Password string `validate:"required,password"`
	}
	type link struct {
		URL   string `validate:"required,httpurl"`
		Board string `validate:"required,objectid"`
	}

	tests := []struct {
		name  string
		input any
		ok    bool
	}{
		{"google", signIn{Method: "google", Password: "Passw0rd"}, true},
		{"unknown method", signIn{Method: "ldap", Password: "Passw0rd"}, false},
		{"weak password", signIn{Method: "password", Password: "password"}, false},
		{"link", link{URL: "https://taskhub.example.com/b/1", Board: "65a1f0c2e4b0a1b2c3d4e5f6"}, true},
		{"relative link", link{URL: "/b/1", Board: "65a1f0c2e4b0a1b2c3d4e5f6"}, false},
		{"bad board id", link{URL: "https://taskhub.example.com", Board: "board-1"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if res := inputval.Validate(tt.input); res.HasErrors() == tt.ok {
				t.Errorf("Validate() errors = %+v, want ok=%v", res.Errors, tt.ok)
			}
		})
	}
}

func TestResult_Empty(t *testing.T) {
	var res inputval.Result
	if res.HasErrors() || res.First() != "" || res.All() != "" {
		t.Errorf("empty result = %+v", res)
	}
}

func TestAllowedAuthMethodsList(t *testing.T) {
	got := inputval.AllowedAuthMethodsList()
	if len(got) != 2 || got[0] != "password" || got[1] != "google" {
		t.Errorf("AllowedAuthMethodsList() = %v", got)
	}
	for _, m := range got {
		if !inputval.IsValidAuthMethod(m) {
			t.Errorf("listed method %q is not valid", m)
		}
	}
}
