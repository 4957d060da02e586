package validators_test

import (
	"errors"
	"testing"
	"time"

	"github.com/dalemusser/taskhub/internal/app/system/validators"
	"github.com/dalemusser/taskhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

func setup(t *testing.T) *mongo.Database {
	t.Helper()
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	if err := validators.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}
	return db
}

// isValidationErr reports a document rejected by a $jsonSchema validator
// (server code 121).
func isValidationErr(err error) bool {
	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if e.Code == 121 {
				return true
			}
		}
	}
	return false
}

func TestEnsureAll_Idempotent(t *testing.T) {
	db := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	if err := validators.EnsureAll(ctx, db); err != nil {
		t.Fatalf("second EnsureAll failed: %v", err)
	}
}

func TestEnsureAll_CreatesCollections(t *testing.T) {
	db := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	names, err := db.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		t.Fatalf("ListCollectionNames failed: %v", err)
	}
	have := make(map[string]bool)
	for _, n := range names {
		have[n] = true
	}
	for _, want := range []string{
		"users", "teams", "team_members", "team_invitations",
		"boards", "board_members", "lists", "cards",
		"card_comments", "labels", "card_labels", "card_attachments",
		"audit_events", "oauth_states",
	} {
		if !have[want] {
			t.Errorf("expected collection %q to exist", want)
		}
	}
}

func TestValidators(t *testing.T) {
	db := setup(t)
	id := primitive.NewObjectID()
	now := time.Now().UTC()

	tests := []struct {
		name  string
		coll  string
		doc   bson.M
		valid bool
	}{
		{"user ok", "users", bson.M{"email": "a@example.com", "auth_method": "password", "active": true}, true},
		{"user bad auth method", "users", bson.M{"email": "a@example.com", "auth_method": "saml", "active": true}, false},
		{"user missing email", "users", bson.M{"auth_method": "google", "active": true}, false},
		{"team ok", "teams", bson.M{"name": "Eng", "name_ci": "eng", "owner_id": id}, true},
		{"team blank name", "teams", bson.M{"name": "  ", "name_ci": "x", "owner_id": id}, false},
		{"team member ok", "team_members", bson.M{"team_id": id, "user_id": id, "role": 2}, true},
		{"team member bad role", "team_members", bson.M{"team_id": id, "user_id": id, "role": 7}, false},
		{"board member ok", "board_members", bson.M{"board_id": id, "user_id": id, "role": 0}, true},
		{"invitation ok", "team_invitations", bson.M{"email": "b@example.com", "team_id": id, "token": "t", "expires_at": now}, true},
		{"invitation missing token", "team_invitations", bson.M{"email": "b@example.com", "team_id": id, "expires_at": now}, false},
		{"board ok", "boards", bson.M{"title": "Roadmap", "owner_id": id, "color": "#0079bf"}, true},
		{"board bad color", "boards", bson.M{"title": "Roadmap", "owner_id": id, "color": "blue"}, false},
		{"list ok", "lists", bson.M{"board_id": id, "title": "Todo", "position": 0}, true},
		{"list negative position", "lists", bson.M{"board_id": id, "title": "Todo", "position": -1}, false},
		{"card ok", "cards", bson.M{"list_id": id, "board_id": id, "title": "C", "position": 0, "priority": 3}, true},
		{"card bad priority", "cards", bson.M{"list_id": id, "board_id": id, "title": "C", "position": 0, "priority": 4}, false},
		{"comment blank", "card_comments", bson.M{"card_id": id, "board_id": id, "author_id": id, "body": ""}, false},
		{"label ok", "labels", bson.M{"board_id": id, "name": "bug", "color": "#ff0000"}, true},
		{"card label ok", "card_labels", bson.M{"card_id": id, "label_id": id, "board_id": id}, true},
		{"attachment negative size", "card_attachments", bson.M{"card_id": id, "board_id": id, "file_name": "a", "storage_key": "k", "size": -1}, false},
		{"audit has no validator", "audit_events", bson.M{"anything": true}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := testutil.TestContext()
			defer cancel()
			_, err := db.Collection(tt.coll).InsertOne(ctx, tt.doc)
			switch {
			case tt.valid && err != nil:
				t.Errorf("insert rejected: %v", err)
			case !tt.valid && !isValidationErr(err):
				t.Errorf("insert err = %v, want validation failure", err)
			}
		})
	}
}
