// internal/app/system/validators/validators.go
package validators

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// EnsureAll creates collections (if missing) and tries to attach JSON-Schema
// validators. On servers that don't support collMod/validators (e.g. some
// DocumentDB versions), we log and skip gracefully.
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string

	ensure := func(coll string, schema bson.M) {
		if _, err := ensureCollection(ctx, db, coll); err != nil {
			problems = append(problems, coll+": "+err.Error())
			return
		}
		if schema == nil {
			return
		}
		if err := setValidator(ctx, db, coll, schema); err != nil {
			if isNoSuchCommand(err) || isNotImplemented(err) {
				zap.L().Info("validator skipped (unsupported)", zap.String("collection", coll))
				return
			}
			problems = append(problems, coll+": "+err.Error())
		}
	}

	ensure("users", usersSchema())
	ensure("teams", teamsSchema())
	ensure("team_members", membersSchema("team_id"))
	ensure("team_invitations", invitationsSchema())
	ensure("boards", boardsSchema())
	ensure("board_members", membersSchema("board_id"))
	ensure("lists", listsSchema())
	ensure("cards", cardsSchema())
	ensure("card_comments", commentsSchema())
	ensure("labels", labelsSchema())
	ensure("card_labels", cardLabelsSchema())
	ensure("card_attachments", attachmentsSchema())

	// No validators; audit and oauth_states are append-only internal records.
	ensure("audit_events", nil)
	ensure("oauth_states", nil)

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

/* ---------------------- collection helpers & logging ---------------------- */

// collectionExists returns true when <name> already exists.
// Uses ListCollectionNames to avoid "created collection" log when it didn't.
func collectionExists(ctx context.Context, db *mongo.Database, name string) (bool, error) {
	names, err := db.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		return false, err
	}
	for _, n := range names {
		if n == name {
			return true, nil
		}
	}
	return false, nil
}

// ensureCollection idempotently makes sure <name> exists.
// Returns created==true only if we actually created it.
func ensureCollection(ctx context.Context, db *mongo.Database, name string) (created bool, err error) {
	exists, listErr := collectionExists(ctx, db, name)
	if listErr == nil && exists {
		zap.L().Info("collection exists", zap.String("collection", name))
		return false, nil
	}
	// If listing failed, fall back to create-and-handle-race.
	if err := db.CreateCollection(ctx, name); err != nil {
		// NamespaceExists / already exists is fine (race or prior run).
		if isNamespaceExistsErr(err) {
			zap.L().Info("collection exists", zap.String("collection", name))
			return false, nil
		}
		zap.L().Warn("createCollection failed", zap.String("collection", name), zap.Error(err))
		return false, err
	}
	zap.L().Info("created collection", zap.String("collection", name))
	return true, nil
}

/* ------------------------------ validators ------------------------------- */

func setValidator(ctx context.Context, db *mongo.Database, name string, validator bson.M) error {
	cmd := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: validator},
		{Key: "validationLevel", Value: "moderate"},
		{Key: "validationAction", Value: "error"},
	}
	var out bson.M
	if err := db.RunCommand(ctx, cmd).Decode(&out); err != nil {
		return err
	}
	zap.L().Info("validator ensured", zap.String("collection", name))
	return nil
}

/* ------------------------- error helpers ------------------------- */

func isNamespaceExistsErr(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && (ce.Code == 48 || strings.Contains(strings.ToLower(ce.Message), "already exists")) {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "already exists") || strings.Contains(s, "namespace exists")
}

func isNoSuchCommand(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && (ce.Code == 59 || strings.Contains(strings.ToLower(ce.Message), "no such command")) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "no such command")
}

func isNotImplemented(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && (ce.Code == 115 ||
		strings.Contains(strings.ToLower(ce.Message), "not implemented") ||
		strings.Contains(strings.ToLower(ce.Message), "not supported")) {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "not implemented") || strings.Contains(s, "not supported")
}

/* ------------------------- JSON-Schema docs ---------------------- */

var (
	nonBlank = bson.M{"bsonType": "string", "minLength": 1, "pattern": ".*\\S.*"}
	objectID = bson.M{"bsonType": "objectId"}
	date     = bson.M{"bsonType": "date"}
	hexColor = bson.M{"bsonType": "string", "pattern": "^#[0-9a-fA-F]{6}$"}
	position = bson.M{"bsonType": bson.A{"int", "long"}, "minimum": 0}
)

// intRange matches the integer encodings of Role and Priority.
func intRange(min, max int) bson.M {
	return bson.M{"bsonType": bson.A{"int", "long"}, "minimum": min, "maximum": max}
}

func object(required bson.A, props bson.M) bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType":   "object",
			"required":   required,
			"properties": props,
		},
	}
}

func usersSchema() bson.M {
	return object(bson.A{"email", "auth_method", "active"}, bson.M{
		"email":         nonBlank,
		"full_name":     bson.M{"bsonType": "string"},
		"password_hash": bson.M{"bsonType": "string"},
		"auth_method":   bson.M{"enum": bson.A{"password", "google"}},
		"active":        bson.M{"bsonType": "bool"},
	})
}

func teamsSchema() bson.M {
	return object(bson.A{"name", "name_ci", "owner_id"}, bson.M{
		"name":        nonBlank,
		"name_ci":     nonBlank,
		"description": bson.M{"bsonType": "string"},
		"owner_id":    objectID,
	})
}

// membersSchema serves team_members and board_members, which differ only in
// the parent key.
func membersSchema(parent string) bson.M {
	return object(bson.A{parent, "user_id", "role"}, bson.M{
		parent:      objectID,
		"user_id":   objectID,
		"role":      intRange(0, 2),
		"active":    bson.M{"bsonType": "bool"},
		"joined_at": date,
	})
}

func invitationsSchema() bson.M {
	return object(bson.A{"email", "team_id", "token", "expires_at"}, bson.M{
		"email":              nonBlank,
		"team_id":            objectID,
		"invited_by_user_id": objectID,
		"token":              nonBlank,
		"is_accepted":        bson.M{"bsonType": "bool"},
		"expires_at":         date,
	})
}

func boardsSchema() bson.M {
	return object(bson.A{"title", "owner_id"}, bson.M{
		"title":    nonBlank,
		"color":    hexColor,
		"owner_id": objectID,
		"team_id":  objectID,
		"archived": bson.M{"bsonType": "bool"},
	})
}

func listsSchema() bson.M {
	return object(bson.A{"board_id", "title", "position"}, bson.M{
		"board_id": objectID,
		"title":    nonBlank,
		"position": position,
		"archived": bson.M{"bsonType": "bool"},
	})
}

func cardsSchema() bson.M {
	return object(bson.A{"list_id", "board_id", "title", "position", "priority"}, bson.M{
		"list_id":        objectID,
		"board_id":       objectID,
		"title":          nonBlank,
		"position":       position,
		"priority":       intRange(0, 3),
		"due_date":       date,
		"created_by_id":  objectID,
		"assigned_to_id": objectID,
	})
}

func commentsSchema() bson.M {
	return object(bson.A{"card_id", "board_id", "author_id", "body"}, bson.M{
		"card_id":   objectID,
		"board_id":  objectID,
		"author_id": objectID,
		"body":      nonBlank,
	})
}

func labelsSchema() bson.M {
	return object(bson.A{"board_id", "name", "color"}, bson.M{
		"board_id": objectID,
		"name":     nonBlank,
		"color":    hexColor,
	})
}

func cardLabelsSchema() bson.M {
	return object(bson.A{"card_id", "label_id", "board_id"}, bson.M{
		"card_id":  objectID,
		"label_id": objectID,
		"board_id": objectID,
	})
}

func attachmentsSchema() bson.M {
	return object(bson.A{"card_id", "board_id", "file_name", "storage_key", "size"}, bson.M{
		"card_id":     objectID,
		"board_id":    objectID,
		"file_name":   nonBlank,
		"storage_key": nonBlank,
		"size":        bson.M{"bsonType": bson.A{"int", "long"}, "minimum": 0},
	})
}
