// internal/app/system/indexes/indexes.go
package indexes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// EnsureAll is called at startup and by the test database helper. Each
// ensure* function is idempotent; problems are aggregated so startup fails
// with the full list.
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string

	steps := []struct {
		name string
		fn   func(context.Context, *mongo.Database) error
	}{
		{"users", ensureUsers},
		{"teams", ensureTeams},
		{"team_members", ensureTeamMembers},
		{"team_invitations", ensureTeamInvitations},
		{"boards", ensureBoards},
		{"board_members", ensureBoardMembers},
		{"lists", ensureLists},
		{"cards", ensureCards},
		{"card_comments", ensureCardComments},
		{"card_attachments", ensureCardAttachments},
		{"labels", ensureLabels},
		{"card_labels", ensureCardLabels},
	}
	for _, st := range steps {
		if err := st.fn(ctx, db); err != nil {
			problems = append(problems, st.name+": "+err.Error())
		}
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

/* -------------------------------------------------------------------------- */
/* Core helper: reconcile a set of desired indexes for one collection         */
/* -------------------------------------------------------------------------- */

type existingIndex struct {
	Name   string `bson:"name"`
	Key    bson.D `bson:"key"`
	Unique *bool  `bson:"unique,omitempty"`
}

func keySig(keys bson.D) string {
	parts := make([]string, 0, len(keys))
	for _, kv := range keys {
		parts = append(parts, fmt.Sprintf("%s:%v", kv.Key, kv.Value))
	}
	return strings.Join(parts, ", ")
}

func sameBoolPtr(a, b *bool) bool {
	av := false
	bv := false
	if a != nil {
		av = *a
	}
	if b != nil {
		bv = *b
	}
	return av == bv
}

// Best-effort duplicate-detector (works cross-vendors)
func isDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if e.Code == 11000 { // E11000 duplicate key error index
				return true
			}
		}
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && ce.Code == 11000 {
		return true
	}
	s := err.Error()
	return strings.Contains(s, "E11000") || strings.Contains(strings.ToLower(s), "duplicate key")
}

// Mongo/DocDB sometimes returns IndexOptionsConflict when an index with the
// same keys already exists under a different name (or options differ).
func isOptionsConflictErr(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "IndexOptionsConflict")
}

func ensureIndexSet(ctx context.Context, coll *mongo.Collection, models []mongo.IndexModel) error {
	var errs []string

	for _, m := range models {
		var desiredName string
		var desiredUnique *bool
		if m.Options != nil {
			if m.Options.Name != nil {
				desiredName = *m.Options.Name
			}
			if m.Options.Unique != nil {
				desiredUnique = m.Options.Unique
			}
		}
		desiredSig := keySig(m.Keys.(bson.D))

		start := time.Now()
		zap.L().Info("ensuring index",
			zap.String("collection", coll.Name()),
			zap.String("name", desiredName),
			zap.String("keys", desiredSig),
			zap.Bool("unique", desiredUnique != nil && *desiredUnique))

		// 1) Load existing indexes
		existing := map[string]existingIndex{} // sig -> index
		cur, err := coll.Indexes().List(ctx)
		if err == nil {
			defer cur.Close(ctx)
			for cur.Next(ctx) {
				var idx existingIndex
				if err := cur.Decode(&idx); err != nil {
					zap.L().Warn("failed to decode existing index",
						zap.String("collection", coll.Name()),
						zap.Error(err))
					continue
				}
				existing[keySig(idx.Key)] = idx
			}
		}

		if ex, ok := existing[desiredSig]; ok {
			// Same key pattern exists already.
			if sameBoolPtr(desiredUnique, ex.Unique) {
				// --- Name alignment: if the name differs, drop & recreate with the desired name.
				if desiredName != "" && ex.Name != desiredName {
					zap.L().Info("renaming index to align with desired name",
						zap.String("collection", coll.Name()),
						zap.String("from", ex.Name),
						zap.String("to", desiredName),
						zap.String("keys", desiredSig))

					if _, err := coll.Indexes().DropOne(ctx, ex.Name); err != nil {
						zap.L().Warn("drop existing index (rename) failed",
							zap.String("collection", coll.Name()),
							zap.String("name", ex.Name),
							zap.Error(err))
						errs = append(errs, fmt.Sprintf("%s(%s): rename drop failed: %v", coll.Name(), desiredName, err))
						continue
					}
					if _, err := coll.Indexes().CreateOne(ctx, m); err != nil {
						zap.L().Warn("create index (rename) failed",
							zap.String("collection", coll.Name()),
							zap.String("name", desiredName),
							zap.Error(err))
						errs = append(errs, fmt.Sprintf("%s(%s): rename create failed: %v", coll.Name(), desiredName, err))
						continue
					}
					zap.L().Info("index renamed",
						zap.String("collection", coll.Name()),
						zap.String("name", desiredName),
						zap.String("keys", desiredSig),
						zap.String("took", time.Since(start).String()))
					continue
				}

				// Names aligned (or we don't care) → reuse
				zap.L().Info("reusing existing index",
					zap.String("collection", coll.Name()),
					zap.String("name", ex.Name),
					zap.String("keys", desiredSig),
					zap.Bool("unique", ex.Unique != nil && *ex.Unique),
					zap.String("took", time.Since(start).String()))
				continue
			}

			// Options mismatch (e.g., upgrading to unique). Drop & recreate.
			if _, err := coll.Indexes().DropOne(ctx, ex.Name); err != nil {
				zap.L().Warn("drop existing index failed",
					zap.String("collection", coll.Name()),
					zap.String("name", ex.Name),
					zap.String("keys", desiredSig),
					zap.Error(err))
				errs = append(errs, fmt.Sprintf("%s(%s): drop failed: %v", coll.Name(), desiredName, err))
				continue
			}
			if _, err := coll.Indexes().CreateOne(ctx, m); err != nil {
				errs = append(errs, createFailure(coll, desiredName, desiredSig, desiredUnique, err))
				continue
			}
			zap.L().Info("index dropped and recreated",
				zap.String("collection", coll.Name()),
				zap.String("name", desiredName),
				zap.String("keys", desiredSig),
				zap.Bool("unique", desiredUnique != nil && *desiredUnique),
				zap.String("took", time.Since(start).String()))
			continue
		}

		// 2) No existing index with the same keys: create it.
		if created, err := coll.Indexes().CreateOne(ctx, m); err != nil {
			if isOptionsConflictErr(err) {
				cur2, e2 := coll.Indexes().List(ctx)
				if e2 == nil {
					var match *existingIndex
					for cur2.Next(ctx) {
						var idx existingIndex
						if err := cur2.Decode(&idx); err != nil {
							zap.L().Warn("failed to decode existing index (post-conflict)",
								zap.String("collection", coll.Name()),
								zap.Error(err))
							continue
						}
						if keySig(idx.Key) == desiredSig {
							match = &idx
							break
						}
					}
					cur2.Close(ctx)
					if match != nil {
						if sameBoolPtr(desiredUnique, match.Unique) {
							zap.L().Info("reusing existing index (post-conflict)",
								zap.String("collection", coll.Name()),
								zap.String("name", match.Name),
								zap.String("keys", desiredSig),
								zap.Bool("unique", match.Unique != nil && *match.Unique),
								zap.String("took", time.Since(start).String()))
							continue
						}
						if _, dropErr := coll.Indexes().DropOne(ctx, match.Name); dropErr != nil {
							zap.L().Warn("failed to drop conflicting index",
								zap.String("collection", coll.Name()),
								zap.String("name", match.Name),
								zap.Error(dropErr))
						}
						if _, e3 := coll.Indexes().CreateOne(ctx, m); e3 != nil {
							errs = append(errs, createFailure(coll, desiredName, desiredSig, desiredUnique, e3))
							continue
						}
						zap.L().Info("index dropped and recreated (post-conflict)",
							zap.String("collection", coll.Name()),
							zap.String("name", desiredName),
							zap.String("keys", desiredSig),
							zap.Bool("unique", desiredUnique != nil && *desiredUnique),
							zap.String("took", time.Since(start).String()))
						continue
					}
				}

				zap.L().Warn("index ensure failed",
					zap.String("collection", coll.Name()),
					zap.String("name", desiredName),
					zap.String("keys", desiredSig),
					zap.Bool("unique", desiredUnique != nil && *desiredUnique),
					zap.String("took", time.Since(start).String()),
					zap.Error(err))
				errs = append(errs, fmt.Sprintf("%s(%s): %v", coll.Name(), desiredName, err))
				continue
			}

			zap.L().Warn("index ensure failed",
				zap.String("collection", coll.Name()),
				zap.String("name", desiredName),
				zap.String("keys", desiredSig),
				zap.Bool("unique", desiredUnique != nil && *desiredUnique),
				zap.String("took", time.Since(start).String()),
				zap.Error(err))
			errs = append(errs, fmt.Sprintf("%s(%s): %v", coll.Name(), desiredName, err))
			continue
		} else {
			zap.L().Info("index ensured",
				zap.String("collection", coll.Name()),
				zap.String("name", desiredName),
				zap.String("created_name", created),
				zap.String("keys", desiredSig),
				zap.Bool("unique", desiredUnique != nil && *desiredUnique),
				zap.String("took", time.Since(start).String()))
		}
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// createFailure describes a failed CreateOne. For unique indexes blocked by
// existing duplicates it includes an aggregation that finds them.
func createFailure(coll *mongo.Collection, name, sig string, unique *bool, err error) string {
	if !isDuplicateKeyErr(err) || unique == nil || !*unique {
		return fmt.Sprintf("%s(%s): %v", coll.Name(), name, err)
	}
	fields := strings.Split(sig, ", ")
	group := make([]string, 0, len(fields))
	for _, f := range fields {
		k := strings.SplitN(f, ":", 2)[0]
		group = append(group, fmt.Sprintf("%s: \"$%s\"", k, k))
	}
	finder := fmt.Sprintf("db.%s.aggregate([{ $group: { _id: { %s }, n: { $sum: 1 } } }, { $match: { n: { $gt: 1 } } }])",
		coll.Name(), strings.Join(group, ", "))
	return fmt.Sprintf("%s(%s): cannot create unique index (duplicates present); finder:\n%s", coll.Name(), name, finder)
}

/* -------------------------------------------------------------------------- */
/* Collection-specific index sets                                              */
/* -------------------------------------------------------------------------- */

func ensureUsers(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("users"), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_users_email"),
		},
		{
			Keys:    bson.D{{Key: "full_name_ci", Value: 1}, {Key: "_id", Value: 1}},
			Options: options.Index().SetName("idx_users_fullnameci_id"),
		},
	})
}

func ensureTeams(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("teams"), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "owner_id", Value: 1}},
			Options: options.Index().SetName("idx_teams_owner"),
		},
		{
			Keys:    bson.D{{Key: "name_ci", Value: 1}, {Key: "_id", Value: 1}},
			Options: options.Index().SetName("idx_teams_nameci_id"),
		},
	})
}

func ensureTeamMembers(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("team_members"), []mongo.IndexModel{
		// One row per (team, user); a concurrent duplicate add fails here.
		{
			Keys:    bson.D{{Key: "team_id", Value: 1}, {Key: "user_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_team_members_team_user"),
		},
		// "my teams" list view
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "active", Value: 1}},
			Options: options.Index().SetName("idx_team_members_user_active"),
		},
	})
}

func ensureTeamInvitations(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("team_invitations"), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "token", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_team_invitations_token"),
		},
		{
			Keys:    bson.D{{Key: "email", Value: 1}, {Key: "team_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_team_invitations_email_team"),
		},
		{
			Keys:    bson.D{{Key: "team_id", Value: 1}, {Key: "is_accepted", Value: 1}},
			Options: options.Index().SetName("idx_team_invitations_team_accepted"),
		},
	})
}

func ensureBoards(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("boards"), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "owner_id", Value: 1}, {Key: "archived", Value: 1}},
			Options: options.Index().SetName("idx_boards_owner_archived"),
		},
		{
			Keys:    bson.D{{Key: "team_id", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_boards_team_created"),
		},
	})
}

func ensureBoardMembers(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("board_members"), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "board_id", Value: 1}, {Key: "user_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_board_members_board_user"),
		},
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "active", Value: 1}},
			Options: options.Index().SetName("idx_board_members_user_active"),
		},
	})
}

func ensureLists(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("lists"), []mongo.IndexModel{
		// Sibling order: position, then created_at and _id as tie-break.
		{
			Keys: bson.D{
				{Key: "board_id", Value: 1},
				{Key: "position", Value: 1},
				{Key: "created_at", Value: 1},
				{Key: "_id", Value: 1},
			},
			Options: options.Index().SetName("idx_lists_board_position_created_id"),
		},
	})
}

func ensureCards(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("cards"), []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "list_id", Value: 1},
				{Key: "position", Value: 1},
				{Key: "created_at", Value: 1},
				{Key: "_id", Value: 1},
			},
			Options: options.Index().SetName("idx_cards_list_position_created_id"),
		},
		{
			Keys:    bson.D{{Key: "board_id", Value: 1}},
			Options: options.Index().SetName("idx_cards_board"),
		},
		{
			Keys:    bson.D{{Key: "assigned_to_id", Value: 1}, {Key: "due_date", Value: 1}},
			Options: options.Index().SetName("idx_cards_assignee_due"),
		},
	})
}

func ensureCardComments(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("card_comments"), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "card_id", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_card_comments_card_created"),
		},
	})
}

func ensureCardAttachments(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("card_attachments"), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "card_id", Value: 1}, {Key: "created_at", Value: 1}},
			Options: options.Index().SetName("idx_card_attachments_card_created"),
		},
	})
}

func ensureLabels(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("labels"), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "board_id", Value: 1}, {Key: "name", Value: 1}},
			Options: options.Index().SetName("idx_labels_board_name"),
		},
	})
}

func ensureCardLabels(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("card_labels"), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "card_id", Value: 1}, {Key: "label_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_card_labels_card_label"),
		},
		{
			Keys:    bson.D{{Key: "label_id", Value: 1}},
			Options: options.Index().SetName("idx_card_labels_label"),
		},
	})
}
