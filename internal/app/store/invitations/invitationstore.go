// internal/app/store/invitations/invitationstore.go
package invitationstore

import (
	"context"
	"time"

	"github.com/dalemusser/taskhub/internal/app/system/normalize"
	"github.com/dalemusser/taskhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c   *mongo.Collection
	now func() time.Time
}

func New(db *mongo.Database) *Store {
	return &Store{
		c:   db.Collection("team_invitations"),
		now: func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the time source, for tests.
func (s *Store) SetClock(now func() time.Time) { s.now = now }

// Upsert creates the pending invitation for (email, teamID) or refreshes the
// existing one with a new token, inviter and expiry. An accepted row is
// reset to pending.
func (s *Store) Upsert(ctx context.Context, email string, teamID, invitedBy primitive.ObjectID, token string, ttl time.Duration) (models.TeamInvitation, error) {
	now := s.now()
	email = normalize.Email(email)

	filter := bson.M{"email": email, "team_id": teamID}
	update := bson.M{
		"$set": bson.M{
			"invited_by_user_id": invitedBy,
			"token":              token,
			"is_accepted":        false,
			"created_at":         now,
			"expires_at":         now.Add(ttl),
		},
		"$unset":       bson.M{"accepted_at": ""},
		"$setOnInsert": bson.M{"_id": primitive.NewObjectID()},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var inv models.TeamInvitation
	if err := s.c.FindOneAndUpdate(ctx, filter, update, opts).Decode(&inv); err != nil {
		return models.TeamInvitation{}, err
	}
	return inv, nil
}

// GetByToken returns the invitation for token regardless of its state.
func (s *Store) GetByToken(ctx context.Context, token string) (models.TeamInvitation, error) {
	var inv models.TeamInvitation
	err := s.c.FindOne(ctx, bson.M{"token": token}).Decode(&inv)
	return inv, err
}

// MarkAccepted flips a pending invitation to accepted. Returns
// mongo.ErrNoDocuments when the invitation was already accepted, which
// makes a concurrent double accept lose inside its transaction.
func (s *Store) MarkAccepted(ctx context.Context, id primitive.ObjectID) (time.Time, error) {
	now := s.now()
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "is_accepted": false},
		bson.M{"$set": bson.M{"is_accepted": true, "accepted_at": now}})
	if err != nil {
		return time.Time{}, err
	}
	if res.MatchedCount == 0 {
		return time.Time{}, mongo.ErrNoDocuments
	}
	return now, nil
}

// ListPendingByTeam returns invitations that are neither accepted nor
// expired, newest first.
func (s *Store) ListPendingByTeam(ctx context.Context, teamID primitive.ObjectID) ([]models.TeamInvitation, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cur, err := s.c.Find(ctx, bson.M{
		"team_id":     teamID,
		"is_accepted": false,
		"expires_at":  bson.M{"$gte": s.now()},
	}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.TeamInvitation
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteByTeam removes every invitation for the team.
func (s *Store) DeleteByTeam(ctx context.Context, teamID primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"team_id": teamID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
