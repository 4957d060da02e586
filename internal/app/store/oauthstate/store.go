// internal/app/store/oauthstate/store.go
package oauthstate

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// State is an OAuth2 state value stored for CSRF protection. InviteToken is
// set when sign-in started from an invitation page, so the callback can join
// the team once the identity is known.
type State struct {
	State       string    `bson:"state"`
	ReturnURL   string    `bson:"return_url,omitempty"`
	InviteToken string    `bson:"invite_token,omitempty"`
	ExpiresAt   time.Time `bson:"expires_at"`
	CreatedAt   time.Time `bson:"created_at"`
}

// Store manages OAuth2 state values in MongoDB.
type Store struct {
	c *mongo.Collection
}

// New creates a new OAuth state Store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("oauth_states")}
}

// EnsureIndexes creates the lookup index and the TTL index that expires states.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "state", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("idx_oauth_state"),
		},
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0).SetName("idx_oauth_ttl"),
		},
	}
	_, err := s.c.Indexes().CreateMany(ctx, indexes)
	return err
}

// Save stores a state with its expiry.
func (s *Store) Save(ctx context.Context, st State) error {
	st.CreatedAt = time.Now().UTC()
	_, err := s.c.InsertOne(ctx, st)
	return err
}

// Consume looks up an unexpired state and deletes it in the same call, so
// each state is usable once. ok is false when the state is unknown or expired.
func (s *Store) Consume(ctx context.Context, state string) (st State, ok bool, err error) {
	err = s.c.FindOneAndDelete(ctx, bson.M{
		"state":      state,
		"expires_at": bson.M{"$gt": time.Now().UTC()},
	}).Decode(&st)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return State{}, false, nil
	}
	if err != nil {
		return State{}, false, err
	}
	return st, true, nil
}

// CleanupExpired removes expired states when the TTL monitor lags.
func (s *Store) CleanupExpired(ctx context.Context) (int64, error) {
	result, err := s.c.DeleteMany(ctx, bson.M{
		"expires_at": bson.M{"$lt": time.Now().UTC()},
	})
	if err != nil {
		return 0, err
	}
	return result.DeletedCount, nil
}
