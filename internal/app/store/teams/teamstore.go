// internal/app/store/teams/teamstore.go
package teamstore

import (
	"context"
	"strings"
	"time"

	"github.com/dalemusser/taskhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("teams")}
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Team, error) {
	var t models.Team
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&t); err != nil {
		return models.Team{}, err
	}
	return t, nil
}

// GetByIDs returns the teams with the given ids sorted by name.
func (s *Store) GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Team, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	opts := options.Find().SetSort(bson.D{{Key: "name_ci", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.c.Find(ctx, bson.M{"_id": bson.M{"$in": ids}}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Team
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Create inserts a team. The caller is responsible for the owner's team_members row.
func (s *Store) Create(ctx context.Context, t models.Team) (models.Team, error) {
	now := time.Now().UTC()
	t.ID = primitive.NewObjectID()
	t.Name = strings.TrimSpace(t.Name)
	t.NameCI = text.Fold(t.Name)
	t.CreatedAt = now
	t.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, t); err != nil {
		return models.Team{}, err
	}
	return t, nil
}

// UpdateInfo sets name (when non-empty) and description.
func (s *Store) UpdateInfo(ctx context.Context, id primitive.ObjectID, name, desc string) error {
	set := bson.M{
		"updated_at":  time.Now().UTC(),
		"description": desc,
	}
	if name = strings.TrimSpace(name); name != "" {
		set["name"] = name
		set["name_ci"] = text.Fold(name)
	}
	res, err := s.c.UpdateByID(ctx, id, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// SetOwner moves owner_id to userID. The team_members rows must be updated
// in the same transaction.
func (s *Store) SetOwner(ctx context.Context, id, userID primitive.ObjectID) error {
	res, err := s.c.UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"owner_id":   userID,
		"updated_at": time.Now().UTC(),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
