// internal/app/store/boards/boardstore.go
package boardstore

import (
	"context"
	"strings"
	"time"

	"github.com/dalemusser/taskhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("boards")}
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Board, error) {
	var b models.Board
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&b); err != nil {
		return models.Board{}, err
	}
	return b, nil
}

func (s *Store) Create(ctx context.Context, b models.Board) (models.Board, error) {
	now := time.Now().UTC()
	b.ID = primitive.NewObjectID()
	b.Title = strings.TrimSpace(b.Title)
	b.CreatedAt = now
	b.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, b); err != nil {
		return models.Board{}, err
	}
	return b, nil
}

// ListVisible returns the non-archived boards owned by userID or whose id is
// in memberOf, newest first.
func (s *Store) ListVisible(ctx context.Context, userID primitive.ObjectID, memberOf []primitive.ObjectID) ([]models.Board, error) {
	or := bson.A{bson.M{"owner_id": userID}}
	if len(memberOf) > 0 {
		or = append(or, bson.M{"_id": bson.M{"$in": memberOf}})
	}
	filter := bson.M{"$or": or, "archived": false}
	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}, {Key: "_id", Value: 1}})
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Board
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// IDsByTeam returns the ids of every board scoped to the team.
func (s *Store) IDsByTeam(ctx context.Context, teamID primitive.ObjectID) ([]primitive.ObjectID, error) {
	return distinctIDs(ctx, s.c, "_id", bson.M{"team_id": teamID})
}

// CountByTeam returns the number of boards per team id.
func (s *Store) CountByTeam(ctx context.Context, teamIDs []primitive.ObjectID) (map[primitive.ObjectID]int, error) {
	out := make(map[primitive.ObjectID]int, len(teamIDs))
	if len(teamIDs) == 0 {
		return out, nil
	}
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"team_id": bson.M{"$in": teamIDs}, "archived": false}}},
		{{Key: "$group", Value: bson.M{"_id": "$team_id", "n": bson.M{"$sum": 1}}}},
	}
	cur, err := s.c.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	for cur.Next(ctx) {
		var row struct {
			ID primitive.ObjectID `bson:"_id"`
			N  int                `bson:"n"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, err
		}
		out[row.ID] = row.N
	}
	return out, cur.Err()
}

// ListByTeam returns the team's boards, newest first.
func (s *Store) ListByTeam(ctx context.Context, teamID primitive.ObjectID) ([]models.Board, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}})
	cur, err := s.c.Find(ctx, bson.M{"team_id": teamID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Board
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Update holds the optional board fields a PATCH may change.
type Update struct {
	Title       *string
	Description *string
	Color       *string
	Archived    *bool
}

// Update applies the non-nil fields of u.
func (s *Store) Update(ctx context.Context, id primitive.ObjectID, u Update) error {
	set := bson.M{"updated_at": time.Now().UTC()}
	if u.Title != nil {
		set["title"] = strings.TrimSpace(*u.Title)
	}
	if u.Description != nil {
		set["description"] = *u.Description
	}
	if u.Color != nil {
		set["color"] = *u.Color
	}
	if u.Archived != nil {
		set["archived"] = *u.Archived
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

// DeleteByIDs removes the given boards.
func (s *Store) DeleteByIDs(ctx context.Context, ids []primitive.ObjectID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := s.c.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func distinctIDs(ctx context.Context, c *mongo.Collection, field string, filter bson.M) ([]primitive.ObjectID, error) {
	raw, err := c.Distinct(ctx, field, filter)
	if err != nil {
		return nil, err
	}
	out := make([]primitive.ObjectID, 0, len(raw))
	for _, v := range raw {
		if oid, ok := v.(primitive.ObjectID); ok {
			out = append(out, oid)
		}
	}
	return out, nil
}
