// internal/app/store/lists/liststore.go
package liststore

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

// Order is the canonical sibling order: position, then creation time, then id.
var Order = bson.D{
	{Key: "position", Value: 1},
	{Key: "created_at", Value: 1},
	{Key: "_id", Value: 1},
}

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("lists")}
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.List, error) {
	var l models.List
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&l); err != nil {
		return models.List{}, err
	}
	return l, nil
}

// Create inserts a list. A nil position appends after the existing lists
// of the board (position = sibling count). Siblings are never renumbered.
func (s *Store) Create(ctx context.Context, boardID primitive.ObjectID, title string, position *int) (models.List, error) {
	pos := 0
	if position != nil {
		pos = *position
	} else {
		n, err := s.c.CountDocuments(ctx, bson.M{"board_id": boardID})
		if err != nil {
			return models.List{}, err
		}
		pos = int(n)
	}
	now := time.Now().UTC()
	l := models.List{
		ID:        primitive.NewObjectID(),
		BoardID:   boardID,
		Title:     strings.TrimSpace(title),
		Position:  pos,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := s.c.InsertOne(ctx, l); err != nil {
		return models.List{}, err
	}
	return l, nil
}

// ListByBoard returns the board's lists in canonical order.
func (s *Store) ListByBoard(ctx context.Context, boardID primitive.ObjectID) ([]models.List, error) {
	cur, err := s.c.Find(ctx, bson.M{"board_id": boardID}, options.Find().SetSort(Order))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.List
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// IDsByBoards returns the ids of every list on the given boards.
func (s *Store) IDsByBoards(ctx context.Context, boardIDs []primitive.ObjectID) ([]primitive.ObjectID, error) {
	if len(boardIDs) == 0 {
		return nil, nil
	}
	raw, err := s.c.Distinct(ctx, "_id", bson.M{"board_id": bson.M{"$in": boardIDs}})
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

// Update applies the non-nil fields.
func (s *Store) Update(ctx context.Context, id primitive.ObjectID, title *string, archived *bool) error {
	set := bson.M{"updated_at": time.Now().UTC()}
	if title != nil {
		set["title"] = strings.TrimSpace(*title)
	}
	if archived != nil {
		set["archived"] = *archived
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

// SetPosition stores the list's new position and nothing else.
func (s *Store) SetPosition(ctx context.Context, id primitive.ObjectID, position int) error {
	res, err := s.c.UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"position":   position,
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

// DeleteByBoards removes every list of the given boards.
func (s *Store) DeleteByBoards(ctx context.Context, boardIDs []primitive.ObjectID) (int64, error) {
	if len(boardIDs) == 0 {
		return 0, nil
	}
	res, err := s.c.DeleteMany(ctx, bson.M{"board_id": bson.M{"$in": boardIDs}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
