// internal/app/store/cards/cardstore.go
package cardstore

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

var order = bson.D{
	{Key: "position", Value: 1},
	{Key: "created_at", Value: 1},
	{Key: "_id", Value: 1},
}

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("cards")}
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Card, error) {
	var c models.Card
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&c); err != nil {
		return models.Card{}, err
	}
	return c, nil
}

// Create inserts a card into list. A nil position appends (sibling count).
// ListID, BoardID and CreatedByID must be set on c.
func (s *Store) Create(ctx context.Context, c models.Card, position *int) (models.Card, error) {
	if position != nil {
		c.Position = *position
	} else {
		n, err := s.CountByList(ctx, c.ListID)
		if err != nil {
			return models.Card{}, err
		}
		c.Position = int(n)
	}
	now := time.Now().UTC()
	c.ID = primitive.NewObjectID()
	c.Title = strings.TrimSpace(c.Title)
	c.CreatedAt = now
	c.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, c); err != nil {
		return models.Card{}, err
	}
	return c, nil
}

// ListByLists returns the cards of the given lists, each list's cards in
// canonical order.
func (s *Store) ListByLists(ctx context.Context, listIDs []primitive.ObjectID) ([]models.Card, error) {
	if len(listIDs) == 0 {
		return nil, nil
	}
	sort := append(bson.D{{Key: "list_id", Value: 1}}, order...)
	cur, err := s.c.Find(ctx, bson.M{"list_id": bson.M{"$in": listIDs}}, options.Find().SetSort(sort))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Card
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Update holds the optional card fields a PATCH may change.
// ClearDueDate and ClearAssignee unset the respective fields.
type Update struct {
	Title         *string
	Description   *string
	Priority      *models.Priority
	DueDate       *time.Time
	ClearDueDate  bool
	AssignedToID  *primitive.ObjectID
	ClearAssignee bool
	Archived      *bool
}

func (s *Store) Update(ctx context.Context, id primitive.ObjectID, u Update) error {
	set := bson.M{"updated_at": time.Now().UTC()}
	unset := bson.M{}
	if u.Title != nil {
		set["title"] = strings.TrimSpace(*u.Title)
	}
	if u.Description != nil {
		set["description"] = *u.Description
	}
	if u.Priority != nil {
		set["priority"] = *u.Priority
	}
	if u.ClearDueDate {
		unset["due_date"] = ""
	} else if u.DueDate != nil {
		set["due_date"] = u.DueDate.UTC()
	}
	if u.ClearAssignee {
		unset["assigned_to_id"] = ""
	} else if u.AssignedToID != nil {
		set["assigned_to_id"] = *u.AssignedToID
	}
	if u.Archived != nil {
		set["archived"] = *u.Archived
	}
	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}
	res, err := s.c.UpdateByID(ctx, id, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// Move stores the card's list, board and position in one update. Sibling
// positions are left untouched.
func (s *Store) Move(ctx context.Context, id, listID, boardID primitive.ObjectID, position int) error {
	res, err := s.c.UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"list_id":    listID,
		"board_id":   boardID,
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

// IDsByLists returns the ids of every card in the given lists.
func (s *Store) IDsByLists(ctx context.Context, listIDs []primitive.ObjectID) ([]primitive.ObjectID, error) {
	if len(listIDs) == 0 {
		return nil, nil
	}
	raw, err := s.c.Distinct(ctx, "_id", bson.M{"list_id": bson.M{"$in": listIDs}})
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

// DeleteByIDs removes the given cards.
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

// CountByList returns the number of cards in the list.
func (s *Store) CountByList(ctx context.Context, listID primitive.ObjectID) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{"list_id": listID})
}
