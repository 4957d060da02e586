// internal/app/store/attachments/attachmentstore.go
package attachmentstore

import (
	"context"
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
	return &Store{c: db.Collection("card_attachments")}
}

// Create records attachment metadata. The file bytes live in external storage
// under StorageKey.
func (s *Store) Create(ctx context.Context, a models.CardAttachment) (models.CardAttachment, error) {
	a.ID = primitive.NewObjectID()
	a.CreatedAt = time.Now().UTC()
	if _, err := s.c.InsertOne(ctx, a); err != nil {
		return models.CardAttachment{}, err
	}
	return a, nil
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.CardAttachment, error) {
	var a models.CardAttachment
	err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&a)
	return a, err
}

func (s *Store) ListByCard(ctx context.Context, cardID primitive.ObjectID) ([]models.CardAttachment, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.c.Find(ctx, bson.M{"card_id": cardID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.CardAttachment
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// DeleteByCards removes the attachments of the given cards.
func (s *Store) DeleteByCards(ctx context.Context, cardIDs []primitive.ObjectID) (int64, error) {
	if len(cardIDs) == 0 {
		return 0, nil
	}
	res, err := s.c.DeleteMany(ctx, bson.M{"card_id": bson.M{"$in": cardIDs}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// MoveToBoard rewrites the denormalized board_id of a card's attachments.
func (s *Store) MoveToBoard(ctx context.Context, cardID, boardID primitive.ObjectID) error {
	_, err := s.c.UpdateMany(ctx, bson.M{"card_id": cardID}, bson.M{"$set": bson.M{"board_id": boardID}})
	return err
}
