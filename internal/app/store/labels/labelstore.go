// internal/app/store/labels/labelstore.go
package labelstore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dalemusser/taskhub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store covers both labels (board scoped) and card_labels (the join).
type Store struct {
	labels     *mongo.Collection
	cardLabels *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{
		labels:     db.Collection("labels"),
		cardLabels: db.Collection("card_labels"),
	}
}

// ErrAlreadyApplied is returned when the label is already on the card.
var ErrAlreadyApplied = errors.New("label is already applied to this card")

func (s *Store) Create(ctx context.Context, boardID primitive.ObjectID, name, color string) (models.Label, error) {
	l := models.Label{
		ID:        primitive.NewObjectID(),
		BoardID:   boardID,
		Name:      strings.TrimSpace(name),
		Color:     color,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := s.labels.InsertOne(ctx, l); err != nil {
		return models.Label{}, err
	}
	return l, nil
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Label, error) {
	var l models.Label
	err := s.labels.FindOne(ctx, bson.M{"_id": id}).Decode(&l)
	return l, err
}

// ListByBoard returns the board's labels by name.
func (s *Store) ListByBoard(ctx context.Context, boardID primitive.ObjectID) ([]models.Label, error) {
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.labels.Find(ctx, bson.M{"board_id": boardID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Label
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteByBoards removes the labels of the given boards.
func (s *Store) DeleteByBoards(ctx context.Context, boardIDs []primitive.ObjectID) (int64, error) {
	if len(boardIDs) == 0 {
		return 0, nil
	}
	res, err := s.labels.DeleteMany(ctx, bson.M{"board_id": bson.M{"$in": boardIDs}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// Apply attaches label to card.
func (s *Store) Apply(ctx context.Context, cardID, labelID, boardID primitive.ObjectID) (models.CardLabel, error) {
	cl := models.CardLabel{
		ID:        primitive.NewObjectID(),
		CardID:    cardID,
		LabelID:   labelID,
		BoardID:   boardID,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := s.cardLabels.InsertOne(ctx, cl); err != nil {
		if wafflemongo.IsDup(err) {
			return models.CardLabel{}, ErrAlreadyApplied
		}
		return models.CardLabel{}, err
	}
	return cl, nil
}

// Unapply removes label from card.
func (s *Store) Unapply(ctx context.Context, cardID, labelID primitive.ObjectID) (int64, error) {
	res, err := s.cardLabels.DeleteOne(ctx, bson.M{"card_id": cardID, "label_id": labelID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// LabelIDsByCards maps each card to the ids of its labels.
func (s *Store) LabelIDsByCards(ctx context.Context, cardIDs []primitive.ObjectID) (map[primitive.ObjectID][]primitive.ObjectID, error) {
	out := make(map[primitive.ObjectID][]primitive.ObjectID)
	if len(cardIDs) == 0 {
		return out, nil
	}
	cur, err := s.cardLabels.Find(ctx, bson.M{"card_id": bson.M{"$in": cardIDs}},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	for cur.Next(ctx) {
		var cl models.CardLabel
		if err := cur.Decode(&cl); err != nil {
			return nil, err
		}
		out[cl.CardID] = append(out[cl.CardID], cl.LabelID)
	}
	return out, cur.Err()
}

// UnapplyAllFromCards removes every card_labels row of the given cards.
func (s *Store) UnapplyAllFromCards(ctx context.Context, cardIDs []primitive.ObjectID) (int64, error) {
	if len(cardIDs) == 0 {
		return 0, nil
	}
	res, err := s.cardLabels.DeleteMany(ctx, bson.M{"card_id": bson.M{"$in": cardIDs}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// UnapplyAllForCardOnBoard removes the card's labels from boardID. Labels are
// board scoped, so a card moved to another board drops them.
func (s *Store) UnapplyAllForCardOnBoard(ctx context.Context, cardID, boardID primitive.ObjectID) (int64, error) {
	res, err := s.cardLabels.DeleteMany(ctx, bson.M{"card_id": cardID, "board_id": boardID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
