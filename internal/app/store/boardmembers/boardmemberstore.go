// internal/app/store/boardmembers/boardmemberstore.go
package boardmemberstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/taskhub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("board_members")}
}

var errBadRole = errors.New("role must be member, admin or owner")

// ErrDuplicateMembership is returned when (board_id, user_id) already exists.
var ErrDuplicateMembership = errors.New("user is already a member of this board")

// Add creates the membership row for (boardID, userID).
func (s *Store) Add(ctx context.Context, boardID, userID primitive.ObjectID, role models.Role) (models.BoardMember, error) {
	if !role.Valid() {
		return models.BoardMember{}, errBadRole
	}
	m := models.BoardMember{
		ID:       primitive.NewObjectID(),
		BoardID:  boardID,
		UserID:   userID,
		Role:     role,
		Active:   true,
		JoinedAt: time.Now().UTC(),
	}
	if _, err := s.c.InsertOne(ctx, m); err != nil {
		if wafflemongo.IsDup(err) {
			return models.BoardMember{}, ErrDuplicateMembership
		}
		return models.BoardMember{}, err
	}
	return m, nil
}

// Entry is one member to add in a batch.
type Entry struct {
	UserID primitive.ObjectID
	Role   models.Role
}

// AddBatchResult contains counts from a batch add.
type AddBatchResult struct {
	Added      int
	Duplicates int
}

// AddBatch inserts several rows for one board. Existing (board, user) pairs
// are counted as duplicates, not errors.
func (s *Store) AddBatch(ctx context.Context, boardID primitive.ObjectID, entries []Entry) (AddBatchResult, error) {
	if len(entries) == 0 {
		return AddBatchResult{}, nil
	}
	now := time.Now().UTC()
	docs := make([]interface{}, 0, len(entries))
	for _, e := range entries {
		if !e.Role.Valid() {
			return AddBatchResult{}, errBadRole
		}
		docs = append(docs, models.BoardMember{
			ID:       primitive.NewObjectID(),
			BoardID:  boardID,
			UserID:   e.UserID,
			Role:     e.Role,
			Active:   true,
			JoinedAt: now,
		})
	}

	res, err := s.c.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	added := 0
	if res != nil {
		added = len(res.InsertedIDs)
	}
	result := AddBatchResult{Added: added, Duplicates: len(entries) - added}
	if err != nil {
		var bulkErr mongo.BulkWriteException
		if errors.As(err, &bulkErr) {
			for _, we := range bulkErr.WriteErrors {
				if we.Code != 11000 {
					return result, err
				}
			}
			return result, nil
		}
		return result, err
	}
	return result, nil
}

// ListByBoard returns the board's active member rows, oldest first.
func (s *Store) ListByBoard(ctx context.Context, boardID primitive.ObjectID) ([]models.BoardMember, error) {
	opts := options.Find().SetSort(bson.D{{Key: "joined_at", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.c.Find(ctx, bson.M{"board_id": boardID, "active": true}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.BoardMember
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListByUser returns the user's active rows across all boards.
func (s *Store) ListByUser(ctx context.Context, userID primitive.ObjectID) ([]models.BoardMember, error) {
	cur, err := s.c.Find(ctx, bson.M{"user_id": userID, "active": true})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.BoardMember
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UserIDsByBoards returns the distinct user ids with a row on any of the boards.
func (s *Store) UserIDsByBoards(ctx context.Context, boardIDs []primitive.ObjectID) ([]primitive.ObjectID, error) {
	if len(boardIDs) == 0 {
		return nil, nil
	}
	return distinct(ctx, s.c, "user_id", bson.M{"board_id": bson.M{"$in": boardIDs}})
}

// BoardIDsByUser returns the ids of boards where the user has an active row.
func (s *Store) BoardIDsByUser(ctx context.Context, userID primitive.ObjectID) ([]primitive.ObjectID, error) {
	return distinct(ctx, s.c, "board_id", bson.M{"user_id": userID, "active": true})
}

// SetRole updates the role on an existing row.
func (s *Store) SetRole(ctx context.Context, boardID, userID primitive.ObjectID, role models.Role) error {
	if !role.Valid() {
		return errBadRole
	}
	res, err := s.c.UpdateOne(ctx,
		bson.M{"board_id": boardID, "user_id": userID},
		bson.M{"$set": bson.M{"role": role}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// Remove deletes the row for (boardID, userID).
func (s *Store) Remove(ctx context.Context, boardID, userID primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteOne(ctx, bson.M{"board_id": boardID, "user_id": userID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// RemoveUserFromBoards deletes userID's rows on any of the boards.
func (s *Store) RemoveUserFromBoards(ctx context.Context, userID primitive.ObjectID, boardIDs []primitive.ObjectID) (int64, error) {
	if len(boardIDs) == 0 {
		return 0, nil
	}
	res, err := s.c.DeleteMany(ctx, bson.M{"user_id": userID, "board_id": bson.M{"$in": boardIDs}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// DeleteByBoards removes every row of the given boards.
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

func distinct(ctx context.Context, c *mongo.Collection, field string, filter bson.M) ([]primitive.ObjectID, error) {
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
