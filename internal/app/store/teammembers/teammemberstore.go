// internal/app/store/teammembers/teammemberstore.go
package teammemberstore

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
	return &Store{c: db.Collection("team_members")}
}

var errBadRole = errors.New("role must be member, admin or owner")

// ErrDuplicateMembership is returned when (team_id, user_id) already exists.
var ErrDuplicateMembership = errors.New("user is already a member of this team")

// Add creates the membership row for (teamID, userID).
func (s *Store) Add(ctx context.Context, teamID, userID primitive.ObjectID, role models.Role) (models.TeamMember, error) {
	if !role.Valid() {
		return models.TeamMember{}, errBadRole
	}
	m := models.TeamMember{
		ID:       primitive.NewObjectID(),
		TeamID:   teamID,
		UserID:   userID,
		Role:     role,
		Active:   true,
		JoinedAt: time.Now().UTC(),
	}
	if _, err := s.c.InsertOne(ctx, m); err != nil {
		if wafflemongo.IsDup(err) {
			return models.TeamMember{}, ErrDuplicateMembership
		}
		return models.TeamMember{}, err
	}
	return m, nil
}

// Get returns the membership row or mongo.ErrNoDocuments.
func (s *Store) Get(ctx context.Context, teamID, userID primitive.ObjectID) (models.TeamMember, error) {
	var m models.TeamMember
	err := s.c.FindOne(ctx, bson.M{"team_id": teamID, "user_id": userID}).Decode(&m)
	return m, err
}

// ListByTeam returns the team's active member rows, oldest first.
func (s *Store) ListByTeam(ctx context.Context, teamID primitive.ObjectID) ([]models.TeamMember, error) {
	opts := options.Find().SetSort(bson.D{{Key: "joined_at", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.c.Find(ctx, bson.M{"team_id": teamID, "active": true}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.TeamMember
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListByUser returns the user's active memberships across teams.
func (s *Store) ListByUser(ctx context.Context, userID primitive.ObjectID) ([]models.TeamMember, error) {
	cur, err := s.c.Find(ctx, bson.M{"user_id": userID, "active": true})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.TeamMember
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CountByTeam returns the number of active member rows per team id.
func (s *Store) CountByTeam(ctx context.Context, teamIDs []primitive.ObjectID) (map[primitive.ObjectID]int, error) {
	out := make(map[primitive.ObjectID]int, len(teamIDs))
	if len(teamIDs) == 0 {
		return out, nil
	}
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"team_id": bson.M{"$in": teamIDs}, "active": true}}},
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

// SetRole updates the role on an existing row. Returns mongo.ErrNoDocuments
// when the row is missing.
func (s *Store) SetRole(ctx context.Context, teamID, userID primitive.ObjectID, role models.Role) error {
	if !role.Valid() {
		return errBadRole
	}
	res, err := s.c.UpdateOne(ctx,
		bson.M{"team_id": teamID, "user_id": userID},
		bson.M{"$set": bson.M{"role": role}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// Remove deletes the row for (teamID, userID).
func (s *Store) Remove(ctx context.Context, teamID, userID primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteOne(ctx, bson.M{"team_id": teamID, "user_id": userID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// DeleteByTeam removes every member row of the team.
func (s *Store) DeleteByTeam(ctx context.Context, teamID primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"team_id": teamID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
