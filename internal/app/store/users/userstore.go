package userstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/taskhub/internal/app/system/normalize"
	"github.com/dalemusser/taskhub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/crypto/bcrypt"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("users")}
}

var (
	// ErrDuplicateEmail is returned when attempting to create a user with an email that already exists.
	ErrDuplicateEmail = errors.New("a user with this email already exists")
	errBadAuthMethod  = errors.New(`auth_method must be "password" or "google"`)
	errNoPassword     = errors.New("password users need a password hash")
)

// HashPassword returns the bcrypt hash stored in password_hash.
func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// CheckPassword compares a candidate password with the user's hash.
func CheckPassword(u *models.User, password string) bool {
	if u == nil || u.PasswordHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

// GetByID loads a user by ObjectID.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByEmail looks up a user by case-insensitive email. Returns mongo.ErrNoDocuments if not found.
func (s *Store) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, bson.M{"email": normalize.Email(email)}).Decode(&u); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByIDs returns the users with the given ids keyed by id. Missing ids are absent.
func (s *Store) GetByIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.User, error) {
	out := make(map[primitive.ObjectID]models.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	opts := options.Find().SetProjection(bson.M{"password_hash": 0})
	cur, err := s.c.Find(ctx, bson.M{"_id": bson.M{"$in": ids}}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	for cur.Next(ctx) {
		var u models.User
		if err := cur.Decode(&u); err != nil {
			return nil, err
		}
		out[u.ID] = u
	}
	return out, cur.Err()
}

// Create inserts a new user after normalizing fields. PasswordHash must
// already be set for password users.
func (s *Store) Create(ctx context.Context, u models.User) (models.User, error) {
	u.ID = primitive.NewObjectID()
	u.Email = normalize.Email(u.Email)
	u.FirstName = normalize.Name(u.FirstName)
	u.LastName = normalize.Name(u.LastName)
	if u.FullName == "" {
		u.FullName = normalize.FullName(u.FirstName, u.LastName)
	}
	u.FullNameCI = text.Fold(u.FullName)
	if u.AuthMethod == "" {
		u.AuthMethod = models.AuthMethodPassword
	}
	u.AuthMethod = normalize.AuthMethod(u.AuthMethod)
	if !models.IsValidAuthMethod(u.AuthMethod) {
		return models.User{}, errBadAuthMethod
	}
	if u.AuthMethod == models.AuthMethodPassword && u.PasswordHash == "" {
		return models.User{}, errNoPassword
	}
	u.Active = true

	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, u); err != nil {
		if wafflemongo.IsDup(err) {
			return models.User{}, ErrDuplicateEmail
		}
		return models.User{}, err
	}
	return u, nil
}

// SetPasswordHash replaces the stored hash for the user with email.
// Returns mongo.ErrNoDocuments when no such user exists.
func (s *Store) SetPasswordHash(ctx context.Context, email, hash string) error {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"email": normalize.Email(email)},
		bson.M{"$set": bson.M{
			"password_hash": hash,
			"auth_method":   models.AuthMethodPassword,
			"updated_at":    time.Now().UTC(),
		}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// ConfirmEmail marks the user's address as verified.
func (s *Store) ConfirmEmail(ctx context.Context, id primitive.ObjectID) error {
	_, err := s.c.UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"email_confirmed": true,
		"updated_at":      time.Now().UTC(),
	}})
	return err
}

// Count returns the number of user documents matching filter.
func (s *Store) Count(ctx context.Context, filter bson.M) (int64, error) {
	return s.c.CountDocuments(ctx, filter)
}
