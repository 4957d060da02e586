// internal/app/store/audit/store.go
package audit

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Event categories
const (
	CategoryAuth  = "auth"
	CategoryTeam  = "team"
	CategoryBoard = "board"
)

// Auth event types
const (
	EventLoginSuccess             = "login_success"
	EventLoginFailedUserNotFound  = "login_failed_user_not_found"
	EventLoginFailedWrongPassword = "login_failed_wrong_password"
	EventLoginFailedUserDisabled  = "login_failed_user_disabled"
	EventLoginFailedRateLimit     = "login_failed_rate_limit"
	EventLoginFailedAuthMethod    = "login_failed_auth_method"
	EventLogout                   = "logout"
	EventUserRegistered           = "user_registered"
	EventPasswordResetRequested   = "password_reset_requested"
	EventPasswordReset            = "password_reset"
)

// Team event types
const (
	EventTeamCreated          = "team_created"
	EventTeamUpdated          = "team_updated"
	EventTeamDeleted          = "team_deleted"
	EventMemberInvited        = "member_invited"
	EventMemberAdded          = "member_added"
	EventMemberRemoved        = "member_removed"
	EventMemberRoleChanged    = "member_role_changed"
	EventOwnershipTransferred = "ownership_transferred"
	EventInvitationAccepted   = "invitation_accepted"
)

// Board event types
const (
	EventBoardCreated       = "board_created"
	EventBoardDeleted       = "board_deleted"
	EventBoardMemberAdded   = "board_member_added"
	EventBoardMemberRemoved = "board_member_removed"
)

// Event represents an audit event.
type Event struct {
	ID        primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	Timestamp time.Time           `bson:"timestamp" json:"timestamp"`
	TeamID    *primitive.ObjectID `bson:"team_id,omitempty" json:"team_id,omitempty"`
	BoardID   *primitive.ObjectID `bson:"board_id,omitempty" json:"board_id,omitempty"`

	Category  string `bson:"category" json:"category"`
	EventType string `bson:"event_type" json:"event_type"`

	UserID  *primitive.ObjectID `bson:"user_id,omitempty" json:"user_id,omitempty"`   // affected user
	ActorID *primitive.ObjectID `bson:"actor_id,omitempty" json:"actor_id,omitempty"` // who performed the action

	IP        string `bson:"ip" json:"-"`
	UserAgent string `bson:"user_agent,omitempty" json:"-"`

	Success       bool   `bson:"success" json:"success"`
	FailureReason string `bson:"failure_reason,omitempty" json:"failure_reason,omitempty"`

	Details map[string]string `bson:"details,omitempty" json:"details,omitempty"`
}

// QueryFilter defines filters for querying audit events.
type QueryFilter struct {
	TeamID    *primitive.ObjectID
	UserID    *primitive.ObjectID
	// Involving matches events where the user is either the subject or the actor.
	Involving *primitive.ObjectID
	Category  string
	EventType string
	StartTime *time.Time
	EndTime   *time.Time
	Limit     int64
	Offset    int64
}

func (f QueryFilter) query() bson.M {
	q := bson.M{}
	if f.TeamID != nil {
		q["team_id"] = *f.TeamID
	}
	if f.UserID != nil {
		q["user_id"] = *f.UserID
	}
	if f.Involving != nil {
		q["$or"] = bson.A{
			bson.M{"user_id": *f.Involving},
			bson.M{"actor_id": *f.Involving},
		}
	}
	if f.Category != "" {
		q["category"] = f.Category
	}
	if f.EventType != "" {
		q["event_type"] = f.EventType
	}
	if f.StartTime != nil || f.EndTime != nil {
		tq := bson.M{}
		if f.StartTime != nil {
			tq["$gte"] = *f.StartTime
		}
		if f.EndTime != nil {
			tq["$lte"] = *f.EndTime
		}
		q["timestamp"] = tq
	}
	return q
}

// Store manages audit event records.
type Store struct {
	c *mongo.Collection
}

// New creates a new audit Store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("audit_events")}
}

// EnsureIndexes creates the indexes used by Query.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "timestamp", Value: -1}}},
		// team activity feed
		{Keys: bson.D{{Key: "team_id", Value: 1}, {Key: "timestamp", Value: -1}}},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "timestamp", Value: -1}}},
		{Keys: bson.D{{Key: "actor_id", Value: 1}, {Key: "timestamp", Value: -1}}},
		{Keys: bson.D{
			{Key: "category", Value: 1},
			{Key: "event_type", Value: 1},
			{Key: "timestamp", Value: -1},
		}},
	}
	_, err := s.c.Indexes().CreateMany(ctx, indexes)
	return err
}

// Log records an audit event.
func (s *Store) Log(ctx context.Context, event Event) error {
	if event.ID.IsZero() {
		event.ID = primitive.NewObjectID()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	_, err := s.c.InsertOne(ctx, event)
	return err
}

// Query retrieves audit events matching the filter, newest first.
// Limit defaults to 100.
func (s *Store) Query(ctx context.Context, filter QueryFilter) ([]Event, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(limit).
		SetSkip(filter.Offset)

	cursor, err := s.c.Find(ctx, filter.query(), opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var events []Event
	if err := cursor.All(ctx, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// CountByFilter returns the count of events matching the filter.
func (s *Store) CountByFilter(ctx context.Context, filter QueryFilter) (int64, error) {
	return s.c.CountDocuments(ctx, filter.query())
}

// GetByTeam retrieves recent events for a team.
func (s *Store) GetByTeam(ctx context.Context, teamID primitive.ObjectID, limit int64) ([]Event, error) {
	return s.Query(ctx, QueryFilter{TeamID: &teamID, Limit: limit})
}

// GetByUser retrieves recent audit events for a specific user.
func (s *Store) GetByUser(ctx context.Context, userID primitive.ObjectID, limit int64) ([]Event, error) {
	return s.Query(ctx, QueryFilter{UserID: &userID, Limit: limit})
}

// GetFailedLogins retrieves recent failed login attempts.
func (s *Store) GetFailedLogins(ctx context.Context, since time.Time, limit int64) ([]Event, error) {
	query := bson.M{
		"category": CategoryAuth,
		"success":  false,
		"event_type": bson.M{"$in": []string{
			EventLoginFailedUserNotFound,
			EventLoginFailedWrongPassword,
			EventLoginFailedUserDisabled,
			EventLoginFailedRateLimit,
			EventLoginFailedAuthMethod,
		}},
		"timestamp": bson.M{"$gte": since},
	}
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}}).SetLimit(limit)

	cursor, err := s.c.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var events []Event
	if err := cursor.All(ctx, &events); err != nil {
		return nil, err
	}
	return events, nil
}
