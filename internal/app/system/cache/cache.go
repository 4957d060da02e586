// Package cache is the per-user read cache in front of the team and board
// list views.
//
// Entries are keyed per user and per view. Every write that can change what
// a user sees deletes that user's keys; the next read repopulates from
// MongoDB. Expiry is passive: an entry past its TTL is treated as a miss.
package cache

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DefaultTTL bounds how stale a cached list view can be for a user whose
// visibility changed without a write naming them.
const DefaultTTL = 5 * time.Minute

// Store is the key-value abstraction injected into services.
type Store interface {
	// Get decodes the cached value for key into dst. ok is false on a miss.
	Get(ctx context.Context, key string, dst any) (ok bool, err error)
	// Set stores val under key for ttl.
	Set(ctx context.Context, key string, val any, ttl time.Duration) error
	// Invalidate deletes keys. Missing keys are ignored.
	Invalidate(ctx context.Context, keys ...string) error
}

// UserTeamsKey is the cache key for a user's team list view.
func UserTeamsKey(userID primitive.ObjectID) string {
	return "user_teams_" + userID.Hex()
}

// UserBoardsKey is the cache key for a user's board list view.
func UserBoardsKey(userID primitive.ObjectID) string {
	return "user_boards_" + userID.Hex()
}

// UserKeys returns both list-view keys for every distinct user in ids.
func UserKeys(ids ...primitive.ObjectID) []string {
	seen := make(map[primitive.ObjectID]struct{}, len(ids))
	keys := make([]string, 0, 2*len(ids))
	for _, id := range ids {
		if id.IsZero() {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		keys = append(keys, UserTeamsKey(id), UserBoardsKey(id))
	}
	return keys
}

// InvalidateUsers deletes both list-view keys for each user in ids.
func InvalidateUsers(ctx context.Context, s Store, ids ...primitive.ObjectID) error {
	keys := UserKeys(ids...)
	if len(keys) == 0 {
		return nil
	}
	return s.Invalidate(ctx, keys...)
}
