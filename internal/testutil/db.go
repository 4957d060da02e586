package testutil

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/dalemusser/taskhub/internal/app/system/indexes"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DefaultMongoURI is used when TASKHUB_TEST_MONGO_URI is unset.
const DefaultMongoURI = "mongodb://localhost:27017"

// TestContext returns a context bounded for a single test step.
func TestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 10*time.Second)
}

// SetupTestDB connects to the test MongoDB, creates a database unique to the
// test with all indexes ensured, and drops it on cleanup. The test is
// skipped when no server is reachable.
func SetupTestDB(t *testing.T) *mongo.Database {
	t.Helper()

	uri := os.Getenv("TASKHUB_TEST_MONGO_URI")
	if uri == "" {
		uri = DefaultMongoURI
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().
		ApplyURI(uri).
		SetServerSelectionTimeout(2*time.Second))
	if err != nil {
		t.Skipf("mongo unavailable (%s): %v", uri, err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		t.Skipf("mongo unavailable (%s): %v", uri, err)
	}

	db := client.Database(dbName(t))

	ictx, icancel := TestContext()
	defer icancel()
	if err := indexes.EnsureAll(ictx, db); err != nil {
		t.Fatalf("ensure indexes: %v", err)
	}

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = db.Drop(ctx)
		_ = client.Disconnect(ctx)
	})
	return db
}

// dbName builds a database name from the test name plus a unique suffix,
// kept within Mongo's 63 byte limit.
func dbName(t *testing.T) string {
	r := strings.NewReplacer("/", "_", " ", "_", ".", "_", "$", "_", `"`, "_")
	base := strings.ToLower(r.Replace(t.Name()))
	if len(base) > 30 {
		base = base[:30]
	}
	return fmt.Sprintf("th_%s_%s", base, primitive.NewObjectID().Hex())
}
