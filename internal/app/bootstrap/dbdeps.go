// internal/app/bootstrap/dbdeps.go
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/dalemusser/taskhub/internal/app/store/oauthstate"
	"github.com/dalemusser/taskhub/internal/app/system/cache"
	"github.com/dalemusser/taskhub/internal/app/system/workers"
	"github.com/dalemusser/waffle/config"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// DBDeps holds database and back-end dependencies for the app.
type DBDeps struct {
	TaskHubMongoClient   *mongo.Client
	TaskHubMongoDatabase *mongo.Database

	// Cache is the list view cache. Redis is set only for the redis backend
	// and is the same value as Cache.
	Cache cache.Store
	Redis *cache.Redis

	Cleanup *workers.Cleanup
}

// ConnectDB connects to MongoDB and the cache backend, and prepares the
// cleanup worker (started in Startup).
func ConnectDB(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) (DBDeps, error) {
	cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	opts := options.Client().
		ApplyURI(appCfg.MongoURI).
		SetMaxPoolSize(appCfg.MongoMaxPoolSize).
		SetMinPoolSize(appCfg.MongoMinPoolSize)
	client, err := mongo.Connect(cctx, opts)
	if err != nil {
		return DBDeps{}, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(cctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return DBDeps{}, fmt.Errorf("ping mongo: %w", err)
	}
	db := client.Database(appCfg.MongoDatabase)
	logger.Info("MongoDB connected", zap.String("database", appCfg.MongoDatabase))

	deps := DBDeps{TaskHubMongoClient: client, TaskHubMongoDatabase: db}

	switch appCfg.CacheBackend {
	case "redis":
		r, err := cache.NewRedis(cctx, cache.RedisConfig{
			Addr:     appCfg.RedisAddr,
			Password: appCfg.RedisPassword,
			DB:       appCfg.RedisDB,
			Prefix:   "taskhub:",
		})
		if err != nil {
			_ = client.Disconnect(context.Background())
			return DBDeps{}, err
		}
		deps.Cache, deps.Redis = r, r
		logger.Info("redis cache connected", zap.String("addr", appCfg.RedisAddr))
	default:
		deps.Cache = cache.NewMemory()
		logger.Info("using in-process cache")
	}

	// Invitations are never purged; an expired one stays readable so the
	// lookup endpoint can report it as expired.
	states := oauthstate.New(db)
	deps.Cleanup = workers.NewCleanup(logger, appCfg.CleanupInterval, 30*time.Second,
		workers.Task{Name: "oauth_states", Run: states.CleanupExpired},
	)
	return deps, nil
}
