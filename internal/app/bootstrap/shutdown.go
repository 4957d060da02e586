// internal/app/bootstrap/shutdown.go
package bootstrap

import (
	"context"

	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// Shutdown stops the cleanup worker and closes the cache and database.
func Shutdown(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if deps.Cleanup != nil {
		deps.Cleanup.Stop()
	}
	if deps.Redis != nil {
		if err := deps.Redis.Close(); err != nil {
			logger.Warn("redis close failed", zap.Error(err))
		}
	}
	if deps.TaskHubMongoClient != nil {
		logger.Info("disconnecting TaskHub MongoDB client")
		if err := deps.TaskHubMongoClient.Disconnect(ctx); err != nil {
			logger.Error("MongoDB disconnect failed", zap.Error(err))
			return err
		}
	}
	return nil
}
