// internal/app/bootstrap/schema.go
package bootstrap

import (
	"context"
	"fmt"

	"github.com/dalemusser/taskhub/internal/app/store/audit"
	"github.com/dalemusser/taskhub/internal/app/store/oauthstate"
	"github.com/dalemusser/taskhub/internal/app/system/indexes"
	"github.com/dalemusser/taskhub/internal/app/system/validators"
	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// EnsureSchema creates collections, JSON-Schema validators and indexes.
// Validators run first so collections exist before indexing.
func EnsureSchema(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	db := deps.TaskHubMongoDatabase

	if err := validators.EnsureAll(ctx, db); err != nil {
		return fmt.Errorf("ensure validators: %w", err)
	}
	if err := indexes.EnsureAll(ctx, db); err != nil {
		return fmt.Errorf("ensure indexes: %w", err)
	}
	if err := audit.New(db).EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("ensure audit indexes: %w", err)
	}
	if err := oauthstate.New(db).EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("ensure oauth state indexes: %w", err)
	}
	logger.Info("schema ensured")
	return nil
}
