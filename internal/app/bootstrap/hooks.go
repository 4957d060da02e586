// internal/app/bootstrap/hooks.go
package bootstrap

import (
	"github.com/dalemusser/waffle/app"
)

// Hooks is the TaskHub lifecycle handed to app.Run. Startup order is
// config, validation, Mongo (and Redis when configured), indexes and
// validators, background workers, then the router. Shutdown stops the
// workers before the clients are closed.
var Hooks = app.Hooks[AppConfig, DBDeps]{
	Name:           "taskhub",
	LoadConfig:     LoadConfig,
	ValidateConfig: ValidateConfig,
	ConnectDB:      ConnectDB,
	EnsureSchema:   EnsureSchema,
	Startup:        Startup,
	BuildHandler:   BuildHandler,
	Shutdown:       Shutdown,
}
