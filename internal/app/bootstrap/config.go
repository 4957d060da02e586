// internal/app/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"time"

	"github.com/dalemusser/taskhub/internal/app/system/tokens"
	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// appConfigKeys defines the configuration keys for TaskHub.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, session_name, etc.
//   - Environment variables: TASKHUB_MONGO_URI, TASKHUB_CACHE_BACKEND, etc.
//   - Command-line flags: --mongo_uri, --cache_backend, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "taskhub", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size (default: 100)"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size (default: 10)"},
	{Name: "session_key", Default: "dev-only-change-me-please-0123456789ABCDEF", Desc: "Session cookie signing key (must be strong in production)"},
	{Name: "session_name", Default: "taskhub-session", Desc: "Session cookie name"},
	{Name: "session_domain", Default: "", Desc: "Session cookie domain (blank means current host)"},

	// Signed tokens
	{Name: "jwt_secret", Default: "dev-only-jwt-secret-change-me-0123456789", Desc: "HMAC secret for session and reset tokens (32+ bytes)"},
	{Name: "jwt_issuer", Default: "taskhub", Desc: "Token issuer claim"},
	{Name: "session_ttl", Default: "168h", Desc: "Session lifetime (e.g., 24h, 168h)"},
	{Name: "reset_token_ttl", Default: "24h", Desc: "Password reset link lifetime"},
	{Name: "invitation_ttl", Default: "168h", Desc: "Team invitation lifetime"},

	// Cache
	{Name: "cache_backend", Default: "memory", Desc: "List view cache: 'memory' or 'redis'"},
	{Name: "cache_ttl", Default: "5m", Desc: "List view cache entry lifetime"},
	{Name: "redis_addr", Default: "", Desc: "Redis address host:port (required for redis cache)"},
	{Name: "redis_password", Default: "", Desc: "Redis password"},
	{Name: "redis_db", Default: 0, Desc: "Redis database number"},

	// Email/SMTP configuration
	{Name: "mail_smtp_host", Default: "", Desc: "SMTP server host (blank logs emails instead of sending)"},
	{Name: "mail_smtp_port", Default: 1025, Desc: "SMTP server port"},
	{Name: "mail_smtp_user", Default: "", Desc: "SMTP username"},
	{Name: "mail_smtp_pass", Default: "", Desc: "SMTP password"},
	{Name: "mail_from", Default: "noreply@taskhub.local", Desc: "From email address"},
	{Name: "mail_from_name", Default: "TaskHub", Desc: "From display name"},

	{Name: "base_url", Default: "http://localhost:8080", Desc: "Base URL for email links"},

	// Audit logging settings
	{Name: "audit_log_auth", Default: "all", Desc: "Auth event logging: 'all' (db+log), 'db', 'log', or 'off'"},
	{Name: "audit_log_team", Default: "all", Desc: "Team/board event logging: 'all' (db+log), 'db', 'log', or 'off'"},

	// Google OAuth configuration
	{Name: "google_client_id", Default: "", Desc: "Google OAuth2 client ID"},
	{Name: "google_client_secret", Default: "", Desc: "Google OAuth2 client secret"},

	{Name: "cleanup_interval", Default: "15m", Desc: "How often expired OAuth states and invitations are purged"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig handles .env files, config files,
// environment variables (WAFFLE_* for core, TASKHUB_* for app) and flags,
// merged with precedence flags > env > files > defaults.
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "TASKHUB", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),
		SessionKey:       appValues.String("session_key"),
		SessionName:      appValues.String("session_name"),
		SessionDomain:    appValues.String("session_domain"),

		JWTSecret:     appValues.String("jwt_secret"),
		JWTIssuer:     appValues.String("jwt_issuer"),
		SessionTTL:    appValues.Duration("session_ttl", tokens.DefaultSessionTTL),
		ResetTokenTTL: appValues.Duration("reset_token_ttl", tokens.DefaultResetTTL),
		InvitationTTL: appValues.Duration("invitation_ttl", 7*24*time.Hour),

		CacheBackend:  appValues.String("cache_backend"),
		CacheTTL:      appValues.Duration("cache_ttl", 5*time.Minute),
		RedisAddr:     appValues.String("redis_addr"),
		RedisPassword: appValues.String("redis_password"),
		RedisDB:       appValues.Int("redis_db"),

		MailSMTPHost: appValues.String("mail_smtp_host"),
		MailSMTPPort: appValues.Int("mail_smtp_port"),
		MailSMTPUser: appValues.String("mail_smtp_user"),
		MailSMTPPass: appValues.String("mail_smtp_pass"),
		MailFrom:     appValues.String("mail_from"),
		MailFromName: appValues.String("mail_from_name"),

		BaseURL: appValues.String("base_url"),

		AuditLogAuth: appValues.String("audit_log_auth"),
		AuditLogTeam: appValues.String("audit_log_team"),

		GoogleClientID:     appValues.String("google_client_id"),
		GoogleClientSecret: appValues.String("google_client_secret"),

		CleanupInterval: appValues.Duration("cleanup_interval", 15*time.Minute),
	}

	return coreCfg, appCfg, nil
}

// ValidateConfig rejects configs that would fail later at connect or
// request time.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}
	if appCfg.MongoDatabase == "" {
		return fmt.Errorf("mongo_database is required")
	}
	if len(appCfg.JWTSecret) < tokens.MinSecretLen {
		return fmt.Errorf("jwt_secret must be at least %d bytes", tokens.MinSecretLen)
	}
	if len(appCfg.SessionKey) < 32 {
		return fmt.Errorf("session_key must be at least 32 bytes")
	}
	switch appCfg.CacheBackend {
	case "memory":
	case "redis":
		if appCfg.RedisAddr == "" {
			return fmt.Errorf("cache_backend redis requires redis_addr")
		}
	default:
		return fmt.Errorf("cache_backend must be 'memory' or 'redis', got %q", appCfg.CacheBackend)
	}
	for key, v := range map[string]string{"audit_log_auth": appCfg.AuditLogAuth, "audit_log_team": appCfg.AuditLogTeam} {
		switch v {
		case "all", "db", "log", "off":
		default:
			return fmt.Errorf("%s must be one of all, db, log, off; got %q", key, v)
		}
	}
	if appCfg.CleanupInterval <= 0 {
		return fmt.Errorf("cleanup_interval must be positive")
	}
	if (appCfg.GoogleClientID == "") != (appCfg.GoogleClientSecret == "") {
		logger.Warn("google sign-in needs both client id and secret; it stays disabled")
	}
	return nil
}
