// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables (TASKHUB_*), configuration
// files, or command-line flags (loaded in LoadConfig). WAFFLE's CoreConfig
// handles framework-level settings like ports, TLS, logging and CORS.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string
	MongoDatabase    string
	MongoMaxPoolSize uint64
	MongoMinPoolSize uint64

	// Session cookie configuration
	SessionKey    string // signs the cookie that carries the session token
	SessionName   string
	SessionDomain string // blank means current host

	// Signed tokens (sessions and password resets)
	JWTSecret     string
	JWTIssuer     string
	SessionTTL    time.Duration
	ResetTokenTTL time.Duration

	InvitationTTL time.Duration

	// Cache: "memory" (per process) or "redis" (shared)
	CacheBackend  string
	CacheTTL      time.Duration
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Email/SMTP configuration. Blank host logs messages instead of sending.
	MailSMTPHost string
	MailSMTPPort int
	MailSMTPUser string
	MailSMTPPass string
	MailFrom     string
	MailFromName string

	// Base URL for email links (invitations, password reset).
	BaseURL string

	// Audit logging: "all", "db", "log" or "off".
	AuditLogAuth string
	AuditLogTeam string

	// Google sign-in; disabled when blank.
	GoogleClientID     string
	GoogleClientSecret string

	// Background purge of expired OAuth states and invitations.
	CleanupInterval time.Duration
}
