// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"

	auditlogfeature "github.com/dalemusser/taskhub/internal/app/features/auditlog"
	authgooglefeature "github.com/dalemusser/taskhub/internal/app/features/authgoogle"
	boardsfeature "github.com/dalemusser/taskhub/internal/app/features/boards"
	healthfeature "github.com/dalemusser/taskhub/internal/app/features/health"
	invitationsfeature "github.com/dalemusser/taskhub/internal/app/features/invitations"
	loginfeature "github.com/dalemusser/taskhub/internal/app/features/login"
	teamsfeature "github.com/dalemusser/taskhub/internal/app/features/teams"
	"github.com/dalemusser/taskhub/internal/app/services/accounts"
	boardsvc "github.com/dalemusser/taskhub/internal/app/services/boards"
	invsvc "github.com/dalemusser/taskhub/internal/app/services/invitations"
	teamsvc "github.com/dalemusser/taskhub/internal/app/services/teams"
	"github.com/dalemusser/taskhub/internal/app/store/audit"
	"github.com/dalemusser/taskhub/internal/app/store/oauthstate"
	userstore "github.com/dalemusser/taskhub/internal/app/store/users"
	"github.com/dalemusser/taskhub/internal/app/system/auditlog"
	"github.com/dalemusser/taskhub/internal/app/system/auth"
	"github.com/dalemusser/taskhub/internal/app/system/mailer"
	"github.com/dalemusser/taskhub/internal/app/system/ratelimit"
	"github.com/dalemusser/taskhub/internal/app/system/reqlog"
	"github.com/dalemusser/taskhub/internal/app/system/tokens"
	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const siteName = "TaskHub"

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// any Startup hooks have completed.
//
// TaskHub is a JSON API. Health, auth and invitation lookup are public;
// everything else sits behind RequireSignedIn.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	db := deps.TaskHubMongoDatabase

	issuer, err := tokens.NewIssuer(tokens.Config{
		Secret:     appCfg.JWTSecret,
		Issuer:     appCfg.JWTIssuer,
		SessionTTL: appCfg.SessionTTL,
		ResetTTL:   appCfg.ResetTokenTTL,
	})
	if err != nil {
		logger.Error("token issuer init failed", zap.Error(err))
		return nil, err
	}

	// Secure cookies are enabled in production mode.
	secure := coreCfg.Env == "prod"
	sessionMgr, err := auth.NewSessionManager(appCfg.SessionKey, appCfg.SessionName, appCfg.SessionDomain,
		appCfg.SessionTTL, secure, issuer, logger)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}
	// Fresh user data on each request, so disabled accounts take effect
	// immediately.
	sessionMgr.SetUserFetcher(userstore.NewFetcher(db))

	var mail mailer.Sender = mailer.LogSender{Log: logger}
	if appCfg.MailSMTPHost != "" {
		mail = mailer.NewSMTP(mailer.Config{
			Host:     appCfg.MailSMTPHost,
			Port:     appCfg.MailSMTPPort,
			User:     appCfg.MailSMTPUser,
			Pass:     appCfg.MailSMTPPass,
			From:     appCfg.MailFrom,
			FromName: appCfg.MailFromName,
		}, logger)
	}

	al := auditlog.New(audit.New(db), logger, auditlog.Config{
		Auth: appCfg.AuditLogAuth,
		Team: appCfg.AuditLogTeam,
	})

	acctSvc := accounts.New(db, issuer, mail, al, logger, accounts.Config{
		SiteName: siteName,
		BaseURL:  appCfg.BaseURL,
		ResetTTL: appCfg.ResetTokenTTL,
	})
	teamSvc := teamsvc.New(db, deps.Cache, mail, al, logger, teamsvc.Config{
		SiteName:      siteName,
		BaseURL:       appCfg.BaseURL,
		InvitationTTL: appCfg.InvitationTTL,
		CacheTTL:      appCfg.CacheTTL,
	})
	invSvc := invsvc.New(db, issuer, deps.Cache, al, logger)
	boardSvc := boardsvc.New(db, deps.Cache, al, logger, appCfg.CacheTTL)

	r := chi.NewRouter()
	r.Use(reqlog.Middleware(logger, "/health"))
	r.Use(auditlog.Middleware)
	// Loads the SessionUser from the cookie or bearer token when present.
	r.Use(sessionMgr.LoadSessionUser)

	// Health check endpoint for load balancers and orchestrators.
	// A nil *cache.Redis must not reach the Pinger interface.
	var pinger healthfeature.Pinger
	if deps.Redis != nil {
		pinger = deps.Redis
	}
	r.Mount("/health", healthfeature.Routes(healthfeature.NewHandler(deps.TaskHubMongoClient, pinger, logger)))

	// Authentication
	loginHandler := loginfeature.NewHandler(acctSvc, sessionMgr, ratelimit.NewLoginLimiter(), al, logger)
	r.Mount("/auth", loginfeature.Routes(loginHandler))

	googleHandler := authgooglefeature.NewHandler(acctSvc, invSvc, sessionMgr, oauthstate.New(db),
		appCfg.GoogleClientID, appCfg.GoogleClientSecret, appCfg.BaseURL, logger)
	r.Mount("/auth/google", authgooglefeature.Routes(googleHandler))

	invHandler := invitationsfeature.NewHandler(invSvc, sessionMgr, logger)
	r.Mount("/invitations", invitationsfeature.Routes(invHandler))

	r.Group(func(pr chi.Router) {
		pr.Use(sessionMgr.RequireSignedIn)

		pr.Mount("/teams", teamsfeature.Routes(teamsfeature.NewHandler(teamSvc, logger)))
		boardsfeature.MountRoutes(pr, boardsfeature.NewHandler(boardSvc, logger))
		pr.Mount("/me/activity", auditlogfeature.Routes(auditlogfeature.NewHandler(db, logger)))
	})

	return r, nil
}
