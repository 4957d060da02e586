// internal/app/system/auditlog/logger.go
package auditlog

import (
	"context"
	"net/http"

	"github.com/dalemusser/taskhub/internal/app/store/audit"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Config holds audit logging configuration.
// Values: "all" (MongoDB + zap), "db" (MongoDB only), "log" (zap only), "off" (disabled)
type Config struct {
	// Auth covers login, logout, registration and password reset.
	Auth string
	// Team covers team and board membership changes.
	Team string
}

// Logger provides convenience methods for logging audit events.
// It logs to both MongoDB (via audit.Store) and structured logs (via zap).
type Logger struct {
	store  *audit.Store
	zapLog *zap.Logger
	config Config
}

// New creates a new audit Logger.
func New(store *audit.Store, zapLog *zap.Logger, config Config) *Logger {
	return &Logger{
		store:  store,
		zapLog: zapLog,
		config: config,
	}
}

type clientKey struct{}

type client struct {
	ip string
	ua string
}

// Middleware records the caller's address and user agent on the request
// context so events logged deeper in the stack carry them.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), clientKey{}, client{ip: getClientIP(r), ua: r.UserAgent()})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func clientFrom(ctx context.Context) client {
	c, _ := ctx.Value(clientKey{}).(client)
	return c
}

// getClientIP extracts the client IP from the request.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}

// logToZap logs the event to zap with consistent structure.
func (l *Logger) logToZap(event audit.Event) {
	fields := []zap.Field{
		zap.Bool("audit", true),
		zap.String("category", event.Category),
		zap.String("event_type", event.EventType),
		zap.Bool("success", event.Success),
		zap.String("ip", event.IP),
	}
	if event.UserID != nil {
		fields = append(fields, zap.String("user_id", event.UserID.Hex()))
	}
	if event.ActorID != nil {
		fields = append(fields, zap.String("actor_id", event.ActorID.Hex()))
	}
	if event.TeamID != nil {
		fields = append(fields, zap.String("team_id", event.TeamID.Hex()))
	}
	if event.BoardID != nil {
		fields = append(fields, zap.String("board_id", event.BoardID.Hex()))
	}
	if event.FailureReason != "" {
		fields = append(fields, zap.String("failure_reason", event.FailureReason))
	}
	for k, v := range event.Details {
		fields = append(fields, zap.String("detail_"+k, v))
	}

	if event.Success {
		l.zapLog.Info("audit event", fields...)
	} else {
		l.zapLog.Warn("audit event", fields...)
	}
}

// Log records an audit event based on configuration.
// A nil Logger is a no-op so tests and optional wiring can omit it.
func (l *Logger) Log(ctx context.Context, event audit.Event) {
	if l == nil {
		return
	}

	var setting string
	switch event.Category {
	case audit.CategoryAuth:
		setting = l.config.Auth
	case audit.CategoryTeam, audit.CategoryBoard:
		setting = l.config.Team
	default:
		setting = "all"
	}
	if setting == "off" {
		return
	}

	if event.IP == "" {
		c := clientFrom(ctx)
		event.IP, event.UserAgent = c.ip, c.ua
	}

	if setting == "all" || setting == "log" {
		l.logToZap(event)
	}
	if setting == "all" || setting == "db" {
		if err := l.store.Log(ctx, event); err != nil {
			l.zapLog.Error("failed to store audit event",
				zap.Error(err),
				zap.String("event_type", event.EventType),
			)
		}
	}
}

func oidPtr(id primitive.ObjectID) *primitive.ObjectID {
	if id.IsZero() {
		return nil
	}
	return &id
}

// --- Authentication Events ---

// LoginSuccess logs a successful login.
func (l *Logger) LoginSuccess(ctx context.Context, userID primitive.ObjectID, authMethod, email string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAuth,
		EventType: audit.EventLoginSuccess,
		UserID:    oidPtr(userID),
		Success:   true,
		Details:   map[string]string{"auth_method": authMethod, "email": email},
	})
}

// LoginFailed logs a failed login. eventType is one of the audit.EventLoginFailed* values.
func (l *Logger) LoginFailed(ctx context.Context, eventType string, userID primitive.ObjectID, email, reason string) {
	l.Log(ctx, audit.Event{
		Category:      audit.CategoryAuth,
		EventType:     eventType,
		UserID:        oidPtr(userID),
		Success:       false,
		FailureReason: reason,
		Details:       map[string]string{"email": email},
	})
}

// Logout logs a user logout. userIDStr comes from the session user.
func (l *Logger) Logout(ctx context.Context, userIDStr string) {
	var userID *primitive.ObjectID
	if oid, err := primitive.ObjectIDFromHex(userIDStr); err == nil {
		userID = &oid
	}
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAuth,
		EventType: audit.EventLogout,
		UserID:    userID,
		Success:   true,
	})
}

// UserRegistered logs a new account. teamID is set when the account came
// from an invitation.
func (l *Logger) UserRegistered(ctx context.Context, userID, teamID primitive.ObjectID) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAuth,
		EventType: audit.EventUserRegistered,
		UserID:    oidPtr(userID),
		TeamID:    oidPtr(teamID),
		Success:   true,
	})
}

// PasswordResetRequested logs a forgot-password request. found reports
// whether an account exists; it is never returned to the caller.
func (l *Logger) PasswordResetRequested(ctx context.Context, email string, found bool) {
	reason := ""
	if !found {
		reason = "no account"
	}
	l.Log(ctx, audit.Event{
		Category:      audit.CategoryAuth,
		EventType:     audit.EventPasswordResetRequested,
		Success:       found,
		FailureReason: reason,
		Details:       map[string]string{"email": email},
	})
}

// PasswordReset logs a completed password reset.
func (l *Logger) PasswordReset(ctx context.Context, userID primitive.ObjectID) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAuth,
		EventType: audit.EventPasswordReset,
		UserID:    oidPtr(userID),
		Success:   true,
	})
}

// --- Team Events ---

func (l *Logger) team(ctx context.Context, eventType string, actorID, teamID, userID primitive.ObjectID, details map[string]string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryTeam,
		EventType: eventType,
		ActorID:   oidPtr(actorID),
		TeamID:    oidPtr(teamID),
		UserID:    oidPtr(userID),
		Success:   true,
		Details:   details,
	})
}

func (l *Logger) TeamCreated(ctx context.Context, actorID, teamID primitive.ObjectID, name string) {
	l.team(ctx, audit.EventTeamCreated, actorID, teamID, primitive.NilObjectID, map[string]string{"name": name})
}

func (l *Logger) TeamUpdated(ctx context.Context, actorID, teamID primitive.ObjectID) {
	l.team(ctx, audit.EventTeamUpdated, actorID, teamID, primitive.NilObjectID, nil)
}

func (l *Logger) TeamDeleted(ctx context.Context, actorID, teamID primitive.ObjectID, name string) {
	l.team(ctx, audit.EventTeamDeleted, actorID, teamID, primitive.NilObjectID, map[string]string{"name": name})
}

// MemberInvited logs an invitation sent to an email without an account.
func (l *Logger) MemberInvited(ctx context.Context, actorID, teamID primitive.ObjectID, email string, emailSent bool) {
	sent := "false"
	if emailSent {
		sent = "true"
	}
	l.team(ctx, audit.EventMemberInvited, actorID, teamID, primitive.NilObjectID,
		map[string]string{"email": email, "email_sent": sent})
}

func (l *Logger) MemberAdded(ctx context.Context, actorID, teamID, userID primitive.ObjectID) {
	l.team(ctx, audit.EventMemberAdded, actorID, teamID, userID, nil)
}

func (l *Logger) MemberRemoved(ctx context.Context, actorID, teamID, userID primitive.ObjectID) {
	l.team(ctx, audit.EventMemberRemoved, actorID, teamID, userID, nil)
}

func (l *Logger) MemberRoleChanged(ctx context.Context, actorID, teamID, userID primitive.ObjectID, from, to string) {
	l.team(ctx, audit.EventMemberRoleChanged, actorID, teamID, userID, map[string]string{"from": from, "to": to})
}

// OwnershipTransferred logs owner_id moving from previous to the actor.
func (l *Logger) OwnershipTransferred(ctx context.Context, actorID, teamID, previousOwner primitive.ObjectID) {
	l.team(ctx, audit.EventOwnershipTransferred, actorID, teamID, previousOwner, nil)
}

func (l *Logger) InvitationAccepted(ctx context.Context, teamID, userID primitive.ObjectID) {
	l.team(ctx, audit.EventInvitationAccepted, userID, teamID, userID, nil)
}

// --- Board Events ---

func (l *Logger) board(ctx context.Context, eventType string, actorID, boardID primitive.ObjectID, teamID *primitive.ObjectID, userID primitive.ObjectID, details map[string]string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryBoard,
		EventType: eventType,
		ActorID:   oidPtr(actorID),
		BoardID:   oidPtr(boardID),
		TeamID:    teamID,
		UserID:    oidPtr(userID),
		Success:   true,
		Details:   details,
	})
}

func (l *Logger) BoardCreated(ctx context.Context, actorID, boardID primitive.ObjectID, teamID *primitive.ObjectID, title string) {
	l.board(ctx, audit.EventBoardCreated, actorID, boardID, teamID, primitive.NilObjectID, map[string]string{"title": title})
}

func (l *Logger) BoardDeleted(ctx context.Context, actorID, boardID primitive.ObjectID, teamID *primitive.ObjectID, title string) {
	l.board(ctx, audit.EventBoardDeleted, actorID, boardID, teamID, primitive.NilObjectID, map[string]string{"title": title})
}

func (l *Logger) BoardMemberAdded(ctx context.Context, actorID, boardID primitive.ObjectID, teamID *primitive.ObjectID, userID primitive.ObjectID, role string) {
	l.board(ctx, audit.EventBoardMemberAdded, actorID, boardID, teamID, userID, map[string]string{"role": role})
}

func (l *Logger) BoardMemberRemoved(ctx context.Context, actorID, boardID primitive.ObjectID, teamID *primitive.ObjectID, userID primitive.ObjectID) {
	l.board(ctx, audit.EventBoardMemberRemoved, actorID, boardID, teamID, userID, nil)
}
