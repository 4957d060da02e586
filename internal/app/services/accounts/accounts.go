// Package accounts implements registration, password sign-in, password
// reset and the find-or-create step behind Google sign-in.
package accounts

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/dalemusser/taskhub/internal/app/store/audit"
	userstore "github.com/dalemusser/taskhub/internal/app/store/users"
	"github.com/dalemusser/taskhub/internal/app/system/apperr"
	"github.com/dalemusser/taskhub/internal/app/system/auditlog"
	"github.com/dalemusser/taskhub/internal/app/system/inputval"
	"github.com/dalemusser/taskhub/internal/app/system/mailer"
	"github.com/dalemusser/taskhub/internal/app/system/normalize"
	"github.com/dalemusser/taskhub/internal/app/system/tokens"
	"github.com/dalemusser/taskhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

const (
	msgBadCredentials = "invalid email or password"
	msgBadReset       = "reset link is invalid or has expired"
)

// Config carries the values used in reset emails.
type Config struct {
	SiteName string
	BaseURL  string
	ResetTTL time.Duration
}

type Service struct {
	users  *userstore.Store
	issuer *tokens.Issuer
	mail   mailer.Sender
	audit  *auditlog.Logger
	log    *zap.Logger
	cfg    Config
}

func New(db *mongo.Database, issuer *tokens.Issuer, mail mailer.Sender, al *auditlog.Logger, logger *zap.Logger, cfg Config) *Service {
	if cfg.SiteName == "" {
		cfg.SiteName = "TaskHub"
	}
	if cfg.ResetTTL <= 0 {
		cfg.ResetTTL = tokens.DefaultResetTTL
	}
	return &Service{
		users:  userstore.New(db),
		issuer: issuer,
		mail:   mail,
		audit:  al,
		log:    logger,
		cfg:    cfg,
	}
}

// Session is a signed-in user plus the bearer token for them.
type Session struct {
	User      models.User `json:"user"`
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
}

func (s *Service) session(u models.User) (Session, error) {
	tok, exp, err := s.issuer.IssueSession(u.ID.Hex(), u.Email, u.DisplayName())
	if err != nil {
		return Session{}, apperr.Internal("issue session", err)
	}
	u.PasswordHash = ""
	return Session{User: u, Token: tok, ExpiresAt: exp}, nil
}

// Register creates a password account and signs it in.
func (s *Service) Register(ctx context.Context, email, password, firstName, lastName string) (Session, error) {
	email = normalize.Email(email)
	if !inputval.IsValidEmail(email) {
		return Session{}, apperr.InvalidOperation("a valid email address is required")
	}
	if err := inputval.CheckPassword(password); err != nil {
		return Session{}, apperr.InvalidOperation(err.Error())
	}
	hash, err := userstore.HashPassword(password)
	if err != nil {
		return Session{}, apperr.Internal("hash password", err)
	}

	u, err := s.users.Create(ctx, models.User{
		Email:        email,
		FirstName:    firstName,
		LastName:     lastName,
		PasswordHash: hash,
		AuthMethod:   models.AuthMethodPassword,
	})
	if err != nil {
		if errors.Is(err, userstore.ErrDuplicateEmail) {
			return Session{}, apperr.Conflict("an account already exists for this email")
		}
		return Session{}, apperr.FromStore(err, "create user")
	}

	s.audit.UserRegistered(ctx, u.ID, primitive.NilObjectID)
	return s.session(u)
}

// Login checks email and password. Every failure returns the same
// Unauthorized message; the audit log keeps the real reason.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	email = normalize.Email(email)
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			s.audit.LoginFailed(ctx, audit.EventLoginFailedUserNotFound, primitive.NilObjectID, email, "user not found")
			return Session{}, apperr.Unauthorized(msgBadCredentials)
		}
		return Session{}, apperr.FromStore(err, "load user")
	}
	if !u.Active {
		s.audit.LoginFailed(ctx, audit.EventLoginFailedUserDisabled, u.ID, email, "user disabled")
		return Session{}, apperr.Unauthorized(msgBadCredentials)
	}
	if u.AuthMethod != models.AuthMethodPassword || !userstore.CheckPassword(u, password) {
		s.audit.LoginFailed(ctx, audit.EventLoginFailedWrongPassword, u.ID, email, "wrong password")
		return Session{}, apperr.Unauthorized(msgBadCredentials)
	}

	s.audit.LoginSuccess(ctx, u.ID, models.AuthMethodPassword, email)
	return s.session(*u)
}

// Me returns the account behind a session.
func (s *Service) Me(ctx context.Context, userID primitive.ObjectID) (models.User, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.User{}, apperr.Unauthorized("sign in required")
		}
		return models.User{}, apperr.FromStore(err, "load user")
	}
	u.PasswordHash = ""
	return *u, nil
}

// ForgotPassword emails a reset link when the account exists. It reports
// success either way so the endpoint cannot be used to probe for accounts.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	email = normalize.Email(email)
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, mongo.ErrNoDocuments) {
			s.log.Warn("forgot password lookup failed", zap.Error(err))
		}
		s.audit.PasswordResetRequested(ctx, email, false)
		return nil
	}
	if !u.Active || u.AuthMethod != models.AuthMethodPassword {
		s.audit.PasswordResetRequested(ctx, email, false)
		return nil
	}

	tok, err := s.issuer.IssuePasswordReset(u.Email)
	if err != nil {
		s.log.Error("issue reset token", zap.Error(err))
		return nil
	}
	msg := mailer.BuildPasswordResetEmail(mailer.PasswordResetEmailData{
		SiteName:  s.cfg.SiteName,
		To:        u.Email,
		ResetURL:  s.cfg.BaseURL + "/reset-password?" + url.Values{"email": {u.Email}, "token": {tok}}.Encode(),
		ExpiresIn: s.cfg.ResetTTL.String(),
	})
	if s.mail != nil {
		if err := s.mail.Send(ctx, msg); err != nil {
			s.log.Warn("reset email failed", zap.String("user_id", u.ID.Hex()), zap.Error(err))
		}
	}
	s.audit.PasswordResetRequested(ctx, email, true)
	return nil
}

// ResetPassword verifies the reset token for email and stores the new
// password.
func (s *Service) ResetPassword(ctx context.Context, email, token, newPassword string) error {
	email = normalize.Email(email)
	if err := s.issuer.VerifyPasswordReset(token, email); err != nil {
		return apperr.InvalidOperation(msgBadReset)
	}
	if err := inputval.CheckPassword(newPassword); err != nil {
		return apperr.InvalidOperation(err.Error())
	}
	hash, err := userstore.HashPassword(newPassword)
	if err != nil {
		return apperr.Internal("hash password", err)
	}
	if err := s.users.SetPasswordHash(ctx, email, hash); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return apperr.InvalidOperation(msgBadReset)
		}
		return apperr.FromStore(err, "reset password")
	}

	if u, err := s.users.GetByEmail(ctx, email); err == nil {
		s.audit.PasswordReset(ctx, u.ID)
	}
	return nil
}

// GoogleIdentity is the verified profile returned by the OAuth callback.
type GoogleIdentity struct {
	Email         string
	EmailVerified bool
	GivenName     string
	FamilyName    string
	Name          string
}

// GoogleSignIn signs in the account for a verified Google email, creating a
// google-method account on first use. Password accounts are not taken over.
func (s *Service) GoogleSignIn(ctx context.Context, id GoogleIdentity) (Session, error) {
	email := normalize.Email(id.Email)
	if !id.EmailVerified || !inputval.IsValidEmail(email) {
		return Session{}, apperr.Unauthorized("google account email is not verified")
	}

	u, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if !u.Active {
			s.audit.LoginFailed(ctx, audit.EventLoginFailedUserDisabled, u.ID, email, "user disabled")
			return Session{}, apperr.Unauthorized(msgBadCredentials)
		}
		if u.AuthMethod != models.AuthMethodGoogle {
			s.audit.LoginFailed(ctx, audit.EventLoginFailedAuthMethod, u.ID, email, "auth method mismatch")
			return Session{}, apperr.Conflict("this email signs in with a password")
		}
	case errors.Is(err, mongo.ErrNoDocuments):
		created, err := s.users.Create(ctx, models.User{
			Email:          email,
			FirstName:      id.GivenName,
			LastName:       id.FamilyName,
			FullName:       normalize.Name(id.Name),
			AuthMethod:     models.AuthMethodGoogle,
			EmailConfirmed: true,
		})
		if err != nil {
			return Session{}, apperr.FromStore(err, "create user")
		}
		s.audit.UserRegistered(ctx, created.ID, primitive.NilObjectID)
		u = &created
	default:
		return Session{}, apperr.FromStore(err, "load user")
	}

	s.audit.LoginSuccess(ctx, u.ID, models.AuthMethodGoogle, email)
	return s.session(*u)
}
