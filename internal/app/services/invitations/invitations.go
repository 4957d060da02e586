// Package invitations handles the token side of team onboarding: looking up
// a pending invitation and accepting it, either by registering a new account
// or by joining with an existing one.
package invitations

import (
	"context"
	"errors"
	"time"

	invitationstore "github.com/dalemusser/taskhub/internal/app/store/invitations"
	teammemberstore "github.com/dalemusser/taskhub/internal/app/store/teammembers"
	teamstore "github.com/dalemusser/taskhub/internal/app/store/teams"
	userstore "github.com/dalemusser/taskhub/internal/app/store/users"
	"github.com/dalemusser/taskhub/internal/app/system/apperr"
	"github.com/dalemusser/taskhub/internal/app/system/auditlog"
	"github.com/dalemusser/taskhub/internal/app/system/cache"
	"github.com/dalemusser/taskhub/internal/app/system/inputval"
	"github.com/dalemusser/taskhub/internal/app/system/normalize"
	"github.com/dalemusser/taskhub/internal/app/system/tokens"
	"github.com/dalemusser/taskhub/internal/app/system/txn"
	"github.com/dalemusser/taskhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// msgInvalid is shared by the absent, expired and already-accepted cases.
const msgInvalid = "invitation is invalid or has expired"

func errInvalid() error { return apperr.InvalidOperation(msgInvalid) }

type Service struct {
	db          *mongo.Database
	invitations *invitationstore.Store
	members     *teammemberstore.Store
	teams       *teamstore.Store
	users       *userstore.Store
	issuer      *tokens.Issuer

	cache cache.Store
	audit *auditlog.Logger
	log   *zap.Logger
	now   func() time.Time
}

func New(db *mongo.Database, issuer *tokens.Issuer, c cache.Store, al *auditlog.Logger, logger *zap.Logger) *Service {
	return &Service{
		db:          db,
		invitations: invitationstore.New(db),
		members:     teammemberstore.New(db),
		teams:       teamstore.New(db),
		users:       userstore.New(db),
		issuer:      issuer,
		cache:       c,
		audit:       al,
		log:         logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the time source used for expiry checks and acceptance
// stamps.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
	s.invitations.SetClock(now)
}

// pending returns the invitation for token when it can still be accepted.
func (s *Service) pending(ctx context.Context, token string) (models.TeamInvitation, error) {
	if token == "" {
		return models.TeamInvitation{}, errInvalid()
	}
	inv, err := s.invitations.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.TeamInvitation{}, errInvalid()
		}
		return models.TeamInvitation{}, apperr.FromStore(err, "load invitation")
	}
	if !inv.Valid(s.now()) {
		return models.TeamInvitation{}, errInvalid()
	}
	return inv, nil
}

// ValidateToken reports whether token names a pending, unexpired invitation.
func (s *Service) ValidateToken(ctx context.Context, token string) (bool, error) {
	_, err := s.pending(ctx, token)
	if apperr.Is(err, apperr.KindInvalidOperation) {
		return false, nil
	}
	return err == nil, err
}

// Info is what the registration page shows about an invitation.
type Info struct {
	Valid     bool               `json:"valid"`
	Email     string             `json:"email,omitempty"`
	TeamID    primitive.ObjectID `json:"team_id,omitempty"`
	TeamName  string             `json:"team_name,omitempty"`
	ExpiresAt time.Time          `json:"expires_at,omitempty"`
}

// GetInvitation returns the invitation's email and team name. An invalid
// token yields Info{Valid:false} and no error.
func (s *Service) GetInvitation(ctx context.Context, token string) (Info, error) {
	inv, err := s.pending(ctx, token)
	if apperr.Is(err, apperr.KindInvalidOperation) {
		return Info{}, nil
	}
	if err != nil {
		return Info{}, err
	}
	team, err := s.teams.GetByID(ctx, inv.TeamID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Info{}, nil
		}
		return Info{}, apperr.FromStore(err, "load team")
	}
	return Info{
		Valid:     true,
		Email:     inv.Email,
		TeamID:    team.ID,
		TeamName:  team.Name,
		ExpiresAt: inv.ExpiresAt,
	}, nil
}

// Accepted is returned by Accept: the new account and a session for it.
type Accepted struct {
	User             models.User        `json:"user"`
	TeamID           primitive.ObjectID `json:"team_id"`
	Token            string             `json:"token"`
	SessionExpiresAt time.Time          `json:"expires_at"`
}

// Accept registers an account for the invited email and joins the team.
// The account, the membership row and the acceptance stamp are written in
// one transaction.
func (s *Service) Accept(ctx context.Context, token, password, firstName, lastName string) (Accepted, error) {
	inv, err := s.pending(ctx, token)
	if err != nil {
		return Accepted{}, err
	}
	if err := inputval.CheckPassword(password); err != nil {
		return Accepted{}, apperr.InvalidOperation(err.Error())
	}
	hash, err := userstore.HashPassword(password)
	if err != nil {
		return Accepted{}, apperr.Internal("hash password", err)
	}

	var user models.User
	err = txn.Run(ctx, s.db, s.log, func(ctx context.Context) error {
		var err error
		user, err = s.users.Create(ctx, models.User{
			Email:          inv.Email,
			FirstName:      normalize.Name(firstName),
			LastName:       normalize.Name(lastName),
			PasswordHash:   hash,
			AuthMethod:     models.AuthMethodPassword,
			EmailConfirmed: true,
		})
		if err != nil {
			return err
		}
		if _, err := s.members.Add(ctx, inv.TeamID, user.ID, models.RoleMember); err != nil {
			return err
		}
		_, err = s.invitations.MarkAccepted(ctx, inv.ID)
		return err
	})
	switch {
	case err == nil:
	case errors.Is(err, userstore.ErrDuplicateEmail):
		return Accepted{}, apperr.Conflict("an account already exists for this email; sign in to accept the invitation")
	case errors.Is(err, mongo.ErrNoDocuments):
		return Accepted{}, errInvalid()
	default:
		return Accepted{}, apperr.FromStore(err, "accept invitation")
	}

	s.afterJoin(ctx, inv.TeamID, user.ID)
	s.audit.UserRegistered(ctx, user.ID, inv.TeamID)
	s.audit.InvitationAccepted(ctx, inv.TeamID, user.ID)

	tok, exp, err := s.issuer.IssueSession(user.ID.Hex(), user.Email, user.DisplayName())
	if err != nil {
		return Accepted{}, apperr.Internal("issue session", err)
	}
	user.PasswordHash = ""
	return Accepted{User: user, TeamID: inv.TeamID, Token: tok, SessionExpiresAt: exp}, nil
}

// AcceptForExistingUser lets a signed-in user whose email matches the
// invitation join the team without registering. A mismatched email gets the
// same error as a bad token.
func (s *Service) AcceptForExistingUser(ctx context.Context, userID primitive.ObjectID, token string) (primitive.ObjectID, error) {
	inv, err := s.pending(ctx, token)
	if err != nil {
		return primitive.NilObjectID, err
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return primitive.NilObjectID, apperr.Unauthorized("sign in required")
		}
		return primitive.NilObjectID, apperr.FromStore(err, "load user")
	}
	if normalize.Email(user.Email) != inv.Email {
		return primitive.NilObjectID, errInvalid()
	}

	// Add must not hit the unique index inside the transaction.
	alreadyMember := true
	if _, err := s.members.Get(ctx, inv.TeamID, user.ID); err != nil {
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return primitive.NilObjectID, apperr.FromStore(err, "load membership")
		}
		alreadyMember = false
	}

	err = txn.Run(ctx, s.db, s.log, func(ctx context.Context) error {
		if !alreadyMember {
			if _, err := s.members.Add(ctx, inv.TeamID, user.ID, models.RoleMember); err != nil {
				return err
			}
		}
		_, err := s.invitations.MarkAccepted(ctx, inv.ID)
		return err
	})
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return primitive.NilObjectID, errInvalid()
		}
		return primitive.NilObjectID, apperr.FromStore(err, "accept invitation")
	}

	s.afterJoin(ctx, inv.TeamID, user.ID)
	s.audit.InvitationAccepted(ctx, inv.TeamID, user.ID)
	return inv.TeamID, nil
}

// afterJoin invalidates the list views of the new member and of everyone
// already on the team, whose member counts changed.
func (s *Service) afterJoin(ctx context.Context, teamID, userID primitive.ObjectID) {
	ids := []primitive.ObjectID{userID}
	if members, err := s.members.ListByTeam(ctx, teamID); err == nil {
		for _, m := range members {
			ids = append(ids, m.UserID)
		}
	} else {
		s.log.Warn("load team members for invalidation", zap.String("team_id", teamID.Hex()), zap.Error(err))
	}
	if err := cache.InvalidateUsers(ctx, s.cache, ids...); err != nil {
		s.log.Warn("cache invalidation failed", zap.String("team_id", teamID.Hex()), zap.Error(err))
	}
}
