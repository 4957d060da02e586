// Package teams owns team lifecycle and team membership: creating and
// deleting teams, inviting people, changing roles and removing members.
//
// Every mutation checks teampolicy against freshly loaded rows, applies its
// writes in one txn.Run, and only after commit deletes the list-view cache
// keys of every user whose visible set may have changed.
package teams

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/dalemusser/taskhub/internal/app/policy/teampolicy"
	"github.com/dalemusser/taskhub/internal/app/services/cascade"
	"github.com/dalemusser/taskhub/internal/app/store/audit"
	boardmemberstore "github.com/dalemusser/taskhub/internal/app/store/boardmembers"
	boardstore "github.com/dalemusser/taskhub/internal/app/store/boards"
	invitationstore "github.com/dalemusser/taskhub/internal/app/store/invitations"
	teammemberstore "github.com/dalemusser/taskhub/internal/app/store/teammembers"
	teamstore "github.com/dalemusser/taskhub/internal/app/store/teams"
	userstore "github.com/dalemusser/taskhub/internal/app/store/users"
	"github.com/dalemusser/taskhub/internal/app/system/apperr"
	"github.com/dalemusser/taskhub/internal/app/system/auditlog"
	"github.com/dalemusser/taskhub/internal/app/system/cache"
	"github.com/dalemusser/taskhub/internal/app/system/inputval"
	"github.com/dalemusser/taskhub/internal/app/system/mailer"
	"github.com/dalemusser/taskhub/internal/app/system/normalize"
	"github.com/dalemusser/taskhub/internal/app/system/tokens"
	"github.com/dalemusser/taskhub/internal/app/system/txn"
	"github.com/dalemusser/taskhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Config carries the values used to build links and expiries.
type Config struct {
	SiteName      string
	BaseURL       string
	InvitationTTL time.Duration
	CacheTTL      time.Duration
}

// Service implements team operations.
type Service struct {
	db           *mongo.Database
	teams        *teamstore.Store
	members      *teammemberstore.Store
	invitations  *invitationstore.Store
	users        *userstore.Store
	boards       *boardstore.Store
	boardMembers *boardmemberstore.Store
	events       *audit.Store
	deleter      *cascade.Deleter

	cache cache.Store
	mail  mailer.Sender
	audit *auditlog.Logger
	log   *zap.Logger
	cfg   Config
}

// New wires a Service. audit may be nil.
func New(db *mongo.Database, c cache.Store, mail mailer.Sender, al *auditlog.Logger, logger *zap.Logger, cfg Config) *Service {
	if cfg.InvitationTTL <= 0 {
		cfg.InvitationTTL = models.InvitationTTL
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = cache.DefaultTTL
	}
	if cfg.SiteName == "" {
		cfg.SiteName = "TaskHub"
	}
	return &Service{
		db:           db,
		teams:        teamstore.New(db),
		members:      teammemberstore.New(db),
		invitations:  invitationstore.New(db),
		users:        userstore.New(db),
		boards:       boardstore.New(db),
		boardMembers: boardmemberstore.New(db),
		events:       audit.New(db),
		deleter:      cascade.New(db),
		cache:        c,
		mail:         mail,
		audit:        al,
		log:          logger,
		cfg:          cfg,
	}
}

// SetInvitationClock replaces the clock used to stamp invitations.
func (s *Service) SetInvitationClock(now func() time.Time) { s.invitations.SetClock(now) }

// load returns the team and its member rows. A missing team is Hidden.
func (s *Service) load(ctx context.Context, teamID primitive.ObjectID) (models.Team, []models.TeamMember, error) {
	team, err := s.teams.GetByID(ctx, teamID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Team{}, nil, apperr.Hidden()
		}
		return models.Team{}, nil, apperr.FromStore(err, "load team")
	}
	members, err := s.members.ListByTeam(ctx, teamID)
	if err != nil {
		return models.Team{}, nil, apperr.FromStore(err, "load team members")
	}
	return team, members, nil
}

func memberIDs(members []models.TeamMember) []primitive.ObjectID {
	ids := make([]primitive.ObjectID, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.UserID)
	}
	return ids
}

// invalidate runs after commit. A cache failure only widens the staleness
// window, so it is logged and swallowed.
func (s *Service) invalidate(ctx context.Context, ids ...primitive.ObjectID) {
	if err := cache.InvalidateUsers(ctx, s.cache, ids...); err != nil {
		s.log.Warn("cache invalidation failed", zap.Int("users", len(ids)), zap.Error(err))
	}
}

// Create makes a team owned by actorID.
func (s *Service) Create(ctx context.Context, actorID primitive.ObjectID, name, description string) (models.Team, error) {
	name = normalize.Name(name)
	if name == "" {
		return models.Team{}, apperr.InvalidOperation("team name is required")
	}

	var team models.Team
	err := txn.Run(ctx, s.db, s.log, func(ctx context.Context) error {
		var err error
		team, err = s.teams.Create(ctx, models.Team{
			Name:        name,
			Description: strings.TrimSpace(description),
			OwnerID:     actorID,
		})
		if err != nil {
			return err
		}
		_, err = s.members.Add(ctx, team.ID, actorID, models.RoleOwner)
		return err
	})
	if err != nil {
		return models.Team{}, apperr.FromStore(err, "create team")
	}

	s.invalidate(ctx, actorID)
	s.audit.TeamCreated(ctx, actorID, team.ID, team.Name)
	s.log.Info("team created", zap.String("team_id", team.ID.Hex()), zap.String("owner_id", actorID.Hex()))
	return team, nil
}

// Update changes the team's name and description.
func (s *Service) Update(ctx context.Context, actorID, teamID primitive.ObjectID, name, description string) (models.Team, error) {
	team, members, err := s.load(ctx, teamID)
	if err != nil {
		return models.Team{}, err
	}
	if !teampolicy.CanViewTeam(team, members, actorID) {
		return models.Team{}, apperr.Hidden()
	}
	if !teampolicy.CanManageTeam(team, members, actorID) {
		return models.Team{}, apperr.Forbidden("only the team owner or an admin can update the team")
	}
	name = normalize.Name(name)
	if name == "" {
		return models.Team{}, apperr.InvalidOperation("team name is required")
	}
	// Board members outside the team also see the team name in their board list.
	boardIDs, err := s.boards.IDsByTeam(ctx, teamID)
	if err != nil {
		return models.Team{}, apperr.FromStore(err, "load team boards")
	}
	boardUsers, err := s.boardMembers.UserIDsByBoards(ctx, boardIDs)
	if err != nil {
		return models.Team{}, apperr.FromStore(err, "load board members")
	}
	if err := s.teams.UpdateInfo(ctx, teamID, name, strings.TrimSpace(description)); err != nil {
		return models.Team{}, apperr.FromStore(err, "update team")
	}

	affected := append(memberIDs(members), boardUsers...)
	s.invalidate(ctx, append(affected, actorID)...)
	s.audit.TeamUpdated(ctx, actorID, teamID)
	team.Name = name
	team.Description = strings.TrimSpace(description)
	team.UpdatedAt = time.Now().UTC()
	return team, nil
}

// Delete removes the team and everything it owns in one transaction.
func (s *Service) Delete(ctx context.Context, actorID, teamID primitive.ObjectID) (cascade.Report, error) {
	team, members, err := s.load(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if !teampolicy.CanViewTeam(team, members, actorID) {
		return nil, apperr.Hidden()
	}
	if !teampolicy.CanManageTeam(team, members, actorID) {
		return nil, apperr.Forbidden("only the team owner or an admin can delete the team")
	}

	boardIDs, err := s.boards.IDsByTeam(ctx, teamID)
	if err != nil {
		return nil, apperr.FromStore(err, "load team boards")
	}
	boardUsers, err := s.boardMembers.UserIDsByBoards(ctx, boardIDs)
	if err != nil {
		return nil, apperr.FromStore(err, "load board members")
	}

	var rep cascade.Report
	err = txn.Run(ctx, s.db, s.log, func(ctx context.Context) error {
		var err error
		rep, err = s.deleter.DeleteTeam(ctx, teamID)
		return err
	})
	if err != nil {
		return nil, apperr.FromStore(err, "delete team")
	}

	affected := append(memberIDs(members), boardUsers...)
	s.invalidate(ctx, append(affected, actorID)...)
	s.audit.TeamDeleted(ctx, actorID, teamID, team.Name)
	s.log.Info("team deleted",
		zap.String("team_id", teamID.Hex()),
		zap.String("actor_id", actorID.Hex()),
		zap.Int64("boards", rep["boards"]),
		zap.Int64("cards", rep["cards"]))
	return rep, nil
}

// InviteResult reports what Invite did.
type InviteResult struct {
	Success       bool                `json:"success"`
	AlreadyMember bool                `json:"already_member,omitempty"`
	Added         bool                `json:"added,omitempty"`      // existing account joined directly
	Invited       bool                `json:"invited,omitempty"`    // pending invitation stored
	EmailSent     bool                `json:"email_sent"`
	UserID        *primitive.ObjectID `json:"user_id,omitempty"`
	ExpiresAt     *time.Time          `json:"expires_at,omitempty"`
	Message       string              `json:"message"`
}

// Invite adds an existing account to the team directly, or stores a
// token-addressed invitation for an address with no account. Email is
// best-effort in both paths: a send failure is logged and reported through
// EmailSent, never through the error.
func (s *Service) Invite(ctx context.Context, actorID, teamID primitive.ObjectID, email string) (InviteResult, error) {
	team, members, err := s.load(ctx, teamID)
	if err != nil {
		return InviteResult{}, err
	}
	if !teampolicy.CanViewTeam(team, members, actorID) {
		return InviteResult{}, apperr.Hidden()
	}
	if !teampolicy.CanManageTeam(team, members, actorID) {
		return InviteResult{}, apperr.Forbidden("only the team owner or an admin can invite members")
	}
	email = normalize.Email(email)
	if !inputval.IsValidEmail(email) {
		return InviteResult{}, apperr.InvalidOperation("a valid email address is required")
	}

	inviterName := s.displayName(ctx, actorID)

	user, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return s.addExisting(ctx, actorID, team, members, *user, inviterName)
	case errors.Is(err, mongo.ErrNoDocuments):
		return s.invite(ctx, actorID, team, email, inviterName)
	default:
		return InviteResult{}, apperr.FromStore(err, "look up invitee")
	}
}

func (s *Service) addExisting(ctx context.Context, actorID primitive.ObjectID, team models.Team, members []models.TeamMember, user models.User, inviterName string) (InviteResult, error) {
	if _, err := s.members.Add(ctx, team.ID, user.ID, models.RoleMember); err != nil {
		if errors.Is(err, teammemberstore.ErrDuplicateMembership) {
			return InviteResult{AlreadyMember: true, UserID: &user.ID, Message: "user is already a member of this team"}, nil
		}
		return InviteResult{}, apperr.FromStore(err, "add team member")
	}

	s.invalidate(ctx, append(memberIDs(members), actorID, user.ID)...)
	s.audit.MemberAdded(ctx, actorID, team.ID, user.ID)

	msg := mailer.BuildMemberAddedEmail(mailer.MemberAddedEmailData{
		SiteName:    s.cfg.SiteName,
		To:          user.Email,
		TeamName:    team.Name,
		InviterName: inviterName,
		TeamURL:     s.cfg.BaseURL + "/teams/" + team.ID.Hex(),
	})
	sent := s.send(ctx, msg, "member_added", team.ID)
	return InviteResult{
		Success:   true,
		Added:     true,
		EmailSent: sent,
		UserID:    &user.ID,
		Message:   "user added to team",
	}, nil
}

func (s *Service) invite(ctx context.Context, actorID primitive.ObjectID, team models.Team, email, inviterName string) (InviteResult, error) {
	token, err := tokens.NewInvitationToken()
	if err != nil {
		return InviteResult{}, apperr.Internal("generate invitation token", err)
	}
	inv, err := s.invitations.Upsert(ctx, email, team.ID, actorID, token, s.cfg.InvitationTTL)
	if err != nil {
		return InviteResult{}, apperr.FromStore(err, "store invitation")
	}

	msg := mailer.BuildInvitationEmail(mailer.InvitationEmailData{
		SiteName:    s.cfg.SiteName,
		To:          email,
		TeamName:    team.Name,
		InviterName: inviterName,
		AcceptURL:   s.cfg.BaseURL + "/invitations/accept?token=" + token,
		ExpiresIn:   humanDuration(s.cfg.InvitationTTL),
	})
	sent := s.send(ctx, msg, "invitation", team.ID)
	s.audit.MemberInvited(ctx, actorID, team.ID, email, sent)

	res := InviteResult{
		Success:   true,
		Invited:   true,
		EmailSent: sent,
		ExpiresAt: &inv.ExpiresAt,
		Message:   "invitation sent",
	}
	if !sent {
		res.Message = "invitation saved but the email could not be sent"
	}
	return res, nil
}

func (s *Service) send(ctx context.Context, msg mailer.Email, kind string, teamID primitive.ObjectID) bool {
	if s.mail == nil {
		return false
	}
	if err := s.mail.Send(ctx, msg); err != nil {
		s.log.Warn("team email failed",
			zap.String("kind", kind),
			zap.String("team_id", teamID.Hex()),
			zap.Error(err))
		return false
	}
	return true
}

func (s *Service) displayName(ctx context.Context, userID primitive.ObjectID) string {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return "A teammate"
	}
	return u.DisplayName()
}

func humanDuration(d time.Duration) string {
	days := int(d / (24 * time.Hour))
	switch {
	case days == 1:
		return "1 day"
	case days > 1:
		return strconv.Itoa(days) + " days"
	}
	return d.String()
}
