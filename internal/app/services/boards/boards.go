// Package boards implements everything inside a board: the board itself,
// its members, ordered lists, ordered cards, comments, labels and
// attachment metadata.
//
// Reads and non-destructive writes need board access. Board settings and
// membership need board management. Deleting lists and cards needs team
// owner or admin standing. See boardpolicy for the exact predicates.
package boards

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/dalemusser/taskhub/internal/app/policy/boardpolicy"
	"github.com/dalemusser/taskhub/internal/app/policy/teampolicy"
	"github.com/dalemusser/taskhub/internal/app/services/cascade"
	attachmentstore "github.com/dalemusser/taskhub/internal/app/store/attachments"
	boardmemberstore "github.com/dalemusser/taskhub/internal/app/store/boardmembers"
	boardstore "github.com/dalemusser/taskhub/internal/app/store/boards"
	cardstore "github.com/dalemusser/taskhub/internal/app/store/cards"
	commentstore "github.com/dalemusser/taskhub/internal/app/store/comments"
	labelstore "github.com/dalemusser/taskhub/internal/app/store/labels"
	liststore "github.com/dalemusser/taskhub/internal/app/store/lists"
	teammemberstore "github.com/dalemusser/taskhub/internal/app/store/teammembers"
	teamstore "github.com/dalemusser/taskhub/internal/app/store/teams"
	userstore "github.com/dalemusser/taskhub/internal/app/store/users"
	"github.com/dalemusser/taskhub/internal/app/system/apperr"
	"github.com/dalemusser/taskhub/internal/app/system/auditlog"
	"github.com/dalemusser/taskhub/internal/app/system/cache"
	"github.com/dalemusser/taskhub/internal/app/system/txn"
	"github.com/dalemusser/taskhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// DefaultColor is used when a board is created without one.
const DefaultColor = "#0079bf"

var hexColor = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

type Service struct {
	db           *mongo.Database
	boards       *boardstore.Store
	boardMembers *boardmemberstore.Store
	teams        *teamstore.Store
	teamMembers  *teammemberstore.Store
	users        *userstore.Store
	lists        *liststore.Store
	cards        *cardstore.Store
	comments     *commentstore.Store
	labels       *labelstore.Store
	attachments  *attachmentstore.Store
	deleter      *cascade.Deleter

	cache    cache.Store
	cacheTTL time.Duration
	audit    *auditlog.Logger
	log      *zap.Logger
}

func New(db *mongo.Database, c cache.Store, al *auditlog.Logger, logger *zap.Logger, cacheTTL time.Duration) *Service {
	if cacheTTL <= 0 {
		cacheTTL = cache.DefaultTTL
	}
	return &Service{
		db:           db,
		boards:       boardstore.New(db),
		boardMembers: boardmemberstore.New(db),
		teams:        teamstore.New(db),
		teamMembers:  teammemberstore.New(db),
		users:        userstore.New(db),
		lists:        liststore.New(db),
		cards:        cardstore.New(db),
		comments:     commentstore.New(db),
		labels:       labelstore.New(db),
		attachments:  attachmentstore.New(db),
		deleter:      cascade.New(db),
		cache:        c,
		cacheTTL:     cacheTTL,
		audit:        al,
		log:          logger,
	}
}

// scope is a board with everything the policy predicates need.
type scope struct {
	board       models.Board
	members     []models.BoardMember
	team        *models.Team
	teamMembers []models.TeamMember
}

func (sc scope) canAccess(userID primitive.ObjectID) bool {
	return boardpolicy.HasBoardAccess(sc.board, sc.members, userID)
}

func (sc scope) canManage(userID primitive.ObjectID) bool {
	return boardpolicy.CanManageBoard(sc.board, sc.team, sc.teamMembers, userID)
}

func (sc scope) canDeleteContent(userID primitive.ObjectID) bool {
	return boardpolicy.CanDeleteListOrCard(sc.board, sc.team, sc.teamMembers, userID)
}

// affected lists every user whose board list view can change when this
// board changes: its members, its owner and, for a team board, the team.
func (sc scope) affected(extra ...primitive.ObjectID) []primitive.ObjectID {
	ids := append([]primitive.ObjectID{sc.board.OwnerID}, extra...)
	for _, m := range sc.members {
		ids = append(ids, m.UserID)
	}
	for _, m := range sc.teamMembers {
		ids = append(ids, m.UserID)
	}
	return ids
}

func (s *Service) load(ctx context.Context, boardID primitive.ObjectID) (scope, error) {
	b, err := s.boards.GetByID(ctx, boardID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return scope{}, apperr.Hidden()
		}
		return scope{}, apperr.FromStore(err, "load board")
	}
	sc := scope{board: b}
	if sc.members, err = s.boardMembers.ListByBoard(ctx, boardID); err != nil {
		return scope{}, apperr.FromStore(err, "load board members")
	}
	if b.TeamID != nil {
		team, err := s.teams.GetByID(ctx, *b.TeamID)
		switch {
		case err == nil:
			sc.team = &team
			if sc.teamMembers, err = s.teamMembers.ListByTeam(ctx, team.ID); err != nil {
				return scope{}, apperr.FromStore(err, "load team members")
			}
		case errors.Is(err, mongo.ErrNoDocuments):
			// team gone; the board grants only owner/member access
		default:
			return scope{}, apperr.FromStore(err, "load team")
		}
	}
	return sc, nil
}

// loadFor loads the board and requires access. Callers without access see
// the board as missing.
func (s *Service) loadFor(ctx context.Context, userID, boardID primitive.ObjectID) (scope, error) {
	sc, err := s.load(ctx, boardID)
	if err != nil {
		return scope{}, err
	}
	if !sc.canAccess(userID) {
		return scope{}, apperr.Hidden()
	}
	return sc, nil
}

// loadManaged loads the board and requires management rights.
func (s *Service) loadManaged(ctx context.Context, userID, boardID primitive.ObjectID) (scope, error) {
	sc, err := s.load(ctx, boardID)
	if err != nil {
		return scope{}, err
	}
	if !sc.canManage(userID) {
		if !sc.canAccess(userID) {
			return scope{}, apperr.Hidden()
		}
		return scope{}, apperr.Forbidden("only the board owner or a team owner/admin can manage this board")
	}
	return sc, nil
}

func (s *Service) invalidate(ctx context.Context, ids ...primitive.ObjectID) {
	if err := cache.InvalidateUsers(ctx, s.cache, ids...); err != nil {
		s.log.Warn("cache invalidation failed", zap.Int("users", len(ids)), zap.Error(err))
	}
}

// CreateInput describes a new board.
type CreateInput struct {
	Title             string
	Description       string
	Color             string
	TeamID            *primitive.ObjectID
	AddAllTeamMembers bool
}

// Create makes a board owned by actorID. A team board requires team
// membership. With AddAllTeamMembers every other team member gets a board
// row at their team role, capped at Admin.
func (s *Service) Create(ctx context.Context, actorID primitive.ObjectID, in CreateInput) (models.Board, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return models.Board{}, apperr.InvalidOperation("board title is required")
	}
	color := strings.TrimSpace(in.Color)
	if color == "" {
		color = DefaultColor
	}
	if !hexColor.MatchString(color) {
		return models.Board{}, apperr.InvalidOperation("color must be a #rrggbb hex value")
	}

	var teamMembers []models.TeamMember
	if in.TeamID != nil {
		team, err := s.teams.GetByID(ctx, *in.TeamID)
		if err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return models.Board{}, apperr.Hidden()
			}
			return models.Board{}, apperr.FromStore(err, "load team")
		}
		if teamMembers, err = s.teamMembers.ListByTeam(ctx, team.ID); err != nil {
			return models.Board{}, apperr.FromStore(err, "load team members")
		}
		if !teampolicy.CanViewTeam(team, teamMembers, actorID) {
			return models.Board{}, apperr.Hidden()
		}
	}

	var board models.Board
	err := txn.Run(ctx, s.db, s.log, func(ctx context.Context) error {
		var err error
		board, err = s.boards.Create(ctx, models.Board{
			Title:       title,
			Description: strings.TrimSpace(in.Description),
			Color:       color,
			OwnerID:     actorID,
			TeamID:      in.TeamID,
		})
		if err != nil {
			return err
		}
		if _, err := s.boardMembers.Add(ctx, board.ID, actorID, models.RoleOwner); err != nil {
			return err
		}
		if !in.AddAllTeamMembers || len(teamMembers) == 0 {
			return nil
		}
		entries := make([]boardmemberstore.Entry, 0, len(teamMembers))
		for _, m := range teamMembers {
			if m.UserID == actorID {
				continue
			}
			role := m.Role
			if role > models.RoleAdmin {
				role = models.RoleAdmin
			}
			entries = append(entries, boardmemberstore.Entry{UserID: m.UserID, Role: role})
		}
		_, err = s.boardMembers.AddBatch(ctx, board.ID, entries)
		return err
	})
	if err != nil {
		return models.Board{}, apperr.FromStore(err, "create board")
	}

	ids := []primitive.ObjectID{actorID}
	for _, m := range teamMembers {
		ids = append(ids, m.UserID)
	}
	s.invalidate(ctx, ids...)
	s.audit.BoardCreated(ctx, actorID, board.ID, board.TeamID, board.Title)
	return board, nil
}

// Update changes board settings.
func (s *Service) Update(ctx context.Context, actorID, boardID primitive.ObjectID, u boardstore.Update) (models.Board, error) {
	sc, err := s.loadManaged(ctx, actorID, boardID)
	if err != nil {
		return models.Board{}, err
	}
	if u.Title != nil && strings.TrimSpace(*u.Title) == "" {
		return models.Board{}, apperr.InvalidOperation("board title is required")
	}
	if u.Color != nil && !hexColor.MatchString(*u.Color) {
		return models.Board{}, apperr.InvalidOperation("color must be a #rrggbb hex value")
	}
	if err := s.boards.Update(ctx, boardID, u); err != nil {
		return models.Board{}, apperr.FromStore(err, "update board")
	}

	s.invalidate(ctx, sc.affected(actorID)...)
	b, err := s.boards.GetByID(ctx, boardID)
	if err != nil {
		return models.Board{}, apperr.FromStore(err, "reload board")
	}
	return b, nil
}

// Delete removes the board and its lists, cards, comments, labels,
// attachments and member rows.
func (s *Service) Delete(ctx context.Context, actorID, boardID primitive.ObjectID) (cascade.Report, error) {
	sc, err := s.loadManaged(ctx, actorID, boardID)
	if err != nil {
		return nil, err
	}

	var rep cascade.Report
	err = txn.Run(ctx, s.db, s.log, func(ctx context.Context) error {
		var err error
		rep, err = s.deleter.DeleteBoards(ctx, []primitive.ObjectID{boardID})
		return err
	})
	if err != nil {
		return nil, apperr.FromStore(err, "delete board")
	}

	s.invalidate(ctx, sc.affected(actorID)...)
	s.audit.BoardDeleted(ctx, actorID, boardID, sc.board.TeamID, sc.board.Title)
	s.log.Info("board deleted",
		zap.String("board_id", boardID.Hex()),
		zap.String("actor_id", actorID.Hex()),
		zap.Int64("cards", rep["cards"]))
	return rep, nil
}
