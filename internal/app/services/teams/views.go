package teams

import (
	"context"
	"time"

	"github.com/dalemusser/taskhub/internal/app/policy/boardpolicy"
	"github.com/dalemusser/taskhub/internal/app/policy/teampolicy"
	"github.com/dalemusser/taskhub/internal/app/store/audit"
	"github.com/dalemusser/taskhub/internal/app/system/apperr"
	"github.com/dalemusser/taskhub/internal/app/system/cache"
	"github.com/dalemusser/taskhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// TeamSummary is the list-view projection. It never carries members or boards.
type TeamSummary struct {
	ID          primitive.ObjectID `json:"id"`
	Name        string             `json:"name"`
	Description string             `json:"description"`
	OwnerID     primitive.ObjectID `json:"owner_id"`
	Role        models.Role        `json:"role"`
	MemberCount int                `json:"member_count"`
	BoardCount  int                `json:"board_count"`
	CreatedAt   time.Time          `json:"created_at"`
}

// MemberView is one row of TeamDetail.Members.
type MemberView struct {
	UserID   primitive.ObjectID `json:"user_id"`
	Name     string             `json:"name"`
	Email    string             `json:"email"`
	Role     models.Role        `json:"role"`
	JoinedAt time.Time          `json:"joined_at"`
}

// BoardRef is a board the caller can open, as listed on the team page.
type BoardRef struct {
	ID    primitive.ObjectID `json:"id"`
	Title string             `json:"title"`
	Color string             `json:"color"`
}

// PendingInvitation is shown to team managers only.
type PendingInvitation struct {
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expires_at"`
}

// TeamDetail is the single-team projection.
type TeamDetail struct {
	TeamSummary
	CanManage   bool                `json:"can_manage"`
	Members     []MemberView        `json:"members"`
	Boards      []BoardRef          `json:"boards"`
	Invitations []PendingInvitation `json:"invitations,omitempty"`
}

// List returns the caller's teams, read through the per-user cache.
func (s *Service) List(ctx context.Context, userID primitive.ObjectID) ([]TeamSummary, error) {
	key := cache.UserTeamsKey(userID)

	var cached []TeamSummary
	ok, err := s.cache.Get(ctx, key, &cached)
	if err != nil {
		s.log.Warn("cache read failed", zap.String("key", key), zap.Error(err))
	}
	if ok {
		return cached, nil
	}

	out, err := s.listFromStore(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, key, out, s.cfg.CacheTTL); err != nil {
		s.log.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
	return out, nil
}

func (s *Service) listFromStore(ctx context.Context, userID primitive.ObjectID) ([]TeamSummary, error) {
	rows, err := s.members.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperr.FromStore(err, "list memberships")
	}
	if len(rows) == 0 {
		return []TeamSummary{}, nil
	}
	roles := make(map[primitive.ObjectID]models.Role, len(rows))
	ids := make([]primitive.ObjectID, 0, len(rows))
	for _, r := range rows {
		roles[r.TeamID] = r.Role
		ids = append(ids, r.TeamID)
	}

	teams, err := s.teams.GetByIDs(ctx, ids)
	if err != nil {
		return nil, apperr.FromStore(err, "list teams")
	}
	memberCounts, err := s.members.CountByTeam(ctx, ids)
	if err != nil {
		return nil, apperr.FromStore(err, "count members")
	}
	boardCounts, err := s.boards.CountByTeam(ctx, ids)
	if err != nil {
		return nil, apperr.FromStore(err, "count boards")
	}

	out := make([]TeamSummary, 0, len(teams))
	for _, t := range teams {
		out = append(out, TeamSummary{
			ID:          t.ID,
			Name:        t.Name,
			Description: t.Description,
			OwnerID:     t.OwnerID,
			Role:        roles[t.ID],
			MemberCount: memberCounts[t.ID],
			BoardCount:  boardCounts[t.ID],
			CreatedAt:   t.CreatedAt,
		})
	}
	return out, nil
}

// Get returns the team detail. Non-members get the generic not-found error.
func (s *Service) Get(ctx context.Context, userID, teamID primitive.ObjectID) (TeamDetail, error) {
	team, members, err := s.load(ctx, teamID)
	if err != nil {
		return TeamDetail{}, err
	}
	if !teampolicy.CanViewTeam(team, members, userID) {
		return TeamDetail{}, apperr.Hidden()
	}

	ids := memberIDs(members)
	users, err := s.users.GetByIDs(ctx, ids)
	if err != nil {
		return TeamDetail{}, apperr.FromStore(err, "load member accounts")
	}

	boards, err := s.boards.ListByTeam(ctx, teamID)
	if err != nil {
		return TeamDetail{}, apperr.FromStore(err, "load team boards")
	}
	mine, err := s.boardMembers.BoardIDsByUser(ctx, userID)
	if err != nil {
		return TeamDetail{}, apperr.FromStore(err, "load board memberships")
	}
	memberOf := make(map[primitive.ObjectID]bool, len(mine))
	for _, id := range mine {
		memberOf[id] = true
	}

	d := TeamDetail{
		TeamSummary: TeamSummary{
			ID:          team.ID,
			Name:        team.Name,
			Description: team.Description,
			OwnerID:     team.OwnerID,
			MemberCount: len(members),
			BoardCount:  len(boards),
			CreatedAt:   team.CreatedAt,
		},
		CanManage: teampolicy.CanManageTeam(team, members, userID),
		Members:   make([]MemberView, 0, len(members)),
		Boards:    []BoardRef{},
	}
	if m, ok := teampolicy.FindMember(members, userID); ok {
		d.Role = m.Role
	}
	for _, m := range members {
		u := users[m.UserID]
		d.Members = append(d.Members, MemberView{
			UserID:   m.UserID,
			Name:     u.DisplayName(),
			Email:    u.Email,
			Role:     m.Role,
			JoinedAt: m.JoinedAt,
		})
	}
	for _, b := range boards {
		if b.Archived {
			continue
		}
		if boardpolicy.IsBoardOwner(b, userID) || memberOf[b.ID] {
			d.Boards = append(d.Boards, BoardRef{ID: b.ID, Title: b.Title, Color: b.Color})
		}
	}

	if d.CanManage {
		pending, err := s.invitations.ListPendingByTeam(ctx, teamID)
		if err != nil {
			return TeamDetail{}, apperr.FromStore(err, "load invitations")
		}
		for _, inv := range pending {
			d.Invitations = append(d.Invitations, PendingInvitation{Email: inv.Email, ExpiresAt: inv.ExpiresAt})
		}
	}
	return d, nil
}

// Activity returns the team's most recent audit events, newest first.
func (s *Service) Activity(ctx context.Context, userID, teamID primitive.ObjectID, limit int64) ([]audit.Event, error) {
	team, members, err := s.load(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if !teampolicy.CanViewTeam(team, members, userID) {
		return nil, apperr.Hidden()
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	events, err := s.events.GetByTeam(ctx, teamID, limit)
	if err != nil {
		return nil, apperr.FromStore(err, "load activity")
	}
	return events, nil
}
