package boards

import (
	"context"
	"time"

	"github.com/dalemusser/taskhub/internal/app/system/apperr"
	"github.com/dalemusser/taskhub/internal/app/system/cache"
	"github.com/dalemusser/taskhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// BoardSummary is the list-view projection. It never carries lists or cards.
type BoardSummary struct {
	ID          primitive.ObjectID  `json:"id"`
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Color       string              `json:"color"`
	OwnerID     primitive.ObjectID  `json:"owner_id"`
	TeamID      *primitive.ObjectID `json:"team_id,omitempty"`
	TeamName    string              `json:"team_name,omitempty"`
	Role        models.Role         `json:"role"`
	IsOwner     bool                `json:"is_owner"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

// BoardMemberView is one row of BoardDetail.Members.
type BoardMemberView struct {
	UserID   primitive.ObjectID `json:"user_id"`
	Name     string             `json:"name"`
	Email    string             `json:"email"`
	Role     models.Role        `json:"role"`
	JoinedAt time.Time          `json:"joined_at"`
}

// CardView is a card as shown inside a list.
type CardView struct {
	models.Card
	LabelIDs []primitive.ObjectID `json:"label_ids"`
}

// ListView is a list with its cards in canonical order.
type ListView struct {
	models.List
	Cards []CardView `json:"cards"`
}

// BoardDetail is the single-board projection.
type BoardDetail struct {
	BoardSummary
	CanManage        bool              `json:"can_manage"`
	CanDeleteContent bool              `json:"can_delete_content"`
	Members          []BoardMemberView `json:"members"`
	Lists            []ListView        `json:"lists"`
	Labels           []models.Label    `json:"labels"`
}

// List returns the boards the caller owns or is a member of, read through
// the per-user cache.
func (s *Service) List(ctx context.Context, userID primitive.ObjectID) ([]BoardSummary, error) {
	key := cache.UserBoardsKey(userID)

	var cached []BoardSummary
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
	if err := s.cache.Set(ctx, key, out, s.cacheTTL); err != nil {
		s.log.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
	return out, nil
}

func (s *Service) listFromStore(ctx context.Context, userID primitive.ObjectID) ([]BoardSummary, error) {
	rows, err := s.boardMembers.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperr.FromStore(err, "list board memberships")
	}
	roles := make(map[primitive.ObjectID]models.Role, len(rows))
	ids := make([]primitive.ObjectID, 0, len(rows))
	for _, r := range rows {
		roles[r.BoardID] = r.Role
		ids = append(ids, r.BoardID)
	}

	boards, err := s.boards.ListVisible(ctx, userID, ids)
	if err != nil {
		return nil, apperr.FromStore(err, "list boards")
	}

	var teamIDs []primitive.ObjectID
	for _, b := range boards {
		if b.TeamID != nil {
			teamIDs = append(teamIDs, *b.TeamID)
		}
	}
	teamNames := map[primitive.ObjectID]string{}
	if len(teamIDs) > 0 {
		teams, err := s.teams.GetByIDs(ctx, teamIDs)
		if err != nil {
			return nil, apperr.FromStore(err, "load teams")
		}
		for _, t := range teams {
			teamNames[t.ID] = t.Name
		}
	}

	out := make([]BoardSummary, 0, len(boards))
	for _, b := range boards {
		out = append(out, summarize(b, userID, roles, teamNames))
	}
	return out, nil
}

func summarize(b models.Board, userID primitive.ObjectID, roles map[primitive.ObjectID]models.Role, teamNames map[primitive.ObjectID]string) BoardSummary {
	sum := BoardSummary{
		ID:          b.ID,
		Title:       b.Title,
		Description: b.Description,
		Color:       b.Color,
		OwnerID:     b.OwnerID,
		TeamID:      b.TeamID,
		Role:        roles[b.ID],
		IsOwner:     b.OwnerID == userID,
		UpdatedAt:   b.UpdatedAt,
	}
	if sum.IsOwner {
		sum.Role = models.RoleOwner
	}
	if b.TeamID != nil {
		sum.TeamName = teamNames[*b.TeamID]
	}
	return sum
}

// Get returns the board with its members, labels, and lists of cards in
// canonical order.
func (s *Service) Get(ctx context.Context, userID, boardID primitive.ObjectID) (BoardDetail, error) {
	sc, err := s.loadFor(ctx, userID, boardID)
	if err != nil {
		return BoardDetail{}, err
	}

	roles := map[primitive.ObjectID]models.Role{}
	memberIDs := make([]primitive.ObjectID, 0, len(sc.members))
	for _, m := range sc.members {
		memberIDs = append(memberIDs, m.UserID)
		if m.UserID == userID {
			roles[boardID] = m.Role
		}
	}
	teamNames := map[primitive.ObjectID]string{}
	if sc.team != nil {
		teamNames[sc.team.ID] = sc.team.Name
	}

	users, err := s.users.GetByIDs(ctx, memberIDs)
	if err != nil {
		return BoardDetail{}, apperr.FromStore(err, "load members")
	}
	members := make([]BoardMemberView, 0, len(sc.members))
	for _, m := range sc.members {
		u := users[m.UserID]
		members = append(members, BoardMemberView{
			UserID:   m.UserID,
			Name:     u.DisplayName(),
			Email:    u.Email,
			Role:     m.Role,
			JoinedAt: m.JoinedAt,
		})
	}

	lists, err := s.lists.ListByBoard(ctx, boardID)
	if err != nil {
		return BoardDetail{}, apperr.FromStore(err, "load lists")
	}
	listIDs := make([]primitive.ObjectID, 0, len(lists))
	for _, l := range lists {
		listIDs = append(listIDs, l.ID)
	}
	cards, err := s.cards.ListByLists(ctx, listIDs)
	if err != nil {
		return BoardDetail{}, apperr.FromStore(err, "load cards")
	}
	cardIDs := make([]primitive.ObjectID, 0, len(cards))
	for _, c := range cards {
		cardIDs = append(cardIDs, c.ID)
	}
	applied, err := s.labels.LabelIDsByCards(ctx, cardIDs)
	if err != nil {
		return BoardDetail{}, apperr.FromStore(err, "load card labels")
	}

	byList := make(map[primitive.ObjectID][]CardView, len(lists))
	for _, c := range cards {
		ids := applied[c.ID]
		if ids == nil {
			ids = []primitive.ObjectID{}
		}
		byList[c.ListID] = append(byList[c.ListID], CardView{Card: c, LabelIDs: ids})
	}
	views := make([]ListView, 0, len(lists))
	for _, l := range lists {
		cs := byList[l.ID]
		if cs == nil {
			cs = []CardView{}
		}
		views = append(views, ListView{List: l, Cards: cs})
	}

	labels, err := s.labels.ListByBoard(ctx, boardID)
	if err != nil {
		return BoardDetail{}, apperr.FromStore(err, "load labels")
	}
	if labels == nil {
		labels = []models.Label{}
	}

	return BoardDetail{
		BoardSummary:     summarize(sc.board, userID, roles, teamNames),
		CanManage:        sc.canManage(userID),
		CanDeleteContent: sc.canDeleteContent(userID),
		Members:          members,
		Lists:            views,
		Labels:           labels,
	}, nil
}
