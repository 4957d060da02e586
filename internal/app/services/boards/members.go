package boards

import (
	"context"
	"errors"

	"github.com/dalemusser/taskhub/internal/app/policy/boardpolicy"
	boardmemberstore "github.com/dalemusser/taskhub/internal/app/store/boardmembers"
	"github.com/dalemusser/taskhub/internal/app/system/apperr"
	"github.com/dalemusser/taskhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// AddMember gives userID a row on the board. Owner is not assignable.
func (s *Service) AddMember(ctx context.Context, actorID, boardID, userID primitive.ObjectID, role models.Role) (models.BoardMember, error) {
	if !role.Valid() || role == models.RoleOwner {
		return models.BoardMember{}, apperr.InvalidOperation("role must be Member or Admin")
	}
	sc, err := s.loadManaged(ctx, actorID, boardID)
	if err != nil {
		return models.BoardMember{}, err
	}
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.BoardMember{}, apperr.NotFound("user not found")
		}
		return models.BoardMember{}, apperr.FromStore(err, "load user")
	}

	m, err := s.boardMembers.Add(ctx, boardID, userID, role)
	if err != nil {
		if errors.Is(err, boardmemberstore.ErrDuplicateMembership) {
			return models.BoardMember{}, apperr.Conflict("user is already a member of this board")
		}
		return models.BoardMember{}, apperr.FromStore(err, "add board member")
	}

	s.invalidate(ctx, sc.affected(actorID, userID)...)
	s.audit.BoardMemberAdded(ctx, actorID, boardID, sc.board.TeamID, userID, role.String())
	return m, nil
}

// ChangeMemberRole updates a member's board role. The board owner's row is
// fixed at Owner.
func (s *Service) ChangeMemberRole(ctx context.Context, actorID, boardID, userID primitive.ObjectID, role models.Role) error {
	if !role.Valid() || role == models.RoleOwner {
		return apperr.InvalidOperation("role must be Member or Admin")
	}
	sc, err := s.loadManaged(ctx, actorID, boardID)
	if err != nil {
		return err
	}
	if boardpolicy.IsBoardOwner(sc.board, userID) {
		return apperr.InvalidOperation("the board owner's role cannot be changed")
	}
	if !boardpolicy.IsBoardMember(sc.members, userID) {
		return apperr.NotFound("member not found")
	}

	if err := s.boardMembers.SetRole(ctx, boardID, userID, role); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return apperr.NotFound("member not found")
		}
		return apperr.FromStore(err, "change board role")
	}
	s.invalidate(ctx, userID, actorID)
	return nil
}

// RemoveMember deletes a member's board row. Members may remove themselves;
// anyone else needs board management. The owner cannot be removed.
func (s *Service) RemoveMember(ctx context.Context, actorID, boardID, userID primitive.ObjectID) error {
	var sc scope
	var err error
	if actorID == userID {
		sc, err = s.loadFor(ctx, actorID, boardID)
	} else {
		sc, err = s.loadManaged(ctx, actorID, boardID)
	}
	if err != nil {
		return err
	}
	if boardpolicy.IsBoardOwner(sc.board, userID) {
		return apperr.InvalidOperation("the board owner cannot be removed")
	}

	n, err := s.boardMembers.Remove(ctx, boardID, userID)
	if err != nil {
		return apperr.FromStore(err, "remove board member")
	}
	if n == 0 {
		return apperr.NotFound("member not found")
	}

	s.invalidate(ctx, sc.affected(actorID, userID)...)
	s.audit.BoardMemberRemoved(ctx, actorID, boardID, sc.board.TeamID, userID)
	return nil
}
