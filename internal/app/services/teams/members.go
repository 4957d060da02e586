package teams

import (
	"context"
	"errors"

	"github.com/dalemusser/taskhub/internal/app/policy/teampolicy"
	"github.com/dalemusser/taskhub/internal/app/system/apperr"
	"github.com/dalemusser/taskhub/internal/app/system/txn"
	"github.com/dalemusser/taskhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// ChangeRole sets userID's role in the team. Owner is never assignable this
// way and the owner's own role cannot change: either would leave the team
// with zero or two owners.
func (s *Service) ChangeRole(ctx context.Context, actorID, teamID, userID primitive.ObjectID, role models.Role) error {
	team, members, err := s.load(ctx, teamID)
	if err != nil {
		return err
	}
	if !teampolicy.CanViewTeam(team, members, actorID) {
		return apperr.Hidden()
	}
	if !teampolicy.CanManageTeam(team, members, actorID) {
		return apperr.Forbidden("only the team owner or an admin can change roles")
	}
	if !role.Valid() || role == models.RoleOwner {
		return apperr.InvalidOperation("role must be Member or Admin")
	}
	target, ok := teampolicy.FindMember(members, userID)
	if !ok {
		return apperr.NotFound("member not found")
	}
	if teampolicy.IsTeamOwner(team, userID) {
		return apperr.InvalidOperation("the team owner's role cannot be changed")
	}
	if target.Role == role {
		return nil
	}

	if err := s.members.SetRole(ctx, teamID, userID, role); err != nil {
		return apperr.FromStore(err, "change role")
	}

	s.invalidate(ctx, actorID, userID)
	s.audit.MemberRoleChanged(ctx, actorID, teamID, userID, target.Role.String(), role.String())
	return nil
}

// RemoveMember deletes userID's membership.
//
// A member may remove themselves only if they hold the Admin role. Anyone
// else needs CanManageTeam. When the removed user is the team owner, the
// acting admin becomes the owner in the same transaction. The removed user's
// board rows on the team's boards go with the membership.
func (s *Service) RemoveMember(ctx context.Context, actorID, teamID, userID primitive.ObjectID) error {
	team, members, err := s.load(ctx, teamID)
	if err != nil {
		return err
	}
	if !teampolicy.CanViewTeam(team, members, actorID) {
		return apperr.Hidden()
	}
	target, ok := teampolicy.FindMember(members, userID)
	if !ok {
		return apperr.NotFound("member not found")
	}

	if userID == actorID {
		if !teampolicy.CanSelfRemove(target) {
			return apperr.InvalidOperation("only admins can leave a team")
		}
	} else if !teampolicy.CanManageTeam(team, members, actorID) {
		return apperr.Forbidden("only the team owner or an admin can remove members")
	}

	transfer := teampolicy.IsTeamOwner(team, userID)

	boardIDs, err := s.boards.IDsByTeam(ctx, teamID)
	if err != nil {
		return apperr.FromStore(err, "load team boards")
	}

	err = txn.Run(ctx, s.db, s.log, func(ctx context.Context) error {
		if transfer {
			if err := s.teams.SetOwner(ctx, teamID, actorID); err != nil {
				return err
			}
			if err := s.members.SetRole(ctx, teamID, actorID, models.RoleOwner); err != nil {
				return err
			}
		}
		n, err := s.members.Remove(ctx, teamID, userID)
		if err != nil {
			return err
		}
		if n == 0 {
			return mongo.ErrNoDocuments
		}
		_, err = s.boardMembers.RemoveUserFromBoards(ctx, userID, boardIDs)
		return err
	})
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return apperr.NotFound("member not found")
		}
		return apperr.FromStore(err, "remove member")
	}

	// pre-removal membership already includes the removed user and the actor
	s.invalidate(ctx, append(memberIDs(members), actorID)...)
	s.audit.MemberRemoved(ctx, actorID, teamID, userID)
	if transfer {
		s.audit.OwnershipTransferred(ctx, actorID, teamID, userID)
		s.log.Info("team ownership transferred on removal",
			zap.String("team_id", teamID.Hex()),
			zap.String("previous_owner", userID.Hex()),
			zap.String("new_owner", actorID.Hex()))
	}
	return nil
}
