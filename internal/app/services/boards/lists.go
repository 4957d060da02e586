package boards

import (
	"context"
	"errors"
	"strings"

	"github.com/dalemusser/taskhub/internal/app/services/cascade"
	"github.com/dalemusser/taskhub/internal/app/system/apperr"
	"github.com/dalemusser/taskhub/internal/app/system/txn"
	"github.com/dalemusser/taskhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

func checkPosition(position *int) error {
	if position != nil && *position < 0 {
		return apperr.InvalidOperation("position must not be negative")
	}
	return nil
}

// listScope loads a list and its board, requiring board access.
func (s *Service) listScope(ctx context.Context, userID, listID primitive.ObjectID) (models.List, scope, error) {
	l, sc, err := s.loadList(ctx, listID)
	if err != nil {
		return models.List{}, scope{}, err
	}
	if !sc.canAccess(userID) {
		return models.List{}, scope{}, apperr.Hidden()
	}
	return l, sc, nil
}

func (s *Service) loadList(ctx context.Context, listID primitive.ObjectID) (models.List, scope, error) {
	l, err := s.lists.GetByID(ctx, listID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.List{}, scope{}, apperr.Hidden()
		}
		return models.List{}, scope{}, apperr.FromStore(err, "load list")
	}
	sc, err := s.load(ctx, l.BoardID)
	if err != nil {
		return models.List{}, scope{}, err
	}
	return l, sc, nil
}

// deletable reports Forbidden to callers who can see the board and Hidden
// to everyone else.
func (sc scope) deletable(userID primitive.ObjectID, what string) error {
	if sc.canDeleteContent(userID) {
		return nil
	}
	if !sc.canAccess(userID) {
		return apperr.Hidden()
	}
	return apperr.Forbidden("only a team owner or admin can delete " + what)
}

// CreateList adds a list to the board. A nil position appends.
func (s *Service) CreateList(ctx context.Context, actorID, boardID primitive.ObjectID, title string, position *int) (models.List, error) {
	if strings.TrimSpace(title) == "" {
		return models.List{}, apperr.InvalidOperation("list title is required")
	}
	if err := checkPosition(position); err != nil {
		return models.List{}, err
	}
	if _, err := s.loadFor(ctx, actorID, boardID); err != nil {
		return models.List{}, err
	}
	l, err := s.lists.Create(ctx, boardID, title, position)
	if err != nil {
		return models.List{}, apperr.FromStore(err, "create list")
	}
	return l, nil
}

// UpdateList renames or archives a list.
func (s *Service) UpdateList(ctx context.Context, actorID, listID primitive.ObjectID, title *string, archived *bool) (models.List, error) {
	if title != nil && strings.TrimSpace(*title) == "" {
		return models.List{}, apperr.InvalidOperation("list title is required")
	}
	if _, _, err := s.listScope(ctx, actorID, listID); err != nil {
		return models.List{}, err
	}
	if err := s.lists.Update(ctx, listID, title, archived); err != nil {
		return models.List{}, apperr.FromStore(err, "update list")
	}
	l, err := s.lists.GetByID(ctx, listID)
	if err != nil {
		return models.List{}, apperr.FromStore(err, "reload list")
	}
	return l, nil
}

// MoveList sets the list's position within its board. Sibling positions are
// not renumbered; reads break ties by creation time and id.
func (s *Service) MoveList(ctx context.Context, actorID, listID primitive.ObjectID, position int) (models.List, error) {
	if err := checkPosition(&position); err != nil {
		return models.List{}, err
	}
	l, _, err := s.listScope(ctx, actorID, listID)
	if err != nil {
		return models.List{}, err
	}
	if l.Position == position {
		return l, nil
	}
	if err := s.lists.SetPosition(ctx, listID, position); err != nil {
		return models.List{}, apperr.FromStore(err, "move list")
	}
	l.Position = position
	return l, nil
}

// DeleteList removes the list and everything on its cards. Only a team
// owner or admin of the board's team may do this.
func (s *Service) DeleteList(ctx context.Context, actorID, listID primitive.ObjectID) (cascade.Report, error) {
	l, sc, err := s.loadList(ctx, listID)
	if err != nil {
		return nil, err
	}
	if err := sc.deletable(actorID, "lists"); err != nil {
		return nil, err
	}

	var rep cascade.Report
	err = txn.Run(ctx, s.db, s.log, func(ctx context.Context) error {
		var err error
		rep, err = s.deleter.DeleteList(ctx, l.ID)
		return err
	})
	if err != nil {
		return nil, apperr.FromStore(err, "delete list")
	}
	s.log.Info("list deleted",
		zap.String("list_id", l.ID.Hex()),
		zap.String("board_id", l.BoardID.Hex()),
		zap.Int64("cards", rep["cards"]))
	return rep, nil
}
