package boards

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dalemusser/taskhub/internal/app/services/cascade"
	cardstore "github.com/dalemusser/taskhub/internal/app/store/cards"
	"github.com/dalemusser/taskhub/internal/app/system/apperr"
	"github.com/dalemusser/taskhub/internal/app/system/htmlsanitize"
	"github.com/dalemusser/taskhub/internal/app/system/txn"
	"github.com/dalemusser/taskhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// CardInput describes a new card.
type CardInput struct {
	Title        string
	Description  string
	Priority     models.Priority
	DueDate      *time.Time
	AssignedToID *primitive.ObjectID
	Position     *int
}

// CardDetail is a card with its comments, attachments and applied labels.
type CardDetail struct {
	models.Card
	LabelIDs    []primitive.ObjectID    `json:"label_ids"`
	Comments    []models.CardComment    `json:"comments"`
	Attachments []models.CardAttachment `json:"attachments"`
}

func validPriority(p models.Priority) bool {
	return p >= models.PriorityLow && p <= models.PriorityCritical
}

// cardScope loads a card and its board, requiring board access.
func (s *Service) cardScope(ctx context.Context, userID, cardID primitive.ObjectID) (models.Card, scope, error) {
	c, sc, err := s.loadCard(ctx, cardID)
	if err != nil {
		return models.Card{}, scope{}, err
	}
	if !sc.canAccess(userID) {
		return models.Card{}, scope{}, apperr.Hidden()
	}
	return c, sc, nil
}

func (s *Service) loadCard(ctx context.Context, cardID primitive.ObjectID) (models.Card, scope, error) {
	c, err := s.cards.GetByID(ctx, cardID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Card{}, scope{}, apperr.Hidden()
		}
		return models.Card{}, scope{}, apperr.FromStore(err, "load card")
	}
	sc, err := s.load(ctx, c.BoardID)
	if err != nil {
		return models.Card{}, scope{}, err
	}
	return c, sc, nil
}

func (s *Service) checkAssignee(sc scope, assignee *primitive.ObjectID) error {
	if assignee != nil && !sc.canAccess(*assignee) {
		return apperr.InvalidOperation("assignee must have access to the board")
	}
	return nil
}

// CreateCard adds a card to listID. A nil position appends.
func (s *Service) CreateCard(ctx context.Context, actorID, listID primitive.ObjectID, in CardInput) (models.Card, error) {
	if strings.TrimSpace(in.Title) == "" {
		return models.Card{}, apperr.InvalidOperation("card title is required")
	}
	if !validPriority(in.Priority) {
		return models.Card{}, apperr.InvalidOperation("unknown priority")
	}
	if err := checkPosition(in.Position); err != nil {
		return models.Card{}, err
	}
	l, sc, err := s.listScope(ctx, actorID, listID)
	if err != nil {
		return models.Card{}, err
	}
	if err := s.checkAssignee(sc, in.AssignedToID); err != nil {
		return models.Card{}, err
	}

	c, err := s.cards.Create(ctx, models.Card{
		ListID:       l.ID,
		BoardID:      l.BoardID,
		Title:        in.Title,
		Description:  htmlsanitize.Prepare(in.Description),
		Priority:     in.Priority,
		DueDate:      in.DueDate,
		CreatedByID:  actorID,
		AssignedToID: in.AssignedToID,
	}, in.Position)
	if err != nil {
		return models.Card{}, apperr.FromStore(err, "create card")
	}
	return c, nil
}

// GetCard returns the card with its comments, attachments and labels.
func (s *Service) GetCard(ctx context.Context, actorID, cardID primitive.ObjectID) (CardDetail, error) {
	c, _, err := s.cardScope(ctx, actorID, cardID)
	if err != nil {
		return CardDetail{}, err
	}
	comments, err := s.comments.ListByCard(ctx, cardID)
	if err != nil {
		return CardDetail{}, apperr.FromStore(err, "load comments")
	}
	attachments, err := s.attachments.ListByCard(ctx, cardID)
	if err != nil {
		return CardDetail{}, apperr.FromStore(err, "load attachments")
	}
	applied, err := s.labels.LabelIDsByCards(ctx, []primitive.ObjectID{cardID})
	if err != nil {
		return CardDetail{}, apperr.FromStore(err, "load card labels")
	}

	d := CardDetail{
		Card:        c,
		LabelIDs:    applied[cardID],
		Comments:    comments,
		Attachments: attachments,
	}
	if d.LabelIDs == nil {
		d.LabelIDs = []primitive.ObjectID{}
	}
	if d.Comments == nil {
		d.Comments = []models.CardComment{}
	}
	if d.Attachments == nil {
		d.Attachments = []models.CardAttachment{}
	}
	return d, nil
}

// UpdateCard applies the non-nil fields of u.
func (s *Service) UpdateCard(ctx context.Context, actorID, cardID primitive.ObjectID, u cardstore.Update) (models.Card, error) {
	if u.Title != nil && strings.TrimSpace(*u.Title) == "" {
		return models.Card{}, apperr.InvalidOperation("card title is required")
	}
	if u.Priority != nil && !validPriority(*u.Priority) {
		return models.Card{}, apperr.InvalidOperation("unknown priority")
	}
	_, sc, err := s.cardScope(ctx, actorID, cardID)
	if err != nil {
		return models.Card{}, err
	}
	if !u.ClearAssignee {
		if err := s.checkAssignee(sc, u.AssignedToID); err != nil {
			return models.Card{}, err
		}
	}
	if u.Description != nil {
		d := htmlsanitize.Prepare(*u.Description)
		u.Description = &d
	}

	if err := s.cards.Update(ctx, cardID, u); err != nil {
		return models.Card{}, apperr.FromStore(err, "update card")
	}
	c, err := s.cards.GetByID(ctx, cardID)
	if err != nil {
		return models.Card{}, apperr.FromStore(err, "reload card")
	}
	return c, nil
}

// MoveCard puts the card at position in targetListID, which may be on
// another board. Access to both boards is checked before anything is
// written. Moving to the card's current list and position writes nothing.
//
// A cross-board move carries the card's comments and attachments along and
// drops labels that belong to the old board.
func (s *Service) MoveCard(ctx context.Context, actorID, cardID, targetListID primitive.ObjectID, position int) (models.Card, error) {
	if err := checkPosition(&position); err != nil {
		return models.Card{}, err
	}
	c, _, err := s.cardScope(ctx, actorID, cardID)
	if err != nil {
		return models.Card{}, err
	}
	target, _, err := s.listScope(ctx, actorID, targetListID)
	if err != nil {
		return models.Card{}, err
	}
	if c.ListID == target.ID && c.Position == position {
		return c, nil
	}

	if target.BoardID == c.BoardID {
		if err := s.cards.Move(ctx, cardID, target.ID, target.BoardID, position); err != nil {
			return models.Card{}, apperr.FromStore(err, "move card")
		}
	} else {
		err = txn.Run(ctx, s.db, s.log, func(ctx context.Context) error {
			if err := s.cards.Move(ctx, cardID, target.ID, target.BoardID, position); err != nil {
				return err
			}
			if err := s.comments.MoveToBoard(ctx, cardID, target.BoardID); err != nil {
				return err
			}
			if err := s.attachments.MoveToBoard(ctx, cardID, target.BoardID); err != nil {
				return err
			}
			_, err := s.labels.UnapplyAllForCardOnBoard(ctx, cardID, c.BoardID)
			return err
		})
		if err != nil {
			return models.Card{}, apperr.FromStore(err, "move card")
		}
		s.log.Info("card moved across boards",
			zap.String("card_id", cardID.Hex()),
			zap.String("from_board", c.BoardID.Hex()),
			zap.String("to_board", target.BoardID.Hex()))
	}

	c.ListID = target.ID
	c.BoardID = target.BoardID
	c.Position = position
	return c, nil
}

// DeleteCard removes the card with its comments, labels and attachments.
// Only a team owner or admin of the board's team may do this.
func (s *Service) DeleteCard(ctx context.Context, actorID, cardID primitive.ObjectID) (cascade.Report, error) {
	_, sc, err := s.loadCard(ctx, cardID)
	if err != nil {
		return nil, err
	}
	if err := sc.deletable(actorID, "cards"); err != nil {
		return nil, err
	}

	var rep cascade.Report
	err = txn.Run(ctx, s.db, s.log, func(ctx context.Context) error {
		var err error
		rep, err = s.deleter.DeleteCard(ctx, cardID)
		return err
	})
	if err != nil {
		return nil, apperr.FromStore(err, "delete card")
	}
	return rep, nil
}
