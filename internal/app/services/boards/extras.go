package boards

import (
	"context"
	"errors"
	"path"
	"strings"

	labelstore "github.com/dalemusser/taskhub/internal/app/store/labels"
	"github.com/dalemusser/taskhub/internal/app/system/apperr"
	"github.com/dalemusser/taskhub/internal/app/system/htmlsanitize"
	"github.com/dalemusser/taskhub/internal/domain/models"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// MaxAttachmentSize caps recorded attachment metadata at 25 MiB.
const MaxAttachmentSize int64 = 25 << 20

// AddComment posts a comment on the card. The body is sanitized HTML; a body
// with no visible text is rejected.
func (s *Service) AddComment(ctx context.Context, actorID, cardID primitive.ObjectID, body string) (models.CardComment, error) {
	c, _, err := s.cardScope(ctx, actorID, cardID)
	if err != nil {
		return models.CardComment{}, err
	}
	clean := htmlsanitize.Prepare(body)
	if strings.TrimSpace(htmlsanitize.StripTags(clean)) == "" {
		return models.CardComment{}, apperr.InvalidOperation("comment body is required")
	}
	cm, err := s.comments.Create(ctx, models.CardComment{
		CardID:   c.ID,
		BoardID:  c.BoardID,
		AuthorID: actorID,
		Body:     clean,
	})
	if err != nil {
		return models.CardComment{}, apperr.FromStore(err, "add comment")
	}
	return cm, nil
}

// DeleteComment removes a comment. Authors may delete their own; otherwise
// board management is required.
func (s *Service) DeleteComment(ctx context.Context, actorID, commentID primitive.ObjectID) error {
	cm, err := s.comments.GetByID(ctx, commentID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return apperr.Hidden()
		}
		return apperr.FromStore(err, "load comment")
	}
	sc, err := s.loadFor(ctx, actorID, cm.BoardID)
	if err != nil {
		return err
	}
	if cm.AuthorID != actorID && !sc.canManage(actorID) {
		return apperr.Forbidden("only the author or a board manager can delete this comment")
	}
	if _, err := s.comments.Delete(ctx, commentID); err != nil {
		return apperr.FromStore(err, "delete comment")
	}
	return nil
}

// CreateLabel defines a label on the board.
func (s *Service) CreateLabel(ctx context.Context, actorID, boardID primitive.ObjectID, name, color string) (models.Label, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Label{}, apperr.InvalidOperation("label name is required")
	}
	if !hexColor.MatchString(color) {
		return models.Label{}, apperr.InvalidOperation("color must be a #rrggbb hex value")
	}
	if _, err := s.loadFor(ctx, actorID, boardID); err != nil {
		return models.Label{}, err
	}
	l, err := s.labels.Create(ctx, boardID, name, color)
	if err != nil {
		return models.Label{}, apperr.FromStore(err, "create label")
	}
	return l, nil
}

// ApplyLabel attaches a label of the card's board to the card. Applying a
// label twice is not an error.
func (s *Service) ApplyLabel(ctx context.Context, actorID, cardID, labelID primitive.ObjectID) error {
	c, _, err := s.cardScope(ctx, actorID, cardID)
	if err != nil {
		return err
	}
	l, err := s.labels.GetByID(ctx, labelID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return apperr.NotFound("label not found")
		}
		return apperr.FromStore(err, "load label")
	}
	if l.BoardID != c.BoardID {
		return apperr.InvalidOperation("label belongs to a different board")
	}
	if _, err := s.labels.Apply(ctx, c.ID, l.ID, c.BoardID); err != nil && !errors.Is(err, labelstore.ErrAlreadyApplied) {
		return apperr.FromStore(err, "apply label")
	}
	return nil
}

// UnapplyLabel detaches a label from the card.
func (s *Service) UnapplyLabel(ctx context.Context, actorID, cardID, labelID primitive.ObjectID) error {
	if _, _, err := s.cardScope(ctx, actorID, cardID); err != nil {
		return err
	}
	n, err := s.labels.Unapply(ctx, cardID, labelID)
	if err != nil {
		return apperr.FromStore(err, "remove label")
	}
	if n == 0 {
		return apperr.NotFound("label is not applied to this card")
	}
	return nil
}

// AttachmentInput is the metadata of a file already placed in storage.
type AttachmentInput struct {
	FileName    string
	ContentType string
	Size        int64
	StorageKey  string
}

// AddAttachment records attachment metadata on the card. Without a storage
// key one is generated under cards/<cardID>/.
func (s *Service) AddAttachment(ctx context.Context, actorID, cardID primitive.ObjectID, in AttachmentInput) (models.CardAttachment, error) {
	name := path.Base(strings.TrimSpace(in.FileName))
	if name == "" || name == "." || name == "/" {
		return models.CardAttachment{}, apperr.InvalidOperation("file name is required")
	}
	if in.Size < 0 || in.Size > MaxAttachmentSize {
		return models.CardAttachment{}, apperr.InvalidOperation("attachment size is out of range")
	}
	c, _, err := s.cardScope(ctx, actorID, cardID)
	if err != nil {
		return models.CardAttachment{}, err
	}
	key := strings.TrimSpace(in.StorageKey)
	if key == "" {
		key = "cards/" + c.ID.Hex() + "/" + uuid.NewString()
	}
	ct := strings.TrimSpace(in.ContentType)
	if ct == "" {
		ct = "application/octet-stream"
	}

	a, err := s.attachments.Create(ctx, models.CardAttachment{
		CardID:       c.ID,
		BoardID:      c.BoardID,
		FileName:     name,
		ContentType:  ct,
		Size:         in.Size,
		StorageKey:   key,
		UploadedByID: actorID,
	})
	if err != nil {
		return models.CardAttachment{}, apperr.FromStore(err, "add attachment")
	}
	return a, nil
}

// DeleteAttachment removes attachment metadata. The uploader may delete
// their own; otherwise board management is required. The stored file is
// left to the storage layer's lifecycle rules.
func (s *Service) DeleteAttachment(ctx context.Context, actorID, attachmentID primitive.ObjectID) error {
	a, err := s.attachments.GetByID(ctx, attachmentID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return apperr.Hidden()
		}
		return apperr.FromStore(err, "load attachment")
	}
	sc, err := s.loadFor(ctx, actorID, a.BoardID)
	if err != nil {
		return err
	}
	if a.UploadedByID != actorID && !sc.canManage(actorID) {
		return apperr.Forbidden("only the uploader or a board manager can delete this attachment")
	}
	if _, err := s.attachments.Delete(ctx, attachmentID); err != nil {
		return apperr.FromStore(err, "delete attachment")
	}
	return nil
}
