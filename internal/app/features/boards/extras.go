package boards

import (
	"net/http"

	uierrors "github.com/dalemusser/taskhub/internal/app/features/errors"
	boardsvc "github.com/dalemusser/taskhub/internal/app/services/boards"
	"github.com/dalemusser/taskhub/internal/app/system/timeouts"
)

type commentInput struct {
	Body string `json:"body" validate:"required,max=5000" label:"Comment"`
}

type labelInput struct {
	Name  string `json:"name" validate:"required,max=50" label:"Name"`
	Color string `json:"color" validate:"required,hexcolor" label:"Color"`
}

type attachmentInput struct {
	FileName    string `json:"fileName" validate:"required,max=255" label:"File name"`
	ContentType string `json:"contentType" validate:"max=255" label:"Content type"`
	Size        int64  `json:"size" validate:"gte=0" label:"Size"`
	StorageKey  string `json:"storageKey" validate:"max=1024" label:"Storage key"`
}

// HandleAddComment handles POST /cards/{cardID}/comments.
func (h *Handler) HandleAddComment(w http.ResponseWriter, r *http.Request) {
	actorID, cardID, ok := h.target(w, r, "cardID")
	if !ok {
		return
	}
	var in commentInput
	if err := uierrors.Decode(w, r, &in); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "add comment")
	defer cancel()

	c, err := h.Svc.AddComment(ctx, actorID, cardID, in.Body)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	uierrors.JSON(w, http.StatusCreated, c)
}

// HandleDeleteComment handles DELETE /comments/{commentID}.
func (h *Handler) HandleDeleteComment(w http.ResponseWriter, r *http.Request) {
	actorID, commentID, ok := h.target(w, r, "commentID")
	if !ok {
		return
	}
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "delete comment")
	defer cancel()

	if err := h.Svc.DeleteComment(ctx, actorID, commentID); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	uierrors.NoContent(w)
}

// HandleCreateLabel handles POST /boards/{boardID}/labels.
func (h *Handler) HandleCreateLabel(w http.ResponseWriter, r *http.Request) {
	actorID, boardID, ok := h.target(w, r, "boardID")
	if !ok {
		return
	}
	var in labelInput
	if err := uierrors.Decode(w, r, &in); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "create label")
	defer cancel()

	l, err := h.Svc.CreateLabel(ctx, actorID, boardID, in.Name, in.Color)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	uierrors.JSON(w, http.StatusCreated, l)
}

// HandleApplyLabel handles POST /cards/{cardID}/labels/{labelID}.
func (h *Handler) HandleApplyLabel(w http.ResponseWriter, r *http.Request) {
	h.toggleLabel(w, r, true)
}

// HandleRemoveLabel handles DELETE /cards/{cardID}/labels/{labelID}.
func (h *Handler) HandleRemoveLabel(w http.ResponseWriter, r *http.Request) {
	h.toggleLabel(w, r, false)
}

func (h *Handler) toggleLabel(w http.ResponseWriter, r *http.Request, apply bool) {
	actorID, cardID, ok := h.target(w, r, "cardID")
	if !ok {
		return
	}
	labelID, err := uierrors.ObjectIDParam(r, "labelID")
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "card label")
	defer cancel()

	if apply {
		err = h.Svc.ApplyLabel(ctx, actorID, cardID, labelID)
	} else {
		err = h.Svc.UnapplyLabel(ctx, actorID, cardID, labelID)
	}
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	uierrors.NoContent(w)
}

// HandleAddAttachment handles POST /cards/{cardID}/attachments. The body
// carries metadata only; the file itself goes to storage separately.
func (h *Handler) HandleAddAttachment(w http.ResponseWriter, r *http.Request) {
	actorID, cardID, ok := h.target(w, r, "cardID")
	if !ok {
		return
	}
	var in attachmentInput
	if err := uierrors.Decode(w, r, &in); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "add attachment")
	defer cancel()

	a, err := h.Svc.AddAttachment(ctx, actorID, cardID, boardsvc.AttachmentInput{
		FileName:    in.FileName,
		ContentType: in.ContentType,
		Size:        in.Size,
		StorageKey:  in.StorageKey,
	})
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	uierrors.JSON(w, http.StatusCreated, a)
}

// HandleDeleteAttachment handles DELETE /attachments/{attachmentID}.
func (h *Handler) HandleDeleteAttachment(w http.ResponseWriter, r *http.Request) {
	actorID, attachmentID, ok := h.target(w, r, "attachmentID")
	if !ok {
		return
	}
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "delete attachment")
	defer cancel()

	if err := h.Svc.DeleteAttachment(ctx, actorID, attachmentID); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	uierrors.NoContent(w)
}
