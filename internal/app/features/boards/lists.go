package boards

import (
	"net/http"

	uierrors "github.com/dalemusser/taskhub/internal/app/features/errors"
	"github.com/dalemusser/taskhub/internal/app/system/timeouts"
)

type createListInput struct {
	Title    string `json:"title" validate:"required,max=200" label:"Title"`
	Position *int   `json:"position" validate:"omitnil,gte=0" label:"Position"`
}

type patchListInput struct {
	Title    *string `json:"title" validate:"omitnil,max=200" label:"Title"`
	Archived *bool   `json:"archived"`
}

type moveListInput struct {
	Position *int `json:"position" validate:"required,gte=0" label:"Position"`
}

// HandleCreateList handles POST /boards/{boardID}/lists.
func (h *Handler) HandleCreateList(w http.ResponseWriter, r *http.Request) {
	actorID, boardID, ok := h.target(w, r, "boardID")
	if !ok {
		return
	}
	var in createListInput
	if err := uierrors.Decode(w, r, &in); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "create list")
	defer cancel()

	l, err := h.Svc.CreateList(ctx, actorID, boardID, in.Title, in.Position)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	uierrors.JSON(w, http.StatusCreated, l)
}

// HandleUpdateList handles PATCH /lists/{listID}.
func (h *Handler) HandleUpdateList(w http.ResponseWriter, r *http.Request) {
	actorID, listID, ok := h.target(w, r, "listID")
	if !ok {
		return
	}
	var in patchListInput
	if err := uierrors.Decode(w, r, &in); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "update list")
	defer cancel()

	l, err := h.Svc.UpdateList(ctx, actorID, listID, in.Title, in.Archived)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	uierrors.JSON(w, http.StatusOK, l)
}

// HandleMoveList handles POST /lists/{listID}/move.
func (h *Handler) HandleMoveList(w http.ResponseWriter, r *http.Request) {
	actorID, listID, ok := h.target(w, r, "listID")
	if !ok {
		return
	}
	var in moveListInput
	if err := uierrors.Decode(w, r, &in); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "move list")
	defer cancel()

	l, err := h.Svc.MoveList(ctx, actorID, listID, *in.Position)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	uierrors.JSON(w, http.StatusOK, l)
}

// HandleDeleteList handles DELETE /lists/{listID}.
func (h *Handler) HandleDeleteList(w http.ResponseWriter, r *http.Request) {
	actorID, listID, ok := h.target(w, r, "listID")
	if !ok {
		return
	}
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "delete list")
	defer cancel()

	rep, err := h.Svc.DeleteList(ctx, actorID, listID)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	uierrors.JSON(w, http.StatusOK, map[string]any{"deleted": rep})
}
