package boards

import (
	"net/http"
	"time"

	uierrors "github.com/dalemusser/taskhub/internal/app/features/errors"
	boardsvc "github.com/dalemusser/taskhub/internal/app/services/boards"
	cardstore "github.com/dalemusser/taskhub/internal/app/store/cards"
	"github.com/dalemusser/taskhub/internal/app/system/apperr"
	"github.com/dalemusser/taskhub/internal/app/system/timeouts"
	"github.com/dalemusser/taskhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type createCardInput struct {
	Title        string     `json:"title" validate:"required,max=200" label:"Title"`
	Description  string     `json:"description" validate:"max=5000" label:"Description"`
	Priority     string     `json:"priority" validate:"omitempty,priority" label:"Priority"`
	DueDate      *time.Time `json:"dueDate"`
	AssignedToID *string    `json:"assignedToId" validate:"omitnil,objectid" label:"Assignee"`
	Position     *int       `json:"position" validate:"omitnil,gte=0" label:"Position"`
}

// patchCardInput clears the due date or assignee only through the explicit
// flags; a null field means unchanged.
type patchCardInput struct {
	Title         *string    `json:"title" validate:"omitnil,max=200" label:"Title"`
	Description   *string    `json:"description" validate:"omitnil,max=5000" label:"Description"`
	Priority      *string    `json:"priority" validate:"omitnil,priority" label:"Priority"`
	DueDate       *time.Time `json:"dueDate"`
	ClearDueDate  bool       `json:"clearDueDate"`
	AssignedToID  *string    `json:"assignedToId" validate:"omitnil,objectid" label:"Assignee"`
	ClearAssignee bool       `json:"clearAssignee"`
	Archived      *bool      `json:"archived"`
}

type moveCardInput struct {
	ListID   string `json:"listId" validate:"required,objectid" label:"List"`
	Position *int   `json:"position" validate:"required,gte=0" label:"Position"`
}

func parsePriority(s string) (models.Priority, error) {
	if s == "" {
		return models.PriorityMedium, nil
	}
	p, err := models.ParsePriority(s)
	if err != nil {
		return p, apperr.InvalidOperation(err.Error())
	}
	return p, nil
}

// HandleCreateCard handles POST /lists/{listID}/cards.
func (h *Handler) HandleCreateCard(w http.ResponseWriter, r *http.Request) {
	actorID, listID, ok := h.target(w, r, "listID")
	if !ok {
		return
	}
	var in createCardInput
	if err := uierrors.Decode(w, r, &in); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	prio, err := parsePriority(in.Priority)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	assignee, err := parseOptionalID(in.AssignedToID)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "create card")
	defer cancel()

	c, err := h.Svc.CreateCard(ctx, actorID, listID, boardsvc.CardInput{
		Title:        in.Title,
		Description:  in.Description,
		Priority:     prio,
		DueDate:      in.DueDate,
		AssignedToID: assignee,
		Position:     in.Position,
	})
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	uierrors.JSON(w, http.StatusCreated, c)
}

// ServeCard handles GET /cards/{cardID}.
func (h *Handler) ServeCard(w http.ResponseWriter, r *http.Request) {
	actorID, cardID, ok := h.target(w, r, "cardID")
	if !ok {
		return
	}
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "card detail")
	defer cancel()

	d, err := h.Svc.GetCard(ctx, actorID, cardID)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	uierrors.JSON(w, http.StatusOK, d)
}

// HandleUpdateCard handles PATCH /cards/{cardID}.
func (h *Handler) HandleUpdateCard(w http.ResponseWriter, r *http.Request) {
	actorID, cardID, ok := h.target(w, r, "cardID")
	if !ok {
		return
	}
	var in patchCardInput
	if err := uierrors.Decode(w, r, &in); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	u := cardstore.Update{
		Title:         in.Title,
		Description:   in.Description,
		DueDate:       in.DueDate,
		ClearDueDate:  in.ClearDueDate,
		ClearAssignee: in.ClearAssignee,
		Archived:      in.Archived,
	}
	if in.Priority != nil {
		p, err := parsePriority(*in.Priority)
		if err != nil {
			h.ErrLog.Write(w, r, err)
			return
		}
		u.Priority = &p
	}
	assignee, err := parseOptionalID(in.AssignedToID)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	u.AssignedToID = assignee

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "update card")
	defer cancel()

	c, err := h.Svc.UpdateCard(ctx, actorID, cardID, u)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	uierrors.JSON(w, http.StatusOK, c)
}

// HandleMoveCard handles POST /cards/{cardID}/move.
func (h *Handler) HandleMoveCard(w http.ResponseWriter, r *http.Request) {
	actorID, cardID, ok := h.target(w, r, "cardID")
	if !ok {
		return
	}
	var in moveCardInput
	if err := uierrors.Decode(w, r, &in); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	listID, err := primitive.ObjectIDFromHex(in.ListID)
	if err != nil {
		h.ErrLog.Write(w, r, apperr.InvalidOperation("invalid list id"))
		return
	}
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "move card")
	defer cancel()

	c, err := h.Svc.MoveCard(ctx, actorID, cardID, listID, *in.Position)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	uierrors.JSON(w, http.StatusOK, c)
}

// HandleDeleteCard handles DELETE /cards/{cardID}.
func (h *Handler) HandleDeleteCard(w http.ResponseWriter, r *http.Request) {
	actorID, cardID, ok := h.target(w, r, "cardID")
	if !ok {
		return
	}
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "delete card")
	defer cancel()

	rep, err := h.Svc.DeleteCard(ctx, actorID, cardID)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	uierrors.JSON(w, http.StatusOK, map[string]any{"deleted": rep})
}
