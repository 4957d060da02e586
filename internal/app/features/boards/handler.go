// Package boards serves the board API: boards, lists, cards, comments,
// labels and attachments.
package boards

import (
	"net/http"

	uierrors "github.com/dalemusser/taskhub/internal/app/features/errors"
	boardsvc "github.com/dalemusser/taskhub/internal/app/services/boards"
	boardstore "github.com/dalemusser/taskhub/internal/app/store/boards"
	"github.com/dalemusser/taskhub/internal/app/system/apperr"
	"github.com/dalemusser/taskhub/internal/app/system/timeouts"
	"github.com/dalemusser/taskhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type Handler struct {
	Svc    *boardsvc.Service
	ErrLog *uierrors.ErrorLogger
	Log    *zap.Logger
}

func NewHandler(svc *boardsvc.Service, logger *zap.Logger) *Handler {
	return &Handler{Svc: svc, ErrLog: uierrors.NewErrorLogger(logger), Log: logger}
}

// target resolves the signed-in user and the named URL id. On failure the
// error response is already written.
func (h *Handler) target(w http.ResponseWriter, r *http.Request, param string) (actor, id primitive.ObjectID, ok bool) {
	actor, err := uierrors.UserID(r)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return actor, id, false
	}
	id, err = uierrors.ObjectIDParam(r, param)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return actor, id, false
	}
	return actor, id, true
}

func parseOptionalID(s *string) (*primitive.ObjectID, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	id, err := primitive.ObjectIDFromHex(*s)
	if err != nil {
		return nil, apperr.InvalidOperation("invalid id " + *s)
	}
	return &id, nil
}

type createBoardInput struct {
	Title             string  `json:"title" validate:"required,max=200" label:"Title"`
	Description       string  `json:"description" validate:"max=2000" label:"Description"`
	Color             string  `json:"color" validate:"omitempty,hexcolor" label:"Color"`
	TeamID            *string `json:"teamId" validate:"omitnil,objectid" label:"Team"`
	AddAllTeamMembers bool    `json:"addAllTeamMembers"`
}

type patchBoardInput struct {
	Title       *string `json:"title" validate:"omitnil,max=200" label:"Title"`
	Description *string `json:"description" validate:"omitnil,max=2000" label:"Description"`
	Color       *string `json:"color" validate:"omitnil,hexcolor" label:"Color"`
	Archived    *bool   `json:"archived"`
}

type addMemberInput struct {
	UserID string `json:"userId" validate:"required,objectid" label:"User"`
	Role   string `json:"role" validate:"omitempty,role" label:"Role"`
}

type roleInput struct {
	Role string `json:"role" validate:"required,role" label:"Role"`
}

// ServeList handles GET /boards.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	userID, err := uierrors.UserID(r)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "list boards")
	defer cancel()

	list, err := h.Svc.List(ctx, userID)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	if list == nil {
		list = []boardsvc.BoardSummary{}
	}
	uierrors.JSON(w, http.StatusOK, list)
}

// HandleCreate handles POST /boards.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID, err := uierrors.UserID(r)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	var in createBoardInput
	if err := uierrors.Decode(w, r, &in); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	teamID, err := parseOptionalID(in.TeamID)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "create board")
	defer cancel()

	b, err := h.Svc.Create(ctx, userID, boardsvc.CreateInput{
		Title:             in.Title,
		Description:       in.Description,
		Color:             in.Color,
		TeamID:            teamID,
		AddAllTeamMembers: in.AddAllTeamMembers,
	})
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	uierrors.JSON(w, http.StatusCreated, b)
}

// ServeDetail handles GET /boards/{boardID}.
func (h *Handler) ServeDetail(w http.ResponseWriter, r *http.Request) {
	userID, boardID, ok := h.target(w, r, "boardID")
	if !ok {
		return
	}
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "board detail")
	defer cancel()

	d, err := h.Svc.Get(ctx, userID, boardID)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	uierrors.JSON(w, http.StatusOK, d)
}

// HandleUpdate handles PATCH /boards/{boardID}.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	userID, boardID, ok := h.target(w, r, "boardID")
	if !ok {
		return
	}
	var in patchBoardInput
	if err := uierrors.Decode(w, r, &in); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "update board")
	defer cancel()

	b, err := h.Svc.Update(ctx, userID, boardID, boardstore.Update{
		Title:       in.Title,
		Description: in.Description,
		Color:       in.Color,
		Archived:    in.Archived,
	})
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	uierrors.JSON(w, http.StatusOK, b)
}

// HandleDelete handles DELETE /boards/{boardID}.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, boardID, ok := h.target(w, r, "boardID")
	if !ok {
		return
	}
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "delete board")
	defer cancel()

	rep, err := h.Svc.Delete(ctx, userID, boardID)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	uierrors.JSON(w, http.StatusOK, map[string]any{"deleted": rep})
}

// HandleAddMember handles POST /boards/{boardID}/members. Role defaults to
// member.
func (h *Handler) HandleAddMember(w http.ResponseWriter, r *http.Request) {
	actorID, boardID, ok := h.target(w, r, "boardID")
	if !ok {
		return
	}
	var in addMemberInput
	if err := uierrors.Decode(w, r, &in); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	userID, err := primitive.ObjectIDFromHex(in.UserID)
	if err != nil {
		h.ErrLog.Write(w, r, apperr.InvalidOperation("invalid user id"))
		return
	}
	role := models.RoleMember
	if in.Role != "" {
		if role, err = models.ParseRole(in.Role); err != nil {
			h.ErrLog.Write(w, r, apperr.InvalidOperation(err.Error()))
			return
		}
	}
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "add board member")
	defer cancel()

	m, err := h.Svc.AddMember(ctx, actorID, boardID, userID, role)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	uierrors.JSON(w, http.StatusCreated, m)
}

// HandleChangeMemberRole handles PATCH /boards/{boardID}/members/{userID}.
func (h *Handler) HandleChangeMemberRole(w http.ResponseWriter, r *http.Request) {
	actorID, boardID, ok := h.target(w, r, "boardID")
	if !ok {
		return
	}
	userID, err := uierrors.ObjectIDParam(r, "userID")
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	var in roleInput
	if err := uierrors.Decode(w, r, &in); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	role, err := models.ParseRole(in.Role)
	if err != nil {
		h.ErrLog.Write(w, r, apperr.InvalidOperation(err.Error()))
		return
	}
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "change board role")
	defer cancel()

	if err := h.Svc.ChangeMemberRole(ctx, actorID, boardID, userID, role); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	uierrors.JSON(w, http.StatusOK, map[string]any{"user_id": userID.Hex(), "role": role})
}

// HandleRemoveMember handles DELETE /boards/{boardID}/members/{userID}.
func (h *Handler) HandleRemoveMember(w http.ResponseWriter, r *http.Request) {
	actorID, boardID, ok := h.target(w, r, "boardID")
	if !ok {
		return
	}
	userID, err := uierrors.ObjectIDParam(r, "userID")
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "remove board member")
	defer cancel()

	if err := h.Svc.RemoveMember(ctx, actorID, boardID, userID); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	uierrors.NoContent(w)
}
