// Package teams serves the /teams API.
package teams

import (
	"net/http"
	"strconv"

	uierrors "github.com/dalemusser/taskhub/internal/app/features/errors"
	teamsvc "github.com/dalemusser/taskhub/internal/app/services/teams"
	"github.com/dalemusser/taskhub/internal/app/store/audit"
	"github.com/dalemusser/taskhub/internal/app/system/apperr"
	"github.com/dalemusser/taskhub/internal/app/system/timeouts"
	"github.com/dalemusser/taskhub/internal/domain/models"
	"go.uber.org/zap"
)

type Handler struct {
	Svc    *teamsvc.Service
	ErrLog *uierrors.ErrorLogger
	Log    *zap.Logger
}

func NewHandler(svc *teamsvc.Service, logger *zap.Logger) *Handler {
	return &Handler{Svc: svc, ErrLog: uierrors.NewErrorLogger(logger), Log: logger}
}

type teamInput struct {
	Name        string `json:"name" validate:"required,max=100" label:"Team name"`
	Description string `json:"description" validate:"max=1000" label:"Description"`
}

type patchInput struct {
	Name        *string `json:"name" validate:"omitnil,max=100" label:"Team name"`
	Description *string `json:"description" validate:"omitnil,max=1000" label:"Description"`
}

type inviteInput struct {
	Email string `json:"email" validate:"required,max=254" label:"Email"`
}

type roleInput struct {
	Role string `json:"role" validate:"required,role" label:"Role"`
}

// ServeList handles GET /teams.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	userID, err := uierrors.UserID(r)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "list teams")
	defer cancel()

	list, err := h.Svc.List(ctx, userID)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	if list == nil {
		list = []teamsvc.TeamSummary{}
	}
	uierrors.JSON(w, http.StatusOK, list)
}

// HandleCreate handles POST /teams.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID, err := uierrors.UserID(r)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	var in teamInput
	if err := uierrors.Decode(w, r, &in); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "create team")
	defer cancel()

	team, err := h.Svc.Create(ctx, userID, in.Name, in.Description)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	uierrors.JSON(w, http.StatusCreated, team)
}

// ServeDetail handles GET /teams/{teamID}.
func (h *Handler) ServeDetail(w http.ResponseWriter, r *http.Request) {
	userID, err := uierrors.UserID(r)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	teamID, err := uierrors.ObjectIDParam(r, "teamID")
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "team detail")
	defer cancel()

	d, err := h.Svc.Get(ctx, userID, teamID)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	uierrors.JSON(w, http.StatusOK, d)
}

// HandleUpdate handles PATCH /teams/{teamID}. Omitted fields keep their
// current values.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	userID, err := uierrors.UserID(r)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	teamID, err := uierrors.ObjectIDParam(r, "teamID")
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	var in patchInput
	if err := uierrors.Decode(w, r, &in); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "update team")
	defer cancel()

	cur, err := h.Svc.Get(ctx, userID, teamID)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	name, desc := cur.Name, cur.Description
	if in.Name != nil {
		name = *in.Name
	}
	if in.Description != nil {
		desc = *in.Description
	}

	team, err := h.Svc.Update(ctx, userID, teamID, name, desc)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	uierrors.JSON(w, http.StatusOK, team)
}

// HandleDelete handles DELETE /teams/{teamID} and reports what was removed.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, err := uierrors.UserID(r)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	teamID, err := uierrors.ObjectIDParam(r, "teamID")
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "delete team")
	defer cancel()

	rep, err := h.Svc.Delete(ctx, userID, teamID)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	uierrors.JSON(w, http.StatusOK, map[string]any{"deleted": rep})
}

// HandleInvite handles POST /teams/{teamID}/invite.
func (h *Handler) HandleInvite(w http.ResponseWriter, r *http.Request) {
	userID, err := uierrors.UserID(r)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	teamID, err := uierrors.ObjectIDParam(r, "teamID")
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	var in inviteInput
	if err := uierrors.Decode(w, r, &in); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "invite member")
	defer cancel()

	res, err := h.Svc.Invite(ctx, userID, teamID, in.Email)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	uierrors.JSON(w, http.StatusOK, res)
}

// HandleChangeRole handles PATCH /teams/{teamID}/members/{userID}.
func (h *Handler) HandleChangeRole(w http.ResponseWriter, r *http.Request) {
	actorID, err := uierrors.UserID(r)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	teamID, err := uierrors.ObjectIDParam(r, "teamID")
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	memberID, err := uierrors.ObjectIDParam(r, "userID")
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
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "change team role")
	defer cancel()

	if err := h.Svc.ChangeRole(ctx, actorID, teamID, memberID, role); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	uierrors.JSON(w, http.StatusOK, map[string]any{"user_id": memberID.Hex(), "role": role})
}

// HandleRemoveMember handles DELETE /teams/{teamID}/members/{userID}.
func (h *Handler) HandleRemoveMember(w http.ResponseWriter, r *http.Request) {
	actorID, err := uierrors.UserID(r)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	teamID, err := uierrors.ObjectIDParam(r, "teamID")
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	memberID, err := uierrors.ObjectIDParam(r, "userID")
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "remove team member")
	defer cancel()

	if err := h.Svc.RemoveMember(ctx, actorID, teamID, memberID); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	uierrors.NoContent(w)
}

// ServeActivity handles GET /teams/{teamID}/activity?limit=N.
func (h *Handler) ServeActivity(w http.ResponseWriter, r *http.Request) {
	userID, err := uierrors.UserID(r)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	teamID, err := uierrors.ObjectIDParam(r, "teamID")
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	limit, _ := strconv.ParseInt(r.URL.Query().Get("limit"), 10, 64)

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "team activity")
	defer cancel()

	events, err := h.Svc.Activity(ctx, userID, teamID, limit)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	if events == nil {
		events = []audit.Event{}
	}
	uierrors.JSON(w, http.StatusOK, events)
}
