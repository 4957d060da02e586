package invitations

import (
	"net/http"

	uierrors "github.com/dalemusser/taskhub/internal/app/features/errors"
	invsvc "github.com/dalemusser/taskhub/internal/app/services/invitations"
	"github.com/dalemusser/taskhub/internal/app/system/auth"
	"github.com/dalemusser/taskhub/internal/app/system/timeouts"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Handler serves invitation lookup and acceptance.
type Handler struct {
	Svc        *invsvc.Service
	SessionMgr *auth.SessionManager
	ErrLog     *uierrors.ErrorLogger
	Log        *zap.Logger
}

func NewHandler(svc *invsvc.Service, sessionMgr *auth.SessionManager, logger *zap.Logger) *Handler {
	return &Handler{
		Svc:        svc,
		SessionMgr: sessionMgr,
		ErrLog:     uierrors.NewErrorLogger(logger),
		Log:        logger,
	}
}

type acceptInput struct {
	Password  string `json:"password" validate:"required" label:"Password"`
	FirstName string `json:"firstName" validate:"max=100" label:"First name"`
	LastName  string `json:"lastName" validate:"max=100" label:"Last name"`
}

// ServeLookup handles GET /invitations/{token}. Unknown, expired and used
// tokens all answer {"valid":false}.
func (h *Handler) ServeLookup(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "get invitation")
	defer cancel()

	info, err := h.Svc.GetInvitation(ctx, chi.URLParam(r, "token"))
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	uierrors.JSON(w, http.StatusOK, info)
}

// HandleAccept handles POST /invitations/{token}/accept: register the
// invited email and join the team.
func (h *Handler) HandleAccept(w http.ResponseWriter, r *http.Request) {
	var in acceptInput
	if err := uierrors.Decode(w, r, &in); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "accept invitation")
	defer cancel()

	acc, err := h.Svc.Accept(ctx, chi.URLParam(r, "token"), in.Password, in.FirstName, in.LastName)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	if h.SessionMgr != nil {
		if err := h.SessionMgr.StartSession(w, r, acc.Token); err != nil {
			h.Log.Warn("save session cookie", zap.String("user_id", acc.User.ID.Hex()), zap.Error(err))
		}
	}
	uierrors.JSON(w, http.StatusCreated, acc)
}

// HandleJoin handles POST /invitations/{token}/join for a signed-in user
// whose email matches the invitation.
func (h *Handler) HandleJoin(w http.ResponseWriter, r *http.Request) {
	userID, err := uierrors.UserID(r)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "join team")
	defer cancel()

	teamID, err := h.Svc.AcceptForExistingUser(ctx, userID, chi.URLParam(r, "token"))
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	uierrors.JSON(w, http.StatusOK, map[string]string{"team_id": teamID.Hex()})
}
