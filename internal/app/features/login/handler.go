// internal/app/features/login/handler.go
package login

import (
	"math"
	"net/http"
	"strconv"

	uierrors "github.com/dalemusser/taskhub/internal/app/features/errors"
	"github.com/dalemusser/taskhub/internal/app/services/accounts"
	"github.com/dalemusser/taskhub/internal/app/system/auditlog"
	"github.com/dalemusser/taskhub/internal/app/system/auth"
	"github.com/dalemusser/taskhub/internal/app/system/ratelimit"
	"github.com/dalemusser/taskhub/internal/app/system/timeouts"
	"go.uber.org/zap"
)

// Handler serves the password account endpoints under /auth.
type Handler struct {
	Accounts   *accounts.Service
	SessionMgr *auth.SessionManager
	Limiter    *ratelimit.LoginLimiter
	AuditLog   *auditlog.Logger
	ErrLog     *uierrors.ErrorLogger
	Log        *zap.Logger
}

func NewHandler(svc *accounts.Service, sessionMgr *auth.SessionManager, limiter *ratelimit.LoginLimiter, al *auditlog.Logger, logger *zap.Logger) *Handler {
	if limiter == nil {
		limiter = ratelimit.NewLoginLimiter()
	}
	return &Handler{
		Accounts:   svc,
		SessionMgr: sessionMgr,
		Limiter:    limiter,
		AuditLog:   al,
		ErrLog:     uierrors.NewErrorLogger(logger),
		Log:        logger,
	}
}

type registerInput struct {
	Email     string `json:"email" validate:"required,max=254" label:"Email"`
	Password  string `json:"password" validate:"required" label:"Password"`
	FirstName string `json:"firstName" validate:"max=100" label:"First name"`
	LastName  string `json:"lastName" validate:"max=100" label:"Last name"`
}

type loginInput struct {
	Email    string `json:"email" validate:"required" label:"Email"`
	Password string `json:"password" validate:"required" label:"Password"`
}

type forgotInput struct {
	Email string `json:"email" validate:"required" label:"Email"`
}

type resetInput struct {
	Email       string `json:"email" validate:"required" label:"Email"`
	Token       string `json:"token" validate:"required" label:"Token"`
	NewPassword string `json:"newPassword" validate:"required" label:"New password"`
}

// startSession mirrors the bearer token into the session cookie. A cookie
// failure is logged; API clients still have the token in the body.
func (h *Handler) startSession(w http.ResponseWriter, r *http.Request, sess accounts.Session) {
	if h.SessionMgr == nil {
		return
	}
	if err := h.SessionMgr.StartSession(w, r, sess.Token); err != nil {
		h.Log.Warn("save session cookie", zap.String("user_id", sess.User.ID.Hex()), zap.Error(err))
	}
}

// HandleRegister handles POST /auth/register.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var in registerInput
	if err := uierrors.Decode(w, r, &in); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "register")
	defer cancel()

	sess, err := h.Accounts.Register(ctx, in.Email, in.Password, in.FirstName, in.LastName)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	h.startSession(w, r, sess)
	uierrors.JSON(w, http.StatusCreated, sess)
}

// HandleLogin handles POST /auth/login.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var in loginInput
	if err := uierrors.Decode(w, r, &in); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	if h.rateLimited(w, r, in.Email, "login") {
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "login")
	defer cancel()

	sess, err := h.Accounts.Login(ctx, in.Email, in.Password)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	h.Limiter.ResetEmail(in.Email)
	h.startSession(w, r, sess)
	uierrors.JSON(w, http.StatusOK, sess)
}

// HandleLogout handles POST /auth/logout. Bearer tokens are stateless; this
// clears the cookie and records the event.
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if u, ok := auth.CurrentUser(r); ok {
		h.AuditLog.Logout(r.Context(), u.ID)
	}
	if h.SessionMgr != nil {
		if err := h.SessionMgr.EndSession(w, r); err != nil {
			h.Log.Warn("logout: clear session cookie", zap.Error(err))
		}
	}
	uierrors.NoContent(w)
}

// ServeMe handles GET /auth/me.
func (h *Handler) ServeMe(w http.ResponseWriter, r *http.Request) {
	userID, err := uierrors.UserID(r)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "me")
	defer cancel()

	u, err := h.Accounts.Me(ctx, userID)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	uierrors.JSON(w, http.StatusOK, u)
}

// HandleForgotPassword handles POST /auth/forgot-password. The answer is the
// same whether or not the account exists.
func (h *Handler) HandleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var in forgotInput
	if err := uierrors.Decode(w, r, &in); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	if h.rateLimited(w, r, in.Email, "forgot password") {
		return
	}
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "forgot password")
	defer cancel()

	if err := h.Accounts.ForgotPassword(ctx, in.Email); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	uierrors.JSON(w, http.StatusOK, map[string]string{
		"message": "If an account exists for that email, a reset link has been sent.",
	})
}

// HandleResetPassword handles POST /auth/reset-password.
func (h *Handler) HandleResetPassword(w http.ResponseWriter, r *http.Request) {
	var in resetInput
	if err := uierrors.Decode(w, r, &in); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "reset password")
	defer cancel()

	if err := h.Accounts.ResetPassword(ctx, in.Email, in.Token, in.NewPassword); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	uierrors.JSON(w, http.StatusOK, map[string]string{"message": "Password updated."})
}

// rateLimited answers 429 with Retry-After when the caller is over the
// credential limits.
func (h *Handler) rateLimited(w http.ResponseWriter, r *http.Request, email, op string) bool {
	d := h.Limiter.Check(r, email)
	if d.Allowed {
		return false
	}
	h.Log.Warn("rate limited", zap.String("op", op), zap.String("ip", ratelimit.ClientIP(r)))
	if secs := int(math.Ceil(d.RetryAfter.Seconds())); secs > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(secs))
	}
	uierrors.JSON(w, http.StatusTooManyRequests, map[string]string{
		"error":   "rate_limited",
		"message": d.Reason,
	})
	return true
}
