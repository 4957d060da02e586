// internal/app/features/authgoogle/handler.go
package authgoogle

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	uierrors "github.com/dalemusser/taskhub/internal/app/features/errors"
	"github.com/dalemusser/taskhub/internal/app/services/accounts"
	"github.com/dalemusser/taskhub/internal/app/services/invitations"
	"github.com/dalemusser/taskhub/internal/app/store/oauthstate"
	"github.com/dalemusser/taskhub/internal/app/system/apperr"
	"github.com/dalemusser/taskhub/internal/app/system/auth"
	"github.com/dalemusser/taskhub/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/dalemusser/waffle/pantry/urlutil"
	"github.com/gorilla/securecookie"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	stateTTL           = 10 * time.Minute
	defaultUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"
)

// Handler handles Google OAuth authentication. Google only supplies a
// verified identity; accounts decides which user it signs in.
type Handler struct {
	Accounts    *accounts.Service
	Invitations *invitations.Service
	SessionMgr  *auth.SessionManager
	StateStore  *oauthstate.Store
	ErrLog      *uierrors.ErrorLogger
	Log         *zap.Logger

	ClientID     string
	ClientSecret string
	RedirectURL  string // e.g., "https://taskhub.example.com/auth/google/callback"

	// Endpoint and UserInfoURL default to Google's.
	Endpoint    oauth2.Endpoint
	UserInfoURL string
}

// NewHandler creates a new Google OAuth handler.
func NewHandler(
	acct *accounts.Service,
	inv *invitations.Service,
	sessionMgr *auth.SessionManager,
	stateStore *oauthstate.Store,
	clientID, clientSecret, baseURL string,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		Accounts:     acct,
		Invitations:  inv,
		SessionMgr:   sessionMgr,
		StateStore:   stateStore,
		ErrLog:       uierrors.NewErrorLogger(logger),
		Log:          logger,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  baseURL + "/auth/google/callback",
		Endpoint:     google.Endpoint,
		UserInfoURL:  defaultUserInfoURL,
	}
}

func (h *Handler) oauth2Config() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     h.ClientID,
		ClientSecret: h.ClientSecret,
		RedirectURL:  h.RedirectURL,
		Scopes: []string{
			"openid",
			"https://www.googleapis.com/auth/userinfo.email",
			"https://www.googleapis.com/auth/userinfo.profile",
		},
		Endpoint: h.Endpoint,
	}
}

// IsConfigured returns true if Google OAuth is configured.
func (h *Handler) IsConfigured() bool {
	return h.ClientID != "" && h.ClientSecret != ""
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /auth/google                                                             |
| Redirects to Google's consent screen. ?invite=<token> joins the invited      |
| team after sign-in; ?return=<path> sets the landing page.                    |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) ServeLogin(w http.ResponseWriter, r *http.Request) {
	if !h.IsConfigured() {
		h.ErrLog.Write(w, r, apperr.NotFound("google sign-in is not configured"))
		return
	}

	state := securecookie.GenerateRandomKey(32)
	if state == nil {
		h.ErrLog.Write(w, r, apperr.Internal("generate oauth state", fmt.Errorf("random source failed")))
		return
	}
	st := oauthstate.State{
		State:       fmt.Sprintf("%x", state),
		ReturnURL:   query.Get(r, "return"),
		InviteToken: query.Get(r, "invite"),
		ExpiresAt:   time.Now().UTC().Add(stateTTL),
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()
	if err := h.StateStore.Save(ctx, st); err != nil {
		h.ErrLog.Write(w, r, apperr.FromStore(err, "save oauth state"))
		return
	}

	url := h.oauth2Config().AuthCodeURL(st.State)
	h.Log.Debug("initiating Google OAuth flow",
		zap.String("return_url", st.ReturnURL),
		zap.Bool("invite", st.InviteToken != ""))
	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /auth/google/callback                                                    |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) ServeCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.Log.Warn("Google OAuth error",
			zap.String("error", errParam),
			zap.String("description", r.URL.Query().Get("error_description")))
		h.redirectToLogin(w, r, "google_denied")
		return
	}

	state := r.URL.Query().Get("state")
	if state == "" {
		h.redirectToLogin(w, r, "invalid_state")
		return
	}
	sctx, cancel := context.WithTimeout(ctx, timeouts.Short())
	defer cancel()
	st, ok, err := h.StateStore.Consume(sctx, state)
	if err != nil {
		h.Log.Error("failed to validate OAuth state", zap.Error(err))
		h.redirectToLogin(w, r, "internal")
		return
	}
	if !ok {
		h.Log.Warn("invalid or expired OAuth state")
		h.redirectToLogin(w, r, "invalid_state")
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		h.redirectToLogin(w, r, "invalid_code")
		return
	}
	xctx, xcancel := context.WithTimeout(ctx, timeouts.Medium())
	defer xcancel()
	token, err := h.oauth2Config().Exchange(xctx, code)
	if err != nil {
		h.Log.Error("failed to exchange OAuth code", zap.Error(err))
		h.redirectToLogin(w, r, "token_exchange")
		return
	}
	info, err := h.fetchUserInfo(xctx, token)
	if err != nil {
		h.Log.Error("failed to fetch Google user info", zap.Error(err))
		h.redirectToLogin(w, r, "user_info")
		return
	}

	sess, err := h.Accounts.GoogleSignIn(xctx, accounts.GoogleIdentity{
		Email:         info.Email,
		EmailVerified: info.EmailVerified,
		GivenName:     info.GivenName,
		FamilyName:    info.FamilyName,
		Name:          info.Name,
	})
	if err != nil {
		code := "internal"
		switch apperr.KindOf(err) {
		case apperr.KindUnauthorized:
			code = "account_unavailable"
		case apperr.KindConflict:
			code = "use_password"
		}
		h.Log.Info("Google sign-in refused", zap.String("reason", code), zap.Error(err))
		h.redirectToLogin(w, r, code)
		return
	}

	if st.InviteToken != "" && h.Invitations != nil {
		if teamID, err := h.Invitations.AcceptForExistingUser(xctx, sess.User.ID, st.InviteToken); err != nil {
			h.Log.Info("invitation not accepted after Google sign-in",
				zap.String("user_id", sess.User.ID.Hex()), zap.Error(err))
		} else {
			h.Log.Info("invitation accepted via Google sign-in",
				zap.String("user_id", sess.User.ID.Hex()),
				zap.String("team_id", teamID.Hex()))
		}
	}

	if err := h.SessionMgr.StartSession(w, r, sess.Token); err != nil {
		h.Log.Error("save session failed", zap.Error(err), zap.String("user_id", sess.User.ID.Hex()))
		h.redirectToLogin(w, r, "session")
		return
	}
	h.Log.Info("user logged in via Google OAuth", zap.String("user_id", sess.User.ID.Hex()))
	http.Redirect(w, r, urlutil.SafeReturn(st.ReturnURL, "", "/"), http.StatusSeeOther)
}

func (h *Handler) redirectToLogin(w http.ResponseWriter, r *http.Request, errorCode string) {
	http.Redirect(w, r, "/login?error="+errorCode, http.StatusSeeOther)
}

// googleUserInfo represents user info returned from Google.
type googleUserInfo struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"verified_email"`
	Name          string `json:"name"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
}

func (h *Handler) fetchUserInfo(ctx context.Context, token *oauth2.Token) (*googleUserInfo, error) {
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(token))

	resp, err := client.Get(h.UserInfoURL)
	if err != nil {
		return nil, fmt.Errorf("fetch user info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var info googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decode user info: %w", err)
	}
	return &info, nil
}
