package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dalemusser/taskhub/internal/app/system/apperr"
	"github.com/dalemusser/taskhub/internal/app/system/tokens"
	"github.com/gorilla/sessions"
	"go.uber.org/zap"
)

const tokenKey = "token"

// SessionUser is the authenticated principal injected into r.Context().
type SessionUser struct {
	ID    string
	Name  string
	Email string
}

// UserFetcher reloads a user on each request so that disabled accounts lose
// access before their token expires. FetchUser returns nil for an unknown or
// disabled user.
type UserFetcher interface {
	FetchUser(ctx context.Context, userID string) *SessionUser
}

type ctxKey string

const currentUserKey ctxKey = "currentUser"

// SessionManager resolves the principal from a bearer token or from the
// session cookie that carries the same token.
type SessionManager struct {
	store   *sessions.CookieStore
	name    string
	issuer  *tokens.Issuer
	fetcher UserFetcher
	logger  *zap.Logger
}

// NewSessionManager builds the cookie store. The secure flag controls
// whether cookies are marked Secure and which SameSite mode is used.
func NewSessionManager(sessionKey, name, domain string, maxAge time.Duration, secure bool, issuer *tokens.Issuer, logger *zap.Logger) (*SessionManager, error) {
	if sessionKey == "" {
		return nil, fmt.Errorf("session key is empty; provide ≥32 random chars")
	}
	if issuer == nil {
		return nil, fmt.Errorf("token issuer is required")
	}
	if len(sessionKey) < 32 {
		logger.Warn("session key is short; 32+ chars recommended",
			zap.Int("length", len(sessionKey)))
	}

	store := sessions.NewCookieStore([]byte(sessionKey))
	opts := &sessions.Options{
		Domain:   domain,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		Secure:   secure,
		HttpOnly: true,
	}
	if secure {
		opts.SameSite = http.SameSiteNoneMode
	} else {
		opts.SameSite = http.SameSiteLaxMode
	}
	store.Options = opts

	logger.Info("session store initialized",
		zap.String("name", name),
		zap.Bool("secure", secure),
		zap.String("domain", domain))

	return &SessionManager{
		store:  store,
		name:   name,
		issuer: issuer,
		logger: logger,
	}, nil
}

// SetUserFetcher enables per-request user reloads.
func (sm *SessionManager) SetUserFetcher(f UserFetcher) {
	sm.fetcher = f
}

// Issuer returns the token issuer shared with the account service.
func (sm *SessionManager) Issuer() *tokens.Issuer {
	return sm.issuer
}

// CurrentUser returns the user and whether one was found.
func CurrentUser(r *http.Request) (*SessionUser, bool) {
	return UserFromContext(r.Context())
}

// UserFromContext is CurrentUser for code that only has a context.
func UserFromContext(ctx context.Context) (*SessionUser, bool) {
	u, ok := ctx.Value(currentUserKey).(*SessionUser)
	return u, ok && u != nil
}

// LoadSessionUser injects the user into context when the request carries a
// valid session token. Invalid or missing tokens leave the request anonymous.
func (sm *SessionManager) LoadSessionUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := sm.tokenFrom(r)
		if raw == "" {
			next.ServeHTTP(w, r)
			return
		}
		claims, err := sm.issuer.ParseSession(raw)
		if err != nil {
			sm.logger.Debug("ignoring invalid session token", zap.Error(err))
			next.ServeHTTP(w, r)
			return
		}

		var u *SessionUser
		if sm.fetcher != nil {
			u = sm.fetcher.FetchUser(r.Context(), claims.Subject)
		} else {
			u = &SessionUser{ID: claims.Subject, Email: claims.Email, Name: claims.Name}
		}
		if u != nil {
			r = withUser(r, u)
		}
		next.ServeHTTP(w, r)
	})
}

// RequireSignedIn rejects anonymous requests with a 401 JSON body.
func (sm *SessionManager) RequireSignedIn(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := CurrentUser(r); ok {
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"error":   apperr.KindUnauthorized.String(),
			"message": "sign in required",
		})
	})
}

// StartSession stores the session token in the cookie so browser clients
// need not manage the bearer header.
func (sm *SessionManager) StartSession(w http.ResponseWriter, r *http.Request, token string) error {
	sess, _ := sm.store.Get(r, sm.name)
	sess.Values[tokenKey] = token
	return sess.Save(r, w)
}

// EndSession clears the session cookie.
func (sm *SessionManager) EndSession(w http.ResponseWriter, r *http.Request) error {
	sess, _ := sm.store.Get(r, sm.name)
	delete(sess.Values, tokenKey)
	sess.Options.MaxAge = -1
	return sess.Save(r, w)
}

func (sm *SessionManager) tokenFrom(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if t, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(t)
		}
	}
	sess, err := sm.store.Get(r, sm.name)
	if err != nil {
		return ""
	}
	t, _ := sess.Values[tokenKey].(string)
	return t
}

// WithTestUser injects u into the request context, bypassing the session
// middleware. For handler tests.
func WithTestUser(r *http.Request, u *SessionUser) *http.Request {
	return withUser(r, u)
}

func withUser(r *http.Request, u *SessionUser) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), currentUserKey, u))
}
