// internal/app/features/login/routes.go
package login

import (
	"github.com/go-chi/chi/v5"
)

// Routes returns the /auth subrouter. Only /me requires a signed-in user.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Post("/register", h.HandleRegister)
	r.Post("/login", h.HandleLogin)
	r.Post("/logout", h.HandleLogout)
	r.Post("/forgot-password", h.HandleForgotPassword)
	r.Post("/reset-password", h.HandleResetPassword)
	r.With(h.SessionMgr.RequireSignedIn).Get("/me", h.ServeMe)
	return r
}
