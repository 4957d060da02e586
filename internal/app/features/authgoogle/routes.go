// internal/app/features/authgoogle/routes.go
package authgoogle

import (
	"net/http"

	uierrors "github.com/dalemusser/taskhub/internal/app/features/errors"
	"github.com/go-chi/chi/v5"
)

// Routes returns the public Google sign-in router, mounted at /auth/google.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ServeLogin)
	r.Get("/callback", h.ServeCallback)
	r.Get("/enabled", h.ServeEnabled)
	return r
}

// ServeEnabled reports whether clients should offer Google sign-in.
func (h *Handler) ServeEnabled(w http.ResponseWriter, r *http.Request) {
	uierrors.JSON(w, http.StatusOK, map[string]bool{"enabled": h.IsConfigured()})
}
