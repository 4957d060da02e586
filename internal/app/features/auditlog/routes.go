// internal/app/features/auditlog/routes.go
package auditlog

import "github.com/go-chi/chi/v5"

// Routes mounts the caller's own activity feed, typically at /me/activity
// behind sign-in.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ServeList)
	return r
}
