package invitations

import "github.com/go-chi/chi/v5"

// Routes mounts under /invitations. Lookup and accept are public; join
// needs a signed-in user.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/{token}", h.ServeLookup)
	r.Post("/{token}/accept", h.HandleAccept)
	r.With(h.SessionMgr.RequireSignedIn).Post("/{token}/join", h.HandleJoin)
	return r
}
