package teams

import "github.com/go-chi/chi/v5"

// Routes mounts under /teams behind sign-in.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ServeList)
	r.Post("/", h.HandleCreate)
	r.Route("/{teamID}", func(r chi.Router) {
		r.Get("/", h.ServeDetail)
		r.Patch("/", h.HandleUpdate)
		r.Delete("/", h.HandleDelete)
		r.Post("/invite", h.HandleInvite)
		r.Get("/activity", h.ServeActivity)
		r.Patch("/members/{userID}", h.HandleChangeRole)
		r.Delete("/members/{userID}", h.HandleRemoveMember)
	})
	return r
}
