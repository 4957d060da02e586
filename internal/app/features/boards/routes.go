package boards

import "github.com/go-chi/chi/v5"

// MountRoutes registers the board API on r, which must already require
// sign-in. Lists, cards, comments and attachments are addressed by their
// own ids at the top level.
func MountRoutes(r chi.Router, h *Handler) {
	r.Route("/boards", func(r chi.Router) {
		r.Get("/", h.ServeList)
		r.Post("/", h.HandleCreate)
		r.Route("/{boardID}", func(r chi.Router) {
			r.Get("/", h.ServeDetail)
			r.Patch("/", h.HandleUpdate)
			r.Delete("/", h.HandleDelete)
			r.Post("/members", h.HandleAddMember)
			r.Patch("/members/{userID}", h.HandleChangeMemberRole)
			r.Delete("/members/{userID}", h.HandleRemoveMember)
			r.Post("/lists", h.HandleCreateList)
			r.Post("/labels", h.HandleCreateLabel)
		})
	})
	r.Route("/lists/{listID}", func(r chi.Router) {
		r.Patch("/", h.HandleUpdateList)
		r.Delete("/", h.HandleDeleteList)
		r.Post("/move", h.HandleMoveList)
		r.Post("/cards", h.HandleCreateCard)
	})
	r.Route("/cards/{cardID}", func(r chi.Router) {
		r.Get("/", h.ServeCard)
		r.Patch("/", h.HandleUpdateCard)
		r.Delete("/", h.HandleDeleteCard)
		r.Post("/move", h.HandleMoveCard)
		r.Post("/comments", h.HandleAddComment)
		r.Post("/labels/{labelID}", h.HandleApplyLabel)
		r.Delete("/labels/{labelID}", h.HandleRemoveLabel)
		r.Post("/attachments", h.HandleAddAttachment)
	})
	r.Delete("/comments/{commentID}", h.HandleDeleteComment)
	r.Delete("/attachments/{attachmentID}", h.HandleDeleteAttachment)
}
