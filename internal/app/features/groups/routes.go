// internal/app/features/groups/routes.go
package groups

import "github.com/go-chi/chi/v5"

// Routes mounts the group endpoints. Mounted under /groups.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.ServeCreate)
	r.Get("/mine", h.ServeMine)

	r.Route("/{groupID}", func(r chi.Router) {
		r.Get("/", h.ServeView)
		r.Post("/leave", h.ServeLeave)
		r.Post("/transfer", h.ServeTransfer)
		r.Post("/lock", h.ServeLock)
		r.Post("/endorse", h.ServeEndorse)
		r.Post("/invites", h.ServeCreateInvite)
		r.Post("/merges", h.ServeProposeMerge)
		r.Delete("/members/{studentID}", h.ServeRemoveMember)
	})

	return r
}

// InviteRoutes mounts the invite endpoints addressed by invite id.
// Mounted under /invites.
func InviteRoutes(h *Handler) chi.Router {
	r := chi.NewRouter()

	r.Get("/mine", h.ServeMyInvites)
	r.Post("/{inviteID}/approve", h.ServeApproveInvite)
	r.Post("/{inviteID}/decline", h.ServeDeclineInvite)

	return r
}

// MergeRoutes mounts the merge endpoints addressed by proposal id.
// Mounted under /merges.
func MergeRoutes(h *Handler) chi.Router {
	r := chi.NewRouter()

	r.Post("/{mergeID}/approve", h.ServeApproveMerge)
	r.Post("/{mergeID}/decline", h.ServeDeclineMerge)

	return r
}
