// internal/app/features/requests/routes.go
package requests

import "github.com/go-chi/chi/v5"

// Routes mounts the roommate request endpoints. Mounted under /requests.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.ServeSend)
	r.Get("/mine", h.ServeMine)
	r.Post("/{requestID}/accept", h.ServeAccept)
	r.Post("/{requestID}/decline", h.ServeDecline)

	return r
}
