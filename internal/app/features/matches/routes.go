// internal/app/features/matches/routes.go
package matches

import "github.com/go-chi/chi/v5"

// Routes mounts the match endpoints. Mounted under /matches.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ServeList)
	r.Get("/{studentID}", h.ServePair)

	return r
}
