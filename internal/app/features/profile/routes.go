// internal/app/features/profile/routes.go
package profile

import "github.com/go-chi/chi/v5"

// Routes mounts the profile endpoints. Mounted under /profile.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ServeProfile)
	r.Put("/survey", h.HandleUpdateSurvey)
	r.Put("/preferences", h.HandleUpdatePreferences)

	return r
}
