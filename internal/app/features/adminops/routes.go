// internal/app/features/adminops/routes.go
package adminops

import "github.com/go-chi/chi/v5"

// Routes mounts the admin endpoints. Mounted under /admin.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()

	r.Post("/finalize", h.HandleFinalize)
	r.Get("/roomconfigs", h.ServeRoomConfigs)
	r.Post("/roomconfigs", h.HandleCreateRoomConfig)
	r.Get("/groups", h.ServeGroups)

	return r
}
