// internal/app/features/adminops/handler.go

// Package adminops is the housing admin surface: room inventory
// management, a grouping overview, and the assignment finalizer that
// closes out the selection window.
package adminops

import (
	"net/http"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/hallmatch/hallmatch/internal/app/engine/finalize"
	"github.com/hallmatch/hallmatch/internal/app/features/apiutil"
	groupstore "github.com/hallmatch/hallmatch/internal/app/store/groups"
	memberstore "github.com/hallmatch/hallmatch/internal/app/store/members"
	roomconfigstore "github.com/hallmatch/hallmatch/internal/app/store/roomconfigs"
	"github.com/hallmatch/hallmatch/internal/app/system/auth"
	"github.com/hallmatch/hallmatch/internal/app/system/faults"
	"github.com/hallmatch/hallmatch/internal/domain/models"
)

// Handler carries the admin feature's dependencies.
type Handler struct {
	DB  *mongo.Database
	Log *zap.Logger

	Finalizer *finalize.Finalizer

	Groups  *groupstore.Store
	Members *memberstore.Store
	Configs *roomconfigstore.Store
}

// NewHandler wires the feature against the shared finalizer.
func NewHandler(db *mongo.Database, log *zap.Logger, fin *finalize.Finalizer) *Handler {
	return &Handler{
		DB:        db,
		Log:       log,
		Finalizer: fin,
		Groups:    groupstore.New(db),
		Members:   memberstore.New(db),
		Configs:   roomconfigstore.New(db),
	}
}

// requireAdmin pulls an admin identity from the session or refuses.
func (h *Handler) requireAdmin(w http.ResponseWriter, r *http.Request) (*auth.SessionStudent, bool) {
	s, ok := auth.CurrentStudent(r)
	if !ok {
		apiutil.WriteError(w, h.Log, faults.Unauthorized("sign in required"))
		return nil, false
	}
	if !s.Admin {
		apiutil.WriteError(w, h.Log, faults.Forbidden("admin access required"))
		return nil, false
	}
	return s, true
}

// HandleFinalize handles POST /admin/finalize: sweeps stale consent
// records, fills and forms groups, and locks the organization's roster.
func (h *Handler) HandleFinalize(w http.ResponseWriter, r *http.Request) {
	s, ok := h.requireAdmin(w, r)
	if !ok {
		return
	}

	rep, err := h.Finalizer.Run(r.Context(), s.OrganizationID)
	if err != nil {
		apiutil.WriteError(w, h.Log, err)
		return
	}
	apiutil.WriteJSON(w, http.StatusOK, rep)
}

type roomConfigRequest struct {
	RoomSize                    int     `json:"room_size"`
	TotalRooms                  int     `json:"total_rooms"`
	ReservationThresholdPercent float64 `json:"reservation_threshold_percent"`
	GracePeriodHours            int     `json:"grace_period_hours"`
}

// HandleCreateRoomConfig handles POST /admin/roomconfigs.
func (h *Handler) HandleCreateRoomConfig(w http.ResponseWriter, r *http.Request) {
	s, ok := h.requireAdmin(w, r)
	if !ok {
		return
	}

	var req roomConfigRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, h.Log, err)
		return
	}
	if req.RoomSize < 1 || req.TotalRooms < 0 {
		apiutil.WriteError(w, h.Log, faults.Invalid("room_size must be positive and total_rooms non-negative"))
		return
	}
	if req.ReservationThresholdPercent <= 0 || req.ReservationThresholdPercent > 1 {
		apiutil.WriteError(w, h.Log, faults.Invalid("reservation_threshold_percent must be in (0, 1]"))
		return
	}
	if req.GracePeriodHours < 0 {
		apiutil.WriteError(w, h.Log, faults.Invalid("grace_period_hours must be non-negative"))
		return
	}

	rc, err := h.Configs.Create(r.Context(), models.RoomConfig{
		OrganizationID:              s.OrganizationID,
		RoomSize:                    req.RoomSize,
		TotalRooms:                  req.TotalRooms,
		ReservationThresholdPercent: req.ReservationThresholdPercent,
		GracePeriodHours:            req.GracePeriodHours,
	})
	if err != nil {
		apiutil.WriteError(w, h.Log, err)
		return
	}
	apiutil.WriteJSON(w, http.StatusCreated, rc)
}

// ServeRoomConfigs handles GET /admin/roomconfigs: the inventory plus how
// many groups currently hold each size.
func (h *Handler) ServeRoomConfigs(w http.ResponseWriter, r *http.Request) {
	s, ok := h.requireAdmin(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	configs, err := h.Configs.ListByOrg(ctx, s.OrganizationID)
	if err != nil {
		apiutil.WriteError(w, h.Log, err)
		return
	}

	type configView struct {
		models.RoomConfig
		RoomsHeld int64 `json:"rooms_held"`
	}
	views := make([]configView, 0, len(configs))
	for _, cfg := range configs {
		held, err := h.Groups.CountHoldingConfig(ctx, cfg.ID)
		if err != nil {
			apiutil.WriteError(w, h.Log, err)
			return
		}
		views = append(views, configView{RoomConfig: cfg, RoomsHeld: held})
	}
	apiutil.WriteJSON(w, http.StatusOK, views)
}

// ServeGroups handles GET /admin/groups: every group in the organization
// with its member count, for the progress dashboard.
func (h *Handler) ServeGroups(w http.ResponseWriter, r *http.Request) {
	s, ok := h.requireAdmin(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	groups, err := h.Groups.ListByOrg(ctx, s.OrganizationID)
	if err != nil {
		apiutil.WriteError(w, h.Log, err)
		return
	}

	ids := make([]primitive.ObjectID, 0, len(groups))
	for _, g := range groups {
		ids = append(ids, g.ID)
	}
	counts, err := h.Members.CountsPerGroup(ctx, ids)
	if err != nil {
		apiutil.WriteError(w, h.Log, err)
		return
	}

	type groupView struct {
		models.Group
		MemberCount int `json:"member_count"`
	}
	views := make([]groupView, 0, len(groups))
	for _, g := range groups {
		views = append(views, groupView{Group: g, MemberCount: counts[g.ID]})
	}
	apiutil.WriteJSON(w, http.StatusOK, views)
}
