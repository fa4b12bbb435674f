// internal/app/features/profile/handler.go

// Package profile serves the caller's own roster entry: survey answers,
// personality profile, and room-size preferences. Free-text survey values
// are stripped to plain text before they are stored, since they come back
// out in match explanations and roster views.
package profile

import (
	"net/http"

	"github.com/microcosm-cc/bluemonday"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/hallmatch/hallmatch/internal/app/features/apiutil"
	studentstore "github.com/hallmatch/hallmatch/internal/app/store/students"
	"github.com/hallmatch/hallmatch/internal/app/system/auth"
	"github.com/hallmatch/hallmatch/internal/app/system/faults"
	"github.com/hallmatch/hallmatch/internal/domain/models"
)

// Handler carries the profile feature's dependencies.
type Handler struct {
	DB  *mongo.Database
	Log *zap.Logger

	Students *studentstore.Store
	policy   *bluemonday.Policy
}

// NewHandler wires the feature. The strict policy strips every HTML tag;
// survey answers are data, never markup.
func NewHandler(db *mongo.Database, log *zap.Logger) *Handler {
	return &Handler{
		DB:       db,
		Log:      log,
		Students: studentstore.New(db),
		policy:   bluemonday.StrictPolicy(),
	}
}

func (h *Handler) requireStudent(w http.ResponseWriter, r *http.Request) (*auth.SessionStudent, bool) {
	s, ok := auth.CurrentStudent(r)
	if !ok {
		apiutil.WriteError(w, h.Log, faults.Unauthorized("sign in required"))
		return nil, false
	}
	return s, true
}

// ServeProfile handles GET /profile.
func (h *Handler) ServeProfile(w http.ResponseWriter, r *http.Request) {
	s, ok := h.requireStudent(w, r)
	if !ok {
		return
	}

	st, err := h.Students.GetByID(r.Context(), s.ID)
	if err != nil {
		apiutil.WriteError(w, h.Log, err)
		return
	}
	apiutil.WriteJSON(w, http.StatusOK, st)
}

type surveyRequest struct {
	Answers     map[string]string          `json:"answers"`
	Personality *models.PersonalityProfile `json:"personality,omitempty"`
}

// HandleUpdateSurvey handles PUT /profile/survey.
func (h *Handler) HandleUpdateSurvey(w http.ResponseWriter, r *http.Request) {
	s, ok := h.requireStudent(w, r)
	if !ok {
		return
	}

	var req surveyRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, h.Log, err)
		return
	}
	if req.Answers == nil {
		apiutil.WriteError(w, h.Log, faults.Invalid("answers are required"))
		return
	}
	if req.Personality != nil && !validProfile(req.Personality) {
		apiutil.WriteError(w, h.Log, faults.Invalid("personality scores must be between 0 and 100"))
		return
	}

	clean := make(map[string]string, len(req.Answers))
	for k, v := range req.Answers {
		clean[h.policy.Sanitize(k)] = h.policy.Sanitize(v)
	}

	if err := h.Students.UpdateSurvey(r.Context(), s.ID, clean, req.Personality); err != nil {
		apiutil.WriteError(w, h.Log, err)
		return
	}

	st, err := h.Students.GetByID(r.Context(), s.ID)
	if err != nil {
		apiutil.WriteError(w, h.Log, err)
		return
	}
	apiutil.WriteJSON(w, http.StatusOK, st)
}

func validProfile(p *models.PersonalityProfile) bool {
	for _, v := range []float64{p.Openness, p.Conscientiousness, p.Extraversion, p.Agreeableness, p.Neuroticism} {
		if v < 0 || v > 100 {
			return false
		}
	}
	return true
}

type preferencesRequest struct {
	PreferredRoomSizes []int `json:"preferred_room_sizes"`
}

// HandleUpdatePreferences handles PUT /profile/preferences.
func (h *Handler) HandleUpdatePreferences(w http.ResponseWriter, r *http.Request) {
	s, ok := h.requireStudent(w, r)
	if !ok {
		return
	}

	var req preferencesRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, h.Log, err)
		return
	}
	for _, size := range req.PreferredRoomSizes {
		if size < 2 || size > 12 {
			apiutil.WriteError(w, h.Log, faults.Invalid("room sizes must be between 2 and 12"))
			return
		}
	}

	if err := h.Students.UpdatePreferences(r.Context(), s.ID, req.PreferredRoomSizes); err != nil {
		apiutil.WriteError(w, h.Log, err)
		return
	}
	apiutil.WriteJSON(w, http.StatusOK, map[string]any{"preferred_room_sizes": req.PreferredRoomSizes})
}
