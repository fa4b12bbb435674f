// internal/app/features/matches/handler.go

// Package matches serves ranked roommate suggestions: the caller against
// every other solo student in their organization, scored by the
// compatibility engine.
package matches

import (
	"net/http"
	"sort"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/hallmatch/hallmatch/internal/app/engine/score"
	"github.com/hallmatch/hallmatch/internal/app/features/apiutil"
	memberstore "github.com/hallmatch/hallmatch/internal/app/store/members"
	studentstore "github.com/hallmatch/hallmatch/internal/app/store/students"
	"github.com/hallmatch/hallmatch/internal/app/system/auth"
	"github.com/hallmatch/hallmatch/internal/app/system/faults"
)

const defaultLimit = 20

// Handler carries the match feature's dependencies.
type Handler struct {
	DB  *mongo.Database
	Log *zap.Logger

	Students *studentstore.Store
	Members  *memberstore.Store
}

// NewHandler wires the feature.
func NewHandler(db *mongo.Database, log *zap.Logger) *Handler {
	return &Handler{
		DB:       db,
		Log:      log,
		Students: studentstore.New(db),
		Members:  memberstore.New(db),
	}
}

type match struct {
	StudentID   primitive.ObjectID `json:"student_id"`
	FullName    string             `json:"full_name"`
	Score       int                `json:"score"`
	Explanation string             `json:"explanation"`
	Tags        []string           `json:"tags"`
}

// ServeList handles GET /matches: solo students in the caller's
// organization, best fit first. Students without survey data score the
// neutral midpoint and sink naturally.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	s, ok := auth.CurrentStudent(r)
	if !ok {
		apiutil.WriteError(w, h.Log, faults.Unauthorized("sign in required"))
		return
	}
	ctx := r.Context()

	limit := defaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 100 {
			apiutil.WriteError(w, h.Log, faults.Invalid("limit must be between 1 and 100"))
			return
		}
		limit = n
	}

	me, err := h.Students.GetByID(ctx, s.ID)
	if err != nil {
		apiutil.WriteError(w, h.Log, err)
		return
	}

	roster, err := h.Students.ListClaimedByOrg(ctx, s.OrganizationID)
	if err != nil {
		apiutil.WriteError(w, h.Log, err)
		return
	}
	grouped, err := h.Members.GroupedStudentIDs(ctx, s.OrganizationID)
	if err != nil {
		apiutil.WriteError(w, h.Log, err)
		return
	}

	matches := make([]match, 0, len(roster))
	for _, other := range roster {
		if other.ID == s.ID || grouped[other.ID] {
			continue
		}
		res := score.Compatibility(me.SurveyAnswers, other.SurveyAnswers, nil, me.Personality, other.Personality)
		matches = append(matches, match{
			StudentID:   other.ID,
			FullName:    other.FullName,
			Score:       res.Score,
			Explanation: res.Explanation,
			Tags:        res.Tags,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > limit {
		matches = matches[:limit]
	}
	apiutil.WriteJSON(w, http.StatusOK, matches)
}

// ServePair handles GET /matches/{studentID}: a single pairing's full
// verdict, for the "why this match?" view.
func (h *Handler) ServePair(w http.ResponseWriter, r *http.Request) {
	s, ok := auth.CurrentStudent(r)
	if !ok {
		apiutil.WriteError(w, h.Log, faults.Unauthorized("sign in required"))
		return
	}
	otherID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "studentID"))
	if err != nil {
		apiutil.WriteError(w, h.Log, faults.Invalid("malformed id"))
		return
	}
	ctx := r.Context()

	me, err := h.Students.GetByID(ctx, s.ID)
	if err != nil {
		apiutil.WriteError(w, h.Log, err)
		return
	}
	other, err := h.Students.GetByID(ctx, otherID)
	if err != nil || other.OrganizationID != s.OrganizationID {
		apiutil.WriteError(w, h.Log, faults.NotFound("student not found"))
		return
	}

	res := score.Compatibility(me.SurveyAnswers, other.SurveyAnswers, nil, me.Personality, other.Personality)
	apiutil.WriteJSON(w, http.StatusOK, match{
		StudentID:   other.ID,
		FullName:    other.FullName,
		Score:       res.Score,
		Explanation: res.Explanation,
		Tags:        res.Tags,
	})
}
