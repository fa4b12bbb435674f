// internal/app/features/groups/handler.go

// Package groups is the HTTP surface for group lifecycle, endorsements,
// invites, and merges. Handlers authenticate, parse, and delegate; every
// rule lives in the engine packages.
package groups

import (
	"net/http"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/hallmatch/hallmatch/internal/app/engine/consent"
	"github.com/hallmatch/hallmatch/internal/app/engine/lifecycle"
	"github.com/hallmatch/hallmatch/internal/app/engine/merge"
	"github.com/hallmatch/hallmatch/internal/app/features/apiutil"
	endorsementstore "github.com/hallmatch/hallmatch/internal/app/store/endorsements"
	groupstore "github.com/hallmatch/hallmatch/internal/app/store/groups"
	invitestore "github.com/hallmatch/hallmatch/internal/app/store/invites"
	memberstore "github.com/hallmatch/hallmatch/internal/app/store/members"
	mergestore "github.com/hallmatch/hallmatch/internal/app/store/merges"
	studentstore "github.com/hallmatch/hallmatch/internal/app/store/students"
	"github.com/hallmatch/hallmatch/internal/app/system/auth"
	"github.com/hallmatch/hallmatch/internal/app/system/faults"
)

// Handler carries the group feature's dependencies.
type Handler struct {
	DB  *mongo.Database
	Log *zap.Logger

	Life     *lifecycle.Manager
	Consents *consent.Engine
	Merges   *merge.Engine

	Groups       *groupstore.Store
	Members      *memberstore.Store
	Students     *studentstore.Store
	Invites      *invitestore.Store
	MergeReqs    *mergestore.Store
	Endorsements *endorsementstore.Store
}

// NewHandler wires the feature against the shared engines.
func NewHandler(db *mongo.Database, log *zap.Logger, life *lifecycle.Manager, consents *consent.Engine, merges *merge.Engine) *Handler {
	return &Handler{
		DB:           db,
		Log:          log,
		Life:         life,
		Consents:     consents,
		Merges:       merges,
		Groups:       groupstore.New(db),
		Members:      memberstore.New(db),
		Students:     studentstore.New(db),
		Invites:      invitestore.New(db),
		MergeReqs:    mergestore.New(db),
		Endorsements: endorsementstore.New(db),
	}
}

// requireStudent pulls the session identity or writes a 401.
func (h *Handler) requireStudent(w http.ResponseWriter, r *http.Request) (*auth.SessionStudent, bool) {
	s, ok := auth.CurrentStudent(r)
	if !ok {
		apiutil.WriteError(w, h.Log, faults.Unauthorized("sign in required"))
		return nil, false
	}
	return s, true
}

// pathID parses an ObjectID URL parameter, writing a 400 on garbage.
func (h *Handler) pathID(w http.ResponseWriter, raw string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		apiutil.WriteError(w, h.Log, faults.Invalid("malformed id"))
		return primitive.NilObjectID, false
	}
	return id, true
}

// checkOwnGroup confirms a group is visible to the caller's organization.
// Cross-org ids read as absent, not forbidden.
func (h *Handler) checkOwnGroup(w http.ResponseWriter, r *http.Request, s *auth.SessionStudent, groupID primitive.ObjectID) bool {
	g, err := h.Groups.GetByID(r.Context(), groupID)
	if err != nil || g.OrganizationID != s.OrganizationID {
		apiutil.WriteError(w, h.Log, faults.NotFound("group not found"))
		return false
	}
	return true
}
