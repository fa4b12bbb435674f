// internal/app/features/requests/handler.go

// Package requests is the HTTP surface for mutual roommate requests. The
// mediator engine decides what an accepted request turns into; handlers
// only authenticate and translate.
package requests

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/hallmatch/hallmatch/internal/app/engine/mediator"
	"github.com/hallmatch/hallmatch/internal/app/features/apiutil"
	"github.com/hallmatch/hallmatch/internal/app/system/auth"
	"github.com/hallmatch/hallmatch/internal/app/system/faults"
)

// Handler carries the request feature's dependencies.
type Handler struct {
	DB  *mongo.Database
	Log *zap.Logger
	Med *mediator.Mediator
}

// NewHandler wires the feature against the shared mediator.
func NewHandler(db *mongo.Database, log *zap.Logger, med *mediator.Mediator) *Handler {
	return &Handler{DB: db, Log: log, Med: med}
}

func (h *Handler) requireStudent(w http.ResponseWriter, r *http.Request) (*auth.SessionStudent, bool) {
	s, ok := auth.CurrentStudent(r)
	if !ok {
		apiutil.WriteError(w, h.Log, faults.Unauthorized("sign in required"))
		return nil, false
	}
	return s, true
}

type sendRequest struct {
	ToStudentID string `json:"to_student_id"`
}

// ServeSend handles POST /requests: the caller asks another student to
// room with them.
func (h *Handler) ServeSend(w http.ResponseWriter, r *http.Request) {
	s, ok := h.requireStudent(w, r)
	if !ok {
		return
	}

	var req sendRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, h.Log, err)
		return
	}
	toID, err := primitive.ObjectIDFromHex(req.ToStudentID)
	if err != nil {
		apiutil.WriteError(w, h.Log, faults.Invalid("malformed to_student_id"))
		return
	}

	rr, err := h.Med.Send(r.Context(), s.ID, toID)
	if err != nil {
		apiutil.WriteError(w, h.Log, err)
		return
	}
	apiutil.WriteJSON(w, http.StatusCreated, rr)
}

// ServeAccept handles POST /requests/{requestID}/accept and reports what
// the acceptance produced: a new group, an invite, or a merge proposal.
func (h *Handler) ServeAccept(w http.ResponseWriter, r *http.Request) {
	s, ok := h.requireStudent(w, r)
	if !ok {
		return
	}
	requestID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "requestID"))
	if err != nil {
		apiutil.WriteError(w, h.Log, faults.Invalid("malformed id"))
		return
	}

	out, err := h.Med.Accept(r.Context(), requestID, s.ID)
	if err != nil {
		apiutil.WriteError(w, h.Log, err)
		return
	}
	apiutil.WriteJSON(w, http.StatusOK, out)
}

// ServeDecline handles POST /requests/{requestID}/decline.
func (h *Handler) ServeDecline(w http.ResponseWriter, r *http.Request) {
	s, ok := h.requireStudent(w, r)
	if !ok {
		return
	}
	requestID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "requestID"))
	if err != nil {
		apiutil.WriteError(w, h.Log, faults.Invalid("malformed id"))
		return
	}

	if err := h.Med.Decline(r.Context(), requestID, s.ID); err != nil {
		apiutil.WriteError(w, h.Log, err)
		return
	}
	apiutil.WriteJSON(w, http.StatusOK, map[string]string{"status": "declined"})
}

// ServeMine handles GET /requests/mine: every request naming the caller
// on either side, stale ones already flipped to expired.
func (h *Handler) ServeMine(w http.ResponseWriter, r *http.Request) {
	s, ok := h.requireStudent(w, r)
	if !ok {
		return
	}

	list, err := h.Med.ListForStudent(r.Context(), s.ID)
	if err != nil {
		apiutil.WriteError(w, h.Log, err)
		return
	}
	apiutil.WriteJSON(w, http.StatusOK, list)
}
