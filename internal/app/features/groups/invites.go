// internal/app/features/groups/invites.go
package groups

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/hallmatch/hallmatch/internal/app/features/apiutil"
	"github.com/hallmatch/hallmatch/internal/app/system/faults"
)

type inviteRequest struct {
	StudentID string `json:"student_id"`
}

// ServeCreateInvite handles POST /groups/{groupID}/invites: any current
// member may invite a solo student; the leader approves later.
func (h *Handler) ServeCreateInvite(w http.ResponseWriter, r *http.Request) {
	s, ok := h.requireStudent(w, r)
	if !ok {
		return
	}
	groupID, ok := h.pathID(w, chi.URLParam(r, "groupID"))
	if !ok {
		return
	}
	if !h.checkOwnGroup(w, r, s, groupID) {
		return
	}

	var req inviteRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, h.Log, err)
		return
	}
	studentID, err := primitive.ObjectIDFromHex(req.StudentID)
	if err != nil {
		apiutil.WriteError(w, h.Log, faults.Invalid("malformed student_id"))
		return
	}

	inv, err := h.Consents.CreateInvite(r.Context(), groupID, studentID, s.ID)
	if err != nil {
		apiutil.WriteError(w, h.Log, err)
		return
	}
	apiutil.WriteJSON(w, http.StatusCreated, inv)
}

// ServeApproveInvite handles POST /invites/{inviteID}/approve. Leader only.
func (h *Handler) ServeApproveInvite(w http.ResponseWriter, r *http.Request) {
	s, ok := h.requireStudent(w, r)
	if !ok {
		return
	}
	inviteID, ok := h.pathID(w, chi.URLParam(r, "inviteID"))
	if !ok {
		return
	}

	if err := h.Consents.ApproveInvite(r.Context(), inviteID, s.ID); err != nil {
		apiutil.WriteError(w, h.Log, err)
		return
	}
	apiutil.WriteJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
}

// ServeDeclineInvite handles POST /invites/{inviteID}/decline. The invitee
// or the group leader may decline.
func (h *Handler) ServeDeclineInvite(w http.ResponseWriter, r *http.Request) {
	s, ok := h.requireStudent(w, r)
	if !ok {
		return
	}
	inviteID, ok := h.pathID(w, chi.URLParam(r, "inviteID"))
	if !ok {
		return
	}

	if err := h.Consents.DeclineInvite(r.Context(), inviteID, s.ID); err != nil {
		apiutil.WriteError(w, h.Log, err)
		return
	}
	apiutil.WriteJSON(w, http.StatusOK, map[string]string{"status": "declined"})
}

// ServeMyInvites handles GET /invites/mine: pending invites naming the
// caller as invitee.
func (h *Handler) ServeMyInvites(w http.ResponseWriter, r *http.Request) {
	s, ok := h.requireStudent(w, r)
	if !ok {
		return
	}

	invites, err := h.Invites.ListPendingForStudent(r.Context(), s.ID)
	if err != nil {
		apiutil.WriteError(w, h.Log, err)
		return
	}
	apiutil.WriteJSON(w, http.StatusOK, invites)
}
