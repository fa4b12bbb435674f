// internal/app/features/groups/actions.go
package groups

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/hallmatch/hallmatch/internal/app/features/apiutil"
	"github.com/hallmatch/hallmatch/internal/app/system/faults"
)

type createGroupRequest struct {
	PartnerID      string `json:"partner_id"`
	TargetRoomSize *int   `json:"target_room_size,omitempty"`
}

// ServeCreate handles POST /groups: the caller and one partner form a new
// group with the caller as leader.
func (h *Handler) ServeCreate(w http.ResponseWriter, r *http.Request) {
	s, ok := h.requireStudent(w, r)
	if !ok {
		return
	}

	var req createGroupRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, h.Log, err)
		return
	}
	partnerID, err := primitive.ObjectIDFromHex(req.PartnerID)
	if err != nil {
		apiutil.WriteError(w, h.Log, faults.Invalid("malformed partner_id"))
		return
	}
	if req.TargetRoomSize != nil && *req.TargetRoomSize < 2 {
		apiutil.WriteError(w, h.Log, faults.Invalid("target_room_size must be at least 2"))
		return
	}

	g, err := h.Life.CreateFromPair(r.Context(), s.OrganizationID, s.ID, partnerID, req.TargetRoomSize)
	if err != nil {
		apiutil.WriteError(w, h.Log, err)
		return
	}
	apiutil.WriteJSON(w, http.StatusCreated, g)
}

// ServeLeave handles POST /groups/{groupID}/leave.
func (h *Handler) ServeLeave(w http.ResponseWriter, r *http.Request) {
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

	res, err := h.Life.Leave(r.Context(), groupID, s.ID)
	if err != nil {
		apiutil.WriteError(w, h.Log, err)
		return
	}
	apiutil.WriteJSON(w, http.StatusOK, res)
}

// ServeRemoveMember handles DELETE /groups/{groupID}/members/{studentID}.
// Leader only; a locked group's roster cannot be edited.
func (h *Handler) ServeRemoveMember(w http.ResponseWriter, r *http.Request) {
	s, ok := h.requireStudent(w, r)
	if !ok {
		return
	}
	groupID, ok := h.pathID(w, chi.URLParam(r, "groupID"))
	if !ok {
		return
	}
	studentID, ok := h.pathID(w, chi.URLParam(r, "studentID"))
	if !ok {
		return
	}

	g, err := h.Groups.GetByID(r.Context(), groupID)
	if err != nil || g.OrganizationID != s.OrganizationID {
		apiutil.WriteError(w, h.Log, faults.NotFound("group not found"))
		return
	}
	if g.LeaderID != s.ID {
		apiutil.WriteError(w, h.Log, faults.Forbidden("only the leader can remove members"))
		return
	}

	res, err := h.Life.Leave(r.Context(), groupID, studentID)
	if err != nil {
		apiutil.WriteError(w, h.Log, err)
		return
	}
	apiutil.WriteJSON(w, http.StatusOK, res)
}

type transferRequest struct {
	NewLeaderID string `json:"new_leader_id"`
}

// ServeTransfer handles POST /groups/{groupID}/transfer.
func (h *Handler) ServeTransfer(w http.ResponseWriter, r *http.Request) {
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

	var req transferRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, h.Log, err)
		return
	}
	newLeaderID, err := primitive.ObjectIDFromHex(req.NewLeaderID)
	if err != nil {
		apiutil.WriteError(w, h.Log, faults.Invalid("malformed new_leader_id"))
		return
	}

	if err := h.Life.TransferLeadership(r.Context(), groupID, s.ID, newLeaderID); err != nil {
		apiutil.WriteError(w, h.Log, err)
		return
	}
	apiutil.WriteJSON(w, http.StatusOK, map[string]string{"leader_id": newLeaderID.Hex()})
}

// ServeLock handles POST /groups/{groupID}/lock.
func (h *Handler) ServeLock(w http.ResponseWriter, r *http.Request) {
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

	if err := h.Life.Lock(r.Context(), groupID, s.ID); err != nil {
		apiutil.WriteError(w, h.Log, err)
		return
	}
	apiutil.WriteJSON(w, http.StatusOK, map[string]string{"status": "locked"})
}

type endorseRequest struct {
	StudentID string `json:"student_id"`
}

// ServeEndorse handles POST /groups/{groupID}/endorse: the caller votes to
// admit a candidate; a unanimous slate admits them immediately.
func (h *Handler) ServeEndorse(w http.ResponseWriter, r *http.Request) {
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

	var req endorseRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, h.Log, err)
		return
	}
	candidateID, err := primitive.ObjectIDFromHex(req.StudentID)
	if err != nil {
		apiutil.WriteError(w, h.Log, faults.Invalid("malformed student_id"))
		return
	}

	res, err := h.Consents.Endorse(r.Context(), groupID, candidateID, s.ID)
	if err != nil {
		apiutil.WriteError(w, h.Log, err)
		return
	}
	apiutil.WriteJSON(w, http.StatusOK, res)
}
