// internal/app/features/groups/merges.go
package groups

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/hallmatch/hallmatch/internal/app/features/apiutil"
	"github.com/hallmatch/hallmatch/internal/app/system/faults"
)

type mergeProposalRequest struct {
	ToGroupID string `json:"to_group_id"`
}

// ServeProposeMerge handles POST /groups/{groupID}/merges: the caller's
// group absorbs the other one once both leaders approve.
func (h *Handler) ServeProposeMerge(w http.ResponseWriter, r *http.Request) {
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

	var req mergeProposalRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, h.Log, err)
		return
	}
	toGroupID, err := primitive.ObjectIDFromHex(req.ToGroupID)
	if err != nil {
		apiutil.WriteError(w, h.Log, faults.Invalid("malformed to_group_id"))
		return
	}

	mr, err := h.Merges.Propose(r.Context(), groupID, toGroupID, s.ID)
	if err != nil {
		apiutil.WriteError(w, h.Log, err)
		return
	}
	apiutil.WriteJSON(w, http.StatusCreated, mr)
}

// ServeApproveMerge handles POST /merges/{mergeID}/approve. The second
// leader's approval executes the merge.
func (h *Handler) ServeApproveMerge(w http.ResponseWriter, r *http.Request) {
	s, ok := h.requireStudent(w, r)
	if !ok {
		return
	}
	mergeID, ok := h.pathID(w, chi.URLParam(r, "mergeID"))
	if !ok {
		return
	}

	mr, err := h.Merges.Approve(r.Context(), mergeID, s.ID)
	if err != nil {
		apiutil.WriteError(w, h.Log, err)
		return
	}
	apiutil.WriteJSON(w, http.StatusOK, mr)
}

// ServeDeclineMerge handles POST /merges/{mergeID}/decline.
func (h *Handler) ServeDeclineMerge(w http.ResponseWriter, r *http.Request) {
	s, ok := h.requireStudent(w, r)
	if !ok {
		return
	}
	mergeID, ok := h.pathID(w, chi.URLParam(r, "mergeID"))
	if !ok {
		return
	}

	if err := h.Merges.Decline(r.Context(), mergeID, s.ID); err != nil {
		apiutil.WriteError(w, h.Log, err)
		return
	}
	apiutil.WriteJSON(w, http.StatusOK, map[string]string{"status": "declined"})
}
