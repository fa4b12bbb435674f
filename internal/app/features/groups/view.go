// internal/app/features/groups/view.go
package groups

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/hallmatch/hallmatch/internal/app/features/apiutil"
	"github.com/hallmatch/hallmatch/internal/app/system/faults"
	"github.com/hallmatch/hallmatch/internal/domain/models"
)

type memberView struct {
	StudentID primitive.ObjectID `json:"student_id"`
	FullName  string             `json:"full_name"`
	Leader    bool               `json:"leader"`
}

type endorsementView struct {
	CandidateID primitive.ObjectID `json:"candidate_id"`
	Votes       int                `json:"votes"`
	Needed      int                `json:"needed"`
}

type groupView struct {
	models.Group
	Members       []memberView          `json:"members"`
	PendingInvite []models.Invite       `json:"pending_invites"`
	PendingMerges []models.MergeRequest `json:"pending_merges"`
	Endorsements  []endorsementView     `json:"endorsements"`
}

// ServeView handles GET /groups/{groupID}: the group, its roster, and
// everything pending against it.
func (h *Handler) ServeView(w http.ResponseWriter, r *http.Request) {
	s, ok := h.requireStudent(w, r)
	if !ok {
		return
	}
	groupID, ok := h.pathID(w, chi.URLParam(r, "groupID"))
	if !ok {
		return
	}
	ctx := r.Context()

	g, err := h.Groups.GetByID(ctx, groupID)
	if err != nil || g.OrganizationID != s.OrganizationID {
		apiutil.WriteError(w, h.Log, faults.NotFound("group not found"))
		return
	}

	members, err := h.Members.ListByGroup(ctx, groupID)
	if err != nil {
		apiutil.WriteError(w, h.Log, err)
		return
	}
	mv := make([]memberView, 0, len(members))
	for _, m := range members {
		st, err := h.Students.GetByID(ctx, m.StudentID)
		if err != nil {
			apiutil.WriteError(w, h.Log, err)
			return
		}
		mv = append(mv, memberView{
			StudentID: m.StudentID,
			FullName:  st.FullName,
			Leader:    m.StudentID == g.LeaderID,
		})
	}

	invites, err := h.Invites.ListPendingByGroup(ctx, groupID)
	if err != nil {
		apiutil.WriteError(w, h.Log, err)
		return
	}
	merges, err := h.MergeReqs.ListPendingByGroup(ctx, groupID)
	if err != nil {
		apiutil.WriteError(w, h.Log, err)
		return
	}

	votes, err := h.Endorsements.ListByGroup(ctx, groupID)
	if err != nil {
		apiutil.WriteError(w, h.Log, err)
		return
	}
	ev := tallyEndorsements(votes, members)

	apiutil.WriteJSON(w, http.StatusOK, groupView{
		Group:         g,
		Members:       mv,
		PendingInvite: invites,
		PendingMerges: merges,
		Endorsements:  ev,
	})
}

// tallyEndorsements folds raw votes into per-candidate counts, ignoring
// votes from students no longer in the group.
func tallyEndorsements(votes []models.Endorsement, members []models.GroupMember) []endorsementView {
	current := make(map[primitive.ObjectID]bool, len(members))
	for _, m := range members {
		current[m.StudentID] = true
	}

	counts := make(map[primitive.ObjectID]int)
	var order []primitive.ObjectID
	for _, v := range votes {
		if !current[v.EndorsedBy] {
			continue
		}
		if _, seen := counts[v.EndorsedStudentID]; !seen {
			order = append(order, v.EndorsedStudentID)
		}
		counts[v.EndorsedStudentID]++
	}

	out := make([]endorsementView, 0, len(order))
	for _, id := range order {
		out = append(out, endorsementView{
			CandidateID: id,
			Votes:       counts[id],
			Needed:      len(members),
		})
	}
	return out
}

// ServeMine handles GET /groups/mine: the caller's own group view, or 404
// when they are solo.
func (h *Handler) ServeMine(w http.ResponseWriter, r *http.Request) {
	s, ok := h.requireStudent(w, r)
	if !ok {
		return
	}

	m, err := h.Members.GetByStudent(r.Context(), s.ID)
	if err != nil {
		apiutil.WriteError(w, h.Log, faults.NotFound("you are not in a group"))
		return
	}

	rctx := chi.RouteContext(r.Context())
	if rctx != nil {
		rctx.URLParams.Add("groupID", m.GroupID.Hex())
	}
	h.ServeView(w, r)
}
