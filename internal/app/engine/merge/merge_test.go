// internal/app/engine/merge/merge_test.go
package merge

import (
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"github.com/hallmatch/hallmatch/internal/app/engine/reservation"
	"github.com/hallmatch/hallmatch/internal/app/system/faults"
	"github.com/hallmatch/hallmatch/internal/domain/models"
	"github.com/hallmatch/hallmatch/internal/testutil"
)

func newEngine(t *testing.T) (*Engine, *testutil.Fixtures) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	return New(db, zap.NewNop(), reservation.New(db, zap.NewNop())), fx
}

func intp(v int) *int { return &v }

func TestProposeRequiresLeader(t *testing.T) {
	e, fx := newEngine(t)
	ctx := testutil.TestContext(t)

	orgID := fx.OrgID()
	from, _, fb := fx.GroupPair(ctx, orgID, intp(4))
	to, _, _ := fx.GroupPair(ctx, orgID, intp(4))

	if _, err := e.Propose(ctx, from.ID, to.ID, fb.ID); !faults.IsForbidden(err) {
		t.Fatalf("err = %v, want forbidden", err)
	}
}

func TestProposeAutoApprovesProposerSide(t *testing.T) {
	e, fx := newEngine(t)
	ctx := testutil.TestContext(t)

	orgID := fx.OrgID()
	from, fa, _ := fx.GroupPair(ctx, orgID, intp(4))
	to, _, _ := fx.GroupPair(ctx, orgID, intp(4))

	mr, err := e.Propose(ctx, from.ID, to.ID, fa.ID)
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}
	if !mr.FromLeaderApproved {
		t.Fatal("proposing leader's side should be pre-approved")
	}
	if mr.ToLeaderApproved {
		t.Fatal("target side must start unapproved")
	}
	if mr.Status != models.ConsentPending {
		t.Fatalf("status = %q, want pending", mr.Status)
	}
}

func TestProposeConflictingTargets(t *testing.T) {
	e, fx := newEngine(t)
	ctx := testutil.TestContext(t)

	orgID := fx.OrgID()
	from, fa, _ := fx.GroupPair(ctx, orgID, intp(4))
	to, _, _ := fx.GroupPair(ctx, orgID, intp(6))

	if _, err := e.Propose(ctx, from.ID, to.ID, fa.ID); !faults.IsConflict(err) {
		t.Fatalf("err = %v, want conflict for mismatched targets", err)
	}
}

func TestProposeOverCapacity(t *testing.T) {
	e, fx := newEngine(t)
	ctx := testutil.TestContext(t)

	orgID := fx.OrgID()
	from, fa, _ := fx.GroupPair(ctx, orgID, intp(3))
	to, _, _ := fx.GroupPair(ctx, orgID, nil) // 2 + 2 > 3

	if _, err := e.Propose(ctx, from.ID, to.ID, fa.ID); !faults.IsConflict(err) {
		t.Fatalf("err = %v, want conflict for combined size over target", err)
	}
}

func TestSecondApprovalExecutesMerge(t *testing.T) {
	e, fx := newEngine(t)
	ctx := testutil.TestContext(t)

	orgID := fx.OrgID()
	fx.CreateRoomConfig(ctx, orgID, 4, 2, 0.5, 48)
	from, fa, _ := fx.GroupPair(ctx, orgID, intp(4))
	to, ta, tb := fx.GroupPair(ctx, orgID, intp(4))

	mr, err := e.Propose(ctx, from.ID, to.ID, fa.ID)
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}

	out, err := e.Approve(ctx, mr.ID, ta.ID)
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if out.Status != models.ConsentAccepted {
		t.Fatalf("status = %q, want accepted", out.Status)
	}

	// All four students now live in the surviving group.
	if n := fx.MemberCount(ctx, from.ID); n != 4 {
		t.Fatalf("surviving member count = %d, want 4", n)
	}
	gone, err := fx.DB().Collection("groups").CountDocuments(ctx, bson.M{"_id": to.ID})
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if gone != 0 {
		t.Fatal("absorbed group should be deleted")
	}

	// Absorbed leader is now a plain member; survivor's leader unchanged.
	got := fx.GetGroup(ctx, from.ID)
	if got.LeaderID != fa.ID {
		t.Fatal("surviving leader changed")
	}
	// 4 of 4: merged group reserves and auto-locks.
	if got.Status != models.GroupLocked {
		t.Fatalf("merged status = %q, want locked", got.Status)
	}

	var m models.GroupMember
	if err := fx.DB().Collection("group_members").FindOne(ctx,
		bson.M{"student_id": tb.ID}).Decode(&m); err != nil {
		t.Fatalf("absorbed member lookup: %v", err)
	}
	if m.GroupID != from.ID {
		t.Fatal("absorbed member not moved")
	}
}

func TestApproveIsIdempotentPerSide(t *testing.T) {
	e, fx := newEngine(t)
	ctx := testutil.TestContext(t)

	orgID := fx.OrgID()
	from, fa, _ := fx.GroupPair(ctx, orgID, intp(6))
	to, _, _ := fx.GroupPair(ctx, orgID, intp(6))

	mr, err := e.Propose(ctx, from.ID, to.ID, fa.ID)
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}

	// The from-leader re-approving their own side must not execute the
	// merge or error.
	out, err := e.Approve(ctx, mr.ID, fa.ID)
	if err != nil {
		t.Fatalf("re-approve: %v", err)
	}
	if out.Status != models.ConsentPending {
		t.Fatalf("status = %q, want still pending", out.Status)
	}
}

func TestApproveByOutsiderForbidden(t *testing.T) {
	e, fx := newEngine(t)
	ctx := testutil.TestContext(t)

	orgID := fx.OrgID()
	from, fa, fb := fx.GroupPair(ctx, orgID, intp(6))
	to, _, _ := fx.GroupPair(ctx, orgID, intp(6))

	mr, err := e.Propose(ctx, from.ID, to.ID, fa.ID)
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}
	if _, err := e.Approve(ctx, mr.ID, fb.ID); !faults.IsForbidden(err) {
		t.Fatalf("err = %v, want forbidden for non-leader", err)
	}
}

func TestExpiredProposalFlipsOnApproval(t *testing.T) {
	e, fx := newEngine(t)
	ctx := testutil.TestContext(t)

	orgID := fx.OrgID()
	from, fa, _ := fx.GroupPair(ctx, orgID, intp(6))
	to, ta, _ := fx.GroupPair(ctx, orgID, intp(6))

	mr, err := e.Propose(ctx, from.ID, to.ID, fa.ID)
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}
	past := time.Now().UTC().Add(-time.Hour)
	if _, err := fx.DB().Collection("merge_requests").UpdateByID(ctx, mr.ID,
		bson.M{"$set": bson.M{"expires_at": past}}); err != nil {
		t.Fatalf("backdate proposal: %v", err)
	}

	if _, err := e.Approve(ctx, mr.ID, ta.ID); !faults.IsConflict(err) {
		t.Fatalf("err = %v, want conflict", err)
	}

	var got models.MergeRequest
	if err := fx.DB().Collection("merge_requests").FindOne(ctx, bson.M{"_id": mr.ID}).Decode(&got); err != nil {
		t.Fatalf("reload proposal: %v", err)
	}
	if got.Status != models.ConsentExpired {
		t.Fatalf("status = %q, want expired", got.Status)
	}
}

func TestDecline(t *testing.T) {
	e, fx := newEngine(t)
	ctx := testutil.TestContext(t)

	orgID := fx.OrgID()
	from, fa, _ := fx.GroupPair(ctx, orgID, intp(6))
	to, ta, tb := fx.GroupPair(ctx, orgID, intp(6))

	mr, err := e.Propose(ctx, from.ID, to.ID, fa.ID)
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}

	if err := e.Decline(ctx, mr.ID, tb.ID); !faults.IsForbidden(err) {
		t.Fatalf("member decline: err = %v, want forbidden", err)
	}
	if err := e.Decline(ctx, mr.ID, ta.ID); err != nil {
		t.Fatalf("Decline: %v", err)
	}
	if err := e.Decline(ctx, mr.ID, ta.ID); !faults.IsConflict(err) {
		t.Fatalf("double decline: err = %v, want conflict", err)
	}
}

func TestOnlyOnePendingProposalPerGroup(t *testing.T) {
	e, fx := newEngine(t)
	ctx := testutil.TestContext(t)

	orgID := fx.OrgID()
	from, fa, _ := fx.GroupPair(ctx, orgID, intp(6))
	to, _, _ := fx.GroupPair(ctx, orgID, intp(6))
	third, ca, _ := fx.GroupPair(ctx, orgID, intp(6))

	if _, err := e.Propose(ctx, from.ID, to.ID, fa.ID); err != nil {
		t.Fatalf("Propose: %v", err)
	}
	if _, err := e.Propose(ctx, third.ID, to.ID, ca.ID); !faults.IsConflict(err) {
		t.Fatalf("err = %v, want conflict while a proposal is open", err)
	}
}
