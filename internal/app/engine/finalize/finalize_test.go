// internal/app/engine/finalize/finalize_test.go
package finalize

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/hallmatch/hallmatch/internal/app/engine/lifecycle"
	"github.com/hallmatch/hallmatch/internal/app/engine/reservation"
	"github.com/hallmatch/hallmatch/internal/domain/models"
	"github.com/hallmatch/hallmatch/internal/testutil"
)

func newFinalizer(t *testing.T, maxCluster int) (*Finalizer, *testutil.Fixtures) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	log := zap.NewNop()
	rsv := reservation.New(db, log)
	life := lifecycle.New(db, log, rsv)
	return New(db, log, rsv, life, maxCluster), fx
}

func intp(v int) *int { return &v }

func answers(sleep string) map[string]string {
	return map[string]string{
		"sleep_schedule":  sleep,
		"cleanliness":     "tidy",
		"noise_tolerance": "quiet",
	}
}

func TestRunTopsUpFormingGroups(t *testing.T) {
	f, fx := newFinalizer(t, 4)
	ctx := testutil.TestContext(t)

	orgID := fx.OrgID()
	fx.CreateRoomConfig(ctx, orgID, 4, 2, 0.5, 48)
	g, _, _ := fx.GroupPair(ctx, orgID, intp(4))

	fx.CreateStudentWithSurvey(ctx, orgID, "Solo One", answers("night_owl"), nil)
	fx.CreateStudentWithSurvey(ctx, orgID, "Solo Two", answers("early_bird"), nil)

	rep, err := f.Run(ctx, orgID)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.ToppedUp != 2 {
		t.Fatalf("ToppedUp = %d, want 2", rep.ToppedUp)
	}
	if n := fx.MemberCount(ctx, g.ID); n != 4 {
		t.Fatalf("member count = %d, want 4 after top-up", n)
	}
	if got := fx.GetGroup(ctx, g.ID); got.Status != models.GroupLocked {
		t.Fatalf("status = %q, want locked after finalize", got.Status)
	}
}

func TestRunClustersAndPlacesSolos(t *testing.T) {
	f, fx := newFinalizer(t, 4)
	ctx := testutil.TestContext(t)

	orgID := fx.OrgID()
	fx.CreateRoomConfig(ctx, orgID, 2, 5, 0.5, 48)

	fx.CreateStudentWithSurvey(ctx, orgID, "Night A", answers("night_owl"), nil)
	fx.CreateStudentWithSurvey(ctx, orgID, "Night B", answers("night_owl"), nil)
	fx.CreateStudentWithSurvey(ctx, orgID, "Early A", answers("early_bird"), nil)
	fx.CreateStudentWithSurvey(ctx, orgID, "Early B", answers("early_bird"), nil)

	rep, err := f.Run(ctx, orgID)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.GroupsCreated != 2 {
		t.Fatalf("GroupsCreated = %d, want 2", rep.GroupsCreated)
	}
	if rep.Placed != 4 {
		t.Fatalf("Placed = %d, want 4", rep.Placed)
	}
	if len(rep.Unplaced) != 0 {
		t.Fatalf("Unplaced = %v, want none", rep.Unplaced)
	}

	// Night owls room together: same-cluster compatibility beats mixing.
	var nightA models.Student
	if err := fx.DB().Collection("students").FindOne(ctx, bson.M{"full_name": "Night A"}).Decode(&nightA); err != nil {
		t.Fatalf("find student: %v", err)
	}
	var nightB models.Student
	if err := fx.DB().Collection("students").FindOne(ctx, bson.M{"full_name": "Night B"}).Decode(&nightB); err != nil {
		t.Fatalf("find student: %v", err)
	}
	var ma, mb models.GroupMember
	if err := fx.DB().Collection("group_members").FindOne(ctx, bson.M{"student_id": nightA.ID}).Decode(&ma); err != nil {
		t.Fatalf("membership: %v", err)
	}
	if err := fx.DB().Collection("group_members").FindOne(ctx, bson.M{"student_id": nightB.ID}).Decode(&mb); err != nil {
		t.Fatalf("membership: %v", err)
	}
	if ma.GroupID != mb.GroupID {
		t.Fatal("the two night owls should share a group")
	}
}

func TestRunReportsUnplacedWhenInventoryShort(t *testing.T) {
	f, fx := newFinalizer(t, 4)
	ctx := testutil.TestContext(t)

	orgID := fx.OrgID()
	fx.CreateRoomConfig(ctx, orgID, 2, 1, 0.5, 48)

	fx.CreateStudentWithSurvey(ctx, orgID, "Solo One", answers("night_owl"), nil)
	fx.CreateStudentWithSurvey(ctx, orgID, "Solo Two", answers("night_owl"), nil)
	fx.CreateStudentWithSurvey(ctx, orgID, "Solo Three", answers("early_bird"), nil)
	fx.CreateStudentWithSurvey(ctx, orgID, "Solo Four", answers("early_bird"), nil)

	rep, err := f.Run(ctx, orgID)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.GroupsCreated != 1 {
		t.Fatalf("GroupsCreated = %d, want 1 (single room)", rep.GroupsCreated)
	}
	if len(rep.Unplaced) != 2 {
		t.Fatalf("Unplaced = %d students, want 2", len(rep.Unplaced))
	}
}

func TestRunSingletonsForUnsurveyedStudents(t *testing.T) {
	f, fx := newFinalizer(t, 4)
	ctx := testutil.TestContext(t)

	orgID := fx.OrgID()
	fx.CreateRoomConfig(ctx, orgID, 2, 5, 0.5, 48)

	fx.CreateStudent(ctx, orgID, "No Survey A")
	fx.CreateStudent(ctx, orgID, "No Survey B")

	rep, err := f.Run(ctx, orgID)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	// Without survey data the engine does not guess at pairings.
	if rep.GroupsCreated != 2 {
		t.Fatalf("GroupsCreated = %d, want 2 singletons", rep.GroupsCreated)
	}
}

func TestRunLocksEverything(t *testing.T) {
	f, fx := newFinalizer(t, 4)
	ctx := testutil.TestContext(t)

	orgID := fx.OrgID()
	fx.CreateRoomConfig(ctx, orgID, 4, 3, 0.5, 48)
	a, _, _ := fx.GroupPair(ctx, orgID, intp(4))
	b, _, _ := fx.GroupPair(ctx, orgID, nil)

	rep, err := f.Run(ctx, orgID)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.GroupsLocked < 2 {
		t.Fatalf("GroupsLocked = %d, want at least 2", rep.GroupsLocked)
	}
	for _, id := range []primitive.ObjectID{a.ID, b.ID} {
		g := fx.GetGroup(ctx, id)
		if g.Status != models.GroupLocked {
			t.Fatalf("group %s status = %q, want locked", id.Hex(), g.Status)
		}
	}
}

func TestClusterCapRespectsLargestRoom(t *testing.T) {
	f, fx := newFinalizer(t, 6)
	_ = fx

	configs := []models.RoomConfig{{RoomSize: 2}, {RoomSize: 4}}
	if got := f.clusterCap(configs); got != 4 {
		t.Fatalf("clusterCap = %d, want 4 (largest room)", got)
	}
	if got := f.clusterCap(nil); got != 6 {
		t.Fatalf("clusterCap with no configs = %d, want configured 6", got)
	}
}
