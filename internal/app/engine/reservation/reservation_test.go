// internal/app/engine/reservation/reservation_test.go
package reservation

import (
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"github.com/hallmatch/hallmatch/internal/domain/models"
	"github.com/hallmatch/hallmatch/internal/testutil"
)

func TestThreshold(t *testing.T) {
	tests := []struct {
		name string
		size int
		pct  float64
		want int
	}{
		{"half of four", 4, 0.5, 2},
		{"half of five rounds up", 5, 0.5, 3},
		{"full occupancy", 2, 1.0, 2},
		{"tiny percent floors at one", 6, 0.01, 1},
		{"over one hundred percent clamps", 4, 1.5, 4},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := models.RoomConfig{RoomSize: tc.size, ReservationThresholdPercent: tc.pct}
			if got := Threshold(cfg); got != tc.want {
				t.Fatalf("Threshold = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestReevaluateClaimsAtThreshold(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := testutil.TestContext(t)
	fx := testutil.NewFixtures(t, db)
	eng := New(db, zap.NewNop())

	orgID := fx.OrgID()
	cfg := fx.CreateRoomConfig(ctx, orgID, 4, 2, 0.5, 48)
	g, _, _ := fx.GroupPair(ctx, orgID, intp(4))

	if err := eng.Reevaluate(ctx, g.ID); err != nil {
		t.Fatalf("Reevaluate: %v", err)
	}

	got := fx.GetGroup(ctx, g.ID)
	if got.Status != models.GroupReserved {
		t.Fatalf("status = %q, want reserved", got.Status)
	}
	if got.ReservedRoomConfigID == nil || *got.ReservedRoomConfigID != cfg.ID {
		t.Fatal("reserved config not recorded")
	}
	if got.ReservedAt == nil {
		t.Fatal("reserved_at not set")
	}
}

func TestReevaluateBelowThresholdStaysUnreserved(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := testutil.TestContext(t)
	fx := testutil.NewFixtures(t, db)
	eng := New(db, zap.NewNop())

	orgID := fx.OrgID()
	fx.CreateRoomConfig(ctx, orgID, 6, 2, 0.5, 48)
	g, _, _ := fx.GroupPair(ctx, orgID, intp(6)) // 2 of 6, threshold 3

	if err := eng.Reevaluate(ctx, g.ID); err != nil {
		t.Fatalf("Reevaluate: %v", err)
	}
	if got := fx.GetGroup(ctx, g.ID); got.Status != models.GroupUnreserved {
		t.Fatalf("status = %q, want unreserved", got.Status)
	}
}

func TestReevaluateWaitlistsWhenInventoryExhausted(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := testutil.TestContext(t)
	fx := testutil.NewFixtures(t, db)
	eng := New(db, zap.NewNop())

	orgID := fx.OrgID()
	fx.CreateRoomConfig(ctx, orgID, 4, 1, 0.5, 48)

	first, _, _ := fx.GroupPair(ctx, orgID, intp(4))
	if err := eng.Reevaluate(ctx, first.ID); err != nil {
		t.Fatalf("Reevaluate first: %v", err)
	}

	second, _, _ := fx.GroupPair(ctx, orgID, intp(4))
	if err := eng.Reevaluate(ctx, second.ID); err != nil {
		t.Fatalf("Reevaluate second: %v", err)
	}

	if got := fx.GetGroup(ctx, first.ID); got.Status != models.GroupReserved {
		t.Fatalf("first group status = %q, want reserved", got.Status)
	}
	got := fx.GetGroup(ctx, second.ID)
	if got.Status != models.GroupWaitlisted {
		t.Fatalf("second group status = %q, want waitlisted", got.Status)
	}
	if got.ReservedRoomConfigID != nil {
		t.Fatal("waitlisted group must not hold a config")
	}
}

func TestFlexibleGroupClaimsSmallestFit(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := testutil.TestContext(t)
	fx := testutil.NewFixtures(t, db)
	eng := New(db, zap.NewNop())

	orgID := fx.OrgID()
	small := fx.CreateRoomConfig(ctx, orgID, 2, 5, 0.5, 48)
	fx.CreateRoomConfig(ctx, orgID, 4, 5, 0.5, 48)

	g, _, _ := fx.GroupPair(ctx, orgID, nil)
	if err := eng.Reevaluate(ctx, g.ID); err != nil {
		t.Fatalf("Reevaluate: %v", err)
	}

	got := fx.GetGroup(ctx, g.ID)
	if got.ReservedRoomConfigID == nil || *got.ReservedRoomConfigID != small.ID {
		t.Fatal("flexible pair should claim the 2-person config")
	}
	// 2 members in a 2-person room is full: auto-lock.
	if got.Status != models.GroupLocked {
		t.Fatalf("status = %q, want locked at capacity", got.Status)
	}
}

func TestAutoLockAtCapacity(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := testutil.TestContext(t)
	fx := testutil.NewFixtures(t, db)
	eng := New(db, zap.NewNop())

	orgID := fx.OrgID()
	fx.CreateRoomConfig(ctx, orgID, 2, 3, 0.5, 48)
	g, _, _ := fx.GroupPair(ctx, orgID, intp(2))

	if err := eng.Reevaluate(ctx, g.ID); err != nil {
		t.Fatalf("Reevaluate: %v", err)
	}
	got := fx.GetGroup(ctx, g.ID)
	if got.Status != models.GroupLocked {
		t.Fatalf("status = %q, want locked", got.Status)
	}
	if got.ReservedAt == nil {
		t.Fatal("auto-lock should keep the reservation timestamp")
	}
}

func TestAutoLockPinsConfigWhenInventoryExhausted(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := testutil.TestContext(t)
	fx := testutil.NewFixtures(t, db)
	eng := New(db, zap.NewNop())

	orgID := fx.OrgID()
	cfg := fx.CreateRoomConfig(ctx, orgID, 4, 1, 0.5, 48)

	fullGroup := func() models.Group {
		leader := fx.CreateStudent(ctx, orgID, "Leader")
		g := fx.CreateGroup(ctx, orgID, leader.ID, intp(4))
		for i := 0; i < 3; i++ {
			m := fx.CreateStudent(ctx, orgID, "Member")
			fx.AddMember(ctx, g.ID, m.ID, orgID)
		}
		return g
	}

	first := fullGroup()
	if err := eng.Reevaluate(ctx, first.ID); err != nil {
		t.Fatalf("Reevaluate first: %v", err)
	}
	if got := fx.GetGroup(ctx, first.ID); got.Status != models.GroupLocked {
		t.Fatalf("first group status = %q, want locked", got.Status)
	}

	// The single room is taken, but a second full group still locks and
	// keeps pointing at the config it is waiting on.
	second := fullGroup()
	if err := eng.Reevaluate(ctx, second.ID); err != nil {
		t.Fatalf("Reevaluate second: %v", err)
	}
	got := fx.GetGroup(ctx, second.ID)
	if got.Status != models.GroupLocked {
		t.Fatalf("second group status = %q, want locked", got.Status)
	}
	if got.ReservedRoomConfigID == nil || *got.ReservedRoomConfigID != cfg.ID {
		t.Fatal("locked group lost its room config")
	}
	if got.ReservedAt == nil {
		t.Fatal("locked group has no reservation timestamp")
	}
}

func TestGracePeriodStartsWhenDroppingBelowThreshold(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := testutil.TestContext(t)
	fx := testutil.NewFixtures(t, db)
	eng := New(db, zap.NewNop())

	orgID := fx.OrgID()
	fx.CreateRoomConfig(ctx, orgID, 4, 2, 0.5, 48)
	g, _, b := fx.GroupPair(ctx, orgID, intp(4))

	if err := eng.Reevaluate(ctx, g.ID); err != nil {
		t.Fatalf("Reevaluate: %v", err)
	}

	// One member leaves; the group drops below the threshold of 2.
	if _, err := db.Collection("group_members").DeleteOne(ctx,
		bson.M{"group_id": g.ID, "student_id": b.ID}); err != nil {
		t.Fatalf("remove member: %v", err)
	}
	if err := eng.Reevaluate(ctx, g.ID); err != nil {
		t.Fatalf("Reevaluate after drop: %v", err)
	}

	got := fx.GetGroup(ctx, g.ID)
	if got.Status != models.GroupReserved {
		t.Fatalf("status = %q, want reserved during grace", got.Status)
	}
	if got.ThresholdDroppedAt == nil {
		t.Fatal("grace clock not started")
	}
}

func TestGraceExpiryReleasesReservation(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := testutil.TestContext(t)
	fx := testutil.NewFixtures(t, db)
	eng := New(db, zap.NewNop())

	orgID := fx.OrgID()
	fx.CreateRoomConfig(ctx, orgID, 4, 1, 0.5, 1)
	g, _, b := fx.GroupPair(ctx, orgID, intp(4))

	if err := eng.Reevaluate(ctx, g.ID); err != nil {
		t.Fatalf("Reevaluate: %v", err)
	}
	if _, err := db.Collection("group_members").DeleteOne(ctx,
		bson.M{"group_id": g.ID, "student_id": b.ID}); err != nil {
		t.Fatalf("remove member: %v", err)
	}

	// Backdate the grace clock past the one-hour window.
	past := time.Now().UTC().Add(-2 * time.Hour)
	if _, err := db.Collection("groups").UpdateByID(ctx, g.ID,
		bson.M{"$set": bson.M{"threshold_dropped_at": past}}); err != nil {
		t.Fatalf("backdate grace clock: %v", err)
	}

	if err := eng.Reevaluate(ctx, g.ID); err != nil {
		t.Fatalf("Reevaluate after expiry: %v", err)
	}

	got := fx.GetGroup(ctx, g.ID)
	if got.Status != models.GroupUnreserved {
		t.Fatalf("status = %q, want unreserved after grace expiry", got.Status)
	}
	if got.ReservedRoomConfigID != nil {
		t.Fatal("released group must not hold a config")
	}
}

func TestGraceRecoveryClearsClock(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := testutil.TestContext(t)
	fx := testutil.NewFixtures(t, db)
	eng := New(db, zap.NewNop())

	orgID := fx.OrgID()
	fx.CreateRoomConfig(ctx, orgID, 4, 2, 0.5, 48)
	g, _, b := fx.GroupPair(ctx, orgID, intp(4))

	if err := eng.Reevaluate(ctx, g.ID); err != nil {
		t.Fatalf("Reevaluate: %v", err)
	}
	if _, err := db.Collection("group_members").DeleteOne(ctx,
		bson.M{"group_id": g.ID, "student_id": b.ID}); err != nil {
		t.Fatalf("remove member: %v", err)
	}
	if err := eng.Reevaluate(ctx, g.ID); err != nil {
		t.Fatalf("Reevaluate after drop: %v", err)
	}

	// Member returns before grace expires.
	fx.AddMember(ctx, g.ID, b.ID, orgID)
	if err := eng.Reevaluate(ctx, g.ID); err != nil {
		t.Fatalf("Reevaluate after recovery: %v", err)
	}

	got := fx.GetGroup(ctx, g.ID)
	if got.Status != models.GroupReserved {
		t.Fatalf("status = %q, want reserved", got.Status)
	}
	if got.ThresholdDroppedAt != nil {
		t.Fatal("grace clock should be cleared on recovery")
	}
}

func TestReleaseTriggersWaitlistPromotion(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := testutil.TestContext(t)
	fx := testutil.NewFixtures(t, db)
	eng := New(db, zap.NewNop())

	orgID := fx.OrgID()
	fx.CreateRoomConfig(ctx, orgID, 4, 1, 0.5, 1)

	holder, _, hb := fx.GroupPair(ctx, orgID, intp(4))
	if err := eng.Reevaluate(ctx, holder.ID); err != nil {
		t.Fatalf("Reevaluate holder: %v", err)
	}

	waiter, _, _ := fx.GroupPair(ctx, orgID, intp(4))
	if err := eng.Reevaluate(ctx, waiter.ID); err != nil {
		t.Fatalf("Reevaluate waiter: %v", err)
	}
	if got := fx.GetGroup(ctx, waiter.ID); got.Status != models.GroupWaitlisted {
		t.Fatalf("waiter status = %q, want waitlisted", got.Status)
	}

	// Holder collapses below threshold with an expired grace window.
	if _, err := db.Collection("group_members").DeleteOne(ctx,
		bson.M{"group_id": holder.ID, "student_id": hb.ID}); err != nil {
		t.Fatalf("remove member: %v", err)
	}
	past := time.Now().UTC().Add(-2 * time.Hour)
	if _, err := db.Collection("groups").UpdateByID(ctx, holder.ID,
		bson.M{"$set": bson.M{"threshold_dropped_at": past}}); err != nil {
		t.Fatalf("backdate grace clock: %v", err)
	}
	if err := eng.Reevaluate(ctx, holder.ID); err != nil {
		t.Fatalf("Reevaluate holder after expiry: %v", err)
	}

	if got := fx.GetGroup(ctx, waiter.ID); got.Status != models.GroupReserved {
		t.Fatalf("waiter status = %q, want reserved after promotion", got.Status)
	}
}

func TestPromotionPrefersLargerThenOlder(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := testutil.TestContext(t)
	fx := testutil.NewFixtures(t, db)
	eng := New(db, zap.NewNop())

	orgID := fx.OrgID()
	cfg := fx.CreateRoomConfig(ctx, orgID, 4, 0, 0.5, 48) // no inventory yet

	smaller, _, _ := fx.GroupPair(ctx, orgID, intp(4))
	bigger, _, _ := fx.GroupPair(ctx, orgID, intp(4))
	third := fx.CreateStudent(ctx, orgID, "Third Wheel")
	fx.AddMember(ctx, bigger.ID, third.ID, orgID)

	if err := eng.Reevaluate(ctx, smaller.ID); err != nil {
		t.Fatalf("Reevaluate smaller: %v", err)
	}
	if err := eng.Reevaluate(ctx, bigger.ID); err != nil {
		t.Fatalf("Reevaluate bigger: %v", err)
	}

	// One room appears; the three-member group should take it despite being
	// created later.
	if _, err := db.Collection("room_configs").UpdateByID(ctx, cfg.ID,
		bson.M{"$set": bson.M{"total_rooms": 1}}); err != nil {
		t.Fatalf("grow inventory: %v", err)
	}
	if err := eng.PromoteWaitlisted(ctx, orgID); err != nil {
		t.Fatalf("PromoteWaitlisted: %v", err)
	}

	if got := fx.GetGroup(ctx, bigger.ID); got.Status != models.GroupReserved {
		t.Fatalf("bigger group status = %q, want reserved", got.Status)
	}
	if got := fx.GetGroup(ctx, smaller.ID); got.Status != models.GroupWaitlisted {
		t.Fatalf("smaller group status = %q, want still waitlisted", got.Status)
	}
}

func TestLockedGroupIsUntouched(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := testutil.TestContext(t)
	fx := testutil.NewFixtures(t, db)
	eng := New(db, zap.NewNop())

	orgID := fx.OrgID()
	fx.CreateRoomConfig(ctx, orgID, 4, 2, 0.5, 48)
	g, _, _ := fx.GroupPair(ctx, orgID, intp(4))
	if _, err := db.Collection("groups").UpdateByID(ctx, g.ID,
		bson.M{"$set": bson.M{"status": models.GroupLocked}}); err != nil {
		t.Fatalf("lock group: %v", err)
	}

	if err := eng.Reevaluate(ctx, g.ID); err != nil {
		t.Fatalf("Reevaluate: %v", err)
	}
	if got := fx.GetGroup(ctx, g.ID); got.Status != models.GroupLocked {
		t.Fatalf("status = %q, want locked", got.Status)
	}
}

func intp(v int) *int { return &v }
