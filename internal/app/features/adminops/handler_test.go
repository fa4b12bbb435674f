// internal/app/features/adminops/handler_test.go
package adminops

import (
	"encoding/json"
	"net/http"
	"testing"

	"go.uber.org/zap"

	"github.com/hallmatch/hallmatch/internal/app/engine/finalize"
	"github.com/hallmatch/hallmatch/internal/app/engine/lifecycle"
	"github.com/hallmatch/hallmatch/internal/app/engine/reservation"
	"github.com/hallmatch/hallmatch/internal/domain/models"
	"github.com/hallmatch/hallmatch/internal/testutil"
)

func newTestHandler(t *testing.T) (*Handler, *testutil.Fixtures) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	log := zap.NewNop()
	rsv := reservation.New(db, log)
	life := lifecycle.New(db, log, rsv)
	fin := finalize.New(db, log, rsv, life, 4)
	return NewHandler(db, log, fin), fx
}

func TestFinalizeRequiresAdmin(t *testing.T) {
	h, fx := newTestHandler(t)
	ctx := testutil.TestContext(t)
	r := Routes(h)

	orgID := fx.OrgID()
	st := fx.CreateStudent(ctx, orgID, "Regular Student")

	req := testutil.NewAuthenticatedRequest(http.MethodPost, "/finalize",
		testutil.StudentIdentity(st.ID, orgID))
	rec := testutil.NewRecorder()
	r.ServeHTTP(rec, req)
	rec.AssertStatus(t, http.StatusForbidden)

	req = testutil.NewRequest(http.MethodPost, "/finalize")
	rec = testutil.NewRecorder()
	r.ServeHTTP(rec, req)
	rec.AssertStatus(t, http.StatusUnauthorized)
}

func TestFinalizeRunsAndReports(t *testing.T) {
	h, fx := newTestHandler(t)
	ctx := testutil.TestContext(t)
	r := Routes(h)

	orgID := fx.OrgID()
	fx.CreateRoomConfig(ctx, orgID, 2, 3, 0.5, 48)
	fx.CreateStudentWithSurvey(ctx, orgID, "Solo One",
		map[string]string{"sleep_schedule": "night_owl"}, nil)
	fx.CreateStudentWithSurvey(ctx, orgID, "Solo Two",
		map[string]string{"sleep_schedule": "night_owl"}, nil)

	req := testutil.NewAuthenticatedRequest(http.MethodPost, "/finalize",
		testutil.AdminIdentity(orgID))
	rec := testutil.NewRecorder()
	r.ServeHTTP(rec, req)
	rec.AssertStatus(t, http.StatusOK)

	var rep finalize.Report
	if err := json.Unmarshal(rec.Body.Bytes(), &rep); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if rep.Placed != 2 {
		t.Fatalf("Placed = %d, want 2", rep.Placed)
	}
}

func TestRoomConfigEndpoints(t *testing.T) {
	h, fx := newTestHandler(t)
	r := Routes(h)

	orgID := fx.OrgID()

	body := `{"room_size":4,"total_rooms":10,"reservation_threshold_percent":0.5,"grace_period_hours":48}`
	req := testutil.WithStudent(testutil.NewJSONRequest(http.MethodPost, "/roomconfigs", body),
		testutil.AdminIdentity(orgID))
	rec := testutil.NewRecorder()
	r.ServeHTTP(rec, req)
	rec.AssertStatus(t, http.StatusCreated)

	var rc models.RoomConfig
	if err := json.Unmarshal(rec.Body.Bytes(), &rc); err != nil {
		t.Fatalf("decode config: %v", err)
	}
	if rc.RoomSize != 4 || rc.TotalRooms != 10 {
		t.Fatalf("config = %+v", rc)
	}

	req = testutil.NewAuthenticatedRequest(http.MethodGet, "/roomconfigs",
		testutil.AdminIdentity(orgID))
	rec = testutil.NewRecorder()
	r.ServeHTTP(rec, req)
	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, rc.ID.Hex())
	rec.AssertContains(t, `"rooms_held":0`)
}

func TestCreateRoomConfigValidation(t *testing.T) {
	h, fx := newTestHandler(t)
	r := Routes(h)

	orgID := fx.OrgID()

	for _, body := range []string{
		`{"room_size":0,"total_rooms":1,"reservation_threshold_percent":0.5,"grace_period_hours":0}`,
		`{"room_size":2,"total_rooms":1,"reservation_threshold_percent":1.5,"grace_period_hours":0}`,
		`{"room_size":2,"total_rooms":1,"reservation_threshold_percent":0.5,"grace_period_hours":-1}`,
	} {
		req := testutil.WithStudent(testutil.NewJSONRequest(http.MethodPost, "/roomconfigs", body),
			testutil.AdminIdentity(orgID))
		rec := testutil.NewRecorder()
		r.ServeHTTP(rec, req)
		rec.AssertStatus(t, http.StatusBadRequest)
	}
}

func TestGroupOverview(t *testing.T) {
	h, fx := newTestHandler(t)
	ctx := testutil.TestContext(t)
	r := Routes(h)

	orgID := fx.OrgID()
	g, _, _ := fx.GroupPair(ctx, orgID, nil)

	req := testutil.NewAuthenticatedRequest(http.MethodGet, "/groups",
		testutil.AdminIdentity(orgID))
	rec := testutil.NewRecorder()
	r.ServeHTTP(rec, req)
	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, g.ID.Hex())
	rec.AssertContains(t, `"member_count":2`)
}
