// internal/app/features/profile/handler_test.go
package profile

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/hallmatch/hallmatch/internal/domain/models"
	"github.com/hallmatch/hallmatch/internal/testutil"
)

func newTestHandler(t *testing.T) (*Handler, *testutil.Fixtures) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	return NewHandler(db, zap.NewNop()), testutil.NewFixtures(t, db)
}

func TestServeProfile(t *testing.T) {
	h, fx := newTestHandler(t)
	ctx := testutil.TestContext(t)
	r := Routes(h)

	orgID := fx.OrgID()
	st := fx.CreateStudent(ctx, orgID, "Dana Whitfield")

	req := testutil.NewAuthenticatedRequest(http.MethodGet, "/",
		testutil.StudentIdentity(st.ID, orgID))
	rec := testutil.NewRecorder()
	r.ServeHTTP(rec, req)

	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, "Dana Whitfield")
}

func TestUpdateSurveySanitizesAnswers(t *testing.T) {
	h, fx := newTestHandler(t)
	ctx := testutil.TestContext(t)
	r := Routes(h)

	orgID := fx.OrgID()
	st := fx.CreateStudent(ctx, orgID, "Dana Whitfield")

	body := `{"answers":{"sleep_schedule":"night_owl","notes":"<script>alert('x')</script>tidy person"}}`
	req := testutil.WithStudent(testutil.NewJSONRequest(http.MethodPut, "/survey", body),
		testutil.StudentIdentity(st.ID, orgID))
	rec := testutil.NewRecorder()
	r.ServeHTTP(rec, req)
	rec.AssertStatus(t, http.StatusOK)

	var got models.Student
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode student: %v", err)
	}
	if got.SurveyAnswers["sleep_schedule"] != "night_owl" {
		t.Fatalf("sleep_schedule = %q", got.SurveyAnswers["sleep_schedule"])
	}
	if strings.Contains(got.SurveyAnswers["notes"], "<script>") {
		t.Fatalf("notes not sanitized: %q", got.SurveyAnswers["notes"])
	}
	if !strings.Contains(got.SurveyAnswers["notes"], "tidy person") {
		t.Fatalf("plain text lost: %q", got.SurveyAnswers["notes"])
	}
}

func TestUpdateSurveyValidatesPersonality(t *testing.T) {
	h, fx := newTestHandler(t)
	ctx := testutil.TestContext(t)
	r := Routes(h)

	orgID := fx.OrgID()
	st := fx.CreateStudent(ctx, orgID, "Dana Whitfield")

	body := `{"answers":{},"personality":{"openness":150,"conscientiousness":50,"extraversion":50,"agreeableness":50,"neuroticism":50}}`
	req := testutil.WithStudent(testutil.NewJSONRequest(http.MethodPut, "/survey", body),
		testutil.StudentIdentity(st.ID, orgID))
	rec := testutil.NewRecorder()
	r.ServeHTTP(rec, req)
	rec.AssertStatus(t, http.StatusBadRequest)
}

func TestUpdatePreferences(t *testing.T) {
	h, fx := newTestHandler(t)
	ctx := testutil.TestContext(t)
	r := Routes(h)

	orgID := fx.OrgID()
	st := fx.CreateStudent(ctx, orgID, "Dana Whitfield")

	req := testutil.WithStudent(
		testutil.NewJSONRequest(http.MethodPut, "/preferences", `{"preferred_room_sizes":[2,4]}`),
		testutil.StudentIdentity(st.ID, orgID))
	rec := testutil.NewRecorder()
	r.ServeHTTP(rec, req)
	rec.AssertStatus(t, http.StatusOK)

	got, err := h.Students.GetByID(ctx, st.ID)
	if err != nil {
		t.Fatalf("reload student: %v", err)
	}
	if len(got.PreferredRoomSizes) != 2 || got.PreferredRoomSizes[0] != 2 || got.PreferredRoomSizes[1] != 4 {
		t.Fatalf("preferred sizes = %v, want [2 4]", got.PreferredRoomSizes)
	}

	req = testutil.WithStudent(
		testutil.NewJSONRequest(http.MethodPut, "/preferences", `{"preferred_room_sizes":[1]}`),
		testutil.StudentIdentity(st.ID, orgID))
	rec = testutil.NewRecorder()
	r.ServeHTTP(rec, req)
	rec.AssertStatus(t, http.StatusBadRequest)
}
