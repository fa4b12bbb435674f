// internal/testutil/fixtures.go
package testutil

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/dalemusser/waffle/pantry/text"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/hallmatch/hallmatch/internal/domain/models"
)

// WithChiURLParam adds a chi URL parameter to the request context.
// Use this in handler tests that need to access chi.URLParam values.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// OrgID returns a fresh organization id. Organizations themselves are
// managed upstream; the engine only ever sees the id.
func (f *Fixtures) OrgID() primitive.ObjectID {
	return primitive.NewObjectID()
}

// CreateStudent creates a claimed roster entry.
func (f *Fixtures) CreateStudent(ctx context.Context, orgID primitive.ObjectID, name string) models.Student {
	f.t.Helper()

	now := time.Now().UTC()
	st := models.Student{
		ID:             primitive.NewObjectID(),
		OrganizationID: orgID,
		FullName:       name,
		FullNameCI:     text.Fold(name),
		Claimed:        true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if _, err := f.db.Collection("students").InsertOne(ctx, st); err != nil {
		f.t.Fatalf("create test student: %v", err)
	}
	return st
}

// CreateStudentWithSurvey creates a claimed student with survey answers
// and an optional personality profile.
func (f *Fixtures) CreateStudentWithSurvey(ctx context.Context, orgID primitive.ObjectID, name string, answers map[string]string, p *models.PersonalityProfile) models.Student {
	f.t.Helper()

	st := f.CreateStudent(ctx, orgID, name)
	st.SurveyAnswers = answers
	st.Personality = p
	_, err := f.db.Collection("students").UpdateByID(ctx, st.ID, bson.M{
		"$set": bson.M{"survey_answers": answers, "personality": p},
	})
	if err != nil {
		f.t.Fatalf("set test survey: %v", err)
	}
	return st
}

// CreateRoomConfig creates a room config for the organization.
func (f *Fixtures) CreateRoomConfig(ctx context.Context, orgID primitive.ObjectID, roomSize, totalRooms int, thresholdPct float64, graceHours int) models.RoomConfig {
	f.t.Helper()

	now := time.Now().UTC()
	rc := models.RoomConfig{
		ID:                          primitive.NewObjectID(),
		OrganizationID:              orgID,
		RoomSize:                    roomSize,
		TotalRooms:                  totalRooms,
		ReservationThresholdPercent: thresholdPct,
		GracePeriodHours:            graceHours,
		CreatedAt:                   now,
		UpdatedAt:                   now,
	}
	if _, err := f.db.Collection("room_configs").InsertOne(ctx, rc); err != nil {
		f.t.Fatalf("create test room config: %v", err)
	}
	return rc
}

// CreateGroup creates a group led by the given student, with the student
// as its only member.
func (f *Fixtures) CreateGroup(ctx context.Context, orgID, leaderID primitive.ObjectID, target *int) models.Group {
	f.t.Helper()

	now := time.Now().UTC()
	g := models.Group{
		ID:             primitive.NewObjectID(),
		OrganizationID: orgID,
		LeaderID:       leaderID,
		TargetRoomSize: target,
		Status:         models.GroupUnreserved,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if _, err := f.db.Collection("groups").InsertOne(ctx, g); err != nil {
		f.t.Fatalf("create test group: %v", err)
	}
	f.AddMember(ctx, g.ID, leaderID, orgID)
	return g
}

// AddMember inserts a membership document directly.
func (f *Fixtures) AddMember(ctx context.Context, groupID, studentID, orgID primitive.ObjectID) {
	f.t.Helper()

	doc := bson.M{
		"group_id":   groupID,
		"student_id": studentID,
		"org_id":     orgID,
		"created_at": time.Now().UTC(),
	}
	if _, err := f.db.Collection("group_members").InsertOne(ctx, doc); err != nil {
		f.t.Fatalf("create test membership: %v", err)
	}
}

// GroupPair is a convenience: two students in a fresh group, first as
// leader.
func (f *Fixtures) GroupPair(ctx context.Context, orgID primitive.ObjectID, target *int) (models.Group, models.Student, models.Student) {
	f.t.Helper()

	a := f.CreateStudent(ctx, orgID, "Pair Leader")
	b := f.CreateStudent(ctx, orgID, "Pair Partner")
	g := f.CreateGroup(ctx, orgID, a.ID, target)
	f.AddMember(ctx, g.ID, b.ID, orgID)
	return g, a, b
}

// GetGroup reloads a group.
func (f *Fixtures) GetGroup(ctx context.Context, id primitive.ObjectID) models.Group {
	f.t.Helper()

	var g models.Group
	if err := f.db.Collection("groups").FindOne(ctx, bson.M{"_id": id}).Decode(&g); err != nil {
		f.t.Fatalf("reload test group: %v", err)
	}
	return g
}

// MemberCount counts a group's members.
func (f *Fixtures) MemberCount(ctx context.Context, groupID primitive.ObjectID) int {
	f.t.Helper()

	n, err := f.db.Collection("group_members").CountDocuments(ctx, bson.M{"group_id": groupID})
	if err != nil {
		f.t.Fatalf("count test members: %v", err)
	}
	return int(n)
}
