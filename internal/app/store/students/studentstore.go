// internal/app/store/students/studentstore.go
package studentstore

import (
	"context"
	"time"

	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/hallmatch/hallmatch/internal/domain/models"
)

// Store reads the roster that organization admin tooling imports. Roster
// writes (CSV import, claiming) happen upstream; this service only needs
// Create for fixtures and the occasional survey update.
type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("students")}
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Student, error) {
	var st models.Student
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&st); err != nil {
		return models.Student{}, err
	}
	return st, nil
}

func (s *Store) Create(ctx context.Context, st models.Student) (models.Student, error) {
	now := time.Now().UTC()
	st.ID = primitive.NewObjectID()
	st.FullNameCI = text.Fold(st.FullName)
	st.CreatedAt = now
	st.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, st); err != nil {
		return models.Student{}, err
	}
	return st, nil
}

// ListByOrg returns an organization's roster, name-ordered.
func (s *Store) ListByOrg(ctx context.Context, orgID primitive.ObjectID) ([]models.Student, error) {
	cur, err := s.c.Find(ctx, bson.M{"organization_id": orgID},
		options.Find().SetSort(bson.D{{Key: "full_name_ci", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var students []models.Student
	if err := cur.All(ctx, &students); err != nil {
		return nil, err
	}
	return students, nil
}

// ListClaimedByOrg returns the claimed roster entries, the population the
// match endpoint ranks.
func (s *Store) ListClaimedByOrg(ctx context.Context, orgID primitive.ObjectID) ([]models.Student, error) {
	cur, err := s.c.Find(ctx, bson.M{"organization_id": orgID, "claimed": true})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var students []models.Student
	if err := cur.All(ctx, &students); err != nil {
		return nil, err
	}
	return students, nil
}

// UpdateSurvey replaces the student's survey answers and personality
// profile. Answers are sanitized at the API boundary before this runs.
func (s *Store) UpdateSurvey(ctx context.Context, id primitive.ObjectID, answers map[string]string, p *models.PersonalityProfile) error {
	set := bson.M{
		"survey_answers": answers,
		"updated_at":     time.Now().UTC(),
	}
	if p != nil {
		set["personality"] = p
	}
	_, err := s.c.UpdateByID(ctx, id, bson.M{"$set": set})
	return err
}

// UpdatePreferences replaces the student's preferred room sizes.
func (s *Store) UpdatePreferences(ctx context.Context, id primitive.ObjectID, sizes []int) error {
	_, err := s.c.UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"preferred_room_sizes": sizes,
		"updated_at":           time.Now().UTC(),
	}})
	return err
}
