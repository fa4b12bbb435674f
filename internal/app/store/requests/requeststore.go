// internal/app/store/requests/requeststore.go
package requeststore

import (
	"context"
	"errors"
	"time"

	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/hallmatch/hallmatch/internal/domain/models"
)

type Store struct {
	c *mongo.Collection
}

var ErrPendingRequestExists = errors.New("a pending request to this student already exists")

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("roommate_requests")}
}

// Create inserts a pending request. The partial unique index rejects a
// duplicate pending request in the same direction.
func (s *Store) Create(ctx context.Context, rr models.RoommateRequest) (models.RoommateRequest, error) {
	now := time.Now().UTC()
	rr.ID = primitive.NewObjectID()
	rr.Status = models.ConsentPending
	rr.Token = uuid.NewString()
	rr.CreatedAt = now
	rr.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, rr); err != nil {
		if wafflemongo.IsDup(err) {
			return models.RoommateRequest{}, ErrPendingRequestExists
		}
		return models.RoommateRequest{}, err
	}
	return rr, nil
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.RoommateRequest, error) {
	var rr models.RoommateRequest
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&rr); err != nil {
		return models.RoommateRequest{}, err
	}
	return rr, nil
}

// GetPendingBetween returns the open request from one student to another.
// mongo.ErrNoDocuments means there is none.
func (s *Store) GetPendingBetween(ctx context.Context, fromID, toID primitive.ObjectID) (models.RoommateRequest, error) {
	var rr models.RoommateRequest
	err := s.c.FindOne(ctx, bson.M{
		"from_student_id": fromID,
		"to_student_id":   toID,
		"status":          models.ConsentPending,
	}).Decode(&rr)
	if err != nil {
		return models.RoommateRequest{}, err
	}
	return rr, nil
}

// UpdateStatus moves a request to a new status.
func (s *Store) UpdateStatus(ctx context.Context, id primitive.ObjectID, status string) error {
	_, err := s.c.UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"status":     status,
		"updated_at": time.Now().UTC(),
	}})
	return err
}

// ListForStudent returns requests in both directions for a student,
// newest first.
func (s *Store) ListForStudent(ctx context.Context, studentID primitive.ObjectID) ([]models.RoommateRequest, error) {
	cur, err := s.c.Find(ctx, bson.M{
		"$or": []bson.M{
			{"from_student_id": studentID},
			{"to_student_id": studentID},
		},
	}, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var requests []models.RoommateRequest
	if err := cur.All(ctx, &requests); err != nil {
		return nil, err
	}
	return requests, nil
}
