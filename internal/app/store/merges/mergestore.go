// internal/app/store/merges/mergestore.go
package mergestore

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/hallmatch/hallmatch/internal/domain/models"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("merge_requests")}
}

// Create inserts a pending merge proposal.
func (s *Store) Create(ctx context.Context, mr models.MergeRequest) (models.MergeRequest, error) {
	now := time.Now().UTC()
	mr.ID = primitive.NewObjectID()
	mr.Status = models.ConsentPending
	mr.Token = uuid.NewString()
	mr.CreatedAt = now
	mr.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, mr); err != nil {
		return models.MergeRequest{}, err
	}
	return mr, nil
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.MergeRequest, error) {
	var mr models.MergeRequest
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&mr); err != nil {
		return models.MergeRequest{}, err
	}
	return mr, nil
}

// SetApproval flips one side's approval flag.
func (s *Store) SetApproval(ctx context.Context, id primitive.ObjectID, fromSide bool) error {
	field := "to_leader_approved"
	if fromSide {
		field = "from_leader_approved"
	}
	_, err := s.c.UpdateByID(ctx, id, bson.M{"$set": bson.M{
		field:        true,
		"updated_at": time.Now().UTC(),
	}})
	return err
}

// UpdateStatus moves a proposal to a new status.
func (s *Store) UpdateStatus(ctx context.Context, id primitive.ObjectID, status string) error {
	_, err := s.c.UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"status":     status,
		"updated_at": time.Now().UTC(),
	}})
	return err
}

// ListPendingByGroup returns open proposals in either direction for a group.
func (s *Store) ListPendingByGroup(ctx context.Context, groupID primitive.ObjectID) ([]models.MergeRequest, error) {
	cur, err := s.c.Find(ctx, bson.M{
		"status": models.ConsentPending,
		"$or": []bson.M{
			{"from_group_id": groupID},
			{"to_group_id": groupID},
		},
	})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var proposals []models.MergeRequest
	if err := cur.All(ctx, &proposals); err != nil {
		return nil, err
	}
	return proposals, nil
}

// ExpireByGroup force-expires every pending proposal touching a group.
func (s *Store) ExpireByGroup(ctx context.Context, groupID primitive.ObjectID) (int64, error) {
	res, err := s.c.UpdateMany(ctx,
		bson.M{
			"status": models.ConsentPending,
			"$or": []bson.M{
				{"from_group_id": groupID},
				{"to_group_id": groupID},
			},
		},
		bson.M{"$set": bson.M{"status": models.ConsentExpired, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}
