// internal/app/store/invites/invitestore.go
package invitestore

import (
	"context"
	"errors"
	"time"

	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/hallmatch/hallmatch/internal/domain/models"
)

type Store struct {
	c *mongo.Collection
}

var ErrPendingInviteExists = errors.New("a pending invite for this student already exists on the group")

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("invites")}
}

// Create inserts a pending invite. The partial unique index rejects a
// second pending invite for the same (group, student).
func (s *Store) Create(ctx context.Context, inv models.Invite) (models.Invite, error) {
	now := time.Now().UTC()
	inv.ID = primitive.NewObjectID()
	inv.Status = models.ConsentPending
	inv.Token = uuid.NewString()
	inv.CreatedAt = now
	inv.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, inv); err != nil {
		if wafflemongo.IsDup(err) {
			return models.Invite{}, ErrPendingInviteExists
		}
		return models.Invite{}, err
	}
	return inv, nil
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Invite, error) {
	var inv models.Invite
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&inv); err != nil {
		return models.Invite{}, err
	}
	return inv, nil
}

// UpdateStatus moves an invite to a new status.
func (s *Store) UpdateStatus(ctx context.Context, id primitive.ObjectID, status string) error {
	_, err := s.c.UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"status":     status,
		"updated_at": time.Now().UTC(),
	}})
	return err
}

// ListPendingByGroup returns a group's open invites.
func (s *Store) ListPendingByGroup(ctx context.Context, groupID primitive.ObjectID) ([]models.Invite, error) {
	cur, err := s.c.Find(ctx, bson.M{"group_id": groupID, "status": models.ConsentPending})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var invites []models.Invite
	if err := cur.All(ctx, &invites); err != nil {
		return nil, err
	}
	return invites, nil
}

// ListPendingForStudent returns a student's incoming open invites.
func (s *Store) ListPendingForStudent(ctx context.Context, studentID primitive.ObjectID) ([]models.Invite, error) {
	cur, err := s.c.Find(ctx, bson.M{"student_id": studentID, "status": models.ConsentPending})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var invites []models.Invite
	if err := cur.All(ctx, &invites); err != nil {
		return nil, err
	}
	return invites, nil
}

// ExpireByGroup force-expires every pending invite on a group (merge,
// dissolution). Returns the number flipped.
func (s *Store) ExpireByGroup(ctx context.Context, groupID primitive.ObjectID) (int64, error) {
	res, err := s.c.UpdateMany(ctx,
		bson.M{"group_id": groupID, "status": models.ConsentPending},
		bson.M{"$set": bson.M{"status": models.ConsentExpired, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}
