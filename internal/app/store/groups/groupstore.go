// internal/app/store/groups/groupstore.go
package groupstore

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/hallmatch/hallmatch/internal/domain/models"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("groups")}
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Group, error) {
	var g models.Group
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&g); err != nil {
		return models.Group{}, err
	}
	return g, nil
}

// Create inserts a new group. Status defaults to unreserved; the
// reservation engine owns every later status change.
func (s *Store) Create(ctx context.Context, g models.Group) (models.Group, error) {
	now := time.Now().UTC()
	g.ID = primitive.NewObjectID()
	if g.Status == "" {
		g.Status = models.GroupUnreserved
	}
	g.CreatedAt = now
	g.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, g); err != nil {
		return models.Group{}, err
	}
	return g, nil
}

// Delete removes a group by ID. Returns the number of documents deleted (0 or 1).
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// ListByOrg returns all groups in an organization, oldest first.
func (s *Store) ListByOrg(ctx context.Context, orgID primitive.ObjectID) ([]models.Group, error) {
	cur, err := s.c.Find(ctx, bson.M{"organization_id": orgID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var groups []models.Group
	if err := cur.All(ctx, &groups); err != nil {
		return nil, err
	}
	return groups, nil
}

// CountByOrg returns the number of groups in an organization.
func (s *Store) CountByOrg(ctx context.Context, orgID primitive.ObjectID) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{"organization_id": orgID})
}

// CountHoldingConfig counts groups whose reservation occupies one unit of
// the given config's inventory (status reserved or locked).
func (s *Store) CountHoldingConfig(ctx context.Context, configID primitive.ObjectID) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{
		"reserved_room_config_id": configID,
		"status":                  bson.M{"$in": []string{models.GroupReserved, models.GroupLocked}},
	})
}

// ListWaitlistedForSize returns the waitlisted groups eligible for a room
// size: fixed-target groups aiming at it plus flexible groups. Ordering is
// left to the promotion pass, which ranks by member count.
func (s *Store) ListWaitlistedForSize(ctx context.Context, orgID primitive.ObjectID, roomSize int) ([]models.Group, error) {
	cur, err := s.c.Find(ctx, bson.M{
		"organization_id": orgID,
		"status":          models.GroupWaitlisted,
		"$or": []bson.M{
			{"target_room_size": roomSize},
			{"target_room_size": nil},
		},
	})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var groups []models.Group
	if err := cur.All(ctx, &groups); err != nil {
		return nil, err
	}
	return groups, nil
}

// SetLeader updates the leader reference.
func (s *Store) SetLeader(ctx context.Context, groupID, leaderID primitive.ObjectID) error {
	_, err := s.c.UpdateByID(ctx, groupID, bson.M{"$set": bson.M{
		"leader_id":  leaderID,
		"updated_at": time.Now().UTC(),
	}})
	return err
}
