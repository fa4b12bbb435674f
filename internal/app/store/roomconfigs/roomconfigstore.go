// internal/app/store/roomconfigs/roomconfigstore.go
package roomconfigstore

import (
	"context"
	"errors"
	"time"

	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/hallmatch/hallmatch/internal/domain/models"
)

type Store struct {
	c *mongo.Collection
}

var ErrDuplicateRoomSize = errors.New("a config for this room size already exists in the organization")

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("room_configs")}
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.RoomConfig, error) {
	var rc models.RoomConfig
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&rc); err != nil {
		return models.RoomConfig{}, err
	}
	return rc, nil
}

// GetByOrgAndSize resolves the config for a fixed target size.
func (s *Store) GetByOrgAndSize(ctx context.Context, orgID primitive.ObjectID, roomSize int) (models.RoomConfig, error) {
	var rc models.RoomConfig
	err := s.c.FindOne(ctx, bson.M{"organization_id": orgID, "room_size": roomSize}).Decode(&rc)
	if err != nil {
		return models.RoomConfig{}, err
	}
	return rc, nil
}

// ListByOrg returns an organization's configs ordered by room size
// ascending, which is the order "smallest config that fits" scans use.
func (s *Store) ListByOrg(ctx context.Context, orgID primitive.ObjectID) ([]models.RoomConfig, error) {
	cur, err := s.c.Find(ctx, bson.M{"organization_id": orgID},
		options.Find().SetSort(bson.D{{Key: "room_size", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var configs []models.RoomConfig
	if err := cur.All(ctx, &configs); err != nil {
		return nil, err
	}
	return configs, nil
}

// Create inserts a config. Config editing is admin tooling upstream; this
// exists for that tooling and for test fixtures.
func (s *Store) Create(ctx context.Context, rc models.RoomConfig) (models.RoomConfig, error) {
	now := time.Now().UTC()
	rc.ID = primitive.NewObjectID()
	rc.CreatedAt = now
	rc.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, rc); err != nil {
		if wafflemongo.IsDup(err) {
			return models.RoomConfig{}, ErrDuplicateRoomSize
		}
		return models.RoomConfig{}, err
	}
	return rc, nil
}
