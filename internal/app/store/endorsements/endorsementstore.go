// internal/app/store/endorsements/endorsementstore.go
package endorsementstore

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
	return &Store{c: db.Collection("endorsements")}
}

// Upsert records one member's vote for a candidate. Voting twice lands on
// the same document, so a double endorsement never double-counts.
func (s *Store) Upsert(ctx context.Context, groupID, candidateID, voterID primitive.ObjectID) error {
	filter := bson.M{
		"group_id":            groupID,
		"endorsed_student_id": candidateID,
		"endorsed_by":         voterID,
	}
	update := bson.M{"$setOnInsert": bson.M{"created_at": time.Now().UTC()}}
	_, err := s.c.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	return err
}

// ListForCandidate returns the votes for a candidate on a group. Voters
// who have since left the group are filtered by the caller.
func (s *Store) ListForCandidate(ctx context.Context, groupID, candidateID primitive.ObjectID) ([]models.Endorsement, error) {
	cur, err := s.c.Find(ctx, bson.M{"group_id": groupID, "endorsed_student_id": candidateID})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var votes []models.Endorsement
	if err := cur.All(ctx, &votes); err != nil {
		return nil, err
	}
	return votes, nil
}

// ListByGroup returns every pending vote on a group (for the read model).
func (s *Store) ListByGroup(ctx context.Context, groupID primitive.ObjectID) ([]models.Endorsement, error) {
	cur, err := s.c.Find(ctx, bson.M{"group_id": groupID})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var votes []models.Endorsement
	if err := cur.All(ctx, &votes); err != nil {
		return nil, err
	}
	return votes, nil
}

// DeleteForCandidate clears all votes for a candidate on a group, used once
// the candidate joins or the group stops needing votes for them.
func (s *Store) DeleteForCandidate(ctx context.Context, groupID, candidateID primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"group_id": groupID, "endorsed_student_id": candidateID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// DeleteByGroup clears every vote on a group (dissolution, merge).
func (s *Store) DeleteByGroup(ctx context.Context, groupID primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"group_id": groupID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// DeleteByVoter discards votes cast by a member who left the group.
func (s *Store) DeleteByVoter(ctx context.Context, groupID, voterID primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"group_id": groupID, "endorsed_by": voterID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
