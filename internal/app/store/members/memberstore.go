// internal/app/store/members/memberstore.go
package memberstore

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

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("group_members")}
}

// ErrAlreadyInGroup is returned when the unique index on student_id rejects
// an insert. The index, not the caller's pre-check, is what enforces
// single-group membership under concurrency.
var ErrAlreadyInGroup = errors.New("student already belongs to a group")

// Add creates a membership document.
func (s *Store) Add(ctx context.Context, groupID, studentID, orgID primitive.ObjectID) error {
	doc := bson.M{
		"group_id":   groupID,
		"student_id": studentID,
		"org_id":     orgID,
		"created_at": time.Now().UTC(),
	}
	if _, err := s.c.InsertOne(ctx, doc); err != nil {
		if wafflemongo.IsDup(err) {
			return ErrAlreadyInGroup
		}
		return err
	}
	return nil
}

// Remove deletes the membership for (groupID, studentID).
// Returns the number of documents deleted (0 or 1).
func (s *Store) Remove(ctx context.Context, groupID, studentID primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteOne(ctx, bson.M{"group_id": groupID, "student_id": studentID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// GetByStudent returns the student's membership, if any.
// mongo.ErrNoDocuments means the student is solo.
func (s *Store) GetByStudent(ctx context.Context, studentID primitive.ObjectID) (models.GroupMember, error) {
	var m models.GroupMember
	if err := s.c.FindOne(ctx, bson.M{"student_id": studentID}).Decode(&m); err != nil {
		return models.GroupMember{}, err
	}
	return m, nil
}

// ListByGroup returns a group's members, stable-ordered by student id.
func (s *Store) ListByGroup(ctx context.Context, groupID primitive.ObjectID) ([]models.GroupMember, error) {
	cur, err := s.c.Find(ctx, bson.M{"group_id": groupID},
		options.Find().SetSort(bson.D{{Key: "student_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var members []models.GroupMember
	if err := cur.All(ctx, &members); err != nil {
		return nil, err
	}
	return members, nil
}

// CountByGroup returns the member count for a group.
func (s *Store) CountByGroup(ctx context.Context, groupID primitive.ObjectID) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{"group_id": groupID})
}

// DeleteByGroup removes all memberships for a group.
func (s *Store) DeleteByGroup(ctx context.Context, groupID primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"group_id": groupID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// MoveToGroup repoints every member of fromGroup at toGroup. Used by the
// merge executor inside its transaction.
func (s *Store) MoveToGroup(ctx context.Context, fromGroup, toGroup primitive.ObjectID) (int64, error) {
	res, err := s.c.UpdateMany(ctx,
		bson.M{"group_id": fromGroup},
		bson.M{"$set": bson.M{"group_id": toGroup}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// CountsPerGroup returns member counts for many groups in one aggregation.
// Used by waitlist promotion to order candidates without N queries.
func (s *Store) CountsPerGroup(ctx context.Context, groupIDs []primitive.ObjectID) (map[primitive.ObjectID]int, error) {
	result := make(map[primitive.ObjectID]int)
	if len(groupIDs) == 0 {
		return result, nil
	}

	cur, err := s.c.Aggregate(ctx, []bson.M{
		{"$match": bson.M{"group_id": bson.M{"$in": groupIDs}}},
		{"$group": bson.M{"_id": "$group_id", "n": bson.M{"$sum": 1}}},
	})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	for cur.Next(ctx) {
		var row struct {
			ID primitive.ObjectID `bson:"_id"`
			N  int                `bson:"n"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, err
		}
		result[row.ID] = row.N
	}
	return result, nil
}

// GroupedStudentIDs returns the set of students in the org that belong to
// any group. The finalizer subtracts this from the roster to find solos.
func (s *Store) GroupedStudentIDs(ctx context.Context, orgID primitive.ObjectID) (map[primitive.ObjectID]bool, error) {
	cur, err := s.c.Find(ctx, bson.M{"org_id": orgID})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	grouped := make(map[primitive.ObjectID]bool)
	for cur.Next(ctx) {
		var m models.GroupMember
		if err := cur.Decode(&m); err != nil {
			return nil, err
		}
		grouped[m.StudentID] = true
	}
	return grouped, nil
}
