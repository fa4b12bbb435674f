// internal/app/system/indexes/indexes.go
package indexes

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

/*
EnsureAll is called at startup. Each ensure* function is idempotent.
We aggregate errors so any problem is visible and startup can fail fast.

Two of these indexes back hard invariants and are not optional:
  - group_members uniq_members_student: a student belongs to at most one
    group, enforced at insert time rather than check-then-insert.
  - room_configs uniq_rc_org_size: at most one config per
    (organization_id, room_size).
*/
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string

	if err := ensureStudents(ctx, db); err != nil {
		problems = append(problems, "students: "+err.Error())
	}
	if err := ensureGroups(ctx, db); err != nil {
		problems = append(problems, "groups: "+err.Error())
	}
	if err := ensureGroupMembers(ctx, db); err != nil {
		problems = append(problems, "group_members: "+err.Error())
	}
	if err := ensureRoomConfigs(ctx, db); err != nil {
		problems = append(problems, "room_configs: "+err.Error())
	}
	if err := ensureEndorsements(ctx, db); err != nil {
		problems = append(problems, "endorsements: "+err.Error())
	}
	if err := ensureInvites(ctx, db); err != nil {
		problems = append(problems, "invites: "+err.Error())
	}
	if err := ensureMergeRequests(ctx, db); err != nil {
		problems = append(problems, "merge_requests: "+err.Error())
	}
	if err := ensureRoommateRequests(ctx, db); err != nil {
		problems = append(problems, "roommate_requests: "+err.Error())
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

/* -------------------------------------------------------------------------- */
/* Core helper: reconcile a set of desired indexes for one collection         */
/* -------------------------------------------------------------------------- */

type existingIndex struct {
	Name   string `bson:"name"`
	Key    bson.D `bson:"key"`
	Unique *bool  `bson:"unique,omitempty"`
}

func keySig(keys bson.D) string {
	parts := make([]string, 0, len(keys))
	for _, kv := range keys {
		parts = append(parts, fmt.Sprintf("%s:%v", kv.Key, kv.Value))
	}
	return strings.Join(parts, ", ")
}

func sameBoolPtr(a, b *bool) bool {
	av := false
	bv := false
	if a != nil {
		av = *a
	}
	if b != nil {
		bv = *b
	}
	return av == bv
}

func ensureIndexSet(ctx context.Context, coll *mongo.Collection, models []mongo.IndexModel) error {
	var errs []string

	for _, m := range models {
		var desiredName string
		var desiredUnique *bool
		if m.Options != nil {
			if m.Options.Name != nil {
				desiredName = *m.Options.Name
			}
			if m.Options.Unique != nil {
				desiredUnique = m.Options.Unique
			}
		}
		desiredSig := keySig(m.Keys.(bson.D))

		zap.L().Info("ensuring index",
			zap.String("collection", coll.Name()),
			zap.String("name", desiredName),
			zap.String("keys", desiredSig),
			zap.Bool("unique", desiredUnique != nil && *desiredUnique))

		// Load existing indexes keyed by their key signature.
		existing := map[string]existingIndex{}
		cur, err := coll.Indexes().List(ctx)
		if err == nil {
			for cur.Next(ctx) {
				var idx existingIndex
				if err := cur.Decode(&idx); err != nil {
					zap.L().Warn("failed to decode existing index",
						zap.String("collection", coll.Name()),
						zap.Error(err))
					continue
				}
				existing[keySig(idx.Key)] = idx
			}
			cur.Close(ctx)
		}

		if ex, ok := existing[desiredSig]; ok {
			if sameBoolPtr(desiredUnique, ex.Unique) {
				zap.L().Info("reusing existing index",
					zap.String("collection", coll.Name()),
					zap.String("name", ex.Name),
					zap.String("keys", desiredSig))
				continue
			}

			// Options mismatch (e.g. upgrading to unique). Drop & recreate.
			if _, err := coll.Indexes().DropOne(ctx, ex.Name); err != nil {
				errs = append(errs, fmt.Sprintf("%s(%s): drop failed: %v", coll.Name(), desiredName, err))
				continue
			}
			if _, err := coll.Indexes().CreateOne(ctx, m); err != nil {
				errs = append(errs, fmt.Sprintf("%s(%s): %v", coll.Name(), desiredName, err))
				continue
			}
			zap.L().Info("index dropped and recreated",
				zap.String("collection", coll.Name()),
				zap.String("name", desiredName),
				zap.String("keys", desiredSig))
			continue
		}

		if _, err := coll.Indexes().CreateOne(ctx, m); err != nil {
			zap.L().Warn("index ensure failed",
				zap.String("collection", coll.Name()),
				zap.String("name", desiredName),
				zap.String("keys", desiredSig),
				zap.Error(err))
			errs = append(errs, fmt.Sprintf("%s(%s): %v", coll.Name(), desiredName, err))
			continue
		}
		zap.L().Info("index ensured",
			zap.String("collection", coll.Name()),
			zap.String("name", desiredName),
			zap.String("keys", desiredSig))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

/* -------------------------------------------------------------------------- */
/* Collection-specific index sets                                             */
/* -------------------------------------------------------------------------- */

func ensureStudents(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("students")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// Per-org rosters and match listings
		{
			Keys:    bson.D{{Key: "organization_id", Value: 1}, {Key: "full_name_ci", Value: 1}, {Key: "_id", Value: 1}},
			Options: options.Index().SetName("idx_students_org_nameci__id"),
		},
		// Claimed-roster scans for the finalizer and match endpoint
		{
			Keys:    bson.D{{Key: "organization_id", Value: 1}, {Key: "claimed", Value: 1}},
			Options: options.Index().SetName("idx_students_org_claimed"),
		},
	})
}

func ensureGroups(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("groups")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// Per-org lookups and counts
		{
			Keys:    bson.D{{Key: "organization_id", Value: 1}},
			Options: options.Index().SetName("idx_groups_org"),
		},
		// Reservation-slot counting: groups holding a config, by status
		{
			Keys:    bson.D{{Key: "reserved_room_config_id", Value: 1}, {Key: "status", Value: 1}},
			Options: options.Index().SetName("idx_groups_rescfg_status"),
		},
		// Waitlist promotion scans: org + status + target size, oldest first
		{
			Keys: bson.D{
				{Key: "organization_id", Value: 1},
				{Key: "status", Value: 1},
				{Key: "target_room_size", Value: 1},
				{Key: "created_at", Value: 1},
			},
			Options: options.Index().SetName("idx_groups_org_status_target_created"),
		},
	})
}

func ensureGroupMembers(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("group_members")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// Uniqueness: a student belongs to at most one group. This is the
		// backing constraint for the single-membership invariant; engine
		// pre-checks are only for friendly error messages.
		{
			Keys:    bson.D{{Key: "student_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_members_student"),
		},
		// Fast: list group members (stable tiebreak by student_id)
		{
			Keys:    bson.D{{Key: "group_id", Value: 1}, {Key: "student_id", Value: 1}},
			Options: options.Index().SetName("idx_members_group_student"),
		},
		// Org-scoped counts for dashboards and the finalizer
		{
			Keys:    bson.D{{Key: "org_id", Value: 1}, {Key: "group_id", Value: 1}},
			Options: options.Index().SetName("idx_members_org_group"),
		},
	})
}

func ensureRoomConfigs(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("room_configs")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// Uniqueness: one config per (org, room size)
		{
			Keys:    bson.D{{Key: "organization_id", Value: 1}, {Key: "room_size", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_rc_org_size"),
		},
	})
}

func ensureEndorsements(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("endorsements")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// Uniqueness: one vote per (group, candidate, voter); endorsing
		// twice upserts onto the same document.
		{
			Keys: bson.D{
				{Key: "group_id", Value: 1},
				{Key: "endorsed_student_id", Value: 1},
				{Key: "endorsed_by", Value: 1},
			},
			Options: options.Index().SetUnique(true).SetName("uniq_endorse_group_cand_voter"),
		},
		// Tally scans per (group, candidate)
		{
			Keys:    bson.D{{Key: "group_id", Value: 1}, {Key: "endorsed_student_id", Value: 1}},
			Options: options.Index().SetName("idx_endorse_group_cand"),
		},
	})
}

func ensureInvites(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("invites")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// One pending invite per (group, student). Partial so declined and
		// expired invites do not block a re-invite.
		{
			Keys: bson.D{{Key: "group_id", Value: 1}, {Key: "student_id", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetName("uniq_invites_group_student_pending").
				SetPartialFilterExpression(bson.M{"status": "pending"}),
		},
		// Student's incoming invites
		{
			Keys:    bson.D{{Key: "student_id", Value: 1}, {Key: "status", Value: 1}},
			Options: options.Index().SetName("idx_invites_student_status"),
		},
		// Expiry sweeps
		{
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "expires_at", Value: 1}},
			Options: options.Index().SetName("idx_invites_status_expires"),
		},
	})
}

func ensureMergeRequests(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("merge_requests")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// Both-direction listings for a group
		{
			Keys:    bson.D{{Key: "from_group_id", Value: 1}, {Key: "status", Value: 1}},
			Options: options.Index().SetName("idx_merge_from_status"),
		},
		{
			Keys:    bson.D{{Key: "to_group_id", Value: 1}, {Key: "status", Value: 1}},
			Options: options.Index().SetName("idx_merge_to_status"),
		},
		// Expiry sweeps
		{
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "expires_at", Value: 1}},
			Options: options.Index().SetName("idx_merge_status_expires"),
		},
	})
}

func ensureRoommateRequests(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("roommate_requests")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// One pending request per direction
		{
			Keys: bson.D{{Key: "from_student_id", Value: 1}, {Key: "to_student_id", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetName("uniq_reqs_from_to_pending").
				SetPartialFilterExpression(bson.M{"status": "pending"}),
		},
		// Inbox/outbox listings
		{
			Keys:    bson.D{{Key: "to_student_id", Value: 1}, {Key: "status", Value: 1}},
			Options: options.Index().SetName("idx_reqs_to_status"),
		},
		{
			Keys:    bson.D{{Key: "from_student_id", Value: 1}, {Key: "status", Value: 1}},
			Options: options.Index().SetName("idx_reqs_from_status"),
		},
		// Expiry sweeps
		{
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "expires_at", Value: 1}},
			Options: options.Index().SetName("idx_reqs_status_expires"),
		},
	})
}
