// internal/app/engine/lifecycle/lifecycle.go

// Package lifecycle mutates group membership: formation, joins, leaves,
// leadership transfer, and the explicit lock. Each mutation commits in its
// own transaction and then hands the group to the reservation engine for
// re-evaluation, so status never drifts from membership.
package lifecycle

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/hallmatch/hallmatch/internal/app/engine/reservation"
	endorsementstore "github.com/hallmatch/hallmatch/internal/app/store/endorsements"
	groupstore "github.com/hallmatch/hallmatch/internal/app/store/groups"
	invitestore "github.com/hallmatch/hallmatch/internal/app/store/invites"
	memberstore "github.com/hallmatch/hallmatch/internal/app/store/members"
	mergestore "github.com/hallmatch/hallmatch/internal/app/store/merges"
	"github.com/hallmatch/hallmatch/internal/app/system/faults"
	"github.com/hallmatch/hallmatch/internal/app/system/txn"
	"github.com/hallmatch/hallmatch/internal/domain/models"
)

type Manager struct {
	db           *mongo.Database
	log          *zap.Logger
	rsv          *reservation.Engine
	groups       *groupstore.Store
	members      *memberstore.Store
	endorsements *endorsementstore.Store
	invites      *invitestore.Store
	merges       *mergestore.Store
}

func New(db *mongo.Database, log *zap.Logger, rsv *reservation.Engine) *Manager {
	return &Manager{
		db:           db,
		log:          log,
		rsv:          rsv,
		groups:       groupstore.New(db),
		members:      memberstore.New(db),
		endorsements: endorsementstore.New(db),
		invites:      invitestore.New(db),
		merges:       mergestore.New(db),
	}
}

// LeaveResult reports what a departure did to the group.
type LeaveResult struct {
	Dissolved   bool               `json:"dissolved"`
	NewLeaderID primitive.ObjectID `json:"new_leader_id,omitempty"`
}

// CreateFromPair forms a new group from two solo students; the first
// becomes leader. The membership index turns a student who slipped into
// another group meanwhile into a conflict, not a double membership.
func (m *Manager) CreateFromPair(ctx context.Context, orgID, leaderID, partnerID primitive.ObjectID, target *int) (models.Group, error) {
	var g models.Group
	err := txn.Run(ctx, m.db, m.log, func(ctx context.Context) error {
		var err error
		g, err = m.groups.Create(ctx, models.Group{
			OrganizationID: orgID,
			LeaderID:       leaderID,
			TargetRoomSize: target,
		})
		if err != nil {
			return err
		}
		for _, sid := range []primitive.ObjectID{leaderID, partnerID} {
			if err := m.members.Add(ctx, g.ID, sid, orgID); err != nil {
				if errors.Is(err, memberstore.ErrAlreadyInGroup) {
					return faults.Conflict("student already belongs to a group")
				}
				return err
			}
		}
		return nil
	})
	if err != nil {
		return models.Group{}, err
	}
	if err := m.rsv.Reevaluate(ctx, g.ID); err != nil {
		return models.Group{}, err
	}
	return m.groups.GetByID(ctx, g.ID)
}

// AddMember joins a student to an existing group. Callers are expected to
// have cleared consent (endorsement or invite) first.
func (m *Manager) AddMember(ctx context.Context, groupID, studentID primitive.ObjectID) error {
	err := txn.Run(ctx, m.db, m.log, func(ctx context.Context) error {
		g, err := m.groups.GetByID(ctx, groupID)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return faults.NotFound("group not found")
		}
		if err != nil {
			return err
		}
		return m.addMemberLocked(ctx, g, studentID)
	})
	if err != nil {
		return err
	}
	return m.rsv.Reevaluate(ctx, groupID)
}

// addMemberLocked is the in-transaction join shared with the consent
// engine: capacity and lock checks plus the insert. The caller supplies a
// freshly loaded group from the same transaction.
func (m *Manager) addMemberLocked(ctx context.Context, g models.Group, studentID primitive.ObjectID) error {
	if g.Status == models.GroupLocked {
		return faults.Conflict("group is locked")
	}
	if g.TargetRoomSize != nil {
		n, err := m.members.CountByGroup(ctx, g.ID)
		if err != nil {
			return err
		}
		if int(n) >= *g.TargetRoomSize {
			return faults.Conflict("group is at its target size")
		}
	}
	if err := m.members.Add(ctx, g.ID, studentID, g.OrganizationID); err != nil {
		if errors.Is(err, memberstore.ErrAlreadyInGroup) {
			return faults.Conflict("student already belongs to a group")
		}
		return err
	}
	return nil
}

// AddMemberInTxn exposes the in-transaction join for engines that manage
// their own transaction (endorsement admission, invite approval).
func (m *Manager) AddMemberInTxn(ctx context.Context, g models.Group, studentID primitive.ObjectID) error {
	return m.addMemberLocked(ctx, g, studentID)
}

// Leave removes the caller from their group. The last member out dissolves
// the group; a departing leader hands leadership to the longest-standing
// remaining member.
func (m *Manager) Leave(ctx context.Context, groupID, studentID primitive.ObjectID) (LeaveResult, error) {
	return m.removeMember(ctx, groupID, studentID, studentID)
}

// RemoveMember is the admin path: same semantics as Leave but without the
// caller-must-be-the-member restriction.
func (m *Manager) RemoveMember(ctx context.Context, groupID, studentID primitive.ObjectID) (LeaveResult, error) {
	return m.removeMember(ctx, groupID, studentID, primitive.NilObjectID)
}

func (m *Manager) removeMember(ctx context.Context, groupID, studentID, callerID primitive.ObjectID) (LeaveResult, error) {
	var (
		res         LeaveResult
		hadReserved bool
		orgID       primitive.ObjectID
	)
	err := txn.Run(ctx, m.db, m.log, func(ctx context.Context) error {
		res = LeaveResult{}

		g, err := m.groups.GetByID(ctx, groupID)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return faults.NotFound("group not found")
		}
		if err != nil {
			return err
		}
		if !callerID.IsZero() && g.Status == models.GroupLocked {
			return faults.Conflict("group is locked")
		}
		orgID = g.OrganizationID
		hadReserved = g.ReservedRoomConfigID != nil

		deleted, err := m.members.Remove(ctx, groupID, studentID)
		if err != nil {
			return err
		}
		if deleted == 0 {
			return faults.NotFound("student is not a member of this group")
		}

		// A leaver's outstanding endorsement votes no longer count.
		if _, err := m.endorsements.DeleteByVoter(ctx, groupID, studentID); err != nil {
			return err
		}

		remaining, err := m.members.ListByGroup(ctx, groupID)
		if err != nil {
			return err
		}
		if len(remaining) == 0 {
			return m.dissolve(ctx, groupID, &res)
		}

		if g.LeaderID == studentID {
			next := oldestMember(remaining)
			if err := m.groups.SetLeader(ctx, groupID, next); err != nil {
				return err
			}
			res.NewLeaderID = next
		} else {
			res.NewLeaderID = g.LeaderID
		}
		return nil
	})
	if err != nil {
		return LeaveResult{}, err
	}

	if res.Dissolved {
		if hadReserved {
			// The dissolved group's slot goes back to the waitlist.
			return res, m.rsv.PromoteWaitlisted(ctx, orgID)
		}
		return res, nil
	}
	return res, m.rsv.Reevaluate(ctx, groupID)
}

// dissolve removes the group and every consent record hanging off it.
func (m *Manager) dissolve(ctx context.Context, groupID primitive.ObjectID, res *LeaveResult) error {
	if _, err := m.endorsements.DeleteByGroup(ctx, groupID); err != nil {
		return err
	}
	if _, err := m.invites.ExpireByGroup(ctx, groupID); err != nil {
		return err
	}
	if _, err := m.merges.ExpireByGroup(ctx, groupID); err != nil {
		return err
	}
	if _, err := m.groups.Delete(ctx, groupID); err != nil {
		return err
	}
	res.Dissolved = true
	return nil
}

// TransferLeadership hands the leader role to another current member.
func (m *Manager) TransferLeadership(ctx context.Context, groupID, callerID, newLeaderID primitive.ObjectID) error {
	return txn.Run(ctx, m.db, m.log, func(ctx context.Context) error {
		g, err := m.groups.GetByID(ctx, groupID)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return faults.NotFound("group not found")
		}
		if err != nil {
			return err
		}
		if g.LeaderID != callerID {
			return faults.Forbidden("only the group leader can transfer leadership")
		}

		member, err := m.members.GetByStudent(ctx, newLeaderID)
		if errors.Is(err, mongo.ErrNoDocuments) || (err == nil && member.GroupID != groupID) {
			return faults.Forbidden("new leader must be a current member of the group")
		}
		if err != nil {
			return err
		}
		return m.groups.SetLeader(ctx, groupID, newLeaderID)
	})
}

// Lock freezes the group by leader action. Locked groups accept no joins,
// leaves, or merges, and keep whatever reservation they hold.
func (m *Manager) Lock(ctx context.Context, groupID, callerID primitive.ObjectID) error {
	return txn.Run(ctx, m.db, m.log, func(ctx context.Context) error {
		g, err := m.groups.GetByID(ctx, groupID)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return faults.NotFound("group not found")
		}
		if err != nil {
			return err
		}
		if g.LeaderID != callerID {
			return faults.Forbidden("only the group leader can lock the group")
		}
		if g.Status == models.GroupLocked {
			return faults.Conflict("group is already locked")
		}

		n, err := m.members.CountByGroup(ctx, groupID)
		if err != nil {
			return err
		}
		if n < 2 {
			return faults.Conflict("a group needs at least two members to lock")
		}
		return m.setLocked(ctx, groupID)
	})
}

// ForceLock is the finalizer's unconditional lock: no leader check, no
// minimum size. Already-locked groups are a no-op.
func (m *Manager) ForceLock(ctx context.Context, groupID primitive.ObjectID) error {
	return m.setLocked(ctx, groupID)
}

func (m *Manager) setLocked(ctx context.Context, groupID primitive.ObjectID) error {
	_, err := m.db.Collection("groups").UpdateByID(ctx, groupID,
		bson.M{"$set": bson.M{
			"status":     models.GroupLocked,
			"updated_at": time.Now().UTC(),
		}})
	return err
}

// oldestMember picks the successor leader: earliest join, student id as
// the tiebreak so the choice is deterministic.
func oldestMember(members []models.GroupMember) primitive.ObjectID {
	best := members[0]
	for _, m := range members[1:] {
		if m.CreatedAt.Before(best.CreatedAt) {
			best = m
		}
	}
	return best.StudentID
}
