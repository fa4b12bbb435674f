// internal/app/engine/merge/merge.go

// Package merge negotiates combining two groups. A proposal absorbs the
// "to" group into the "from" group and executes the moment both leaders
// have approved. The absorbed group's leader becomes an ordinary member.
package merge

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

// ProposalTTL is how long a merge proposal stays open for approvals.
const ProposalTTL = 72 * time.Hour

type Engine struct {
	db           *mongo.Database
	log          *zap.Logger
	rsv          *reservation.Engine
	groups       *groupstore.Store
	members      *memberstore.Store
	merges       *mergestore.Store
	invites      *invitestore.Store
	endorsements *endorsementstore.Store
}

func New(db *mongo.Database, log *zap.Logger, rsv *reservation.Engine) *Engine {
	return &Engine{
		db:           db,
		log:          log,
		rsv:          rsv,
		groups:       groupstore.New(db),
		members:      memberstore.New(db),
		merges:       mergestore.New(db),
		invites:      invitestore.New(db),
		endorsements: endorsementstore.New(db),
	}
}

// Propose opens a merge proposal on behalf of the from-group's leader.
// The proposer's side counts as approved immediately.
func (e *Engine) Propose(ctx context.Context, fromGroupID, toGroupID, initiatorID primitive.ObjectID) (models.MergeRequest, error) {
	return e.propose(ctx, fromGroupID, toGroupID, initiatorID, true)
}

// ProposeFromRequest opens a merge proposal triggered by a mutual roommate
// request between members of the two groups. The initiator need not be a
// leader; their side auto-approves only when they happen to be one.
func (e *Engine) ProposeFromRequest(ctx context.Context, fromGroupID, toGroupID, initiatorID primitive.ObjectID) (models.MergeRequest, error) {
	return e.propose(ctx, fromGroupID, toGroupID, initiatorID, false)
}

func (e *Engine) propose(ctx context.Context, fromGroupID, toGroupID, initiatorID primitive.ObjectID, requireLeader bool) (models.MergeRequest, error) {
	var mr models.MergeRequest
	err := txn.Run(ctx, e.db, e.log, func(ctx context.Context) error {
		if fromGroupID == toGroupID {
			return faults.Invalid("a group cannot merge with itself")
		}

		from, to, err := e.loadPair(ctx, fromGroupID, toGroupID)
		if err != nil {
			return err
		}
		if requireLeader && from.LeaderID != initiatorID {
			return faults.Forbidden("only the group leader can propose a merge")
		}
		if err := e.checkMergeable(ctx, from, to); err != nil {
			return err
		}

		for _, gid := range []primitive.ObjectID{fromGroupID, toGroupID} {
			open, err := e.merges.ListPendingByGroup(ctx, gid)
			if err != nil {
				return err
			}
			if len(open) > 0 {
				return faults.Conflict("a pending merge proposal already involves one of the groups")
			}
		}

		mr, err = e.merges.Create(ctx, models.MergeRequest{
			OrgID:              from.OrganizationID,
			FromGroupID:        fromGroupID,
			ToGroupID:          toGroupID,
			InitiatedBy:        initiatorID,
			FromLeaderApproved: initiatorID == from.LeaderID,
			ExpiresAt:          time.Now().UTC().Add(ProposalTTL),
		})
		return err
	})
	if err != nil {
		return models.MergeRequest{}, err
	}
	return mr, nil
}

func (e *Engine) loadPair(ctx context.Context, fromGroupID, toGroupID primitive.ObjectID) (from, to models.Group, err error) {
	from, err = e.groups.GetByID(ctx, fromGroupID)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return from, to, faults.NotFound("group not found")
	}
	if err != nil {
		return from, to, err
	}
	to, err = e.groups.GetByID(ctx, toGroupID)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return from, to, faults.NotFound("group not found")
	}
	if err != nil {
		return from, to, err
	}
	if from.OrganizationID != to.OrganizationID {
		return from, to, faults.NotFound("group not found")
	}
	return from, to, nil
}

// checkMergeable verifies the combined group would be coherent: neither
// side locked, targets not contradictory, and the union within capacity.
func (e *Engine) checkMergeable(ctx context.Context, from, to models.Group) error {
	if from.Status == models.GroupLocked || to.Status == models.GroupLocked {
		return faults.Conflict("locked groups cannot merge")
	}
	if from.TargetRoomSize != nil && to.TargetRoomSize != nil &&
		*from.TargetRoomSize != *to.TargetRoomSize {
		return faults.Conflict("groups are aiming at different room sizes")
	}

	target := from.TargetRoomSize
	if target == nil {
		target = to.TargetRoomSize
	}
	if target != nil {
		fromN, err := e.members.CountByGroup(ctx, from.ID)
		if err != nil {
			return err
		}
		toN, err := e.members.CountByGroup(ctx, to.ID)
		if err != nil {
			return err
		}
		if int(fromN+toN) > *target {
			return faults.Conflict("combined group would exceed the target room size")
		}
	}
	return nil
}

// Approve records one leader's approval, executing the merge if it was the
// second. Re-approving an already-approved side is a no-op.
func (e *Engine) Approve(ctx context.Context, mergeID, callerID primitive.ObjectID) (models.MergeRequest, error) {
	var (
		out     models.MergeRequest
		merged  bool
		refused error
	)
	err := txn.Run(ctx, e.db, e.log, func(ctx context.Context) error {
		merged, refused = false, nil

		mr, err := e.merges.GetByID(ctx, mergeID)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return faults.NotFound("merge proposal not found")
		}
		if err != nil {
			return err
		}
		if mr.Status != models.ConsentPending {
			return faults.Conflictf("merge proposal is %s", mr.Status)
		}
		if time.Now().UTC().After(mr.ExpiresAt) {
			refused = faults.Conflict("merge proposal has expired")
			return e.merges.UpdateStatus(ctx, mergeID, models.ConsentExpired)
		}

		from, to, err := e.loadPair(ctx, mr.FromGroupID, mr.ToGroupID)
		if err != nil {
			return err
		}

		switch callerID {
		case from.LeaderID:
			mr.FromLeaderApproved = true
			if err := e.merges.SetApproval(ctx, mergeID, true); err != nil {
				return err
			}
		case to.LeaderID:
			mr.ToLeaderApproved = true
			if err := e.merges.SetApproval(ctx, mergeID, false); err != nil {
				return err
			}
		default:
			return faults.Forbidden("only a leader of either group can approve the merge")
		}

		out = mr
		if !mr.FromLeaderApproved || !mr.ToLeaderApproved {
			return nil
		}

		// Conditions may have shifted since the proposal was opened.
		if err := e.checkMergeable(ctx, from, to); err != nil {
			return err
		}
		if err := e.execute(ctx, mr, from, to); err != nil {
			return err
		}
		out.Status = models.ConsentAccepted
		merged = true
		return nil
	})
	if err != nil {
		return models.MergeRequest{}, err
	}
	if refused != nil {
		return models.MergeRequest{}, refused
	}
	if merged {
		if err := e.rsv.Reevaluate(ctx, out.FromGroupID); err != nil {
			return models.MergeRequest{}, err
		}
	}
	return out, nil
}

// execute performs the absorption inside the caller's transaction: members
// move to the surviving group, every consent record on the dying group is
// cleared, and the dying group is deleted. A stale reservation on the
// surviving group is released so re-evaluation claims at the combined size.
func (e *Engine) execute(ctx context.Context, mr models.MergeRequest, from, to models.Group) error {
	if from.ReservedRoomConfigID != nil {
		err := e.demoteSurvivor(ctx, from.ID)
		if err != nil {
			return err
		}
	}
	if _, err := e.members.MoveToGroup(ctx, to.ID, from.ID); err != nil {
		return err
	}
	if _, err := e.endorsements.DeleteByGroup(ctx, to.ID); err != nil {
		return err
	}
	if _, err := e.invites.ExpireByGroup(ctx, to.ID); err != nil {
		return err
	}
	if _, err := e.merges.ExpireByGroup(ctx, to.ID); err != nil {
		return err
	}
	if _, err := e.groups.Delete(ctx, to.ID); err != nil {
		return err
	}
	return e.merges.UpdateStatus(ctx, mr.ID, models.ConsentAccepted)
}

func (e *Engine) demoteSurvivor(ctx context.Context, groupID primitive.ObjectID) error {
	_, err := e.db.Collection("groups").UpdateByID(ctx, groupID, bson.M{
		"$set": bson.M{
			"status":     models.GroupUnreserved,
			"updated_at": time.Now().UTC(),
		},
		"$unset": bson.M{
			"reserved_room_config_id": "",
			"reserved_at":             "",
			"threshold_dropped_at":    "",
		},
	})
	return err
}

// Decline closes a pending proposal. Either leader may decline.
func (e *Engine) Decline(ctx context.Context, mergeID, callerID primitive.ObjectID) error {
	return txn.Run(ctx, e.db, e.log, func(ctx context.Context) error {
		mr, err := e.merges.GetByID(ctx, mergeID)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return faults.NotFound("merge proposal not found")
		}
		if err != nil {
			return err
		}
		if mr.Status != models.ConsentPending {
			return faults.Conflictf("merge proposal is %s", mr.Status)
		}

		from, to, err := e.loadPair(ctx, mr.FromGroupID, mr.ToGroupID)
		if err != nil {
			return err
		}
		if callerID != from.LeaderID && callerID != to.LeaderID {
			return faults.Forbidden("only a leader of either group can decline the merge")
		}
		return e.merges.UpdateStatus(ctx, mergeID, models.ConsentDeclined)
	})
}
