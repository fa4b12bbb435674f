// internal/app/engine/consent/consent.go

// Package consent governs how outsiders enter an existing group: unanimous
// member endorsement, or a leader-approved invite. Both paths end in the
// same in-transaction join, so capacity and single-membership rules hold no
// matter which door a student came through.
package consent

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/hallmatch/hallmatch/internal/app/engine/lifecycle"
	"github.com/hallmatch/hallmatch/internal/app/engine/reservation"
	endorsementstore "github.com/hallmatch/hallmatch/internal/app/store/endorsements"
	groupstore "github.com/hallmatch/hallmatch/internal/app/store/groups"
	invitestore "github.com/hallmatch/hallmatch/internal/app/store/invites"
	memberstore "github.com/hallmatch/hallmatch/internal/app/store/members"
	"github.com/hallmatch/hallmatch/internal/app/system/faults"
	"github.com/hallmatch/hallmatch/internal/app/system/txn"
	"github.com/hallmatch/hallmatch/internal/domain/models"
)

// InviteTTL is how long an invite stays actionable.
const InviteTTL = 7 * 24 * time.Hour

type Engine struct {
	db           *mongo.Database
	log          *zap.Logger
	rsv          *reservation.Engine
	life         *lifecycle.Manager
	groups       *groupstore.Store
	members      *memberstore.Store
	endorsements *endorsementstore.Store
	invites      *invitestore.Store
}

func New(db *mongo.Database, log *zap.Logger, rsv *reservation.Engine, life *lifecycle.Manager) *Engine {
	return &Engine{
		db:           db,
		log:          log,
		rsv:          rsv,
		life:         life,
		groups:       groupstore.New(db),
		members:      memberstore.New(db),
		endorsements: endorsementstore.New(db),
		invites:      invitestore.New(db),
	}
}

// EndorseResult reports the vote tally after an endorsement, and whether
// it tipped the candidate into the group.
type EndorseResult struct {
	Joined       bool `json:"joined"`
	Endorsements int  `json:"endorsements"`
	Needed       int  `json:"needed"`
}

// Endorse records one member's vote for a candidate. The candidate joins
// the moment every current member has voted. Re-voting is idempotent.
func (e *Engine) Endorse(ctx context.Context, groupID, candidateID, voterID primitive.ObjectID) (EndorseResult, error) {
	var res EndorseResult
	err := txn.Run(ctx, e.db, e.log, func(ctx context.Context) error {
		res = EndorseResult{}

		g, err := e.groups.GetByID(ctx, groupID)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return faults.NotFound("group not found")
		}
		if err != nil {
			return err
		}
		if g.Status == models.GroupLocked {
			return faults.Conflict("group is locked")
		}

		members, err := e.members.ListByGroup(ctx, groupID)
		if err != nil {
			return err
		}
		if !containsStudent(members, voterID) {
			return faults.Conflict("only current members can endorse a candidate")
		}
		if containsStudent(members, candidateID) {
			return faults.Conflict("student is already a member of this group")
		}
		if _, err := e.members.GetByStudent(ctx, candidateID); err == nil {
			return faults.Conflict("student already belongs to a group")
		} else if !errors.Is(err, mongo.ErrNoDocuments) {
			return err
		}
		if g.TargetRoomSize != nil && len(members) >= *g.TargetRoomSize {
			return faults.Conflict("group is at its target size")
		}

		if err := e.endorsements.Upsert(ctx, groupID, candidateID, voterID); err != nil {
			return err
		}

		votes, err := e.endorsements.ListForCandidate(ctx, groupID, candidateID)
		if err != nil {
			return err
		}
		res.Endorsements = countCurrentVotes(votes, members)
		res.Needed = len(members)
		if res.Endorsements < res.Needed {
			return nil
		}

		// Unanimous: admit and clear the slate.
		if err := e.life.AddMemberInTxn(ctx, g, candidateID); err != nil {
			return err
		}
		if _, err := e.endorsements.DeleteForCandidate(ctx, groupID, candidateID); err != nil {
			return err
		}
		res.Joined = true
		return nil
	})
	if err != nil {
		return EndorseResult{}, err
	}
	if res.Joined {
		if err := e.rsv.Reevaluate(ctx, groupID); err != nil {
			return EndorseResult{}, err
		}
	}
	return res, nil
}

func containsStudent(members []models.GroupMember, id primitive.ObjectID) bool {
	for _, m := range members {
		if m.StudentID == id {
			return true
		}
	}
	return false
}

// countCurrentVotes counts distinct voters who are still members. Votes
// from departed members linger in storage until swept but never count.
func countCurrentVotes(votes []models.Endorsement, members []models.GroupMember) int {
	current := make(map[primitive.ObjectID]bool, len(members))
	for _, m := range members {
		current[m.StudentID] = true
	}
	seen := make(map[primitive.ObjectID]bool, len(votes))
	n := 0
	for _, v := range votes {
		if current[v.EndorsedBy] && !seen[v.EndorsedBy] {
			seen[v.EndorsedBy] = true
			n++
		}
	}
	return n
}

// CreateInvite opens an invite from a group to a solo student.
func (e *Engine) CreateInvite(ctx context.Context, groupID, studentID, invitedBy primitive.ObjectID) (models.Invite, error) {
	var inv models.Invite
	err := txn.Run(ctx, e.db, e.log, func(ctx context.Context) error {
		g, err := e.groups.GetByID(ctx, groupID)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return faults.NotFound("group not found")
		}
		if err != nil {
			return err
		}
		if g.Status == models.GroupLocked {
			return faults.Conflict("group is locked")
		}
		if _, err := e.members.GetByStudent(ctx, studentID); err == nil {
			return faults.Conflict("student already belongs to a group")
		} else if !errors.Is(err, mongo.ErrNoDocuments) {
			return err
		}

		inv, err = e.invites.Create(ctx, models.Invite{
			GroupID:   groupID,
			StudentID: studentID,
			InvitedBy: invitedBy,
			OrgID:     g.OrganizationID,
			ExpiresAt: time.Now().UTC().Add(InviteTTL),
		})
		if errors.Is(err, invitestore.ErrPendingInviteExists) {
			return faults.Conflict("a pending invite for this student already exists")
		}
		return err
	})
	if err != nil {
		return models.Invite{}, err
	}
	return inv, nil
}

// ApproveInvite is the leader accepting an invited student into the group.
// An invitee who joined elsewhere in the meantime force-declines the
// invite rather than producing a double membership.
func (e *Engine) ApproveInvite(ctx context.Context, inviteID, callerID primitive.ObjectID) error {
	var groupID primitive.ObjectID
	// Status flips on dead invites (expired, invitee gone elsewhere) must
	// commit even though the approval fails, so those paths record the
	// refusal and return nil from the transaction body.
	var refused error
	err := txn.Run(ctx, e.db, e.log, func(ctx context.Context) error {
		refused = nil

		inv, err := e.invites.GetByID(ctx, inviteID)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return faults.NotFound("invite not found")
		}
		if err != nil {
			return err
		}
		if inv.Status != models.ConsentPending {
			return faults.Conflictf("invite is %s", inv.Status)
		}
		if time.Now().UTC().After(inv.ExpiresAt) {
			refused = faults.Conflict("invite has expired")
			return e.invites.UpdateStatus(ctx, inviteID, models.ConsentExpired)
		}

		g, err := e.groups.GetByID(ctx, inv.GroupID)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return faults.NotFound("group not found")
		}
		if err != nil {
			return err
		}
		if g.LeaderID != callerID {
			return faults.Forbidden("only the group leader can approve an invite")
		}
		groupID = g.ID

		if _, err := e.members.GetByStudent(ctx, inv.StudentID); err == nil {
			refused = faults.Conflict("student joined another group; invite declined")
			return e.invites.UpdateStatus(ctx, inviteID, models.ConsentDeclined)
		} else if !errors.Is(err, mongo.ErrNoDocuments) {
			return err
		}

		if err := e.life.AddMemberInTxn(ctx, g, inv.StudentID); err != nil {
			return err
		}
		return e.invites.UpdateStatus(ctx, inviteID, models.ConsentAccepted)
	})
	if err != nil {
		return err
	}
	if refused != nil {
		return refused
	}
	return e.rsv.Reevaluate(ctx, groupID)
}

// DeclineInvite closes a pending invite. The invitee or the group leader
// may decline.
func (e *Engine) DeclineInvite(ctx context.Context, inviteID, callerID primitive.ObjectID) error {
	return txn.Run(ctx, e.db, e.log, func(ctx context.Context) error {
		inv, err := e.invites.GetByID(ctx, inviteID)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return faults.NotFound("invite not found")
		}
		if err != nil {
			return err
		}
		if inv.Status != models.ConsentPending {
			return faults.Conflictf("invite is %s", inv.Status)
		}

		if callerID != inv.StudentID {
			g, err := e.groups.GetByID(ctx, inv.GroupID)
			if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
				return err
			}
			if err != nil || g.LeaderID != callerID {
				return faults.Forbidden("only the invitee or the group leader can decline an invite")
			}
		}
		return e.invites.UpdateStatus(ctx, inviteID, models.ConsentDeclined)
	})
}
