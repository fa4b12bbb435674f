// internal/app/engine/mediator/mediator.go

// Package mediator turns pairwise roommate requests into the right
// structural action once both sides have consented: a new group when both
// students are solo, an invite when exactly one has a group, a merge
// proposal when both do. Accepting a request also reciprocates a pending
// request in the other direction, so one acceptance can complete the pair.
package mediator

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/hallmatch/hallmatch/internal/app/engine/consent"
	"github.com/hallmatch/hallmatch/internal/app/engine/lifecycle"
	"github.com/hallmatch/hallmatch/internal/app/engine/merge"
	memberstore "github.com/hallmatch/hallmatch/internal/app/store/members"
	requeststore "github.com/hallmatch/hallmatch/internal/app/store/requests"
	studentstore "github.com/hallmatch/hallmatch/internal/app/store/students"
	"github.com/hallmatch/hallmatch/internal/app/system/faults"
	"github.com/hallmatch/hallmatch/internal/app/system/txn"
	"github.com/hallmatch/hallmatch/internal/domain/models"
)

// RequestTTL is how long a roommate request stays open.
const RequestTTL = 7 * 24 * time.Hour

// Actions a resolved mutual request can take.
const (
	ActionGroupCreated  = "group_created"
	ActionInviteCreated = "invite_created"
	ActionInvitePending = "invite_pending"
	ActionMergeProposed = "merge_proposed"
	ActionNone          = "none"
)

// Outcome describes what resolving a mutual pair produced.
type Outcome struct {
	Action   string             `json:"action"`
	GroupID  primitive.ObjectID `json:"group_id,omitempty"`
	InviteID primitive.ObjectID `json:"invite_id,omitempty"`
	MergeID  primitive.ObjectID `json:"merge_id,omitempty"`
}

type Mediator struct {
	db       *mongo.Database
	log      *zap.Logger
	life     *lifecycle.Manager
	consents *consent.Engine
	merges   *merge.Engine
	requests *requeststore.Store
	members  *memberstore.Store
	students *studentstore.Store
}

func New(db *mongo.Database, log *zap.Logger, life *lifecycle.Manager, consents *consent.Engine, merges *merge.Engine) *Mediator {
	return &Mediator{
		db:       db,
		log:      log,
		life:     life,
		consents: consents,
		merges:   merges,
		requests: requeststore.New(db),
		members:  memberstore.New(db),
		students: studentstore.New(db),
	}
}

// Send opens a roommate request from one student to another.
func (m *Mediator) Send(ctx context.Context, fromID, toID primitive.ObjectID) (models.RoommateRequest, error) {
	if fromID == toID {
		return models.RoommateRequest{}, faults.Invalid("cannot send a roommate request to yourself")
	}

	from, err := m.students.GetByID(ctx, fromID)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.RoommateRequest{}, faults.NotFound("student not found")
	}
	if err != nil {
		return models.RoommateRequest{}, err
	}
	to, err := m.students.GetByID(ctx, toID)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.RoommateRequest{}, faults.NotFound("student not found")
	}
	if err != nil {
		return models.RoommateRequest{}, err
	}
	if from.OrganizationID != to.OrganizationID {
		return models.RoommateRequest{}, faults.NotFound("student not found")
	}

	rr, err := m.requests.Create(ctx, models.RoommateRequest{
		OrgID:         from.OrganizationID,
		FromStudentID: fromID,
		ToStudentID:   toID,
		ExpiresAt:     time.Now().UTC().Add(RequestTTL),
	})
	if errors.Is(err, requeststore.ErrPendingRequestExists) {
		return models.RoommateRequest{}, faults.Conflict("a pending request to this student already exists")
	}
	if err != nil {
		return models.RoommateRequest{}, err
	}
	return rr, nil
}

// Accept is the recipient consenting. The request flips to accepted, any
// pending reverse request is reciprocated, and the pair resolves into a
// group, invite, or merge proposal.
func (m *Mediator) Accept(ctx context.Context, requestID, callerID primitive.ObjectID) (Outcome, error) {
	var (
		rr      models.RoommateRequest
		refused error
	)
	err := txn.Run(ctx, m.db, m.log, func(ctx context.Context) error {
		refused = nil

		var err error
		rr, err = m.requests.GetByID(ctx, requestID)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return faults.NotFound("request not found")
		}
		if err != nil {
			return err
		}
		if rr.ToStudentID != callerID {
			return faults.Forbidden("only the recipient can accept a request")
		}
		if rr.Status != models.ConsentPending {
			return faults.Conflictf("request is %s", rr.Status)
		}
		if time.Now().UTC().After(rr.ExpiresAt) {
			refused = faults.Conflict("request has expired")
			return m.requests.UpdateStatus(ctx, requestID, models.ConsentExpired)
		}

		if err := m.requests.UpdateStatus(ctx, requestID, models.ConsentAccepted); err != nil {
			return err
		}

		// Acceptance is mutual consent: a pending request the other way
		// does not need its own acceptance round-trip.
		reverse, err := m.requests.GetPendingBetween(ctx, rr.ToStudentID, rr.FromStudentID)
		if err == nil {
			if err := m.requests.UpdateStatus(ctx, reverse.ID, models.ConsentAccepted); err != nil {
				return err
			}
		} else if !errors.Is(err, mongo.ErrNoDocuments) {
			return err
		}
		return nil
	})
	if err != nil {
		return Outcome{}, err
	}
	if refused != nil {
		return Outcome{}, refused
	}

	return m.Resolve(ctx, rr.FromStudentID, rr.ToStudentID, callerID)
}

// Decline is the recipient refusing; terminal for this request but not for
// a request in the other direction.
func (m *Mediator) Decline(ctx context.Context, requestID, callerID primitive.ObjectID) error {
	return txn.Run(ctx, m.db, m.log, func(ctx context.Context) error {
		rr, err := m.requests.GetByID(ctx, requestID)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return faults.NotFound("request not found")
		}
		if err != nil {
			return err
		}
		if rr.ToStudentID != callerID {
			return faults.Forbidden("only the recipient can decline a request")
		}
		if rr.Status != models.ConsentPending {
			return faults.Conflictf("request is %s", rr.Status)
		}
		return m.requests.UpdateStatus(ctx, requestID, models.ConsentDeclined)
	})
}

// Resolve branches on the two students' current grouping. initiatorID is
// the student whose action completed the mutual pair; merge attribution
// follows them.
func (m *Mediator) Resolve(ctx context.Context, aID, bID, initiatorID primitive.ObjectID) (Outcome, error) {
	aMember, aErr := m.members.GetByStudent(ctx, aID)
	if aErr != nil && !errors.Is(aErr, mongo.ErrNoDocuments) {
		return Outcome{}, aErr
	}
	bMember, bErr := m.members.GetByStudent(ctx, bID)
	if bErr != nil && !errors.Is(bErr, mongo.ErrNoDocuments) {
		return Outcome{}, bErr
	}
	aSolo := errors.Is(aErr, mongo.ErrNoDocuments)
	bSolo := errors.Is(bErr, mongo.ErrNoDocuments)

	switch {
	case aSolo && bSolo:
		return m.formPair(ctx, aID, bID)

	case aSolo != bSolo:
		groupID, solo, groupedParty := bMember.GroupID, aID, bID
		if bSolo {
			groupID, solo, groupedParty = aMember.GroupID, bID, aID
		}
		inv, err := m.consents.CreateInvite(ctx, groupID, solo, groupedParty)
		if faults.IsConflict(err) {
			// An invite is already on the table; nothing further to do.
			return Outcome{Action: ActionInvitePending, GroupID: groupID}, nil
		}
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{Action: ActionInviteCreated, GroupID: groupID, InviteID: inv.ID}, nil

	case aMember.GroupID == bMember.GroupID:
		// Already housed together.
		return Outcome{Action: ActionNone, GroupID: aMember.GroupID}, nil

	default:
		fromGroup := aMember.GroupID
		toGroup := bMember.GroupID
		if initiatorID == bID {
			fromGroup, toGroup = bMember.GroupID, aMember.GroupID
		}
		mr, err := m.merges.ProposeFromRequest(ctx, fromGroup, toGroup, initiatorID)
		if faults.IsConflict(err) {
			return Outcome{Action: ActionNone}, nil
		}
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{Action: ActionMergeProposed, MergeID: mr.ID, GroupID: fromGroup}, nil
	}
}

// formPair builds the new two-person group. The accepted pair's shared
// room-size preference becomes the target when exactly one size overlaps.
func (m *Mediator) formPair(ctx context.Context, aID, bID primitive.ObjectID) (Outcome, error) {
	a, err := m.students.GetByID(ctx, aID)
	if err != nil {
		return Outcome{}, err
	}
	b, err := m.students.GetByID(ctx, bID)
	if err != nil {
		return Outcome{}, err
	}

	g, err := m.life.CreateFromPair(ctx, a.OrganizationID, aID, bID, sharedTarget(a, b))
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Action: ActionGroupCreated, GroupID: g.ID}, nil
}

// sharedTarget intersects two students' preferred room sizes. A single
// common size fixes the new group's target; anything else leaves the
// group flexible.
func sharedTarget(a, b models.Student) *int {
	bSizes := make(map[int]bool, len(b.PreferredRoomSizes))
	for _, s := range b.PreferredRoomSizes {
		bSizes[s] = true
	}
	var common []int
	for _, s := range a.PreferredRoomSizes {
		if bSizes[s] {
			common = append(common, s)
		}
	}
	if len(common) == 1 {
		return &common[0]
	}
	return nil
}

// ListForStudent returns the student's requests in both directions,
// lazily sweeping expiry so callers never see a stale pending state.
func (m *Mediator) ListForStudent(ctx context.Context, studentID primitive.ObjectID) ([]models.RoommateRequest, error) {
	requests, err := m.requests.ListForStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	for i, rr := range requests {
		if rr.Status == models.ConsentPending && now.After(rr.ExpiresAt) {
			if err := m.requests.UpdateStatus(ctx, rr.ID, models.ConsentExpired); err != nil {
				return nil, err
			}
			requests[i].Status = models.ConsentExpired
		}
	}
	return requests, nil
}
