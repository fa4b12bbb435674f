// internal/domain/models/requests.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Shared statuses for time-bounded consent records (roommate requests,
// invites, merge requests). Declined and expired are terminal.
const (
	ConsentPending  = "pending"
	ConsentAccepted = "accepted"
	ConsentDeclined = "declined"
	ConsentExpired  = "expired"
)

// RoommateRequest is one direction of a pairwise roommate ask. The pair
// becomes actionable once both directions are accepted; accepting a request
// also reciprocates any pending reverse request.
type RoommateRequest struct {
	ID            primitive.ObjectID `bson:"_id" json:"id"`
	OrgID         primitive.ObjectID `bson:"org_id" json:"org_id"`
	FromStudentID primitive.ObjectID `bson:"from_student_id" json:"from_student_id"`
	ToStudentID   primitive.ObjectID `bson:"to_student_id" json:"to_student_id"`
	Status        string             `bson:"status" json:"status"`
	Token         string             `bson:"token" json:"token"`
	ExpiresAt     time.Time          `bson:"expires_at" json:"expires_at"`
	CreatedAt     time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt     time.Time          `bson:"updated_at" json:"updated_at"`
}

// Endorsement is one current member's vote to admit a non-member candidate.
// Votes are ephemeral: cleared en masse once the candidate joins or the
// group no longer needs votes for that candidate.
type Endorsement struct {
	ID                primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	GroupID           primitive.ObjectID `bson:"group_id" json:"group_id"`
	EndorsedStudentID primitive.ObjectID `bson:"endorsed_student_id" json:"endorsed_student_id"`
	EndorsedBy        primitive.ObjectID `bson:"endorsed_by" json:"endorsed_by"`
	CreatedAt         time.Time          `bson:"created_at" json:"created_at"`
}

// Invite asks a solo student into a group; it stays pending until the group
// leader approves or either side declines. One pending invite may exist per
// (group, student).
type Invite struct {
	ID        primitive.ObjectID `bson:"_id" json:"id"`
	GroupID   primitive.ObjectID `bson:"group_id" json:"group_id"`
	StudentID primitive.ObjectID `bson:"student_id" json:"student_id"`
	InvitedBy primitive.ObjectID `bson:"invited_by" json:"invited_by"`
	OrgID     primitive.ObjectID `bson:"org_id" json:"org_id"`
	Status    string             `bson:"status" json:"status"`
	Token     string             `bson:"token" json:"token"`
	ExpiresAt time.Time          `bson:"expires_at" json:"expires_at"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updated_at"`
}

// MergeRequest proposes absorbing ToGroup into FromGroup. The merge
// executes the moment both leader-approval flags are true.
type MergeRequest struct {
	ID                 primitive.ObjectID `bson:"_id" json:"id"`
	OrgID              primitive.ObjectID `bson:"org_id" json:"org_id"`
	FromGroupID        primitive.ObjectID `bson:"from_group_id" json:"from_group_id"`
	ToGroupID          primitive.ObjectID `bson:"to_group_id" json:"to_group_id"`
	InitiatedBy        primitive.ObjectID `bson:"initiated_by" json:"initiated_by"`
	FromLeaderApproved bool               `bson:"from_leader_approved" json:"from_leader_approved"`
	ToLeaderApproved   bool               `bson:"to_leader_approved" json:"to_leader_approved"`
	Status             string             `bson:"status" json:"status"`
	Token              string             `bson:"token" json:"token"`
	ExpiresAt          time.Time          `bson:"expires_at" json:"expires_at"`
	CreatedAt          time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt          time.Time          `bson:"updated_at" json:"updated_at"`
}
