// internal/domain/models/group.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Group statuses. Status moves between unreserved, waitlisted, and reserved
// only through the reservation engine; locked is reached by leader action,
// auto-lock, or the finalizer and is terminal for the engine.
const (
	GroupUnreserved = "unreserved"
	GroupWaitlisted = "waitlisted"
	GroupReserved   = "reserved"
	GroupLocked     = "locked"
)

// Group is a set of students jointly seeking or holding a room.
//
// NOTE:
//   - Members are not embedded on Group. All membership is stored in the
//     group_members collection, one document per student.
//   - LeaderID is never the zero ObjectID while members exist; it may be
//     zero only transiently inside a transaction that is reassigning it.
type Group struct {
	ID             primitive.ObjectID `bson:"_id" json:"id"`
	OrganizationID primitive.ObjectID `bson:"organization_id" json:"organization_id"`
	LeaderID       primitive.ObjectID `bson:"leader_id" json:"leader_id"`

	// TargetRoomSize is the room size the group is aiming for. Nil means
	// flexible: any config large enough for the current membership.
	TargetRoomSize *int `bson:"target_room_size,omitempty" json:"target_room_size,omitempty"`

	Status string `bson:"status" json:"status"`

	// ReservedRoomConfigID and ReservedAt are set while the group holds a
	// soft claim on one unit of a room config's inventory.
	ReservedRoomConfigID *primitive.ObjectID `bson:"reserved_room_config_id,omitempty" json:"reserved_room_config_id,omitempty"`
	ReservedAt           *time.Time          `bson:"reserved_at,omitempty" json:"reserved_at,omitempty"`

	// ThresholdDroppedAt is the grace-period clock: set when a reserved
	// group falls below its occupancy threshold, cleared when it recovers.
	ThresholdDroppedAt *time.Time `bson:"threshold_dropped_at,omitempty" json:"threshold_dropped_at,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// GroupMember is the authoritative join between students and groups.
// The unique index on student_id enforces membership in at most one group.
type GroupMember struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	GroupID   primitive.ObjectID `bson:"group_id" json:"group_id"`
	StudentID primitive.ObjectID `bson:"student_id" json:"student_id"`
	OrgID     primitive.ObjectID `bson:"org_id" json:"org_id"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
}
