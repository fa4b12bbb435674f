// internal/domain/models/roomconfig.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RoomConfig defines one room size's inventory for an organization.
// At most one config exists per (organization_id, room_size); the unique
// index on that pair is the backing constraint.
type RoomConfig struct {
	ID             primitive.ObjectID `bson:"_id" json:"id"`
	OrganizationID primitive.ObjectID `bson:"organization_id" json:"organization_id"`

	// RoomSize is persons per room (2-20).
	RoomSize int `bson:"room_size" json:"room_size"`

	// TotalRooms is the inventory count for this size.
	TotalRooms int `bson:"total_rooms" json:"total_rooms"`

	// ReservationThresholdPercent is the fraction of RoomSize a group must
	// reach to hold a reservation (e.g. 0.5).
	ReservationThresholdPercent float64 `bson:"reservation_threshold_percent" json:"reservation_threshold_percent"`

	// GracePeriodHours is how long a reserved group may stay below
	// threshold before losing its reservation.
	GracePeriodHours int `bson:"grace_period_hours" json:"grace_period_hours"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
