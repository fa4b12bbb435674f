// internal/app/engine/reservation/reservation.go

// Package reservation owns every group status transition between
// unreserved, waitlisted, and reserved, plus the automatic lock when a
// group reaches room capacity. Reevaluate runs after any membership or
// target change; PromoteWaitlisted runs after anything that can free a
// slot. Each runs in its own transaction so slot counting and claiming
// are atomic.
package reservation

import (
	"context"
	"errors"
	"math"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	groupstore "github.com/hallmatch/hallmatch/internal/app/store/groups"
	memberstore "github.com/hallmatch/hallmatch/internal/app/store/members"
	roomconfigstore "github.com/hallmatch/hallmatch/internal/app/store/roomconfigs"
	"github.com/hallmatch/hallmatch/internal/app/system/txn"
	"github.com/hallmatch/hallmatch/internal/domain/models"
)

type Engine struct {
	db      *mongo.Database
	log     *zap.Logger
	groups  *groupstore.Store
	members *memberstore.Store
	configs *roomconfigstore.Store
}

func New(db *mongo.Database, log *zap.Logger) *Engine {
	return &Engine{
		db:      db,
		log:     log,
		groups:  groupstore.New(db),
		members: memberstore.New(db),
		configs: roomconfigstore.New(db),
	}
}

// Threshold is the member count a group must reach to hold a reservation
// on cfg: ceil(threshold percent x room size), clamped to [1, room size].
func Threshold(cfg models.RoomConfig) int {
	t := int(math.Ceil(cfg.ReservationThresholdPercent * float64(cfg.RoomSize)))
	if t < 1 {
		t = 1
	}
	if t > cfg.RoomSize {
		t = cfg.RoomSize
	}
	return t
}

// Reevaluate recomputes one group's reservation state from its current
// membership. If the pass releases a reservation, the freed slot is offered
// to the waitlist afterwards, outside the group's own transaction.
func (e *Engine) Reevaluate(ctx context.Context, groupID primitive.ObjectID) error {
	released := false
	var orgID primitive.ObjectID

	err := txn.Run(ctx, e.db, e.log, func(ctx context.Context) error {
		released = false

		g, err := e.groups.GetByID(ctx, groupID)
		if errors.Is(err, mongo.ErrNoDocuments) {
			// Dissolved while this re-evaluation was in flight.
			return nil
		}
		if err != nil {
			return err
		}
		orgID = g.OrganizationID

		if g.Status == models.GroupLocked {
			return nil
		}

		n64, err := e.members.CountByGroup(ctx, g.ID)
		if err != nil {
			return err
		}
		n := int(n64)

		if g.Status == models.GroupReserved && g.ReservedRoomConfigID != nil {
			done, rel, err := e.judgeHeld(ctx, &g, n)
			if err != nil {
				return err
			}
			released = rel
			if done {
				return nil
			}
			// The held reservation was released; fall through and let the
			// group claim fresh at its current size.
		}

		cfg, ok, err := e.resolveConfig(ctx, g, n)
		if err != nil {
			return err
		}
		if !ok || n < Threshold(cfg) {
			return e.demote(ctx, g)
		}
		return e.claim(ctx, g, cfg, n)
	})
	if err != nil {
		return err
	}

	if released {
		return e.PromoteWaitlisted(ctx, orgID)
	}
	return nil
}

// judgeHeld applies the grace-period rules to a group holding a
// reservation. It returns done=true when the group keeps (or locks) its
// reservation and the pass should stop, and released=true when the
// reservation was given up.
func (e *Engine) judgeHeld(ctx context.Context, g *models.Group, n int) (done, released bool, err error) {
	held, err := e.configs.GetByID(ctx, *g.ReservedRoomConfigID)
	if errors.Is(err, mongo.ErrNoDocuments) {
		// Config deleted by the organization; the claim has nothing to
		// hold onto.
		return false, true, e.release(ctx, g)
	}
	if err != nil {
		return false, false, err
	}

	if n > held.RoomSize {
		// Outgrew the held config; release and re-claim at the new size.
		return false, true, e.release(ctx, g)
	}

	now := time.Now().UTC()
	if n >= Threshold(held) {
		set := bson.M{"updated_at": now}
		unset := bson.M{}
		if g.ThresholdDroppedAt != nil {
			// Recovered during the grace period.
			unset["threshold_dropped_at"] = ""
		}
		if n >= held.RoomSize {
			set["status"] = models.GroupLocked
		}
		return true, false, e.apply(ctx, g.ID, set, unset)
	}

	if g.ThresholdDroppedAt == nil {
		// First observation below threshold starts the clock.
		return true, false, e.apply(ctx, g.ID,
			bson.M{"threshold_dropped_at": now, "updated_at": now}, nil)
	}

	deadline := g.ThresholdDroppedAt.Add(time.Duration(held.GracePeriodHours) * time.Hour)
	if now.Before(deadline) {
		// Still in grace; the reservation stands.
		return true, false, nil
	}

	// Grace expired.
	return false, true, e.release(ctx, g)
}

// resolveConfig picks the config a group would claim: the fixed target's
// config when a target is set, otherwise the smallest config that fits the
// current membership. ok=false means nothing fits.
func (e *Engine) resolveConfig(ctx context.Context, g models.Group, n int) (models.RoomConfig, bool, error) {
	if g.TargetRoomSize != nil {
		cfg, err := e.configs.GetByOrgAndSize(ctx, g.OrganizationID, *g.TargetRoomSize)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.RoomConfig{}, false, nil
		}
		if err != nil {
			return models.RoomConfig{}, false, err
		}
		if n > cfg.RoomSize {
			return models.RoomConfig{}, false, nil
		}
		return cfg, true, nil
	}

	configs, err := e.configs.ListByOrg(ctx, g.OrganizationID)
	if err != nil {
		return models.RoomConfig{}, false, err
	}
	for _, cfg := range configs {
		if cfg.RoomSize >= n {
			return cfg, true, nil
		}
	}
	return models.RoomConfig{}, false, nil
}

// claim attempts to take one slot of cfg's inventory for g. The slot count
// runs inside the caller's transaction, so two groups racing for the last
// slot serialize. Full groups lock whatever the slot outcome.
func (e *Engine) claim(ctx context.Context, g models.Group, cfg models.RoomConfig, n int) error {
	heldCount, err := e.groups.CountHoldingConfig(ctx, cfg.ID)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	set := bson.M{"updated_at": now}
	unset := bson.M{"threshold_dropped_at": ""}

	claimed := int(heldCount) < cfg.TotalRooms
	full := n >= cfg.RoomSize
	if claimed || full {
		// A full group locks whatever the slot outcome, and the lock pins
		// the config so inventory counts keep seeing it.
		set["status"] = models.GroupReserved
		set["reserved_room_config_id"] = cfg.ID
		if g.ReservedAt == nil {
			set["reserved_at"] = now
		}
	} else {
		set["status"] = models.GroupWaitlisted
		unset["reserved_room_config_id"] = ""
		unset["reserved_at"] = ""
	}

	if full {
		set["status"] = models.GroupLocked
	}
	return e.apply(ctx, g.ID, set, unset)
}

// demote returns a group to unreserved and clears any reservation fields.
func (e *Engine) demote(ctx context.Context, g models.Group) error {
	if g.Status == models.GroupUnreserved && g.ReservedRoomConfigID == nil && g.ThresholdDroppedAt == nil {
		return nil
	}
	return e.apply(ctx, g.ID,
		bson.M{"status": models.GroupUnreserved, "updated_at": time.Now().UTC()},
		bson.M{"reserved_room_config_id": "", "reserved_at": "", "threshold_dropped_at": ""},
	)
}

// release gives up a held reservation, leaving the group unreserved so the
// caller can retry a fresh claim in the same pass.
func (e *Engine) release(ctx context.Context, g *models.Group) error {
	err := e.apply(ctx, g.ID,
		bson.M{"status": models.GroupUnreserved, "updated_at": time.Now().UTC()},
		bson.M{"reserved_room_config_id": "", "reserved_at": "", "threshold_dropped_at": ""},
	)
	if err != nil {
		return err
	}
	g.Status = models.GroupUnreserved
	g.ReservedRoomConfigID = nil
	g.ReservedAt = nil
	g.ThresholdDroppedAt = nil
	return nil
}

func (e *Engine) apply(ctx context.Context, id primitive.ObjectID, set, unset bson.M) error {
	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}
	_, err := e.db.Collection("groups").UpdateByID(ctx, id, update)
	return err
}

// PromoteWaitlisted fills freed inventory from the waitlist, size by size.
// Larger groups win over smaller ones; creation time breaks ties. Runs as
// one transaction per call so a promotion cannot double-claim a slot.
func (e *Engine) PromoteWaitlisted(ctx context.Context, orgID primitive.ObjectID) error {
	return txn.Run(ctx, e.db, e.log, func(ctx context.Context) error {
		configs, err := e.configs.ListByOrg(ctx, orgID)
		if err != nil {
			return err
		}

		for _, cfg := range configs {
			heldCount, err := e.groups.CountHoldingConfig(ctx, cfg.ID)
			if err != nil {
				return err
			}
			open := cfg.TotalRooms - int(heldCount)
			if open <= 0 {
				continue
			}

			cands, err := e.groups.ListWaitlistedForSize(ctx, orgID, cfg.RoomSize)
			if err != nil {
				return err
			}
			if len(cands) == 0 {
				continue
			}

			ids := make([]primitive.ObjectID, len(cands))
			for i, g := range cands {
				ids[i] = g.ID
			}
			counts, err := e.members.CountsPerGroup(ctx, ids)
			if err != nil {
				return err
			}

			sort.SliceStable(cands, func(i, j int) bool {
				ci, cj := counts[cands[i].ID], counts[cands[j].ID]
				if ci != cj {
					return ci > cj
				}
				return cands[i].CreatedAt.Before(cands[j].CreatedAt)
			})

			thr := Threshold(cfg)
			for _, g := range cands {
				if open == 0 {
					break
				}
				n := counts[g.ID]
				if n < thr || n > cfg.RoomSize {
					continue
				}

				now := time.Now().UTC()
				status := models.GroupReserved
				if n >= cfg.RoomSize {
					status = models.GroupLocked
				}
				err := e.apply(ctx, g.ID,
					bson.M{
						"status":                  status,
						"reserved_room_config_id": cfg.ID,
						"reserved_at":             now,
						"updated_at":              now,
					},
					bson.M{"threshold_dropped_at": ""},
				)
				if err != nil {
					return err
				}
				open--
			}
		}
		return nil
	})
}
