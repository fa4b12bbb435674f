// internal/app/engine/finalize/finalize.go

// Package finalize is the deadline pass an organization admin runs once
// the matching window closes. It tops up forming groups with solo
// students, clusters the rest by compatibility, places the clusters into
// remaining inventory, and force-locks every group. The pass is meant to
// run once but is safe to repeat: locked groups and placed students are
// skipped the second time around.
package finalize

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/hallmatch/hallmatch/internal/app/engine/lifecycle"
	"github.com/hallmatch/hallmatch/internal/app/engine/reservation"
	"github.com/hallmatch/hallmatch/internal/app/engine/score"
	groupstore "github.com/hallmatch/hallmatch/internal/app/store/groups"
	memberstore "github.com/hallmatch/hallmatch/internal/app/store/members"
	roomconfigstore "github.com/hallmatch/hallmatch/internal/app/store/roomconfigs"
	studentstore "github.com/hallmatch/hallmatch/internal/app/store/students"
	"github.com/hallmatch/hallmatch/internal/app/system/sweep"
	"github.com/hallmatch/hallmatch/internal/domain/models"
)

// DefaultMaxCluster caps auto-formed groups when configuration does not
// say otherwise.
const DefaultMaxCluster = 4

type Finalizer struct {
	db         *mongo.Database
	log        *zap.Logger
	rsv        *reservation.Engine
	life       *lifecycle.Manager
	groups     *groupstore.Store
	members    *memberstore.Store
	students   *studentstore.Store
	configs    *roomconfigstore.Store
	maxCluster int
}

func New(db *mongo.Database, log *zap.Logger, rsv *reservation.Engine, life *lifecycle.Manager, maxCluster int) *Finalizer {
	if maxCluster < 2 {
		maxCluster = DefaultMaxCluster
	}
	return &Finalizer{
		db:         db,
		log:        log,
		rsv:        rsv,
		life:       life,
		groups:     groupstore.New(db),
		members:    memberstore.New(db),
		students:   studentstore.New(db),
		configs:    roomconfigstore.New(db),
		maxCluster: maxCluster,
	}
}

// Report summarizes one finalize pass.
type Report struct {
	Swept         int64                `json:"swept"`
	ToppedUp      int                  `json:"topped_up"`
	GroupsCreated int                  `json:"groups_created"`
	Placed        int                  `json:"placed"`
	Unplaced      []primitive.ObjectID `json:"unplaced"`
	GroupsLocked  int64                `json:"groups_locked"`
}

// Run executes the full pass for one organization.
func (f *Finalizer) Run(ctx context.Context, orgID primitive.ObjectID) (Report, error) {
	var rep Report

	swept, err := sweep.Run(ctx, f.db)
	if err != nil {
		return rep, err
	}
	rep.Swept = swept

	configs, err := f.configs.ListByOrg(ctx, orgID)
	if err != nil {
		return rep, err
	}
	limit := f.clusterCap(configs)

	solos, err := f.soloStudents(ctx, orgID)
	if err != nil {
		return rep, err
	}

	solos, err = f.topUp(ctx, orgID, solos, &rep)
	if err != nil {
		return rep, err
	}

	clusters := f.cluster(solos, limit)

	if err := f.place(ctx, orgID, configs, clusters, &rep); err != nil {
		return rep, err
	}

	locked, err := f.lockAll(ctx, orgID)
	if err != nil {
		return rep, err
	}
	rep.GroupsLocked = locked

	f.log.Info("finalize pass complete",
		zap.String("org_id", orgID.Hex()),
		zap.Int("topped_up", rep.ToppedUp),
		zap.Int("groups_created", rep.GroupsCreated),
		zap.Int("placed", rep.Placed),
		zap.Int("unplaced", len(rep.Unplaced)),
		zap.Int64("groups_locked", rep.GroupsLocked))
	return rep, nil
}

// clusterCap is the configured maximum, never larger than the biggest
// room the organization actually offers.
func (f *Finalizer) clusterCap(configs []models.RoomConfig) int {
	cap := f.maxCluster
	largest := 0
	for _, c := range configs {
		if c.RoomSize > largest {
			largest = c.RoomSize
		}
	}
	if largest > 0 && cap > largest {
		cap = largest
	}
	if cap < 2 {
		cap = 2
	}
	return cap
}

// soloStudents is the claimed roster minus everyone already in a group.
func (f *Finalizer) soloStudents(ctx context.Context, orgID primitive.ObjectID) ([]models.Student, error) {
	roster, err := f.students.ListClaimedByOrg(ctx, orgID)
	if err != nil {
		return nil, err
	}
	grouped, err := f.members.GroupedStudentIDs(ctx, orgID)
	if err != nil {
		return nil, err
	}

	var solos []models.Student
	for _, st := range roster {
		if !grouped[st.ID] {
			solos = append(solos, st)
		}
	}
	return solos, nil
}

// topUp fills unlocked groups that have a fixed target and open seats,
// best-compatible solo first. Returns the solos still unplaced.
func (f *Finalizer) topUp(ctx context.Context, orgID primitive.ObjectID, solos []models.Student, rep *Report) ([]models.Student, error) {
	groups, err := f.groups.ListByOrg(ctx, orgID)
	if err != nil {
		return solos, err
	}

	for _, g := range groups {
		if g.Status == models.GroupLocked || g.TargetRoomSize == nil {
			continue
		}
		n64, err := f.members.CountByGroup(ctx, g.ID)
		if err != nil {
			return solos, err
		}
		open := *g.TargetRoomSize - int(n64)
		if open <= 0 || len(solos) == 0 {
			continue
		}

		memberStudents, err := f.memberStudents(ctx, g.ID)
		if err != nil {
			return solos, err
		}

		added := 0
		for open > 0 && len(solos) > 0 {
			pick := bestFit(memberStudents, solos)
			st := solos[pick]
			err := f.members.Add(ctx, g.ID, st.ID, orgID)
			if errors.Is(err, memberstore.ErrAlreadyInGroup) {
				solos = append(solos[:pick], solos[pick+1:]...)
				continue
			}
			if err != nil {
				return solos, err
			}
			memberStudents = append(memberStudents, st)
			solos = append(solos[:pick], solos[pick+1:]...)
			open--
			added++
			rep.ToppedUp++
		}
		if added > 0 {
			if err := f.rsv.Reevaluate(ctx, g.ID); err != nil {
				return solos, err
			}
		}
	}
	return solos, nil
}

func (f *Finalizer) memberStudents(ctx context.Context, groupID primitive.ObjectID) ([]models.Student, error) {
	members, err := f.members.ListByGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	students := make([]models.Student, 0, len(members))
	for _, m := range members {
		st, err := f.students.GetByID(ctx, m.StudentID)
		if errors.Is(err, mongo.ErrNoDocuments) {
			continue
		}
		if err != nil {
			return nil, err
		}
		students = append(students, st)
	}
	return students, nil
}

// bestFit picks the candidate whose average compatibility with the
// existing members is highest.
func bestFit(members []models.Student, candidates []models.Student) int {
	best, bestScore := 0, -1.0
	for i, cand := range candidates {
		s := avgCompatibility(members, cand)
		if s > bestScore {
			best, bestScore = i, s
		}
	}
	return best
}

func avgCompatibility(members []models.Student, cand models.Student) float64 {
	if len(members) == 0 {
		return 0
	}
	var sum float64
	for _, m := range members {
		r := score.Compatibility(m.SurveyAnswers, cand.SurveyAnswers, nil, m.Personality, cand.Personality)
		sum += float64(r.Score)
	}
	return sum / float64(len(members))
}

// cluster greedily groups the remaining solos: each seed pulls in its most
// compatible remaining peer until the cluster hits the cap or no peers
// remain. Students who never filled out the survey land in singleton
// clusters rather than being forced next to strangers by a neutral score.
func (f *Finalizer) cluster(solos []models.Student, limit int) [][]models.Student {
	var clusters [][]models.Student
	used := make(map[primitive.ObjectID]bool, len(solos))

	surveyed := make([]models.Student, 0, len(solos))
	for _, st := range solos {
		if len(st.SurveyAnswers) > 0 {
			surveyed = append(surveyed, st)
		} else {
			clusters = append(clusters, []models.Student{st})
			used[st.ID] = true
		}
	}

	for _, seed := range surveyed {
		if used[seed.ID] {
			continue
		}
		used[seed.ID] = true
		cluster := []models.Student{seed}

		for len(cluster) < limit {
			var remaining []models.Student
			for _, st := range surveyed {
				if !used[st.ID] {
					remaining = append(remaining, st)
				}
			}
			if len(remaining) == 0 {
				break
			}
			pick := bestFit(cluster, remaining)
			used[remaining[pick].ID] = true
			cluster = append(cluster, remaining[pick])
		}
		clusters = append(clusters, cluster)
	}
	return clusters
}

// place creates a group per cluster in the smallest config that fits and
// still has inventory. Clusters nothing can hold are reported unplaced.
func (f *Finalizer) place(ctx context.Context, orgID primitive.ObjectID, configs []models.RoomConfig, clusters [][]models.Student, rep *Report) error {
	for _, cluster := range clusters {
		cfg, ok, err := f.findOpenConfig(ctx, configs, len(cluster))
		if err != nil {
			return err
		}
		if !ok {
			for _, st := range cluster {
				rep.Unplaced = append(rep.Unplaced, st.ID)
			}
			continue
		}

		target := cfg.RoomSize
		g, err := f.groups.Create(ctx, models.Group{
			OrganizationID: orgID,
			LeaderID:       cluster[0].ID,
			TargetRoomSize: &target,
		})
		if err != nil {
			return err
		}
		placedHere := 0
		for _, st := range cluster {
			err := f.members.Add(ctx, g.ID, st.ID, orgID)
			if errors.Is(err, memberstore.ErrAlreadyInGroup) {
				continue
			}
			if err != nil {
				return err
			}
			placedHere++
		}
		if err := f.rsv.Reevaluate(ctx, g.ID); err != nil {
			return err
		}
		rep.GroupsCreated++
		rep.Placed += placedHere
	}
	return nil
}

func (f *Finalizer) findOpenConfig(ctx context.Context, configs []models.RoomConfig, size int) (models.RoomConfig, bool, error) {
	for _, cfg := range configs {
		if cfg.RoomSize < size {
			continue
		}
		held, err := f.groups.CountHoldingConfig(ctx, cfg.ID)
		if err != nil {
			return models.RoomConfig{}, false, err
		}
		if int(held) < cfg.TotalRooms {
			return cfg, true, nil
		}
	}
	return models.RoomConfig{}, false, nil
}

// lockAll force-locks the organization's groups, pass complete.
func (f *Finalizer) lockAll(ctx context.Context, orgID primitive.ObjectID) (int64, error) {
	groups, err := f.groups.ListByOrg(ctx, orgID)
	if err != nil {
		return 0, err
	}
	var locked int64
	for _, g := range groups {
		if g.Status == models.GroupLocked {
			continue
		}
		if err := f.life.ForceLock(ctx, g.ID); err != nil {
			return locked, err
		}
		locked++
	}
	return locked, nil
}
