// internal/app/system/sweep/sweep.go

// Package sweep flips past-due invites, merge requests, and roommate
// requests to "expired". Rows are updated in place rather than deleted so
// the audit history survives. The pass is idempotent: it is called at the
// head of request-listing and approval paths, and a background worker runs
// it on a ticker as a backstop.
package sweep

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/hallmatch/hallmatch/internal/domain/models"
)

var timeBoundedCollections = []string{"invites", "merge_requests", "roommate_requests"}

// Run expires all past-due pending records. Returns the total flipped.
func Run(ctx context.Context, db *mongo.Database) (int64, error) {
	now := time.Now().UTC()
	var total int64
	for _, name := range timeBoundedCollections {
		res, err := db.Collection(name).UpdateMany(ctx,
			bson.M{"status": models.ConsentPending, "expires_at": bson.M{"$lt": now}},
			bson.M{"$set": bson.M{"status": models.ConsentExpired, "updated_at": now}},
		)
		if err != nil {
			return total, err
		}
		total += res.ModifiedCount
	}
	return total, nil
}

// Worker runs the expiry sweep on a ticker.
type Worker struct {
	db       *mongo.Database
	log      *zap.Logger
	interval time.Duration
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewWorker creates a sweep worker. Interval is typically one minute.
func NewWorker(db *mongo.Database, log *zap.Logger, interval time.Duration) *Worker {
	return &Worker{
		db:       db,
		log:      log,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the background sweep loop.
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.run()
	w.log.Info("expiry sweep worker started", zap.Duration("interval", w.interval))
}

// Stop signals the worker to stop and waits for it to finish.
func (w *Worker) Stop() {
	close(w.stopCh)
	w.wg.Wait()
	w.log.Info("expiry sweep worker stopped")
}

func (w *Worker) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.sweep()
		}
	}
}

func (w *Worker) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	count, err := Run(ctx, w.db)
	if err != nil {
		w.log.Error("expiry sweep failed", zap.Error(err))
		return
	}
	if count > 0 {
		w.log.Info("expired stale records", zap.Int64("count", count))
	}
}
