// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"

	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hallmatch/hallmatch/internal/app/engine/consent"
	"github.com/hallmatch/hallmatch/internal/app/engine/finalize"
	"github.com/hallmatch/hallmatch/internal/app/engine/lifecycle"
	"github.com/hallmatch/hallmatch/internal/app/engine/mediator"
	"github.com/hallmatch/hallmatch/internal/app/engine/merge"
	"github.com/hallmatch/hallmatch/internal/app/engine/reservation"
	adminopsfeature "github.com/hallmatch/hallmatch/internal/app/features/adminops"
	groupsfeature "github.com/hallmatch/hallmatch/internal/app/features/groups"
	healthfeature "github.com/hallmatch/hallmatch/internal/app/features/health"
	matchesfeature "github.com/hallmatch/hallmatch/internal/app/features/matches"
	profilefeature "github.com/hallmatch/hallmatch/internal/app/features/profile"
	requestsfeature "github.com/hallmatch/hallmatch/internal/app/features/requests"
	"github.com/hallmatch/hallmatch/internal/app/system/auth"
	"github.com/hallmatch/hallmatch/internal/app/system/sweep"
)

// sweeper is started in BuildHandler and stopped in Shutdown.
var sweeper *sweep.Worker

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// any Startup hooks have completed. HallMatch builds the engine stack once
// here and hands the shared instances to every feature: the reservation
// engine is the only thing allowed to flip group statuses, so all features
// must funnel through the same one.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	db := deps.MongoDatabase

	// Session middleware. Secure cookies are enabled in production mode.
	secure := coreCfg.Env == "prod"
	sessionMgr := auth.NewSessionManager(appCfg.SessionKey, appCfg.SessionName, appCfg.SessionDomain, secure, logger)

	// Engine stack, shared across features.
	rsv := reservation.New(db, logger)
	life := lifecycle.New(db, logger, rsv)
	consents := consent.New(db, logger, rsv, life)
	merges := merge.New(db, logger, rsv)
	med := mediator.New(db, logger, life, consents, merges)
	fin := finalize.New(db, logger, rsv, life, appCfg.AutoAssignMaxCluster)

	r := chi.NewRouter()

	// Global auth middleware: loads the session student into context.
	r.Use(sessionMgr.LoadSessionStudent)

	// Health check endpoint for load balancers and orchestrators.
	healthHandler := healthfeature.NewHandler(deps.MongoClient, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	// Group lifecycle, endorsements, invites, merges.
	groupsHandler := groupsfeature.NewHandler(db, logger, life, consents, merges)
	r.Mount("/groups", groupsfeature.Routes(groupsHandler))
	r.Mount("/invites", groupsfeature.InviteRoutes(groupsHandler))
	r.Mount("/merges", groupsfeature.MergeRoutes(groupsHandler))

	// Mutual roommate requests.
	requestsHandler := requestsfeature.NewHandler(db, logger, med)
	r.Mount("/requests", requestsfeature.Routes(requestsHandler))

	// Compatibility suggestions.
	matchesHandler := matchesfeature.NewHandler(db, logger)
	r.Mount("/matches", matchesfeature.Routes(matchesHandler))

	// The caller's own roster entry.
	profileHandler := profilefeature.NewHandler(db, logger)
	r.Mount("/profile", profilefeature.Routes(profileHandler))

	// Admin surface: inventory, overview, finalizer.
	adminHandler := adminopsfeature.NewHandler(db, logger, fin)
	r.Mount("/admin", adminopsfeature.Routes(adminHandler))

	// Background expiry of stale invites, merge proposals, and requests.
	sweeper = sweep.NewWorker(db, logger, appCfg.SweepInterval)
	sweeper.Start()

	return r, nil
}
