// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables, configuration files, or
// command-line flags (loaded in LoadConfig). They represent *app-level*
// configuration, not WAFFLE core configuration: WAFFLE's CoreConfig
// handles ports, TLS, logging level, and the like, while AppConfig is
// everything specific to HallMatch itself.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64 // Max connection pool size
	MongoMinPoolSize uint64 // Min connection pool size

	// Session management configuration
	SessionKey    string // Secret key for signing session cookies (must be strong in production)
	SessionName   string // Cookie name for sessions (default: hallmatch-session)
	SessionDomain string // Cookie domain (blank means current host)

	// Auto-assignment configuration
	AutoAssignMaxCluster int // Largest group the finalizer builds from solo students

	// How often the background sweeper expires stale invites, merge
	// proposals, and roommate requests.
	SweepInterval time.Duration
}
