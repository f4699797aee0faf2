package constants

import "time"

// Database Constants
const (
	DefaultPostgresPort    = 5432
	DefaultPostgresSSLMode = "disable"

	DefaultPostgresMaxConnections = 25
	DefaultPostgresMaxIdleConns   = 5
	DefaultSQLiteMaxConnections   = 1 // SQLite allows only one writer
	DefaultSQLiteMaxIdleConns     = 1

	DefaultCallRunsTable = "call_runs"
	CallRunsSuffix       = "_call_runs"

	// DefaultDBFileName is the sqlite file used when no path is configured.
	DefaultDBFileName = "apiverify.db"
)

// Time and Duration Constants
const (
	DefaultMaxConnLifetime = 5 * time.Minute
	DefaultMaxIdleTime     = 1 * time.Minute
	DefaultSQLiteLifetime  = 10 * time.Minute
	DefaultSQLiteIdleTime  = 5 * time.Minute

	// DefaultSQLiteBusyTimeout is how long a writer waits on a locked database.
	DefaultSQLiteBusyTimeout = 5 * time.Second

	// DefaultRequestTimeout bounds a single transport call when the config sets none.
	DefaultRequestTimeout = 30 * time.Second
)

// HTTP Constants
const (
	HeaderAuthorization = "Authorization"
	HeaderContentType   = "Content-Type"
	ContentTypeJSON     = "application/json"
	ContentTypeYAML     = "application/yaml"
)
