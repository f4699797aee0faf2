// Package store persists the history of executed calls in SQLite or PostgreSQL.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	"github.com/loykin/apiverify/internal/common"
	"github.com/loykin/apiverify/internal/constants"
	"github.com/loykin/apiverify/internal/retry"
	"github.com/loykin/apiverify/internal/store/connector"
	"github.com/loykin/apiverify/internal/store/postgresql"
	"github.com/loykin/apiverify/internal/store/sqlite"
)

const (
	DriverSqlite     = "sqlite"
	DriverPostgresql = "postgresql"
)

type (
	Run            = connector.Run
	Filter         = connector.Filter
	TableNames     = connector.TableNames
	SqliteConfig   = sqlite.Config
	PostgresConfig = postgresql.Config
)

type DriverConfig interface {
	ToMap() map[string]interface{}
}

type Config struct {
	Driver       string `mapstructure:"driver"`
	TablePrefix  string `mapstructure:"table_prefix"`
	DriverConfig DriverConfig
}

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// TableNamesWithPrefix returns "<prefix>_call_runs", or the default table name
// for an empty prefix.
func TableNamesWithPrefix(prefix string) (TableNames, error) {
	p := strings.TrimSpace(prefix)
	if p == "" {
		return TableNames{CallRuns: constants.DefaultCallRunsTable}, nil
	}
	name := p + constants.CallRunsSuffix
	if !identRe.MatchString(name) {
		return TableNames{}, fmt.Errorf("invalid table prefix %q", prefix)
	}
	return TableNames{CallRuns: name}, nil
}

// Store is the history store facade over a driver connector.
type Store struct {
	Driver string
	DB     *sql.DB
	// Retry controls retries of transient errors; nil uses the defaults.
	Retry     *retry.Config
	tn        TableNames
	connector connector.Connector
}

func newConnector(driver string) (connector.Connector, string, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", DriverSqlite, "sqlite3":
		return sqlite.NewStore(), DriverSqlite, nil
	case DriverPostgresql, "postgres", "pg":
		return postgresql.NewStore(), DriverPostgresql, nil
	default:
		return nil, "", fmt.Errorf("unsupported store driver: %s", driver)
	}
}

// Open connects to the configured backend and ensures the schema exists.
func Open(cfg Config) (*Store, error) {
	conn, driver, err := newConnector(cfg.Driver)
	if err != nil {
		return nil, err
	}
	tn, err := TableNamesWithPrefix(cfg.TablePrefix)
	if err != nil {
		return nil, err
	}
	if cfg.DriverConfig != nil {
		if err := conn.Load(cfg.DriverConfig.ToMap()); err != nil {
			return nil, fmt.Errorf("load %s config: %w", driver, err)
		}
	}
	if err := conn.Validate(); err != nil {
		return nil, err
	}
	db, err := conn.Connect()
	if err != nil {
		return nil, err
	}
	if err := conn.Ensure(tn); err != nil {
		_ = conn.Close()
		return nil, err
	}
	common.GetLogger().WithStore(driver).Debug("history store ready", "table", tn.CallRuns)
	return &Store{Driver: driver, DB: db, tn: tn, connector: conn}, nil
}

func (s *Store) TableNames() TableNames { return s.tn }

// RecordRun inserts run, retrying transient errors such as a locked sqlite file.
func (s *Store) RecordRun(run Run) (int64, error) {
	return retry.Do(context.Background(), s.Retry, func() (int64, error) {
		return s.connector.RecordRun(s.tn, run)
	})
}

func (s *Store) ListRuns(f Filter) ([]Run, error) {
	return retry.Do(context.Background(), s.Retry, func() ([]Run, error) {
		return s.connector.ListRuns(s.tn, f)
	})
}

// ListRunsByRun returns the calls recorded for one suite run.
func (s *Store) ListRunsByRun(runID string) ([]Run, error) {
	return s.ListRuns(Filter{RunID: runID})
}

func (s *Store) Close() error {
	if s == nil || s.connector == nil {
		return nil
	}
	return s.connector.Close()
}
