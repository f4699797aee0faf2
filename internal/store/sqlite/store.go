package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/loykin/apiverify/internal/common"
	"github.com/loykin/apiverify/internal/store/connector"
)

// Store is the SQLite connector.
type Store struct {
	db      *sql.DB
	dialect *Dialect
	DSN     string
}

func NewStore() *Store {
	return &Store{
		dialect: NewDialect(),
	}
}

// Load loads configuration into the SQLite store
func (s *Store) Load(config map[string]interface{}) error {
	if dsn, ok := config["dsn"].(string); ok && dsn != "" {
		s.DSN = dsn
		return nil
	}
	if path, ok := config["path"].(string); ok && path != "" {
		timeout, ok := config["busy_timeout_ms"].(int64)
		if !ok || timeout <= 0 {
			timeout = defaultBusyTimeout.Milliseconds()
		}
		s.DSN = fmt.Sprintf("file:%s?_busy_timeout=%d&%s", path, timeout, foreignKeysParam)
	}
	return nil
}

// Connect establishes a connection; an empty DSN opens an in-memory database.
func (s *Store) Connect() (*sql.DB, error) {
	if s.DSN == "" {
		s.DSN = ":memory:"
	}

	db, err := s.dialect.Connect(s.DSN)
	if err != nil {
		return nil, err
	}
	s.db = db

	common.GetLogger().WithStore("sqlite").Info("SQLite database connection established successfully")
	return db, nil
}

func (s *Store) Validate() error {
	return nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ensure creates the call_runs table
func (s *Store) Ensure(th connector.TableNames) error {
	if s.db == nil {
		return errors.New("sqlite store is not connected")
	}
	logger := common.GetLogger().WithStore("sqlite")
	logger.Debug("ensuring SQLite database schema", "table", th.CallRuns)

	for i, q := range s.dialect.GetEnsureStatements(th.CallRuns) {
		if _, err := s.db.Exec(q); err != nil {
			logger.Error("failed to run schema statement", "error", err, "statement_index", i+1)
			return fmt.Errorf("failed to run schema statement %d: %w", i+1, err)
		}
	}
	return nil
}

// RecordRun inserts a call run
func (s *Store) RecordRun(th connector.TableNames, run connector.Run) (int64, error) {
	logger := common.GetLogger().WithStore("sqlite").WithRun(run.RunID)
	logger.Debug("recording call run", "call_id", run.CallID, "outcome", run.Outcome, "status", run.StatusCode)

	envJSON, err := connector.MarshalEnv(run.Env)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal environment for call run %s: %w", run.CallID, err)
	}
	q := connector.InsertSQL(th.CallRuns, s.dialect.GetPlaceholder)
	res, err := s.db.Exec(q, connector.InsertArgs(run, envJSON, s.dialect.ConvertTimeToStorage(time.Now()))...)
	if err != nil {
		logger.Error("failed to record call run", "error", err)
		return 0, fmt.Errorf("failed to record call run %s: %w", run.CallID, err)
	}
	return res.LastInsertId()
}

// ListRuns returns call runs ordered by id
func (s *Store) ListRuns(th connector.TableNames, f connector.Filter) ([]connector.Run, error) {
	q, args := connector.SelectSQL(th.CallRuns, f, s.dialect.GetPlaceholder)
	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list call runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []connector.Run
	for rows.Next() {
		var (
			run     connector.Run
			body    sql.NullString
			envJSON sql.NullString
			ranAt   string
		)
		if err := rows.Scan(&run.ID, &run.RunID, &run.CallID, &run.Description, &run.Method, &run.URL,
			&run.StatusCode, &run.Outcome, &run.Error, &run.DurationMS, &body, &envJSON, &ranAt); err != nil {
			return nil, fmt.Errorf("failed to scan call run: %w", err)
		}
		if body.Valid {
			run.Body = &body.String
		}
		run.Env = connector.UnmarshalEnv(envJSON)
		run.RanAt = s.dialect.ConvertTimeFromStorage(ranAt)
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating call runs: %w", err)
	}
	return runs, nil
}
