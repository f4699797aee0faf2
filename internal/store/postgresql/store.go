package postgresql

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/loykin/apiverify/internal/common"
	"github.com/loykin/apiverify/internal/store/connector"
)

// Store is the PostgreSQL connector.
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

// Load loads configuration into the PostgreSQL store
func (p *Store) Load(config map[string]interface{}) error {
	if dsn, ok := config["dsn"].(string); ok && dsn != "" {
		p.DSN = dsn
	}
	return nil
}

// Validate requires a DSN, either explicit or built from host components.
func (p *Store) Validate() error {
	if strings.TrimSpace(p.DSN) == "" {
		return errors.New("postgresql store requires dsn or host")
	}
	return nil
}

func (p *Store) Connect() (*sql.DB, error) {
	db, err := p.dialect.Connect(p.DSN)
	if err != nil {
		return nil, err
	}
	p.db = db

	common.GetLogger().WithStore("postgresql").Info("PostgreSQL database connection established successfully")
	return db, nil
}

func (p *Store) Close() error {
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}

// Ensure creates the call_runs table
func (p *Store) Ensure(th connector.TableNames) error {
	logger := common.GetLogger().WithStore("postgresql")
	logger.Debug("ensuring PostgreSQL database schema", "table", th.CallRuns)

	for i, q := range p.dialect.GetEnsureStatements(th.CallRuns) {
		if _, err := p.db.Exec(q); err != nil {
			logger.Error("failed to run schema statement", "error", err, "statement_index", i+1)
			return fmt.Errorf("failed to run PostgreSQL schema statement %d: %w", i+1, err)
		}
	}
	return nil
}

// RecordRun inserts a call run and returns the generated id
func (p *Store) RecordRun(th connector.TableNames, run connector.Run) (int64, error) {
	envJSON, err := connector.MarshalEnv(run.Env)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal environment for PostgreSQL call run %s: %w", run.CallID, err)
	}
	q := connector.InsertSQL(th.CallRuns, p.dialect.GetPlaceholder) + " RETURNING id"
	var id int64
	args := connector.InsertArgs(run, envJSON, p.dialect.ConvertTimeToStorage(time.Now()))
	if err := p.db.QueryRow(q, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to record PostgreSQL call run %s: %w", run.CallID, err)
	}
	return id, nil
}

// ListRuns returns call runs ordered by id
func (p *Store) ListRuns(th connector.TableNames, f connector.Filter) ([]connector.Run, error) {
	q, args := connector.SelectSQL(th.CallRuns, f, p.dialect.GetPlaceholder)
	rows, err := p.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list PostgreSQL call runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []connector.Run
	for rows.Next() {
		var (
			run     connector.Run
			body    sql.NullString
			envJSON sql.NullString
			ranAt   time.Time
		)
		if err := rows.Scan(&run.ID, &run.RunID, &run.CallID, &run.Description, &run.Method, &run.URL,
			&run.StatusCode, &run.Outcome, &run.Error, &run.DurationMS, &body, &envJSON, &ranAt); err != nil {
			return nil, fmt.Errorf("failed to scan PostgreSQL call run: %w", err)
		}
		if body.Valid {
			run.Body = &body.String
		}
		run.Env = connector.UnmarshalEnv(envJSON)
		run.RanAt = p.dialect.ConvertTimeFromStorage(&ranAt)
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating PostgreSQL call runs: %w", err)
	}
	return runs, nil
}
