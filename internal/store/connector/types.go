package connector

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
)

// Run is one recorded call execution from the call_runs table. Body may be
// nil when not saved; Env may be empty when nothing was extracted.
type Run struct {
	ID          int64
	RunID       string // suite run the call belonged to, empty for ad-hoc calls
	CallID      string
	Description string
	Method      string
	URL         string
	StatusCode  int
	Outcome     string
	Error       string
	DurationMS  int64
	Body        *string
	Env         map[string]string
	RanAt       string // RFC3339Nano
}

// Filter narrows ListRuns. Zero values match everything; Limit <= 0 means no limit.
type Filter struct {
	RunID   string
	Outcome string
	Limit   int
}

// TableNames represents database table names
type TableNames struct {
	CallRuns string
}

type Connector interface {
	Connect() (*sql.DB, error)
	Validate() error
	Load(config map[string]interface{}) error
	Ensure(th TableNames) error
	// RecordRun inserts run and returns its id. RanAt is set by the connector.
	RecordRun(th TableNames, run Run) (int64, error)
	// ListRuns returns matching runs ordered by id ASC
	ListRuns(th TableNames, f Filter) ([]Run, error)
	Close() error
}

// InsertColumns lists the call_runs columns written by RecordRun, in order.
const InsertColumns = "run_id, call_id, description, method, url, status_code, outcome, error, duration_ms, body, env_json, ran_at"

// SelectColumns lists the call_runs columns read by ListRuns, in order.
const SelectColumns = "id, " + InsertColumns

// InsertArgs returns the values for InsertColumns.
func InsertArgs(run Run, envJSON *string, ranAt interface{}) []interface{} {
	return []interface{}{
		run.RunID, run.CallID, run.Description, run.Method, run.URL,
		run.StatusCode, run.Outcome, run.Error, run.DurationMS, run.Body, envJSON, ranAt,
	}
}

// InsertSQL renders the insert statement; ph renders the 1-based placeholder.
func InsertSQL(table string, ph func(i int) string) string {
	n := len(strings.Split(InsertColumns, ","))
	marks := make([]string, n)
	for i := range marks {
		marks[i] = ph(i + 1)
	}
	return fmt.Sprintf("INSERT INTO %s(%s) VALUES(%s)", table, InsertColumns, strings.Join(marks, ","))
}

// SelectSQL renders the ListRuns query for f.
func SelectSQL(table string, f Filter, ph func(i int) string) (string, []interface{}) {
	var (
		where []string
		args  []interface{}
	)
	if f.RunID != "" {
		args = append(args, f.RunID)
		where = append(where, "run_id = "+ph(len(args)))
	}
	if f.Outcome != "" {
		args = append(args, f.Outcome)
		where = append(where, "outcome = "+ph(len(args)))
	}
	q := fmt.Sprintf("SELECT %s FROM %s", SelectColumns, table)
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY id ASC"
	if f.Limit > 0 {
		q += fmt.Sprintf(" LIMIT %d", f.Limit)
	}
	return q, args
}

// MarshalEnv encodes env for the env_json column; empty maps are stored as NULL.
func MarshalEnv(env map[string]string) (*string, error) {
	if len(env) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(env)
	if err != nil {
		return nil, err
	}
	s := string(b)
	return &s, nil
}

// UnmarshalEnv decodes an env_json column, tolerating NULL and bad JSON.
func UnmarshalEnv(v sql.NullString) map[string]string {
	out := map[string]string{}
	if v.Valid && v.String != "" {
		_ = json.Unmarshal([]byte(v.String), &out)
	}
	return out
}
