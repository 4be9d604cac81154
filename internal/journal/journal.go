// Package journal records tool executions in SQLite.
//
// The journal is write-mostly audit data; nothing in it is ever read back to
// answer a tool call.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Entry is one finished tool call.
type Entry struct {
	ID            string
	Service       string
	Tool          string
	Status        string // ok or the error kind
	Input         json.RawMessage
	ErrorMessage  string
	ExecutionTime time.Duration
	ExecutedAt    time.Time
}

type Journal struct {
	db *sql.DB
}

// Open opens (creating if needed) the SQLite database at path.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	j, err := New(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return j, nil
}

// New wraps an existing database handle and creates the schema.
func New(db *sql.DB) (*Journal, error) {
	j := &Journal{db: db}
	if err := j.initTables(); err != nil {
		return nil, fmt.Errorf("failed to initialize journal tables: %w", err)
	}
	return j, nil
}

func (j *Journal) initTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS tool_executions (
		id TEXT PRIMARY KEY,
		service TEXT NOT NULL,
		tool TEXT NOT NULL,
		status TEXT NOT NULL,
		input_params TEXT,
		error_message TEXT,
		execution_time_ms INTEGER,
		executed_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_tool_executions_tool ON tool_executions(service, tool);
	CREATE INDEX IF NOT EXISTS idx_tool_executions_executed_at ON tool_executions(executed_at);
	`
	_, err := j.db.Exec(schema)
	return err
}

// Record inserts e, filling ID and ExecutedAt when unset.
func (j *Journal) Record(ctx context.Context, e Entry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.ExecutedAt.IsZero() {
		e.ExecutedAt = time.Now()
	}
	var input any
	if len(e.Input) > 0 {
		input = string(e.Input)
	}
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO tool_executions (id, service, tool, status, input_params, error_message, execution_time_ms, executed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.Service, e.Tool, e.Status, input, e.ErrorMessage, e.ExecutionTime.Milliseconds(), e.ExecutedAt.UTC())
	if err != nil {
		return fmt.Errorf("record execution of %s: %w", e.Tool, err)
	}
	return nil
}

// Recent returns up to n entries, newest first.
func (j *Journal) Recent(ctx context.Context, n int) ([]Entry, error) {
	if n <= 0 {
		n = 20
	}
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, service, tool, status, input_params, error_message, execution_time_ms, executed_at
		FROM tool_executions
		ORDER BY executed_at DESC, rowid DESC
		LIMIT ?
	`, n)
	if err != nil {
		return nil, fmt.Errorf("query executions: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e       Entry
			input   sql.NullString
			errMsg  sql.NullString
			elapsed sql.NullInt64
		)
		if err := rows.Scan(&e.ID, &e.Service, &e.Tool, &e.Status, &input, &errMsg, &elapsed, &e.ExecutedAt); err != nil {
			return nil, fmt.Errorf("scan execution: %w", err)
		}
		if input.Valid {
			e.Input = json.RawMessage(input.String)
		}
		e.ErrorMessage = errMsg.String
		e.ExecutionTime = time.Duration(elapsed.Int64) * time.Millisecond
		out = append(out, e)
	}
	return out, rows.Err()
}

func (j *Journal) Close() error {
	return j.db.Close()
}
