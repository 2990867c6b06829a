// Package postgres stores the line event log in Postgres.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

// EventRow is one stored event.
type EventRow struct {
	EventID   int64                  `json:"event_id"`
	Timestamp time.Time              `json:"ts"`
	Level     string                 `json:"level"`
	Event     string                 `json:"event"`
	Message   *string                `json:"msg,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
	LineID    string                 `json:"line_id"`
	RunID     *string                `json:"run_id,omitempty"`
}

// Options holds connection settings. LineID tags every row written.
type Options struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	LineID   string
}

// ConnString builds a lib/pq keyword/value connection string. The password
// is omitted when empty.
func (o Options) ConnString() string {
	parts := []string{
		"host=" + quote(o.Host),
		fmt.Sprintf("port=%d", o.Port),
		"user=" + quote(o.User),
	}
	if o.Password != "" {
		parts = append(parts, "password="+quote(o.Password))
	}
	parts = append(parts, "dbname="+quote(o.DBName))
	sslmode := o.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	parts = append(parts, "sslmode="+sslmode)
	return strings.Join(parts, " ")
}

func quote(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

// Client writes and reads the line_events table.
type Client struct {
	db     *sql.DB
	lineID string
}

// New connects, verifies the connection and creates the table if needed.
func New(ctx context.Context, opts Options) (*Client, error) {
	if opts.LineID == "" {
		return nil, fmt.Errorf("line id is required")
	}

	db, err := sql.Open("postgres", opts.ConnString())
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	client, err := newClient(ctx, db, opts.LineID)
	if err != nil {
		db.Close()
		return nil, err
	}
	return client, nil
}

// newClient prepares the table on an open database.
func newClient(ctx context.Context, db *sql.DB, lineID string) (*Client, error) {
	client := &Client{db: db, lineID: lineID}
	if err := client.createTable(ctx); err != nil {
		return nil, fmt.Errorf("failed to create line_events table: %w", err)
	}
	return client, nil
}

func (c *Client) createTable(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS line_events (
			event_id BIGSERIAL PRIMARY KEY,
			ts       TIMESTAMPTZ NOT NULL,
			level    TEXT NOT NULL,
			event    TEXT NOT NULL,
			msg      TEXT,
			fields   JSONB,
			line_id  TEXT NOT NULL,
			run_id   TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_line_events_ts ON line_events(ts DESC);
		CREATE INDEX IF NOT EXISTS idx_line_events_run ON line_events(line_id, run_id);
	`
	_, err := c.db.ExecContext(ctx, query)
	return err
}

// Append inserts one event. It satisfies events.Store.
func (c *Client) Append(ts time.Time, level, event, msg string, fields map[string]interface{}, runID string) error {
	var fieldsJSON []byte
	if fields != nil {
		var err error
		fieldsJSON, err = json.Marshal(fields)
		if err != nil {
			return fmt.Errorf("failed to marshal fields: %w", err)
		}
	}

	query := `
		INSERT INTO line_events (ts, level, event, msg, fields, line_id, run_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := c.db.Exec(query, ts, level, event, nullable(msg), fieldsJSON, c.lineID, nullable(runID))
	return err
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Query returns the newest events of the line, newest first. An empty runID
// matches every run.
func (c *Client) Query(ctx context.Context, runID string, limit int) ([]EventRow, error) {
	limit = clampLimit(limit)

	query := `
		SELECT event_id, ts, level, event, msg, fields, line_id, run_id
		FROM line_events
		WHERE line_id = $1 AND ($2 = '' OR run_id = $2)
		ORDER BY ts DESC
		LIMIT $3
	`
	rows, err := c.db.QueryContext(ctx, query, c.lineID, runID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EventRow
	for rows.Next() {
		var e EventRow
		var fieldsJSON []byte
		var msg, run sql.NullString

		if err := rows.Scan(&e.EventID, &e.Timestamp, &e.Level, &e.Event, &msg, &fieldsJSON, &e.LineID, &run); err != nil {
			return nil, err
		}
		if msg.Valid {
			e.Message = &msg.String
		}
		if run.Valid {
			e.RunID = &run.String
		}
		if len(fieldsJSON) > 0 {
			if err := json.Unmarshal(fieldsJSON, &e.Fields); err != nil {
				return nil, fmt.Errorf("failed to unmarshal fields: %w", err)
			}
		}
		out = append(out, e)
	}

	return out, rows.Err()
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 200
	}
	if limit > 10000 {
		return 10000
	}
	return limit
}

func (c *Client) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}
