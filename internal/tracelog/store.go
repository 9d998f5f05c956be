// Package tracelog persists pipeline run events to a local sqlite
// database, following sqlitevec.Backend's connect/init/prepared-statement
// shape in the teacher but trading its vector-memory schema for a flat
// event log. It implements observability.EventStore so the CLI's
// `graphquery history` command can replay a run's timeline days after the
// process that ran it has exited — the in-memory store the rest of the
// pipeline uses for `ask --verbose` doesn't survive a restart.
package tracelog

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	_ "modernc.org/sqlite" // pure-Go sqlite driver

	"github.com/haasonsaas/graphquery/internal/observability"
)

// Store is a sqlite-backed observability.EventStore.
type Store struct {
	db *sql.DB
}

// Open creates or attaches to the sqlite database at path, creating the
// events table if it doesn't already exist. An empty path opens an
// in-memory database, useful for tests.
func Open(path string) (*Store, error) {
	if path == "" {
		path = ":memory:"
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open tracelog database: %w", err)
	}
	s := &Store{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS events (
			id TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			run_id TEXT,
			session_id TEXT,
			tool_call_id TEXT,
			stage TEXT,
			name TEXT,
			description TEXT,
			data TEXT,
			duration_ns INTEGER,
			error TEXT,
			parent_id TEXT,
			trace_id TEXT,
			span_id TEXT,
			created_at DATETIME NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("create events table: %w", err)
	}
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_events_run_id ON events(run_id)",
		"CREATE INDEX IF NOT EXISTS idx_events_type ON events(type)",
		"CREATE INDEX IF NOT EXISTS idx_events_created_at ON events(created_at)",
	}
	for _, idx := range indexes {
		if _, err := s.db.Exec(idx); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores an event.
func (s *Store) Record(event *observability.Event) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}
	if event.ID == "" {
		event.ID = fmt.Sprintf("evt_%d", time.Now().UnixNano())
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	var data string
	if event.Data != nil {
		b, err := json.Marshal(event.Data)
		if err != nil {
			return fmt.Errorf("marshal event data: %w", err)
		}
		data = string(b)
	}

	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO events
			(id, type, run_id, session_id, tool_call_id, stage, name, description, data, duration_ns, error, parent_id, trace_id, span_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		event.ID, string(event.Type), event.RunID, event.SessionID, event.ToolCallID, event.Stage,
		event.Name, event.Description, data, int64(event.Duration), event.Error, event.ParentID,
		event.TraceID, event.SpanID, event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// GetByRunID returns all events for a run, sorted by timestamp.
func (s *Store) GetByRunID(runID string) ([]*observability.Event, error) {
	rows, err := s.db.Query(`SELECT * FROM events WHERE run_id = ? ORDER BY created_at ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("query events by run id: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// GetByTimeRange returns events within [start, end].
func (s *Store) GetByTimeRange(start, end time.Time) ([]*observability.Event, error) {
	rows, err := s.db.Query(`SELECT * FROM events WHERE created_at >= ? AND created_at <= ? ORDER BY created_at ASC`, start, end)
	if err != nil {
		return nil, fmt.Errorf("query events by time range: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// GetByType returns events of a specific type, most recent first.
func (s *Store) GetByType(eventType observability.EventType, limit int) ([]*observability.Event, error) {
	query := `SELECT * FROM events WHERE type = ? ORDER BY created_at DESC`
	args := []any{string(eventType)}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events by type: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// Get returns a single event by ID.
func (s *Store) Get(id string) (*observability.Event, error) {
	rows, err := s.db.Query(`SELECT * FROM events WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("query event: %w", err)
	}
	defer rows.Close()
	events, err := scanEvents(rows)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, fmt.Errorf("event not found: %s", id)
	}
	return events[0], nil
}

// Delete removes events older than olderThan, returning the count removed.
func (s *Store) Delete(olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan)
	res, err := s.db.Exec(`DELETE FROM events WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete old events: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(n), nil
}

// RunSummary describes one recorded pipeline run for the `history` command.
type RunSummary struct {
	RunID      string
	StartedAt  time.Time
	EndedAt    time.Time
	EventCount int
	ErrorCount int
}

// ListRuns returns the most recent limit runs, newest first.
func (s *Store) ListRuns(limit int) ([]RunSummary, error) {
	rows, err := s.db.Query(`SELECT run_id, created_at, error FROM events WHERE run_id != '' ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	byRun := make(map[string]*RunSummary)
	var order []string
	for rows.Next() {
		var runID, errMsg string
		var createdAt time.Time
		if err := rows.Scan(&runID, &createdAt, &errMsg); err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		sum, ok := byRun[runID]
		if !ok {
			sum = &RunSummary{RunID: runID, StartedAt: createdAt}
			byRun[runID] = sum
			order = append(order, runID)
		}
		sum.EventCount++
		sum.EndedAt = createdAt
		if errMsg != "" {
			sum.ErrorCount++
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	summaries := make([]RunSummary, 0, len(order))
	for _, id := range order {
		summaries = append(summaries, *byRun[id])
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].StartedAt.After(summaries[j].StartedAt) })
	if limit > 0 && len(summaries) > limit {
		summaries = summaries[:limit]
	}
	return summaries, nil
}

func scanEvents(rows *sql.Rows) ([]*observability.Event, error) {
	var events []*observability.Event
	for rows.Next() {
		var (
			e                                                                 observability.Event
			typ                                                               string
			data                                                              sql.NullString
			durationNs                                                        int64
			sessionID, toolCallID, stage, description, parentID, traceID, spanID sql.NullString
		)
		if err := rows.Scan(
			&e.ID, &typ, &e.RunID, &sessionID, &toolCallID, &stage, &e.Name, &description,
			&data, &durationNs, &e.Error, &parentID, &traceID, &spanID, &e.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		e.Type = observability.EventType(typ)
		e.SessionID = sessionID.String
		e.ToolCallID = toolCallID.String
		e.Stage = stage.String
		e.Description = description.String
		e.ParentID = parentID.String
		e.TraceID = traceID.String
		e.SpanID = spanID.String
		e.Duration = time.Duration(durationNs)
		if data.Valid && data.String != "" {
			var m map[string]interface{}
			if err := json.Unmarshal([]byte(data.String), &m); err == nil {
				e.Data = m
			}
		}
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}
