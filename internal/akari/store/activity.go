package store

// activity.go: the audit trail of tool dispatches. Parameters arrive
// already redacted (the dispatcher owns that); this file only persists and
// reads back.

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// ActivityEntry is one recorded tool dispatch.
type ActivityEntry struct {
	ID           int64
	Timestamp    time.Time
	TraceID      string
	UserID       string
	Tool         string
	Params       map[string]string
	Result       string // "ok" or "error"
	ErrorMessage string
}

// RecordActivity persists one dispatch outcome. It satisfies
// tools.ActivityRecorder.
func (s *Store) RecordActivity(ctx context.Context, traceID, userID, tool string, params map[string]string, result, errMsg string) error {
	var paramsJSON sql.NullString
	if len(params) > 0 {
		raw, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("failed to encode activity params: %w", err)
		}
		paramsJSON = sql.NullString{String: string(raw), Valid: true}
	}
	var errCol sql.NullString
	if errMsg != "" {
		errCol = sql.NullString{String: errMsg, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO activity_log (ts, trace_id, user_id, tool, params_json, result, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		time.Now().UTC(), traceID, userID, tool, paramsJSON, result, errCol,
	)
	if err != nil {
		return fmt.Errorf("failed to record activity: %w", err)
	}
	return nil
}

// RecentActivity returns the latest dispatches, newest first.
func (s *Store) RecentActivity(ctx context.Context, limit int) ([]*ActivityEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	return s.queryActivity(ctx, `
		SELECT id, ts, trace_id, user_id, tool, params_json, result, error_message
		FROM activity_log ORDER BY ts DESC, id DESC LIMIT ?`, limit)
}

// ActivityByTrace returns every dispatch recorded under one trace ID, in
// order.
func (s *Store) ActivityByTrace(ctx context.Context, traceID string) ([]*ActivityEntry, error) {
	return s.queryActivity(ctx, `
		SELECT id, ts, trace_id, user_id, tool, params_json, result, error_message
		FROM activity_log WHERE trace_id = ? ORDER BY id ASC`, traceID)
}

func (s *Store) queryActivity(ctx context.Context, q string, args ...any) ([]*ActivityEntry, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query activity: %w", err)
	}
	defer rows.Close()

	var out []*ActivityEntry
	for rows.Next() {
		var (
			e          ActivityEntry
			paramsJSON sql.NullString
			errCol     sql.NullString
		)
		err := rows.Scan(&e.ID, &e.Timestamp, &e.TraceID, &e.UserID, &e.Tool,
			&paramsJSON, &e.Result, &errCol)
		if err != nil {
			return nil, err
		}
		if paramsJSON.Valid {
			if err := json.Unmarshal([]byte(paramsJSON.String), &e.Params); err != nil {
				return nil, fmt.Errorf("corrupt activity params in row %d: %w", e.ID, err)
			}
		}
		e.ErrorMessage = errCol.String
		out = append(out, &e)
	}
	return out, rows.Err()
}
