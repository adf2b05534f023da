package store

// notifications.go: the inbox of messages captured from watched rooms.
// Everything here is plaintext — notifications are other people's messages,
// not the user's secrets — so search runs in SQL.

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Notification is one captured message.
type Notification struct {
	ID         int64
	RoomID     string
	Sender     string
	Body       string
	CapturedAt time.Time
}

// InsertNotification records one captured message.
func (s *Store) InsertNotification(ctx context.Context, n *Notification) error {
	if n.RoomID == "" || n.Sender == "" {
		return fmt.Errorf("store: notification needs a room and a sender")
	}
	if n.CapturedAt.IsZero() {
		n.CapturedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (room_id, sender, body, captured_at)
		VALUES (?, ?, ?, ?)`,
		n.RoomID, n.Sender, n.Body, n.CapturedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}
	n.ID, _ = res.LastInsertId()
	return nil
}

// RecentNotifications returns the latest captured messages, newest first.
func (s *Store) RecentNotifications(ctx context.Context, limit int) ([]*Notification, error) {
	if limit <= 0 {
		limit = 10
	}
	return s.queryNotifications(ctx, `
		SELECT id, room_id, sender, body, captured_at
		FROM notifications ORDER BY captured_at DESC LIMIT ?`, limit)
}

// SearchNotifications returns notifications matching any token of query,
// newest first. Sender and body both count as match surface.
func (s *Store) SearchNotifications(ctx context.Context, query string, limit int) ([]*Notification, error) {
	if limit <= 0 {
		limit = 10
	}
	tokens := searchTokens(query)
	if len(tokens) == 0 {
		return s.RecentNotifications(ctx, limit)
	}

	var (
		conds []string
		args  []any
	)
	for _, tok := range tokens {
		conds = append(conds, "(body LIKE ? OR sender LIKE ?)")
		pat := "%" + escapeLike(tok) + "%"
		args = append(args, pat, pat)
	}
	args = append(args, limit)
	q := `
		SELECT id, room_id, sender, body, captured_at
		FROM notifications
		WHERE ` + strings.Join(conds, " OR ") + `
		ORDER BY captured_at DESC LIMIT ?`
	return s.queryNotifications(ctx, q, args...)
}

func (s *Store) queryNotifications(ctx context.Context, q string, args ...any) ([]*Notification, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer rows.Close()

	var out []*Notification
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.RoomID, &n.Sender, &n.Body, &n.CapturedAt); err != nil {
			return nil, err
		}
		out = append(out, &n)
	}
	return out, rows.Err()
}

// escapeLike strips LIKE metacharacters from a user-supplied token. At
// worst this widens a search, which beats carrying an ESCAPE clause through
// every query for characters that almost never appear in chat.
func escapeLike(tok string) string {
	tok = strings.ReplaceAll(tok, "%", "")
	return strings.ReplaceAll(tok, "_", "")
}

// PruneNotifications deletes captured messages older than cutoff and
// reports how many went.
func (s *Store) PruneNotifications(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM notifications WHERE captured_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to prune notifications: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// CountNotifications reports how many captured messages are stored.
func (s *Store) CountNotifications(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notifications`).Scan(&n)
	return n, err
}
