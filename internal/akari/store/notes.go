package store

// notes.go: CRUD and search for saved notes. Content crosses this boundary
// as plaintext; sealing and opening happen here when the store carries a
// master key. Search decrypts and scores in memory, because ciphertext
// defeats SQL LIKE and note volumes are personal-scale.

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ErrNoteNotFound is returned when an id (or id prefix) matches nothing.
var ErrNoteNotFound = errors.New("store: note not found")

// searchScanLimit caps how many rows a search will decrypt and score.
const searchScanLimit = 500

// Note is one saved note, always presented decrypted.
type Note struct {
	ID            string
	UserID        string
	Title         string
	Content       string
	Sensitive     bool
	ReminderAt    *time.Time
	ReminderFired bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// sealContent prepares content for storage, encrypting when a master key is
// present.
func (s *Store) sealContent(content string) (blob []byte, encrypted bool, err error) {
	if s.sealer == nil {
		return []byte(content), false, nil
	}
	blob, err = s.sealer.Seal([]byte(content))
	if err != nil {
		return nil, false, err
	}
	return blob, true, nil
}

// openContent reverses sealContent.
func (s *Store) openContent(blob []byte, encrypted bool) (string, error) {
	if !encrypted {
		return string(blob), nil
	}
	if s.sealer == nil {
		return "", errors.New("store: note is encrypted but no master key is configured")
	}
	plain, err := s.sealer.Open(blob)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

// SaveNote inserts n. The caller supplies ID, UserID, Title, Content,
// Sensitive, and ReminderAt; timestamps are set here.
func (s *Store) SaveNote(ctx context.Context, n *Note) error {
	if n.ID == "" || n.UserID == "" {
		return errors.New("store: note needs an id and a user")
	}
	blob, encrypted, err := s.sealContent(n.Content)
	if err != nil {
		return fmt.Errorf("failed to seal note content: %w", err)
	}
	now := time.Now().UTC()
	n.CreatedAt, n.UpdatedAt = now, now
	var reminder sql.NullTime
	if n.ReminderAt != nil {
		reminder = sql.NullTime{Time: n.ReminderAt.UTC(), Valid: true}
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO notes (id, user_id, title, content, encrypted, sensitive,
			reminder_at, reminder_fired, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.UserID, n.Title, blob, encrypted, n.Sensitive,
		reminder, false, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert note: %w", err)
	}
	return nil
}

const noteColumns = `id, user_id, title, content, encrypted, sensitive,
	reminder_at, reminder_fired, created_at, updated_at`

// scanNote reads one row produced with noteColumns, opening the content.
func (s *Store) scanNote(row interface{ Scan(...any) error }) (*Note, error) {
	var (
		n         Note
		blob      []byte
		encrypted bool
		reminder  sql.NullTime
	)
	err := row.Scan(&n.ID, &n.UserID, &n.Title, &blob, &encrypted, &n.Sensitive,
		&reminder, &n.ReminderFired, &n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if reminder.Valid {
		t := reminder.Time
		n.ReminderAt = &t
	}
	n.Content, err = s.openContent(blob, encrypted)
	if err != nil {
		return nil, fmt.Errorf("failed to open note %s: %w", n.ID, err)
	}
	return &n, nil
}

// GetNote fetches one of userID's notes by exact id or unique id prefix, so
// "notes delete 9f3a" works without pasting the whole UUID.
func (s *Store) GetNote(ctx context.Context, userID, id string) (*Note, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+noteColumns+`
		FROM notes WHERE user_id = ? AND (id = ? OR id LIKE ?)
		LIMIT 2`,
		userID, id, id+"%",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query note: %w", err)
	}
	defer rows.Close()

	var matches []*Note
	for rows.Next() {
		n, err := s.scanNote(rows)
		if err != nil {
			return nil, err
		}
		matches = append(matches, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	switch len(matches) {
	case 0:
		return nil, ErrNoteNotFound
	case 1:
		return matches[0], nil
	}
	return nil, fmt.Errorf("store: note id %q is ambiguous", id)
}

// ListNotes returns userID's notes, newest first.
func (s *Store) ListNotes(ctx context.Context, userID string, limit int) ([]*Note, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+noteColumns+`
		FROM notes WHERE user_id = ?
		ORDER BY created_at DESC LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}
	defer rows.Close()

	var notes []*Note
	for rows.Next() {
		n, err := s.scanNote(rows)
		if err != nil {
			return nil, err
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

// DeleteNote removes one of userID's notes by id or unique prefix.
func (s *Store) DeleteNote(ctx context.Context, userID, id string) error {
	n, err := s.GetNote(ctx, userID, id)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM notes WHERE id = ?`, n.ID); err != nil {
		return fmt.Errorf("failed to delete note: %w", err)
	}
	return nil
}

// SearchNotes ranks userID's notes against query. Every query token that
// appears in the title counts double what a content hit counts; ties break
// on recency. Notes matching nothing are excluded.
func (s *Store) SearchNotes(ctx context.Context, userID, query string, limit int) ([]*Note, error) {
	if limit <= 0 {
		limit = 5
	}
	tokens := searchTokens(query)
	if len(tokens) == 0 {
		return nil, nil
	}

	candidates, err := s.ListNotes(ctx, userID, searchScanLimit)
	if err != nil {
		return nil, err
	}

	type scored struct {
		note  *Note
		score int
	}
	var hits []scored
	for _, n := range candidates {
		title := strings.ToLower(n.Title)
		content := strings.ToLower(n.Content)
		score := 0
		for _, tok := range tokens {
			if strings.Contains(title, tok) {
				score += 2
			}
			if strings.Contains(content, tok) {
				score++
			}
		}
		if score > 0 {
			hits = append(hits, scored{note: n, score: score})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].note.CreatedAt.After(hits[j].note.CreatedAt)
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	out := make([]*Note, len(hits))
	for i, h := range hits {
		out[i] = h.note
	}
	return out, nil
}

// searchTokens lowercases and splits a query, dropping one- and two-letter
// noise words ("is", "my") that would match everything.
func searchTokens(query string) []string {
	var out []string
	for _, tok := range strings.Fields(strings.ToLower(query)) {
		tok = strings.Trim(tok, ",.!?\"'")
		if len(tok) >= 3 {
			out = append(out, tok)
		}
	}
	return out
}

// DueReminders returns notes whose reminder time has arrived and has not
// been delivered yet, oldest first.
func (s *Store) DueReminders(ctx context.Context, now time.Time, limit int) ([]*Note, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+noteColumns+`
		FROM notes
		WHERE reminder_at IS NOT NULL AND reminder_fired = 0 AND reminder_at <= ?
		ORDER BY reminder_at ASC LIMIT ?`,
		now.UTC(), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query due reminders: %w", err)
	}
	defer rows.Close()

	var notes []*Note
	for rows.Next() {
		n, err := s.scanNote(rows)
		if err != nil {
			return nil, err
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

// MarkReminderFired records that a reminder was delivered, so it fires once.
func (s *Store) MarkReminderFired(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE notes SET reminder_fired = 1, updated_at = ? WHERE id = ?`,
		time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to mark reminder fired: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrNoteNotFound
	}
	return nil
}

// CountNotes reports how many notes exist across all users.
func (s *Store) CountNotes(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notes`).Scan(&n)
	return n, err
}
