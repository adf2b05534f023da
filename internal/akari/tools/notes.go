package tools

// notes.go implements the save_note and retrieve_note executors on top of
// the store. Replies are Markdown: the transport renders them for the chat.

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/mkoriyama/Akari/internal/akari/store"
)

const retrieveLimit = 5

// Notes bundles the note executors around the store.
type Notes struct {
	store  *store.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewNotes returns note executors backed by st.
func NewNotes(st *store.Store, logger *slog.Logger) *Notes {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notes{store: st, logger: logger, now: time.Now}
}

// Save implements save_note. Content that looks like a credential is
// flagged sensitive; whether it is also encrypted depends on the store's
// master key, and the reply says which.
func (n *Notes) Save(ctx context.Context, userID string, args map[string]string) (string, error) {
	content := strings.TrimSpace(args["content"])
	title := strings.TrimSpace(args["title"])
	if title == "" {
		title = fallbackTitle(content)
	}

	note := &store.Note{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     title,
		Content:   content,
		Sensitive: LooksSensitive(content),
	}

	var reminderLine string
	if r := strings.TrimSpace(args["reminder"]); r != "" {
		if t, err := time.Parse(time.RFC3339, r); err == nil {
			note.ReminderAt = &t
			reminderLine = fmt.Sprintf("\n⏰ I'll remind you on %s.", t.Format("Mon, 2 Jan at 15:04"))
		} else {
			// The flow layer normalises reminders to RFC 3339; anything else
			// is noise from the generative tier, not worth failing over.
			n.logger.Debug("ignoring unparseable reminder argument", "reminder", r)
		}
	}

	if err := n.store.SaveNote(ctx, note); err != nil {
		return "", fmt.Errorf("saving note: %w", err)
	}
	n.logger.Info("note saved", "note_id", note.ID, "user_id", userID,
		"sensitive", note.Sensitive, "has_reminder", note.ReminderAt != nil)

	reply := fmt.Sprintf("📝 Saved **%s** (`%s`).%s", title, shortID(note.ID), reminderLine)
	if note.Sensitive {
		if n.store.Encrypting() {
			reply += "\n🔒 That looked sensitive, so it's stored encrypted."
		} else {
			reply += "\n⚠️ That looks sensitive, and no master key is configured — it's stored in plain text."
		}
	}
	return reply, nil
}

// Retrieve implements retrieve_note.
func (n *Notes) Retrieve(ctx context.Context, userID string, args map[string]string) (string, error) {
	query := strings.TrimSpace(args["query"])
	notes, err := n.store.SearchNotes(ctx, userID, query, retrieveLimit)
	if err != nil {
		return "", fmt.Errorf("searching notes: %w", err)
	}
	if len(notes) == 0 {
		return fmt.Sprintf("🔍 Nothing in your notes matches **%s**.", query), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🗒️ %d note%s for **%s**:\n\n", len(notes), plural(len(notes)), query)
	for _, note := range notes {
		fmt.Fprintf(&b, "• **%s** — %s _(%s)_\n",
			note.Title, snippet(note.Content, 120), humanAge(n.now().Sub(note.CreatedAt)))
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

// fallbackTitle derives a title from the leading words of content when
// neither tier supplied one.
func fallbackTitle(content string) string {
	words := strings.Fields(content)
	if len(words) == 0 {
		return "Untitled"
	}
	if len(words) > 5 {
		words = words[:5]
	}
	runes := []rune(strings.Join(words, " "))
	if len(runes) > 48 {
		runes = runes[:48]
	}
	runes[0] = unicode.ToUpper(runes[0])
	return strings.TrimRight(string(runes), " ,;:")
}

// shortID is the first UUID group, enough to name a note in chat.
func shortID(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	return id
}

// snippet truncates s to at most max runes on a rune boundary.
func snippet(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return strings.TrimRight(string(runes[:max]), " ") + "…"
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}

// humanAge renders a duration the way people say it.
func humanAge(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 48*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
