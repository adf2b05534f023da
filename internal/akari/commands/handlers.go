package commands

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"maunium.net/go/mautrix/event"

	"github.com/mkoriyama/Akari/common/trace"
	"github.com/mkoriyama/Akari/common/version"
	"github.com/mkoriyama/Akari/internal/akari/flow"
	"github.com/mkoriyama/Akari/internal/akari/store"
)

// Handlers holds the command handlers and their dependencies.
type Handlers struct {
	store *store.Store
	flows *flow.Orchestrator
}

// NewHandlers creates a Handlers instance. flows may be nil in tests that
// only exercise store-backed commands.
func NewHandlers(s *store.Store, flows *flow.Orchestrator) *Handlers {
	return &Handlers{store: s, flows: flows}
}

// turnTrace returns the trace ID of the current turn, minting one when the
// caller did not put one on the context.
func turnTrace(ctx context.Context) string {
	if id := trace.ID(ctx); id != "" {
		return id
	}
	return trace.NewID()
}

// parseLimit reads an optional numeric argument, clamped to [1, max].
func parseLimit(cmd *Command, def, max int) int {
	s, ok := cmd.Arg(0)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return def
	}
	if n > max {
		return max
	}
	return n
}

// HandleHelp shows available commands.
func (h *Handlers) HandleHelp(ctx context.Context, cmd *Command, evt *event.Event) (string, error) {
	help := `**Akari — personal assistant**

**General**
• /akari help — this message
• /akari version — build information
• /akari ping — health check

**Notes**
• /akari notes list [n] — latest notes
• /akari notes search <query> — search notes
• /akari notes delete <id> — delete a note (a unique id prefix works)

**Inbox**
• /akari notifications tail [n] — recent captured messages

**Engine**
• /akari activity tail [n] — recent tool activity
• /akari trace <trace_id> — everything that happened in one turn
• /akari forget — abandon whatever we had in progress

Outside of commands, just talk to me: "save a note that…", "what did I
say about…", "search the web for…".`
	return help, nil
}

// HandleVersion shows version information.
func (h *Handlers) HandleVersion(ctx context.Context, cmd *Command, evt *event.Event) (string, error) {
	return fmt.Sprintf("**Akari**\nVersion: %s\nCommit: %s\nBuild Time: %s",
		version.Version, version.GitCommit, version.BuildTime), nil
}

// HandlePing responds with a health check and leaves an activity entry so
// the trace plumbing can be verified end to end.
func (h *Handlers) HandlePing(ctx context.Context, cmd *Command, evt *event.Event) (string, error) {
	traceID := turnTrace(ctx)

	if err := h.store.RecordActivity(ctx, traceID, evt.Sender.String(), "command.ping", nil, "ok", ""); err != nil {
		return "", fmt.Errorf("failed to record activity: %w", err)
	}

	return fmt.Sprintf("🏓 Pong! (trace: %s)", traceID), nil
}

// HandleNotesList lists the latest notes.
func (h *Handlers) HandleNotesList(ctx context.Context, cmd *Command, evt *event.Event) (string, error) {
	limit := parseLimit(cmd, 10, 50)

	notes, err := h.store.ListNotes(ctx, evt.Sender.String(), limit)
	if err != nil {
		return "", fmt.Errorf("failed to list notes: %w", err)
	}

	if len(notes) == 0 {
		return "🗒️ No notes yet. Say \"save a note that …\" to create one.", nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "🗒️ **Notes (%d)**\n\n", len(notes))
	for _, n := range notes {
		fmt.Fprintf(&sb, "• **%s** (`%s`) — %s", n.Title, shortID(n.ID), n.CreatedAt.Format("2006-01-02"))
		if n.Sensitive {
			sb.WriteString(" 🔒")
		}
		if n.ReminderAt != nil && !n.ReminderFired {
			fmt.Fprintf(&sb, " ⏰ %s", n.ReminderAt.Format("Mon, 2 Jan 15:04"))
		}
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

// HandleNotesSearch searches notes by keyword.
func (h *Handlers) HandleNotesSearch(ctx context.Context, cmd *Command, evt *event.Event) (string, error) {
	query := strings.TrimSpace(strings.Join(cmd.Args, " "))
	if query == "" {
		return "", fmt.Errorf("usage: /akari notes search <query>")
	}

	notes, err := h.store.SearchNotes(ctx, evt.Sender.String(), query, 10)
	if err != nil {
		return "", fmt.Errorf("failed to search notes: %w", err)
	}

	if len(notes) == 0 {
		return fmt.Sprintf("🔍 Nothing matched %q.", query), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "🔍 **Matches for %q (%d)**\n\n", query, len(notes))
	for _, n := range notes {
		fmt.Fprintf(&sb, "• **%s** (`%s`) — %s\n", n.Title, shortID(n.ID), n.CreatedAt.Format("2006-01-02"))
	}
	return sb.String(), nil
}

// HandleNotesDelete deletes a note by ID or unique ID prefix.
func (h *Handlers) HandleNotesDelete(ctx context.Context, cmd *Command, evt *event.Event) (string, error) {
	traceID := turnTrace(ctx)
	userID := evt.Sender.String()

	id, ok := cmd.Arg(0)
	if !ok {
		return "", fmt.Errorf("usage: /akari notes delete <id>")
	}

	// Resolve prefixes through GetNote so the reply can name the note.
	note, err := h.store.GetNote(ctx, userID, id)
	if err != nil {
		h.store.RecordActivity(ctx, traceID, userID, "command.notes.delete",
			map[string]string{"id": id}, "error", err.Error())
		return "", fmt.Errorf("failed to find note: %w", err)
	}

	if err := h.store.DeleteNote(ctx, userID, note.ID); err != nil {
		h.store.RecordActivity(ctx, traceID, userID, "command.notes.delete",
			map[string]string{"id": note.ID}, "error", err.Error())
		return "", fmt.Errorf("failed to delete note: %w", err)
	}

	if err := h.store.RecordActivity(ctx, traceID, userID, "command.notes.delete",
		map[string]string{"id": note.ID}, "ok", ""); err != nil {
		return "", fmt.Errorf("failed to record activity: %w", err)
	}

	return fmt.Sprintf("🗑️ Deleted **%s** (`%s`).", note.Title, shortID(note.ID)), nil
}

// HandleNotificationsTail shows recent captured messages.
func (h *Handlers) HandleNotificationsTail(ctx context.Context, cmd *Command, evt *event.Event) (string, error) {
	limit := parseLimit(cmd, 10, 50)

	items, err := h.store.RecentNotifications(ctx, limit)
	if err != nil {
		return "", fmt.Errorf("failed to read notifications: %w", err)
	}

	if len(items) == 0 {
		return "🔕 The inbox is empty.", nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "🔔 **Notifications (last %d)**\n\n", len(items))
	for _, n := range items {
		fmt.Fprintf(&sb, "• `%s` **%s**: %s\n",
			n.CapturedAt.Format("Jan 2 15:04"), n.Sender, firstLine(n.Body, 120))
	}
	return sb.String(), nil
}

// HandleActivityTail shows recent tool dispatches.
func (h *Handlers) HandleActivityTail(ctx context.Context, cmd *Command, evt *event.Event) (string, error) {
	limit := parseLimit(cmd, 10, 50)

	entries, err := h.store.RecentActivity(ctx, limit)
	if err != nil {
		return "", fmt.Errorf("failed to read activity: %w", err)
	}

	if len(entries) == 0 {
		return "📭 No tool activity recorded yet.", nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "**Recent activity (last %d)**\n\n", len(entries))
	for _, e := range entries {
		sb.WriteString(formatActivity(e, false))
	}
	return sb.String(), nil
}

// HandleTrace shows every activity entry recorded under one trace ID.
func (h *Handlers) HandleTrace(ctx context.Context, cmd *Command, evt *event.Event) (string, error) {
	// The trace ID lands in the subcommand slot: /akari trace t_abc123.
	searchTraceID := cmd.Subcommand
	if searchTraceID == "" {
		return "", fmt.Errorf("usage: /akari trace <trace_id>")
	}

	entries, err := h.store.ActivityByTrace(ctx, searchTraceID)
	if err != nil {
		return "", fmt.Errorf("failed to read trace: %w", err)
	}

	if len(entries) == 0 {
		return fmt.Sprintf("No activity found for trace %s.", searchTraceID), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "**Trace %s** (%d entries)\n\n", searchTraceID, len(entries))
	for _, e := range entries {
		sb.WriteString(formatActivity(e, true))
	}
	return sb.String(), nil
}

// HandleForget abandons the user's in-progress tool flow, if any.
func (h *Handlers) HandleForget(ctx context.Context, cmd *Command, evt *event.Event) (string, error) {
	if h.flows == nil || !h.flows.AbandonFlow(evt.Sender.String()) {
		return "There's nothing in progress to forget.", nil
	}
	return "🚮 Done — forgotten.", nil
}

// formatActivity renders one activity entry as a Markdown bullet.
func formatActivity(e *store.ActivityEntry, withParams bool) string {
	resultEmoji := "✅"
	if e.Result != "ok" {
		resultEmoji = "❌"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s `%s` **%s**\n", resultEmoji, e.Timestamp.Format("15:04:05"), e.Tool)
	if withParams && len(e.Params) > 0 {
		keys := make([]string, 0, len(e.Params))
		for k := range e.Params {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&sb, "   %s: %s\n", k, e.Params[k])
		}
	}
	if e.ErrorMessage != "" {
		fmt.Fprintf(&sb, "   Error: %s\n", e.ErrorMessage)
	}
	fmt.Fprintf(&sb, "   Trace: %s\n\n", e.TraceID)
	return sb.String()
}

// shortID returns the first UUID segment, enough to identify a note in chat.
func shortID(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	return id
}

// firstLine returns the first line of s, truncated to max runes.
func firstLine(s string, max int) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}
