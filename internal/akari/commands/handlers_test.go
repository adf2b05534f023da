package commands_test

import (
	"context"
	"os"
	"strings"
	"testing"

	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/mkoriyama/Akari/internal/akari/commands"
	"github.com/mkoriyama/Akari/internal/akari/flow"
	"github.com/mkoriyama/Akari/internal/akari/intent"
	"github.com/mkoriyama/Akari/internal/akari/store"
)

const testSender = "@mkoriyama:example.org"

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "akari-test-*.db")
	if err != nil {
		t.Fatalf("failed to create temp db file: %v", err)
	}
	f.Close()

	s, err := store.New(f.Name(), nil)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	return s
}

func testEvent() *event.Event {
	return &event.Event{Sender: id.UserID(testSender)}
}

type noopDispatcher struct{}

func (noopDispatcher) Dispatch(ctx context.Context, userID string, call intent.FunctionCall) (string, error) {
	return "", nil
}

func emptyCmd() *commands.Command {
	return &commands.Command{Args: []string{}, Flags: map[string]string{}}
}

func TestHandleHelp(t *testing.T) {
	h := commands.NewHandlers(newTestStore(t), nil)

	resp, err := h.HandleHelp(context.Background(), emptyCmd(), testEvent())
	if err != nil {
		t.Fatalf("HandleHelp: %v", err)
	}
	for _, want := range []string{"notes list", "notes delete", "notifications tail", "forget"} {
		if !strings.Contains(resp, want) {
			t.Errorf("help text missing %q", want)
		}
	}
}

func TestHandleVersion(t *testing.T) {
	h := commands.NewHandlers(newTestStore(t), nil)

	resp, err := h.HandleVersion(context.Background(), emptyCmd(), testEvent())
	if err != nil {
		t.Fatalf("HandleVersion: %v", err)
	}
	if !strings.Contains(resp, "Version:") {
		t.Errorf("version output missing Version line: %q", resp)
	}
}

func TestHandlePing_RecordsActivity(t *testing.T) {
	s := newTestStore(t)
	h := commands.NewHandlers(s, nil)
	ctx := context.Background()

	resp, err := h.HandlePing(ctx, emptyCmd(), testEvent())
	if err != nil {
		t.Fatalf("HandlePing: %v", err)
	}
	if !strings.Contains(resp, "Pong") {
		t.Errorf("expected pong, got %q", resp)
	}

	entries, err := s.RecentActivity(ctx, 10)
	if err != nil {
		t.Fatalf("RecentActivity: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 activity entry, got %d", len(entries))
	}
	if entries[0].Tool != "command.ping" {
		t.Errorf("Tool: got %q, want %q", entries[0].Tool, "command.ping")
	}
	if entries[0].UserID != testSender {
		t.Errorf("UserID: got %q, want %q", entries[0].UserID, testSender)
	}
}

func TestHandleNotesList_Empty(t *testing.T) {
	h := commands.NewHandlers(newTestStore(t), nil)

	resp, err := h.HandleNotesList(context.Background(), emptyCmd(), testEvent())
	if err != nil {
		t.Fatalf("HandleNotesList: %v", err)
	}
	if !strings.Contains(resp, "No notes yet") {
		t.Errorf("expected empty-state message, got %q", resp)
	}
}

func TestHandleNotesList(t *testing.T) {
	s := newTestStore(t)
	h := commands.NewHandlers(s, nil)
	ctx := context.Background()

	for _, title := range []string{"Groceries", "Warranty Info"} {
		if err := s.SaveNote(ctx, &store.Note{
			ID:      "00000000-0000-0000-0000-00000000000" + title[:1],
			UserID:  testSender,
			Title:   title,
			Content: "body of " + title,
		}); err != nil {
			t.Fatalf("SaveNote(%s): %v", title, err)
		}
	}

	resp, err := h.HandleNotesList(ctx, emptyCmd(), testEvent())
	if err != nil {
		t.Fatalf("HandleNotesList: %v", err)
	}
	if !strings.Contains(resp, "Groceries") || !strings.Contains(resp, "Warranty Info") {
		t.Errorf("listing missing notes: %q", resp)
	}
}

func TestHandleNotesSearch(t *testing.T) {
	s := newTestStore(t)
	h := commands.NewHandlers(s, nil)
	ctx := context.Background()

	if err := s.SaveNote(ctx, &store.Note{
		ID:      "11111111-0000-0000-0000-000000000000",
		UserID:  testSender,
		Title:   "Router password",
		Content: "the wifi router admin password is on the sticker",
	}); err != nil {
		t.Fatalf("SaveNote: %v", err)
	}

	cmd := &commands.Command{Args: []string{"router"}, Flags: map[string]string{}}
	resp, err := h.HandleNotesSearch(ctx, cmd, testEvent())
	if err != nil {
		t.Fatalf("HandleNotesSearch: %v", err)
	}
	if !strings.Contains(resp, "Router password") {
		t.Errorf("search missing the note: %q", resp)
	}

	// No query is a usage error.
	if _, err := h.HandleNotesSearch(ctx, emptyCmd(), testEvent()); err == nil {
		t.Error("expected usage error for empty query")
	}
}

func TestHandleNotesDelete_ByPrefix(t *testing.T) {
	s := newTestStore(t)
	h := commands.NewHandlers(s, nil)
	ctx := context.Background()

	if err := s.SaveNote(ctx, &store.Note{
		ID:      "9f3a8c2e-1111-2222-3333-444444444444",
		UserID:  testSender,
		Title:   "To Delete",
		Content: "gone soon",
	}); err != nil {
		t.Fatalf("SaveNote: %v", err)
	}

	cmd := &commands.Command{Args: []string{"9f3a8c2e"}, Flags: map[string]string{}}
	resp, err := h.HandleNotesDelete(ctx, cmd, testEvent())
	if err != nil {
		t.Fatalf("HandleNotesDelete: %v", err)
	}
	if !strings.Contains(resp, "To Delete") {
		t.Errorf("delete reply should name the note: %q", resp)
	}

	if _, err := s.GetNote(ctx, testSender, "9f3a8c2e-1111-2222-3333-444444444444"); err == nil {
		t.Error("note still present after delete")
	}
}

func TestHandleNotesDelete_Missing(t *testing.T) {
	h := commands.NewHandlers(newTestStore(t), nil)

	cmd := &commands.Command{Args: []string{"deadbeef"}, Flags: map[string]string{}}
	if _, err := h.HandleNotesDelete(context.Background(), cmd, testEvent()); err == nil {
		t.Error("expected error for unknown note id")
	}
}

func TestHandleNotificationsTail(t *testing.T) {
	s := newTestStore(t)
	h := commands.NewHandlers(s, nil)
	ctx := context.Background()

	resp, err := h.HandleNotificationsTail(ctx, emptyCmd(), testEvent())
	if err != nil {
		t.Fatalf("HandleNotificationsTail: %v", err)
	}
	if !strings.Contains(resp, "empty") {
		t.Errorf("expected empty-inbox message, got %q", resp)
	}

	if err := s.InsertNotification(ctx, &store.Notification{
		RoomID: "!alerts:example.org",
		Sender: "@ci:example.org",
		Body:   "build failed on main",
	}); err != nil {
		t.Fatalf("InsertNotification: %v", err)
	}

	resp, err = h.HandleNotificationsTail(ctx, emptyCmd(), testEvent())
	if err != nil {
		t.Fatalf("HandleNotificationsTail: %v", err)
	}
	if !strings.Contains(resp, "build failed on main") {
		t.Errorf("tail missing notification: %q", resp)
	}
}

func TestHandleActivityTailAndTrace(t *testing.T) {
	s := newTestStore(t)
	h := commands.NewHandlers(s, nil)
	ctx := context.Background()

	if err := s.RecordActivity(ctx, "t_handlers", testSender, "save_note",
		map[string]string{"title": "X"}, "ok", ""); err != nil {
		t.Fatalf("RecordActivity: %v", err)
	}

	resp, err := h.HandleActivityTail(ctx, emptyCmd(), testEvent())
	if err != nil {
		t.Fatalf("HandleActivityTail: %v", err)
	}
	if !strings.Contains(resp, "save_note") {
		t.Errorf("activity tail missing entry: %q", resp)
	}

	traceCmd := &commands.Command{Subcommand: "t_handlers", Args: []string{}, Flags: map[string]string{}}
	resp, err = h.HandleTrace(ctx, traceCmd, testEvent())
	if err != nil {
		t.Fatalf("HandleTrace: %v", err)
	}
	if !strings.Contains(resp, "t_handlers") || !strings.Contains(resp, "save_note") {
		t.Errorf("trace output incomplete: %q", resp)
	}

	// Unknown trace is a friendly miss, not an error.
	missCmd := &commands.Command{Subcommand: "t_nope", Args: []string{}, Flags: map[string]string{}}
	resp, err = h.HandleTrace(ctx, missCmd, testEvent())
	if err != nil {
		t.Fatalf("HandleTrace(miss): %v", err)
	}
	if !strings.Contains(resp, "No activity found") {
		t.Errorf("expected no-activity message, got %q", resp)
	}
}

func TestHandleForget(t *testing.T) {
	states := flow.NewStateStore(0)
	flows, err := flow.New(flow.Config{Dispatcher: noopDispatcher{}, States: states})
	if err != nil {
		t.Fatalf("flow.New: %v", err)
	}
	h := commands.NewHandlers(newTestStore(t), flows)
	ctx := context.Background()

	// Nothing pending yet.
	resp, err := h.HandleForget(ctx, emptyCmd(), testEvent())
	if err != nil {
		t.Fatalf("HandleForget: %v", err)
	}
	if !strings.Contains(resp, "nothing in progress") {
		t.Errorf("expected nothing-in-progress reply, got %q", resp)
	}

	states.Put(&flow.State{
		UserID:    testSender,
		Tool:      intent.SaveNote,
		Collected: map[string]string{},
		Stage:     flow.StageCollecting,
	})

	resp, err = h.HandleForget(ctx, emptyCmd(), testEvent())
	if err != nil {
		t.Fatalf("HandleForget: %v", err)
	}
	if !strings.Contains(resp, "forgotten") {
		t.Errorf("expected forgotten reply, got %q", resp)
	}
	if states.Active(testSender) {
		t.Error("session should be cleared after forget")
	}
}
