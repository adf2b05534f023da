package tools

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/mkoriyama/Akari/common/trace"
	"github.com/mkoriyama/Akari/internal/akari/intent"
)

type recordedDispatch struct {
	traceID string
	userID  string
	tool    string
	params  map[string]string
	result  string
	errMsg  string
}

// fakeRecorder captures activity rows in memory.
type fakeRecorder struct {
	entries []recordedDispatch
	err     error
}

func (f *fakeRecorder) RecordActivity(_ context.Context, traceID, userID, tool string, params map[string]string, result, errMsg string) error {
	f.entries = append(f.entries, recordedDispatch{
		traceID: traceID, userID: userID, tool: tool,
		params: params, result: result, errMsg: errMsg,
	})
	return f.err
}

func echoExec(result string) ExecFunc {
	return func(_ context.Context, _ string, _ map[string]string) (string, error) {
		return result, nil
	}
}

func saveNoteDef(t *testing.T) intent.Definition {
	t.Helper()
	def, ok := intent.Lookup("save_note")
	if !ok {
		t.Fatal("save_note missing from the catalogue")
	}
	return def
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry(nil, nil)

	if err := r.Register(saveNoteDef(t), echoExec("ok")); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.Register(saveNoteDef(t), echoExec("ok")); err == nil {
		t.Error("duplicate registration succeeded")
	}
	if err := r.Register(intent.Definition{}, echoExec("ok")); err == nil {
		t.Error("registration without a name succeeded")
	}
	if err := r.Register(intent.Definition{Name: "web_search"}, nil); err == nil {
		t.Error("registration without an executor succeeded")
	}
}

func TestRegistry_DefinitionsKeepRegistrationOrder(t *testing.T) {
	r := NewRegistry(nil, nil)
	for _, name := range []string{"web_search", "save_note", "retrieve_note"} {
		def, _ := intent.Lookup(name)
		if err := r.Register(def, echoExec("ok")); err != nil {
			t.Fatalf("Register(%s): %v", name, err)
		}
	}

	defs := r.Definitions()
	want := []string{"web_search", "save_note", "retrieve_note"}
	if len(defs) != len(want) {
		t.Fatalf("Definitions returned %d entries, want %d", len(defs), len(want))
	}
	for i, d := range defs {
		if string(d.Name) != want[i] {
			t.Errorf("Definitions[%d] = %q, want %q", i, d.Name, want[i])
		}
	}
}

func TestRegistry_DispatchUnknownTool(t *testing.T) {
	rec := &fakeRecorder{}
	r := NewRegistry(rec, nil)

	_, err := r.Dispatch(context.Background(), "@u:example.org",
		intent.FunctionCall{Name: "launch_rocket"})
	if !errors.Is(err, ErrUnknownTool) {
		t.Fatalf("error = %v, want ErrUnknownTool", err)
	}
	if len(rec.entries) != 0 {
		t.Error("unknown tool landed in the activity trail")
	}
}

func TestRegistry_DispatchMissingRequired(t *testing.T) {
	rec := &fakeRecorder{}
	r := NewRegistry(rec, nil)
	called := false
	exec := func(_ context.Context, _ string, _ map[string]string) (string, error) {
		called = true
		return "", nil
	}
	if err := r.Register(saveNoteDef(t), exec); err != nil {
		t.Fatalf("Register: %v", err)
	}

	_, err := r.Dispatch(context.Background(), "@u:example.org", intent.FunctionCall{
		Name:      "save_note",
		Arguments: map[string]string{"content": "   ", "title": "Blank"},
	})
	if !errors.Is(err, ErrMissingArgument) {
		t.Fatalf("error = %v, want ErrMissingArgument", err)
	}
	if called {
		t.Error("executor ran despite the missing argument")
	}
	if len(rec.entries) != 1 {
		t.Fatalf("activity entries = %d, want 1", len(rec.entries))
	}
	e := rec.entries[0]
	if e.result != "error" {
		t.Errorf("recorded result = %q, want error", e.result)
	}
	if !strings.Contains(e.errMsg, "content") {
		t.Errorf("recorded error %q does not name the missing argument", e.errMsg)
	}
}

func TestRegistry_DispatchSuccess(t *testing.T) {
	rec := &fakeRecorder{}
	r := NewRegistry(rec, nil)
	exec := func(_ context.Context, userID string, args map[string]string) (string, error) {
		return "found notes for " + userID + " about " + args["query"], nil
	}
	def, _ := intent.Lookup("retrieve_note")
	if err := r.Register(def, exec); err != nil {
		t.Fatalf("Register: %v", err)
	}

	ctx := trace.Stamp(context.Background(), "t_dispatch1")
	got, err := r.Dispatch(ctx, "@mika:example.org", intent.FunctionCall{
		Name:      "retrieve_note",
		Arguments: map[string]string{"query": "wifi"},
	})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if got != "found notes for @mika:example.org about wifi" {
		t.Errorf("result = %q", got)
	}

	if len(rec.entries) != 1 {
		t.Fatalf("activity entries = %d, want 1", len(rec.entries))
	}
	e := rec.entries[0]
	if e.traceID != "t_dispatch1" {
		t.Errorf("traceID = %q", e.traceID)
	}
	if e.userID != "@mika:example.org" || e.tool != "retrieve_note" {
		t.Errorf("entry = %+v", e)
	}
	if e.result != "ok" || e.errMsg != "" {
		t.Errorf("outcome = (%q, %q), want ok with no error", e.result, e.errMsg)
	}
	if e.params["query"] != "wifi" {
		t.Errorf("params = %v", e.params)
	}
}

func TestRegistry_DispatchExecutorError(t *testing.T) {
	rec := &fakeRecorder{}
	r := NewRegistry(rec, nil)
	boom := errors.New("disk full")
	exec := func(_ context.Context, _ string, _ map[string]string) (string, error) {
		return "", boom
	}
	def, _ := intent.Lookup("web_search")
	if err := r.Register(def, exec); err != nil {
		t.Fatalf("Register: %v", err)
	}

	_, err := r.Dispatch(context.Background(), "@u:example.org", intent.FunctionCall{
		Name:      "web_search",
		Arguments: map[string]string{"query": "anything"},
	})
	if !errors.Is(err, boom) {
		t.Fatalf("error = %v, want the executor's error wrapped", err)
	}
	if !strings.Contains(err.Error(), "web_search") {
		t.Errorf("error %q does not name the tool", err)
	}
	if len(rec.entries) != 1 || rec.entries[0].result != "error" {
		t.Errorf("entries = %+v, want one error row", rec.entries)
	}
}

// TestRegistry_RedactsRecordedParams pins the privacy contract of the
// activity trail: secret-looking keys and credential-looking values never
// land in storage verbatim.
func TestRegistry_RedactsRecordedParams(t *testing.T) {
	rec := &fakeRecorder{}
	r := NewRegistry(rec, nil)
	if err := r.Register(saveNoteDef(t), echoExec("saved")); err != nil {
		t.Fatalf("Register: %v", err)
	}

	_, err := r.Dispatch(context.Background(), "@u:example.org", intent.FunctionCall{
		Name: "save_note",
		Arguments: map[string]string{
			"content": "the wifi password is hunter2",
			"title":   "Wifi",
		},
	})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	params := rec.entries[0].params
	if params["content"] != "[REDACTED]" {
		t.Errorf("content recorded as %q, want [REDACTED]", params["content"])
	}
	if params["title"] != "Wifi" {
		t.Errorf("title recorded as %q, want untouched", params["title"])
	}
}

func TestRegistry_RecorderFailureDoesNotBlockDispatch(t *testing.T) {
	rec := &fakeRecorder{err: errors.New("table locked")}
	r := NewRegistry(rec, nil)
	def, _ := intent.Lookup("web_search")
	if err := r.Register(def, echoExec("results")); err != nil {
		t.Fatalf("Register: %v", err)
	}

	got, err := r.Dispatch(context.Background(), "@u:example.org", intent.FunctionCall{
		Name:      "web_search",
		Arguments: map[string]string{"query": "go proverbs"},
	})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if got != "results" {
		t.Errorf("result = %q", got)
	}
}

func TestRegistry_NilRecorder(t *testing.T) {
	r := NewRegistry(nil, nil)
	def, _ := intent.Lookup("web_search")
	if err := r.Register(def, echoExec("results")); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := r.Dispatch(context.Background(), "@u:example.org", intent.FunctionCall{
		Name:      "web_search",
		Arguments: map[string]string{"query": "anything"},
	}); err != nil {
		t.Fatalf("Dispatch with nil recorder: %v", err)
	}
}
