package nlp_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/mkoriyama/Akari/internal/akari/intent"
	"github.com/mkoriyama/Akari/internal/akari/nlp"
)

func lookupDef(t *testing.T, name string) intent.Definition {
	t.Helper()
	def, ok := intent.Lookup(name)
	if !ok {
		t.Fatalf("tool %q missing from catalogue", name)
	}
	return def
}

func TestExtractCall_ParsesArguments(t *testing.T) {
	stub := stubText(`save_note(content="call the dentist", title="Dentist", reminder="tomorrow")`)
	e := nlp.NewExtractor(stub, nil, nil)

	fc, err := e.ExtractCall(context.Background(), "@mika:example.org",
		lookupDef(t, "save_note"),
		"note to call the dentist, title it Dentist, remind me tomorrow")
	if err != nil {
		t.Fatalf("ExtractCall: %v", err)
	}
	if fc.Name != "save_note" {
		t.Errorf("Name = %q, want save_note", fc.Name)
	}
	if fc.Arguments["content"] != "call the dentist" {
		t.Errorf("content = %q", fc.Arguments["content"])
	}
	if fc.Arguments["title"] != "Dentist" {
		t.Errorf("title = %q", fc.Arguments["title"])
	}
	if fc.Arguments["reminder"] != "tomorrow" {
		t.Errorf("reminder = %q", fc.Arguments["reminder"])
	}
	if len(stub.captured) != 1 {
		t.Errorf("provider called %d times, want exactly 1", len(stub.captured))
	}
}

// TestExtractCall_PromptShape pins the caching contract for the extractor
// tier: the instruction block stays byte-identical and the tool name plus
// user text travel in the user turn.
func TestExtractCall_PromptShape(t *testing.T) {
	stub := stubText(`save_note(content="a")`, `save_note(content="b")`)
	e := nlp.NewExtractor(stub, nil, nil)
	def := lookupDef(t, "save_note")

	for _, text := range []string{"remember thing one", "remember thing two"} {
		if _, err := e.ExtractCall(context.Background(), "@mika:example.org", def, text); err != nil {
			t.Fatalf("ExtractCall(%q): %v", text, err)
		}
	}

	if len(stub.captured) != 2 {
		t.Fatalf("provider called %d times, want 2", len(stub.captured))
	}
	if stub.captured[0].System != stub.captured[1].System {
		t.Error("system block changed between calls")
	}
	for i, text := range []string{"remember thing one", "remember thing two"} {
		req := stub.captured[i]
		if strings.Contains(req.System, text) {
			t.Errorf("call %d: user text leaked into the system block", i)
		}
		if !strings.Contains(req.Prompt, text) {
			t.Errorf("call %d: user text missing from the user turn", i)
		}
		if !strings.Contains(req.Prompt, "save_note") {
			t.Errorf("call %d: tool name missing from the user turn", i)
		}
		if req.Temperature != 0 {
			t.Errorf("call %d: temperature = %v, want 0", i, req.Temperature)
		}
	}
}

func TestExtractCall_RejectsWrongTool(t *testing.T) {
	// The model answered with a different tool than it was asked about.
	stub := stubText(`web_search(query="dentist")`)
	e := nlp.NewExtractor(stub, nil, nil)

	_, err := e.ExtractCall(context.Background(), "@mika:example.org",
		lookupDef(t, "save_note"), "note to call the dentist")
	if !errors.Is(err, nlp.ErrMalformedOutput) {
		t.Fatalf("err = %v, want ErrMalformedOutput", err)
	}
}

func TestExtractCall_MalformedOutput(t *testing.T) {
	stub := stubText("I am not able to extract arguments from that.")
	e := nlp.NewExtractor(stub, nil, nil)

	_, err := e.ExtractCall(context.Background(), "@mika:example.org",
		lookupDef(t, "save_note"), "note something down")
	if !errors.Is(err, nlp.ErrNoFunctionCall) {
		t.Fatalf("err = %v, want ErrNoFunctionCall", err)
	}
}

func TestExtractCall_RateLimited(t *testing.T) {
	stub := stubText(`save_note(content="x")`)
	limiter := nlp.NewRateLimiter(1, 0)
	e := nlp.NewExtractor(stub, limiter, nil)
	def := lookupDef(t, "save_note")

	if _, err := e.ExtractCall(context.Background(), "@mika:example.org", def, "first"); err != nil {
		t.Fatalf("first call: %v", err)
	}
	_, err := e.ExtractCall(context.Background(), "@mika:example.org", def, "second")
	if !errors.Is(err, nlp.ErrRateLimit) {
		t.Fatalf("err = %v, want ErrRateLimit", err)
	}
	if len(stub.captured) != 1 {
		t.Errorf("provider called %d times, want 1 (second call must not reach the model)", len(stub.captured))
	}
}

func TestExtractCall_BudgetEnforced(t *testing.T) {
	stub := &stubProvider{responses: []*nlp.Response{{
		Text:  `save_note(content="x")`,
		Usage: &nlp.TokenUsage{TotalTokens: 60},
	}}}
	budget := nlp.NewTokenBudget(50)
	e := nlp.NewExtractor(stub, nil, budget)
	def := lookupDef(t, "save_note")

	user := "@mika:example.org"
	if _, err := e.ExtractCall(context.Background(), user, def, "first"); err != nil {
		t.Fatalf("first call: %v", err)
	}
	if got := budget.Used(user); got != 60 {
		t.Errorf("Used = %d, want 60 (usage must be recorded after success)", got)
	}

	_, err := e.ExtractCall(context.Background(), user, def, "second")
	if !errors.Is(err, nlp.ErrBudgetExceeded) {
		t.Fatalf("err = %v, want ErrBudgetExceeded", err)
	}
	if len(stub.captured) != 1 {
		t.Errorf("provider called %d times, want 1", len(stub.captured))
	}
}

func TestExtractCall_ProviderErrorPropagates(t *testing.T) {
	e := nlp.NewExtractor(&stubProvider{err: context.DeadlineExceeded}, nil, nil)
	_, err := e.ExtractCall(context.Background(), "@mika:example.org",
		lookupDef(t, "save_note"), "text")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want DeadlineExceeded", err)
	}
}
