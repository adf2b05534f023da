package store_test

import (
	"context"
	"testing"
)

func TestActivity_RecordAndReadBack(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	params := map[string]string{"content": "[REDACTED]", "title": "Wifi"}
	err := s.RecordActivity(ctx, "t_abc123", noteOwner, "save_note", params, "ok", "")
	if err != nil {
		t.Fatalf("RecordActivity: %v", err)
	}

	got, err := s.RecentActivity(ctx, 10)
	if err != nil {
		t.Fatalf("RecentActivity: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d entries, want 1", len(got))
	}
	e := got[0]
	if e.TraceID != "t_abc123" {
		t.Errorf("TraceID: got %q, want %q", e.TraceID, "t_abc123")
	}
	if e.UserID != noteOwner {
		t.Errorf("UserID: got %q, want %q", e.UserID, noteOwner)
	}
	if e.Tool != "save_note" {
		t.Errorf("Tool: got %q, want %q", e.Tool, "save_note")
	}
	if e.Result != "ok" {
		t.Errorf("Result: got %q, want %q", e.Result, "ok")
	}
	if e.ErrorMessage != "" {
		t.Errorf("ErrorMessage: got %q, want empty", e.ErrorMessage)
	}
	if e.Params["content"] != "[REDACTED]" || e.Params["title"] != "Wifi" {
		t.Errorf("Params: got %v", e.Params)
	}
	if e.Timestamp.IsZero() {
		t.Error("Timestamp not set")
	}
}

func TestActivity_EmptyParamsStayNil(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.RecordActivity(ctx, "t_empty", noteOwner, "retrieve_note", nil, "error", "store offline")
	if err != nil {
		t.Fatalf("RecordActivity: %v", err)
	}

	got, err := s.RecentActivity(ctx, 1)
	if err != nil {
		t.Fatalf("RecentActivity: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d entries, want 1", len(got))
	}
	if got[0].Params != nil {
		t.Errorf("Params: got %v, want nil", got[0].Params)
	}
	if got[0].ErrorMessage != "store offline" {
		t.Errorf("ErrorMessage: got %q", got[0].ErrorMessage)
	}
}

func TestActivityByTrace(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	steps := []struct {
		trace, tool string
	}{
		{"t_one", "save_note"},
		{"t_two", "web_search"},
		{"t_one", "retrieve_note"},
	}
	for _, st := range steps {
		if err := s.RecordActivity(ctx, st.trace, noteOwner, st.tool, nil, "ok", ""); err != nil {
			t.Fatalf("RecordActivity(%s): %v", st.tool, err)
		}
	}

	got, err := s.ActivityByTrace(ctx, "t_one")
	if err != nil {
		t.Fatalf("ActivityByTrace: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d entries, want 2", len(got))
	}
	// Oldest first within a trace, so the flow reads top to bottom.
	if got[0].Tool != "save_note" || got[1].Tool != "retrieve_note" {
		t.Errorf("order: got %q then %q", got[0].Tool, got[1].Tool)
	}
	for _, e := range got {
		if e.TraceID != "t_one" {
			t.Errorf("foreign trace leaked: %q", e.TraceID)
		}
	}
}

func TestRecentActivity_Limit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := s.RecordActivity(ctx, "t_bulk", noteOwner, "web_search", nil, "ok", ""); err != nil {
			t.Fatalf("RecordActivity: %v", err)
		}
	}

	got, err := s.RecentActivity(ctx, 3)
	if err != nil {
		t.Fatalf("RecentActivity: %v", err)
	}
	if len(got) != 3 {
		t.Errorf("got %d entries, want 3", len(got))
	}
}
