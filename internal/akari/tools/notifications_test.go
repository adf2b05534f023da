package tools

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/mkoriyama/Akari/internal/akari/store"
)

func seedNotifications(t *testing.T, st *store.Store) {
	t.Helper()
	ctx := context.Background()
	rows := []*store.Notification{
		{RoomID: "!ops:example.org", Sender: "@ci:example.org", Body: "deploy of api-gateway finished"},
		{RoomID: "!ops:example.org", Sender: "@watchdog:example.org", Body: "disk usage above 90% on db-1"},
		{RoomID: "!security-alerts-room:example.org", Sender: "@scanner:example.org", Body: "new CVE affects openssl"},
	}
	for _, n := range rows {
		if err := st.InsertNotification(ctx, n); err != nil {
			t.Fatalf("InsertNotification: %v", err)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestNotifications_SearchByTerm(t *testing.T) {
	st := newToolStore(t, nil)
	seedNotifications(t, st)
	n := NewNotifications(st)

	reply, err := n.Search(context.Background(), notesUser, map[string]string{"query": "deploy"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if !strings.Contains(reply, "🔔 1 notification for **deploy**") {
		t.Errorf("header wrong: %q", reply)
	}
	if !strings.Contains(reply, "@ci:example.org") || !strings.Contains(reply, "deploy of api-gateway") {
		t.Errorf("reply missing the matching row: %q", reply)
	}
	if strings.Contains(reply, "CVE") || strings.Contains(reply, "disk usage") {
		t.Errorf("reply leaked non-matching rows: %q", reply)
	}
}

func TestNotifications_MatchesSenderToo(t *testing.T) {
	st := newToolStore(t, nil)
	seedNotifications(t, st)
	n := NewNotifications(st)

	reply, err := n.Search(context.Background(), notesUser, map[string]string{"query": "watchdog"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if !strings.Contains(reply, "disk usage above 90%") {
		t.Errorf("sender match missed: %q", reply)
	}
}

func TestNotifications_CatchAllShowsLatest(t *testing.T) {
	st := newToolStore(t, nil)
	seedNotifications(t, st)
	n := NewNotifications(st)

	reply, err := n.Search(context.Background(), notesUser, map[string]string{"query": "latest"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if !strings.Contains(reply, "🔔 3 notifications for **latest**") {
		t.Errorf("header wrong: %q", reply)
	}
	// Newest first: the CVE row was inserted last.
	cve := strings.Index(reply, "CVE")
	deploy := strings.Index(reply, "deploy of")
	if cve < 0 || deploy < 0 || cve > deploy {
		t.Errorf("ordering wrong: %q", reply)
	}
}

func TestNotifications_NoMatches(t *testing.T) {
	st := newToolStore(t, nil)
	seedNotifications(t, st)
	n := NewNotifications(st)

	reply, err := n.Search(context.Background(), notesUser, map[string]string{"query": "kubernetes"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if reply != "🔕 No notifications matching **kubernetes**." {
		t.Errorf("reply = %q", reply)
	}
}

func TestRoomLabel(t *testing.T) {
	if got := roomLabel("!ops:example.org"); got != "!ops:example.org" {
		t.Errorf("short room id changed: %q", got)
	}
	long := "!security-alerts-room:example.org"
	got := roomLabel(long)
	if got != long[:13]+"…" {
		t.Errorf("roomLabel(%q) = %q", long, got)
	}
}
