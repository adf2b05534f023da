package tools

// notifications.go implements the search_notifications executor over the
// inbox of messages captured from watched rooms.

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mkoriyama/Akari/internal/akari/store"
)

const notificationLimit = 10

// catchAllQueries ask for the latest notifications rather than a term
// match. The follow-up question advertises "latest" for exactly this.
var catchAllQueries = map[string]bool{
	"all": true, "any": true, "anything": true, "everything": true,
	"latest": true, "recent": true, "new": true, "unread": true,
}

// Notifications implements search_notifications.
type Notifications struct {
	store *store.Store
	now   func() time.Time
}

// NewNotifications returns the notification search executor.
func NewNotifications(st *store.Store) *Notifications {
	return &Notifications{store: st, now: time.Now}
}

// Search implements the search_notifications tool.
func (n *Notifications) Search(ctx context.Context, userID string, args map[string]string) (string, error) {
	query := strings.TrimSpace(args["query"])

	var (
		hits []*store.Notification
		err  error
	)
	if catchAllQueries[strings.ToLower(query)] {
		hits, err = n.store.RecentNotifications(ctx, notificationLimit)
	} else {
		hits, err = n.store.SearchNotifications(ctx, query, notificationLimit)
	}
	if err != nil {
		return "", fmt.Errorf("searching notifications: %w", err)
	}
	if len(hits) == 0 {
		return fmt.Sprintf("🔕 No notifications matching **%s**.", query), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🔔 %d notification%s for **%s**:\n\n", len(hits), plural(len(hits)), query)
	for _, h := range hits {
		fmt.Fprintf(&b, "• _%s_ **%s** in %s: %s\n",
			humanAge(n.now().Sub(h.CapturedAt)), h.Sender, roomLabel(h.RoomID), snippet(h.Body, 100))
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

// roomLabel shortens "!abcdef:example.org" to something readable in a list.
func roomLabel(roomID string) string {
	if len(roomID) > 16 {
		return roomID[:13] + "…"
	}
	return roomID
}
