package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mkoriyama/Akari/internal/akari/store"
)

const (
	// reminderPollInterval bounds how late a reminder can fire.
	reminderPollInterval = 30 * time.Second
	// reminderBatchSize caps deliveries per tick so a backlog after downtime
	// drains gradually instead of flooding the room.
	reminderBatchSize = 20

	pruneInterval = 1 * time.Hour
	// notificationRetention is how long captured watch-room messages stay
	// searchable.
	notificationRetention = 30 * 24 * time.Hour
	// searchCacheMaxAge prunes web-search cache rows long after their TTL
	// made them unservable.
	searchCacheMaxAge = 24 * time.Hour
)

// reminderLoop delivers due note reminders to the assistant rooms. Blocks
// until ctx is cancelled.
func (a *App) reminderLoop(ctx context.Context) {
	ticker := time.NewTicker(reminderPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.deliverDueReminders(ctx)
		}
	}
}

// deliverDueReminders fires one batch of due reminders. A reminder is marked
// fired only after it reached at least one room, so delivery failures retry
// on the next tick.
func (a *App) deliverDueReminders(ctx context.Context) {
	due, err := a.store.DueReminders(ctx, time.Now(), reminderBatchSize)
	if err != nil {
		slog.Warn("reminder scan failed", "err", err)
		return
	}

	for _, note := range due {
		text := reminderText(note)
		delivered := false
		for _, roomID := range a.config.Matrix.AssistantRooms {
			if err := a.matrix.SendFormattedMessage(roomID, markdownToHTML(text), text); err != nil {
				slog.Warn("reminder delivery failed", "room", roomID, "note", note.ID, "err", err)
				continue
			}
			delivered = true
		}
		if !delivered {
			continue
		}
		if err := a.store.MarkReminderFired(ctx, note.ID); err != nil {
			slog.Warn("failed to mark reminder fired", "note", note.ID, "err", err)
			continue
		}
		slog.Info("reminder delivered", "note", note.ID)
	}
}

// reminderText renders one reminder. Content of sensitive notes stays out of
// the room; the lock marker tells the user to retrieve it themselves.
func reminderText(note *store.Note) string {
	if note.Sensitive {
		return fmt.Sprintf("⏰ Reminder: **%s** 🔒", note.Title)
	}
	snippet := reminderSnippet(note)
	if snippet == "" {
		return fmt.Sprintf("⏰ Reminder: **%s**", note.Title)
	}
	return fmt.Sprintf("⏰ Reminder: **%s**\n%s", note.Title, snippet)
}

// reminderSnippet returns the first line of the note content, trimmed, or ""
// when it would just repeat the title.
func reminderSnippet(note *store.Note) string {
	line, _, _ := strings.Cut(note.Content, "\n")
	line = strings.TrimSpace(line)
	if line == "" || strings.EqualFold(line, note.Title) {
		return ""
	}
	if r := []rune(line); len(r) > 120 {
		line = string(r[:120]) + "…"
	}
	return line
}

// pruneLoop evicts expired search-cache rows and old notifications. Blocks
// until ctx is cancelled.
func (a *App) pruneLoop(ctx context.Context) {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := a.store.PruneSearchCache(ctx, searchCacheMaxAge); err != nil {
				slog.Warn("search cache prune failed", "err", err)
			} else if n > 0 {
				slog.Debug("search cache pruned", "rows", n)
			}
			cutoff := time.Now().Add(-notificationRetention)
			if n, err := a.store.PruneNotifications(ctx, cutoff); err != nil {
				slog.Warn("notification prune failed", "err", err)
			} else if n > 0 {
				slog.Debug("notifications pruned", "rows", n)
			}
		}
	}
}
