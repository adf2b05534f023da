// Package matrix connects Akari to its homeserver. The client watches two
// kinds of rooms: assistant rooms, where the user talks to Akari, and watch
// rooms, whose traffic is captured as notifications. Routing between the
// two is the app's job; this package only delivers events and sends
// replies.
package matrix

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"
)

// Config holds Matrix client configuration.
type Config struct {
	Homeserver  string
	UserID      string
	AccessToken string
	// AssistantRooms are the rooms where Akari converses and accepts
	// commands.
	AssistantRooms []string
	// WatchRooms are captured into the notification inbox. Akari never
	// replies there.
	WatchRooms []string
	// DB optionally persists the sync position (next_batch) across
	// restarts. When nil, history replays on every start.
	DB *sql.DB
}

// MessageHandler processes one inbound text message from a configured room.
type MessageHandler func(ctx context.Context, evt *event.Event)

// Client wraps the mautrix client with Akari's room model.
type Client struct {
	client     *mautrix.Client
	config     *Config
	stopCh     chan struct{}
	msgHandler MessageHandler
}

// New creates a Matrix client. It does not connect yet; Start does.
func New(config *Config) (*Client, error) {
	client, err := mautrix.NewClient(config.Homeserver, id.UserID(config.UserID), config.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Matrix client: %w", err)
	}

	c := &Client{
		client: client,
		config: config,
		stopCh: make(chan struct{}),
	}

	if config.DB != nil {
		client.Store = newDBSyncStore(config.DB)
		slog.Info("Matrix sync store: using persistent SQLite store")
	} else {
		slog.Warn("Matrix sync store: no DB configured, using in-memory store (history will replay on restart)")
	}

	return c, nil
}

// Start joins the configured rooms and begins syncing in the background,
// delivering text messages from those rooms to handler.
func (c *Client) Start(ctx context.Context, handler MessageHandler) error {
	c.msgHandler = handler

	// E2EE is not implemented: everything Akari sends and receives is
	// visible to the homeserver in plaintext.
	slog.Warn("Matrix E2EE is not enabled; messages are transmitted in plaintext")

	syncer := c.client.Syncer.(*mautrix.DefaultSyncer)
	syncer.OnEventType(event.EventMessage, c.handleMessage)

	for _, roomID := range c.config.AssistantRooms {
		if err := c.joinRoom(id.RoomID(roomID)); err != nil {
			return fmt.Errorf("failed to join assistant room %s: %w", roomID, err)
		}
	}
	for _, roomID := range c.config.WatchRooms {
		if err := c.joinRoom(id.RoomID(roomID)); err != nil {
			return fmt.Errorf("failed to join watch room %s: %w", roomID, err)
		}
	}

	// Sync in the background with exponential back-off reconnection.
	// Without retries a transient homeserver error would silently kill the
	// sync goroutine and leave the bot deaf to all new messages.
	go func() {
		const (
			backoffMin = 2 * time.Second
			backoffMax = 5 * time.Minute
		)
		backoff := backoffMin
		for {
			backoff = backoffMin // reset before each attempt
			if err := c.client.Sync(); err != nil {
				select {
				case <-c.stopCh:
					return
				default:
				}
				slog.Error("Matrix sync stopped; reconnecting", "err", err, "backoff", backoff)
				select {
				case <-c.stopCh:
					return
				case <-time.After(backoff):
				}
				backoff *= 2
				if backoff > backoffMax {
					backoff = backoffMax
				}
				continue
			}
			// Sync returned nil — only happens on a clean StopSync() call.
			return
		}
	}()

	return nil
}

// Stop terminates the sync loop.
func (c *Client) Stop() {
	close(c.stopCh)
	c.client.StopSync()
}

// SendMessage sends a plain text message to a room.
func (c *Client) SendMessage(roomID, message string) error {
	_, err := c.client.SendText(context.Background(), id.RoomID(roomID), message)
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// SendFormattedMessage sends HTML with a plain-text fallback body.
func (c *Client) SendFormattedMessage(roomID, html, plaintext string) error {
	content := event.MessageEventContent{
		MsgType:       event.MsgText,
		Body:          plaintext,
		Format:        event.FormatHTML,
		FormattedBody: html,
	}
	_, err := c.client.SendMessageEvent(context.Background(), id.RoomID(roomID), event.EventMessage, &content)
	if err != nil {
		return fmt.Errorf("failed to send formatted message: %w", err)
	}
	return nil
}

// ReplyToMessage sends message as a threaded reply to eventID.
func (c *Client) ReplyToMessage(roomID, eventID, message string) error {
	content := event.MessageEventContent{
		MsgType: event.MsgText,
		Body:    message,
		RelatesTo: &event.RelatesTo{
			InReplyTo: &event.InReplyTo{
				EventID: id.EventID(eventID),
			},
		},
	}
	_, err := c.client.SendMessageEvent(context.Background(), id.RoomID(roomID), event.EventMessage, &content)
	if err != nil {
		return fmt.Errorf("failed to send reply: %w", err)
	}
	return nil
}

// SendNotice sends a notice, which clients render less intrusively; used
// for startup banners and reminders.
func (c *Client) SendNotice(roomID, message string) error {
	content := event.MessageEventContent{
		MsgType: event.MsgNotice,
		Body:    message,
	}
	_, err := c.client.SendMessageEvent(context.Background(), id.RoomID(roomID), event.EventMessage, &content)
	if err != nil {
		return fmt.Errorf("failed to send notice: %w", err)
	}
	return nil
}

// SetTyping toggles the typing indicator, Akari's "thinking" cue while a
// model call is in flight.
func (c *Client) SetTyping(roomID string, typing bool, timeout time.Duration) error {
	_, err := c.client.UserTyping(context.Background(), id.RoomID(roomID), typing, timeout)
	if err != nil {
		return fmt.Errorf("failed to set typing: %w", err)
	}
	return nil
}

// IsAssistantRoom reports whether roomID is a conversation room.
func (c *Client) IsAssistantRoom(roomID string) bool {
	for _, r := range c.config.AssistantRooms {
		if r == roomID {
			return true
		}
	}
	return false
}

// IsWatchRoom reports whether roomID feeds the notification inbox.
func (c *Client) IsWatchRoom(roomID string) bool {
	for _, r := range c.config.WatchRooms {
		if r == roomID {
			return true
		}
	}
	return false
}

// handleMessage filters events down to foreign text messages in configured
/// rooms and forwards them. Each message gets its own goroutine: the syncer
// dispatches listeners inline from the sync loop, and a slow turn (an
// inference call can take many seconds) must not hold up delivery of other
// users' messages. Same-user ordering is the orchestrator's job, which
// serialises turns per user and lets the newest message supersede one still
// in flight.
func (c *Client) handleMessage(ctx context.Context, evt *event.Event) {
	if evt.Sender == id.UserID(c.config.UserID) {
		return
	}
	msgContent := evt.Content.AsMessage()
	if msgContent == nil || msgContent.MsgType != event.MsgText {
		return
	}
	roomID := evt.RoomID.String()
	if !c.IsAssistantRoom(roomID) && !c.IsWatchRoom(roomID) {
		return
	}
	if c.msgHandler != nil {
		go c.msgHandler(ctx, evt)
	}
}

// joinRoom attempts to join a room.
func (c *Client) joinRoom(roomID id.RoomID) error {
	_, err := c.client.JoinRoomByID(context.Background(), roomID)
	if err != nil {
		// M_FORBIDDEN is what homeservers answer when the bot is already a
		// member. Use mautrix's typed error check instead of string
		// matching.
		if errors.Is(err, mautrix.MForbidden) {
			slog.Warn("joinRoom: already a member or access denied, continuing", "room", roomID)
			return nil
		}
		return err
	}
	return nil
}

// GetUserID returns the bot's own user ID.
func (c *Client) GetUserID() string {
	return c.config.UserID
}

// GetDisplayName resolves a user's display name.
func (c *Client) GetDisplayName(userID string) (string, error) {
	profile, err := c.client.GetProfile(context.Background(), id.UserID(userID))
	if err != nil {
		return "", fmt.Errorf("failed to get profile: %w", err)
	}
	return profile.DisplayName, nil
}
