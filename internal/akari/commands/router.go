// Package commands provides the /akari slash-command surface: parsing,
// routing, and the management handlers that sit beside the natural-language
// engine.
package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"maunium.net/go/mautrix/event"
)

// ErrNotACommand is returned by Parse when the message does not start with
// the command prefix. Callers use errors.Is to tell this expected case from
// real errors.
var ErrNotACommand = errors.New("not a command (missing prefix)")

// Command is a parsed slash command.
type Command struct {
	Name       string
	Subcommand string
	Args       []string
	Flags      map[string]string
	RawText    string
}

// Key is what Route looks handlers up by: "name.subcommand", or just "name"
// when there is no subcommand.
func (c *Command) Key() string {
	if c.Subcommand == "" {
		return c.Name
	}
	return c.Name + "." + c.Subcommand
}

// Arg returns the positional argument at index, if present.
func (c *Command) Arg(index int) (string, bool) {
	if index < 0 || index >= len(c.Args) {
		return "", false
	}
	return c.Args[index], true
}

// Flag returns the named flag's value, or def when the flag is absent.
func (c *Command) Flag(name, def string) string {
	if v, ok := c.Flags[name]; ok {
		return v
	}
	return def
}

// HasFlag reports whether the named flag was given at all.
func (c *Command) HasFlag(name string) bool {
	_, ok := c.Flags[name]
	return ok
}

// Handler handles one command.
type Handler func(ctx context.Context, cmd *Command, evt *event.Event) (string, error)

// Router parses "/akari ..." messages and routes them to handlers.
type Router struct {
	prefix   string
	handlers map[string]Handler
}

// NewRouter creates a router for the given prefix, e.g. "/akari".
func NewRouter(prefix string) *Router {
	return &Router{prefix: prefix, handlers: make(map[string]Handler)}
}

// Register binds a handler to a command key ("help", "notes.list", ...).
func (r *Router) Register(command string, handler Handler) {
	r.handlers[command] = handler
}

// Parse splits a message into a command. The first token is the command
// name, an optional second non-flag token is the subcommand, and the rest
// are positional args and flags. Flags take either form: "--limit 5" or
// "--limit=5"; a flag with no value becomes "true".
func (r *Router) Parse(text string) (*Command, error) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, r.prefix) {
		return nil, ErrNotACommand
	}

	text = strings.TrimSpace(strings.TrimPrefix(text, r.prefix))
	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return nil, fmt.Errorf("empty command")
	}

	cmd := &Command{
		Name:    tokens[0],
		Args:    []string{},
		Flags:   make(map[string]string),
		RawText: text,
	}
	rest := tokens[1:]
	if len(rest) > 0 && !strings.HasPrefix(rest[0], "-") {
		cmd.Subcommand = rest[0]
		rest = rest[1:]
	}
	cmd.parseTail(rest)
	return cmd, nil
}

// parseTail distributes the remaining tokens into Args and Flags.
func (c *Command) parseTail(tokens []string) {
	for len(tokens) > 0 {
		tok := tokens[0]
		tokens = tokens[1:]

		if !strings.HasPrefix(tok, "--") {
			c.Args = append(c.Args, tok)
			continue
		}

		name := strings.TrimPrefix(tok, "--")
		if name, value, ok := strings.Cut(name, "="); ok {
			c.Flags[name] = value
			continue
		}
		if len(tokens) > 0 && !strings.HasPrefix(tokens[0], "--") {
			c.Flags[name] = tokens[0]
			tokens = tokens[1:]
			continue
		}
		c.Flags[name] = "true"
	}
}

// Route parses text and invokes the matching handler. Lookup tries the full
// "name.subcommand" key first, then the bare name, so a catch-all "notes"
// handler can back up specific "notes.list"-style registrations.
func (r *Router) Route(ctx context.Context, text string, evt *event.Event) (string, error) {
	cmd, err := r.Parse(text)
	if err != nil {
		return "", err
	}

	handler, ok := r.handlers[cmd.Key()]
	if !ok {
		if handler, ok = r.handlers[cmd.Name]; !ok {
			return "", fmt.Errorf("unknown command: %s", cmd.Key())
		}
	}
	return handler(ctx, cmd, evt)
}
