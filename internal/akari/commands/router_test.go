package commands_test

import (
	"context"
	"errors"
	"testing"

	"maunium.net/go/mautrix/event"

	"github.com/mkoriyama/Akari/internal/akari/commands"
)

func TestParseCommand_Basic(t *testing.T) {
	router := commands.NewRouter("/akari")

	tests := []struct {
		input     string
		wantName  string
		wantSub   string
		wantArgs  []string
		wantFlags map[string]string
		wantErr   bool
	}{
		{
			input:    "/akari help",
			wantName: "help",
			wantSub:  "",
			wantArgs: []string{},
		},
		{
			input:    "/akari ping",
			wantName: "ping",
			wantSub:  "",
		},
		{
			input:    "/akari notes list",
			wantName: "notes",
			wantSub:  "list",
			wantArgs: []string{},
		},
		{
			input:    "/akari notes list 5",
			wantName: "notes",
			wantSub:  "list",
			wantArgs: []string{"5"},
		},
		{
			input:    "/akari notes delete 9f3a8c2e",
			wantName: "notes",
			wantSub:  "delete",
			wantArgs: []string{"9f3a8c2e"},
		},
		{
			input:    "/akari notes search ramen places",
			wantName: "notes",
			wantSub:  "search",
			wantArgs: []string{"ramen", "places"},
		},
		{
			input:     "/akari notifications tail --limit 20",
			wantName:  "notifications",
			wantSub:   "tail",
			wantArgs:  []string{},
			wantFlags: map[string]string{"limit": "20"},
		},
		{
			input:     "/akari notifications tail --limit=20",
			wantName:  "notifications",
			wantSub:   "tail",
			wantArgs:  []string{},
			wantFlags: map[string]string{"limit": "20"},
		},
		{
			input:    "/akari trace t_abc123",
			wantName: "trace",
			wantSub:  "t_abc123",
			wantArgs: []string{},
		},
		{
			input:   "just chatting",
			wantErr: true,
		},
		{
			input:   "/akari",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			cmd, err := router.Parse(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if cmd.Name != tt.wantName {
				t.Errorf("Name: got %q, want %q", cmd.Name, tt.wantName)
			}
			if cmd.Subcommand != tt.wantSub {
				t.Errorf("Subcommand: got %q, want %q", cmd.Subcommand, tt.wantSub)
			}

			if tt.wantArgs != nil {
				if len(cmd.Args) != len(tt.wantArgs) {
					t.Errorf("Args length: got %d, want %d (args=%v)", len(cmd.Args), len(tt.wantArgs), cmd.Args)
				} else {
					for i, want := range tt.wantArgs {
						if cmd.Args[i] != want {
							t.Errorf("Args[%d]: got %q, want %q", i, cmd.Args[i], want)
						}
					}
				}
			}

			if tt.wantFlags != nil {
				for k, v := range tt.wantFlags {
					got, ok := cmd.Flags[k]
					if !ok {
						t.Errorf("missing flag %q", k)
					} else if got != v {
						t.Errorf("flag %q: got %q, want %q", k, got, v)
					}
				}
			}
		})
	}
}

func TestParseCommand_NotACommand(t *testing.T) {
	router := commands.NewRouter("/akari")

	_, err := router.Parse("remind me to stretch")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !errors.Is(err, commands.ErrNotACommand) {
		t.Errorf("expected ErrNotACommand, got %v", err)
	}
}

func TestRouteCommand_UnknownCommand(t *testing.T) {
	router := commands.NewRouter("/akari")
	ctx := context.Background()

	_, err := router.Route(ctx, "/akari notacommand", &event.Event{})
	if err == nil {
		t.Fatal("expected error for unknown command, got nil")
	}
}

func TestRouteCommand_RegisteredHandler(t *testing.T) {
	router := commands.NewRouter("/akari")
	called := false

	router.Register("ping", func(ctx context.Context, cmd *commands.Command, evt *event.Event) (string, error) {
		called = true
		return "pong", nil
	})

	ctx := context.Background()
	response, err := router.Route(ctx, "/akari ping", &event.Event{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Error("handler was not called")
	}
	if response != "pong" {
		t.Errorf("response: got %q, want %q", response, "pong")
	}
}

func TestRouteCommand_SubcommandFallback(t *testing.T) {
	router := commands.NewRouter("/akari")

	router.Register("trace", func(ctx context.Context, cmd *commands.Command, evt *event.Event) (string, error) {
		return "trace:" + cmd.Subcommand, nil
	})

	response, err := router.Route(context.Background(), "/akari trace t_xyz", &event.Event{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if response != "trace:t_xyz" {
		t.Errorf("response: got %q, want %q", response, "trace:t_xyz")
	}
}

func TestCommandFlag(t *testing.T) {
	router := commands.NewRouter("/akari")
	cmd, err := router.Parse("/akari notifications tail --limit 20 --verbose")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := cmd.Flag("limit", ""); got != "20" {
		t.Errorf("Flag(limit): got %q, want %q", got, "20")
	}
	if got := cmd.Flag("verbose", ""); got != "true" {
		t.Errorf("Flag(verbose): got %q, want %q", got, "true")
	}
	if got := cmd.Flag("missing", "default"); got != "default" {
		t.Errorf("Flag(missing): got %q, want %q", got, "default")
	}
	if !cmd.HasFlag("verbose") {
		t.Error("HasFlag(verbose): expected true")
	}
	if cmd.HasFlag("missing") {
		t.Error("HasFlag(missing): expected false")
	}
}

func TestCommandArg(t *testing.T) {
	router := commands.NewRouter("/akari")
	cmd, err := router.Parse("/akari notes delete 9f3a8c2e")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if val, ok := cmd.Arg(0); !ok || val != "9f3a8c2e" {
		t.Errorf("Arg(0): got (%q, %v), want (%q, true)", val, ok, "9f3a8c2e")
	}
	if _, ok := cmd.Arg(1); ok {
		t.Error("Arg(1): expected false for out-of-bounds, got true")
	}
}

func TestCommandKey(t *testing.T) {
	router := commands.NewRouter("/akari")

	cmd, _ := router.Parse("/akari notes list")
	if got := cmd.Key(); got != "notes.list" {
		t.Errorf("Key: got %q, want %q", got, "notes.list")
	}

	cmd, _ = router.Parse("/akari ping")
	if got := cmd.Key(); got != "ping" {
		t.Errorf("Key: got %q, want %q", got, "ping")
	}
}
