package flow

// args.go gives every tool's arguments a typed shape. Raw maps from the
// generative tier cross into the typed world exactly once, through FromMap,
// which runs the tool's schema first; nothing that fails it reaches
// dispatch. The heuristic tier constructs these values directly.

import (
	"fmt"
	"strings"

	"github.com/mkoriyama/Akari/internal/akari/intent"
)

// Args is one tool's argument set in typed form.
type Args interface {
	// Tool names the tool the arguments belong to.
	Tool() intent.Intent
	// Map renders the arguments in the wire shape used by dispatch.
	// Unset optional fields are omitted, not sent empty.
	Map() map[string]string
}

// SaveNoteArgs carries a note to store. Title and Reminder are optional;
// Reminder is an RFC 3339 timestamp once normalised.
type SaveNoteArgs struct {
	Content  string
	Title    string
	Reminder string
}

func (SaveNoteArgs) Tool() intent.Intent { return intent.SaveNote }

func (a SaveNoteArgs) Map() map[string]string {
	m := map[string]string{"content": a.Content}
	if a.Title != "" {
		m["title"] = a.Title
	}
	if a.Reminder != "" {
		m["reminder"] = a.Reminder
	}
	return m
}

// NoteQueryArgs carries a search over the user's saved notes.
type NoteQueryArgs struct {
	Query string
}

func (NoteQueryArgs) Tool() intent.Intent { return intent.RetrieveNote }

func (a NoteQueryArgs) Map() map[string]string {
	return map[string]string{"query": a.Query}
}

// NotificationQueryArgs carries a search over captured notifications.
type NotificationQueryArgs struct {
	Query string
}

func (NotificationQueryArgs) Tool() intent.Intent { return intent.SearchNotifications }

func (a NotificationQueryArgs) Map() map[string]string {
	return map[string]string{"query": a.Query}
}

// WebSearchArgs carries a web search query.
type WebSearchArgs struct {
	Query string
}

func (WebSearchArgs) Tool() intent.Intent { return intent.WebSearch }

func (a WebSearchArgs) Map() map[string]string {
	return map[string]string{"query": a.Query}
}

// FromMap validates raw against the tool's parameter schema and returns the
// typed form. Keys are folded to lower case and values trimmed first;
// empty values count as absent rather than present-but-blank, since models
// routinely emit title="" instead of omitting the field.
func FromMap(it intent.Intent, raw map[string]string) (Args, error) {
	def, ok := intent.Lookup(string(it))
	if !ok {
		return nil, fmt.Errorf("flow: no definition for intent %q", it)
	}
	clean := make(map[string]string, len(raw))
	for k, v := range raw {
		k = strings.ToLower(strings.TrimSpace(k))
		v = strings.TrimSpace(v)
		if k == "" || v == "" {
			continue
		}
		clean[k] = v
	}
	if err := intent.ValidateArgs(def, clean); err != nil {
		return nil, err
	}
	switch it {
	case intent.SaveNote:
		return SaveNoteArgs{
			Content:  clean["content"],
			Title:    clean["title"],
			Reminder: clean["reminder"],
		}, nil
	case intent.RetrieveNote:
		return NoteQueryArgs{Query: clean["query"]}, nil
	case intent.SearchNotifications:
		return NotificationQueryArgs{Query: clean["query"]}, nil
	case intent.WebSearch:
		return WebSearchArgs{Query: clean["query"]}, nil
	}
	return nil, fmt.Errorf("flow: no argument shape for intent %q", it)
}
