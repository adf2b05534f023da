// Package intent defines the closed tool vocabulary of the Akari assistant
// and the deterministic half of its classification pipeline.
//
// The package is the shared language between three consumers:
//   - the rule Classifier and validation Gate in this package,
//   - the generative layer (internal/akari/nlp), which renders Definitions
//     into prompts and maps one-word model answers back to an Intent,
//   - the dispatcher (internal/akari/tools), which uses Definitions as its
//     allow-list and argument contract.
//
// Everything here is pure: no I/O, no clocks, no globals beyond immutable
// tables. Identical input always yields identical output.
package intent

import (
	"sort"
	"strings"
)

// Intent is the discrete action category inferred from an utterance.
// The zero value "" means "no tool intent"; the caller should respond
// conversationally.
type Intent string

const (
	// SaveNote stores a piece of text (optionally titled, optionally with a
	// reminder time) in the user's note collection.
	SaveNote Intent = "save_note"

	// RetrieveNote searches the user's stored notes and returns the best
	// matches.
	RetrieveNote Intent = "retrieve_note"

	// WebSearch runs a web search and returns a digest of the top results.
	WebSearch Intent = "web_search"

	// SearchNotifications searches the notifications Akari has captured from
	// watched rooms.
	SearchNotifications Intent = "search_notifications"
)

// All returns every supported intent in canonical (priority) order:
// SaveNote, RetrieveNote, SearchNotifications, WebSearch. The order matters:
// it is the order rules are evaluated in and the order tools appear in
// generative prompts, so overlapping phrasings resolve the same way
// everywhere.
func All() []Intent {
	return []Intent{SaveNote, RetrieveNote, SearchNotifications, WebSearch}
}

// Valid reports whether i is one of the supported intents.
func (i Intent) Valid() bool {
	switch i {
	case SaveNote, RetrieveNote, WebSearch, SearchNotifications:
		return true
	}
	return false
}

// ParseWord maps a single-word classifier answer to an Intent.
// Matching is case-insensitive and tolerates surrounding whitespace,
// quotes, and trailing punctuation, because small models rarely honour an
// output contract byte-for-byte. "NONE", the empty string, and anything
// unrecognised return ("", false).
func ParseWord(s string) (Intent, bool) {
	w := strings.ToLower(strings.TrimSpace(s))
	w = strings.Trim(w, "\"'`*.:,! \t\r\n")
	if w == "" || w == "none" {
		return "", false
	}
	it := Intent(w)
	if it.Valid() {
		return it, true
	}
	return "", false
}

// ParameterSpec declares one argument of a tool.
type ParameterSpec struct {
	// Name is the argument key as it appears in FunctionCall.Arguments.
	Name string
	// Required marks arguments the dispatcher refuses to run without.
	Required bool
	// Description is shown to the generative extractor and used to phrase
	// follow-up questions.
	Description string
}

// Definition is the declarative description of one tool. It feeds the
// generative prompts, the dispatch allow-list, argument validation, and the
// confirmation preview.
type Definition struct {
	// Name doubles as the tool name in FunctionCall payloads.
	Name Intent
	// Description is a one-sentence explanation included in prompts.
	Description string
	// Parameters lists required arguments first, in the order follow-up
	// questions should be asked.
	Parameters []ParameterSpec
	// Confirm forces a confirmation preview even when every required
	// parameter was present in the initial utterance. No current tool sets
	// it; multi-turn collection always previews regardless.
	Confirm bool
}

// Required returns the required parameter specs in declaration order.
func (d Definition) Required() []ParameterSpec {
	var out []ParameterSpec
	for _, p := range d.Parameters {
		if p.Required {
			out = append(out, p)
		}
	}
	return out
}

// Param looks up a parameter spec by name.
func (d Definition) Param(name string) (ParameterSpec, bool) {
	for _, p := range d.Parameters {
		if p.Name == name {
			return p, true
		}
	}
	return ParameterSpec{}, false
}

// FunctionCall is the final validated payload handed to the dispatcher:
// a tool name plus string-keyed arguments. Argument values are kept as
// strings end to end; executors parse stronger types at their own edge.
type FunctionCall struct {
	Name      string
	Arguments map[string]string
}

// definitions is the authoritative tool catalogue. The generative classifier
// is instructed to answer only with names that appear here, and the
// dispatcher registers exactly these tools, so a drifting model answer fails
// closed instead of reaching an executor.
var definitions = []Definition{
	{
		Name:        SaveNote,
		Description: "Store a note for the user. Use when the user wants to remember, save, or jot something down.",
		Parameters: []ParameterSpec{
			{Name: "content", Required: true, Description: "the note text to store"},
			{Name: "title", Required: false, Description: "a short title for the note"},
			{Name: "reminder", Required: false, Description: "when to remind the user, if they asked for a reminder"},
		},
	},
	{
		Name:        RetrieveNote,
		Description: "Find previously saved notes. Use when the user asks about something they stored earlier.",
		Parameters: []ParameterSpec{
			{Name: "query", Required: true, Description: "keywords describing the note to find"},
		},
	},
	{
		Name:        SearchNotifications,
		Description: "Search notifications captured from the user's rooms. Use when the user asks about alerts, mentions, or pings.",
		Parameters: []ParameterSpec{
			{Name: "query", Required: true, Description: "keywords to look for in notifications"},
		},
	},
	{
		Name:        WebSearch,
		Description: "Search the web. Use for questions about facts, people, places, or current events.",
		Parameters: []ParameterSpec{
			{Name: "query", Required: true, Description: "the search query"},
		},
	},
}

// Definitions returns the canonical tool catalogue in priority order.
// The returned slice is a copy; callers may reorder or trim it freely.
func Definitions() []Definition {
	out := make([]Definition, len(definitions))
	copy(out, definitions)
	return out
}

// Lookup resolves a tool name (as produced by a model or a FunctionCall)
// to its Definition.
func Lookup(name string) (Definition, bool) {
	for _, d := range definitions {
		if string(d.Name) == name {
			return d, true
		}
	}
	return Definition{}, false
}

// Names returns the sorted tool-name allow-list. Used in log lines and
// error messages where a stable order beats priority order.
func Names() []string {
	names := make([]string, 0, len(definitions))
	for _, d := range definitions {
		names = append(names, string(d.Name))
	}
	sort.Strings(names)
	return names
}
