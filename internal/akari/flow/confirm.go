package flow

// confirm.go reads the replies users send while a flow waits on them:
// yes/no/change during confirmation, "field to value" during modification,
// and the cancel/skip vocabulary used while collecting parameters. It also
// renders the preview that confirmation replies refer to.

import (
	"fmt"
	"strings"
	"time"

	"github.com/mkoriyama/Akari/internal/akari/intent"
)

// ConfirmationKind classifies a reply to a confirmation prompt.
type ConfirmationKind int

const (
	// Unclear means nothing recognisable; the orchestrator re-prompts.
	Unclear ConfirmationKind = iota
	// Confirmed means run the tool.
	Confirmed
	// Cancelled means abandon the flow.
	Cancelled
	// Modify means change one collected field, then confirm again.
	Modify
)

func (k ConfirmationKind) String() string {
	switch k {
	case Confirmed:
		return "confirmed"
	case Cancelled:
		return "cancelled"
	case Modify:
		return "modify"
	}
	return "unclear"
}

// Confirmation is the parsed form of a confirmation-stage reply. Field and
// Value are set only for Modify; Value may be empty when the user named the
// field but not the new value ("change the title").
type Confirmation struct {
	Kind  ConfirmationKind
	Field string
	Value string
}

// Affirmatives and negatives match when the reply equals the word or starts
// with it followed by a space ("yes please"). Never on bare substring:
// "yesterday" is not a yes.
var positiveWords = []string{
	"yes", "y", "yeah", "yep", "yup", "sure", "ok", "okay", "confirm",
	"confirmed", "go ahead", "do it", "proceed", "please do", "sounds good",
	"correct", "looks good", "send it", "run it", "save it",
}

var negativeWords = []string{
	"no", "n", "nope", "nah", "cancel", "stop", "abort", "never mind",
	"nevermind", "forget it", "don't", "dont", "leave it", "scrap it",
	"drop it",
}

// cancelWords abort a whole flow from the collecting stage. Deliberately
// narrower than negativeWords: a bare "no" while being asked for an optional
// title declines the field, it does not throw the note away.
var cancelWords = []string{
	"cancel", "stop", "abort", "never mind", "nevermind", "forget it",
	"quit", "exit", "scrap it", "drop it",
}

// skipWords decline the parameter currently being asked for. The field is
// recorded absent and the flow moves on.
var skipWords = []string{
	"skip", "none", "no", "nope", "nah", "nothing", "n/a", "na",
	"no thanks", "no thank you", "pass",
}

// matchWord reports whether reply is the word, or opens with it. Both sides
// are expected lowercased; trailing punctuation on the reply is ignored.
func matchWord(reply, word string) bool {
	reply = strings.TrimRight(reply, ".!?, ")
	return reply == word || strings.HasPrefix(reply, word+" ") || strings.HasPrefix(reply, word+",")
}

func matchAny(reply string, words []string) bool {
	for _, w := range words {
		if matchWord(reply, w) {
			return true
		}
	}
	return false
}

// ParseConfirmation classifies text as a confirmation-stage reply. Change
// requests are recognised first because they often embed a negative: "no,
// change the title to Groceries" is a modification, not a cancel.
func ParseConfirmation(text string) Confirmation {
	lower := strings.ToLower(strings.TrimSpace(text))
	if lower == "" {
		return Confirmation{Kind: Unclear}
	}
	if f, v, ok := parseChange(text); ok {
		return Confirmation{Kind: Modify, Field: f, Value: v}
	}
	if matchAny(lower, negativeWords) {
		return Confirmation{Kind: Cancelled}
	}
	if matchAny(lower, positiveWords) {
		return Confirmation{Kind: Confirmed}
	}
	return Confirmation{Kind: Unclear}
}

// ParseModification reads a modification-stage reply. On top of the change
// verbs it accepts the bare "<field> to <value>" and "<field> = <value>"
// shapes, since the user was just asked for exactly that.
func ParseModification(text string) (field, value string, ok bool) {
	if f, v, okc := parseChange(text); okc && v != "" {
		return f, v, true
	}
	words := strings.Fields(text)
	if len(words) >= 3 && (wordKey(words[1]) == "to" || words[1] == "=") {
		return wordKey(words[0]), strings.Join(words[2:], " "), true
	}
	return "", "", false
}

// changeVerbs open an inline modification. "make" and "set" only count when
// they lead the reply, where they cannot be part of the value.
var changeVerbs = map[string]bool{
	"change": true, "set": true, "update": true, "edit": true, "make": true,
}

// parseChange recognises "change <field> to <value>", "set <field> <value>",
// and the colon shorthand "<field>: <value>". The field comes back
// lowercased; the value keeps the user's capitalisation. ok with an empty
// value means the user named the field but not the replacement.
func parseChange(text string) (field, value string, ok bool) {
	words := strings.Fields(text)
	vi := -1
	for j := 0; j < len(words) && j < 3; j++ {
		if changeVerbs[wordKey(words[j])] {
			vi = j
			break
		}
	}
	if vi >= 0 {
		rest := words[vi+1:]
		for len(rest) > 0 {
			switch wordKey(rest[0]) {
			case "the", "a", "my", "that", "this":
				rest = rest[1:]
				continue
			}
			break
		}
		if len(rest) == 0 {
			return "", "", false
		}
		field = wordKey(rest[0])
		rest = rest[1:]
		if len(rest) > 0 && (wordKey(rest[0]) == "to" || wordKey(rest[0]) == "into" || rest[0] == "=") {
			rest = rest[1:]
		}
		return field, strings.TrimSpace(strings.Join(rest, " ")), true
	}
	// Colon shorthand: a single word before ':' is a field name. A value
	// opening with "//" is a URL scheme ("http://..."), not a field.
	if c := strings.Index(text, ":"); c > 0 {
		head := strings.TrimSpace(text[:c])
		value := strings.TrimSpace(text[c+1:])
		if head != "" && !strings.ContainsAny(head, " \t") && !strings.HasPrefix(value, "//") {
			return strings.ToLower(head), value, true
		}
	}
	return "", "", false
}

// wordKey lowercases a token and strips the punctuation that rides along in
// chat ("title," -> "title").
func wordKey(w string) string {
	return strings.ToLower(strings.Trim(w, ",.!?;:\"'"))
}

// BuildPreview renders the confirmation prompt for a collected parameter
// set. Parameters appear in catalogue order; optional ones that were never
// filled are omitted. RFC 3339 reminders are shown as readable local times.
func BuildPreview(def intent.Definition, collected map[string]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🔎 Here's what I'm about to run — **%s**:\n\n", def.Name)
	for _, p := range def.Parameters {
		v := strings.TrimSpace(collected[p.Name])
		if v == "" {
			continue
		}
		if p.Name == "reminder" {
			if t, err := time.Parse(time.RFC3339, v); err == nil {
				v = t.Format("Mon, 2 Jan 2006 at 15:04")
			}
		}
		fmt.Fprintf(&b, "• **%s**: %s\n", p.Name, v)
	}
	b.WriteString("\nReply **yes** to run it, **no** to cancel, or `change <field> to <value>` to adjust.")
	return b.String()
}
