package flow

// extract.go turns a classified message into tool arguments without a model
// in the loop. Trigger stripping gives the remainder; for saves a reminder
// phrase is resolved and a title derived, for the query tools the remainder
// is the query. This tier always produces something, which is what lets the
// generative tier fail without consequence.

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/mkoriyama/Akari/internal/akari/intent"
)

// titleWordLimit and titleRuneLimit bound derived titles: enough to scan a
// note list by, short enough to stay on one line.
const (
	titleWordLimit = 5
	titleRuneLimit = 48
)

// directRules re-runs the keyword cascade when trigger stripping cannot
// tell whether anything followed the trigger.
var directRules = intent.NewClassifier()

// Direct extracts arguments deterministically. Saves keep the user's
// capitalisation; a reminder phrase found in the content is resolved
// against now and carried alongside (the phrase stays in the content). For
// the query tools the normalised remainder is the query. An empty required
// field means the orchestrator has to ask for it.
func Direct(it intent.Intent, text string, now time.Time) Args {
	switch it {
	case intent.SaveNote:
		content := saveContent(text)
		a := SaveNoteArgs{Content: content}
		if content != "" {
			a.Title = deriveTitle(content)
			if t, ok := ParseReminder(content, now); ok {
				a.Reminder = t.Format(time.RFC3339)
			}
		}
		return a
	case intent.RetrieveNote:
		return NoteQueryArgs{Query: directQuery(it, text)}
	case intent.SearchNotifications:
		return NotificationQueryArgs{Query: directQuery(it, text)}
	case intent.WebSearch:
		return WebSearchArgs{Query: directQuery(it, text)}
	}
	return nil
}

// saveContent returns the text to store. When a save trigger is present the
// remainder is the content, even if empty ("save this" has nothing to save
// yet). Without a trigger — the model classified a bare statement — the
// whole message is the note.
func saveContent(text string) string {
	if rest, matched := intent.StripTriggerText(intent.SaveNote, text); matched {
		return rest
	}
	return strings.TrimSpace(text)
}

// directQuery returns the search terms for a query tool. StripTrigger hands
// back the whole normalised text when it cannot cleanly strip; if the
// cascade still classifies that text as it, the trigger consumed everything
// and there is no query yet.
func directQuery(it intent.Intent, text string) string {
	rest, ok := intent.StripTrigger(it, text)
	if ok {
		return rest
	}
	if directRules.Classify(text) == it {
		return ""
	}
	return rest
}

// deriveTitle takes the leading words of content as a title, capitalised.
func deriveTitle(content string) string {
	words := strings.Fields(content)
	if len(words) == 0 {
		return ""
	}
	if len(words) > titleWordLimit {
		words = words[:titleWordLimit]
	}
	runes := []rune(strings.Join(words, " "))
	if len(runes) > titleRuneLimit {
		runes = runes[:titleRuneLimit]
	}
	runes[0] = unicode.ToUpper(runes[0])
	return strings.TrimRight(string(runes), " ,;:")
}

// multiFieldMarkers are phrasings that pack several fields into one save
// request ("... titled X, remind me at Y"). Deterministic stripping would
// fold them all into the content, so their presence escalates extraction to
// the generative tier.
var multiFieldMarkers = []string{
	"titled", "title it", "with title", "with the title", "call it",
	"called", "name it", "and remind me", "with a reminder", "reminder at",
	"reminder for", "set a reminder",
}

// isSimpleRequest reports whether the deterministic tier alone should
// handle extraction. Query tools always qualify: their single argument is
// whatever follows the trigger. Saves qualify unless multi-field phrasing
// is present.
func isSimpleRequest(it intent.Intent, text string) bool {
	if it != intent.SaveNote {
		return true
	}
	lower := strings.ToLower(text)
	for _, m := range multiFieldMarkers {
		if strings.Contains(lower, m) {
			return false
		}
	}
	return true
}

// missingParams lists def's parameters absent from collected, required ones
// first, each group in catalogue order. This is the question queue for the
// collecting stage.
func missingParams(def intent.Definition, collected map[string]string) []intent.ParameterSpec {
	var required, optional []intent.ParameterSpec
	for _, p := range def.Parameters {
		if strings.TrimSpace(collected[p.Name]) != "" {
			continue
		}
		if p.Required {
			required = append(required, p)
		} else {
			optional = append(optional, p)
		}
	}
	return append(required, optional...)
}

// followUpQuestion phrases the ask for one missing parameter.
func followUpQuestion(tool intent.Intent, spec intent.ParameterSpec) string {
	switch {
	case tool == intent.SaveNote && spec.Name == "content":
		return "What should the note say?"
	case tool == intent.SaveNote && spec.Name == "title":
		return "Any title for it? (\"skip\" is fine)"
	case tool == intent.SaveNote && spec.Name == "reminder":
		return "When should I remind you? (\"tomorrow\", \"in 2 hours\", or \"skip\")"
	case tool == intent.SearchNotifications && spec.Name == "query":
		return "What should I look for in your notifications? (\"latest\" shows the most recent)"
	case spec.Name == "query":
		return "What should I search for?"
	}
	return fmt.Sprintf("What should I use for %s? (%s)", spec.Name, spec.Description)
}

// collectValue interprets a free reply as the value for spec. Reminder
// replies must resolve to a time; anything else is taken verbatim. ok is
// false when the reply cannot serve, in which case the field is recorded
// absent rather than asked for again.
func collectValue(spec intent.ParameterSpec, text string, now time.Time) (string, bool) {
	if spec.Name == "reminder" {
		if t, ok := ParseReminder(text, now); ok {
			return t.Format(time.RFC3339), true
		}
		return "", false
	}
	v := strings.TrimSpace(text)
	return v, v != ""
}
