package nlp

import (
	"strings"

	"github.com/mkoriyama/Akari/internal/akari/intent"
)

// prompt.go renders the two fixed system blocks. Both are deterministic
// functions of the static tool catalogue and must stay byte-identical from
// call to call: the per-message text always travels in the user turn, so
// the upstream prompt prefix cache keeps serving the instruction block.

// renderCatalogue formats the tool catalogue for prompt embedding, in the
// same priority order the rule cascade uses.
func renderCatalogue(defs []intent.Definition) string {
	var sb strings.Builder
	for _, d := range defs {
		sb.WriteString(string(d.Name))
		sb.WriteString("\n  Arguments:   ")
		for i, p := range d.Parameters {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(p.Name)
			if p.Required {
				sb.WriteString(" (required)")
			}
		}
		sb.WriteString("\n  Description: ")
		sb.WriteString(d.Description)
		sb.WriteString("\n")
	}
	return sb.String()
}

// ClassifierSystemPrompt returns the fixed instruction block for one-word
// intent classification.
func ClassifierSystemPrompt() string {
	var sb strings.Builder
	sb.WriteString(`You are the intent classifier for Akari, a personal assistant on Matrix.

Available tools:
`)
	sb.WriteString(renderCatalogue(intent.Definitions()))
	sb.WriteString(`
You will be given one user message. Decide which tool, if any, should
handle it.

RULES (strict — do not deviate):
1. Answer with exactly one word: a tool name from the list above, or NONE.
2. No punctuation, no quotes, no explanation, no JSON.
3. Greetings, thanks, acknowledgements, and small talk are always NONE.
4. When unsure, answer NONE. Missing a tool is cheaper than firing a wrong one.
`)
	return sb.String()
}

// ExtractorSystemPrompt returns the fixed instruction block for argument
// extraction.
func ExtractorSystemPrompt() string {
	var sb strings.Builder
	sb.WriteString(`You are the argument extractor for Akari, a personal assistant on Matrix.

Available tools:
`)
	sb.WriteString(renderCatalogue(intent.Definitions()))
	sb.WriteString(`
You will be given a tool name and the user message it was chosen for.
Extract the tool's arguments from the message.

RULES (strict — do not deviate):
1. Respond with exactly one function call on a single line, of the form:
   tool_name(argument="value", other="value")
2. Nothing before or after the call. No code fences, no explanation.
3. Use only the given tool and its listed argument names.
4. Quote values with double quotes; escape embedded quotes with a backslash.
5. Omit arguments the message gives no value for. Never invent values.
`)
	return sb.String()
}
