package intent

// gate.go implements the precision filter that sits between classification
// and execution. The gate runs on every classified intent regardless of how
// it was produced, so a hallucinated answer from the generative path is
// subject to exactly the same evidence checks as a keyword match. A greeting
// must never reach a tool executor even if a model claims it is a save
// request.

import "strings"

// saveStopTokens are trigger words and connectives that carry no content of
// their own. Whatever is left after removing them is the evidence that the
// user actually has something to save.
var saveStopTokens = map[string]struct{}{
	"save": {}, "note": {}, "notes": {}, "remember": {}, "remind": {},
	"remembre": {}, "jot": {}, "write": {}, "make": {}, "take": {},
	"keep": {}, "track": {}, "down": {}, "dont": {}, "don't": {},
	"forget": {}, "self": {}, "me": {}, "my": {}, "i": {}, "you": {},
	"to": {}, "that": {}, "this": {}, "it": {}, "a": {}, "an": {},
	"the": {}, "of": {}, "please": {}, "can": {}, "could": {}, "would": {},
}

// Gate validates that an utterance carries enough evidence for the intent
// assigned to it. It is stateless and safe for concurrent use.
type Gate struct{}

// NewGate returns the standard validation gate.
func NewGate() Gate {
	return Gate{}
}

// Validate reports whether text justifies executing it. The checks are
// intentionally independent from the classifier's: length and greeting
// checks apply to every intent, then each intent demands its own minimal
// evidence.
func (Gate) Validate(it Intent, text string) bool {
	norm := normalise(text)
	if len(norm) < 3 {
		return false
	}
	if IsGreeting(text) {
		return false
	}

	switch it {
	case SaveNote:
		return validSaveEvidence(norm)
	case RetrieveNote:
		// Length and greeting checks above are the whole bar: any real
		// phrase can be a lookup.
		return true
	case SearchNotifications:
		// The utterance has to actually mention the notification domain.
		for _, t := range strings.Fields(norm) {
			for _, kw := range notifDomainTokens {
				if tokenMatches(t, kw) {
					return true
				}
			}
		}
		return false
	case WebSearch:
		return true
	}
	return false
}

// validSaveEvidence checks that a save request is more than a bare trigger:
// the text must be non-trivially long and keep at least one substantial
// token once trigger words and connectives are removed.
func validSaveEvidence(norm string) bool {
	if len(norm) <= 5 {
		return false
	}
	for _, t := range strings.Fields(norm) {
		if _, stop := saveStopTokens[t]; stop {
			continue
		}
		if len(t) >= 3 {
			return true
		}
	}
	return false
}
