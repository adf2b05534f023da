package intent

// rules.go implements the deterministic half of intent detection: a greeting
// and short-utterance exclusion followed by an ordered cascade of keyword
// rules. No model is involved, so the result is pure and idempotent: the
// same text always classifies the same way, at zero cost.
//
// Each rule is a conjunction: a trigger phrase has to appear AND the
// utterance has to carry a qualifying object (the thing to save, find, or
// search for). A trigger alone is not enough; "remember" classifies nothing,
// "remember to call mom" does.

import (
	"strings"
	"unicode"
)

// ---------------------------------------------------------------------------
// Utterance pre-processing
// ---------------------------------------------------------------------------

// utterance is the pre-processed form of one message, computed once and
// shared by every rule.
type utterance struct {
	norm   string   // lowercased, punctuation folded to spaces
	tokens []string // norm split on whitespace
}

func newUtterance(text string) utterance {
	norm := normalise(text)
	return utterance{norm: norm, tokens: strings.Fields(norm)}
}

// normalise lowercases text and folds punctuation into single spaces.
// Apostrophes survive so contractions ("what's", "don't") keep their
// dictionary form.
func normalise(text string) string {
	lower := strings.ToLower(strings.TrimSpace(text))
	var b strings.Builder
	b.Grow(len(lower))
	for _, r := range lower {
		switch {
		case r == '\'' || r == '’':
			b.WriteRune('\'')
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// tokenMatches reports whether token matches keyword. Keywords of four or
// more characters match as prefixes, which keeps common inflections and
// typos in reach ("notif" matches "notifications" and "notificarions");
// shorter keywords must match exactly.
func tokenMatches(token, keyword string) bool {
	if len(keyword) >= 4 {
		return strings.HasPrefix(token, keyword)
	}
	return token == keyword
}

// firstTrigger returns the text following the earliest-listed phrase that
// occurs in norm. Phrase lists put longer variants first ("remember to"
// before "remember") so the remainder excludes connective words.
func firstTrigger(norm string, phrases []string) (rest string, ok bool) {
	for _, p := range phrases {
		idx := strings.Index(norm, p)
		if idx < 0 {
			continue
		}
		return strings.TrimSpace(norm[idx+len(p):]), true
	}
	return "", false
}

// ---------------------------------------------------------------------------
// Greeting and short-utterance exclusion
// ---------------------------------------------------------------------------

// greetings is the closed set of pleasantries and acknowledgements that must
// never classify as a tool intent, no matter what keyword they brush
// against. Membership is checked on the normalised text.
var greetings = map[string]struct{}{
	"hi": {}, "hello": {}, "hey": {}, "heya": {}, "hiya": {}, "yo": {},
	"howdy": {}, "sup": {}, "what's up": {}, "whats up": {},
	"good morning": {}, "good afternoon": {}, "good evening": {},
	"good night": {}, "goodnight": {}, "morning": {}, "evening": {}, "night": {},
	"bye": {}, "goodbye": {}, "see you": {}, "see ya": {}, "cya": {}, "later": {},
	"thanks": {}, "thank you": {}, "thanks a lot": {}, "thank you so much": {},
	"thx": {}, "ty": {}, "cheers": {},
	"ok": {}, "okay": {}, "k": {}, "kk": {}, "cool": {}, "nice": {}, "great": {},
	"awesome": {}, "perfect": {}, "sounds good": {}, "got it": {}, "sure": {},
	"yes": {}, "no": {}, "yep": {}, "yup": {}, "nope": {}, "nah": {},
	"lol": {}, "haha": {}, "hm": {}, "hmm": {}, "oh": {}, "ah": {}, "wow": {},
	"np": {}, "no problem": {}, "you're welcome": {}, "youre welcome": {},
	"welcome": {},
}

// IsGreeting reports whether text is small talk rather than a request: a
// member of the closed greeting set, or an utterance of at most two tokens
// none longer than four characters ("ok then", "ya"). Both the classifier
// and the orchestrator consult this before spending any further work on a
// message.
func IsGreeting(text string) bool {
	u := newUtterance(text)
	if u.norm == "" {
		return true
	}
	if _, ok := greetings[u.norm]; ok {
		return true
	}
	if len(u.tokens) <= 2 {
		short := true
		for _, t := range u.tokens {
			if len(t) > 4 {
				short = false
				break
			}
		}
		if short {
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// Trigger vocabulary
// ---------------------------------------------------------------------------

// saveTriggers signal an instruction to store something. Variants that eat
// the connective ("remember to") come before their bare forms.
var saveTriggers = []string{
	"remember to", "remember that", "remember",
	"remind me to", "remind me",
	"don't forget to", "don't forget", "dont forget to", "dont forget",
	"save a note about", "save a note to", "save a note", "save note to",
	"save note about", "save note", "save this",
	"make a note of", "make a note", "take a note of", "take a note",
	"take note of", "take note", "note to self",
	"note down", "jot down", "write down",
	"keep track of", "save",
}

// interrogativeLeads disqualify the save rule: a question is never an
// instruction to store something ("did i save..." belongs to retrieval).
var interrogativeLeads = []string{
	"did ", "do ", "does ", "have ", "has ", "had ",
	"what", "where", "when", "who", "why", "how",
	"is ", "are ", "was ", "were ", "am i",
}

// retrieveTriggers signal a lookup in the user's own notes. Most are
// possessive question shapes; phrases that already name the note corpus
// ("search my notes") qualify even without a remainder, because the flow
// layer will ask what to look for.
var retrieveTriggers = []string{
	"what is my", "what's my", "whats my", "what was my",
	"where is my", "where's my", "wheres my", "where did i put",
	"what did i save about", "what did i save", "what did i write about",
	"did i save a note about", "did i save anything about", "did i save",
	"did i write down", "have i saved",
	"do i have a note about", "do i have a note", "do i have any notes about",
	"do i have any notes",
	"find my note about", "find my notes about", "find my note", "find my",
	"show me my", "show my", "get my", "look up my", "pull up my",
	"search my notes for", "search my notes", "search notes for", "search notes",
	"find the note about", "find the note",
	"retrieve my", "retrieve the", "retrieve",
}

// notifDomainTokens name the notification domain. Matched with
// tokenMatches, so "notif" reaches "notifications" and its typos.
var notifDomainTokens = []string{"notif", "alert", "ping", "mention"}

// notifInquiryTokens are the verbs and quantifiers that turn a mention of
// notifications into a search request.
var notifInquiryTokens = []string{
	"any", "new", "recent", "latest", "last", "missed", "unread",
	"check", "show", "search", "find", "list", "what", "did", "have",
	"got", "see", "read",
}

// webSearchTriggers signal a question about the outside world. The cascade
// evaluates this rule last, so possessive lookups and notification queries
// have already been claimed by earlier rules.
var webSearchTriggers = []string{
	"search the web for", "search the web", "search for", "search",
	"google", "look up", "lookup", "find out",
	"what is", "what are", "what was", "what were",
	"who is", "who are", "who was",
	"when is", "when was", "when did",
	"where is", "where are",
	"how many", "how much", "how tall", "how old", "how far", "how long",
	"latest news on", "latest news about", "latest news", "news about", "news on",
	"weather in", "weather for", "forecast for",
	"definition of", "define",
}

// ---------------------------------------------------------------------------
// Rule cascade
// ---------------------------------------------------------------------------

// rule is one step of the classification cascade. Rules are evaluated in
// declaration order; the first match wins.
type rule struct {
	intent Intent
	match  func(u utterance) bool
}

func matchSave(u utterance) bool {
	for _, lead := range interrogativeLeads {
		if strings.HasPrefix(u.norm, lead) {
			return false
		}
	}
	rest, ok := firstTrigger(u.norm, saveTriggers)
	if !ok {
		return false
	}
	// The qualifying object is the content itself: something has to follow
	// the trigger, or there is nothing to save.
	return len(strings.Fields(rest)) > 0
}

func matchRetrieve(u utterance) bool {
	for _, p := range retrieveTriggers {
		idx := strings.Index(u.norm, p)
		if idx < 0 {
			continue
		}
		rest := strings.TrimSpace(u.norm[idx+len(p):])
		// Triggers that already name the note corpus qualify on their own;
		// bare verbs like "retrieve" need an object.
		if rest != "" || strings.Contains(p, "note") {
			return true
		}
	}
	return false
}

func matchNotifications(u utterance) bool {
	domain := false
	for _, t := range u.tokens {
		for _, kw := range notifDomainTokens {
			if tokenMatches(t, kw) {
				domain = true
				break
			}
		}
		if domain {
			break
		}
	}
	if !domain {
		return false
	}
	for _, t := range u.tokens {
		for _, kw := range notifInquiryTokens {
			if tokenMatches(t, kw) {
				return true
			}
		}
	}
	return false
}

func matchWebSearch(u utterance) bool {
	rest, ok := firstTrigger(u.norm, webSearchTriggers)
	if !ok {
		return false
	}
	return len(strings.Fields(rest)) > 0
}

// Classifier runs the greeting exclusion and the keyword cascade. It holds
// only immutable rule tables and is safe for concurrent use.
type Classifier struct {
	rules []rule
}

// NewClassifier returns a Classifier with the standard cascade. Rule order
// fixes how overlapping phrasings resolve: saving beats retrieval, retrieval
// beats notification search, and the web search rule only sees what nothing
// else claimed.
func NewClassifier() *Classifier {
	return &Classifier{
		rules: []rule{
			{intent: SaveNote, match: matchSave},
			{intent: RetrieveNote, match: matchRetrieve},
			{intent: SearchNotifications, match: matchNotifications},
			{intent: WebSearch, match: matchWebSearch},
		},
	}
}

// Classify maps text to an Intent, or "" when no rule matches. Greetings
// and short utterances never classify, whatever keywords they contain.
func (c *Classifier) Classify(text string) Intent {
	if IsGreeting(text) {
		return ""
	}
	u := newUtterance(text)
	if u.norm == "" {
		return ""
	}
	for _, r := range c.rules {
		if r.match(u) {
			return r.intent
		}
	}
	return ""
}

// ---------------------------------------------------------------------------
// Trigger stripping
// ---------------------------------------------------------------------------

// StripTrigger removes the intent's trigger phrase from text and returns whatever
// the user actually asked about. It is the raw material for heuristic
// argument extraction: "what is my wifi password" strips to
// "wifi password", "save note to visit dentist tomorrow" strips to
// "visit dentist tomorrow". ok is false when no trigger for the intent
// occurs in text, in which case the whole normalised text is returned so
// callers always have something to work with.
func StripTrigger(it Intent, text string) (rest string, ok bool) {
	u := newUtterance(text)
	switch it {
	case SaveNote:
		rest, ok = firstTrigger(u.norm, saveTriggers)
		if ok {
			rest = strings.TrimSpace(strings.TrimPrefix(rest, "to "))
			rest = strings.TrimSpace(strings.TrimPrefix(rest, "that "))
		}
	case RetrieveNote:
		rest, ok = firstTrigger(u.norm, retrieveTriggers)
		if ok {
			rest = strings.TrimSpace(strings.TrimPrefix(rest, "about "))
			rest = strings.TrimSpace(strings.TrimPrefix(rest, "for "))
		}
	case SearchNotifications:
		rest, ok = stripNotificationQuery(u)
	case WebSearch:
		rest, ok = firstTrigger(u.norm, webSearchTriggers)
		if ok {
			rest = strings.TrimSpace(strings.TrimPrefix(rest, "for "))
			rest = strings.TrimSpace(strings.TrimPrefix(rest, "about "))
		}
	}
	if !ok || rest == "" {
		return u.norm, ok && rest != ""
	}
	return rest, true
}

// triggerPhrases returns the trigger list for it, in match order.
func triggerPhrases(it Intent) []string {
	switch it {
	case SaveNote:
		return saveTriggers
	case RetrieveNote:
		return retrieveTriggers
	case WebSearch:
		return webSearchTriggers
	}
	return nil
}

// StripTriggerText is the case-preserving variant of StripTrigger, for
// remainders that get stored verbatim: note content keeps the user's own
// capitalisation. matched reports whether a trigger phrase for it occurs in
// text at all; rest is what follows the phrase and may be empty ("save
// this" matches with nothing to save). When punctuation inside the phrase
// defeats the raw scan, the normalised remainder is returned instead.
func StripTriggerText(it Intent, text string) (rest string, matched bool) {
	clean := strings.ReplaceAll(text, "’", "'")
	lower := strings.ToLower(clean)
	for _, p := range triggerPhrases(it) {
		idx := strings.Index(lower, p)
		if idx < 0 {
			continue
		}
		raw := strings.TrimLeft(clean[idx+len(p):], " \t:;,.!—–-")
		if it == SaveNote {
			for _, conn := range []string{"to ", "that "} {
				if len(raw) >= len(conn) && strings.EqualFold(raw[:len(conn)], conn) {
					raw = raw[len(conn):]
				}
			}
		}
		return strings.TrimSpace(raw), true
	}
	u := newUtterance(clean)
	if r, ok := firstTrigger(u.norm, triggerPhrases(it)); ok {
		if it == SaveNote {
			r = strings.TrimSpace(strings.TrimPrefix(r, "to "))
			r = strings.TrimSpace(strings.TrimPrefix(r, "that "))
		}
		return r, true
	}
	return "", false
}

// stripNotificationQuery extracts the search terms from a notification
// query. "any notifications about the deploy" yields "the deploy"; with no
// preposition, everything that is neither inquiry verb nor domain word is
// kept ("unread security alerts" yields "security").
func stripNotificationQuery(u utterance) (string, bool) {
	for _, prep := range []string{"about", "for", "from", "mentioning", "containing", "regarding"} {
		idx := strings.Index(u.norm, " "+prep+" ")
		if idx < 0 {
			continue
		}
		rest := strings.TrimSpace(u.norm[idx+len(prep)+2:])
		if rest != "" {
			return rest, true
		}
	}
	var kept []string
	for _, t := range u.tokens {
		skip := false
		for _, kw := range notifDomainTokens {
			if tokenMatches(t, kw) {
				skip = true
				break
			}
		}
		if !skip {
			for _, kw := range notifInquiryTokens {
				if tokenMatches(t, kw) {
					skip = true
					break
				}
			}
		}
		if !skip {
			switch t {
			case "i", "me", "my", "the", "a", "an", "do", "are", "there", "is":
				skip = true
			}
		}
		if !skip {
			kept = append(kept, t)
		}
	}
	if len(kept) == 0 {
		return "", false
	}
	return strings.Join(kept, " "), true
}
