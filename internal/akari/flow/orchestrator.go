// Package flow is the conductor of Akari's tool pipeline: it owns the
// decision cascade from inbound message to executed tool, the multi-turn
// parameter collection that happens in between, and the per-user session
// state that makes the conversation stateful.
//
// The package deliberately depends on interfaces for everything generative
// (ModelClassifier, ModelExtractor) so that the whole flow runs — degraded
// but functional — with no model configured at all.
package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/mkoriyama/Akari/common/trace"
	"github.com/mkoriyama/Akari/internal/akari/intent"
	"github.com/mkoriyama/Akari/internal/akari/tools"
)

// ErrSuperseded is returned by a turn that was cancelled because a newer
// message from the same user arrived. The caller should discard the turn's
// output silently; the newer message is already being handled.
var ErrSuperseded = errors.New("flow: turn superseded by a newer message")

// ModelClassifier is the generative fallback for intent detection. Its
// answer is advisory: the validation gate still has the last word.
type ModelClassifier interface {
	ClassifyIntent(ctx context.Context, userID, text string) (intent.Intent, error)
}

// ModelExtractor is the generative tier of argument extraction.
type ModelExtractor interface {
	ExtractCall(ctx context.Context, userID string, def intent.Definition, text string) (*intent.FunctionCall, error)
}

// Dispatcher runs a validated function call and returns the user-facing
// result text. tools.Registry is the production implementation.
type Dispatcher interface {
	Dispatch(ctx context.Context, userID string, call intent.FunctionCall) (string, error)
}

// User-facing replies for flow-level outcomes. Tool results themselves come
// from the executors.
const (
	msgCancelled   = "👍 Cancelled — nothing was run."
	msgUnknownTool = "⚠️ I don't have a tool for that one, so nothing was run."
	msgToolFailed  = "⚠️ I hit an error running that and had to stop. Feel free to try again."
	msgConfirmHint = "Please reply **yes** to run it, **no** to cancel, or `change <field> to <value>` to adjust."
	msgModifyHint  = "Tell me the change like `title to Groceries` or `query: warranty`."
	msgLostTrack   = "🤔 I lost track of where we were — let's start over."
)

// Config wires an Orchestrator. Dispatcher is the only required field.
type Config struct {
	// Rules is the deterministic classifier; nil gets the standard cascade.
	Rules *intent.Classifier
	// Gate validates every candidate intent, whatever tier produced it.
	Gate intent.Gate
	// Model classifies utterances the rules could not. Optional.
	Model ModelClassifier
	// Extractor pulls structured arguments out of multi-field requests.
	// Optional; the deterministic tier covers its absence.
	Extractor ModelExtractor
	// Dispatcher executes validated calls.
	Dispatcher Dispatcher
	// States holds per-user sessions; nil gets a store with the default TTL.
	States *StateStore
	// Logger defaults to slog.Default().
	Logger *slog.Logger
	// Now is a test hook for reminder resolution and session timestamps.
	Now func() time.Time
}

// Orchestrator routes each inbound message through detection, extraction,
// collection, confirmation, and dispatch. Turns for the same user are
// serialised; a newer message supersedes an in-flight one.
type Orchestrator struct {
	rules      *intent.Classifier
	gate       intent.Gate
	model      ModelClassifier
	extractor  ModelExtractor
	dispatcher Dispatcher
	states     *StateStore
	logger     *slog.Logger
	now        func() time.Time

	turnMu     sync.Mutex
	turnSeq    uint64
	turnLatest map[string]uint64
	turnCancel map[string]context.CancelFunc
}

// New returns a ready Orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Dispatcher == nil {
		return nil, errors.New("flow: config needs a dispatcher")
	}
	o := &Orchestrator{
		rules:      cfg.Rules,
		gate:       cfg.Gate,
		model:      cfg.Model,
		extractor:  cfg.Extractor,
		dispatcher: cfg.Dispatcher,
		states:     cfg.States,
		logger:     cfg.Logger,
		now:        cfg.Now,
		turnLatest: make(map[string]uint64),
		turnCancel: make(map[string]context.CancelFunc),
	}
	if o.rules == nil {
		o.rules = intent.NewClassifier()
	}
	if o.states == nil {
		o.states = NewStateStore(0)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.now == nil {
		o.now = time.Now
	}
	return o, nil
}

// ---------------------------------------------------------------------------
// Turn tracking: latest message wins
// ---------------------------------------------------------------------------

type turnInfo struct {
	userID string
	seq    uint64
}

type turnKey struct{}

// BeginTurn registers a new turn for userID, cancelling any turn still in
// flight for the same user: the latest message always wins, and the
// superseded turn's work is discarded. The returned context must be used
// for the whole turn, and end must be called when the turn finishes.
func (o *Orchestrator) BeginTurn(parent context.Context, userID string) (ctx context.Context, end func()) {
	o.turnMu.Lock()
	o.turnSeq++
	seq := o.turnSeq
	if prev := o.turnCancel[userID]; prev != nil {
		prev()
	}
	ctx, cancel := context.WithCancel(parent)
	o.turnCancel[userID] = cancel
	o.turnLatest[userID] = seq
	o.turnMu.Unlock()

	ctx = context.WithValue(ctx, turnKey{}, turnInfo{userID: userID, seq: seq})
	end = func() {
		o.turnMu.Lock()
		if o.turnLatest[userID] == seq {
			delete(o.turnLatest, userID)
			delete(o.turnCancel, userID)
		}
		o.turnMu.Unlock()
		cancel()
	}
	return ctx, end
}

// supersededTurn reports whether ctx belongs to a turn that a newer one has
// replaced. Contexts without turn information are never superseded.
func (o *Orchestrator) supersededTurn(ctx context.Context) bool {
	info, ok := ctx.Value(turnKey{}).(turnInfo)
	if !ok {
		return false
	}
	o.turnMu.Lock()
	defer o.turnMu.Unlock()
	latest, ok := o.turnLatest[info.userID]
	return ok && latest > info.seq
}

// turnErr translates a context failure into the right sentinel: a turn
// cancelled by its successor gets ErrSuperseded, everything else keeps the
// context's own error.
func (o *Orchestrator) turnErr(ctx context.Context) error {
	if ctx.Err() == nil {
		return nil
	}
	if o.supersededTurn(ctx) {
		return ErrSuperseded
	}
	return ctx.Err()
}

func (o *Orchestrator) log(ctx context.Context) *slog.Logger {
	if id := trace.ID(ctx); id != "" {
		return o.logger.With("trace_id", id)
	}
	return o.logger
}

// ---------------------------------------------------------------------------
// Detection
// ---------------------------------------------------------------------------

// DetectToolIntent decides whether text asks for a tool, and which. The
// deterministic cascade answers first; only when it stays silent — and the
// text is not small talk — is the model consulted. Whatever tier produced a
// candidate, the validation gate has the last word, so a lying or drifting
// model cannot push a greeting into a tool run.
//
// A model failure degrades silently to "no intent": the caller falls back
// to a conversational reply, never to an error message.
func (o *Orchestrator) DetectToolIntent(ctx context.Context, userID, text string) (intent.Intent, error) {
	if err := o.turnErr(ctx); err != nil {
		return "", err
	}
	if it := o.rules.Classify(text); it != "" {
		if o.gate.Validate(it, text) {
			o.log(ctx).Debug("intent detected", "source", "rules", "intent", it, "user_id", userID)
			return it, nil
		}
		o.log(ctx).Debug("intent rejected by gate", "source", "rules", "intent", it, "user_id", userID)
		return "", nil
	}
	if o.model == nil || intent.IsGreeting(text) {
		return "", nil
	}
	it, err := o.model.ClassifyIntent(ctx, userID, text)
	if err != nil {
		if terr := o.turnErr(ctx); terr != nil {
			return "", terr
		}
		o.log(ctx).Warn("generative classification failed, treating as conversational", "error", err, "user_id", userID)
		return "", nil
	}
	if it == "" {
		return "", nil
	}
	if !o.gate.Validate(it, text) {
		o.log(ctx).Debug("intent rejected by gate", "source", "model", "intent", it, "user_id", userID)
		return "", nil
	}
	o.log(ctx).Debug("intent detected", "source", "model", "intent", it, "user_id", userID)
	return it, nil
}

// HasActiveFlow reports whether userID has a flow waiting on their reply.
// The caller uses it to route a message as a continuation instead of a
// fresh detection.
func (o *Orchestrator) HasActiveFlow(userID string) bool {
	return o.states.Active(userID)
}

// AbandonFlow drops userID's pending flow, reporting whether there was one.
// This is the escape hatch behind the "forget" command.
func (o *Orchestrator) AbandonFlow(userID string) bool {
	unlock := o.states.LockUser(userID)
	defer unlock()
	had := o.states.Active(userID)
	o.states.Clear(userID)
	return had
}

// ---------------------------------------------------------------------------
// Execution
// ---------------------------------------------------------------------------

// ExecuteToolFlow advances userID's flow by one turn. With no active flow it
// starts one for it, extracting arguments from text and either dispatching
// immediately (every required argument present) or asking for what is
// missing. With an active flow, text is the user's next reply and it is
// ignored: continuations derive everything from stored state.
//
// The returned string is the user-facing reply. ErrSuperseded means a newer
// message took over and this turn's output must be discarded.
func (o *Orchestrator) ExecuteToolFlow(ctx context.Context, text string, it intent.Intent, userID string) (string, error) {
	unlock := o.states.LockUser(userID)
	defer unlock()
	if err := o.turnErr(ctx); err != nil {
		return "", err
	}

	if st := o.states.Get(userID); st != nil {
		return o.continueFlow(ctx, st, text)
	}
	if !it.Valid() {
		return "", fmt.Errorf("flow: no active flow for %s and no intent to start one", userID)
	}
	return o.startFlow(ctx, userID, it, text)
}

// startFlow runs extraction and routes: dispatch now when every required
// argument is present, otherwise enter the collecting stage.
func (o *Orchestrator) startFlow(ctx context.Context, userID string, it intent.Intent, text string) (string, error) {
	def, ok := intent.Lookup(string(it))
	if !ok {
		return msgUnknownTool, nil
	}

	collected := o.extractArgs(ctx, userID, def, text)
	if err := o.turnErr(ctx); err != nil {
		return "", err
	}

	missing := missingParams(def, collected)
	requiredMissing := false
	for _, p := range missing {
		if p.Required {
			requiredMissing = true
			break
		}
	}
	if !requiredMissing && !def.Confirm {
		// The common case: one message, one tool run.
		return o.dispatch(ctx, userID, def, collected)
	}

	st := &State{
		UserID:        userID,
		Tool:          it,
		OriginalQuery: text,
		Collected:     collected,
		Missing:       missing,
		Stage:         StageCollecting,
		CreatedAt:     o.now(),
	}
	if !requiredMissing {
		// Confirm-flagged tool with everything present: straight to preview.
		st.Stage = StageAwaitingConfirmation
		st.Missing = nil
		o.states.Put(st)
		return BuildPreview(def, st.Collected), nil
	}
	o.states.Put(st)
	o.log(ctx).Debug("flow collecting", "tool", it, "user_id", userID, "missing", len(missing))
	return followUpQuestion(it, missing[0]), nil
}

// extractArgs produces the initial argument map for a fresh flow. The
// generative tier runs only for requests the deterministic tier would
// misread, and its output must survive schema validation; on any failure
// the deterministic result stands.
func (o *Orchestrator) extractArgs(ctx context.Context, userID string, def intent.Definition, text string) map[string]string {
	it := def.Name
	if o.extractor != nil && !isSimpleRequest(it, text) {
		call, err := o.extractor.ExtractCall(ctx, userID, def, text)
		switch {
		case err != nil:
			o.log(ctx).Warn("generative extraction failed, using deterministic tier",
				"error", err, "tool", it, "user_id", userID)
		default:
			if args, verr := FromMap(it, call.Arguments); verr == nil {
				return o.normalizeArgs(it, args.Map())
			} else {
				o.log(ctx).Warn("extracted arguments failed validation, using deterministic tier",
					"error", verr, "tool", it, "user_id", userID)
			}
		}
	}
	return o.normalizeArgs(it, Direct(it, text, o.now()).Map())
}

// normalizeArgs canonicalises values that carry structure: reminder phrases
// become RFC 3339 timestamps, unparseable ones are dropped rather than
// stored unreadable. Blank values are treated as absent.
func (o *Orchestrator) normalizeArgs(it intent.Intent, m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		out[k] = v
	}
	if it == intent.SaveNote {
		if r, ok := out["reminder"]; ok {
			if _, err := time.Parse(time.RFC3339, r); err != nil {
				if t, ok2 := ParseReminder(r, o.now()); ok2 {
					out["reminder"] = t.Format(time.RFC3339)
				} else {
					o.logger.Debug("dropping unparseable reminder", "reminder", r)
					delete(out, "reminder")
				}
			}
		}
	}
	return out
}

// continueFlow advances an active flow with the user's reply.
func (o *Orchestrator) continueFlow(ctx context.Context, st *State, text string) (string, error) {
	def, ok := intent.Lookup(string(st.Tool))
	if !ok {
		o.states.Clear(st.UserID)
		return msgLostTrack, nil
	}
	switch st.Stage {
	case StageCollecting:
		return o.collectStage(ctx, st, def, text)
	case StageAwaitingConfirmation:
		return o.confirmStage(ctx, st, def, text)
	case StageAwaitingModification:
		return o.modifyStage(ctx, st, def, text)
	}
	o.log(ctx).Error("flow state with impossible stage", "stage", st.Stage, "user_id", st.UserID)
	o.states.Clear(st.UserID)
	return msgLostTrack, nil
}

// collectStage records the reply as the value of the oldest missing
// parameter, then asks the next question or previews. Cancel words abort
// the whole flow; skip words (and replies that cannot serve the field, like
// a reminder that parses to nothing) record the field absent and move on.
func (o *Orchestrator) collectStage(ctx context.Context, st *State, def intent.Definition, text string) (string, error) {
	lower := strings.ToLower(strings.TrimSpace(text))
	if matchAny(lower, cancelWords) {
		o.states.Clear(st.UserID)
		o.log(ctx).Info("flow cancelled", "tool", st.Tool, "user_id", st.UserID, "stage", StageCancelled)
		return msgCancelled, nil
	}
	if len(st.Missing) == 0 {
		// Cannot happen through normal transitions; recover instead of
		// looping.
		st.Stage = StageAwaitingConfirmation
		o.states.Put(st)
		return BuildPreview(def, st.Collected), nil
	}

	spec := st.Missing[0]
	if !matchAny(lower, skipWords) {
		if v, ok := collectValue(spec, text, o.now()); ok {
			st.Collected[spec.Name] = v
		}
	}
	st.Missing = st.Missing[1:]

	if err := o.turnErr(ctx); err != nil {
		return "", err
	}
	if len(st.Missing) > 0 {
		o.states.Put(st)
		return followUpQuestion(st.Tool, st.Missing[0]), nil
	}

	// Every parameter has been visited. A flow that needed collection always
	// previews before running, whatever the tool's Confirm flag says.
	st.Stage = StageAwaitingConfirmation
	o.states.Put(st)
	return BuildPreview(def, st.Collected), nil
}

// confirmStage resolves a yes/no/change reply against the preview.
func (o *Orchestrator) confirmStage(ctx context.Context, st *State, def intent.Definition, text string) (string, error) {
	c := ParseConfirmation(text)
	switch c.Kind {
	case Confirmed:
		return o.dispatch(ctx, st.UserID, def, st.Collected)

	case Cancelled:
		o.states.Clear(st.UserID)
		o.log(ctx).Info("flow cancelled", "tool", st.Tool, "user_id", st.UserID, "stage", StageCancelled)
		return msgCancelled, nil

	case Modify:
		if _, ok := def.Param(c.Field); !ok {
			return fmt.Sprintf("**%s** isn't something I can change on %s — the fields are %s.\n\n%s",
				c.Field, def.Name, paramNames(def), msgConfirmHint), nil
		}
		if c.Value == "" {
			st.Stage = StageAwaitingModification
			o.states.Put(st)
			return fmt.Sprintf("Sure — what should **%s** change to? %s", c.Field, msgModifyHint), nil
		}
		return o.applyModification(ctx, st, def, c.Field, c.Value)
	}
	return msgConfirmHint, nil
}

// modifyStage waits for the "field to value" the user promised.
func (o *Orchestrator) modifyStage(ctx context.Context, st *State, def intent.Definition, text string) (string, error) {
	lower := strings.ToLower(strings.TrimSpace(text))
	if matchAny(lower, cancelWords) {
		o.states.Clear(st.UserID)
		o.log(ctx).Info("flow cancelled", "tool", st.Tool, "user_id", st.UserID, "stage", StageCancelled)
		return msgCancelled, nil
	}
	field, value, ok := ParseModification(text)
	if !ok {
		return msgModifyHint, nil
	}
	if _, exists := def.Param(field); !exists {
		return fmt.Sprintf("**%s** isn't a field on %s — the fields are %s. %s",
			field, def.Name, paramNames(def), msgModifyHint), nil
	}
	return o.applyModification(ctx, st, def, field, value)
}

// applyModification overwrites one collected field and re-previews.
// Reminder values must resolve to a time; a phrase that does not parse gets
// a re-prompt instead of being stored unreadable.
func (o *Orchestrator) applyModification(ctx context.Context, st *State, def intent.Definition, field, value string) (string, error) {
	if field == "reminder" {
		t, ok := ParseReminder(value, o.now())
		if !ok {
			return "I couldn't work out that time — try something like \"tomorrow\", \"friday\", or \"in 2 hours\".", nil
		}
		value = t.Format(time.RFC3339)
	}
	st.Collected[field] = value
	st.Stage = StageAwaitingConfirmation
	if err := o.turnErr(ctx); err != nil {
		return "", err
	}
	o.states.Put(st)
	return BuildPreview(def, st.Collected), nil
}

// dispatch hands a completed argument set to the dispatcher. The session is
// cleared unconditionally first: whatever happens next, the flow is over,
// and the user's next message starts fresh. Dispatch failures come back as
// plain-language replies, not errors — the transport should never render a
// stack of internals at the user.
func (o *Orchestrator) dispatch(ctx context.Context, userID string, def intent.Definition, collected map[string]string) (string, error) {
	if err := o.turnErr(ctx); err != nil {
		return "", err
	}
	o.states.Clear(userID)

	call := intent.FunctionCall{Name: string(def.Name), Arguments: collected}
	o.log(ctx).Info("dispatching tool", "tool", def.Name, "user_id", userID, "stage", StageExecuting)
	result, err := o.dispatcher.Dispatch(ctx, userID, call)
	if err != nil {
		if terr := o.turnErr(ctx); terr != nil {
			return "", terr
		}
		switch {
		case errors.Is(err, tools.ErrUnknownTool):
			o.log(ctx).Error("dispatch refused: unknown tool", "tool", def.Name, "user_id", userID)
			return msgUnknownTool, nil
		case errors.Is(err, tools.ErrMissingArgument):
			missing := blankRequired(def, collected)
			o.log(ctx).Warn("dispatch refused: missing arguments", "tool", def.Name, "missing", missing, "user_id", userID)
			return fmt.Sprintf("⚠️ I can't run **%s** without %s, so I've dropped it. Send the request again with that included.",
				def.Name, strings.Join(missing, " and ")), nil
		default:
			o.log(ctx).Error("tool execution failed", "tool", def.Name, "error", err, "user_id", userID)
			return msgToolFailed, nil
		}
	}
	return result, nil
}

func paramNames(def intent.Definition) string {
	names := make([]string, 0, len(def.Parameters))
	for _, p := range def.Parameters {
		names = append(names, p.Name)
	}
	return strings.Join(names, ", ")
}

func blankRequired(def intent.Definition, collected map[string]string) []string {
	var out []string
	for _, p := range def.Required() {
		if strings.TrimSpace(collected[p.Name]) == "" {
			out = append(out, p.Name)
		}
	}
	if len(out) == 0 {
		out = append(out, "everything it needs")
	}
	return out
}
