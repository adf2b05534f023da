// Package tools implements Akari's tool executors and the registry that
// dispatches validated function calls to them.
//
// The registry is the allow-list of the whole pipeline: a call runs only
// when its name was explicitly registered, and required arguments get one
// last check at the door. Both checks fail closed — a hallucinated tool
// name runs nothing. Executors return user-facing text; internal detail
// goes into the error value and the activity trail.
package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/mkoriyama/Akari/common/redact"
	"github.com/mkoriyama/Akari/common/trace"
	"github.com/mkoriyama/Akari/internal/akari/intent"
)

var (
	// ErrUnknownTool rejects calls whose name was never registered.
	ErrUnknownTool = errors.New("tools: unknown tool")

	// ErrMissingArgument rejects calls lacking a required argument or
	// carrying it blank.
	ErrMissingArgument = errors.New("tools: missing required argument")
)

// ExecFunc is one tool's implementation. args carries exactly the
// parameters named in the tool's Definition; userID scopes per-user data.
type ExecFunc func(ctx context.Context, userID string, args map[string]string) (string, error)

// ActivityRecorder persists one row per dispatch. *store.Store satisfies
// it; a nil recorder disables the trail.
type ActivityRecorder interface {
	RecordActivity(ctx context.Context, traceID, userID, tool string, params map[string]string, result, errMsg string) error
}

type registration struct {
	def  intent.Definition
	exec ExecFunc
}

// Registry maps tool names to executors. Registration happens once at
// startup; Dispatch is safe for concurrent use afterwards.
type Registry struct {
	mu       sync.RWMutex
	tools    map[string]registration
	order    []string
	activity ActivityRecorder
	logger   *slog.Logger
}

// NewRegistry returns an empty registry. recorder may be nil, in which case
// dispatches are not persisted.
func NewRegistry(recorder ActivityRecorder, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		tools:    make(map[string]registration),
		activity: recorder,
		logger:   logger,
	}
}

// Register adds a tool. Registering a name twice is a programming error and
// fails loudly rather than silently replacing the executor.
func (r *Registry) Register(def intent.Definition, exec ExecFunc) error {
	name := string(def.Name)
	if name == "" || exec == nil {
		return errors.New("tools: registration needs a name and an executor")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.tools[name]; dup {
		return fmt.Errorf("tools: %q registered twice", name)
	}
	r.tools[name] = registration{def: def, exec: exec}
	r.order = append(r.order, name)
	return nil
}

// Definitions returns the registered definitions in registration order.
func (r *Registry) Definitions() []intent.Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]intent.Definition, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name].def)
	}
	return out
}

// Dispatch runs call for userID and returns the executor's user-facing
// reply. Every dispatch that reaches a known tool lands in the activity
// trail, success or not, with parameters redacted first.
func (r *Registry) Dispatch(ctx context.Context, userID string, call intent.FunctionCall) (string, error) {
	r.mu.RLock()
	reg, ok := r.tools[call.Name]
	r.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownTool, call.Name)
	}
	for _, p := range reg.def.Required() {
		if strings.TrimSpace(call.Arguments[p.Name]) == "" {
			err := fmt.Errorf("%w: %s", ErrMissingArgument, p.Name)
			r.record(ctx, userID, call, err)
			return "", err
		}
	}

	result, err := reg.exec(ctx, userID, call.Arguments)
	r.record(ctx, userID, call, err)
	if err != nil {
		return "", fmt.Errorf("tools: %s: %w", call.Name, err)
	}
	return result, nil
}

func (r *Registry) record(ctx context.Context, userID string, call intent.FunctionCall, execErr error) {
	if r.activity == nil {
		return
	}
	outcome, errMsg := "ok", ""
	if execErr != nil {
		outcome, errMsg = "error", execErr.Error()
	}
	params := redactParams(call.Arguments)
	if rerr := r.activity.RecordActivity(ctx, trace.ID(ctx), userID, call.Name, params, outcome, errMsg); rerr != nil {
		r.logger.Warn("activity record failed", "tool", call.Name, "error", rerr)
	}
}

// redactParams scrubs an argument map before it is persisted: values under
// secret-looking keys go first, then any value that itself looks like a
// credential ("remember my wifi password is ..." must not land in the
// activity trail verbatim).
func redactParams(args map[string]string) map[string]string {
	out := redact.Params(args)
	for k, v := range out {
		if v != redact.Placeholder && LooksSensitive(v) {
			out[k] = redact.Placeholder
		}
	}
	return out
}
