// Package trace correlates the log lines of one inbound message as it moves
// through dispatch, flow handling, and tool execution. The app layer stamps
// a fresh ID on the turn's context; everything downstream reads it back out.
package trace

import (
	"context"

	"github.com/google/uuid"
)

type ctxKey struct{}

// NewID returns a fresh correlation ID for one inbound message.
func NewID() string {
	return "t-" + uuid.NewString()[:13]
}

// Stamp returns a child context carrying id.
func Stamp(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// ID returns the correlation ID carried by ctx, or "" when none was stamped.
func ID(ctx context.Context) string {
	s, _ := ctx.Value(ctxKey{}).(string)
	return s
}
