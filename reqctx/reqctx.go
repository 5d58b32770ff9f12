// Package reqctx carries a request-scoped correlation id and user-agent
// string alongside a context.Context, for backends that can annotate their
// calls with them. It is value-typed and lightweight: attaching one never
// affects cancellation, which remains ctx's job alone.
package reqctx

import (
	"context"

	"github.com/google/uuid"
)

// RequestContext is the optional value propagated to backend calls that
// support such annotations.
type RequestContext struct {
	// CorrelationId identifies a logical request across repository and
	// backend calls, for log correlation.
	CorrelationId string
	// UserAgent identifies the calling application.
	UserAgent string
}

type contextKey struct{}

// WithRequestContext attaches rc to ctx, generating a correlation id via
// uuid.NewString if rc.CorrelationId is empty.
func WithRequestContext(ctx context.Context, rc RequestContext) context.Context {
	if rc.CorrelationId == "" {
		rc.CorrelationId = uuid.NewString()
	}
	return context.WithValue(ctx, contextKey{}, rc)
}

// FromContext retrieves the RequestContext attached to ctx, if any.
func FromContext(ctx context.Context) (RequestContext, bool) {
	rc, ok := ctx.Value(contextKey{}).(RequestContext)
	return rc, ok
}

// CorrelationId returns the correlation id attached to ctx, or a freshly
// generated one if none is present.
func CorrelationId(ctx context.Context) string {
	if rc, ok := FromContext(ctx); ok {
		return rc.CorrelationId
	}
	return uuid.NewString()
}
