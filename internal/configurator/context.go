package configurator

import "context"

type requestContextKey struct{}

// WithRequestContext stores the request context forwarded to backend calls.
func WithRequestContext(ctx context.Context, reqCtx RequestContext) context.Context {
	return context.WithValue(ctx, requestContextKey{}, reqCtx)
}

// RequestContextFrom returns the request context stored in ctx, empty when none.
func RequestContextFrom(ctx context.Context) RequestContext {
	if ctx == nil {
		return RequestContext{}
	}
	if reqCtx, ok := ctx.Value(requestContextKey{}).(RequestContext); ok && reqCtx != nil {
		return reqCtx
	}
	return RequestContext{}
}
