package hostfuncs

import (
	"context"
)

type callKey struct{}

// Call identifies one host function invocation: which binding ran and on
// behalf of which plugin.
type Call struct {
	Function string
	Plugin   string
}

// WithCall attaches call metadata to ctx.
func WithCall(ctx context.Context, c Call) context.Context {
	return context.WithValue(ctx, callKey{}, c)
}

// CallFrom returns the call metadata attached to ctx.
func CallFrom(ctx context.Context) (Call, bool) {
	c, ok := ctx.Value(callKey{}).(Call)
	return c, ok
}

// WithPlugin records the calling plugin. The runtime adapter sets it before
// dispatching into the registry, which then fills in the function name.
func WithPlugin(ctx context.Context, plugin string) context.Context {
	c, _ := CallFrom(ctx)
	c.Plugin = plugin
	return WithCall(ctx, c)
}

func withFunction(ctx context.Context, name string) context.Context {
	c, _ := CallFrom(ctx)
	c.Function = name
	return WithCall(ctx, c)
}
