package hostfuncs

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
)

// HandlerRegistry is the fixed set of bindings offered to plugins. It is
// built once by NewRegistry and never changes, so lookups need no locking.
type HandlerRegistry struct {
	handlers map[string]ByteHandler
	names    []string
}

// RegistryOption configures NewRegistry.
type RegistryOption func(*registryBuilder)

type registryBuilder struct {
	handlers   map[string]ByteHandler
	middleware []Middleware
	errs       []error
}

// NewRegistry builds a registry. Middleware wraps every handler, the first
// registered outermost. Registering a name twice is an error.
//
//	registry, err := NewRegistry(
//	    WithMiddleware(PanicRecoveryMiddleware(), LoggingMiddleware(logger)),
//	    WithBundle(BindingsBundle(bindings)),
//	)
func NewRegistry(opts ...RegistryOption) (*HandlerRegistry, error) {
	b := &registryBuilder{handlers: make(map[string]ByteHandler)}
	for _, opt := range opts {
		opt(b)
	}
	if err := errors.Join(b.errs...); err != nil {
		return nil, err
	}

	wrapped := make(map[string]ByteHandler, len(b.handlers))
	for name, h := range b.handlers {
		for i := len(b.middleware) - 1; i >= 0; i-- {
			h = b.middleware[i](h)
		}
		wrapped[name] = h
	}

	return &HandlerRegistry{
		handlers: wrapped,
		names:    slices.Sorted(maps.Keys(wrapped)),
	}, nil
}

// Invoke runs the named binding. Failures of any kind come back as
// ErrorResponse JSON; a binding never fails the plugin's call.
func (r *HandlerRegistry) Invoke(ctx context.Context, name string, payload []byte) []byte {
	h, ok := r.handlers[name]
	if !ok {
		return NewNotFoundError(name).ToJSON()
	}
	resp, err := h(withFunction(ctx, name), payload)
	if err != nil {
		return NewInternalError(err.Error()).ToJSON()
	}
	return resp
}

// Has reports whether a binding is registered.
func (r *HandlerRegistry) Has(name string) bool {
	_, ok := r.handlers[name]
	return ok
}

// Names returns the registered binding names, sorted.
func (r *HandlerRegistry) Names() []string {
	return slices.Clone(r.names)
}

func (b *registryBuilder) add(name string, h ByteHandler) {
	switch {
	case name == "":
		b.errs = append(b.errs, errors.New("handler name cannot be empty"))
	case b.handlers[name] != nil:
		b.errs = append(b.errs, fmt.Errorf("duplicate handler name: %q", name))
	default:
		b.handlers[name] = h
	}
}

// WithByteHandler registers an untyped binding.
func WithByteHandler(name string, h ByteHandler) RegistryOption {
	return func(b *registryBuilder) {
		b.add(name, h)
	}
}

// WithHandler registers a typed binding through NewJSONHandler.
func WithHandler[Req any, Resp any](name string, fn HostFunc[Req, Resp]) RegistryOption {
	return WithByteHandler(name, NewJSONHandler(fn))
}

// WithBundle registers every binding of a bundle.
func WithBundle(bundle HostFuncBundle) RegistryOption {
	return func(b *registryBuilder) {
		handlers := bundle.Handlers()
		for _, name := range slices.Sorted(maps.Keys(handlers)) {
			b.add(name, handlers[name])
		}
	}
}

// WithMiddleware appends middleware.
func WithMiddleware(mw ...Middleware) RegistryOption {
	return func(b *registryBuilder) {
		b.middleware = append(b.middleware, mw...)
	}
}
