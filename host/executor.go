package host

import (
	"context"
	"fmt"

	"github.com/rushsh/rush/hostfuncs"
	rushwazero "github.com/rushsh/rush/infrastructure/wazero"
	"github.com/rushsh/rush/internal/logging"
	"github.com/rushsh/rush/plugin"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
)

// Executor owns the WebAssembly runtime plugins run in. It provides WASI and
// the "rush" host module of bindings, and builds plugins from binaries.
type Executor struct {
	runtime  wazero.Runtime
	registry *hostfuncs.HandlerRegistry
	opts     options
}

// NewExecutor creates a runtime and instantiates the modules plugins import.
func NewExecutor(ctx context.Context, opts ...Option) (*Executor, error) {
	e := &Executor{opts: collectOptions(opts)}
	logger := logging.WithComponent(e.opts.logger, "executor")

	e.registry = e.opts.registry
	if e.registry == nil {
		reg, err := hostfuncs.DefaultRegistry(e.opts.bindings, hostfuncs.LoggingMiddleware(logger))
		if err != nil {
			return nil, fmt.Errorf("failed to create default registry: %w", err)
		}
		e.registry = reg
	}

	rt := wazero.NewRuntime(ctx)
	wasi_snapshot_preview1.MustInstantiate(ctx, rt)
	e.runtime = rt

	adapterOpts := []rushwazero.AdapterOption{
		rushwazero.WithLogger(logger),
		rushwazero.WithCustomHandler(rushwazero.LogMessageHandler(e.opts.logger)),
	}
	if e.opts.maxRequestSize > 0 {
		adapterOpts = append(adapterOpts, rushwazero.WithMaxRequestSize(e.opts.maxRequestSize))
	}
	if err := rushwazero.RegisterWithRuntime(ctx, rt, e.registry, adapterOpts...); err != nil {
		_ = rt.Close(ctx)
		return nil, fmt.Errorf("failed to register host functions: %w", err)
	}

	return e, nil
}

// Build compiles and instantiates a plugin. It has the shape of
// plugin.BuildFunc so it can be handed to a loader.
func (e *Executor) Build(ctx context.Context, name string, wasm []byte) (plugin.Plugin, error) {
	b := plugin.NewBuilder(e.runtime, wasm).Name(name)
	if w := e.opts.wasi; w != nil {
		b = b.WASI(w.stdout, w.stderr, w.environ)
	}
	p, err := b.Build(ctx)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Registry returns the bindings offered to plugins.
func (e *Executor) Registry() *hostfuncs.HandlerRegistry {
	return e.registry
}

// Close closes the runtime and every module still instantiated in it.
func (e *Executor) Close(ctx context.Context) error {
	return e.runtime.Close(ctx)
}
