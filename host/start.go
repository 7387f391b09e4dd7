package host

import (
	"context"
	"io"
	"os"

	"github.com/rushsh/rush/config"
	"github.com/rushsh/rush/hostfuncs"
	"github.com/rushsh/rush/plugin"
	"github.com/rushsh/rush/state"
)

// Launch loads every plugin under roots with exec and starts a Host owning
// them. Plugins that fail to load are logged and skipped.
func Launch(ctx context.Context, exec *Executor, roots []string, opts ...Option) *Host {
	o := collectOptions(opts)
	var loaderOpts []plugin.LoaderOption
	if len(o.extensions) > 0 {
		loaderOpts = append(loaderOpts, plugin.WithExtensions(o.extensions...))
	}
	loader := plugin.NewRecursiveLoader(roots, exec.Build, loaderOpts...)
	plugins := plugin.LoadAll(ctx, loader.All(ctx), o.logger)
	return New(ctx, plugins, opts...)
}

// Start wires a shell session to its plugins: an executor whose bindings act
// on shell and print to out, and a host over the plugins found in
// cfg.PluginPaths. Plugins see the shell's environment through WASI.
func Start(ctx context.Context, cfg *config.Config, shell *state.Shell, out io.Writer, opts ...Option) (*Host, *Executor, error) {
	base := []Option{
		WithBindings(hostfuncs.NewShellBindings(shell, out)),
		WithWASI(out, os.Stderr, shell.EnvList()),
		WithQueueDepth(cfg.QueueDepth),
	}
	opts = append(base, opts...)

	exec, err := NewExecutor(ctx, opts...)
	if err != nil {
		return nil, nil, err
	}
	return Launch(ctx, exec, cfg.PluginPaths, opts...), exec, nil
}
