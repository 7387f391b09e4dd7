package host

import (
	"io"
	"log/slog"

	"github.com/rushsh/rush/hostfuncs"
)

// DefaultQueueDepth is how many hook events may wait for the worker before
// RunHook blocks the caller.
const DefaultQueueDepth = 64

// Option configures an Executor or a Host. Options that do not apply to the
// value being built are ignored.
type Option func(*options)

type options struct {
	logger         *slog.Logger
	registry       *hostfuncs.HandlerRegistry
	bindings       hostfuncs.HostBindings
	wasi           *wasiOptions
	maxRequestSize uint32
	queueDepth     int
	onCrash        func(plugin string, err error)
	extensions     []string
	startArgs      []any
}

type wasiOptions struct {
	stdout  io.Writer
	stderr  io.Writer
	environ []string
}

func defaultOptions() options {
	return options{
		logger:     slog.Default(),
		bindings:   hostfuncs.NoOpBindings{},
		queueDepth: DefaultQueueDepth,
	}
}

func collectOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithHostFunctions replaces the executor's binding registry entirely.
// WithBindings is ignored when it is set.
func WithHostFunctions(registry *hostfuncs.HandlerRegistry) Option {
	return func(o *options) {
		o.registry = registry
	}
}

// WithBindings sets the shell capabilities offered to plugins. The default
// answers every binding with empty results.
func WithBindings(b hostfuncs.HostBindings) Option {
	return func(o *options) {
		o.bindings = b
	}
}

// WithWASI gives every plugin the given stdout, stderr and environment.
func WithWASI(stdout, stderr io.Writer, environ []string) Option {
	return func(o *options) {
		o.wasi = &wasiOptions{stdout: stdout, stderr: stderr, environ: environ}
	}
}

// WithMaxRequestSize bounds binding requests read from plugin memory.
func WithMaxRequestSize(n uint32) Option {
	return func(o *options) {
		o.maxRequestSize = n
	}
}

// WithQueueDepth sets how many events may be queued for the worker.
func WithQueueDepth(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.queueDepth = n
		}
	}
}

// WithCrashHandler is called on the worker goroutine for every evicted
// plugin, after it has been logged. It must not call back into the Host.
func WithCrashHandler(fn func(plugin string, err error)) Option {
	return func(o *options) {
		o.onCrash = fn
	}
}

// WithExtensions sets the plugin file extensions Launch looks for.
func WithExtensions(exts ...string) Option {
	return func(o *options) {
		o.extensions = exts
	}
}

// WithStartArgs sets the arguments of the start hook.
func WithStartArgs(args ...any) Option {
	return func(o *options) {
		o.startArgs = args
	}
}
