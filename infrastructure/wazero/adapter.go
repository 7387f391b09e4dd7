package wazero

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/rushsh/rush/hostfuncs"
	"github.com/rushsh/rush/internal/abi"
	"github.com/rushsh/rush/internal/logging"
	"github.com/rushsh/rush/memory"
	"github.com/rushsh/rush/plugin"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

const (
	// DefaultModuleName is the import module plugins link their bindings from.
	DefaultModuleName = "rush"

	// DefaultMaxRequestSize bounds a single binding request read from guest
	// memory.
	DefaultMaxRequestSize = 1 << 20

	// LogMessageFunc is the custom binding plugins log through.
	LogMessageFunc = "log_message"
)

// AdapterConfig holds configuration for the wazero adapter.
type AdapterConfig struct {
	ModuleName     string
	MaxRequestSize uint32
	Logger         *slog.Logger
	CustomHandlers []CustomHandler
}

// CustomHandler is a raw wazero function exported next to the registry's
// bindings, for calls that do not fit the request/response shape.
type CustomHandler struct {
	Name        string
	Handler     api.GoModuleFunc
	ParamTypes  []api.ValueType
	ResultTypes []api.ValueType
}

// AdapterOption configures the adapter.
type AdapterOption func(*AdapterConfig)

// WithModuleName sets the host module name.
func WithModuleName(name string) AdapterOption {
	return func(c *AdapterConfig) {
		c.ModuleName = name
	}
}

// WithMaxRequestSize sets the largest request accepted from guest memory.
func WithMaxRequestSize(size uint32) AdapterOption {
	return func(c *AdapterConfig) {
		c.MaxRequestSize = size
	}
}

// WithLogger sets the logger for adapter diagnostics.
func WithLogger(logger *slog.Logger) AdapterOption {
	return func(c *AdapterConfig) {
		c.Logger = logger
	}
}

// WithCustomHandler exports an additional raw function.
func WithCustomHandler(h CustomHandler) AdapterOption {
	return func(c *AdapterConfig) {
		c.CustomHandlers = append(c.CustomHandlers, h)
	}
}

func defaultAdapterConfig() AdapterConfig {
	return AdapterConfig{
		ModuleName:     DefaultModuleName,
		MaxRequestSize: DefaultMaxRequestSize,
		Logger:         slog.Default(),
	}
}

// RegisterWithRuntime instantiates a host module exporting every binding of
// registry as a function (i64 request span) -> i64 response span.
//
// The request is read from the caller's memory; the response is copied into
// memory obtained from the caller's allocate export and ownership passes to
// the plugin, which must release it with its own deallocator. Oversized or
// unreadable requests are answered with ErrorResponse JSON. A zero span is
// returned only when the response itself cannot be placed in guest memory.
func RegisterWithRuntime(ctx context.Context, runtime wazero.Runtime, registry *hostfuncs.HandlerRegistry, opts ...AdapterOption) error {
	cfg := defaultAdapterConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	builder := runtime.NewHostModuleBuilder(cfg.ModuleName)
	for _, name := range registry.Names() {
		builder.NewFunctionBuilder().
			WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
				stack[0] = handleRegistryCall(ctx, mod, stack[0], registry, name, &cfg)
			}), []api.ValueType{api.ValueTypeI64}, []api.ValueType{api.ValueTypeI64}).
			Export(name)
	}
	for _, ch := range cfg.CustomHandlers {
		builder.NewFunctionBuilder().
			WithGoModuleFunction(ch.Handler, ch.ParamTypes, ch.ResultTypes).
			Export(ch.Name)
	}

	_, err := builder.Instantiate(ctx)
	return err
}

func handleRegistryCall(ctx context.Context, mod api.Module, packed uint64, registry *hostfuncs.HandlerRegistry, name string, cfg *AdapterConfig) uint64 {
	pluginName := plugin.NameFromModule(mod.Name())
	ctx = hostfuncs.WithPlugin(ctx, pluginName)
	req := abi.Decode(packed)

	if req.Length > cfg.MaxRequestSize {
		cfg.Logger.WarnContext(ctx, "binding request too large",
			"plugin", pluginName, "function", name, "size", req.Length)
		return writeResponse(ctx, mod, hostfuncs.NewTooLargeError(req.Length, cfg.MaxRequestSize).ToJSON(), cfg.Logger)
	}

	payload, ok := mod.Memory().Read(req.Offset, req.Length)
	if !ok {
		cfg.Logger.WarnContext(ctx, "binding request outside guest memory",
			"plugin", pluginName, "function", name, "span", req.String())
		return writeResponse(ctx, mod, hostfuncs.NewValidationError("request "+req.String()+" lies outside linear memory").ToJSON(), cfg.Logger)
	}

	return writeResponse(ctx, mod, registry.Invoke(ctx, name, payload), cfg.Logger)
}

// writeResponse copies data into guest memory and returns its span. The
// plugin owns the buffer from then on.
func writeResponse(ctx context.Context, mod api.Module, data []byte, logger *slog.Logger) uint64 {
	mgr, err := memory.NewCooperative(mod)
	if err != nil {
		logger.ErrorContext(ctx, "cannot return binding response", "module", mod.Name(), "error", err)
		return 0
	}
	s, err := mgr.Copy(ctx, data)
	if err != nil {
		logger.ErrorContext(ctx, "cannot return binding response", "module", mod.Name(), "error", err)
		return 0
	}
	return s.IntoRaw().Encode()
}

// LogMessageHandler returns the log_message binding: (i64 span of a
// logging.MessageWire) -> (). Records are logged with the plugin name.
func LogMessageHandler(logger *slog.Logger) CustomHandler {
	return CustomHandler{
		Name: LogMessageFunc,
		Handler: func(ctx context.Context, mod api.Module, stack []uint64) {
			span := abi.Decode(stack[0])
			payload, ok := mod.Memory().Read(span.Offset, span.Length)
			if !ok {
				return
			}
			pluginLogger := logging.WithPlugin(logger, plugin.NameFromModule(mod.Name()))

			var msg logging.MessageWire
			if err := json.Unmarshal(payload, &msg); err != nil {
				pluginLogger.InfoContext(ctx, "plugin log (raw)", "payload", string(payload))
				return
			}
			level, attrs := msg.Record()
			pluginLogger.Log(ctx, level, msg.Message, attrs...)
		},
		ParamTypes: []api.ValueType{api.ValueTypeI64},
	}
}
