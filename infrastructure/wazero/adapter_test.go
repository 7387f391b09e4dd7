package wazero

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/rushsh/rush/hostfuncs"
	"github.com/rushsh/rush/internal/abi"
	"github.com/rushsh/rush/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

const requestOffset = 64

var i64 = []testutil.ValType{testutil.I64}

// probeModule imports one binding and exports "probe", which calls it with
// the span of a request placed at requestOffset.
func probeModule(binding string, request []byte) *testutil.Module {
	return testutil.PluginModule().
		WithImport(testutil.Import{Module: DefaultModuleName, Name: binding, Params: i64, Results: i64}).
		WithFunc(testutil.Func{
			Export:  "probe",
			Results: i64,
			Body:    testutil.Concat(testutil.Span(requestOffset, uint32(len(request))), testutil.Call(0)),
		}).
		WithData(requestOffset, request)
}

func instantiate(t *testing.T, rt wazero.Runtime, m *testutil.Module, name string) api.Module {
	t.Helper()
	mod, err := rt.InstantiateWithConfig(context.Background(), m.Encode(), wazero.NewModuleConfig().WithName(name))
	require.NoError(t, err)
	return mod
}

func probe(t *testing.T, mod api.Module) string {
	t.Helper()
	results, err := mod.ExportedFunction("probe").Call(context.Background())
	require.NoError(t, err)
	span := abi.Decode(results[0])
	data, ok := mod.Memory().Read(span.Offset, span.Length)
	require.True(t, ok, "response %s outside memory", span)
	return string(data)
}

func TestDefaultAdapterConfig(t *testing.T) {
	cfg := defaultAdapterConfig()
	assert.Equal(t, "rush", cfg.ModuleName)
	assert.Equal(t, uint32(DefaultMaxRequestSize), cfg.MaxRequestSize)
	assert.NotNil(t, cfg.Logger)
}

func TestAdapterOptions(t *testing.T) {
	cfg := defaultAdapterConfig()
	WithModuleName("custom")(&cfg)
	WithMaxRequestSize(2048)(&cfg)
	WithCustomHandler(CustomHandler{Name: "extra"})(&cfg)

	assert.Equal(t, "custom", cfg.ModuleName)
	assert.Equal(t, uint32(2048), cfg.MaxRequestSize)
	require.Len(t, cfg.CustomHandlers, 1)
	assert.Equal(t, "extra", cfg.CustomHandlers[0].Name)
}

func TestRegisterWithRuntime_RoundTrip(t *testing.T) {
	ctx := context.Background()
	rt := testutil.NewRuntime(t)

	var seen hostfuncs.Call
	reg, err := hostfuncs.NewRegistry(
		hostfuncs.WithHandler(hostfuncs.FuncEnvGet, func(ctx context.Context, req hostfuncs.EnvGetRequest) hostfuncs.EnvGetResponse {
			seen, _ = hostfuncs.CallFrom(ctx)
			v := "/home/" + req.Name
			return hostfuncs.EnvGetResponse{Value: &v}
		}),
	)
	require.NoError(t, err)
	require.NoError(t, RegisterWithRuntime(ctx, rt, reg))

	mod := instantiate(t, rt, probeModule(hostfuncs.FuncEnvGet, []byte(`{"name":"rush"}`)), "home.wasm#7")

	testutil.AssertJSONEqual(t, `{"value":"/home/rush"}`, probe(t, mod))
	assert.Equal(t, hostfuncs.Call{Function: hostfuncs.FuncEnvGet, Plugin: "home.wasm"}, seen)
	assert.Equal(t, uint32(1), testutil.GlobalValue(t, mod, "alloc_count"), "response placed via the guest allocator")
	assert.Zero(t, testutil.GlobalValue(t, mod, "dealloc_count"), "response ownership passes to the plugin")
}

func TestRegisterWithRuntime_ShellBindings(t *testing.T) {
	ctx := context.Background()
	rt := testutil.NewRuntime(t)

	reg, err := hostfuncs.DefaultRegistry(hostfuncs.NoOpBindings{})
	require.NoError(t, err)
	require.NoError(t, RegisterWithRuntime(ctx, rt, reg))

	mod := instantiate(t, rt, probeModule(hostfuncs.FuncOutputText, []byte(`{"text":"hi"}`)), "out.wasm#1")
	testutil.AssertJSONEqual(t, `{"written":3}`, probe(t, mod))
}

func TestRegisterWithRuntime_RequestTooLarge(t *testing.T) {
	ctx := context.Background()
	rt := testutil.NewRuntime(t)

	reg, err := hostfuncs.DefaultRegistry(hostfuncs.NoOpBindings{})
	require.NoError(t, err)
	require.NoError(t, RegisterWithRuntime(ctx, rt, reg, WithMaxRequestSize(4), WithLogger(slog.New(slog.DiscardHandler))))

	mod := instantiate(t, rt, probeModule(hostfuncs.FuncEnvVars, []byte(`{"padding":true}`)), "big.wasm#1")
	assert.Contains(t, probe(t, mod), hostfuncs.ErrorTooLarge)
}

func TestRegisterWithRuntime_RequestOutsideMemory(t *testing.T) {
	ctx := context.Background()
	rt := testutil.NewRuntime(t)

	reg, err := hostfuncs.DefaultRegistry(hostfuncs.NoOpBindings{})
	require.NoError(t, err)
	require.NoError(t, RegisterWithRuntime(ctx, rt, reg, WithLogger(slog.New(slog.DiscardHandler))))

	m := testutil.PluginModule().
		WithImport(testutil.Import{Module: DefaultModuleName, Name: hostfuncs.FuncEnvVars, Params: i64, Results: i64}).
		WithFunc(testutil.Func{
			Export:  "probe",
			Results: i64,
			Body:    testutil.Concat(testutil.Span(65000, 1000), testutil.Call(0)),
		})
	mod := instantiate(t, rt, m, "wild.wasm#1")

	assert.Contains(t, probe(t, mod), hostfuncs.ErrorValidation)
}

func TestRegisterWithRuntime_NoAllocator(t *testing.T) {
	ctx := context.Background()
	rt := testutil.NewRuntime(t)

	var logs bytes.Buffer
	reg, err := hostfuncs.DefaultRegistry(hostfuncs.NoOpBindings{})
	require.NoError(t, err)
	require.NoError(t, RegisterWithRuntime(ctx, rt, reg, WithLogger(slog.New(slog.NewTextHandler(&logs, nil)))))

	m := probeModule(hostfuncs.FuncEnvVars, []byte(`{}`))
	m.Funcs[0].Export = ""
	mod := instantiate(t, rt, m, "noalloc.wasm#1")

	results, err := mod.ExportedFunction("probe").Call(ctx)
	require.NoError(t, err)
	assert.Zero(t, results[0])
	assert.Contains(t, logs.String(), "cannot return binding response")
}

func TestLogMessageHandler(t *testing.T) {
	ctx := context.Background()
	rt := testutil.NewRuntime(t)

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	reg, err := hostfuncs.NewRegistry()
	require.NoError(t, err)
	require.NoError(t, RegisterWithRuntime(ctx, rt, reg, WithCustomHandler(LogMessageHandler(logger))))

	msg := []byte(`{"level":"warn","message":"cache cold","attrs":[{"key":"entries","type":"int64","value":"0"}]}`)
	m := testutil.PluginModule().
		WithImport(testutil.Import{Module: DefaultModuleName, Name: LogMessageFunc, Params: i64}).
		WithFunc(testutil.Func{
			Export: "speak",
			Body:   testutil.Concat(testutil.Span(requestOffset, uint32(len(msg))), testutil.Call(0)),
		}).
		WithData(requestOffset, msg)
	mod := instantiate(t, rt, m, "chatty.wasm#1")

	_, err = mod.ExportedFunction("speak").Call(ctx)
	require.NoError(t, err)
	assert.Contains(t, logs.String(), "level=WARN")
	assert.Contains(t, logs.String(), `msg="cache cold"`)
	assert.Contains(t, logs.String(), "plugin=chatty.wasm")
	assert.Contains(t, logs.String(), "entries=0")
}
