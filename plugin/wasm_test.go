package plugin

import (
	"context"
	"testing"

	"github.com/rushsh/rush/internal/abi"
	"github.com/rushsh/rush/internal/testutil"
	"github.com/rushsh/rush/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	globalLastArg = testutil.GlobalDeallocCount + 1
	payloadOffset = 64
)

var i64 = []testutil.ValType{testutil.I64}

func hookModule() *testutil.Module {
	m := testutil.PluginModule()
	m.Globals = append(m.Globals, testutil.Global{Type: testutil.I64, Mutable: true, Export: "last_arg"})
	return m
}

func staticHook(m *testutil.Module, name string, params []testutil.ValType, payload string) *testutil.Module {
	return m.
		WithFunc(testutil.StaticJSONHook(name, params, payloadOffset, []byte(payload))).
		WithData(payloadOffset, []byte(payload))
}

func build(t *testing.T, m *testutil.Module) *WasmPlugin {
	t.Helper()
	ctx := context.Background()
	rt := testutil.NewRuntime(t)
	p, err := NewBuilder(rt, m.Encode()).Name("test.wasm").Build(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close(ctx) })
	return p
}

func counters(t *testing.T, p *WasmPlugin) (allocs, deallocs uint32) {
	t.Helper()
	return testutil.GlobalValue(t, p.module, "alloc_count"), testutil.GlobalValue(t, p.module, "dealloc_count")
}

func requireHookError(t *testing.T, err error, kind HookErrorKind) {
	t.Helper()
	var hookErr *HookError
	require.ErrorAs(t, err, &hookErr)
	assert.Equal(t, kind, hookErr.Kind, "got %v", err)
}

func TestBuilder_RequiresName(t *testing.T) {
	rt := testutil.NewRuntime(t)
	_, err := NewBuilder(rt, testutil.PluginModule().Encode()).Build(context.Background())
	assert.ErrorIs(t, err, ErrNameNotSet)
}

func TestBuilder_Unnamed(t *testing.T) {
	ctx := context.Background()
	rt := testutil.NewRuntime(t)
	p, err := NewBuilder(rt, testutil.PluginModule().Encode()).Unnamed().Build(ctx)
	require.NoError(t, err)
	defer p.Close(ctx)

	assert.Equal(t, UnnamedPlugin, p.Name())
}

func TestBuilder_SameNameTwice(t *testing.T) {
	ctx := context.Background()
	rt := testutil.NewRuntime(t)
	wasm := testutil.PluginModule().Encode()

	first, err := NewBuilder(rt, wasm).Name("dup.wasm").Build(ctx)
	require.NoError(t, err)
	defer first.Close(ctx)
	second, err := NewBuilder(rt, wasm).Name("dup.wasm").Build(ctx)
	require.NoError(t, err)
	defer second.Close(ctx)

	assert.NotEqual(t, first.module.Name(), second.module.Name())
	assert.Equal(t, "dup.wasm", NameFromModule(second.module.Name()))
}

func TestBuilder_InvalidBinary(t *testing.T) {
	rt := testutil.NewRuntime(t)
	_, err := NewBuilder(rt, []byte("not wasm")).Name("bad").Build(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to compile module")
}

func TestBuilder_MissingAllocator(t *testing.T) {
	m := testutil.PluginModule()
	m.Funcs[0].Export = ""

	rt := testutil.NewRuntime(t)
	_, err := NewBuilder(rt, m.Encode()).Name("noalloc").Build(context.Background())

	var missing *memory.MissingExportError
	require.ErrorAs(t, err, &missing)
	assert.Contains(t, missing.Export, "allocate")
}

func TestBuilder_RunsInitialize(t *testing.T) {
	m := hookModule()
	m.Globals = append(m.Globals, testutil.Global{Type: testutil.I32, Mutable: true, Export: "initialized"})
	m.WithFunc(testutil.Func{
		Export: "_initialize",
		Body:   testutil.Concat(testutil.I32Const(1), testutil.GlobalSet(globalLastArg+1)),
	})

	p := build(t, m)
	assert.Equal(t, uint32(1), testutil.GlobalValue(t, p.module, "initialized"))
}

func TestBuilder_InitializeTrap(t *testing.T) {
	m := testutil.PluginModule().WithFunc(testutil.Func{Export: "_initialize", Body: testutil.Unreachable()})

	rt := testutil.NewRuntime(t)
	_, err := NewBuilder(rt, m.Encode()).Name("init").Build(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "_initialize")
}

func TestNameFromModule(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"ls.wasm#3", "ls.wasm"},
		{"a#b.wasm#12", "a#b.wasm"},
		{"plain", "plain"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NameFromModule(tt.in))
	}
}

func TestCallHook_NotImplemented(t *testing.T) {
	p := build(t, hookModule())
	ctx := context.Background()

	implemented, err := p.CallHook(ctx, "pre_command", [][]byte{[]byte(`"ls"`)})
	require.NoError(t, err)
	assert.False(t, implemented)

	value, implemented, err := p.CallHookWithReturn(ctx, "provide_autocomplete", nil)
	require.NoError(t, err)
	assert.False(t, implemented)
	assert.Nil(t, value)

	allocs, _ := counters(t, p)
	assert.Zero(t, allocs, "nothing is copied for a missing hook")
}

func TestCallHook_PassesArguments(t *testing.T) {
	m := hookModule().WithFunc(testutil.Func{
		Export: "pre_command",
		Params: i64,
		Body:   testutil.Concat(testutil.LocalGet(0), testutil.GlobalSet(globalLastArg)),
	})
	p := build(t, m)

	implemented, err := p.CallHook(context.Background(), "pre_command", [][]byte{[]byte(`"ls -la"`)})
	require.NoError(t, err)
	assert.True(t, implemented)

	span := abi.Decode(p.module.ExportedGlobal("last_arg").Get())
	assert.Equal(t, uint32(testutil.HeapBase), span.Offset)
	data, ok := p.module.Memory().Read(span.Offset, span.Length)
	require.True(t, ok)
	assert.Equal(t, `"ls -la"`, string(data))

	allocs, deallocs := counters(t, p)
	assert.Equal(t, uint32(1), allocs)
	assert.Equal(t, uint32(1), deallocs, "argument buffer released after the call")
}

func TestCallHook_MultipleArguments(t *testing.T) {
	m := hookModule().WithFunc(testutil.Func{Export: "post_command", Params: []testutil.ValType{testutil.I64, testutil.I64}})
	p := build(t, m)

	_, err := p.CallHook(context.Background(), "post_command", [][]byte{[]byte(`"make"`), []byte(`true`)})
	require.NoError(t, err)

	allocs, deallocs := counters(t, p)
	assert.Equal(t, uint32(2), allocs)
	assert.Equal(t, uint32(2), deallocs)
}

func TestCallHook_MustNotReturn(t *testing.T) {
	p := build(t, staticHook(hookModule(), "answer", nil, `{"ok":true}`))

	implemented, err := p.CallHook(context.Background(), "answer", nil)
	assert.True(t, implemented)
	requireHookError(t, err, HookMustNotReturn)
}

func TestCallHook_Trap(t *testing.T) {
	m := hookModule().WithFunc(testutil.Func{Export: "boom", Params: i64, Body: testutil.Unreachable()})
	p := build(t, m)

	implemented, err := p.CallHook(context.Background(), "boom", [][]byte{[]byte(`1`)})
	assert.True(t, implemented)
	requireHookError(t, err, HookTrapped)

	_, deallocs := counters(t, p)
	assert.Equal(t, uint32(1), deallocs, "argument buffer released after a trap")
}

func TestCallHook_ArityMismatch(t *testing.T) {
	m := hookModule().WithFunc(testutil.Func{Export: "start"})
	p := build(t, m)

	_, err := p.CallHook(context.Background(), "start", [][]byte{[]byte(`null`)})
	requireHookError(t, err, HookTrapped)

	allocs, deallocs := counters(t, p)
	assert.Equal(t, allocs, deallocs)
}

func TestCallHookWithReturn_Value(t *testing.T) {
	p := build(t, staticHook(hookModule(), "provide_autocomplete", i64, `"ls -la"`))

	value, implemented, err := p.CallHookWithReturn(context.Background(), "provide_autocomplete", [][]byte{[]byte(`"ls"`)})
	require.NoError(t, err)
	assert.True(t, implemented)
	assert.JSONEq(t, `"ls -la"`, string(value))

	allocs, deallocs := counters(t, p)
	assert.Equal(t, uint32(1), allocs)
	assert.Equal(t, uint32(2), deallocs, "argument and returned buffer both freed")
}

func TestCallHookWithReturn_MustReturn(t *testing.T) {
	m := hookModule().
		WithFunc(testutil.Func{Export: "silent"}).
		WithFunc(testutil.Func{Export: "narrow", Results: []testutil.ValType{testutil.I32}, Body: testutil.I32Const(1)})
	p := build(t, m)
	ctx := context.Background()

	for _, hook := range []string{"silent", "narrow"} {
		_, implemented, err := p.CallHookWithReturn(ctx, hook, nil)
		assert.True(t, implemented, hook)
		requireHookError(t, err, HookMustReturn)
	}
}

func TestCallHookWithReturn_InvalidJSON(t *testing.T) {
	p := build(t, staticHook(hookModule(), "garbage", nil, `not json`))

	_, implemented, err := p.CallHookWithReturn(context.Background(), "garbage", nil)
	assert.True(t, implemented)
	requireHookError(t, err, HookInvalidJSON)

	_, deallocs := counters(t, p)
	assert.Equal(t, uint32(1), deallocs, "returned buffer freed before validation")
}

func TestCallHookWithReturn_SpanOutsideMemory(t *testing.T) {
	m := hookModule().WithFunc(testutil.Func{
		Export:  "wild",
		Results: i64,
		Body:    testutil.Span(65530, 100),
	})
	p := build(t, m)

	_, _, err := p.CallHookWithReturn(context.Background(), "wild", nil)
	requireHookError(t, err, HookMemory)

	_, deallocs := counters(t, p)
	assert.Zero(t, deallocs, "a span the guest never allocated is not freed")
}

func TestCallHookWithReturn_EmptySpan(t *testing.T) {
	m := hookModule().WithFunc(testutil.Func{Export: "nothing", Results: i64, Body: testutil.Span(0, 0)})
	p := build(t, m)

	_, _, err := p.CallHookWithReturn(context.Background(), "nothing", nil)
	requireHookError(t, err, HookMemory)
}

func TestCallHookWithReturn_Trap(t *testing.T) {
	m := hookModule().WithFunc(testutil.Func{Export: "boom", Results: i64, Body: testutil.Unreachable()})
	p := build(t, m)

	value, implemented, err := p.CallHookWithReturn(context.Background(), "boom", nil)
	assert.True(t, implemented)
	assert.Nil(t, value)
	requireHookError(t, err, HookTrapped)
}

func TestHookError_Messages(t *testing.T) {
	assert.Equal(t, "hook start may not return a value", (&HookError{Hook: "start", Kind: HookMustNotReturn}).Error())
	assert.Equal(t, "hook q must return a value", (&HookError{Hook: "q", Kind: HookMustReturn}).Error())
	assert.Equal(t, "invalid_json", HookInvalidJSON.String())
}
