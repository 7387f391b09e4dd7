package host_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/rushsh/rush/config"
	"github.com/rushsh/rush/host"
	"github.com/rushsh/rush/hostfuncs"
	"github.com/rushsh/rush/internal/testutil"
	"github.com/rushsh/rush/plugin"
	"github.com/rushsh/rush/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const dataOffset = 64

var i64 = []testutil.ValType{testutil.I64}

// suggestModule answers provide_autocomplete with a fixed JSON value.
func suggestModule(payload string) []byte {
	return testutil.PluginModule().
		WithFunc(testutil.StaticJSONHook("provide_autocomplete", i64, dataOffset, []byte(payload))).
		WithData(dataOffset, []byte(payload)).
		Encode()
}

// bindingModule calls binding with request from hook, discarding the reply.
func bindingModule(hook, binding, request string) []byte {
	return testutil.PluginModule().
		WithImport(testutil.Import{Module: "rush", Name: binding, Params: i64, Results: i64}).
		WithFunc(testutil.Func{
			Export: hook,
			Body: testutil.Concat(
				testutil.Span(dataOffset, uint32(len(request))), //nolint:gosec // G115: small test payload
				testutil.Call(0),
				testutil.Drop(),
			),
		}).
		WithData(dataOffset, []byte(request)).
		Encode()
}

func trapModule(hook string) []byte {
	return testutil.PluginModule().
		WithFunc(testutil.Func{Export: hook, Body: testutil.Unreachable()}).
		Encode()
}

func newExecutor(t *testing.T, opts ...host.Option) *host.Executor {
	t.Helper()
	exec, err := host.NewExecutor(context.Background(), append([]host.Option{quiet}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = exec.Close(context.Background()) })
	return exec
}

func buildAll(t *testing.T, exec *host.Executor, mods map[string][]byte, order ...string) []plugin.Plugin {
	t.Helper()
	var out []plugin.Plugin
	for _, name := range order {
		p, err := exec.Build(context.Background(), name, mods[name])
		require.NoError(t, err)
		out = append(out, p)
	}
	return out
}

func TestExecutor_BuildAndCollect(t *testing.T) {
	exec := newExecutor(t)
	ps := buildAll(t, exec, map[string][]byte{
		"git.wasm":  suggestModule(`"git status"`),
		"none.wasm": trapModule("unrelated"),
	}, "git.wasm", "none.wasm")
	h := newHost(t, ps)

	responses := wait(t, h.RunHookWithReturn("provide_autocomplete", "git st"))
	assert.Equal(t, []host.Response{{PluginName: "git.wasm", Payload: json.RawMessage(`"git status"`)}}, responses)
}

func TestExecutor_BuildInvalid(t *testing.T) {
	exec := newExecutor(t)
	_, err := exec.Build(context.Background(), "junk.wasm", []byte("not wasm"))
	require.ErrorContains(t, err, "failed to compile module")
}

func TestExecutor_SameBinaryTwice(t *testing.T) {
	exec := newExecutor(t)
	bin := suggestModule(`1`)
	a, err := exec.Build(context.Background(), "dup.wasm", bin)
	require.NoError(t, err)
	b, err := exec.Build(context.Background(), "dup.wasm", bin)
	require.NoError(t, err)
	assert.Equal(t, a.Name(), b.Name())
}

func TestExecutor_TrappingPluginIsEvicted(t *testing.T) {
	exec := newExecutor(t)
	ps := buildAll(t, exec, map[string][]byte{
		"bad.wasm":  trapModule("pre_command"),
		"good.wasm": suggestModule(`"ok"`),
	}, "bad.wasm", "good.wasm")

	var crashed []string
	h := newHost(t, ps, host.WithCrashHandler(func(name string, err error) {
		crashed = append(crashed, name)
		var herr *plugin.HookError
		assert.ErrorAs(t, err, &herr)
	}))

	wait(t, h.RunHook("pre_command"))
	assert.Equal(t, []string{"good.wasm"}, names(t, h))
	assert.Equal(t, []string{"bad.wasm"}, crashed)
}

func TestExecutor_CustomRegistry(t *testing.T) {
	reg, err := hostfuncs.NewRegistry()
	require.NoError(t, err)

	exec := newExecutor(t, host.WithHostFunctions(reg))
	assert.Same(t, reg, exec.Registry())
	assert.Empty(t, exec.Registry().Names())
}

func TestExecutor_DefaultRegistry(t *testing.T) {
	exec := newExecutor(t)
	for _, name := range []string{
		hostfuncs.FuncOutputText,
		hostfuncs.FuncEnvGet,
		hostfuncs.FuncEnvSet,
		hostfuncs.FuncEnvDelete,
		hostfuncs.FuncEnvVars,
		hostfuncs.FuncIsExecutable,
	} {
		assert.True(t, exec.Registry().Has(name), name)
	}
}

func TestLaunch(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.wasm"), suggestModule(`"a"`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.wasm"), []byte("garbage"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("skip"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "c.wasm"), suggestModule(`"c"`), 0o644))

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	exec := newExecutor(t)
	h := host.Launch(context.Background(), exec, []string{dir}, host.WithLogger(logger))
	t.Cleanup(func() { _ = h.Close(context.Background()) })

	assert.Equal(t, []string{"a.wasm", "c.wasm"}, names(t, h))
	assert.Contains(t, logs.String(), "failed to load plugin")
	assert.Contains(t, logs.String(), "b.wasm")

	responses := wait(t, h.RunHookWithReturn("provide_autocomplete", ""))
	require.Len(t, responses, 2)
	assert.Equal(t, json.RawMessage(`"a"`), responses[0].Payload)
	assert.Equal(t, json.RawMessage(`"c"`), responses[1].Payload)
}

func TestLaunch_Extensions(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.wasm"), suggestModule(`"a"`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.plug"), suggestModule(`"b"`), 0o644))

	exec := newExecutor(t)
	h := host.Launch(context.Background(), exec, []string{dir}, quiet, host.WithExtensions(".plug"))
	t.Cleanup(func() { _ = h.Close(context.Background()) })

	assert.Equal(t, []string{"b.plug"}, names(t, h))
}

func startSession(t *testing.T, files map[string][]byte) (*host.Host, *state.Shell, *bytes.Buffer) {
	t.Helper()
	dir := t.TempDir()
	for name, bin := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), bin, 0o644))
	}

	cfg := config.Default()
	cfg.PluginPaths = []string{dir}
	shell := state.New([]string{"HOME=/home/rush", "PATH=/usr/bin"}, "/home/rush")
	out := &bytes.Buffer{}

	h, exec, err := host.Start(context.Background(), cfg, shell, out, quiet)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = h.Close(context.Background())
		_ = exec.Close(context.Background())
	})
	return h, shell, out
}

func TestStart_StartHookPrints(t *testing.T) {
	h, _, out := startSession(t, map[string][]byte{
		"greet.wasm": bindingModule(host.StartHook, hostfuncs.FuncOutputText, `{"text":"hello"}`),
	})

	wait(t, h.Started())
	assert.Equal(t, "hello\n", out.String())
}

func TestStart_BindingsActOnShell(t *testing.T) {
	h, shell, _ := startSession(t, map[string][]byte{
		"env.wasm": bindingModule("post_command", hostfuncs.FuncEnvSet, `{"name":"GREETING","value":"hi"}`),
	})

	_, ok := shell.Env("GREETING")
	require.False(t, ok)

	wait(t, h.RunHook("post_command"))
	v, ok := shell.Env("GREETING")
	assert.True(t, ok)
	assert.Equal(t, "hi", v)
	assert.Equal(t, []string{"env.wasm"}, names(t, h), "a binding call is not a crash")
}

func TestStart_InvalidBindingRequestIsNotACrash(t *testing.T) {
	h, shell, _ := startSession(t, map[string][]byte{
		"env.wasm": bindingModule("post_command", hostfuncs.FuncEnvSet, `{"name":"","value":"x"}`),
	})

	wait(t, h.RunHook("post_command"))
	assert.Equal(t, []string{"env.wasm"}, names(t, h))
	assert.NotContains(t, shell.Environ(), "")
}
