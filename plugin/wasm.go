package plugin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync/atomic"

	"github.com/rushsh/rush/internal/abi"
	"github.com/rushsh/rush/memory"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

// InstanceSeparator joins a plugin name and its instance number in the wazero
// module name. Two plugins may share a file name, module names may not.
const InstanceSeparator = "#"

var instanceSeq atomic.Uint64

// Builder configures and instantiates a WasmPlugin.
type Builder struct {
	runtime wazero.Runtime
	wasm    []byte
	name    string
	wasi    *wasiConfig
}

type wasiConfig struct {
	stdout  io.Writer
	stderr  io.Writer
	environ []string
}

// NewBuilder starts building a plugin from a WebAssembly binary. The runtime
// must already provide every host module the binary imports.
func NewBuilder(rt wazero.Runtime, wasm []byte) *Builder {
	return &Builder{runtime: rt, wasm: wasm}
}

// Name sets the plugin name used in diagnostics.
func (b *Builder) Name(name string) *Builder {
	b.name = name
	return b
}

// Unnamed names the plugin UnnamedPlugin.
func (b *Builder) Unnamed() *Builder {
	return b.Name(UnnamedPlugin)
}

// WASI connects the module's WASI stdout and stderr to the given writers and
// exposes environ ("KEY=value" entries) as its environment. Without it the
// module runs with discarded output and an empty environment.
func (b *Builder) WASI(stdout, stderr io.Writer, environ []string) *Builder {
	b.wasi = &wasiConfig{stdout: stdout, stderr: stderr, environ: environ}
	return b
}

// Build compiles and instantiates the module, runs its _initialize export if
// present, and binds a memory manager to it.
func (b *Builder) Build(ctx context.Context) (*WasmPlugin, error) {
	if b.name == "" {
		return nil, ErrNameNotSet
	}

	compiled, err := b.runtime.CompileModule(ctx, b.wasm)
	if err != nil {
		return nil, fmt.Errorf("failed to compile module: %w", err)
	}

	mod, err := b.runtime.InstantiateModule(ctx, compiled, b.moduleConfig())
	if err != nil {
		_ = compiled.Close(ctx)
		return nil, fmt.Errorf("failed to instantiate module: %w", err)
	}

	p := &WasmPlugin{name: b.name, module: mod, compiled: compiled}

	if init := mod.ExportedFunction("_initialize"); init != nil {
		if _, err := init.Call(ctx); err != nil {
			_ = p.Close(ctx)
			return nil, fmt.Errorf("failed to call _initialize: %w", err)
		}
	}

	mem, err := memory.NewCooperative(mod)
	if err != nil {
		_ = p.Close(ctx)
		return nil, err
	}
	p.memory = mem
	return p, nil
}

func (b *Builder) moduleConfig() wazero.ModuleConfig {
	cfg := wazero.NewModuleConfig().
		WithName(fmt.Sprintf("%s%s%d", b.name, InstanceSeparator, instanceSeq.Add(1))).
		// Plugins are libraries: _start would run a command's main and exit.
		WithStartFunctions()
	if b.wasi == nil {
		return cfg
	}
	if b.wasi.stdout != nil {
		cfg = cfg.WithStdout(b.wasi.stdout)
	}
	if b.wasi.stderr != nil {
		cfg = cfg.WithStderr(b.wasi.stderr)
	}
	for _, kv := range b.wasi.environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" || strings.ContainsRune(kv, 0) {
			continue
		}
		cfg = cfg.WithEnv(key, value)
	}
	return cfg
}

// NameFromModule recovers the plugin name from a module instance name.
func NameFromModule(moduleName string) string {
	if i := strings.LastIndex(moduleName, InstanceSeparator); i >= 0 {
		return moduleName[:i]
	}
	return moduleName
}

// WasmPlugin is a Plugin backed by a wazero module instance.
type WasmPlugin struct {
	name     string
	module   api.Module
	compiled wazero.CompiledModule
	memory   *memory.Cooperative
}

var _ Plugin = (*WasmPlugin)(nil)

// Name returns the plugin name.
func (p *WasmPlugin) Name() string {
	return p.name
}

// Memory returns the manager bound to the plugin's linear memory.
func (p *WasmPlugin) Memory() *memory.Cooperative {
	return p.memory
}

// CallHook invokes a hook that must not declare results.
func (p *WasmPlugin) CallHook(ctx context.Context, hook string, args [][]byte) (bool, error) {
	fn := p.module.ExportedFunction(hook)
	if fn == nil {
		return false, nil
	}
	if len(fn.Definition().ResultTypes()) != 0 {
		return true, &HookError{Hook: hook, Kind: HookMustNotReturn}
	}
	return true, p.call(ctx, hook, fn, args, nil)
}

// CallHookWithReturn invokes a hook that returns the span of a JSON value. The
// host takes ownership of the returned buffer and frees it once copied out.
func (p *WasmPlugin) CallHookWithReturn(ctx context.Context, hook string, args [][]byte) (json.RawMessage, bool, error) {
	fn := p.module.ExportedFunction(hook)
	if fn == nil {
		return nil, false, nil
	}
	results := fn.Definition().ResultTypes()
	if len(results) != 1 || results[0] != api.ValueTypeI64 {
		return nil, true, &HookError{Hook: hook, Kind: HookMustReturn}
	}

	var value json.RawMessage
	err := p.call(ctx, hook, fn, args, func(results []uint64) error {
		data, err := p.takeResult(ctx, abi.Decode(results[0]))
		if err != nil {
			return &HookError{Hook: hook, Kind: HookMemory, Err: err}
		}
		if !json.Valid(data) {
			return &HookError{Hook: hook, Kind: HookInvalidJSON, Err: errors.New("payload is not a json value")}
		}
		value = data
		return nil
	})
	if err != nil {
		return nil, true, err
	}
	return value, true, nil
}

// call copies args into guest memory, invokes fn with their spans and hands
// the results to onResult while the argument buffers are still live. The
// argument buffers are released on every path.
func (p *WasmPlugin) call(ctx context.Context, hook string, fn api.Function, args [][]byte, onResult func([]uint64) error) (err error) {
	held := make([]*memory.Slice, 0, len(args))
	defer func() {
		for _, s := range held {
			if rerr := s.Release(); rerr != nil && err == nil {
				err = &HookError{Hook: hook, Kind: HookMemory, Err: rerr}
			}
		}
	}()

	params := make([]uint64, 0, len(args))
	for _, arg := range args {
		s, err := p.memory.Copy(ctx, arg)
		if err != nil {
			return &HookError{Hook: hook, Kind: HookMemory, Err: err}
		}
		held = append(held, s)
		params = append(params, s.Span().Encode())
	}

	results, err := fn.Call(ctx, params...)
	if err != nil {
		return &HookError{Hook: hook, Kind: HookTrapped, Err: err}
	}
	if onResult == nil {
		return nil
	}
	return onResult(results)
}

func (p *WasmPlugin) takeResult(ctx context.Context, span abi.Span) ([]byte, error) {
	if span.IsEmpty() {
		return nil, fmt.Errorf("empty result span %s", span)
	}
	ret := p.memory.TakeOwnership(ctx, span)
	data, err := ret.Read()
	if err != nil {
		// Not a buffer the guest allocator handed out; do not free it.
		ret.IntoRaw()
		return nil, err
	}
	if err := ret.Release(); err != nil {
		return nil, err
	}
	return data, nil
}

// Close closes the module instance and its compiled code.
func (p *WasmPlugin) Close(ctx context.Context) error {
	err := p.module.Close(ctx)
	if cerr := p.compiled.Close(ctx); err == nil {
		err = cerr
	}
	return err
}
