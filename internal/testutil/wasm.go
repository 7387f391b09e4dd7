package testutil

import "encoding/binary"

// ValType is a WebAssembly value type.
type ValType byte

// Value types used by the test modules.
const (
	I32 ValType = 0x7f
	I64 ValType = 0x7e
)

// Global indices reserved by PluginModule.
const (
	GlobalHeap = iota
	GlobalAllocCount
	GlobalDeallocCount
)

// HeapBase is where PluginModule's bump allocator starts handing out memory.
// Offsets below it are free for static data.
const HeapBase = 4096

// Func is a function defined in a test module.
type Func struct {
	// Export is the exported name; empty leaves the function unexported.
	Export  string
	Params  []ValType
	Results []ValType
	Locals  []ValType
	// Body holds the instructions without the terminating end opcode.
	Body []byte
}

// Import is a function imported from a host module.
type Import struct {
	Module  string
	Name    string
	Params  []ValType
	Results []ValType
}

// Global is a module global initialised to a constant.
type Global struct {
	Type    ValType
	Mutable bool
	Init    int64
	Export  string
}

// Data is an active data segment in memory 0.
type Data struct {
	Offset uint32
	Bytes  []byte
}

// Module is a minimal WebAssembly binary encoder, enough to build plugins for
// tests without a compiler toolchain.
type Module struct {
	Imports      []Import
	Funcs        []Func
	Globals      []Global
	Data         []Data
	MemoryPages  uint32
	ExportMemory bool
}

// PluginModule returns a module that satisfies the cooperative allocator
// contract: one exported page of memory, a bump allocator exported as
// "allocate", and a "deallocate" that only counts calls. The counters are
// exported as the globals "alloc_count" and "dealloc_count".
func PluginModule() *Module {
	return &Module{
		MemoryPages:  1,
		ExportMemory: true,
		Globals: []Global{
			GlobalHeap:         {Type: I32, Mutable: true, Init: HeapBase},
			GlobalAllocCount:   {Type: I32, Mutable: true, Export: "alloc_count"},
			GlobalDeallocCount: {Type: I32, Mutable: true, Export: "dealloc_count"},
		},
		Funcs: []Func{
			{
				Export:  "allocate",
				Params:  []ValType{I32},
				Results: []ValType{I32},
				Body: concat(
					increment(GlobalAllocCount),
					GlobalGet(GlobalHeap),
					GlobalGet(GlobalHeap), LocalGet(0), I32Add(), GlobalSet(GlobalHeap),
				),
			},
			{
				Export: "deallocate",
				Params: []ValType{I32},
				Body:   increment(GlobalDeallocCount),
			},
		},
	}
}

// WithFunc appends a function.
func (m *Module) WithFunc(f Func) *Module {
	m.Funcs = append(m.Funcs, f)
	return m
}

// WithImport appends a function import. Imports take the lowest function
// indices, so a call to import i uses index i.
func (m *Module) WithImport(imp Import) *Module {
	m.Imports = append(m.Imports, imp)
	return m
}

// WithData places b at offset when the module is instantiated.
func (m *Module) WithData(offset uint32, b []byte) *Module {
	m.Data = append(m.Data, Data{Offset: offset, Bytes: b})
	return m
}

// Encode renders the module in the WebAssembly binary format.
func (m *Module) Encode() []byte {
	out := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

	var types []byte
	for _, imp := range m.Imports {
		types = append(types, funcType(imp.Params, imp.Results)...)
	}
	for _, f := range m.Funcs {
		types = append(types, funcType(f.Params, f.Results)...)
	}
	out = section(out, 1, vec(len(m.Imports)+len(m.Funcs), types))

	if len(m.Imports) > 0 {
		var imports []byte
		for i, imp := range m.Imports {
			imports = appendName(imports, imp.Module)
			imports = appendName(imports, imp.Name)
			imports = append(imports, 0x00)
			imports = appendULEB(imports, uint64(i))
		}
		out = section(out, 2, vec(len(m.Imports), imports))
	}

	var funcs []byte
	for i := range m.Funcs {
		funcs = appendULEB(funcs, uint64(len(m.Imports)+i))
	}
	out = section(out, 3, vec(len(m.Funcs), funcs))

	if m.MemoryPages > 0 {
		mem := appendULEB([]byte{0x00}, uint64(m.MemoryPages))
		out = section(out, 5, vec(1, mem))
	}

	if len(m.Globals) > 0 {
		var globals []byte
		for _, g := range m.Globals {
			mut := byte(0x00)
			if g.Mutable {
				mut = 0x01
			}
			globals = append(globals, byte(g.Type), mut)
			globals = append(globals, constExpr(g.Type, g.Init)...)
		}
		out = section(out, 6, vec(len(m.Globals), globals))
	}

	var exports []byte
	count := 0
	for i, f := range m.Funcs {
		if f.Export == "" {
			continue
		}
		exports = appendName(exports, f.Export)
		exports = append(exports, 0x00)
		exports = appendULEB(exports, uint64(len(m.Imports)+i))
		count++
	}
	if m.ExportMemory && m.MemoryPages > 0 {
		exports = appendName(exports, "memory")
		exports = append(exports, 0x02, 0x00)
		count++
	}
	for i, g := range m.Globals {
		if g.Export == "" {
			continue
		}
		exports = appendName(exports, g.Export)
		exports = append(exports, 0x03)
		exports = appendULEB(exports, uint64(i))
		count++
	}
	out = section(out, 7, vec(count, exports))

	var code []byte
	for _, f := range m.Funcs {
		body := appendULEB(nil, uint64(len(f.Locals)))
		for _, l := range f.Locals {
			body = append(body, 0x01, byte(l))
		}
		body = append(body, f.Body...)
		body = append(body, 0x0b)
		code = appendULEB(code, uint64(len(body)))
		code = append(code, body...)
	}
	out = section(out, 10, vec(len(m.Funcs), code))

	if len(m.Data) > 0 {
		var data []byte
		for _, d := range m.Data {
			data = append(data, 0x00)
			data = append(data, constExpr(I32, int64(d.Offset))...)
			data = appendULEB(data, uint64(len(d.Bytes)))
			data = append(data, d.Bytes...)
		}
		out = section(out, 11, vec(len(m.Data), data))
	}

	return out
}

// Unreachable traps.
func Unreachable() []byte { return []byte{0x00} }

// LocalGet pushes local i.
func LocalGet(i uint32) []byte { return appendULEB([]byte{0x20}, uint64(i)) }

// GlobalGet pushes global i.
func GlobalGet(i uint32) []byte { return appendULEB([]byte{0x23}, uint64(i)) }

// GlobalSet pops into global i.
func GlobalSet(i uint32) []byte { return appendULEB([]byte{0x24}, uint64(i)) }

// I32Const pushes v.
func I32Const(v int32) []byte { return appendSLEB([]byte{0x41}, int64(v)) }

// I64Const pushes v.
func I64Const(v int64) []byte { return appendSLEB([]byte{0x42}, v) }

// I32Add adds the top two i32 values.
func I32Add() []byte { return []byte{0x6a} }

// Drop discards the top of the stack.
func Drop() []byte { return []byte{0x1a} }

// Call calls function index i.
func Call(i uint32) []byte { return appendULEB([]byte{0x10}, uint64(i)) }

// Span pushes a packed (offset, length) span as an i64 constant.
func Span(offset, length uint32) []byte {
	return I64Const(int64(uint64(offset)<<32 | uint64(length))) //nolint:gosec // G115: bit pattern is what matters
}

// StaticJSONHook returns a hook taking params and returning the span of a
// static payload placed at offset by the caller with WithData.
func StaticJSONHook(name string, params []ValType, offset uint32, payload []byte) Func {
	return Func{
		Export:  name,
		Params:  params,
		Results: []ValType{I64},
		Body:    Span(offset, uint32(len(payload))), //nolint:gosec // G115: test payloads are small
	}
}

// Concat joins instruction sequences.
func Concat(parts ...[]byte) []byte { return concat(parts...) }

func concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func increment(global uint32) []byte {
	return concat(GlobalGet(global), I32Const(1), I32Add(), GlobalSet(global))
}

func funcType(params, results []ValType) []byte {
	out := []byte{0x60}
	out = appendULEB(out, uint64(len(params)))
	for _, p := range params {
		out = append(out, byte(p))
	}
	out = appendULEB(out, uint64(len(results)))
	for _, r := range results {
		out = append(out, byte(r))
	}
	return out
}

func constExpr(t ValType, v int64) []byte {
	if t == I64 {
		return append(I64Const(v), 0x0b)
	}
	return append(appendSLEB([]byte{0x41}, v), 0x0b)
}

func section(out []byte, id byte, contents []byte) []byte {
	out = append(out, id)
	out = appendULEB(out, uint64(len(contents)))
	return append(out, contents...)
}

func vec(n int, items []byte) []byte {
	return append(appendULEB(nil, uint64(n)), items...)
}

func appendName(b []byte, name string) []byte {
	b = appendULEB(b, uint64(len(name)))
	return append(b, name...)
}

func appendULEB(b []byte, v uint64) []byte {
	return binary.AppendUvarint(b, v)
}

func appendSLEB(b []byte, v int64) []byte {
	for {
		c := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && c&0x40 == 0) || (v == -1 && c&0x40 != 0) {
			return append(b, c)
		}
		b = append(b, c|0x80)
	}
}
