package memory

import (
	"context"
	"fmt"
	"slices"

	"github.com/rushsh/rush/internal/abi"
	"github.com/tetratelabs/wazero/api"
)

// Names of the exports a module must provide for the host to reach its memory.
const (
	ExportMemory     = "memory"
	ExportAllocate   = "allocate"
	ExportDeallocate = "deallocate"
)

// Cooperative is the Manager for a wazero module instance. It cooperates with
// the module's allocate(i32) -> i32 and deallocate(i32) exports so the host
// never overwrites memory the guest allocator believes is free.
type Cooperative struct {
	memory      api.Memory
	allocator   api.Function
	deallocator api.Function
}

// NewCooperative binds a manager to mod. It fails with *MissingExportError if
// the module does not export its memory and both allocator functions with the
// expected signatures.
func NewCooperative(mod api.Module) (*Cooperative, error) {
	mem := mod.ExportedMemory(ExportMemory)
	if mem == nil {
		return nil, &MissingExportError{Export: fmt.Sprintf("memory %q", ExportMemory)}
	}

	allocator := mod.ExportedFunction(ExportAllocate)
	if err := checkSignature(allocator, ExportAllocate,
		[]api.ValueType{api.ValueTypeI32}, []api.ValueType{api.ValueTypeI32}); err != nil {
		return nil, err
	}

	deallocator := mod.ExportedFunction(ExportDeallocate)
	if err := checkSignature(deallocator, ExportDeallocate,
		[]api.ValueType{api.ValueTypeI32}, nil); err != nil {
		return nil, err
	}

	return &Cooperative{
		memory:      mem,
		allocator:   allocator,
		deallocator: deallocator,
	}, nil
}

func checkSignature(fn api.Function, name string, params, results []api.ValueType) error {
	if fn == nil {
		return &MissingExportError{Export: fmt.Sprintf("function %q", name)}
	}
	def := fn.Definition()
	if !slices.Equal(def.ParamTypes(), params) || !slices.Equal(def.ResultTypes(), results) {
		return &MissingExportError{
			Export: fmt.Sprintf("function %q", name),
			Reason: fmt.Sprintf("want signature %s, got %s",
				signature(params, results), signature(def.ParamTypes(), def.ResultTypes())),
		}
	}
	return nil
}

func signature(params, results []api.ValueType) string {
	names := func(types []api.ValueType) []string {
		out := make([]string, len(types))
		for i, t := range types {
			out[i] = api.ValueTypeName(t)
		}
		return out
	}
	return fmt.Sprintf("%v -> %v", names(params), names(results))
}

// Alloc calls the module's allocator and returns an owning slice.
func (c *Cooperative) Alloc(ctx context.Context, length uint32) (*Slice, error) {
	results, err := c.allocator.Call(ctx, uint64(length))
	if err != nil {
		return nil, fmt.Errorf("wasm memory allocator failed: %w", err)
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("wasm memory allocator returned no results")
	}
	span := abi.Span{
		Offset: uint32(results[0]), //nolint:gosec // G115: WASM32 pointers are always 32-bit
		Length: length,
	}
	if span.End() > uint64(c.memory.Size()) {
		// The allocator handed out memory it does not have. Give it back
		// rather than let a later write fault.
		_ = c.Dealloc(ctx, span.Offset)
		return nil, fmt.Errorf("wasm memory allocator returned %s beyond memory size %d", span, c.memory.Size())
	}
	return NewSlice(ctx, c, span, true), nil
}

// Copy allocates a buffer and writes data into it.
func (c *Cooperative) Copy(ctx context.Context, data []byte) (*Slice, error) {
	return CopyInto(ctx, c, data)
}

// View wraps a span without taking ownership.
func (c *Cooperative) View(ctx context.Context, span abi.Span) *Slice {
	return NewSlice(ctx, c, span, false)
}

// TakeOwnership wraps a span that the host must free.
func (c *Cooperative) TakeOwnership(ctx context.Context, span abi.Span) *Slice {
	return NewSlice(ctx, c, span, true)
}

// Dealloc calls the module's deallocator.
func (c *Cooperative) Dealloc(ctx context.Context, offset uint32) error {
	if _, err := c.deallocator.Call(ctx, uint64(offset)); err != nil {
		return fmt.Errorf("wasm memory deallocator failed: %w", err)
	}
	return nil
}

// Memory returns the module's exported linear memory.
func (c *Cooperative) Memory() LinearMemory {
	return c.memory
}
