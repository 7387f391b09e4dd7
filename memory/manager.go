// Package memory bridges host byte buffers and a sandboxed module's linear
// memory.
//
// The host never invents addresses inside a module. Every buffer it places in
// linear memory comes from the module's own allocator export and is returned
// through the module's own deallocator export, so the guest allocator's view
// of its heap stays consistent with what the host has written.
package memory

import (
	"context"

	"github.com/rushsh/rush/internal/abi"
)

// LinearMemory is the subset of a module's linear memory the manager needs.
// wazero's api.Memory satisfies it.
type LinearMemory interface {
	// Size returns the memory size in bytes.
	Size() uint32
	// Read returns a view of byteCount bytes at offset, or false if out of range.
	Read(offset, byteCount uint32) ([]byte, bool)
	// Write copies v into memory at offset, or returns false if out of range.
	Write(offset uint32, v []byte) bool
	// ReadByte reads a single byte at offset.
	ReadByte(offset uint32) (byte, bool)
	// WriteByte writes a single byte at offset.
	WriteByte(offset uint32, v byte) bool
}

// Manager controls sending and receiving data across the sandbox boundary.
type Manager interface {
	// Alloc reserves length bytes through the module's allocator and returns
	// an owning slice that deallocates when released.
	Alloc(ctx context.Context, length uint32) (*Slice, error)

	// Copy allocates len(data) bytes and writes data into them.
	Copy(ctx context.Context, data []byte) (*Slice, error)

	// View wraps memory the host did not allocate. Releasing it is a no-op.
	View(ctx context.Context, span abi.Span) *Slice

	// TakeOwnership wraps an existing span as owning, for example a buffer a
	// hook returned that the host must now free.
	TakeOwnership(ctx context.Context, span abi.Span) *Slice

	// Dealloc returns offset to the module's allocator. Prefer Slice.Release,
	// which guarantees at most one call per allocation.
	Dealloc(ctx context.Context, offset uint32) error

	// Memory returns the linear memory the manager operates on.
	Memory() LinearMemory
}

// CopyInto is the Alloc-then-write composition shared by Manager
// implementations. The slice is released if the write fails.
func CopyInto(ctx context.Context, m Manager, data []byte) (*Slice, error) {
	s, err := m.Alloc(ctx, uint32(len(data))) //nolint:gosec // G115: guest buffers are 32-bit addressed
	if err != nil {
		return nil, err
	}
	if err := s.Write(data); err != nil {
		_ = s.Release()
		return nil, err
	}
	return s, nil
}

// WithAlloc allocates length bytes, runs fn with the slice, and releases the
// slice on every exit path, including a panic unwinding through fn. If fn
// calls IntoRaw the release is skipped and the caller owns the span.
func WithAlloc(ctx context.Context, m Manager, length uint32, fn func(*Slice) error) (err error) {
	s, err := m.Alloc(ctx, length)
	if err != nil {
		return err
	}
	return scoped(s, fn)
}

// WithCopy is WithAlloc for a buffer initialised with data.
func WithCopy(ctx context.Context, m Manager, data []byte, fn func(*Slice) error) error {
	s, err := m.Copy(ctx, data)
	if err != nil {
		return err
	}
	return scoped(s, fn)
}

func scoped(s *Slice, fn func(*Slice) error) (err error) {
	defer func() {
		if rerr := s.Release(); rerr != nil && err == nil {
			err = rerr
		}
	}()
	return fn(s)
}
