package memory

import (
	"context"
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/rushsh/rush/internal/abi"
)

// Slice is a view over a span of one module's linear memory.
//
// An owning slice hands its span back to the module's deallocator exactly
// once, on Release. Index access outside the span panics with a *BoundsError:
// linear memory is shared with untrusted code and an out-of-range access means
// the host's bookkeeping is wrong.
type Slice struct {
	ctx     context.Context
	manager Manager
	span    abi.Span
	owned   bool
}

// NewSlice binds span to a manager and execution context. Manager
// implementations use it to build the slices they return.
func NewSlice(ctx context.Context, m Manager, span abi.Span, owned bool) *Slice {
	return &Slice{ctx: ctx, manager: m, span: span, owned: owned}
}

// Span returns the memory region the slice refers to.
func (s *Slice) Span() abi.Span {
	return s.span
}

// Owned reports whether releasing the slice will deallocate it.
func (s *Slice) Owned() bool {
	return s.owned
}

// Len returns the length of the slice in bytes.
func (s *Slice) Len() uint32 {
	return s.span.Length
}

// At returns the byte at index i.
func (s *Slice) At(i uint32) byte {
	addr := s.address(i)
	b, ok := s.manager.Memory().ReadByte(addr)
	if !ok {
		panic(&BoundsError{Span: s.span, Index: i, Outside: true})
	}
	return b
}

// Set writes b at index i.
func (s *Slice) Set(i uint32, b byte) {
	addr := s.address(i)
	if !s.manager.Memory().WriteByte(addr, b) {
		panic(&BoundsError{Span: s.span, Index: i, Outside: true})
	}
}

// address guards i against the span and returns the absolute offset.
func (s *Slice) address(i uint32) uint32 {
	if i >= s.span.Length {
		panic(&BoundsError{Span: s.span, Index: i})
	}
	addr := uint64(s.span.Offset) + uint64(i)
	if addr > math.MaxUint32 {
		panic(&BoundsError{Span: s.span, Index: i, Outside: true})
	}
	return uint32(addr)
}

// Read copies the slice contents out of linear memory. The span may have come
// from the guest, so a span outside memory is an error rather than a fault.
func (s *Slice) Read() ([]byte, error) {
	if s.span.Length == 0 {
		return []byte{}, nil
	}
	view, ok := s.manager.Memory().Read(s.span.Offset, s.span.Length)
	if !ok {
		return nil, fmt.Errorf("%s lies outside linear memory of %d bytes", s.span, s.manager.Memory().Size())
	}
	out := make([]byte, len(view))
	copy(out, view)
	return out, nil
}

// Text reads the slice contents as a string. The contents must be valid
// UTF-8.
func (s *Slice) Text() (string, error) {
	b, err := s.Read()
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", fmt.Errorf("%s does not hold valid UTF-8", s.span)
	}
	return string(b), nil
}

// Write copies data to the start of the slice. Writing more bytes than the
// slice holds panics like any other out-of-range index.
func (s *Slice) Write(data []byte) error {
	if uint64(len(data)) > uint64(s.span.Length) {
		panic(&BoundsError{Span: s.span, Index: s.span.Length})
	}
	if len(data) == 0 {
		return nil
	}
	if !s.manager.Memory().Write(s.span.Offset, data) {
		return fmt.Errorf("write of %d bytes to %s failed", len(data), s.span)
	}
	return nil
}

// IntoRaw gives up ownership and returns the span. The caller becomes
// responsible for deallocating it.
func (s *Slice) IntoRaw() abi.Span {
	s.owned = false
	return s.span
}

// Release deallocates the slice if it is owned. The ownership flag is consumed
// first, so the module's deallocator runs at most once per slice.
func (s *Slice) Release() error {
	if !s.owned {
		return nil
	}
	s.owned = false
	return s.manager.Dealloc(s.ctx, s.span.Offset)
}
