// Package abi defines the numeric boundary convention shared by the shell and
// its plugins. Only 64-bit integers cross the sandbox boundary; a region of a
// plugin's linear memory travels as a packed (offset, length) pair.
package abi

import "fmt"

// PtrHighBits is the shift applied to the offset half of a packed span.
const PtrHighBits = 32

// Span is a region of one module instance's linear memory.
type Span struct {
	Offset uint32
	Length uint32
}

// Encode packs the span into a single boundary-safe value.
// The offset occupies the high 32 bits and the length the low 32 bits.
func (s Span) Encode() uint64 {
	return PackPtrLen(s.Offset, s.Length)
}

// End returns the first offset past the span. It is computed in 64 bits so a
// span reaching the top of the 32-bit address space does not wrap.
func (s Span) End() uint64 {
	return uint64(s.Offset) + uint64(s.Length)
}

// IsEmpty reports whether the span covers no bytes.
func (s Span) IsEmpty() bool {
	return s.Length == 0
}

func (s Span) String() string {
	return fmt.Sprintf("span{offset=%d, length=%d}", s.Offset, s.Length)
}

// Decode unpacks a value produced by Span.Encode. Every 64-bit value decodes
// to exactly one span.
func Decode(packed uint64) Span {
	ptr, length := UnpackPtrLen(packed)
	return Span{Offset: ptr, Length: length}
}

// PackPtrLen packs a pointer and length into a single uint64.
func PackPtrLen(ptr, length uint32) uint64 {
	return (uint64(ptr) << PtrHighBits) | uint64(length)
}

// UnpackPtrLen unpacks a uint64 into its original pointer and length.
func UnpackPtrLen(packed uint64) (ptr, length uint32) {
	ptr = uint32(packed >> PtrHighBits)   //nolint:gosec // G115: packed format stores 32-bit values
	length = uint32(packed & 0xFFFFFFFF) //nolint:gosec // G115: packed format stores 32-bit values
	return ptr, length
}
