package memory

import (
	"fmt"

	"github.com/rushsh/rush/internal/abi"
)

// MissingExportError reports a module that lacks one of the exports the
// cooperative allocator contract requires.
type MissingExportError struct {
	Export string
	Reason string
}

func (e *MissingExportError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("module must export %s: %s", e.Export, e.Reason)
	}
	return fmt.Sprintf("module must export %s", e.Export)
}

// BoundsError is the panic value for an index access outside a slice.
type BoundsError struct {
	Span  abi.Span
	Index uint32
	// Outside is set when the index was inside the span but the span itself
	// does not fit in linear memory.
	Outside bool
}

func (e *BoundsError) Error() string {
	if e.Outside {
		return fmt.Sprintf("memory: index %d of %s is outside linear memory", e.Index, e.Span)
	}
	return fmt.Sprintf("memory: attempt to access beyond the bounds of this slice: %d >= %d", e.Index, e.Span.Length)
}
