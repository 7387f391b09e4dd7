package plugin

import (
	"errors"
	"fmt"
)

// ErrNameNotSet is returned by Builder.Build when neither Name nor Unnamed
// was called.
var ErrNameNotSet = errors.New("plugin name not set")

// HookErrorKind classifies why a hook call failed.
type HookErrorKind int

const (
	// HookTrapped means the guest trapped or the call itself failed.
	HookTrapped HookErrorKind = iota
	// HookMustReturn means a value was expected but the export does not
	// return exactly one i64.
	HookMustReturn
	// HookMustNotReturn means the export declares results but the caller
	// expects none.
	HookMustNotReturn
	// HookInvalidJSON means the returned buffer is not valid JSON.
	HookInvalidJSON
	// HookMemory means moving data across the sandbox boundary failed.
	HookMemory
)

func (k HookErrorKind) String() string {
	switch k {
	case HookTrapped:
		return "trapped"
	case HookMustReturn:
		return "must_return"
	case HookMustNotReturn:
		return "must_not_return"
	case HookInvalidJSON:
		return "invalid_json"
	case HookMemory:
		return "memory"
	default:
		return fmt.Sprintf("HookErrorKind(%d)", int(k))
	}
}

// HookError reports a failed hook call. A plugin that produced one should be
// treated as crashed.
type HookError struct {
	Hook string
	Kind HookErrorKind
	Err  error
}

func (e *HookError) Error() string {
	switch e.Kind {
	case HookMustReturn:
		return fmt.Sprintf("hook %s must return a value", e.Hook)
	case HookMustNotReturn:
		return fmt.Sprintf("hook %s may not return a value", e.Hook)
	case HookInvalidJSON:
		return fmt.Sprintf("hook %s returned invalid json: %v", e.Hook, e.Err)
	case HookMemory:
		return fmt.Sprintf("hook %s: memory transfer failed: %v", e.Hook, e.Err)
	default:
		return fmt.Sprintf("hook %s failed: %v", e.Hook, e.Err)
	}
}

func (e *HookError) Unwrap() error {
	return e.Err
}

// LoadError is a per-item failure reported by a loader. Enumeration continues
// after it.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load plugin %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}
