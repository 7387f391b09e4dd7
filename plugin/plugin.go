// Package plugin defines the host-side view of a sandboxed shell extension and
// the loader that discovers plugins on disk.
//
// A Plugin exposes named hooks. Calling a hook the plugin does not export is
// not an error: the call reports that the hook is not implemented and the
// plugin stays usable. Any other failure means the plugin is in an unknown
// state and the caller should discard it.
package plugin

import (
	"context"
	"encoding/json"
)

// UnnamedPlugin is the name given to plugins built with Builder.Unnamed.
const UnnamedPlugin = "<unnamed plugin>"

// Plugin is one loaded extension. Implementations are not safe for concurrent
// use; the host serialises every call.
type Plugin interface {
	// Name identifies the plugin in diagnostics.
	Name() string

	// CallHook invokes a hook that returns nothing. args are pre-serialized
	// JSON values passed positionally. implemented is false when the plugin
	// does not export the hook.
	CallHook(ctx context.Context, hook string, args [][]byte) (implemented bool, err error)

	// CallHookWithReturn invokes a hook that returns a JSON value.
	CallHookWithReturn(ctx context.Context, hook string, args [][]byte) (value json.RawMessage, implemented bool, err error)

	// Close releases the plugin's sandbox.
	Close(ctx context.Context) error
}
