// Package pdk is the plugin development kit for writing rush plugins in Go.
//
// Plugins are built as WASI reactors so the host can call their exports
// after _initialize:
//
//	GOOS=wasip1 GOARCH=wasm go build -buildmode=c-shared -o hello.wasm .
//
// A hook is an exported function taking one uint64 span per argument. Hooks
// broadcast with a return value must return the span of a JSON value:
//
//	//go:wasmexport provide_autocomplete
//	func provideAutocomplete(line uint64) uint64 {
//		var typed string
//		_ = pdk.Decode(line, &typed)
//		return pdk.Return(nil)
//	}
//
// Importing pdk also exports the allocate and deallocate functions the host
// uses to pass arguments and results, and routes log/slog to the shell's log.
package pdk
